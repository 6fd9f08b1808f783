package cmd

import (
	"context"
	"flag"
	"io"
	"time"

	"github.com/smoynes/memsim/internal/cli"
	"github.com/smoynes/memsim/internal/log"
	"github.com/smoynes/memsim/internal/machine"
	"github.com/smoynes/memsim/internal/monitorui"
)

// Monitor boots a System and displays a live terminal dashboard of its
// bus, cache, and TLB statistics.
func Monitor() cli.Command {
	return new(monitor)
}

type monitor struct {
	intervalMS uint
	advance    uint64
}

func (monitor) Description() string {
	return "display a live dashboard of memory subsystem statistics"
}

func (m monitor) Usage(out io.Writer) error {
	_, err := io.WriteString(out, `
monitor [ -interval MS ] [ -advance N ]

Boot a memory subsystem and display a live terminal dashboard, advancing
the clock by N ticks on each refresh.`)

	return err
}

func (monitor) FlagSet() *cli.FlagSet {
	return flag.NewFlagSet("monitor", flag.ExitOnError)
}

func (m monitor) Run(_ context.Context, args []string, _ io.Writer, logger *log.Logger) int {
	fs := m.FlagSet()
	fs.UintVar(&m.intervalMS, "interval", 250, "refresh interval, in milliseconds")
	fs.Uint64Var(&m.advance, "advance", 1, "clock ticks to advance per refresh")

	if err := fs.Parse(args); err != nil {
		logger.Error("flag parse", "err", err)
		return 1
	}

	sys, err := machine.New(machine.DefaultSystemConfig())
	if err != nil {
		logger.Error("boot", "err", err)
		return 1
	}

	if err := monitorui.Run(sys, time.Duration(m.intervalMS)*time.Millisecond, m.advance); err != nil {
		logger.Error("monitor", "err", err)
		return 1
	}

	return 0
}
