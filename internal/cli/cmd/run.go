package cmd

import (
	"context"
	"flag"
	"fmt"
	"io"
	"os"

	"github.com/smoynes/memsim/internal/cli"
	"github.com/smoynes/memsim/internal/firmware"
	"github.com/smoynes/memsim/internal/log"
	"github.com/smoynes/memsim/internal/machine"
)

// Run boots a System, optionally loads a boot image into DRAM, advances the
// clock, and reports bus, cache, and MMU statistics.
func Run() cli.Command {
	return new(run)
}

type run struct {
	image string
	ticks uint64
}

func (run) Description() string {
	return "boot a system and report memory subsystem statistics"
}

func (r run) Usage(out io.Writer) error {
	_, err := fmt.Fprintln(out, `
run [ -image FILE ] [ -ticks N ]

Boot a memory subsystem, optionally loading an Intel-Hex-style boot image
into DRAM, advance the clock by N ticks, and print bus/cache/MMU stats.`)

	return err
}

func (run) FlagSet() *cli.FlagSet {
	return flag.NewFlagSet("run", flag.ExitOnError)
}

func (r run) Run(_ context.Context, args []string, out io.Writer, logger *log.Logger) int {
	fs := r.FlagSet()
	fs.StringVar(&r.image, "image", "", "boot image to load into DRAM")
	fs.Uint64Var(&r.ticks, "ticks", 1000, "number of clock ticks to advance")

	if err := fs.Parse(args); err != nil {
		logger.Error("flag parse", "err", err)
		return 1
	}

	cfg := machine.DefaultSystemConfig()

	sys, err := machine.New(cfg)
	if err != nil {
		logger.Error("boot", "err", err)
		return 1
	}

	if r.image != "" {
		bs, err := os.ReadFile(r.image)
		if err != nil {
			logger.Error("read image", "err", err)
			return 1
		}

		var img firmware.HexImage
		if err := img.UnmarshalText(bs); err != nil {
			logger.Error("decode image", "err", err)
			return 1
		}

		if err := img.LoadInto(sys.DRAM, cfg.DRAMBase); err != nil {
			logger.Error("load image", "err", err)
			return 1
		}
	}

	sys.Advance(r.ticks)

	busStats := sys.Bus.Stats()
	fmt.Fprintf(out, "bus: reads=%d writes=%d faults=%d\n",
		busStats.Reads, busStats.Writes, busStats.Faults)

	for _, lvl := range []machine.Level{machine.L1D, machine.L1I, machine.L2, machine.L3} {
		st := sys.Cache.Stats(lvl)
		fmt.Fprintf(out, "cache %s: hits=%d misses=%d hit-rate=%.2f evictions=%d writebacks=%d\n",
			lvl, st.Hits, st.Misses, st.HitRate(), st.Evictions, st.Writebacks)
	}

	tlb := sys.MMU.TLBStats()
	fmt.Fprintf(out, "tlb: hits=%d misses=%d\n", tlb.Hits, tlb.Misses)

	return 0
}
