// Command memsim is the command-line interface to the memory subsystem
// simulator: DRAM, bus, MMU/TLB, cache hierarchy, PLIC, CLINT, and
// peripherals.
package main

import (
	"context"
	"os"

	"github.com/smoynes/memsim/internal/cli"
	"github.com/smoynes/memsim/internal/cli/cmd"
)

var commands = []cli.Command{
	cmd.Run(),
	cmd.Monitor(),
}

// Entry point.
func main() {
	result :=
		cli.New(context.Background()).
			WithLogger(os.Stderr).
			WithCommands(commands).
			WithHelp(cmd.Help(commands)).
			Execute(os.Args[1:])

	os.Exit(result)
}
