// Termtest is a testing tool for Unix terminal I/O. Lacking simple PTY support, running this tool
// manually is easier than writing automated tests.
package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/smoynes/memsim/internal/log"
	"github.com/smoynes/memsim/internal/machine"
	"github.com/smoynes/memsim/internal/tty"
)

var logger = log.DefaultLogger()

type stdoutSink struct{}

func (stdoutSink) WriteByte(b byte) error {
	_, err := fmt.Fprintf(os.Stdout, "%c", b)
	return err
}

func main() {
	var (
		ctx  = context.Background()
		uart = machine.NewUART(stdoutSink{})
	)

	ctx, _, cancel := tty.ConsoleContext(ctx, uart)
	defer cancel()

	timeout := time.After(5 * time.Second)

	select {
	case <-ctx.Done():
		logger.Debug("cause", context.Cause(ctx))
	default:
	}

	logger.Info("Console attached to UART. Type keys.")

	select {
	case <-timeout:
		cancel()
		return
	case <-ctx.Done():
		if ctx.Err() != nil {
			cause := context.Cause(ctx)
			logger.Error(cause.Error())
		} else {
			logger.Info("Done")
		}
	}
}
