// Package tty provides terminal emulation.
package tty

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"os"
	"syscall"
	"time"

	"github.com/smoynes/memsim/internal/machine"
	"golang.org/x/sys/unix"
	"golang.org/x/term"
)

// Console is a serial console for the machine's UART, implemented with Unix
// terminal I/O[^1].
//
// Keys pressed on the console are injected into the UART's RX FIFO. Bytes
// the UART transmits are written straight to the terminal, since the UART
// calls its sink synchronously on every DATA write; there is no separate
// polling loop on the output side, unlike the input side which must wait on
// the OS for keypresses.
//
// [1]: See: tty(4), termios(4).
type Console struct {
	in    *os.File
	out   *term.Terminal
	fd    int
	state *term.State

	keyCh chan uint8
}

// ErrNoTTY is returned if standard input is not a terminal. In this case, asynchronous I/O is
// not supported by the console.
var ErrNoTTY error = errors.New("console: not a TTY")

// ConsoleContext creates a Console wired to uart, using the standard streams.
// Calling the returned CancelFunc restores the terminal state and releases
// resources.
func ConsoleContext(parent context.Context, uart *machine.UART) (
	context.Context, *Console, context.CancelFunc,
) {
	ctx, cause := context.WithCancelCause(parent)

	console, err := NewConsole(os.Stdin, os.Stdout, os.Stderr)
	if err != nil {
		cause(err)

		return ctx, console, func() { cause(err) }
	}

	go console.readTerminal(ctx, cause)
	go console.updateUART(ctx, uart, cause)

	return ctx, console, console.Restore
}

// Sink returns a machine.UARTSink that writes transmitted bytes to the
// console's terminal.
func (c *Console) Sink() machine.UARTSink { return consoleSink{c} }

type consoleSink struct{ c *Console }

func (s consoleSink) WriteByte(b byte) error {
	_, err := fmt.Fprintf(s.c.out, "%c", b)
	return err
}

// NewConsole creates a Console using the provided streams. If the input stream is not a terminal,
// ErrNoTTY is returned. Callers are responsible for calling [Restore] to return the terminal to its
// initial state.
func NewConsole(sin, sout, serr *os.File) (*Console, error) {
	fd := int(sin.Fd())

	if !term.IsTerminal(fd) {
		return nil, ErrNoTTY
	}

	saved, err := term.MakeRaw(fd)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrNoTTY, err)
	}

	cons := Console{
		fd:    fd,
		in:    sin,
		out:   term.NewTerminal(sin, ""),
		state: saved,
		keyCh: make(chan uint8, 1),
	}

	if err := cons.setTerminalParams(1, 0); err != nil {
		return nil, err
	}

	return &cons, nil
}

// Press injects a key press into the input stream.
func (c Console) Press(key byte) {
	c.keyCh <- key
}

// Restore returns the terminal to its initial state and cancels in-progress reads.
func (c *Console) Restore() {
	_ = os.Stdin.SetReadDeadline(time.Now())
	_ = term.Restore(c.fd, c.state)
}

func (c *Console) setTerminalParams(vmin, vtime byte) error {
	_ = syscall.SetNonblock(c.fd, true)

	termIO, err := unix.IoctlGetTermios(c.fd, getTermiosIoctl)
	if err != nil {
		return err
	}

	termIO.Cc[unix.VMIN] = vmin
	termIO.Cc[unix.VTIME] = vtime

	if err := unix.IoctlSetTermios(c.fd, setTermiosIoctl, termIO); err != nil {
		return err
	}

	_ = os.Stdin.SetReadDeadline(time.Time{})

	return nil
}

// readTerminal reads bytes from the terminal and writes them to the key channel until the context
// is cancelled. If reading from the terminal fails, the cancel is called.
func (c Console) readTerminal(ctx context.Context, cancel context.CancelCauseFunc) {
	buf := bufio.NewReader(c.in)

	_ = syscall.SetNonblock(c.fd, false)

	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		b, err := buf.ReadByte()
		if err != nil {
			cancel(err)
			return
		}

		select {
		case <-ctx.Done():
			return
		case c.keyCh <- b:
		}
	}
}

// updateUART takes keys from the key channel and injects them into the
// UART's RX FIFO. The function blocks until the context is cancelled.
func (c Console) updateUART(ctx context.Context, uart *machine.UART, _ context.CancelCauseFunc) {
	for {
		select {
		case <-ctx.Done():
			return
		case key := <-c.keyCh:
			uart.Inject(key)
		}
	}
}
