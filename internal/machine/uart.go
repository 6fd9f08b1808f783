package machine

// uart.go implements a minimal polled/interrupt-capable UART: an unbounded
// RX queue fed by Inject, a TX path that hands each byte straight to a sink,
// status bits, and an optional RX interrupt.

import "fmt"

const uartRegionSize PA = 16

const (
	uartRegData   PA = 0x00
	uartRegStatus PA = 0x04
	uartRegCtrl   PA = 0x08
)

const (
	uartStatusTXReady = 1 << 0
	uartStatusRXFull  = 1 << 1
	uartCtrlRXIRQEn   = 1 << 0
)

// UARTSink receives bytes the guest transmits; typically stdout or a tty.
type UARTSink interface {
	WriteByte(b byte) error
}

// UART is a single-byte-at-a-time serial device: writes to DATA call the
// sink; reads of DATA drain an injected RX queue.
type UART struct {
	sink UARTSink
	rx   []byte
	ctrl uint32

	irq IRQSink
}

// NewUART creates a UART writing transmitted bytes to sink. sink may be
// nil, in which case transmitted bytes are discarded.
func NewUART(sink UARTSink) *UART {
	return &UART{sink: sink, irq: nullSink{}}
}

// SetIRQSink attaches the sink raised while CTRL.RX_EN and the RX FIFO is
// non-empty.
func (u *UART) SetIRQSink(sink IRQSink) {
	if sink == nil {
		sink = nullSink{}
	}

	u.irq = sink
}

// Inject appends a byte to the RX FIFO, as if received from the wire.
func (u *UART) Inject(b byte) {
	u.rx = append(u.rx, b)
	u.updateIRQ()
}

func (u *UART) updateIRQ() {
	if u.ctrl&uartCtrlRXIRQEn != 0 && len(u.rx) > 0 {
		u.irq.Raise()
	} else {
		u.irq.Lower()
	}
}

// Region reports the UART's 16-byte MMIO footprint.
func (u *UART) Region() PA { return uartRegionSize }

// Caps reports the UART's strict access constraints: 1-byte at DATA,
// 4-byte at STATUS/CTRL.
func (u *UART) Caps() Caps { return Caps{Align: 1, Widths: []int{1, 4}} }

// Name identifies the device for bus logging.
func (u *UART) Name() string { return "uart" }

// Read implements the Device contract for the UART's register map.
func (u *UART) Read(offset PA, count int) ([]byte, error) {
	switch offset {
	case uartRegData:
		if count != 1 {
			return nil, &MMIOConstraintError{Addr: offset, Size: count, Align: 1, Widths: []int{1}}
		}

		if len(u.rx) == 0 {
			return []byte{0}, nil
		}

		b := u.rx[0]
		u.rx = u.rx[1:]
		u.updateIRQ()

		return []byte{b}, nil

	case uartRegStatus:
		if count != 4 {
			return nil, &MMIOConstraintError{Addr: offset, Size: count, Align: 4, Widths: []int{4}}
		}

		var status uint32 = uartStatusTXReady
		if len(u.rx) > 0 {
			status |= uartStatusRXFull
		}

		return le32(status), nil

	case uartRegCtrl:
		if count != 4 {
			return nil, &MMIOConstraintError{Addr: offset, Size: count, Align: 4, Widths: []int{4}}
		}

		return le32(u.ctrl), nil

	default:
		return nil, &UnmappedError{Addr: offset}
	}
}

// Write implements the Device contract for the UART's register map.
func (u *UART) Write(offset PA, data []byte) error {
	switch offset {
	case uartRegData:
		if len(data) != 1 {
			return &MMIOConstraintError{Addr: offset, Size: len(data), Align: 1, Widths: []int{1}}
		}

		if u.sink != nil {
			if err := u.sink.WriteByte(data[0]); err != nil {
				return &DeviceFault{Device: u.Name(), Reason: fmt.Sprintf("tx: %s", err)}
			}
		}

		return nil

	case uartRegStatus:
		return nil // STATUS is read-only.

	case uartRegCtrl:
		if len(data) != 4 {
			return &MMIOConstraintError{Addr: offset, Size: len(data), Align: 4, Widths: []int{4}}
		}

		u.ctrl = fromLE32(data)
		u.updateIRQ()

		return nil

	default:
		return &UnmappedError{Addr: offset}
	}
}
