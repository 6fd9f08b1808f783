package machine

// device.go defines the MMIO device contract. Devices are plain Go values
// registered with the Bus; the bus, not the device, is responsible for
// routing and constraint enforcement, matching the teacher's separation
// between a Driver (behavior) and the MMIO table that dispatches to it.

import "fmt"

// Caps describes a device's access constraints.
type Caps struct {
	Align  int   // minimum required alignment, in bytes; must be >= 1
	Widths []int // allowed access widths in bytes; nil means any width
}

func (c Caps) allows(width int) bool {
	if c.Widths == nil {
		return true
	}

	for _, w := range c.Widths {
		if w == width {
			return true
		}
	}

	return false
}

func (c Caps) String() string {
	return fmt.Sprintf("Caps(align=%d, widths=%v)", c.Align, c.Widths)
}

// Device is an MMIO endpoint. Region reports the device's size in its own
// local address space (offset 0 is the device's first byte; the base is
// chosen by whoever registers it on the bus); Caps
// reports the alignment and width constraints the bus enforces in strict
// mode.
type Device interface {
	Region() (size PA)
	Caps() Caps
	Read(offset PA, count int) ([]byte, error)
	Write(offset PA, data []byte) error
	Name() string
}

// IRQSink is one interrupt line that can be raised and lowered. It is
// implemented on the controller side (PLIC.Source returns one) and held by
// devices: a device holds a reference to the controller it raises into (a PLIC
// source, typically), never the reverse, per the design notes' guidance on
// cyclic ownership: sinks point outward by index, controllers don't point
// back at devices.
type IRQSink interface {
	Raise()
	Lower()
}

// nullSink discards interrupt signals; used by devices wired without a
// controller attached, e.g. in isolated unit tests.
type nullSink struct{}

func (nullSink) Raise() {}
func (nullSink) Lower() {}
