package machine

// dram.go implements the simulator's physical memory: sparse, bounds-checked,
// byte-addressable backing store.

import (
	"fmt"

	"github.com/smoynes/memsim/internal/log"
)

// DRAM is a sparse, byte-addressable backing store with a fixed size. Bytes
// that have never been written read as a configured fill value, matching real
// DRAM's undefined-but-stable-within-a-run power-on state.
type DRAM struct {
	size      PA
	fill      byte
	cells     map[PA]byte
	faults    uint64
	log       *log.Logger
}

// NewDRAM creates a DRAM of the given size. fill is the byte value returned
// for offsets that have never been written.
func NewDRAM(size PA, fill byte) *DRAM {
	return &DRAM{
		size:  size,
		fill:  fill,
		cells: make(map[PA]byte),
		log:   log.DefaultLogger(),
	}
}

// Size returns the DRAM's fixed size in bytes.
func (d *DRAM) Size() PA { return d.size }

func (d *DRAM) checkBounds(addr PA, n int) error {
	if n < 0 || uint64(addr)+uint64(n) > uint64(d.size) {
		d.faults++
		d.log.Error("dram: access violation", log.String("addr", addr.String()), log.Any("n", n))

		return &AccessViolationError{Addr: addr, Size: n, Bound: d.size}
	}

	return nil
}

// ReadBytes returns a copy of n bytes starting at addr. Unwritten offsets
// read as the fill byte.
func (d *DRAM) ReadBytes(addr PA, n int) ([]byte, error) {
	if err := d.checkBounds(addr, n); err != nil {
		return nil, err
	}

	out := make([]byte, n)
	for i := 0; i < n; i++ {
		out[i] = d.peek(addr + PA(i))
	}

	return out, nil
}

// WriteBytes writes bs starting at addr.
func (d *DRAM) WriteBytes(addr PA, bs []byte) error {
	if err := d.checkBounds(addr, len(bs)); err != nil {
		return err
	}

	for i, b := range bs {
		d.poke(addr+PA(i), b)
	}

	return nil
}

// Fill sets n bytes starting at addr to v.
func (d *DRAM) Fill(addr PA, n int, v byte) error {
	if err := d.checkBounds(addr, n); err != nil {
		return err
	}

	for i := 0; i < n; i++ {
		d.poke(addr+PA(i), v)
	}

	return nil
}

// Copy copies n bytes from src to dest within the same DRAM. The ranges may
// overlap: when dest < src the copy proceeds ascending, otherwise descending,
// so that an overlapping copy preserves the same semantics as a byte-by-byte
// memmove.
func (d *DRAM) Copy(dest, src PA, n int) error {
	if err := d.checkBounds(dest, n); err != nil {
		return err
	}

	if err := d.checkBounds(src, n); err != nil {
		return err
	}

	if dest < src {
		for i := 0; i < n; i++ {
			d.poke(dest+PA(i), d.peek(src+PA(i)))
		}
	} else {
		for i := n - 1; i >= 0; i-- {
			d.poke(dest+PA(i), d.peek(src+PA(i)))
		}
	}

	return nil
}

// Peek returns the byte at addr. It returns no error: an out-of-bounds addr
// panics instead.
func (d *DRAM) Peek(addr PA) byte {
	if addr >= d.size {
		panic(fmt.Sprintf("dram: peek out of bounds: %s", addr))
	}

	return d.peek(addr)
}

func (d *DRAM) peek(addr PA) byte {
	if b, ok := d.cells[addr]; ok {
		return b
	}

	return d.fill
}

func (d *DRAM) poke(addr PA, b byte) {
	if b == d.fill {
		delete(d.cells, addr) // keep the sparse map sparse
		return
	}

	d.cells[addr] = b
}

// LoadImage writes a full image starting at addr, growing the faults counter
// rather than the DRAM if it doesn't fit.
func (d *DRAM) LoadImage(addr PA, image []byte) error {
	return d.WriteBytes(addr, image)
}

// Faults returns the number of bounds violations observed so far.
func (d *DRAM) Faults() uint64 { return d.faults }
