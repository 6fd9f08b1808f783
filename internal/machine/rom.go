package machine

// rom.go implements a read-only MMIO region backed by a fixed image: writes
// are rejected with ErrReadOnly by the ROM itself in strict mode and silently
// dropped otherwise.

// ROM is a fixed, read-only byte image exposed as an MMIO device.
type ROM struct {
	image  []byte
	strict bool
}

// NewROM creates a ROM backed by a copy of image. If strict, writes return
// ErrReadOnly; otherwise they are silently dropped.
func NewROM(image []byte, strict bool) *ROM {
	cp := make([]byte, len(image))
	copy(cp, image)

	return &ROM{image: cp, strict: strict}
}

// Region reports the ROM's fixed size.
func (r *ROM) Region() PA { return PA(len(r.image)) }

// Caps reports no alignment or width restriction: any read width is
// permitted.
func (r *ROM) Caps() Caps { return Caps{Align: 1} }

// Name identifies the device for bus logging.
func (r *ROM) Name() string { return "rom" }

// Read implements the Device contract, returning count bytes starting at
// offset.
func (r *ROM) Read(offset PA, count int) ([]byte, error) {
	if uint64(offset)+uint64(count) > uint64(len(r.image)) {
		return nil, &AccessViolationError{Addr: offset, Size: count, Bound: PA(len(r.image))}
	}

	out := make([]byte, count)
	copy(out, r.image[offset:int(offset)+count])

	return out, nil
}

// Write implements the Device contract: in strict mode it fails with
// ErrReadOnly; otherwise the write is silently dropped.
func (r *ROM) Write(offset PA, data []byte) error {
	if r.strict {
		return ErrReadOnly
	}

	return nil
}
