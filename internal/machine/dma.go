package machine

// dma.go implements a bus-mastering DMA engine: programmed with source,
// destination, and length registers, it performs a synchronous bus-to-bus
// copy when CTRL.START is written.

const dmaRegionSize PA = 32

const (
	dmaRegSrcLo PA = 0x00
	dmaRegSrcHi PA = 0x04
	dmaRegDstLo PA = 0x08
	dmaRegDstHi PA = 0x0C
	dmaRegLen   PA = 0x10
	dmaRegCtrl  PA = 0x14
	dmaRegStat  PA = 0x18
)

const (
	dmaCtrlStart  = 1 << 0
	dmaCtrlIRQEn  = 1 << 1
	dmaStatBusy   = 1 << 0
	dmaStatDone   = 1 << 1
	dmaStatErr    = 1 << 2
	dmaChunkBytes = 256
)

// DMA is a bus-master copy engine. It mutates the bus synchronously on a
// START write; there is no asynchronous completion.
type DMA struct {
	bus *Bus

	src, dst uint64
	length   uint32
	ctrl     uint32
	status   uint32

	ramOnly bool

	irq IRQSink
}

// NewDMA creates a DMA engine that copies across bus. If ramOnly is set,
// START validates that both source and destination ranges cover only RAM
// regions before copying.
func NewDMA(bus *Bus, ramOnly bool) *DMA {
	return &DMA{bus: bus, ramOnly: ramOnly, irq: nullSink{}}
}

// SetIRQSink attaches the sink raised after a completed transfer when
// CTRL.IRQ_EN and STATUS.DONE are set.
func (d *DMA) SetIRQSink(sink IRQSink) {
	if sink == nil {
		sink = nullSink{}
	}

	d.irq = sink
}

func (d *DMA) updateIRQ() {
	if d.ctrl&dmaCtrlIRQEn != 0 && d.status&dmaStatDone != 0 {
		d.irq.Raise()
	} else {
		d.irq.Lower()
	}
}

func (d *DMA) start() {
	d.status |= dmaStatBusy

	if d.ramOnly {
		if !d.bus.RangeIsRAM(PA(d.src), int(d.length)) || !d.bus.RangeIsRAM(PA(d.dst), int(d.length)) {
			d.status = d.status&^dmaStatBusy | dmaStatErr
			d.updateIRQ()

			return
		}
	}

	remaining := int(d.length)
	src, dst := PA(d.src), PA(d.dst)

	for remaining > 0 {
		chunk := dmaChunkBytes
		if chunk > remaining {
			chunk = remaining
		}

		data, err := d.bus.ReadBytes(src, chunk)
		if err != nil {
			d.status = d.status&^dmaStatBusy | dmaStatErr
			d.updateIRQ()

			return
		}

		if err := d.bus.WriteBytes(dst, data); err != nil {
			d.status = d.status&^dmaStatBusy | dmaStatErr
			d.updateIRQ()

			return
		}

		src += PA(chunk)
		dst += PA(chunk)
		remaining -= chunk
	}

	d.status = d.status&^dmaStatBusy | dmaStatDone
	d.updateIRQ()
}

// Region reports the DMA's 32-byte MMIO footprint.
func (d *DMA) Region() PA { return dmaRegionSize }

// Caps reports the DMA's access constraints: 4-byte aligned registers.
func (d *DMA) Caps() Caps { return Caps{Align: 4, Widths: []int{4}} }

// Name identifies the device for bus logging.
func (d *DMA) Name() string { return "dma" }

// Read implements the Device contract for the DMA's register map.
func (d *DMA) Read(offset PA, count int) ([]byte, error) {
	if count != 4 {
		return nil, &MMIOConstraintError{Addr: offset, Size: count, Align: 4, Widths: []int{4}}
	}

	switch offset {
	case dmaRegSrcLo:
		return le32(uint32(d.src)), nil
	case dmaRegSrcHi:
		return le32(uint32(d.src >> 32)), nil
	case dmaRegDstLo:
		return le32(uint32(d.dst)), nil
	case dmaRegDstHi:
		return le32(uint32(d.dst >> 32)), nil
	case dmaRegLen:
		return le32(d.length), nil
	case dmaRegCtrl:
		return le32(d.ctrl), nil
	case dmaRegStat:
		return le32(d.status), nil
	default:
		return nil, &UnmappedError{Addr: offset}
	}
}

// Write implements the Device contract for the DMA's register map. Writing
// CTRL with START set performs the copy synchronously before returning.
func (d *DMA) Write(offset PA, data []byte) error {
	if len(data) != 4 {
		return &MMIOConstraintError{Addr: offset, Size: len(data), Align: 4, Widths: []int{4}}
	}

	value := fromLE32(data)

	switch offset {
	case dmaRegSrcLo:
		d.src = d.src&0xFFFFFFFF00000000 | uint64(value)
	case dmaRegSrcHi:
		d.src = d.src&0x00000000FFFFFFFF | uint64(value)<<32
	case dmaRegDstLo:
		d.dst = d.dst&0xFFFFFFFF00000000 | uint64(value)
	case dmaRegDstHi:
		d.dst = d.dst&0x00000000FFFFFFFF | uint64(value)<<32
	case dmaRegLen:
		d.length = value
	case dmaRegCtrl:
		d.ctrl = value

		if value&dmaCtrlStart != 0 {
			d.start()
		}
	case dmaRegStat:
		// Write-1-to-clear on DONE/ERR.
		d.status &^= value & (dmaStatDone | dmaStatErr)
		d.updateIRQ()
	default:
		return &UnmappedError{Addr: offset}
	}

	return nil
}
