package machine

// bus.go routes physical addresses to RAM or MMIO regions. Regions are kept
// sorted by base address, exactly the way the design calls for, so lookups
// are a binary search; overlap checks on registration scan the table.

import (
	"fmt"
	"sort"

	"github.com/smoynes/memsim/internal/log"
)

// RegionKind tags whether a BusRegion backs RAM or an MMIO device.
type RegionKind uint8

const (
	RegionRAM RegionKind = iota
	RegionMMIO
)

func (k RegionKind) String() string {
	if k == RegionMMIO {
		return "mmio"
	}

	return "ram"
}

// BusRegion describes one mapped span of the physical address space.
type BusRegion struct {
	Kind RegionKind
	Base PA
	Size PA
	Name string

	dram   *DRAM // valid when Kind == RegionRAM
	offset PA    // offset into dram for this region's Base

	device Device // valid when Kind == RegionMMIO
	caps   Caps
}

// End returns the last address covered by the region, inclusive.
func (r BusRegion) End() PA { return r.Base + r.Size - 1 }

func (r BusRegion) contains(addr PA) bool {
	return addr >= r.Base && addr <= r.End()
}

func (r BusRegion) String() string {
	return fmt.Sprintf("%s(%s)[%s:%s]", r.Name, r.Kind, r.Base, r.End())
}

// Bus routes physical addresses to the RAM or MMIO region that covers them.
// It never caches; every transfer is byte-exact and synchronous.
type Bus struct {
	regions []BusRegion // sorted by Base
	strict  bool        // enforce MMIO alignment/width constraints; default true

	reads, writes, faults         uint64
	readBytes, writeBytes         uint64

	log *log.Logger
}

// NewBus creates an empty bus with strict MMIO constraint checking enabled.
func NewBus() *Bus {
	return &Bus{
		strict: true,
		log:    log.DefaultLogger(),
	}
}

// SetStrictMMIO toggles strict alignment/width enforcement for MMIO
// transfers. It defaults to enabled.
func (b *Bus) SetStrictMMIO(strict bool) { b.strict = strict }

// MapRAM registers a RAM-backed region spanning [base, base+size) that reads
// and writes through dram starting at offset.
func (b *Bus) MapRAM(name string, base, size PA, dram *DRAM, offset PA) error {
	region := BusRegion{
		Kind: RegionRAM, Base: base, Size: size, Name: name,
		dram: dram, offset: offset,
	}

	return b.insert(region)
}

// RegisterMMIO registers device at base, with the size it reports via
// Region() and the constraints it reports via Caps().
func (b *Bus) RegisterMMIO(name string, base PA, device Device) error {
	region := BusRegion{
		Kind: RegionMMIO, Base: base, Size: device.Region(), Name: name,
		device: device, caps: device.Caps(),
	}

	return b.insert(region)
}

func (b *Bus) insert(region BusRegion) error {
	for _, existing := range b.regions {
		if region.Base <= existing.End() && existing.Base <= region.End() {
			b.log.Error("bus: overlap", log.String("new", region.String()), log.String("existing", existing.String()))
			return &OverlapError{New: region, Existing: existing}
		}
	}

	b.regions = append(b.regions, region)
	sort.Slice(b.regions, func(i, j int) bool { return b.regions[i].Base < b.regions[j].Base })

	b.log.Debug("bus: mapped", log.String("region", region.String()))

	return nil
}

// find returns the region covering addr, or nil.
func (b *Bus) find(addr PA) *BusRegion {
	i := sort.Search(len(b.regions), func(i int) bool { return b.regions[i].End() >= addr })
	if i < len(b.regions) && b.regions[i].contains(addr) {
		return &b.regions[i]
	}

	return nil
}

// ReadBytes reads n bytes starting at pa, splitting the transfer across
// regions as needed and concatenating the results in address order.
func (b *Bus) ReadBytes(pa PA, n int) ([]byte, error) {
	b.reads++

	out := make([]byte, 0, n)

	addr := pa
	remaining := n

	for remaining > 0 {
		region := b.find(addr)
		if region == nil {
			b.faults++
			b.log.Error("bus: unmapped read", log.String("addr", addr.String()))

			return nil, &UnmappedError{Addr: addr}
		}

		chunk := int(region.End() - addr + 1)
		if chunk > remaining {
			chunk = remaining
		}

		bytes, err := b.readRegion(region, addr, chunk)
		if err != nil {
			b.faults++
			return nil, err
		}

		out = append(out, bytes...)
		addr += PA(chunk)
		remaining -= chunk
	}

	b.readBytes += uint64(n)

	return out, nil
}

// WriteBytes writes bytes starting at pa, splitting across regions as
// needed. If a fault occurs partway through a multi-region transfer, bytes
// already committed to earlier regions remain committed: there is no
// rollback, matching the design's documented split-transfer semantics.
func (b *Bus) WriteBytes(pa PA, bytes []byte) error {
	b.writes++

	addr := pa
	off := 0
	remaining := len(bytes)

	for remaining > 0 {
		region := b.find(addr)
		if region == nil {
			b.faults++
			b.log.Error("bus: unmapped write", log.String("addr", addr.String()))

			return &UnmappedError{Addr: addr}
		}

		chunk := int(region.End() - addr + 1)
		if chunk > remaining {
			chunk = remaining
		}

		if err := b.writeRegion(region, addr, bytes[off:off+chunk]); err != nil {
			b.faults++
			return err
		}

		addr += PA(chunk)
		off += chunk
		remaining -= chunk
	}

	b.writeBytes += uint64(len(bytes))

	return nil
}

func (b *Bus) checkMMIO(region *BusRegion, addr PA, size int) error {
	if !b.strict || region.Kind != RegionMMIO {
		return nil
	}

	align := region.caps.Align
	if align < 1 {
		align = 1
	}

	offset := addr - region.Base
	if int(offset)%align != 0 {
		return &MMIOConstraintError{Addr: addr, Size: size, Align: align, Widths: region.caps.Widths}
	}

	if !region.caps.allows(size) {
		return &MMIOConstraintError{Addr: addr, Size: size, Align: align, Widths: region.caps.Widths}
	}

	return nil
}

func (b *Bus) readRegion(region *BusRegion, addr PA, n int) ([]byte, error) {
	offset := addr - region.Base

	switch region.Kind {
	case RegionRAM:
		return region.dram.ReadBytes(region.offset+offset, n)
	case RegionMMIO:
		if err := b.checkMMIO(region, addr, n); err != nil {
			return nil, err
		}

		return region.device.Read(offset, n)
	default:
		panic("bus: unknown region kind")
	}
}

func (b *Bus) writeRegion(region *BusRegion, addr PA, data []byte) error {
	offset := addr - region.Base

	switch region.Kind {
	case RegionRAM:
		return region.dram.WriteBytes(region.offset+offset, data)
	case RegionMMIO:
		if err := b.checkMMIO(region, addr, len(data)); err != nil {
			return err
		}

		return region.device.Write(offset, data)
	default:
		panic("bus: unknown region kind")
	}
}

// RangeIsRAM reports whether every address in [pa, pa+n) is covered by a RAM
// region, with no gaps. The DMA engine uses this to enforce ram_only.
func (b *Bus) RangeIsRAM(pa PA, n int) bool {
	addr := pa
	remaining := n

	for remaining > 0 {
		region := b.find(addr)
		if region == nil || region.Kind != RegionRAM {
			return false
		}

		chunk := int(region.End() - addr + 1)
		if chunk > remaining {
			chunk = remaining
		}

		addr += PA(chunk)
		remaining -= chunk
	}

	return true
}

// Regions returns a copy of the sorted region list, for introspection (the
// monitor UI and tests use this; it is not used on the hot path).
func (b *Bus) Regions() []BusRegion {
	out := make([]BusRegion, len(b.regions))
	copy(out, b.regions)

	return out
}

// BusStats is a snapshot of the bus's monotonic counters.
type BusStats struct {
	Reads, Writes, Faults       uint64
	ReadBytes, WriteBytes       uint64
}

func (b *Bus) Stats() BusStats {
	return BusStats{
		Reads: b.reads, Writes: b.writes, Faults: b.faults,
		ReadBytes: b.readBytes, WriteBytes: b.writeBytes,
	}
}
