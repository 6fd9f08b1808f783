package machine

// cpu.go implements the CPU front-end: typed loads/stores/fetches over
// virtual addresses, routed through the MMU and cache hierarchy or bypassed
// per the page's memory type, plus the write-combining buffer, CSR block,
// and PLIC/CLINT aggregation.

import (
	"github.com/smoynes/memsim/internal/log"
)

// PrefetchPolicy controls the CPU's next-line prefetch on cached normal
// accesses.
type PrefetchPolicy struct {
	Enable bool
	To     Level
}

// PLICAttach describes a CPU's attachment to one PLIC context.
type PLICAttach struct {
	PLIC   *PLIC
	Layout PLICLayout
	Ctx    int
}

// CLINTAttach describes a CPU's attachment to a CLINT hart.
type CLINTAttach struct {
	CLINT *CLINT
	Hart  int
}

// CPUConfig configures a CPU's endianness and prefetch policy.
type CPUConfig struct {
	Endian   Endianness
	Prefetch PrefetchPolicy
}

// DefaultCPUConfig returns little-endian with prefetch into L2 disabled.
func DefaultCPUConfig() CPUConfig {
	return CPUConfig{Endian: LittleEndian, Prefetch: PrefetchPolicy{Enable: false, To: L2}}
}

// CPU is the front-end that guest code drives: it never touches the bus or
// cache directly except through these typed operations.
type CPU struct {
	cfg   CPUConfig
	bus   *Bus
	mmu   *MMU
	cache *CacheController
	wc    *wcBuffer
	csr   CSR

	plic *PLICAttach
	clint *CLINTAttach

	log *log.Logger
}

// NewCPU wires a CPU over bus, mmu, and cache with cfg.
func NewCPU(bus *Bus, mmu *MMU, cache *CacheController, cfg CPUConfig) *CPU {
	return &CPU{
		cfg:   cfg,
		bus:   bus,
		mmu:   mmu,
		cache: cache,
		wc:    newWCBuffer(cache.LineSize(L1D)),
		log:   log.DefaultLogger(),
	}
}

// AttachPLIC records the PLIC context this CPU polls for MEIP.
func (c *CPU) AttachPLIC(a PLICAttach) { c.plic = &a }

// AttachCLINT records the CLINT hart this CPU polls for MSIP/MTIP.
func (c *CPU) AttachCLINT(a CLINTAttach) { c.clint = &a }

// CSR returns the CPU's control/status register block.
func (c *CPU) CSR() *CSR { return &c.csr }

// SetASID forwards to the MMU.
func (c *CPU) SetASID(id ASID) { c.mmu.SetASID(id) }

// MapPage forwards to the MMU.
func (c *CPU) MapPage(va VA, frame PA, attrs PageAttrs, asid *ASID) error {
	return c.mmu.MapPage(va, frame, attrs, asid)
}

// UnmapPage forwards to the MMU.
func (c *CPU) UnmapPage(va VA, asid *ASID) error { return c.mmu.UnmapPage(va, asid) }

// SetPageAttributes forwards to the MMU.
func (c *CPU) SetPageAttributes(va VA, attrs PageAttrs, asid *ASID) error {
	return c.mmu.SetPageAttributes(va, attrs, asid)
}

// FlushTLB forwards to the MMU.
func (c *CPU) FlushTLB(asid *ASID) { c.mmu.FlushTLB(asid) }

// FlushICache evicts every line in the instruction cache.
func (c *CPU) FlushICache() error { return c.cache.FlushAll(L1I) }

// FlushDCache evicts every line in the data cache.
func (c *CPU) FlushDCache() error { return c.cache.FlushAll(L1D) }

// FlushL2 evicts every line in L2.
func (c *CPU) FlushL2() error { return c.cache.FlushAll(L2) }

// FlushL3 evicts every line in L3.
func (c *CPU) FlushL3() error { return c.cache.FlushAll(L3) }

// PrefetchData issues a prefetch of the line at va into L1D.
func (c *CPU) PrefetchData(va VA) error {
	pa, pte, err := c.mmu.Translate(va)
	if err != nil {
		return err
	}

	if pte.MemType != MemNormal || !pte.Cached {
		return nil
	}

	return c.cache.PrefetchLine(L1D, c.cache.level(L1D).blockAddress(pa))
}

// PrefetchInst issues a prefetch of the line at va into L1I.
func (c *CPU) PrefetchInst(va VA) error {
	pa, pte, err := c.mmu.Translate(va)
	if err != nil {
		return err
	}

	if pte.MemType != MemNormal || !pte.Cached {
		return nil
	}

	return c.cache.PrefetchLine(L1I, c.cache.level(L1I).blockAddress(pa))
}

// MemoryBarrier flushes the write-combining buffer to the bus.
func (c *CPU) MemoryBarrier() error {
	return c.wc.flush(c.bus.WriteBytes)
}

// Fetch reads size bytes at va as an instruction. va's page must be
// executable.
func (c *CPU) Fetch(va VA, size int) ([]byte, error) {
	if err := validWidth(size); err != nil {
		return nil, err
	}

	pa, pte, err := c.mmu.CheckAccess(va, AccessExecute)
	if err != nil {
		return nil, err
	}

	data, err := c.readThrough(pa, pte, size, L1I)
	if err != nil {
		return nil, err
	}

	c.maybePrefetch(pa, pte, L1I)

	return data, nil
}

// Load reads size bytes at va, interpreting them as signed or unsigned per
// signed, per the CPU's configured endianness.
func (c *CPU) Load(va VA, size int, signed bool) (uint64, error) {
	if err := validWidth(size); err != nil {
		return 0, err
	}

	pa, pte, err := c.mmu.Translate(va)
	if err != nil {
		return 0, err
	}

	data, err := c.readThrough(pa, pte, size, L1D)
	if err != nil {
		return 0, err
	}

	c.maybePrefetch(pa, pte, L1D)

	return unpackBytes(data, c.cfg.Endian, signed), nil
}

func (c *CPU) readThrough(pa PA, pte PTE, size int, which Level) ([]byte, error) {
	if pte.MemType == MemNormal && pte.Cached {
		return c.cache.ReadBytes(pa, size, which)
	}

	return c.bus.ReadBytes(pa, size)
}

func (c *CPU) maybePrefetch(pa PA, pte PTE, which Level) {
	if !c.cfg.Prefetch.Enable || pte.MemType != MemNormal || !pte.Cached {
		return
	}

	lineSize := c.cache.LineSize(which)
	block := pa - PA(uint64(pa)%lineSize)
	next := block + PA(lineSize)

	if uint64(next)/c.mmu.PageSize() != uint64(pa)/c.mmu.PageSize() {
		return // page-boundary crossing suppresses prefetch.
	}

	_ = c.cache.PrefetchLine(c.cfg.Prefetch.To, next)
}

// Store writes value, truncated to size bytes, at va. va's page must be
// writable. Routing follows the page's memory type: device stores barrier
// first and bypass the cache; wc stores append to the write-combining
// buffer; normal stores go through the cache when cached, else the bus.
func (c *CPU) Store(va VA, size int, value uint64, signed bool) error {
	if err := validWidth(size); err != nil {
		return err
	}

	pa, pte, err := c.mmu.CheckAccess(va, AccessWrite)
	if err != nil {
		return err
	}

	data := packBytes(value, size, c.cfg.Endian)

	switch {
	case pte.MemType == MemDevice:
		if err := c.MemoryBarrier(); err != nil {
			return err
		}

		return c.bus.WriteBytes(pa, data)

	case pte.MemType == MemWC:
		return c.wc.store(pa, data, c.bus.WriteBytes)

	case pte.Cached:
		if err := c.cache.WriteBytes(pa, data, L1D); err != nil {
			return err
		}

	default:
		if err := c.bus.WriteBytes(pa, data); err != nil {
			return err
		}
	}

	c.markDirty(va)

	return nil
}

func (c *CPU) markDirty(va VA) {
	id := c.mmu.current
	table := c.mmu.table(id)

	if pte, ok := table[c.mmu.vpnOf(va)]; ok {
		pte.Dirty = true
	}
}

// SampleIRQs polls the attached CLINT and PLIC context and updates the CSR's
// MIP bits.
func (c *CPU) SampleIRQs() {
	var msip, mtip, meip bool

	if c.clint != nil {
		msip, mtip = c.clint.CLINT.GetIRQLevels(c.clint.Hart)
	}

	if c.plic != nil {
		meip = c.plic.PLIC.ContextIRQ(c.plic.Ctx)
	}

	c.csr.SampleIRQs(msip, mtip, meip)
}

// MaybeTakeInterrupt samples interrupt lines, and if mstatus.MIE permits
// taking the highest-priority pending one, enters a trap for it and returns
// its cause.
func (c *CPU) MaybeTakeInterrupt() (cause uint, taken bool) {
	c.SampleIRQs()

	cause, taken = c.csr.ShouldTakeInterrupt()
	if taken {
		c.csr.TrapEnter(cause, true)
	}

	return
}

// CompleteTrap returns from the current trap, restoring the saved
// interrupt-enable state.
func (c *CPU) CompleteTrap() { c.csr.MRet() }

// PollInterrupts claims for ctx by calling Claim on the attached PLIC
// directly; it does not read the CLAIM register through the bus, the MMU or
// the cache. If the id is non-zero, it invokes handler (swallowing any error
// the handler returns, so a faulty ISR cannot crash the simulator) and then
// calls the PLIC's Complete with the id. It returns the claimed id, or 0.
func (c *CPU) PollInterrupts(ctx int, handler func(id int) error) int {
	if c.plic == nil {
		return 0
	}

	id := c.plic.PLIC.Claim(ctx)
	if id == 0 {
		return 0
	}

	if handler != nil {
		_ = handler(id)
	}

	c.plic.PLIC.Complete(ctx, id)

	return id
}
