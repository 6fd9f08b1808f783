package machine

// mmu.go implements paged virtual addressing: per-ASID page tables, an LRU
// TLB, and the memory-type attribute rules that the CPU and cache consult.

import (
	"fmt"

	"github.com/smoynes/memsim/internal/log"
)

// PTE is a page-table entry.
type PTE struct {
	Frame      PA
	Present    bool
	Writable   bool
	Executable bool
	User       bool
	Cached     bool
	MemType    MemType
	Dirty      bool
	Accessed   bool
}

// PageAttrs is the subset of PTE fields a caller may set via MapPage or
// SetPageAttributes; Present/Frame are managed separately.
type PageAttrs struct {
	Writable   bool
	Executable bool
	User       bool
	Cached     bool
	CachedSet  bool // true if the caller explicitly specified Cached
	MemType    MemType
}

// MMUConfig configures page geometry and resource limits.
type MMUConfig struct {
	PageSize  uint64 // power of two, default 4096
	TLBSize   int    // default 64
	MaxFrames int    // default 16384
}

// DefaultMMUConfig returns the spec's default MMU configuration.
func DefaultMMUConfig() MMUConfig {
	return MMUConfig{PageSize: 4096, TLBSize: 64, MaxFrames: 16384}
}

type vpn uint64

type tlbKey struct {
	asid ASID
	vpn  vpn
}

type tlbEntry struct {
	frame PA
	tick  uint64
}

// MMU translates virtual addresses to physical addresses through per-ASID
// page tables, caching recent translations in an LRU TLB.
type MMU struct {
	cfg        MMUConfig
	pageShift  uint
	pageOffset uint64

	current ASID
	tables  map[ASID]map[vpn]*PTE

	tlb      map[tlbKey]tlbEntry
	tlbTick  uint64
	tlbHits  uint64
	tlbMiss  uint64

	framesUsed int

	log *log.Logger
}

// NewMMU creates an MMU with cfg, validating that the page size is a power
// of two.
func NewMMU(cfg MMUConfig) (*MMU, error) {
	if cfg.PageSize == 0 || !isPowerOfTwo(cfg.PageSize) {
		return nil, fmt.Errorf("%w: page size must be a power of two: %d", ErrBadConfig, cfg.PageSize)
	}

	if cfg.TLBSize <= 0 {
		cfg.TLBSize = 64
	}

	if cfg.MaxFrames <= 0 {
		cfg.MaxFrames = 16384
	}

	m := &MMU{
		cfg:        cfg,
		pageShift:  log2(cfg.PageSize),
		pageOffset: cfg.PageSize - 1,
		tables:     map[ASID]map[vpn]*PTE{0: {}},
		tlb:        make(map[tlbKey]tlbEntry),
		log:        log.DefaultLogger(),
	}

	return m, nil
}

// SetASID switches the MMU's current address space, creating its page table
// on first use.
func (m *MMU) SetASID(id ASID) {
	m.current = id

	if _, ok := m.tables[id]; !ok {
		m.tables[id] = map[vpn]*PTE{}
	}
}

func (m *MMU) vpnOf(va VA) vpn    { return vpn(uint64(va) >> m.pageShift) }
func (m *MMU) offsetOf(va VA) PA  { return PA(uint64(va) & m.pageOffset) }

// MapPage installs a translation for the page containing vpnAddr in asid (or
// the current ASID, if asid is nil) to physical frame number frame; the
// translated address is frame<<PageShift() plus the page offset. If
// attrs.CachedSet is false and MemType is device or wc, the
// page is forced uncached, per the design's memtype rule.
func (m *MMU) MapPage(vpnAddr VA, frame PA, attrs PageAttrs, asid *ASID) error {
	id := m.resolveASID(asid)
	table := m.table(id)

	pte := &PTE{
		Frame: frame, Present: true,
		Writable: attrs.Writable, Executable: attrs.Executable, User: attrs.User,
		MemType: attrs.MemType,
	}

	pte.Cached = m.resolveCached(attrs)

	table[m.vpnOf(vpnAddr)] = pte
	m.flushEntry(id, m.vpnOf(vpnAddr))

	return nil
}

func (m *MMU) resolveCached(attrs PageAttrs) bool {
	if (attrs.MemType == MemDevice || attrs.MemType == MemWC) && !attrs.CachedSet {
		return false
	}

	if attrs.CachedSet {
		return attrs.Cached
	}

	return true
}

// UnmapPage removes a translation.
func (m *MMU) UnmapPage(vpnAddr VA, asid *ASID) error {
	id := m.resolveASID(asid)
	table := m.table(id)

	delete(table, m.vpnOf(vpnAddr))
	m.flushEntry(id, m.vpnOf(vpnAddr))

	return nil
}

// SetPageAttributes reshapes an existing mapping's attributes, flushing its
// TLB entry.
func (m *MMU) SetPageAttributes(vpnAddr VA, attrs PageAttrs, asid *ASID) error {
	id := m.resolveASID(asid)
	table := m.table(id)

	pte, ok := table[m.vpnOf(vpnAddr)]
	if !ok || !pte.Present {
		return &PageFaultError{VA: vpnAddr, ASID: id}
	}

	pte.Writable = attrs.Writable
	pte.Executable = attrs.Executable
	pte.User = attrs.User
	pte.MemType = attrs.MemType
	pte.Cached = m.resolveCached(attrs)

	m.flushEntry(id, m.vpnOf(vpnAddr))

	return nil
}

// Translate resolves a virtual address to a physical address and its PTE,
// consulting the TLB first and falling back to the page table on a miss.
func (m *MMU) Translate(va VA) (PA, PTE, error) {
	id := m.current
	v := m.vpnOf(va)
	offset := m.offsetOf(va)

	key := tlbKey{asid: id, vpn: v}

	if entry, ok := m.tlb[key]; ok {
		m.tlbHits++
		m.tlbTick++
		entry.tick = m.tlbTick
		m.tlb[key] = entry

		table := m.table(id)
		pte := table[v] // present, since a TLB entry implies a valid mapping
		pte.Accessed = true

		pa := PA(uint64(entry.frame)<<m.pageShift | uint64(offset))

		return pa, *pte, nil
	}

	m.tlbMiss++

	table := m.table(id)

	pte, ok := table[v]
	if !ok || !pte.Present {
		return 0, PTE{}, &PageFaultError{VA: va, ASID: id}
	}

	m.installTLB(id, v, pte.Frame)
	pte.Accessed = true

	pa := PA(uint64(pte.Frame)<<m.pageShift | uint64(offset))

	return pa, *pte, nil
}

func (m *MMU) installTLB(id ASID, v vpn, frame PA) {
	if len(m.tlb) >= m.cfg.TLBSize {
		m.evictTLB()
	}

	m.tlbTick++
	m.tlb[tlbKey{asid: id, vpn: v}] = tlbEntry{frame: frame, tick: m.tlbTick}
}

func (m *MMU) evictTLB() {
	var (
		victim tlbKey
		min    uint64 = ^uint64(0)
		found  bool
	)

	for k, e := range m.tlb {
		if e.tick < min {
			min = e.tick
			victim = k
			found = true
		}
	}

	if found {
		delete(m.tlb, victim)
	}
}

// CheckAccess translates va and verifies the requested access kind is
// permitted by the resulting PTE, returning PermissionError if not.
func (m *MMU) CheckAccess(va VA, kind AccessKind) (PA, PTE, error) {
	pa, pte, err := m.Translate(va)
	if err != nil {
		return 0, pte, err
	}

	switch kind {
	case AccessWrite:
		if !pte.Writable {
			return 0, pte, &PermissionError{VA: va, Kind: kind}
		}
	case AccessExecute:
		if !pte.Executable {
			return 0, pte, &PermissionError{VA: va, Kind: kind}
		}
	}

	return pa, pte, nil
}

// FlushTLB invalidates all TLB entries for asid, or all entries if asid is
// nil.
func (m *MMU) FlushTLB(asid *ASID) {
	if asid == nil {
		m.tlb = make(map[tlbKey]tlbEntry)
		return
	}

	for k := range m.tlb {
		if k.asid == *asid {
			delete(m.tlb, k)
		}
	}
}

// FlushTLBEntry invalidates a single TLB entry.
func (m *MMU) FlushTLBEntry(vpnAddr VA, asid *ASID) {
	id := m.resolveASID(asid)
	m.flushEntry(id, m.vpnOf(vpnAddr))
}

func (m *MMU) flushEntry(id ASID, v vpn) {
	delete(m.tlb, tlbKey{asid: id, vpn: v})
}

func (m *MMU) resolveASID(asid *ASID) ASID {
	if asid != nil {
		return *asid
	}

	return m.current
}

func (m *MMU) table(id ASID) map[vpn]*PTE {
	t, ok := m.tables[id]
	if !ok {
		t = map[vpn]*PTE{}
		m.tables[id] = t
	}

	return t
}

// TLBStats is a snapshot of TLB hit/miss counters.
type TLBStats struct {
	Hits, Misses uint64
	Entries      int
}

func (m *MMU) TLBStats() TLBStats {
	return TLBStats{Hits: m.tlbHits, Misses: m.tlbMiss, Entries: len(m.tlb)}
}

// PageShift returns log2(page size).
func (m *MMU) PageShift() uint { return m.pageShift }

// PageSize returns the configured page size.
func (m *MMU) PageSize() uint64 { return m.cfg.PageSize }
