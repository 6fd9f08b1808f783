package machine

// cache.go implements the inclusive, write-back cache hierarchy: L1D, L1I,
// L2, and L3, each independently configured but sharing a global LRU clock.
// Recursive eviction (L3 drains L2 drains L1) indexes lines by (level, set,
// way) rather than holding Go pointers across the recursion, per the design
// notes: the arena is addressed, not referenced.

import (
	"fmt"

	"github.com/smoynes/memsim/internal/log"
)

// Level identifies one level of the cache hierarchy.
type Level uint8

const (
	L1D Level = iota
	L1I
	L2
	L3
)

func (l Level) String() string {
	switch l {
	case L1D:
		return "l1d"
	case L1I:
		return "l1i"
	case L2:
		return "l2"
	case L3:
		return "l3"
	default:
		return fmt.Sprintf("level(%d)", uint8(l))
	}
}

// LevelConfig configures one cache level's geometry.
type LevelConfig struct {
	Size          uint64
	LineSize      uint64
	Associativity int
}

func (c LevelConfig) numSets() int {
	return int(c.Size / (c.LineSize * uint64(c.Associativity)))
}

func (c LevelConfig) validate() error {
	if !isPowerOfTwo(c.LineSize) {
		return fmt.Errorf("%w: line size must be a power of two: %d", ErrBadConfig, c.LineSize)
	}

	if c.Associativity <= 0 {
		return fmt.Errorf("%w: associativity must be positive", ErrBadConfig)
	}

	if c.Size == 0 || c.Size%(c.LineSize*uint64(c.Associativity)) != 0 {
		return fmt.Errorf("%w: size must equal line_size*associativity*num_sets", ErrBadConfig)
	}

	return nil
}

// CacheConfig configures all four levels.
type CacheConfig struct {
	L1D, L1I, L2, L3 LevelConfig
}

// DefaultCacheConfig returns the spec's default geometry: L1 32KiB/64B/8-way,
// L2 256KiB/64B/8-way, L3 8MiB/64B/16-way.
func DefaultCacheConfig() CacheConfig {
	l1 := LevelConfig{Size: 32 * 1024, LineSize: 64, Associativity: 8}
	l2 := LevelConfig{Size: 256 * 1024, LineSize: 64, Associativity: 8}
	l3 := LevelConfig{Size: 8 * 1024 * 1024, LineSize: 64, Associativity: 16}

	return CacheConfig{L1D: l1, L1I: l1, L2: l2, L3: l3}
}

// cacheLine is one line's worth of state. Presence flags are only meaningful
// on parent levels: an L2 line tracks which L1 children hold its block; an L3
// line tracks whether its L2 child does.
type cacheLine struct {
	valid bool
	dirty bool
	tag   uint64
	data  []byte
	lru   uint64

	presentL1D bool
	presentL1I bool
	presentL2  bool
}

// levelStats are the monotonic per-level counters from spec.md §4.4.
type levelStats struct {
	Hits, Misses, Fills, Evictions, Writebacks, Prefetches uint64
}

// HitRate returns Hits/(Hits+Misses), or 0 when undefined.
func (s levelStats) HitRate() float64 {
	total := s.Hits + s.Misses
	if total == 0 {
		return 0
	}

	return float64(s.Hits) / float64(total)
}

type cacheLevelState struct {
	cfg      LevelConfig
	numSets  int
	sets     [][]cacheLine
	stats    levelStats
}

func newCacheLevelState(cfg LevelConfig) *cacheLevelState {
	numSets := cfg.numSets()
	sets := make([][]cacheLine, numSets)

	for i := range sets {
		ways := make([]cacheLine, cfg.Associativity)
		for w := range ways {
			ways[w].data = make([]byte, cfg.LineSize)
		}
		sets[i] = ways
	}

	return &cacheLevelState{cfg: cfg, numSets: numSets, sets: sets}
}

func (s *cacheLevelState) reset() {
	*s = *newCacheLevelState(s.cfg)
}

// decompose splits a physical address into (blockNumber, setIndex, tag) for
// this level's geometry.
func (s *cacheLevelState) decompose(addr PA) (blockNumber uint64, setIndex int, tag uint64) {
	ls := s.cfg.LineSize
	blockNumber = uint64(addr) / ls
	setIndex = int(blockNumber % uint64(s.numSets))
	tag = blockNumber / uint64(s.numSets)

	return
}

func (s *cacheLevelState) blockAddress(addr PA) PA {
	ls := s.cfg.LineSize
	return PA(uint64(addr) - uint64(addr)%ls)
}

// CacheController owns all four levels and implements the demand-read,
// write, access, install, and eviction algorithms from spec.md §4.4.
type CacheController struct {
	levels map[Level]*cacheLevelState
	next   map[Level]Level // child -> parent; L3's parent is "memory" (absent)

	bus *Bus

	globalCounter uint64

	log *log.Logger
}

// NewCacheController wires a controller on top of bus with the given
// geometry.
func NewCacheController(bus *Bus, cfg CacheConfig) (*CacheController, error) {
	configs := map[Level]LevelConfig{L1D: cfg.L1D, L1I: cfg.L1I, L2: cfg.L2, L3: cfg.L3}

	levels := make(map[Level]*cacheLevelState, 4)

	for lvl, c := range configs {
		if err := c.validate(); err != nil {
			return nil, err
		}

		levels[lvl] = newCacheLevelState(c)
	}

	return &CacheController{
		levels: levels,
		next:   map[Level]Level{L1D: L2, L1I: L2, L2: L3},
		bus:    bus,
		log:    log.DefaultLogger(),
	}, nil
}

func (c *CacheController) tick() uint64 {
	c.globalCounter++
	return c.globalCounter
}

func (c *CacheController) level(lvl Level) *cacheLevelState { return c.levels[lvl] }

// Read implements the demand-read path: which is l1d or l1i. It checks that
// level, then L2, then L3, then finally fetches from the bus, filling back
// through every level it passed along the way.
func (c *CacheController) Read(pa PA, which Level) ([]byte, error) {
	if hit, data := c.access(pa, which, false); hit {
		return data, nil
	}

	if hit, data := c.access(pa, L2, false); hit {
		if err := c.installLine(c.level(L2).blockAddress(pa), which, data, false); err != nil {
			return nil, err
		}

		return data, nil
	}

	if hit, data := c.access(pa, L3, false); hit {
		block := c.level(L2).blockAddress(pa)
		if err := c.installLine(block, L2, data, false); err != nil {
			return nil, err
		}

		if err := c.installLine(block, which, data, false); err != nil {
			return nil, err
		}

		return data, nil
	}

	l3 := c.level(L3)
	block := l3.blockAddress(pa)

	data, err := c.bus.ReadBytes(block, int(l3.cfg.LineSize))
	if err != nil {
		return nil, &CacheFault{Level: L3, Block: block, Op: "fill", Err: err}
	}

	l3.stats.Fills++

	if err := c.installLine(block, L3, data, false); err != nil {
		return nil, err
	}

	if err := c.installLine(block, L2, data, false); err != nil {
		return nil, err
	}

	if err := c.installLine(block, which, data, false); err != nil {
		return nil, err
	}

	return data, nil
}

// ReadBytes reads size bytes starting at pa through which, assembling the
// result across as many lines as the span touches.
func (c *CacheController) ReadBytes(pa PA, size int, which Level) ([]byte, error) {
	level := c.level(which)
	out := make([]byte, 0, size)

	addr := pa
	remaining := size

	for remaining > 0 {
		line, err := c.Read(addr, which)
		if err != nil {
			return nil, err
		}

		lineOffset := int(uint64(addr) % level.cfg.LineSize)
		chunk := int(level.cfg.LineSize) - lineOffset

		if chunk > remaining {
			chunk = remaining
		}

		out = append(out, line[lineOffset:lineOffset+chunk]...)
		addr += PA(chunk)
		remaining -= chunk
	}

	return out, nil
}

// WriteBytes writes bytes at pa into which, ensuring the line
// is resident first (write-allocate) and patching the changed bytes into the
// line's data, marking it dirty. There is no write-around.
func (c *CacheController) WriteBytes(pa PA, data []byte, which Level) error {
	level := c.level(which)
	off := 0

	for off < len(data) {
		addr := pa + PA(off)
		block := level.blockAddress(addr)

		if _, err := c.Read(block, which); err != nil {
			return err
		}

		_, setIndex, tag := level.decompose(addr)
		way := c.findWay(level, setIndex, tag)

		if way < 0 {
			return fmt.Errorf("cache: write: line vanished after read-allocate at %s", addr)
		}

		lineOffset := int(uint64(addr) % level.cfg.LineSize)
		chunk := int(level.cfg.LineSize) - lineOffset

		remaining := len(data) - off
		if chunk > remaining {
			chunk = remaining
		}

		line := &level.sets[setIndex][way]
		copy(line.data[lineOffset:lineOffset+chunk], data[off:off+chunk])
		line.dirty = true
		line.lru = c.tick()

		off += chunk
	}

	return nil
}

func (c *CacheController) findWay(level *cacheLevelState, setIndex int, tag uint64) int {
	for way := range level.sets[setIndex] {
		line := &level.sets[setIndex][way]
		if line.valid && line.tag == tag {
			return way
		}
	}

	return -1
}

// access probes lvl for the block containing pa. It never installs a line.
// On hit it updates the LRU counter, and if isWrite sets dirty.
func (c *CacheController) access(pa PA, lvl Level, isWrite bool) (hit bool, data []byte) {
	level := c.level(lvl)
	_, setIndex, tag := level.decompose(pa)

	way := c.findWay(level, setIndex, tag)
	if way < 0 {
		level.stats.Misses++
		return false, nil
	}

	line := &level.sets[setIndex][way]
	line.lru = c.tick()

	if isWrite {
		line.dirty = true
	}

	level.stats.Hits++

	out := make([]byte, len(line.data))
	copy(out, line.data)

	return true, out
}

// installLine installs data as the line at blockAddr in lvl, choosing and, if
// necessary, evicting a victim way first.
func (c *CacheController) installLine(blockAddr PA, lvl Level, data []byte, isWrite bool) error {
	level := c.level(lvl)
	_, setIndex, tag := level.decompose(blockAddr)

	// Already resident: nothing to install (covers re-entrant fill-back
	// calls where a sibling path already filled this exact line).
	if way := c.findWay(level, setIndex, tag); way >= 0 {
		line := &level.sets[setIndex][way]
		line.lru = c.tick()

		if isWrite {
			line.dirty = true
		}

		return nil
	}

	way := c.chooseVictim(lvl, setIndex)
	line := &level.sets[setIndex][way]

	if line.valid {
		if err := c.handleEviction(lvl, setIndex, way); err != nil {
			return err
		}
	}

	line.valid = true
	line.dirty = isWrite
	line.tag = tag
	copy(line.data, data)
	line.lru = c.tick()
	line.presentL1D, line.presentL1I, line.presentL2 = false, false, false

	level.stats.Fills++

	c.markPresent(lvl, blockAddr)

	return nil
}

// markPresent sets the presence bit on the parent line covering blockAddr
// after installing into lvl.
func (c *CacheController) markPresent(lvl Level, blockAddr PA) {
	parent, ok := c.next[lvl]
	if !ok {
		return
	}

	pLevel := c.level(parent)
	_, setIndex, tag := pLevel.decompose(blockAddr)

	way := c.findWay(pLevel, setIndex, tag)
	if way < 0 {
		return // parent line isn't resident (can happen during recursive installs); caller installs it next.
	}

	line := &pLevel.sets[setIndex][way]

	switch lvl {
	case L1D:
		line.presentL1D = true
	case L1I:
		line.presentL1I = true
	case L2:
		line.presentL2 = true
	}
}

// clearPresent clears the presence bit on the parent line covering blockAddr.
func (c *CacheController) clearPresent(child Level, blockAddr PA) {
	parent, ok := c.next[child]
	if !ok {
		return
	}

	pLevel := c.level(parent)
	_, setIndex, tag := pLevel.decompose(blockAddr)

	way := c.findWay(pLevel, setIndex, tag)
	if way < 0 {
		return
	}

	line := &pLevel.sets[setIndex][way]

	switch child {
	case L1D:
		line.presentL1D = false
	case L1I:
		line.presentL1I = false
	case L2:
		line.presentL2 = false
	}
}

// chooseVictim picks a way to evict from setIndex in lvl: prefer an invalid
// line, then (for L2/L3) a line with no resident children, then pure LRU.
func (c *CacheController) chooseVictim(lvl Level, setIndex int) int {
	level := c.level(lvl)
	ways := level.sets[setIndex]

	for w := range ways {
		if !ways[w].valid {
			return w
		}
	}

	if lvl == L2 {
		for w := range ways {
			if !ways[w].presentL1D && !ways[w].presentL1I {
				return w
			}
		}
	}

	if lvl == L3 {
		for w := range ways {
			if !ways[w].presentL2 {
				return w
			}
		}
	}

	victim := 0
	min := ways[0].lru

	for w := 1; w < len(ways); w++ {
		if ways[w].lru < min {
			min = ways[w].lru
			victim = w
		}
	}

	return victim
}

// handleEviction evicts the line at (lvl, setIndex, way), draining children
// and writing back dirty data per the level-specific rules in spec.md §4.4.
func (c *CacheController) handleEviction(lvl Level, setIndex, way int) error {
	level := c.level(lvl)
	line := &level.sets[setIndex][way]
	blockAddr := PA(line.tag*uint64(level.numSets)+uint64(setIndex)) * PA(level.cfg.LineSize)

	level.stats.Evictions++

	switch lvl {
	case L1D, L1I:
		if line.dirty {
			if err := c.writebackToNext(lvl, blockAddr, line.data); err != nil {
				return err
			}
		}

		c.clearPresent(lvl, blockAddr)

	case L2:
		if err := c.drainChildren(setIndex, way, blockAddr); err != nil {
			return err
		}

		line = &level.sets[setIndex][way] // drainChildren may have touched line via writeback merge

		if line.dirty {
			if err := c.writebackToNext(L2, blockAddr, line.data); err != nil {
				return err
			}
		}

		c.clearPresent(L2, blockAddr)

	case L3:
		if line.presentL2 {
			if err := c.drainL2Child(blockAddr); err != nil {
				return err
			}
		}

		// Draining the L2 child writes its dirty data back into this line,
		// so a single write from this line carries the newest data to memory.
		if line.dirty {
			if err := c.bus.WriteBytes(blockAddr, line.data); err != nil {
				return &CacheFault{Level: L3, Block: blockAddr, Op: "writeback", Err: err}
			}
		}
	}

	line.valid = false

	return nil
}

// drainChildren merges any dirty L1 children of the L2 line at (setIndex,
// way) into the L2 line's data and invalidates them, clearing presence bits.
func (c *CacheController) drainChildren(setIndex, way int, blockAddr PA) error {
	l2 := c.level(L2)
	line := &l2.sets[setIndex][way]

	for _, child := range []Level{L1D, L1I} {
		present := child == L1D && line.presentL1D || child == L1I && line.presentL1I
		if !present {
			continue
		}

		cLevel := c.level(child)
		_, cSet, cTag := cLevel.decompose(blockAddr)

		cWay := c.findWay(cLevel, cSet, cTag)
		if cWay < 0 {
			continue
		}

		cLine := &cLevel.sets[cSet][cWay]

		if cLine.dirty {
			copy(line.data, cLine.data)
			line.dirty = true
			line.lru = c.tick()
		}

		cLine.valid = false

		if child == L1D {
			line.presentL1D = false
		} else {
			line.presentL1I = false
		}
	}

	return nil
}

// drainL2Child finds the L2 line for blockAddr (an L3 block address, same
// address space) and evicts it through the normal L2 eviction path, which in
// turn drains its own L1 children.
func (c *CacheController) drainL2Child(blockAddr PA) error {
	l2 := c.level(L2)
	_, setIndex, tag := l2.decompose(blockAddr)

	way := c.findWay(l2, setIndex, tag)
	if way < 0 {
		return nil
	}

	return c.handleEviction(L2, setIndex, way)
}

// writebackToNext writes a dirty line's data to the next level up (the bus,
// if lvl's next level is memory, i.e. lvl == L3), or merges it into the
// parent line, installing a new parent line if absent. When writing back
// from L1, the corresponding presence bit on the covering L2 line is
// cleared.
func (c *CacheController) writebackToNext(lvl Level, blockAddr PA, data []byte) error {
	level := c.level(lvl)
	level.stats.Writebacks++

	parent, hasParent := c.next[lvl]
	if !hasParent {
		if err := c.bus.WriteBytes(blockAddr, data); err != nil {
			return &CacheFault{Level: lvl, Block: blockAddr, Op: "writeback", Err: err}
		}

		return nil
	}

	pLevel := c.level(parent)
	_, setIndex, tag := pLevel.decompose(blockAddr)

	way := c.findWay(pLevel, setIndex, tag)
	if way < 0 {
		if err := c.installLine(blockAddr, parent, data, true); err != nil {
			return err
		}
	} else {
		line := &pLevel.sets[setIndex][way]
		copy(line.data, data)
		line.dirty = true
		line.lru = c.tick()
	}

	if lvl == L1D || lvl == L1I {
		c.clearPresent(lvl, blockAddr)
	}

	return nil
}

// PrefetchLine fetches a line's worth of bytes from the bus and installs it
// at lvl, unless already resident.
func (c *CacheController) PrefetchLine(lvl Level, blockAddr PA) error {
	level := c.level(lvl)
	_, setIndex, tag := level.decompose(blockAddr)

	if c.findWay(level, setIndex, tag) >= 0 {
		return nil
	}

	data, err := c.bus.ReadBytes(blockAddr, int(level.cfg.LineSize))
	if err != nil {
		return &CacheFault{Level: lvl, Block: blockAddr, Op: "prefetch", Err: err}
	}

	level.stats.Prefetches++

	return c.installLine(blockAddr, lvl, data, false)
}

// FlushLine evicts the line containing addr at lvl (if resident) through the
// normal eviction path, then invalidates it.
func (c *CacheController) FlushLine(addr PA, lvl Level) error {
	level := c.level(lvl)
	_, setIndex, tag := level.decompose(addr)

	way := c.findWay(level, setIndex, tag)
	if way < 0 {
		return nil
	}

	return c.handleEviction(lvl, setIndex, way)
}

// FlushAll evicts every valid line in lvl, then reinitializes the level's
// storage.
func (c *CacheController) FlushAll(lvl Level) error {
	level := c.level(lvl)

	for setIndex := range level.sets {
		for way := range level.sets[setIndex] {
			if level.sets[setIndex][way].valid {
				if err := c.handleEviction(lvl, setIndex, way); err != nil {
					return err
				}
			}
		}
	}

	level.reset()

	return nil
}

// Stats returns a snapshot of lvl's monotonic counters.
func (c *CacheController) Stats(lvl Level) levelStats {
	return c.level(lvl).stats
}

// LineSize returns the configured line size for lvl.
func (c *CacheController) LineSize(lvl Level) uint64 {
	return c.level(lvl).cfg.LineSize
}
