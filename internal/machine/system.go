package machine

// system.go assembles the leaf components into a single object graph, the
// way vm.New assembles an LC3: constructed once at wiring time, mutated for
// the simulator's lifetime, and torn down together. There is no process-wide
// singleton; the System is passed explicitly to callers.

import (
	"github.com/smoynes/memsim/internal/log"
)

// SystemConfig bundles every leaf component's configuration.
type SystemConfig struct {
	DRAMSize  PA
	DRAMBase  PA
	DRAMFill  byte
	MMU       MMUConfig
	Cache     CacheConfig
	CPU       CPUConfig
	PLIC      PLICConfig
	CLINTHarts int
	CLINTTick  uint64
}

// DefaultSystemConfig returns a reasonable single-hart configuration: 64MiB
// of DRAM at physical address 0, default MMU/cache geometry, one PLIC
// context, and one CLINT hart.
func DefaultSystemConfig() SystemConfig {
	return SystemConfig{
		DRAMSize:   64 * 1024 * 1024,
		DRAMBase:   0,
		DRAMFill:   0,
		MMU:        DefaultMMUConfig(),
		Cache:      DefaultCacheConfig(),
		CPU:        DefaultCPUConfig(),
		PLIC:       PLICConfig{Sources: 8, Contexts: 1, Layout: LayoutCompact, Mode: ModeLevel},
		CLINTHarts: 1,
		CLINTTick:  1,
	}
}

// System is the fully wired object graph: DRAM, bus, MMU, cache, CPU, and
// the interrupt controllers and peripherals registered on the bus.
type System struct {
	cfg SystemConfig

	DRAM  *DRAM
	Bus   *Bus
	MMU   *MMU
	Cache *CacheController
	CPU   *CPU
	PLIC  *PLIC
	CLINT *CLINT

	log *log.Logger
}

// OptionFn mutates a System during New, after the core is wired but before
// New returns; used to register peripherals or override defaults.
type OptionFn func(*System) error

// New assembles a System: DRAM mapped at cfg.DRAMBase, an MMU and cache
// hierarchy atop the bus, a CPU wired to both, and a PLIC/CLINT pair
// registered as MMIO devices. opts run afterward, typically to register
// additional peripherals (UART, timer, DMA, ROM).
func New(cfg SystemConfig, opts ...OptionFn) (*System, error) {
	sys := &System{cfg: cfg, log: log.DefaultLogger()}

	sys.DRAM = NewDRAM(cfg.DRAMSize, cfg.DRAMFill)
	sys.Bus = NewBus()

	if err := sys.Bus.MapRAM("dram", cfg.DRAMBase, cfg.DRAMSize, sys.DRAM, 0); err != nil {
		return nil, err
	}

	mmu, err := NewMMU(cfg.MMU)
	if err != nil {
		return nil, err
	}

	sys.MMU = mmu

	cache, err := NewCacheController(sys.Bus, cfg.Cache)
	if err != nil {
		return nil, err
	}

	sys.Cache = cache
	sys.CPU = NewCPU(sys.Bus, sys.MMU, sys.Cache, cfg.CPU)

	plic, err := NewPLIC(cfg.PLIC)
	if err != nil {
		return nil, err
	}

	sys.PLIC = plic
	sys.CLINT = NewCLINT(cfg.CLINTHarts, cfg.CLINTTick)

	plicBase, clintBase := sys.reservePeripheralBases()

	if err := sys.Bus.RegisterMMIO("plic", plicBase, sys.PLIC); err != nil {
		return nil, err
	}

	if err := sys.Bus.RegisterMMIO("clint", clintBase, sys.CLINT); err != nil {
		return nil, err
	}

	sys.CPU.AttachPLIC(PLICAttach{PLIC: sys.PLIC, Layout: cfg.PLIC.Layout, Ctx: 0})
	sys.CPU.AttachCLINT(CLINTAttach{CLINT: sys.CLINT, Hart: 0})

	for _, fn := range opts {
		if err := fn(sys); err != nil {
			return nil, err
		}
	}

	return sys, nil
}

// reservePeripheralBases picks fixed physical addresses for the PLIC and
// CLINT just above the end of DRAM, leaving room for callers' own
// peripherals via WithUART/WithTimer/WithDMA/WithROM.
func (sys *System) reservePeripheralBases() (plicBase, clintBase PA) {
	top := sys.cfg.DRAMBase + sys.cfg.DRAMSize
	plicBase = top
	clintBase = plicBase + sys.PLIC.Region() + 0x1000 // pad so layouts with large strides fit cleanly

	return
}

// WithUART registers a UART at base, writing transmitted bytes to sink. If
// plicSource is nonzero, the UART's RX interrupt raises that PLIC source.
func WithUART(base PA, sink UARTSink, plicSource int) OptionFn {
	return func(sys *System) error {
		u := NewUART(sink)

		if plicSource != 0 {
			u.SetIRQSink(sys.PLIC.Source(plicSource))
		}

		return sys.Bus.RegisterMMIO("uart", base, u)
	}
}

// WithTimer registers a Timer at base. If plicSource is nonzero, the
// timer's pending interrupt raises that PLIC source.
func WithTimer(base PA, plicSource int) OptionFn {
	return func(sys *System) error {
		t := NewTimer()

		if plicSource != 0 {
			t.SetIRQSink(sys.PLIC.Source(plicSource))
		}

		return sys.Bus.RegisterMMIO("timer", base, t)
	}
}

// WithDMA registers a DMA engine at base, copying across sys.Bus. If
// plicSource is nonzero, a completed transfer raises that PLIC source.
func WithDMA(base PA, ramOnly bool, plicSource int) OptionFn {
	return func(sys *System) error {
		d := NewDMA(sys.Bus, ramOnly)

		if plicSource != 0 {
			d.SetIRQSink(sys.PLIC.Source(plicSource))
		}

		return sys.Bus.RegisterMMIO("dma", base, d)
	}
}

// WithROM registers a read-only image at base.
func WithROM(base PA, image []byte, strict bool) OptionFn {
	return func(sys *System) error {
		return sys.Bus.RegisterMMIO("rom", base, NewROM(image, strict))
	}
}

// WithStrictMMIO overrides the bus's strict MMIO constraint enforcement.
func WithStrictMMIO(strict bool) OptionFn {
	return func(sys *System) error {
		sys.Bus.SetStrictMMIO(strict)
		return nil
	}
}

// Advance steps the CLINT's clock by n ticks, then samples interrupt lines
// into the CPU's CSR. Timers added with WithTimer are not stepped by it; the
// System keeps no reference to them. It is the system's single
// cooperative-scheduling hook: callers drive simulated time explicitly.
func (sys *System) Advance(n uint64) {
	sys.CLINT.Advance(n)
	sys.CPU.SampleIRQs()
}
