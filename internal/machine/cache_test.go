package machine_test

import (
	"bytes"
	"testing"

	"github.com/smoynes/memsim/internal/machine"
)

func newCacheSystem(t *testing.T) (*machine.Bus, *machine.CacheController) {
	t.Helper()

	bus := machine.NewBus()
	dram := machine.NewDRAM(0x10000, 0)

	if err := bus.MapRAM("ram", 0, 0x10000, dram, 0); err != nil {
		t.Fatalf("MapRAM: %v", err)
	}

	cache, err := machine.NewCacheController(bus, machine.DefaultCacheConfig())
	if err != nil {
		t.Fatalf("NewCacheController: %v", err)
	}

	return bus, cache
}

// TestCacheReadWriteRoundTrip verifies a store through the cache hierarchy
// is visible to a subsequent load, and that the second load is a hit.
func TestCacheReadWriteRoundTrip(t *testing.T) {
	_, cache := newCacheSystem(t)

	payload := []byte{0xDE, 0xAD, 0xBE, 0xEF}

	if err := cache.WriteBytes(0x40, payload, machine.L1D); err != nil {
		t.Fatalf("WriteBytes: %v", err)
	}

	got, err := cache.ReadBytes(0x40, len(payload), machine.L1D)
	if err != nil {
		t.Fatalf("ReadBytes: %v", err)
	}

	if !bytes.Equal(got, payload) {
		t.Errorf("got %x, want %x", got, payload)
	}

	stats := cache.Stats(machine.L1D)
	if stats.Hits == 0 {
		t.Error("expected at least one hit on the re-read of a just-written line")
	}
}

// TestCacheWritebackOnEviction verifies a dirty line evicted out of the
// hierarchy ends up visible on the bus, exercising the recursive
// writeback path through every level.
func TestCacheWritebackOnEviction(t *testing.T) {
	bus, cache := newCacheSystem(t)

	cfg := machine.DefaultCacheConfig().L1D
	ways := cfg.Associativity
	stride := cfg.Size / uint64(ways)

	base := PA0
	for i := 0; i <= ways; i++ {
		addr := base + machine.PA(uint64(i)*stride)

		if err := cache.WriteBytes(addr, []byte{byte(i + 1)}, machine.L1D); err != nil {
			t.Fatalf("WriteBytes[%d]: %v", i, err)
		}
	}

	// The first address's line has been evicted from L1D by the time enough
	// conflicting lines have been installed to overfill its set; that
	// eviction writes it back into L2. Flushing L2 and then L3 evicts it the
	// rest of the way out of the hierarchy and onto the bus.
	if err := cache.FlushAll(machine.L2); err != nil {
		t.Fatalf("FlushAll(L2): %v", err)
	}

	if err := cache.FlushAll(machine.L3); err != nil {
		t.Fatalf("FlushAll(L3): %v", err)
	}

	got, err := bus.ReadBytes(base, 1)
	if err != nil {
		t.Fatalf("ReadBytes: %v", err)
	}

	if got[0] != 1 {
		t.Errorf("expected evicted dirty line to have been written back as 0x01, got %#x", got[0])
	}
}

const PA0 = machine.PA(0)
