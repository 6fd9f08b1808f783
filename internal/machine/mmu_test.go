package machine_test

import (
	"errors"
	"testing"

	"github.com/smoynes/memsim/internal/machine"
)

func newMMU(t *testing.T) *machine.MMU {
	t.Helper()

	mmu, err := machine.NewMMU(machine.DefaultMMUConfig())
	if err != nil {
		t.Fatalf("NewMMU: %v", err)
	}

	return mmu
}

func TestMMUTranslateHitsTLBOnSecondAccess(t *testing.T) {
	mmu := newMMU(t)

	if err := mmu.MapPage(0x1000, 0x9000, machine.PageAttrs{Writable: true}, nil); err != nil {
		t.Fatalf("MapPage: %v", err)
	}

	if _, _, err := mmu.Translate(0x1000); err != nil {
		t.Fatalf("Translate (miss): %v", err)
	}

	if _, _, err := mmu.Translate(0x1000); err != nil {
		t.Fatalf("Translate (hit): %v", err)
	}

	stats := mmu.TLBStats()
	if stats.Hits != 1 || stats.Misses != 1 {
		t.Errorf("got hits=%d misses=%d, want hits=1 misses=1", stats.Hits, stats.Misses)
	}
}

func TestMMUFlushTLBForcesMiss(t *testing.T) {
	mmu := newMMU(t)

	if err := mmu.MapPage(0x2000, 0xA000, machine.PageAttrs{}, nil); err != nil {
		t.Fatalf("MapPage: %v", err)
	}

	if _, _, err := mmu.Translate(0x2000); err != nil {
		t.Fatalf("Translate: %v", err)
	}

	mmu.FlushTLB(nil)

	if _, _, err := mmu.Translate(0x2000); err != nil {
		t.Fatalf("Translate after flush: %v", err)
	}

	stats := mmu.TLBStats()
	if stats.Misses != 2 {
		t.Errorf("got misses=%d, want 2 after flush", stats.Misses)
	}
}

func TestMMUPageFaultOnUnmapped(t *testing.T) {
	mmu := newMMU(t)

	_, _, err := mmu.Translate(0x4000)

	var pf *machine.PageFaultError
	if !errors.As(err, &pf) {
		t.Fatalf("expected PageFaultError, got %v", err)
	}
}

func TestMMUPermissionDeniedOnWriteToReadOnlyPage(t *testing.T) {
	mmu := newMMU(t)

	if err := mmu.MapPage(0x3000, 0xB000, machine.PageAttrs{Writable: false}, nil); err != nil {
		t.Fatalf("MapPage: %v", err)
	}

	_, _, err := mmu.CheckAccess(0x3000, machine.AccessWrite)

	var perm *machine.PermissionError
	if !errors.As(err, &perm) {
		t.Fatalf("expected PermissionError, got %v", err)
	}
}

// TestMMUDeviceMemTypeForcesUncached verifies the memtype-forces-uncached
// rule: a device page with no explicit Cached setting comes back uncached.
func TestMMUDeviceMemTypeForcesUncached(t *testing.T) {
	mmu := newMMU(t)

	if err := mmu.MapPage(0x5000, 0xC000, machine.PageAttrs{MemType: machine.MemDevice}, nil); err != nil {
		t.Fatalf("MapPage: %v", err)
	}

	_, pte, err := mmu.Translate(0x5000)
	if err != nil {
		t.Fatalf("Translate: %v", err)
	}

	if pte.Cached {
		t.Error("expected device page to be forced uncached")
	}
}
