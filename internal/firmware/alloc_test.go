package firmware_test

import (
	"errors"
	"testing"

	"github.com/smoynes/memsim/internal/firmware"
	"github.com/smoynes/memsim/internal/machine"
)

func TestPageAllocatorAllocFreeLIFO(t *testing.T) {
	alloc, err := firmware.NewPageAllocator(0x1000, 0x4000, 0x1000)
	if err != nil {
		t.Fatalf("NewPageAllocator: %v", err)
	}

	if alloc.Total() != 4 {
		t.Fatalf("got %d total pages, want 4", alloc.Total())
	}

	a, err := alloc.Alloc()
	if err != nil {
		t.Fatalf("Alloc: %v", err)
	}

	b, err := alloc.Alloc()
	if err != nil {
		t.Fatalf("Alloc: %v", err)
	}

	alloc.Free(b)

	c, err := alloc.Alloc()
	if err != nil {
		t.Fatalf("Alloc: %v", err)
	}

	if c != b {
		t.Errorf("expected LIFO reuse of just-freed frame %s, got %s", b, c)
	}

	_ = a
}

func TestPageAllocatorExhaustion(t *testing.T) {
	alloc, err := firmware.NewPageAllocator(0, 0x2000, 0x1000)
	if err != nil {
		t.Fatalf("NewPageAllocator: %v", err)
	}

	if _, err := alloc.Alloc(); err != nil {
		t.Fatalf("Alloc 1: %v", err)
	}

	if _, err := alloc.Alloc(); err != nil {
		t.Fatalf("Alloc 2: %v", err)
	}

	_, err = alloc.Alloc()
	if !errors.Is(err, machine.ErrOutOfFrames) {
		t.Fatalf("expected ErrOutOfFrames, got %v", err)
	}
}

func TestPageAllocatorRejectsMisalignedSize(t *testing.T) {
	_, err := firmware.NewPageAllocator(0, 0x1234, 0x1000)

	if !errors.Is(err, machine.ErrBadConfig) {
		t.Fatalf("expected ErrBadConfig, got %v", err)
	}
}
