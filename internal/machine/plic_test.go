package machine_test

import (
	"testing"

	"github.com/smoynes/memsim/internal/machine"
)

func newPLIC(t *testing.T, mode machine.PLICMode) *machine.PLIC {
	t.Helper()

	plic, err := machine.NewPLIC(machine.PLICConfig{
		Sources: 4, Contexts: 1, Layout: machine.LayoutCompact, Mode: mode,
	})
	if err != nil {
		t.Fatalf("NewPLIC: %v", err)
	}

	return plic
}

func enableAllSources(t *testing.T, plic *machine.PLIC) {
	t.Helper()

	if err := plic.Write(0x180, []byte{0x0F, 0, 0, 0}); err != nil { // sources 1-4
		t.Fatalf("enable write: %v", err)
	}
}

// TestPLICClaimPicksHighestPriorityTieBreakLowestID verifies the priority
// ordering and lowest-id tie-break of the claim algorithm.
func TestPLICClaimPicksHighestPriorityTieBreakLowestID(t *testing.T) {
	plic := newPLIC(t, machine.ModeLevel)
	enableAllSources(t, plic)

	plic.SetPriority(1, 5)
	plic.SetPriority(2, 5) // ties source 1 on priority; lower id wins
	plic.SetPriority(3, 7) // highest priority; should win regardless of order

	plic.Raise(1)
	plic.Raise(2)
	plic.Raise(3)

	if id := plic.Claim(0); id != 3 {
		t.Fatalf("expected source 3 (highest priority) to win claim, got %d", id)
	}

	plic.Complete(0, 3)
	plic.Lower(3)

	if id := plic.Claim(0); id != 1 {
		t.Fatalf("expected source 1 (tie-break lowest id) to win claim, got %d", id)
	}
}

// TestPLICThresholdMasksLowPrioritySources verifies a source at or below
// the context threshold never claims.
func TestPLICThresholdMasksLowPrioritySources(t *testing.T) {
	plic := newPLIC(t, machine.ModeLevel)
	enableAllSources(t, plic)

	plic.SetPriority(1, 3)

	if err := plic.Write(0x188, []byte{3, 0, 0, 0}); err != nil { // threshold = 3
		t.Fatalf("threshold write: %v", err)
	}

	plic.Raise(1)

	if id := plic.Claim(0); id != 0 {
		t.Errorf("expected source at or below threshold to be masked, got claim %d", id)
	}
}

// TestPLICLatchedModeClaimClearsPendingAndLineDropKeepsItClear verifies that
// in latched mode a claim clears the source's pending bit at once, and that
// the source stays clear when its line drops before it is completed.
func TestPLICLatchedModeClaimClearsPendingAndLineDropKeepsItClear(t *testing.T) {
	plic := newPLIC(t, machine.ModeLatched)
	enableAllSources(t, plic)
	plic.SetPriority(1, 5)

	plic.Raise(1)

	if id := plic.Claim(0); id != 1 {
		t.Fatalf("expected claim to return source 1, got %d", id)
	}

	if id := plic.Claim(0); id != 0 {
		t.Errorf("expected pending to be cleared immediately after latched claim, got %d", id)
	}

	plic.Lower(1)
	plic.Complete(0, 1)

	if id := plic.Claim(0); id != 0 {
		t.Errorf("expected source to stay clear after line dropped before complete, got %d", id)
	}
}
