package machine

import "testing"

// TestCSRInterruptPriorityMEIEBeatsMTIEBeatsMSIE verifies the cause
// priority order MEIE > MTIE > MSIE when multiple sources are pending and
// enabled simultaneously.
func TestCSRInterruptPriorityMEIEBeatsMTIEBeatsMSIE(t *testing.T) {
	csr := CSR{
		MStatusMIE: true,
		MIEMSIE:    true, MIEMTIE: true, MIEMEIE: true,
		MIPMSIP: true, MIPMTIP: true, MIPMEIP: true,
	}

	cause, take := csr.ShouldTakeInterrupt()
	if !take || cause != CauseMEIE {
		t.Fatalf("got cause=%d take=%v, want CauseMEIE", cause, take)
	}

	csr.MIPMEIP = false

	cause, take = csr.ShouldTakeInterrupt()
	if !take || cause != CauseMTIE {
		t.Fatalf("got cause=%d take=%v, want CauseMTIE", cause, take)
	}

	csr.MIPMTIP = false

	cause, take = csr.ShouldTakeInterrupt()
	if !take || cause != CauseMSIE {
		t.Fatalf("got cause=%d take=%v, want CauseMSIE", cause, take)
	}
}

// TestCSRGlobalDisableMasksAllInterrupts verifies mstatus.MIE=0 blocks
// interrupt delivery even when individual sources are pending and enabled.
func TestCSRGlobalDisableMasksAllInterrupts(t *testing.T) {
	csr := CSR{
		MStatusMIE: false,
		MIEMEIE:    true,
		MIPMEIP:    true,
	}

	if _, take := csr.ShouldTakeInterrupt(); take {
		t.Fatal("expected no interrupt to be taken while mstatus.MIE is clear")
	}
}

// TestCSRPerSourceMaskingSuppressesPending verifies a pending-but-disabled
// source is skipped in favor of a lower-priority enabled one.
func TestCSRPerSourceMaskingSuppressesPending(t *testing.T) {
	csr := CSR{
		MStatusMIE: true,
		MIEMTIE:    true,
		MIPMEIP:    true, // pending but MIEMEIE is false
		MIPMTIP:    true,
	}

	cause, take := csr.ShouldTakeInterrupt()
	if !take || cause != CauseMTIE {
		t.Fatalf("got cause=%d take=%v, want CauseMTIE (MEIE masked)", cause, take)
	}
}

// TestCSRTrapEnterAndMRetRoundTrip verifies TrapEnter saves MIE into MPIE
// and disables interrupts, and MRet restores the saved state.
func TestCSRTrapEnterAndMRetRoundTrip(t *testing.T) {
	csr := CSR{MStatusMIE: true}

	csr.TrapEnter(CauseMEIE, true)

	if csr.MStatusMIE {
		t.Error("expected MIE to be cleared on trap entry")
	}

	if !csr.MStatusMPIE {
		t.Error("expected MPIE to save the pre-trap MIE value")
	}

	if csr.MCause != CauseMEIE || !csr.MCauseIsInterrupt {
		t.Errorf("got mcause=%d isInterrupt=%v, want %d/true", csr.MCause, csr.MCauseIsInterrupt, CauseMEIE)
	}

	csr.MRet()

	if !csr.MStatusMIE {
		t.Error("expected MRet to restore MIE from MPIE")
	}

	if csr.MCause != 0 || csr.MCauseIsInterrupt {
		t.Error("expected MRet to clear mcause")
	}
}
