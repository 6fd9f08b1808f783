package machine

// csr.go implements the minimal machine-mode CSR block and interrupt
// delivery decision the CPU consults on every instruction boundary.

// Cause codes for the three interrupt sources the CSR tracks, matching
// machine-mode priority MEIE > MTIE > MSIE.
const (
	CauseMSIE uint = 3
	CauseMTIE uint = 7
	CauseMEIE uint = 11
)

// CSR is the machine-mode control/status register block.
type CSR struct {
	MStatusMIE  bool
	MStatusMPIE bool

	MIEMSIE bool
	MIEMTIE bool
	MIEMEIE bool

	MIPMSIP bool
	MIPMTIP bool
	MIPMEIP bool

	MCause            uint
	MCauseIsInterrupt bool
}

// SampleIRQs sets MIP bits from the given CLINT and PLIC line levels. Callers
// pass the CLINT's levels for the CPU's hart and the PLIC context's
// aggregate external-interrupt line.
func (c *CSR) SampleIRQs(msip, mtip, meip bool) {
	c.MIPMSIP = msip
	c.MIPMTIP = mtip
	c.MIPMEIP = meip
}

// ShouldTakeInterrupt returns the highest-priority pending, enabled interrupt
// cause, if mstatus.MIE permits taking one.
func (c *CSR) ShouldTakeInterrupt() (cause uint, take bool) {
	if !c.MStatusMIE {
		return 0, false
	}

	if c.MIEMEIE && c.MIPMEIP {
		return CauseMEIE, true
	}

	if c.MIEMTIE && c.MIPMTIP {
		return CauseMTIE, true
	}

	if c.MIEMSIE && c.MIPMSIP {
		return CauseMSIE, true
	}

	return 0, false
}

// TrapEnter saves the current interrupt-enable state and records cause,
// disabling further interrupts until mret.
func (c *CSR) TrapEnter(cause uint, isInterrupt bool) {
	c.MStatusMPIE = c.MStatusMIE
	c.MStatusMIE = false
	c.MCause = cause
	c.MCauseIsInterrupt = isInterrupt
}

// MRet restores the interrupt-enable state saved by the most recent
// TrapEnter and clears mcause.
func (c *CSR) MRet() {
	c.MStatusMIE = c.MStatusMPIE
	c.MStatusMPIE = true
	c.MCause = 0
	c.MCauseIsInterrupt = false
}
