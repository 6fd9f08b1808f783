package machine

// errors.go collects the error kinds from the design: sentinels for errors.Is
// matching, plus typed wrappers that carry the address or level detail
// callers need. Mirrors the teacher's MemoryError/ErrAccessControl split: a
// sentinel for classification, a struct for detail.

import (
	"errors"
	"fmt"
)

// Sentinel error kinds. Use errors.Is against these; typed errors below wrap
// them.
var (
	ErrAccessViolation = errors.New("access violation")
	ErrUnmapped        = errors.New("unmapped")
	ErrOverlap         = errors.New("overlap")
	ErrMMIOConstraint  = errors.New("mmio constraint")
	ErrPageFault       = errors.New("page fault")
	ErrPermissionDenied = errors.New("permission denied")
	ErrOutOfMemory     = errors.New("out of memory")
	ErrOutOfFrames     = errors.New("out of frames")
	ErrReadOnly        = errors.New("read only")
	ErrBadConfig       = errors.New("bad config")
	ErrDeviceError     = errors.New("device error")
)

// AccessViolationError is returned when a DRAM or bus transfer escapes the
// bounds of its backing region.
type AccessViolationError struct {
	Addr PA
	Size int
	Bound PA
}

func (e *AccessViolationError) Error() string {
	return fmt.Sprintf("%s: addr=%s size=%d bound=%s", ErrAccessViolation, e.Addr, e.Size, e.Bound)
}

func (e *AccessViolationError) Unwrap() error { return ErrAccessViolation }

// UnmappedError is returned when a bus transfer touches an address with no
// covering region.
type UnmappedError struct {
	Addr PA
}

func (e *UnmappedError) Error() string {
	return fmt.Sprintf("%s: addr=%s", ErrUnmapped, e.Addr)
}

func (e *UnmappedError) Unwrap() error { return ErrUnmapped }

// OverlapError is returned when registering a bus region that intersects an
// existing one.
type OverlapError struct {
	New, Existing BusRegion
}

func (e *OverlapError) Error() string {
	return fmt.Sprintf("%s: new=%s existing=%s", ErrOverlap, e.New, e.Existing)
}

func (e *OverlapError) Unwrap() error { return ErrOverlap }

// MMIOConstraintError is returned when a strict-mode MMIO access violates a
// device's alignment or width capability.
type MMIOConstraintError struct {
	Addr  PA
	Size  int
	Align int
	Widths []int
}

func (e *MMIOConstraintError) Error() string {
	return fmt.Sprintf("%s: addr=%s size=%d align=%d widths=%v",
		ErrMMIOConstraint, e.Addr, e.Size, e.Align, e.Widths)
}

func (e *MMIOConstraintError) Unwrap() error { return ErrMMIOConstraint }

// PageFaultError is returned when a translation finds an absent or invalid
// PTE.
type PageFaultError struct {
	VA   VA
	ASID ASID
}

func (e *PageFaultError) Error() string {
	return fmt.Sprintf("%s: va=%s asid=%d", ErrPageFault, e.VA, e.ASID)
}

func (e *PageFaultError) Unwrap() error { return ErrPageFault }

// PermissionError is returned when an access violates a page's permission
// bits (write to read-only, execute on non-executable, etc).
type PermissionError struct {
	VA   VA
	Kind AccessKind
}

func (e *PermissionError) Error() string {
	return fmt.Sprintf("%s: va=%s kind=%s", ErrPermissionDenied, e.VA, e.Kind)
}

func (e *PermissionError) Unwrap() error { return ErrPermissionDenied }

// DeviceFault wraps a device-specific error (e.g. DMA ERR) with the device's
// name for logging.
type DeviceFault struct {
	Device string
	Reason string
}

func (e *DeviceFault) Error() string {
	return fmt.Sprintf("%s: %s: %s", ErrDeviceError, e.Device, e.Reason)
}

func (e *DeviceFault) Unwrap() error { return ErrDeviceError }

// CacheFault tags a bus-level error encountered while the cache controller
// was filling, writing back, or prefetching a line, with the level and block
// address where it happened.
type CacheFault struct {
	Level Level
	Block PA
	Op    string // "fill", "writeback", "prefetch"
	Err   error
}

func (e *CacheFault) Error() string {
	return fmt.Sprintf("cache: %s: level=%s block=%s: %s", e.Op, e.Level, e.Block, e.Err)
}

func (e *CacheFault) Unwrap() error { return e.Err }
