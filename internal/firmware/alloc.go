package firmware

// alloc.go implements a boot-time page-frame allocator over a bus region:
// a LIFO stack of page-aligned frames. The lowest frame is handed out first,
// and a freed frame is the next one handed out.

import (
	"fmt"

	"github.com/smoynes/memsim/internal/machine"
)

// PageAllocator hands out page-aligned physical frames from a fixed range,
// typically a RAM region reserved for firmware and early boot use before the
// guest installs its own allocator.
type PageAllocator struct {
	base     machine.PA
	pageSize uint64
	total    int

	free    []machine.PA // stack of available frames, LIFO
	issued  map[machine.PA]bool
}

// NewPageAllocator creates an allocator over [base, base+size), handing out
// frames of pageSize bytes. size must be a multiple of pageSize.
func NewPageAllocator(base machine.PA, size uint64, pageSize uint64) (*PageAllocator, error) {
	if pageSize == 0 || size%pageSize != 0 {
		return nil, fmt.Errorf("%w: firmware: region size %d not a multiple of page size %d", machine.ErrBadConfig, size, pageSize)
	}

	count := int(size / pageSize)

	a := &PageAllocator{
		base:     base,
		pageSize: pageSize,
		total:    count,
		free:     make([]machine.PA, 0, count),
		issued:   make(map[machine.PA]bool, count),
	}

	for i := count - 1; i >= 0; i-- {
		a.free = append(a.free, base+machine.PA(uint64(i)*pageSize))
	}

	return a, nil
}

// Alloc removes and returns one frame from the free list.
func (a *PageAllocator) Alloc() (machine.PA, error) {
	if len(a.free) == 0 {
		return 0, machine.ErrOutOfFrames
	}

	frame := a.free[len(a.free)-1]
	a.free = a.free[:len(a.free)-1]
	a.issued[frame] = true

	return frame, nil
}

// Free returns frame to the free list. Freeing a frame that was never
// issued, or one that is already free, is a no-op.
func (a *PageAllocator) Free(frame machine.PA) {
	if !a.issued[frame] {
		return
	}

	delete(a.issued, frame)
	a.free = append(a.free, frame)
}

// Total returns the number of frames the allocator was created with.
func (a *PageAllocator) Total() int { return a.total }

// Available returns the number of frames currently unissued.
func (a *PageAllocator) Available() int { return len(a.free) }
