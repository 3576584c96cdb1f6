// Package pmm implements the physical memory manager: a set of independently locked binary
// buddy zones, one per usable region of physical memory.
package pmm

import (
	"context"
	"sync/atomic"

	cerrors "github.com/cockroachdb/errors"
	"github.com/ddos-os/kmem/mem"
	"github.com/ddos-os/kmem/memutils"
	"github.com/ddos-os/kmem/memutils/metadata"
	"golang.org/x/exp/slog"
)

// PhysAllocator hands out physically contiguous, naturally aligned runs of 2^order frames. A
// single call only ever locks one zone, so callers never contend on more than one lock.
type PhysAllocator struct {
	logger    *slog.Logger
	directMap mem.DirectMap

	createFlags CreateFlags
	strategy    ZoneStrategy
	cursor      atomic.Uint32

	zones      []*zone
	totalPages int
}

var _ mem.FrameAllocator = &PhysAllocator{}

// Alloc returns 2^order contiguous frames. Exhausting physical memory is
// fatal: Alloc panics if no zone can satisfy the request.
func (a *PhysAllocator) Alloc(order int) mem.FrameRange {
	if order < 0 || order > metadata.MaxOrder {
		panic(cerrors.AssertionFailedf("attempted to allocate frames of order %d, but the maximum is %d", order, metadata.MaxOrder))
	}

	first := 0
	if a.strategy == ZoneStrategyRoundRobin {
		first = int((a.cursor.Add(1) - 1) % uint32(len(a.zones)))
	}

	for i := 0; i < len(a.zones); i++ {
		frames, ok := a.zones[(first+i)%len(a.zones)].alloc(order)
		if ok {
			memutils.DebugPoison(a.directMap.Pointer(frames.StartAddress()), frames.Size())
			return frames
		}
	}

	a.logger.LogAttrs(context.Background(), slog.LevelError, "physical memory exhausted",
		slog.Int("order", order),
		slog.Int("freePages", a.FreePages()))

	panic(cerrors.WithAssertionFailure(
		cerrors.Wrapf(memutils.ErrOutOfMemory, "no zone can satisfy an allocation of order %d", order)))
}

// AllocateFrame returns a single frame
func (a *PhysAllocator) AllocateFrame() mem.Frame {
	return a.Alloc(0).Start
}

// Free returns frames obtained from Alloc. The range must be exactly what Alloc returned. Freeing
// a range that no zone owns, or that was not allocated, panics.
func (a *PhysAllocator) Free(frames mem.FrameRange) {
	for _, z := range a.zones {
		if z.contains(frames) {
			z.free(frames)
			return
		}
	}

	panic(cerrors.AssertionFailedf("attempted to free frames %s, which do not belong to any zone", frames))
}

// TotalPages returns the number of frames managed across every zone
func (a *PhysAllocator) TotalPages() int {
	return a.totalPages
}

// FreePages returns the number of frames that are not currently allocated. Zones are visited one
// at a time, so the result may be stale when other threads are allocating.
func (a *PhysAllocator) FreePages() int {
	free := 0
	for _, z := range a.zones {
		free += z.freePages()
	}
	return free
}

// ZoneInfo describes one zone of the allocator
type ZoneInfo struct {
	// Frames is the range of frames the zone hands out
	Frames mem.FrameRange
	// Metadata is the memory reserved at the front of the zone's region for its buddy tree
	Metadata mem.FrameRange
	// FreePages is the number of unallocated frames in the zone
	FreePages int
}

// Zones describes every zone in ascending address order
func (a *PhysAllocator) Zones() []ZoneInfo {
	infos := make([]ZoneInfo, 0, len(a.zones))
	for _, z := range a.zones {
		infos = append(infos, ZoneInfo{
			Frames:    z.frames,
			Metadata:  mem.NewFrameRange(z.reserved.Addr, z.reserved.Pages()),
			FreePages: z.freePages(),
		})
	}
	return infos
}

// Validate checks the consistency of every zone, and that zones do not overlap
func (a *PhysAllocator) Validate() error {
	for i, z := range a.zones {
		if i > 0 && a.zones[i-1].frames.End.Address() > z.reserved.Addr {
			return cerrors.Newf("zone %s overlaps zone %s", a.zones[i-1].frames, z.frames)
		}

		err := z.validate()
		if err != nil {
			return cerrors.Wrapf(err, "zone %d", i)
		}
	}

	return nil
}
