package bootmem

import (
	cerrors "github.com/cockroachdb/errors"
	"github.com/ddos-os/kmem/mem"
	"github.com/ddos-os/kmem/memutils"
)

// RegionBumpAllocator hands out aligned, never-freed byte ranges from a single region. It is used
// to carve allocator metadata out of memory before anything else owns that memory.
type RegionBumpAllocator struct {
	start  mem.PhysAddr
	size   int
	offset int
}

func NewRegionBumpAllocator(region Region) *RegionBumpAllocator {
	return &RegionBumpAllocator{
		start: region.Addr,
		size:  region.Size,
	}
}

// Alloc reserves size bytes aligned to align, which must be a power of two, and returns the
// physical address of the first byte. ok is false when the region does not have enough room left.
func (b *RegionBumpAllocator) Alloc(size int, align uint) (mem.PhysAddr, bool) {
	if err := memutils.CheckPow2(align, "align"); err != nil {
		panic(cerrors.WithAssertionFailure(err))
	}
	if size < 0 {
		panic(cerrors.AssertionFailedf("cannot allocate %d bytes", size))
	}

	addr := memutils.AlignUp(b.start+mem.PhysAddr(b.offset), mem.PhysAddr(align))
	start := int(addr - b.start)
	if start+size > b.size {
		return 0, false
	}

	b.offset = start + size
	return addr, true
}

// Remaining returns the number of bytes that have not been handed out
func (b *RegionBumpAllocator) Remaining() int {
	return b.size - b.offset
}
