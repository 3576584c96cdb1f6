// Package bootmem ingests the firmware memory map and provides the allocators that are usable
// before the physical memory manager exists: a page-granular allocator over the whole map, and a
// byte-granular bump allocator over a single region.
package bootmem

import (
	"fmt"

	cerrors "github.com/cockroachdb/errors"
	"github.com/ddos-os/kmem/mem"
	"golang.org/x/exp/slog"
)

// Region is a physically contiguous range of memory
type Region struct {
	Addr mem.PhysAddr
	Size int
}

// End returns the first address past the end of the region
func (r Region) End() mem.PhysAddr {
	return r.Addr + mem.PhysAddr(r.Size)
}

// Pages returns the number of whole pages in the region
func (r Region) Pages() int {
	return r.Size / mem.PageSize
}

// SplitAt divides the region into [Addr, Addr+offset) and [Addr+offset, End()). offset must be
// strictly inside the region.
func (r Region) SplitAt(offset int) (Region, Region) {
	if offset <= 0 || offset >= r.Size {
		panic(cerrors.AssertionFailedf("cannot split region %s at offset %d", r, offset))
	}

	return Region{Addr: r.Addr, Size: offset},
		Region{Addr: r.Addr + mem.PhysAddr(offset), Size: r.Size - offset}
}

func (r Region) String() string {
	return fmt.Sprintf("[%s - %s)", r.Addr, r.End())
}

func (r Region) LogValue() slog.Value {
	return slog.GroupValue(
		slog.String("addr", r.Addr.String()),
		slog.Int("size", r.Size),
	)
}
