package slob

import (
	"unsafe"

	cerrors "github.com/cockroachdb/errors"
	"github.com/ddos-os/kmem/memutils"
)

// Layout is the size and alignment of a heap allocation. The same Layout must be passed to
// Dealloc that was passed to Alloc.
type Layout struct {
	size  int
	align int
}

// NewLayout validates a size and alignment. align must be a power of two no larger than
// MaxAlign.
func NewLayout(size int, align int) (Layout, error) {
	if size < 0 {
		return Layout{}, cerrors.Newf("allocation size %d is negative", size)
	}

	err := memutils.CheckPow2(align, "align")
	if err != nil {
		return Layout{}, err
	}

	if align > MaxAlign {
		return Layout{}, cerrors.Newf("alignment %d is larger than the heap's maximum alignment %d", align, MaxAlign)
	}

	return Layout{size: size, align: align}, nil
}

// LayoutOf returns the Layout of a T
func LayoutOf[T any]() Layout {
	var value T

	layout, err := NewLayout(int(unsafe.Sizeof(value)), int(unsafe.Alignof(value)))
	if err != nil {
		panic(cerrors.WithAssertionFailure(err))
	}
	return layout
}

func (l Layout) Size() int { return l.size }

func (l Layout) Align() int { return l.align }

// paddedSize is the number of payload bytes the heap reserves for the layout: the size rounded
// up to the header alignment, and never zero
func (l Layout) paddedSize() uintptr {
	return memutils.AlignUp(uintptr(max(l.size, 1)), headerAlign)
}
