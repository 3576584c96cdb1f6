// Package mem contains the address types, page constants and the frame
// allocation capability shared by the physical memory manager and its
// consumers.
package mem

import "fmt"

const (
	// PageShift is equal to log2(PageSize). It is used to convert a physical
	// address to a frame number (shift right by PageShift) and vice-versa.
	PageShift = 12

	// PageSize is the size in bytes of a single frame.
	PageSize = 1 << PageShift

	// PhysOffset is the virtual address at which the kernel direct-maps all of
	// physical memory.
	PhysOffset uint64 = 0xFFFF8000_00000000
)

// PhysAddr is a physical memory address.
type PhysAddr uint64

// VirtAddr is a virtual memory address.
type VirtAddr uint64

// IsPageAligned returns true if the address is a multiple of PageSize.
func (a PhysAddr) IsPageAligned() bool {
	return a&(PageSize-1) == 0
}

// PageAlignUp rounds the address up to the next page boundary.
func (a PhysAddr) PageAlignUp() PhysAddr {
	return (a + PageSize - 1) &^ (PageSize - 1)
}

// PageAlignDown rounds the address down to the containing page boundary.
func (a PhysAddr) PageAlignDown() PhysAddr {
	return a &^ (PageSize - 1)
}

func (a PhysAddr) String() string {
	return fmt.Sprintf("0x%x", uint64(a))
}

func (a VirtAddr) String() string {
	return fmt.Sprintf("0x%x", uint64(a))
}

// Frame describes a physical page index.
type Frame uint64

// FrameContaining returns the frame that contains the provided address.
func FrameContaining(addr PhysAddr) Frame {
	return Frame(addr >> PageShift)
}

// Address returns the physical address of the first byte of the frame.
func (f Frame) Address() PhysAddr {
	return PhysAddr(f << PageShift)
}

func (f Frame) String() string {
	return fmt.Sprintf("Frame(%s)", f.Address())
}

// FrameRange is a half-open range [Start, End) of physically contiguous frames.
type FrameRange struct {
	Start Frame
	End   Frame
}

// NewFrameRange builds the range of count frames beginning at addr.
func NewFrameRange(addr PhysAddr, count int) FrameRange {
	start := FrameContaining(addr)
	return FrameRange{Start: start, End: start + Frame(count)}
}

// Pages returns the number of frames in the range.
func (r FrameRange) Pages() int {
	return int(r.End - r.Start)
}

// Size returns the number of bytes in the range.
func (r FrameRange) Size() int {
	return r.Pages() << PageShift
}

// StartAddress returns the physical address of the first frame in the range.
func (r FrameRange) StartAddress() PhysAddr {
	return r.Start.Address()
}

// EndAddress returns the physical address one past the last byte of the range.
func (r FrameRange) EndAddress() PhysAddr {
	return r.End.Address()
}

// Overlaps returns true if the two ranges share at least one frame.
func (r FrameRange) Overlaps(other FrameRange) bool {
	return r.Start < other.End && other.Start < r.End
}

func (r FrameRange) String() string {
	return fmt.Sprintf("[%s - %s)", r.StartAddress(), r.EndAddress())
}

// FrameAllocator is the narrow page-acquisition capability handed to code
// that needs physical frames (page-table construction, the kernel heap)
// without depending on the physical allocator itself.
//
// Alloc returns 2^order physically contiguous, page-aligned frames. There is
// no failure return: implementations halt the kernel when memory is
// exhausted. Free returns a range previously obtained from Alloc.
type FrameAllocator interface {
	Alloc(order int) FrameRange
	Free(r FrameRange)
}
