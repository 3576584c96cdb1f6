// Package slob implements the kernel heap: a single address-ordered free list of variable-size
// blocks ("simple list of blocks") living inside the memory it manages, grown a power-of-two
// number of pages at a time from a frame allocator.
package slob

import (
	"context"
	"unsafe"

	cerrors "github.com/cockroachdb/errors"
	"github.com/ddos-os/kmem/internal/utils"
	"github.com/ddos-os/kmem/mem"
	"github.com/ddos-os/kmem/memutils"
	"github.com/ddos-os/kmem/memutils/metadata"
	"github.com/dolthub/swiss"
	"golang.org/x/exp/slog"
)

// blockHeader sits immediately before the payload of every block, free or allocated. size is the
// number of payload bytes. next is the address of the next free block's header, and is only
// meaningful while the block is on the free list.
type blockHeader struct {
	size uintptr
	next uintptr
}

const (
	headerSize  = unsafe.Sizeof(blockHeader{})
	headerAlign = unsafe.Alignof(blockHeader{}) * 2

	// MaxAlign is the largest alignment the heap can honor. Every payload is aligned to it.
	MaxAlign = int(headerAlign)

	// minSplitPayload is the smallest payload worth leaving behind when a block is split
	minSplitPayload = headerAlign

	pageMask = uintptr(mem.PageSize - 1)
)

func headerAt(addr uintptr) *blockHeader {
	return (*blockHeader)(unsafe.Pointer(addr))
}

func (b *blockHeader) addr() uintptr {
	return uintptr(unsafe.Pointer(b))
}

func (b *blockHeader) payload() unsafe.Pointer {
	return unsafe.Add(unsafe.Pointer(b), headerSize)
}

// end returns the address just past the block's payload
func (b *blockHeader) end() uintptr {
	return b.addr() + headerSize + b.size
}

type armedState struct {
	logger    *slog.Logger
	frames    mem.FrameAllocator
	directMap mem.DirectMap
}

// Heap is a first-fit allocator over an address-ordered free list. The zero value is an empty
// heap that must be armed with Arm before use.
type Heap struct {
	armed utils.WriteOnce[armedState]

	mutex utils.SpinLock
	head  uintptr

	// chunks maps the physical address of every run of frames the heap has taken to its order
	chunks          *swiss.Map[mem.PhysAddr, int]
	allocationCount int
	allocationBytes int
}

// Arm supplies the heap with the frame allocator it grows from and the direct map through which
// those frames are reached. It can only be called once; later calls return
// memutils.ErrAlreadyArmed.
func (h *Heap) Arm(logger *slog.Logger, frames mem.FrameAllocator, directMap mem.DirectMap) error {
	if frames == nil {
		return cerrors.New("heap cannot be armed without a frame allocator")
	}

	h.mutex.Lock()
	defer h.mutex.Unlock()

	err := h.armed.Set(armedState{
		logger:    utils.LoggerOrDiscard(logger),
		frames:    frames,
		directMap: directMap,
	})
	if err != nil {
		return err
	}

	h.chunks = swiss.NewMap[mem.PhysAddr, int](8)
	return nil
}

// Alloc returns a pointer to layout.Size() bytes aligned to layout.Align(). The memory is not
// cleared. The heap grows as needed; running out of physical memory while growing is fatal.
func (h *Heap) Alloc(layout Layout) unsafe.Pointer {
	state := h.armed.MustGet()

	h.mutex.Lock()
	defer h.mutex.Unlock()

	size := layout.paddedSize()

	for attempt := 0; attempt < 2; attempt++ {
		block := h.takeFirstFit(size)
		if block != nil {
			h.allocationCount++
			h.allocationBytes += int(block.size)
			memutils.DebugPoison(block.payload(), int(block.size))
			return block.payload()
		}

		h.morecore(&state, size)
	}

	panic(cerrors.AssertionFailedf("heap could not satisfy %d bytes immediately after growing", size))
}

// takeFirstFit unlinks the first free block that can hold size bytes. A larger block is split:
// the allocation takes its head and the remainder stays on the list in its place, unless the
// remainder would be too small to be useful, in which case the whole block is taken.
func (h *Heap) takeFirstFit(size uintptr) *blockHeader {
	var prev *blockHeader

	for addr := h.head; addr != 0; {
		block := headerAt(addr)

		if block.size >= size {
			next := block.next

			if block.size-size >= headerSize+minSplitPayload {
				rest := headerAt(addr + headerSize + size)
				rest.size = block.size - size - headerSize
				rest.next = block.next
				block.size = size
				next = rest.addr()
			}

			if prev == nil {
				h.head = next
			} else {
				prev.next = next
			}

			block.next = 0
			return block
		}

		prev = block
		addr = block.next
	}

	return nil
}

// morecore takes enough frames from the frame allocator to hold a size byte payload and its
// header, and puts them on the free list
func (h *Heap) morecore(state *armedState, size uintptr) {
	pages := memutils.DivCeil(int(size+headerSize), mem.PageSize)
	order := memutils.Log2(memutils.NextPow2(uint(pages)))
	if order > metadata.MaxOrder {
		panic(cerrors.AssertionFailedf("heap allocation of %d bytes needs %d pages, more than the largest frame allocation", size, pages))
	}

	frames := state.frames.Alloc(order)
	h.chunks.Put(frames.StartAddress(), order)

	block := (*blockHeader)(state.directMap.Pointer(frames.StartAddress()))
	block.size = uintptr(frames.Size()) - headerSize
	block.next = 0

	prev, next := h.findInsertion(block)
	h.link(block, prev, next)

	state.logger.LogAttrs(context.Background(), slog.LevelDebug, "heap grew",
		slog.String("frames", frames.String()),
		slog.Int("order", order),
		slog.Int("request", int(size)))
}

// Dealloc returns memory obtained from Alloc with the same layout. Freeing a pointer that is
// already free panics.
func (h *Heap) Dealloc(ptr unsafe.Pointer, layout Layout) {
	h.armed.MustGet()

	if ptr == nil {
		panic(cerrors.AssertionFailedf("attempted to free a nil pointer with layout %+v", layout))
	}

	h.mutex.Lock()
	defer h.mutex.Unlock()

	block := headerAt(uintptr(ptr) - headerSize)

	prev, next := h.findInsertion(block)

	if block.size < layout.paddedSize() {
		panic(cerrors.AssertionFailedf("block at %p holds %d bytes, which is too small for layout %+v", ptr, block.size, layout))
	}

	h.allocationCount--
	h.allocationBytes -= int(block.size)

	memutils.DebugPoison(ptr, int(block.size))
	h.link(block, prev, next)
}

// findInsertion locates the free blocks that would come immediately before and after block in
// address order. It panics if block is already free, either on its own or as part of a merged
// free block.
func (h *Heap) findInsertion(block *blockHeader) (prev *blockHeader, next *blockHeader) {
	addr := block.addr()

	for current := h.head; current != 0; {
		free := headerAt(current)

		if current == addr {
			panic(cerrors.AssertionFailedf("double free of heap block at 0x%x", addr))
		}
		if current > addr {
			if block.size > current-addr-headerSize {
				panic(cerrors.AssertionFailedf("heap block at 0x%x with %d bytes overlaps free block at 0x%x", addr, block.size, current))
			}
			return prev, free
		}
		if addr < free.end() {
			panic(cerrors.AssertionFailedf("double free of heap block at 0x%x, inside free block at 0x%x", addr, current))
		}

		prev = free
		current = free.next
	}

	return prev, nil
}

// link splices block in between prev and next, merging it with either neighbor that is
// contiguous with it and shares its page
func (h *Heap) link(block *blockHeader, prev *blockHeader, next *blockHeader) {
	if prev != nil && canMerge(prev, block) {
		prev.size += headerSize + block.size
		block = prev
	} else if prev != nil {
		prev.next = block.addr()
	} else {
		h.head = block.addr()
	}

	if next != nil && canMerge(block, next) {
		block.size += headerSize + next.size
		block.next = next.next
	} else if next != nil {
		block.next = next.addr()
	} else {
		block.next = 0
	}
}

func canMerge(first *blockHeader, second *blockHeader) bool {
	return first.end() == second.addr() && first.addr()&^pageMask == second.addr()&^pageMask
}
