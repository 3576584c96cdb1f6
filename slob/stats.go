package slob

import (
	"unsafe"

	cerrors "github.com/cockroachdb/errors"
	"github.com/ddos-os/kmem/mem"
	"github.com/ddos-os/kmem/memutils"
	"github.com/launchdarkly/go-jsonstream/v3/jwriter"
	"golang.org/x/exp/slices"
)

func (h *Heap) visitFreeBlocks(visit func(block *blockHeader)) {
	for addr := h.head; addr != 0; {
		block := headerAt(addr)
		visit(block)
		addr = block.next
	}
}

// sortedChunks returns the physical address of every chunk the heap has grown by, in ascending order
func (h *Heap) sortedChunks() []mem.PhysAddr {
	if h.chunks == nil {
		return nil
	}

	chunks := make([]mem.PhysAddr, 0, h.chunks.Count())
	h.chunks.Iter(func(addr mem.PhysAddr, order int) bool {
		chunks = append(chunks, addr)
		return false
	})
	slices.Sort(chunks)

	return chunks
}

func (h *Heap) chunkBytes(addr mem.PhysAddr) int {
	order, _ := h.chunks.Get(addr)
	return mem.PageSize << order
}

// CalculateStatistics populates stats with the heap's chunks, live allocations and free blocks.
// Header bytes are not counted as allocated or free.
func (h *Heap) CalculateStatistics(stats *memutils.DetailedStatistics) {
	h.mutex.Lock()
	defer h.mutex.Unlock()

	stats.Clear()
	h.addStatistics(stats)
}

func (h *Heap) addStatistics(stats *memutils.DetailedStatistics) {
	for _, addr := range h.sortedChunks() {
		stats.RegionCount++
		stats.RegionBytes += h.chunkBytes(addr)
	}

	stats.AllocationCount += h.allocationCount
	stats.AllocationBytes += h.allocationBytes

	h.visitFreeBlocks(func(block *blockHeader) {
		stats.AddFreeRange(int(block.size))
	})
}

// Validate walks the free list and checks that it is in ascending address order, that no free
// blocks overlap, that every free block lies inside memory the heap owns, and that every byte
// the heap owns is accounted for.
func (h *Heap) Validate() error {
	state, armed := h.armed.Get()
	if !armed {
		return nil
	}

	h.mutex.Lock()
	defer h.mutex.Unlock()

	chunks := h.sortedChunks()
	ownedBytes := 0
	for _, addr := range chunks {
		ownedBytes += h.chunkBytes(addr)
	}

	var err error
	freeBlocks, freeBytes := 0, 0
	var previous *blockHeader

	h.visitFreeBlocks(func(block *blockHeader) {
		if err != nil {
			return
		}

		if previous != nil && block.addr() < previous.end() {
			err = cerrors.Newf("free block at 0x%x overlaps or precedes free block at 0x%x", block.addr(), previous.addr())
			return
		}

		if block.size%headerAlign != 0 || block.size == 0 {
			err = cerrors.Newf("free block at 0x%x has invalid size %d", block.addr(), block.size)
			return
		}

		phys := state.directMap.PhysOf(unsafe.Pointer(block))
		index, found := slices.BinarySearch(chunks, phys)
		if !found {
			index--
		}
		if index < 0 || phys+mem.PhysAddr(headerSize+block.size) > chunks[index]+mem.PhysAddr(h.chunkBytes(chunks[index])) {
			err = cerrors.Newf("free block at %s with %d bytes lies outside of the heap", phys, block.size)
			return
		}

		freeBlocks++
		freeBytes += int(block.size)
		previous = block
	})
	if err != nil {
		return err
	}

	accounted := freeBytes + h.allocationBytes + (freeBlocks+h.allocationCount)*int(headerSize)
	if accounted != ownedBytes {
		return cerrors.Newf("heap owns %d bytes but accounts for %d", ownedBytes, accounted)
	}

	return nil
}

// BuildStatsString returns a json document describing the heap. When detailedMap is true, every
// chunk and every free block is listed.
func (h *Heap) BuildStatsString(detailedMap bool) string {
	state, armed := h.armed.Get()

	h.mutex.Lock()
	defer h.mutex.Unlock()

	var stats memutils.DetailedStatistics
	stats.Clear()
	h.addStatistics(&stats)

	writer := jwriter.NewWriter()
	objState := writer.Object()

	objState.Name("Armed").Bool(armed)

	totalObj := objState.Name("Total").Object()
	stats.WriteJson(&totalObj)
	totalObj.End()

	if detailedMap && armed {
		chunksArray := objState.Name("Chunks").Array()
		for _, addr := range h.sortedChunks() {
			order, _ := h.chunks.Get(addr)

			obj := chunksArray.Object()
			obj.Name("Address").String(addr.String())
			obj.Name("Order").Int(order)
			obj.End()
		}
		chunksArray.End()

		freeArray := objState.Name("FreeBlocks").Array()
		h.visitFreeBlocks(func(block *blockHeader) {
			obj := freeArray.Object()
			defer obj.End()

			obj.Name("Address").String(state.directMap.PhysOf(unsafe.Pointer(block)).String())
			obj.Name("Size").Int(int(block.size))
		})
		freeArray.End()
	}

	objState.End()

	return string(writer.Bytes())
}
