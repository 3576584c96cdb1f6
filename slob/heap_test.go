package slob

import (
	"encoding/json"
	"math/rand"
	"sync"
	"testing"
	"unsafe"

	"github.com/ddos-os/kmem/internal/physmem"
	"github.com/ddos-os/kmem/mem"
	mock_mem "github.com/ddos-os/kmem/mem/mocks"
	"github.com/ddos-os/kmem/memutils"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"
)

const testBase mem.PhysAddr = 0x200000

type heapFixture struct {
	heap   *Heap
	frames *mock_mem.MockFrameAllocator
	arena  *physmem.Arena
}

func newHeapFixture(t *testing.T, ctrl *gomock.Controller, pages int) *heapFixture {
	arena, err := physmem.NewArena(testBase, pages*mem.PageSize)
	require.NoError(t, err)
	t.Cleanup(func() {
		require.NoError(t, arena.Close())
	})

	frames := mock_mem.NewMockFrameAllocator(ctrl)

	heap := &Heap{}
	require.NoError(t, heap.Arm(nil, frames, arena.DirectMap()))

	return &heapFixture{heap: heap, frames: frames, arena: arena}
}

func (f *heapFixture) ptr(addr mem.PhysAddr) unsafe.Pointer {
	return f.arena.DirectMap().Pointer(addr)
}

func mustLayout(t *testing.T, size, align int) Layout {
	layout, err := NewLayout(size, align)
	require.NoError(t, err)
	return layout
}

func TestNewLayout(t *testing.T) {
	layout, err := NewLayout(24, 8)
	require.NoError(t, err)
	require.Equal(t, 24, layout.Size())
	require.Equal(t, 8, layout.Align())
	require.Equal(t, uintptr(32), layout.paddedSize())

	layout, err = NewLayout(0, 1)
	require.NoError(t, err)
	require.Equal(t, uintptr(16), layout.paddedSize())

	_, err = NewLayout(8, 3)
	require.ErrorIs(t, err, memutils.PowerOfTwoError)

	_, err = NewLayout(8, 32)
	require.Error(t, err)

	_, err = NewLayout(-1, 8)
	require.Error(t, err)

	require.Equal(t, Layout{size: 16, align: 8}, LayoutOf[blockHeader]())
	require.Equal(t, Layout{size: 1, align: 1}, LayoutOf[byte]())
}

func TestHeapArm(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	var heap Heap
	require.PanicsWithValue(t, memutils.ErrNotArmed, func() { heap.Alloc(LayoutOf[int]()) })
	require.NoError(t, heap.Validate())

	frames := mock_mem.NewMockFrameAllocator(ctrl)
	require.Error(t, heap.Arm(nil, nil, mem.KernelDirectMap))
	require.NoError(t, heap.Arm(nil, frames, mem.KernelDirectMap))
	require.ErrorIs(t, heap.Arm(nil, frames, mem.KernelDirectMap), memutils.ErrAlreadyArmed)
}

func TestHeapSplitsAndReusesBlocks(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	f := newHeapFixture(t, ctrl, 4)
	f.frames.EXPECT().Alloc(0).Return(mem.NewFrameRange(testBase, 1))

	layout := mustLayout(t, 32, 8)

	first := f.heap.Alloc(layout)
	require.Equal(t, f.ptr(testBase+16), first)

	second := f.heap.Alloc(layout)
	require.Equal(t, f.ptr(testBase+64), second)
	require.NoError(t, f.heap.Validate())

	f.heap.Dealloc(first, layout)
	require.NoError(t, f.heap.Validate())

	// First fit finds the exact-size hole left by the first allocation
	third := f.heap.Alloc(layout)
	require.Equal(t, first, third)

	f.heap.Dealloc(second, layout)
	f.heap.Dealloc(third, layout)
	require.NoError(t, f.heap.Validate())

	var stats memutils.DetailedStatistics
	f.heap.CalculateStatistics(&stats)
	require.Equal(t, 1, stats.FreeRangeCount)
	require.Equal(t, mem.PageSize-16, stats.FreeRangeSizeMax)
}

func TestHeapPayloadsAreAligned(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	f := newHeapFixture(t, ctrl, 4)
	f.frames.EXPECT().Alloc(0).Return(mem.NewFrameRange(testBase, 1))

	for _, size := range []int{1, 3, 8, 17, 31, 100} {
		ptr := f.heap.Alloc(mustLayout(t, size, 16))
		require.Zero(t, uintptr(ptr)%16, "size %d", size)
	}
}

func TestHeapRoundTripCoalesces(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	f := newHeapFixture(t, ctrl, 4)
	// Exactly one page is ever requested: once everything is freed, the page coalesces back into
	// a single block that can hold the final allocation
	f.frames.EXPECT().Alloc(0).Return(mem.NewFrameRange(testBase, 1)).Times(1)

	sizes := []int{24, 100, 16, 300, 64, 500, 8, 1000}
	ptrs := make([]unsafe.Pointer, len(sizes))
	for i, size := range sizes {
		ptrs[i] = f.heap.Alloc(mustLayout(t, size, 8))

		payload := unsafe.Slice((*byte)(ptrs[i]), size)
		for j := range payload {
			payload[j] = byte(i)
		}
	}
	require.NoError(t, f.heap.Validate())

	for _, i := range rand.New(rand.NewSource(3)).Perm(len(sizes)) {
		payload := unsafe.Slice((*byte)(ptrs[i]), sizes[i])
		for _, b := range payload {
			require.Equal(t, byte(i), b)
		}

		f.heap.Dealloc(ptrs[i], mustLayout(t, sizes[i], 8))
		require.NoError(t, f.heap.Validate())
	}

	whole := mustLayout(t, mem.PageSize-16, 16)
	ptr := f.heap.Alloc(whole)
	require.Equal(t, f.ptr(testBase+16), ptr)

	f.heap.Dealloc(ptr, whole)
	require.NoError(t, f.heap.Validate())
}

func TestHeapSmallRemainderStaysWithAllocation(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	f := newHeapFixture(t, ctrl, 4)
	gomock.InOrder(
		f.frames.EXPECT().Alloc(0).Return(mem.NewFrameRange(testBase, 1)),
		f.frames.EXPECT().Alloc(0).Return(mem.NewFrameRange(testBase+mem.PageSize, 1)),
	)

	// Leaves 16 bytes, not enough for a header and a payload
	big := f.heap.Alloc(mustLayout(t, mem.PageSize-32, 16))
	require.Equal(t, f.ptr(testBase+16), big)

	var stats memutils.DetailedStatistics
	f.heap.CalculateStatistics(&stats)
	require.Equal(t, mem.PageSize-16, stats.AllocationBytes)
	require.Zero(t, stats.FreeRangeCount)

	small := f.heap.Alloc(mustLayout(t, 8, 8))
	require.Equal(t, f.ptr(testBase+mem.PageSize+16), small)
	require.NoError(t, f.heap.Validate())
}

func TestHeapGrowsByPowerOfTwoPages(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	f := newHeapFixture(t, ctrl, 8)
	f.frames.EXPECT().Alloc(2).Return(mem.NewFrameRange(testBase, 4))

	// 9000 bytes plus a header need three pages, which rounds up to four
	layout := mustLayout(t, 9000, 8)
	ptr := f.heap.Alloc(layout)
	require.Equal(t, f.ptr(testBase+16), ptr)

	var stats memutils.DetailedStatistics
	f.heap.CalculateStatistics(&stats)
	require.Equal(t, 1, stats.RegionCount)
	require.Equal(t, 4*mem.PageSize, stats.RegionBytes)
	require.Equal(t, 1, stats.FreeRangeCount)
	require.NoError(t, f.heap.Validate())

	require.Panics(t, func() { f.heap.Alloc(mustLayout(t, 16*1024*1024, 8)) })
}

func TestHeapDoesNotMergeAcrossPages(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	f := newHeapFixture(t, ctrl, 4)
	f.frames.EXPECT().Alloc(1).Return(mem.NewFrameRange(testBase, 2))

	layout := mustLayout(t, mem.PageSize, 16)
	ptr := f.heap.Alloc(layout)
	f.heap.Dealloc(ptr, layout)

	// The remainder's header sits on the second page, so the two blocks stay apart
	var stats memutils.DetailedStatistics
	f.heap.CalculateStatistics(&stats)
	require.Equal(t, 2, stats.FreeRangeCount)
	require.Equal(t, mem.PageSize, stats.FreeRangeSizeMax)
	require.Equal(t, 2*mem.PageSize-mem.PageSize-32, stats.FreeRangeSizeMin)
	require.NoError(t, f.heap.Validate())
}

func TestHeapDoubleFreePanics(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	f := newHeapFixture(t, ctrl, 4)
	f.frames.EXPECT().Alloc(0).Return(mem.NewFrameRange(testBase, 1))

	layout := mustLayout(t, 64, 8)
	first := f.heap.Alloc(layout)
	second := f.heap.Alloc(layout)
	keep := f.heap.Alloc(layout)

	f.heap.Dealloc(second, layout)
	require.Panics(t, func() { f.heap.Dealloc(second, layout) })

	// Merged into the free block that follows it
	f.heap.Dealloc(first, layout)
	require.Panics(t, func() { f.heap.Dealloc(second, layout) })
	require.Panics(t, func() { f.heap.Dealloc(first, layout) })

	require.Panics(t, func() { f.heap.Dealloc(nil, layout) })

	f.heap.Dealloc(keep, layout)
	require.NoError(t, f.heap.Validate())
}

func TestHeapConcurrentUse(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	const pages = 64
	f := newHeapFixture(t, ctrl, pages)

	var (
		pageMutex sync.Mutex
		nextPage  int
	)
	f.frames.EXPECT().Alloc(0).DoAndReturn(func(order int) mem.FrameRange {
		pageMutex.Lock()
		defer pageMutex.Unlock()

		frames := mem.NewFrameRange(testBase+mem.PhysAddr(nextPage*mem.PageSize), 1)
		nextPage++
		return frames
	}).AnyTimes()

	var wg sync.WaitGroup
	const workers = 8
	wg.Add(workers)
	for worker := 0; worker < workers; worker++ {
		go func(worker int) {
			defer wg.Done()

			rng := rand.New(rand.NewSource(int64(worker)))
			for i := 0; i < 100; i++ {
				layout, _ := NewLayout(1+rng.Intn(200), 8)
				ptr := f.heap.Alloc(layout)
				*(*byte)(ptr) = byte(worker)
				if *(*byte)(ptr) != byte(worker) {
					panic("heap block shared between workers")
				}
				f.heap.Dealloc(ptr, layout)
			}
		}(worker)
	}
	wg.Wait()

	require.NoError(t, f.heap.Validate())

	var stats memutils.DetailedStatistics
	f.heap.CalculateStatistics(&stats)
	require.Zero(t, stats.AllocationCount)
	require.LessOrEqual(t, stats.RegionCount, pages)
}

func TestHeapBuildStatsString(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	f := newHeapFixture(t, ctrl, 4)
	f.frames.EXPECT().Alloc(0).Return(mem.NewFrameRange(testBase, 1))

	f.heap.Alloc(mustLayout(t, 32, 8))

	var doc struct {
		Armed bool
		Total struct {
			RegionCount     int
			AllocationCount int
			AllocationBytes int
		}
		Chunks []struct {
			Address string
			Order   int
		}
		FreeBlocks []struct {
			Address string
			Size    int
		}
	}
	require.NoError(t, json.Unmarshal([]byte(f.heap.BuildStatsString(true)), &doc))

	require.True(t, doc.Armed)
	require.Equal(t, 1, doc.Total.RegionCount)
	require.Equal(t, 1, doc.Total.AllocationCount)
	require.Equal(t, 32, doc.Total.AllocationBytes)
	require.Len(t, doc.Chunks, 1)
	require.Equal(t, "0x200000", doc.Chunks[0].Address)
	require.Len(t, doc.FreeBlocks, 1)
	require.Equal(t, "0x200030", doc.FreeBlocks[0].Address)
	require.Equal(t, mem.PageSize-32-32, doc.FreeBlocks[0].Size)

	var empty Heap
	require.JSONEq(t, `{"Armed":false,"Total":{"RegionCount":0,"RegionBytes":0,"AllocationCount":0,"AllocationBytes":0,"FreeRangeCount":0}}`,
		empty.BuildStatsString(true))
}
