package kmem

import (
	"encoding/json"
	"sync"
	"testing"
	"unsafe"

	"github.com/ddos-os/kmem/bootmem"
	"github.com/ddos-os/kmem/internal/physmem"
	"github.com/ddos-os/kmem/mem"
	"github.com/ddos-os/kmem/memutils"
	"github.com/ddos-os/kmem/pmm"
	"github.com/stretchr/testify/require"
)

const testBase mem.PhysAddr = 0x400000

func newTestArena(t *testing.T, pages int) *physmem.Arena {
	arena, err := physmem.NewArena(testBase, pages*mem.PageSize)
	require.NoError(t, err)
	t.Cleanup(func() {
		require.NoError(t, arena.Close())
	})
	return arena
}

func initTestMemory(t *testing.T, options Options) (*kernelMemory, *physmem.Arena) {
	arena := newTestArena(t, 256)

	k := &kernelMemory{}
	err := k.init(nil, []bootmem.FirmwareRegion{
		arena.FirmwareRegion(bootmem.RegionUsable),
	}, arena.DirectMap(), options)
	require.NoError(t, err)

	return k, arena
}

func TestInit_NoUsableMemory(t *testing.T) {
	arena := newTestArena(t, 16)

	k := &kernelMemory{}
	require.Panics(t, func() {
		_ = k.init(nil, []bootmem.FirmwareRegion{
			arena.FirmwareRegion(bootmem.RegionReserved),
		}, arena.DirectMap(), Options{})
	})
	require.False(t, k.frames.IsSet())
}

func TestInit_Twice(t *testing.T) {
	k, arena := initTestMemory(t, Options{})

	err := k.init(nil, []bootmem.FirmwareRegion{
		arena.FirmwareRegion(bootmem.RegionUsable),
	}, arena.DirectMap(), Options{})
	require.ErrorIs(t, err, ErrAlreadyInitialized)
}

func TestInit_BadStrategy(t *testing.T) {
	arena := newTestArena(t, 16)

	k := &kernelMemory{}
	err := k.init(nil, []bootmem.FirmwareRegion{
		arena.FirmwareRegion(bootmem.RegionUsable),
	}, arena.DirectMap(), Options{PhysOptions: pmm.CreateOptions{Strategy: pmm.ZoneStrategy(99)}})
	require.Error(t, err)
	require.False(t, k.frames.IsSet())
}

func TestInit_RetryAfterError(t *testing.T) {
	arena := newTestArena(t, 16)
	regions := []bootmem.FirmwareRegion{arena.FirmwareRegion(bootmem.RegionUsable)}

	k := &kernelMemory{}
	err := k.init(nil, regions, arena.DirectMap(), Options{PhysOptions: pmm.CreateOptions{Strategy: pmm.ZoneStrategy(99)}})
	require.Error(t, err)
	require.NotErrorIs(t, err, ErrAlreadyInitialized)

	require.NoError(t, k.init(nil, regions, arena.DirectMap(), Options{}))
	require.True(t, k.frames.IsSet())
}

func TestInit_Concurrent(t *testing.T) {
	arena := newTestArena(t, 64)
	regions := []bootmem.FirmwareRegion{arena.FirmwareRegion(bootmem.RegionUsable)}

	k := &kernelMemory{}

	const callers = 8
	errs := make([]error, callers)
	var wg sync.WaitGroup
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func(index int) {
			defer wg.Done()
			errs[index] = k.init(nil, regions, arena.DirectMap(), Options{})
		}(i)
	}
	wg.Wait()

	succeeded := 0
	for _, err := range errs {
		if err == nil {
			succeeded++
		} else {
			require.ErrorIs(t, err, ErrAlreadyInitialized)
		}
	}
	require.Equal(t, 1, succeeded)

	frames := k.frames.MustGet()
	require.NoError(t, frames.Validate())
	require.Equal(t, frames.TotalPages(), frames.FreePages())

	ptr := k.alloc(48, 16)
	require.NoError(t, k.heap.Validate())
	k.free(ptr, 48, 16)
}

func TestReservedLowPages(t *testing.T) {
	k, _ := initTestMemory(t, Options{ReservedLowPages: 4})

	frames := k.frames.MustGet()
	// 252 pages remain: one page of zone metadata and 250 usable
	require.Equal(t, 250, frames.TotalPages())

	for i := 0; i < 4; i++ {
		frame, err := k.allocLowPage()
		require.NoError(t, err)
		require.Equal(t, testBase+mem.PhysAddr(i*mem.PageSize), frame.Address())
	}

	_, err := k.allocLowPage()
	require.ErrorIs(t, err, memutils.ErrOutOfMemory)

	r := frames.Alloc(0)
	require.Equal(t, testBase+5*mem.PageSize, r.StartAddress())
	frames.Free(r)
}

func TestAllocLowPage_ClearsStaleData(t *testing.T) {
	arena := newTestArena(t, 64)

	stale := arena.Bytes(testBase, 2*mem.PageSize)
	for i := range stale {
		stale[i] = 0x5A
	}

	k := &kernelMemory{}
	err := k.init(nil, []bootmem.FirmwareRegion{
		arena.FirmwareRegion(bootmem.RegionUsable),
	}, arena.DirectMap(), Options{ReservedLowPages: 2})
	require.NoError(t, err)

	frame, err := k.allocLowPage()
	require.NoError(t, err)
	require.Equal(t, testBase, frame.Address())

	fill := memutils.FreshFill()
	page := arena.Bytes(frame.Address(), mem.PageSize)
	for i, b := range page {
		require.Equalf(t, fill, b, "byte %d of %s", i, frame)
	}

	// The second reserved page is only cleared when it is handed out
	require.Equal(t, byte(0x5A), arena.Bytes(testBase+mem.PageSize, 1)[0])
}

func TestAllocLowPage_NoneReserved(t *testing.T) {
	k, _ := initTestMemory(t, Options{})

	_, err := k.allocLowPage()
	require.ErrorIs(t, err, memutils.ErrOutOfMemory)
}

func TestHeapUsesPhysicalMemory(t *testing.T) {
	k, arena := initTestMemory(t, Options{})
	frames := k.frames.MustGet()
	freeBefore := frames.FreePages()

	ptr := k.alloc(64, 8)
	require.NotNil(t, ptr)
	require.True(t, arena.Contains(arena.DirectMap().PhysOf(ptr), 64))
	require.Equal(t, freeBefore-1, frames.FreePages())

	data := unsafe.Slice((*byte)(ptr), 64)
	for i := range data {
		data[i] = byte(i)
	}

	k.free(ptr, 64, 8)
	require.NoError(t, k.heap.Validate())

	// The heap keeps its chunk after the allocation is returned
	second := k.alloc(64, 8)
	require.Equal(t, ptr, second)
	require.Equal(t, freeBefore-1, frames.FreePages())
	k.free(second, 64, 8)
}

func TestAlloc_BadLayout(t *testing.T) {
	k, _ := initTestMemory(t, Options{})

	require.Panics(t, func() {
		k.alloc(16, 3)
	})
	require.Panics(t, func() {
		k.alloc(16, 64)
	})
}

func TestStatsString(t *testing.T) {
	k, _ := initTestMemory(t, Options{})

	ptr := k.alloc(100, 16)

	var stats struct {
		Physical struct {
			RegionCount     int
			RegionBytes     int
			AllocationCount int
		}
		Heap struct {
			RegionCount     int
			AllocationCount int
			AllocationBytes int
		}
	}
	require.NoError(t, json.Unmarshal([]byte(k.statsString()), &stats))

	require.Equal(t, 1, stats.Physical.RegionCount)
	require.Equal(t, 1, stats.Physical.AllocationCount)
	require.Equal(t, 1, stats.Heap.RegionCount)
	require.Equal(t, 1, stats.Heap.AllocationCount)
	require.Equal(t, 112, stats.Heap.AllocationBytes)

	k.free(ptr, 100, 16)
}

func TestGlobalEntryPoints(t *testing.T) {
	require.Panics(t, func() {
		AllocFrames(0)
	})

	arena := newTestArena(t, 128)
	err := Init(nil, []bootmem.FirmwareRegion{
		arena.FirmwareRegion(bootmem.RegionUsable),
	}, arena.DirectMap(), Options{ReservedLowPages: 1})
	require.NoError(t, err)

	err = Init(nil, []bootmem.FirmwareRegion{
		arena.FirmwareRegion(bootmem.RegionUsable),
	}, arena.DirectMap(), Options{})
	require.ErrorIs(t, err, ErrAlreadyInitialized)

	frame, err := AllocLowPage()
	require.NoError(t, err)
	require.Equal(t, testBase, frame.Address())

	r := AllocFrames(2)
	require.Equal(t, 4, r.Pages())
	require.True(t, arena.Contains(r.StartAddress(), r.Size()))

	var capability mem.FrameAllocator = Frames()
	other := capability.Alloc(0)
	require.False(t, r.Overlaps(other))
	capability.Free(other)
	FreeFrames(r)

	ptr := Alloc(32, 16)
	require.True(t, arena.Contains(arena.DirectMap().PhysOf(ptr), 32))
	Free(ptr, 32, 16)

	require.Contains(t, StatsString(), `"Physical"`)
	require.NoError(t, global.heap.Validate())
	require.NoError(t, global.frames.MustGet().Validate())
}
