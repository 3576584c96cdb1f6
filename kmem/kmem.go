// Package kmem owns the kernel's process-wide memory managers. Init builds the physical memory
// manager from the firmware memory map and arms the heap with it, after which the rest of the
// kernel allocates through Alloc and Free, or takes whole frames through Frames.
package kmem

import (
	"context"
	"sync/atomic"
	"unsafe"

	cerrors "github.com/cockroachdb/errors"
	"github.com/ddos-os/kmem/bootmem"
	"github.com/ddos-os/kmem/internal/utils"
	"github.com/ddos-os/kmem/mem"
	"github.com/ddos-os/kmem/memutils"
	"github.com/ddos-os/kmem/pmm"
	"github.com/ddos-os/kmem/slob"
	"github.com/launchdarkly/go-jsonstream/v3/jwriter"
	"golang.org/x/exp/slog"
)

// ErrAlreadyInitialized is returned when Init is called more than once
var ErrAlreadyInitialized = memutils.ErrAlreadyArmed

// Options contains optional settings for Init
type Options struct {
	// ReservedLowPages is the number of pages, counted from the lowest usable address, that are
	// kept out of the physical memory manager. They can be taken one at a time with AllocLowPage,
	// for uses such as real-mode trampolines that need memory at known low addresses.
	ReservedLowPages int
	// PhysOptions is passed through to the physical memory manager
	PhysOptions pmm.CreateOptions
}

type kernelMemory struct {
	// claimed is taken before anything is built so that a losing Init never touches memory
	// the winner already manages
	claimed atomic.Bool
	frames  utils.WriteOnce[*pmm.PhysAllocator]
	heap    slob.Heap

	lowMutex  utils.SpinLock
	lowMemory *bootmem.MemoryMap
	directMap mem.DirectMap
}

var global kernelMemory

func (k *kernelMemory) init(logger *slog.Logger, regions []bootmem.FirmwareRegion, directMap mem.DirectMap, options Options) error {
	logger = utils.LoggerOrDiscard(logger)

	if !k.claimed.CompareAndSwap(false, true) {
		return ErrAlreadyInitialized
	}

	err := k.build(logger, regions, directMap, options)
	if err != nil && !k.frames.IsSet() {
		// Nothing was built over the regions, so a later call may try again
		k.claimed.Store(false)
	}
	return err
}

func (k *kernelMemory) build(logger *slog.Logger, regions []bootmem.FirmwareRegion, directMap mem.DirectMap, options Options) error {
	memoryMap, err := bootmem.NewMemoryMap(regions)
	if cerrors.Is(err, memutils.ErrNoUsableMemory) {
		// Nothing else can run without memory
		panic(cerrors.WithAssertionFailure(err))
	} else if err != nil {
		return err
	}

	logger.LogAttrs(context.Background(), slog.LevelInfo, "read firmware memory map",
		slog.Int("regions", memoryMap.Len()),
		slog.Int("pages", memoryMap.NumPages()))

	var lowMemory *bootmem.MemoryMap
	if options.ReservedLowPages > 0 {
		lowMemory, memoryMap = memoryMap.SplitAt(options.ReservedLowPages)

		logger.LogAttrs(context.Background(), slog.LevelDebug, "reserved low memory",
			slog.Int("pages", lowMemory.NumPages()))
	}

	allocator, err := pmm.New(logger, memoryMap, directMap, options.PhysOptions)
	if err != nil {
		return cerrors.Wrap(err, "failed to create the physical memory manager")
	}

	err = k.frames.Set(allocator)
	if err != nil {
		return ErrAlreadyInitialized
	}

	k.lowMutex.Lock()
	k.lowMemory = lowMemory
	k.directMap = directMap
	k.lowMutex.Unlock()

	return k.heap.Arm(logger, allocator, directMap)
}

func (k *kernelMemory) alloc(size int, align int) unsafe.Pointer {
	layout, err := slob.NewLayout(size, align)
	if err != nil {
		panic(cerrors.WithAssertionFailure(err))
	}

	return k.heap.Alloc(layout)
}

func (k *kernelMemory) free(ptr unsafe.Pointer, size int, align int) {
	layout, err := slob.NewLayout(size, align)
	if err != nil {
		panic(cerrors.WithAssertionFailure(err))
	}

	k.heap.Dealloc(ptr, layout)
}

func (k *kernelMemory) allocLowPage() (mem.Frame, error) {
	k.lowMutex.Lock()
	defer k.lowMutex.Unlock()

	if k.lowMemory == nil {
		return 0, memutils.ErrOutOfMemory
	}

	frame, err := k.lowMemory.AllocPage()
	if err != nil {
		return 0, err
	}

	memutils.ClearFresh(k.directMap.Pointer(frame.Address()), mem.PageSize)
	return frame, nil
}

func (k *kernelMemory) statsString() string {
	frames := k.frames.MustGet()

	var physStats, heapStats memutils.DetailedStatistics
	frames.CalculateStatistics(&physStats)
	k.heap.CalculateStatistics(&heapStats)

	writer := jwriter.NewWriter()
	objState := writer.Object()

	physObj := objState.Name("Physical").Object()
	physStats.WriteJson(&physObj)
	physObj.End()

	heapObj := objState.Name("Heap").Object()
	heapStats.WriteJson(&heapObj)
	heapObj.End()

	objState.End()

	return string(writer.Bytes())
}

// Init builds the physical memory manager from the firmware memory map and arms the heap. An
// empty memory map is fatal. directMap translates physical addresses to addresses the kernel
// can access. Init returns ErrAlreadyInitialized if it has already succeeded or another call is
// in progress. A call that fails with an error may be retried.
func Init(logger *slog.Logger, regions []bootmem.FirmwareRegion, directMap mem.DirectMap, options Options) error {
	return global.init(logger, regions, directMap, options)
}

// Alloc returns size bytes from the kernel heap aligned to align, which must be a power of two
// no larger than slob.MaxAlign. It panics if called before Init.
func Alloc(size int, align int) unsafe.Pointer {
	return global.alloc(size, align)
}

// Free returns memory obtained from Alloc. size and align must match the original call.
func Free(ptr unsafe.Pointer, size int, align int) {
	global.free(ptr, size, align)
}

// AllocFrames returns 2^order physically contiguous frames. It panics if called before Init or
// if physical memory is exhausted.
func AllocFrames(order int) mem.FrameRange {
	return global.frames.MustGet().Alloc(order)
}

// FreeFrames returns frames obtained from AllocFrames
func FreeFrames(frames mem.FrameRange) {
	global.frames.MustGet().Free(frames)
}

// Frames returns the physical memory manager as a frame allocation capability, for code such as
// page table construction that needs frames but nothing else
func Frames() mem.FrameAllocator {
	return global.frames.MustGet()
}

// AllocLowPage takes one page from the low memory reserved by Options.ReservedLowPages. The page
// is cleared before it is returned.
func AllocLowPage() (mem.Frame, error) {
	return global.allocLowPage()
}

// StatsString returns a json document summarizing physical memory and the heap
func StatsString() string {
	return global.statsString()
}
