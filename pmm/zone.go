package pmm

import (
	"unsafe"

	cerrors "github.com/cockroachdb/errors"
	"github.com/ddos-os/kmem/bootmem"
	"github.com/ddos-os/kmem/internal/utils"
	"github.com/ddos-os/kmem/mem"
	"github.com/ddos-os/kmem/memutils"
	"github.com/ddos-os/kmem/memutils/metadata"
)

func metadataLen(usablePages int) int {
	return metadata.TreeStorageLen(usablePages) * int(unsafe.Sizeof(metadata.Block(0)))
}

// zone is one physically contiguous run of frames and the buddy tree that tracks them. All
// access to the tree goes through the zone's lock.
type zone struct {
	mutex    utils.OptionalSpinLock
	frames   mem.FrameRange
	reserved bootmem.Region
	metadata metadata.ZoneMetadata
}

func newZone(region bootmem.Region, usablePages, metadataPages int, directMap mem.DirectMap, useLock bool) (*zone, error) {
	reserved, rest := region.SplitAt(metadataPages * mem.PageSize)

	bump := bootmem.NewRegionBumpAllocator(reserved)
	storageLen := metadata.TreeStorageLen(usablePages)
	addr, ok := bump.Alloc(metadataLen(usablePages), uint(unsafe.Alignof(metadata.Block(0))))
	if !ok {
		panic(cerrors.AssertionFailedf("zone metadata for %d pages does not fit in %d reserved pages", usablePages, metadataPages))
	}

	storage := unsafe.Slice((*metadata.Block)(directMap.Pointer(addr)), storageLen)
	tree, err := metadata.NewBuddyTree(usablePages, storage)
	if err != nil {
		return nil, cerrors.Wrapf(err, "failed to build zone for region %s", region)
	}

	return &zone{
		mutex:    utils.OptionalSpinLock{UseLock: useLock},
		frames:   mem.NewFrameRange(rest.Addr, usablePages),
		reserved: reserved,
		metadata: tree,
	}, nil
}

func (z *zone) alloc(order int) (mem.FrameRange, bool) {
	z.mutex.Lock()
	defer z.mutex.Unlock()

	page, ok := z.metadata.Alloc(order)
	if !ok {
		return mem.FrameRange{}, false
	}
	memutils.DebugValidate(z.metadata)

	start := z.frames.Start + mem.Frame(page)
	return mem.FrameRange{Start: start, End: start + mem.Frame(1)<<order}, true
}

func (z *zone) contains(frames mem.FrameRange) bool {
	return frames.Start < frames.End && frames.Start >= z.frames.Start && frames.End <= z.frames.End
}

func (z *zone) free(frames mem.FrameRange) {
	z.mutex.Lock()
	defer z.mutex.Unlock()

	z.metadata.Free(int(frames.Start-z.frames.Start), frames.Pages())
	memutils.DebugValidate(z.metadata)
}

func (z *zone) freePages() int {
	z.mutex.Lock()
	defer z.mutex.Unlock()

	return z.metadata.FreePages()
}

func (z *zone) validate() error {
	z.mutex.Lock()
	defer z.mutex.Unlock()

	if z.reserved.End() > z.frames.StartAddress() {
		return cerrors.Newf("zone %s overlaps its own metadata %s", z.frames, z.reserved)
	}
	if z.metadata.NumPages() != z.frames.Pages() {
		return cerrors.Newf("zone %s has metadata for %d pages", z.frames, z.metadata.NumPages())
	}

	return z.metadata.Validate()
}
