package metadata

import (
	"github.com/ddos-os/kmem/memutils"
	"github.com/launchdarkly/go-jsonstream/v3/jwriter"
)

// ZoneMetadata tracks which pages of a physically contiguous zone are free. Pages are addressed
// by their index within the zone, and allocations are always a power-of-two number of pages,
// expressed as an order.
type ZoneMetadata interface {
	memutils.Validatable

	// NumPages returns the number of pages that the metadata was built to describe
	NumPages() int
	// FreePages returns the number of pages that are not part of a live allocation
	FreePages() int
	// AllocationCount returns the number of live allocations
	AllocationCount() int
	// IsEmpty returns true if there are no live allocations
	IsEmpty() bool
	// LargestFreeOrder returns the order of the largest block that Alloc could currently satisfy,
	// or -1 if the zone is full
	LargestFreeOrder() int

	// Alloc reserves 2^order pages and returns the index of the first one. The index is always a
	// multiple of 2^order. ok is false when no free block of that order exists.
	Alloc(order int) (page int, ok bool)
	// Free releases a block previously returned from Alloc. pages must be the exact size of
	// the allocation. Freeing anything else is a fatal error and panics.
	Free(page int, pages int)

	// VisitFreeBlocks calls the provided callback once for each maximal free block, in ascending
	// page order, until the callback returns false
	VisitFreeBlocks(visit func(page int, order int) bool)

	// AddStatistics sums this zone's allocation statistics into the provided object
	AddStatistics(stats *memutils.Statistics)
	// AddDetailedStatistics sums this zone's allocation statistics, including free ranges, into
	// the provided object
	AddDetailedStatistics(stats *memutils.DetailedStatistics)
	// BlockJsonData populates a json object with information about this zone
	BlockJsonData(json *jwriter.ObjectState)
}

var _ ZoneMetadata = &BuddyTree{}
