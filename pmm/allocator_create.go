package pmm

import (
	"context"
	"strings"

	cerrors "github.com/cockroachdb/errors"
	"github.com/ddos-os/kmem/bootmem"
	"github.com/ddos-os/kmem/internal/utils"
	"github.com/ddos-os/kmem/mem"
	"github.com/ddos-os/kmem/memutils"
	"golang.org/x/exp/slog"
)

// CreateFlags indicate specific allocator behaviors to activate or deactivate
type CreateFlags int32

const (
	// CreateExternallySynchronized ensures that zones are not locked internally. The consumer must
	// guarantee that the allocator is used from only one thread at a time, or is synchronized by
	// some other mechanism.
	CreateExternallySynchronized CreateFlags = 1 << iota
)

var createFlagsMapping = map[CreateFlags]string{
	CreateExternallySynchronized: "CreateExternallySynchronized",
}

func (f CreateFlags) String() string {
	if f == 0 {
		return "None"
	}

	var names []string
	for bit := CreateFlags(1); bit != 0 && bit <= f; bit <<= 1 {
		if f&bit == 0 {
			continue
		}

		name, ok := createFlagsMapping[bit]
		if !ok {
			name = "Unknown"
		}
		names = append(names, name)
	}

	return strings.Join(names, "|")
}

const (
	// MaxZones is the largest number of zones an allocator will manage
	MaxZones = 64

	// overheadPerPage is the number of metadata bytes a zone needs for each page it manages: one
	// leaf, plus one byte for all the levels above it combined
	overheadPerPage = 2
	// safetyMargin absorbs the rounding in the closed-form usable page estimate
	safetyMargin = 1
)

// CreateOptions contains optional settings when creating an allocator
type CreateOptions struct {
	// Flags indicates specific allocator behaviors to activate or deactivate
	Flags CreateFlags
	// Strategy selects the order that zones are tried in. The zero value is ZoneStrategyFirstFit.
	Strategy ZoneStrategy
}

// ZoneLayout computes how a region of totalPages pages is divided between zone metadata, which
// is carved from the front of the region, and pages that the zone hands out. usablePages is 0
// when the region is too small to be worth a zone.
func ZoneLayout(totalPages int) (usablePages int, metadataPages int) {
	usablePages = mem.PageSize*totalPages/(overheadPerPage+mem.PageSize) - safetyMargin

	for ; usablePages > 1; usablePages-- {
		metadataPages = max(memutils.DivCeil(metadataLen(usablePages), mem.PageSize), 1)
		if metadataPages+usablePages <= totalPages {
			return usablePages, metadataPages
		}
	}

	return 0, 0
}

// New creates a PhysAllocator that manages every region of memoryMap, consuming it. Each region
// becomes one zone whose metadata lives at the front of the region, accessed through directMap.
//
// logger - Receives information about the zones being created. It may be nil.
//
// options - Optional parameters: it is valid to leave all the fields blank
func New(logger *slog.Logger, memoryMap *bootmem.MemoryMap, directMap mem.DirectMap, options CreateOptions) (*PhysAllocator, error) {
	logger = utils.LoggerOrDiscard(logger)
	useLock := options.Flags&CreateExternallySynchronized == 0

	if _, ok := zoneStrategyMapping[options.Strategy]; !ok {
		return nil, cerrors.Newf("unknown zone strategy %s", options.Strategy)
	}

	allocator := &PhysAllocator{
		logger:      logger,
		directMap:   directMap,
		createFlags: options.Flags,
		strategy:    options.Strategy,
	}

	for region, ok := memoryMap.Next(); ok; region, ok = memoryMap.Next() {
		usablePages, metadataPages := ZoneLayout(region.Pages())
		if usablePages == 0 {
			logger.LogAttrs(context.Background(), slog.LevelWarn, "skipping region too small for a zone",
				slog.Any("region", region))
			continue
		}

		if len(allocator.zones) >= MaxZones {
			return nil, cerrors.Wrapf(memutils.ErrTooManyRegions, "cannot manage more than %d zones", MaxZones)
		}

		z, err := newZone(region, usablePages, metadataPages, directMap, useLock)
		if err != nil {
			return nil, err
		}

		logger.LogAttrs(context.Background(), slog.LevelDebug, "created zone",
			slog.String("frames", z.frames.String()),
			slog.Int("usablePages", usablePages),
			slog.Int("metadataPages", metadataPages),
			slog.Int("wastedPages", region.Pages()-usablePages-metadataPages))

		allocator.zones = append(allocator.zones, z)
		allocator.totalPages += usablePages
	}

	if len(allocator.zones) == 0 {
		return nil, memutils.ErrNoUsableMemory
	}

	logger.LogAttrs(context.Background(), slog.LevelInfo, "physical memory manager ready",
		slog.Int("zones", len(allocator.zones)),
		slog.Int("totalPages", allocator.totalPages),
		slog.String("strategy", allocator.strategy.String()))

	return allocator, nil
}
