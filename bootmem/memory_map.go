package bootmem

import (
	cerrors "github.com/cockroachdb/errors"
	"github.com/ddos-os/kmem/mem"
	"github.com/ddos-os/kmem/memutils"
	"golang.org/x/exp/slices"
)

// MaxRegions is the largest number of regions a MemoryMap can track. Bootloaders do not report
// more than this.
const MaxRegions = 64

// MemoryMap is the ordered set of usable, page-aligned physical regions. It can hand out single
// pages, be split in two, or be consumed region by region. Consuming operations leave the
// receiver empty.
type MemoryMap struct {
	regions  []Region
	numPages int
}

// NewMemoryMap builds a MemoryMap from the bootloader's memory map. Only usable regions are kept;
// each is shrunk to whole pages, and regions that do not contain a whole page are dropped.
func NewMemoryMap(regions []FirmwareRegion) (*MemoryMap, error) {
	m := &MemoryMap{
		regions: make([]Region, 0, MaxRegions),
	}

	for _, firmwareRegion := range regions {
		if firmwareRegion.Type != RegionUsable {
			continue
		}

		// Reported addresses may not be page-aligned; round the start up and the end down
		start := firmwareRegion.Start.PageAlignUp()
		end := firmwareRegion.End.PageAlignDown()
		if end <= start {
			continue
		}

		err := m.insert(Region{Addr: start, Size: int(end - start)})
		if err != nil {
			return nil, err
		}
	}

	if len(m.regions) == 0 {
		return nil, memutils.ErrNoUsableMemory
	}

	return m, nil
}

// insert adds a region, keeping the map in ascending address order
func (m *MemoryMap) insert(region Region) error {
	if len(m.regions) >= MaxRegions {
		return cerrors.Wrapf(memutils.ErrTooManyRegions, "could not add region %s to a map with %d regions", region, len(m.regions))
	}

	index := len(m.regions)
	for index > 0 && m.regions[index-1].Addr > region.Addr {
		index--
	}

	m.regions = slices.Insert(m.regions, index, region)
	m.numPages += region.Pages()
	return nil
}

func (m *MemoryMap) push(region Region) {
	m.regions = append(m.regions, region)
	m.numPages += region.Pages()
}

// NumPages returns the number of pages left in the map
func (m *MemoryMap) NumPages() int {
	return m.numPages
}

// Len returns the number of regions left in the map
func (m *MemoryMap) Len() int {
	return len(m.regions)
}

// Regions returns a copy of the map's regions in ascending address order
func (m *MemoryMap) Regions() []Region {
	return slices.Clone(m.regions)
}

// SplitAt divides the map into a left map owning the first numPages pages, in address order,
// and a right map owning everything else. A region that straddles the boundary is split. The
// receiver is left empty.
func (m *MemoryMap) SplitAt(numPages int) (left *MemoryMap, right *MemoryMap) {
	if numPages <= 0 {
		panic(cerrors.AssertionFailedf("cannot split memory map at %d pages", numPages))
	}

	left = &MemoryMap{regions: make([]Region, 0, MaxRegions)}
	right = &MemoryMap{regions: make([]Region, 0, MaxRegions)}

	pagesSeen := 0
	index := 0
	for ; index < len(m.regions); index++ {
		region := m.regions[index]
		regionPages := region.Pages()

		if pagesSeen+regionPages > numPages {
			first, second := region.SplitAt((numPages - pagesSeen) * mem.PageSize)
			left.push(first)
			right.push(second)
			index++
			break
		}

		left.push(region)
		pagesSeen += regionPages

		if pagesSeen == numPages {
			index++
			break
		}
	}

	for ; index < len(m.regions); index++ {
		right.push(m.regions[index])
	}

	m.regions = nil
	m.numPages = 0

	return left, right
}

// AllocPage removes the lowest page from the map and returns it. The map cannot reach the page's
// memory, so callers clear it before use.
func (m *MemoryMap) AllocPage() (mem.Frame, error) {
	index := slices.IndexFunc(m.regions, func(region Region) bool {
		return region.Size >= mem.PageSize
	})
	if index < 0 {
		return 0, memutils.ErrOutOfMemory
	}

	region := &m.regions[index]
	frame := mem.FrameContaining(region.Addr)

	region.Addr += mem.PageSize
	region.Size -= mem.PageSize
	m.numPages--

	if region.Size == 0 {
		m.regions = slices.Delete(m.regions, index, index+1)
	}

	return frame, nil
}

// Next removes the lowest region from the map and returns it. ok is false once the map is empty.
func (m *MemoryMap) Next() (region Region, ok bool) {
	if len(m.regions) == 0 {
		return Region{}, false
	}

	region = m.regions[0]
	m.regions = slices.Delete(m.regions, 0, 1)
	m.numPages -= region.Pages()
	return region, true
}
