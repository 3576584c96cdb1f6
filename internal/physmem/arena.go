// Package physmem provides host-backed stand-ins for physical memory, so that the allocators
// can be run and tested as ordinary processes. An Arena maps an anonymous region of host
// memory and presents it at a chosen physical base address through a DirectMap.
package physmem

import (
	"unsafe"

	cerrors "github.com/cockroachdb/errors"
	"github.com/ddos-os/kmem/bootmem"
	"github.com/ddos-os/kmem/mem"
)

// Arena is a block of host memory posing as the physical range [Base, Base+Size)
type Arena struct {
	base mem.PhysAddr
	data []byte

	directMap mem.DirectMap
}

// NewArena maps size bytes of host memory and presents them at physical address base. Both must
// be page aligned.
func NewArena(base mem.PhysAddr, size int) (*Arena, error) {
	if !base.IsPageAligned() {
		return nil, cerrors.Newf("arena base %s is not page aligned", base)
	}
	if size <= 0 || size%mem.PageSize != 0 {
		return nil, cerrors.Newf("arena size %d is not a positive multiple of the page size", size)
	}

	data, err := mapAnonymous(size)
	if err != nil {
		return nil, cerrors.Wrapf(err, "failed to map %d bytes of host memory", size)
	}

	host := uint64(uintptr(unsafe.Pointer(&data[0])))

	return &Arena{
		base:      base,
		data:      data,
		directMap: mem.DirectMap{Offset: host - uint64(base)},
	}, nil
}

func (a *Arena) Base() mem.PhysAddr { return a.base }

func (a *Arena) Size() int { return len(a.data) }

// DirectMap returns the translation between the arena's physical addresses and host pointers
func (a *Arena) DirectMap() mem.DirectMap {
	return a.directMap
}

// Region returns the arena's whole physical range
func (a *Arena) Region() bootmem.Region {
	return bootmem.Region{Addr: a.base, Size: len(a.data)}
}

// FirmwareRegion reports the arena's whole physical range as a memory map row of type regionType
func (a *Arena) FirmwareRegion(regionType bootmem.RegionType) bootmem.FirmwareRegion {
	return bootmem.FirmwareRegion{
		Start: a.base,
		End:   a.base + mem.PhysAddr(len(a.data)),
		Type:  regionType,
	}
}

// Contains returns true if [addr, addr+size) lies inside the arena
func (a *Arena) Contains(addr mem.PhysAddr, size int) bool {
	return addr >= a.base && int(addr-a.base)+size <= len(a.data)
}

// Bytes returns the host memory behind the physical range [addr, addr+size)
func (a *Arena) Bytes(addr mem.PhysAddr, size int) []byte {
	if !a.Contains(addr, size) {
		panic(cerrors.AssertionFailedf("range %s+%d lies outside of arena [%s - %s)",
			addr, size, a.base, a.base+mem.PhysAddr(len(a.data))))
	}

	offset := int(addr - a.base)
	return a.data[offset : offset+size : offset+size]
}

// Close returns the host memory. The arena must not be used afterward.
func (a *Arena) Close() error {
	if a.data == nil {
		return nil
	}

	err := unmapAnonymous(a.data)
	a.data = nil
	return err
}
