package mem

import "unsafe"

// DirectMap translates between physical addresses and the virtual addresses
// of a fixed-offset mapping of physical memory. Translation is pure
// arithmetic and wraps modulo 2^64, so an offset that is "negative" relative
// to the physical base works as expected.
type DirectMap struct {
	Offset uint64
}

// KernelDirectMap is the direct map established by the bootloader, placing
// all of physical memory at PhysOffset.
var KernelDirectMap = DirectMap{Offset: PhysOffset}

// ToVirt returns the virtual address through which addr can be accessed.
func (m DirectMap) ToVirt(addr PhysAddr) VirtAddr {
	return VirtAddr(uint64(addr) + m.Offset)
}

// ToPhys reverses ToVirt.
func (m DirectMap) ToPhys(addr VirtAddr) PhysAddr {
	return PhysAddr(uint64(addr) - m.Offset)
}

// Pointer returns a pointer to the byte at physical address addr. The memory
// behind the direct map is never owned by the Go runtime.
func (m DirectMap) Pointer(addr PhysAddr) unsafe.Pointer {
	return unsafe.Pointer(uintptr(m.ToVirt(addr)))
}

// PhysOf returns the physical address behind a pointer into the direct map.
func (m DirectMap) PhysOf(ptr unsafe.Pointer) PhysAddr {
	return m.ToPhys(VirtAddr(uintptr(ptr)))
}
