package bootmem

import (
	"fmt"

	"github.com/ddos-os/kmem/mem"
)

// RegionType describes what the firmware reports a range of physical memory as being used for
type RegionType uint32

const (
	// RegionUsable is memory that is free for the kernel to use
	RegionUsable RegionType = iota
	// RegionReserved is memory that must not be touched
	RegionReserved
	// RegionACPIReclaimable holds ACPI tables and can be reused once they have been parsed
	RegionACPIReclaimable
	// RegionACPINVS must be preserved across sleep states
	RegionACPINVS
	// RegionBadMemory was reported defective by the firmware
	RegionBadMemory
	// RegionKernel holds the loaded kernel image
	RegionKernel
	// RegionBootloader holds bootloader data such as the page tables and boot info
	RegionBootloader
)

var regionTypeMapping = map[RegionType]string{
	RegionUsable:          "Usable",
	RegionReserved:        "Reserved",
	RegionACPIReclaimable: "ACPIReclaimable",
	RegionACPINVS:         "ACPINVS",
	RegionBadMemory:       "BadMemory",
	RegionKernel:          "Kernel",
	RegionBootloader:      "Bootloader",
}

func (t RegionType) String() string {
	str, ok := regionTypeMapping[t]
	if !ok {
		return fmt.Sprintf("RegionType(%d)", uint32(t))
	}
	return str
}

// FirmwareRegion is one row of the memory map handed over by the bootloader: the half-open
// physical range [Start, End) and its type
type FirmwareRegion struct {
	Start mem.PhysAddr
	End   mem.PhysAddr
	Type  RegionType
}
