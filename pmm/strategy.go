package pmm

import "fmt"

// ZoneStrategy chooses the order in which zones are tried when allocating frames. Within a zone,
// allocation is always first fit from the lowest address.
type ZoneStrategy uint32

const (
	// ZoneStrategyFirstFit tries zones in ascending address order on every allocation. This packs
	// allocations into low memory and is the default.
	ZoneStrategyFirstFit ZoneStrategy = iota
	// ZoneStrategyRoundRobin starts each allocation at the zone after the one the previous
	// allocation started at, spreading allocations (and zone lock traffic) across all zones.
	ZoneStrategyRoundRobin
)

var zoneStrategyMapping = map[ZoneStrategy]string{
	ZoneStrategyFirstFit:   "ZoneStrategyFirstFit",
	ZoneStrategyRoundRobin: "ZoneStrategyRoundRobin",
}

func (s ZoneStrategy) String() string {
	str, ok := zoneStrategyMapping[s]
	if !ok {
		return fmt.Sprintf("ZoneStrategy(%d)", uint32(s))
	}
	return str
}
