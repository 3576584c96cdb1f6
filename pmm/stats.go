package pmm

import (
	"github.com/ddos-os/kmem/mem"
	"github.com/ddos-os/kmem/memutils"
	"github.com/launchdarkly/go-jsonstream/v3/jwriter"
)

// CalculateStatistics populates stats with the current state of every zone. Each zone is locked
// in turn, so the totals are not a single atomic snapshot.
func (a *PhysAllocator) CalculateStatistics(stats *memutils.DetailedStatistics) {
	stats.Clear()

	for _, z := range a.zones {
		z.mutex.Lock()
		z.metadata.AddDetailedStatistics(stats)
		z.mutex.Unlock()
	}
}

// BuildStatsString returns a json document describing the allocator. When detailedMap is true,
// every zone and each of its free blocks is listed.
func (a *PhysAllocator) BuildStatsString(detailedMap bool) string {
	var stats memutils.DetailedStatistics
	a.CalculateStatistics(&stats)

	writer := jwriter.NewWriter()
	objState := writer.Object()

	objState.Name("Flags").String(a.createFlags.String())
	objState.Name("Strategy").String(a.strategy.String())
	objState.Name("TotalPages").Int(a.totalPages)

	totalObj := objState.Name("Total").Object()
	stats.WriteJson(&totalObj)
	totalObj.End()

	if detailedMap {
		zonesArray := objState.Name("Zones").Array()
		for _, z := range a.zones {
			zoneObj := zonesArray.Object()
			a.printZone(z, &zoneObj)
			zoneObj.End()
		}
		zonesArray.End()
	}

	objState.End()

	return string(writer.Bytes())
}

func (a *PhysAllocator) printZone(z *zone, json *jwriter.ObjectState) {
	z.mutex.Lock()
	defer z.mutex.Unlock()

	json.Name("Start").String(z.frames.StartAddress().String())
	json.Name("End").String(z.frames.EndAddress().String())
	json.Name("MetadataBytes").Int(z.reserved.Size)
	z.metadata.BlockJsonData(json)

	freeArray := json.Name("FreeBlocks").Array()
	defer freeArray.End()

	z.metadata.VisitFreeBlocks(func(page int, order int) bool {
		obj := freeArray.Object()
		defer obj.End()

		obj.Name("Address").String((z.frames.Start + mem.Frame(page)).Address().String())
		obj.Name("Order").Int(order)
		return true
	})
}
