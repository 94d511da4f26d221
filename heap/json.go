package heap

import (
	"fmt"

	"github.com/launchdarkly/go-jsonstream/v3/jwriter"
)

// BuildStatsString produces a JSON document describing the heap's current occupancy. When
// detailed is true, the document also carries a Blocks array with one entry per block in
// address order, which can get large for fragmented heaps.
func (h *Heap) BuildStatsString(detailed bool) string {
	h.mutex.Lock()
	defer h.mutex.Unlock()

	writer := jwriter.NewWriter()

	obj := writer.Object()
	obj.Name("TotalBytes").Int(len(h.arena))
	obj.Name("FreeBytes").Int(h.freeBytes)
	obj.Name("Allocations").Int(h.allocCount)
	obj.Name("FreeRanges").Int(h.freeCount)

	if detailed {
		h.printDetailedMapBlocks(obj)
	}

	obj.End()
	return string(writer.Bytes())
}

func (h *Heap) printDetailedMapBlocks(json jwriter.ObjectState) {
	arrayState := json.Name("Blocks").Array()
	defer arrayState.End()

	_ = h.visitRegions(
		func(handle Handle, offset int, size int, userData any, free bool) error {
			blockObj := arrayState.Object()
			defer blockObj.End()

			blockObj.Name("Offset").Int(offset)
			blockObj.Name("Size").Int(size)

			if free {
				blockObj.Name("Type").String("Free")
				return nil
			}

			blockObj.Name("Type").String("Used")
			blockObj.Name("Handle").Int(int(handle))
			if userData != nil {
				blockObj.Name("CustomData").String(fmt.Sprintf("%+v", userData))
			}

			return nil
		})
}
