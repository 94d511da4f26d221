package heaputils_test

import (
	"math"
	"testing"

	"github.com/GiveGrandpaCrawl/os-lab/heaputils"
	"github.com/stretchr/testify/require"
)

func TestDetailedStatisticsAccumulate(t *testing.T) {
	var stats heaputils.DetailedStatistics
	stats.Clear()

	require.Equal(t, math.MaxInt, stats.AllocationSizeMin)
	require.Equal(t, math.MaxInt, stats.FreeRangeSizeMin)

	stats.AddAllocation(112)
	stats.AddAllocation(48)
	stats.AddFreeRange(880)

	require.Equal(t, 2, stats.AllocationCount)
	require.Equal(t, 160, stats.AllocationBytes)
	require.Equal(t, 48, stats.AllocationSizeMin)
	require.Equal(t, 112, stats.AllocationSizeMax)
	require.Equal(t, 1, stats.FreeRangeCount)
	require.Equal(t, 880, stats.FreeRangeSizeMin)
	require.Equal(t, 880, stats.FreeRangeSizeMax)
}

func TestDetailedStatisticsMerge(t *testing.T) {
	var a, b heaputils.DetailedStatistics
	a.Clear()
	b.Clear()

	a.HeapCount = 1
	a.HeapBytes = 1024
	a.AddAllocation(112)
	a.AddFreeRange(880)

	b.HeapCount = 1
	b.HeapBytes = 2048
	b.AddAllocation(64)
	b.AddFreeRange(1968)

	a.AddDetailedStatistics(&b)

	require.Equal(t, 2, a.HeapCount)
	require.Equal(t, 3072, a.HeapBytes)
	require.Equal(t, 2, a.AllocationCount)
	require.Equal(t, 176, a.AllocationBytes)
	require.Equal(t, 64, a.AllocationSizeMin)
	require.Equal(t, 112, a.AllocationSizeMax)
	require.Equal(t, 2, a.FreeRangeCount)
	require.Equal(t, 880, a.FreeRangeSizeMin)
	require.Equal(t, 1968, a.FreeRangeSizeMax)
}
