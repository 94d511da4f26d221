package heaputils_test

import (
	"testing"

	"github.com/GiveGrandpaCrawl/os-lab/heaputils"
	"github.com/stretchr/testify/require"
)

func TestAlignUp(t *testing.T) {
	require.Equal(t, 0, heaputils.AlignUp(0, 16))
	require.Equal(t, 16, heaputils.AlignUp(1, 16))
	require.Equal(t, 16, heaputils.AlignUp(15, 16))
	require.Equal(t, 16, heaputils.AlignUp(16, 16))
	require.Equal(t, 32, heaputils.AlignUp(17, 16))
	require.Equal(t, 128, heaputils.AlignUp(116, 16))
}

func TestAlignDown(t *testing.T) {
	require.Equal(t, 0, heaputils.AlignDown(0, 16))
	require.Equal(t, 0, heaputils.AlignDown(15, 16))
	require.Equal(t, 16, heaputils.AlignDown(16, 16))
	require.Equal(t, 16, heaputils.AlignDown(31, 16))
}

func TestCheckPow2(t *testing.T) {
	require.NoError(t, heaputils.CheckPow2(uint(16), "alignment"))
	require.NoError(t, heaputils.CheckPow2(uint(1), "alignment"))

	err := heaputils.CheckPow2(uint(24), "alignment")
	require.ErrorIs(t, err, heaputils.PowerOfTwoError)
}

func TestCheckAligned(t *testing.T) {
	require.NoError(t, heaputils.CheckAligned(uint(0), 16, "offset"))
	require.NoError(t, heaputils.CheckAligned(uint(1024), 16, "offset"))

	err := heaputils.CheckAligned(uint(1000), 16, "heap size")
	require.ErrorIs(t, err, heaputils.AlignmentError)
}
