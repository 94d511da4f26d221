package heaputils

import (
	cerrors "github.com/cockroachdb/errors"
)

type Number interface {
	~int | ~uint
}

func CheckPow2[T Number](number T, name string) error {
	if number&(number-1) != 0 {
		return cerrors.Wrapf(PowerOfTwoError, "%s is %d", name, number)
	}
	return nil
}

// CheckAligned verifies that value sits on a multiple of alignment. The alignment must be
// a power of two.
func CheckAligned[T Number](value T, alignment uint, name string) error {
	if uint(value)&(alignment-1) != 0 {
		return cerrors.Wrapf(AlignmentError, "%s is %d, alignment unit is %d", name, value, alignment)
	}
	return nil
}

func AlignUp(value int, alignment uint) int {
	return (value + int(alignment) - 1) & int(^(alignment - 1))
}

func AlignDown(value int, alignment uint) int {
	return value & int(^(alignment - 1))
}
