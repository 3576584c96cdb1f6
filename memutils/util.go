package memutils

import (
	"math/bits"

	cerrors "github.com/cockroachdb/errors"
	"golang.org/x/exp/constraints"
)

func IsPow2[T constraints.Integer](number T) bool {
	return number > 0 && number&(number-1) == 0
}

func CheckPow2[T constraints.Integer](number T, name string) error {
	if !IsPow2(number) {
		return cerrors.Wrapf(PowerOfTwoError, "%s is %d", name, number)
	}
	return nil
}

// AlignUp rounds value up to a multiple of alignment, which must be a power of two
func AlignUp[T constraints.Integer](value T, alignment T) T {
	return (value + alignment - 1) &^ (alignment - 1)
}

// AlignDown rounds value down to a multiple of alignment, which must be a power of two
func AlignDown[T constraints.Integer](value T, alignment T) T {
	return value &^ (alignment - 1)
}

// NextPow2 returns the smallest power of two greater than or equal to value. Values below 1 return 1.
func NextPow2(value uint) uint {
	if value <= 1 {
		return 1
	}
	return 1 << (bits.Len(value - 1))
}

// Log2 returns floor(log2(value)) for a value greater than zero
func Log2(value uint) int {
	return bits.Len(value) - 1
}

// DivCeil divides a by b and rounds the result up
func DivCeil(a, b int) int {
	return (a + b - 1) / b
}
