package buddy

import (
	"math/bits"

	"github.com/cockroachdb/errors"
	"golang.org/x/exp/constraints"
)

// ErrNotPowerOfTwo is returned by CheckPow2 for values that are not a power of two.
var ErrNotPowerOfTwo = errors.New("number must be a power of two")

// CheckPow2 returns an error wrapping ErrNotPowerOfTwo unless number is a
// positive power of two.
func CheckPow2[T constraints.Integer](number T, name string) error {
	if number <= 0 || number&(number-1) != 0 {
		return errors.Wrapf(ErrNotPowerOfTwo, "%s is %d", name, number)
	}
	return nil
}

// Log2 returns floor(log2(number)) for a positive number.
func Log2[T constraints.Integer](number T) int {
	return bits.Len64(uint64(number)) - 1
}
