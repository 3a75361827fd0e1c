// Package safeconv provides checked integer conversions for values that come
// from user input, such as humanized byte sizes.
package safeconv

import (
	"errors"
	"fmt"
	"math"
)

// MaxInt is the maximum value for int type (platform-dependent).
const MaxInt = int(^uint(0) >> 1)

// ErrOverflow is returned when a value does not fit the target type.
var ErrOverflow = errors.New("safeconv: integer overflow")

// Uint64ToInt converts v to int, failing when it exceeds [MaxInt].
func Uint64ToInt(v uint64) (int, error) {
	if v > uint64(MaxInt) {
		return 0, fmt.Errorf("%w: %d does not fit int", ErrOverflow, v)
	}

	return int(v), nil
}

// Uint64ToInt64 converts v to int64, failing when it exceeds [math.MaxInt64].
func Uint64ToInt64(v uint64) (int64, error) {
	if v > math.MaxInt64 {
		return 0, fmt.Errorf("%w: %d does not fit int64", ErrOverflow, v)
	}

	return int64(v), nil
}
