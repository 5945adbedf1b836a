package common

import "github.com/chewxy/math32"

// Coalesce returns the first non-zero value from the provided values, or the zero value if all are zero.
//
// Parameters:
//   - values: a variadic list of values to check for non-zero status
//
// Returns:
//   - T: the first non-zero value from the input, or the zero value if all are zero
func Coalesce[T comparable](values ...T) T {
	var zero T
	for _, v := range values {
		if v != zero {
			return v
		}
	}
	return zero
}

// Clamp limits v to the closed interval [lo, hi].
func Clamp[T int | int32 | uint32 | float32](v, lo, hi T) T {
	return min(max(v, lo), hi)
}

// Smoothstep performs Hermite interpolation between 0 and 1 as x moves from edge0 to edge1,
// matching the WGSL builtin of the same name.
//
// Parameters:
//   - edge0: lower edge of the transition
//   - edge1: upper edge of the transition
//   - x: the input value
//
// Returns:
//   - float32: 0 below edge0, 1 above edge1, a smooth ramp in between
func Smoothstep(edge0, edge1, x float32) float32 {
	if edge1 <= edge0 {
		if x < edge0 {
			return 0
		}
		return 1
	}
	t := Clamp((x-edge0)/(edge1-edge0), 0, 1)
	return t * t * (3 - 2*t)
}

// CeilTo rounds v up to the next multiple of 1/steps.
func CeilTo(v, steps float32) float32 {
	return math32.Ceil(v*steps) / steps
}

// AlignUp rounds n up to the next multiple of align. align must be a power of two.
func AlignUp(n, align uint64) uint64 {
	return (n + align - 1) &^ (align - 1)
}
