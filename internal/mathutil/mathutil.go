// Package mathutil provides small generic numeric helpers, used by the
// sound queue to clamp a requested length against what is actually
// available.
package mathutil

import "golang.org/x/exp/constraints"

// Min returns the lesser of a and b.
func Min[T constraints.Ordered](a, b T) T {
	if a < b {
		return a
	}
	return b
}

// Max returns the greater of a and b.
func Max[T constraints.Ordered](a, b T) T {
	if a > b {
		return a
	}
	return b
}
