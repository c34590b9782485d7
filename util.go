package tlscodec

import "golang.org/x/exp/constraints"

func Ptr[T any](v T) *T { return &v } // Ptr is a helper to build optional values inline.

// checkedAdd adds two non-negative sizes, reporting overflow instead of wrapping.
func checkedAdd[T constraints.Signed](a, b T) (T, bool) {
	if b < 0 || a < 0 {
		return 0, false
	}
	s := a + b
	if s < a {
		return 0, false
	}
	return s, true
}
