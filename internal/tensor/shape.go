package tensor

import (
	"fmt"
	"strings"
)

// Shape describes the dimensions of a tensor, outermost first.
// Shape{256, 1, 20, 10} is a batch of 256 single-channel 20x10 grids.
type Shape []int

// NumElements returns the total element count for the shape.
// The empty shape has one element (a scalar).
func (s Shape) NumElements() int {
	n := 1
	for _, d := range s {
		n *= d
	}
	return n
}

// Equal reports whether two shapes have identical dimensions.
func (s Shape) Equal(other Shape) bool {
	if len(s) != len(other) {
		return false
	}
	for i := range s {
		if s[i] != other[i] {
			return false
		}
	}
	return true
}

// Clone returns an independent copy of the shape.
func (s Shape) Clone() Shape {
	out := make(Shape, len(s))
	copy(out, s)
	return out
}

// String renders the shape as "[d0 d1 ...]".
func (s Shape) String() string {
	parts := make([]string, len(s))
	for i, d := range s {
		parts[i] = fmt.Sprintf("%d", d)
	}
	return "[" + strings.Join(parts, " ") + "]"
}

// validate panics unless every dimension is positive.
func (s Shape) validate() {
	for _, d := range s {
		if d <= 0 {
			panic(fmt.Sprintf("tensor: invalid shape %v: dimensions must be positive", s))
		}
	}
}
