package tensor

import "fmt"

// Shape represents the dimensions of a tensor.
type Shape []int

// NumElements returns the total number of elements in the tensor.
func (s Shape) NumElements() int {
	if len(s) == 0 {
		return 1 // Scalar has 1 element
	}
	n := 1
	for _, dim := range s {
		n *= dim
	}
	return n
}

// Validate checks if the shape is valid (all dimensions > 0).
func (s Shape) Validate() error {
	for i, dim := range s {
		if dim <= 0 {
			return fmt.Errorf("invalid dimension at index %d: %d (must be > 0)", i, dim)
		}
	}
	return nil
}

// Equal checks if two shapes are equal.
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

// Clone returns a copy of the shape.
func (s Shape) Clone() Shape {
	clone := make(Shape, len(s))
	copy(clone, s)
	return clone
}

// ComputeStrides calculates row-major strides for the shape.
// Strides define memory layout: stride[i] = product of all dimensions after i.
func (s Shape) ComputeStrides() []int {
	strides := make([]int, len(s))
	if len(s) == 0 {
		return strides
	}

	strides[len(s)-1] = 1
	for i := len(s) - 2; i >= 0; i-- {
		strides[i] = strides[i+1] * s[i+1]
	}
	return strides
}

// BroadcastShapes implements NumPy-style broadcasting rules.
//
// Shapes are compared right to left; two dimensions are compatible when they
// are equal or one of them is 1. Missing leading dimensions count as 1.
//
// Examples:
//
//	(1, 6, 1, 1) + (4, 6, 8, 8) → (4, 6, 8, 8)
//	(1, 10)      + (4, 10)      → (4, 10)
//	(3, 2)       + (4, 2)       → error
func BroadcastShapes(a, b Shape) (Shape, error) {
	n := max(len(a), len(b))
	out := make(Shape, n)
	for i := 0; i < n; i++ {
		da := dimFromRight(a, n-1-i)
		db := dimFromRight(b, n-1-i)
		switch {
		case da == db:
			out[i] = da
		case da == 1:
			out[i] = db
		case db == 1:
			out[i] = da
		default:
			return nil, fmt.Errorf("shapes %v and %v are not broadcast-compatible at dim %d (%d vs %d)", a, b, i, da, db)
		}
	}
	return out, nil
}

// dimFromRight returns the dimension located `fromRight` positions from the last axis,
// or 1 when the shape has fewer axes.
func dimFromRight(s Shape, fromRight int) int {
	idx := len(s) - 1 - fromRight
	if idx < 0 {
		return 1
	}
	return s[idx]
}

// BroadcastStrides returns strides that map an index in `target` onto a tensor of shape s.
// Broadcast dimensions get stride 0.
func (s Shape) BroadcastStrides(target Shape) []int {
	own := s.ComputeStrides()
	strides := make([]int, len(target))
	offset := len(target) - len(s)
	for i := range target {
		j := i - offset
		if j < 0 || s[j] == 1 {
			continue
		}
		strides[i] = own[j]
	}
	return strides
}
