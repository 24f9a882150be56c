// Package tensor implements the dense float32 tensors the model, autodiff
// tape and optimizer operate on. All compute runs on the CPU; data is a
// single contiguous row-major slice.
package tensor

import (
	"fmt"
	"math/rand"
)

// Tensor is a dense float32 tensor with row-major layout.
type Tensor struct {
	data  []float32
	shape Shape
}

// New creates a zero-filled tensor with the given shape.
func New(shape Shape) *Tensor {
	shape.validate()
	return &Tensor{
		data:  make([]float32, shape.NumElements()),
		shape: shape.Clone(),
	}
}

// FromSlice creates a tensor backed by a copy of data.
// Returns an error when the element count does not match the shape.
func FromSlice(data []float32, shape Shape) (*Tensor, error) {
	shape.validate()
	if shape.NumElements() != len(data) {
		return nil, fmt.Errorf("tensor: shape %v requires %d elements, got %d", shape, shape.NumElements(), len(data))
	}
	t := New(shape)
	copy(t.data, data)
	return t, nil
}

// Zeros creates a zero-filled tensor. Alias of New kept for call-site clarity.
func Zeros(shape Shape) *Tensor {
	return New(shape)
}

// Full creates a tensor with every element set to value.
func Full(shape Shape, value float32) *Tensor {
	t := New(shape)
	for i := range t.data {
		t.data[i] = value
	}
	return t
}

// Randn creates a tensor with elements drawn from N(0, 1) using rng.
func Randn(shape Shape, rng *rand.Rand) *Tensor {
	t := New(shape)
	for i := range t.data {
		t.data[i] = float32(rng.NormFloat64())
	}
	return t
}

// Uniform creates a tensor with elements drawn from U(low, high) using rng.
func Uniform(shape Shape, low, high float32, rng *rand.Rand) *Tensor {
	t := New(shape)
	for i := range t.data {
		t.data[i] = low + rng.Float32()*(high-low)
	}
	return t
}

// Shape returns the tensor's shape. Callers must not mutate it.
func (t *Tensor) Shape() Shape {
	return t.shape
}

// NumElements returns the total element count.
func (t *Tensor) NumElements() int {
	return len(t.data)
}

// Data returns the backing slice. Writes through the slice mutate the
// tensor; the optimizer relies on this for in-place parameter updates.
func (t *Tensor) Data() []float32 {
	return t.data
}

// At returns the element at the given multi-dimensional index.
func (t *Tensor) At(indices ...int) float32 {
	return t.data[t.offset(indices)]
}

// Set stores value at the given multi-dimensional index.
func (t *Tensor) Set(value float32, indices ...int) {
	t.data[t.offset(indices)] = value
}

// Item returns the sole element of a single-element tensor.
func (t *Tensor) Item() float32 {
	if len(t.data) != 1 {
		panic(fmt.Sprintf("tensor: Item on tensor with %d elements", len(t.data)))
	}
	return t.data[0]
}

// Clone returns a deep copy of the tensor.
func (t *Tensor) Clone() *Tensor {
	out := New(t.shape)
	copy(out.data, t.data)
	return out
}

// Reshape returns a tensor sharing t's data with a new shape.
// Panics when the element counts differ: a silent truncate or pad here
// would corrupt training, so shape mismatches fail fast.
func (t *Tensor) Reshape(dims ...int) *Tensor {
	shape := Shape(dims)
	shape.validate()
	if shape.NumElements() != len(t.data) {
		panic(fmt.Sprintf("tensor: cannot reshape %v (%d elements) to %v (%d elements)",
			t.shape, len(t.data), shape, shape.NumElements()))
	}
	return &Tensor{data: t.data, shape: shape.Clone()}
}

// String renders a short description, not the full contents.
func (t *Tensor) String() string {
	return fmt.Sprintf("Tensor(shape=%v)", t.shape)
}

func (t *Tensor) offset(indices []int) int {
	if len(indices) != len(t.shape) {
		panic(fmt.Sprintf("tensor: %d indices for shape %v", len(indices), t.shape))
	}
	off := 0
	for i, idx := range indices {
		if idx < 0 || idx >= t.shape[i] {
			panic(fmt.Sprintf("tensor: index %d out of range for dimension %d of shape %v", idx, i, t.shape))
		}
		off = off*t.shape[i] + idx
	}
	return off
}
