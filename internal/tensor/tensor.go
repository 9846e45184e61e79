// Package tensor provides dense float64 tensors and the operations the
// digit classifier needs: broadcast arithmetic, matrix multiplication,
// transposition, and reductions. Data is stored contiguously in row-major
// order on the CPU.
package tensor

import (
	"fmt"
	"math"
	"math/rand"
)

// Tensor is a dense, row-major float64 tensor.
//
// Shape errors are programmer errors and panic; the panic message names
// the operation and the offending shapes. IO-style failures (none exist
// at this level) would return errors instead.
//
// Example:
//
//	t := tensor.Zeros(tensor.Shape{3, 4})
//	u := t.Add(tensor.Ones(tensor.Shape{3, 4}))
type Tensor struct {
	shape   Shape
	strides []int
	data    []float64
}

// New creates a zero-filled tensor with the given shape.
// Panics if the shape is invalid.
func New(shape Shape) *Tensor {
	if err := shape.Validate(); err != nil {
		panic(fmt.Sprintf("tensor.New: %v", err))
	}
	return &Tensor{
		shape:   shape.Clone(),
		strides: shape.ComputeStrides(),
		data:    make([]float64, shape.NumElements()),
	}
}

// FromSlice creates a tensor from a Go slice.
// The slice is copied into the tensor's memory.
func FromSlice(data []float64, shape Shape) (*Tensor, error) {
	if shape.NumElements() != len(data) {
		return nil, fmt.Errorf("shape %v requires %d elements, but got %d", shape, shape.NumElements(), len(data))
	}
	t := New(shape)
	copy(t.data, data)
	return t, nil
}

// Zeros creates a tensor filled with zeros.
func Zeros(shape Shape) *Tensor {
	return New(shape)
}

// Ones creates a tensor filled with ones.
func Ones(shape Shape) *Tensor {
	return Full(shape, 1)
}

// Full creates a tensor filled with a specific value.
func Full(shape Shape, value float64) *Tensor {
	t := New(shape)
	for i := range t.data {
		t.data[i] = value
	}
	return t
}

// Randn creates a tensor with values drawn from N(0, 1) using the given
// random source. A seeded *rand.Rand keeps weight initialization
// reproducible across runs.
func Randn(shape Shape, rng *rand.Rand) *Tensor {
	t := New(shape)
	for i := range t.data {
		t.data[i] = rng.NormFloat64()
	}
	return t
}

// Shape returns the tensor's shape.
func (t *Tensor) Shape() Shape {
	return t.shape
}

// NumElements returns the total number of elements.
func (t *Tensor) NumElements() int {
	return len(t.data)
}

// Data returns the underlying data slice (zero-copy).
//
// WARNING: Modifications to the returned slice modify the tensor.
func (t *Tensor) Data() []float64 {
	return t.data
}

// Item returns the scalar value of a single-element tensor.
// Panics if the tensor holds more than one element.
func (t *Tensor) Item() float64 {
	if len(t.data) != 1 {
		panic(fmt.Sprintf("tensor.Item: only works for scalar tensors, got shape %v", t.shape))
	}
	return t.data[0]
}

// At returns the element at the given indices.
// Panics if indices are out of bounds.
func (t *Tensor) At(indices ...int) float64 {
	return t.data[t.offset(indices)]
}

// Set sets the element at the given indices.
// Panics if indices are out of bounds.
func (t *Tensor) Set(value float64, indices ...int) {
	t.data[t.offset(indices)] = value
}

func (t *Tensor) offset(indices []int) int {
	if len(indices) != len(t.shape) {
		panic(fmt.Sprintf("tensor: expected %d indices, got %d", len(t.shape), len(indices)))
	}
	offset := 0
	for i, idx := range indices {
		if idx < 0 || idx >= t.shape[i] {
			panic(fmt.Sprintf("tensor: index %d out of bounds for dimension %d (size %d)", idx, i, t.shape[i]))
		}
		offset += idx * t.strides[i]
	}
	return offset
}

// Clone creates a deep copy of the tensor.
func (t *Tensor) Clone() *Tensor {
	c := New(t.shape)
	copy(c.data, t.data)
	return c
}

// Reshape returns a tensor with the same data viewed under a new shape.
// The data is shared, not copied. Panics if the element counts differ.
func (t *Tensor) Reshape(dims ...int) *Tensor {
	shape := Shape(dims)
	if err := shape.Validate(); err != nil {
		panic(fmt.Sprintf("tensor.Reshape: %v", err))
	}
	if shape.NumElements() != len(t.data) {
		panic(fmt.Sprintf("tensor.Reshape: cannot reshape %v (%d elements) to %v (%d elements)",
			t.shape, len(t.data), shape, shape.NumElements()))
	}
	return &Tensor{
		shape:   shape.Clone(),
		strides: shape.ComputeStrides(),
		data:    t.data,
	}
}

// String returns a human-readable representation of the tensor.
func (t *Tensor) String() string {
	return fmt.Sprintf("Tensor[float64]%v", t.shape)
}

// Mean returns the mean of all elements.
func (t *Tensor) Mean() float64 {
	sum := 0.0
	for _, v := range t.data {
		sum += v
	}
	return sum / float64(len(t.data))
}

// Std returns the population standard deviation of all elements.
func (t *Tensor) Std() float64 {
	mean := t.Mean()
	sum := 0.0
	for _, v := range t.data {
		d := v - mean
		sum += d * d
	}
	return math.Sqrt(sum / float64(len(t.data)))
}
