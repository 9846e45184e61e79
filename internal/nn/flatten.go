package nn

import (
	"fmt"

	"github.com/ffarishta/digits/internal/tensor"
)

// Flatten collapses all dimensions after the batch dimension.
//
// Input shape:  [batch, d1, d2, ...]
// Output shape: [batch, d1*d2*...]
//
// Used between the convolutional stack and the fully connected head.
type Flatten struct {
	inputShape tensor.Shape
}

// NewFlatten creates a new Flatten module.
func NewFlatten() *Flatten {
	return &Flatten{}
}

// Forward flattens the input to 2D.
func (f *Flatten) Forward(input *tensor.Tensor) *tensor.Tensor {
	shape := input.Shape()
	if len(shape) < 2 {
		panic(fmt.Sprintf("flatten: expected at least 2D input, got %v", shape))
	}
	f.inputShape = shape.Clone()

	features := 1
	for _, dim := range shape[1:] {
		features *= dim
	}
	return input.Reshape(shape[0], features)
}

// Backward restores the gradient to the original input shape.
func (f *Flatten) Backward(gradOutput *tensor.Tensor) *tensor.Tensor {
	if f.inputShape == nil {
		panic("flatten: Backward called before Forward")
	}
	return gradOutput.Reshape(f.inputShape...)
}

// Parameters returns an empty slice.
func (f *Flatten) Parameters() []*Parameter {
	return nil
}

// StateDict returns an empty map.
func (f *Flatten) StateDict() map[string]*tensor.Tensor {
	return map[string]*tensor.Tensor{}
}

// LoadStateDict is a no-op.
func (f *Flatten) LoadStateDict(map[string]*tensor.Tensor) error {
	return nil
}
