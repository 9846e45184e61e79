package nn

import (
	"math"

	"github.com/ffarishta/digits/internal/tensor"
)

// Sigmoid is a sigmoid activation module.
//
// Applies the element-wise function σ(x) = 1 / (1 + exp(-x)) using a
// piecewise form that avoids overflow for large |x|:
//
//	x >= 0: 1 / (1 + exp(-x))
//	x <  0: exp(x) / (1 + exp(x))
type Sigmoid struct {
	output *tensor.Tensor // cached for Backward: σ'(x) = σ(x)(1-σ(x))
}

// NewSigmoid creates a new Sigmoid activation module.
func NewSigmoid() *Sigmoid {
	return &Sigmoid{}
}

// Forward applies the sigmoid element-wise.
func (s *Sigmoid) Forward(input *tensor.Tensor) *tensor.Tensor {
	out := tensor.New(input.Shape())
	in := input.Data()
	data := out.Data()
	for i, x := range in {
		if x >= 0 {
			data[i] = 1.0 / (1.0 + math.Exp(-x))
		} else {
			z := math.Exp(x)
			data[i] = z / (1.0 + z)
		}
	}
	s.output = out
	return out
}

// Backward computes gradInput = gradOutput * σ(x) * (1 - σ(x)).
func (s *Sigmoid) Backward(gradOutput *tensor.Tensor) *tensor.Tensor {
	if s.output == nil {
		panic("sigmoid: Backward called before Forward")
	}
	out := tensor.New(gradOutput.Shape())
	grad := gradOutput.Data()
	act := s.output.Data()
	data := out.Data()
	for i := range data {
		data[i] = grad[i] * act[i] * (1 - act[i])
	}
	return out
}

// Parameters returns an empty slice (Sigmoid has no trainable parameters).
func (s *Sigmoid) Parameters() []*Parameter {
	return nil
}

// StateDict returns an empty map.
func (s *Sigmoid) StateDict() map[string]*tensor.Tensor {
	return map[string]*tensor.Tensor{}
}

// LoadStateDict is a no-op.
func (s *Sigmoid) LoadStateDict(map[string]*tensor.Tensor) error {
	return nil
}

// ReLU is a Rectified Linear Unit activation module: f(x) = max(0, x).
type ReLU struct {
	input *tensor.Tensor
}

// NewReLU creates a new ReLU activation module.
func NewReLU() *ReLU {
	return &ReLU{}
}

// Forward applies ReLU element-wise.
func (r *ReLU) Forward(input *tensor.Tensor) *tensor.Tensor {
	r.input = input
	out := tensor.New(input.Shape())
	in := input.Data()
	data := out.Data()
	for i, x := range in {
		if x > 0 {
			data[i] = x
		}
	}
	return out
}

// Backward passes gradients through where the input was positive.
func (r *ReLU) Backward(gradOutput *tensor.Tensor) *tensor.Tensor {
	if r.input == nil {
		panic("relu: Backward called before Forward")
	}
	out := tensor.New(gradOutput.Shape())
	grad := gradOutput.Data()
	in := r.input.Data()
	data := out.Data()
	for i := range data {
		if in[i] > 0 {
			data[i] = grad[i]
		}
	}
	return out
}

// Parameters returns an empty slice.
func (r *ReLU) Parameters() []*Parameter {
	return nil
}

// StateDict returns an empty map.
func (r *ReLU) StateDict() map[string]*tensor.Tensor {
	return map[string]*tensor.Tensor{}
}

// LoadStateDict is a no-op.
func (r *ReLU) LoadStateDict(map[string]*tensor.Tensor) error {
	return nil
}

// Tanh is a hyperbolic tangent activation module.
type Tanh struct {
	output *tensor.Tensor
}

// NewTanh creates a new Tanh activation module.
func NewTanh() *Tanh {
	return &Tanh{}
}

// Forward applies tanh element-wise.
func (t *Tanh) Forward(input *tensor.Tensor) *tensor.Tensor {
	out := tensor.New(input.Shape())
	in := input.Data()
	data := out.Data()
	for i, x := range in {
		data[i] = math.Tanh(x)
	}
	t.output = out
	return out
}

// Backward computes gradInput = gradOutput * (1 - tanh(x)²).
func (t *Tanh) Backward(gradOutput *tensor.Tensor) *tensor.Tensor {
	if t.output == nil {
		panic("tanh: Backward called before Forward")
	}
	out := tensor.New(gradOutput.Shape())
	grad := gradOutput.Data()
	act := t.output.Data()
	data := out.Data()
	for i := range data {
		data[i] = grad[i] * (1 - act[i]*act[i])
	}
	return out
}

// Parameters returns an empty slice.
func (t *Tanh) Parameters() []*Parameter {
	return nil
}

// StateDict returns an empty map.
func (t *Tanh) StateDict() map[string]*tensor.Tensor {
	return map[string]*tensor.Tensor{}
}

// LoadStateDict is a no-op.
func (t *Tanh) LoadStateDict(map[string]*tensor.Tensor) error {
	return nil
}
