package nn

import "github.com/ffarishta/digits/internal/tensor"

// Parameter represents a trainable parameter in a neural network.
//
// Parameters hold the tensor being optimized and the gradient accumulated
// by the most recent backward pass (or passes, until ZeroGrad).
type Parameter struct {
	name   string
	tensor *tensor.Tensor
	grad   *tensor.Tensor
}

// NewParameter creates a new trainable parameter.
// The gradient is allocated lazily on the first AddGrad call.
func NewParameter(name string, t *tensor.Tensor) *Parameter {
	return &Parameter{
		name:   name,
		tensor: t,
	}
}

// Name returns the parameter name.
func (p *Parameter) Name() string {
	return p.name
}

// Tensor returns the parameter tensor.
func (p *Parameter) Tensor() *tensor.Tensor {
	return p.tensor
}

// Grad returns the accumulated gradient tensor.
// Returns nil before the first backward pass.
func (p *Parameter) Grad() *tensor.Tensor {
	return p.grad
}

// AddGrad accumulates grad into the parameter's gradient.
// Panics if the gradient shape does not match the parameter shape.
func (p *Parameter) AddGrad(grad *tensor.Tensor) {
	if p.grad == nil {
		p.grad = tensor.Zeros(p.tensor.Shape())
	}
	p.grad.AddScaled(grad, 1)
}

// ZeroGrad clears the gradient.
//
// Call before each training iteration to avoid accumulating gradients
// from previous batches.
func (p *Parameter) ZeroGrad() {
	p.grad = nil
}
