// Package nn implements the neural network building blocks of the digit
// classifier:
//   - Module interface: forward/backward components with parameters
//   - Parameter: trainable tensors with accumulated gradients
//   - Linear, Conv2D, MaxPool2D, Flatten: layers
//   - Sigmoid, ReLU, Tanh: activations
//   - CrossEntropyLoss: softmax cross-entropy over logits
//   - Sequential: container for stacking layers
//
// Gradients flow explicitly: the loss produces the initial gradient and
// each module's Backward consumes the gradient of its output and returns
// the gradient of its input, accumulating parameter gradients on the way.
package nn

import "github.com/ffarishta/digits/internal/tensor"

// Module is the base interface for all neural network components.
//
// Modules are stateful across a forward/backward pair: Forward caches
// whatever activations Backward needs, so Backward must follow the
// Forward whose gradient it propagates.
type Module interface {
	// Forward computes the output of the module given an input tensor.
	Forward(input *tensor.Tensor) *tensor.Tensor

	// Backward takes the gradient of the loss with respect to the module's
	// output and returns the gradient with respect to its input. Parameter
	// gradients are accumulated into the module's Parameters.
	Backward(gradOutput *tensor.Tensor) *tensor.Tensor

	// Parameters returns all trainable parameters of this module.
	// Modules without trainable parameters return an empty slice.
	Parameters() []*Parameter

	// StateDict returns a map of parameter names to tensors.
	StateDict() map[string]*tensor.Tensor

	// LoadStateDict loads parameters from a state dictionary.
	LoadStateDict(stateDict map[string]*tensor.Tensor) error
}
