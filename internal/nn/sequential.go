package nn

import (
	"fmt"
	"strings"

	"github.com/ffarishta/digits/internal/tensor"
)

// Sequential is a container module that chains modules together.
//
// Forward feeds each module's output into the next; Backward walks the
// chain in reverse, threading the gradient back to the input.
//
// Example:
//
//	model := nn.NewSequential(
//	    nn.NewLinear(784, 300, rng),
//	    nn.NewSigmoid(),
//	    nn.NewLinear(300, 10, rng),
//	)
type Sequential struct {
	modules []Module
}

// NewSequential creates a new Sequential container.
func NewSequential(modules ...Module) *Sequential {
	return &Sequential{modules: modules}
}

// Forward applies all modules in sequence.
func (s *Sequential) Forward(input *tensor.Tensor) *tensor.Tensor {
	output := input
	for _, module := range s.modules {
		output = module.Forward(output)
	}
	return output
}

// Backward propagates the gradient through all modules in reverse order.
func (s *Sequential) Backward(gradOutput *tensor.Tensor) *tensor.Tensor {
	grad := gradOutput
	for i := len(s.modules) - 1; i >= 0; i-- {
		grad = s.modules[i].Backward(grad)
	}
	return grad
}

// Parameters returns all trainable parameters from all modules.
func (s *Sequential) Parameters() []*Parameter {
	var params []*Parameter
	for _, module := range s.modules {
		params = append(params, module.Parameters()...)
	}
	return params
}

// Add appends a module to the sequence.
func (s *Sequential) Add(module Module) {
	s.modules = append(s.modules, module)
}

// Len returns the number of modules in the sequence.
func (s *Sequential) Len() int {
	return len(s.modules)
}

// Module returns the module at the given index.
// Panics if index is out of bounds.
func (s *Sequential) Module(index int) Module {
	if index < 0 || index >= len(s.modules) {
		panic("sequential: module index out of bounds")
	}
	return s.modules[index]
}

// StateDict returns a map of parameter names to tensors.
//
// Names are prefixed with the module index ("0.weight", "2.bias", ...)
// to avoid collisions between layers.
func (s *Sequential) StateDict() map[string]*tensor.Tensor {
	stateDict := make(map[string]*tensor.Tensor)
	for i, module := range s.modules {
		for name, t := range module.StateDict() {
			stateDict[fmt.Sprintf("%d.%s", i, name)] = t
		}
	}
	return stateDict
}

// LoadStateDict loads parameters from an index-prefixed state dictionary.
func (s *Sequential) LoadStateDict(stateDict map[string]*tensor.Tensor) error {
	for i, module := range s.modules {
		prefix := fmt.Sprintf("%d.", i)
		moduleStateDict := make(map[string]*tensor.Tensor)
		for key, t := range stateDict {
			if strings.HasPrefix(key, prefix) {
				moduleStateDict[key[len(prefix):]] = t
			}
		}
		if len(moduleStateDict) > 0 {
			if err := module.LoadStateDict(moduleStateDict); err != nil {
				return fmt.Errorf("failed to load module %d: %w", i, err)
			}
		}
	}
	return nil
}
