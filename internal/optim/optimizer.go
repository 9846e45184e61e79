// Package optim implements optimization algorithms for training the
// digit classifier.
//
// Optimizers read the gradients accumulated on nn.Parameters by the
// backward pass and update the parameter tensors in place:
//
//	optimizer.ZeroGrad()
//	logits := model.Forward(batch)
//	loss := criterion.Forward(logits, targets)
//	model.Backward(criterion.Backward())
//	optimizer.Step()
package optim

import (
	"github.com/ffarishta/digits/internal/nn"
	"github.com/ffarishta/digits/internal/tensor"
)

// Optimizer is the base interface for all optimization algorithms.
type Optimizer interface {
	// Step applies one gradient update to all parameters.
	// Parameters with nil gradients are skipped.
	Step()

	// ZeroGrad clears all parameter gradients.
	// Call before each backward pass to prevent gradient accumulation
	// across batches.
	ZeroGrad()

	// LR returns the current learning rate.
	LR() float64

	// StateDict returns the optimizer's internal state (momentum buffers,
	// moment estimates) for checkpointing.
	StateDict() map[string]*tensor.Tensor

	// LoadStateDict restores the optimizer's internal state.
	LoadStateDict(stateDict map[string]*tensor.Tensor) error
}

// zeroGrads clears gradients on a parameter list.
func zeroGrads(params []*nn.Parameter) {
	for _, param := range params {
		param.ZeroGrad()
	}
}
