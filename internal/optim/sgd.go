package optim

import (
	"fmt"

	"github.com/ffarishta/digits/internal/nn"
	"github.com/ffarishta/digits/internal/tensor"
)

// SGD implements stochastic gradient descent with optional momentum and
// weight decay.
//
// Update rule without momentum:
//
//	param = param - lr * (gradient + weight_decay * param)
//
// Update rule with momentum:
//
//	velocity = momentum * velocity + gradient + weight_decay * param
//	param = param - lr * velocity
//
// Weight decay is the L2-regularized training mode: a penalty of
// reg*||W||² on the loss contributes 2*reg*W to the gradient, so a run
// with regularization strength reg uses WeightDecay = 2*reg. Decay
// applies to weights and biases alike only if the caller includes them;
// see WithDecayFilter.
type SGD struct {
	params      []*nn.Parameter
	lr          float64
	momentum    float64
	weightDecay float64
	decayFilter func(*nn.Parameter) bool
	velocities  map[*nn.Parameter]*tensor.Tensor
}

// SGDConfig holds configuration for the SGD optimizer.
type SGDConfig struct {
	LR          float64 // Learning rate (default: 0.01)
	Momentum    float64 // Momentum factor (default: 0, range [0, 1))
	WeightDecay float64 // L2 penalty coefficient (default: 0)
}

// NewSGD creates a new SGD optimizer.
func NewSGD(params []*nn.Parameter, config SGDConfig) *SGD {
	if config.LR == 0 {
		config.LR = 0.01
	}

	return &SGD{
		params:      params,
		lr:          config.LR,
		momentum:    config.Momentum,
		weightDecay: config.WeightDecay,
		velocities:  make(map[*nn.Parameter]*tensor.Tensor),
	}
}

// WithDecayFilter restricts weight decay to parameters for which filter
// returns true. The original regularized run decays weight matrices but
// not biases:
//
//	optimizer.WithDecayFilter(func(p *nn.Parameter) bool {
//	    return p.Name() == "weight"
//	})
//
// Returns the optimizer for chaining.
func (s *SGD) WithDecayFilter(filter func(*nn.Parameter) bool) *SGD {
	s.decayFilter = filter
	return s
}

// Step performs a single optimization step over all parameters.
func (s *SGD) Step() {
	for _, param := range s.params {
		grad := param.Grad()
		if grad == nil {
			// Parameter did not participate in the backward pass.
			continue
		}

		decay := s.weightDecay
		if decay != 0 && s.decayFilter != nil && !s.decayFilter(param) {
			decay = 0
		}

		if s.momentum == 0 {
			// param = (1 - lr*decay)*param - lr*grad
			if decay != 0 {
				data := param.Tensor().Data()
				scale := 1 - s.lr*decay
				for i := range data {
					data[i] *= scale
				}
			}
			param.Tensor().AddScaled(grad, -s.lr)
			continue
		}

		velocity, ok := s.velocities[param]
		if !ok {
			velocity = tensor.Zeros(param.Tensor().Shape())
			s.velocities[param] = velocity
		}

		// velocity = momentum*velocity + grad + decay*param
		scaled := velocity.Scale(s.momentum)
		copy(velocity.Data(), scaled.Data())
		velocity.AddScaled(grad, 1)
		if decay != 0 {
			velocity.AddScaled(param.Tensor(), decay)
		}

		param.Tensor().AddScaled(velocity, -s.lr)
	}
}

// ZeroGrad clears gradients for all parameters.
func (s *SGD) ZeroGrad() {
	zeroGrads(s.params)
}

// LR returns the current learning rate.
func (s *SGD) LR() float64 {
	return s.lr
}

// SetLR updates the learning rate. Useful for scheduling.
func (s *SGD) SetLR(lr float64) {
	s.lr = lr
}

// StateDict returns velocity buffers keyed as "velocity.{param_index}".
// Without momentum the state is empty.
func (s *SGD) StateDict() map[string]*tensor.Tensor {
	stateDict := make(map[string]*tensor.Tensor)
	if s.momentum == 0 {
		return stateDict
	}
	for i, param := range s.params {
		velocity, ok := s.velocities[param]
		if !ok {
			continue // No velocity yet for this parameter.
		}
		stateDict[fmt.Sprintf("velocity.%d", i)] = velocity
	}
	return stateDict
}

// LoadStateDict restores velocity buffers saved by StateDict.
func (s *SGD) LoadStateDict(stateDict map[string]*tensor.Tensor) error {
	if s.momentum == 0 {
		return nil
	}

	s.velocities = make(map[*nn.Parameter]*tensor.Tensor)
	for i, param := range s.params {
		velocity, ok := stateDict[fmt.Sprintf("velocity.%d", i)]
		if !ok {
			continue // Initialized on first Step.
		}
		if !velocity.Shape().Equal(param.Tensor().Shape()) {
			return fmt.Errorf("velocity shape mismatch for parameter %d: expected %v, got %v",
				i, param.Tensor().Shape(), velocity.Shape())
		}
		s.velocities[param] = velocity.Clone()
	}
	return nil
}
