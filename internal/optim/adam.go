package optim

import (
	"fmt"
	"math"

	"github.com/ffarishta/digits/internal/nn"
	"github.com/ffarishta/digits/internal/tensor"
)

// Adam implements the Adam (Adaptive Moment Estimation) optimizer.
//
// Adam maintains exponential moving averages of the gradients (first
// moment) and of the squared gradients (second moment), with bias
// correction for their zero initialization:
//
//	m_t = beta1 * m_{t-1} + (1-beta1) * gradient
//	v_t = beta2 * v_{t-1} + (1-beta2) * gradient²
//	m_hat = m_t / (1 - beta1^t)
//	v_hat = v_t / (1 - beta2^t)
//	param = param - lr * m_hat / (sqrt(v_hat) + eps)
//
// Reference: "Adam: A Method for Stochastic Optimization" (Kingma & Ba, 2014).
// The CNN configuration trains with Adam; the classic two-layer run uses SGD.
type Adam struct {
	params []*nn.Parameter
	lr     float64
	beta1  float64
	beta2  float64
	eps    float64
	t      int // timestep for bias correction
	m      map[*nn.Parameter]*tensor.Tensor
	v      map[*nn.Parameter]*tensor.Tensor
}

// AdamConfig holds configuration for the Adam optimizer.
type AdamConfig struct {
	LR    float64    // Learning rate (default: 0.001)
	Betas [2]float64 // Running average coefficients (default: [0.9, 0.999])
	Eps   float64    // Numerical stability term (default: 1e-8)
}

// NewAdam creates a new Adam optimizer with defaults for unset fields.
func NewAdam(params []*nn.Parameter, config AdamConfig) *Adam {
	if config.LR == 0 {
		config.LR = 0.001
	}
	if config.Betas == [2]float64{} {
		config.Betas = [2]float64{0.9, 0.999}
	}
	if config.Eps == 0 {
		config.Eps = 1e-8
	}

	return &Adam{
		params: params,
		lr:     config.LR,
		beta1:  config.Betas[0],
		beta2:  config.Betas[1],
		eps:    config.Eps,
		m:      make(map[*nn.Parameter]*tensor.Tensor),
		v:      make(map[*nn.Parameter]*tensor.Tensor),
	}
}

// Step performs a single optimization step over all parameters.
func (a *Adam) Step() {
	a.t++

	biasCorr1 := 1 - math.Pow(a.beta1, float64(a.t))
	biasCorr2 := 1 - math.Pow(a.beta2, float64(a.t))

	for _, param := range a.params {
		grad := param.Grad()
		if grad == nil {
			continue
		}

		m, ok := a.m[param]
		if !ok {
			m = tensor.Zeros(param.Tensor().Shape())
			a.m[param] = m
		}
		v, ok := a.v[param]
		if !ok {
			v = tensor.Zeros(param.Tensor().Shape())
			a.v[param] = v
		}

		mData := m.Data()
		vData := v.Data()
		gData := grad.Data()
		pData := param.Tensor().Data()

		for i := range pData {
			g := gData[i]
			mData[i] = a.beta1*mData[i] + (1-a.beta1)*g
			vData[i] = a.beta2*vData[i] + (1-a.beta2)*g*g

			mHat := mData[i] / biasCorr1
			vHat := vData[i] / biasCorr2

			pData[i] -= a.lr * mHat / (math.Sqrt(vHat) + a.eps)
		}
	}
}

// ZeroGrad clears gradients for all parameters.
func (a *Adam) ZeroGrad() {
	zeroGrads(a.params)
}

// LR returns the current learning rate.
func (a *Adam) LR() float64 {
	return a.lr
}

// StateDict returns the moment estimates keyed as "m.{i}" and "v.{i}".
// The timestep is stored as a one-element tensor under "t".
func (a *Adam) StateDict() map[string]*tensor.Tensor {
	stateDict := make(map[string]*tensor.Tensor)

	tVal := tensor.New(tensor.Shape{1})
	tVal.Data()[0] = float64(a.t)
	stateDict["t"] = tVal

	for i, param := range a.params {
		if m, ok := a.m[param]; ok {
			stateDict[fmt.Sprintf("m.%d", i)] = m
		}
		if v, ok := a.v[param]; ok {
			stateDict[fmt.Sprintf("v.%d", i)] = v
		}
	}
	return stateDict
}

// LoadStateDict restores moment estimates saved by StateDict.
func (a *Adam) LoadStateDict(stateDict map[string]*tensor.Tensor) error {
	if tVal, ok := stateDict["t"]; ok {
		a.t = int(tVal.Data()[0])
	}

	a.m = make(map[*nn.Parameter]*tensor.Tensor)
	a.v = make(map[*nn.Parameter]*tensor.Tensor)

	for i, param := range a.params {
		for _, entry := range []struct {
			key  string
			dest map[*nn.Parameter]*tensor.Tensor
		}{
			{fmt.Sprintf("m.%d", i), a.m},
			{fmt.Sprintf("v.%d", i), a.v},
		} {
			t, ok := stateDict[entry.key]
			if !ok {
				continue
			}
			if !t.Shape().Equal(param.Tensor().Shape()) {
				return fmt.Errorf("%s shape mismatch: expected %v, got %v",
					entry.key, param.Tensor().Shape(), t.Shape())
			}
			entry.dest[param] = t.Clone()
		}
	}
	return nil
}
