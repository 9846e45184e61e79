package nn

import (
	"fmt"
	"math/rand"

	"github.com/ffarishta/digits/internal/tensor"
)

// Linear implements a fully connected (dense) layer.
//
// Performs the transformation: y = x @ W.T + b
// where:
//   - x is the input tensor with shape [batch_size, in_features]
//   - W is the weight matrix with shape [out_features, in_features]
//   - b is the bias vector with shape [out_features]
//   - y is the output tensor with shape [batch_size, out_features]
type Linear struct {
	inFeatures  int
	outFeatures int
	weight      *Parameter // [out_features, in_features]
	bias        *Parameter // [out_features]

	input *tensor.Tensor // cached by Forward for Backward
}

// NewLinear creates a Linear layer with Xavier-initialized weights and
// zero biases.
func NewLinear(inFeatures, outFeatures int, rng *rand.Rand) *Linear {
	return NewLinearInit(inFeatures, outFeatures, Xavier, rng)
}

// NewLinearInit creates a Linear layer using the given weight initializer.
// Biases are always initialized to zeros.
func NewLinearInit(inFeatures, outFeatures int, init InitFunc, rng *rand.Rand) *Linear {
	if inFeatures <= 0 || outFeatures <= 0 {
		panic(fmt.Sprintf("linear: invalid features in=%d, out=%d", inFeatures, outFeatures))
	}

	weight := init(inFeatures, outFeatures, tensor.Shape{outFeatures, inFeatures}, rng)
	bias := Zeros(tensor.Shape{outFeatures})

	return &Linear{
		inFeatures:  inFeatures,
		outFeatures: outFeatures,
		weight:      NewParameter("weight", weight),
		bias:        NewParameter("bias", bias),
	}
}

// Forward computes y = x @ W.T + b.
//
// Input shape: [batch_size, in_features]
// Output shape: [batch_size, out_features]
//
// The input is cached for the following Backward call.
func (l *Linear) Forward(input *tensor.Tensor) *tensor.Tensor {
	inputShape := input.Shape()
	if len(inputShape) != 2 {
		panic(fmt.Sprintf("linear: expected 2D input [batch, features], got shape %v", inputShape))
	}
	if inputShape[1] != l.inFeatures {
		panic(fmt.Sprintf("linear: expected input with %d features, got %d", l.inFeatures, inputShape[1]))
	}

	l.input = input

	// [batch, in] @ [in, out] = [batch, out]
	output := input.MatMul(l.weight.Tensor().Transpose())

	// Broadcast bias [out] over the batch dimension.
	return output.Add(l.bias.Tensor().Reshape(1, l.outFeatures))
}

// Backward propagates the gradient through the layer.
//
// Given ∂L/∂y with shape [batch_size, out_features], accumulates
//
//	∂L/∂W = (∂L/∂y).T @ x    [out_features, in_features]
//	∂L/∂b = Σ_batch ∂L/∂y    [out_features]
//
// and returns ∂L/∂x = ∂L/∂y @ W with shape [batch_size, in_features].
//
// The loss gradient already carries the 1/batch factor, so no rescaling
// happens here.
func (l *Linear) Backward(gradOutput *tensor.Tensor) *tensor.Tensor {
	if l.input == nil {
		panic("linear: Backward called before Forward")
	}
	gradShape := gradOutput.Shape()
	if len(gradShape) != 2 || gradShape[0] != l.input.Shape()[0] || gradShape[1] != l.outFeatures {
		panic(fmt.Sprintf("linear: gradient shape %v does not match output [%d, %d]",
			gradShape, l.input.Shape()[0], l.outFeatures))
	}

	l.weight.AddGrad(gradOutput.Transpose().MatMul(l.input))
	l.bias.AddGrad(gradOutput.SumDim(0))

	return gradOutput.MatMul(l.weight.Tensor())
}

// Parameters returns [weight, bias].
func (l *Linear) Parameters() []*Parameter {
	return []*Parameter{l.weight, l.bias}
}

// Weight returns the weight parameter.
func (l *Linear) Weight() *Parameter {
	return l.weight
}

// Bias returns the bias parameter.
func (l *Linear) Bias() *Parameter {
	return l.bias
}

// InFeatures returns the number of input features.
func (l *Linear) InFeatures() int {
	return l.inFeatures
}

// OutFeatures returns the number of output features.
func (l *Linear) OutFeatures() int {
	return l.outFeatures
}

// StateDict returns a map of parameter names to tensors.
func (l *Linear) StateDict() map[string]*tensor.Tensor {
	return map[string]*tensor.Tensor{
		"weight": l.weight.Tensor(),
		"bias":   l.bias.Tensor(),
	}
}

// LoadStateDict loads parameters from a state dictionary.
func (l *Linear) LoadStateDict(stateDict map[string]*tensor.Tensor) error {
	return loadParameters(stateDict, l.weight, l.bias)
}

// loadParameters copies state-dict entries into parameters, validating
// presence and shape.
func loadParameters(stateDict map[string]*tensor.Tensor, params ...*Parameter) error {
	for _, p := range params {
		src, ok := stateDict[p.Name()]
		if !ok {
			return fmt.Errorf("missing %s in state dict", p.Name())
		}
		if !src.Shape().Equal(p.Tensor().Shape()) {
			return fmt.Errorf("%s shape mismatch: expected %v, got %v",
				p.Name(), p.Tensor().Shape(), src.Shape())
		}
		copy(p.Tensor().Data(), src.Data())
	}
	return nil
}
