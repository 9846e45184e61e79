package main

import (
	"math/rand"

	"github.com/ffarishta/digits/internal/mnist"
	"github.com/ffarishta/digits/internal/nn"
)

// NewMLP creates the classic two-layer digit classifier.
//
// Architecture:
//   - Input: 784 neurons (28×28 flattened image)
//   - Hidden: sigmoid layer (300 neurons in the classic configuration)
//   - Output: 10 logits, one per digit class
//
// Weights start from a standard normal draw and biases from zero, which
// together with standardized inputs trains to ~98% dev accuracy.
// Returns raw logits; CrossEntropyLoss applies softmax internally.
func NewMLP(hiddenSize int, rng *rand.Rand) *nn.Sequential {
	return nn.NewSequential(
		nn.NewLinearInit(mnist.ImageSize, hiddenSize, nn.StandardNormal, rng),
		nn.NewSigmoid(),
		nn.NewLinearInit(hiddenSize, mnist.NumClasses, nn.StandardNormal, rng),
	)
}

// NewCNN creates a LeNet-5 style convolutional digit classifier.
//
// Architecture:
//   - Conv 1→6 channels, 5×5 kernel  (28×28 → 24×24)
//   - MaxPool 2×2                    (24×24 → 12×12)
//   - Conv 6→16 channels, 5×5 kernel (12×12 → 8×8)
//   - MaxPool 2×2                    (8×8 → 4×4)
//   - FC 256 → 120 → 84 → 10
//
// Convolutional and fully connected layers use Xavier initialization.
func NewCNN(rng *rand.Rand) *nn.Sequential {
	return nn.NewSequential(
		nn.NewConv2D(1, 6, 5, 5, 1, 0, rng),
		nn.NewReLU(),
		nn.NewMaxPool2D(2, 2),
		nn.NewConv2D(6, 16, 5, 5, 1, 0, rng),
		nn.NewReLU(),
		nn.NewMaxPool2D(2, 2),
		nn.NewFlatten(),
		nn.NewLinear(16*4*4, 120, rng),
		nn.NewReLU(),
		nn.NewLinear(120, 84, rng),
		nn.NewReLU(),
		nn.NewLinear(84, mnist.NumClasses, rng),
	)
}

// countParameters returns the number of trainable scalars in a model.
func countParameters(model nn.Module) int {
	total := 0
	for _, param := range model.Parameters() {
		total += param.Tensor().NumElements()
	}
	return total
}
