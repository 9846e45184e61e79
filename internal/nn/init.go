package nn

import (
	"math"
	"math/rand"

	"github.com/ffarishta/digits/internal/tensor"
)

// InitFunc initializes a weight tensor for the given fan-in/fan-out.
type InitFunc func(fanIn, fanOut int, shape tensor.Shape, rng *rand.Rand) *tensor.Tensor

// Xavier returns Xavier/Glorot uniform initialization:
// U(-sqrt(6/(fan_in+fan_out)), sqrt(6/(fan_in+fan_out))).
//
// This keeps the variance of activations roughly constant across layers.
func Xavier(fanIn, fanOut int, shape tensor.Shape, rng *rand.Rand) *tensor.Tensor {
	bound := math.Sqrt(6.0 / float64(fanIn+fanOut))
	t := tensor.New(shape)
	data := t.Data()
	for i := range data {
		data[i] = (rng.Float64()*2.0 - 1.0) * bound
	}
	return t
}

// StandardNormal initializes weights from N(0, 1).
//
// Used by the classic two-layer MNIST configuration; Xavier is preferred
// for deeper models.
func StandardNormal(_, _ int, shape tensor.Shape, rng *rand.Rand) *tensor.Tensor {
	return tensor.Randn(shape, rng)
}

// Zeros creates a zero tensor. Commonly used for bias initialization.
func Zeros(shape tensor.Shape) *tensor.Tensor {
	return tensor.Zeros(shape)
}
