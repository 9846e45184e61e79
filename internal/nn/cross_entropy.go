package nn

import (
	"fmt"
	"math"

	"github.com/ffarishta/digits/internal/tensor"
)

// CrossEntropyLoss computes softmax cross-entropy for multi-class
// classification.
//
// Forward takes raw logits and integer class targets and returns the mean
// loss over the batch, computed through LogSoftmax with the log-sum-exp
// trick for numerical stability:
//
//	Loss = -mean(log_probs[target])
//
// Backward returns the gradient with respect to the logits:
//
//	∂L/∂logits = (softmax(logits) - y_one_hot) / batch_size
//
// The 1/batch factor lives here and only here; downstream layers must not
// rescale.
type CrossEntropyLoss struct {
	probs   *tensor.Tensor // softmax probabilities cached by Forward
	targets []int
}

// NewCrossEntropyLoss creates a new cross-entropy loss function.
func NewCrossEntropyLoss() *CrossEntropyLoss {
	return &CrossEntropyLoss{}
}

// Forward computes the mean cross-entropy loss.
//
// logits must have shape [batch_size, num_classes]; targets holds one
// class index per sample, each in [0, num_classes).
func (c *CrossEntropyLoss) Forward(logits *tensor.Tensor, targets []int) float64 {
	shape := logits.Shape()
	if len(shape) != 2 {
		panic(fmt.Sprintf("cross entropy: logits must be 2D [batch, classes], got %v", shape))
	}
	batchSize, numClasses := shape[0], shape[1]
	if len(targets) != batchSize {
		panic(fmt.Sprintf("cross entropy: %d targets for batch of %d", len(targets), batchSize))
	}

	logitsData := logits.Data()
	probs := tensor.New(shape)
	probsData := probs.Data()

	totalLoss := 0.0
	for b := 0; b < batchSize; b++ {
		row := logitsData[b*numClasses : (b+1)*numClasses]
		logProbs := logSoftmax(row)

		target := targets[b]
		if target < 0 || target >= numClasses {
			panic(fmt.Sprintf("cross entropy: target %d out of range [0, %d)", target, numClasses))
		}
		totalLoss -= logProbs[target]

		probsRow := probsData[b*numClasses : (b+1)*numClasses]
		for i, lp := range logProbs {
			probsRow[i] = math.Exp(lp)
		}
	}

	c.probs = probs
	c.targets = targets

	return totalLoss / float64(batchSize)
}

// Backward returns ∂L/∂logits = (softmax(logits) - y_one_hot) / batch_size.
func (c *CrossEntropyLoss) Backward() *tensor.Tensor {
	if c.probs == nil {
		panic("cross entropy: Backward called before Forward")
	}

	shape := c.probs.Shape()
	batchSize, numClasses := shape[0], shape[1]
	invN := 1.0 / float64(batchSize)

	grad := c.probs.Scale(invN)
	gradData := grad.Data()
	for b, target := range c.targets {
		gradData[b*numClasses+target] -= invN
	}
	return grad
}

// logSoftmax computes log(softmax(z)) in a numerically stable way:
//
//	LogSoftmax(z)[i] = z[i] - (max(z) + log(Σ exp(z - max(z))))
func logSoftmax(z []float64) []float64 {
	maxZ := z[0]
	for _, v := range z[1:] {
		if v > maxZ {
			maxZ = v
		}
	}

	sumExp := 0.0
	for _, v := range z {
		sumExp += math.Exp(v - maxZ)
	}
	logSumExp := maxZ + math.Log(sumExp)

	result := make([]float64, len(z))
	for i, v := range z {
		result[i] = v - logSumExp
	}
	return result
}

// argmax returns the index of the maximum value. Ties resolve to the
// lowest index.
func argmax(z []float64) int {
	maxIdx := 0
	maxVal := z[0]
	for i, v := range z[1:] {
		if v > maxVal {
			maxVal = v
			maxIdx = i + 1
		}
	}
	return maxIdx
}

// Accuracy computes classification accuracy for a batch.
//
// logits has shape [batch_size, num_classes]; targets holds one class
// index per sample. Returns a value in [0, 1].
func Accuracy(logits *tensor.Tensor, targets []int) float64 {
	shape := logits.Shape()
	batchSize, numClasses := shape[0], shape[1]
	logitsData := logits.Data()

	correct := 0
	for b := 0; b < batchSize; b++ {
		row := logitsData[b*numClasses : (b+1)*numClasses]
		if argmax(row) == targets[b] {
			correct++
		}
	}
	return float64(correct) / float64(batchSize)
}
