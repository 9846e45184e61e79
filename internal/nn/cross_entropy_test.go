package nn_test

import (
	"math"
	"testing"

	"github.com/ffarishta/digits/internal/nn"
	"github.com/ffarishta/digits/internal/tensor"
)

func TestCrossEntropy_UniformLogits(t *testing.T) {
	// Equal logits over k classes give loss = ln(k) regardless of target.
	loss := nn.NewCrossEntropyLoss()
	logits := tensor.Zeros(tensor.Shape{2, 10})
	value := loss.Forward(logits, []int{3, 7})

	if !floatEqual(value, math.Log(10), 1e-12) {
		t.Errorf("loss = %f, want ln(10) = %f", value, math.Log(10))
	}
}

func TestCrossEntropy_ConfidentPrediction(t *testing.T) {
	loss := nn.NewCrossEntropyLoss()

	// A large logit on the target class drives the loss toward zero.
	logits, _ := tensor.FromSlice([]float64{20, 0, 0}, tensor.Shape{1, 3})
	if v := loss.Forward(logits, []int{0}); v > 1e-6 {
		t.Errorf("confident correct prediction: loss = %f, want ~0", v)
	}

	// The same logit on a wrong class makes the loss approximately the margin.
	if v := loss.Forward(logits, []int{1}); !floatEqual(v, 20, 1e-6) {
		t.Errorf("confident wrong prediction: loss = %f, want ~20", v)
	}
}

func TestCrossEntropy_LargeLogits_NoOverflow(t *testing.T) {
	loss := nn.NewCrossEntropyLoss()
	logits, _ := tensor.FromSlice([]float64{1000, 999, 998}, tensor.Shape{1, 3})
	value := loss.Forward(logits, []int{0})

	if math.IsNaN(value) || math.IsInf(value, 0) {
		t.Fatalf("loss overflowed: %f", value)
	}
}

func TestCrossEntropy_Backward(t *testing.T) {
	loss := nn.NewCrossEntropyLoss()
	logits := tensor.Zeros(tensor.Shape{2, 4})
	loss.Forward(logits, []int{0, 2})

	grad := loss.Backward()
	if !grad.Shape().Equal(tensor.Shape{2, 4}) {
		t.Fatalf("grad shape = %v, want [2 4]", grad.Shape())
	}

	// Uniform logits: softmax = 1/4 everywhere, so grad = (1/4 - onehot)/2.
	for b := 0; b < 2; b++ {
		target := []int{0, 2}[b]
		for i := 0; i < 4; i++ {
			want := 0.25 / 2
			if i == target {
				want = (0.25 - 1.0) / 2
			}
			if !floatEqual(grad.At(b, i), want, 1e-12) {
				t.Errorf("grad[%d][%d] = %f, want %f", b, i, grad.At(b, i), want)
			}
		}
	}

	// Each row of the logit gradient sums to zero.
	for b := 0; b < 2; b++ {
		sum := 0.0
		for i := 0; i < 4; i++ {
			sum += grad.At(b, i)
		}
		if !floatEqual(sum, 0, 1e-12) {
			t.Errorf("row %d gradient sums to %f, want 0", b, sum)
		}
	}
}

func TestCrossEntropy_Backward_MatchesNumericalGradient(t *testing.T) {
	logits, _ := tensor.FromSlice([]float64{0.2, -1.1, 0.8, 1.5, 0.3, -0.7}, tensor.Shape{2, 3})
	targets := []int{2, 0}

	loss := nn.NewCrossEntropyLoss()
	loss.Forward(logits, targets)
	grad := loss.Backward()

	epsilon := 1e-6
	data := logits.Data()
	for i := range data {
		orig := data[i]
		data[i] = orig + epsilon
		plus := nn.NewCrossEntropyLoss().Forward(logits, targets)
		data[i] = orig - epsilon
		minus := nn.NewCrossEntropyLoss().Forward(logits, targets)
		data[i] = orig

		numerical := (plus - minus) / (2 * epsilon)
		if !floatEqual(grad.Data()[i], numerical, 1e-5) {
			t.Errorf("grad[%d] = %f, numerical = %f", i, grad.Data()[i], numerical)
		}
	}
}

func TestAccuracy(t *testing.T) {
	logits, _ := tensor.FromSlice([]float64{
		0.9, 0.1, 0.0, // pred 0
		0.1, 0.2, 0.7, // pred 2
		0.3, 0.5, 0.2, // pred 1
		0.8, 0.1, 0.1, // pred 0
	}, tensor.Shape{4, 3})

	acc := nn.Accuracy(logits, []int{0, 2, 0, 0})
	if !floatEqual(acc, 0.75, 1e-12) {
		t.Errorf("accuracy = %f, want 0.75", acc)
	}
}

func TestAccuracy_TiesResolveToLowestIndex(t *testing.T) {
	logits, _ := tensor.FromSlice([]float64{0.5, 0.5, 0.5}, tensor.Shape{1, 3})

	if acc := nn.Accuracy(logits, []int{0}); acc != 1.0 {
		t.Errorf("tie should resolve to index 0, accuracy = %f", acc)
	}
	if acc := nn.Accuracy(logits, []int{2}); acc != 0.0 {
		t.Errorf("tie should not resolve to index 2, accuracy = %f", acc)
	}
}
