package tensor

import (
	"fmt"

	"github.com/ffarishta/digits/internal/parallel"
)

// Add returns the element-wise sum of two tensors with NumPy-style
// broadcasting. Panics if the shapes are not broadcast-compatible.
func (t *Tensor) Add(other *Tensor) *Tensor {
	return binaryOp("Add", t, other, func(a, b float64) float64 { return a + b })
}

// Sub returns the element-wise difference of two tensors with broadcasting.
func (t *Tensor) Sub(other *Tensor) *Tensor {
	return binaryOp("Sub", t, other, func(a, b float64) float64 { return a - b })
}

// Mul returns the element-wise product of two tensors with broadcasting.
func (t *Tensor) Mul(other *Tensor) *Tensor {
	return binaryOp("Mul", t, other, func(a, b float64) float64 { return a * b })
}

// Scale returns a new tensor with every element multiplied by s.
func (t *Tensor) Scale(s float64) *Tensor {
	out := New(t.shape)
	for i, v := range t.data {
		out.data[i] = v * s
	}
	return out
}

// AddScaled adds s*other to t in place. Both tensors must have the same
// shape. Used by optimizers for parameter updates without allocating.
func (t *Tensor) AddScaled(other *Tensor, s float64) {
	if !t.shape.Equal(other.shape) {
		panic(fmt.Sprintf("tensor.AddScaled: shape mismatch %v vs %v", t.shape, other.shape))
	}
	for i, v := range other.data {
		t.data[i] += v * s
	}
}

// binaryOp applies f element-wise over the broadcast of a and b.
func binaryOp(name string, a, b *Tensor, f func(x, y float64) float64) *Tensor {
	// Fast path: identical shapes, no index arithmetic.
	if a.shape.Equal(b.shape) {
		out := New(a.shape)
		for i := range a.data {
			out.data[i] = f(a.data[i], b.data[i])
		}
		return out
	}

	outShape, _, err := BroadcastShapes(a.shape, b.shape)
	if err != nil {
		panic(fmt.Sprintf("tensor.%s: %v", name, err))
	}

	out := New(outShape)
	aStrides := broadcastStrides(a.shape, outShape)
	bStrides := broadcastStrides(b.shape, outShape)
	outStrides := outShape.ComputeStrides()

	for i := range out.data {
		aOff, bOff := 0, 0
		rem := i
		for d := 0; d < len(outShape); d++ {
			coord := rem / outStrides[d]
			rem %= outStrides[d]
			aOff += coord * aStrides[d]
			bOff += coord * bStrides[d]
		}
		out.data[i] = f(a.data[aOff], b.data[bOff])
	}
	return out
}

// broadcastStrides returns strides for indexing src as if it had shape out.
// Size-1 (or missing leading) dimensions get stride 0 so the single value
// is reused across the broadcast dimension.
func broadcastStrides(src, out Shape) []int {
	srcStrides := src.ComputeStrides()
	strides := make([]int, len(out))
	offset := len(out) - len(src)
	for d := range out {
		srcDim := d - offset
		if srcDim < 0 || src[srcDim] == 1 {
			strides[d] = 0
		} else {
			strides[d] = srcStrides[srcDim]
		}
	}
	return strides
}

// MatMul performs 2D matrix multiplication: [m, k] @ [k, n] → [m, n].
// Rows of the output are computed in parallel for large matrices.
func (t *Tensor) MatMul(other *Tensor) *Tensor {
	if len(t.shape) != 2 || len(other.shape) != 2 {
		panic(fmt.Sprintf("tensor.MatMul: expected 2D tensors, got %v and %v", t.shape, other.shape))
	}
	m, k := t.shape[0], t.shape[1]
	k2, n := other.shape[0], other.shape[1]
	if k != k2 {
		panic(fmt.Sprintf("tensor.MatMul: inner dimensions do not match: %v @ %v", t.shape, other.shape))
	}

	out := New(Shape{m, n})
	cfg := parallel.DefaultConfig()
	cfg.MinChunkSize = 8 // Rows are heavy units of work.

	parallel.For(m, func(i int) {
		aRow := t.data[i*k : (i+1)*k]
		outRow := out.data[i*n : (i+1)*n]
		for p := 0; p < k; p++ {
			av := aRow[p]
			if av == 0 {
				continue
			}
			bRow := other.data[p*n : (p+1)*n]
			for j := 0; j < n; j++ {
				outRow[j] += av * bRow[j]
			}
		}
	}, cfg)

	return out
}

// Transpose returns the transpose of a 2D tensor.
func (t *Tensor) Transpose() *Tensor {
	if len(t.shape) != 2 {
		panic(fmt.Sprintf("tensor.Transpose: expected 2D tensor, got %v", t.shape))
	}
	rows, cols := t.shape[0], t.shape[1]
	out := New(Shape{cols, rows})
	for i := 0; i < rows; i++ {
		for j := 0; j < cols; j++ {
			out.data[j*rows+i] = t.data[i*cols+j]
		}
	}
	return out
}

// SumDim sums a 2D tensor along the given dimension.
//
//	dim=0: column sums, result shape [cols]
//	dim=1: row sums, result shape [rows]
func (t *Tensor) SumDim(dim int) *Tensor {
	if len(t.shape) != 2 {
		panic(fmt.Sprintf("tensor.SumDim: expected 2D tensor, got %v", t.shape))
	}
	rows, cols := t.shape[0], t.shape[1]

	switch dim {
	case 0:
		out := New(Shape{cols})
		for i := 0; i < rows; i++ {
			row := t.data[i*cols : (i+1)*cols]
			for j, v := range row {
				out.data[j] += v
			}
		}
		return out
	case 1:
		out := New(Shape{rows})
		for i := 0; i < rows; i++ {
			row := t.data[i*cols : (i+1)*cols]
			sum := 0.0
			for _, v := range row {
				sum += v
			}
			out.data[i] = sum
		}
		return out
	default:
		panic(fmt.Sprintf("tensor.SumDim: invalid dimension %d for 2D tensor", dim))
	}
}
