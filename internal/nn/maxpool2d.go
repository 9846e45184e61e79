package nn

import (
	"fmt"

	"github.com/ffarishta/digits/internal/parallel"
	"github.com/ffarishta/digits/internal/tensor"
)

// MaxPool2D is a 2D max pooling layer.
//
// Input shape:  [batch, channels, height, width]
// Output shape: [batch, channels, out_h, out_w]
//
// Where:
//
//	out_h = (height - kernelSize) / stride + 1
//	out_w = (width - kernelSize) / stride + 1
//
// MaxPool2D has no trainable parameters. Forward records the flat index
// of each window maximum so Backward can route gradients to the winning
// elements only.
type MaxPool2D struct {
	kernelSize int
	stride     int

	inputShape tensor.Shape
	argmax     []int // flat input index of the max per output element
}

// NewMaxPool2D creates a 2D max pooling layer with a square window.
func NewMaxPool2D(kernelSize, stride int) *MaxPool2D {
	if kernelSize <= 0 {
		panic(fmt.Sprintf("maxpool2d: invalid kernel size %d", kernelSize))
	}
	if stride <= 0 {
		panic(fmt.Sprintf("maxpool2d: invalid stride %d", stride))
	}
	return &MaxPool2D{kernelSize: kernelSize, stride: stride}
}

// Forward performs the pooling.
func (m *MaxPool2D) Forward(input *tensor.Tensor) *tensor.Tensor {
	shape := input.Shape()
	if len(shape) != 4 {
		panic(fmt.Sprintf("maxpool2d: expected 4D input [N,C,H,W], got %v", shape))
	}

	batch, channels, height, width := shape[0], shape[1], shape[2], shape[3]
	outH := (height-m.kernelSize)/m.stride + 1
	outW := (width-m.kernelSize)/m.stride + 1
	if outH <= 0 || outW <= 0 {
		panic(fmt.Sprintf("maxpool2d: window %d does not fit input %dx%d", m.kernelSize, height, width))
	}

	m.inputShape = shape.Clone()
	output := tensor.New(tensor.Shape{batch, channels, outH, outW})
	m.argmax = make([]int, output.NumElements())

	in := input.Data()
	out := output.Data()

	// One unit of work per (sample, channel) pair.
	parallel.For(batch*channels, func(k int) {
		inBase := k * height * width
		outBase := k * outH * outW
		for oh := 0; oh < outH; oh++ {
			for ow := 0; ow < outW; ow++ {
				maxIdx := inBase + (oh*m.stride)*width + ow*m.stride
				maxVal := in[maxIdx]
				for i := 0; i < m.kernelSize; i++ {
					rowBase := inBase + (oh*m.stride+i)*width + ow*m.stride
					for j := 0; j < m.kernelSize; j++ {
						if in[rowBase+j] > maxVal {
							maxVal = in[rowBase+j]
							maxIdx = rowBase + j
						}
					}
				}
				outIdx := outBase + oh*outW + ow
				out[outIdx] = maxVal
				m.argmax[outIdx] = maxIdx
			}
		}
	}, parallel.DefaultConfig())

	return output
}

// Backward scatters gradients back to the window maxima.
func (m *MaxPool2D) Backward(gradOutput *tensor.Tensor) *tensor.Tensor {
	if m.argmax == nil {
		panic("maxpool2d: Backward called before Forward")
	}
	if gradOutput.NumElements() != len(m.argmax) {
		panic(fmt.Sprintf("maxpool2d: gradient has %d elements, expected %d",
			gradOutput.NumElements(), len(m.argmax)))
	}

	gradInput := tensor.New(m.inputShape)
	gi := gradInput.Data()
	for outIdx, inIdx := range m.argmax {
		gi[inIdx] += gradOutput.Data()[outIdx]
	}
	return gradInput
}

// Parameters returns an empty slice.
func (m *MaxPool2D) Parameters() []*Parameter {
	return nil
}

// ComputeOutputSize computes output spatial dimensions for an input size.
func (m *MaxPool2D) ComputeOutputSize(inputH, inputW int) [2]int {
	outH := (inputH-m.kernelSize)/m.stride + 1
	outW := (inputW-m.kernelSize)/m.stride + 1
	return [2]int{outH, outW}
}

// String returns a description of the layer.
func (m *MaxPool2D) String() string {
	return fmt.Sprintf("MaxPool2D(kernel_size=%d, stride=%d)", m.kernelSize, m.stride)
}

// StateDict returns an empty map.
func (m *MaxPool2D) StateDict() map[string]*tensor.Tensor {
	return map[string]*tensor.Tensor{}
}

// LoadStateDict is a no-op.
func (m *MaxPool2D) LoadStateDict(map[string]*tensor.Tensor) error {
	return nil
}
