package nn

import (
	"fmt"
	"math/rand"

	"github.com/ffarishta/digits/internal/parallel"
	"github.com/ffarishta/digits/internal/tensor"
)

// Conv2D is a 2D convolutional layer.
//
// Input shape:  [batch, in_channels, height, width]
// Weight shape: [out_channels, in_channels, kernel_h, kernel_w]
// Bias shape:   [out_channels]
// Output shape: [batch, out_channels, out_h, out_w]
//
// Where:
//
//	out_h = (height + 2*padding - kernel_h) / stride + 1
//	out_w = (width + 2*padding - kernel_w) / stride + 1
//
// The convolution is computed directly (no im2col); each (sample, output
// channel) pair is an independent unit of work and runs in parallel.
type Conv2D struct {
	inChannels  int
	outChannels int
	kernelSize  [2]int
	stride      int
	padding     int

	weight *Parameter // [out_channels, in_channels, kernel_h, kernel_w]
	bias   *Parameter // [out_channels]

	input *tensor.Tensor // cached for Backward
}

// NewConv2D creates a 2D convolutional layer with Xavier initialization.
//
// For convolutions, fan_in = in_channels*kernel_h*kernel_w and
// fan_out = out_channels*kernel_h*kernel_w.
func NewConv2D(inChannels, outChannels, kernelH, kernelW, stride, padding int, rng *rand.Rand) *Conv2D {
	if inChannels <= 0 || outChannels <= 0 {
		panic(fmt.Sprintf("conv2d: invalid channels in=%d, out=%d", inChannels, outChannels))
	}
	if kernelH <= 0 || kernelW <= 0 {
		panic(fmt.Sprintf("conv2d: invalid kernel size h=%d, w=%d", kernelH, kernelW))
	}
	if stride <= 0 {
		panic(fmt.Sprintf("conv2d: invalid stride %d", stride))
	}
	if padding < 0 {
		panic(fmt.Sprintf("conv2d: invalid padding %d", padding))
	}

	fanIn := inChannels * kernelH * kernelW
	fanOut := outChannels * kernelH * kernelW
	weight := Xavier(fanIn, fanOut, tensor.Shape{outChannels, inChannels, kernelH, kernelW}, rng)

	return &Conv2D{
		inChannels:  inChannels,
		outChannels: outChannels,
		kernelSize:  [2]int{kernelH, kernelW},
		stride:      stride,
		padding:     padding,
		weight:      NewParameter("weight", weight),
		bias:        NewParameter("bias", Zeros(tensor.Shape{outChannels})),
	}
}

// Forward performs the convolution.
//
// Input: [batch, in_channels, height, width]
// Output: [batch, out_channels, out_h, out_w]
func (c *Conv2D) Forward(input *tensor.Tensor) *tensor.Tensor {
	shape := input.Shape()
	if len(shape) != 4 {
		panic(fmt.Sprintf("conv2d: expected 4D input [N,C,H,W], got %v", shape))
	}
	if shape[1] != c.inChannels {
		panic(fmt.Sprintf("conv2d: input channels %d != expected %d", shape[1], c.inChannels))
	}

	c.input = input

	batch, height, width := shape[0], shape[2], shape[3]
	kh, kw := c.kernelSize[0], c.kernelSize[1]
	outH := (height+2*c.padding-kh)/c.stride + 1
	outW := (width+2*c.padding-kw)/c.stride + 1
	if outH <= 0 || outW <= 0 {
		panic(fmt.Sprintf("conv2d: kernel %dx%d does not fit input %dx%d with padding %d",
			kh, kw, height, width, c.padding))
	}

	output := tensor.New(tensor.Shape{batch, c.outChannels, outH, outW})

	in := input.Data()
	w := c.weight.Tensor().Data()
	bias := c.bias.Tensor().Data()
	out := output.Data()

	// One unit of work per (sample, output channel) pair.
	parallel.For(batch*c.outChannels, func(k int) {
		b, oc := k/c.outChannels, k%c.outChannels
		outBase := k * outH * outW
		for oh := 0; oh < outH; oh++ {
			for ow := 0; ow < outW; ow++ {
				sum := bias[oc]
				for ic := 0; ic < c.inChannels; ic++ {
					inBase := (b*c.inChannels + ic) * height * width
					wBase := ((oc*c.inChannels + ic) * kh) * kw
					for i := 0; i < kh; i++ {
						ih := oh*c.stride + i - c.padding
						if ih < 0 || ih >= height {
							continue
						}
						for j := 0; j < kw; j++ {
							iw := ow*c.stride + j - c.padding
							if iw < 0 || iw >= width {
								continue
							}
							sum += in[inBase+ih*width+iw] * w[wBase+i*kw+j]
						}
					}
				}
				out[outBase+oh*outW+ow] = sum
			}
		}
	}, parallel.DefaultConfig())

	return output
}

// Backward propagates the gradient through the convolution, accumulating
// weight and bias gradients and returning the input gradient.
func (c *Conv2D) Backward(gradOutput *tensor.Tensor) *tensor.Tensor {
	if c.input == nil {
		panic("conv2d: Backward called before Forward")
	}

	inShape := c.input.Shape()
	batch, height, width := inShape[0], inShape[2], inShape[3]
	kh, kw := c.kernelSize[0], c.kernelSize[1]

	gradShape := gradOutput.Shape()
	outH, outW := gradShape[2], gradShape[3]

	in := c.input.Data()
	w := c.weight.Tensor().Data()
	grad := gradOutput.Data()

	cfg := parallel.DefaultConfig()
	cfg.MinChunkSize = 1 // Each unit is a full spatial sweep.

	// Bias gradient: sum of the output gradient per channel.
	gradBias := tensor.New(tensor.Shape{c.outChannels})
	gb := gradBias.Data()
	for b := 0; b < batch; b++ {
		for oc := 0; oc < c.outChannels; oc++ {
			base := (b*c.outChannels + oc) * outH * outW
			sum := 0.0
			for k := 0; k < outH*outW; k++ {
				sum += grad[base+k]
			}
			gb[oc] += sum
		}
	}

	// Weight gradient: each output channel owns a disjoint slice of the
	// weight tensor, so channels run in parallel.
	gradWeight := tensor.New(c.weight.Tensor().Shape())
	gw := gradWeight.Data()
	parallel.For(c.outChannels, func(oc int) {
		for b := 0; b < batch; b++ {
			gradBase := (b*c.outChannels + oc) * outH * outW
			for ic := 0; ic < c.inChannels; ic++ {
				inBase := (b*c.inChannels + ic) * height * width
				wBase := ((oc*c.inChannels + ic) * kh) * kw
				for oh := 0; oh < outH; oh++ {
					for ow := 0; ow < outW; ow++ {
						g := grad[gradBase+oh*outW+ow]
						if g == 0 {
							continue
						}
						for i := 0; i < kh; i++ {
							ih := oh*c.stride + i - c.padding
							if ih < 0 || ih >= height {
								continue
							}
							for j := 0; j < kw; j++ {
								iw := ow*c.stride + j - c.padding
								if iw < 0 || iw >= width {
									continue
								}
								gw[wBase+i*kw+j] += g * in[inBase+ih*width+iw]
							}
						}
					}
				}
			}
		}
	}, cfg)

	// Input gradient: each sample owns a disjoint slice, so samples run
	// in parallel.
	gradInput := tensor.New(inShape)
	gi := gradInput.Data()
	parallel.For(batch, func(b int) {
		for oc := 0; oc < c.outChannels; oc++ {
			gradBase := (b*c.outChannels + oc) * outH * outW
			for oh := 0; oh < outH; oh++ {
				for ow := 0; ow < outW; ow++ {
					g := grad[gradBase+oh*outW+ow]
					if g == 0 {
						continue
					}
					for ic := 0; ic < c.inChannels; ic++ {
						inBase := (b*c.inChannels + ic) * height * width
						wBase := ((oc*c.inChannels + ic) * kh) * kw
						for i := 0; i < kh; i++ {
							ih := oh*c.stride + i - c.padding
							if ih < 0 || ih >= height {
								continue
							}
							for j := 0; j < kw; j++ {
								iw := ow*c.stride + j - c.padding
								if iw < 0 || iw >= width {
									continue
								}
								gi[inBase+ih*width+iw] += g * w[wBase+i*kw+j]
							}
						}
					}
				}
			}
		}
	}, cfg)

	c.weight.AddGrad(gradWeight)
	c.bias.AddGrad(gradBias)

	return gradInput
}

// Parameters returns [weight, bias].
func (c *Conv2D) Parameters() []*Parameter {
	return []*Parameter{c.weight, c.bias}
}

// ComputeOutputSize computes output spatial dimensions for an input size.
func (c *Conv2D) ComputeOutputSize(inputH, inputW int) [2]int {
	outH := (inputH+2*c.padding-c.kernelSize[0])/c.stride + 1
	outW := (inputW+2*c.padding-c.kernelSize[1])/c.stride + 1
	return [2]int{outH, outW}
}

// String returns a description of the layer.
func (c *Conv2D) String() string {
	return fmt.Sprintf("Conv2D(in_channels=%d, out_channels=%d, kernel_size=(%d, %d), stride=%d, padding=%d)",
		c.inChannels, c.outChannels, c.kernelSize[0], c.kernelSize[1], c.stride, c.padding)
}

// StateDict returns a map of parameter names to tensors.
func (c *Conv2D) StateDict() map[string]*tensor.Tensor {
	return map[string]*tensor.Tensor{
		"weight": c.weight.Tensor(),
		"bias":   c.bias.Tensor(),
	}
}

// LoadStateDict loads parameters from a state dictionary.
func (c *Conv2D) LoadStateDict(stateDict map[string]*tensor.Tensor) error {
	return loadParameters(stateDict, c.weight, c.bias)
}
