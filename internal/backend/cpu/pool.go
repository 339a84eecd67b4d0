package cpu

import (
	"fmt"

	"github.com/born-ml/attnet/internal/parallel"
	"github.com/born-ml/attnet/internal/tensor"
)

func poolOutput(op string, shape tensor.Shape, kernelSize, stride int) (n, c, h, w, hOut, wOut int) {
	if len(shape) != 4 {
		panic(fmt.Sprintf("%s: input must be 4D [N,C,H,W], got %dD", op, len(shape)))
	}
	if kernelSize < 1 || stride < 1 {
		panic(fmt.Sprintf("%s: invalid kernel size %d / stride %d", op, kernelSize, stride))
	}
	n, c, h, w = shape[0], shape[1], shape[2], shape[3]
	hOut = (h-kernelSize)/stride + 1
	wOut = (w-kernelSize)/stride + 1
	if h < kernelSize || w < kernelSize {
		panic(fmt.Sprintf("%s: input %dx%d smaller than kernel %d", op, h, w, kernelSize))
	}
	return n, c, h, w, hOut, wOut
}

// MaxPool2D applies max pooling with a square window.
//
// Output size per spatial dim is (in - kernelSize)/stride + 1 (floor), so a
// 2x2 stride-2 pool maps H to ⌊H/2⌋.
func (cpu *CPUBackend) MaxPool2D(input *tensor.RawTensor, kernelSize, stride int) *tensor.RawTensor {
	N, C, H, W, HOut, WOut := poolOutput("maxpool2d", input.Shape(), kernelSize, stride)

	output := tensor.MustRaw(tensor.Shape{N, C, HOut, WOut})
	in, out := input.Data(), output.Data()

	parallel.ForBatch(N, C, func(n, c int) {
		plane := in[(n*C+c)*H*W:]
		dst := out[(n*C+c)*HOut*WOut:]
		for oh := 0; oh < HOut; oh++ {
			for ow := 0; ow < WOut; ow++ {
				idx := argmaxWindow(plane, W, oh*stride, ow*stride, kernelSize)
				dst[oh*WOut+ow] = plane[idx]
			}
		}
	}, cpu.par)

	return output
}

// MaxPool2DBackward routes each output gradient to the input position that
// held the window maximum (the first one on ties). The argmax is recomputed
// from the input, so no indices need to be kept from the forward pass.
func (cpu *CPUBackend) MaxPool2DBackward(input, grad *tensor.RawTensor, kernelSize, stride int) *tensor.RawTensor {
	N, C, H, W, HOut, WOut := poolOutput("maxpool2d_backward", input.Shape(), kernelSize, stride)
	if !grad.Shape().Equal(tensor.Shape{N, C, HOut, WOut}) {
		panic(fmt.Sprintf("maxpool2d_backward: grad shape %v does not match output %v", grad.Shape(), tensor.Shape{N, C, HOut, WOut}))
	}

	inputGrad := tensor.MustRaw(input.Shape())
	in, dy, dx := input.Data(), grad.Data(), inputGrad.Data()

	parallel.ForBatch(N, C, func(n, c int) {
		plane := in[(n*C+c)*H*W:]
		dPlane := dx[(n*C+c)*H*W:]
		g := dy[(n*C+c)*HOut*WOut:]
		for oh := 0; oh < HOut; oh++ {
			for ow := 0; ow < WOut; ow++ {
				idx := argmaxWindow(plane, W, oh*stride, ow*stride, kernelSize)
				dPlane[idx] += g[oh*WOut+ow]
			}
		}
	}, cpu.par)

	return inputGrad
}

// argmaxWindow returns the plane offset of the maximum inside the k×k window
// whose top-left corner is (h0, w0).
func argmaxWindow(plane []float32, width, h0, w0, k int) int {
	best := h0*width + w0
	for kh := 0; kh < k; kh++ {
		row := (h0 + kh) * width
		for kw := 0; kw < k; kw++ {
			if plane[row+w0+kw] > plane[best] {
				best = row + w0 + kw
			}
		}
	}
	return best
}

// GlobalAvgPool2D averages each channel over its spatial positions:
// [N, C, H, W] -> [N, C].
func (cpu *CPUBackend) GlobalAvgPool2D(input *tensor.RawTensor) *tensor.RawTensor {
	shape := input.Shape()
	if len(shape) != 4 {
		panic(fmt.Sprintf("global_avg_pool2d: input must be 4D [N,C,H,W], got %dD", len(shape)))
	}
	N, C, HW := shape[0], shape[1], shape[2]*shape[3]

	output := tensor.MustRaw(tensor.Shape{N, C})
	in, out := input.Data(), output.Data()
	for i := 0; i < N*C; i++ {
		var sum float32
		for _, v := range in[i*HW : (i+1)*HW] {
			sum += v
		}
		out[i] = sum / float32(HW)
	}
	return output
}
