package cpu

import (
	"fmt"

	"github.com/born-ml/attnet/internal/tensor"
)

// Add performs element-wise addition with NumPy-style broadcasting.
func (cpu *CPUBackend) Add(a, b *tensor.RawTensor) *tensor.RawTensor {
	return binaryOp("add", a, b, func(x, y float32) float32 { return x + y })
}

// Mul performs element-wise multiplication with broadcasting.
func (cpu *CPUBackend) Mul(a, b *tensor.RawTensor) *tensor.RawTensor {
	return binaryOp("mul", a, b, func(x, y float32) float32 { return x * y })
}

// MulScalar multiplies every element by scalar.
func (cpu *CPUBackend) MulScalar(x *tensor.RawTensor, scalar float32) *tensor.RawTensor {
	result := tensor.MustRaw(x.Shape())
	out := result.Data()
	for i, v := range x.Data() {
		out[i] = v * scalar
	}
	return result
}

// ReLU applies max(0, x) element-wise.
func (cpu *CPUBackend) ReLU(x *tensor.RawTensor) *tensor.RawTensor {
	result := tensor.MustRaw(x.Shape())
	out := result.Data()
	for i, v := range x.Data() {
		if v > 0 {
			out[i] = v
		}
	}
	return result
}

// SumToShape sums x over the dimensions that broadcasting expanded, so the
// result has the given shape. Returns x itself when the shapes already match.
func (cpu *CPUBackend) SumToShape(x *tensor.RawTensor, shape tensor.Shape) *tensor.RawTensor {
	if x.Shape().Equal(shape) {
		return x
	}
	full, err := tensor.BroadcastShapes(shape, x.Shape())
	if err != nil || !full.Equal(x.Shape()) {
		panic(fmt.Sprintf("sum_to_shape: cannot reduce %v to %v", x.Shape(), shape))
	}

	result := tensor.MustRaw(shape)
	out := result.Data()
	dims := x.Shape()
	dst := shape.BroadcastStrides(dims)
	index := make([]int, len(dims))
	o := 0
	for _, v := range x.Data() {
		out[o] += v
		o = advance(index, dims, dst, o)
	}
	return result
}

// binaryOp applies f element-wise over the broadcast of a and b.
func binaryOp(name string, a, b *tensor.RawTensor, f func(x, y float32) float32) *tensor.RawTensor {
	outShape, err := tensor.BroadcastShapes(a.Shape(), b.Shape())
	if err != nil {
		panic(fmt.Sprintf("%s: %v", name, err))
	}

	result := tensor.MustRaw(outShape)
	out, ad, bd := result.Data(), a.Data(), b.Data()

	// Fast path: same shape
	if a.Shape().Equal(b.Shape()) {
		for i := range out {
			out[i] = f(ad[i], bd[i])
		}
		return result
	}

	// Slow path: walk the output index and advance both input offsets
	as := a.Shape().BroadcastStrides(outShape)
	bs := b.Shape().BroadcastStrides(outShape)
	index := make([]int, len(outShape))
	ai, bi := 0, 0
	for i := range out {
		out[i] = f(ad[ai], bd[bi])
		for d := len(outShape) - 1; d >= 0; d-- {
			index[d]++
			ai += as[d]
			bi += bs[d]
			if index[d] < outShape[d] {
				break
			}
			ai -= as[d] * outShape[d]
			bi -= bs[d] * outShape[d]
			index[d] = 0
		}
	}
	return result
}

// advance moves a row-major multi-index over dims by one position and returns
// the updated offset into a tensor with the given (possibly zero) strides.
func advance(index []int, dims tensor.Shape, strides []int, offset int) int {
	for d := len(dims) - 1; d >= 0; d-- {
		index[d]++
		offset += strides[d]
		if index[d] < dims[d] {
			return offset
		}
		offset -= strides[d] * dims[d]
		index[d] = 0
	}
	return offset
}
