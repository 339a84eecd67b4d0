package ops

import "github.com/born-ml/attnet/internal/tensor"

// MaxPool2DOp records a max pooling operation. The gradient flows only to
// the position that held each window maximum.
type MaxPool2DOp struct {
	input      *tensor.RawTensor
	output     *tensor.RawTensor
	kernelSize int
	stride     int
}

// NewMaxPool2DOp creates a new MaxPool2D operation.
func NewMaxPool2DOp(input, output *tensor.RawTensor, kernelSize, stride int) *MaxPool2DOp {
	return &MaxPool2DOp{
		input:      input,
		output:     output,
		kernelSize: kernelSize,
		stride:     stride,
	}
}

// Inputs returns the input tensor.
func (op *MaxPool2DOp) Inputs() []*tensor.RawTensor {
	return []*tensor.RawTensor{op.input}
}

// Output returns the output tensor.
func (op *MaxPool2DOp) Output() *tensor.RawTensor {
	return op.output
}

// Backward computes the input gradient for MaxPool2D.
func (op *MaxPool2DOp) Backward(outputGrad *tensor.RawTensor, backend tensor.Backend) []*tensor.RawTensor {
	return []*tensor.RawTensor{backend.MaxPool2DBackward(op.input, outputGrad, op.kernelSize, op.stride)}
}

// GlobalAvgPool2DOp records [N, C, H, W] -> [N, C] averaging.
//
// Backward pass: every spatial position receives outputGrad[n, c] / (H*W).
type GlobalAvgPool2DOp struct {
	input  *tensor.RawTensor
	output *tensor.RawTensor
}

// NewGlobalAvgPool2DOp creates a new GlobalAvgPool2D operation.
func NewGlobalAvgPool2DOp(input, output *tensor.RawTensor) *GlobalAvgPool2DOp {
	return &GlobalAvgPool2DOp{input: input, output: output}
}

// Inputs returns the input tensor.
func (op *GlobalAvgPool2DOp) Inputs() []*tensor.RawTensor {
	return []*tensor.RawTensor{op.input}
}

// Output returns the output tensor.
func (op *GlobalAvgPool2DOp) Output() *tensor.RawTensor {
	return op.output
}

// Backward spreads the gradient uniformly over the pooled positions.
func (op *GlobalAvgPool2DOp) Backward(outputGrad *tensor.RawTensor, backend tensor.Backend) []*tensor.RawTensor {
	shape := op.input.Shape()
	n, c, hw := shape[0], shape[1], shape[2]*shape[3]

	scaled := backend.MulScalar(backend.Reshape(outputGrad, tensor.Shape{n, c, 1, 1}), 1/float32(hw))
	return []*tensor.RawTensor{backend.Add(tensor.MustRaw(shape), scaled)}
}
