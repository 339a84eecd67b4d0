package ops

import "github.com/born-ml/attnet/internal/tensor"

// BatchNorm2DOp records a batch normalization over [N, C, H, W].
//
// The statistics used in the forward pass are stored with the op. When they
// were computed from the batch itself, the backward pass differentiates
// through the mean and variance as well.
type BatchNorm2DOp struct {
	inputs []*tensor.RawTensor // [x, gamma, beta]
	output *tensor.RawTensor
	stats  tensor.BatchNormStats
}

// NewBatchNorm2DOp creates a new BatchNorm2D operation.
func NewBatchNorm2DOp(x, gamma, beta, output *tensor.RawTensor, stats tensor.BatchNormStats) *BatchNorm2DOp {
	return &BatchNorm2DOp{
		inputs: []*tensor.RawTensor{x, gamma, beta},
		output: output,
		stats:  stats,
	}
}

// Inputs returns the input tensors [x, gamma, beta].
func (op *BatchNorm2DOp) Inputs() []*tensor.RawTensor {
	return op.inputs
}

// Output returns the output tensor.
func (op *BatchNorm2DOp) Output() *tensor.RawTensor {
	return op.output
}

// Backward computes gradients for x, gamma and beta.
func (op *BatchNorm2DOp) Backward(outputGrad *tensor.RawTensor, backend tensor.Backend) []*tensor.RawTensor {
	dx, dgamma, dbeta := backend.BatchNorm2DBackward(op.inputs[0], op.inputs[1], outputGrad, op.stats)
	return []*tensor.RawTensor{
		dx,
		backend.Reshape(dgamma, op.inputs[1].Shape()),
		backend.Reshape(dbeta, op.inputs[2].Shape()),
	}
}
