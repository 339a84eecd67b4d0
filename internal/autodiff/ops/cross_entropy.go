package ops

import (
	"github.com/born-ml/attnet/internal/tensor"
	"github.com/chewxy/math32"
)

// CrossEntropyOp represents the cross-entropy loss operation.
//
// Forward:
//
//	Loss = mean(-log_softmax(logits)[targets])
//
// Backward:
//
//	∂L/∂logits = (softmax(logits) - y_one_hot) / batch_size
//
// Assumptions:
//   - Logits shape: [batch_size, num_classes] (2D)
//   - Targets: one class index per row
//   - Output: scalar loss (mean over batch)
type CrossEntropyOp struct {
	logits  *tensor.RawTensor
	targets []int
	output  *tensor.RawTensor
}

// NewCrossEntropyOp creates a new cross-entropy operation.
func NewCrossEntropyOp(logits *tensor.RawTensor, targets []int, output *tensor.RawTensor) *CrossEntropyOp {
	return &CrossEntropyOp{
		logits:  logits,
		targets: append([]int(nil), targets...),
		output:  output,
	}
}

// Inputs returns the input tensors. Targets are constants and receive no gradient.
func (op *CrossEntropyOp) Inputs() []*tensor.RawTensor {
	return []*tensor.RawTensor{op.logits}
}

// Output returns the output tensor.
func (op *CrossEntropyOp) Output() *tensor.RawTensor {
	return op.output
}

// Backward computes the gradient with respect to logits.
func (op *CrossEntropyOp) Backward(outputGrad *tensor.RawTensor, _ tensor.Backend) []*tensor.RawTensor {
	shape := op.logits.Shape()
	batchSize, numClasses := shape[0], shape[1]
	scale := outputGrad.Data()[0] / float32(batchSize)

	logitsGrad := tensor.MustRaw(shape)
	src, dst := op.logits.Data(), logitsGrad.Data()

	for b := 0; b < batchSize; b++ {
		row := src[b*numClasses : (b+1)*numClasses]
		out := dst[b*numClasses : (b+1)*numClasses]

		maxVal := row[0]
		for _, v := range row[1:] {
			maxVal = math32.Max(maxVal, v)
		}
		var sum float32
		for i, v := range row {
			out[i] = math32.Exp(v - maxVal)
			sum += out[i]
		}
		for i := range out {
			out[i] = out[i] / sum * scale
		}
		out[op.targets[b]] -= scale
	}

	return []*tensor.RawTensor{logitsGrad}
}
