package ops

import "github.com/born-ml/attnet/internal/tensor"

// WeightedSumOp records out = Σ_i weights[:, i] * branches[i].
//
// Backward pass:
//   - grad_branch_i[b, ...] = weights[b, i] * outputGrad[b, ...]
//   - grad_weights[b, i]    = Σ_{...} outputGrad[b, ...] * branch_i[b, ...]
type WeightedSumOp struct {
	inputs []*tensor.RawTensor // [weights, branch_0, ..., branch_{K-1}]
	output *tensor.RawTensor
}

// NewWeightedSumOp creates a new WeightedSum operation.
func NewWeightedSumOp(weights *tensor.RawTensor, branches []*tensor.RawTensor, output *tensor.RawTensor) *WeightedSumOp {
	inputs := make([]*tensor.RawTensor, 0, len(branches)+1)
	inputs = append(inputs, weights)
	inputs = append(inputs, branches...)
	return &WeightedSumOp{inputs: inputs, output: output}
}

// Inputs returns the weights followed by the branches.
func (op *WeightedSumOp) Inputs() []*tensor.RawTensor {
	return op.inputs
}

// Output returns the output tensor.
func (op *WeightedSumOp) Output() *tensor.RawTensor {
	return op.output
}

// Backward computes gradients for the weights and every branch.
func (op *WeightedSumOp) Backward(outputGrad *tensor.RawTensor, backend tensor.Backend) []*tensor.RawTensor {
	weights, branches := op.inputs[0], op.inputs[1:]
	batch, k := weights.Shape()[0], weights.Shape()[1]

	// [B, 1, 1, ...] so a per-sample scalar broadcasts over the branch shape.
	colShape := make(tensor.Shape, len(outputGrad.Shape()))
	for i := range colShape {
		colShape[i] = 1
	}
	colShape[0] = batch

	wt := backend.Transpose(weights) // [K, B]: row i is column i of weights
	gradWeightsT := tensor.MustRaw(tensor.Shape{k, batch})

	grads := make([]*tensor.RawTensor, len(op.inputs))
	for i, branch := range branches {
		col, err := tensor.RawFromSlice(wt.Data()[i*batch:(i+1)*batch], colShape)
		if err != nil {
			panic(err)
		}
		grads[i+1] = backend.Mul(outputGrad, col)

		perSample := backend.SumToShape(backend.Mul(outputGrad, branch), colShape)
		copy(gradWeightsT.Data()[i*batch:(i+1)*batch], perSample.Data())
	}
	grads[0] = backend.Transpose(gradWeightsT)

	return grads
}
