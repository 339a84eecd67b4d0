package cpu

import (
	"fmt"

	"github.com/born-ml/attnet/internal/parallel"
	"github.com/born-ml/attnet/internal/tensor"
)

// WeightedSum computes out[b, ...] = Σ_i weights[b, i] * branches[i][b, ...].
//
// weights has shape [B, K]; every branch has the same shape whose first
// dimension is B. The weights are used as given (no normalization), so an
// all-zero row yields an all-zero output for that sample.
func (cpu *CPUBackend) WeightedSum(weights *tensor.RawTensor, branches []*tensor.RawTensor) *tensor.RawTensor {
	ws := weights.Shape()
	if len(ws) != 2 || ws[1] != len(branches) || len(branches) == 0 {
		panic(fmt.Sprintf("weighted_sum: weights %v do not match %d branches", ws, len(branches)))
	}
	shape := branches[0].Shape()
	for i, br := range branches {
		if !br.Shape().Equal(shape) {
			panic(fmt.Sprintf("weighted_sum: branch %d has shape %v, expected %v", i, br.Shape(), shape))
		}
	}
	if len(shape) == 0 || shape[0] != ws[0] {
		panic(fmt.Sprintf("weighted_sum: branch batch %v does not match weights %v", shape, ws))
	}

	B, K := ws[0], ws[1]
	per := shape.NumElements() / B
	output := tensor.MustRaw(shape)
	w, out := weights.Data(), output.Data()

	parallel.For(B, func(b int) {
		dst := out[b*per : (b+1)*per]
		for i := 0; i < K; i++ {
			a := w[b*K+i]
			if a == 0 {
				continue
			}
			src := branches[i].Data()[b*per : (b+1)*per]
			for j, v := range src {
				dst[j] += a * v
			}
		}
	}, cpu.par)

	return output
}
