package cpu

import (
	"fmt"

	"github.com/born-ml/attnet/internal/tensor"
	"github.com/chewxy/math32"
)

// CrossEntropy returns mean(-log_softmax(logits)[targets]) as a scalar tensor.
//
// Uses the log-sum-exp trick for numerical stability:
//
//	log_softmax(z) = z - (max(z) + log(Σ exp(z - max(z))))
func (cpu *CPUBackend) CrossEntropy(logits *tensor.RawTensor, targets []int) *tensor.RawTensor {
	shape := logits.Shape()
	if len(shape) != 2 {
		panic(fmt.Sprintf("cross_entropy: logits must be 2D [batch, classes], got %v", shape))
	}
	N, C := shape[0], shape[1]
	if len(targets) != N {
		panic(fmt.Sprintf("cross_entropy: %d targets for batch of %d", len(targets), N))
	}

	data := logits.Data()
	var total float64
	for n, t := range targets {
		if t < 0 || t >= C {
			panic(fmt.Sprintf("cross_entropy: target %d out of range [0, %d)", t, C))
		}
		row := data[n*C : (n+1)*C]
		total += float64(logSumExp(row) - row[t])
	}

	result := tensor.MustRaw(tensor.Shape{})
	result.Data()[0] = float32(total / float64(N))
	return result
}

// logSumExp computes log(Σ exp(row)) stably.
func logSumExp(row []float32) float32 {
	maxVal := row[0]
	for _, v := range row[1:] {
		maxVal = math32.Max(maxVal, v)
	}
	var sum float32
	for _, v := range row {
		sum += math32.Exp(v - maxVal)
	}
	return maxVal + math32.Log(sum)
}
