package nn

import (
	"fmt"

	"github.com/born-ml/attnet/internal/tensor"
)

// BatchNorm2D defaults.
const (
	DefaultBatchNormMomentum = 0.1
	DefaultBatchNormEps      = 1e-5
)

// BatchNorm2D normalizes each channel of a [N, C, H, W] tensor and applies
// a learned per-channel affine transform:
//
//	y = gamma * (x - mean) / sqrt(var + eps) + beta
//
// In training mode mean and var are the statistics of the current batch and
// the running statistics are updated with an exponential moving average:
//
//	running = (1 - momentum) * running + momentum * batch_stat
//
// where the variance fed into the running estimate is unbiased. In
// evaluation mode the running statistics are used and left untouched.
//
// The running statistics are buffers: they appear in StateDict but not in
// Parameters, so optimizers never update them.
type BatchNorm2D[B tensor.Backend] struct {
	channels int
	momentum float32
	eps      float32
	training bool

	gamma *Parameter[B] // [channels], initialized to 1
	beta  *Parameter[B] // [channels], initialized to 0

	runningMean *tensor.RawTensor // [channels], initialized to 0
	runningVar  *tensor.RawTensor // [channels], initialized to 1

	backend B
}

// NewBatchNorm2D creates a batch normalization layer in training mode.
func NewBatchNorm2D[B tensor.Backend](channels int, backend B) *BatchNorm2D[B] {
	if channels <= 0 {
		panic(fmt.Sprintf("batchnorm2d: invalid channels %d", channels))
	}
	runningVar := tensor.MustRaw(tensor.Shape{channels})
	runningVar.Fill(1)
	return &BatchNorm2D[B]{
		channels:    channels,
		momentum:    DefaultBatchNormMomentum,
		eps:         DefaultBatchNormEps,
		training:    true,
		gamma:       NewParameter("gamma", tensor.Ones(tensor.Shape{channels}, backend)),
		beta:        NewParameter("beta", tensor.Zeros(tensor.Shape{channels}, backend)),
		runningMean: tensor.MustRaw(tensor.Shape{channels}),
		runningVar:  runningVar,
		backend:     backend,
	}
}

// Forward normalizes the input.
func (bn *BatchNorm2D[B]) Forward(input *tensor.Tensor[B]) *tensor.Tensor[B] {
	shape := input.Shape()
	if len(shape) != 4 || shape[1] != bn.channels {
		panic(fmt.Sprintf("batchnorm2d: expected [N,%d,H,W] input, got %v", bn.channels, shape))
	}

	var stats tensor.BatchNormStats
	if bn.training {
		mean, variance := bn.backend.ChannelMoments(input.Raw())
		bn.updateRunningStats(mean, variance, shape[0]*shape[2]*shape[3])
		stats = tensor.BatchNormStats{Mean: mean, Variance: variance, Eps: bn.eps, Batch: true}
	} else {
		stats = tensor.BatchNormStats{
			Mean:     bn.runningMean.Data(),
			Variance: bn.runningVar.Data(),
			Eps:      bn.eps,
		}
	}

	out := bn.backend.BatchNorm2D(input.Raw(), bn.gamma.Tensor().Raw(), bn.beta.Tensor().Raw(), stats)
	return tensor.New(out, bn.backend)
}

func (bn *BatchNorm2D[B]) updateRunningStats(mean, variance []float32, count int) {
	correction := float32(1)
	if count > 1 {
		correction = float32(count) / float32(count-1)
	}
	m := bn.momentum
	rm, rv := bn.runningMean.Data(), bn.runningVar.Data()
	for c := range rm {
		rm[c] = (1-m)*rm[c] + m*mean[c]
		rv[c] = (1-m)*rv[c] + m*variance[c]*correction
	}
}

// SetTraining switches between batch statistics (true) and running
// statistics (false).
func (bn *BatchNorm2D[B]) SetTraining(training bool) {
	bn.training = training
}

// Training reports whether the layer is in training mode.
func (bn *BatchNorm2D[B]) Training() bool {
	return bn.training
}

// RunningMean returns the running mean buffer.
func (bn *BatchNorm2D[B]) RunningMean() []float32 { return bn.runningMean.Data() }

// RunningVar returns the running variance buffer.
func (bn *BatchNorm2D[B]) RunningVar() []float32 { return bn.runningVar.Data() }

// Parameters returns [gamma, beta].
func (bn *BatchNorm2D[B]) Parameters() []*Parameter[B] {
	return []*Parameter[B]{bn.gamma, bn.beta}
}

// StateDict returns the affine parameters and the running statistics.
func (bn *BatchNorm2D[B]) StateDict() map[string]*tensor.RawTensor {
	return map[string]*tensor.RawTensor{
		"gamma":        bn.gamma.Tensor().Raw(),
		"beta":         bn.beta.Tensor().Raw(),
		"running_mean": bn.runningMean,
		"running_var":  bn.runningVar,
	}
}

// LoadStateDict loads the affine parameters and the running statistics.
func (bn *BatchNorm2D[B]) LoadStateDict(stateDict map[string]*tensor.RawTensor) error {
	for name, dst := range map[string]*tensor.RawTensor{
		"gamma":        bn.gamma.Tensor().Raw(),
		"beta":         bn.beta.Tensor().Raw(),
		"running_mean": bn.runningMean,
		"running_var":  bn.runningVar,
	} {
		if err := loadRaw(stateDict, name, dst); err != nil {
			return err
		}
	}
	return nil
}
