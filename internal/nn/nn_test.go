package nn

import (
	"testing"

	"github.com/born-ml/attnet/internal/autodiff"
	"github.com/born-ml/attnet/internal/backend/cpu"
	"github.com/born-ml/attnet/internal/tensor"
	"github.com/chewxy/math32"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type testBackend = *autodiff.AutodiffBackend[*cpu.CPUBackend]

func newBackend() testBackend {
	return autodiff.New(cpu.New())
}

func randn(shape tensor.Shape, seed int64, b testBackend) *tensor.Tensor[testBackend] {
	return tensor.Randn(shape, NewRNG(seed), b)
}

func TestNewRNG_Deterministic(t *testing.T) {
	a, b := NewRNG(7), NewRNG(7)
	for range 10 {
		assert.Equal(t, a.Int63(), b.Int63())
	}
	assert.NotEqual(t, NewRNG(7).Int63(), NewRNG(8).Int63())
}

func TestXavier_Bound(t *testing.T) {
	b := newBackend()
	w := Xavier(6, 6, tensor.Shape{100, 6}, NewRNG(1), b)
	for _, v := range w.Data() {
		assert.LessOrEqual(t, v, float32(1.0))
		assert.GreaterOrEqual(t, v, float32(-1.0))
	}
}

func TestLinear_Forward(t *testing.T) {
	b := newBackend()
	l := NewLinear(3, 2, NewRNG(1), b)
	copy(l.Weight().Tensor().Data(), []float32{1, 0, 0, 0, 1, 1})
	copy(l.Bias().Tensor().Data(), []float32{0.5, -1})

	x := tensor.MustFromSlice([]float32{1, 2, 3, 4, 5, 6}, tensor.Shape{2, 3}, b)
	y := l.Forward(x)
	assert.Equal(t, tensor.Shape{2, 2}, y.Shape())
	assert.Equal(t, []float32{1.5, 4, 4.5, 10}, y.Data())
}

func TestConv2D_BiasBroadcast(t *testing.T) {
	b := newBackend()
	c := NewConv2D(1, 2, 3, 1, 1, NewRNG(1), b)
	c.Weight().Tensor().Raw().Fill(0)
	copy(c.Bias().Tensor().Data(), []float32{1, -2})

	y := c.Forward(randn(tensor.Shape{2, 1, 4, 5}, 3, b))
	assert.Equal(t, tensor.Shape{2, 2, 4, 5}, y.Shape())
	oh, ow := c.OutputSize(4, 5)
	assert.Equal(t, [2]int{4, 5}, [2]int{oh, ow})
	assert.Equal(t, float32(1), y.At(1, 0, 3, 4))
	assert.Equal(t, float32(-2), y.At(0, 1, 0, 0))
}

func TestBatchNorm2D_RunningStats(t *testing.T) {
	b := newBackend()
	bn := NewBatchNorm2D(1, b)
	// Channel values 1..4: mean 2.5, biased var 1.25, unbiased var 5/3.
	x := tensor.MustFromSlice([]float32{1, 2, 3, 4}, tensor.Shape{1, 1, 2, 2}, b)

	y := bn.Forward(x)
	assert.InDelta(t, 0.0, sum(y.Data()), 1e-5)
	assert.InDelta(t, 0.25, bn.RunningMean()[0], 1e-6)
	assert.InDelta(t, 0.9*1+0.1*5.0/3.0, bn.RunningVar()[0], 1e-6)

	bn.SetTraining(false)
	assert.False(t, bn.Training())
	before := append([]float32(nil), bn.RunningMean()...)
	y = bn.Forward(x)
	assert.Equal(t, before, bn.RunningMean())

	// Eval mode normalizes with the running statistics.
	want := (1 - 0.25) / sqrt32(bn.RunningVar()[0]+DefaultBatchNormEps)
	assert.InDelta(t, want, y.At(0, 0, 0, 0), 1e-5)
}

func TestBatchNorm2D_BuffersNotParameters(t *testing.T) {
	b := newBackend()
	bn := NewBatchNorm2D(3, b)
	assert.Len(t, bn.Parameters(), 2)
	sd := bn.StateDict()
	assert.Len(t, sd, 4)
	assert.Contains(t, sd, "running_mean")
	assert.Contains(t, sd, "running_var")
}

func TestSequential_NamedState(t *testing.T) {
	b := newBackend()
	s := NewSequential(
		Named[testBackend]("fc1", NewLinear(4, 3, NewRNG(1), b)),
		Named[testBackend]("relu", NewReLU[testBackend]()),
		Named[testBackend]("fc2", NewLinear(3, 2, NewRNG(2), b)),
	)
	assert.Equal(t, 3, s.Len())
	assert.Len(t, s.Parameters(), 4)

	sd := s.StateDict()
	assert.ElementsMatch(t, []string{"fc1.weight", "fc1.bias", "fc2.weight", "fc2.bias"}, keys(sd))

	assert.Panics(t, func() {
		NewSequential(Named[testBackend]("x", NewReLU[testBackend]()), Named[testBackend]("x", NewReLU[testBackend]()))
	})
}

func TestFeatureBlock_HalvesSpatialSize(t *testing.T) {
	b := newBackend()
	blk := NewFeatureBlock(3, 8, NewRNG(1), b)
	y := blk.Forward(randn(tensor.Shape{2, 3, 9, 6}, 2, b))
	assert.Equal(t, tensor.Shape{2, 8, 4, 3}, y.Shape())
	h, w := blk.OutputSize(9, 6)
	assert.Equal(t, [2]int{4, 3}, [2]int{h, w})
	assert.Len(t, blk.Parameters(), 4) // conv weight/bias, bn gamma/beta
	assert.Contains(t, blk.StateDict(), "bn.running_var")
}

func TestCollectGrads(t *testing.T) {
	b := newBackend()
	l := NewLinear(2, 1, NewRNG(1), b)
	unused := NewParameter("unused", tensor.Zeros(tensor.Shape{1}, b))
	b.Tape().StartRecording()
	y := l.Forward(tensor.Ones(tensor.Shape{1, 2}, b))
	grads := autodiff.Backward(y, b)

	params := append(l.Parameters(), unused)
	CollectGrads(params, grads)
	require.NotNil(t, l.Weight().Grad())
	assert.Equal(t, []float32{1, 1}, l.Weight().Grad().Data())
	assert.Equal(t, []float32{1}, l.Bias().Grad().Data())
	assert.Nil(t, unused.Grad())
	assert.Equal(t, 4, CountParameters(params))
}

func sum(xs []float32) float64 {
	var s float64
	for _, x := range xs {
		s += float64(x)
	}
	return s
}

func keys(m map[string]*tensor.RawTensor) []string {
	out := make([]string, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	return out
}

func sqrt32(x float32) float32 {
	return math32.Sqrt(x)
}
