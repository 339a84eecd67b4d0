package autodiff

import (
	"math"
	"math/rand"
	"testing"

	"github.com/born-ml/attnet/internal/backend/cpu"
	"github.com/born-ml/attnet/internal/tensor"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type testBackend = *AutodiffBackend[*cpu.CPUBackend]

type forwardFn func(b testBackend, p []*tensor.Tensor[testBackend]) *tensor.Tensor[testBackend]

// project reduces y to a [1, 1] tensor through a fixed random direction so
// every output element contributes to the checked scalar.
func project(y *tensor.Tensor[testBackend], rng *rand.Rand) *tensor.Tensor[testBackend] {
	n := y.NumElements()
	r := make([]float32, n)
	for i := range r {
		r[i] = float32(rng.NormFloat64())
	}
	dir := tensor.MustFromSlice(r, tensor.Shape{n, 1}, y.Backend())
	return y.Reshape(1, n).MatMul(dir)
}

// checkGradients compares tape gradients with central finite differences.
func checkGradients(t *testing.T, shapes []tensor.Shape, h float64, prep func([]float32), f forwardFn) {
	t.Helper()

	rng := rand.New(rand.NewSource(42))
	b := New(cpu.New())

	params := make([]*tensor.Tensor[testBackend], len(shapes))
	for i, s := range shapes {
		params[i] = tensor.Randn(s, rng, b)
		if prep != nil {
			prep(params[i].Data())
		}
	}

	b.Tape().StartRecording()
	loss := f(b, params)
	grads := Backward(loss, b)
	b.Tape().StopRecording()
	b.Tape().Clear()

	eval := func() float64 { return float64(f(b, params).Item()) }

	for pi, p := range params {
		g, ok := grads[p.Raw()]
		require.True(t, ok, "no gradient for param %d", pi)
		require.Equal(t, p.Shape(), g.Shape(), "gradient shape for param %d", pi)

		data := p.Data()
		step := max(1, len(data)/7)
		for i := 0; i < len(data); i += step {
			orig := data[i]
			data[i] = orig + float32(h)
			up := eval()
			data[i] = orig - float32(h)
			down := eval()
			data[i] = orig

			numeric := (up - down) / (2 * h)
			tol := 2e-2 * math.Max(1, math.Abs(numeric))
			assert.InDelta(t, numeric, g.Data()[i], tol, "param %d index %d", pi, i)
		}
	}
}

// awayFromZero pushes values out of (-0.2, 0.2) so kinks are not crossed.
func awayFromZero(data []float32) {
	for i, v := range data {
		if v >= 0 {
			data[i] = v + 0.2
		} else {
			data[i] = v - 0.2
		}
	}
}

func TestGradient_AddMulBroadcast(t *testing.T) {
	shapes := []tensor.Shape{{2, 3}, {3}, {2, 1}}
	checkGradients(t, shapes, 1e-2, nil, func(_ testBackend, p []*tensor.Tensor[testBackend]) *tensor.Tensor[testBackend] {
		return project(p[0].Mul(p[1]).Add(p[2]), rand.New(rand.NewSource(1)))
	})
}

func TestGradient_ReusedTensor(t *testing.T) {
	// y = a*a + a, so dy/da = 2a + 1 accumulated from three uses.
	checkGradients(t, []tensor.Shape{{4}}, 1e-2, nil, func(_ testBackend, p []*tensor.Tensor[testBackend]) *tensor.Tensor[testBackend] {
		return project(p[0].Mul(p[0]).Add(p[0]), rand.New(rand.NewSource(2)))
	})
}

func TestGradient_MatMulTranspose(t *testing.T) {
	shapes := []tensor.Shape{{2, 3}, {4, 3}}
	checkGradients(t, shapes, 1e-2, nil, func(_ testBackend, p []*tensor.Tensor[testBackend]) *tensor.Tensor[testBackend] {
		return project(p[0].MatMul(p[1].Transpose()), rand.New(rand.NewSource(3)))
	})
}

func TestGradient_ReLUMulScalar(t *testing.T) {
	checkGradients(t, []tensor.Shape{{3, 4}}, 1e-2, awayFromZero, func(_ testBackend, p []*tensor.Tensor[testBackend]) *tensor.Tensor[testBackend] {
		return project(p[0].ReLU().MulScalar(2.5), rand.New(rand.NewSource(4)))
	})
}

func TestGradient_Conv2D(t *testing.T) {
	shapes := []tensor.Shape{{2, 2, 5, 5}, {3, 2, 3, 3}}
	checkGradients(t, shapes, 1e-2, nil, func(b testBackend, p []*tensor.Tensor[testBackend]) *tensor.Tensor[testBackend] {
		y := tensor.New(b.Conv2D(p[0].Raw(), p[1].Raw(), 1, 1), b)
		return project(y, rand.New(rand.NewSource(5)))
	})
}

func TestGradient_MaxPool2D(t *testing.T) {
	checkGradients(t, []tensor.Shape{{1, 2, 4, 4}}, 1e-3, nil, func(b testBackend, p []*tensor.Tensor[testBackend]) *tensor.Tensor[testBackend] {
		y := tensor.New(b.MaxPool2D(p[0].Raw(), 2, 2), b)
		return project(y, rand.New(rand.NewSource(6)))
	})
}

func TestGradient_GlobalAvgPool2D(t *testing.T) {
	checkGradients(t, []tensor.Shape{{2, 3, 2, 2}}, 1e-2, nil, func(b testBackend, p []*tensor.Tensor[testBackend]) *tensor.Tensor[testBackend] {
		y := tensor.New(b.GlobalAvgPool2D(p[0].Raw()), b)
		return project(y, rand.New(rand.NewSource(7)))
	})
}

func TestGradient_BatchNorm2D(t *testing.T) {
	shapes := []tensor.Shape{{3, 2, 2, 2}, {2}, {2}}
	checkGradients(t, shapes, 1e-2, nil, func(b testBackend, p []*tensor.Tensor[testBackend]) *tensor.Tensor[testBackend] {
		mean, variance := b.ChannelMoments(p[0].Raw())
		stats := tensor.BatchNormStats{Mean: mean, Variance: variance, Eps: 1e-5, Batch: true}
		y := tensor.New(b.BatchNorm2D(p[0].Raw(), p[1].Raw(), p[2].Raw(), stats), b)
		return project(y, rand.New(rand.NewSource(8)))
	})
}

func TestGradient_WeightedSum(t *testing.T) {
	shapes := []tensor.Shape{{2, 3}, {2, 2, 2, 2}, {2, 2, 2, 2}, {2, 2, 2, 2}}
	checkGradients(t, shapes, 1e-2, nil, func(b testBackend, p []*tensor.Tensor[testBackend]) *tensor.Tensor[testBackend] {
		branches := []*tensor.RawTensor{p[1].Raw(), p[2].Raw(), p[3].Raw()}
		y := tensor.New(b.WeightedSum(p[0].Raw(), branches), b)
		return project(y, rand.New(rand.NewSource(9)))
	})
}

func TestGradient_CrossEntropy(t *testing.T) {
	checkGradients(t, []tensor.Shape{{4, 5}}, 1e-2, nil, func(b testBackend, p []*tensor.Tensor[testBackend]) *tensor.Tensor[testBackend] {
		return tensor.New(b.CrossEntropy(p[0].Raw(), []int{0, 3, 4, 1}), b)
	})
}
