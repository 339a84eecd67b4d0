package cpu

import (
	"fmt"

	"github.com/born-ml/attnet/internal/parallel"
	"github.com/born-ml/attnet/internal/tensor"
	"github.com/chewxy/math32"
)

func channelDims(op string, shape tensor.Shape) (n, c, hw int) {
	if len(shape) != 4 {
		panic(fmt.Sprintf("%s: input must be 4D [N,C,H,W], got %dD", op, len(shape)))
	}
	return shape[0], shape[1], shape[2] * shape[3]
}

// ChannelMoments returns the per-channel mean and biased variance of a
// [N, C, H, W] tensor, taken over N, H and W.
func (cpu *CPUBackend) ChannelMoments(x *tensor.RawTensor) (mean, variance []float32) {
	N, C, HW := channelDims("channel_moments", x.Shape())
	data := x.Data()
	mean = make([]float32, C)
	variance = make([]float32, C)
	m := float64(N * HW)

	parallel.For(C, func(c int) {
		var sum float64
		for n := 0; n < N; n++ {
			for _, v := range data[(n*C+c)*HW : (n*C+c+1)*HW] {
				sum += float64(v)
			}
		}
		mu := sum / m
		var sq float64
		for n := 0; n < N; n++ {
			for _, v := range data[(n*C+c)*HW : (n*C+c+1)*HW] {
				d := float64(v) - mu
				sq += d * d
			}
		}
		mean[c] = float32(mu)
		variance[c] = float32(sq / m)
	}, cpu.par)

	return mean, variance
}

// BatchNorm2D normalizes each channel with the given statistics and applies
// the affine transform y = gamma * (x - mean) / sqrt(var + eps) + beta.
// gamma and beta have shape [C].
func (cpu *CPUBackend) BatchNorm2D(x, gamma, beta *tensor.RawTensor, stats tensor.BatchNormStats) *tensor.RawTensor {
	N, C, HW := channelDims("batchnorm2d", x.Shape())
	checkChannelParams("batchnorm2d", C, gamma, beta, stats)

	output := tensor.MustRaw(x.Shape())
	in, out := x.Data(), output.Data()
	g, b := gamma.Data(), beta.Data()

	parallel.ForBatch(N, C, func(n, c int) {
		invStd := 1 / math32.Sqrt(stats.Variance[c]+stats.Eps)
		scale := g[c] * invStd
		shift := b[c] - stats.Mean[c]*scale
		off := (n*C + c) * HW
		for i, v := range in[off : off+HW] {
			out[off+i] = v*scale + shift
		}
	}, cpu.par)

	return output
}

// BatchNorm2DBackward returns the gradients of BatchNorm2D with respect to
// x, gamma and beta.
//
// With batch statistics (m = N*H*W values per channel):
//
//	dx = gamma / (m * sqrt(var+eps)) * (m*dy - Σdy - x̂ * Σ(dy*x̂))
//
// With fixed (running) statistics the normalization is affine in x:
//
//	dx = dy * gamma / sqrt(var+eps)
func (cpu *CPUBackend) BatchNorm2DBackward(x, gamma, grad *tensor.RawTensor, stats tensor.BatchNormStats) (dx, dgamma, dbeta *tensor.RawTensor) {
	N, C, HW := channelDims("batchnorm2d_backward", x.Shape())
	checkChannelParams("batchnorm2d_backward", C, gamma, nil, stats)

	dx = tensor.MustRaw(x.Shape())
	dgamma = tensor.MustRaw(tensor.Shape{C})
	dbeta = tensor.MustRaw(tensor.Shape{C})
	in, dy, dxd := x.Data(), grad.Data(), dx.Data()
	g, dg, db := gamma.Data(), dgamma.Data(), dbeta.Data()
	m := float32(N * HW)

	parallel.For(C, func(c int) {
		invStd := 1 / math32.Sqrt(stats.Variance[c]+stats.Eps)
		mu := stats.Mean[c]

		var sumDy, sumDyXhat float32
		for n := 0; n < N; n++ {
			off := (n*C + c) * HW
			for i := off; i < off+HW; i++ {
				xhat := (in[i] - mu) * invStd
				sumDy += dy[i]
				sumDyXhat += dy[i] * xhat
			}
		}
		dg[c] = sumDyXhat
		db[c] = sumDy

		if !stats.Batch {
			scale := g[c] * invStd
			for n := 0; n < N; n++ {
				off := (n*C + c) * HW
				for i := off; i < off+HW; i++ {
					dxd[i] = dy[i] * scale
				}
			}
			return
		}

		k := g[c] * invStd / m
		for n := 0; n < N; n++ {
			off := (n*C + c) * HW
			for i := off; i < off+HW; i++ {
				xhat := (in[i] - mu) * invStd
				dxd[i] = k * (m*dy[i] - sumDy - xhat*sumDyXhat)
			}
		}
	}, cpu.par)

	return dx, dgamma, dbeta
}

func checkChannelParams(op string, c int, gamma, beta *tensor.RawTensor, stats tensor.BatchNormStats) {
	if gamma.NumElements() != c || (beta != nil && beta.NumElements() != c) {
		panic(fmt.Sprintf("%s: affine parameters must have %d elements", op, c))
	}
	if len(stats.Mean) != c || len(stats.Variance) != c {
		panic(fmt.Sprintf("%s: statistics must have %d channels, got %d/%d", op, c, len(stats.Mean), len(stats.Variance)))
	}
}
