package cpu

import (
	"fmt"

	"github.com/born-ml/attnet/internal/parallel"
	"github.com/born-ml/attnet/internal/tensor"
	"gonum.org/v1/gonum/blas"
)

// convGeometry holds the dimensions of one Conv2D call.
type convGeometry struct {
	N, CIn, H, W     int
	COut, KH, KW     int
	HOut, WOut       int
	stride, pad      int
	colRows, spatial int // C_in*K_h*K_w and H_out*W_out
}

func newConvGeometry(op string, input, kernel tensor.Shape, stride, padding int) convGeometry {
	if len(input) != 4 {
		panic(fmt.Sprintf("%s: input must be 4D [N,C,H,W], got %dD", op, len(input)))
	}
	if len(kernel) != 4 {
		panic(fmt.Sprintf("%s: kernel must be 4D [C_out,C_in,K_h,K_w], got %dD", op, len(kernel)))
	}
	if input[1] != kernel[1] {
		panic(fmt.Sprintf("%s: input channels %d != kernel channels %d", op, input[1], kernel[1]))
	}
	if stride < 1 || padding < 0 {
		panic(fmt.Sprintf("%s: invalid stride %d / padding %d", op, stride, padding))
	}

	g := convGeometry{
		N: input[0], CIn: input[1], H: input[2], W: input[3],
		COut: kernel[0], KH: kernel[2], KW: kernel[3],
		stride: stride, pad: padding,
	}
	// out = (in + 2*padding - k) / stride + 1
	g.HOut = (g.H+2*padding-g.KH)/stride + 1
	g.WOut = (g.W+2*padding-g.KW)/stride + 1
	if g.HOut <= 0 || g.WOut <= 0 {
		panic(fmt.Sprintf("%s: invalid output dimensions: out_h=%d, out_w=%d (check stride/padding)", op, g.HOut, g.WOut))
	}
	g.colRows = g.CIn * g.KH * g.KW
	g.spatial = g.HOut * g.WOut
	return g
}

// Conv2D performs 2D convolution using the im2col algorithm.
//
// Input shape: [batch, in_channels, height, width]
// Kernel shape: [out_channels, in_channels, kernel_h, kernel_w]
// Output shape: [batch, out_channels, out_h, out_w]
//
// Per sample:
//  1. Im2col: [C_in, H, W] -> col [C_in*K_h*K_w, H_out*W_out]
//  2. GEMM:   kernel [C_out, C_in*K_h*K_w] @ col -> [C_out, H_out*W_out]
//
// The GEMM output is already in [C_out, H_out, W_out] layout, so no
// rearrangement is needed. Samples are processed concurrently.
func (cpu *CPUBackend) Conv2D(input, kernel *tensor.RawTensor, stride, padding int) *tensor.RawTensor {
	g := newConvGeometry("conv2d", input.Shape(), kernel.Shape(), stride, padding)

	output := tensor.MustRaw(tensor.Shape{g.N, g.COut, g.HOut, g.WOut})
	in, k, out := input.Data(), kernel.Data(), output.Data()
	kMat := general(g.COut, g.colRows, k)
	inSize := g.CIn * g.H * g.W
	outSize := g.COut * g.spatial

	parallel.For(g.N, func(n int) {
		col := make([]float32, g.colRows*g.spatial)
		im2col(col, in[n*inSize:(n+1)*inSize], g)
		cpu.gemm(blas.NoTrans, blas.NoTrans, 1,
			kMat,
			general(g.colRows, g.spatial, col),
			0, general(g.COut, g.spatial, out[n*outSize:(n+1)*outSize]))
	}, cpu.par)

	return output
}

// im2col unfolds one sample [C, H, W] into col [C*K_h*K_w, H_out*W_out].
//
// Row (c*K_h + kh)*K_w + kw holds, for every output position, the input
// value under kernel tap (c, kh, kw); positions in the zero padding read 0.
func im2col(col, img []float32, g convGeometry) {
	row := 0
	for c := 0; c < g.CIn; c++ {
		plane := img[c*g.H*g.W : (c+1)*g.H*g.W]
		for kh := 0; kh < g.KH; kh++ {
			for kw := 0; kw < g.KW; kw++ {
				dst := col[row*g.spatial : (row+1)*g.spatial]
				i := 0
				for oh := 0; oh < g.HOut; oh++ {
					h := oh*g.stride - g.pad + kh
					for ow := 0; ow < g.WOut; ow++ {
						w := ow*g.stride - g.pad + kw
						if h >= 0 && h < g.H && w >= 0 && w < g.W {
							dst[i] = plane[h*g.W+w]
						} else {
							dst[i] = 0
						}
						i++
					}
				}
				row++
			}
		}
	}
}

// col2im is the adjoint of im2col: it scatter-adds col back into img.
func col2im(img, col []float32, g convGeometry) {
	row := 0
	for c := 0; c < g.CIn; c++ {
		plane := img[c*g.H*g.W : (c+1)*g.H*g.W]
		for kh := 0; kh < g.KH; kh++ {
			for kw := 0; kw < g.KW; kw++ {
				src := col[row*g.spatial : (row+1)*g.spatial]
				i := 0
				for oh := 0; oh < g.HOut; oh++ {
					h := oh*g.stride - g.pad + kh
					for ow := 0; ow < g.WOut; ow++ {
						w := ow*g.stride - g.pad + kw
						if h >= 0 && h < g.H && w >= 0 && w < g.W {
							plane[h*g.W+w] += src[i]
						}
						i++
					}
				}
				row++
			}
		}
	}
}
