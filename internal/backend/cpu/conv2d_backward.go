package cpu

import (
	"github.com/born-ml/attnet/internal/parallel"
	"github.com/born-ml/attnet/internal/tensor"
	"gonum.org/v1/gonum/blas"
)

// Conv2DInputBackward computes the gradient of Conv2D with respect to its input.
//
// Per sample: dcol = kernel^T [C_in*K_h*K_w, C_out] @ grad [C_out, H_out*W_out],
// then col2im folds dcol back onto the input positions.
func (cpu *CPUBackend) Conv2DInputBackward(input, kernel, grad *tensor.RawTensor, stride, padding int) *tensor.RawTensor {
	g := newConvGeometry("conv2d_input_backward", input.Shape(), kernel.Shape(), stride, padding)

	inputGrad := tensor.MustRaw(input.Shape())
	dx, k, dy := inputGrad.Data(), kernel.Data(), grad.Data()
	kMat := general(g.COut, g.colRows, k)
	inSize := g.CIn * g.H * g.W
	outSize := g.COut * g.spatial

	parallel.For(g.N, func(n int) {
		dcol := make([]float32, g.colRows*g.spatial)
		cpu.gemm(blas.Trans, blas.NoTrans, 1,
			kMat,
			general(g.COut, g.spatial, dy[n*outSize:(n+1)*outSize]),
			0, general(g.colRows, g.spatial, dcol))
		col2im(dx[n*inSize:(n+1)*inSize], dcol, g)
	}, cpu.par)

	return inputGrad
}

// Conv2DKernelBackward computes the gradient of Conv2D with respect to its kernel.
//
// dK [C_out, C_in*K_h*K_w] = Σ_n grad_n [C_out, H_out*W_out] @ col_n^T.
// Samples are accumulated sequentially into a single buffer (beta = 1).
func (cpu *CPUBackend) Conv2DKernelBackward(input, kernel, grad *tensor.RawTensor, stride, padding int) *tensor.RawTensor {
	g := newConvGeometry("conv2d_kernel_backward", input.Shape(), kernel.Shape(), stride, padding)

	kernelGrad := tensor.MustRaw(kernel.Shape())
	dk := general(g.COut, g.colRows, kernelGrad.Data())
	in, dy := input.Data(), grad.Data()
	inSize := g.CIn * g.H * g.W
	outSize := g.COut * g.spatial
	col := make([]float32, g.colRows*g.spatial)

	for n := 0; n < g.N; n++ {
		im2col(col, in[n*inSize:(n+1)*inSize], g)
		cpu.gemm(blas.NoTrans, blas.Trans, 1,
			general(g.COut, g.spatial, dy[n*outSize:(n+1)*outSize]),
			general(g.colRows, g.spatial, col),
			1, dk)
	}

	return kernelGrad
}
