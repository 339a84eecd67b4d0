package cpu

import (
	"fmt"

	"github.com/born-ml/attnet/internal/tensor"
	"gonum.org/v1/gonum/blas"
)

// MatMul performs 2D matrix multiplication [M, K] @ [K, N] -> [M, N].
func (cpu *CPUBackend) MatMul(a, b *tensor.RawTensor) *tensor.RawTensor {
	as, bs := a.Shape(), b.Shape()
	if len(as) != 2 || len(bs) != 2 {
		panic(fmt.Sprintf("matmul: expected 2D tensors, got %v and %v", as, bs))
	}
	if as[1] != bs[0] {
		panic(fmt.Sprintf("matmul: inner dimensions mismatch: %v @ %v", as, bs))
	}

	M, K, N := as[0], as[1], bs[1]
	result := tensor.MustRaw(tensor.Shape{M, N})
	cpu.gemm(blas.NoTrans, blas.NoTrans, 1,
		general(M, K, a.Data()),
		general(K, N, b.Data()),
		0, general(M, N, result.Data()))
	return result
}

// Transpose swaps the axes of a 2D tensor.
func (cpu *CPUBackend) Transpose(t *tensor.RawTensor) *tensor.RawTensor {
	shape := t.Shape()
	if len(shape) != 2 {
		panic(fmt.Sprintf("transpose: expected 2D tensor, got %v", shape))
	}

	rows, cols := shape[0], shape[1]
	result := tensor.MustRaw(tensor.Shape{cols, rows})
	src, dst := t.Data(), result.Data()
	for i := 0; i < rows; i++ {
		for j := 0; j < cols; j++ {
			dst[j*rows+i] = src[i*cols+j]
		}
	}
	return result
}

// Reshape returns a view of t with a new shape (zero-copy).
func (cpu *CPUBackend) Reshape(t *tensor.RawTensor, newShape tensor.Shape) *tensor.RawTensor {
	view, err := t.View(newShape)
	if err != nil {
		panic(fmt.Sprintf("reshape: %v", err))
	}
	return view
}
