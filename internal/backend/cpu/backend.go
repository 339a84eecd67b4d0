// Package cpu implements the CPU backend with BLAS-backed GEMM kernels.
//
// Every matrix product, including the im2col convolutions, goes through a
// blas.Float32 implementation. The pure Go gonum implementation is always
// available; builds with the netlib tag also register the cgo netlib
// implementation, which is preferred when present.
package cpu

import (
	"github.com/born-ml/attnet/internal/parallel"
	"github.com/born-ml/attnet/internal/tensor"
	"gonum.org/v1/gonum/blas"
	"gonum.org/v1/gonum/blas/blas32"
)

// CPUBackend implements tensor operations on CPU.
type CPUBackend struct {
	device   tensor.Device
	blas     blas.Float32
	blasName string
	par      parallel.Config
}

// New creates a new CPU backend using the best registered BLAS implementation.
func New() *CPUBackend {
	impl := best()
	return &CPUBackend{
		device:   tensor.CPU,
		blas:     impl.impl,
		blasName: impl.name,
		par:      parallel.DefaultConfig(),
	}
}

// NewWithBLAS creates a CPU backend bound to the named BLAS implementation.
// An empty name or "auto" selects the best available one. Requesting an
// implementation that is not compiled in returns an error wrapping ErrUnavailable.
func NewWithBLAS(name string) (*CPUBackend, error) {
	impl, err := lookup(name)
	if err != nil {
		return nil, err
	}
	return &CPUBackend{
		device:   tensor.CPU,
		blas:     impl.impl,
		blasName: impl.name,
		par:      parallel.DefaultConfig(),
	}, nil
}

// SetParallelConfig replaces the goroutine fan-out used by per-sample kernels.
func (cpu *CPUBackend) SetParallelConfig(cfg parallel.Config) {
	cpu.par = cfg
}

// Name returns the backend name.
func (cpu *CPUBackend) Name() string {
	return "CPU/" + cpu.blasName
}

// BLAS returns the name of the BLAS implementation in use.
func (cpu *CPUBackend) BLAS() string {
	return cpu.blasName
}

// Device returns the compute device.
func (cpu *CPUBackend) Device() tensor.Device {
	return cpu.device
}

// general wraps a row-major slice as a blas32 matrix.
func general(rows, cols int, data []float32) blas32.General {
	return blas32.General{Rows: rows, Cols: cols, Stride: cols, Data: data}
}

// gemm computes c = alpha * op(a) * op(b) + beta * c.
func (cpu *CPUBackend) gemm(tA, tB blas.Transpose, alpha float32, a, b blas32.General, beta float32, c blas32.General) {
	m, k := a.Rows, a.Cols
	if tA == blas.Trans {
		m, k = a.Cols, a.Rows
	}
	n := b.Cols
	if tB == blas.Trans {
		n = b.Rows
	}
	cpu.blas.Sgemm(tA, tB, m, n, k, alpha, a.Data, a.Stride, b.Data, b.Stride, beta, c.Data, c.Stride)
}
