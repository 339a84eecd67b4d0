// Copyright 2025 Born ML Framework. All rights reserved.
// Use of this source code is governed by an Apache 2.0
// license that can be found in the LICENSE file.

// Package cpu provides the CPU backend for attnet tensors.
//
// Every matrix product, including the im2col convolutions, runs through a
// BLAS implementation: the pure Go gonum one is always available, and
// builds with the netlib tag add the cgo netlib one, which New prefers.
//
//	backend := cpu.New()
//	x := tensor.Zeros(tensor.Shape{2, 3}, backend)
package cpu

import (
	internalcpu "github.com/born-ml/attnet/internal/backend/cpu"
	"github.com/born-ml/attnet/tensor"
)

// Backend represents the CPU backend implementation.
type Backend = internalcpu.CPUBackend

// Compile-time check that Backend implements tensor.Backend.
var _ tensor.Backend = (*Backend)(nil)

// ErrUnavailable is returned by NewWithBLAS for an implementation that is
// not compiled in.
var ErrUnavailable = internalcpu.ErrUnavailable

// New creates a CPU backend using the best available BLAS implementation.
func New() *Backend {
	return internalcpu.New()
}

// NewWithBLAS creates a CPU backend bound to the named BLAS implementation
// ("gonum", "netlib", or "auto").
func NewWithBLAS(name string) (*Backend, error) {
	return internalcpu.NewWithBLAS(name)
}

// Available lists the compiled-in BLAS implementations, best first.
func Available() []string {
	return internalcpu.Available()
}
