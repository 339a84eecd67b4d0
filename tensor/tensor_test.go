// Copyright 2025 Born ML Framework. All rights reserved.
// Use of this source code is governed by an Apache 2.0
// license that can be found in the LICENSE file.

package tensor_test

import (
	"testing"

	"github.com/born-ml/attnet/backend/cpu"
	"github.com/born-ml/attnet/tensor"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestBackendInterface verifies that the CPU backend implements tensor.Backend.
func TestBackendInterface(_ *testing.T) {
	var _ tensor.Backend = cpu.New()
}

func TestFacadeArithmetic(t *testing.T) {
	backend := cpu.New()
	x, err := tensor.FromSlice([]float32{1, 2, 3, 4, 5, 6}, tensor.Shape{2, 3}, backend)
	require.NoError(t, err)

	y := x.Add(tensor.Ones(tensor.Shape{3}, backend))
	assert.Equal(t, []float32{2, 3, 4, 5, 6, 7}, y.Data())

	z := x.MatMul(x.Transpose())
	assert.Equal(t, tensor.Shape{2, 2}, z.Shape())
	assert.InDelta(t, 14, z.At(0, 0), 1e-6)
	assert.InDelta(t, 77, z.At(1, 1), 1e-6)
	assert.Equal(t, tensor.CPU, backend.Device())
}

func TestRawFromSlice_LengthMismatch(t *testing.T) {
	_, err := tensor.RawFromSlice([]float32{1, 2, 3}, tensor.Shape{2, 2})
	assert.Error(t, err)
}
