// Copyright 2025 Born ML Framework. All rights reserved.
// Use of this source code is governed by an Apache 2.0
// license that can be found in the LICENSE file.

package nn_test

import (
	"errors"
	"testing"

	"github.com/born-ml/attnet/autodiff"
	"github.com/born-ml/attnet/backend/cpu"
	"github.com/born-ml/attnet/nn"
	"github.com/born-ml/attnet/tensor"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewModel(t *testing.T) {
	backend := autodiff.New(cpu.New())
	model, err := nn.NewModel(nn.ModelConfig{
		Backbone:    nn.BackboneConfig{InChannels: 3, Width: 4, Blocks: 2, Branches: 3},
		Classes:     5,
		ImageHeight: 8,
		ImageWidth:  8,
	}, nn.NewRNG(1), backend)
	require.NoError(t, err)

	x := tensor.Randn(tensor.Shape{2, 3, 8, 8}, nn.NewRNG(2), backend)
	logits := model.Forward(x)
	assert.Equal(t, tensor.Shape{2, 5}, logits.Shape())
	assert.Equal(t, tensor.Shape{4, 2, 2}, model.FeatureShape())
}

func TestNewModel_InvalidConfig(t *testing.T) {
	_, err := nn.NewModel(nn.ModelConfig{
		Backbone:    nn.BackboneConfig{InChannels: 3, Width: 4, Blocks: 1, Branches: 0},
		Classes:     5,
		ImageHeight: 8,
		ImageWidth:  8,
	}, nn.NewRNG(1), cpu.New())
	require.ErrorIs(t, err, nn.ErrInvalidConfig)
	var ce *nn.ConfigError
	require.True(t, errors.As(err, &ce))
	assert.Equal(t, "Branches", ce.Field)
}
