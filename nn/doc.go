// Copyright 2025 Born ML Framework. All rights reserved.
// Use of this source code is governed by an Apache 2.0
// license that can be found in the LICENSE file.

// Package nn provides the layers and the attention-gated classifier.
//
// # Overview
//
// This package contains:
//   - Layers: Linear, Conv2D, ReLU, BatchNorm2D, MaxPool2D, GlobalAvgPool2D
//   - Containers: Sequential of named modules, FeatureBlock
//   - Models: AttentionBackbone, Classifier and Model
//   - Persistence: SaveCheckpoint and LoadCheckpoint in the .born format
//
// # Attention-Gated Backbone
//
// An AttentionBackbone halves the spatial resolution with N feature blocks,
// then runs K convolution branches and mixes them with a non-negative,
// unnormalized attention vector computed from the features:
//
//	backend := autodiff.New(cpu.New())
//	model, err := nn.NewModel(nn.ModelConfig{
//	    Backbone:    nn.BackboneConfig{InChannels: 3, Width: 64, Blocks: 3, Branches: 2},
//	    Classes:     10,
//	    ImageHeight: 32,
//	    ImageWidth:  32,
//	}, nn.NewRNG(1), backend)
//	logits := model.Forward(images) // [batch, 10]
//
// Invalid configurations are reported at construction time as *ConfigError,
// matching ErrInvalidConfig.
package nn
