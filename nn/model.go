// Copyright 2025 Born ML Framework. All rights reserved.
// Use of this source code is governed by an Apache 2.0
// license that can be found in the LICENSE file.

package nn

import (
	"math/rand"

	"github.com/born-ml/attnet/internal/nn"
	"github.com/born-ml/attnet/tensor"
)

// FeatureBlock is conv 3x3 → ReLU → BatchNorm2D → MaxPool 2x2.
type FeatureBlock[B tensor.Backend] = nn.FeatureBlock[B]

// NewFeatureBlock creates a feature block mapping in to out channels.
func NewFeatureBlock[B tensor.Backend](in, out int, rng *rand.Rand, backend B) *FeatureBlock[B] {
	return nn.NewFeatureBlock(in, out, rng, backend)
}

// BackboneConfig describes an AttentionBackbone.
type BackboneConfig = nn.BackboneConfig

// AttentionBackbone mixes K convolution branches with a learned,
// per-sample attention vector.
type AttentionBackbone[B tensor.Backend] = nn.AttentionBackbone[B]

// NewAttentionBackbone validates cfg and builds the backbone.
func NewAttentionBackbone[B tensor.Backend](cfg BackboneConfig, rng *rand.Rand, backend B) (*AttentionBackbone[B], error) {
	return nn.NewAttentionBackbone(cfg, rng, backend)
}

// Classifier is global average pooling followed by a linear projection.
type Classifier[B tensor.Backend] = nn.Classifier[B]

// NewClassifier creates a classifier for features with the given channels.
func NewClassifier[B tensor.Backend](channels, classes int, rng *rand.Rand, backend B) (*Classifier[B], error) {
	return nn.NewClassifier(channels, classes, rng, backend)
}

// ModelConfig describes the full classifier.
type ModelConfig = nn.ModelConfig

// Model composes an AttentionBackbone with a Classifier.
type Model[B tensor.Backend] = nn.Model[B]

// NewModel validates cfg and builds the model.
func NewModel[B tensor.Backend](cfg ModelConfig, rng *rand.Rand, backend B) (*Model[B], error) {
	return nn.NewModel(cfg, rng, backend)
}

// Correct counts the rows of logits whose arg-max equals the target.
func Correct[B tensor.Backend](logits *tensor.Tensor[B], targets []int) int {
	return nn.Correct(logits, targets)
}

// Checkpoints

// Checkpoint is the training metadata stored with model and optimizer state.
type Checkpoint = nn.Checkpoint

// OptimizerState is the optimizer side of a checkpoint.
type OptimizerState = nn.OptimizerState

// SaveCheckpoint atomically writes model state, optimizer state and ck to path.
func SaveCheckpoint[B tensor.Backend](path string, model Module[B], optimizer OptimizerState, ck Checkpoint) error {
	return nn.SaveCheckpoint(path, model, optimizer, ck)
}

// LoadCheckpoint restores model and optimizer state from path.
func LoadCheckpoint[B tensor.Backend](path string, model Module[B], optimizer OptimizerState) (*Checkpoint, error) {
	return nn.LoadCheckpoint(path, model, optimizer)
}
