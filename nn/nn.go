// Copyright 2025 Born ML Framework. All rights reserved.
// Use of this source code is governed by an Apache 2.0
// license that can be found in the LICENSE file.

package nn

import (
	"math/rand"

	"github.com/born-ml/attnet/internal/nn"
	"github.com/born-ml/attnet/tensor"
)

// Module interface defines the common interface for all neural network modules.
type Module[B tensor.Backend] = nn.Module[B]

// Parameter represents a trainable parameter in a neural network.
type Parameter[B tensor.Backend] = nn.Parameter[B]

// ConfigError reports an invalid model configuration value.
type ConfigError = nn.ConfigError

// ErrInvalidConfig is matched by every configuration error.
var ErrInvalidConfig = nn.ErrInvalidConfig

// NewRNG returns the deterministic random source used for weight
// initialization.
func NewRNG(seed int64) *rand.Rand {
	return nn.NewRNG(seed)
}

// Layers

// Linear represents a fully connected layer.
type Linear[B tensor.Backend] = nn.Linear[B]

// NewLinear creates a linear layer with Xavier initialization.
func NewLinear[B tensor.Backend](inFeatures, outFeatures int, rng *rand.Rand, backend B) *Linear[B] {
	return nn.NewLinear(inFeatures, outFeatures, rng, backend)
}

// Conv2D represents a 2D convolution with bias.
type Conv2D[B tensor.Backend] = nn.Conv2D[B]

// NewConv2D creates a square-kernel 2D convolution.
//
// Example:
//
//	conv := nn.NewConv2D(3, 64, 3, 1, 1, rng, backend) // 3x3, stride 1, padding 1
func NewConv2D[B tensor.Backend](inChannels, outChannels, kernelSize, stride, padding int, rng *rand.Rand, backend B) *Conv2D[B] {
	return nn.NewConv2D(inChannels, outChannels, kernelSize, stride, padding, rng, backend)
}

// ReLU applies max(0, x).
type ReLU[B tensor.Backend] = nn.ReLU[B]

// NewReLU creates a ReLU activation.
func NewReLU[B tensor.Backend]() *ReLU[B] {
	return nn.NewReLU[B]()
}

// BatchNorm2D normalizes each channel, keeping running statistics for evaluation.
type BatchNorm2D[B tensor.Backend] = nn.BatchNorm2D[B]

// NewBatchNorm2D creates a batch normalization layer in training mode.
func NewBatchNorm2D[B tensor.Backend](channels int, backend B) *BatchNorm2D[B] {
	return nn.NewBatchNorm2D(channels, backend)
}

// MaxPool2D represents a 2D max pooling layer.
type MaxPool2D[B tensor.Backend] = nn.MaxPool2D[B]

// NewMaxPool2D creates a max pooling layer.
func NewMaxPool2D[B tensor.Backend](kernelSize, stride int, backend B) *MaxPool2D[B] {
	return nn.NewMaxPool2D(kernelSize, stride, backend)
}

// GlobalAvgPool2D averages every channel over its spatial positions.
type GlobalAvgPool2D[B tensor.Backend] = nn.GlobalAvgPool2D[B]

// NewGlobalAvgPool2D creates a global average pooling layer.
func NewGlobalAvgPool2D[B tensor.Backend](backend B) *GlobalAvgPool2D[B] {
	return nn.NewGlobalAvgPool2D(backend)
}

// Containers

// NamedModule pairs a module with its state dict prefix.
type NamedModule[B tensor.Backend] = nn.NamedModule[B]

// Named names m inside a Sequential.
func Named[B tensor.Backend](name string, m Module[B]) NamedModule[B] {
	return nn.Named(name, m)
}

// Sequential chains named modules.
type Sequential[B tensor.Backend] = nn.Sequential[B]

// NewSequential creates a Sequential container.
func NewSequential[B tensor.Backend](modules ...NamedModule[B]) *Sequential[B] {
	return nn.NewSequential(modules...)
}

// SetTraining switches m between training and evaluation mode.
func SetTraining(m any, training bool) {
	nn.SetTraining(m, training)
}
