// Package nn implements the neural network modules of the attention-gated
// classifier.
//
// This package provides:
//   - Module interface: Base interface for all NN components
//   - Parameter: Trainable parameters with gradient storage
//   - Layers: Conv2D, Linear, ReLU, BatchNorm2D, MaxPool2D, GlobalAvgPool2D
//   - Sequential: Container chaining named modules
//   - FeatureBlock, AttentionBackbone, Classifier and Model
//   - Checkpoint: model + optimizer persistence in the .born format
package nn

import (
	"fmt"
	"strings"

	"github.com/born-ml/attnet/internal/tensor"
)

// Module is the base interface for all neural network components.
//
// Modules can be composed to build complex architectures:
//
//	block := nn.NewSequential[B](
//	    nn.Named("conv", nn.NewConv2D(3, 64, 3, 1, 1, rng, backend)),
//	    nn.Named("relu", nn.NewReLU[B]()),
//	)
//
// Type parameter B must satisfy the tensor.Backend interface.
type Module[B tensor.Backend] interface {
	// Forward computes the output of the module given an input tensor.
	Forward(input *tensor.Tensor[B]) *tensor.Tensor[B]

	// Parameters returns all trainable parameters of this module,
	// including those of nested modules.
	Parameters() []*Parameter[B]

	// StateDict returns every persistent tensor of the module (parameters
	// and buffers) keyed by dotted name. The tensors are live, not copies.
	StateDict() map[string]*tensor.RawTensor

	// LoadStateDict copies the given tensors into the module. Every key
	// the module expects must be present with a matching shape.
	LoadStateDict(stateDict map[string]*tensor.RawTensor) error
}

// Trainable is implemented by modules whose forward pass differs between
// training and evaluation.
type Trainable interface {
	SetTraining(training bool)
}

// SetTraining switches m, and every module nested in it, between training
// and evaluation mode. Modules without a mode are left untouched.
func SetTraining(m any, training bool) {
	if t, ok := m.(Trainable); ok {
		t.SetTraining(training)
	}
}

// withPrefix returns a copy of sd whose keys are prefixed with "prefix.".
func withPrefix(prefix string, sd map[string]*tensor.RawTensor) map[string]*tensor.RawTensor {
	out := make(map[string]*tensor.RawTensor, len(sd))
	for name, raw := range sd {
		out[prefix+"."+name] = raw
	}
	return out
}

// subDict extracts the entries under "prefix." with the prefix removed.
func subDict(prefix string, sd map[string]*tensor.RawTensor) map[string]*tensor.RawTensor {
	p := prefix + "."
	out := make(map[string]*tensor.RawTensor)
	for name, raw := range sd {
		if rest, ok := strings.CutPrefix(name, p); ok {
			out[rest] = raw
		}
	}
	return out
}

// merge copies every entry of src into dst under "prefix.".
func merge(dst map[string]*tensor.RawTensor, prefix string, src map[string]*tensor.RawTensor) {
	for name, raw := range withPrefix(prefix, src) {
		dst[name] = raw
	}
}

// loadRaw copies the tensor stored under name into dst.
func loadRaw(stateDict map[string]*tensor.RawTensor, name string, dst *tensor.RawTensor) error {
	src, ok := stateDict[name]
	if !ok {
		return fmt.Errorf("missing %s in state dict", name)
	}
	if !src.Shape().Equal(dst.Shape()) {
		return fmt.Errorf("%s shape mismatch: expected %v, got %v", name, dst.Shape(), src.Shape())
	}
	copy(dst.Data(), src.Data())
	return nil
}

// loadChild loads the entries under prefix into m, prefixing any error.
func loadChild[B tensor.Backend](m Module[B], prefix string, stateDict map[string]*tensor.RawTensor) error {
	if err := m.LoadStateDict(subDict(prefix, stateDict)); err != nil {
		return fmt.Errorf("%s: %w", prefix, err)
	}
	return nil
}
