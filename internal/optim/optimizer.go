// Package optim implements optimization algorithms for training neural networks.
//
// This package provides:
//   - Optimizer interface: Base interface for all optimizers
//   - SGD: Stochastic Gradient Descent with momentum
//   - Adam: Adaptive Moment Estimation
//   - StepLR: step learning rate schedule
//
// Example usage:
//
//	optimizer := optim.NewAdam(model.Parameters(), optim.AdamConfig{LR: 0.001})
//
//	backend.Tape().StartRecording()
//	loss := model.Loss(model.Forward(images), labels)
//	grads := autodiff.Backward(loss, backend)
//	optimizer.Step(grads)
//	optimizer.ZeroGrad()
package optim

import (
	"errors"
	"fmt"
	"strings"

	"github.com/born-ml/attnet/internal/nn"
	"github.com/born-ml/attnet/internal/tensor"
)

// Optimizer names accepted by New.
const (
	NameAdam = "adam"
	NameSGD  = "sgd"
)

// ErrUnknownOptimizer is returned by New for an unsupported name.
var ErrUnknownOptimizer = errors.New("unknown optimizer")

// Optimizer is the base interface for all optimization algorithms.
//
// Optimizers also implement nn.OptimizerState, so their state can be
// stored in checkpoints and restored for an exact resume.
type Optimizer interface {
	nn.OptimizerState

	// Step applies gradient updates to all parameters.
	//
	// Takes a gradient map from Backward() and updates parameters in-place.
	// Parameters without an entry in grads are left unchanged.
	Step(grads map[*tensor.RawTensor]*tensor.RawTensor)

	// ZeroGrad clears all parameter gradients.
	ZeroGrad()

	// SetLR updates the learning rate used by subsequent steps.
	SetLR(lr float32)
}

// New creates the optimizer called name ("adam" or "sgd") for params with
// learning rate lr. SGD uses momentum 0.9.
func New[B tensor.Backend](name string, params []*nn.Parameter[B], lr float32) (Optimizer, error) {
	switch strings.ToLower(name) {
	case NameAdam:
		return NewAdam(params, AdamConfig{LR: lr}), nil
	case NameSGD:
		return NewSGD(params, SGDConfig{LR: lr, Momentum: 0.9}), nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownOptimizer, name)
	}
}

// getGradient safely retrieves gradient for a parameter.
//
// Returns nil if no gradient is found (parameter wasn't part of computation graph).
func getGradient[B tensor.Backend](param *nn.Parameter[B], grads map[*tensor.RawTensor]*tensor.RawTensor) *tensor.RawTensor {
	if param == nil {
		return nil
	}
	return grads[param.Tensor().Raw()]
}

// buffer returns the per-parameter buffer, allocating zeros on first use.
func buffer[B tensor.Backend](bufs map[*nn.Parameter[B]]*tensor.RawTensor, p *nn.Parameter[B]) *tensor.RawTensor {
	buf, ok := bufs[p]
	if !ok {
		buf = tensor.MustRaw(p.Tensor().Shape())
		bufs[p] = buf
	}
	return buf
}

// exportBuffers adds bufs to sd under "<kind>.<param index>". Parameters that
// have not been stepped yet have no buffer and are omitted.
func exportBuffers[B tensor.Backend](sd map[string]*tensor.RawTensor, kind string, params []*nn.Parameter[B], bufs map[*nn.Parameter[B]]*tensor.RawTensor) {
	for i, p := range params {
		if buf, ok := bufs[p]; ok {
			sd[fmt.Sprintf("%s.%d", kind, i)] = buf
		}
	}
}

// importBuffers reads the "<kind>.<param index>" entries of sd, checking
// each shape against its parameter. The returned buffers are copies.
func importBuffers[B tensor.Backend](sd map[string]*tensor.RawTensor, kind string, params []*nn.Parameter[B]) (map[*nn.Parameter[B]]*tensor.RawTensor, error) {
	bufs := make(map[*nn.Parameter[B]]*tensor.RawTensor)
	for i, p := range params {
		key := fmt.Sprintf("%s.%d", kind, i)
		raw, ok := sd[key]
		if !ok {
			continue
		}
		if !raw.Shape().Equal(p.Tensor().Shape()) {
			return nil, fmt.Errorf("%s shape mismatch: parameter has %v, state has %v", key, p.Tensor().Shape(), raw.Shape())
		}
		bufs[p] = raw.Clone()
	}
	return bufs, nil
}

// checkKeys rejects entries that do not belong to any of the given kinds
// for the given number of parameters.
func checkKeys(sd map[string]*tensor.RawTensor, numParams int, kinds ...string) error {
	known := make(map[string]bool, numParams*len(kinds))
	for _, kind := range kinds {
		for i := 0; i < numParams; i++ {
			known[fmt.Sprintf("%s.%d", kind, i)] = true
		}
	}
	for key := range sd {
		if !known[key] {
			return fmt.Errorf("unexpected %s in optimizer state", key)
		}
	}
	return nil
}
