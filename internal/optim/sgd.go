package optim

import (
	"github.com/born-ml/attnet/internal/nn"
	"github.com/born-ml/attnet/internal/tensor"
)

// SGD implements Stochastic Gradient Descent optimizer with optional momentum.
//
// Update rule without momentum:
//
//	param = param - lr * gradient
//
// Update rule with momentum:
//
//	velocity = momentum * velocity + gradient
//	param = param - lr * velocity
type SGD[B tensor.Backend] struct {
	params     []*nn.Parameter[B]
	lr         float32
	momentum   float32
	steps      int64
	velocities map[*nn.Parameter[B]]*tensor.RawTensor
}

// SGDConfig holds configuration for SGD optimizer.
type SGDConfig struct {
	LR       float32 // Learning rate (default: 0.01)
	Momentum float32 // Momentum factor (default: 0.0, range: [0, 1))
}

// NewSGD creates a new SGD optimizer.
func NewSGD[B tensor.Backend](params []*nn.Parameter[B], config SGDConfig) *SGD[B] {
	if config.LR == 0 {
		config.LR = 0.01
	}
	return &SGD[B]{
		params:     params,
		lr:         config.LR,
		momentum:   config.Momentum,
		velocities: make(map[*nn.Parameter[B]]*tensor.RawTensor),
	}
}

// Step performs a single optimization step.
//
// Parameters with no gradient (not in computational graph) are skipped.
func (s *SGD[B]) Step(grads map[*tensor.RawTensor]*tensor.RawTensor) {
	s.steps++
	for _, param := range s.params {
		grad := getGradient(param, grads)
		if grad == nil {
			continue
		}
		p, g := param.Tensor().Data(), grad.Data()

		if s.momentum == 0 {
			for i := range p {
				p[i] -= s.lr * g[i]
			}
			continue
		}

		v := buffer(s.velocities, param).Data()
		for i := range p {
			v[i] = s.momentum*v[i] + g[i]
			p[i] -= s.lr * v[i]
		}
	}
}

// ZeroGrad clears gradients for all parameters.
func (s *SGD[B]) ZeroGrad() {
	for _, param := range s.params {
		param.ZeroGrad()
	}
}

// GetLR returns the current learning rate.
func (s *SGD[B]) GetLR() float32 { return s.lr }

// SetLR updates the learning rate.
func (s *SGD[B]) SetLR(lr float32) { s.lr = lr }

// Type returns "sgd".
func (s *SGD[B]) Type() string { return NameSGD }

// Steps returns the number of steps taken.
func (s *SGD[B]) Steps() int64 { return s.steps }

// SetSteps restores the step counter.
func (s *SGD[B]) SetSteps(steps int64) { s.steps = steps }

// Hyperparameters returns lr and momentum.
func (s *SGD[B]) Hyperparameters() map[string]any {
	return map[string]any{"lr": s.lr, "momentum": s.momentum}
}

// StateDict exports velocity buffers as "velocity.{param_index}". Without
// momentum the state is empty.
func (s *SGD[B]) StateDict() map[string]*tensor.RawTensor {
	sd := make(map[string]*tensor.RawTensor)
	exportBuffers(sd, "velocity", s.params, s.velocities)
	return sd
}

// LoadStateDict replaces the velocity buffers.
func (s *SGD[B]) LoadStateDict(stateDict map[string]*tensor.RawTensor) error {
	if err := checkKeys(stateDict, len(s.params), "velocity"); err != nil {
		return err
	}
	v, err := importBuffers(stateDict, "velocity", s.params)
	if err != nil {
		return err
	}
	s.velocities = v
	return nil
}
