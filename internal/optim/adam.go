package optim

import (
	"math"

	"github.com/born-ml/attnet/internal/nn"
	"github.com/born-ml/attnet/internal/tensor"
	"github.com/chewxy/math32"
)

// Adam implements the Adam (Adaptive Moment Estimation) optimizer.
//
// Update rule:
//
//	m_t = beta1 * m_{t-1} + (1-beta1) * gradient       // First moment
//	v_t = beta2 * v_{t-1} + (1-beta2) * gradient²      // Second moment
//	m_hat = m_t / (1 - beta1^t)                        // Bias correction
//	v_hat = v_t / (1 - beta2^t)                        // Bias correction
//	param = param - lr * m_hat / (sqrt(v_hat) + eps)   // Parameter update
//
// Reference: "Adam: A Method for Stochastic Optimization" (Kingma & Ba, 2014)
type Adam[B tensor.Backend] struct {
	params []*nn.Parameter[B]
	lr     float32
	beta1  float32
	beta2  float32
	eps    float32
	t      int64                                  // Timestep for bias correction
	m      map[*nn.Parameter[B]]*tensor.RawTensor // First moment estimates
	v      map[*nn.Parameter[B]]*tensor.RawTensor // Second moment estimates
}

// AdamConfig holds configuration for Adam optimizer.
type AdamConfig struct {
	LR    float32    // Learning rate (default: 0.001)
	Betas [2]float32 // Coefficients for computing running averages (default: [0.9, 0.999])
	Eps   float32    // Term for numerical stability (default: 1e-8)
}

// NewAdam creates a new Adam optimizer. Zero config values take the
// defaults listed on AdamConfig.
func NewAdam[B tensor.Backend](params []*nn.Parameter[B], config AdamConfig) *Adam[B] {
	if config.LR == 0 {
		config.LR = 0.001
	}
	if config.Betas[0] == 0 {
		config.Betas[0] = 0.9
	}
	if config.Betas[1] == 0 {
		config.Betas[1] = 0.999
	}
	if config.Eps == 0 {
		config.Eps = 1e-8
	}

	return &Adam[B]{
		params: params,
		lr:     config.LR,
		beta1:  config.Betas[0],
		beta2:  config.Betas[1],
		eps:    config.Eps,
		m:      make(map[*nn.Parameter[B]]*tensor.RawTensor),
		v:      make(map[*nn.Parameter[B]]*tensor.RawTensor),
	}
}

// Step performs a single optimization step. Parameters with no gradient
// are skipped.
func (a *Adam[B]) Step(grads map[*tensor.RawTensor]*tensor.RawTensor) {
	a.t++

	biasCorrection1 := float32(1.0 - math.Pow(float64(a.beta1), float64(a.t)))
	biasCorrection2 := float32(1.0 - math.Pow(float64(a.beta2), float64(a.t)))

	for _, param := range a.params {
		grad := getGradient(param, grads)
		if grad == nil {
			continue
		}
		a.updateParameter(param, grad.Data(), buffer(a.m, param).Data(), buffer(a.v, param).Data(),
			biasCorrection1, biasCorrection2)
	}
}

// updateParameter performs Adam update for a single parameter.
func (a *Adam[B]) updateParameter(param *nn.Parameter[B], g, m, v []float32, bc1, bc2 float32) {
	p := param.Tensor().Data()
	for i := range p {
		m[i] = a.beta1*m[i] + (1-a.beta1)*g[i]
		v[i] = a.beta2*v[i] + (1-a.beta2)*g[i]*g[i]
		mHat := m[i] / bc1
		vHat := v[i] / bc2
		p[i] -= a.lr * mHat / (math32.Sqrt(vHat) + a.eps)
	}
}

// ZeroGrad clears gradients for all parameters.
func (a *Adam[B]) ZeroGrad() {
	for _, param := range a.params {
		param.ZeroGrad()
	}
}

// GetLR returns the current learning rate.
func (a *Adam[B]) GetLR() float32 { return a.lr }

// SetLR updates the learning rate.
func (a *Adam[B]) SetLR(lr float32) { a.lr = lr }

// Type returns "adam".
func (a *Adam[B]) Type() string { return NameAdam }

// Steps returns the timestep used for bias correction.
func (a *Adam[B]) Steps() int64 { return a.t }

// SetSteps restores the timestep.
func (a *Adam[B]) SetSteps(steps int64) { a.t = steps }

// Hyperparameters returns lr, beta1, beta2 and eps.
func (a *Adam[B]) Hyperparameters() map[string]any {
	return map[string]any{"lr": a.lr, "beta1": a.beta1, "beta2": a.beta2, "eps": a.eps}
}

// StateDict exports the moment estimates as "m.{param_index}" and
// "v.{param_index}".
func (a *Adam[B]) StateDict() map[string]*tensor.RawTensor {
	sd := make(map[string]*tensor.RawTensor)
	exportBuffers(sd, "m", a.params, a.m)
	exportBuffers(sd, "v", a.params, a.v)
	return sd
}

// LoadStateDict replaces the moment estimates. State is only modified when
// every entry is valid.
func (a *Adam[B]) LoadStateDict(stateDict map[string]*tensor.RawTensor) error {
	if err := checkKeys(stateDict, len(a.params), "m", "v"); err != nil {
		return err
	}
	m, err := importBuffers(stateDict, "m", a.params)
	if err != nil {
		return err
	}
	v, err := importBuffers(stateDict, "v", a.params)
	if err != nil {
		return err
	}
	a.m, a.v = m, v
	return nil
}
