package optim

import "math"

// Scheduler maps an epoch index to a learning rate.
//
// Schedules are pure functions of the epoch, so a resumed run recomputes
// the same learning rate from the restored epoch counter.
type Scheduler interface {
	LR(epoch int, baseLR float64) float64
	Name() string
}

// StepLR multiplies the learning rate by Gamma every StepSize epochs:
//
//	lr(epoch) = baseLR * Gamma^floor(epoch / StepSize)
type StepLR struct {
	StepSize int     // Epochs between LR reductions
	Gamma    float64 // Multiplicative factor of LR decay
}

// NewStepLR creates a step schedule. Non-positive stepSize defaults to 60
// and gamma outside (0, 1] defaults to 0.5.
func NewStepLR(stepSize int, gamma float64) *StepLR {
	if stepSize <= 0 {
		stepSize = 60
	}
	if gamma <= 0 || gamma > 1 {
		gamma = 0.5
	}
	return &StepLR{StepSize: stepSize, Gamma: gamma}
}

// LR returns the learning rate for the given 0-based epoch.
func (s *StepLR) LR(epoch int, baseLR float64) float64 {
	return baseLR * math.Pow(s.Gamma, float64(epoch/s.StepSize))
}

// Name returns "StepLR".
func (s *StepLR) Name() string {
	return "StepLR"
}
