// Copyright 2025 Born ML Framework. All rights reserved.
// Use of this source code is governed by an Apache 2.0
// license that can be found in the LICENSE file.

// Package optim provides the optimizers and learning rate schedules used
// to train attnet models.
//
// Both optimizers export their per-parameter state through StateDict, so a
// checkpoint restores training exactly where it stopped:
//
//	opt, err := optim.New("adam", model.Parameters(), 1e-3)
//	sched := optim.NewStepLR(60, 0.5)
//	opt.SetLR(float32(sched.LR(epoch, 1e-3)))
package optim

import (
	"github.com/born-ml/attnet/internal/optim"
	"github.com/born-ml/attnet/nn"
	"github.com/born-ml/attnet/tensor"
)

// Optimizer names accepted by New.
const (
	NameAdam = optim.NameAdam
	NameSGD  = optim.NameSGD
)

// ErrUnknownOptimizer is returned by New for an unknown name.
var ErrUnknownOptimizer = optim.ErrUnknownOptimizer

// Optimizer interface defines the common interface for all optimizers.
type Optimizer = optim.Optimizer

// New creates the named optimizer with its default hyperparameters.
func New[B tensor.Backend](name string, params []*nn.Parameter[B], lr float32) (Optimizer, error) {
	return optim.New(name, params, lr)
}

// SGD represents the SGD optimizer with optional momentum.
type SGD[B tensor.Backend] = optim.SGD[B]

// SGDConfig contains configuration for SGD optimizer.
type SGDConfig = optim.SGDConfig

// NewSGD creates a new SGD optimizer.
func NewSGD[B tensor.Backend](params []*nn.Parameter[B], config SGDConfig) *SGD[B] {
	return optim.NewSGD(params, config)
}

// Adam represents the Adam optimizer.
type Adam[B tensor.Backend] = optim.Adam[B]

// AdamConfig contains configuration for Adam optimizer.
type AdamConfig = optim.AdamConfig

// NewAdam creates a new Adam optimizer.
func NewAdam[B tensor.Backend](params []*nn.Parameter[B], config AdamConfig) *Adam[B] {
	return optim.NewAdam(params, config)
}

// Scheduler maps an epoch index to a learning rate.
type Scheduler = optim.Scheduler

// StepLR multiplies the learning rate by Gamma every StepSize epochs.
type StepLR = optim.StepLR

// NewStepLR creates a step schedule.
func NewStepLR(stepSize int, gamma float64) *StepLR {
	return optim.NewStepLR(stepSize, gamma)
}
