// Copyright 2025 Born ML Framework. All rights reserved.
// Use of this source code is governed by an Apache 2.0
// license that can be found in the LICENSE file.

// Package train runs resumable training sessions for attnet models.
//
// A Session trains for a fixed number of epochs and saves a checkpoint and
// the metrics history every SaveEvery epochs. Starting a session with the
// same paths resumes from the last checkpoint:
//
//	cfg, err := train.LoadConfig("attnet.yaml")
//	trainLoader, valLoader, err := train.NewLoaders(cfg)
//	session, err := train.NewSession(cfg, trainLoader, valLoader,
//	    train.WithLogger(slog.Default()))
//	err = session.Run(ctx)
package train

import (
	"context"
	"log/slog"

	"github.com/born-ml/attnet/internal/data"
	"github.com/born-ml/attnet/internal/history"
	"github.com/born-ml/attnet/internal/train"
	"github.com/born-ml/attnet/nn"
	"github.com/born-ml/attnet/tensor"
)

// Config holds everything a training session needs.
type Config = train.Config

// DataConfig selects the training and validation data.
type DataConfig = train.DataConfig

// ConfigError reports an invalid configuration value.
type ConfigError = train.ConfigError

// Session is a resumable training run.
type Session = train.Session

// State is the lifecycle position of a Session.
type State = train.State

// Session states.
const (
	StateNew        = train.StateNew
	StateFresh      = train.StateFresh
	StateResumed    = train.StateResumed
	StateRunning    = train.StateRunning
	StateTerminated = train.StateTerminated
)

// Reconcile policies.
const (
	ReconcileCheckpoint = train.ReconcileCheckpoint
	ReconcileNone       = train.ReconcileNone
)

// Session errors.
var (
	ErrSaveFailed = train.ErrSaveFailed
	ErrTerminated = train.ErrTerminated
)

// Backend is the compute backend of a session.
type Backend = train.Backend

// Loader produces the batches of one dataset split.
type Loader = data.Loader

// History is the per-epoch metrics record.
type History = history.History

// Entry holds the metrics of one epoch.
type Entry = history.Entry

// Consumer receives the final history of a session.
type Consumer = history.Consumer

// Option configures a Session.
type Option = train.Option

// DefaultConfig returns the reference configuration.
func DefaultConfig() Config {
	return train.DefaultConfig()
}

// LoadConfig reads a YAML configuration on top of DefaultConfig.
func LoadConfig(path string) (Config, error) {
	return train.LoadConfig(path)
}

// NewLoaders builds the training and validation loaders described by cfg.
func NewLoaders(cfg Config) (trainLoader, valLoader *Loader, err error) {
	return train.NewLoaders(cfg)
}

// NewSession validates cfg and builds the model, optimizer and schedule.
func NewSession(cfg Config, trainLoader, valLoader *Loader, opts ...Option) (*Session, error) {
	return train.NewSession(cfg, trainLoader, valLoader, opts...)
}

// WithLogger sets the session logger.
func WithLogger(logger *slog.Logger) Option {
	return train.WithLogger(logger)
}

// WithConsumers registers consumers of the final history.
func WithConsumers(consumers ...Consumer) Option {
	return train.WithConsumers(consumers...)
}

// WithEpochHook registers a callback run after every completed epoch.
func WithEpochHook(fn func(epoch int, entry Entry)) Option {
	return train.WithEpochHook(fn)
}

// Evaluate computes the mean loss and accuracy of model over loader
// without updating it.
func Evaluate[B tensor.Backend](ctx context.Context, model *nn.Model[B], loader *Loader) (loss, accuracy float64, err error) {
	return train.Evaluate(ctx, model, loader)
}
