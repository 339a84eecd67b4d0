package train

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"time"

	"github.com/born-ml/attnet/internal/autodiff"
	"github.com/born-ml/attnet/internal/backend/cpu"
	"github.com/born-ml/attnet/internal/data"
	"github.com/born-ml/attnet/internal/history"
	"github.com/born-ml/attnet/internal/nn"
	"github.com/born-ml/attnet/internal/optim"
	"github.com/born-ml/attnet/internal/tensor"
	"github.com/google/uuid"
)

// Backend is the compute backend of a session: the CPU kernels behind the
// autodiff decorator.
type Backend = *autodiff.AutodiffBackend[*cpu.CPUBackend]

// Session errors.
var (
	// ErrSaveFailed is joined with the individual failures when at least one
	// scheduled checkpoint or history save failed during Run.
	ErrSaveFailed = errors.New("train: saving training state failed")

	// ErrTerminated is returned by Run on a session that already finished.
	ErrTerminated = errors.New("train: session already terminated")
)

// Option configures a Session.
type Option func(*Session)

// WithLogger sets the logger used for progress and warnings. Sessions are
// silent by default.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Session) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// WithConsumers registers consumers that receive the final history once
// the session terminates.
func WithConsumers(consumers ...history.Consumer) Option {
	return func(s *Session) {
		s.consumers = append(s.consumers, consumers...)
	}
}

// WithEpochHook registers fn to be called after every completed epoch,
// before any scheduled save. epoch counts completed epochs.
func WithEpochHook(fn func(epoch int, entry history.Entry)) Option {
	return func(s *Session) {
		s.onEpoch = fn
	}
}

// Session trains a Model over a number of epochs, persisting a checkpoint
// and the metrics history at a fixed interval so that an interrupted run
// can be resumed.
//
// Lifecycle:
//
//	New --Start--> Fresh | Resumed --Run--> Running --last epoch--> Terminated
//
// A Session is not safe for concurrent use.
type Session struct {
	cfg       Config
	train     *data.Loader
	val       *data.Loader
	logger    *slog.Logger
	consumers []history.Consumer
	onEpoch   func(int, history.Entry)

	backend Backend
	model   *nn.Model[Backend]
	opt     optim.Optimizer
	sched   optim.Scheduler

	state    State
	epoch    int
	runID    string
	hist     *history.History
	lastLoss float64
	saved    int
	saveErrs []error
}

// NewSession validates cfg and the loaders and builds the backend, model,
// optimizer and learning rate schedule. The model is initialized from
// cfg.Seed; Start replaces that state when a checkpoint exists.
//
// When the BLAS implementation named by cfg.Backend is not compiled in, a
// warning is logged and the best available one is used instead.
func NewSession(cfg Config, trainLoader, valLoader *data.Loader, opts ...Option) (*Session, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	s := &Session{
		cfg:    cfg,
		train:  trainLoader,
		val:    valLoader,
		logger: slog.New(slog.DiscardHandler),
		hist:   history.New(),
	}
	for _, opt := range opts {
		opt(s)
	}
	if err := checkLoader("training", trainLoader, cfg); err != nil {
		return nil, err
	}
	if err := checkLoader("validation", valLoader, cfg); err != nil {
		return nil, err
	}

	inner, err := cpu.NewWithBLAS(cfg.Backend)
	if err != nil {
		inner = cpu.New()
		s.logger.Warn("requested BLAS backend unavailable, falling back",
			"requested", cfg.Backend, "using", inner.BLAS(), "error", err)
	}
	s.backend = autodiff.New(inner)

	s.model, err = nn.NewModel(cfg.Model(), nn.NewRNG(cfg.Seed), s.backend)
	if err != nil {
		return nil, err
	}
	s.opt, err = optim.New(cfg.Optimizer, s.model.Parameters(), float32(cfg.LearningRate))
	if err != nil {
		return nil, &ConfigError{Field: "Optimizer", Value: cfg.Optimizer, Reason: err.Error()}
	}
	s.sched = optim.NewStepLR(cfg.DecayEvery, cfg.DecayFactor)
	return s, nil
}

func checkLoader(name string, l *data.Loader, cfg Config) error {
	if l == nil {
		return &ConfigError{Field: "Loader", Value: name, Reason: "must not be nil"}
	}
	c, h, w := l.Dataset().Shape()
	if c != cfg.ImageChannels || h != cfg.ImageHeight || w != cfg.ImageWidth {
		return &ConfigError{
			Field:  "ImageSize",
			Value:  fmt.Sprintf("%dx%dx%d", cfg.ImageChannels, cfg.ImageHeight, cfg.ImageWidth),
			Reason: fmt.Sprintf("%s images are %dx%dx%d", name, c, h, w),
		}
	}
	if classes := l.Dataset().Classes(); classes > cfg.Classes {
		return &ConfigError{
			Field:  "Classes",
			Value:  cfg.Classes,
			Reason: fmt.Sprintf("%s data has %d classes", name, classes),
		}
	}
	return nil
}

// Start restores the checkpoint and the history, independently of each
// other.
//
// A missing checkpoint starts from epoch 0 and a missing history starts
// empty. A file that exists but cannot be decoded, or a checkpoint that
// does not fit the configured model or optimizer, is an error matching
// serialization.ErrCorrupt; the session then stays New and must not be
// run, since the model may have been partially overwritten.
//
// When both are present and the history length differs from the
// checkpoint epoch, cfg.Reconcile decides what happens (see
// ReconcileCheckpoint and ReconcileNone).
// A history without a checkpoint is kept as is and a warning is logged.
func (s *Session) Start() error {
	if s.state != StateNew {
		return fmt.Errorf("train: Start called on a %s session", s.state)
	}

	ck, err := nn.LoadCheckpoint(s.cfg.CheckpointPath, s.model, s.opt)
	switch {
	case errors.Is(err, fs.ErrNotExist):
		ck = nil
	case err != nil:
		return fmt.Errorf("failed to restore checkpoint: %w", err)
	}

	hist, err := history.Load(s.cfg.HistoryPath)
	restored := err == nil
	switch {
	case errors.Is(err, fs.ErrNotExist):
		hist = history.New()
	case err != nil:
		return fmt.Errorf("failed to restore history: %w", err)
	}
	s.hist = hist

	s.runID = uuid.NewString()
	s.epoch = 0
	if ck != nil {
		s.epoch = ck.Epoch
		s.lastLoss = ck.Loss
		if ck.RunID != "" {
			s.runID = ck.RunID
		}
		s.reconcile()
	} else if restored {
		s.logger.Warn("history restored without checkpoint",
			"path", s.cfg.HistoryPath, "history", s.hist.Len())
	}
	s.saved = s.epoch

	s.state = StateFresh
	if ck != nil || restored {
		s.state = StateResumed
	}
	lr := s.sched.LR(s.epoch, s.cfg.LearningRate)
	s.opt.SetLR(float32(lr))

	s.logger.Info("training session started",
		"state", s.state,
		"run_id", s.runID,
		"epoch", s.epoch,
		"epochs", s.cfg.Epochs,
		"history", s.hist.Len(),
		"lr", lr,
		"backend", s.backend.Name(),
		"parameters", nn.CountParameters(s.model.Parameters()),
	)
	return nil
}

func (s *Session) reconcile() {
	n := s.hist.Len()
	if n == s.epoch {
		return
	}
	if s.cfg.Reconcile == ReconcileNone {
		s.logger.Warn("history length differs from checkpoint epoch",
			"history", n, "epoch", s.epoch, "reconcile", s.cfg.Reconcile)
		return
	}
	if n > s.epoch {
		s.hist.Truncate(s.epoch)
		s.logger.Warn("history truncated to checkpoint epoch",
			"history", n, "epoch", s.epoch, "dropped", n-s.epoch)
		return
	}
	s.hist.PadTo(s.epoch)
	s.logger.Warn("history padded to checkpoint epoch",
		"history", n, "epoch", s.epoch, "padded", s.epoch-n)
}

// Run trains the remaining epochs, calling Start first if needed.
//
// Every epoch runs a training phase and a validation phase, appends one
// history entry, steps the learning rate schedule and, every SaveEvery
// epochs, saves the checkpoint and then the history.
//
// ctx is only checked between epochs, after any scheduled save, so a
// cancelled Run always leaves a completed epoch behind. Epochs completed
// since the last save are saved once before returning, so a new session
// resumes exactly where this one stopped. The returned error then matches
// ctx.Err() and Run may be called again to continue. A data pipeline error
// is returned unchanged.
//
// Failed saves do not stop training. They are logged when they happen and
// returned once the loop ends, joined with ErrSaveFailed. After the last
// epoch the session is Terminated and the history is handed to every
// registered consumer.
func (s *Session) Run(ctx context.Context) error {
	switch s.state {
	case StateNew:
		if err := s.Start(); err != nil {
			return err
		}
	case StateTerminated:
		return ErrTerminated
	}
	s.state = StateRunning

	for s.epoch < s.cfg.Epochs {
		if err := ctx.Err(); err != nil {
			s.logger.Info("training interrupted", "epoch", s.epoch, "reason", err)
			if s.epoch > s.saved {
				s.save()
			}
			return errors.Join(err, s.saveError())
		}
		if err := s.runEpoch(ctx); err != nil {
			return err
		}
	}

	s.state = StateTerminated
	s.logger.Info("training finished",
		"run_id", s.runID, "epochs", s.epoch, "save_failures", len(s.saveErrs))

	errs := []error{s.saveError()}
	for _, c := range s.consumers {
		if err := c.Consume(s.hist.Clone()); err != nil {
			s.logger.Error("metrics consumer failed", "error", err)
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func (s *Session) runEpoch(ctx context.Context) error {
	start := time.Now()
	// In-flight batches are never cancelled: an epoch either completes or
	// fails on a data error.
	ctx = context.WithoutCancel(ctx)

	trainLoss, trainAcc, err := s.trainEpoch(ctx, s.epoch)
	if err != nil {
		return err
	}
	valLoss, valAcc, err := Evaluate(ctx, s.model, s.val)
	if err != nil {
		return err
	}

	entry := history.Entry{
		TrainLoss:     trainLoss,
		ValLoss:       valLoss,
		TrainAccuracy: trainAcc,
		ValAccuracy:   valAcc,
	}
	s.hist.Append(entry)
	s.epoch++
	s.lastLoss = trainLoss

	lr := s.sched.LR(s.epoch, s.cfg.LearningRate)
	s.opt.SetLR(float32(lr))

	s.logger.Info("epoch finished",
		"epoch", s.epoch,
		"epochs", s.cfg.Epochs,
		"train_loss", trainLoss,
		"train_acc", trainAcc,
		"val_loss", valLoss,
		"val_acc", valAcc,
		"next_lr", lr,
		"elapsed", time.Since(start).Round(time.Millisecond),
	)
	if s.onEpoch != nil {
		s.onEpoch(s.epoch, entry)
	}
	if s.epoch%s.cfg.SaveEvery == 0 {
		s.save()
	}
	return nil
}

func (s *Session) trainEpoch(ctx context.Context, epoch int) (loss, accuracy float64, err error) {
	var sum float64
	var batches, correct, examples int
	for batch, berr := range s.train.Batches(ctx, epoch) {
		if berr != nil {
			return 0, 0, berr
		}
		l, c := s.TrainStep(batch)
		sum += l
		batches++
		correct += c
		examples += batch.Size()
	}
	return mean(sum, batches), mean(float64(correct), examples), nil
}

// TrainStep runs one forward and backward pass over batch in training mode
// and applies one optimizer step. It returns the batch loss and the number
// of examples whose highest logit is the target class.
func (s *Session) TrainStep(batch *data.Batch) (loss float64, correct int) {
	s.model.SetTraining(true)
	tape := s.backend.Tape()
	tape.Clear()
	tape.StartRecording()

	logits := s.model.Forward(tensor.New(batch.Images, s.backend))
	lossT := s.model.Loss(logits, batch.Labels)
	tape.StopRecording()

	grads := autodiff.Backward(lossT, s.backend)
	tape.Clear()
	s.opt.Step(grads)
	s.opt.ZeroGrad()

	return float64(lossT.Item()), nn.Correct(logits, batch.Labels)
}

// save writes the checkpoint and then the history. Failures are logged and
// recorded for Run to report.
func (s *Session) save() {
	s.saved = s.epoch
	ck := nn.Checkpoint{
		Epoch:     s.epoch,
		Loss:      s.lastLoss,
		LR:        float64(s.opt.GetLR()),
		RunID:     s.runID,
		CreatedAt: time.Now().UTC(),
		Metadata: map[string]any{
			"blocks":    s.cfg.Blocks,
			"branches":  s.cfg.Branches,
			"width":     s.cfg.Width,
			"classes":   s.cfg.Classes,
			"scheduler": s.sched.Name(),
		},
	}
	if err := nn.SaveCheckpoint(s.cfg.CheckpointPath, s.model, s.opt, ck); err != nil {
		s.saveFailed("checkpoint", s.cfg.CheckpointPath, err)
	} else {
		s.logger.Debug("checkpoint saved", "path", s.cfg.CheckpointPath, "epoch", s.epoch)
	}
	if err := s.hist.Save(s.cfg.HistoryPath); err != nil {
		s.saveFailed("history", s.cfg.HistoryPath, err)
	} else {
		s.logger.Debug("history saved", "path", s.cfg.HistoryPath, "entries", s.hist.Len())
	}
}

func (s *Session) saveFailed(what, path string, err error) {
	s.logger.Error("save failed", "what", what, "path", path, "epoch", s.epoch, "error", err)
	s.saveErrs = append(s.saveErrs, fmt.Errorf("epoch %d: %s: %w", s.epoch, what, err))
}

func (s *Session) saveError() error {
	if len(s.saveErrs) == 0 {
		return nil
	}
	return errors.Join(append([]error{ErrSaveFailed}, s.saveErrs...)...)
}

// State returns the lifecycle state.
func (s *Session) State() State { return s.state }

// Epoch returns the number of completed epochs.
func (s *Session) Epoch() int { return s.epoch }

// RunID returns the identifier of the training run. It is empty before
// Start and is kept across resumes.
func (s *Session) RunID() string { return s.runID }

// History returns a copy of the metrics history.
func (s *Session) History() *history.History { return s.hist.Clone() }

// Model returns the model being trained.
func (s *Session) Model() *nn.Model[Backend] { return s.model }

// Optimizer returns the optimizer.
func (s *Session) Optimizer() optim.Optimizer { return s.opt }

// Backend returns the compute backend.
func (s *Session) Backend() Backend { return s.backend }

// SaveFailures returns the number of failed saves so far.
func (s *Session) SaveFailures() int { return len(s.saveErrs) }

// Config returns the session configuration.
func (s *Session) Config() Config { return s.cfg }

func mean(sum float64, n int) float64 {
	if n == 0 {
		return 0
	}
	return sum / float64(n)
}
