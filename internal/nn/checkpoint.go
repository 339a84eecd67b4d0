package nn

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/born-ml/attnet/internal/serialization"
	"github.com/born-ml/attnet/internal/tensor"
)

// OptimizerState represents an optimizer that can save/load its state.
//
// This interface is used by checkpoints to serialize optimizer state
// without creating import cycles. Optimizers from the optim package
// implement this interface.
type OptimizerState interface {
	// StateDict returns the optimizer state for serialization.
	StateDict() map[string]*tensor.RawTensor

	// LoadStateDict loads optimizer state from serialization.
	LoadStateDict(stateDict map[string]*tensor.RawTensor) error

	// GetLR returns the current learning rate.
	GetLR() float32

	// Type returns the optimizer name ("adam", "sgd").
	Type() string

	// Steps returns the number of optimization steps taken.
	Steps() int64

	// SetSteps restores the step counter.
	SetSteps(steps int64)

	// Hyperparameters returns the optimizer configuration for the header.
	Hyperparameters() map[string]any
}

// State dict prefixes inside a checkpoint file.
const (
	modelPrefix     = "model."
	optimizerPrefix = "optimizer."
)

// ModelTypeCheckpoint is the model_type recorded in checkpoint headers.
const ModelTypeCheckpoint = "AttentionCheckpoint"

// Checkpoint is the training metadata stored next to model and optimizer
// state.
//
// Epoch is the number of epochs fully completed when the checkpoint was
// written. A resumed session starts at that epoch index, so no epoch is
// repeated or skipped.
type Checkpoint struct {
	Epoch     int            // Completed epochs
	Step      int64          // Optimizer steps taken; written from OptimizerState.Steps
	Loss      float64        // Training loss of the last completed epoch
	LR        float64        // Learning rate for the next epoch
	RunID     string         // Identifier of the training run
	Metadata  map[string]any // Additional training metadata
	CreatedAt time.Time      // When the checkpoint was created
}

// SaveCheckpoint atomically writes model state, optimizer state and the
// checkpoint metadata to path in the .born format.
//
// The previous file at path is only replaced once the new one is fully
// written and synced.
func SaveCheckpoint[B tensor.Backend](path string, model Module[B], optimizer OptimizerState, ck Checkpoint) error {
	if ck.Epoch < 0 {
		return fmt.Errorf("checkpoint epoch must be >= 0, got %d", ck.Epoch)
	}

	combined := make(map[string]*tensor.RawTensor)
	for name, raw := range model.StateDict() {
		combined[modelPrefix+name] = raw
	}
	for name, raw := range optimizer.StateDict() {
		combined[optimizerPrefix+name] = raw
	}

	header := serialization.Header{
		ModelType: ModelTypeCheckpoint,
		CreatedAt: ck.CreatedAt,
		CheckpointMeta: &serialization.CheckpointMeta{
			IsCheckpoint:    true,
			Epoch:           ck.Epoch,
			Step:            optimizer.Steps(),
			Loss:            ck.Loss,
			LR:              ck.LR,
			RunID:           ck.RunID,
			OptimizerType:   optimizer.Type(),
			OptimizerConfig: optimizer.Hyperparameters(),
			TrainingMeta:    ck.Metadata,
		},
	}

	if err := serialization.WriteFile(path, combined, header); err != nil {
		return fmt.Errorf("failed to write checkpoint: %w", err)
	}
	return nil
}

// LoadCheckpoint restores model and optimizer state from path.
//
// The model and optimizer must be pre-constructed with the same
// architecture and optimizer type as when the checkpoint was saved.
//
// Errors:
//   - missing file: matches fs.ErrNotExist
//   - undecodable file, a file that is not a checkpoint, or state that does
//     not fit the model or optimizer: matches serialization.ErrCorrupt
func LoadCheckpoint[B tensor.Backend](path string, model Module[B], optimizer OptimizerState) (*Checkpoint, error) {
	file, err := serialization.ReadFile(path)
	if err != nil {
		return nil, err
	}

	ck, err := checkpointFromHeader(file.Header)
	if err != nil {
		return nil, corrupt(path, err)
	}
	if got, want := file.Header.CheckpointMeta.OptimizerType, optimizer.Type(); got != want {
		return nil, corrupt(path, fmt.Errorf("optimizer type %q, expected %q", got, want))
	}

	modelState, optimizerState := SplitCheckpointState(file.StateDict)
	if err := model.LoadStateDict(modelState); err != nil {
		return nil, corrupt(path, fmt.Errorf("failed to load model state: %w", err))
	}
	if err := optimizer.LoadStateDict(optimizerState); err != nil {
		return nil, corrupt(path, fmt.Errorf("failed to load optimizer state: %w", err))
	}
	optimizer.SetSteps(ck.Step)
	return ck, nil
}

// ReadCheckpoint decodes the checkpoint metadata and raw state of path
// without loading it into a model.
func ReadCheckpoint(path string) (*Checkpoint, *serialization.File, error) {
	file, err := serialization.ReadFile(path)
	if err != nil {
		return nil, nil, err
	}
	ck, err := checkpointFromHeader(file.Header)
	if err != nil {
		return nil, nil, corrupt(path, err)
	}
	return ck, file, nil
}

// SplitCheckpointState separates the "model." and "optimizer." entries of
// a checkpoint state dict, removing the prefixes.
func SplitCheckpointState(stateDict map[string]*tensor.RawTensor) (model, optimizer map[string]*tensor.RawTensor) {
	model = make(map[string]*tensor.RawTensor)
	optimizer = make(map[string]*tensor.RawTensor)
	for name, raw := range stateDict {
		if rest, ok := strings.CutPrefix(name, optimizerPrefix); ok {
			optimizer[rest] = raw
		} else if rest, ok := strings.CutPrefix(name, modelPrefix); ok {
			model[rest] = raw
		}
	}
	return model, optimizer
}

var errNotCheckpoint = errors.New("file is not a checkpoint")

func checkpointFromHeader(h serialization.Header) (*Checkpoint, error) {
	meta := h.CheckpointMeta
	if meta == nil || !meta.IsCheckpoint {
		return nil, errNotCheckpoint
	}
	if meta.Epoch < 0 || meta.Step < 0 {
		return nil, fmt.Errorf("negative epoch %d or step %d", meta.Epoch, meta.Step)
	}
	return &Checkpoint{
		Epoch:     meta.Epoch,
		Step:      meta.Step,
		Loss:      meta.Loss,
		LR:        meta.LR,
		RunID:     meta.RunID,
		Metadata:  meta.TrainingMeta,
		CreatedAt: h.CreatedAt,
	}, nil
}

func corrupt(path string, err error) error {
	return fmt.Errorf("%s: %w: %w", path, serialization.ErrCorrupt, err)
}
