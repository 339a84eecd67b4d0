// Package train implements the resumable training session: the epoch loop,
// optimizer stepping, learning rate decay, and checkpoint and history
// persistence.
package train

import (
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/born-ml/attnet/internal/data"
	"github.com/born-ml/attnet/internal/nn"
	"github.com/born-ml/attnet/internal/optim"
	"gopkg.in/yaml.v3"
)

// ConfigError reports an invalid session configuration value. It matches
// nn.ErrInvalidConfig.
type ConfigError = nn.ConfigError

// Reconcile policies applied when the restored history length differs from
// the restored checkpoint epoch.
const (
	// ReconcileCheckpoint trusts the checkpoint: a longer history is
	// truncated, a shorter one is padded with NaN entries.
	ReconcileCheckpoint = "checkpoint"
	// ReconcileNone keeps both restores independent and only logs the skew.
	ReconcileNone = "none"
)

// Dataset sources.
const (
	SourceSynthetic = "synthetic"
	SourceCIFAR10   = "cifar10"
)

// DataConfig selects and shapes the training and validation datasets.
type DataConfig struct {
	Source        string            `yaml:"source"`         // "synthetic" or "cifar10"
	Dir           string            `yaml:"dir"`            // CIFAR-10 binary batch directory
	TrainExamples int               `yaml:"train_examples"` // Synthetic training examples
	ValExamples   int               `yaml:"val_examples"`   // Synthetic validation examples
	ActiveClasses int               `yaml:"active_classes"` // Synthetic labels in use (0 = all)
	Noise         float64           `yaml:"noise"`          // Synthetic per-example noise
	Augment       data.Augmentation `yaml:"augment"`        // Training-split transforms
}

// Config holds everything a training session needs.
type Config struct {
	// Architecture.
	Blocks        int `yaml:"blocks"`
	Branches      int `yaml:"branches"`
	Width         int `yaml:"width"`
	Classes       int `yaml:"classes"`
	ImageChannels int `yaml:"image_channels"`
	ImageHeight   int `yaml:"image_height"`
	ImageWidth    int `yaml:"image_width"`

	// Optimization.
	Epochs       int     `yaml:"epochs"`
	LearningRate float64 `yaml:"learning_rate"`
	DecayFactor  float64 `yaml:"decay_factor"`
	DecayEvery   int     `yaml:"decay_every"`
	BatchSize    int     `yaml:"batch_size"`
	Optimizer    string  `yaml:"optimizer"`
	Seed         int64   `yaml:"seed"`

	// Execution.
	Workers  int    `yaml:"workers"`  // Data loader goroutines (0 = NumCPU)
	Prefetch int    `yaml:"prefetch"` // Batches prepared ahead (0 = 2*Workers)
	Backend  string `yaml:"backend"`  // BLAS implementation: "auto", "gonum", "netlib"

	// Persistence.
	SaveEvery      int    `yaml:"save_every"`
	CheckpointPath string `yaml:"checkpoint_path"`
	HistoryPath    string `yaml:"history_path"`
	Reconcile      string `yaml:"reconcile"`

	Data DataConfig `yaml:"data"`
}

// DefaultConfig returns the reference configuration: three blocks, two
// branches of width 64, CIFAR-sized inputs, 180 epochs of Adam at 1e-3
// halved every 60 epochs, checkpointed every 10.
func DefaultConfig() Config {
	return Config{
		Blocks:         3,
		Branches:       2,
		Width:          64,
		Classes:        10,
		ImageChannels:  3,
		ImageHeight:    32,
		ImageWidth:     32,
		Epochs:         180,
		LearningRate:   1e-3,
		DecayFactor:    0.5,
		DecayEvery:     60,
		BatchSize:      64,
		Optimizer:      optim.NameAdam,
		Seed:           1,
		Backend:        "auto",
		SaveEvery:      10,
		CheckpointPath: "checkpoint.born",
		HistoryPath:    "history.bhis",
		Reconcile:      ReconcileCheckpoint,
		Data: DataConfig{
			Source:        SourceSynthetic,
			TrainExamples: 2048,
			ValExamples:   512,
			Noise:         0.5,
			Augment:       data.Augmentation{HorizontalFlip: true, CropPadding: 4},
		},
	}
}

// Model returns the model architecture described by c.
func (c Config) Model() nn.ModelConfig {
	return nn.ModelConfig{
		Backbone: nn.BackboneConfig{
			InChannels: c.ImageChannels,
			Width:      c.Width,
			Blocks:     c.Blocks,
			Branches:   c.Branches,
		},
		Classes:     c.Classes,
		ImageHeight: c.ImageHeight,
		ImageWidth:  c.ImageWidth,
	}
}

// Validate checks c. The returned error is a *ConfigError.
func (c Config) Validate() error {
	if err := c.Model().Validate(); err != nil {
		return err
	}
	checks := []struct {
		field string
		value int
		min   int
	}{
		{"Epochs", c.Epochs, 1},
		{"DecayEvery", c.DecayEvery, 1},
		{"BatchSize", c.BatchSize, 1},
		{"SaveEvery", c.SaveEvery, 1},
		{"Workers", c.Workers, 0},
		{"Prefetch", c.Prefetch, 0},
	}
	for _, ch := range checks {
		if ch.value < ch.min {
			return &ConfigError{Field: ch.field, Value: ch.value, Reason: fmt.Sprintf("must be >= %d", ch.min)}
		}
	}
	if !(c.LearningRate > 0) {
		return &ConfigError{Field: "LearningRate", Value: c.LearningRate, Reason: "must be > 0"}
	}
	if !(c.DecayFactor > 0 && c.DecayFactor <= 1) {
		return &ConfigError{Field: "DecayFactor", Value: c.DecayFactor, Reason: "must be in (0, 1]"}
	}
	switch strings.ToLower(c.Optimizer) {
	case optim.NameAdam, optim.NameSGD:
	default:
		return &ConfigError{Field: "Optimizer", Value: c.Optimizer, Reason: "must be adam or sgd"}
	}
	if c.CheckpointPath == "" {
		return &ConfigError{Field: "CheckpointPath", Value: c.CheckpointPath, Reason: "must not be empty"}
	}
	if c.HistoryPath == "" {
		return &ConfigError{Field: "HistoryPath", Value: c.HistoryPath, Reason: "must not be empty"}
	}
	switch c.Reconcile {
	case ReconcileCheckpoint, ReconcileNone:
	default:
		return &ConfigError{Field: "Reconcile", Value: c.Reconcile, Reason: "must be checkpoint or none"}
	}
	switch c.Data.Source {
	case SourceSynthetic:
		if c.Data.TrainExamples < 1 || c.Data.ValExamples < 1 {
			return &ConfigError{Field: "Data.TrainExamples", Value: c.Data.TrainExamples,
				Reason: "synthetic train and validation example counts must be >= 1"}
		}
	case SourceCIFAR10:
		if c.Data.Dir == "" {
			return &ConfigError{Field: "Data.Dir", Value: c.Data.Dir, Reason: "required for cifar10"}
		}
	default:
		return &ConfigError{Field: "Data.Source", Value: c.Data.Source, Reason: "must be synthetic or cifar10"}
	}
	return nil
}

// LoadConfig reads a YAML configuration from path on top of DefaultConfig
// and validates it. Unknown fields are rejected.
func LoadConfig(path string) (Config, error) {
	cfg := DefaultConfig()
	f, err := os.Open(path)
	if err != nil {
		return cfg, fmt.Errorf("failed to open config: %w", err)
	}
	defer f.Close()

	dec := yaml.NewDecoder(f)
	dec.KnownFields(true)
	if err := dec.Decode(&cfg); err != nil && !errors.Is(err, io.EOF) {
		return cfg, fmt.Errorf("%s: failed to parse config: %w", path, err)
	}
	if err := cfg.Validate(); err != nil {
		return cfg, fmt.Errorf("%s: %w", path, err)
	}
	return cfg, nil
}
