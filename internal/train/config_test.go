package train

import (
	"io/fs"
	"os"
	"path/filepath"
	"testing"

	"github.com/born-ml/attnet/internal/nn"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()
	require.NoError(t, cfg.Validate())
	assert.Equal(t, 3, cfg.Blocks)
	assert.Equal(t, 2, cfg.Branches)
	assert.Equal(t, 180, cfg.Epochs)
	assert.Equal(t, 10, cfg.SaveEvery)
	assert.InDelta(t, 1e-3, cfg.LearningRate, 1e-12)
	assert.InDelta(t, 0.5, cfg.DecayFactor, 1e-12)
	assert.Equal(t, 60, cfg.DecayEvery)
	assert.Equal(t, ReconcileCheckpoint, cfg.Reconcile)

	m := cfg.Model()
	assert.Equal(t, 3, m.Backbone.InChannels)
	assert.Equal(t, 64, m.Backbone.Width)
	assert.Equal(t, 32, m.ImageHeight)
}

func TestConfig_Validate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
		field  string
	}{
		{"no blocks", func(c *Config) { c.Blocks = 0 }, "Blocks"},
		{"no branches", func(c *Config) { c.Branches = 0 }, "Branches"},
		{"no classes", func(c *Config) { c.Classes = 0 }, "Classes"},
		{"image too small", func(c *Config) { c.ImageHeight = 4 }, "InputSize"},
		{"no epochs", func(c *Config) { c.Epochs = 0 }, "Epochs"},
		{"no save interval", func(c *Config) { c.SaveEvery = 0 }, "SaveEvery"},
		{"zero lr", func(c *Config) { c.LearningRate = 0 }, "LearningRate"},
		{"decay above one", func(c *Config) { c.DecayFactor = 1.5 }, "DecayFactor"},
		{"no batch", func(c *Config) { c.BatchSize = 0 }, "BatchSize"},
		{"unknown optimizer", func(c *Config) { c.Optimizer = "rmsprop" }, "Optimizer"},
		{"negative workers", func(c *Config) { c.Workers = -1 }, "Workers"},
		{"no checkpoint path", func(c *Config) { c.CheckpointPath = "" }, "CheckpointPath"},
		{"unknown reconcile", func(c *Config) { c.Reconcile = "latest" }, "Reconcile"},
		{"unknown source", func(c *Config) { c.Data.Source = "imagenet" }, "Data.Source"},
		{"cifar without dir", func(c *Config) { c.Data.Source = SourceCIFAR10 }, "Data.Dir"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.mutate(&cfg)
			err := cfg.Validate()
			require.ErrorIs(t, err, nn.ErrInvalidConfig)
			var ce *ConfigError
			require.ErrorAs(t, err, &ce)
			assert.Equal(t, tt.field, ce.Field)
		})
	}
}

func TestConfig_OptimizerNameIsCaseInsensitive(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Optimizer = "SGD"
	assert.NoError(t, cfg.Validate())
}

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestLoadConfig(t *testing.T) {
	path := writeFile(t, "train.yaml", `
blocks: 2
branches: 4
epochs: 12
learning_rate: 0.01
optimizer: sgd
reconcile: none
data:
  source: synthetic
  noise: 0.1
  augment:
    horizontal_flip: false
    crop_padding: 2
`)
	cfg, err := LoadConfig(path)
	require.NoError(t, err)
	assert.Equal(t, 2, cfg.Blocks)
	assert.Equal(t, 4, cfg.Branches)
	assert.Equal(t, 12, cfg.Epochs)
	assert.InDelta(t, 0.01, cfg.LearningRate, 1e-12)
	assert.Equal(t, "sgd", cfg.Optimizer)
	assert.Equal(t, ReconcileNone, cfg.Reconcile)
	assert.InDelta(t, 0.1, cfg.Data.Noise, 1e-12)
	assert.False(t, cfg.Data.Augment.HorizontalFlip)
	assert.Equal(t, 2, cfg.Data.Augment.CropPadding)

	// Untouched fields keep their defaults.
	def := DefaultConfig()
	assert.Equal(t, def.Width, cfg.Width)
	assert.Equal(t, def.SaveEvery, cfg.SaveEvery)
	assert.Equal(t, def.Data.TrainExamples, cfg.Data.TrainExamples)
}

func TestLoadConfig_Empty(t *testing.T) {
	cfg, err := LoadConfig(writeFile(t, "empty.yaml", ""))
	require.NoError(t, err)
	assert.Equal(t, DefaultConfig(), cfg)
}

func TestLoadConfig_Errors(t *testing.T) {
	t.Run("missing", func(t *testing.T) {
		_, err := LoadConfig(filepath.Join(t.TempDir(), "nope.yaml"))
		assert.ErrorIs(t, err, fs.ErrNotExist)
	})
	t.Run("unknown field", func(t *testing.T) {
		_, err := LoadConfig(writeFile(t, "bad.yaml", "epochz: 3\n"))
		require.Error(t, err)
		assert.Contains(t, err.Error(), "epochz")
	})
	t.Run("invalid value", func(t *testing.T) {
		_, err := LoadConfig(writeFile(t, "bad.yaml", "save_every: 0\n"))
		assert.ErrorIs(t, err, nn.ErrInvalidConfig)
	})
	t.Run("malformed", func(t *testing.T) {
		_, err := LoadConfig(writeFile(t, "bad.yaml", "blocks: [1\n"))
		assert.Error(t, err)
	})
}

func TestState_String(t *testing.T) {
	assert.Equal(t, "new", StateNew.String())
	assert.Equal(t, "fresh", StateFresh.String())
	assert.Equal(t, "resumed", StateResumed.String())
	assert.Equal(t, "running", StateRunning.String())
	assert.Equal(t, "terminated", StateTerminated.String())
	assert.Equal(t, "State(9)", State(9).String())
}
