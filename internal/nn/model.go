package nn

import (
	"fmt"
	"math/rand"

	"github.com/born-ml/attnet/internal/tensor"
)

// ModelConfig describes the full classifier.
type ModelConfig struct {
	Backbone    BackboneConfig
	Classes     int
	ImageHeight int
	ImageWidth  int
}

// Validate checks cfg without building a model. It reports the same
// *ConfigError NewModel would.
func (cfg ModelConfig) Validate() error {
	if err := cfg.Backbone.Validate(); err != nil {
		return err
	}
	if err := atLeast("Classes", cfg.Classes, 1); err != nil {
		return err
	}
	minSize := 1 << cfg.Backbone.Blocks
	if cfg.ImageHeight < minSize || cfg.ImageWidth < minSize {
		return &ConfigError{
			Field:  "InputSize",
			Value:  fmt.Sprintf("%dx%d", cfg.ImageHeight, cfg.ImageWidth),
			Reason: fmt.Sprintf("%d blocks need at least %dx%d", cfg.Backbone.Blocks, minSize, minSize),
		}
	}
	return nil
}

// Model composes an AttentionBackbone with a Classifier. It is
// differentiable end to end.
type Model[B tensor.Backend] struct {
	cfg        ModelConfig
	backbone   *AttentionBackbone[B]
	classifier *Classifier[B]
	featShape  tensor.Shape
	training   bool
	backend    B
}

// NewModel validates cfg, builds the model and walks the configured image
// shape through it, so that a model is only returned when every layer
// agrees on channel counts and the images survive all downsampling steps.
func NewModel[B tensor.Backend](cfg ModelConfig, rng *rand.Rand, backend B) (*Model[B], error) {
	backbone, err := NewAttentionBackbone(cfg.Backbone, rng, backend)
	if err != nil {
		return nil, err
	}
	featShape, err := backbone.OutputShape(cfg.ImageHeight, cfg.ImageWidth)
	if err != nil {
		return nil, err
	}
	classifier, err := NewClassifier(featShape[0], cfg.Classes, rng, backend)
	if err != nil {
		return nil, err
	}
	return &Model[B]{
		cfg:        cfg,
		backbone:   backbone,
		classifier: classifier,
		featShape:  featShape,
		training:   true,
		backend:    backend,
	}, nil
}

// Forward maps images [B, C, H, W] to logits [B, classes].
func (m *Model[B]) Forward(input *tensor.Tensor[B]) *tensor.Tensor[B] {
	return m.classifier.Forward(m.backbone.Forward(input))
}

// Loss returns the mean cross-entropy of logits against integer targets as
// a scalar tensor.
func (m *Model[B]) Loss(logits *tensor.Tensor[B], targets []int) *tensor.Tensor[B] {
	return tensor.New(m.backend.CrossEntropy(logits.Raw(), targets), m.backend)
}

// Parameters returns backbone parameters followed by classifier parameters.
func (m *Model[B]) Parameters() []*Parameter[B] {
	return append(m.backbone.Parameters(), m.classifier.Parameters()...)
}

// SetTraining switches normalization layers between batch and running
// statistics.
func (m *Model[B]) SetTraining(training bool) {
	m.training = training
	m.backbone.SetTraining(training)
}

// Training reports the current mode.
func (m *Model[B]) Training() bool { return m.training }

// StateDict returns "backbone.*" and "classifier.*" entries, buffers
// included.
func (m *Model[B]) StateDict() map[string]*tensor.RawTensor {
	sd := withPrefix("backbone", m.backbone.StateDict())
	merge(sd, "classifier", m.classifier.StateDict())
	return sd
}

// LoadStateDict restores the whole model. Unknown keys are rejected so that
// a state dict from a different architecture cannot load partially.
func (m *Model[B]) LoadStateDict(stateDict map[string]*tensor.RawTensor) error {
	own := m.StateDict()
	for name := range stateDict {
		if _, ok := own[name]; !ok {
			return fmt.Errorf("unexpected %s in state dict", name)
		}
	}
	if err := loadChild[B](m.backbone, "backbone", stateDict); err != nil {
		return err
	}
	return loadChild[B](m.classifier, "classifier", stateDict)
}

// Config returns the model configuration.
func (m *Model[B]) Config() ModelConfig { return m.cfg }

// FeatureShape returns the per-sample backbone output shape for the
// configured image size.
func (m *Model[B]) FeatureShape() tensor.Shape { return m.featShape.Clone() }

// Backbone returns the backbone.
func (m *Model[B]) Backbone() *AttentionBackbone[B] { return m.backbone }

// Classifier returns the classification head.
func (m *Model[B]) Classifier() *Classifier[B] { return m.classifier }

// Backend returns the backend the model computes on.
func (m *Model[B]) Backend() B { return m.backend }

// Correct counts the rows of logits [N, C] whose arg-max equals the target.
// Ties resolve to the lowest class index.
func Correct[B tensor.Backend](logits *tensor.Tensor[B], targets []int) int {
	shape := logits.Shape()
	if len(shape) != 2 || shape[0] != len(targets) {
		panic(fmt.Sprintf("correct: logits %v do not match %d targets", shape, len(targets)))
	}
	n, c := shape[0], shape[1]
	data := logits.Data()
	correct := 0
	for i := 0; i < n; i++ {
		row := data[i*c : (i+1)*c]
		best := 0
		for j := 1; j < c; j++ {
			if row[j] > row[best] {
				best = j
			}
		}
		if best == targets[i] {
			correct++
		}
	}
	return correct
}
