package nn

import (
	"testing"

	"github.com/born-ml/attnet/internal/autodiff"
	"github.com/born-ml/attnet/internal/tensor"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func referenceConfig(k int) ModelConfig {
	return ModelConfig{
		Backbone:    BackboneConfig{InChannels: 3, Width: 8, Blocks: 3, Branches: k},
		Classes:     10,
		ImageHeight: 32,
		ImageWidth:  32,
	}
}

func TestModel_EndToEndLogitShape(t *testing.T) {
	b := newBackend()
	m, err := NewModel(referenceConfig(1), NewRNG(1), b)
	require.NoError(t, err)

	logits := m.Forward(randn(tensor.Shape{4, 3, 32, 32}, 2, b))
	assert.Equal(t, tensor.Shape{4, 10}, logits.Shape())
	assert.Equal(t, tensor.Shape{8, 4, 4}, m.FeatureShape())
}

func TestModel_ConfigErrors(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*ModelConfig)
	}{
		{"no classes", func(c *ModelConfig) { c.Classes = 0 }},
		{"no blocks", func(c *ModelConfig) { c.Backbone.Blocks = 0 }},
		{"no branches", func(c *ModelConfig) { c.Backbone.Branches = 0 }},
		{"image too small", func(c *ModelConfig) { c.ImageHeight = 4 }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := referenceConfig(2)
			tt.mutate(&cfg)
			_, err := NewModel(cfg, NewRNG(1), newBackend())
			assert.ErrorIs(t, err, ErrInvalidConfig)
		})
	}
}

func TestClassifier_AnySpatialSize(t *testing.T) {
	b := newBackend()
	c, err := NewClassifier(4, 3, NewRNG(1), b)
	require.NoError(t, err)
	for _, hw := range [][2]int{{1, 1}, {3, 5}, {8, 8}} {
		y := c.Forward(randn(tensor.Shape{2, 4, hw[0], hw[1]}, 1, b))
		assert.Equal(t, tensor.Shape{2, 3}, y.Shape())
	}
	_, err = NewClassifier(4, 0, NewRNG(1), b)
	assert.ErrorIs(t, err, ErrInvalidConfig)
}

func TestModel_StateDictRoundTrip(t *testing.T) {
	b := newBackend()
	src, err := NewModel(referenceConfig(2), NewRNG(1), b)
	require.NoError(t, err)
	dst, err := NewModel(referenceConfig(2), NewRNG(2), b)
	require.NoError(t, err)

	// Move the running statistics away from their initial values.
	x := randn(tensor.Shape{2, 3, 32, 32}, 3, b)
	_ = src.Forward(x)

	require.NoError(t, dst.LoadStateDict(src.StateDict()))
	src.SetTraining(false)
	dst.SetTraining(false)
	assert.Equal(t, src.Forward(x).Data(), dst.Forward(x).Data())

	for name, raw := range src.StateDict() {
		assert.Equal(t, raw.Data(), dst.StateDict()[name].Data(), name)
	}
}

func TestModel_LoadStateDictRejectsMismatch(t *testing.T) {
	b := newBackend()
	m, err := NewModel(referenceConfig(2), NewRNG(1), b)
	require.NoError(t, err)

	wide := referenceConfig(2)
	wide.Backbone.Width = 16
	other, err := NewModel(wide, NewRNG(1), b)
	require.NoError(t, err)
	assert.Error(t, m.LoadStateDict(other.StateDict()))

	more, err := NewModel(referenceConfig(3), NewRNG(1), b)
	require.NoError(t, err)
	assert.Error(t, m.LoadStateDict(more.StateDict()), "extra branch must be rejected")

	partial := m.StateDict()
	delete(partial, "classifier.fc.bias")
	assert.Error(t, m.LoadStateDict(partial))
}

func TestModel_EveryParameterReceivesGradient(t *testing.T) {
	b := newBackend()
	m, err := NewModel(referenceConfig(2), NewRNG(1), b)
	require.NoError(t, err)
	forceAttention(m.Backbone(), 0.5, 1.5)

	b.Tape().StartRecording()
	logits := m.Forward(randn(tensor.Shape{2, 3, 32, 32}, 4, b))
	loss := m.Loss(logits, []int{1, 7})
	grads := autodiff.Backward(loss, b)
	b.Tape().StopRecording()

	params := m.Parameters()
	CollectGrads(params, grads)
	for _, p := range params {
		require.NotNil(t, p.Grad(), p.Name())
		assert.Equal(t, p.Tensor().Shape(), p.Grad().Shape(), p.Name())
	}
}

func TestCorrect(t *testing.T) {
	b := newBackend()
	logits := tensor.MustFromSlice([]float32{
		0.1, 0.9, 0.0,
		2.0, 1.0, 1.0,
		0.5, 0.5, 0.1, // tie resolves to class 0
	}, tensor.Shape{3, 3}, b)
	assert.Equal(t, 2, Correct(logits, []int{1, 2, 0}))
	assert.Equal(t, 3, Correct(logits, []int{1, 0, 0}))
}
