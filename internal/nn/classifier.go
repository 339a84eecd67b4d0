package nn

import (
	"math/rand"

	"github.com/born-ml/attnet/internal/tensor"
)

// Classifier reduces a feature map [B, C, H, W] to class logits
// [B, classes] by global average pooling followed by a linear projection.
// Any H, W >= 1 is accepted.
type Classifier[B tensor.Backend] struct {
	gap     *GlobalAvgPool2D[B]
	fc      *Linear[B]
	classes int
}

// NewClassifier creates a classifier for features with the given number of
// channels. classes < 1 or channels < 1 yields a *ConfigError.
func NewClassifier[B tensor.Backend](channels, classes int, rng *rand.Rand, backend B) (*Classifier[B], error) {
	if err := atLeast("Channels", channels, 1); err != nil {
		return nil, err
	}
	if err := atLeast("Classes", classes, 1); err != nil {
		return nil, err
	}
	return &Classifier[B]{
		gap:     NewGlobalAvgPool2D(backend),
		fc:      NewLinear(channels, classes, rng, backend),
		classes: classes,
	}, nil
}

// Forward returns the class logits.
func (c *Classifier[B]) Forward(features *tensor.Tensor[B]) *tensor.Tensor[B] {
	return c.fc.Forward(c.gap.Forward(features))
}

// Parameters returns the projection parameters.
func (c *Classifier[B]) Parameters() []*Parameter[B] {
	return c.fc.Parameters()
}

// StateDict returns the "fc.*" entries.
func (c *Classifier[B]) StateDict() map[string]*tensor.RawTensor {
	return withPrefix("fc", c.fc.StateDict())
}

// LoadStateDict loads the projection.
func (c *Classifier[B]) LoadStateDict(stateDict map[string]*tensor.RawTensor) error {
	return loadChild[B](c.fc, "fc", stateDict)
}

// Classes returns the number of classes.
func (c *Classifier[B]) Classes() int { return c.classes }
