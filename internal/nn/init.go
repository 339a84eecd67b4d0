package nn

import (
	"math"
	"math/rand"

	"github.com/born-ml/attnet/internal/tensor"
	"github.com/seehuhn/mt19937"
)

// NewRNG returns a Mersenne Twister backed generator seeded with seed.
// Every random draw of the model (weight initialization) goes through an
// explicit generator, so two models built from the same seed are identical.
func NewRNG(seed int64) *rand.Rand {
	//nolint:gosec // G404: weight initialization is not security-critical
	rng := rand.New(mt19937.New())
	rng.Seed(seed)
	return rng
}

// Xavier (Glorot) initialization for weights.
//
// Initializes weights with values drawn from a uniform distribution:
// U(-sqrt(6/(fan_in + fan_out)), sqrt(6/(fan_in + fan_out)))
//
// This initialization helps maintain variance of activations across layers.
func Xavier[B tensor.Backend](fanIn, fanOut int, shape tensor.Shape, rng *rand.Rand, backend B) *tensor.Tensor[B] {
	bound := math.Sqrt(6.0 / float64(fanIn+fanOut))
	return tensor.Uniform(shape, bound, rng, backend)
}
