package data

import (
	"math/rand"

	"github.com/seehuhn/mt19937"
)

// Independent random streams derived from one seed.
const (
	shuffleStream uint64 = iota + 1
	augmentStream
	splitStream
	sampleStream
	templateStream
)

// newRNG returns a Mersenne Twister generator for (seed, stream, index).
// The same triple always yields the same sequence, independent of which
// goroutine draws from it.
func newRNG(seed int64, stream, index uint64) *rand.Rand {
	//nolint:gosec // G404: shuffling and augmentation are not security-critical
	rng := rand.New(mt19937.New())
	rng.Seed(int64(mix(uint64(seed), stream, index)))
	return rng
}

// mix combines its inputs with the splitmix64 finalizer.
func mix(values ...uint64) uint64 {
	var h uint64 = 0x9e3779b97f4a7c15
	for _, v := range values {
		h ^= v + 0x9e3779b97f4a7c15 + (h << 6) + (h >> 2)
		h ^= h >> 30
		h *= 0xbf58476d1ce4e5b9
		h ^= h >> 27
		h *= 0x94d049bb133111eb
		h ^= h >> 31
	}
	return h
}
