// Package data provides the labeled image datasets and the batch loader
// feeding a training session.
//
// A Loader turns a Dataset into a lazy, restartable sequence of batches.
// Training loaders visit the examples in a permutation derived from
// (seed, epoch); validation loaders always use index order. Batches are
// produced by a bounded worker pool but always yielded in order.
package data

import (
	"errors"
	"fmt"
)

// Dataset is an indexable collection of labeled images in CHW layout.
//
// Get must be safe for concurrent use: the loader calls it from several
// workers at once.
type Dataset interface {
	// Len returns the number of examples.
	Len() int

	// Shape returns the per-example image shape.
	Shape() (channels, height, width int)

	// Classes returns the number of label classes.
	Classes() int

	// Get writes example idx into dst (channels*height*width values) and
	// returns its label.
	Get(idx int, dst []float32) (label int, err error)
}

// ErrIndexOutOfRange is returned by Get for an invalid index.
var ErrIndexOutOfRange = errors.New("data: index out of range")

func checkIndex(idx, n int) error {
	if idx < 0 || idx >= n {
		return fmt.Errorf("%w: %d (len %d)", ErrIndexOutOfRange, idx, n)
	}
	return nil
}

func imageSize(ds Dataset) int {
	c, h, w := ds.Shape()
	return c * h * w
}

// Subset exposes a selection of another dataset's examples.
type Subset struct {
	base    Dataset
	indices []int
}

// NewSubset creates a view of base restricted to indices, in that order.
func NewSubset(base Dataset, indices []int) (*Subset, error) {
	for _, idx := range indices {
		if err := checkIndex(idx, base.Len()); err != nil {
			return nil, err
		}
	}
	return &Subset{base: base, indices: append([]int(nil), indices...)}, nil
}

// Len returns the number of selected examples.
func (s *Subset) Len() int { return len(s.indices) }

// Shape returns the base image shape.
func (s *Subset) Shape() (int, int, int) { return s.base.Shape() }

// Classes returns the base class count.
func (s *Subset) Classes() int { return s.base.Classes() }

// Get returns the selected example idx.
func (s *Subset) Get(idx int, dst []float32) (int, error) {
	if err := checkIndex(idx, len(s.indices)); err != nil {
		return 0, err
	}
	return s.base.Get(s.indices[idx], dst)
}

// Split holds out valFraction of ds as a validation set. The examples are
// assigned by a permutation seeded with seed, so a given (ds, fraction,
// seed) always yields the same split.
func Split(ds Dataset, valFraction float64, seed int64) (train, val *Subset, err error) {
	if valFraction <= 0 || valFraction >= 1 {
		return nil, nil, fmt.Errorf("data: validation fraction must be in (0, 1), got %v", valFraction)
	}
	n := ds.Len()
	nVal := int(float64(n) * valFraction)
	if nVal == 0 || nVal == n {
		return nil, nil, fmt.Errorf("data: cannot split %d examples with fraction %v", n, valFraction)
	}
	perm := newRNG(seed, splitStream, 0).Perm(n)
	if train, err = NewSubset(ds, perm[nVal:]); err != nil {
		return nil, nil, err
	}
	if val, err = NewSubset(ds, perm[:nVal]); err != nil {
		return nil, nil, err
	}
	return train, val, nil
}
