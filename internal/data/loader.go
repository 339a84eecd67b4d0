package data

import (
	"context"
	"fmt"
	"iter"
	"runtime"

	"github.com/born-ml/attnet/internal/parallel"
	"github.com/born-ml/attnet/internal/tensor"
)

// Batch is one mini-batch of images and labels.
type Batch struct {
	Index  int               // Position of the batch within its epoch
	Images *tensor.RawTensor // [N, C, H, W]
	Labels []int             // N class indices
}

// Size returns the number of examples in the batch.
func (b *Batch) Size() int {
	return len(b.Labels)
}

// LoaderConfig configures a Loader.
type LoaderConfig struct {
	BatchSize int          // Examples per batch; the last batch may be smaller
	Shuffle   bool         // Visit examples in a per-epoch permutation
	Seed      int64        // Seed for shuffling and augmentation
	Workers   int          // Goroutines assembling batches (default: NumCPU)
	Prefetch  int          // Batches prepared ahead of the consumer (default: 2*Workers)
	Augment   Augmentation // Random transforms applied to each example
}

// Loader produces batches from a Dataset.
//
// Loader is stateless between epochs: Batches(ctx, e) yields the same
// sequence every time it is called with the same epoch.
type Loader struct {
	ds  Dataset
	cfg LoaderConfig
}

// NewLoader creates a loader over ds.
func NewLoader(ds Dataset, cfg LoaderConfig) (*Loader, error) {
	if cfg.BatchSize < 1 {
		return nil, fmt.Errorf("data: batch size must be >= 1, got %d", cfg.BatchSize)
	}
	if ds.Len() == 0 {
		return nil, fmt.Errorf("data: empty dataset")
	}
	if cfg.Workers <= 0 {
		cfg.Workers = runtime.NumCPU()
	}
	if cfg.Prefetch <= 0 {
		cfg.Prefetch = 2 * cfg.Workers
	}
	if cfg.Augment.CropPadding < 0 {
		return nil, fmt.Errorf("data: negative crop padding %d", cfg.Augment.CropPadding)
	}
	return &Loader{ds: ds, cfg: cfg}, nil
}

// Dataset returns the underlying dataset.
func (l *Loader) Dataset() Dataset { return l.ds }

// NumExamples returns the number of examples visited per epoch.
func (l *Loader) NumExamples() int { return l.ds.Len() }

// Len returns the number of batches per epoch.
func (l *Loader) Len() int {
	return (l.ds.Len() + l.cfg.BatchSize - 1) / l.cfg.BatchSize
}

// Order returns the example indices visited in epoch, in order.
func (l *Loader) Order(epoch int) []int {
	if l.cfg.Shuffle {
		return newRNG(l.cfg.Seed, shuffleStream, uint64(epoch)).Perm(l.ds.Len())
	}
	order := make([]int, l.ds.Len())
	for i := range order {
		order[i] = i
	}
	return order
}

// Batches returns the batches of epoch as a lazy sequence.
//
// Batches are assembled concurrently by up to Workers goroutines with at
// most Prefetch batches buffered, and yielded in order. The first dataset
// error is yielded unchanged and ends the sequence. Cancelling ctx ends the
// sequence with ctx.Err().
func (l *Loader) Batches(ctx context.Context, epoch int) iter.Seq2[*Batch, error] {
	order := l.Order(epoch)
	return parallel.Ordered(ctx, l.Len(), l.cfg.Workers, l.cfg.Prefetch, func(i int) (*Batch, error) {
		start := i * l.cfg.BatchSize
		end := min(start+l.cfg.BatchSize, len(order))
		return l.assemble(epoch, i, order[start:end])
	})
}

func (l *Loader) assemble(epoch, index int, indices []int) (*Batch, error) {
	c, h, w := l.ds.Shape()
	size := c * h * w
	images := tensor.MustRaw(tensor.Shape{len(indices), c, h, w})
	labels := make([]int, len(indices))
	data := images.Data()

	var scratch []float32
	augment := l.cfg.Augment.Enabled()
	if augment {
		scratch = make([]float32, size)
	}
	for j, idx := range indices {
		img := data[j*size : (j+1)*size]
		label, err := l.ds.Get(idx, img)
		if err != nil {
			return nil, err
		}
		labels[j] = label
		if augment {
			rng := newRNG(l.cfg.Seed, augmentStream, mix(uint64(epoch), uint64(idx)))
			l.cfg.Augment.apply(img, scratch, c, h, w, rng)
		}
	}
	return &Batch{Index: index, Images: images, Labels: labels}, nil
}
