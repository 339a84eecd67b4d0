package data

import (
	"context"
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func synthetic(t *testing.T, n int) *Synthetic {
	t.Helper()
	ds, err := NewSynthetic(SyntheticConfig{
		Examples: n, Channels: 2, Height: 4, Width: 4, Classes: 3, Noise: 0.1, Seed: 11,
	})
	require.NoError(t, err)
	return ds
}

func TestSynthetic_Deterministic(t *testing.T) {
	a, b := synthetic(t, 10), synthetic(t, 10)
	x, y := make([]float32, 32), make([]float32, 32)
	for i := 0; i < 10; i++ {
		la, err := a.Get(i, x)
		require.NoError(t, err)
		lb, err := b.Get(i, y)
		require.NoError(t, err)
		assert.Equal(t, la, lb)
		assert.Equal(t, x, y)
		assert.Equal(t, i%3, la)
	}
	_, err := a.Get(10, x)
	assert.ErrorIs(t, err, ErrIndexOutOfRange)
}

func TestSynthetic_SingleActiveClass(t *testing.T) {
	ds, err := NewSynthetic(SyntheticConfig{Examples: 5, Channels: 1, Height: 2, Width: 2, Classes: 10, ActiveClasses: 1})
	require.NoError(t, err)
	assert.Equal(t, 10, ds.Classes())
	first := make([]float32, 4)
	_, err = ds.Get(0, first)
	require.NoError(t, err)
	for i := 0; i < 5; i++ {
		img := make([]float32, 4)
		label, err := ds.Get(i, img)
		require.NoError(t, err)
		assert.Equal(t, 0, label)
		assert.Equal(t, first, img, "noise-free examples of one class are identical")
	}

	_, err = NewSynthetic(SyntheticConfig{Examples: 5, Channels: 1, Height: 2, Width: 2, Classes: 2, ActiveClasses: 3})
	assert.Error(t, err)
}

func TestSplit(t *testing.T) {
	ds := synthetic(t, 20)
	train, val, err := Split(ds, 0.25, 3)
	require.NoError(t, err)
	assert.Equal(t, 15, train.Len())
	assert.Equal(t, 5, val.Len())

	seen := map[int]bool{}
	for _, s := range []*Subset{train, val} {
		for _, idx := range s.indices {
			assert.False(t, seen[idx], "index %d in both splits", idx)
			seen[idx] = true
		}
	}
	assert.Len(t, seen, 20)

	again, _, err := Split(ds, 0.25, 3)
	require.NoError(t, err)
	assert.Equal(t, train.indices, again.indices)

	_, _, err = Split(ds, 1, 3)
	assert.Error(t, err)
}

func writeCIFAR(t *testing.T, dir, name string, labels ...byte) {
	t.Helper()
	var buf []byte
	for i, label := range labels {
		rec := make([]byte, cifarRecordSize)
		rec[0] = label
		for j := 1; j < len(rec); j++ {
			rec[j] = byte(i * 10)
		}
		buf = append(buf, rec...)
	}
	require.NoError(t, os.WriteFile(filepath.Join(dir, name), buf, 0o600))
}

func TestCIFAR10(t *testing.T) {
	dir := t.TempDir()
	writeCIFAR(t, dir, "a.bin", 3, 9)
	writeCIFAR(t, dir, "b.bin", 0)

	ds, err := LoadCIFAR10(dir, []string{"a.bin", "b.bin"})
	require.NoError(t, err)
	assert.Equal(t, 3, ds.Len())
	assert.Equal(t, 10, ds.Classes())
	c, h, w := ds.Shape()
	assert.Equal(t, [3]int{3, 32, 32}, [3]int{c, h, w})

	img := make([]float32, cifarPixels)
	label, err := ds.Get(1, img)
	require.NoError(t, err)
	assert.Equal(t, 9, label)
	assert.InDelta(t, (10.0/255-0.4914)/0.2470, img[0], 1e-5)
	assert.InDelta(t, (10.0/255-0.4465)/0.2616, img[cifarPixels-1], 1e-5)

	label, err = ds.Get(2, img)
	require.NoError(t, err)
	assert.Equal(t, 0, label)
}

func TestCIFAR10_Errors(t *testing.T) {
	dir := t.TempDir()
	_, err := LoadCIFAR10(dir, CIFAR10TestFiles)
	assert.True(t, errors.Is(err, fs.ErrNotExist))

	require.NoError(t, os.WriteFile(filepath.Join(dir, "short.bin"), make([]byte, 100), 0o600))
	_, err = LoadCIFAR10(dir, []string{"short.bin"})
	assert.Error(t, err)

	writeCIFAR(t, dir, "label.bin", 12)
	_, err = LoadCIFAR10(dir, []string{"label.bin"})
	assert.Error(t, err)
}

func TestAugmentation_FlipAndShift(t *testing.T) {
	img := []float32{
		1, 2, 3,
		4, 5, 6,
	}
	flip(img, 1, 2, 3)
	assert.Equal(t, []float32{3, 2, 1, 6, 5, 4}, img)

	img = []float32{
		1, 2, 3,
		4, 5, 6,
		7, 8, 9,
	}
	scratch := make([]float32, 9)
	shift(img, scratch, 1, 3, 3, 1, -1)
	assert.Equal(t, []float32{
		0, 4, 5,
		0, 7, 8,
		0, 0, 0,
	}, img)
	assert.False(t, Augmentation{}.Enabled())
}

func collect(t *testing.T, l *Loader, epoch int) ([][]int, [][]float32) {
	t.Helper()
	var labels [][]int
	var images [][]float32
	for b, err := range l.Batches(context.Background(), epoch) {
		require.NoError(t, err)
		assert.Equal(t, len(labels), b.Index)
		labels = append(labels, b.Labels)
		images = append(images, append([]float32(nil), b.Images.Data()...))
	}
	return labels, images
}

func TestLoader_BatchShapes(t *testing.T) {
	l, err := NewLoader(synthetic(t, 10), LoaderConfig{BatchSize: 4, Workers: 3})
	require.NoError(t, err)
	assert.Equal(t, 3, l.Len())
	assert.Equal(t, 10, l.NumExamples())

	var sizes []int
	for b, err := range l.Batches(context.Background(), 0) {
		require.NoError(t, err)
		sizes = append(sizes, b.Size())
		assert.Equal(t, []int{b.Size(), 2, 4, 4}, []int(b.Images.Shape()))
	}
	assert.Equal(t, []int{4, 4, 2}, sizes)
}

func TestLoader_ValidationOrderFixed(t *testing.T) {
	l, err := NewLoader(synthetic(t, 7), LoaderConfig{BatchSize: 3})
	require.NoError(t, err)
	a, _ := collect(t, l, 0)
	b, _ := collect(t, l, 5)
	assert.Equal(t, a, b)
	assert.Equal(t, []int{0, 1, 2, 3, 4, 5, 6}, l.Order(3))
}

func TestLoader_ShufflePerEpoch(t *testing.T) {
	l, err := NewLoader(synthetic(t, 64), LoaderConfig{BatchSize: 8, Shuffle: true, Seed: 1})
	require.NoError(t, err)

	assert.Equal(t, l.Order(2), l.Order(2))
	assert.NotEqual(t, l.Order(2), l.Order(3))
	assert.ElementsMatch(t, l.Order(0), l.Order(1))

	// Restartable: the same epoch yields the same batches again.
	first, imgs := collect(t, l, 4)
	second, imgs2 := collect(t, l, 4)
	assert.Equal(t, first, second)
	assert.Equal(t, imgs, imgs2)
}

func TestLoader_WorkerCountDoesNotChangeBatches(t *testing.T) {
	aug := Augmentation{HorizontalFlip: true, CropPadding: 2}
	one, err := NewLoader(synthetic(t, 30), LoaderConfig{BatchSize: 4, Shuffle: true, Seed: 9, Workers: 1, Augment: aug})
	require.NoError(t, err)
	many, err := NewLoader(synthetic(t, 30), LoaderConfig{BatchSize: 4, Shuffle: true, Seed: 9, Workers: 8, Prefetch: 3, Augment: aug})
	require.NoError(t, err)

	l1, i1 := collect(t, one, 2)
	l2, i2 := collect(t, many, 2)
	assert.Equal(t, l1, l2)
	assert.Equal(t, i1, i2)
}

type failingDataset struct {
	*Synthetic
	failAt int
	err    error
	calls  atomic.Int64
}

func (f *failingDataset) Get(idx int, dst []float32) (int, error) {
	f.calls.Add(1)
	if idx == f.failAt {
		return 0, f.err
	}
	return f.Synthetic.Get(idx, dst)
}

func TestLoader_ErrorPropagatedUnchanged(t *testing.T) {
	sentinel := errors.New("disk on fire")
	ds := &failingDataset{Synthetic: synthetic(t, 20), failAt: 9, err: sentinel}
	l, err := NewLoader(ds, LoaderConfig{BatchSize: 4, Workers: 2})
	require.NoError(t, err)

	var got error
	batches := 0
	for _, err := range l.Batches(context.Background(), 0) {
		if err != nil {
			got = err
			break
		}
		batches++
	}
	assert.Equal(t, 2, batches)
	assert.Same(t, sentinel, got)
}

func TestLoader_Cancelled(t *testing.T) {
	l, err := NewLoader(synthetic(t, 20), LoaderConfig{BatchSize: 2})
	require.NoError(t, err)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	var last error
	for _, err := range l.Batches(ctx, 0) {
		last = err
		if err != nil {
			break
		}
	}
	assert.ErrorIs(t, last, context.Canceled)
}

func TestNewLoader_Invalid(t *testing.T) {
	_, err := NewLoader(synthetic(t, 5), LoaderConfig{BatchSize: 0})
	assert.Error(t, err)
	_, err = NewLoader(synthetic(t, 5), LoaderConfig{BatchSize: 1, Augment: Augmentation{CropPadding: -1}})
	assert.Error(t, err)
}
