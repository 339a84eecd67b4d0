package data

import (
	"fmt"
	"os"
	"path/filepath"
)

// CIFAR-10 binary format: every record is one label byte followed by
// 3072 pixel bytes, 1024 per channel (R, G, B), each a 32x32 row-major
// plane.
const (
	cifarSide       = 32
	cifarChannels   = 3
	cifarClasses    = 10
	cifarPixels     = cifarChannels * cifarSide * cifarSide
	cifarRecordSize = 1 + cifarPixels
)

// CIFAR-10 training files and test file inside the dataset directory.
var (
	CIFAR10TrainFiles = []string{
		"data_batch_1.bin", "data_batch_2.bin", "data_batch_3.bin",
		"data_batch_4.bin", "data_batch_5.bin",
	}
	CIFAR10TestFiles = []string{"test_batch.bin"}
)

// Per-channel statistics of the CIFAR-10 training set.
var (
	cifarMean = [cifarChannels]float32{0.4914, 0.4822, 0.4465}
	cifarStd  = [cifarChannels]float32{0.2470, 0.2435, 0.2616}
)

// CIFAR10 is the CIFAR-10 dataset held in memory as raw bytes. Get
// scales pixels to [0, 1] and normalizes each channel with the training
// set mean and standard deviation.
type CIFAR10 struct {
	records []byte
	n       int
}

// LoadCIFAR10 reads the given batch files from dir. A missing file yields
// an error matching fs.ErrNotExist.
func LoadCIFAR10(dir string, files []string) (*CIFAR10, error) {
	ds := &CIFAR10{}
	for _, name := range files {
		path := filepath.Join(dir, name)
		//nolint:gosec // G304: the dataset directory is chosen by the operator
		buf, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read CIFAR-10 batch: %w", err)
		}
		if len(buf)%cifarRecordSize != 0 {
			return nil, fmt.Errorf("%s: size %d is not a multiple of the %d-byte record", path, len(buf), cifarRecordSize)
		}
		for off := 0; off < len(buf); off += cifarRecordSize {
			if label := buf[off]; label >= cifarClasses {
				return nil, fmt.Errorf("%s: record %d has label %d", path, off/cifarRecordSize, label)
			}
		}
		ds.records = append(ds.records, buf...)
	}
	ds.n = len(ds.records) / cifarRecordSize
	if ds.n == 0 {
		return nil, fmt.Errorf("data: no CIFAR-10 records in %s", dir)
	}
	return ds, nil
}

// Len returns the number of images.
func (c *CIFAR10) Len() int { return c.n }

// Shape returns (3, 32, 32).
func (c *CIFAR10) Shape() (int, int, int) { return cifarChannels, cifarSide, cifarSide }

// Classes returns 10.
func (c *CIFAR10) Classes() int { return cifarClasses }

// Get decodes image idx into dst.
func (c *CIFAR10) Get(idx int, dst []float32) (int, error) {
	if err := checkIndex(idx, c.n); err != nil {
		return 0, err
	}
	if len(dst) != cifarPixels {
		return 0, fmt.Errorf("data: destination holds %d values, image has %d", len(dst), cifarPixels)
	}
	rec := c.records[idx*cifarRecordSize : (idx+1)*cifarRecordSize]
	plane := cifarSide * cifarSide
	for ch := 0; ch < cifarChannels; ch++ {
		mean, std := cifarMean[ch], cifarStd[ch]
		src := rec[1+ch*plane : 1+(ch+1)*plane]
		out := dst[ch*plane : (ch+1)*plane]
		for i, px := range src {
			out[i] = (float32(px)/255 - mean) / std
		}
	}
	return int(rec[0]), nil
}
