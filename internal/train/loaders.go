package train

import (
	"fmt"

	"github.com/born-ml/attnet/internal/data"
)

// NewLoaders builds the training and validation loaders described by
// cfg.Data. Training batches are shuffled per epoch and augmented;
// validation batches are visited in a fixed order without augmentation.
func NewLoaders(cfg Config) (trainLoader, valLoader *data.Loader, err error) {
	var trainSet, valSet data.Dataset
	switch cfg.Data.Source {
	case SourceCIFAR10:
		if trainSet, err = data.LoadCIFAR10(cfg.Data.Dir, data.CIFAR10TrainFiles); err != nil {
			return nil, nil, err
		}
		if valSet, err = data.LoadCIFAR10(cfg.Data.Dir, data.CIFAR10TestFiles); err != nil {
			return nil, nil, err
		}
	case SourceSynthetic:
		train, val := cfg.Data.TrainExamples, cfg.Data.ValExamples
		var all *data.Synthetic
		all, err = data.NewSynthetic(data.SyntheticConfig{
			Examples:      train + val,
			Channels:      cfg.ImageChannels,
			Height:        cfg.ImageHeight,
			Width:         cfg.ImageWidth,
			Classes:       cfg.Classes,
			ActiveClasses: cfg.Data.ActiveClasses,
			Noise:         cfg.Data.Noise,
			Seed:          cfg.Seed,
		})
		if err != nil {
			return nil, nil, err
		}
		if trainSet, err = data.NewSubset(all, indexRange(0, train)); err != nil {
			return nil, nil, err
		}
		if valSet, err = data.NewSubset(all, indexRange(train, train+val)); err != nil {
			return nil, nil, err
		}
	default:
		return nil, nil, &ConfigError{Field: "Data.Source", Value: cfg.Data.Source, Reason: "must be synthetic or cifar10"}
	}

	trainLoader, err = data.NewLoader(trainSet, data.LoaderConfig{
		BatchSize: cfg.BatchSize,
		Shuffle:   true,
		Seed:      cfg.Seed,
		Workers:   cfg.Workers,
		Prefetch:  cfg.Prefetch,
		Augment:   cfg.Data.Augment,
	})
	if err != nil {
		return nil, nil, fmt.Errorf("training loader: %w", err)
	}
	valLoader, err = data.NewLoader(valSet, data.LoaderConfig{
		BatchSize: cfg.BatchSize,
		Seed:      cfg.Seed,
		Workers:   cfg.Workers,
		Prefetch:  cfg.Prefetch,
	})
	if err != nil {
		return nil, nil, fmt.Errorf("validation loader: %w", err)
	}
	return trainLoader, valLoader, nil
}

func indexRange(from, to int) []int {
	idx := make([]int, 0, to-from)
	for i := from; i < to; i++ {
		idx = append(idx, i)
	}
	return idx
}
