package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/born-ml/attnet/internal/history"
	"github.com/born-ml/attnet/internal/report"
	"github.com/born-ml/attnet/internal/train"
)

type trainFlags struct {
	config    string
	csv       string
	plot      bool
	logFormat string
	verbose   bool

	// Overrides, applied only when set on the command line.
	epochs     int
	saveEvery  int
	lr         float64
	batch      int
	blocks     int
	branches   int
	width      int
	optimizer  string
	seed       int64
	workers    int
	backend    string
	checkpoint string
	history    string
	reconcile  string
	cifar      string
}

func parseTrainFlags(args []string, stderr io.Writer) (*trainFlags, *flag.FlagSet, error) {
	f := &trainFlags{}
	def := train.DefaultConfig()
	fs := flag.NewFlagSet("train", flag.ContinueOnError)
	fs.SetOutput(stderr)

	fs.StringVar(&f.config, "config", "", "YAML configuration file (defaults apply when empty)")
	fs.StringVar(&f.csv, "csv", "", "Write the final history as CSV to this file")
	fs.BoolVar(&f.plot, "plot", true, "Print loss and accuracy sparklines when training ends")
	fs.StringVar(&f.logFormat, "log-format", "text", "Log format: text or json")
	fs.BoolVar(&f.verbose, "v", false, "Verbose (debug) logging")

	fs.IntVar(&f.epochs, "epochs", def.Epochs, "Total number of training epochs")
	fs.IntVar(&f.saveEvery, "save-every", def.SaveEvery, "Save checkpoint and history every N epochs")
	fs.Float64Var(&f.lr, "lr", def.LearningRate, "Base learning rate")
	fs.IntVar(&f.batch, "batch", def.BatchSize, "Batch size")
	fs.IntVar(&f.blocks, "blocks", def.Blocks, "Number of downsampling feature blocks")
	fs.IntVar(&f.branches, "branches", def.Branches, "Number of attention-mixed branches")
	fs.IntVar(&f.width, "width", def.Width, "Channels of every block and branch")
	fs.StringVar(&f.optimizer, "optimizer", def.Optimizer, "Optimizer: adam or sgd")
	fs.Int64Var(&f.seed, "seed", def.Seed, "Seed for initialization, shuffling and augmentation")
	fs.IntVar(&f.workers, "workers", def.Workers, "Data loader goroutines (0 = NumCPU)")
	fs.StringVar(&f.backend, "backend", def.Backend, "BLAS implementation: auto, gonum or netlib")
	fs.StringVar(&f.checkpoint, "checkpoint", def.CheckpointPath, "Checkpoint file")
	fs.StringVar(&f.history, "history", def.HistoryPath, "History file")
	fs.StringVar(&f.reconcile, "reconcile", def.Reconcile, "History/checkpoint reconcile policy: checkpoint or none")
	fs.StringVar(&f.cifar, "cifar10", "", "Train on the CIFAR-10 binary batches in this directory")

	if err := fs.Parse(args); err != nil {
		return nil, nil, err
	}
	if fs.NArg() > 0 {
		return nil, nil, fmt.Errorf("%w: unexpected arguments %v", errUsage, fs.Args())
	}
	return f, fs, nil
}

// configure loads the configuration file, if any, and applies the flags
// that were set explicitly.
func (f *trainFlags) configure(fs *flag.FlagSet) (train.Config, error) {
	cfg := train.DefaultConfig()
	if f.config != "" {
		var err error
		if cfg, err = train.LoadConfig(f.config); err != nil {
			return cfg, err
		}
	}
	fs.Visit(func(fl *flag.Flag) {
		switch fl.Name {
		case "epochs":
			cfg.Epochs = f.epochs
		case "save-every":
			cfg.SaveEvery = f.saveEvery
		case "lr":
			cfg.LearningRate = f.lr
		case "batch":
			cfg.BatchSize = f.batch
		case "blocks":
			cfg.Blocks = f.blocks
		case "branches":
			cfg.Branches = f.branches
		case "width":
			cfg.Width = f.width
		case "optimizer":
			cfg.Optimizer = f.optimizer
		case "seed":
			cfg.Seed = f.seed
		case "workers":
			cfg.Workers = f.workers
		case "backend":
			cfg.Backend = f.backend
		case "checkpoint":
			cfg.CheckpointPath = f.checkpoint
		case "history":
			cfg.HistoryPath = f.history
		case "reconcile":
			cfg.Reconcile = f.reconcile
		case "cifar10":
			cfg.Data.Source = train.SourceCIFAR10
			cfg.Data.Dir = f.cifar
			cfg.ImageChannels, cfg.ImageHeight, cfg.ImageWidth, cfg.Classes = 3, 32, 32, 10
		}
	})
	return cfg, cfg.Validate()
}

func runTrain(args []string, stdout, stderr io.Writer) error {
	f, fs, err := parseTrainFlags(args, stderr)
	if err != nil {
		return err
	}
	logger, err := newLogger(stderr, f.logFormat, f.verbose)
	if err != nil {
		return err
	}
	cfg, err := f.configure(fs)
	if err != nil {
		return err
	}

	trainLoader, valLoader, err := train.NewLoaders(cfg)
	if err != nil {
		return fmt.Errorf("failed to load data: %w", err)
	}
	logger.Info("data loaded",
		"source", cfg.Data.Source,
		"train", trainLoader.NumExamples(),
		"val", valLoader.NumExamples(),
		"batches", trainLoader.Len())

	consumers := []history.Consumer{report.NewSummary(logger)}
	if f.csv != "" {
		consumers = append(consumers, report.NewCSV(f.csv))
	}
	if f.plot {
		consumers = append(consumers, report.NewPlot(stdout, 0))
	}

	session, err := train.NewSession(cfg, trainLoader, valLoader,
		train.WithLogger(logger),
		train.WithConsumers(consumers...))
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	err = session.Run(ctx)
	if errors.Is(err, context.Canceled) && !errors.Is(err, train.ErrSaveFailed) {
		logger.Info("training stopped; run the same command to resume",
			"epoch", session.Epoch(), "checkpoint", cfg.CheckpointPath)
		return nil
	}
	return err
}
