package nn

import (
	"fmt"
	"math/rand"

	"github.com/born-ml/attnet/internal/parallel"
	"github.com/born-ml/attnet/internal/tensor"
)

// BackboneConfig describes an AttentionBackbone.
type BackboneConfig struct {
	InChannels int `yaml:"in_channels"` // Channels of the input images
	Width      int `yaml:"width"`       // Channels of every block output and branch
	Blocks     int `yaml:"blocks"`      // Number of downsampling feature blocks (N)
	Branches   int `yaml:"branches"`    // Number of mixed convolution branches (K)
}

// Validate reports the first invalid field as a *ConfigError.
func (c BackboneConfig) Validate() error {
	for _, check := range []error{
		atLeast("InChannels", c.InChannels, 1),
		atLeast("Width", c.Width, 1),
		atLeast("Blocks", c.Blocks, 1),
		atLeast("Branches", c.Branches, 1),
	} {
		if check != nil {
			return check
		}
	}
	// Inputs must be at least 1<<Blocks on each side; the cap keeps that
	// shift inside a 32-bit int.
	if c.Blocks > 30 {
		return &ConfigError{Field: "Blocks", Value: c.Blocks, Reason: "must be <= 30"}
	}
	return nil
}

// recorder is implemented by backends that record operations for autodiff.
type recorder interface {
	IsRecording() bool
}

// AttentionBackbone is a stack of N feature blocks followed by K parallel
// shape-preserving 3x3 convolution branches. The branch outputs are mixed
// with a per-sample attention vector:
//
//	h     = block_{N-1}(... block_0(x))
//	a     = ReLU(Linear(GAP(h)))                  // [B, K], a >= 0
//	mixed = Σ_i a[:, i] * branch_i(h)             // [B, width, H/2^N, W/2^N]
//
// The attention vector is not normalized: each weight scales its branch
// independently, so the mix can be larger than any single branch and an
// all-zero attention row produces an all-zero output for that sample.
type AttentionBackbone[B tensor.Backend] struct {
	cfg       BackboneConfig
	blocks    []*FeatureBlock[B]
	gap       *GlobalAvgPool2D[B]
	attention *Linear[B]
	branches  []*Conv2D[B]
	par       parallel.Config
	backend   B
}

// NewAttentionBackbone validates cfg and builds the backbone, drawing the
// initial weights from rng.
func NewAttentionBackbone[B tensor.Backend](cfg BackboneConfig, rng *rand.Rand, backend B) (*AttentionBackbone[B], error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	bb := &AttentionBackbone[B]{
		cfg:     cfg,
		gap:     NewGlobalAvgPool2D(backend),
		par:     parallel.DefaultConfig(),
		backend: backend,
	}
	in := cfg.InChannels
	for range cfg.Blocks {
		bb.blocks = append(bb.blocks, NewFeatureBlock(in, cfg.Width, rng, backend))
		in = cfg.Width
	}
	bb.attention = NewLinear(cfg.Width, cfg.Branches, rng, backend)
	for range cfg.Branches {
		bb.branches = append(bb.branches, NewConv2D(cfg.Width, cfg.Width, 3, 1, 1, rng, backend))
	}
	return bb, nil
}

// OutputShape returns the per-sample output shape [width, h', w'] for an
// h x w input, with h' = floor(h / 2^N) and w' = floor(w / 2^N).
//
// Resolutions divisible by 2^N are halved exactly by every block. Other
// resolutions are accepted: each block drops a trailing odd row or column.
// An input smaller than 2^N in either dimension would leave an empty map
// and is rejected with a *ConfigError.
func (bb *AttentionBackbone[B]) OutputShape(h, w int) (tensor.Shape, error) {
	minSize := 1 << bb.cfg.Blocks
	if h < minSize || w < minSize {
		return nil, &ConfigError{
			Field:  "InputSize",
			Value:  fmt.Sprintf("%dx%d", h, w),
			Reason: fmt.Sprintf("%d blocks need at least %dx%d", bb.cfg.Blocks, minSize, minSize),
		}
	}
	for _, blk := range bb.blocks {
		h, w = blk.OutputSize(h, w)
	}
	return tensor.Shape{bb.cfg.Width, h, w}, nil
}

// Forward computes the mixed feature map [B, width, H/2^N, W/2^N].
func (bb *AttentionBackbone[B]) Forward(input *tensor.Tensor[B]) *tensor.Tensor[B] {
	mixed, _ := bb.ForwardWithAttention(input)
	return mixed
}

// ForwardWithAttention is Forward that also returns the attention vector
// [B, K] used to mix the branches.
func (bb *AttentionBackbone[B]) ForwardWithAttention(input *tensor.Tensor[B]) (mixed, attention *tensor.Tensor[B]) {
	shape := input.Shape()
	if len(shape) != 4 || shape[1] != bb.cfg.InChannels {
		panic(fmt.Sprintf("attention_backbone: expected [B,%d,H,W] input, got %v", bb.cfg.InChannels, shape))
	}

	h := input
	for _, blk := range bb.blocks {
		h = blk.Forward(h)
	}

	attention = bb.attention.Forward(bb.gap.Forward(h)).ReLU()

	outs := bb.runBranches(h)
	mixed = tensor.New(bb.backend.WeightedSum(attention.Raw(), outs), bb.backend)
	return mixed, attention
}

// runBranches applies every branch to h. Branches run concurrently unless
// the backend is recording a tape, in which case they run in index order so
// the recorded operation order is the same on every step.
func (bb *AttentionBackbone[B]) runBranches(h *tensor.Tensor[B]) []*tensor.RawTensor {
	cfg := bb.par
	if r, ok := any(bb.backend).(recorder); ok && r.IsRecording() {
		cfg = parallel.Sequential()
	}
	outs := make([]*tensor.RawTensor, len(bb.branches))
	parallel.For(len(bb.branches), func(i int) {
		outs[i] = bb.branches[i].Forward(h).Raw()
	}, cfg)
	return outs
}

// SetParallelConfig controls how branches are scheduled when not recording.
func (bb *AttentionBackbone[B]) SetParallelConfig(cfg parallel.Config) {
	bb.par = cfg
}

// Parameters returns the parameters of blocks, attention and branches, in
// that order.
func (bb *AttentionBackbone[B]) Parameters() []*Parameter[B] {
	var params []*Parameter[B]
	for _, blk := range bb.blocks {
		params = append(params, blk.Parameters()...)
	}
	params = append(params, bb.attention.Parameters()...)
	for _, br := range bb.branches {
		params = append(params, br.Parameters()...)
	}
	return params
}

// SetTraining switches the blocks' normalization layers between modes.
func (bb *AttentionBackbone[B]) SetTraining(training bool) {
	for _, blk := range bb.blocks {
		blk.SetTraining(training)
	}
}

// StateDict returns "block<i>.*", "attention.*" and "branch<i>.*" entries.
func (bb *AttentionBackbone[B]) StateDict() map[string]*tensor.RawTensor {
	sd := make(map[string]*tensor.RawTensor)
	for i, blk := range bb.blocks {
		merge(sd, fmt.Sprintf("block%d", i), blk.StateDict())
	}
	merge(sd, "attention", bb.attention.StateDict())
	for i, br := range bb.branches {
		merge(sd, fmt.Sprintf("branch%d", i), br.StateDict())
	}
	return sd
}

// LoadStateDict loads every sub-module.
func (bb *AttentionBackbone[B]) LoadStateDict(stateDict map[string]*tensor.RawTensor) error {
	for i, blk := range bb.blocks {
		if err := loadChild[B](blk, fmt.Sprintf("block%d", i), stateDict); err != nil {
			return err
		}
	}
	if err := loadChild[B](bb.attention, "attention", stateDict); err != nil {
		return err
	}
	for i, br := range bb.branches {
		if err := loadChild[B](br, fmt.Sprintf("branch%d", i), stateDict); err != nil {
			return err
		}
	}
	return nil
}

// Config returns the backbone configuration.
func (bb *AttentionBackbone[B]) Config() BackboneConfig { return bb.cfg }

// Blocks returns the feature blocks in application order.
func (bb *AttentionBackbone[B]) Blocks() []*FeatureBlock[B] { return bb.blocks }

// Attention returns the linear projection producing the attention logits.
func (bb *AttentionBackbone[B]) Attention() *Linear[B] { return bb.attention }

// Branch returns branch i.
func (bb *AttentionBackbone[B]) Branch(i int) *Conv2D[B] { return bb.branches[i] }
