package nn

import (
	"math/rand"

	"github.com/born-ml/attnet/internal/tensor"
)

// FeatureBlock is one downsampling stage of the backbone:
//
//	conv 3x3 (stride 1, padding 1) -> ReLU -> BatchNorm2D -> MaxPool 2x2 (stride 2)
//
// It maps [N, in, H, W] to [N, out, floor(H/2), floor(W/2)].
type FeatureBlock[B tensor.Backend] struct {
	*Sequential[B]
	inChannels  int
	outChannels int
}

// NewFeatureBlock creates a feature block mapping in to out channels.
func NewFeatureBlock[B tensor.Backend](in, out int, rng *rand.Rand, backend B) *FeatureBlock[B] {
	return &FeatureBlock[B]{
		Sequential: NewSequential(
			Named[B]("conv", NewConv2D(in, out, 3, 1, 1, rng, backend)),
			Named[B]("relu", NewReLU[B]()),
			Named[B]("bn", NewBatchNorm2D(out, backend)),
			Named[B]("pool", NewMaxPool2D(2, 2, backend)),
		),
		inChannels:  in,
		outChannels: out,
	}
}

// OutputSize returns the spatial size produced for an h x w input.
func (fb *FeatureBlock[B]) OutputSize(h, w int) (int, int) {
	return h / 2, w / 2
}

// InChannels returns the number of input channels.
func (fb *FeatureBlock[B]) InChannels() int { return fb.inChannels }

// OutChannels returns the number of output channels.
func (fb *FeatureBlock[B]) OutChannels() int { return fb.outChannels }

// BatchNorm returns the block's normalization layer.
func (fb *FeatureBlock[B]) BatchNorm() *BatchNorm2D[B] {
	return fb.Module(2).(*BatchNorm2D[B])
}
