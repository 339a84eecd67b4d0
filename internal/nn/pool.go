package nn

import (
	"fmt"

	"github.com/born-ml/attnet/internal/tensor"
)

// MaxPool2D is a 2D max pooling layer.
//
// Input shape:  [batch, channels, height, width]
// Output shape: [batch, channels, out_height, out_width]
//
// Where:
//
//	out_height = (height - kernelSize) / stride + 1
//	out_width = (width - kernelSize) / stride + 1
//
// With kernelSize = stride = 2 this is exactly floor(height/2) x floor(width/2):
// a trailing odd row or column is dropped.
type MaxPool2D[B tensor.Backend] struct {
	kernelSize int
	stride     int
	backend    B
}

// NewMaxPool2D creates a new 2D max pooling layer.
func NewMaxPool2D[B tensor.Backend](kernelSize, stride int, backend B) *MaxPool2D[B] {
	if kernelSize <= 0 {
		panic(fmt.Sprintf("maxpool2d: invalid kernel size %d", kernelSize))
	}
	if stride <= 0 {
		panic(fmt.Sprintf("maxpool2d: invalid stride %d", stride))
	}
	return &MaxPool2D[B]{kernelSize: kernelSize, stride: stride, backend: backend}
}

// Forward performs the forward pass.
func (m *MaxPool2D[B]) Forward(input *tensor.Tensor[B]) *tensor.Tensor[B] {
	if len(input.Shape()) != 4 {
		panic(fmt.Sprintf("maxpool2d: expected 4D input [N,C,H,W], got %dD", len(input.Shape())))
	}
	return tensor.New(m.backend.MaxPool2D(input.Raw(), m.kernelSize, m.stride), m.backend)
}

// OutputSize computes output spatial dimensions for the given input size.
func (m *MaxPool2D[B]) OutputSize(h, w int) (int, int) {
	return (h-m.kernelSize)/m.stride + 1, (w-m.kernelSize)/m.stride + 1
}

// Parameters returns nil.
func (m *MaxPool2D[B]) Parameters() []*Parameter[B] { return nil }

// StateDict returns an empty map.
func (m *MaxPool2D[B]) StateDict() map[string]*tensor.RawTensor {
	return map[string]*tensor.RawTensor{}
}

// LoadStateDict accepts any state dict.
func (m *MaxPool2D[B]) LoadStateDict(map[string]*tensor.RawTensor) error { return nil }

// GlobalAvgPool2D averages each channel over its spatial positions,
// mapping [batch, channels, height, width] to [batch, channels].
type GlobalAvgPool2D[B tensor.Backend] struct {
	backend B
}

// NewGlobalAvgPool2D creates a global average pooling layer.
func NewGlobalAvgPool2D[B tensor.Backend](backend B) *GlobalAvgPool2D[B] {
	return &GlobalAvgPool2D[B]{backend: backend}
}

// Forward performs the forward pass.
func (g *GlobalAvgPool2D[B]) Forward(input *tensor.Tensor[B]) *tensor.Tensor[B] {
	if len(input.Shape()) != 4 {
		panic(fmt.Sprintf("global_avg_pool2d: expected 4D input [N,C,H,W], got %dD", len(input.Shape())))
	}
	return tensor.New(g.backend.GlobalAvgPool2D(input.Raw()), g.backend)
}

// Parameters returns nil.
func (g *GlobalAvgPool2D[B]) Parameters() []*Parameter[B] { return nil }

// StateDict returns an empty map.
func (g *GlobalAvgPool2D[B]) StateDict() map[string]*tensor.RawTensor {
	return map[string]*tensor.RawTensor{}
}

// LoadStateDict accepts any state dict.
func (g *GlobalAvgPool2D[B]) LoadStateDict(map[string]*tensor.RawTensor) error { return nil }
