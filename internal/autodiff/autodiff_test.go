package autodiff

import (
	"testing"

	"github.com/born-ml/attnet/internal/backend/cpu"
	"github.com/born-ml/attnet/internal/tensor"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAutodiffBackend_Name(t *testing.T) {
	b := New(cpu.New())
	assert.Contains(t, b.Name(), "Autodiff(CPU/")
	assert.Equal(t, tensor.CPU, b.Device())
	assert.NotNil(t, b.Inner())
}

func TestTape_RecordsOnlyWhileRecording(t *testing.T) {
	b := New(cpu.New())
	x := tensor.Ones(tensor.Shape{2}, b)

	_ = x.Add(x)
	assert.Equal(t, 0, b.Tape().NumOps())
	assert.False(t, b.IsRecording())

	b.Tape().StartRecording()
	_ = x.Add(x)
	_ = x.Mul(x)
	assert.Equal(t, 2, b.Tape().NumOps())

	b.Tape().Clear()
	assert.Equal(t, 0, b.Tape().NumOps())
	assert.True(t, b.Tape().IsRecording())
}

func TestBackward_Square(t *testing.T) {
	b := New(cpu.New())
	b.Tape().StartRecording()

	x := tensor.MustFromSlice([]float32{2, -3}, tensor.Shape{2}, b)
	y := x.Mul(x)

	grads := Backward(y, b)
	require.Contains(t, grads, x.Raw())
	assert.Equal(t, []float32{4, -6}, grads[x.Raw()].Data())

	// Backward itself must not have recorded anything new.
	assert.Equal(t, 1, b.Tape().NumOps())
	assert.True(t, b.Tape().IsRecording())
}

func TestBackward_UnreachedTensorHasNoGradient(t *testing.T) {
	b := New(cpu.New())
	b.Tape().StartRecording()

	x := tensor.Ones(tensor.Shape{2}, b)
	unused := tensor.Ones(tensor.Shape{2}, b)
	_ = unused.Mul(unused)
	y := x.MulScalar(3)

	grads := Backward(y, b)
	assert.Equal(t, []float32{3, 3}, grads[x.Raw()].Data())
	_, ok := grads[unused.Raw()]
	assert.False(t, ok, "unreached tensor must not get a gradient")
}

func TestBackward_PanicsWithoutOps(t *testing.T) {
	b := New(cpu.New())
	x := tensor.Ones(tensor.Shape{1}, b)
	assert.Panics(t, func() { Backward(x, b) })
}
