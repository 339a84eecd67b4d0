package tensor

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestShape_NumElements(t *testing.T) {
	assert.Equal(t, 1, Shape{}.NumElements())
	assert.Equal(t, 24, Shape{2, 3, 4}.NumElements())
}

func TestShape_Validate(t *testing.T) {
	require.NoError(t, Shape{1, 2}.Validate())
	assert.Error(t, Shape{1, 0}.Validate())
	assert.Error(t, Shape{-1}.Validate())
}

func TestShape_ComputeStrides(t *testing.T) {
	assert.Equal(t, []int{12, 4, 1}, Shape{2, 3, 4}.ComputeStrides())
	assert.Empty(t, Shape{}.ComputeStrides())
}

func TestBroadcastShapes(t *testing.T) {
	tests := []struct {
		name    string
		a, b    Shape
		want    Shape
		wantErr bool
	}{
		{"same", Shape{2, 3}, Shape{2, 3}, Shape{2, 3}, false},
		{"channel bias", Shape{1, 6, 1, 1}, Shape{4, 6, 8, 8}, Shape{4, 6, 8, 8}, false},
		{"row vector", Shape{10}, Shape{4, 10}, Shape{4, 10}, false},
		{"scalar", Shape{}, Shape{3, 2}, Shape{3, 2}, false},
		{"incompatible", Shape{3, 2}, Shape{4, 2}, nil, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := BroadcastShapes(tt.a, tt.b)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestShape_BroadcastStrides(t *testing.T) {
	assert.Equal(t, []int{0, 1, 0, 0}, Shape{1, 6, 1, 1}.BroadcastStrides(Shape{4, 6, 8, 8}))
	assert.Equal(t, []int{0, 1}, Shape{10}.BroadcastStrides(Shape{4, 10}))
}

func TestRawTensor_ViewSharesStorage(t *testing.T) {
	r, err := RawFromSlice([]float32{1, 2, 3, 4, 5, 6}, Shape{2, 3})
	require.NoError(t, err)

	v, err := r.View(Shape{3, 2})
	require.NoError(t, err)
	v.Data()[0] = 42

	assert.Equal(t, float32(42), r.Data()[0])
	assert.NotSame(t, r, v)

	_, err = r.View(Shape{4})
	assert.Error(t, err)
}

func TestRawTensor_CloneIsDeep(t *testing.T) {
	r := MustRaw(Shape{2})
	c := r.Clone()
	c.Data()[0] = 1
	assert.Zero(t, r.Data()[0])
}

func TestRawTensor_Bytes(t *testing.T) {
	r, err := RawFromSlice([]float32{1.5, -2, 0, 3.25}, Shape{2, 2})
	require.NoError(t, err)

	buf := r.Bytes()
	require.Len(t, buf, 16)

	back, err := RawFromBytes(buf, Shape{2, 2})
	require.NoError(t, err)
	assert.Equal(t, r.Data(), back.Data())

	_, err = RawFromBytes(buf[:8], Shape{2, 2})
	assert.Error(t, err)
}

func TestRawFromSlice_LengthMismatch(t *testing.T) {
	_, err := RawFromSlice([]float32{1, 2, 3}, Shape{2, 2})
	assert.Error(t, err)
}
