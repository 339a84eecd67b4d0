package tensor

import (
	"encoding/binary"
	"fmt"
	"math"
)

// Device represents the compute device where tensor data resides.
type Device int

// Supported devices.
const (
	CPU Device = iota
)

// String returns a human-readable device name.
func (d Device) String() string {
	switch d {
	case CPU:
		return "CPU"
	default:
		return fmt.Sprintf("Device(%d)", int(d))
	}
}

// RawTensor is the low-level float32 storage used by backends.
//
// A RawTensor is identified by its pointer: the gradient tape and the
// optimizers key gradients by *RawTensor, so views created by Reshape are
// distinct tensors that may share the same backing slice.
type RawTensor struct {
	shape Shape
	data  []float32
}

// NewRaw allocates a zero-filled RawTensor.
func NewRaw(shape Shape) (*RawTensor, error) {
	if err := shape.Validate(); err != nil {
		return nil, err
	}
	return &RawTensor{
		shape: shape.Clone(),
		data:  make([]float32, shape.NumElements()),
	}, nil
}

// MustRaw is NewRaw for shapes known to be valid. It panics otherwise.
func MustRaw(shape Shape) *RawTensor {
	r, err := NewRaw(shape)
	if err != nil {
		panic(fmt.Sprintf("tensor: %v", err))
	}
	return r
}

// RawFromSlice creates a RawTensor holding a copy of data.
func RawFromSlice(data []float32, shape Shape) (*RawTensor, error) {
	if shape.NumElements() != len(data) {
		return nil, fmt.Errorf("shape %v requires %d elements, but got %d", shape, shape.NumElements(), len(data))
	}
	r, err := NewRaw(shape)
	if err != nil {
		return nil, err
	}
	copy(r.data, data)
	return r, nil
}

// Shape returns the tensor's shape.
func (r *RawTensor) Shape() Shape {
	return r.shape
}

// NumElements returns the total number of elements.
func (r *RawTensor) NumElements() int {
	return len(r.data)
}

// ByteSize returns the size of the encoded tensor data in bytes.
func (r *RawTensor) ByteSize() int {
	return 4 * len(r.data)
}

// Data returns the underlying float32 slice.
//
// WARNING: Modifications to the returned slice modify the tensor.
func (r *RawTensor) Data() []float32 {
	return r.data
}

// View returns a tensor with a new shape sharing this tensor's storage.
func (r *RawTensor) View(shape Shape) (*RawTensor, error) {
	if err := shape.Validate(); err != nil {
		return nil, err
	}
	if shape.NumElements() != len(r.data) {
		return nil, fmt.Errorf("cannot view %v as %v: element count %d != %d",
			r.shape, shape, len(r.data), shape.NumElements())
	}
	return &RawTensor{shape: shape.Clone(), data: r.data}, nil
}

// Clone creates a deep copy of the tensor.
func (r *RawTensor) Clone() *RawTensor {
	data := make([]float32, len(r.data))
	copy(data, r.data)
	return &RawTensor{shape: r.shape.Clone(), data: data}
}

// Fill sets every element to v.
func (r *RawTensor) Fill(v float32) {
	for i := range r.data {
		r.data[i] = v
	}
}

// Bytes encodes the tensor data as little-endian IEEE-754 float32 values.
func (r *RawTensor) Bytes() []byte {
	buf := make([]byte, r.ByteSize())
	for i, v := range r.data {
		binary.LittleEndian.PutUint32(buf[4*i:], math.Float32bits(v))
	}
	return buf
}

// RawFromBytes decodes little-endian float32 data produced by Bytes.
func RawFromBytes(buf []byte, shape Shape) (*RawTensor, error) {
	r, err := NewRaw(shape)
	if err != nil {
		return nil, err
	}
	if len(buf) != r.ByteSize() {
		return nil, fmt.Errorf("shape %v requires %d bytes, but got %d", shape, r.ByteSize(), len(buf))
	}
	for i := range r.data {
		r.data[i] = math.Float32frombits(binary.LittleEndian.Uint32(buf[4*i:]))
	}
	return r, nil
}
