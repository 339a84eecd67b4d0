package tensor

import (
	"fmt"
	"math/rand"
)

// Zeros creates a tensor filled with zeros.
func Zeros[B Backend](shape Shape, b B) *Tensor[B] {
	return New(MustRaw(shape), b)
}

// Ones creates a tensor filled with ones.
func Ones[B Backend](shape Shape, b B) *Tensor[B] {
	return Full(shape, 1, b)
}

// Full creates a tensor filled with a specific value.
func Full[B Backend](shape Shape, value float32, b B) *Tensor[B] {
	raw := MustRaw(shape)
	raw.Fill(value)
	return New(raw, b)
}

// FromSlice creates a tensor from a Go slice.
// The slice is copied into the tensor's memory.
func FromSlice[B Backend](data []float32, shape Shape, b B) (*Tensor[B], error) {
	raw, err := RawFromSlice(data, shape)
	if err != nil {
		return nil, err
	}
	return New(raw, b), nil
}

// MustFromSlice is FromSlice for inputs known to be consistent. It panics otherwise.
func MustFromSlice[B Backend](data []float32, shape Shape, b B) *Tensor[B] {
	t, err := FromSlice(data, shape, b)
	if err != nil {
		panic(fmt.Sprintf("tensor: %v", err))
	}
	return t
}

// Randn creates a tensor with values drawn from N(0, 1) using rng.
func Randn[B Backend](shape Shape, rng *rand.Rand, b B) *Tensor[B] {
	raw := MustRaw(shape)
	data := raw.Data()
	for i := range data {
		data[i] = float32(rng.NormFloat64())
	}
	return New(raw, b)
}

// Uniform creates a tensor with values drawn from U(-bound, bound) using rng.
func Uniform[B Backend](shape Shape, bound float64, rng *rand.Rand, b B) *Tensor[B] {
	raw := MustRaw(shape)
	data := raw.Data()
	for i := range data {
		data[i] = float32((rng.Float64()*2.0 - 1.0) * bound)
	}
	return New(raw, b)
}
