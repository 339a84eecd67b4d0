// Copyright 2025 Born ML Framework. All rights reserved.
// Use of this source code is governed by an Apache 2.0
// license that can be found in the LICENSE file.

// Package tensor provides the float32 tensors attnet models compute with.
//
// # Overview
//
// A Tensor binds a RawTensor (shape plus float32 storage) to a Backend that
// implements every kernel the models need. Backends are interchangeable:
// the CPU backend computes directly, and the autodiff backend decorates any
// backend to record operations for gradient computation.
//
// # Basic Usage
//
//	import (
//	    "github.com/born-ml/attnet/backend/cpu"
//	    "github.com/born-ml/attnet/tensor"
//	)
//
//	func main() {
//	    backend := cpu.New()
//
//	    x := tensor.Zeros(tensor.Shape{2, 3}, backend)
//	    y := tensor.Ones(tensor.Shape{2, 3}, backend)
//	    z := x.Add(y)
//	    w := z.MatMul(y.Transpose()) // [2, 2]
//	}
//
// # Shape Errors
//
// Kernels panic on shape mismatches. Models validate their configuration at
// construction time so that a well-formed model never reaches that state.
package tensor
