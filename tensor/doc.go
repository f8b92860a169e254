// Copyright 2025 Spindle ML Framework. All rights reserved.
// Use of this source code is governed by an Apache 2.0
// license that can be found in the LICENSE file.

// Package tensor provides the public tensor types of the Spindle dispatch
// substrate.
//
// # Overview
//
// Tensors are the values flowing through Spindle's operator dispatch:
//   - RawTensor: dense, reference-counted tensor data
//   - Value: the tensor-like family, including wrapper subclasses
//   - Storage: a handle on the underlying buffer, compared by identity
//   - Shape, DataType, Device: core type definitions
//
// # Basic Usage
//
//	import "github.com/spindle-ml/spindle/tensor"
//
//	func main() {
//	    x := tensor.Zeros(tensor.Shape{2, 3}, tensor.Float32, tensor.CPU)
//	    y, _ := tensor.FromSlice([]float32{1, 2, 3}, tensor.Shape{3}, tensor.CPU)
//	    _ = x
//	    _ = y
//	}
//
// Operator calls on tensors go through the dispatch package, which routes
// them to interception modes, wrapper subclasses or the dense backend.
package tensor
