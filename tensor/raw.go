// Copyright 2025 Spindle ML Framework. All rights reserved.
// Use of this source code is governed by an Apache 2.0
// license that can be found in the LICENSE file.

package tensor

import (
	"github.com/spindle-ml/spindle/internal/tensor"
)

// RawTensor is the dense tensor representation.
//
// RawTensor provides:
//   - Shape and type information via Shape(), DType(), Device()
//   - Type-safe data access via AsFloat32(), AsInt64(), etc.
//   - Copy-on-Write semantics via Clone()
//   - Storage identity and interception via Storage() and SwapStorage()
//
// Example:
//
//	raw, _ := tensor.NewRaw(tensor.Shape{2, 3}, tensor.Float32, tensor.CPU)
//	data := raw.AsFloat32()       // Type-safe access
//	view, _ := raw.View(Shape{6}) // Shares the buffer
type RawTensor = tensor.RawTensor

// Storage is a handle on a tensor's underlying buffer. Two tensors alias
// exactly when their storages compare equal with SameAs.
type Storage = tensor.Storage

// NewRaw creates an uninitialized dense tensor.
func NewRaw(shape Shape, dtype DataType, device Device) (*RawTensor, error) {
	return tensor.NewRaw(shape, dtype, device)
}
