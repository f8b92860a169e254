// Copyright 2025 Spindle ML Framework. All rights reserved.
// Use of this source code is governed by an Apache 2.0
// license that can be found in the LICENSE file.

package tensor

import (
	"github.com/spindle-ml/spindle/internal/tensor"
)

// Type aliases for public API

// DType is a constraint for tensor data types.
// Supported types: float32, float64, int32, int64, uint8, bool.
type DType = tensor.DType

// DataType represents the underlying data type of a tensor.
type DataType = tensor.DataType

// Data type constants.
const (
	Float32 DataType = tensor.Float32
	Float64 DataType = tensor.Float64
	Int32   DataType = tensor.Int32
	Int64   DataType = tensor.Int64
	Uint8   DataType = tensor.Uint8
	Bool    DataType = tensor.Bool
)

// Device represents the device where tensor data resides.
type Device = tensor.Device

// Device constants.
const (
	CPU  Device = tensor.CPU
	CUDA Device = tensor.CUDA
)

// Shape represents the dimensions of a tensor.
type Shape = tensor.Shape

// Value is the tensor-like family: dense tensors and wrapper subclasses
// both satisfy it.
type Value = tensor.Value

// Zeros creates a tensor filled with zeros.
func Zeros(shape Shape, dtype DataType, device Device) *RawTensor {
	return tensor.Zeros(shape, dtype, device)
}

// Ones creates a tensor filled with ones.
func Ones(shape Shape, dtype DataType, device Device) *RawTensor {
	return tensor.Ones(shape, dtype, device)
}

// FromSlice creates a tensor from a Go slice. The slice is copied.
func FromSlice[T DType](data []T, shape Shape, device Device) (*RawTensor, error) {
	return tensor.FromSlice(data, shape, device)
}

// ZerosLike creates a zero-filled tensor with the same metadata as v.
func ZerosLike(v Value) *RawTensor {
	return tensor.ZerosLike(v)
}

// OnesLike creates a one-filled tensor with the same metadata as v.
func OnesLike(v Value) *RawTensor {
	return tensor.OnesLike(v)
}
