package tensor

import "fmt"

// Zeros creates a tensor filled with zeros.
func Zeros(shape Shape, dtype DataType, device Device) *RawTensor {
	raw, err := NewRaw(shape, dtype, device)
	if err != nil {
		panic(err) // Shape validation should prevent this
	}
	// Data is already zero-initialized by make()
	return raw
}

// Ones creates a tensor filled with ones.
func Ones(shape Shape, dtype DataType, device Device) *RawTensor {
	raw := Zeros(shape, dtype, device)
	fillOne(raw)
	return raw
}

// FromSlice creates a tensor from a Go slice.
// The slice is copied into the tensor's memory.
func FromSlice[T DType](data []T, shape Shape, device Device) (*RawTensor, error) {
	if shape.NumElements() != len(data) {
		return nil, fmt.Errorf("shape %v requires %d elements, but got %d", shape, shape.NumElements(), len(data))
	}

	var dummy T
	dtype := inferDataType(dummy)

	raw, err := NewRaw(shape, dtype, device)
	if err != nil {
		return nil, err
	}

	switch src := any(data).(type) {
	case []float32:
		copy(raw.AsFloat32(), src)
	case []float64:
		copy(raw.AsFloat64(), src)
	case []int32:
		copy(raw.AsInt32(), src)
	case []int64:
		copy(raw.AsInt64(), src)
	case []uint8:
		copy(raw.AsUint8(), src)
	case []bool:
		copy(raw.AsBool(), src)
	default:
		panic("unsupported type")
	}

	return raw, nil
}

// ZerosLike creates a zero-filled tensor with the same metadata as v.
func ZerosLike(v Value) *RawTensor {
	return Zeros(v.Shape(), v.DType(), v.Device())
}

// OnesLike creates a one-filled tensor with the same metadata as v.
func OnesLike(v Value) *RawTensor {
	return Ones(v.Shape(), v.DType(), v.Device())
}

// EmptyLike creates an uninitialized tensor with the same metadata as v.
// The contents are zero bytes; only the metadata is meaningful.
func EmptyLike(v Value) *RawTensor {
	return Zeros(v.Shape(), v.DType(), v.Device())
}

// fillOne writes the type-specific one value into every element.
func fillOne(raw *RawTensor) {
	switch raw.DType() {
	case Float32:
		data := raw.AsFloat32()
		for i := range data {
			data[i] = 1
		}
	case Float64:
		data := raw.AsFloat64()
		for i := range data {
			data[i] = 1
		}
	case Int32:
		data := raw.AsInt32()
		for i := range data {
			data[i] = 1
		}
	case Int64:
		data := raw.AsInt64()
		for i := range data {
			data[i] = 1
		}
	case Uint8:
		data := raw.AsUint8()
		for i := range data {
			data[i] = 1
		}
	case Bool:
		data := raw.AsBool()
		for i := range data {
			data[i] = true
		}
	default:
		panic(fmt.Sprintf("ones: unsupported dtype %s", raw.DType()))
	}
}
