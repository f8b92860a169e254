package cpu

import (
	"fmt"

	"github.com/spindle-ml/spindle/internal/tensor"
)

// Add performs element-wise addition with NumPy-style broadcasting.
func (b *Backend) Add(x, y *tensor.RawTensor) *tensor.RawTensor {
	return b.binaryOut(kindAdd, x, y)
}

// Sub performs element-wise subtraction with broadcasting.
func (b *Backend) Sub(x, y *tensor.RawTensor) *tensor.RawTensor {
	return b.binaryOut(kindSub, x, y)
}

// Mul performs element-wise multiplication with broadcasting.
func (b *Backend) Mul(x, y *tensor.RawTensor) *tensor.RawTensor {
	return b.binaryOut(kindMul, x, y)
}

// Div performs element-wise division with broadcasting.
func (b *Backend) Div(x, y *tensor.RawTensor) *tensor.RawTensor {
	return b.binaryOut(kindDiv, x, y)
}

func (b *Backend) binaryOut(kind binaryKind, x, y *tensor.RawTensor) *tensor.RawTensor {
	b.checkBinaryDTypes(kind, x, y)
	outShape, needsBroadcast, err := tensor.BroadcastShapes(x.Shape(), y.Shape())
	if err != nil {
		panic(fmt.Sprintf("%s: %v", kind, err))
	}

	// Plain ops always allocate; storage sharing is declared per operator
	// in the schema, never introduced by a kernel.
	result := b.newResult(kind, outShape, x)
	if needsBroadcast {
		b.binaryBroadcast(kind, result, x, y)
	} else {
		b.binary(kind, result, x, y)
	}
	return result
}

// AddInplace adds y into x and returns x, the mutated input.
func (b *Backend) AddInplace(x, y *tensor.RawTensor) *tensor.RawTensor {
	return b.binaryInplace(kindAdd, x, y)
}

// SubInplace subtracts y from x in place and returns x.
func (b *Backend) SubInplace(x, y *tensor.RawTensor) *tensor.RawTensor {
	return b.binaryInplace(kindSub, x, y)
}

// MulInplace multiplies x by y in place and returns x.
func (b *Backend) MulInplace(x, y *tensor.RawTensor) *tensor.RawTensor {
	return b.binaryInplace(kindMul, x, y)
}

// DivInplace divides x by y in place and returns x.
func (b *Backend) DivInplace(x, y *tensor.RawTensor) *tensor.RawTensor {
	return b.binaryInplace(kindDiv, x, y)
}

func (b *Backend) binaryInplace(kind binaryKind, x, y *tensor.RawTensor) *tensor.RawTensor {
	b.checkBinaryDTypes(kind, x, y)
	outShape, needsBroadcast, err := tensor.BroadcastShapes(x.Shape(), y.Shape())
	if err != nil {
		panic(fmt.Sprintf("%s_: %v", kind, err))
	}
	// y may broadcast into x, but an in-place op can never grow its
	// receiver.
	if !outShape.Equal(x.Shape()) {
		panic(fmt.Sprintf("%s_: cannot broadcast %v into receiver shape %v", kind, y.Shape(), x.Shape()))
	}
	if needsBroadcast {
		b.binaryBroadcast(kind, x, x, y)
	} else {
		b.binary(kind, x, x, y)
	}
	return x
}

// Fill writes value into every element of x and returns x.
// The value is converted to x's dtype.
func (b *Backend) Fill(x *tensor.RawTensor, value float64) *tensor.RawTensor {
	switch x.DType() {
	case tensor.Float32:
		data := x.AsFloat32()
		for i := range data {
			data[i] = float32(value)
		}
	case tensor.Float64:
		data := x.AsFloat64()
		for i := range data {
			data[i] = value
		}
	case tensor.Int32:
		data := x.AsInt32()
		for i := range data {
			data[i] = int32(value)
		}
	case tensor.Int64:
		data := x.AsInt64()
		for i := range data {
			data[i] = int64(value)
		}
	case tensor.Uint8:
		data := x.AsUint8()
		for i := range data {
			data[i] = uint8(value)
		}
	case tensor.Bool:
		data := x.AsBool()
		for i := range data {
			data[i] = value != 0
		}
	default:
		panic(fmt.Sprintf("fill: unsupported dtype %s", x.DType()))
	}
	return x
}

// Zero zeroes every element of x and returns x.
func (b *Backend) Zero(x *tensor.RawTensor) *tensor.RawTensor {
	return b.Fill(x, 0)
}

// Copy copies src's elements into dst and returns dst.
// Shapes and dtypes must match.
func (b *Backend) Copy(dst, src *tensor.RawTensor) *tensor.RawTensor {
	if !dst.Shape().Equal(src.Shape()) {
		panic(fmt.Sprintf("copy: shape mismatch %v vs %v", dst.Shape(), src.Shape()))
	}
	if dst.DType() != src.DType() {
		panic(fmt.Sprintf("copy: dtype mismatch %s vs %s", dst.DType(), src.DType()))
	}
	copy(dst.Data()[:dst.ByteSize()], src.Data()[:src.ByteSize()])
	return dst
}

// CloneData creates a deep copy of x (fresh storage, same contents).
func (b *Backend) CloneData(x *tensor.RawTensor) *tensor.RawTensor {
	result, err := tensor.NewRaw(x.Shape(), x.DType(), b.device)
	if err != nil {
		panic(fmt.Sprintf("clone: %v", err))
	}
	return b.Copy(result, x)
}
