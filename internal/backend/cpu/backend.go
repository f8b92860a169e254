// Package cpu implements the default dense CPU backend for Spindle.
//
// The backend is the implementation an operator call falls back to when no
// interceptor on the mode stack claims it. It covers the small operator
// surface the dispatch substrate needs; it is not a general numerical
// library.
package cpu

import (
	"fmt"

	"github.com/spindle-ml/spindle/internal/parallel"
	"github.com/spindle-ml/spindle/internal/tensor"
)

// Backend implements dense tensor operations on CPU.
type Backend struct {
	device tensor.Device
	par    parallel.Config
}

// New creates a new CPU backend.
func New() *Backend {
	return &Backend{
		device: tensor.CPU,
		par:    parallel.DefaultConfig(),
	}
}

// Name returns the backend name.
func (b *Backend) Name() string {
	return "CPU"
}

// Device returns the compute device.
func (b *Backend) Device() tensor.Device {
	return b.device
}

// number covers the dtypes arithmetic kernels operate on.
type number interface {
	~float32 | ~float64 | ~int32 | ~int64 | ~uint8
}

// binaryKind selects the arithmetic operation for the shared kernels.
type binaryKind int

const (
	kindAdd binaryKind = iota
	kindSub
	kindMul
	kindDiv
)

func (k binaryKind) String() string {
	switch k {
	case kindAdd:
		return "add"
	case kindSub:
		return "sub"
	case kindMul:
		return "mul"
	case kindDiv:
		return "div"
	default:
		return "unknown"
	}
}

func binaryFunc[T number](k binaryKind) func(T, T) T {
	switch k {
	case kindAdd:
		return func(a, b T) T { return a + b }
	case kindSub:
		return func(a, b T) T { return a - b }
	case kindMul:
		return func(a, b T) T { return a * b }
	case kindDiv:
		return func(a, b T) T { return a / b }
	default:
		panic("unknown binary kind")
	}
}

func ewiseBinary[T number](dst, a, b []T, f func(T, T) T, cfg parallel.Config) {
	parallel.For(len(dst), func(i int) {
		dst[i] = f(a[i], b[i])
	}, cfg)
}

// binary applies an element-wise binary op into dst. dst may be a or b for
// inplace variants. Shapes and dtypes must already match.
func (b *Backend) binary(kind binaryKind, dst, x, y *tensor.RawTensor) {
	switch dst.DType() {
	case tensor.Float32:
		ewiseBinary(dst.AsFloat32(), x.AsFloat32(), y.AsFloat32(), binaryFunc[float32](kind), b.par)
	case tensor.Float64:
		ewiseBinary(dst.AsFloat64(), x.AsFloat64(), y.AsFloat64(), binaryFunc[float64](kind), b.par)
	case tensor.Int32:
		ewiseBinary(dst.AsInt32(), x.AsInt32(), y.AsInt32(), binaryFunc[int32](kind), b.par)
	case tensor.Int64:
		ewiseBinary(dst.AsInt64(), x.AsInt64(), y.AsInt64(), binaryFunc[int64](kind), b.par)
	case tensor.Uint8:
		ewiseBinary(dst.AsUint8(), x.AsUint8(), y.AsUint8(), binaryFunc[uint8](kind), b.par)
	default:
		panic(fmt.Sprintf("%s: unsupported dtype %s", kind, dst.DType()))
	}
}

func (b *Backend) checkBinaryDTypes(kind binaryKind, x, y *tensor.RawTensor) {
	if x.DType() != y.DType() {
		panic(fmt.Sprintf("%s: dtype mismatch %s vs %s", kind, x.DType(), y.DType()))
	}
}

func (b *Backend) newResult(kind binaryKind, shape tensor.Shape, x *tensor.RawTensor) *tensor.RawTensor {
	result, err := tensor.NewRaw(shape, x.DType(), b.device)
	if err != nil {
		panic(fmt.Sprintf("%s: failed to create result tensor: %v", kind, err))
	}
	return result
}

// broadcastStrides computes element strides for reading inShape as if it
// had outShape: padded and size-1 dimensions get stride 0 so every output
// coordinate maps back into the smaller operand.
func broadcastStrides(inShape, outShape tensor.Shape) []int {
	strides := make([]int, len(outShape))
	offset := len(outShape) - len(inShape)
	origStrides := inShape.ComputeStrides()

	for i := range outShape {
		inIdx := i - offset
		switch {
		case inIdx < 0:
			strides[i] = 0
		case inShape[inIdx] == 1:
			strides[i] = 0
		default:
			strides[i] = origStrides[inIdx]
		}
	}
	return strides
}

func ewiseBinaryBroadcast[T number](dst, a, b []T, outStrides, aStrides, bStrides []int, f func(T, T) T, cfg parallel.Config) {
	parallel.For(len(dst), func(i int) {
		rem := i
		ai, bi := 0, 0
		for d := range outStrides {
			coord := rem / outStrides[d]
			rem %= outStrides[d]
			ai += coord * aStrides[d]
			bi += coord * bStrides[d]
		}
		dst[i] = f(a[ai], b[bi])
	}, cfg)
}

// binaryBroadcast applies an element-wise binary op into dst, reading x
// and y through broadcast strides against dst's shape.
func (b *Backend) binaryBroadcast(kind binaryKind, dst, x, y *tensor.RawTensor) {
	outStrides := dst.Shape().ComputeStrides()
	xs := broadcastStrides(x.Shape(), dst.Shape())
	ys := broadcastStrides(y.Shape(), dst.Shape())

	switch dst.DType() {
	case tensor.Float32:
		ewiseBinaryBroadcast(dst.AsFloat32(), x.AsFloat32(), y.AsFloat32(), outStrides, xs, ys, binaryFunc[float32](kind), b.par)
	case tensor.Float64:
		ewiseBinaryBroadcast(dst.AsFloat64(), x.AsFloat64(), y.AsFloat64(), outStrides, xs, ys, binaryFunc[float64](kind), b.par)
	case tensor.Int32:
		ewiseBinaryBroadcast(dst.AsInt32(), x.AsInt32(), y.AsInt32(), outStrides, xs, ys, binaryFunc[int32](kind), b.par)
	case tensor.Int64:
		ewiseBinaryBroadcast(dst.AsInt64(), x.AsInt64(), y.AsInt64(), outStrides, xs, ys, binaryFunc[int64](kind), b.par)
	case tensor.Uint8:
		ewiseBinaryBroadcast(dst.AsUint8(), x.AsUint8(), y.AsUint8(), outStrides, xs, ys, binaryFunc[uint8](kind), b.par)
	default:
		panic(fmt.Sprintf("%s: unsupported dtype %s", kind, dst.DType()))
	}
}
