// Package fake provides a metadata-only execution mode: operators produce
// outputs with correct shape, dtype and device, but no kernel ever runs.
//
// A fake mode occupies the fake-execution slot of a dispatch context.
// While it is active, operator calls resolve through shape inference
// alone, which makes it cheap to validate whole programs (shape
// mismatches, bad split sizes, unknown operators) before paying for real
// compute.
package fake

import (
	"fmt"
	"reflect"

	"github.com/spindle-ml/spindle/internal/dispatch"
	"github.com/spindle-ml/spindle/internal/schema"
	"github.com/spindle-ml/spindle/internal/tensor"
)

// Mode infers operator outputs from input metadata. Placeholder outputs
// are zero-filled dense tensors; their contents are meaningless.
type Mode struct {
	calls map[string]int
}

// New creates a fake execution mode.
func New() *Mode {
	return &Mode{calls: make(map[string]int)}
}

// Calls returns how many times op was dispatched through this mode.
func (m *Mode) Calls(op string) int {
	return m.calls[op]
}

// With runs body with m occupying the fake-execution slot of ctx.
func With(ctx *dispatch.Context, m *Mode, body func() error) error {
	return ctx.WithKeyedMode(dispatch.KeyFake, m, body)
}

// Dispatch infers the output metadata for one operator call.
func (m *Mode) Dispatch(ctx *dispatch.Context, op *schema.Schema, types []reflect.Type, args []any, kwargs dispatch.Kwargs) ([]tensor.Value, error) {
	m.calls[op.Name]++

	self, err := argValue(args, 0)
	if err != nil {
		return nil, fmt.Errorf("fake: %s: %w", op.Name, err)
	}

	switch op.Name {
	case "add", "sub", "mul", "div":
		other, err := argValue(args, 1)
		if err != nil {
			return nil, fmt.Errorf("fake: %s: %w", op.Name, err)
		}
		shape, _, err := tensor.BroadcastShapes(self.Shape(), other.Shape())
		if err != nil {
			return nil, fmt.Errorf("fake: %s: %w", op.Name, err)
		}
		return placeholder(shape, self), nil

	case "add_", "sub_", "mul_", "div_":
		other, err := argValue(args, 1)
		if err != nil {
			return nil, fmt.Errorf("fake: %s: %w", op.Name, err)
		}
		shape, _, err := tensor.BroadcastShapes(self.Shape(), other.Shape())
		if err != nil {
			return nil, fmt.Errorf("fake: %s: %w", op.Name, err)
		}
		if !shape.Equal(self.Shape()) {
			return nil, fmt.Errorf("fake: %s: cannot broadcast %v into receiver shape %v",
				op.Name, other.Shape(), self.Shape())
		}
		// Mutations return their receiver; the data is not touched.
		return []tensor.Value{self}, nil

	case "copy_":
		src, err := argValue(args, 1)
		if err != nil {
			return nil, fmt.Errorf("fake: copy_: %w", err)
		}
		if !src.Shape().Equal(self.Shape()) {
			return nil, fmt.Errorf("fake: copy_: shape mismatch %v vs %v", self.Shape(), src.Shape())
		}
		return []tensor.Value{self}, nil

	case "fill_", "zero_":
		return []tensor.Value{self}, nil

	case "view", "reshape":
		shape, err := argShape(args, 1)
		if err != nil {
			return nil, fmt.Errorf("fake: %s: %w", op.Name, err)
		}
		if shape.NumElements() != self.Shape().NumElements() {
			return nil, fmt.Errorf("fake: %s: shape %v incompatible with %d elements",
				op.Name, shape, self.Shape().NumElements())
		}
		return placeholder(shape, self), nil

	case "transpose":
		dim0, err0 := argInt(args, 1)
		dim1, err1 := argInt(args, 2)
		if err0 != nil || err1 != nil {
			return nil, fmt.Errorf("fake: transpose: bad dims")
		}
		shape := self.Shape().Clone()
		if dim0, err = normalizeDim("transpose", dim0, len(shape)); err != nil {
			return nil, err
		}
		if dim1, err = normalizeDim("transpose", dim1, len(shape)); err != nil {
			return nil, err
		}
		shape[dim0], shape[dim1] = shape[dim1], shape[dim0]
		return placeholder(shape, self), nil

	case "clone", "detach", "zeros_like", "ones_like", "empty_like":
		return placeholder(self.Shape().Clone(), self), nil

	case "chunk", "split", "tensor_split":
		n, err := argInt(args, 1)
		if err != nil {
			return nil, fmt.Errorf("fake: %s: %w", op.Name, err)
		}
		dim, err := argInt(args, 2)
		if err != nil {
			return nil, fmt.Errorf("fake: %s: %w", op.Name, err)
		}
		sizes, err := splitSizes(op.Name, self.Shape(), n, dim)
		if err != nil {
			return nil, err
		}
		return placeholders(self, dim, sizes), nil

	case "split_with_sizes":
		sizes, err := argInts(args, 1)
		if err != nil {
			return nil, fmt.Errorf("fake: split_with_sizes: %w", err)
		}
		dim, err := argInt(args, 2)
		if err != nil {
			return nil, fmt.Errorf("fake: split_with_sizes: %w", err)
		}
		if dim, err = normalizeDim("split_with_sizes", dim, len(self.Shape())); err != nil {
			return nil, err
		}
		total := 0
		for _, s := range sizes {
			total += s
		}
		if total != self.Shape()[dim] {
			return nil, fmt.Errorf("fake: split_with_sizes: sizes %v do not cover dimension %d of %v",
				sizes, dim, self.Shape())
		}
		return placeholders(self, dim, sizes), nil

	case "hsplit", "vsplit", "dsplit":
		n, err := argInt(args, 1)
		if err != nil {
			return nil, fmt.Errorf("fake: %s: %w", op.Name, err)
		}
		dim := map[string]int{"hsplit": 1, "vsplit": 0, "dsplit": 2}[op.Name]
		sizes, err := splitSizes(op.Name, self.Shape(), n, dim)
		if err != nil {
			return nil, err
		}
		return placeholders(self, dim, sizes), nil

	case "unbind":
		dim, err := argInt(args, 1)
		if err != nil {
			return nil, fmt.Errorf("fake: unbind: %w", err)
		}
		shape := self.Shape()
		if dim, err = normalizeDim("unbind", dim, len(shape)); err != nil {
			return nil, err
		}
		outShape := make(tensor.Shape, 0, len(shape)-1)
		outShape = append(outShape, shape[:dim]...)
		outShape = append(outShape, shape[dim+1:]...)
		outs := make([]tensor.Value, shape[dim])
		for i := range outs {
			outs[i] = tensor.Zeros(outShape.Clone(), self.DType(), self.Device())
		}
		return outs, nil
	}

	return nil, fmt.Errorf("fake: no shape rule for operator %q", op.Name)
}

// normalizeDim resolves negative dims and bounds-checks the result, with
// the same rule the dense backend applies.
func normalizeDim(op string, dim, ndim int) (int, error) {
	if dim < 0 {
		dim += ndim
	}
	if dim < 0 || dim >= ndim {
		return 0, fmt.Errorf("fake: %s: dim out of range for %d dimensions", op, ndim)
	}
	return dim, nil
}

// splitSizes computes per-piece sizes for the chunk-family operators.
func splitSizes(op string, shape tensor.Shape, n, dim int) ([]int, error) {
	if n <= 0 {
		return nil, fmt.Errorf("fake: %s: sections must be positive, got %d", op, n)
	}
	dim, err := normalizeDim(op, dim, len(shape))
	if err != nil {
		return nil, err
	}
	dimSize := shape[dim]

	switch op {
	case "split":
		var sizes []int
		for remaining := dimSize; remaining > 0; remaining -= n {
			sizes = append(sizes, min(n, remaining))
		}
		return sizes, nil
	case "tensor_split":
		base, extra := dimSize/n, dimSize%n
		sizes := make([]int, n)
		for i := range sizes {
			sizes[i] = base
			if i < extra {
				sizes[i]++
			}
		}
		return sizes, nil
	default:
		if dimSize%n != 0 {
			return nil, fmt.Errorf("fake: %s: dimension size %d not divisible by %d", op, dimSize, n)
		}
		sizes := make([]int, n)
		for i := range sizes {
			sizes[i] = dimSize / n
		}
		return sizes, nil
	}
}

func placeholder(shape tensor.Shape, like tensor.Value) []tensor.Value {
	return []tensor.Value{tensor.Zeros(shape, like.DType(), like.Device())}
}

func placeholders(like tensor.Value, dim int, sizes []int) []tensor.Value {
	if dim < 0 {
		dim += len(like.Shape())
	}
	outs := make([]tensor.Value, len(sizes))
	for i, s := range sizes {
		shape := like.Shape().Clone()
		shape[dim] = s
		outs[i] = tensor.Zeros(shape, like.DType(), like.Device())
	}
	return outs
}

func argValue(args []any, i int) (tensor.Value, error) {
	if i >= len(args) {
		return nil, fmt.Errorf("missing argument at position %d", i)
	}
	v, ok := args[i].(tensor.Value)
	if !ok {
		return nil, fmt.Errorf("argument %d is not a tensor value, got %T", i, args[i])
	}
	return v, nil
}

func argInt(args []any, i int) (int, error) {
	if i >= len(args) {
		return 0, fmt.Errorf("missing argument at position %d", i)
	}
	n, ok := args[i].(int)
	if !ok {
		return 0, fmt.Errorf("argument %d is not an int, got %T", i, args[i])
	}
	return n, nil
}

func argInts(args []any, i int) ([]int, error) {
	if i >= len(args) {
		return nil, fmt.Errorf("missing argument at position %d", i)
	}
	ns, ok := args[i].([]int)
	if !ok {
		return nil, fmt.Errorf("argument %d is not an int slice, got %T", i, args[i])
	}
	return ns, nil
}

func argShape(args []any, i int) (tensor.Shape, error) {
	if i >= len(args) {
		return nil, fmt.Errorf("missing argument at position %d", i)
	}
	switch v := args[i].(type) {
	case tensor.Shape:
		return v, nil
	case []int:
		return tensor.Shape(v), nil
	default:
		return nil, fmt.Errorf("argument %d is not a shape, got %T", i, args[i])
	}
}
