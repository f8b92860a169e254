package fake

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/spindle-ml/spindle/internal/dispatch"
	"github.com/spindle-ml/spindle/internal/schema"
	"github.com/spindle-ml/spindle/internal/tensor"
)

func newTensor(t *testing.T, shape ...int) *tensor.RawTensor {
	t.Helper()
	x, err := tensor.NewRaw(tensor.Shape(shape), tensor.Float32, tensor.CPU)
	require.NoError(t, err)
	return x
}

func TestFakeBinaryBroadcast(t *testing.T) {
	ctx := dispatch.New()
	x := newTensor(t, 2, 1, 4)
	y := newTensor(t, 3, 1)

	err := With(ctx, New(), func() error {
		outs, err := ctx.Call("add", []any{x, y}, nil)
		if err != nil {
			return err
		}
		require.Len(t, outs, 1)
		assert.Equal(t, tensor.Shape{2, 3, 4}, outs[0].Shape())
		assert.Equal(t, tensor.Float32, outs[0].DType())
		return nil
	})
	require.NoError(t, err)
}

func TestFakeBinaryShapeMismatch(t *testing.T) {
	ctx := dispatch.New()
	x := newTensor(t, 2, 3)
	y := newTensor(t, 4)

	err := With(ctx, New(), func() error {
		_, err := ctx.Call("add", []any{x, y}, nil)
		return err
	})
	require.Error(t, err, "incompatible shapes must fail without running a kernel")
}

func TestFakeInplaceReturnsReceiver(t *testing.T) {
	ctx := dispatch.New()
	x := newTensor(t, 3)
	x.AsFloat32()[0] = 5
	y := newTensor(t, 3)

	err := With(ctx, New(), func() error {
		outs, err := ctx.Call("add_", []any{x, y}, nil)
		if err != nil {
			return err
		}
		assert.Same(t, x, outs[0])
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, float32(5), x.AsFloat32()[0], "fake execution must not touch data")
}

func TestFakeViewAndTranspose(t *testing.T) {
	ctx := dispatch.New()
	x := newTensor(t, 2, 6)

	err := With(ctx, New(), func() error {
		outs, err := ctx.Call("view", []any{x, tensor.Shape{3, 4}}, nil)
		if err != nil {
			return err
		}
		assert.Equal(t, tensor.Shape{3, 4}, outs[0].Shape())

		if _, err := ctx.Call("view", []any{x, tensor.Shape{5}}, nil); err == nil {
			t.Error("element-count mismatch must fail")
		}

		outs, err = ctx.Call("transpose", []any{x, 0, 1}, nil)
		if err != nil {
			return err
		}
		assert.Equal(t, tensor.Shape{6, 2}, outs[0].Shape())
		return nil
	})
	require.NoError(t, err)
}

func TestFakeSplitFamily(t *testing.T) {
	ctx := dispatch.New()
	x := newTensor(t, 7, 4)

	err := With(ctx, New(), func() error {
		outs, err := ctx.Call("tensor_split", []any{x, 3, 0}, nil)
		if err != nil {
			return err
		}
		require.Len(t, outs, 3)
		assert.Equal(t, tensor.Shape{3, 4}, outs[0].Shape())
		assert.Equal(t, tensor.Shape{2, 4}, outs[1].Shape())
		assert.Equal(t, tensor.Shape{2, 4}, outs[2].Shape())

		outs, err = ctx.Call("split", []any{x, 3, 0}, nil)
		if err != nil {
			return err
		}
		require.Len(t, outs, 3)
		assert.Equal(t, tensor.Shape{1, 4}, outs[2].Shape(), "last split piece is the remainder")

		if _, err := ctx.Call("chunk", []any{x, 3, 0}, nil); err == nil {
			t.Error("chunk of 7 into 3 must fail")
		}

		outs, err = ctx.Call("unbind", []any{x, 1}, nil)
		if err != nil {
			return err
		}
		require.Len(t, outs, 4)
		assert.Equal(t, tensor.Shape{7}, outs[0].Shape())
		return nil
	})
	require.NoError(t, err)
}

func TestFakeShapeMatchesDenseExecution(t *testing.T) {
	ctx := dispatch.New()
	x := newTensor(t, 8, 1, 4)
	y := newTensor(t, 3, 1)

	var fakeShape tensor.Shape
	err := With(ctx, New(), func() error {
		outs, err := ctx.Call("add", []any{x, y}, nil)
		if err != nil {
			return err
		}
		fakeShape = outs[0].Shape()
		return nil
	})
	require.NoError(t, err)
	require.Equal(t, tensor.Shape{8, 3, 4}, fakeShape)

	// A program the fake accepts must run on the dense kernels too, with
	// the same result shape.
	outs, err := ctx.Call("add", []any{x, y}, nil)
	require.NoError(t, err)
	assert.Equal(t, fakeShape, outs[0].Shape())
}

func TestFakeInplaceCannotGrowReceiver(t *testing.T) {
	ctx := dispatch.New()
	x := newTensor(t, 3)
	y := newTensor(t, 2, 3)

	err := With(ctx, New(), func() error {
		_, err := ctx.Call("add_", []any{x, y}, nil)
		return err
	})
	require.Error(t, err, "add_ broadcasting the receiver up must fail")
}

func TestFakeNegativeDims(t *testing.T) {
	ctx := dispatch.New()
	x := newTensor(t, 2, 3, 4)

	err := With(ctx, New(), func() error {
		outs, err := ctx.Call("transpose", []any{x, -1, -2}, nil)
		if err != nil {
			return err
		}
		assert.Equal(t, tensor.Shape{2, 4, 3}, outs[0].Shape())

		outs, err = ctx.Call("unbind", []any{x, -1}, nil)
		if err != nil {
			return err
		}
		require.Len(t, outs, 4)
		assert.Equal(t, tensor.Shape{2, 3}, outs[0].Shape())

		if _, err := ctx.Call("transpose", []any{x, -4, 0}, nil); err == nil {
			t.Error("out-of-range negative dim must fail")
		}
		return nil
	})
	require.NoError(t, err)
}

func TestFakeCallCounts(t *testing.T) {
	ctx := dispatch.New()
	m := New()
	x := newTensor(t, 2)
	y := newTensor(t, 2)

	err := With(ctx, m, func() error {
		for i := 0; i < 3; i++ {
			if _, err := ctx.Call("mul", []any{x, y}, nil); err != nil {
				return err
			}
		}
		_, err := ctx.Call("clone", []any{x}, nil)
		return err
	})
	require.NoError(t, err)
	assert.Equal(t, 3, m.Calls("mul"))
	assert.Equal(t, 1, m.Calls("clone"))
	assert.Equal(t, 0, m.Calls("add"))
}

func TestFakeUnknownOp(t *testing.T) {
	ctx := dispatch.New()
	require.NoError(t, ctx.Ops().Register(schema.MustParse("gelu(self) -> _")))
	x := newTensor(t, 2)

	err := With(ctx, New(), func() error {
		_, err := ctx.Call("gelu", []any{x}, nil)
		return err
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no shape rule")
}
