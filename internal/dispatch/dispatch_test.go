package dispatch

import (
	"fmt"
	"io"
	"log/slog"
	"reflect"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/sync/errgroup"

	"github.com/spindle-ml/spindle/internal/schema"
	"github.com/spindle-ml/spindle/internal/tensor"
)

func denseF32(t *testing.T, data []float32, shape ...int) *tensor.RawTensor {
	t.Helper()
	x, err := tensor.FromSlice(data, tensor.Shape(shape), tensor.CPU)
	require.NoError(t, err)
	return x
}

// recordMode appends "name:op" for every call it sees, then redispatches.
type recordMode struct {
	name string
	ops  *[]string
}

func (m *recordMode) Dispatch(ctx *Context, op *schema.Schema, types []reflect.Type, args []any, kwargs Kwargs) ([]tensor.Value, error) {
	*m.ops = append(*m.ops, m.name+":"+op.Name)
	return ctx.Call(op.Name, args, kwargs)
}

// constMode short-circuits every single-output call with a filled tensor,
// never touching the dense kernels.
type constMode struct {
	value float32
}

func (m *constMode) Dispatch(ctx *Context, op *schema.Schema, types []reflect.Type, args []any, kwargs Kwargs) ([]tensor.Value, error) {
	x, err := argTensor(args, 0, "self")
	if err != nil {
		return nil, err
	}
	out := tensor.ZerosLike(x)
	data := out.AsFloat32()
	for i := range data {
		data[i] = m.value
	}
	return []tensor.Value{out}, nil
}

// taggedTensor is a wrapper subclass around one dense inner tensor. It
// implements the full protocol surface: Value metadata, Flatten/Unflatten,
// storage interception and subclass dispatch.
type taggedTensor struct {
	inner *tensor.RawTensor
	tag   string
}

func (w *taggedTensor) Shape() tensor.Shape     { return w.inner.Shape() }
func (w *taggedTensor) DType() tensor.DataType  { return w.inner.DType() }
func (w *taggedTensor) Device() tensor.Device   { return w.inner.Device() }
func (w *taggedTensor) Storage() tensor.Storage { return w.inner.Storage() }
func (w *taggedTensor) SwapStorage(s tensor.Storage) {
	w.inner.SwapStorage(s)
}

func (w *taggedTensor) Flatten() ([]tensor.Value, any) {
	return []tensor.Value{w.inner}, w.tag
}

func (w *taggedTensor) Unflatten(inners []tensor.Value, meta any) (tensor.Value, error) {
	if len(inners) != 1 {
		return nil, fmt.Errorf("taggedTensor: want 1 inner, got %d", len(inners))
	}
	tag, ok := meta.(string)
	if !ok {
		return nil, fmt.Errorf("taggedTensor: bad metadata %T", meta)
	}
	inner, ok := inners[0].(*tensor.RawTensor)
	if !ok {
		return nil, fmt.Errorf("taggedTensor: inner must be dense, got %T", inners[0])
	}
	return &taggedTensor{inner: inner, tag: tag}, nil
}

// Dispatch unwraps the call, redispatches on the inner tensors, rewraps
// the outputs and repairs aliasing against the original wrapped args.
func (w *taggedTensor) Dispatch(ctx *Context, op *schema.Schema, types []reflect.Type, args []any, kwargs Kwargs) ([]tensor.Value, error) {
	unwrapped := make([]any, len(args))
	for i, a := range args {
		if tw, ok := a.(*taggedTensor); ok {
			unwrapped[i] = tw.inner
		} else {
			unwrapped[i] = a
		}
	}
	outs, err := ctx.Call(op.Name, unwrapped, kwargs)
	if err != nil {
		return nil, err
	}
	wrapped := make([]tensor.Value, len(outs))
	for i, out := range outs {
		inner, ok := out.(*tensor.RawTensor)
		if !ok {
			return nil, fmt.Errorf("taggedTensor: unexpected output %T", out)
		}
		wrapped[i] = &taggedTensor{inner: inner, tag: w.tag}
	}
	return ReturnAndCorrectAliasing(op, args, wrapped)
}

func TestCallDenseKernel(t *testing.T) {
	ctx := New()
	x := denseF32(t, []float32{1, 2, 3}, 3)
	y := denseF32(t, []float32{10, 20, 30}, 3)

	outs, err := ctx.Call("add", []any{x, y}, nil)
	require.NoError(t, err)
	require.Len(t, outs, 1)

	out := outs[0].(*tensor.RawTensor)
	assert.Equal(t, []float32{11, 22, 33}, out.AsFloat32())
	assert.False(t, out.Storage().SameAs(x.Storage()), "add output must be fresh")
	require.NoError(t, ctx.Close())
}

func TestCallUnknownOp(t *testing.T) {
	ctx := New()
	_, err := ctx.Call("matmul", nil, nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown operator")
}

func TestCallInplaceKernelReturnsReceiver(t *testing.T) {
	ctx := New()
	x := denseF32(t, []float32{1, 2, 3}, 3)
	y := denseF32(t, []float32{1, 1, 1}, 3)

	outs, err := ctx.Call("add_", []any{x, y}, nil)
	require.NoError(t, err)
	require.Len(t, outs, 1)
	assert.Same(t, x, outs[0], "in-place op must return its receiver")
	assert.Equal(t, []float32{2, 3, 4}, x.AsFloat32())
}

func TestModeInterceptionOrder(t *testing.T) {
	ctx := New()
	var ops []string
	ctx.Push(&recordMode{name: "outer", ops: &ops})
	ctx.Push(&recordMode{name: "inner", ops: &ops})

	x := denseF32(t, []float32{1, 2}, 2)
	y := denseF32(t, []float32{3, 4}, 2)

	outs, err := ctx.Call("add", []any{x, y}, nil)
	require.NoError(t, err)
	assert.Equal(t, []float32{4, 6}, outs[0].(*tensor.RawTensor).AsFloat32())

	// The innermost (last pushed) mode sees the call first; its redispatch
	// reaches the outer mode, whose redispatch reaches the kernel.
	assert.Equal(t, []string{"inner:add", "outer:add"}, ops)

	// Both modes are back on the stack afterwards.
	assert.Equal(t, 2, len(ctx.ModeChain()))
}

// selfCheckMode asserts that it is not visible on the stack while its own
// Dispatch runs.
type selfCheckMode struct {
	t *testing.T
}

func (m *selfCheckMode) Dispatch(ctx *Context, op *schema.Schema, types []reflect.Type, args []any, kwargs Kwargs) ([]tensor.Value, error) {
	assert.Nil(m.t, ctx.Current(), "mode must be popped while its handler runs")
	return ctx.Call(op.Name, args, kwargs)
}

func TestModeRemovedDuringDispatch(t *testing.T) {
	ctx := New()
	m := &selfCheckMode{t: t}

	x := denseF32(t, []float32{1}, 1)
	y := denseF32(t, []float32{2}, 1)

	err := ctx.WithMode(m, func() error {
		_, err := ctx.Call("add", []any{x, y}, nil)
		return err
	})
	require.NoError(t, err)
	assert.Nil(t, ctx.Current())
}

func TestKeyedModeIntercepts(t *testing.T) {
	ctx := New()
	x := denseF32(t, []float32{1, 2}, 2)
	y := denseF32(t, []float32{3, 4}, 2)

	err := ctx.WithKeyedMode(KeyFake, &constMode{value: 42}, func() error {
		outs, err := ctx.Call("add", []any{x, y}, nil)
		if err != nil {
			return err
		}
		assert.Equal(t, []float32{42, 42}, outs[0].(*tensor.RawTensor).AsFloat32())
		return nil
	})
	require.NoError(t, err)

	// With the slot empty again the dense kernel handles the call.
	outs, err := ctx.Call("add", []any{x, y}, nil)
	require.NoError(t, err)
	assert.Equal(t, []float32{4, 6}, outs[0].(*tensor.RawTensor).AsFloat32())
}

func TestUserModeShadowsKeyedSlots(t *testing.T) {
	ctx := New()
	var ops []string
	require.NoError(t, ctx.PushKeyed(KeyFake, &constMode{value: 7}))
	ctx.Push(&recordMode{name: "user", ops: &ops})

	x := denseF32(t, []float32{1}, 1)
	y := denseF32(t, []float32{2}, 1)

	outs, err := ctx.Call("add", []any{x, y}, nil)
	require.NoError(t, err)

	// The user mode runs first; its redispatch lands on the fake slot, so
	// the result is the fake's constant rather than the dense sum.
	assert.Equal(t, []string{"user:add"}, ops)
	assert.Equal(t, []float32{7}, outs[0].(*tensor.RawTensor).AsFloat32())
}

func TestFastPathCacheInvalidation(t *testing.T) {
	ctx := New()
	x := denseF32(t, []float32{1}, 1)
	y := denseF32(t, []float32{2}, 1)

	_, err := ctx.Call("add", []any{x, y}, nil)
	require.NoError(t, err)
	_, cached := ctx.fast["add"]
	assert.True(t, cached, "bare call should cache its dispatch decision")

	require.NoError(t, ctx.PushKeyed(KeyFake, &constMode{value: 1}))
	_, cached = ctx.fast["add"]
	assert.False(t, cached, "keyed push must invalidate the cached decision")

	_, err = ctx.PopKeyed(KeyFake)
	require.NoError(t, err)

	_, err = ctx.Call("add", []any{x, y}, nil)
	require.NoError(t, err)
	_, cached = ctx.fast["add"]
	assert.True(t, cached, "cache refills after the slot empties")
}

func TestSubclassDispatch(t *testing.T) {
	ctx := New()
	w := &taggedTensor{inner: denseF32(t, []float32{1, 2}, 2), tag: "lhs"}
	y := denseF32(t, []float32{10, 10}, 2)

	outs, err := ctx.Call("add", []any{w, y}, nil)
	require.NoError(t, err)
	require.Len(t, outs, 1)

	out, ok := outs[0].(*taggedTensor)
	require.True(t, ok, "subclass dispatch must rewrap the output")
	assert.Equal(t, "lhs", out.tag)
	assert.Equal(t, []float32{11, 12}, out.inner.AsFloat32())
}

func TestSubclassDispatchInplace(t *testing.T) {
	ctx := New()
	w := &taggedTensor{inner: denseF32(t, []float32{1, 2}, 2), tag: "acc"}
	y := denseF32(t, []float32{5, 5}, 2)

	outs, err := ctx.Call("add_", []any{w, y}, nil)
	require.NoError(t, err)
	require.Len(t, outs, 1)

	// Mutation semantics: the caller gets back the very wrapper it passed
	// in, already mutated.
	assert.Same(t, w, outs[0])
	assert.Equal(t, []float32{6, 7}, w.inner.AsFloat32())
}

func TestSubclassDispatchView(t *testing.T) {
	ctx := New()
	w := &taggedTensor{inner: denseF32(t, []float32{1, 2, 3, 4}, 2, 2), tag: "v"}

	outs, err := ctx.Call("view", []any{w, tensor.Shape{4}}, nil)
	require.NoError(t, err)
	require.Len(t, outs, 1)

	out := outs[0].(*taggedTensor)
	assert.Equal(t, tensor.Shape{4}, out.Shape())
	assert.True(t, out.Storage().SameAs(w.Storage()), "view output must share the input's storage")
}

func TestSubclassDispatchSplit(t *testing.T) {
	ctx := New()
	w := &taggedTensor{inner: denseF32(t, []float32{1, 2, 3, 4}, 4), tag: "s"}

	outs, err := ctx.Call("chunk", []any{w, 2, 0}, nil)
	require.NoError(t, err)
	require.Len(t, outs, 2)

	for i, out := range outs {
		tw := out.(*taggedTensor)
		assert.True(t, tw.Storage().SameAs(w.Storage()), "chunk output %d must alias the input", i)
	}
}

func TestPassthroughMode(t *testing.T) {
	ctx := New()
	x := denseF32(t, []float32{2}, 1)
	y := denseF32(t, []float32{3}, 1)

	err := ctx.WithMode(PassthroughMode{}, func() error {
		outs, err := ctx.Call("add", []any{x, y}, nil)
		if err != nil {
			return err
		}
		assert.Equal(t, []float32{5}, outs[0].(*tensor.RawTensor).AsFloat32())
		return nil
	})
	require.NoError(t, err)
}

func TestLogMode(t *testing.T) {
	ctx := New()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	x := denseF32(t, []float32{1}, 1)
	y := denseF32(t, []float32{1}, 1)

	err := ctx.WithMode(&LogMode{Logger: logger}, func() error {
		outs, err := ctx.Call("mul", []any{x, y}, nil)
		if err != nil {
			return err
		}
		assert.Equal(t, []float32{1}, outs[0].(*tensor.RawTensor).AsFloat32())
		return nil
	})
	require.NoError(t, err)
}

func TestContextsAreIndependent(t *testing.T) {
	// Each goroutine owns its own Context; their mode stacks never
	// interact.
	var g errgroup.Group
	for w := 0; w < 8; w++ {
		g.Go(func() error {
			ctx := New()
			x := tensor.Ones(tensor.Shape{4}, tensor.Float32, tensor.CPU)
			y := tensor.Ones(tensor.Shape{4}, tensor.Float32, tensor.CPU)

			err := ctx.WithMode(PassthroughMode{}, func() error {
				for i := 0; i < 50; i++ {
					outs, err := ctx.Call("add", []any{x, y}, nil)
					if err != nil {
						return err
					}
					if got := outs[0].(*tensor.RawTensor).AsFloat32()[0]; got != 2 {
						return fmt.Errorf("got %v, want 2", got)
					}
				}
				return nil
			})
			if err != nil {
				return err
			}
			return ctx.Close()
		})
	}
	require.NoError(t, g.Wait())
}

func TestParticipatingTypes(t *testing.T) {
	w1 := &taggedTensor{inner: tensor.Zeros(tensor.Shape{1}, tensor.Float32, tensor.CPU), tag: "a"}
	w2 := &taggedTensor{inner: tensor.Zeros(tensor.Shape{1}, tensor.Float32, tensor.CPU), tag: "b"}
	dense := tensor.Zeros(tensor.Shape{1}, tensor.Float32, tensor.CPU)

	types := participatingTypes([]any{w1, dense, w2, 3})
	require.Len(t, types, 1, "duplicate subclass types collapse; dense and non-tensor args do not participate")
	assert.Equal(t, reflect.TypeOf(w1), types[0])
}
