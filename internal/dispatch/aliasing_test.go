package dispatch

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/spindle-ml/spindle/internal/schema"
	"github.com/spindle-ml/spindle/internal/tensor"
)

// opaqueValue carries tensor metadata but supports no storage
// interception.
type opaqueValue struct {
	shape tensor.Shape
}

func (o opaqueValue) Shape() tensor.Shape    { return o.shape }
func (o opaqueValue) DType() tensor.DataType { return tensor.Float32 }
func (o opaqueValue) Device() tensor.Device  { return tensor.CPU }

func builtinSchema(t *testing.T, op string) *schema.Schema {
	t.Helper()
	sch, ok := schema.NewRegistry().Lookup(op)
	require.True(t, ok, "builtin schema %q", op)
	return sch
}

func TestCorrectStorageAliasingView(t *testing.T) {
	sch := builtinSchema(t, "view")
	x := denseF32(t, []float32{1, 2, 3, 4}, 2, 2)

	// A handler that recomputed the view from scratch produces an output
	// with fresh storage.
	out := denseF32(t, []float32{1, 2, 3, 4}, 4)
	require.False(t, out.Storage().SameAs(x.Storage()))

	err := CorrectStorageAliasing(sch, []any{x, tensor.Shape{4}}, []tensor.Value{out})
	require.NoError(t, err)
	assert.True(t, out.Storage().SameAs(x.Storage()), "view output must share the input's storage")
	assert.Equal(t, tensor.Shape{4}, out.Shape(), "metadata survives the swap")
}

func TestCorrectStorageAliasingSecondArg(t *testing.T) {
	// The alias id names the slot, so the aliased input need not be the
	// first argument.
	sch := schema.MustParse("expand_as(self, other(a)) -> (a)")
	x := denseF32(t, []float32{1, 2}, 2)
	y := denseF32(t, []float32{3, 4}, 2)
	out := denseF32(t, []float32{3, 4}, 2)

	err := CorrectStorageAliasing(sch, []any{x, y}, []tensor.Value{out})
	require.NoError(t, err)
	assert.True(t, out.Storage().SameAs(y.Storage()))
	assert.False(t, out.Storage().SameAs(x.Storage()))
	assert.Equal(t, tensor.Shape{2}, out.Shape())
}

func TestCorrectStorageAliasingPlainOpUntouched(t *testing.T) {
	sch := builtinSchema(t, "add")
	x := denseF32(t, []float32{1, 2}, 2)
	y := denseF32(t, []float32{3, 4}, 2)
	out := denseF32(t, []float32{4, 6}, 2)

	err := CorrectStorageAliasing(sch, []any{x, y}, []tensor.Value{out})
	require.NoError(t, err)
	assert.False(t, out.Storage().SameAs(x.Storage()), "plain outputs keep their own storage")
}

func TestCorrectStorageAliasingMultiOutput(t *testing.T) {
	for _, op := range []string{"chunk", "split", "unbind", "tensor_split"} {
		sch := builtinSchema(t, op)
		x := denseF32(t, []float32{1, 2, 3, 4}, 4)
		outs := []tensor.Value{
			denseF32(t, []float32{1, 2}, 2),
			denseF32(t, []float32{3, 4}, 2),
		}

		err := CorrectStorageAliasing(sch, []any{x, 2, 0}, outs)
		require.NoError(t, err, op)
		for i, out := range outs {
			assert.True(t, out.(*tensor.RawTensor).Storage().SameAs(x.Storage()),
				"%s output %d must alias the input", op, i)
		}
	}
}

func TestCorrectStorageAliasingNonSwapperArg(t *testing.T) {
	sch := builtinSchema(t, "view")
	arg := opaqueValue{shape: tensor.Shape{4}}
	out := denseF32(t, []float32{1, 2, 3, 4}, 4)

	err := CorrectStorageAliasing(sch, []any{arg, tensor.Shape{4}}, []tensor.Value{out})
	var aliasErr *AliasSchemaError
	require.ErrorAs(t, err, &aliasErr)
	assert.True(t, aliasErr.Arg)
	assert.Equal(t, 0, aliasErr.Slot)
	assert.Equal(t, "view", aliasErr.Op)
}

func TestCorrectStorageAliasingNonSwapperReturn(t *testing.T) {
	sch := builtinSchema(t, "view")
	x := denseF32(t, []float32{1, 2, 3, 4}, 4)
	out := opaqueValue{shape: tensor.Shape{4}}

	err := CorrectStorageAliasing(sch, []any{x, tensor.Shape{4}}, []tensor.Value{out})
	var aliasErr *AliasSchemaError
	require.ErrorAs(t, err, &aliasErr)
	assert.False(t, aliasErr.Arg)
	assert.Equal(t, "dispatch.opaqueValue", aliasErr.TypeName)
}

func TestCorrectStorageAliasingChecksBeforeSwapping(t *testing.T) {
	// Two aliased returns, the second not swappable: the first must not be
	// swapped either.
	sch := schema.MustParse("pair(self(a), other(b)) -> (a), (b)")
	x := denseF32(t, []float32{1, 2}, 2)
	y := denseF32(t, []float32{3, 4}, 2)
	good := denseF32(t, []float32{1, 2}, 2)
	bad := opaqueValue{shape: tensor.Shape{2}}

	err := CorrectStorageAliasing(sch, []any{x, y}, []tensor.Value{good, bad})
	var aliasErr *AliasSchemaError
	require.ErrorAs(t, err, &aliasErr)
	assert.False(t, good.Storage().SameAs(x.Storage()), "no partial swaps on failure")
}

func TestReturnAndCorrectAliasingPlain(t *testing.T) {
	sch := builtinSchema(t, "add")
	x := denseF32(t, []float32{1, 2}, 2)
	y := denseF32(t, []float32{3, 4}, 2)
	out := denseF32(t, []float32{4, 6}, 2)

	rets, err := ReturnAndCorrectAliasing(sch, []any{x, y}, []tensor.Value{out})
	require.NoError(t, err)
	require.Len(t, rets, 1)
	assert.Same(t, out, rets[0], "plain returns pass through unchanged")
}

func TestReturnAndCorrectAliasingInplace(t *testing.T) {
	sch := builtinSchema(t, "add_")
	x := denseF32(t, []float32{1, 2}, 2)
	y := denseF32(t, []float32{3, 4}, 2)
	out := denseF32(t, []float32{4, 6}, 2)

	rets, err := ReturnAndCorrectAliasing(sch, []any{x, y}, []tensor.Value{out})
	require.NoError(t, err)
	require.Len(t, rets, 1)
	assert.Same(t, x, rets[0], "write-marked returns resolve to the mutated input")
	assert.True(t, out.Storage().SameAs(x.Storage()), "handler output now shares the input's storage")
}

func TestReturnAndCorrectAliasingMixed(t *testing.T) {
	sch := schema.MustParse("lerp_(self(a!), end) -> (a!), _")
	x := denseF32(t, []float32{1}, 1)
	y := denseF32(t, []float32{2}, 1)
	outs := []tensor.Value{
		denseF32(t, []float32{1}, 1),
		denseF32(t, []float32{2}, 1),
	}

	_, err := ReturnAndCorrectAliasing(sch, []any{x, y}, outs)
	var mixed *MixedAliasSchemaError
	require.ErrorAs(t, err, &mixed)
	assert.Equal(t, "lerp_", mixed.Op)
	assert.Contains(t, mixed.Schema, "(a!), _")
}

func TestReturnAndCorrectAliasingWrappedInplace(t *testing.T) {
	sch := builtinSchema(t, "add_")
	w := &taggedTensor{inner: denseF32(t, []float32{1, 2}, 2), tag: "w"}
	y := denseF32(t, []float32{3, 4}, 2)
	out := &taggedTensor{inner: denseF32(t, []float32{4, 6}, 2), tag: "w"}

	rets, err := ReturnAndCorrectAliasing(sch, []any{w, y}, []tensor.Value{out})
	require.NoError(t, err)
	assert.Same(t, w, rets[0])
	assert.True(t, out.Storage().SameAs(w.Storage()))
}
