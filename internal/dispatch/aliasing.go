package dispatch

import (
	"fmt"

	"github.com/spindle-ml/spindle/internal/schema"
	"github.com/spindle-ml/spindle/internal/tensor"
)

// StorageSwapper is the storage interception contract of the aliasing
// engine. Dense tensors implement it natively; wrapper subclasses that
// want correct view and mutation semantics expose it on their shell.
type StorageSwapper interface {
	Storage() tensor.Storage
	SwapStorage(tensor.Storage)
}

// CorrectStorageAliasing repairs storage sharing between args and outs
// according to the operator schema. When a handler produces outputs by
// redispatching on unwrapped tensors, the results are fresh allocations
// even for view and in-place operators; this pass swaps each aliased
// output's storage for the storage of the input it is declared to alias,
// restoring the identity the schema promises.
//
// Alias matching intersects alias sets per slot pair. The multi-output
// splitting operators, whose list return cannot carry annotations, are
// handled through the explicit schema.MultiOutputViewOps table: every
// output aliases the first input.
//
// All aliased operands must support storage interception; the first one
// that does not aborts the pass with AliasSchemaError before any output
// is touched.
func CorrectStorageAliasing(sch *schema.Schema, args []any, outs []tensor.Value) error {
	if schema.IsMultiOutputView(sch.Name) {
		return aliasAllToFirst(sch, args, outs)
	}

	// Capability check up front so a failure cannot leave outs half-swapped.
	for ri, ret := range sch.Returns {
		if !ret.HasAlias() || ret.Variadic || ri >= len(outs) {
			continue
		}
		ai := argForReturn(sch, ret)
		if ai < 0 {
			continue
		}
		if _, ok := args[ai].(StorageSwapper); !ok {
			return &AliasSchemaError{Op: sch.Name, Slot: ai, Arg: true, TypeName: typeName(args[ai])}
		}
		if _, ok := outs[ri].(StorageSwapper); !ok {
			return &AliasSchemaError{Op: sch.Name, Slot: ri, Arg: false, TypeName: typeName(outs[ri])}
		}
	}

	for ri, ret := range sch.Returns {
		if !ret.HasAlias() || ret.Variadic || ri >= len(outs) {
			continue
		}
		ai := argForReturn(sch, ret)
		if ai < 0 {
			continue
		}
		src := args[ai].(StorageSwapper)
		dst := outs[ri].(StorageSwapper)
		if !dst.Storage().SameAs(src.Storage()) {
			dst.SwapStorage(src.Storage())
		}
	}
	return nil
}

// aliasAllToFirst implements the splitting-operator exception: every
// output shares the first input's storage.
func aliasAllToFirst(sch *schema.Schema, args []any, outs []tensor.Value) error {
	if len(args) == 0 {
		return fmt.Errorf("dispatch: %s: no input to alias outputs against", sch.Name)
	}
	src, ok := args[0].(StorageSwapper)
	if !ok {
		return &AliasSchemaError{Op: sch.Name, Slot: 0, Arg: true, TypeName: typeName(args[0])}
	}
	for ri, out := range outs {
		if _, ok := out.(StorageSwapper); !ok {
			return &AliasSchemaError{Op: sch.Name, Slot: ri, Arg: false, TypeName: typeName(out)}
		}
	}
	for _, out := range outs {
		dst := out.(StorageSwapper)
		if !dst.Storage().SameAs(src.Storage()) {
			dst.SwapStorage(src.Storage())
		}
	}
	return nil
}

// ReturnAndCorrectAliasing is the one-call correctness path for wrapper
// subclass handlers: after redispatching on unwrapped tensors, pass the
// original args and the fresh outs through here to obtain the returns the
// caller must see.
//
// For plain and view operators the outs come back unchanged apart from
// storage repair. For in-place operators, where every return carries a
// write marker, the mutated input itself is returned so the caller keeps
// operating on the same value identity. Schemas that mix write-marked and
// plain returns are rejected with MixedAliasSchemaError.
func ReturnAndCorrectAliasing(sch *schema.Schema, args []any, outs []tensor.Value) ([]tensor.Value, error) {
	if err := CorrectStorageAliasing(sch, args, outs); err != nil {
		return nil, err
	}

	writes := 0
	for i := range sch.Returns {
		if sch.WriteAlias(i) != "" {
			writes++
		}
	}
	if writes == 0 {
		return outs, nil
	}
	if writes != len(sch.Returns) {
		return nil, &MixedAliasSchemaError{Op: sch.Name, Schema: sch.String()}
	}

	ai := sch.ArgIndexForAlias(sch.WriteAlias(0))
	if ai < 0 || ai >= len(args) {
		return nil, fmt.Errorf("dispatch: %s: write alias %q does not resolve to an argument", sch.Name, sch.WriteAlias(0))
	}
	mutated, ok := args[ai].(tensor.Value)
	if !ok {
		return nil, fmt.Errorf("dispatch: %s: mutated argument %d is not a tensor value", sch.Name, ai)
	}
	rets := make([]tensor.Value, len(sch.Returns))
	for i := range rets {
		rets[i] = mutated
	}
	return rets, nil
}

// argForReturn finds the argument slot whose alias set intersects ret's.
func argForReturn(sch *schema.Schema, ret schema.Slot) int {
	for ai, arg := range sch.Args {
		if arg.Aliases(ret) {
			return ai
		}
	}
	return -1
}

func typeName(v any) string {
	return fmt.Sprintf("%T", v)
}
