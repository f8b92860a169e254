// Package dispatch implements Spindle's operator interception substrate:
// the mode stack, the dispatch router, the alias/mutation correctness
// engine and the wrapper-subclass protocol.
//
// A Mode overrides the meaning of every operator call issued while it is
// active, without the caller wrapping its inputs in subclass values. Modes
// compose like a call stack: the innermost pushed mode sees operations
// first and decides whether to handle them directly or to redispatch,
// which forwards to the next-outer interceptor (and eventually to the
// default dense backend).
//
//	ctx := dispatch.New()
//	err := ctx.WithMode(&dispatch.LogMode{}, func() error {
//	    outs, err := ctx.Call("add", []any{x, y}, nil)
//	    ...
//	})
//
// Wrapper subclass values implement the same Dispatch entry point; when no
// mode is active, an operator call whose arguments contain a subclass
// routes to the subclass itself.
package dispatch

import (
	"log/slog"
	"reflect"

	"github.com/spindle-ml/spindle/internal/schema"
	"github.com/spindle-ml/spindle/internal/tensor"
)

// Kwargs carries an operator call's keyword arguments.
type Kwargs map[string]any

// Mode is the single entry point through which interceptors override
// operator dispatch.
//
// Two kinds of values implement it: stateful modes pushed onto the mode
// stack, and wrapper subclass values that intercept only the calls they
// participate in. While a mode's Dispatch runs, the mode is temporarily
// removed from its stack, so operator calls it issues recursively reach
// the next-outer interceptor instead of looping back into itself.
type Mode interface {
	// Dispatch handles one operator invocation. types lists the distinct
	// wrapper-subclass types participating in the call; args and kwargs
	// are the original operands.
	Dispatch(ctx *Context, op *schema.Schema, types []reflect.Type, args []any, kwargs Kwargs) ([]tensor.Value, error)
}

// Key tags a mode with a dispatch category. Modes pushed with a key live
// on that key's stack instead of the untagged stack.
type Key string

// The two distinguished singleton slots. Each holds at most one active
// mode; they bypass the general stack on performance-critical paths.
const (
	KeyProxy Key = "proxy-tracing"
	KeyFake  Key = "fake-execution"
)

// isSingleton reports whether the key is one of the at-most-one-occupant
// slots.
func (k Key) isSingleton() bool {
	return k == KeyProxy || k == KeyFake
}

// PassthroughMode forwards every operation unchanged to the next
// interceptor. It is a useful base for modes that only want to observe a
// subset of operations.
type PassthroughMode struct{}

// Dispatch redispatches the call below this mode.
func (PassthroughMode) Dispatch(ctx *Context, op *schema.Schema, types []reflect.Type, args []any, kwargs Kwargs) ([]tensor.Value, error) {
	return ctx.Call(op.Name, args, kwargs)
}

// LogMode logs every dispatched operator and forwards it unchanged.
type LogMode struct {
	Logger *slog.Logger // Defaults to slog.Default().
}

// Dispatch logs the operation and redispatches it.
func (m *LogMode) Dispatch(ctx *Context, op *schema.Schema, types []reflect.Type, args []any, kwargs Kwargs) ([]tensor.Value, error) {
	logger := m.Logger
	if logger == nil {
		logger = slog.Default()
	}
	logger.Info("dispatch",
		"op", op.Name,
		"args", len(args),
		"kwargs", len(kwargs),
		"subclass_types", len(types),
	)
	return ctx.Call(op.Name, args, kwargs)
}
