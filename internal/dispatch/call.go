package dispatch

import (
	"fmt"
	"reflect"

	"github.com/spindle-ml/spindle/internal/schema"
	"github.com/spindle-ml/spindle/internal/tensor"
)

// Call dispatches one operator invocation.
//
// The routing order is: topmost untagged mode, then the proxy-tracing
// slot, then the fake-execution slot, then subclass dispatch if an
// argument is itself an interceptor, and finally the default dense
// kernel. While an interceptor runs it is removed from its stack, so
// operator calls it issues reach the next interceptor below it.
func (c *Context) Call(op string, args []any, kwargs Kwargs) ([]tensor.Value, error) {
	sch, ok := c.ops.Lookup(op)
	if !ok {
		return nil, fmt.Errorf("dispatch: unknown operator %q", op)
	}

	if m := c.user.peek(); m != nil {
		return c.runIntercepted("", m, sch, args, kwargs)
	}
	if m := c.CurrentKeyed(KeyProxy); m != nil {
		return c.runIntercepted(KeyProxy, m, sch, args, kwargs)
	}
	if m := c.CurrentKeyed(KeyFake); m != nil {
		return c.runIntercepted(KeyFake, m, sch, args, kwargs)
	}

	// Subclass dispatch: with no mode active, a call whose arguments
	// contain a wrapper subclass routes to the subclass itself.
	if d := interceptorArg(args); d != nil {
		return d.Dispatch(c, sch, participatingTypes(args), args, kwargs)
	}

	kernel, err := c.kernelFor(sch)
	if err != nil {
		return nil, err
	}
	return kernel(c, sch, args, kwargs)
}

// runIntercepted invokes m with itself temporarily removed from its stack.
func (c *Context) runIntercepted(key Key, m Mode, sch *schema.Schema, args []any, kwargs Kwargs) ([]tensor.Value, error) {
	var outs []tensor.Value
	run := func(Mode) error {
		var err error
		outs, err = m.Dispatch(c, sch, participatingTypes(args), args, kwargs)
		return err
	}

	var err error
	if key == "" {
		err = c.TemporarilyPop(run)
	} else {
		err = c.TemporarilyPopKeyed(key, run)
	}
	if err != nil {
		return nil, err
	}
	return outs, nil
}

// kernelFor resolves the dense kernel for sch, caching the decision on the
// fast path. The cached decision assumes both singleton slots stay empty;
// PushKeyed invalidates it.
func (c *Context) kernelFor(sch *schema.Schema) (Kernel, error) {
	if k, ok := c.fast[sch.Name]; ok {
		return k, nil
	}
	k, ok := c.kernels.Get(sch.Name)
	if !ok {
		return nil, fmt.Errorf("dispatch: no dense kernel registered for %q", sch.Name)
	}
	c.fast[sch.Name] = k
	c.cachedOps[KeyProxy][sch.Name] = struct{}{}
	c.cachedOps[KeyFake][sch.Name] = struct{}{}
	return k, nil
}

// interceptorArg returns the first argument that is both a tensor-like
// value and an interceptor, or nil.
func interceptorArg(args []any) Mode {
	for _, a := range args {
		if _, isValue := a.(tensor.Value); !isValue {
			continue
		}
		if d, ok := a.(Mode); ok {
			return d
		}
	}
	return nil
}

// participatingTypes collects the distinct dynamic types of the
// wrapper-subclass values participating in the call. Dense leaves do not
// participate: only non-RawTensor tensor-like arguments count.
func participatingTypes(args []any) []reflect.Type {
	var types []reflect.Type
	seen := make(map[reflect.Type]bool)
	for _, a := range args {
		v, ok := a.(tensor.Value)
		if !ok {
			continue
		}
		if _, dense := v.(*tensor.RawTensor); dense {
			continue
		}
		t := reflect.TypeOf(v)
		if !seen[t] {
			seen[t] = true
			types = append(types, t)
		}
	}
	return types
}
