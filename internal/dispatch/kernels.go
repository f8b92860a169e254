package dispatch

import (
	"fmt"

	"github.com/spindle-ml/spindle/internal/backend/cpu"
	"github.com/spindle-ml/spindle/internal/schema"
	"github.com/spindle-ml/spindle/internal/tensor"
)

// Kernel executes one operator on dense tensors. Kernels sit at the bottom
// of the routing order: they run only after every interceptor has either
// redispatched or been exhausted.
type Kernel func(ctx *Context, sch *schema.Schema, args []any, kwargs Kwargs) ([]tensor.Value, error)

// Kernels maps operator names to their dense implementations.
type Kernels struct {
	handlers map[string]Kernel
}

// NewKernels creates an empty kernel table.
func NewKernels() *Kernels {
	return &Kernels{handlers: make(map[string]Kernel)}
}

// Register adds or replaces the kernel for an operator.
func (k *Kernels) Register(op string, kernel Kernel) {
	k.handlers[op] = kernel
}

// Get returns the kernel for an operator.
func (k *Kernels) Get(op string) (Kernel, bool) {
	h, ok := k.handlers[op]
	return h, ok
}

// SupportedOps returns the operators with a registered kernel.
func (k *Kernels) SupportedOps() []string {
	ops := make([]string, 0, len(k.handlers))
	for op := range k.handlers {
		ops = append(ops, op)
	}
	return ops
}

// DefaultKernels builds the kernel table for the builtin operator set,
// backed by the dense CPU backend.
func DefaultKernels(b *cpu.Backend) *Kernels {
	k := NewKernels()

	k.Register("add", binaryKernel(b.Add))
	k.Register("sub", binaryKernel(b.Sub))
	k.Register("mul", binaryKernel(b.Mul))
	k.Register("div", binaryKernel(b.Div))
	k.Register("add_", binaryKernel(b.AddInplace))
	k.Register("sub_", binaryKernel(b.SubInplace))
	k.Register("mul_", binaryKernel(b.MulInplace))
	k.Register("div_", binaryKernel(b.DivInplace))

	k.Register("fill_", func(ctx *Context, sch *schema.Schema, args []any, kwargs Kwargs) ([]tensor.Value, error) {
		x, err := argTensor(args, 0, "self")
		if err != nil {
			return nil, err
		}
		value, err := argFloat(args, 1, "value")
		if err != nil {
			return nil, err
		}
		return one(b.Fill(x, value)), nil
	})
	k.Register("zero_", unaryKernel(b.Zero))
	k.Register("copy_", binaryKernel(b.Copy))

	k.Register("view", func(ctx *Context, sch *schema.Schema, args []any, kwargs Kwargs) ([]tensor.Value, error) {
		x, err := argTensor(args, 0, "self")
		if err != nil {
			return nil, err
		}
		size, err := argShape(args, 1, "size")
		if err != nil {
			return nil, err
		}
		out, err := x.View(size)
		if err != nil {
			return nil, err
		}
		return one(out), nil
	})
	k.Register("detach", func(ctx *Context, sch *schema.Schema, args []any, kwargs Kwargs) ([]tensor.Value, error) {
		x, err := argTensor(args, 0, "self")
		if err != nil {
			return nil, err
		}
		out, err := x.View(x.Shape().Clone())
		if err != nil {
			return nil, err
		}
		return one(out), nil
	})
	k.Register("reshape", func(ctx *Context, sch *schema.Schema, args []any, kwargs Kwargs) ([]tensor.Value, error) {
		x, err := argTensor(args, 0, "self")
		if err != nil {
			return nil, err
		}
		size, err := argShape(args, 1, "size")
		if err != nil {
			return nil, err
		}
		return one(b.Reshape(x, size)), nil
	})
	k.Register("transpose", func(ctx *Context, sch *schema.Schema, args []any, kwargs Kwargs) ([]tensor.Value, error) {
		x, err := argTensor(args, 0, "self")
		if err != nil {
			return nil, err
		}
		dim0, err := argInt(args, 1, "dim0")
		if err != nil {
			return nil, err
		}
		dim1, err := argInt(args, 2, "dim1")
		if err != nil {
			return nil, err
		}
		return one(b.Transpose(x, dim0, dim1)), nil
	})

	k.Register("clone", unaryKernel(b.CloneData))
	k.Register("zeros_like", unaryKernel(func(x *tensor.RawTensor) *tensor.RawTensor { return tensor.ZerosLike(x) }))
	k.Register("ones_like", unaryKernel(func(x *tensor.RawTensor) *tensor.RawTensor { return tensor.OnesLike(x) }))
	k.Register("empty_like", unaryKernel(func(x *tensor.RawTensor) *tensor.RawTensor { return tensor.EmptyLike(x) }))

	k.Register("chunk", splitIntIntKernel(b.Chunk))
	k.Register("split", splitIntIntKernel(b.Split))
	k.Register("split_with_sizes", func(ctx *Context, sch *schema.Schema, args []any, kwargs Kwargs) ([]tensor.Value, error) {
		x, err := argTensor(args, 0, "self")
		if err != nil {
			return nil, err
		}
		sizes, err := argInts(args, 1, "sizes")
		if err != nil {
			return nil, err
		}
		dim, err := argInt(args, 2, "dim")
		if err != nil {
			return nil, err
		}
		return many(b.SplitWithSizes(x, sizes, dim)), nil
	})
	k.Register("tensor_split", splitIntIntKernel(b.TensorSplit))
	k.Register("hsplit", splitIntKernel(b.Hsplit))
	k.Register("vsplit", splitIntKernel(b.Vsplit))
	k.Register("dsplit", splitIntKernel(b.Dsplit))
	k.Register("unbind", splitIntKernel(b.Unbind))

	return k
}

func unaryKernel(f func(x *tensor.RawTensor) *tensor.RawTensor) Kernel {
	return func(ctx *Context, sch *schema.Schema, args []any, kwargs Kwargs) ([]tensor.Value, error) {
		x, err := argTensor(args, 0, sch.Args[0].Name)
		if err != nil {
			return nil, err
		}
		return one(f(x)), nil
	}
}

func binaryKernel(f func(x, y *tensor.RawTensor) *tensor.RawTensor) Kernel {
	return func(ctx *Context, sch *schema.Schema, args []any, kwargs Kwargs) ([]tensor.Value, error) {
		x, err := argTensor(args, 0, sch.Args[0].Name)
		if err != nil {
			return nil, err
		}
		y, err := argTensor(args, 1, sch.Args[1].Name)
		if err != nil {
			return nil, err
		}
		return one(f(x, y)), nil
	}
}

func splitIntKernel(f func(x *tensor.RawTensor, n int) []*tensor.RawTensor) Kernel {
	return func(ctx *Context, sch *schema.Schema, args []any, kwargs Kwargs) ([]tensor.Value, error) {
		x, err := argTensor(args, 0, sch.Args[0].Name)
		if err != nil {
			return nil, err
		}
		n, err := argInt(args, 1, sch.Args[1].Name)
		if err != nil {
			return nil, err
		}
		return many(f(x, n)), nil
	}
}

func splitIntIntKernel(f func(x *tensor.RawTensor, n, dim int) []*tensor.RawTensor) Kernel {
	return func(ctx *Context, sch *schema.Schema, args []any, kwargs Kwargs) ([]tensor.Value, error) {
		x, err := argTensor(args, 0, sch.Args[0].Name)
		if err != nil {
			return nil, err
		}
		n, err := argInt(args, 1, sch.Args[1].Name)
		if err != nil {
			return nil, err
		}
		dim, err := argInt(args, 2, sch.Args[2].Name)
		if err != nil {
			return nil, err
		}
		return many(f(x, n, dim)), nil
	}
}

func one(x *tensor.RawTensor) []tensor.Value {
	return []tensor.Value{x}
}

func many(xs []*tensor.RawTensor) []tensor.Value {
	outs := make([]tensor.Value, len(xs))
	for i, x := range xs {
		outs[i] = x
	}
	return outs
}

// argTensor returns the positional argument at index i as a dense tensor.
func argTensor(args []any, i int, name string) (*tensor.RawTensor, error) {
	if i >= len(args) {
		return nil, fmt.Errorf("dispatch: missing argument %q at position %d", name, i)
	}
	x, ok := args[i].(*tensor.RawTensor)
	if !ok {
		return nil, fmt.Errorf("dispatch: argument %q must be a dense tensor, got %T", name, args[i])
	}
	return x, nil
}

// argInt returns the positional argument at index i as an int.
func argInt(args []any, i int, name string) (int, error) {
	if i >= len(args) {
		return 0, fmt.Errorf("dispatch: missing argument %q at position %d", name, i)
	}
	switch v := args[i].(type) {
	case int:
		return v, nil
	case int64:
		return int(v), nil
	default:
		return 0, fmt.Errorf("dispatch: argument %q must be an int, got %T", name, args[i])
	}
}

// argInts returns the positional argument at index i as an int slice.
func argInts(args []any, i int, name string) ([]int, error) {
	if i >= len(args) {
		return nil, fmt.Errorf("dispatch: missing argument %q at position %d", name, i)
	}
	switch v := args[i].(type) {
	case []int:
		return v, nil
	case []int64:
		out := make([]int, len(v))
		for j, n := range v {
			out[j] = int(n)
		}
		return out, nil
	default:
		return nil, fmt.Errorf("dispatch: argument %q must be an int slice, got %T", name, args[i])
	}
}

// argShape returns the positional argument at index i as a tensor shape.
func argShape(args []any, i int, name string) (tensor.Shape, error) {
	if i >= len(args) {
		return nil, fmt.Errorf("dispatch: missing argument %q at position %d", name, i)
	}
	switch v := args[i].(type) {
	case tensor.Shape:
		return v, nil
	case []int:
		return tensor.Shape(v), nil
	default:
		return nil, fmt.Errorf("dispatch: argument %q must be a shape, got %T", name, args[i])
	}
}

// argFloat returns the positional argument at index i as a float64.
func argFloat(args []any, i int, name string) (float64, error) {
	if i >= len(args) {
		return 0, fmt.Errorf("dispatch: missing argument %q at position %d", name, i)
	}
	switch v := args[i].(type) {
	case float64:
		return v, nil
	case float32:
		return float64(v), nil
	case int:
		return float64(v), nil
	default:
		return 0, fmt.Errorf("dispatch: argument %q must be a number, got %T", name, args[i])
	}
}
