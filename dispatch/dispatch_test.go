package dispatch_test

import (
	"errors"
	"testing"

	"github.com/spindle-ml/spindle/dispatch"
	"github.com/spindle-ml/spindle/tensor"
)

func TestPublicCall(t *testing.T) {
	ctx := dispatch.New()
	x, err := tensor.FromSlice([]float32{1, 2, 3}, tensor.Shape{3}, tensor.CPU)
	if err != nil {
		t.Fatalf("FromSlice: %v", err)
	}
	y, err := tensor.FromSlice([]float32{10, 20, 30}, tensor.Shape{3}, tensor.CPU)
	if err != nil {
		t.Fatalf("FromSlice: %v", err)
	}

	outs, err := ctx.Call("add", []any{x, y}, nil)
	if err != nil {
		t.Fatalf("Call: %v", err)
	}
	got := outs[0].(*tensor.RawTensor).AsFloat32()
	for i, want := range []float32{11, 22, 33} {
		if got[i] != want {
			t.Errorf("out[%d] = %v, want %v", i, got[i], want)
		}
	}
}

func TestPublicModeStack(t *testing.T) {
	ctx := dispatch.New()
	x := tensor.Ones(tensor.Shape{2}, tensor.Float32, tensor.CPU)

	err := ctx.WithMode(dispatch.PassthroughMode{}, func() error {
		outs, err := ctx.Call("mul", []any{x, x}, nil)
		if err != nil {
			return err
		}
		got := outs[0].(*tensor.RawTensor).AsFloat32()
		if got[0] != 1 {
			t.Errorf("mul under passthrough = %v, want 1", got[0])
		}
		return nil
	})
	if err != nil {
		t.Fatalf("WithMode: %v", err)
	}

	if _, err := ctx.Pop(); err == nil {
		t.Error("Pop on an empty stack must fail")
	} else {
		var empty *dispatch.EmptyStackError
		if !errors.As(err, &empty) {
			t.Errorf("Pop error = %T, want *EmptyStackError", err)
		}
	}
}

func TestPublicKeyedSlots(t *testing.T) {
	ctx := dispatch.New()

	m := dispatch.PassthroughMode{}
	if err := ctx.PushKeyed(dispatch.KeyProxy, m); err != nil {
		t.Fatalf("PushKeyed: %v", err)
	}
	if err := ctx.PushKeyed(dispatch.KeyProxy, m); err == nil {
		t.Error("second PushKeyed on an occupied slot must fail")
	} else {
		var occupied *dispatch.SlotOccupiedError
		if !errors.As(err, &occupied) {
			t.Errorf("PushKeyed error = %T, want *SlotOccupiedError", err)
		}
	}
	if _, err := ctx.PopKeyed(dispatch.KeyProxy); err != nil {
		t.Fatalf("PopKeyed: %v", err)
	}
}

func TestPublicSchemaRegistry(t *testing.T) {
	sch, err := dispatch.ParseSchema("gelu(self) -> _")
	if err != nil {
		t.Fatalf("ParseSchema: %v", err)
	}
	if sch.Name != "gelu" {
		t.Errorf("Name = %q, want gelu", sch.Name)
	}

	ops := dispatch.DefaultOps()
	if err := ops.Register(sch); err != nil {
		t.Fatalf("Register: %v", err)
	}
	if _, ok := ops.Lookup("add"); !ok {
		t.Error("builtin registry must know add")
	}
}

func TestPublicIsWrapper(t *testing.T) {
	x := tensor.Zeros(tensor.Shape{2}, tensor.Float32, tensor.CPU)
	if dispatch.IsWrapper(x) {
		t.Error("a dense tensor is not a wrapper subclass")
	}
}
