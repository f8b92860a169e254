package dispatch

import (
	"fmt"

	"github.com/spindle-ml/spindle/internal/tensor"
)

// Wrapper is the structural decomposition protocol for tensor subclasses
// that wrap inner tensors. Flatten exposes the inner tensor-like values
// plus opaque metadata; Unflatten rebuilds an equivalent wrapper from
// transformed inners and that same metadata. The round trip must
// preserve shape, dtype and device.
type Wrapper interface {
	tensor.Value

	// Flatten returns the wrapped inner values and the metadata needed to
	// reconstruct the wrapper. The metadata is opaque to the dispatcher.
	Flatten() ([]tensor.Value, any)

	// Unflatten rebuilds a wrapper of the receiver's kind around inners,
	// using metadata previously produced by Flatten.
	Unflatten(inners []tensor.Value, meta any) (tensor.Value, error)
}

// IsWrapper reports whether v participates in the wrapper-subclass
// protocol. Dense tensors do not.
func IsWrapper(v tensor.Value) bool {
	_, ok := v.(Wrapper)
	return ok
}

// TransformLeaves rebuilds v with every dense leaf replaced by fn's
// result, recursing through nested wrappers. The wrapper structure and
// metadata are preserved; only the leaves change.
//
// v must be a wrapper; passing a dense tensor or an unknown tensor-like
// value fails with NotWrapperSubclassError. Non-tensor leaves inside a
// wrapper (if its Flatten exposes any) pass through untouched.
func TransformLeaves(v tensor.Value, fn func(*tensor.RawTensor) (tensor.Value, error)) (tensor.Value, error) {
	w, ok := v.(Wrapper)
	if !ok {
		return nil, &NotWrapperSubclassError{TypeName: fmt.Sprintf("%T", v)}
	}
	inners, meta := w.Flatten()
	transformed := make([]tensor.Value, len(inners))
	for i, inner := range inners {
		switch leaf := inner.(type) {
		case *tensor.RawTensor:
			out, err := fn(leaf)
			if err != nil {
				return nil, err
			}
			transformed[i] = out
		case Wrapper:
			out, err := TransformLeaves(leaf, fn)
			if err != nil {
				return nil, err
			}
			transformed[i] = out
		default:
			transformed[i] = inner
		}
	}
	return w.Unflatten(transformed, meta)
}
