// Copyright 2025 Spindle ML Framework. All rights reserved.
// Use of this source code is governed by an Apache 2.0
// license that can be found in the LICENSE file.

// Package dispatch is the public API of Spindle's operator interception
// substrate: mode stacks, the dispatch router, the alias/mutation
// correctness engine and the wrapper-subclass protocol.
//
// # Basic Usage
//
//	import (
//	    "github.com/spindle-ml/spindle/dispatch"
//	    "github.com/spindle-ml/spindle/tensor"
//	)
//
//	func main() {
//	    ctx := dispatch.New()
//	    x := tensor.Ones(tensor.Shape{2}, tensor.Float32, tensor.CPU)
//	    y := tensor.Ones(tensor.Shape{2}, tensor.Float32, tensor.CPU)
//
//	    _ = ctx.WithMode(&dispatch.LogMode{}, func() error {
//	        outs, err := ctx.Call("add", []any{x, y}, nil)
//	        _ = outs
//	        return err
//	    })
//	}
//
// A pushed mode sees every operator call issued while it is active.
// Wrapper subclass values intercept only the calls they participate in;
// handlers that redispatch on unwrapped tensors use
// ReturnAndCorrectAliasing to restore view and mutation semantics.
package dispatch
