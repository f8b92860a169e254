// Copyright 2025 Spindle ML Framework. All rights reserved.
// Use of this source code is governed by an Apache 2.0
// license that can be found in the LICENSE file.

package cpu

import (
	internalcpu "github.com/spindle-ml/spindle/internal/backend/cpu"
)

// Backend is the dense CPU implementation of the builtin operator set.
//
// Operations are pure Go, parallelized across goroutines for large
// tensors.
type Backend = internalcpu.Backend

// New creates a new CPU backend.
//
// Example:
//
//	import (
//	    "github.com/spindle-ml/spindle/backend/cpu"
//	    "github.com/spindle-ml/spindle/dispatch"
//	)
//
//	func main() {
//	    ctx := dispatch.NewWith(dispatch.DefaultOps(), dispatch.DefaultKernels(cpu.New()))
//	    _ = ctx
//	}
func New() *Backend {
	return internalcpu.New()
}
