// Copyright 2025 Spindle ML Framework. All rights reserved.
// Use of this source code is governed by an Apache 2.0
// license that can be found in the LICENSE file.

// Package cpu provides the public handle on Spindle's dense CPU backend.
//
// The CPU backend is the default executor behind operator dispatch: it
// handles every call no interception mode or wrapper subclass claims.
package cpu
