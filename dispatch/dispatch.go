// Copyright 2025 Spindle ML Framework. All rights reserved.
// Use of this source code is governed by an Apache 2.0
// license that can be found in the LICENSE file.

package dispatch

import (
	"github.com/spindle-ml/spindle/internal/dispatch"
	"github.com/spindle-ml/spindle/internal/schema"
)

// Type aliases for public API

// Context owns the dispatch state of one logical execution context.
// It is not safe for concurrent use.
type Context = dispatch.Context

// Mode is the interception entry point shared by stack modes and wrapper
// subclass values.
type Mode = dispatch.Mode

// Kwargs carries an operator call's keyword arguments.
type Kwargs = dispatch.Kwargs

// Key tags a mode with a dispatch category.
type Key = dispatch.Key

// The two singleton keyed slots.
const (
	KeyProxy Key = dispatch.KeyProxy
	KeyFake  Key = dispatch.KeyFake
)

// PassthroughMode forwards every operation unchanged.
type PassthroughMode = dispatch.PassthroughMode

// LogMode logs every dispatched operator and forwards it unchanged.
type LogMode = dispatch.LogMode

// Wrapper is the flatten/unflatten protocol for tensor subclasses.
type Wrapper = dispatch.Wrapper

// StorageSwapper is the storage interception contract of the aliasing
// engine.
type StorageSwapper = dispatch.StorageSwapper

// Error types.
type (
	EmptyStackError         = dispatch.EmptyStackError
	SlotOccupiedError       = dispatch.SlotOccupiedError
	AliasSchemaError        = dispatch.AliasSchemaError
	MixedAliasSchemaError   = dispatch.MixedAliasSchemaError
	NotWrapperSubclassError = dispatch.NotWrapperSubclassError
)

// Schema is the declarative metadata of one operator.
type Schema = schema.Schema

// Registry maps operator names to their schemas.
type Registry = schema.Registry

// Kernel executes one operator on dense tensors.
type Kernel = dispatch.Kernel

// Kernels maps operator names to dense implementations.
type Kernels = dispatch.Kernels

// New creates a Context with the builtin operator set and the default
// dense CPU kernels.
func New() *Context {
	return dispatch.New()
}

// NewWith creates a Context with a caller-supplied operator registry and
// kernel table.
func NewWith(ops *Registry, kernels *Kernels) *Context {
	return dispatch.NewWith(ops, kernels)
}

// DefaultOps returns a registry pre-populated with the builtin operator
// schemas.
func DefaultOps() *Registry {
	return schema.NewRegistry()
}

// DefaultKernels builds the dense kernel table for the builtin operator
// set. The backend argument comes from backend/cpu.
var DefaultKernels = dispatch.DefaultKernels

// ParseSchema parses the compact operator schema text form.
var ParseSchema = schema.Parse

// IsWrapper reports whether v participates in the wrapper-subclass
// protocol.
var IsWrapper = dispatch.IsWrapper

// TransformLeaves rebuilds a wrapper with every dense leaf transformed.
var TransformLeaves = dispatch.TransformLeaves

// CorrectStorageAliasing repairs storage sharing between args and outs
// according to the operator schema.
var CorrectStorageAliasing = dispatch.CorrectStorageAliasing

// ReturnAndCorrectAliasing repairs aliasing and resolves write-marked
// returns to the mutated inputs.
var ReturnAndCorrectAliasing = dispatch.ReturnAndCorrectAliasing
