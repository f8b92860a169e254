package dispatch

import "fmt"

// The dispatch error taxonomy. All of these report local invariant
// violations with no recovery path: they are never retried, and they abort
// the enclosing operator call. Scoped stack operations still restore the
// mode stack on the way out, so the stack is never left corrupted.

// EmptyStackError reports a pop beyond stack depth, a programmer error in
// scope nesting.
type EmptyStackError struct {
	Key Key // Empty for the untagged stack.
}

// Error implements the error interface.
func (e *EmptyStackError) Error() string {
	if e.Key == "" {
		return "dispatch: pop on empty untagged mode stack"
	}
	return fmt.Sprintf("dispatch: pop on empty mode stack for key %q", e.Key)
}

// SlotOccupiedError reports a push into one of the singleton keyed slots
// while it already holds a mode.
type SlotOccupiedError struct {
	Key Key
}

// Error implements the error interface.
func (e *SlotOccupiedError) Error() string {
	return fmt.Sprintf("dispatch: keyed slot %q already holds a mode", e.Key)
}

// AliasSchemaError reports an operand of an aliasing operator that does not
// support storage interception. This indicates a misbehaving wrapper
// subclass implementation, not a runtime condition.
type AliasSchemaError struct {
	Op       string // Operator identifier.
	Slot     int    // Offending slot index.
	Arg      bool   // True if the slot is an argument, false for a return.
	TypeName string // Dynamic type of the offending value.
}

// Error implements the error interface.
func (e *AliasSchemaError) Error() string {
	side := "return"
	if e.Arg {
		side = "argument"
	}
	return fmt.Sprintf("dispatch: %s: %s slot %d (%s) does not support storage interception",
		e.Op, side, e.Slot, e.TypeName)
}

// MixedAliasSchemaError reports an operator schema where some but not all
// returns carry a write marker. The aliasing engine does not support
// heterogeneous read/write return schemas.
type MixedAliasSchemaError struct {
	Op     string
	Schema string
}

// Error implements the error interface.
func (e *MixedAliasSchemaError) Error() string {
	return fmt.Sprintf("dispatch: unsupported schema with mixed write/read returns: %s", e.Schema)
}

// NotWrapperSubclassError reports a value that was expected to satisfy the
// wrapper-subclass protocol (Flatten/Unflatten) but does not.
type NotWrapperSubclassError struct {
	TypeName string
}

// Error implements the error interface.
func (e *NotWrapperSubclassError) Error() string {
	return fmt.Sprintf("dispatch: %s is not a wrapper subclass (missing Flatten/Unflatten)", e.TypeName)
}
