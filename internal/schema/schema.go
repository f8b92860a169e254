// Package schema defines declarative operator schemas for the Spindle
// dispatch substrate.
//
// A schema describes the argument and return slots of one operator,
// together with alias annotations: which slots may share storage, and
// which returns represent in-place mutations of an input. The aliasing
// engine in the dispatch package consumes this metadata to repair storage
// sharing after intercepted operator calls.
//
// Schemas are written in a compact text form:
//
//	add(self, other) -> _              plain op, fresh output
//	add_(self(a!), other) -> (a!)      in-place op mutating self
//	view(self(a), size) -> (a)         output is a read-only view of self
//	chunk(self(a), chunks, dim) -> []  variadic list return
//
// A parenthesized annotation names the slot's alias set; a trailing '!'
// marks the slot as a write (before/after mutation). Multiple alias ids
// are separated by '|'.
package schema

import (
	"fmt"
	"strings"
)

// Slot describes one argument or return position of an operator.
type Slot struct {
	Name     string   // Argument name; empty for returns.
	AliasSet []string // Alias ids this slot may share storage with.
	Write    bool     // Whether writes through this slot mutate in place.
	Variadic bool     // List-return slot (variable number of outputs).
}

// HasAlias reports whether the slot carries any alias annotation.
func (s Slot) HasAlias() bool {
	return len(s.AliasSet) > 0
}

// Aliases reports whether the alias sets of two slots intersect.
func (s Slot) Aliases(other Slot) bool {
	for _, a := range s.AliasSet {
		for _, b := range other.AliasSet {
			if a == b {
				return true
			}
		}
	}
	return false
}

// Schema is the immutable metadata for one operator.
type Schema struct {
	Name    string
	Args    []Slot
	Returns []Slot
}

// WriteAlias returns the alias id of return slot i if that slot is marked
// as a write (in-place mutation), or "" for plain and view returns.
//
// Write-marked slots carry exactly one alias id; Validate enforces this,
// so the dispatcher only ever deals with simple aliasing.
func (s *Schema) WriteAlias(i int) string {
	r := s.Returns[i]
	if !r.Write || len(r.AliasSet) == 0 {
		return ""
	}
	return r.AliasSet[0]
}

// ArgIndexForAlias returns the index of the argument slot whose alias set
// contains id, or -1 if no argument carries it.
func (s *Schema) ArgIndexForAlias(id string) int {
	for i, a := range s.Args {
		for _, aid := range a.AliasSet {
			if aid == id {
				return i
			}
		}
	}
	return -1
}

// Validate checks the structural invariants the dispatcher relies on.
func (s *Schema) Validate() error {
	if s.Name == "" {
		return fmt.Errorf("schema: empty operator name")
	}
	for i, a := range s.Args {
		if a.Name == "" {
			return fmt.Errorf("schema %s: argument %d has no name", s.Name, i)
		}
		if a.Variadic {
			return fmt.Errorf("schema %s: argument %q cannot be variadic", s.Name, a.Name)
		}
	}
	for i, r := range s.Returns {
		if r.Write && len(r.AliasSet) != 1 {
			return fmt.Errorf("schema %s: write-marked return %d must carry exactly one alias id, has %d",
				s.Name, i, len(r.AliasSet))
		}
		for _, id := range r.AliasSet {
			if s.ArgIndexForAlias(id) < 0 {
				return fmt.Errorf("schema %s: return %d references alias id %q not present on any argument",
					s.Name, i, id)
			}
		}
	}
	return nil
}

// String renders the schema back into its compact text form.
func (s *Schema) String() string {
	var b strings.Builder
	b.WriteString(s.Name)
	b.WriteByte('(')
	for i, a := range s.Args {
		if i > 0 {
			b.WriteString(", ")
		}
		b.WriteString(a.Name)
		b.WriteString(renderAnnot(a))
	}
	b.WriteString(") -> ")
	if len(s.Returns) == 0 {
		b.WriteString("()")
		return b.String()
	}
	for i, r := range s.Returns {
		if i > 0 {
			b.WriteString(", ")
		}
		switch {
		case r.Variadic:
			b.WriteString("[]")
		case !r.HasAlias():
			b.WriteString("_")
		default:
			b.WriteString("(" + strings.Join(r.AliasSet, "|") + writeSuffix(r) + ")")
		}
	}
	return b.String()
}

func renderAnnot(s Slot) string {
	if !s.HasAlias() {
		return ""
	}
	return "(" + strings.Join(s.AliasSet, "|") + writeSuffix(s) + ")"
}

func writeSuffix(s Slot) string {
	if s.Write {
		return "!"
	}
	return ""
}
