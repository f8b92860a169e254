package schema

import "fmt"

// Registry maps operator names to their schemas.
//
// The registry is read-only after construction as far as the dispatcher is
// concerned: it is queried per dispatch but only mutated during setup.
type Registry struct {
	schemas map[string]*Schema
	names   []string // registration order, for deterministic listing
}

// NewRegistry creates a registry pre-populated with the builtin operator
// schemas.
func NewRegistry() *Registry {
	r := &Registry{
		schemas: make(map[string]*Schema),
	}
	r.registerBuiltins()
	return r
}

// Register adds a schema. Registering the same operator name twice is an
// error; schemas are immutable once published.
func (r *Registry) Register(s *Schema) error {
	if err := s.Validate(); err != nil {
		return err
	}
	if _, exists := r.schemas[s.Name]; exists {
		return fmt.Errorf("schema registry: operator %q already registered", s.Name)
	}
	r.schemas[s.Name] = s
	r.names = append(r.names, s.Name)
	return nil
}

// MustRegister parses and registers schema text, panicking on error.
// Intended for the static builtin table.
func (r *Registry) MustRegister(text string) {
	if err := r.Register(MustParse(text)); err != nil {
		panic(err)
	}
}

// Lookup returns the schema for an operator name.
func (r *Registry) Lookup(name string) (*Schema, bool) {
	s, ok := r.schemas[name]
	return s, ok
}

// Ops returns all registered operator names in registration order.
func (r *Registry) Ops() []string {
	out := make([]string, len(r.names))
	copy(out, r.names)
	return out
}
