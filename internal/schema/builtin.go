package schema

// builtinSchemas is the static operator table the dense backend implements.
// Alias annotations follow the compact form documented in the package doc.
var builtinSchemas = []string{
	// Element-wise binary ops.
	"add(self, other) -> _",
	"add_(self(a!), other) -> (a!)",
	"sub(self, other) -> _",
	"sub_(self(a!), other) -> (a!)",
	"mul(self, other) -> _",
	"mul_(self(a!), other) -> (a!)",
	"div(self, other) -> _",
	"div_(self(a!), other) -> (a!)",

	// Fill and copy.
	"fill_(self(a!), value) -> (a!)",
	"zero_(self(a!)) -> (a!)",
	"copy_(self(a!), src) -> (a!)",

	// Views and reshapes.
	"view(self(a), size) -> (a)",
	"detach(self(a)) -> (a)",
	"reshape(self, size) -> _",
	"transpose(self, dim0, dim1) -> _",

	// Creation-like ops.
	"clone(self) -> _",
	"zeros_like(self) -> _",
	"ones_like(self) -> _",
	"empty_like(self) -> _",

	// Multi-output splitting ops. The list-return slot cannot carry alias
	// annotations in the schema format, so the aliasing engine keys these
	// off MultiOutputViewOps instead.
	"chunk(self(a), chunks, dim) -> []",
	"split(self(a), size, dim) -> []",
	"split_with_sizes(self(a), sizes, dim) -> []",
	"tensor_split(self(a), sections, dim) -> []",
	"hsplit(self(a), sections) -> []",
	"vsplit(self(a), sections) -> []",
	"dsplit(self(a), sections) -> []",
	"unbind(self(a), dim) -> []",
}

// MultiOutputViewOps is the finite exception table of splitting operators
// whose every output aliases the single first input. This is an explicit
// list, not a pattern: the schema format cannot express alias annotations
// on list returns, so these ops bypass the per-slot alias matching.
var MultiOutputViewOps = map[string]bool{
	"chunk":            true,
	"split":            true,
	"split_with_sizes": true,
	"tensor_split":     true,
	"hsplit":           true,
	"vsplit":           true,
	"dsplit":           true,
	"unbind":           true,
}

// IsMultiOutputView reports whether op is one of the splitting operators
// whose outputs all alias the first input.
func IsMultiOutputView(op string) bool {
	return MultiOutputViewOps[op]
}

func (r *Registry) registerBuiltins() {
	for _, text := range builtinSchemas {
		r.MustRegister(text)
	}
}
