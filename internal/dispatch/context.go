package dispatch

import (
	"fmt"
	"sort"

	"github.com/spindle-ml/spindle/internal/backend/cpu"
	"github.com/spindle-ml/spindle/internal/schema"
)

// Context owns the dispatch state of one logical execution context: the
// untagged mode stack, the keyed slots, the fast-path dispatch cache, the
// operator schema registry and the default dense kernel table.
//
// A Context is not safe for concurrent use; each goroutine-confined
// execution context owns its own instance. Scoped helpers (WithMode,
// TemporarilyPop, DisableAll) enforce strict LIFO nesting and restore
// their stacks on every exit path, including errors and panics.
type Context struct {
	ops     *schema.Registry
	kernels *Kernels

	user  *modeStack
	keyed map[Key]*modeStack

	// fast caches the resolved dense kernel per operator for calls that
	// bypass the mode machinery. Entries are only valid while both
	// singleton slots stay empty; cachedOps tracks which entries a keyed
	// push must invalidate.
	fast      map[string]Kernel
	cachedOps map[Key]map[string]struct{}
}

// New creates a Context with the builtin schema registry and the default
// dense CPU kernels, and empty mode stacks.
func New() *Context {
	return NewWith(schema.NewRegistry(), DefaultKernels(cpu.New()))
}

// NewWith creates a Context with a caller-supplied schema registry and
// kernel table.
func NewWith(ops *schema.Registry, kernels *Kernels) *Context {
	return &Context{
		ops:     ops,
		kernels: kernels,
		user:    newModeStack(),
		keyed:   make(map[Key]*modeStack),
		fast:    make(map[string]Kernel),
		cachedOps: map[Key]map[string]struct{}{
			KeyProxy: make(map[string]struct{}),
			KeyFake:  make(map[string]struct{}),
		},
	}
}

// Ops returns the context's operator schema registry.
func (c *Context) Ops() *schema.Registry {
	return c.ops
}

// Kernels returns the context's dense kernel table.
func (c *Context) Kernels() *Kernels {
	return c.kernels
}

// Close verifies scope discipline at context teardown: every pushed mode
// must have been popped.
func (c *Context) Close() error {
	active := c.user.size()
	for _, s := range c.keyed {
		active += s.size()
	}
	if active > 0 {
		return fmt.Errorf("dispatch: context closed with %d mode(s) still active", active)
	}
	return nil
}

// stackFor returns the stack selected by key, creating keyed stacks on
// first use. The empty key selects the untagged stack.
func (c *Context) stackFor(key Key) *modeStack {
	if key == "" {
		return c.user
	}
	s, ok := c.keyed[key]
	if !ok {
		s = newModeStack()
		c.keyed[key] = s
	}
	return s
}

// Push appends a mode to the untagged stack.
func (c *Context) Push(m Mode) {
	c.user.push(m)
}

// PushKeyed appends a mode to the stack selected by key and invalidates
// any cached fast-path dispatch decisions made for that key: the presence
// of an active mode changes which code path subsequent calls must take.
//
// The proxy-tracing and fake-execution slots hold at most one mode;
// pushing into an occupied singleton slot fails with SlotOccupiedError.
func (c *Context) PushKeyed(key Key, m Mode) error {
	if key == "" {
		c.Push(m)
		return nil
	}
	s := c.stackFor(key)
	if key.isSingleton() && s.size() > 0 {
		return &SlotOccupiedError{Key: key}
	}
	c.invalidateFastPath(key)
	s.push(m)
	return nil
}

// Pop removes and returns the top of the untagged stack.
func (c *Context) Pop() (Mode, error) {
	m, ok := c.user.pop()
	if !ok {
		return nil, &EmptyStackError{}
	}
	return m, nil
}

// PopKeyed removes and returns the top of the stack selected by key.
func (c *Context) PopKeyed(key Key) (Mode, error) {
	if key == "" {
		return c.Pop()
	}
	m, ok := c.stackFor(key).pop()
	if !ok {
		return nil, &EmptyStackError{Key: key}
	}
	return m, nil
}

// Current returns the top of the untagged stack without removing it, or
// nil if the stack is empty.
func (c *Context) Current() Mode {
	return c.user.peek()
}

// CurrentKeyed returns the top of the stack selected by key, or nil.
func (c *Context) CurrentKeyed(key Key) Mode {
	if key == "" {
		return c.Current()
	}
	s, ok := c.keyed[key]
	if !ok {
		return nil
	}
	return s.peek()
}

// WithMode pushes m for the duration of body, popping it on every exit
// path.
func (c *Context) WithMode(m Mode, body func() error) error {
	c.Push(m)
	defer func() {
		//nolint:errcheck // the matching pop cannot fail after a push
		_, _ = c.Pop()
	}()
	return body()
}

// WithKeyedMode pushes m onto the stack selected by key for the duration
// of body, popping it on every exit path.
func (c *Context) WithKeyedMode(key Key, m Mode, body func() error) error {
	if err := c.PushKeyed(key, m); err != nil {
		return err
	}
	defer func() {
		//nolint:errcheck // the matching pop cannot fail after a push
		_, _ = c.PopKeyed(key)
	}()
	return body()
}

// TemporarilyPop removes the top untagged mode for the duration of body
// and guarantees it is pushed back on every exit path.
func (c *Context) TemporarilyPop(body func(Mode) error) error {
	m, err := c.Pop()
	if err != nil {
		return err
	}
	defer c.Push(m)
	return body(m)
}

// TemporarilyPopKeyed removes the top mode of the selected stack for the
// duration of body and guarantees it is pushed back on every exit path.
func (c *Context) TemporarilyPopKeyed(key Key, body func(Mode) error) error {
	m, err := c.PopKeyed(key)
	if err != nil {
		return err
	}
	defer func() {
		//nolint:errcheck // restoring into a slot we just emptied cannot fail
		_ = c.PushKeyed(key, m)
	}()
	return body(m)
}

// restoreEntry records one popped mode for exact restoration.
type restoreEntry struct {
	key  Key
	mode Mode
}

// DisableAll pops every mode from every stack (untagged and all keyed
// slots, including proxy-tracing and fake-execution), yields the full
// ordered snapshot to body, and restores every mode to its original stack
// and position on exit, even when body fails or panics.
//
// The snapshot is ordered like ModeChain: untagged modes in push order,
// then the proxy and fake occupants, then any remaining keyed modes.
func (c *Context) DisableAll(body func(snapshot []Mode) error) error {
	var popped []restoreEntry

	defer func() {
		// Exact restoration: push back in reverse pop order so every mode
		// returns to its original stack and position.
		for i := len(popped) - 1; i >= 0; i-- {
			e := popped[i]
			//nolint:errcheck // restoring a previous occupant cannot fail
			_ = c.PushKeyed(e.key, e.mode)
		}
	}()

	// Untagged stack, top first so restoration re-stacks bottom-up.
	for {
		m, ok := c.user.pop()
		if !ok {
			break
		}
		popped = append(popped, restoreEntry{key: "", mode: m})
	}

	for _, key := range c.keyedKeysOrdered() {
		s := c.keyed[key]
		for {
			m, ok := s.pop()
			if !ok {
				break
			}
			popped = append(popped, restoreEntry{key: key, mode: m})
		}
	}

	// Snapshot in chain order: untagged bottom-up, then keyed.
	snapshot := make([]Mode, 0, len(popped))
	for i := len(popped) - 1; i >= 0; i-- {
		if popped[i].key == "" {
			snapshot = append(snapshot, popped[i].mode)
		}
	}
	for _, e := range popped {
		if e.key != "" {
			snapshot = append(snapshot, e.mode)
		}
	}

	return body(snapshot)
}

// keyedKeysOrdered returns the keyed slot names with the two singleton
// slots first, then the rest sorted, for deterministic traversal.
func (c *Context) keyedKeysOrdered() []Key {
	keys := make([]Key, 0, len(c.keyed))
	for _, k := range []Key{KeyProxy, KeyFake} {
		if _, ok := c.keyed[k]; ok {
			keys = append(keys, k)
		}
	}
	var rest []Key
	for k := range c.keyed {
		if !k.isSingleton() {
			rest = append(rest, k)
		}
	}
	sort.Slice(rest, func(i, j int) bool { return rest[i] < rest[j] })
	return append(keys, rest...)
}

// invalidateFastPath drops every cached dispatch decision recorded under
// key.
func (c *Context) invalidateFastPath(key Key) {
	ops, ok := c.cachedOps[key]
	if !ok {
		return
	}
	for op := range ops {
		delete(c.fast, op)
		delete(ops, op)
	}
}
