package dispatch

// CurrentMode returns the interceptor the next operator call will hit, in
// priority order: top of the untagged stack, then the proxy-tracing slot,
// then the fake-execution slot. Returns nil when no interceptor is active,
// meaning the default dense implementation handles the call.
//
// This is a pure read over mode-stack state.
func (c *Context) CurrentMode() Mode {
	if m := c.user.peek(); m != nil {
		return m
	}
	if m := c.CurrentKeyed(KeyProxy); m != nil {
		return m
	}
	return c.CurrentKeyed(KeyFake)
}

// ModeChain returns every active interceptor across all three sources:
// untagged-stack entries first in push order, then the proxy occupant,
// then the fake occupant. Intended for introspection and debugging; it
// does not affect dispatch outcome.
func (c *Context) ModeChain() []Mode {
	chain := make([]Mode, 0, c.user.size()+2)
	for i := 0; i < c.user.size(); i++ {
		chain = append(chain, c.user.at(i))
	}
	if m := c.CurrentKeyed(KeyProxy); m != nil {
		chain = append(chain, m)
	}
	if m := c.CurrentKeyed(KeyFake); m != nil {
		chain = append(chain, m)
	}
	return chain
}
