// Package proxy provides a tracing mode: every operator dispatched while
// the mode occupies the proxy-tracing slot is recorded as a graph node,
// then forwarded so the program still computes real results.
//
// Values are identified by stable ids assigned on first sight, so the
// recorded graph preserves data flow between operations.
package proxy

import (
	"fmt"
	"reflect"
	"strings"

	"github.com/google/uuid"

	"github.com/spindle-ml/spindle/internal/dispatch"
	"github.com/spindle-ml/spindle/internal/schema"
	"github.com/spindle-ml/spindle/internal/tensor"
)

// Node is one recorded operator invocation.
type Node struct {
	ID      string
	Op      string
	Inputs  []string // Value ids of tensor operands, in argument order.
	Outputs []string // Value ids of the results.
}

// Graph is an ordered trace of operator invocations.
type Graph struct {
	Nodes []Node
}

// Ops returns the operator names in trace order.
func (g *Graph) Ops() []string {
	ops := make([]string, len(g.Nodes))
	for i, n := range g.Nodes {
		ops[i] = n.Op
	}
	return ops
}

// String renders the trace one node per line.
func (g *Graph) String() string {
	var b strings.Builder
	for _, n := range g.Nodes {
		fmt.Fprintf(&b, "%s = %s(%s)\n", strings.Join(n.Outputs, ", "), n.Op, strings.Join(n.Inputs, ", "))
	}
	return b.String()
}

// Mode records every dispatched operator into a Graph and redispatches it
// for real execution.
type Mode struct {
	graph *Graph
	ids   map[tensor.Value]string
	next  int
}

// New creates a tracing mode with an empty graph.
func New() *Mode {
	return &Mode{
		graph: &Graph{},
		ids:   make(map[tensor.Value]string),
	}
}

// Graph returns the trace recorded so far.
func (m *Mode) Graph() *Graph {
	return m.graph
}

// Trace runs body with a fresh tracing mode in the proxy-tracing slot and
// returns the recorded graph.
func Trace(ctx *dispatch.Context, body func() error) (*Graph, error) {
	m := New()
	if err := ctx.WithKeyedMode(dispatch.KeyProxy, m, body); err != nil {
		return nil, err
	}
	return m.Graph(), nil
}

// Dispatch records the call and forwards it below this mode.
func (m *Mode) Dispatch(ctx *dispatch.Context, op *schema.Schema, types []reflect.Type, args []any, kwargs dispatch.Kwargs) ([]tensor.Value, error) {
	outs, err := ctx.Call(op.Name, args, kwargs)
	if err != nil {
		return nil, err
	}

	node := Node{ID: uuid.NewString(), Op: op.Name}
	for _, a := range args {
		if v, ok := a.(tensor.Value); ok {
			node.Inputs = append(node.Inputs, m.idFor(v))
		}
	}
	for _, o := range outs {
		node.Outputs = append(node.Outputs, m.idFor(o))
	}
	m.graph.Nodes = append(m.graph.Nodes, node)
	return outs, nil
}

// idFor returns the stable id for v, assigning one on first sight. Ids
// are short value names; node identifiers use uuids.
func (m *Mode) idFor(v tensor.Value) string {
	if id, ok := m.ids[v]; ok {
		return id
	}
	id := fmt.Sprintf("v%d", m.next)
	m.next++
	m.ids[v] = id
	return id
}
