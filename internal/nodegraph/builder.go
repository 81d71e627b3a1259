package nodegraph

import (
	"fmt"

	"github.com/gyaneshwarpardhi/nodegraph/internal/condition"
	"github.com/gyaneshwarpardhi/nodegraph/internal/config"
)

// Builder assembles a Graph programmatically. It checks names and rules but
// not connection endpoints: a connection to a port that does not exist is
// kept and surfaces when the graph is traversed.
//
// The first error sticks; Build reports it.
type Builder struct {
	g   *Graph
	err error
}

// NewBuilder returns an empty Builder.
func NewBuilder() *Builder {
	return &Builder{g: &Graph{
		records: make(map[string]*record),
		links:   make(map[PortRef]PortRef),
		vars:    make(map[string]interface{}),
	}}
}

// AddNode declares a plain node.
func (b *Builder) AddNode(name, typ string, inputs, outputs []string) *Builder {
	return b.add(&record{name: name, typ: typ, inputs: inputs, outputs: outputs})
}

// AddGroup declares a group node. Its children are ordinary nodes wired to
// its internal faces ("name.@port").
func (b *Builder) AddGroup(name, typ string, inputs, outputs []string) *Builder {
	return b.add(&record{name: name, typ: typ, group: true, inputs: inputs, outputs: outputs})
}

func (b *Builder) add(r *record) *Builder {
	if b.err != nil || b.g == nil {
		return b
	}
	if r.name == "" {
		b.err = fmt.Errorf("node name is required")
		return b
	}
	if _, dup := b.g.records[r.name]; dup {
		b.err = fmt.Errorf("duplicate node %q", r.name)
		return b
	}
	b.g.records[r.name] = r
	b.g.order = append(b.g.order, r.name)
	return b
}

// Connect links a source endpoint to a destination endpoint, both written
// "node.port" or "group.@port".
func (b *Builder) Connect(from, to string) *Builder {
	if b.err != nil || b.g == nil {
		return b
	}
	src, err := config.ParseEndpoint(from)
	if err != nil {
		b.err = err
		return b
	}
	dst, err := config.ParseEndpoint(to)
	if err != nil {
		b.err = err
		return b
	}
	srcRef := PortRef{Node: src.Node, Kind: Output, Name: src.Port}
	if src.Internal {
		srcRef.Kind = Entry
	}
	dstRef := PortRef{Node: dst.Node, Kind: Input, Name: dst.Port}
	if dst.Internal {
		dstRef.Kind = Return
	}
	if prev, dup := b.g.links[dstRef]; dup {
		b.err = fmt.Errorf("%s already fed by %s", dstRef, prev)
		return b
	}
	b.g.links[dstRef] = srcRef
	return b
}

// SetActive pins a node's activation marker.
func (b *Builder) SetActive(name string, active bool) *Builder {
	if r := b.record(name); r != nil {
		r.active = &active
		r.rule = nil
	}
	return b
}

// SetActiveWhen makes a node's activation marker follow a rule evaluated
// against the graph-state variables.
func (b *Builder) SetActiveWhen(name, rule string) *Builder {
	r := b.record(name)
	if r == nil {
		return b
	}
	expr, err := condition.Parse(rule)
	if err != nil {
		b.err = fmt.Errorf("node %s: active_when %q: %w", name, rule, err)
		return b
	}
	r.rule = expr
	r.active = nil
	return b
}

// Variables sets graph-state variables.
func (b *Builder) Variables(vars map[string]interface{}) *Builder {
	if b.g == nil {
		return b
	}
	for k, v := range vars {
		b.g.vars[k] = v
	}
	return b
}

func (b *Builder) record(name string) *record {
	if b.err != nil || b.g == nil {
		return nil
	}
	r, ok := b.g.records[name]
	if !ok {
		b.err = fmt.Errorf("unknown node %q", name)
		return nil
	}
	return r
}

// Build returns the assembled snapshot with activation evaluated.
func (b *Builder) Build() (*Graph, error) {
	if b.err != nil {
		return nil, b.err
	}
	if b.g == nil {
		return nil, fmt.Errorf("builder already built")
	}
	g := b.g
	b.g = nil
	g.evaluate()
	return g, nil
}

// Build constructs a Graph from a validated scene document. Every activation
// rule is compiled here; evaluation never parses.
func Build(sc *config.Scene) (*Graph, error) {
	b := NewBuilder().Variables(sc.Variables)
	addNodes(b, sc.Nodes)
	if b.err != nil {
		return nil, b.err
	}
	for i, c := range sc.Connections {
		if b.Connect(c.From, c.To); b.err != nil {
			return nil, fmt.Errorf("connections[%d]: %w", i, b.err)
		}
	}
	return b.Build()
}

func addNodes(b *Builder, defs []config.NodeDef) {
	for _, d := range defs {
		if d.IsGroup() {
			b.AddGroup(d.Name, d.Type, d.Inputs, d.Outputs)
		} else {
			b.AddNode(d.Name, d.Type, d.Inputs, d.Outputs)
		}
		switch {
		case d.ActiveWhen != "":
			b.SetActiveWhen(d.Name, d.ActiveWhen)
		case d.Active != nil:
			b.SetActive(d.Name, *d.Active)
		}
		addNodes(b, d.Children)
	}
}
