package nodegraph

import (
	"fmt"
	"strings"

	"github.com/gyaneshwarpardhi/nodegraph/internal/condition"
	"github.com/gyaneshwarpardhi/nodegraph/internal/config"
)

// PortRef addresses a port inside the arena.
type PortRef struct {
	Node string
	Kind PortKind
	Name string
}

func (r PortRef) String() string {
	if r.Kind == Entry || r.Kind == Return {
		return r.Node + ".@" + r.Name
	}
	return r.Node + "." + r.Name
}

type record struct {
	name    string
	typ     string
	group   bool
	inputs  []string
	outputs []string
	active  *bool
	rule    condition.Expr
}

func (r *record) hasInput(name string) bool  { return indexOf(r.inputs, name) >= 0 }
func (r *record) hasOutput(name string) bool { return indexOf(r.outputs, name) >= 0 }

// Graph is an immutable snapshot: topology plus the activation state derived
// from one set of graph-state variables. WithVariables derives new snapshots
// that share the topology.
type Graph struct {
	records map[string]*record
	order   []string
	links   map[PortRef]PortRef // destination -> source

	vars           map[string]interface{}
	activated      map[string]bool
	activationErrs map[string]error
}

// Node returns a node by name.
func (g *Graph) Node(name string) (Node, bool) {
	n := g.node(name)
	return n, n != nil
}

// Port returns the port a ref addresses if its node declares it.
func (g *Graph) Port(ref PortRef) (Port, bool) {
	if !g.declares(ref) {
		return nil, false
	}
	return portView{g: g, ref: ref}, true
}

// Nodes returns every node in declaration order (parents before children).
func (g *Graph) Nodes() []Node {
	out := make([]Node, 0, len(g.order))
	for _, name := range g.order {
		out = append(out, g.node(name))
	}
	return out
}

// NodeCount returns the number of nodes across all scopes.
func (g *Graph) NodeCount() int { return len(g.order) }

// Variables returns a copy of the graph-state variables of this snapshot.
func (g *Graph) Variables() map[string]interface{} {
	out := make(map[string]interface{}, len(g.vars))
	for k, v := range g.vars {
		out[k] = v
	}
	return out
}

// ActivationErrors returns, per node name, the error its activation rule
// raised against this snapshot's variables. Such nodes are not activated.
func (g *Graph) ActivationErrors() map[string]error {
	out := make(map[string]error, len(g.activationErrs))
	for k, v := range g.activationErrs {
		out[k] = v
	}
	return out
}

// Resolve parses a start address, "node" or "node.port" ("node.@port" for a
// group's internal face), into a node and an optional port. A bare port name
// is looked up among outputs first, then inputs.
func (g *Graph) Resolve(addr string) (Node, Port, error) {
	if !strings.Contains(addr, ".") {
		n, ok := g.Node(addr)
		if !ok {
			return nil, nil, fmt.Errorf("node %q not found", addr)
		}
		return n, nil, nil
	}
	ep, err := config.ParseEndpoint(addr)
	if err != nil {
		return nil, nil, err
	}
	n, ok := g.Node(ep.Node)
	if !ok {
		return nil, nil, fmt.Errorf("node %q not found", ep.Node)
	}
	kinds := []PortKind{Output, Input}
	if ep.Internal {
		kinds = []PortKind{Return, Entry}
	}
	for _, k := range kinds {
		if p, ok := g.Port(PortRef{Node: ep.Node, Kind: k, Name: ep.Port}); ok {
			return n, p, nil
		}
	}
	return nil, nil, fmt.Errorf("node %q has no port %q", ep.Node, ep.Port)
}

func (g *Graph) node(name string) Node {
	r, ok := g.records[name]
	if !ok {
		return nil
	}
	if r.group {
		return groupView{nodeView{g: g, name: name}}
	}
	return nodeView{g: g, name: name}
}

func (g *Graph) declares(ref PortRef) bool {
	r, ok := g.records[ref.Node]
	if !ok {
		return false
	}
	switch ref.Kind {
	case Input:
		return r.hasInput(ref.Name)
	case Output:
		return r.hasOutput(ref.Name)
	case Entry:
		return r.group && r.hasInput(ref.Name)
	case Return:
		return r.group && r.hasOutput(ref.Name)
	}
	return false
}

// -----------------------------------------------------------------------
// Views
// -----------------------------------------------------------------------

type nodeView struct {
	g    *Graph
	name string
}

func (n nodeView) Name() string      { return n.name }
func (n nodeView) Type() string      { return n.g.records[n.name].typ }
func (n nodeView) IsActivated() bool { return n.g.activated[n.name] }
func (n nodeView) String() string    { return n.name }

func (n nodeView) InputPorts() []Port  { return n.ports(Input, n.g.records[n.name].inputs) }
func (n nodeView) OutputPorts() []Port { return n.ports(Output, n.g.records[n.name].outputs) }

func (n nodeView) ports(kind PortKind, names []string) []Port {
	out := make([]Port, 0, len(names))
	for _, p := range names {
		out = append(out, portView{g: n.g, ref: PortRef{Node: n.name, Kind: kind, Name: p}})
	}
	return out
}

type groupView struct {
	nodeView
}

func (n groupView) ReturnPortFor(output string) Port {
	if !n.g.records[n.name].hasOutput(output) {
		return nil
	}
	return portView{g: n.g, ref: PortRef{Node: n.name, Kind: Return, Name: output}}
}

func (n groupView) EntryPortFor(input string) Port {
	if !n.g.records[n.name].hasInput(input) {
		return nil
	}
	return portView{g: n.g, ref: PortRef{Node: n.name, Kind: Entry, Name: input}}
}

type portView struct {
	g   *Graph
	ref PortRef
}

func (p portView) Node() Node     { return p.g.node(p.ref.Node) }
func (p portView) Name() string   { return p.ref.Name }
func (p portView) Kind() PortKind { return p.ref.Kind }
func (p portView) String() string { return p.ref.String() }
func (p portView) Ref() PortRef   { return p.ref }

func (p portView) ConnectedSource() Port {
	if p.ref.Kind.IsSource() {
		return nil
	}
	src, ok := p.g.links[p.ref]
	if !ok {
		return nil
	}
	return portView{g: p.g, ref: src}
}

func indexOf(list []string, s string) int {
	for i, v := range list {
		if v == s {
			return i
		}
	}
	return -1
}
