// Package traverse finds the nodes that feed a starting point of a node
// graph, walking connections upstream through nested group scopes.
//
// The walk is depth first and fully explores the first upstream branch of a
// node, down to its roots, before the next one, in declared input order. Each
// node is listed once. With logical-only settings, connections from nodes
// without the activation marker are not followed.
//
// Groups are entered through the internal return port matching the output
// they were reached by, walked with the group as the enclosing scope, and
// left again when the walk arrives back at the group's entry ports; the
// group's own inputs are then followed like those of any node. Group types
// listed in Settings.ExcludedGroupTypes are treated as plain nodes.
package traverse

import (
	"fmt"

	"github.com/gyaneshwarpardhi/nodegraph/internal/nodegraph"
)

// Start is where a traversal begins: a node, optionally narrowed to one of
// its ports.
type Start struct {
	Node nodegraph.Node
	Port nodegraph.Port
}

// FromNode starts at n with no port context.
func FromNode(n nodegraph.Node) Start { return Start{Node: n} }

// FromPort starts at p on its owning node.
func FromPort(p nodegraph.Port) Start { return Start{Node: p.Node(), Port: p} }

func (s Start) String() string {
	if s.Node == nil {
		return "<nil>"
	}
	if s.Port == nil {
		return s.Node.Name()
	}
	return s.Node.Name() + "." + s.Port.Name()
}

// UpstreamNodes returns the nodes upstream of start in visit order, start
// included. The graph is only read. Any error aborts the call; there is no
// partial result.
func UpstreamNodes(start Start, settings Settings) ([]nodegraph.Node, error) {
	if start.Node == nil {
		return nil, &UnsupportedGraphShapeError{Reason: "no start node"}
	}
	if start.Port != nil && start.Port.Node() != start.Node {
		return nil, &GraphConsistencyError{
			Node:   start.Node.Name(),
			Port:   start.Port.Name(),
			Reason: "start port does not belong to the start node",
		}
	}
	if settings.maxDepth <= 0 {
		return nil, &ConfigurationError{Key: KeyMaxDepth, Reason: "settings were not initialised"}
	}
	w := &walker{
		settings: settings,
		visited:  make(map[nodegraph.Node]bool),
		entered:  make(map[nodegraph.Port]bool),
		expanded: make(map[nodegraph.Node]bool),
	}
	if err := w.walk(start.Node, start.Port, nil, 0); err != nil {
		return nil, err
	}
	return w.buffer, nil
}

// walker is the state of one UpstreamNodes call.
type walker struct {
	settings Settings
	buffer   []nodegraph.Node
	visited  map[nodegraph.Node]bool
	entered  map[nodegraph.Port]bool // return ports already descended
	expanded map[nodegraph.Node]bool // groups whose own inputs were followed
}

func (w *walker) add(n nodegraph.Node) {
	if !w.visited[n] {
		w.visited[n] = true
		w.buffer = append(w.buffer, n)
	}
}

// admits applies the logical filter to a connection whose source is src.
func (w *walker) admits(src nodegraph.Port) bool {
	return !w.settings.logicalOnly || src.Node().IsActivated()
}

func (w *walker) walk(n nodegraph.Node, p nodegraph.Port, sc *scope, depth int) error {
	if depth > w.settings.maxDepth {
		return &GraphTooDeepError{Limit: w.settings.maxDepth, Node: n.Name()}
	}

	switch classify(n, p, sc, w.settings) {
	case exit:
		// The group's upstream belongs to whoever entered it.
		if w.settings.includeGroups {
			w.add(n)
		}
		return nil

	case enter:
		return w.enter(n.(nodegraph.GroupNode), p, sc, depth)

	case leave:
		return w.leave(n.(nodegraph.GroupNode), p, sc, depth)
	}

	if w.visited[n] {
		return nil
	}
	w.add(n)
	return w.expand(n, sc, depth)
}

// expand follows every upstream port of n in resolver order.
func (w *walker) expand(n nodegraph.Node, sc *scope, depth int) error {
	ports, err := UpstreamPorts(n, w.settings.logicalOnly)
	if err != nil {
		return err
	}
	for _, src := range ports {
		if err := w.walk(src.Node(), src, sc, depth+1); err != nil {
			return err
		}
	}
	return nil
}

func (w *walker) enter(g nodegraph.GroupNode, p nodegraph.Port, sc *scope, depth int) error {
	if p == nil {
		outs := g.OutputPorts()
		if len(outs) == 0 {
			return &UnsupportedGraphShapeError{Node: g.Name(), Reason: "group has no output port to start from"}
		}
		p = outs[0]
	}
	ret := g.ReturnPortFor(p.Name())
	if ret == nil {
		return &GraphConsistencyError{
			Node:   g.Name(),
			Port:   p.Name(),
			Reason: "group has no return port for this output",
		}
	}

	if w.settings.includeGroups {
		w.add(g)
	}
	if !w.entered[ret] {
		w.entered[ret] = true
		if src := ret.ConnectedSource(); src != nil {
			if _, err := sourceNode(g, ret, src); err != nil {
				return err
			}
			if w.admits(src) {
				if err := w.walk(src.Node(), src, sc.push(g), depth+1); err != nil {
					return err
				}
			}
		}
	}

	// Interior done: what feeds the group itself, seen from the caller's scope.
	if w.expanded[g] || len(g.InputPorts()) == 0 {
		return nil
	}
	w.expanded[g] = true
	return w.expand(g, sc, depth)
}

func (w *walker) leave(g nodegraph.GroupNode, p nodegraph.Port, sc *scope, depth int) error {
	in := portNamed(g.InputPorts(), p.Name())
	if in == nil {
		return &GraphConsistencyError{
			Node:   g.Name(),
			Port:   p.Name(),
			Reason: fmt.Sprintf("%s port has no matching group input", p.Kind()),
		}
	}
	if w.settings.includeGroups {
		w.add(g)
	}
	src := in.ConnectedSource()
	if src == nil {
		return nil
	}
	if _, err := sourceNode(g, in, src); err != nil {
		return err
	}
	if !w.admits(src) {
		return nil
	}
	return w.walk(src.Node(), src, sc, depth+1)
}
