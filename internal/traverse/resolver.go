package traverse

import (
	"fmt"

	"github.com/gyaneshwarpardhi/nodegraph/internal/nodegraph"
)

// UpstreamPorts returns the source ports feeding node's inputs, one per
// distinct source, in the node's declared input order. With logicalOnly,
// sources on nodes without the activation marker are dropped.
//
// A source port that its node does not declare, or whose node is missing,
// is a *GraphConsistencyError.
func UpstreamPorts(node nodegraph.Node, logicalOnly bool) ([]nodegraph.Port, error) {
	var out []nodegraph.Port
	seen := make(map[nodegraph.Port]bool)
	for _, in := range node.InputPorts() {
		src := in.ConnectedSource()
		if src == nil {
			continue
		}
		owner, err := sourceNode(node, in, src)
		if err != nil {
			return nil, err
		}
		if logicalOnly && !owner.IsActivated() {
			continue
		}
		if seen[src] {
			continue
		}
		seen[src] = true
		out = append(out, src)
	}
	return out, nil
}

// sourceNode checks that src, connected to port dst of node, belongs to a
// node that declares it, and returns that node.
func sourceNode(node nodegraph.Node, dst, src nodegraph.Port) (nodegraph.Node, error) {
	owner := src.Node()
	if owner == nil {
		return nil, &GraphConsistencyError{
			Node:   node.Name(),
			Port:   dst.Name(),
			Reason: fmt.Sprintf("connected to %s port %q on a node the graph does not hold", src.Kind(), src.Name()),
		}
	}
	if !src.Kind().IsSource() {
		return nil, &GraphConsistencyError{
			Node:   node.Name(),
			Port:   dst.Name(),
			Reason: fmt.Sprintf("connected to %s port %s.%s, which cannot feed a connection", src.Kind(), owner.Name(), src.Name()),
		}
	}
	if !declares(owner, src) {
		return nil, &GraphConsistencyError{
			Node:   node.Name(),
			Port:   dst.Name(),
			Reason: fmt.Sprintf("connected to %s port %q that node %q does not declare", src.Kind(), src.Name(), owner.Name()),
		}
	}
	return owner, nil
}

func declares(n nodegraph.Node, p nodegraph.Port) bool {
	switch p.Kind() {
	case nodegraph.Input:
		return hasPort(n.InputPorts(), p.Name())
	case nodegraph.Output:
		return hasPort(n.OutputPorts(), p.Name())
	case nodegraph.Entry:
		g, ok := n.(nodegraph.GroupNode)
		return ok && g.EntryPortFor(p.Name()) != nil
	case nodegraph.Return:
		g, ok := n.(nodegraph.GroupNode)
		return ok && g.ReturnPortFor(p.Name()) != nil
	}
	return false
}

func hasPort(ports []nodegraph.Port, name string) bool {
	return portNamed(ports, name) != nil
}

func portNamed(ports []nodegraph.Port, name string) nodegraph.Port {
	for _, p := range ports {
		if p.Name() == name {
			return p
		}
	}
	return nil
}
