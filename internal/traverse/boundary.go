package traverse

import (
	"github.com/gyaneshwarpardhi/nodegraph/internal/nodegraph"
)

// crossing is what the walker does at a (node, port) pair relative to the
// group scopes it is inside.
type crossing uint8

const (
	// ordinary: a plain node, or a group whose type is excluded.
	ordinary crossing = iota
	// enter: a group reached through an output (or as a bare start); its
	// interior is walked from the matching return port.
	enter
	// exit: the walk came back to the boundary of the group it is inside.
	exit
	// leave: a group reached through an input side port it does not
	// enclose; the walk continues outside from the matching external input.
	leave
)

func (c crossing) String() string {
	switch c {
	case ordinary:
		return "ordinary"
	case enter:
		return "enter"
	case exit:
		return "exit"
	case leave:
		return "leave"
	}
	return "unknown"
}

// scope is the chain of groups the walk is inside, innermost first. A nil
// scope is the root graph.
type scope struct {
	group nodegraph.GroupNode
	outer *scope
}

func (s *scope) push(g nodegraph.GroupNode) *scope {
	return &scope{group: g, outer: s}
}

// enclosing returns the innermost group, nil at the root.
func (s *scope) enclosing() nodegraph.Node {
	if s == nil {
		return nil
	}
	return s.group
}

// classify decides the crossing for node n reached through port p (nil for
// a bare start).
func classify(n nodegraph.Node, p nodegraph.Port, sc *scope, settings Settings) crossing {
	if enc := sc.enclosing(); enc != nil && n == enc {
		return exit
	}
	if _, isGroup := n.(nodegraph.GroupNode); !isGroup || settings.IsExcluded(n.Type()) {
		return ordinary
	}
	if p != nil && (p.Kind() == nodegraph.Input || p.Kind() == nodegraph.Entry) {
		return leave
	}
	return enter
}
