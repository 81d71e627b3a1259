// Package nodegraph defines the read-only node/port graph contract the
// traversal engine consumes, and an in-memory arena implementation of it
// built from a scene document.
//
// Nodes are addressed by unique name and ports by (node, kind, name). The
// arena holds no pointers between records: connections are a map from a
// destination port to its source port, and every Node or Port handed out is a
// small comparable value resolved against the arena on each call.
package nodegraph

// PortKind tells external ports apart from the internal faces of a group's
// boundary ports.
type PortKind uint8

const (
	// Input is a node's own input port; it has at most one source.
	Input PortKind = iota
	// Output is a node's own output port.
	Output
	// Entry is the internal face of a group input. Interior nodes read it.
	Entry
	// Return is the internal face of a group output. Its source is the
	// interior port that produces the group's output.
	Return
)

func (k PortKind) String() string {
	switch k {
	case Input:
		return "input"
	case Output:
		return "output"
	case Entry:
		return "entry"
	case Return:
		return "return"
	}
	return "unknown"
}

// IsSource reports whether ports of this kind feed connections.
func (k PortKind) IsSource() bool { return k == Output || k == Entry }

// Node is a unit of the host graph.
type Node interface {
	Name() string
	Type() string
	// InputPorts and OutputPorts are in declaration order; index 0 is primary.
	InputPorts() []Port
	OutputPorts() []Port
	// IsActivated reports the logical-state marker: the node is part of the
	// currently evaluated branch.
	IsActivated() bool
}

// GroupNode is a Node owning an internal subgraph.
type GroupNode interface {
	Node
	// ReturnPortFor maps an output port name to its internal face, nil if
	// the group has no such output.
	ReturnPortFor(output string) Port
	// EntryPortFor maps an input port name to its internal face, nil if the
	// group has no such input.
	EntryPortFor(input string) Port
}

// Port is a connection point on a Node.
type Port interface {
	// Node returns the owning node, nil when the port references a node the
	// graph does not hold.
	Node() Node
	Name() string
	Kind() PortKind
	// ConnectedSource returns the single upstream port of an Input or Return
	// port, nil when unconnected or for source kinds.
	ConnectedSource() Port
}
