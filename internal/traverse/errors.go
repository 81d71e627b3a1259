package traverse

import "fmt"

// ConfigurationError reports invalid traversal settings. It is raised when
// settings are built or changed, never by a traversal.
type ConfigurationError struct {
	Key    string
	Reason string
	Value  interface{}
}

func (e *ConfigurationError) Error() string {
	if e.Key == "" {
		return fmt.Sprintf("traversal settings: %s", e.Reason)
	}
	if e.Value == nil {
		return fmt.Sprintf("traversal settings: %q: %s", e.Key, e.Reason)
	}
	return fmt.Sprintf("traversal settings: %q: %s (got %T)", e.Key, e.Reason, e.Value)
}

// GraphConsistencyError reports a graph that contradicts itself: a connection
// to a port no node declares, or a group without the boundary mapping a port
// requires.
type GraphConsistencyError struct {
	Node   string
	Port   string
	Reason string
}

func (e *GraphConsistencyError) Error() string {
	if e.Port == "" {
		return fmt.Sprintf("inconsistent graph at node %q: %s", e.Node, e.Reason)
	}
	return fmt.Sprintf("inconsistent graph at %s.%s: %s", e.Node, e.Port, e.Reason)
}

// UnsupportedGraphShapeError reports a start point the traversal cannot
// resolve, such as a bare group without output ports.
type UnsupportedGraphShapeError struct {
	Node   string
	Reason string
}

func (e *UnsupportedGraphShapeError) Error() string {
	return fmt.Sprintf("unsupported start %q: %s", e.Node, e.Reason)
}

// GraphTooDeepError reports a walk that exceeded Settings.MaxDepth.
type GraphTooDeepError struct {
	Limit int
	Node  string
}

func (e *GraphTooDeepError) Error() string {
	return fmt.Sprintf("traversal deeper than %d steps at node %q", e.Limit, e.Node)
}
