package service

import (
	"errors"
	"fmt"
	"time"

	"github.com/gyaneshwarpardhi/nodegraph/internal/nodegraph"
	"github.com/gyaneshwarpardhi/nodegraph/internal/traverse"
)

// StartError reports a start address the graph cannot resolve.
type StartError struct {
	Start string
	Err   error
}

func (e *StartError) Error() string { return fmt.Sprintf("start %q: %v", e.Start, e.Err) }
func (e *StartError) Unwrap() error { return e.Err }

// Run executes q against g on the calling goroutine. q.Settings overrides
// defaults key by key and q.Variables overlays the graph-state variables for
// this query only. Nodes whose type is in q.SkipTypes are left out of the
// result but still walked through.
//
// The Result is never nil; on failure it carries the error text and kind.
func Run(g *nodegraph.Graph, defaults traverse.Settings, q *Query) (*Result, error) {
	start := time.Now()
	res := &Result{QueryID: q.ID, Start: q.Start, Nodes: []string{}, Types: []string{}}

	nodes, err := upstream(g, defaults, q)
	res.DurationMs = float64(time.Since(start).Microseconds()) / 1000
	if err != nil {
		res.Error, res.ErrorKind = err.Error(), ErrorKind(err)
		return res, err
	}

	skip := make(map[string]bool, len(q.SkipTypes))
	for _, typ := range q.SkipTypes {
		skip[typ] = true
	}
	for _, n := range nodes {
		if skip[n.Type()] {
			continue
		}
		res.Nodes = append(res.Nodes, n.Name())
		res.Types = append(res.Types, n.Type())
	}
	return res, nil
}

func upstream(g *nodegraph.Graph, defaults traverse.Settings, q *Query) ([]nodegraph.Node, error) {
	settings, err := defaults.Merge(q.Settings)
	if err != nil {
		return nil, err
	}
	g = g.WithVariables(q.Variables)
	n, p, err := g.Resolve(q.Start)
	if err != nil {
		return nil, &StartError{Start: q.Start, Err: err}
	}
	start := traverse.FromNode(n)
	if p != nil {
		start = traverse.FromPort(p)
	}
	return traverse.UpstreamNodes(start, settings)
}

// ErrorKind maps a traversal error to one of the Kind constants.
func ErrorKind(err error) string {
	var (
		startErr   *StartError
		confErr    *traverse.ConfigurationError
		consistErr *traverse.GraphConsistencyError
		shapeErr   *traverse.UnsupportedGraphShapeError
		deepErr    *traverse.GraphTooDeepError
	)
	switch {
	case errors.As(err, &startErr):
		return KindInvalidStart
	case errors.As(err, &confErr):
		return KindInvalidSettings
	case errors.As(err, &consistErr):
		return KindInconsistentGraph
	case errors.As(err, &shapeErr):
		return KindUnsupportedShape
	case errors.As(err, &deepErr):
		return KindTooDeep
	case errors.Is(err, ErrQueueFull), errors.Is(err, ErrTimeout):
		return KindRejected
	}
	return "internal"
}
