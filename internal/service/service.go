// Package service serves upstream queries against the current graph
// snapshot. Queries run on a bounded worker pool; the snapshot is swapped
// atomically when the scene reloads, so a query always sees one consistent
// graph.
package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/gyaneshwarpardhi/nodegraph/internal/config"
	"github.com/gyaneshwarpardhi/nodegraph/internal/metrics"
	"github.com/gyaneshwarpardhi/nodegraph/internal/nodegraph"
	"github.com/gyaneshwarpardhi/nodegraph/internal/traverse"
)

var (
	// ErrQueueFull is returned when the query queue has no room.
	ErrQueueFull = errors.New("query queue full")
	// ErrTimeout is returned when a query outlives the query timeout.
	ErrTimeout = errors.New("query timed out")
)

// Query asks for the nodes upstream of Start.
type Query struct {
	ID        string                 `json:"id,omitempty"`
	Start     string                 `json:"start"`
	Settings  map[string]interface{} `json:"settings,omitempty"`
	Variables map[string]interface{} `json:"variables,omitempty"`
	SkipTypes []string               `json:"skip_types,omitempty"`
}

// Result is the outcome of one query. A failed traversal sets Error and
// ErrorKind and leaves Nodes empty.
type Result struct {
	QueryID    string   `json:"query_id"`
	Start      string   `json:"start"`
	Nodes      []string `json:"nodes"`
	Types      []string `json:"types"`
	DurationMs float64  `json:"duration_ms"`
	Error      string   `json:"error,omitempty"`
	ErrorKind  string   `json:"error_kind,omitempty"`
}

// Error kinds reported in Result.ErrorKind.
const (
	KindInvalidStart      = "invalid_start"
	KindInvalidSettings   = "invalid_settings"
	KindInconsistentGraph = "inconsistent_graph"
	KindUnsupportedShape  = "unsupported_shape"
	KindTooDeep           = "too_deep"
	KindRejected          = "rejected"
)

// snapshot pairs a graph with the traversal defaults of the scene it came
// from; both are replaced together.
type snapshot struct {
	graph    *nodegraph.Graph
	defaults traverse.Settings
}

// Service runs queries against the current snapshot.
type Service struct {
	current atomic.Pointer[snapshot]
	pool    *workerPool[*task]
	timeout time.Duration
	logger  *slog.Logger
}

type task struct {
	ctx   context.Context
	query *Query
	reply chan *Result
}

// New creates a Service serving g and starts its workers. The workers stop
// when ctx is cancelled or Shutdown is called.
func New(ctx context.Context, g *nodegraph.Graph, defaults traverse.Settings, conf config.ServiceConf, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	s := &Service{
		timeout: time.Duration(conf.QueryTimeoutMs) * time.Millisecond,
		logger:  logger,
	}
	s.SwapGraph(g, defaults)
	s.pool = newWorkerPool[*task](ctx, conf.Workers, conf.QueueDepth, func(ctx context.Context, t *task) {
		t.reply <- s.execute(t.ctx, t.query)
	})
	return s
}

// SwapGraph atomically replaces the graph and its traversal defaults.
func (s *Service) SwapGraph(g *nodegraph.Graph, defaults traverse.Settings) {
	s.current.Store(&snapshot{graph: g, defaults: defaults})
	metrics.GraphNodes.Set(float64(g.NodeCount()))
}

// Graph returns the snapshot being served.
func (s *Service) Graph() *nodegraph.Graph {
	return s.current.Load().graph
}

// Defaults returns the traversal settings queries start from.
func (s *Service) Defaults() traverse.Settings {
	return s.current.Load().defaults
}

// Apply validates a scene document, builds its graph and swaps it in. On
// any error the current snapshot keeps being served.
func (s *Service) Apply(sc *config.Scene) error {
	if err := config.Validate(sc); err != nil {
		metrics.GraphReloads.WithLabelValues("invalid").Inc()
		return err
	}
	defaults, err := traverse.SettingsFromConfig(sc.Traversal)
	if err != nil {
		metrics.GraphReloads.WithLabelValues("invalid").Inc()
		return err
	}
	g, err := nodegraph.Build(sc)
	if err != nil {
		metrics.GraphReloads.WithLabelValues("build_failed").Inc()
		return fmt.Errorf("build graph: %w", err)
	}
	s.SwapGraph(g, defaults)
	metrics.GraphReloads.WithLabelValues("ok").Inc()
	s.logger.Info("graph swapped", "version", sc.Version, "nodes", g.NodeCount(), "activation_errors", len(g.ActivationErrors()))
	return nil
}

// Query runs q on the worker pool and waits for its result. Traversal
// failures are reported in the Result; the error is reserved for ErrQueueFull,
// ErrTimeout and ctx errors.
func (s *Service) Query(ctx context.Context, q *Query) (*Result, error) {
	t, err := s.submit(ctx, q)
	if err != nil {
		return nil, err
	}
	timer := time.NewTimer(s.timeout)
	defer timer.Stop()

	select {
	case res := <-t.reply:
		return res, nil
	case <-timer.C:
		metrics.QueryTimeouts.Inc()
		return nil, fmt.Errorf("query %s: %w after %v", q.ID, ErrTimeout, s.timeout)
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// Batch runs every query and returns the results in request order. Queries
// the queue cannot take, or that outlive the shared timeout, get a Result
// with ErrorKind KindRejected.
func (s *Service) Batch(ctx context.Context, qs []*Query) ([]*Result, error) {
	tasks := make([]*task, len(qs))
	results := make([]*Result, len(qs))
	for i, q := range qs {
		t, err := s.submit(ctx, q)
		if err != nil {
			results[i] = rejected(q, err)
			continue
		}
		tasks[i] = t
	}

	timer := time.NewTimer(s.timeout)
	defer timer.Stop()
	for i, t := range tasks {
		if t == nil {
			continue
		}
		select {
		case res := <-t.reply:
			results[i] = res
		case <-timer.C:
			metrics.QueryTimeouts.Inc()
			for j := i; j < len(tasks); j++ {
				if tasks[j] != nil {
					results[j] = rejected(qs[j], fmt.Errorf("%w after %v", ErrTimeout, s.timeout))
				}
			}
			return results, nil
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	return results, nil
}

func (s *Service) submit(ctx context.Context, q *Query) (*task, error) {
	if q.ID == "" {
		q.ID = uuid.New().String()
	}
	t := &task{ctx: ctx, query: q, reply: make(chan *Result, 1)}
	if !s.pool.Submit(t) {
		metrics.QueriesDropped.Inc()
		return nil, ErrQueueFull
	}
	metrics.QueriesEnqueued.Inc()
	return t, nil
}

func rejected(q *Query, err error) *Result {
	return &Result{
		QueryID:   q.ID,
		Start:     q.Start,
		Nodes:     []string{},
		Types:     []string{},
		Error:     err.Error(),
		ErrorKind: KindRejected,
	}
}

// QueueUtilization returns queue used / capacity (0-1).
func (s *Service) QueueUtilization() float64 {
	if s.pool.QueueCap() == 0 {
		return 0
	}
	return float64(s.pool.QueueLen()) / float64(s.pool.QueueCap())
}

// Shutdown stops accepting queries and drains the queue.
func (s *Service) Shutdown() {
	s.pool.Drain()
}

func (s *Service) execute(ctx context.Context, q *Query) *Result {
	if err := ctx.Err(); err != nil {
		return rejected(q, err)
	}
	snap := s.current.Load()
	res, err := Run(snap.graph, snap.defaults, q)
	metrics.TraversalDuration.Observe(res.DurationMs)
	if err != nil {
		metrics.Traversals.WithLabelValues(res.ErrorKind).Inc()
		s.logger.Warn("upstream query failed", "query_id", q.ID, "start", q.Start, "kind", res.ErrorKind, "err", err)
		return res
	}
	metrics.Traversals.WithLabelValues("ok").Inc()
	metrics.NodesVisited.Observe(float64(len(res.Nodes)))
	s.logger.Debug("upstream query", "query_id", q.ID, "start", q.Start, "nodes", len(res.Nodes), "duration_ms", res.DurationMs)
	return res
}
