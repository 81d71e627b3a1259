package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/sync/singleflight"

	"github.com/gyaneshwarpardhi/nodegraph/internal/config"
	"github.com/gyaneshwarpardhi/nodegraph/internal/metrics"
	"github.com/gyaneshwarpardhi/nodegraph/internal/service"
)

const maxBatchSize = 100

// Handler holds all HTTP handler dependencies.
type Handler struct {
	svc     *service.Service
	loader  *config.Loader
	logger  *slog.Logger
	mux     *http.ServeMux
	reloads singleflight.Group
}

// New creates an HTTP handler and registers all routes. loader may be nil,
// in which case reloads are refused.
func New(svc *service.Service, loader *config.Loader, logger *slog.Logger) http.Handler {
	if logger == nil {
		logger = slog.Default()
	}
	h := &Handler{svc: svc, loader: loader, logger: logger, mux: http.NewServeMux()}

	h.mux.HandleFunc("POST /v1/upstream", h.upstream)
	h.mux.HandleFunc("POST /v1/upstream/batch", h.upstreamBatch)
	h.mux.HandleFunc("GET /v1/graph", h.graph)
	h.mux.HandleFunc("GET /v1/graph/variables", h.stateVariables)
	h.mux.HandleFunc("POST /v1/graph/reload", h.reload)
	h.mux.HandleFunc("GET /healthz", h.healthz)
	h.mux.HandleFunc("GET /readyz", h.readyz)
	h.mux.Handle("GET /metrics", promhttp.Handler())

	return loggingMiddleware(logger, h.mux)
}

// POST /v1/upstream: one synchronous query.
func (h *Handler) upstream(w http.ResponseWriter, r *http.Request) {
	var q service.Query
	if err := json.NewDecoder(r.Body).Decode(&q); err != nil {
		writeError(w, http.StatusBadRequest, fmt.Sprintf("invalid JSON: %s", err))
		return
	}
	if q.Start == "" {
		writeError(w, http.StatusBadRequest, "start is required")
		return
	}

	res, err := h.svc.Query(r.Context(), &q)
	if err != nil {
		writeError(w, rejectStatus(err), err.Error())
		return
	}
	writeJSON(w, resultStatus(res), res)
}

// POST /v1/upstream/batch: up to 100 queries, results in request order.
func (h *Handler) upstreamBatch(w http.ResponseWriter, r *http.Request) {
	var qs []*service.Query
	if err := json.NewDecoder(r.Body).Decode(&qs); err != nil {
		writeError(w, http.StatusBadRequest, fmt.Sprintf("invalid JSON: %s", err))
		return
	}
	if len(qs) == 0 {
		writeError(w, http.StatusBadRequest, "batch must contain at least one query")
		return
	}
	if len(qs) > maxBatchSize {
		writeError(w, http.StatusBadRequest, fmt.Sprintf("batch size %d exceeds max %d", len(qs), maxBatchSize))
		return
	}
	for i, q := range qs {
		if q == nil || q.Start == "" {
			writeError(w, http.StatusBadRequest, fmt.Sprintf("queries[%d]: start is required", i))
			return
		}
	}

	results, err := h.svc.Batch(r.Context(), qs)
	if err != nil {
		writeError(w, rejectStatus(err), err.Error())
		return
	}
	failed := 0
	for _, res := range results {
		if res.Error != "" {
			failed++
		}
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"batch_id": uuid.New().String(),
		"total":    len(results),
		"failed":   failed,
		"results":  results,
	})
}

// GET /v1/graph: summary of the snapshot being served.
func (h *Handler) graph(w http.ResponseWriter, r *http.Request) {
	g := h.svc.Graph()
	nodes := make([]map[string]interface{}, 0, g.NodeCount())
	for _, n := range g.Nodes() {
		nodes = append(nodes, map[string]interface{}{
			"name":      n.Name(),
			"type":      n.Type(),
			"activated": n.IsActivated(),
		})
	}
	activationErrs := make(map[string]string)
	for name, err := range g.ActivationErrors() {
		activationErrs[name] = err.Error()
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"node_count":        g.NodeCount(),
		"nodes":             nodes,
		"variables":         g.Variables(),
		"traversal":         h.svc.Defaults().Map(),
		"activation_errors": activationErrs,
	})
}

// GET /v1/graph/variables?exclude=a,b: graph-state variables the
// activation rules read.
func (h *Handler) stateVariables(w http.ResponseWriter, r *http.Request) {
	var exclude []string
	for _, v := range r.URL.Query()["exclude"] {
		for _, name := range strings.Split(v, ",") {
			if name = strings.TrimSpace(name); name != "" {
				exclude = append(exclude, name)
			}
		}
	}
	vars := h.svc.Graph().StateVariables(exclude...)
	if vars == nil {
		vars = []string{}
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"variables": vars})
}

// POST /v1/graph/reload: re-read the scene file and swap the graph.
// Concurrent calls share one reload.
func (h *Handler) reload(w http.ResponseWriter, r *http.Request) {
	if h.loader == nil {
		writeError(w, http.StatusNotImplemented, "no scene file to reload")
		return
	}
	v, err, _ := h.reloads.Do("scene", func() (interface{}, error) {
		sc, err := h.loader.Reload()
		if err != nil {
			return nil, &reloadError{status: http.StatusInternalServerError, err: err}
		}
		// OnChange callbacks may have applied sc already; Apply reports the
		// outcome to this caller either way.
		if err := h.svc.Apply(sc); err != nil {
			return nil, &reloadError{status: http.StatusUnprocessableEntity, err: err}
		}
		return sc, nil
	})
	if err != nil {
		status := http.StatusInternalServerError
		var re *reloadError
		if errors.As(err, &re) {
			status = re.status
		}
		h.logger.Warn("scene reload rejected", "path", h.loader.Path(), "err", err)
		writeError(w, status, err.Error())
		return
	}
	sc := v.(*config.Scene)
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"reloaded":   true,
		"version":    sc.Version,
		"node_count": h.svc.Graph().NodeCount(),
	})
}

type reloadError struct {
	status int
	err    error
}

func (e *reloadError) Error() string { return e.err.Error() }
func (e *reloadError) Unwrap() error { return e.err }

// GET /healthz: always 200 (liveness probe).
func (h *Handler) healthz(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// GET /readyz: 503 if the query queue is more than 80% full.
func (h *Handler) readyz(w http.ResponseWriter, r *http.Request) {
	util := h.svc.QueueUtilization()
	metrics.QueueUtilization.Set(util)
	if util > 0.8 {
		writeJSON(w, http.StatusServiceUnavailable, map[string]interface{}{
			"status":            "overloaded",
			"queue_utilization": util,
		})
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"status":            "ready",
		"queue_utilization": util,
	})
}

// resultStatus maps a query outcome to an HTTP status.
func resultStatus(res *service.Result) int {
	switch res.ErrorKind {
	case "":
		return http.StatusOK
	case service.KindInvalidStart:
		return http.StatusNotFound
	case service.KindInvalidSettings:
		return http.StatusBadRequest
	case service.KindRejected:
		return http.StatusServiceUnavailable
	}
	return http.StatusUnprocessableEntity
}

func rejectStatus(err error) int {
	switch {
	case errors.Is(err, service.ErrQueueFull):
		return http.StatusTooManyRequests
	case errors.Is(err, service.ErrTimeout):
		return http.StatusGatewayTimeout
	}
	return http.StatusServiceUnavailable
}
