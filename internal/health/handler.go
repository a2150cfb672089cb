// AngelaMos | 2026
// handler.go

package health

import (
	"context"
	"encoding/json"
	"net/http"
	"sync/atomic"
	"time"

	"github.com/go-chi/chi/v5"
	"golang.org/x/sync/errgroup"
)

const checkTimeout = 5 * time.Second

type Checker interface {
	Ping(ctx context.Context) error
}

// CheckerFunc adapts a plain ping function.
type CheckerFunc func(ctx context.Context) error

func (f CheckerFunc) Ping(ctx context.Context) error {
	return f(ctx)
}

// NamedChecker labels a dependency in the readiness report.
type NamedChecker struct {
	Name    string
	Checker Checker
}

type StatusResponse struct {
	Status string `json:"status"`
}

type ReadinessResponse struct {
	Status string        `json:"status"`
	Checks []HealthCheck `json:"checks"`
}

// HealthCheck never carries the underlying error text; dependency errors
// can leak hostnames and bucket names.
type HealthCheck struct {
	Name    string `json:"name"`
	Healthy bool   `json:"healthy"`
	Latency string `json:"latency,omitempty"`
	Message string `json:"message,omitempty"`
}

type Handler struct {
	checkers []NamedChecker
	draining atomic.Bool
}

func NewHandler(checkers ...NamedChecker) *Handler {
	return &Handler{checkers: checkers}
}

func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Get("/healthz", h.Liveness)
	r.Get("/livez", h.Liveness)
	r.Get("/readyz", h.Readiness)
}

// SetShutdown makes both probes fail so the load balancer stops routing
// while in-flight requests and webhook deliveries drain.
func (h *Handler) SetShutdown(draining bool) {
	h.draining.Store(draining)
}

func (h *Handler) Liveness(w http.ResponseWriter, _ *http.Request) {
	if h.draining.Load() {
		writeProbe(w, http.StatusServiceUnavailable, StatusResponse{Status: "shutting_down"})
		return
	}
	writeProbe(w, http.StatusOK, StatusResponse{Status: "ok"})
}

func (h *Handler) Readiness(w http.ResponseWriter, r *http.Request) {
	if h.draining.Load() {
		writeProbe(w, http.StatusServiceUnavailable, StatusResponse{Status: "shutting_down"})
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), checkTimeout)
	defer cancel()

	resp := ReadinessResponse{Status: "ok", Checks: h.check(ctx)}
	code := http.StatusOK
	for _, c := range resp.Checks {
		if !c.Healthy {
			resp.Status = "degraded"
			code = http.StatusServiceUnavailable
			break
		}
	}
	writeProbe(w, code, resp)
}

func (h *Handler) check(ctx context.Context) []HealthCheck {
	results := make([]HealthCheck, len(h.checkers))

	var g errgroup.Group
	for i, nc := range h.checkers {
		g.Go(func() error {
			results[i] = probe(ctx, nc)
			return nil
		})
	}
	//nolint:errcheck // probes report through results
	_ = g.Wait()

	return results
}

func probe(ctx context.Context, nc NamedChecker) HealthCheck {
	if nc.Checker == nil {
		return HealthCheck{Name: nc.Name, Message: "not configured"}
	}

	start := time.Now()
	err := nc.Checker.Ping(ctx)
	hc := HealthCheck{
		Name:    nc.Name,
		Healthy: err == nil,
		Latency: time.Since(start).Round(time.Microsecond).String(),
	}
	if err != nil {
		hc.Message = "ping failed"
	}
	return hc
}

func writeProbe(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Cache-Control", "no-cache, no-store, must-revalidate")
	w.WriteHeader(status)
	//nolint:errcheck // best-effort response
	_ = json.NewEncoder(w).Encode(body)
}
