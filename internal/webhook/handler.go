// AngelaMos | 2026
// handler.go

package webhook

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/carterperez-dev/templates/media-rental/internal/billing"
	"github.com/carterperez-dev/templates/media-rental/internal/core"
	"github.com/carterperez-dev/templates/media-rental/internal/metrics"
)

const (
	Path            = "/webhooks/stripe"
	SignatureHeader = "Stripe-Signature"

	maxPayloadBytes = 1 << 16

	DefaultEventTimeout = 45 * time.Second
)

type Dispatcher interface {
	Dispatch(ctx context.Context, ev *billing.Event) (string, error)
}

type HandlerConfig struct {
	Verifier     billing.EventVerifier
	Dispatcher   Dispatcher
	EventTimeout time.Duration
	Logger       *slog.Logger
}

// Handler acknowledges verified deliveries immediately and applies them
// in the background. Once Drain starts, new deliveries get 503 so the
// provider retries them elsewhere.
type Handler struct {
	verifier   billing.EventVerifier
	dispatcher Dispatcher
	timeout    time.Duration
	logger     *slog.Logger

	mu       sync.Mutex
	draining bool
	inflight sync.WaitGroup
}

func NewHandler(cfg HandlerConfig) *Handler {
	if cfg.EventTimeout <= 0 {
		cfg.EventTimeout = DefaultEventTimeout
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	return &Handler{
		verifier:   cfg.Verifier,
		dispatcher: cfg.Dispatcher,
		timeout:    cfg.EventTimeout,
		logger:     cfg.Logger,
	}
}

func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Post(Path, h.Receive)
}

func (h *Handler) Receive(w http.ResponseWriter, r *http.Request) {
	payload, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxPayloadBytes))
	if err != nil {
		h.reject(w)
		return
	}

	ev, err := h.verifier.VerifyEvent(payload, r.Header.Get(SignatureHeader))
	if err != nil {
		h.logger.WarnContext(r.Context(), "billing webhook rejected",
			"remote_addr", r.RemoteAddr,
			"error", err,
		)
		h.reject(w)
		return
	}

	if !h.track() {
		metrics.WebhookRequestsTotal.
			WithLabelValues(ev.Kind.String(), strconv.Itoa(http.StatusServiceUnavailable)).Inc()
		core.JSONError(w, core.UnavailableError("billing events are not accepted while shutting down"))
		return
	}
	go h.process(context.WithoutCancel(r.Context()), ev)

	metrics.WebhookRequestsTotal.
		WithLabelValues(ev.Kind.String(), strconv.Itoa(http.StatusOK)).Inc()
	core.JSON(w, http.StatusOK, map[string]bool{"received": true})
}

func (h *Handler) process(ctx context.Context, ev *billing.Event) {
	defer h.inflight.Done()

	ctx, cancel := context.WithTimeout(ctx, h.timeout)
	defer cancel()

	defer func() {
		if rec := recover(); rec != nil {
			h.logger.ErrorContext(ctx, "billing event panicked",
				"event_id", ev.ID,
				"event_type", ev.Type,
				"panic", rec,
			)
		}
	}()

	//nolint:errcheck // the engine logs and counts its own failures
	_, _ = h.dispatcher.Dispatch(ctx, ev)
}

func (h *Handler) track() bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.draining {
		return false
	}
	h.inflight.Add(1)
	return true
}

// Drain refuses further deliveries and then waits for the accepted ones.
func (h *Handler) Drain(ctx context.Context) error {
	h.mu.Lock()
	h.draining = true
	h.mu.Unlock()
	return h.Wait(ctx)
}

// Wait blocks until in-flight events finish or ctx ends. Deliveries keep
// being accepted; callers racing new deliveries use Drain.
func (h *Handler) Wait(ctx context.Context) error {
	done := make(chan struct{})
	go func() {
		h.inflight.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return errors.Join(errors.New("billing events still in flight"), ctx.Err())
	}
}

// reject never says why verification failed.
func (h *Handler) reject(w http.ResponseWriter) {
	metrics.WebhookRequestsTotal.
		WithLabelValues(billing.EventUnknown.String(), strconv.Itoa(http.StatusBadRequest)).Inc()
	core.BadRequest(w, "invalid webhook payload")
}
