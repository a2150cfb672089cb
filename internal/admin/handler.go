// AngelaMos | 2026
// handler.go

package admin

import (
	"context"
	"database/sql"
	"encoding/json"
	"log/slog"
	"net/http"
	"runtime"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"github.com/redis/go-redis/v9"
	"golang.org/x/sync/errgroup"

	"github.com/carterperez-dev/templates/media-rental/internal/core"
	"github.com/carterperez-dev/templates/media-rental/internal/offer"
)

type Users interface {
	CountByType(ctx context.Context) (map[string]int, error)
}

type Listings interface {
	Count(ctx context.Context) (int, error)
}

type Offers interface {
	CountByPermission(ctx context.Context) (map[offer.Permission]int, error)
	DeleteOffer(ctx context.Context, sellerEmail, itemName, sessionID string) (*offer.OfferRecord, error)
	RepairOrphans(ctx context.Context) (offer.RepairReport, error)
}

type Subscriptions interface {
	CountActive(ctx context.Context) (int, error)
}

type HandlerConfig struct {
	Users         Users
	Listings      Listings
	Offers        Offers
	Subscriptions Subscriptions
	DBStats       func() sql.DBStats
	RedisStats    func() *redis.PoolStats
	DBPing        func(ctx context.Context) error
	RedisPing     func(ctx context.Context) error
	Logger        *slog.Logger
}

type Handler struct {
	users         Users
	listings      Listings
	offers        Offers
	subscriptions Subscriptions
	dbStats       func() sql.DBStats
	redisStats    func() *redis.PoolStats
	dbPing        func(ctx context.Context) error
	redisPing     func(ctx context.Context) error
	logger        *slog.Logger
	validator     *validator.Validate
}

func NewHandler(cfg HandlerConfig) *Handler {
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	return &Handler{
		users:         cfg.Users,
		listings:      cfg.Listings,
		offers:        cfg.Offers,
		subscriptions: cfg.Subscriptions,
		dbStats:       cfg.DBStats,
		redisStats:    cfg.RedisStats,
		dbPing:        cfg.DBPing,
		redisPing:     cfg.RedisPing,
		logger:        cfg.Logger,
		validator:     validator.New(validator.WithRequiredStructEnabled()),
	}
}

func (h *Handler) RegisterRoutes(
	r chi.Router,
	authenticator, adminOnly func(http.Handler) http.Handler,
) {
	r.Route("/admin", func(r chi.Router) {
		r.Use(authenticator)
		r.Use(adminOnly)

		r.Get("/stats", h.GetMarketplaceStats)
		r.Get("/stats/system", h.GetSystemStats)
		r.Get("/stats/runtime", h.GetRuntimeStats)

		r.Delete("/offers", h.DeleteOffer)
		r.Post("/offers/reconcile", h.ReconcileOffers)
	})
}

// GetMarketplaceStats gathers the domain counters concurrently.
func (h *Handler) GetMarketplaceStats(w http.ResponseWriter, r *http.Request) {
	var (
		resp MarketplaceStats
		g    errgroup.Group
	)
	ctx := r.Context()

	g.Go(func() error {
		counts, err := h.users.CountByType(ctx)
		resp.Users = counts
		return err
	})
	g.Go(func() error {
		n, err := h.listings.Count(ctx)
		resp.Listings = n
		return err
	})
	g.Go(func() error {
		counts, err := h.offers.CountByPermission(ctx)
		if err != nil {
			return err
		}
		resp.Offers = make(map[string]int, len(counts))
		for p, n := range counts {
			resp.Offers[string(p)] = n
		}
		return nil
	})
	g.Go(func() error {
		n, err := h.subscriptions.CountActive(ctx)
		resp.ActiveSubscriptions = n
		return err
	})

	if err := g.Wait(); err != nil {
		core.HandleError(w, err, "stats")
		return
	}

	core.OK(w, resp)
}

func (h *Handler) DeleteOffer(w http.ResponseWriter, r *http.Request) {
	var req offer.AdminDeleteOfferRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		core.BadRequest(w, "invalid request body")
		return
	}

	if err := h.validator.Struct(req); err != nil {
		core.BadRequest(w, core.FormatValidationError(err))
		return
	}

	rec, err := h.offers.DeleteOffer(r.Context(), req.SellerEmail, req.ItemName, req.SessionID)
	if err != nil {
		core.HandleError(w, err, "offer")
		return
	}

	h.logger.InfoContext(r.Context(), "offer deleted by admin",
		"offer_id", rec.ID,
		"session_id", rec.SessionID,
	)
	core.OKMessage(w, "offer deleted", offer.ToOfferResponse(rec))
}

func (h *Handler) ReconcileOffers(w http.ResponseWriter, r *http.Request) {
	report, err := h.offers.RepairOrphans(r.Context())
	if err != nil {
		h.logger.ErrorContext(r.Context(), "offer reconciliation incomplete",
			"repaired", report.Total(),
			"error", err,
		)
		core.HandleError(w, err, "offer")
		return
	}

	core.OK(w, report)
}

func (h *Handler) GetSystemStats(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	resp := SystemStatsResponse{
		Database: DatabaseStatus{Healthy: ping(ctx, h.dbPing)},
		Redis:    RedisStatus{Healthy: ping(ctx, h.redisPing)},
		Runtime:  runtimeStats(),
	}

	if h.dbStats != nil {
		s := h.dbStats()
		resp.Database.Stats = &DBPoolStats{
			MaxOpenConnections: s.MaxOpenConnections,
			OpenConnections:    s.OpenConnections,
			InUse:              s.InUse,
			Idle:               s.Idle,
			WaitCount:          s.WaitCount,
			WaitDuration:       s.WaitDuration.String(),
		}
	}

	if h.redisStats != nil {
		s := h.redisStats()
		resp.Redis.Stats = &RedisPoolStats{
			Hits:       s.Hits,
			Misses:     s.Misses,
			Timeouts:   s.Timeouts,
			TotalConns: s.TotalConns,
			IdleConns:  s.IdleConns,
		}
	}

	core.OK(w, resp)
}

func (h *Handler) GetRuntimeStats(w http.ResponseWriter, _ *http.Request) {
	core.OK(w, runtimeStats())
}

func ping(ctx context.Context, fn func(context.Context) error) bool {
	return fn == nil || fn(ctx) == nil
}

func runtimeStats() RuntimeStats {
	var m runtime.MemStats
	runtime.ReadMemStats(&m)

	return RuntimeStats{
		GoVersion:    runtime.Version(),
		NumGoroutine: runtime.NumGoroutine(),
		NumCPU:       runtime.NumCPU(),
		MemAlloc:     m.Alloc,
		MemSys:       m.Sys,
		NumGC:        m.NumGC,
	}
}
