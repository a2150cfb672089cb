// AngelaMos | 2026
// main.go

package main

import (
	"context"
	"flag"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/carterperez-dev/templates/media-rental/internal/admin"
	"github.com/carterperez-dev/templates/media-rental/internal/auth"
	"github.com/carterperez-dev/templates/media-rental/internal/checkout"
	"github.com/carterperez-dev/templates/media-rental/internal/config"
	"github.com/carterperez-dev/templates/media-rental/internal/core"
	"github.com/carterperez-dev/templates/media-rental/internal/health"
	"github.com/carterperez-dev/templates/media-rental/internal/listing"
	"github.com/carterperez-dev/templates/media-rental/internal/middleware"
	"github.com/carterperez-dev/templates/media-rental/internal/offer"
	"github.com/carterperez-dev/templates/media-rental/internal/server"
	"github.com/carterperez-dev/templates/media-rental/internal/storage"
	"github.com/carterperez-dev/templates/media-rental/internal/subscription"
	"github.com/carterperez-dev/templates/media-rental/internal/user"
	"github.com/carterperez-dev/templates/media-rental/internal/webhook"
)

const (
	drainDelay = 5 * time.Second
	apiPrefix  = "/v1"
)

func main() {
	configPath := flag.String("config", "config.yaml", "path to config file")
	flag.Parse()

	if err := run(*configPath); err != nil {
		slog.Error("application error", "error", err)
		os.Exit(1)
	}
}

//nolint:funlen // bootstrap code is inherently verbose
func run(configPath string) error {
	ctx, stop := signal.NotifyContext(
		context.Background(),
		syscall.SIGINT,
		syscall.SIGTERM,
	)
	defer stop()

	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}

	logger := setupLogger(cfg.Log)
	slog.SetDefault(logger)

	logger.Info("starting application",
		"name", cfg.App.Name,
		"version", cfg.App.Version,
		"environment", cfg.App.Environment,
	)

	inf, err := openInfra(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer inf.close(logger)
	db, redis, jwtManager, gateway, objects := inf.db, inf.redis, inf.jwt, inf.gateway, inf.objects

	locker := core.NewRedisLocker(redis.Client, cfg.Reconcile.LockTTL, logger)

	userRepo := user.NewRepository(db.DB)
	userSvc := user.NewService(userRepo)
	userHandler := user.NewHandler(userSvc)

	authRepo := auth.NewRepository(db.DB)
	authSvc := auth.NewService(authRepo, jwtManager, userSvc, redis.Client)
	authHandler := auth.NewHandler(authSvc)

	listingSvc := listing.NewService(listing.NewRepository(db.DB))
	listingHandler := listing.NewHandler(listingSvc)

	offerSvc := offer.NewService(offer.NewRepository(db.DB), userSvc, logger)
	offerHandler := offer.NewHandler(offerSvc)

	subscriptionSvc := subscription.NewService(
		subscription.NewRepository(db.DB),
		gateway,
		locker,
		logger,
	)
	subscriptionHandler := subscription.NewHandler(subscriptionSvc)

	checkoutSvc := checkout.NewService(listingSvc, userSvc, offerSvc, gateway, logger)
	checkoutHandler := checkout.NewHandler(checkoutSvc)

	engine := webhook.NewEngine(listingSvc, userSvc, offerSvc, subscriptionSvc, gateway, logger)
	webhookHandler := webhook.NewHandler(webhook.HandlerConfig{
		Verifier:     gateway,
		Dispatcher:   engine,
		EventTimeout: cfg.Billing.EventTimeout,
		Logger:       logger,
	})

	storageHandler := storage.NewHandler(storage.HandlerConfig{
		Store:          objects,
		PresignTTL:     cfg.Storage.PresignTTL,
		MaxUploadBytes: cfg.Storage.MaxUploadBytes,
		Logger:         logger,
	})

	healthHandler := health.NewHandler(
		health.NamedChecker{Name: "database", Checker: db},
		health.NamedChecker{Name: "redis", Checker: redis},
		health.NamedChecker{Name: "object_store", Checker: objects},
	)

	adminHandler := admin.NewHandler(admin.HandlerConfig{
		Users:         userSvc,
		Listings:      listingSvc,
		Offers:        offerSvc,
		Subscriptions: subscriptionSvc,
		DBStats:       db.Stats,
		RedisStats:    redis.PoolStats,
		DBPing:        db.Ping,
		RedisPing:     redis.Ping,
		Logger:        logger,
	})

	srv := server.New(server.Config{
		ServerConfig:  cfg.Server,
		HealthHandler: healthHandler,
		Logger:        logger,
		Drainers:      []server.Drainer{webhookHandler},
	})

	router := srv.Router()

	router.Use(middleware.RequestID)
	router.Use(middleware.Logger(logger))
	router.Use(
		middleware.NewRateLimiter(redis.Client, middleware.RateLimitConfig{
			Limit: middleware.FromConfig(
				cfg.RateLimit.Requests,
				cfg.RateLimit.Burst,
				cfg.RateLimit.Window,
			),
			FailOpen:   true,
			BypassFunc: middleware.BypassPaths(apiPrefix + webhook.Path),
		}).Handler,
	)
	router.Use(middleware.SecurityHeaders(cfg.App.Environment == "production"))
	router.Use(middleware.CORS(cfg.CORS))

	healthHandler.RegisterRoutes(router)

	if cfg.Metrics.Enabled {
		router.Handle(cfg.Metrics.Path, promhttp.Handler())
	}

	router.Get("/.well-known/jwks.json", jwtManager.GetJWKSHandler())

	authenticator := middleware.Authenticator(authSvc)
	adminOnly := middleware.RequireAdmin

	router.Route(apiPrefix, func(r chi.Router) {
		webhookHandler.RegisterRoutes(r)

		authHandler.RegisterRoutes(r, authenticator)
		r.Post("/users", authHandler.Register)

		userHandler.RegisterRoutes(r, authenticator)
		userHandler.RegisterAdminRoutes(r, authenticator, adminOnly)

		listingHandler.RegisterRoutes(r, authenticator)
		checkoutHandler.RegisterRoutes(r, authenticator)
		offerHandler.RegisterRoutes(r, authenticator)
		subscriptionHandler.RegisterRoutes(r, authenticator)
		storageHandler.RegisterRoutes(r, authenticator)

		adminHandler.RegisterRoutes(r, authenticator, adminOnly)
	})

	if cfg.Reconcile.Enabled {
		m := &maintenance{
			locker:   locker,
			interval: cfg.Reconcile.Interval,
			logger:   logger,
			tasks: []maintenanceTask{
				{name: "offer_repair", run: func(ctx context.Context) (int, error) {
					report, err := offerSvc.RepairOrphans(ctx)
					return report.Total(), err
				}},
				{name: "token_purge", run: func(ctx context.Context) (int, error) {
					n, err := authSvc.PurgeExpiredTokens(ctx)
					return int(n), err
				}},
			},
		}
		go m.run(ctx)
	}

	errChan := make(chan error, 1)
	go func() {
		errChan <- srv.Start()
	}()

	select {
	case err := <-errChan:
		return err
	case <-ctx.Done():
		logger.Info("shutdown signal received")
	}

	shutdownCtx, cancel := context.WithTimeout(
		context.Background(),
		cfg.Server.ShutdownTimeout+drainDelay+cfg.Billing.EventTimeout,
	)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx, drainDelay); err != nil {
		logger.Error("server shutdown error", "error", err)
	}

	if err := inf.telemetry.Shutdown(shutdownCtx); err != nil {
		logger.Error("telemetry shutdown error", "error", err)
	}

	logger.Info("application stopped")
	return nil
}

func setupLogger(cfg config.LogConfig) *slog.Logger {
	var level slog.Level
	if err := level.UnmarshalText([]byte(cfg.Level)); err != nil {
		level = slog.LevelInfo
	}
	opts := &slog.HandlerOptions{Level: level}

	if cfg.Format == "json" {
		return slog.New(slog.NewJSONHandler(os.Stdout, opts))
	}
	return slog.New(slog.NewTextHandler(os.Stdout, opts))
}
