// AngelaMos | 2026
// infra.go

package main

import (
	"context"
	"log/slog"

	"github.com/carterperez-dev/templates/media-rental/internal/auth"
	"github.com/carterperez-dev/templates/media-rental/internal/billing"
	"github.com/carterperez-dev/templates/media-rental/internal/config"
	"github.com/carterperez-dev/templates/media-rental/internal/core"
	"github.com/carterperez-dev/templates/media-rental/internal/storage"
)

// infra holds the process-wide clients. Each is built once here and
// injected into the services that need it.
type infra struct {
	telemetry *core.Telemetry
	db        *core.Database
	redis     *core.Redis
	jwt       *auth.JWTManager
	gateway   *billing.StripeGateway
	objects   *storage.S3Store
}

func openInfra(ctx context.Context, cfg *config.Config, logger *slog.Logger) (_ *infra, err error) {
	inf := &infra{}
	defer func() {
		if err != nil {
			inf.close(logger)
		}
	}()

	tel, telErr := core.NewTelemetry(ctx, cfg.Otel, cfg.App)
	inf.telemetry = tel
	if telErr != nil {
		logger.Warn("tracing disabled", "error", telErr)
	} else if cfg.Otel.Enabled {
		logger.Info("tracing enabled", "endpoint", cfg.Otel.Endpoint)
	}

	if inf.db, err = core.NewDatabase(ctx, cfg.Database); err != nil {
		return nil, err
	}
	logger.Info("database connected",
		"max_open_conns", cfg.Database.MaxOpenConns,
		"max_idle_conns", cfg.Database.MaxIdleConns,
	)
	if cfg.Database.AutoMigrate {
		if err = inf.db.Migrate(logger); err != nil {
			return nil, err
		}
	}

	if inf.redis, err = core.NewRedis(ctx, cfg.Redis); err != nil {
		return nil, err
	}
	logger.Info("redis connected", "pool_size", cfg.Redis.PoolSize)

	if inf.jwt, err = auth.NewJWTManager(cfg.JWT); err != nil {
		return nil, err
	}
	logger.Info("jwt signing key loaded", "key_id", inf.jwt.GetKeyID())

	inf.gateway = billing.NewStripeGateway(billing.StripeConfig{
		SecretKey:      cfg.Billing.SecretKey,
		WebhookSecret:  cfg.Billing.WebhookSecret,
		Currency:       cfg.Billing.Currency,
		SuccessURL:     cfg.SuccessURL(),
		CancelURL:      cfg.CancelURL(),
		RequestTimeout: cfg.Billing.RequestTimeout,
	})

	if inf.objects, err = storage.NewS3Store(ctx, cfg.Storage); err != nil {
		return nil, err
	}
	logger.Info("object store configured", "bucket", cfg.Storage.Bucket)

	return inf, nil
}

// close releases connections in reverse order of opening. Safe on a
// partially opened infra.
func (i *infra) close(logger *slog.Logger) {
	if i.redis != nil {
		if err := i.redis.Close(); err != nil {
			logger.Error("redis close error", "error", err)
		}
	}
	if i.db != nil {
		if err := i.db.Close(); err != nil {
			logger.Error("database close error", "error", err)
		}
	}
}
