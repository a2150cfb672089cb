// AngelaMos | 2026
// redis.go

package core

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/carterperez-dev/templates/media-rental/internal/config"
)

type Redis struct {
	Client *redis.Client
}

func NewRedis(ctx context.Context, cfg config.RedisConfig) (*Redis, error) {
	opts, err := redis.ParseURL(cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}

	opts.PoolSize = cfg.PoolSize
	opts.MinIdleConns = cfg.MinIdleConns
	opts.PoolTimeout = 30 * time.Second
	opts.ConnMaxIdleTime = 5 * time.Minute

	client := redis.NewClient(opts)

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	if err := client.Ping(pingCtx).Err(); err != nil {
		return nil, fmt.Errorf("ping redis: %w", err)
	}

	return &Redis{Client: client}, nil
}

func (r *Redis) Close() error {
	if r.Client != nil {
		return r.Client.Close()
	}
	return nil
}

func (r *Redis) Ping(ctx context.Context) error {
	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	if err := r.Client.Ping(pingCtx).Err(); err != nil {
		return fmt.Errorf("redis ping failed: %w", err)
	}

	return nil
}

func (r *Redis) PoolStats() *redis.PoolStats {
	return r.Client.PoolStats()
}

const (
	lockKeyPrefix = "lock:"
	lockRetry     = 50 * time.Millisecond
)

var releaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0`)

// RedisLocker serializes work per key across processes with SET NX PX.
// When redis is unreachable it degrades to an in-process lock so a single
// replica still never runs two holders of the same key.
type RedisLocker struct {
	client   *redis.Client
	ttl      time.Duration
	fallback *LocalLocker
	logger   *slog.Logger
}

func NewRedisLocker(
	client *redis.Client,
	ttl time.Duration,
	logger *slog.Logger,
) *RedisLocker {
	if logger == nil {
		logger = slog.Default()
	}
	return &RedisLocker{
		client:   client,
		ttl:      ttl,
		fallback: NewLocalLocker(),
		logger:   logger,
	}
}

func (l *RedisLocker) Lock(ctx context.Context, key string) (func(), error) {
	redisKey := lockKeyPrefix + key
	token := uuid.New().String()

	for {
		ok, err := l.client.SetNX(ctx, redisKey, token, l.ttl).Result()
		if err != nil {
			if ctx.Err() != nil {
				return nil, fmt.Errorf("acquire lock %q: %w", key, ctx.Err())
			}
			l.logger.Warn("redis lock unavailable, using local lock",
				"key", key,
				"error", err,
			)
			return l.fallback.Lock(ctx, key)
		}

		if ok {
			return func() {
				releaseCtx, cancel := context.WithTimeout(
					context.WithoutCancel(ctx),
					2*time.Second,
				)
				defer cancel()

				err := releaseScript.Run(releaseCtx, l.client, []string{redisKey}, token).Err()
				if err != nil && !errors.Is(err, redis.Nil) {
					l.logger.Warn("release redis lock", "key", key, "error", err)
				}
			}, nil
		}

		select {
		case <-ctx.Done():
			return nil, fmt.Errorf("acquire lock %q: %w", key, ctx.Err())
		case <-time.After(lockRetry):
		}
	}
}

// TryLock acquires key without waiting. ok is false when another holder
// owns it.
func (l *RedisLocker) TryLock(
	ctx context.Context,
	key string,
) (unlock func(), ok bool, err error) {
	redisKey := lockKeyPrefix + key
	token := uuid.New().String()

	acquired, err := l.client.SetNX(ctx, redisKey, token, l.ttl).Result()
	if err != nil {
		return nil, false, fmt.Errorf("try lock %q: %w", key, err)
	}
	if !acquired {
		return nil, false, nil
	}

	return func() {
		//nolint:errcheck // lock expires on its own if release fails
		_ = releaseScript.Run(
			context.WithoutCancel(ctx),
			l.client,
			[]string{redisKey},
			token,
		).Err()
	}, true, nil
}
