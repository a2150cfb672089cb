// AngelaMos | 2026
// ratelimit.go

package middleware

import (
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	redis_rate "github.com/go-redis/redis_rate/v10"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"golang.org/x/time/rate"

	"github.com/carterperez-dev/templates/media-rental/internal/core"
)

type RateLimitConfig struct {
	Limit      redis_rate.Limit
	KeyFunc    func(*http.Request) string
	FailOpen   bool
	BypassFunc func(*http.Request) bool
}

// RateLimiter enforces a shared budget through Redis and degrades to an
// in-process token bucket per key while Redis is unreachable.
type RateLimiter struct {
	redis    *redis_rate.Limiter
	fallback *localLimiter
	cfg      RateLimitConfig
}

func NewRateLimiter(rdb *redis.Client, cfg RateLimitConfig) *RateLimiter {
	if cfg.KeyFunc == nil {
		cfg.KeyFunc = KeyByIP
	}
	return &RateLimiter{
		redis:    redis_rate.NewLimiter(rdb),
		fallback: &localLimiter{},
		cfg:      cfg,
	}
}

func (rl *RateLimiter) Handler(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if rl.cfg.BypassFunc != nil && rl.cfg.BypassFunc(r) {
			next.ServeHTTP(w, r)
			return
		}

		key := rl.cfg.KeyFunc(r)
		res, err := rl.redis.Allow(r.Context(), key, rl.cfg.Limit)
		if err != nil {
			slog.WarnContext(r.Context(), "redis rate limiter unavailable, using local bucket",
				"error", err,
				"key", key,
			)
			res, err = rl.fallback.allow(key, rl.cfg.Limit)
		}
		if err != nil {
			if rl.cfg.FailOpen {
				next.ServeHTTP(w, r)
				return
			}
			core.JSON(w, http.StatusServiceUnavailable, core.Envelope{
				Status:  core.StatusError,
				Code:    "RATE_LIMITER_UNAVAILABLE",
				Message: "Service temporarily unavailable",
			})
			return
		}

		writeLimitHeaders(w.Header(), res)
		if res.Allowed == 0 {
			writeRateLimitExceeded(w, res)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func KeyByIP(r *http.Request) string {
	return "ratelimit:ip:" + ClientIP(r)
}

// ClientIP trusts the last X-Forwarded-For hop, which is the one appended
// by our own proxy.
func ClientIP(r *http.Request) string {
	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		hops := strings.Split(xff, ",")
		return strings.TrimSpace(hops[len(hops)-1])
	}
	if xri := r.Header.Get("X-Real-IP"); xri != "" {
		return xri
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

func KeyByUser(r *http.Request) string {
	if id := GetUserID(r.Context()); id != "" {
		return "ratelimit:user:" + id
	}
	return KeyByIP(r)
}

// KeyByUserAndEndpoint separates budgets per route so a chatty listing browse
// does not starve checkout for the same account.
func KeyByUserAndEndpoint(r *http.Request) string {
	return KeyByUser(r) + ":endpoint:" + normalizeEndpoint(r.URL.Path)
}

func normalizeEndpoint(path string) string {
	segments := strings.Split(strings.Trim(path, "/"), "/")
	for i, s := range segments {
		if uuid.Validate(s) == nil || isNumeric(s) {
			segments[i] = "{id}"
		}
	}
	return "/" + strings.Join(segments, "/")
}

func isNumeric(s string) bool {
	_, err := strconv.ParseUint(s, 10, 64)
	return err == nil
}

func writeLimitHeaders(h http.Header, res *redis_rate.Result) {
	limit := res.Limit
	h.Set("X-RateLimit-Limit", strconv.Itoa(limit.Rate))
	h.Set("X-RateLimit-Remaining", strconv.Itoa(res.Remaining))
	h.Set("X-RateLimit-Reset", strconv.FormatInt(time.Now().Add(res.ResetAfter).Unix(), 10))
	h.Set("RateLimit-Policy", fmt.Sprintf("%d;w=%d", limit.Rate, int(limit.Period.Seconds())))
	h.Set("RateLimit", fmt.Sprintf("%d;t=%d", res.Remaining, int(res.ResetAfter.Seconds())))
}

func writeRateLimitExceeded(w http.ResponseWriter, res *redis_rate.Result) {
	retryAfter := max(int(res.RetryAfter.Seconds()), 1)

	w.Header().Set("Retry-After", strconv.Itoa(retryAfter))
	core.JSON(w, http.StatusTooManyRequests, core.Envelope{
		Status:  core.StatusError,
		Code:    "RATE_LIMITED",
		Message: fmt.Sprintf("Rate limit exceeded. Retry after %d seconds.", retryAfter),
	})
}

// BypassPaths skips limiting for exact path matches. Provider callbacks are
// retried by the provider and must never see a 429.
func BypassPaths(paths ...string) func(*http.Request) bool {
	set := make(map[string]struct{}, len(paths))
	for _, p := range paths {
		set[p] = struct{}{}
	}
	return func(r *http.Request) bool {
		_, ok := set[r.URL.Path]
		return ok
	}
}

// FromConfig converts the configured window into a limiter rate.
func FromConfig(requests, burst int, window time.Duration) redis_rate.Limit {
	if window <= 0 {
		window = time.Minute
	}
	return redis_rate.Limit{Rate: requests, Burst: burst, Period: window}
}

func PerMinute(requests, burst int) redis_rate.Limit {
	return FromConfig(requests, burst, time.Minute)
}

const localBucketTTL = 10 * time.Minute

type bucket struct {
	*rate.Limiter
	seen time.Time
}

// localLimiter holds one token bucket per key. Idle buckets are swept
// inline whenever a new key is added.
type localLimiter struct {
	mu      sync.Mutex
	buckets map[string]*bucket
}

func (l *localLimiter) allow(key string, limit redis_rate.Limit) (*redis_rate.Result, error) {
	if limit.Rate <= 0 || limit.Period <= 0 {
		return nil, fmt.Errorf("local limiter: invalid limit %s", limit)
	}
	perSec := rate.Limit(float64(limit.Rate) / limit.Period.Seconds())
	interval := time.Duration(float64(time.Second) / float64(perSec))
	now := time.Now()

	l.mu.Lock()
	if l.buckets == nil {
		l.buckets = make(map[string]*bucket)
	}
	b, ok := l.buckets[key]
	if !ok {
		l.sweep(now)
		b = &bucket{Limiter: rate.NewLimiter(perSec, limit.Burst)}
		l.buckets[key] = b
	}
	b.seen = now
	allowed := b.AllowN(now, 1)
	remaining := max(int(b.TokensAt(now)), 0)
	l.mu.Unlock()

	res := &redis_rate.Result{
		Limit:      limit,
		Remaining:  remaining,
		RetryAfter: -1,
		ResetAfter: interval,
	}
	if allowed {
		res.Allowed = 1
	} else {
		res.RetryAfter = interval
	}
	return res, nil
}

func (l *localLimiter) sweep(now time.Time) {
	for k, b := range l.buckets {
		if now.Sub(b.seen) > localBucketTTL {
			delete(l.buckets, k)
		}
	}
}
