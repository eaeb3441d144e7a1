package middleware

import (
	"context"
	"fmt"
	"math"
	"net"
	"net/http"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

const (
	headerLimit     = "X-RateLimit-Limit"
	headerRemaining = "X-RateLimit-Remaining"
	headerReset     = "X-RateLimit-Reset"

	rateLimitPrefix = "catalog:ratelimit"
)

// Quota is a caller's standing in the current window after one request was
// counted against it.
type Quota struct {
	Limit     int
	Remaining int
	Reset     time.Time
	Allowed   bool
}

// RateLimiter counts query requests per caller in fixed windows kept in
// Redis. Windows are aligned to multiples of the window length, so every API
// instance maps a request to the same counter.
type RateLimiter struct {
	client *redis.Client
	limit  int
	window time.Duration
	logger *zap.Logger
	now    func() time.Time
}

func NewRateLimiter(client *redis.Client, limit int, window time.Duration, logger *zap.Logger) *RateLimiter {
	return &RateLimiter{
		client: client,
		limit:  limit,
		window: window,
		logger: logger,
		now:    time.Now,
	}
}

// windowKey names the counter of caller for the window containing at
func (l *RateLimiter) windowKey(caller string, at time.Time) (string, time.Time) {
	start := at.Truncate(l.window)
	return fmt.Sprintf("%s:%s:%d", rateLimitPrefix, caller, start.Unix()), start.Add(l.window)
}

// Take counts one request for caller and reports the resulting quota.
func (l *RateLimiter) Take(ctx context.Context, caller string) (Quota, error) {
	key, reset := l.windowKey(caller, l.now())

	pipe := l.client.TxPipeline()
	count := pipe.Incr(ctx, key)
	pipe.Expire(ctx, key, l.window)
	if _, err := pipe.Exec(ctx); err != nil {
		return Quota{}, fmt.Errorf("failed to count request: %w", err)
	}

	used := int(count.Val())
	return Quota{
		Limit:     l.limit,
		Remaining: max(l.limit-used, 0),
		Reset:     reset,
		Allowed:   used <= l.limit,
	}, nil
}

// Middleware rejects callers over their quota with 429. It must run after
// TenantMiddleware so that a tenant shares one budget across addresses. When
// Redis is unreachable requests are let through.
func (l *RateLimiter) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		caller := callerKey(r)

		quota, err := l.Take(r.Context(), caller)
		if err != nil {
			l.logger.Warn("Rate limiter unavailable, request not counted",
				zap.String("caller", caller),
				zap.Error(err),
			)
			next.ServeHTTP(w, r)
			return
		}

		h := w.Header()
		h.Set(headerLimit, strconv.Itoa(quota.Limit))
		h.Set(headerRemaining, strconv.Itoa(quota.Remaining))
		h.Set(headerReset, strconv.FormatInt(quota.Reset.Unix(), 10))

		if !quota.Allowed {
			retryAfter := int(math.Ceil(quota.Reset.Sub(l.now()).Seconds()))
			h.Set("Retry-After", strconv.Itoa(retryAfter))

			l.logger.Warn("Rate limit exceeded",
				zap.String("caller", caller),
				zap.Int("limit", quota.Limit),
				zap.Time("reset", quota.Reset),
			)
			RespondWithErrorDetails(w, http.StatusTooManyRequests, "rate limit exceeded", map[string]interface{}{
				"limit":             quota.Limit,
				"retryAfterSeconds": retryAfter,
			})
			return
		}

		next.ServeHTTP(w, r)
	})
}

// callerKey identifies who a request is counted against: its tenant when
// known, its client address otherwise. Ports are dropped so that one client
// keeps one budget across connections.
func callerKey(r *http.Request) string {
	if tenantID, ok := GetTenantID(r.Context()); ok {
		return "tenant:" + tenantID.String()
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		host = r.RemoteAddr
	}
	return "addr:" + host
}
