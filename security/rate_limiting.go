package security

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/pocketbase/pocketbase/apis"
	"github.com/pocketbase/pocketbase/core"
	"github.com/redis/go-redis/v9"
)

const submissionKeyPrefix = "ratelimit:submission"

// RateLimiter counts requests per client in fixed redis windows. A nil
// redis client disables counting.
type RateLimiter struct {
	redis  *redis.Client
	limit  int64
	window time.Duration
	prefix string
}

func NewRateLimiter(redisClient *redis.Client, limit int, window time.Duration) *RateLimiter {
	if limit < 1 {
		limit = 1
	}
	if window <= 0 {
		window = time.Minute
	}
	return &RateLimiter{
		redis:  redisClient,
		limit:  int64(limit),
		window: window,
		prefix: submissionKeyPrefix,
	}
}

// Allow records one request for id and reports whether it is within the
// limit, together with the count so far in the current window.
func (r *RateLimiter) Allow(ctx context.Context, id string) (bool, int64, error) {
	if r.redis == nil {
		return true, 0, nil
	}

	key := fmt.Sprintf("%s:%s", r.prefix, id)

	// INCR and EXPIRE NX go out in one MULTI so a counter never lives
	// without a TTL. NX keeps the window fixed from the first request.
	var incr *redis.IntCmd
	_, err := r.redis.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		incr = pipe.Incr(ctx, key)
		pipe.ExpireNX(ctx, key, r.window)
		return nil
	})
	if err != nil {
		return true, 0, err
	}

	count := incr.Val()
	return count <= r.limit, count, nil
}

// SubmissionLimit guards the anonymous submission and upload routes. Redis
// failures let the request through.
func (r *RateLimiter) SubmissionLimit(e *core.RequestEvent) error {
	if isSuspiciousUserAgent(e.Request.Header.Get("User-Agent")) {
		return apis.NewForbiddenError("Access denied", nil)
	}

	ip := e.RealIP()
	allowed, count, err := r.Allow(e.Request.Context(), ip)
	if err != nil {
		slog.Warn("r.Allow()", "ip", ip, "error", err)
	}
	if !allowed {
		slog.Warn("submission rate limit exceeded", "ip", ip, "count", count)
		return apis.NewTooManyRequestsError("Too many submissions. Please try again later.", nil)
	}
	return e.Next()
}

func isSuspiciousUserAgent(ua string) bool {
	ua = strings.ToLower(ua)
	for _, pattern := range []string{"bot", "crawler", "spider", "scraper"} {
		if strings.Contains(ua, pattern) {
			return true
		}
	}
	return false
}
