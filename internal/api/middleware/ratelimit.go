package middleware

import (
	"fmt"
	"net"
	"net/http"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/LeArcanist/personas/internal/metrics"
)

// RateLimiter implements fixed-window rate limiting for message-send
// endpoints, counting per session token (falling back to client IP for
// requests without one). A nil Redis client disables limiting, which is
// the development default.
type RateLimiter struct {
	client *redis.Client
	limit  int
	window time.Duration
	logger zerolog.Logger
	cookie string
}

// NewRateLimiter creates a rate limiter. limit <= 0 disables it.
func NewRateLimiter(client *redis.Client, limit int, window time.Duration, cookieName string, logger zerolog.Logger) *RateLimiter {
	return &RateLimiter{
		client: client,
		limit:  limit,
		window: window,
		logger: logger,
		cookie: cookieName,
	}
}

// Limit is the middleware handler.
func (rl *RateLimiter) Limit(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if rl.client == nil || rl.limit <= 0 {
			next.ServeHTTP(w, r)
			return
		}

		key := rl.key(r)

		pipe := rl.client.Pipeline()
		incr := pipe.Incr(r.Context(), key)
		pipe.Expire(r.Context(), key, rl.window)
		if _, err := pipe.Exec(r.Context()); err != nil {
			// Fail open: a broken limiter must not block chat traffic.
			rl.logger.Error().Err(err).Msg("rate limit check failed")
			next.ServeHTTP(w, r)
			return
		}

		count := incr.Val()
		if count > int64(rl.limit) {
			metrics.RateLimitHits.WithLabelValues(normalizePath(r.URL.Path)).Inc()
			rl.logger.Warn().
				Str("key", key).
				Int64("count", count).
				Msg("rate limit exceeded")

			w.Header().Set("Retry-After", strconv.Itoa(int(rl.window.Seconds())))
			http.Error(w, `{"error":"rate limit exceeded"}`, http.StatusTooManyRequests)
			return
		}

		next.ServeHTTP(w, r)
	})
}

func (rl *RateLimiter) key(r *http.Request) string {
	if cookie, err := r.Cookie(rl.cookie); err == nil && cookie.Value != "" {
		return fmt.Sprintf("ratelimit:session:%s", cookie.Value)
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		host = r.RemoteAddr
	}
	return fmt.Sprintf("ratelimit:ip:%s", host)
}
