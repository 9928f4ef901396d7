package middleware

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/tradefloor/tradefloor/internal/ratelimit"
	"github.com/tradefloor/tradefloor/internal/web/response"
)

// RateLimitConfig holds configuration for rate limiting middleware
type RateLimitConfig struct {
	// Limiter is the rate limiter implementation to use
	Limiter ratelimit.RateLimiter
	// KeyFunc extracts the rate limit key from the request
	KeyFunc RateLimitKeyFunc
	// FailOpen determines behavior when the limiter returns an error.
	// If true, the request is allowed through.
	FailOpen bool
}

// RateLimitKeyFunc extracts a rate limit key from a request
type RateLimitKeyFunc func(*http.Request) string

// RateLimit creates a rate limiting middleware keyed by authenticated
// user, falling back to client IP for unauthenticated requests
func RateLimit(limiter ratelimit.RateLimiter) Middleware {
	return RateLimitWithConfig(RateLimitConfig{
		Limiter:  limiter,
		KeyFunc:  UserKeyFunc,
		FailOpen: true,
	})
}

// RateLimitWithConfig creates a rate limiting middleware with custom configuration
func RateLimitWithConfig(config RateLimitConfig) Middleware {
	keyFunc := config.KeyFunc
	if keyFunc == nil {
		keyFunc = UserKeyFunc
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			key := keyFunc(r)
			if key == "" {
				next.ServeHTTP(w, r)
				return
			}

			info, err := config.Limiter.Allow(r.Context(), key)
			if err != nil {
				// A broken limiter must not take the API down with it
				if config.FailOpen {
					next.ServeHTTP(w, r)
					return
				}
				response.RenderServiceUnavailable(w, "rate limiter unavailable")
				return
			}

			w.Header().Set("X-RateLimit-Limit", strconv.Itoa(info.Limit))
			w.Header().Set("X-RateLimit-Remaining", strconv.Itoa(info.Remaining))
			w.Header().Set("X-RateLimit-Reset", strconv.FormatInt(info.ResetAt.Unix(), 10))

			if !info.Allowed {
				retryAfter := int64(time.Until(info.ResetAt).Seconds())
				if retryAfter < 0 {
					retryAfter = 0
				}
				response.RenderTooManyRequests(w, int(retryAfter))
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

// IPKeyFunc extracts the client IP from the request.
// Checks X-Forwarded-For first, then X-Real-IP, then RemoteAddr.
func IPKeyFunc(r *http.Request) string {
	xff := r.Header.Get("X-Forwarded-For")
	if xff != "" {
		ips := strings.Split(xff, ",")
		if len(ips) > 0 {
			ip := strings.TrimSpace(ips[0])
			if ip != "" {
				return "ip:" + ip
			}
		}
	}

	xri := r.Header.Get("X-Real-IP")
	if xri != "" {
		return "ip:" + xri
	}

	// RemoteAddr is "ip:port", keep just the IP
	addr := r.RemoteAddr
	if idx := strings.LastIndex(addr, ":"); idx != -1 {
		addr = addr[:idx]
	}
	return "ip:" + addr
}

// UserKeyFunc keys by authenticated user, falling back to client IP
func UserKeyFunc(r *http.Request) string {
	userID := GetUserID(r.Context())
	if userID == uuid.Nil {
		return IPKeyFunc(r)
	}
	return "user:" + userID.String()
}
