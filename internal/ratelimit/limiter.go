// Package ratelimit provides rate limiting for message posting and other
// write-heavy endpoints. A Redis-backed sliding window limiter serves
// multi-node deployments, with an in-memory token bucket fallback.
package ratelimit

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// RateLimiter defines the interface for rate limiting implementations
type RateLimiter interface {
	// Allow checks if a request should be allowed for the given key
	Allow(ctx context.Context, key string) (*RateLimitInfo, error)
}

// RateLimitInfo contains information about the current rate limit state
type RateLimitInfo struct {
	// Limit is the maximum number of requests allowed in the window
	Limit int
	// Remaining is the number of requests remaining in the current window
	Remaining int
	// ResetAt is when the rate limit window resets
	ResetAt time.Time
	// Allowed indicates whether the request should be allowed
	Allowed bool
}

// MessageKey builds the limiter key for posts by one user into one channel
func MessageKey(userID, channelID uuid.UUID) string {
	return fmt.Sprintf("messages:%s:%s", userID, channelID)
}
