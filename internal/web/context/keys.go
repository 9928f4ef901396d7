package context

import (
	"context"

	"github.com/google/uuid"
)

// contextKey is a custom type for context keys to avoid collisions
type contextKey int

const (
	requestIDKey contextKey = iota
	currentUserKey
)

// GetRequestID extracts the request ID from the context
func GetRequestID(ctx context.Context) string {
	if id, ok := ctx.Value(requestIDKey).(string); ok {
		return id
	}
	return ""
}

// SetRequestID adds the request ID to the context
func SetRequestID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, requestIDKey, id)
}

// GetCurrentUser extracts the authenticated user id from the context.
// Returns uuid.Nil when no user is authenticated.
func GetCurrentUser(ctx context.Context) uuid.UUID {
	if user, ok := ctx.Value(currentUserKey).(uuid.UUID); ok {
		return user
	}
	return uuid.Nil
}

// SetCurrentUser adds the authenticated user id to the context
func SetCurrentUser(ctx context.Context, user uuid.UUID) context.Context {
	return context.WithValue(ctx, currentUserKey, user)
}
