package auth

import (
	"context"

	"github.com/google/uuid"

	webcontext "github.com/tradefloor/tradefloor/internal/web/context"
)

// GetCurrentUser retrieves the authenticated user id from the context.
// Returns uuid.Nil if no user is authenticated.
func GetCurrentUser(ctx context.Context) uuid.UUID {
	return webcontext.GetCurrentUser(ctx)
}

// SetCurrentUser adds the user id to the context
func SetCurrentUser(ctx context.Context, userID uuid.UUID) context.Context {
	return webcontext.SetCurrentUser(ctx, userID)
}
