package auth

import (
	"context"
	"testing"

	"github.com/google/uuid"
)

func TestCurrentUserRoundTrip(t *testing.T) {
	ctx := context.Background()

	if got := GetCurrentUser(ctx); got != uuid.Nil {
		t.Errorf("GetCurrentUser() on empty context = %v, want uuid.Nil", got)
	}

	userID := uuid.New()
	ctx = SetCurrentUser(ctx, userID)

	if got := GetCurrentUser(ctx); got != userID {
		t.Errorf("GetCurrentUser() = %v, want %v", got, userID)
	}
}
