package domain

import (
	"time"

	"github.com/google/uuid"
)

// PushSubscription is a browser Web Push endpoint registered by a user.
// Endpoint is unique; re-registering the same endpoint updates the keys.
type PushSubscription struct {
	ID        uuid.UUID `db:"id" json:"id"`
	UserID    uuid.UUID `db:"user_id" json:"user_id"`
	Endpoint  string    `db:"endpoint" json:"endpoint"`
	P256dh    string    `db:"p256dh" json:"p256dh"`
	Auth      string    `db:"auth" json:"auth"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
}
