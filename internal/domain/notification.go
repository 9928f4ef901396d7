package domain

import (
	"time"

	"github.com/google/uuid"
)

// Notification is one recipient's copy of a message event, produced by
// the fan-out at message insert time.
type Notification struct {
	ID        uuid.UUID `db:"id" json:"id"`
	UserID    uuid.UUID `db:"user_id" json:"user_id"`
	MessageID uuid.UUID `db:"message_id" json:"message_id"`
	ChannelID uuid.UUID `db:"channel_id" json:"channel_id"`
	ServerID  uuid.UUID `db:"server_id" json:"server_id"`
	Read      bool      `db:"read" json:"read"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
}

// NotificationPref is a user's per-channel notification opt-in/out.
// The absence of a row means enabled: fan-out treats missing prefs as
// true, so only explicit opt-outs (and explicit re-opt-ins) are stored.
type NotificationPref struct {
	UserID    uuid.UUID `db:"user_id" json:"user_id"`
	ChannelID uuid.UUID `db:"channel_id" json:"channel_id"`
	Enabled   bool      `db:"enabled" json:"enabled"`
	UpdatedAt time.Time `db:"updated_at" json:"updated_at"`
}
