package domain

import (
	"time"

	"github.com/google/uuid"
)

// MaxMessageLength is the upper bound on message bodies, in runes.
const MaxMessageLength = 4000

// Message is a single chat message in a channel.
type Message struct {
	ID        uuid.UUID `db:"id" json:"id"`
	ChannelID uuid.UUID `db:"channel_id" json:"channel_id"`
	AuthorID  uuid.UUID `db:"author_id" json:"author_id"`
	Body      string    `db:"body" json:"body"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
}
