package domain

import (
	"time"

	"github.com/google/uuid"
)

// Server is a community instance: a named space owning sections,
// channels, roles, and members.
type Server struct {
	ID        uuid.UUID `db:"id" json:"id"`
	Name      string    `db:"name" json:"name"`
	Slug      string    `db:"slug" json:"slug"`
	OwnerID   uuid.UUID `db:"owner_id" json:"owner_id"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
}

// Section groups channels inside a server. Position orders sections
// within the server listing.
type Section struct {
	ID       uuid.UUID `db:"id" json:"id"`
	ServerID uuid.UUID `db:"server_id" json:"server_id"`
	Name     string    `db:"name" json:"name"`
	Position int       `db:"position" json:"position"`
}

// Channel is a message stream inside a server, optionally grouped under
// a section. SectionID is nil for top-level channels.
type Channel struct {
	ID        uuid.UUID  `db:"id" json:"id"`
	ServerID  uuid.UUID  `db:"server_id" json:"server_id"`
	SectionID *uuid.UUID `db:"section_id" json:"section_id,omitempty"`
	Name      string     `db:"name" json:"name"`
	Topic     string     `db:"topic" json:"topic,omitempty"`
	Position  int        `db:"position" json:"position"`
	CreatedAt time.Time  `db:"created_at" json:"created_at"`
}
