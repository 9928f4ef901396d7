package domain

import (
	"time"

	"github.com/google/uuid"
)

// Names of the roles seeded into every new server. Admin is unmanaged;
// the premium/free pair is managed by the billing tier machinery.
const (
	RoleNameAdmin   = "admin"
	RoleNamePremium = "premium"
	RoleNameFree    = "free"
)

// Role is a named permission bucket within one server. A role grants
// access to channels directly (RoleChannelAccess) or to whole sections
// (RoleSectionAccess).
type Role struct {
	ID       uuid.UUID `db:"id" json:"id"`
	ServerID uuid.UUID `db:"server_id" json:"server_id"`
	Name     string    `db:"name" json:"name"`
	// Managed marks the role as owned by subscription sync: members
	// holding a managed role are moved between the premium and default
	// tiers as their subscription status changes. Hand-assigned roles
	// (admin, custom) have Managed false and are never touched.
	Managed bool `db:"managed" json:"managed"`
	// IsDefault marks the role assigned on join. Exactly one per server.
	IsDefault bool `db:"is_default" json:"is_default"`
	// Premium marks the managed paid tier. At most one per server.
	Premium   bool      `db:"premium" json:"premium"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
}

// RoleChannelAccess grants a role access to a single channel.
type RoleChannelAccess struct {
	RoleID    uuid.UUID `db:"role_id" json:"role_id"`
	ChannelID uuid.UUID `db:"channel_id" json:"channel_id"`
}

// RoleSectionAccess grants a role access to every channel in a section,
// including channels added to the section later.
type RoleSectionAccess struct {
	RoleID    uuid.UUID `db:"role_id" json:"role_id"`
	SectionID uuid.UUID `db:"section_id" json:"section_id"`
}

// Member is a user's membership in one server. Each member holds
// exactly one role, and the role belongs to the same server.
type Member struct {
	ID       uuid.UUID `db:"id" json:"id"`
	ServerID uuid.UUID `db:"server_id" json:"server_id"`
	UserID   uuid.UUID `db:"user_id" json:"user_id"`
	RoleID   uuid.UUID `db:"role_id" json:"role_id"`
	JoinedAt time.Time `db:"joined_at" json:"joined_at"`
}
