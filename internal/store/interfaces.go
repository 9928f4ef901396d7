// Package store defines the persistence interfaces the services depend
// on. Implementations live in store/postgres; errors are the sentinels
// from internal/db.
package store

import (
	"context"
	"database/sql"
	"time"

	"github.com/google/uuid"

	"github.com/tradefloor/tradefloor/internal/domain"
)

// Querier is the subset of database/sql shared by *sql.DB and *sql.Tx.
// Stores are bound to one; WithTx rebinds a store to a transaction so
// multi-store operations commit atomically.
type Querier interface {
	ExecContext(ctx context.Context, query string, args ...interface{}) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...interface{}) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...interface{}) *sql.Row
}

// UserStore persists user accounts.
type UserStore interface {
	CreateUser(ctx context.Context, u *domain.User) error
	GetUser(ctx context.Context, id uuid.UUID) (*domain.User, error)
	GetUserByEmail(ctx context.Context, email string) (*domain.User, error)
	GetUserByCustomerID(ctx context.Context, customerID string) (*domain.User, error)
	SetBillingCustomerID(ctx context.Context, userID uuid.UUID, customerID string) error
}

// ServerStore persists servers, sections, and channels.
type ServerStore interface {
	CreateServer(ctx context.Context, s *domain.Server) error
	GetServer(ctx context.Context, id uuid.UUID) (*domain.Server, error)
	GetServerBySlug(ctx context.Context, slug string) (*domain.Server, error)
	ListServersForUser(ctx context.Context, userID uuid.UUID) ([]*domain.Server, error)

	CreateSection(ctx context.Context, s *domain.Section) error
	GetSection(ctx context.Context, id uuid.UUID) (*domain.Section, error)
	CreateChannel(ctx context.Context, c *domain.Channel) error
	GetChannel(ctx context.Context, id uuid.UUID) (*domain.Channel, error)
}

// RoleStore persists roles and their channel/section grants, and
// answers the access questions derived from them.
type RoleStore interface {
	CreateRole(ctx context.Context, r *domain.Role) error
	GetRole(ctx context.Context, id uuid.UUID) (*domain.Role, error)
	GetRoleByName(ctx context.Context, serverID uuid.UUID, name string) (*domain.Role, error)
	GetManagedRole(ctx context.Context, serverID uuid.UUID, premium bool) (*domain.Role, error)

	GrantChannel(ctx context.Context, roleID, channelID uuid.UUID) error
	RevokeChannel(ctx context.Context, roleID, channelID uuid.UUID) error
	GrantSection(ctx context.Context, roleID, sectionID uuid.UUID) error
	RevokeSection(ctx context.Context, roleID, sectionID uuid.UUID) error

	// RoleHasChannelAccess is true when the role holds a direct grant
	// on the channel or a section grant covering the channel's section.
	RoleHasChannelAccess(ctx context.Context, roleID, channelID uuid.UUID) (bool, error)
	// ListVisibleChannels returns the channels of a server the role can
	// view, ordered for display.
	ListVisibleChannels(ctx context.Context, serverID, roleID uuid.UUID) ([]*domain.Channel, error)
}

// MemberStore persists server memberships.
type MemberStore interface {
	CreateMember(ctx context.Context, m *domain.Member) error
	GetMember(ctx context.Context, serverID, userID uuid.UUID) (*domain.Member, error)
	SetMemberRole(ctx context.Context, memberID, roleID uuid.UUID) error

	// ReassignManagedRoles moves every managed-role membership of the
	// user to the managed tier selected by entitled (premium when true,
	// default otherwise) and returns the updated memberships.
	// Memberships holding unmanaged roles are left alone.
	ReassignManagedRoles(ctx context.Context, userID uuid.UUID, entitled bool) ([]*domain.Member, error)
}

// MessageStore persists chat messages.
type MessageStore interface {
	InsertMessage(ctx context.Context, m *domain.Message) error
	GetMessage(ctx context.Context, id uuid.UUID) (*domain.Message, error)
	ListMessages(ctx context.Context, channelID uuid.UUID, limit int, beforeID *uuid.UUID) ([]*domain.Message, error)
}

// NotificationStore persists notifications and per-channel preferences.
type NotificationStore interface {
	// FanOut inserts one notification per eligible recipient of the
	// message: server members whose role can view the channel, whose
	// per-channel preference is enabled (absent rows count as enabled),
	// excluding the author. Returns the number of rows written.
	FanOut(ctx context.Context, messageID uuid.UUID) (int64, error)

	ListNotifications(ctx context.Context, userID uuid.UUID, unreadOnly bool, limit int, beforeID *uuid.UUID) ([]*domain.Notification, error)
	UnreadCount(ctx context.Context, userID uuid.UUID) (int, error)
	MarkRead(ctx context.Context, userID, notificationID uuid.UUID) error
	MarkAllRead(ctx context.Context, userID uuid.UUID) (int64, error)
	// RecipientsForMessage lists the user ids that received a fan-out
	// row for the message.
	RecipientsForMessage(ctx context.Context, messageID uuid.UUID) ([]uuid.UUID, error)
	PurgeRead(ctx context.Context, olderThan time.Time) (int64, error)

	SetPref(ctx context.Context, userID, channelID uuid.UUID, enabled bool) error
	GetPref(ctx context.Context, userID, channelID uuid.UUID) (bool, error)
}

// SubscriptionStore persists provider subscription mirrors and the
// webhook idempotency ledger.
type SubscriptionStore interface {
	// UpsertSubscription inserts or updates by provider subscription id.
	UpsertSubscription(ctx context.Context, s *domain.Subscription) error
	GetByProviderSubscriptionID(ctx context.Context, providerSubID string) (*domain.Subscription, error)
	GetByUserID(ctx context.Context, userID uuid.UUID) (*domain.Subscription, error)

	// RecordEvent records a webhook event id. Returns false when the id
	// was already recorded (replay).
	RecordEvent(ctx context.Context, providerEventID, eventType string) (bool, error)
}

// PushStore persists Web Push endpoint registrations.
type PushStore interface {
	UpsertPushSubscription(ctx context.Context, s *domain.PushSubscription) error
	DeletePushSubscription(ctx context.Context, userID uuid.UUID, endpoint string) error
	// DeleteEndpoint removes a subscription regardless of owner; used
	// when the push service reports the endpoint gone.
	DeleteEndpoint(ctx context.Context, endpoint string) error
	ListPushSubscriptions(ctx context.Context, userIDs []uuid.UUID) ([]*domain.PushSubscription, error)
}
