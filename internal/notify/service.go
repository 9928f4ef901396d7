package notify

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/tradefloor/tradefloor/internal/domain"
	"github.com/tradefloor/tradefloor/internal/store/postgres"
)

// ErrNoAccess is returned when the user cannot view the channel a
// preference targets.
var ErrNoAccess = errors.New("no access to channel")

// CanViewer answers channel visibility, implemented by the access service.
type CanViewer interface {
	CanView(ctx context.Context, userID, channelID uuid.UUID) (bool, error)
}

// Service serves the notification inbox and per-channel preferences.
type Service struct {
	notifs        *postgres.NotificationStore
	access        CanViewer
	retentionDays int
	log           *zap.Logger
}

// NewService creates the notification service over the given pool.
func NewService(pool *sql.DB, access CanViewer, retentionDays int, logger *zap.Logger) *Service {
	return &Service{
		notifs:        postgres.NewNotificationStore(pool),
		access:        access,
		retentionDays: retentionDays,
		log:           logger,
	}
}

// List returns the user's notifications, newest first, cursor paginated.
func (s *Service) List(ctx context.Context, userID uuid.UUID, unreadOnly bool, limit int, beforeID *uuid.UUID) ([]*domain.Notification, error) {
	return s.notifs.ListNotifications(ctx, userID, unreadOnly, clampLimit(limit), beforeID)
}

// UnreadCount returns how many unread notifications the user has.
func (s *Service) UnreadCount(ctx context.Context, userID uuid.UUID) (int, error) {
	return s.notifs.UnreadCount(ctx, userID)
}

// MarkRead marks one of the user's notifications read. Marking someone
// else's notification is a not-found.
func (s *Service) MarkRead(ctx context.Context, userID, notificationID uuid.UUID) error {
	return s.notifs.MarkRead(ctx, userID, notificationID)
}

// MarkAllRead marks all of the user's notifications read.
func (s *Service) MarkAllRead(ctx context.Context, userID uuid.UUID) (int64, error) {
	return s.notifs.MarkAllRead(ctx, userID)
}

// SetChannelPref upserts the user's notification preference for a
// channel they can view.
func (s *Service) SetChannelPref(ctx context.Context, userID, channelID uuid.UUID, enabled bool) error {
	ok, err := s.access.CanView(ctx, userID, channelID)
	if err != nil {
		return err
	}
	if !ok {
		return ErrNoAccess
	}
	return s.notifs.SetPref(ctx, userID, channelID, enabled)
}

// GetChannelPref reports the user's effective preference for a channel.
// Absent rows count as enabled.
func (s *Service) GetChannelPref(ctx context.Context, userID, channelID uuid.UUID) (bool, error) {
	return s.notifs.GetPref(ctx, userID, channelID)
}

// HandlePurge is the notifications.purge job handler: it deletes read
// notifications older than the retention window.
func (s *Service) HandlePurge(ctx context.Context, _ map[string]interface{}) error {
	cutoff := time.Now().AddDate(0, 0, -s.retentionDays)
	purged, err := s.notifs.PurgeRead(ctx, cutoff)
	if err != nil {
		return err
	}
	s.log.Info("purged read notifications",
		zap.Int64("purged", purged),
		zap.Time("cutoff", cutoff))
	return nil
}

func clampLimit(limit int) int {
	if limit < 1 {
		return 50
	}
	if limit > 100 {
		return 100
	}
	return limit
}
