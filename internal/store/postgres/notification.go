package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/tradefloor/tradefloor/internal/db"
	"github.com/tradefloor/tradefloor/internal/domain"
	"github.com/tradefloor/tradefloor/internal/store"
)

// NotificationStore persists notifications and per-channel preferences.
type NotificationStore struct {
	q store.Querier
}

var _ store.NotificationStore = (*NotificationStore)(nil)

// NewNotificationStore creates a NotificationStore over the given pool.
func NewNotificationStore(pool *sql.DB) *NotificationStore {
	return &NotificationStore{q: pool}
}

// WithTx returns a copy of the store bound to the transaction.
func (s *NotificationStore) WithTx(tx *sql.Tx) *NotificationStore {
	return &NotificationStore{q: tx}
}

// fanOutQuery computes the recipient set of a message and writes one
// notification per recipient: members of the channel's server whose
// role holds a direct channel grant or a covering section grant, whose
// per-channel preference is enabled (no row counts as enabled), and who
// are not the author. Each LEFT JOIN target is unique per member, so
// the select cannot produce duplicate recipients. The trigger installed
// in migration 0004 performs the identical insert.
const fanOutQuery = `
INSERT INTO notifications (id, user_id, message_id, channel_id, server_id, read, created_at)
SELECT gen_random_uuid(), m.user_id, msg.id, msg.channel_id, c.server_id, FALSE, now()
FROM messages msg
JOIN channels c ON c.id = msg.channel_id
JOIN members m ON m.server_id = c.server_id
LEFT JOIN role_channel_access rca ON rca.role_id = m.role_id AND rca.channel_id = c.id
LEFT JOIN role_section_access rsa ON rsa.role_id = m.role_id AND rsa.section_id = c.section_id
LEFT JOIN notification_prefs p ON p.user_id = m.user_id AND p.channel_id = c.id
WHERE msg.id = $1
  AND m.user_id <> msg.author_id
  AND (rca.channel_id IS NOT NULL OR rsa.section_id IS NOT NULL)
  AND COALESCE(p.enabled, TRUE)`

// FanOut inserts one notification per eligible recipient of the
// message. Run inside the message's transaction (service mode) so the
// message and its notifications commit together.
func (s *NotificationStore) FanOut(ctx context.Context, messageID uuid.UUID) (int64, error) {
	res, err := s.q.ExecContext(ctx, fanOutQuery, messageID)
	if err != nil {
		return 0, fmt.Errorf("fan out notifications: %w", db.ConvertError(err))
	}
	rows, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("fan out notifications: %w", err)
	}
	return rows, nil
}

// ListNotifications returns the user's notifications, newest first,
// cursor paginated by beforeID.
func (s *NotificationStore) ListNotifications(ctx context.Context, userID uuid.UUID, unreadOnly bool, limit int, beforeID *uuid.UUID) ([]*domain.Notification, error) {
	const query = `
SELECT n.id, n.user_id, n.message_id, n.channel_id, n.server_id, n.read, n.created_at
FROM notifications n
WHERE n.user_id = $1
  AND (NOT $2 OR NOT n.read)
  AND ($4::uuid IS NULL OR (n.created_at, n.id) < (
		SELECT b.created_at, b.id FROM notifications b WHERE b.id = $4))
ORDER BY n.created_at DESC, n.id DESC
LIMIT $3`
	rows, err := s.q.QueryContext(ctx, query, userID, unreadOnly, limit, beforeID)
	if err != nil {
		return nil, fmt.Errorf("list notifications: %w", db.ConvertError(err))
	}
	defer rows.Close()

	var notifications []*domain.Notification
	for rows.Next() {
		var n domain.Notification
		if err := rows.Scan(&n.ID, &n.UserID, &n.MessageID, &n.ChannelID, &n.ServerID, &n.Read, &n.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan notification: %w", err)
		}
		notifications = append(notifications, &n)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate notifications: %w", err)
	}
	return notifications, nil
}

// UnreadCount returns the user's unread notification count.
func (s *NotificationStore) UnreadCount(ctx context.Context, userID uuid.UUID) (int, error) {
	var count int
	err := s.q.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM notifications WHERE user_id = $1 AND NOT read`, userID).
		Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("count unread notifications: %w", db.ConvertError(err))
	}
	return count, nil
}

// MarkRead marks one notification read. Only the recipient's own rows
// match; anyone else gets not found.
func (s *NotificationStore) MarkRead(ctx context.Context, userID, notificationID uuid.UUID) error {
	res, err := s.q.ExecContext(ctx,
		`UPDATE notifications SET read = TRUE WHERE id = $1 AND user_id = $2`,
		notificationID, userID)
	if err != nil {
		return fmt.Errorf("mark notification read: %w", db.ConvertError(err))
	}
	rows, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("mark notification read: %w", err)
	}
	if rows == 0 {
		return db.ErrNotFound
	}
	return nil
}

// MarkAllRead marks every unread notification of the user read and
// returns how many changed.
func (s *NotificationStore) MarkAllRead(ctx context.Context, userID uuid.UUID) (int64, error) {
	res, err := s.q.ExecContext(ctx,
		`UPDATE notifications SET read = TRUE WHERE user_id = $1 AND NOT read`, userID)
	if err != nil {
		return 0, fmt.Errorf("mark all read: %w", db.ConvertError(err))
	}
	rows, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("mark all read: %w", err)
	}
	return rows, nil
}

// RecipientsForMessage lists user ids holding a notification for the
// message. Push dispatch reads from here so it works identically in
// both fan-out modes.
func (s *NotificationStore) RecipientsForMessage(ctx context.Context, messageID uuid.UUID) ([]uuid.UUID, error) {
	rows, err := s.q.QueryContext(ctx,
		`SELECT user_id FROM notifications WHERE message_id = $1`, messageID)
	if err != nil {
		return nil, fmt.Errorf("list recipients: %w", db.ConvertError(err))
	}
	defer rows.Close()

	var ids []uuid.UUID
	for rows.Next() {
		var id uuid.UUID
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scan recipient: %w", err)
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate recipients: %w", err)
	}
	return ids, nil
}

// PurgeRead deletes read notifications created before olderThan.
func (s *NotificationStore) PurgeRead(ctx context.Context, olderThan time.Time) (int64, error) {
	res, err := s.q.ExecContext(ctx,
		`DELETE FROM notifications WHERE read AND created_at < $1`, olderThan)
	if err != nil {
		return 0, fmt.Errorf("purge notifications: %w", db.ConvertError(err))
	}
	rows, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("purge notifications: %w", err)
	}
	return rows, nil
}

// SetPref upserts the user's per-channel notification preference.
func (s *NotificationStore) SetPref(ctx context.Context, userID, channelID uuid.UUID, enabled bool) error {
	const query = `
INSERT INTO notification_prefs (user_id, channel_id, enabled, updated_at)
VALUES ($1, $2, $3, now())
ON CONFLICT (user_id, channel_id)
DO UPDATE SET enabled = EXCLUDED.enabled, updated_at = now()`
	_, err := s.q.ExecContext(ctx, query, userID, channelID, enabled)
	if err != nil {
		return fmt.Errorf("set notification pref: %w", db.ConvertError(err))
	}
	return nil
}

// GetPref returns the user's preference for the channel. A missing row
// is enabled.
func (s *NotificationStore) GetPref(ctx context.Context, userID, channelID uuid.UUID) (bool, error) {
	var enabled bool
	err := s.q.QueryRowContext(ctx,
		`SELECT enabled FROM notification_prefs WHERE user_id = $1 AND channel_id = $2`,
		userID, channelID).Scan(&enabled)
	if errors.Is(err, sql.ErrNoRows) {
		return true, nil
	}
	if err != nil {
		return false, fmt.Errorf("get notification pref: %w", db.ConvertError(err))
	}
	return enabled, nil
}
