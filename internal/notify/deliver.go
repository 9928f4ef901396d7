package notify

import (
	"context"
	"database/sql"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/tradefloor/tradefloor/internal/domain"
	"github.com/tradefloor/tradefloor/internal/jobs"
	"github.com/tradefloor/tradefloor/internal/store/postgres"
)

// LiveBroadcaster is the slice of the websocket hub delivery needs.
type LiveBroadcaster interface {
	// BroadcastMessage sends message.created to the channel's room.
	BroadcastMessage(m *domain.Message)
	// NotifyUsers sends notification.created to each user's connections.
	NotifyUsers(userIDs []uuid.UUID, m *domain.Message)
}

// Deliverer turns one committed message into its live effects: the room
// broadcast, per-recipient notification nudges, and the push dispatch
// job. Both fan-out modes funnel through it, the chat service after
// commit in service mode, the listener per NOTIFY in trigger mode.
type Deliverer struct {
	messages    *postgres.MessageStore
	notifs      *postgres.NotificationStore
	queue       *jobs.Queue
	hub         LiveBroadcaster
	pushEnabled bool
	log         *zap.Logger
}

// NewDeliverer creates a deliverer over the given pool.
func NewDeliverer(pool *sql.DB, queue *jobs.Queue, hub LiveBroadcaster, pushEnabled bool, logger *zap.Logger) *Deliverer {
	return &Deliverer{
		messages:    postgres.NewMessageStore(pool),
		notifs:      postgres.NewNotificationStore(pool),
		queue:       queue,
		hub:         hub,
		pushEnabled: pushEnabled,
		log:         logger,
	}
}

// Deliver broadcasts a committed message and schedules push dispatch for
// its recipients. Failures here never unwind the message itself.
func (d *Deliverer) Deliver(ctx context.Context, messageID uuid.UUID) error {
	msg, err := d.messages.GetMessage(ctx, messageID)
	if err != nil {
		return err
	}

	recipients, err := d.notifs.RecipientsForMessage(ctx, messageID)
	if err != nil {
		return err
	}

	if d.hub != nil {
		d.hub.BroadcastMessage(msg)
		if len(recipients) > 0 {
			d.hub.NotifyUsers(recipients, msg)
		}
	}

	if d.pushEnabled && len(recipients) > 0 {
		job := jobs.NewJob(jobs.TypePushDispatch, map[string]interface{}{
			"message_id": messageID.String(),
		})
		if err := d.queue.Enqueue(ctx, job); err != nil {
			d.log.Warn("push dispatch enqueue failed",
				zap.String("message_id", messageID.String()),
				zap.Error(err))
		}
	}

	return nil
}
