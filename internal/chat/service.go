// Package chat implements message posting and history for channels.
package chat

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/tradefloor/tradefloor/internal/db"
	"github.com/tradefloor/tradefloor/internal/domain"
	"github.com/tradefloor/tradefloor/internal/metrics"
	"github.com/tradefloor/tradefloor/internal/notify"
	"github.com/tradefloor/tradefloor/internal/ratelimit"
	"github.com/tradefloor/tradefloor/internal/store/postgres"
)

var (
	// ErrEmptyBody is returned when the trimmed message body is empty.
	ErrEmptyBody = errors.New("message body is empty")
	// ErrBodyTooLong is returned when the body exceeds the length cap.
	ErrBodyTooLong = errors.New("message body too long")
	// ErrNoAccess is returned when the author cannot view the channel.
	ErrNoAccess = errors.New("no access to channel")
	// ErrRateLimited is returned when the author posts too fast.
	ErrRateLimited = errors.New("message rate limit exceeded")
)

// AccessChecker answers channel visibility, implemented by the access
// service.
type AccessChecker interface {
	CanView(ctx context.Context, userID, channelID uuid.UUID) (bool, error)
}

// Service posts and lists channel messages. In service fan-out mode the
// notification rows are written in the message's transaction; in
// trigger mode the database trigger writes them and the NOTIFY listener
// takes over delivery.
type Service struct {
	messages    *postgres.MessageStore
	notifs      *postgres.NotificationStore
	tx          *db.TxManager
	access      AccessChecker
	limiter     ratelimit.RateLimiter
	deliver     *notify.Deliverer
	triggerMode bool
	log         *zap.Logger
}

// NewService creates the chat service over the given pool.
func NewService(pool *sql.DB, access AccessChecker, limiter ratelimit.RateLimiter, deliverer *notify.Deliverer, triggerMode bool, logger *zap.Logger) *Service {
	return &Service{
		messages:    postgres.NewMessageStore(pool),
		notifs:      postgres.NewNotificationStore(pool),
		tx:          db.NewTxManager(pool),
		access:      access,
		limiter:     limiter,
		deliver:     deliverer,
		triggerMode: triggerMode,
		log:         logger,
	}
}

// Post validates and writes one message. The author must be able to view
// the channel, and posting is rate limited per author per channel.
func (s *Service) Post(ctx context.Context, userID, channelID uuid.UUID, body string) (*domain.Message, error) {
	body = strings.TrimSpace(body)
	if body == "" {
		return nil, ErrEmptyBody
	}
	if utf8.RuneCountInString(body) > domain.MaxMessageLength {
		return nil, ErrBodyTooLong
	}

	ok, err := s.access.CanView(ctx, userID, channelID)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, ErrNoAccess
	}

	if s.limiter != nil {
		info, err := s.limiter.Allow(ctx, ratelimit.MessageKey(userID, channelID))
		if err != nil {
			// A broken limiter should not take posting down with it.
			s.log.Warn("rate limiter unavailable", zap.Error(err))
		} else if !info.Allowed {
			return nil, ErrRateLimited
		}
	}

	msg := &domain.Message{
		ID:        uuid.New(),
		ChannelID: channelID,
		AuthorID:  userID,
		Body:      body,
		CreatedAt: time.Now(),
	}

	if s.triggerMode {
		// The trigger fans out and notifies; the listener delivers.
		if err := s.messages.InsertMessage(ctx, msg); err != nil {
			return nil, err
		}
	} else {
		start := time.Now()
		var fanned int64
		err := s.tx.WithTransaction(ctx, func(tx *sql.Tx) error {
			messages := s.messages.WithTx(tx)
			notifs := s.notifs.WithTx(tx)

			if err := messages.InsertMessage(ctx, msg); err != nil {
				return err
			}
			n, err := notifs.FanOut(ctx, msg.ID)
			if err != nil {
				return err
			}
			fanned = n
			return nil
		})
		if err != nil {
			return nil, fmt.Errorf("post message: %w", err)
		}
		metrics.RecordFanout(fanned, time.Since(start))

		if err := s.deliver.Deliver(ctx, msg.ID); err != nil {
			s.log.Warn("live delivery failed",
				zap.String("message_id", msg.ID.String()),
				zap.Error(err))
		}
	}

	metrics.RecordMessagePosted()
	return msg, nil
}

// List returns channel history, newest first, cursor paginated. The
// caller must be able to view the channel.
func (s *Service) List(ctx context.Context, userID, channelID uuid.UUID, limit int, beforeID *uuid.UUID) ([]*domain.Message, error) {
	ok, err := s.access.CanView(ctx, userID, channelID)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, ErrNoAccess
	}

	return s.messages.ListMessages(ctx, channelID, clampLimit(limit), beforeID)
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
