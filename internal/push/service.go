// Package push manages Web Push endpoint registrations and delivers
// notification payloads to them via VAPID.
package push

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	webpush "github.com/SherClockHolmes/webpush-go"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/tradefloor/tradefloor/internal/db"
	"github.com/tradefloor/tradefloor/internal/domain"
	"github.com/tradefloor/tradefloor/internal/store/postgres"
)

// ErrInvalidSubscription is returned when a subscription registration is
// missing its endpoint or keys.
var ErrInvalidSubscription = errors.New("invalid push subscription")

// Config holds the VAPID credentials for Web Push delivery.
type Config struct {
	VAPIDPublicKey  string
	VAPIDPrivateKey string
	// Subject is the contact URI sent to push services, mailto: or https:.
	Subject string
	// TTL is how long push services hold undelivered payloads, in seconds.
	TTL int
}

// Service registers push endpoints and dispatches message payloads.
type Service struct {
	messages *postgres.MessageStore
	servers  *postgres.ServerStore
	notifs   *postgres.NotificationStore
	subs     *postgres.PushStore
	cfg      Config
	log      *zap.Logger
}

// NewService creates the push service over the given pool.
func NewService(pool *sql.DB, cfg Config, logger *zap.Logger) *Service {
	if cfg.TTL <= 0 {
		cfg.TTL = 60
	}
	return &Service{
		messages: postgres.NewMessageStore(pool),
		servers:  postgres.NewServerStore(pool),
		notifs:   postgres.NewNotificationStore(pool),
		subs:     postgres.NewPushStore(pool),
		cfg:      cfg,
		log:      logger,
	}
}

// Subscribe registers or refreshes the user's push endpoint.
func (s *Service) Subscribe(ctx context.Context, userID uuid.UUID, endpoint, p256dh, auth string) (*domain.PushSubscription, error) {
	if endpoint == "" || p256dh == "" || auth == "" {
		return nil, ErrInvalidSubscription
	}

	sub := &domain.PushSubscription{
		ID:        uuid.New(),
		UserID:    userID,
		Endpoint:  endpoint,
		P256dh:    p256dh,
		Auth:      auth,
		CreatedAt: time.Now(),
	}
	if err := s.subs.UpsertPushSubscription(ctx, sub); err != nil {
		return nil, err
	}
	return sub, nil
}

// Unsubscribe removes the user's registration for an endpoint.
func (s *Service) Unsubscribe(ctx context.Context, userID uuid.UUID, endpoint string) error {
	return s.subs.DeletePushSubscription(ctx, userID, endpoint)
}

// payload is what service workers receive and render.
type payload struct {
	Title     string    `json:"title"`
	Body      string    `json:"body"`
	ChannelID uuid.UUID `json:"channel_id"`
	MessageID uuid.UUID `json:"message_id"`
}

// HandleDispatch is the push.dispatch job handler. It loads the message
// and the push subscriptions of everyone who got a notification row,
// and sends one Web Push per subscription. Endpoints the push service
// reports gone (404/410) are deleted.
func (s *Service) HandleDispatch(ctx context.Context, jobPayload map[string]interface{}) error {
	raw, _ := jobPayload["message_id"].(string)
	messageID, err := uuid.Parse(raw)
	if err != nil {
		return fmt.Errorf("bad message_id in payload: %v", err)
	}

	msg, err := s.messages.GetMessage(ctx, messageID)
	if db.IsNotFound(err) {
		s.log.Warn("push dispatch for missing message", zap.String("message_id", raw))
		return nil
	}
	if err != nil {
		return err
	}

	channel, err := s.servers.GetChannel(ctx, msg.ChannelID)
	if err != nil {
		return err
	}

	recipients, err := s.notifs.RecipientsForMessage(ctx, messageID)
	if err != nil {
		return err
	}
	if len(recipients) == 0 {
		return nil
	}

	subs, err := s.subs.ListPushSubscriptions(ctx, recipients)
	if err != nil {
		return err
	}
	if len(subs) == 0 {
		return nil
	}

	body, err := json.Marshal(payload{
		Title:     "#" + channel.Name,
		Body:      truncate(msg.Body, 140),
		ChannelID: msg.ChannelID,
		MessageID: msg.ID,
	})
	if err != nil {
		return err
	}

	failed := 0
	for _, sub := range subs {
		if err := s.send(ctx, sub, body); err != nil {
			failed++
			s.log.Warn("push send failed",
				zap.String("endpoint", sub.Endpoint),
				zap.Error(err))
		}
	}

	// Only a full wipeout retries; partial failures would re-push to
	// everyone who already got one.
	if failed == len(subs) {
		return fmt.Errorf("all %d push sends failed for message %s", failed, messageID)
	}

	s.log.Info("push dispatched",
		zap.String("message_id", messageID.String()),
		zap.Int("sent", len(subs)-failed),
		zap.Int("failed", failed))
	return nil
}

// send delivers one payload, deleting the registration when the push
// service says the endpoint is gone.
func (s *Service) send(ctx context.Context, sub *domain.PushSubscription, body []byte) error {
	resp, err := webpush.SendNotificationWithContext(ctx, body, &webpush.Subscription{
		Endpoint: sub.Endpoint,
		Keys: webpush.Keys{
			P256dh: sub.P256dh,
			Auth:   sub.Auth,
		},
	}, &webpush.Options{
		Subscriber:      s.cfg.Subject,
		VAPIDPublicKey:  s.cfg.VAPIDPublicKey,
		VAPIDPrivateKey: s.cfg.VAPIDPrivateKey,
		TTL:             s.cfg.TTL,
	})
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	switch resp.StatusCode {
	case http.StatusNotFound, http.StatusGone:
		if err := s.subs.DeleteEndpoint(ctx, sub.Endpoint); err != nil {
			s.log.Warn("failed to drop gone endpoint",
				zap.String("endpoint", sub.Endpoint),
				zap.Error(err))
		} else {
			s.log.Info("dropped gone push endpoint", zap.String("endpoint", sub.Endpoint))
		}
		return nil
	default:
		if resp.StatusCode >= 400 {
			return fmt.Errorf("push service returned %d", resp.StatusCode)
		}
		return nil
	}
}

func truncate(s string, max int) string {
	runes := []rune(s)
	if len(runes) <= max {
		return s
	}
	return string(runes[:max-3]) + "..."
}
