// Package billing ingests provider webhook events and keeps the local
// subscription mirror and managed member roles in sync with them.
package billing

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/tradefloor/tradefloor/internal/db"
	"github.com/tradefloor/tradefloor/internal/domain"
	"github.com/tradefloor/tradefloor/internal/store/postgres"
)

// Outcome classifies what a webhook delivery did. Deliveries that change
// nothing still return 200 so the provider stops retrying.
type Outcome string

const (
	// OutcomeApplied means the subscription mirror and roles were updated.
	OutcomeApplied Outcome = "applied"
	// OutcomeReplay means the event id was seen before; nothing changed.
	OutcomeReplay Outcome = "replay"
	// OutcomeIgnored means the event type is not one the sync reacts to.
	OutcomeIgnored Outcome = "ignored"
	// OutcomeUnknownCustomer means no user carries the event's customer id.
	OutcomeUnknownCustomer Outcome = "unknown_customer"
)

// Service applies verified webhook events. Each applied event upserts
// the subscription row and moves the user's managed-role memberships to
// the tier the new status entitles, in one transaction.
type Service struct {
	users     *postgres.UserStore
	subs      *postgres.SubscriptionStore
	members   *postgres.MemberStore
	tx        *db.TxManager
	secret    string
	tolerance time.Duration
	log       *zap.Logger
}

// NewService creates the billing service over the given pool.
func NewService(pool *sql.DB, secret string, tolerance time.Duration, logger *zap.Logger) *Service {
	return &Service{
		users:     postgres.NewUserStore(pool),
		subs:      postgres.NewSubscriptionStore(pool),
		members:   postgres.NewMemberStore(pool),
		tx:        db.NewTxManager(pool),
		secret:    secret,
		tolerance: tolerance,
		log:       logger,
	}
}

// HandleWebhook verifies and applies one webhook delivery. Signature and
// parse failures return an error (the HTTP layer maps them to 400);
// everything else acknowledges with an outcome.
func (s *Service) HandleWebhook(ctx context.Context, payload []byte, sigHeader string) (Outcome, error) {
	if err := VerifySignature(payload, sigHeader, s.secret, s.tolerance, time.Now()); err != nil {
		return "", err
	}

	event, err := ParseEvent(payload)
	if err != nil {
		return "", err
	}

	switch event.Type {
	case EventSubscriptionCreated, EventSubscriptionUpdated, EventSubscriptionDeleted:
		return s.applySubscription(ctx, event)
	default:
		s.log.Debug("ignoring webhook event",
			zap.String("event_id", event.ID),
			zap.String("type", event.Type))
		return OutcomeIgnored, nil
	}
}

func (s *Service) applySubscription(ctx context.Context, event *Event) (Outcome, error) {
	obj, err := event.Subscription()
	if err != nil {
		return "", err
	}

	user, err := s.users.GetUserByCustomerID(ctx, obj.Customer)
	if db.IsNotFound(err) {
		// Retries would never succeed, so acknowledge and move on.
		s.log.Warn("webhook for unknown billing customer",
			zap.String("event_id", event.ID),
			zap.String("customer", obj.Customer))
		return OutcomeUnknownCustomer, nil
	}
	if err != nil {
		return "", err
	}

	status := domain.SubscriptionStatus(obj.Status)
	if !status.Valid() {
		s.log.Warn("unknown subscription status, treating as canceled",
			zap.String("event_id", event.ID),
			zap.String("status", obj.Status))
		status = domain.SubscriptionCanceled
	}
	// A deleted subscription mirrors as canceled no matter what status
	// the payload carries.
	if event.Type == EventSubscriptionDeleted {
		status = domain.SubscriptionCanceled
	}

	now := time.Now()
	sub := &domain.Subscription{
		ID:                     uuid.New(),
		UserID:                 user.ID,
		ProviderCustomerID:     obj.Customer,
		ProviderSubscriptionID: obj.ID,
		Status:                 status,
		PriceID:                obj.PriceID(),
		CurrentPeriodEnd:       time.Unix(obj.CurrentPeriodEnd, 0),
		CancelAtPeriodEnd:      obj.CancelAtPeriodEnd,
		CreatedAt:              now,
		UpdatedAt:              now,
	}
	entitled := status.Entitled()

	replay := false
	var reassigned []*domain.Member
	err = s.tx.WithTransaction(ctx, func(tx *sql.Tx) error {
		subs := s.subs.WithTx(tx)
		members := s.members.WithTx(tx)

		fresh, err := subs.RecordEvent(ctx, event.ID, event.Type)
		if err != nil {
			return err
		}
		if !fresh {
			replay = true
			return nil
		}

		if err := subs.UpsertSubscription(ctx, sub); err != nil {
			return err
		}

		reassigned, err = members.ReassignManagedRoles(ctx, user.ID, entitled)
		return err
	})
	if err != nil {
		return "", fmt.Errorf("apply subscription event: %w", err)
	}

	if replay {
		s.log.Info("webhook event replayed, skipping",
			zap.String("event_id", event.ID))
		return OutcomeReplay, nil
	}

	s.log.Info("subscription synced",
		zap.String("event_id", event.ID),
		zap.String("user_id", user.ID.String()),
		zap.String("status", string(status)),
		zap.Bool("entitled", entitled),
		zap.Int("reassigned_members", len(reassigned)))
	return OutcomeApplied, nil
}
