package postgres

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/google/uuid"

	"github.com/tradefloor/tradefloor/internal/db"
	"github.com/tradefloor/tradefloor/internal/domain"
	"github.com/tradefloor/tradefloor/internal/store"
)

// SubscriptionStore persists provider subscription mirrors and the
// webhook idempotency ledger.
type SubscriptionStore struct {
	q store.Querier
}

var _ store.SubscriptionStore = (*SubscriptionStore)(nil)

// NewSubscriptionStore creates a SubscriptionStore over the given pool.
func NewSubscriptionStore(pool *sql.DB) *SubscriptionStore {
	return &SubscriptionStore{q: pool}
}

// WithTx returns a copy of the store bound to the transaction.
func (s *SubscriptionStore) WithTx(tx *sql.Tx) *SubscriptionStore {
	return &SubscriptionStore{q: tx}
}

const subscriptionColumns = `id, user_id, provider_customer_id, provider_subscription_id,
status, price_id, current_period_end, cancel_at_period_end, created_at, updated_at`

func scanSubscription(row *sql.Row) (*domain.Subscription, error) {
	var sub domain.Subscription
	err := row.Scan(&sub.ID, &sub.UserID, &sub.ProviderCustomerID, &sub.ProviderSubscriptionID,
		&sub.Status, &sub.PriceID, &sub.CurrentPeriodEnd, &sub.CancelAtPeriodEnd,
		&sub.CreatedAt, &sub.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return &sub, nil
}

// UpsertSubscription inserts or, keyed on provider subscription id,
// updates the mirror row with the provider's latest fields.
func (s *SubscriptionStore) UpsertSubscription(ctx context.Context, sub *domain.Subscription) error {
	const query = `
INSERT INTO subscriptions (id, user_id, provider_customer_id, provider_subscription_id,
	status, price_id, current_period_end, cancel_at_period_end, created_at, updated_at)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, now(), now())
ON CONFLICT (provider_subscription_id)
DO UPDATE SET
	status = EXCLUDED.status,
	price_id = EXCLUDED.price_id,
	current_period_end = EXCLUDED.current_period_end,
	cancel_at_period_end = EXCLUDED.cancel_at_period_end,
	updated_at = now()`
	_, err := s.q.ExecContext(ctx, query,
		sub.ID, sub.UserID, sub.ProviderCustomerID, sub.ProviderSubscriptionID,
		sub.Status, sub.PriceID, sub.CurrentPeriodEnd, sub.CancelAtPeriodEnd)
	if err != nil {
		return fmt.Errorf("upsert subscription: %w", db.ConvertError(err))
	}
	return nil
}

// GetByProviderSubscriptionID fetches a subscription mirror by the
// provider's subscription id.
func (s *SubscriptionStore) GetByProviderSubscriptionID(ctx context.Context, providerSubID string) (*domain.Subscription, error) {
	sub, err := scanSubscription(s.q.QueryRowContext(ctx,
		`SELECT `+subscriptionColumns+` FROM subscriptions WHERE provider_subscription_id = $1`,
		providerSubID))
	if err != nil {
		return nil, fmt.Errorf("get subscription: %w", db.ConvertError(err))
	}
	return sub, nil
}

// GetByUserID fetches the user's most recently updated subscription.
func (s *SubscriptionStore) GetByUserID(ctx context.Context, userID uuid.UUID) (*domain.Subscription, error) {
	sub, err := scanSubscription(s.q.QueryRowContext(ctx,
		`SELECT `+subscriptionColumns+` FROM subscriptions WHERE user_id = $1
ORDER BY updated_at DESC LIMIT 1`, userID))
	if err != nil {
		return nil, fmt.Errorf("get subscription by user: %w", db.ConvertError(err))
	}
	return sub, nil
}

// RecordEvent records a webhook event id, returning false when the id
// was seen before.
func (s *SubscriptionStore) RecordEvent(ctx context.Context, providerEventID, eventType string) (bool, error) {
	const query = `
INSERT INTO billing_events (provider_event_id, type, received_at)
VALUES ($1, $2, now())
ON CONFLICT (provider_event_id) DO NOTHING`
	res, err := s.q.ExecContext(ctx, query, providerEventID, eventType)
	if err != nil {
		return false, fmt.Errorf("record billing event: %w", db.ConvertError(err))
	}
	rows, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("record billing event: %w", err)
	}
	return rows > 0, nil
}
