package postgres

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/google/uuid"
	"github.com/lib/pq"

	"github.com/tradefloor/tradefloor/internal/db"
	"github.com/tradefloor/tradefloor/internal/domain"
	"github.com/tradefloor/tradefloor/internal/store"
)

// PushStore persists Web Push endpoint registrations.
type PushStore struct {
	q store.Querier
}

var _ store.PushStore = (*PushStore)(nil)

// NewPushStore creates a PushStore over the given pool.
func NewPushStore(pool *sql.DB) *PushStore {
	return &PushStore{q: pool}
}

// WithTx returns a copy of the store bound to the transaction.
func (s *PushStore) WithTx(tx *sql.Tx) *PushStore {
	return &PushStore{q: tx}
}

// UpsertPushSubscription registers an endpoint, updating keys and owner
// when the endpoint is re-registered.
func (s *PushStore) UpsertPushSubscription(ctx context.Context, sub *domain.PushSubscription) error {
	const query = `
INSERT INTO push_subscriptions (id, user_id, endpoint, p256dh, auth, created_at)
VALUES ($1, $2, $3, $4, $5, $6)
ON CONFLICT (endpoint)
DO UPDATE SET user_id = EXCLUDED.user_id, p256dh = EXCLUDED.p256dh, auth = EXCLUDED.auth`
	_, err := s.q.ExecContext(ctx, query,
		sub.ID, sub.UserID, sub.Endpoint, sub.P256dh, sub.Auth, sub.CreatedAt)
	if err != nil {
		return fmt.Errorf("upsert push subscription: %w", db.ConvertError(err))
	}
	return nil
}

// DeletePushSubscription removes the user's registration of an endpoint.
func (s *PushStore) DeletePushSubscription(ctx context.Context, userID uuid.UUID, endpoint string) error {
	res, err := s.q.ExecContext(ctx,
		`DELETE FROM push_subscriptions WHERE user_id = $1 AND endpoint = $2`, userID, endpoint)
	if err != nil {
		return fmt.Errorf("delete push subscription: %w", db.ConvertError(err))
	}
	rows, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("delete push subscription: %w", err)
	}
	if rows == 0 {
		return db.ErrNotFound
	}
	return nil
}

// DeleteEndpoint removes an endpoint regardless of owner. Used when the
// push service reports it gone (404/410).
func (s *PushStore) DeleteEndpoint(ctx context.Context, endpoint string) error {
	_, err := s.q.ExecContext(ctx,
		`DELETE FROM push_subscriptions WHERE endpoint = $1`, endpoint)
	if err != nil {
		return fmt.Errorf("delete endpoint: %w", db.ConvertError(err))
	}
	return nil
}

// ListPushSubscriptions returns every registration belonging to the
// given users.
func (s *PushStore) ListPushSubscriptions(ctx context.Context, userIDs []uuid.UUID) ([]*domain.PushSubscription, error) {
	if len(userIDs) == 0 {
		return nil, nil
	}

	ids := make([]string, len(userIDs))
	for i, id := range userIDs {
		ids[i] = id.String()
	}

	const query = `
SELECT id, user_id, endpoint, p256dh, auth, created_at
FROM push_subscriptions
WHERE user_id = ANY($1::uuid[])
ORDER BY created_at ASC`
	rows, err := s.q.QueryContext(ctx, query, pq.Array(ids))
	if err != nil {
		return nil, fmt.Errorf("list push subscriptions: %w", db.ConvertError(err))
	}
	defer rows.Close()

	var subs []*domain.PushSubscription
	for rows.Next() {
		var sub domain.PushSubscription
		if err := rows.Scan(&sub.ID, &sub.UserID, &sub.Endpoint, &sub.P256dh, &sub.Auth, &sub.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan push subscription: %w", err)
		}
		subs = append(subs, &sub)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate push subscriptions: %w", err)
	}
	return subs, nil
}
