// Package postgres implements the store interfaces over PostgreSQL.
// All stores are bound to a Querier so they run equally on the pool or
// inside a transaction (WithTx).
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

// UserStore persists users.
type UserStore struct {
	q store.Querier
}

var _ store.UserStore = (*UserStore)(nil)

// NewUserStore creates a UserStore over the given pool.
func NewUserStore(pool *sql.DB) *UserStore {
	return &UserStore{q: pool}
}

// WithTx returns a copy of the store bound to the transaction.
func (s *UserStore) WithTx(tx *sql.Tx) *UserStore {
	return &UserStore{q: tx}
}

const userColumns = `id, email, username, password_hash, billing_customer_id, created_at`

func scanUser(row *sql.Row) (*domain.User, error) {
	var u domain.User
	err := row.Scan(&u.ID, &u.Email, &u.Username, &u.PasswordHash, &u.BillingCustomerID, &u.CreatedAt)
	if err != nil {
		return nil, err
	}
	return &u, nil
}

// CreateUser inserts a new user.
func (s *UserStore) CreateUser(ctx context.Context, u *domain.User) error {
	const query = `
INSERT INTO users (id, email, username, password_hash, billing_customer_id, created_at)
VALUES ($1, $2, $3, $4, $5, $6)`
	_, err := s.q.ExecContext(ctx, query,
		u.ID, u.Email, u.Username, u.PasswordHash, u.BillingCustomerID, u.CreatedAt)
	if err != nil {
		return fmt.Errorf("insert user: %w", db.ConvertError(err))
	}
	return nil
}

// GetUser fetches a user by id.
func (s *UserStore) GetUser(ctx context.Context, id uuid.UUID) (*domain.User, error) {
	u, err := scanUser(s.q.QueryRowContext(ctx,
		`SELECT `+userColumns+` FROM users WHERE id = $1`, id))
	if err != nil {
		return nil, fmt.Errorf("get user: %w", db.ConvertError(err))
	}
	return u, nil
}

// GetUserByEmail fetches a user by email (stored lowercased).
func (s *UserStore) GetUserByEmail(ctx context.Context, email string) (*domain.User, error) {
	u, err := scanUser(s.q.QueryRowContext(ctx,
		`SELECT `+userColumns+` FROM users WHERE email = lower($1)`, email))
	if err != nil {
		return nil, fmt.Errorf("get user by email: %w", db.ConvertError(err))
	}
	return u, nil
}

// GetUserByCustomerID fetches the user linked to a billing customer.
func (s *UserStore) GetUserByCustomerID(ctx context.Context, customerID string) (*domain.User, error) {
	u, err := scanUser(s.q.QueryRowContext(ctx,
		`SELECT `+userColumns+` FROM users WHERE billing_customer_id = $1`, customerID))
	if err != nil {
		return nil, fmt.Errorf("get user by customer id: %w", db.ConvertError(err))
	}
	return u, nil
}

// SetBillingCustomerID links a user to a billing customer.
func (s *UserStore) SetBillingCustomerID(ctx context.Context, userID uuid.UUID, customerID string) error {
	res, err := s.q.ExecContext(ctx,
		`UPDATE users SET billing_customer_id = $2 WHERE id = $1`, userID, customerID)
	if err != nil {
		return fmt.Errorf("set billing customer id: %w", db.ConvertError(err))
	}
	rows, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("set billing customer id: %w", err)
	}
	if rows == 0 {
		return db.ErrNotFound
	}
	return nil
}
