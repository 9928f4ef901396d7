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

// MemberStore persists server memberships.
type MemberStore struct {
	q store.Querier
}

var _ store.MemberStore = (*MemberStore)(nil)

// NewMemberStore creates a MemberStore over the given pool.
func NewMemberStore(pool *sql.DB) *MemberStore {
	return &MemberStore{q: pool}
}

// WithTx returns a copy of the store bound to the transaction.
func (s *MemberStore) WithTx(tx *sql.Tx) *MemberStore {
	return &MemberStore{q: tx}
}

// CreateMember inserts a new membership. A member_role_server check in
// the schema rejects roles from another server.
func (s *MemberStore) CreateMember(ctx context.Context, m *domain.Member) error {
	const query = `
INSERT INTO members (id, server_id, user_id, role_id, joined_at)
VALUES ($1, $2, $3, $4, $5)`
	_, err := s.q.ExecContext(ctx, query, m.ID, m.ServerID, m.UserID, m.RoleID, m.JoinedAt)
	if err != nil {
		return fmt.Errorf("insert member: %w", db.ConvertError(err))
	}
	return nil
}

// GetMember fetches the membership of a user in a server.
func (s *MemberStore) GetMember(ctx context.Context, serverID, userID uuid.UUID) (*domain.Member, error) {
	var m domain.Member
	err := s.q.QueryRowContext(ctx,
		`SELECT id, server_id, user_id, role_id, joined_at
FROM members WHERE server_id = $1 AND user_id = $2`, serverID, userID).
		Scan(&m.ID, &m.ServerID, &m.UserID, &m.RoleID, &m.JoinedAt)
	if err != nil {
		return nil, fmt.Errorf("get member: %w", db.ConvertError(err))
	}
	return &m, nil
}

// SetMemberRole changes a member's role. The role must belong to the
// member's server; violating rows simply do not match and the update
// reports not found.
func (s *MemberStore) SetMemberRole(ctx context.Context, memberID, roleID uuid.UUID) error {
	const query = `
UPDATE members m
SET role_id = r.id
FROM roles r
WHERE m.id = $1 AND r.id = $2 AND r.server_id = m.server_id`
	res, err := s.q.ExecContext(ctx, query, memberID, roleID)
	if err != nil {
		return fmt.Errorf("set member role: %w", db.ConvertError(err))
	}
	rows, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("set member role: %w", err)
	}
	if rows == 0 {
		return db.ErrNotFound
	}
	return nil
}

// ReassignManagedRoles flips every managed-role membership of the user
// to the tier selected by entitled, in one statement, and returns the
// memberships that changed. Unmanaged roles never match the join and
// stay untouched.
func (s *MemberStore) ReassignManagedRoles(ctx context.Context, userID uuid.UUID, entitled bool) ([]*domain.Member, error) {
	const query = `
UPDATE members m
SET role_id = target.id
FROM roles held, roles target
WHERE m.user_id = $1
  AND held.id = m.role_id
  AND held.managed
  AND target.server_id = m.server_id
  AND target.managed
  AND (($2 AND target.premium) OR (NOT $2 AND target.is_default))
  AND target.id <> m.role_id
RETURNING m.id, m.server_id, m.user_id, m.role_id, m.joined_at`
	rows, err := s.q.QueryContext(ctx, query, userID, entitled)
	if err != nil {
		return nil, fmt.Errorf("reassign managed roles: %w", db.ConvertError(err))
	}
	defer rows.Close()

	var members []*domain.Member
	for rows.Next() {
		var m domain.Member
		if err := rows.Scan(&m.ID, &m.ServerID, &m.UserID, &m.RoleID, &m.JoinedAt); err != nil {
			return nil, fmt.Errorf("scan member: %w", err)
		}
		members = append(members, &m)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate members: %w", err)
	}
	return members, nil
}
