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

// RoleStore persists roles and grants.
type RoleStore struct {
	q store.Querier
}

var _ store.RoleStore = (*RoleStore)(nil)

// NewRoleStore creates a RoleStore over the given pool.
func NewRoleStore(pool *sql.DB) *RoleStore {
	return &RoleStore{q: pool}
}

// WithTx returns a copy of the store bound to the transaction.
func (s *RoleStore) WithTx(tx *sql.Tx) *RoleStore {
	return &RoleStore{q: tx}
}

const roleColumns = `id, server_id, name, managed, is_default, premium, created_at`

func scanRole(row *sql.Row) (*domain.Role, error) {
	var r domain.Role
	err := row.Scan(&r.ID, &r.ServerID, &r.Name, &r.Managed, &r.IsDefault, &r.Premium, &r.CreatedAt)
	if err != nil {
		return nil, err
	}
	return &r, nil
}

// CreateRole inserts a new role.
func (s *RoleStore) CreateRole(ctx context.Context, r *domain.Role) error {
	const query = `
INSERT INTO roles (id, server_id, name, managed, is_default, premium, created_at)
VALUES ($1, $2, $3, $4, $5, $6, $7)`
	_, err := s.q.ExecContext(ctx, query,
		r.ID, r.ServerID, r.Name, r.Managed, r.IsDefault, r.Premium, r.CreatedAt)
	if err != nil {
		return fmt.Errorf("insert role: %w", db.ConvertError(err))
	}
	return nil
}

// GetRole fetches a role by id.
func (s *RoleStore) GetRole(ctx context.Context, id uuid.UUID) (*domain.Role, error) {
	r, err := scanRole(s.q.QueryRowContext(ctx,
		`SELECT `+roleColumns+` FROM roles WHERE id = $1`, id))
	if err != nil {
		return nil, fmt.Errorf("get role: %w", db.ConvertError(err))
	}
	return r, nil
}

// GetRoleByName fetches a role by server and name.
func (s *RoleStore) GetRoleByName(ctx context.Context, serverID uuid.UUID, name string) (*domain.Role, error) {
	r, err := scanRole(s.q.QueryRowContext(ctx,
		`SELECT `+roleColumns+` FROM roles WHERE server_id = $1 AND name = $2`, serverID, name))
	if err != nil {
		return nil, fmt.Errorf("get role by name: %w", db.ConvertError(err))
	}
	return r, nil
}

// GetManagedRole fetches the server's managed premium role (premium
// true) or its managed default role (premium false).
func (s *RoleStore) GetManagedRole(ctx context.Context, serverID uuid.UUID, premium bool) (*domain.Role, error) {
	const query = `
SELECT ` + roleColumns + `
FROM roles
WHERE server_id = $1 AND managed AND (($2 AND premium) OR (NOT $2 AND is_default))`
	r, err := scanRole(s.q.QueryRowContext(ctx, query, serverID, premium))
	if err != nil {
		return nil, fmt.Errorf("get managed role: %w", db.ConvertError(err))
	}
	return r, nil
}

// GrantChannel grants the role access to a channel. Granting twice is
// a no-op.
func (s *RoleStore) GrantChannel(ctx context.Context, roleID, channelID uuid.UUID) error {
	const query = `
INSERT INTO role_channel_access (role_id, channel_id)
VALUES ($1, $2)
ON CONFLICT (role_id, channel_id) DO NOTHING`
	_, err := s.q.ExecContext(ctx, query, roleID, channelID)
	if err != nil {
		return fmt.Errorf("grant channel: %w", db.ConvertError(err))
	}
	return nil
}

// RevokeChannel removes a direct channel grant.
func (s *RoleStore) RevokeChannel(ctx context.Context, roleID, channelID uuid.UUID) error {
	_, err := s.q.ExecContext(ctx,
		`DELETE FROM role_channel_access WHERE role_id = $1 AND channel_id = $2`, roleID, channelID)
	if err != nil {
		return fmt.Errorf("revoke channel: %w", db.ConvertError(err))
	}
	return nil
}

// GrantSection grants the role access to every channel in a section.
func (s *RoleStore) GrantSection(ctx context.Context, roleID, sectionID uuid.UUID) error {
	const query = `
INSERT INTO role_section_access (role_id, section_id)
VALUES ($1, $2)
ON CONFLICT (role_id, section_id) DO NOTHING`
	_, err := s.q.ExecContext(ctx, query, roleID, sectionID)
	if err != nil {
		return fmt.Errorf("grant section: %w", db.ConvertError(err))
	}
	return nil
}

// RevokeSection removes a section grant.
func (s *RoleStore) RevokeSection(ctx context.Context, roleID, sectionID uuid.UUID) error {
	_, err := s.q.ExecContext(ctx,
		`DELETE FROM role_section_access WHERE role_id = $1 AND section_id = $2`, roleID, sectionID)
	if err != nil {
		return fmt.Errorf("revoke section: %w", db.ConvertError(err))
	}
	return nil
}

// RoleHasChannelAccess reports whether the role can view the channel,
// either through a direct channel grant or a section grant covering the
// channel's section.
func (s *RoleStore) RoleHasChannelAccess(ctx context.Context, roleID, channelID uuid.UUID) (bool, error) {
	const query = `
SELECT EXISTS (
	SELECT 1 FROM channels c
	LEFT JOIN role_channel_access rca ON rca.role_id = $1 AND rca.channel_id = c.id
	LEFT JOIN role_section_access rsa ON rsa.role_id = $1 AND rsa.section_id = c.section_id
	WHERE c.id = $2
	  AND (rca.channel_id IS NOT NULL OR rsa.section_id IS NOT NULL)
)`
	var ok bool
	if err := s.q.QueryRowContext(ctx, query, roleID, channelID).Scan(&ok); err != nil {
		return false, fmt.Errorf("check channel access: %w", db.ConvertError(err))
	}
	return ok, nil
}

// ListVisibleChannels returns the server's channels the role can view,
// ordered by section position, then channel position, then name.
func (s *RoleStore) ListVisibleChannels(ctx context.Context, serverID, roleID uuid.UUID) ([]*domain.Channel, error) {
	const query = `
SELECT DISTINCT c.id, c.server_id, c.section_id, c.name, c.topic, c.position, c.created_at,
       COALESCE(sec.position, -1) AS section_position
FROM channels c
LEFT JOIN sections sec ON sec.id = c.section_id
LEFT JOIN role_channel_access rca ON rca.role_id = $2 AND rca.channel_id = c.id
LEFT JOIN role_section_access rsa ON rsa.role_id = $2 AND rsa.section_id = c.section_id
WHERE c.server_id = $1
  AND (rca.channel_id IS NOT NULL OR rsa.section_id IS NOT NULL)
ORDER BY section_position ASC, c.position ASC, c.name ASC`
	rows, err := s.q.QueryContext(ctx, query, serverID, roleID)
	if err != nil {
		return nil, fmt.Errorf("list visible channels: %w", db.ConvertError(err))
	}
	defer rows.Close()

	var channels []*domain.Channel
	for rows.Next() {
		var c domain.Channel
		var sectionPosition int
		if err := rows.Scan(&c.ID, &c.ServerID, &c.SectionID, &c.Name, &c.Topic, &c.Position, &c.CreatedAt, &sectionPosition); err != nil {
			return nil, fmt.Errorf("scan channel: %w", err)
		}
		channels = append(channels, &c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate channels: %w", err)
	}
	return channels, nil
}
