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

// ServerStore persists servers, sections, and channels.
type ServerStore struct {
	q store.Querier
}

var _ store.ServerStore = (*ServerStore)(nil)

// NewServerStore creates a ServerStore over the given pool.
func NewServerStore(pool *sql.DB) *ServerStore {
	return &ServerStore{q: pool}
}

// WithTx returns a copy of the store bound to the transaction.
func (s *ServerStore) WithTx(tx *sql.Tx) *ServerStore {
	return &ServerStore{q: tx}
}

// CreateServer inserts a new server.
func (s *ServerStore) CreateServer(ctx context.Context, srv *domain.Server) error {
	const query = `
INSERT INTO servers (id, name, slug, owner_id, created_at)
VALUES ($1, $2, $3, $4, $5)`
	_, err := s.q.ExecContext(ctx, query, srv.ID, srv.Name, srv.Slug, srv.OwnerID, srv.CreatedAt)
	if err != nil {
		return fmt.Errorf("insert server: %w", db.ConvertError(err))
	}
	return nil
}

// GetServer fetches a server by id.
func (s *ServerStore) GetServer(ctx context.Context, id uuid.UUID) (*domain.Server, error) {
	var srv domain.Server
	err := s.q.QueryRowContext(ctx,
		`SELECT id, name, slug, owner_id, created_at FROM servers WHERE id = $1`, id).
		Scan(&srv.ID, &srv.Name, &srv.Slug, &srv.OwnerID, &srv.CreatedAt)
	if err != nil {
		return nil, fmt.Errorf("get server: %w", db.ConvertError(err))
	}
	return &srv, nil
}

// GetServerBySlug fetches a server by slug.
func (s *ServerStore) GetServerBySlug(ctx context.Context, slug string) (*domain.Server, error) {
	var srv domain.Server
	err := s.q.QueryRowContext(ctx,
		`SELECT id, name, slug, owner_id, created_at FROM servers WHERE slug = $1`, slug).
		Scan(&srv.ID, &srv.Name, &srv.Slug, &srv.OwnerID, &srv.CreatedAt)
	if err != nil {
		return nil, fmt.Errorf("get server by slug: %w", db.ConvertError(err))
	}
	return &srv, nil
}

// ListServersForUser returns the servers the user is a member of,
// oldest joined first.
func (s *ServerStore) ListServersForUser(ctx context.Context, userID uuid.UUID) ([]*domain.Server, error) {
	const query = `
SELECT s.id, s.name, s.slug, s.owner_id, s.created_at
FROM servers s
JOIN members m ON m.server_id = s.id
WHERE m.user_id = $1
ORDER BY m.joined_at ASC`
	rows, err := s.q.QueryContext(ctx, query, userID)
	if err != nil {
		return nil, fmt.Errorf("list servers for user: %w", db.ConvertError(err))
	}
	defer rows.Close()

	var servers []*domain.Server
	for rows.Next() {
		var srv domain.Server
		if err := rows.Scan(&srv.ID, &srv.Name, &srv.Slug, &srv.OwnerID, &srv.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan server: %w", err)
		}
		servers = append(servers, &srv)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate servers: %w", err)
	}
	return servers, nil
}

// CreateSection inserts a new section.
func (s *ServerStore) CreateSection(ctx context.Context, sec *domain.Section) error {
	const query = `
INSERT INTO sections (id, server_id, name, position)
VALUES ($1, $2, $3, $4)`
	_, err := s.q.ExecContext(ctx, query, sec.ID, sec.ServerID, sec.Name, sec.Position)
	if err != nil {
		return fmt.Errorf("insert section: %w", db.ConvertError(err))
	}
	return nil
}

// GetSection fetches a section by id.
func (s *ServerStore) GetSection(ctx context.Context, id uuid.UUID) (*domain.Section, error) {
	var sec domain.Section
	err := s.q.QueryRowContext(ctx,
		`SELECT id, server_id, name, position FROM sections WHERE id = $1`, id).
		Scan(&sec.ID, &sec.ServerID, &sec.Name, &sec.Position)
	if err != nil {
		return nil, fmt.Errorf("get section: %w", db.ConvertError(err))
	}
	return &sec, nil
}

// CreateChannel inserts a new channel.
func (s *ServerStore) CreateChannel(ctx context.Context, c *domain.Channel) error {
	const query = `
INSERT INTO channels (id, server_id, section_id, name, topic, position, created_at)
VALUES ($1, $2, $3, $4, $5, $6, $7)`
	_, err := s.q.ExecContext(ctx, query,
		c.ID, c.ServerID, c.SectionID, c.Name, c.Topic, c.Position, c.CreatedAt)
	if err != nil {
		return fmt.Errorf("insert channel: %w", db.ConvertError(err))
	}
	return nil
}

// GetChannel fetches a channel by id.
func (s *ServerStore) GetChannel(ctx context.Context, id uuid.UUID) (*domain.Channel, error) {
	var c domain.Channel
	err := s.q.QueryRowContext(ctx,
		`SELECT id, server_id, section_id, name, topic, position, created_at
FROM channels WHERE id = $1`, id).
		Scan(&c.ID, &c.ServerID, &c.SectionID, &c.Name, &c.Topic, &c.Position, &c.CreatedAt)
	if err != nil {
		return nil, fmt.Errorf("get channel: %w", db.ConvertError(err))
	}
	return &c, nil
}
