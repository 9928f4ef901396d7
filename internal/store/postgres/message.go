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

// MessageStore persists chat messages.
type MessageStore struct {
	q store.Querier
}

var _ store.MessageStore = (*MessageStore)(nil)

// NewMessageStore creates a MessageStore over the given pool.
func NewMessageStore(pool *sql.DB) *MessageStore {
	return &MessageStore{q: pool}
}

// WithTx returns a copy of the store bound to the transaction.
func (s *MessageStore) WithTx(tx *sql.Tx) *MessageStore {
	return &MessageStore{q: tx}
}

// InsertMessage inserts a message.
func (s *MessageStore) InsertMessage(ctx context.Context, m *domain.Message) error {
	const query = `
INSERT INTO messages (id, channel_id, author_id, body, created_at)
VALUES ($1, $2, $3, $4, $5)`
	_, err := s.q.ExecContext(ctx, query, m.ID, m.ChannelID, m.AuthorID, m.Body, m.CreatedAt)
	if err != nil {
		return fmt.Errorf("insert message: %w", db.ConvertError(err))
	}
	return nil
}

// GetMessage fetches a message by id.
func (s *MessageStore) GetMessage(ctx context.Context, id uuid.UUID) (*domain.Message, error) {
	var m domain.Message
	err := s.q.QueryRowContext(ctx,
		`SELECT id, channel_id, author_id, body, created_at FROM messages WHERE id = $1`, id).
		Scan(&m.ID, &m.ChannelID, &m.AuthorID, &m.Body, &m.CreatedAt)
	if err != nil {
		return nil, fmt.Errorf("get message: %w", db.ConvertError(err))
	}
	return &m, nil
}

// ListMessages returns up to limit messages in the channel, newest
// first. When beforeID is set, only messages older than that message
// are returned (cursor pagination).
func (s *MessageStore) ListMessages(ctx context.Context, channelID uuid.UUID, limit int, beforeID *uuid.UUID) ([]*domain.Message, error) {
	const query = `
SELECT m.id, m.channel_id, m.author_id, m.body, m.created_at
FROM messages m
WHERE m.channel_id = $1
  AND ($3::uuid IS NULL OR (m.created_at, m.id) < (
		SELECT b.created_at, b.id FROM messages b WHERE b.id = $3))
ORDER BY m.created_at DESC, m.id DESC
LIMIT $2`
	rows, err := s.q.QueryContext(ctx, query, channelID, limit, beforeID)
	if err != nil {
		return nil, fmt.Errorf("list messages: %w", db.ConvertError(err))
	}
	defer rows.Close()

	var messages []*domain.Message
	for rows.Next() {
		var m domain.Message
		if err := rows.Scan(&m.ID, &m.ChannelID, &m.AuthorID, &m.Body, &m.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan message: %w", err)
		}
		messages = append(messages, &m)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate messages: %w", err)
	}
	return messages, nil
}
