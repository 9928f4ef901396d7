package notify

import (
	"context"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEnsureFanoutModeInstallsTrigger(t *testing.T) {
	conn, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })

	mock.ExpectExec(`DROP TRIGGER IF EXISTS message_fanout ON messages`).
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectExec(`CREATE TRIGGER message_fanout`).
		WillReturnResult(sqlmock.NewResult(0, 0))

	require.NoError(t, EnsureFanoutMode(context.Background(), conn, true))
	assert.NoError(t, mock.ExpectationsWereMet())
}

// Service mode drops any previously installed trigger so the two fan-out
// paths never double-write notification rows.
func TestEnsureFanoutModeDropsTrigger(t *testing.T) {
	conn, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })

	mock.ExpectExec(`DROP TRIGGER IF EXISTS message_fanout ON messages`).
		WillReturnResult(sqlmock.NewResult(0, 0))

	require.NoError(t, EnsureFanoutMode(context.Background(), conn, false))
	assert.NoError(t, mock.ExpectationsWereMet())
}
