package migrate

import (
	"database/sql"
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupMockDB(t *testing.T) (*sql.DB, sqlmock.Sqlmock) {
	t.Helper()

	conn, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })

	return conn, mock
}

func testMigrations() []*Migration {
	return []*Migration{
		{Version: 1, Name: "core_schema", Up: "CREATE TABLE users_test (id INT)", Down: "DROP TABLE users_test"},
		{Version: 2, Name: "messaging", Up: "CREATE TABLE messages_test (id INT)", Down: "DROP TABLE messages_test"},
	}
}

func expectApplied(mock sqlmock.Sqlmock, versions ...int64) {
	rows := sqlmock.NewRows([]string{"version", "name", "applied_at"})
	for _, v := range versions {
		rows.AddRow(v, "m", time.Now())
	}
	mock.ExpectQuery(`SELECT version, name, applied_at FROM schema_migrations`).
		WillReturnRows(rows)
}

func TestTrackerInitialize(t *testing.T) {
	conn, mock := setupMockDB(t)

	mock.ExpectExec(`CREATE TABLE IF NOT EXISTS schema_migrations`).
		WillReturnResult(sqlmock.NewResult(0, 0))

	tracker := NewTracker(conn)
	require.NoError(t, tracker.Initialize())
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestTrackerGetApplied(t *testing.T) {
	conn, mock := setupMockDB(t)

	appliedAt := time.Now()
	rows := sqlmock.NewRows([]string{"version", "name", "applied_at"}).
		AddRow(int64(1), "core_schema", appliedAt).
		AddRow(int64(2), "messaging", appliedAt)
	mock.ExpectQuery(`SELECT version, name, applied_at FROM schema_migrations`).
		WillReturnRows(rows)

	tracker := NewTracker(conn)
	applied, err := tracker.GetApplied()
	require.NoError(t, err)
	require.Len(t, applied, 2)
	assert.Equal(t, int64(1), applied[0].Version)
	assert.Equal(t, "core_schema", applied[0].Name)
	assert.True(t, applied[0].Applied)
	assert.Equal(t, int64(2), applied[1].Version)
}

func TestTrackerGetPending(t *testing.T) {
	conn, mock := setupMockDB(t)

	expectApplied(mock, 1)

	tracker := NewTracker(conn)
	pending, err := tracker.GetPending(testMigrations())
	require.NoError(t, err)
	require.Len(t, pending, 1)
	assert.Equal(t, int64(2), pending[0].Version)
}

func TestRunnerMigrateUp(t *testing.T) {
	conn, mock := setupMockDB(t)

	expectApplied(mock)

	// Each migration runs in its own transaction.
	mock.ExpectBegin()
	mock.ExpectExec(`CREATE TABLE users_test`).WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectExec(`INSERT INTO schema_migrations`).
		WithArgs(int64(1), "core_schema").
		WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectCommit()

	mock.ExpectBegin()
	mock.ExpectExec(`CREATE TABLE messages_test`).WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectExec(`INSERT INTO schema_migrations`).
		WithArgs(int64(2), "messaging").
		WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectCommit()

	runner := NewRunner(conn)
	require.NoError(t, runner.MigrateUp(testMigrations()))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRunnerMigrateUpNothingPending(t *testing.T) {
	conn, mock := setupMockDB(t)

	expectApplied(mock, 1, 2)

	runner := NewRunner(conn)
	require.NoError(t, runner.MigrateUp(testMigrations()))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRunnerMigrateUpStopsOnFailure(t *testing.T) {
	conn, mock := setupMockDB(t)

	expectApplied(mock)

	mock.ExpectBegin()
	mock.ExpectExec(`CREATE TABLE users_test`).
		WillReturnError(errors.New("syntax error"))
	mock.ExpectRollback()

	runner := NewRunner(conn)
	err := runner.MigrateUp(testMigrations())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "core_schema")
	// The second migration never ran.
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRunnerMigrateDown(t *testing.T) {
	conn, mock := setupMockDB(t)

	expectApplied(mock, 1, 2)

	mock.ExpectBegin()
	mock.ExpectExec(`DROP TABLE messages_test`).WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectExec(`DELETE FROM schema_migrations`).
		WithArgs(int64(2)).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	runner := NewRunner(conn)
	require.NoError(t, runner.MigrateDown(testMigrations()))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRunnerMigrateDownNothingApplied(t *testing.T) {
	conn, mock := setupMockDB(t)

	expectApplied(mock)

	runner := NewRunner(conn)
	err := runner.MigrateDown(testMigrations())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no migrations to rollback")
}

func TestRunnerMigrateDownMissingDownSQL(t *testing.T) {
	conn, mock := setupMockDB(t)

	expectApplied(mock, 1)

	migrations := []*Migration{
		{Version: 1, Name: "core_schema", Up: "CREATE TABLE users_test (id INT)"},
	}

	runner := NewRunner(conn)
	err := runner.MigrateDown(migrations)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no down migration")
}

func TestRunnerStatus(t *testing.T) {
	conn, mock := setupMockDB(t)

	// Status needs the applied set twice, once directly and once for
	// the pending diff.
	expectApplied(mock, 1)
	expectApplied(mock, 1)

	runner := NewRunner(conn)
	status, err := runner.Status(testMigrations())
	require.NoError(t, err)

	assert.Equal(t, 2, status.Total)
	assert.Len(t, status.Applied, 1)
	assert.Len(t, status.Pending, 1)
	require.NotNil(t, status.LastApplied)
	assert.Equal(t, int64(1), status.LastApplied.Version)
	assert.Equal(t, "Total: 2 migrations (1 applied, 1 pending)", status.Summary())
}
