// Package migrate applies the embedded SQL migrations and tracks them
// in the schema_migrations table. Each migration runs in its own
// transaction.
package migrate

import (
	"database/sql"
	"fmt"
	"log"
	"time"
)

// Migration is a single schema migration.
type Migration struct {
	Version   int64  // ordering key, parsed from the filename prefix
	Name      string // human-readable name
	Up        string // SQL to apply
	Down      string // SQL to rollback
	Applied   bool
	AppliedAt time.Time
}

// Tracker manages migration history in the database.
type Tracker struct {
	db *sql.DB
}

// NewTracker creates a migration tracker.
func NewTracker(db *sql.DB) *Tracker {
	return &Tracker{db: db}
}

// Initialize ensures the schema_migrations table exists.
func (t *Tracker) Initialize() error {
	const query = `
CREATE TABLE IF NOT EXISTS schema_migrations (
	version BIGINT PRIMARY KEY,
	name VARCHAR(255) NOT NULL,
	applied_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
)`
	if _, err := t.db.Exec(query); err != nil {
		return fmt.Errorf("failed to initialize migrations table: %w", err)
	}
	return nil
}

// GetApplied returns all applied migrations sorted by version.
func (t *Tracker) GetApplied() ([]*Migration, error) {
	rows, err := t.db.Query(
		`SELECT version, name, applied_at FROM schema_migrations ORDER BY version ASC`)
	if err != nil {
		return nil, fmt.Errorf("failed to query migrations: %w", err)
	}
	defer rows.Close()

	var migrations []*Migration
	for rows.Next() {
		m := &Migration{Applied: true}
		if err := rows.Scan(&m.Version, &m.Name, &m.AppliedAt); err != nil {
			return nil, fmt.Errorf("failed to scan migration: %w", err)
		}
		migrations = append(migrations, m)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating migrations: %w", err)
	}
	return migrations, nil
}

// GetPending returns the given migrations that have not been applied.
func (t *Tracker) GetPending(all []*Migration) ([]*Migration, error) {
	applied, err := t.GetApplied()
	if err != nil {
		return nil, err
	}

	appliedSet := make(map[int64]bool)
	for _, m := range applied {
		appliedSet[m.Version] = true
	}

	var pending []*Migration
	for _, m := range all {
		if !appliedSet[m.Version] {
			pending = append(pending, m)
		}
	}
	return pending, nil
}

// Record marks a migration as applied in a transaction.
func (t *Tracker) Record(tx *sql.Tx, m *Migration) error {
	_, err := tx.Exec(
		`INSERT INTO schema_migrations (version, name) VALUES ($1, $2)`,
		m.Version, m.Name)
	if err != nil {
		return fmt.Errorf("failed to record migration: %w", err)
	}
	return nil
}

// Remove removes a migration record in a transaction.
func (t *Tracker) Remove(tx *sql.Tx, version int64) error {
	res, err := tx.Exec(`DELETE FROM schema_migrations WHERE version = $1`, version)
	if err != nil {
		return fmt.Errorf("failed to remove migration: %w", err)
	}
	rows, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rows == 0 {
		return fmt.Errorf("migration version %d not found", version)
	}
	return nil
}

// Runner executes migrations with transaction support.
type Runner struct {
	db      *sql.DB
	tracker *Tracker
}

// NewRunner creates a migration runner.
func NewRunner(db *sql.DB) *Runner {
	return &Runner{db: db, tracker: NewTracker(db)}
}

// Initialize sets up the migration tracking table.
func (r *Runner) Initialize() error {
	return r.tracker.Initialize()
}

// MigrateUp applies all pending migrations.
func (r *Runner) MigrateUp(migrations []*Migration) error {
	pending, err := r.tracker.GetPending(migrations)
	if err != nil {
		return fmt.Errorf("failed to get pending migrations: %w", err)
	}

	if len(pending) == 0 {
		log.Println("No pending migrations")
		return nil
	}

	for _, migration := range pending {
		if err := r.applyMigration(migration); err != nil {
			return fmt.Errorf("migration %s failed: %w", migration.Name, err)
		}
		log.Printf("Applied migration: %s", migration.Name)
	}
	return nil
}

// MigrateDown rolls back the most recently applied migration.
func (r *Runner) MigrateDown(migrations []*Migration) error {
	applied, err := r.tracker.GetApplied()
	if err != nil {
		return fmt.Errorf("failed to get applied migrations: %w", err)
	}
	if len(applied) == 0 {
		return fmt.Errorf("no migrations to rollback")
	}

	last := applied[len(applied)-1]

	// Down SQL lives in the embedded source, not the tracker.
	var source *Migration
	for _, m := range migrations {
		if m.Version == last.Version {
			source = m
			break
		}
	}
	if source == nil {
		return fmt.Errorf("migration version %d not found in embedded source", last.Version)
	}
	if source.Down == "" {
		return fmt.Errorf("migration %s has no down migration", source.Name)
	}

	if err := r.rollbackMigration(source); err != nil {
		return fmt.Errorf("rollback failed: %w", err)
	}
	log.Printf("Rolled back migration: %s", source.Name)
	return nil
}

// applyMigration applies a single migration in a transaction.
func (r *Runner) applyMigration(migration *Migration) error {
	if migration.Up == "" {
		return fmt.Errorf("migration has no up SQL")
	}

	tx, err := r.db.Begin()
	if err != nil {
		return fmt.Errorf("failed to start transaction: %w", err)
	}
	defer func() {
		if err := tx.Rollback(); err != nil && err != sql.ErrTxDone {
			log.Printf("Warning: failed to rollback transaction: %v", err)
		}
	}()

	if _, err := tx.Exec(migration.Up); err != nil {
		return fmt.Errorf("failed to execute migration SQL: %w", err)
	}
	if err := r.tracker.Record(tx, migration); err != nil {
		return fmt.Errorf("failed to record migration: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

// rollbackMigration rolls back a single migration in a transaction.
func (r *Runner) rollbackMigration(migration *Migration) error {
	tx, err := r.db.Begin()
	if err != nil {
		return fmt.Errorf("failed to start transaction: %w", err)
	}
	defer func() {
		if err := tx.Rollback(); err != nil && err != sql.ErrTxDone {
			log.Printf("Warning: failed to rollback transaction: %v", err)
		}
	}()

	if _, err := tx.Exec(migration.Down); err != nil {
		return fmt.Errorf("failed to execute rollback SQL: %w", err)
	}
	if err := r.tracker.Remove(tx, migration.Version); err != nil {
		return fmt.Errorf("failed to remove migration record: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

// Status describes applied and pending migrations.
type Status struct {
	Total       int
	Applied     []*Migration
	Pending     []*Migration
	LastApplied *Migration
}

// Summary returns a human-readable summary.
func (s *Status) Summary() string {
	return fmt.Sprintf("Total: %d migrations (%d applied, %d pending)",
		s.Total, len(s.Applied), len(s.Pending))
}

// Status returns the current migration status.
func (r *Runner) Status(all []*Migration) (*Status, error) {
	applied, err := r.tracker.GetApplied()
	if err != nil {
		return nil, fmt.Errorf("failed to get applied migrations: %w", err)
	}
	pending, err := r.tracker.GetPending(all)
	if err != nil {
		return nil, fmt.Errorf("failed to get pending migrations: %w", err)
	}

	var lastApplied *Migration
	if len(applied) > 0 {
		lastApplied = applied[len(applied)-1]
	}

	return &Status{
		Total:       len(all),
		Applied:     applied,
		Pending:     pending,
		LastApplied: lastApplied,
	}, nil
}
