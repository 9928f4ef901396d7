package db

import (
	"database/sql"
	"errors"
	"fmt"
	"testing"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"
)

func TestConvertError(t *testing.T) {
	assert.NoError(t, ConvertError(nil))

	err := ConvertError(sql.ErrNoRows)
	assert.ErrorIs(t, err, ErrNotFound)

	// Wrapped driver errors convert too.
	err = ConvertError(fmt.Errorf("get channel: %w", sql.ErrNoRows))
	assert.ErrorIs(t, err, ErrNotFound)

	pgErr := &pgconn.PgError{Code: "23505", ConstraintName: "users_email_key"}
	err = ConvertError(pgErr)
	assert.ErrorIs(t, err, ErrUniqueViolation)
	assert.Contains(t, err.Error(), "users_email_key")

	pgErr = &pgconn.PgError{Code: "23503", ConstraintName: "messages_channel_id_fkey"}
	err = ConvertError(pgErr)
	assert.ErrorIs(t, err, ErrForeignKeyViolation)
	assert.Contains(t, err.Error(), "messages_channel_id_fkey")

	pgErr = &pgconn.PgError{Code: "23514", ConstraintName: "roles_name_check"}
	err = ConvertError(pgErr)
	assert.ErrorIs(t, err, ErrCheckViolation)

	pgErr = &pgconn.PgError{Code: "23502", ColumnName: "body"}
	err = ConvertError(pgErr)
	assert.ErrorIs(t, err, ErrNotNullViolation)
	assert.Contains(t, err.Error(), "body")

	// Unrecognized Postgres codes pass through unchanged.
	pgErr = &pgconn.PgError{Code: "40001", Message: "serialization failure"}
	err = ConvertError(pgErr)
	assert.Equal(t, error(pgErr), err)

	generic := errors.New("connection reset")
	assert.Equal(t, generic, ConvertError(generic))
}

func TestErrorPredicates(t *testing.T) {
	assert.True(t, IsNotFound(ConvertError(sql.ErrNoRows)))
	assert.False(t, IsNotFound(errors.New("other")))

	unique := ConvertError(&pgconn.PgError{Code: "23505", ConstraintName: "users_email_key"})
	assert.True(t, IsUniqueViolation(unique))
	assert.False(t, IsUniqueViolation(ErrNotFound))

	fk := ConvertError(&pgconn.PgError{Code: "23503"})
	assert.True(t, IsForeignKeyViolation(fk))
	assert.False(t, IsForeignKeyViolation(unique))
}
