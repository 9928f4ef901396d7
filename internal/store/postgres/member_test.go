package postgres

import (
	"context"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tradefloor/tradefloor/internal/db"
	"github.com/tradefloor/tradefloor/internal/domain"
)

func TestCreateMember(t *testing.T) {
	conn, mock := setupMockDB(t)
	s := NewMemberStore(conn)

	member := &domain.Member{
		ID:       uuid.New(),
		ServerID: uuid.New(),
		UserID:   uuid.New(),
		RoleID:   uuid.New(),
		JoinedAt: time.Now(),
	}

	mock.ExpectExec(`INSERT INTO members`).
		WithArgs(member.ID, member.ServerID, member.UserID, member.RoleID, member.JoinedAt).
		WillReturnResult(sqlmock.NewResult(0, 1))

	require.NoError(t, s.CreateMember(context.Background(), member))
}

func TestCreateMemberDuplicate(t *testing.T) {
	conn, mock := setupMockDB(t)
	s := NewMemberStore(conn)

	mock.ExpectExec(`INSERT INTO members`).
		WillReturnError(&pgconn.PgError{Code: "23505", ConstraintName: "members_server_id_user_id_key"})

	err := s.CreateMember(context.Background(), &domain.Member{ID: uuid.New()})
	require.Error(t, err)
	assert.True(t, db.IsUniqueViolation(err))
}

func TestGetMember(t *testing.T) {
	conn, mock := setupMockDB(t)
	s := NewMemberStore(conn)
	serverID := uuid.New()
	userID := uuid.New()
	memberID := uuid.New()

	mock.ExpectQuery(`FROM members WHERE server_id`).
		WithArgs(serverID, userID).
		WillReturnRows(sqlmock.NewRows([]string{"id", "server_id", "user_id", "role_id", "joined_at"}).
			AddRow(memberID, serverID, userID, uuid.New(), time.Now()))

	member, err := s.GetMember(context.Background(), serverID, userID)
	require.NoError(t, err)
	assert.Equal(t, memberID, member.ID)
	assert.Equal(t, userID, member.UserID)
}

func TestSetMemberRole(t *testing.T) {
	conn, mock := setupMockDB(t)
	s := NewMemberStore(conn)
	memberID := uuid.New()
	roleID := uuid.New()

	mock.ExpectExec(`SET role_id = r.id`).
		WithArgs(memberID, roleID).
		WillReturnResult(sqlmock.NewResult(0, 1))

	require.NoError(t, s.SetMemberRole(context.Background(), memberID, roleID))
}

func TestSetMemberRoleWrongServer(t *testing.T) {
	conn, mock := setupMockDB(t)
	s := NewMemberStore(conn)

	// A role from another server never joins, so the update matches
	// nothing.
	mock.ExpectExec(`SET role_id = r.id`).
		WillReturnResult(sqlmock.NewResult(0, 0))

	err := s.SetMemberRole(context.Background(), uuid.New(), uuid.New())
	assert.ErrorIs(t, err, db.ErrNotFound)
}

func TestReassignManagedRoles(t *testing.T) {
	conn, mock := setupMockDB(t)
	s := NewMemberStore(conn)
	userID := uuid.New()
	premiumRoleA := uuid.New()
	premiumRoleB := uuid.New()

	// The user holds managed roles in two servers; both flip to the
	// premium tier in one statement.
	rows := sqlmock.NewRows([]string{"id", "server_id", "user_id", "role_id", "joined_at"}).
		AddRow(uuid.New(), uuid.New(), userID, premiumRoleA, time.Now()).
		AddRow(uuid.New(), uuid.New(), userID, premiumRoleB, time.Now())

	mock.ExpectQuery(`FROM roles held, roles target`).
		WithArgs(userID, true).
		WillReturnRows(rows)

	members, err := s.ReassignManagedRoles(context.Background(), userID, true)
	require.NoError(t, err)
	require.Len(t, members, 2)
	assert.Equal(t, premiumRoleA, members[0].RoleID)
	assert.Equal(t, premiumRoleB, members[1].RoleID)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestReassignManagedRolesDowngrade(t *testing.T) {
	conn, mock := setupMockDB(t)
	s := NewMemberStore(conn)
	userID := uuid.New()
	defaultRole := uuid.New()

	rows := sqlmock.NewRows([]string{"id", "server_id", "user_id", "role_id", "joined_at"}).
		AddRow(uuid.New(), uuid.New(), userID, defaultRole, time.Now())

	mock.ExpectQuery(`FROM roles held, roles target`).
		WithArgs(userID, false).
		WillReturnRows(rows)

	members, err := s.ReassignManagedRoles(context.Background(), userID, false)
	require.NoError(t, err)
	require.Len(t, members, 1)
	assert.Equal(t, defaultRole, members[0].RoleID)
}

func TestReassignManagedRolesNothingToChange(t *testing.T) {
	conn, mock := setupMockDB(t)
	s := NewMemberStore(conn)

	// Members already on the right tier, or holding unmanaged roles,
	// produce no RETURNING rows.
	mock.ExpectQuery(`FROM roles held, roles target`).
		WillReturnRows(sqlmock.NewRows([]string{"id", "server_id", "user_id", "role_id", "joined_at"}))

	members, err := s.ReassignManagedRoles(context.Background(), uuid.New(), true)
	require.NoError(t, err)
	assert.Empty(t, members)
}
