package access

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/tradefloor/tradefloor/internal/cache"
	"github.com/tradefloor/tradefloor/internal/domain"
)

func newTestService(t *testing.T) (*Service, sqlmock.Sqlmock) {
	t.Helper()

	conn, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })

	c := cache.NewMemoryCache()
	t.Cleanup(func() { c.Close() })

	return NewService(conn, c, time.Minute, zaptest.NewLogger(t)), mock
}

func channelRow(c *domain.Channel) *sqlmock.Rows {
	var sectionID driver.Value
	if c.SectionID != nil {
		sectionID = *c.SectionID
	}
	return sqlmock.NewRows([]string{"id", "server_id", "section_id", "name", "topic", "position", "created_at"}).
		AddRow(c.ID, c.ServerID, sectionID, c.Name, c.Topic, c.Position, c.CreatedAt)
}

func memberRow(m *domain.Member) *sqlmock.Rows {
	return sqlmock.NewRows([]string{"id", "server_id", "user_id", "role_id", "joined_at"}).
		AddRow(m.ID, m.ServerID, m.UserID, m.RoleID, m.JoinedAt)
}

func roleRow(r *domain.Role) *sqlmock.Rows {
	return sqlmock.NewRows([]string{"id", "server_id", "name", "managed", "is_default", "premium", "created_at"}).
		AddRow(r.ID, r.ServerID, r.Name, r.Managed, r.IsDefault, r.Premium, r.CreatedAt)
}

func serverRow(s *domain.Server) *sqlmock.Rows {
	return sqlmock.NewRows([]string{"id", "name", "slug", "owner_id", "created_at"}).
		AddRow(s.ID, s.Name, s.Slug, s.OwnerID, s.CreatedAt)
}

func accessRow(ok bool) *sqlmock.Rows {
	return sqlmock.NewRows([]string{"exists"}).AddRow(ok)
}

func expectGetChannel(mock sqlmock.Sqlmock, c *domain.Channel) {
	mock.ExpectQuery(`FROM channels WHERE id = \$1`).
		WithArgs(c.ID).
		WillReturnRows(channelRow(c))
}

func expectGetMember(mock sqlmock.Sqlmock, m *domain.Member) {
	mock.ExpectQuery(`FROM members WHERE server_id = \$1 AND user_id = \$2`).
		WithArgs(m.ServerID, m.UserID).
		WillReturnRows(memberRow(m))
}

func TestCanViewDirectGrant(t *testing.T) {
	svc, mock := newTestService(t)

	channel := &domain.Channel{ID: uuid.New(), ServerID: uuid.New(), Name: "signals", CreatedAt: time.Now()}
	member := &domain.Member{ID: uuid.New(), ServerID: channel.ServerID, UserID: uuid.New(), RoleID: uuid.New(), JoinedAt: time.Now()}

	expectGetChannel(mock, channel)
	expectGetMember(mock, member)
	mock.ExpectQuery(`WHERE c.id = \$2`).
		WithArgs(member.RoleID, channel.ID).
		WillReturnRows(accessRow(true))

	ok, err := svc.CanView(context.Background(), member.UserID, channel.ID)

	require.NoError(t, err)
	assert.True(t, ok)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCanViewDeniedByDefault(t *testing.T) {
	svc, mock := newTestService(t)

	channel := &domain.Channel{ID: uuid.New(), ServerID: uuid.New(), Name: "vip-lounge", CreatedAt: time.Now()}
	member := &domain.Member{ID: uuid.New(), ServerID: channel.ServerID, UserID: uuid.New(), RoleID: uuid.New(), JoinedAt: time.Now()}

	expectGetChannel(mock, channel)
	expectGetMember(mock, member)
	mock.ExpectQuery(`WHERE c.id = \$2`).
		WithArgs(member.RoleID, channel.ID).
		WillReturnRows(accessRow(false))

	ok, err := svc.CanView(context.Background(), member.UserID, channel.ID)

	require.NoError(t, err)
	assert.False(t, ok)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCanViewNonMember(t *testing.T) {
	svc, mock := newTestService(t)

	channel := &domain.Channel{ID: uuid.New(), ServerID: uuid.New(), Name: "signals", CreatedAt: time.Now()}
	userID := uuid.New()

	expectGetChannel(mock, channel)
	mock.ExpectQuery(`FROM members WHERE server_id = \$1 AND user_id = \$2`).
		WithArgs(channel.ServerID, userID).
		WillReturnError(sql.ErrNoRows)

	ok, err := svc.CanView(context.Background(), userID, channel.ID)

	require.NoError(t, err)
	assert.False(t, ok)
	assert.NoError(t, mock.ExpectationsWereMet())
}

// The second CanView call still resolves channel and membership but must
// answer the grant question from cache: only one EXISTS query is expected.
func TestCanViewCachesDecision(t *testing.T) {
	svc, mock := newTestService(t)

	channel := &domain.Channel{ID: uuid.New(), ServerID: uuid.New(), Name: "signals", CreatedAt: time.Now()}
	member := &domain.Member{ID: uuid.New(), ServerID: channel.ServerID, UserID: uuid.New(), RoleID: uuid.New(), JoinedAt: time.Now()}

	expectGetChannel(mock, channel)
	expectGetMember(mock, member)
	mock.ExpectQuery(`WHERE c.id = \$2`).
		WithArgs(member.RoleID, channel.ID).
		WillReturnRows(accessRow(true))

	expectGetChannel(mock, channel)
	expectGetMember(mock, member)

	ok, err := svc.CanView(context.Background(), member.UserID, channel.ID)
	require.NoError(t, err)
	require.True(t, ok)

	ok, err = svc.CanView(context.Background(), member.UserID, channel.ID)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestVisibleChannels(t *testing.T) {
	svc, mock := newTestService(t)

	serverID := uuid.New()
	member := &domain.Member{ID: uuid.New(), ServerID: serverID, UserID: uuid.New(), RoleID: uuid.New(), JoinedAt: time.Now()}

	expectGetMember(mock, member)
	mock.ExpectQuery(`WHERE c.server_id = \$1`).
		WithArgs(serverID, member.RoleID).
		WillReturnRows(sqlmock.NewRows([]string{"id", "server_id", "section_id", "name", "topic", "position", "created_at", "section_position"}).
			AddRow(uuid.New(), serverID, nil, "general", "", 0, time.Now(), -1).
			AddRow(uuid.New(), serverID, uuid.New(), "charts", "daily setups", 1, time.Now(), 0))

	channels, err := svc.VisibleChannels(context.Background(), member.UserID, serverID)

	require.NoError(t, err)
	require.Len(t, channels, 2)
	assert.Equal(t, "general", channels[0].Name)
	assert.Nil(t, channels[0].SectionID)
	assert.Equal(t, "charts", channels[1].Name)
	assert.NotNil(t, channels[1].SectionID)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestVisibleChannelsNonMember(t *testing.T) {
	svc, mock := newTestService(t)

	serverID := uuid.New()
	userID := uuid.New()

	mock.ExpectQuery(`FROM members WHERE server_id = \$1 AND user_id = \$2`).
		WithArgs(serverID, userID).
		WillReturnError(sql.ErrNoRows)

	_, err := svc.VisibleChannels(context.Background(), userID, serverID)

	require.ErrorIs(t, err, ErrNotMember)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestVisibleChannelsServedFromCache(t *testing.T) {
	svc, mock := newTestService(t)

	serverID := uuid.New()
	member := &domain.Member{ID: uuid.New(), ServerID: serverID, UserID: uuid.New(), RoleID: uuid.New(), JoinedAt: time.Now()}

	expectGetMember(mock, member)
	mock.ExpectQuery(`WHERE c.server_id = \$1`).
		WithArgs(serverID, member.RoleID).
		WillReturnRows(sqlmock.NewRows([]string{"id", "server_id", "section_id", "name", "topic", "position", "created_at", "section_position"}).
			AddRow(uuid.New(), serverID, nil, "general", "", 0, time.Now(), -1))

	expectGetMember(mock, member)

	first, err := svc.VisibleChannels(context.Background(), member.UserID, serverID)
	require.NoError(t, err)
	require.Len(t, first, 1)

	second, err := svc.VisibleChannels(context.Background(), member.UserID, serverID)
	require.NoError(t, err)
	require.Len(t, second, 1)
	assert.Equal(t, first[0].ID, second[0].ID)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCreateServerSeedsRolesAndGeneralChannel(t *testing.T) {
	svc, mock := newTestService(t)

	ownerID := uuid.New()

	mock.ExpectBegin()
	mock.ExpectExec(`INSERT INTO servers`).
		WithArgs(sqlmock.AnyArg(), "Desk", "desk", ownerID, sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(`INSERT INTO roles`).
		WithArgs(sqlmock.AnyArg(), sqlmock.AnyArg(), domain.RoleNameAdmin, false, false, false, sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(`INSERT INTO roles`).
		WithArgs(sqlmock.AnyArg(), sqlmock.AnyArg(), domain.RoleNamePremium, true, false, true, sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(`INSERT INTO roles`).
		WithArgs(sqlmock.AnyArg(), sqlmock.AnyArg(), domain.RoleNameFree, true, true, false, sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(`INSERT INTO sections`).
		WithArgs(sqlmock.AnyArg(), sqlmock.AnyArg(), "General", 0).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(`INSERT INTO channels`).
		WithArgs(sqlmock.AnyArg(), sqlmock.AnyArg(), sqlmock.AnyArg(), "general", "", 0, sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 1))
	for i := 0; i < 3; i++ {
		mock.ExpectExec(`INSERT INTO role_channel_access`).
			WithArgs(sqlmock.AnyArg(), sqlmock.AnyArg()).
			WillReturnResult(sqlmock.NewResult(0, 1))
	}
	mock.ExpectExec(`INSERT INTO members`).
		WithArgs(sqlmock.AnyArg(), sqlmock.AnyArg(), ownerID, sqlmock.AnyArg(), sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	server, err := svc.CreateServer(context.Background(), "Desk", "desk", ownerID)

	require.NoError(t, err)
	assert.Equal(t, "Desk", server.Name)
	assert.Equal(t, "desk", server.Slug)
	assert.Equal(t, ownerID, server.OwnerID)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCreateServerRollsBackOnFailure(t *testing.T) {
	svc, mock := newTestService(t)

	mock.ExpectBegin()
	mock.ExpectExec(`INSERT INTO servers`).
		WillReturnError(sql.ErrConnDone)
	mock.ExpectRollback()

	_, err := svc.CreateServer(context.Background(), "Desk", "desk", uuid.New())

	require.Error(t, err)
	assert.Contains(t, err.Error(), "provision server")
	assert.NoError(t, mock.ExpectationsWereMet())
}

func subscriptionRowForUser(userID uuid.UUID, status domain.SubscriptionStatus) *sqlmock.Rows {
	now := time.Now()
	return sqlmock.NewRows([]string{
		"id", "user_id", "provider_customer_id", "provider_subscription_id",
		"status", "price_id", "current_period_end", "cancel_at_period_end", "created_at", "updated_at",
	}).AddRow(uuid.New(), userID, "cus_1", "sub_1", status, "price_premium", now.Add(720*time.Hour), false, now, now)
}

func expectGetManagedRole(mock sqlmock.Sqlmock, role *domain.Role, premium bool) {
	mock.ExpectQuery(`WHERE server_id = \$1 AND managed AND \(\(\$2 AND premium\) OR \(NOT \$2 AND is_default\)\)`).
		WithArgs(role.ServerID, premium).
		WillReturnRows(roleRow(role))
}

func TestJoinEntitledSubscriberGetsPremiumRole(t *testing.T) {
	svc, mock := newTestService(t)

	serverID := uuid.New()
	userID := uuid.New()
	premium := &domain.Role{ID: uuid.New(), ServerID: serverID, Name: domain.RoleNamePremium, Managed: true, Premium: true, CreatedAt: time.Now()}

	mock.ExpectQuery(`FROM subscriptions WHERE user_id = \$1`).
		WithArgs(userID).
		WillReturnRows(subscriptionRowForUser(userID, domain.SubscriptionActive))
	expectGetManagedRole(mock, premium, true)
	mock.ExpectExec(`INSERT INTO members`).
		WithArgs(sqlmock.AnyArg(), serverID, userID, premium.ID, sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 1))

	member, err := svc.Join(context.Background(), serverID, userID)

	require.NoError(t, err)
	assert.Equal(t, premium.ID, member.RoleID)
	assert.Equal(t, serverID, member.ServerID)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestJoinWithoutSubscriptionGetsDefaultRole(t *testing.T) {
	svc, mock := newTestService(t)

	serverID := uuid.New()
	userID := uuid.New()
	free := &domain.Role{ID: uuid.New(), ServerID: serverID, Name: domain.RoleNameFree, Managed: true, IsDefault: true, CreatedAt: time.Now()}

	mock.ExpectQuery(`FROM subscriptions WHERE user_id = \$1`).
		WithArgs(userID).
		WillReturnError(sql.ErrNoRows)
	expectGetManagedRole(mock, free, false)
	mock.ExpectExec(`INSERT INTO members`).
		WithArgs(sqlmock.AnyArg(), serverID, userID, free.ID, sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 1))

	member, err := svc.Join(context.Background(), serverID, userID)

	require.NoError(t, err)
	assert.Equal(t, free.ID, member.RoleID)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestJoinLapsedSubscriberGetsDefaultRole(t *testing.T) {
	svc, mock := newTestService(t)

	serverID := uuid.New()
	userID := uuid.New()
	free := &domain.Role{ID: uuid.New(), ServerID: serverID, Name: domain.RoleNameFree, Managed: true, IsDefault: true, CreatedAt: time.Now()}

	mock.ExpectQuery(`FROM subscriptions WHERE user_id = \$1`).
		WithArgs(userID).
		WillReturnRows(subscriptionRowForUser(userID, domain.SubscriptionPastDue))
	expectGetManagedRole(mock, free, false)
	mock.ExpectExec(`INSERT INTO members`).
		WithArgs(sqlmock.AnyArg(), serverID, userID, free.ID, sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 1))

	member, err := svc.Join(context.Background(), serverID, userID)

	require.NoError(t, err)
	assert.Equal(t, free.ID, member.RoleID)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSetMemberRole(t *testing.T) {
	svc, mock := newTestService(t)

	serverID := uuid.New()
	member := &domain.Member{ID: uuid.New(), ServerID: serverID, UserID: uuid.New(), RoleID: uuid.New(), JoinedAt: time.Now()}
	role := &domain.Role{ID: uuid.New(), ServerID: serverID, Name: "mentor", CreatedAt: time.Now()}

	expectGetMember(mock, member)
	mock.ExpectQuery(`FROM roles WHERE id = \$1`).
		WithArgs(role.ID).
		WillReturnRows(roleRow(role))
	mock.ExpectExec(`UPDATE members m`).
		WithArgs(member.ID, role.ID).
		WillReturnResult(sqlmock.NewResult(0, 1))

	updated, err := svc.SetMemberRole(context.Background(), serverID, member.UserID, role.ID)

	require.NoError(t, err)
	assert.Equal(t, role.ID, updated.RoleID)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSetMemberRoleCrossServer(t *testing.T) {
	svc, mock := newTestService(t)

	serverID := uuid.New()
	member := &domain.Member{ID: uuid.New(), ServerID: serverID, UserID: uuid.New(), RoleID: uuid.New(), JoinedAt: time.Now()}
	foreign := &domain.Role{ID: uuid.New(), ServerID: uuid.New(), Name: "mentor", CreatedAt: time.Now()}

	expectGetMember(mock, member)
	mock.ExpectQuery(`FROM roles WHERE id = \$1`).
		WithArgs(foreign.ID).
		WillReturnRows(roleRow(foreign))

	_, err := svc.SetMemberRole(context.Background(), serverID, member.UserID, foreign.ID)

	require.ErrorIs(t, err, ErrCrossServer)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSetMemberRoleNonMember(t *testing.T) {
	svc, mock := newTestService(t)

	serverID := uuid.New()
	userID := uuid.New()

	mock.ExpectQuery(`FROM members WHERE server_id = \$1 AND user_id = \$2`).
		WithArgs(serverID, userID).
		WillReturnError(sql.ErrNoRows)

	_, err := svc.SetMemberRole(context.Background(), serverID, userID, uuid.New())

	require.ErrorIs(t, err, ErrNotMember)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestIsAdminOwner(t *testing.T) {
	svc, mock := newTestService(t)

	ownerID := uuid.New()
	server := &domain.Server{ID: uuid.New(), Name: "Desk", Slug: "desk", OwnerID: ownerID, CreatedAt: time.Now()}

	mock.ExpectQuery(`FROM servers WHERE id = \$1`).
		WithArgs(server.ID).
		WillReturnRows(serverRow(server))

	ok, err := svc.IsAdmin(context.Background(), server.ID, ownerID)

	require.NoError(t, err)
	assert.True(t, ok)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestIsAdminRoleHolder(t *testing.T) {
	svc, mock := newTestService(t)

	server := &domain.Server{ID: uuid.New(), Name: "Desk", Slug: "desk", OwnerID: uuid.New(), CreatedAt: time.Now()}
	admin := &domain.Role{ID: uuid.New(), ServerID: server.ID, Name: domain.RoleNameAdmin, CreatedAt: time.Now()}
	member := &domain.Member{ID: uuid.New(), ServerID: server.ID, UserID: uuid.New(), RoleID: admin.ID, JoinedAt: time.Now()}

	mock.ExpectQuery(`FROM servers WHERE id = \$1`).
		WithArgs(server.ID).
		WillReturnRows(serverRow(server))
	expectGetMember(mock, member)
	mock.ExpectQuery(`FROM roles WHERE id = \$1`).
		WithArgs(admin.ID).
		WillReturnRows(roleRow(admin))

	ok, err := svc.IsAdmin(context.Background(), server.ID, member.UserID)

	require.NoError(t, err)
	assert.True(t, ok)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestIsAdminRegularMember(t *testing.T) {
	svc, mock := newTestService(t)

	server := &domain.Server{ID: uuid.New(), Name: "Desk", Slug: "desk", OwnerID: uuid.New(), CreatedAt: time.Now()}
	free := &domain.Role{ID: uuid.New(), ServerID: server.ID, Name: domain.RoleNameFree, Managed: true, IsDefault: true, CreatedAt: time.Now()}
	member := &domain.Member{ID: uuid.New(), ServerID: server.ID, UserID: uuid.New(), RoleID: free.ID, JoinedAt: time.Now()}

	mock.ExpectQuery(`FROM servers WHERE id = \$1`).
		WithArgs(server.ID).
		WillReturnRows(serverRow(server))
	expectGetMember(mock, member)
	mock.ExpectQuery(`FROM roles WHERE id = \$1`).
		WithArgs(free.ID).
		WillReturnRows(roleRow(free))

	ok, err := svc.IsAdmin(context.Background(), server.ID, member.UserID)

	require.NoError(t, err)
	assert.False(t, ok)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestIsAdminNonMember(t *testing.T) {
	svc, mock := newTestService(t)

	server := &domain.Server{ID: uuid.New(), Name: "Desk", Slug: "desk", OwnerID: uuid.New(), CreatedAt: time.Now()}
	userID := uuid.New()

	mock.ExpectQuery(`FROM servers WHERE id = \$1`).
		WithArgs(server.ID).
		WillReturnRows(serverRow(server))
	mock.ExpectQuery(`FROM members WHERE server_id = \$1 AND user_id = \$2`).
		WithArgs(server.ID, userID).
		WillReturnError(sql.ErrNoRows)

	ok, err := svc.IsAdmin(context.Background(), server.ID, userID)

	require.NoError(t, err)
	assert.False(t, ok)
	assert.NoError(t, mock.ExpectationsWereMet())
}

// A cached deny for a role must not outlive a grant: after GrantChannel
// the next CanView re-queries and sees the new access row.
func TestGrantChannelInvalidatesCachedDecision(t *testing.T) {
	svc, mock := newTestService(t)

	channel := &domain.Channel{ID: uuid.New(), ServerID: uuid.New(), Name: "signals", CreatedAt: time.Now()}
	role := &domain.Role{ID: uuid.New(), ServerID: channel.ServerID, Name: domain.RoleNamePremium, Managed: true, Premium: true, CreatedAt: time.Now()}
	member := &domain.Member{ID: uuid.New(), ServerID: channel.ServerID, UserID: uuid.New(), RoleID: role.ID, JoinedAt: time.Now()}

	expectGetChannel(mock, channel)
	expectGetMember(mock, member)
	mock.ExpectQuery(`WHERE c.id = \$2`).
		WithArgs(role.ID, channel.ID).
		WillReturnRows(accessRow(false))

	mock.ExpectQuery(`FROM roles WHERE id = \$1`).
		WithArgs(role.ID).
		WillReturnRows(roleRow(role))
	expectGetChannel(mock, channel)
	mock.ExpectExec(`INSERT INTO role_channel_access`).
		WithArgs(role.ID, channel.ID).
		WillReturnResult(sqlmock.NewResult(0, 1))

	expectGetChannel(mock, channel)
	expectGetMember(mock, member)
	mock.ExpectQuery(`WHERE c.id = \$2`).
		WithArgs(role.ID, channel.ID).
		WillReturnRows(accessRow(true))

	ok, err := svc.CanView(context.Background(), member.UserID, channel.ID)
	require.NoError(t, err)
	require.False(t, ok)

	require.NoError(t, svc.GrantChannel(context.Background(), role.ID, channel.ID))

	ok, err = svc.CanView(context.Background(), member.UserID, channel.ID)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestGrantChannelCrossServer(t *testing.T) {
	svc, mock := newTestService(t)

	role := &domain.Role{ID: uuid.New(), ServerID: uuid.New(), Name: "mentor", CreatedAt: time.Now()}
	channel := &domain.Channel{ID: uuid.New(), ServerID: uuid.New(), Name: "signals", CreatedAt: time.Now()}

	mock.ExpectQuery(`FROM roles WHERE id = \$1`).
		WithArgs(role.ID).
		WillReturnRows(roleRow(role))
	expectGetChannel(mock, channel)

	err := svc.GrantChannel(context.Background(), role.ID, channel.ID)

	require.ErrorIs(t, err, ErrCrossServer)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestGrantSectionCrossServer(t *testing.T) {
	svc, mock := newTestService(t)

	role := &domain.Role{ID: uuid.New(), ServerID: uuid.New(), Name: "mentor", CreatedAt: time.Now()}
	sectionID := uuid.New()

	mock.ExpectQuery(`FROM roles WHERE id = \$1`).
		WithArgs(role.ID).
		WillReturnRows(roleRow(role))
	mock.ExpectQuery(`FROM sections WHERE id = \$1`).
		WithArgs(sectionID).
		WillReturnRows(sqlmock.NewRows([]string{"id", "server_id", "name", "position"}).
			AddRow(sectionID, uuid.New(), "Premium Signals", 2))

	err := svc.GrantSection(context.Background(), role.ID, sectionID)

	require.ErrorIs(t, err, ErrCrossServer)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRevokeChannel(t *testing.T) {
	svc, mock := newTestService(t)

	roleID := uuid.New()
	channelID := uuid.New()

	mock.ExpectExec(`DELETE FROM role_channel_access WHERE role_id = \$1 AND channel_id = \$2`).
		WithArgs(roleID, channelID).
		WillReturnResult(sqlmock.NewResult(0, 1))

	require.NoError(t, svc.RevokeChannel(context.Background(), roleID, channelID))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCreateChannelSectionCrossServer(t *testing.T) {
	svc, mock := newTestService(t)

	serverID := uuid.New()
	sectionID := uuid.New()

	mock.ExpectQuery(`FROM sections WHERE id = \$1`).
		WithArgs(sectionID).
		WillReturnRows(sqlmock.NewRows([]string{"id", "server_id", "name", "position"}).
			AddRow(sectionID, uuid.New(), "Premium Signals", 2))

	_, err := svc.CreateChannel(context.Background(), serverID, &sectionID, "vip-lounge", "", 0)

	require.ErrorIs(t, err, ErrCrossServer)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCreateChannelWithoutSection(t *testing.T) {
	svc, mock := newTestService(t)

	serverID := uuid.New()

	mock.ExpectExec(`INSERT INTO channels`).
		WithArgs(sqlmock.AnyArg(), serverID, nil, "announcements", "desk updates", 3, sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 1))

	channel, err := svc.CreateChannel(context.Background(), serverID, nil, "announcements", "desk updates", 3)

	require.NoError(t, err)
	assert.Equal(t, "announcements", channel.Name)
	assert.Nil(t, channel.SectionID)
	assert.NoError(t, mock.ExpectationsWereMet())
}
