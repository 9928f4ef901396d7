// Package access implements the role-gated channel visibility model.
// Every view decision reduces to one question: does the member's role
// hold a grant on the channel, directly or through its section.
package access

import (
	"bytes"
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/tradefloor/tradefloor/internal/cache"
	"github.com/tradefloor/tradefloor/internal/db"
	"github.com/tradefloor/tradefloor/internal/domain"
	"github.com/tradefloor/tradefloor/internal/store/postgres"
)

var (
	// ErrNotMember is returned when the user has no membership in the server.
	ErrNotMember = errors.New("not a member of this server")
	// ErrCrossServer is returned when a grant or assignment crosses server
	// boundaries.
	ErrCrossServer = errors.New("role and target belong to different servers")
)

var (
	cacheYes = []byte("1")
	cacheNo  = []byte("0")
)

// Service answers channel visibility questions and manages the role and
// membership records they are derived from. Decisions are cached per
// role; grants and revokes invalidate the role's cached entries.
type Service struct {
	servers  *postgres.ServerStore
	roles    *postgres.RoleStore
	members  *postgres.MemberStore
	subs     *postgres.SubscriptionStore
	tx       *db.TxManager
	cache    cache.Cache
	cacheTTL time.Duration
	log      *zap.Logger
}

// NewService creates the access service over the given pool.
func NewService(pool *sql.DB, c cache.Cache, cacheTTL time.Duration, logger *zap.Logger) *Service {
	return &Service{
		servers:  postgres.NewServerStore(pool),
		roles:    postgres.NewRoleStore(pool),
		members:  postgres.NewMemberStore(pool),
		subs:     postgres.NewSubscriptionStore(pool),
		tx:       db.NewTxManager(pool),
		cache:    c,
		cacheTTL: cacheTTL,
		log:      logger,
	}
}

// CanView reports whether the user may view the channel. Non-members and
// members whose role holds no grant get false. Denied is the default:
// a missing grant row means no access.
func (s *Service) CanView(ctx context.Context, userID, channelID uuid.UUID) (bool, error) {
	channel, err := s.servers.GetChannel(ctx, channelID)
	if err != nil {
		return false, err
	}

	member, err := s.members.GetMember(ctx, channel.ServerID, userID)
	if db.IsNotFound(err) {
		return false, nil
	}
	if err != nil {
		return false, err
	}

	key := cache.RoleChannelKey(member.RoleID, channelID)
	if raw, err := s.cache.Get(ctx, key); err == nil {
		return bytes.Equal(raw, cacheYes), nil
	} else if !cache.IsCacheMiss(err) {
		s.log.Warn("access cache read failed", zap.Error(err))
	}

	ok, err := s.roles.RoleHasChannelAccess(ctx, member.RoleID, channelID)
	if err != nil {
		return false, err
	}

	val := cacheNo
	if ok {
		val = cacheYes
	}
	if err := s.cache.Set(ctx, key, val, s.cacheTTL); err != nil {
		s.log.Warn("access cache write failed", zap.Error(err))
	}

	return ok, nil
}

// VisibleChannels returns the server's channels the user may view,
// ordered for display. Returns ErrNotMember for non-members.
func (s *Service) VisibleChannels(ctx context.Context, userID, serverID uuid.UUID) ([]*domain.Channel, error) {
	member, err := s.members.GetMember(ctx, serverID, userID)
	if db.IsNotFound(err) {
		return nil, ErrNotMember
	}
	if err != nil {
		return nil, err
	}

	key := cache.RoleVisibleKey(member.RoleID)
	if raw, err := s.cache.Get(ctx, key); err == nil {
		var channels []*domain.Channel
		if err := json.Unmarshal(raw, &channels); err == nil {
			return channels, nil
		}
		s.log.Warn("corrupt cached channel list, refetching", zap.String("key", key))
	} else if !cache.IsCacheMiss(err) {
		s.log.Warn("access cache read failed", zap.Error(err))
	}

	channels, err := s.roles.ListVisibleChannels(ctx, serverID, member.RoleID)
	if err != nil {
		return nil, err
	}

	if raw, err := json.Marshal(channels); err == nil {
		if err := s.cache.Set(ctx, key, raw, s.cacheTTL); err != nil {
			s.log.Warn("access cache write failed", zap.Error(err))
		}
	}

	return channels, nil
}

// CreateServer provisions a server with its three seed roles, a General
// section holding a general channel visible to all of them, and the
// owner as admin member. All of it commits in one transaction.
func (s *Service) CreateServer(ctx context.Context, name, slug string, ownerID uuid.UUID) (*domain.Server, error) {
	now := time.Now()
	server := &domain.Server{ID: uuid.New(), Name: name, Slug: slug, OwnerID: ownerID, CreatedAt: now}

	admin := &domain.Role{ID: uuid.New(), ServerID: server.ID, Name: domain.RoleNameAdmin, CreatedAt: now}
	premium := &domain.Role{ID: uuid.New(), ServerID: server.ID, Name: domain.RoleNamePremium, Managed: true, Premium: true, CreatedAt: now}
	free := &domain.Role{ID: uuid.New(), ServerID: server.ID, Name: domain.RoleNameFree, Managed: true, IsDefault: true, CreatedAt: now}
	section := &domain.Section{ID: uuid.New(), ServerID: server.ID, Name: "General", Position: 0}
	general := &domain.Channel{ID: uuid.New(), ServerID: server.ID, SectionID: &section.ID, Name: "general", Position: 0, CreatedAt: now}

	err := s.tx.WithTransaction(ctx, func(tx *sql.Tx) error {
		servers := s.servers.WithTx(tx)
		roles := s.roles.WithTx(tx)
		members := s.members.WithTx(tx)

		if err := servers.CreateServer(ctx, server); err != nil {
			return err
		}
		for _, r := range []*domain.Role{admin, premium, free} {
			if err := roles.CreateRole(ctx, r); err != nil {
				return err
			}
		}
		if err := servers.CreateSection(ctx, section); err != nil {
			return err
		}
		if err := servers.CreateChannel(ctx, general); err != nil {
			return err
		}
		for _, r := range []*domain.Role{admin, premium, free} {
			if err := roles.GrantChannel(ctx, r.ID, general.ID); err != nil {
				return err
			}
		}

		owner := &domain.Member{ID: uuid.New(), ServerID: server.ID, UserID: ownerID, RoleID: admin.ID, JoinedAt: now}
		return members.CreateMember(ctx, owner)
	})
	if err != nil {
		return nil, fmt.Errorf("provision server: %w", err)
	}

	s.log.Info("server provisioned",
		zap.String("server_id", server.ID.String()),
		zap.String("slug", server.Slug))
	return server, nil
}

// GetServer fetches a server by id.
func (s *Service) GetServer(ctx context.Context, id uuid.UUID) (*domain.Server, error) {
	return s.servers.GetServer(ctx, id)
}

// GetServerBySlug fetches a server by slug.
func (s *Service) GetServerBySlug(ctx context.Context, slug string) (*domain.Server, error) {
	return s.servers.GetServerBySlug(ctx, slug)
}

// ServersForUser lists the servers the user belongs to.
func (s *Service) ServersForUser(ctx context.Context, userID uuid.UUID) ([]*domain.Server, error) {
	return s.servers.ListServersForUser(ctx, userID)
}

// CreateSection adds a section to a server.
func (s *Service) CreateSection(ctx context.Context, serverID uuid.UUID, name string, position int) (*domain.Section, error) {
	section := &domain.Section{ID: uuid.New(), ServerID: serverID, Name: name, Position: position}
	if err := s.servers.CreateSection(ctx, section); err != nil {
		return nil, err
	}
	return section, nil
}

// CreateChannel adds a channel to a server. A new channel is visible to
// nobody until a role is granted access, except through pre-existing
// section grants when the channel lands in a granted section.
func (s *Service) CreateChannel(ctx context.Context, serverID uuid.UUID, sectionID *uuid.UUID, name, topic string, position int) (*domain.Channel, error) {
	if sectionID != nil {
		section, err := s.servers.GetSection(ctx, *sectionID)
		if err != nil {
			return nil, err
		}
		if section.ServerID != serverID {
			return nil, ErrCrossServer
		}
	}

	channel := &domain.Channel{
		ID:        uuid.New(),
		ServerID:  serverID,
		SectionID: sectionID,
		Name:      name,
		Topic:     topic,
		Position:  position,
		CreatedAt: time.Now(),
	}
	if err := s.servers.CreateChannel(ctx, channel); err != nil {
		return nil, err
	}
	return channel, nil
}

// GetChannel fetches a channel by id.
func (s *Service) GetChannel(ctx context.Context, id uuid.UUID) (*domain.Channel, error) {
	return s.servers.GetChannel(ctx, id)
}

// CreateRole adds an unmanaged role to a server. Unmanaged roles are
// assigned by admins and never touched by subscription sync.
func (s *Service) CreateRole(ctx context.Context, serverID uuid.UUID, name string) (*domain.Role, error) {
	role := &domain.Role{ID: uuid.New(), ServerID: serverID, Name: name, CreatedAt: time.Now()}
	if err := s.roles.CreateRole(ctx, role); err != nil {
		return nil, err
	}
	return role, nil
}

// GetRole fetches a role by id.
func (s *Service) GetRole(ctx context.Context, id uuid.UUID) (*domain.Role, error) {
	return s.roles.GetRole(ctx, id)
}

// GrantChannel grants a role access to a channel in its server.
func (s *Service) GrantChannel(ctx context.Context, roleID, channelID uuid.UUID) error {
	role, err := s.roles.GetRole(ctx, roleID)
	if err != nil {
		return err
	}
	channel, err := s.servers.GetChannel(ctx, channelID)
	if err != nil {
		return err
	}
	if role.ServerID != channel.ServerID {
		return ErrCrossServer
	}

	if err := s.roles.GrantChannel(ctx, roleID, channelID); err != nil {
		return err
	}
	s.invalidateRole(ctx, roleID)
	return nil
}

// RevokeChannel removes a role's direct channel grant.
func (s *Service) RevokeChannel(ctx context.Context, roleID, channelID uuid.UUID) error {
	if err := s.roles.RevokeChannel(ctx, roleID, channelID); err != nil {
		return err
	}
	s.invalidateRole(ctx, roleID)
	return nil
}

// GrantSection grants a role access to every channel in a section.
func (s *Service) GrantSection(ctx context.Context, roleID, sectionID uuid.UUID) error {
	role, err := s.roles.GetRole(ctx, roleID)
	if err != nil {
		return err
	}
	section, err := s.servers.GetSection(ctx, sectionID)
	if err != nil {
		return err
	}
	if role.ServerID != section.ServerID {
		return ErrCrossServer
	}

	if err := s.roles.GrantSection(ctx, roleID, sectionID); err != nil {
		return err
	}
	s.invalidateRole(ctx, roleID)
	return nil
}

// RevokeSection removes a role's section grant.
func (s *Service) RevokeSection(ctx context.Context, roleID, sectionID uuid.UUID) error {
	if err := s.roles.RevokeSection(ctx, roleID, sectionID); err != nil {
		return err
	}
	s.invalidateRole(ctx, roleID)
	return nil
}

// Join adds the user to a server. Entitled subscribers land on the
// managed premium role, everyone else on the managed default role.
func (s *Service) Join(ctx context.Context, serverID, userID uuid.UUID) (*domain.Member, error) {
	entitled := false
	sub, err := s.subs.GetByUserID(ctx, userID)
	if err == nil {
		entitled = sub.Status.Entitled()
	} else if !db.IsNotFound(err) {
		return nil, err
	}

	role, err := s.roles.GetManagedRole(ctx, serverID, entitled)
	if err != nil {
		return nil, fmt.Errorf("resolve join role: %w", err)
	}

	member := &domain.Member{ID: uuid.New(), ServerID: serverID, UserID: userID, RoleID: role.ID, JoinedAt: time.Now()}
	if err := s.members.CreateMember(ctx, member); err != nil {
		return nil, err
	}
	return member, nil
}

// GetMember fetches the user's membership in a server.
func (s *Service) GetMember(ctx context.Context, serverID, userID uuid.UUID) (*domain.Member, error) {
	return s.members.GetMember(ctx, serverID, userID)
}

// SetMemberRole assigns a role to a member. Works for any role in the
// server; managed roles assigned this way get overwritten on the next
// subscription sync for the user.
func (s *Service) SetMemberRole(ctx context.Context, serverID, userID, roleID uuid.UUID) (*domain.Member, error) {
	member, err := s.members.GetMember(ctx, serverID, userID)
	if db.IsNotFound(err) {
		return nil, ErrNotMember
	}
	if err != nil {
		return nil, err
	}

	role, err := s.roles.GetRole(ctx, roleID)
	if err != nil {
		return nil, err
	}
	if role.ServerID != serverID {
		return nil, ErrCrossServer
	}

	if err := s.members.SetMemberRole(ctx, member.ID, roleID); err != nil {
		return nil, err
	}
	member.RoleID = roleID
	return member, nil
}

// IsAdmin reports whether the user may administer the server: the owner
// always can, as can holders of the admin role.
func (s *Service) IsAdmin(ctx context.Context, serverID, userID uuid.UUID) (bool, error) {
	server, err := s.servers.GetServer(ctx, serverID)
	if err != nil {
		return false, err
	}
	if server.OwnerID == userID {
		return true, nil
	}

	member, err := s.members.GetMember(ctx, serverID, userID)
	if db.IsNotFound(err) {
		return false, nil
	}
	if err != nil {
		return false, err
	}

	role, err := s.roles.GetRole(ctx, member.RoleID)
	if err != nil {
		return false, err
	}
	return role.Name == domain.RoleNameAdmin, nil
}

// invalidateRole drops every cached decision for a role. Called after
// grant and revoke; role reassignment needs no invalidation because
// decisions are keyed by role.
func (s *Service) invalidateRole(ctx context.Context, roleID uuid.UUID) {
	if err := s.cache.DeleteByPrefix(ctx, cache.RolePrefix(roleID)); err != nil {
		s.log.Warn("access cache invalidation failed",
			zap.String("role_id", roleID.String()),
			zap.Error(err))
	}
}
