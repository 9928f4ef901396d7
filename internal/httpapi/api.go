// Package httpapi exposes the REST surface: account auth, server and
// role administration, channel messages, the notification inbox, push
// subscriptions, the billing webhook, and operational endpoints.
package httpapi

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/tradefloor/tradefloor/internal/billing"
	"github.com/tradefloor/tradefloor/internal/domain"
	"github.com/tradefloor/tradefloor/internal/metrics"
	"github.com/tradefloor/tradefloor/internal/ratelimit"
	"github.com/tradefloor/tradefloor/internal/web/auth"
	"github.com/tradefloor/tradefloor/internal/web/middleware"
	"github.com/tradefloor/tradefloor/internal/web/request"
)

// AccountService registers users and verifies credentials.
type AccountService interface {
	Register(ctx context.Context, email, username, password string) (*domain.User, error)
	Login(ctx context.Context, email, password string) (*domain.User, string, error)
}

// AccessService manages servers, roles, grants, and memberships.
type AccessService interface {
	CreateServer(ctx context.Context, name, slug string, ownerID uuid.UUID) (*domain.Server, error)
	ServersForUser(ctx context.Context, userID uuid.UUID) ([]*domain.Server, error)
	Join(ctx context.Context, serverID, userID uuid.UUID) (*domain.Member, error)
	VisibleChannels(ctx context.Context, userID, serverID uuid.UUID) ([]*domain.Channel, error)
	CreateSection(ctx context.Context, serverID uuid.UUID, name string, position int) (*domain.Section, error)
	CreateChannel(ctx context.Context, serverID uuid.UUID, sectionID *uuid.UUID, name, topic string, position int) (*domain.Channel, error)
	CreateRole(ctx context.Context, serverID uuid.UUID, name string) (*domain.Role, error)
	GetRole(ctx context.Context, id uuid.UUID) (*domain.Role, error)
	GrantChannel(ctx context.Context, roleID, channelID uuid.UUID) error
	RevokeChannel(ctx context.Context, roleID, channelID uuid.UUID) error
	GrantSection(ctx context.Context, roleID, sectionID uuid.UUID) error
	RevokeSection(ctx context.Context, roleID, sectionID uuid.UUID) error
	SetMemberRole(ctx context.Context, serverID, userID, roleID uuid.UUID) (*domain.Member, error)
	IsAdmin(ctx context.Context, serverID, userID uuid.UUID) (bool, error)
}

// ChatService posts and lists channel messages.
type ChatService interface {
	Post(ctx context.Context, userID, channelID uuid.UUID, body string) (*domain.Message, error)
	List(ctx context.Context, userID, channelID uuid.UUID, limit int, beforeID *uuid.UUID) ([]*domain.Message, error)
}

// NotifyService serves the notification inbox and channel preferences.
type NotifyService interface {
	List(ctx context.Context, userID uuid.UUID, unreadOnly bool, limit int, beforeID *uuid.UUID) ([]*domain.Notification, error)
	UnreadCount(ctx context.Context, userID uuid.UUID) (int, error)
	MarkRead(ctx context.Context, userID, notificationID uuid.UUID) error
	MarkAllRead(ctx context.Context, userID uuid.UUID) (int64, error)
	SetChannelPref(ctx context.Context, userID, channelID uuid.UUID, enabled bool) error
}

// PushService manages Web Push endpoint registrations.
type PushService interface {
	Subscribe(ctx context.Context, userID uuid.UUID, endpoint, p256dh, auth string) (*domain.PushSubscription, error)
	Unsubscribe(ctx context.Context, userID uuid.UUID, endpoint string) error
}

// BillingService ingests provider webhook deliveries.
type BillingService interface {
	HandleWebhook(ctx context.Context, payload []byte, sigHeader string) (billing.Outcome, error)
}

// Pinger is the health check's view of the database pool.
type Pinger interface {
	PingContext(ctx context.Context) error
}

// Deps bundles everything the API serves from.
type Deps struct {
	Accounts AccountService
	Access   AccessService
	Chat     ChatService
	Notifs   NotifyService
	Push     PushService
	Billing  BillingService

	AuthService *auth.AuthService
	DB          Pinger
	// WS handles websocket upgrades at /ws. Optional.
	WS http.Handler
	// APILimiter rate limits authenticated API requests. Optional.
	APILimiter ratelimit.RateLimiter

	Logger *zap.Logger
}

// API is the HTTP surface of the service.
type API struct {
	deps   Deps
	parser *request.Parser
	log    *zap.Logger
}

// New creates the API over its dependencies.
func New(deps Deps) *API {
	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &API{
		deps:   deps,
		parser: request.NewParser(),
		log:    logger,
	}
}

// Router builds the full handler: chi routes wrapped in the shared
// middleware stack. Billing webhooks, health, metrics, and the
// websocket upgrade (which carries its own token auth) stay outside
// the bearer-auth group.
func (a *API) Router() http.Handler {
	r := chi.NewRouter()

	r.Route("/api", func(r chi.Router) {
		r.Post("/auth/register", a.handleRegister)
		r.Post("/auth/login", a.handleLogin)

		r.Group(func(r chi.Router) {
			r.Use(middleware.Auth(a.deps.AuthService))
			if a.deps.APILimiter != nil {
				r.Use(middleware.RateLimit(a.deps.APILimiter))
			}

			r.Post("/servers", a.handleCreateServer)
			r.Get("/servers", a.handleListServers)
			r.Post("/servers/{serverID}/join", a.handleJoinServer)
			r.Get("/servers/{serverID}/channels", a.handleListChannels)
			r.Post("/servers/{serverID}/sections", a.handleCreateSection)
			r.Post("/servers/{serverID}/channels", a.handleCreateChannel)
			r.Post("/servers/{serverID}/roles", a.handleCreateRole)
			r.Put("/servers/{serverID}/members/{userID}/role", a.handleSetMemberRole)

			r.Put("/roles/{roleID}/channels/{channelID}", a.handleGrantChannel)
			r.Delete("/roles/{roleID}/channels/{channelID}", a.handleRevokeChannel)
			r.Put("/roles/{roleID}/sections/{sectionID}", a.handleGrantSection)
			r.Delete("/roles/{roleID}/sections/{sectionID}", a.handleRevokeSection)

			r.Get("/channels/{channelID}/messages", a.handleListMessages)
			r.Post("/channels/{channelID}/messages", a.handlePostMessage)
			r.Put("/channels/{channelID}/notification-pref", a.handleSetNotificationPref)

			r.Get("/notifications", a.handleListNotifications)
			r.Get("/notifications/unread-count", a.handleUnreadCount)
			r.Post("/notifications/{notificationID}/read", a.handleMarkRead)
			r.Post("/notifications/read-all", a.handleMarkAllRead)

			r.Post("/push/subscriptions", a.handlePushSubscribe)
			r.Delete("/push/subscriptions", a.handlePushUnsubscribe)
		})
	})

	r.Post("/webhooks/billing", a.handleBillingWebhook)
	r.Get("/healthz", a.handleHealthz)
	r.Method(http.MethodGet, "/metrics", metrics.Handler())

	if a.deps.WS != nil {
		r.Handle("/ws", a.deps.WS)
	}

	return middleware.NewChain(
		middleware.RequestID(),
		middleware.Middleware(metrics.InstrumentHandler),
		middleware.Logging(a.log),
		middleware.Recovery(a.log),
		middleware.CORS(),
	).Then(r)
}
