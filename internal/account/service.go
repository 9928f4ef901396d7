// Package account implements user registration and login. Tokens are
// stateless JWTs carrying only identity; per-server roles are resolved
// from the database on every request so subscription-driven role
// changes apply without re-login.
package account

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net/mail"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/tradefloor/tradefloor/internal/db"
	"github.com/tradefloor/tradefloor/internal/domain"
	"github.com/tradefloor/tradefloor/internal/store/postgres"
	"github.com/tradefloor/tradefloor/internal/web/auth"
)

const (
	minUsernameLength = 3
	maxUsernameLength = 32
)

var (
	// ErrInvalidCredentials is returned for wrong email or password.
	// Login never reveals which of the two was wrong.
	ErrInvalidCredentials = errors.New("invalid email or password")
	// ErrEmailTaken is returned when the email is already registered.
	ErrEmailTaken = errors.New("email already registered")
)

// ValidationError carries per-field registration failures.
type ValidationError struct {
	Fields map[string][]string
}

func (e *ValidationError) Error() string {
	return "invalid registration data"
}

// Service registers users and issues tokens.
type Service struct {
	users *postgres.UserStore
	auth  *auth.AuthService
	log   *zap.Logger
}

// NewService creates the account service over the given pool.
func NewService(pool *sql.DB, authService *auth.AuthService, logger *zap.Logger) *Service {
	return &Service{
		users: postgres.NewUserStore(pool),
		auth:  authService,
		log:   logger,
	}
}

// Register creates a user account. Email is lowercased before storage
// so lookups are case-insensitive.
func (s *Service) Register(ctx context.Context, email, username, password string) (*domain.User, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	username = strings.TrimSpace(username)

	if verr := validateRegistration(email, username, password); verr != nil {
		return nil, verr
	}

	hash, err := auth.HashPassword(password)
	if err != nil {
		return nil, fmt.Errorf("hash password: %w", err)
	}

	user := &domain.User{
		ID:           uuid.New(),
		Email:        email,
		Username:     username,
		PasswordHash: hash,
		CreatedAt:    time.Now(),
	}

	if err := s.users.CreateUser(ctx, user); err != nil {
		if db.IsUniqueViolation(err) {
			return nil, ErrEmailTaken
		}
		return nil, err
	}

	s.log.Info("user registered",
		zap.String("user_id", user.ID.String()),
		zap.String("username", user.Username))
	return user, nil
}

// Login verifies credentials and issues a JWT.
func (s *Service) Login(ctx context.Context, email, password string) (*domain.User, string, error) {
	email = strings.ToLower(strings.TrimSpace(email))

	user, err := s.users.GetUserByEmail(ctx, email)
	if db.IsNotFound(err) {
		return nil, "", ErrInvalidCredentials
	}
	if err != nil {
		return nil, "", err
	}

	if !auth.CheckPassword(password, user.PasswordHash) {
		return nil, "", ErrInvalidCredentials
	}

	token, err := s.auth.GenerateToken(user)
	if err != nil {
		return nil, "", fmt.Errorf("generate token: %w", err)
	}

	return user, token, nil
}

// GetUser fetches a user by id.
func (s *Service) GetUser(ctx context.Context, id uuid.UUID) (*domain.User, error) {
	return s.users.GetUser(ctx, id)
}

// LinkBillingCustomer records the payment provider's customer id for a
// user so later webhook events resolve to the account.
func (s *Service) LinkBillingCustomer(ctx context.Context, userID uuid.UUID, customerID string) error {
	return s.users.SetBillingCustomerID(ctx, userID, customerID)
}

func validateRegistration(email, username, password string) *ValidationError {
	fields := make(map[string][]string)

	if email == "" {
		fields["email"] = append(fields["email"], "is required")
	} else if _, err := mail.ParseAddress(email); err != nil {
		fields["email"] = append(fields["email"], "is not a valid email address")
	}

	nameLen := utf8.RuneCountInString(username)
	if nameLen < minUsernameLength || nameLen > maxUsernameLength {
		fields["username"] = append(fields["username"],
			fmt.Sprintf("must be between %d and %d characters", minUsernameLength, maxUsernameLength))
	}

	if utf8.RuneCountInString(password) < auth.MinPasswordLength {
		fields["password"] = append(fields["password"],
			fmt.Sprintf("must be at least %d characters", auth.MinPasswordLength))
	}

	if len(fields) > 0 {
		return &ValidationError{Fields: fields}
	}
	return nil
}
