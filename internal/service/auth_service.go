package service

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"go.uber.org/zap"

	"github.com/spec-kit/auth-service/internal/auth"
	"github.com/spec-kit/auth-service/internal/domain"
	"github.com/spec-kit/auth-service/internal/events"
	"github.com/spec-kit/auth-service/internal/observability"
	"github.com/spec-kit/auth-service/internal/repository"
	apperrors "github.com/spec-kit/auth-service/pkg/util"
)

// AuthService coordinates the token-producing flows: login, refresh and
// registration. The middleware never goes through here; it talks to the
// token manager and the user store directly.
type AuthService struct {
	users      repository.UserRepository
	roles      *RoleService
	tokens     *auth.TokenManager
	throttle   *LoginThrottle
	dispatcher events.Dispatcher
	metrics    *observability.Metrics
	logger     *zap.Logger
}

// AuthDependencies bundles collaborator requirements for the auth service.
type AuthDependencies struct {
	UserRepo    repository.UserRepository
	RoleService *RoleService
	Tokens      *auth.TokenManager
	Throttle    *LoginThrottle
	Dispatcher  events.Dispatcher
	Metrics     *observability.Metrics
	Logger      *zap.Logger
}

// NewAuthService builds the service.
func NewAuthService(deps AuthDependencies) *AuthService {
	return &AuthService{
		users:      deps.UserRepo,
		roles:      deps.RoleService,
		tokens:     deps.Tokens,
		throttle:   deps.Throttle,
		dispatcher: deps.Dispatcher,
		metrics:    deps.Metrics,
		logger:     deps.Logger,
	}
}

// Login verifies the credentials and issues a fresh token pair. Disabled
// accounts are refused before the password is checked, matching the order
// of the account checks at the middleware.
func (s *AuthService) Login(ctx context.Context, username, password string) (domain.TokenPair, error) {
	if !s.throttle.Allow(ctx, username) {
		s.metrics.RecordAuthOutcome("login", "throttled")
		return domain.TokenPair{}, apperrors.NewRateLimited("too many failed login attempts, try again later")
	}

	user, err := s.users.GetByUsername(ctx, username)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			s.throttle.RecordFailure(ctx, username)
			s.metrics.RecordAuthOutcome("login", "invalid_credentials")
			return domain.TokenPair{}, apperrors.NewInvalidCredentials()
		}
		return domain.TokenPair{}, err
	}

	if !user.Enabled {
		s.metrics.RecordAuthOutcome("login", "account_disabled")
		return domain.TokenPair{}, apperrors.NewAccountDisabled()
	}

	ok, err := auth.VerifyPassword(password, user.PasswordHash)
	if err != nil {
		return domain.TokenPair{}, err
	}
	if !ok {
		s.throttle.RecordFailure(ctx, username)
		s.metrics.RecordAuthOutcome("login", "invalid_credentials")
		return domain.TokenPair{}, apperrors.NewInvalidCredentials()
	}

	s.throttle.Reset(ctx, username)
	s.metrics.RecordAuthOutcome("login", "success")
	return s.tokens.IssuePair(principalOf(user))
}

// Refresh exchanges a refresh token for a new pair. Unlike the middleware,
// this flow needs a hard failure: a token that does not validate or is not
// refresh-typed is a bad request.
func (s *AuthService) Refresh(ctx context.Context, refreshToken string) (domain.TokenPair, error) {
	refreshToken = strings.TrimSpace(refreshToken)
	if refreshToken == "" {
		return domain.TokenPair{}, apperrors.NewBadRequest("refresh token not provided in body")
	}

	if !s.tokens.Validate(refreshToken) || !s.tokens.IsRefreshToken(refreshToken) {
		s.metrics.RecordAuthOutcome("refresh", "invalid_token")
		return domain.TokenPair{}, apperrors.NewTokenInvalid()
	}

	userID, err := s.tokens.SubjectOf(refreshToken)
	if err != nil {
		s.metrics.RecordAuthOutcome("refresh", "invalid_token")
		return domain.TokenPair{}, apperrors.NewTokenInvalid()
	}

	user, err := s.users.GetByID(ctx, userID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.TokenPair{}, apperrors.NewNotFound("user", map[string]any{"id": userID.String()})
		}
		return domain.TokenPair{}, err
	}

	s.metrics.RecordAuthOutcome("refresh", "success")
	return s.tokens.IssuePair(principalOf(user))
}

// Register creates an account, grants the default role and issues the first
// token pair.
func (s *AuthService) Register(ctx context.Context, username, password, email string) (*domain.User, domain.TokenPair, error) {
	if _, err := s.users.GetByUsername(ctx, username); err == nil {
		return nil, domain.TokenPair{}, apperrors.NewConflict("username already exists", nil)
	} else if !errors.Is(err, pgx.ErrNoRows) {
		return nil, domain.TokenPair{}, err
	}

	hash, err := auth.HashPassword(password)
	if err != nil {
		return nil, domain.TokenPair{}, err
	}

	user := &domain.User{
		Username:     username,
		Email:        email,
		PasswordHash: hash,
		Enabled:      true,
	}
	if err := s.users.Create(ctx, user); err != nil {
		return nil, domain.TokenPair{}, err
	}

	role, err := s.roles.AssignUserRole(ctx, user.ID)
	if err != nil {
		return nil, domain.TokenPair{}, err
	}
	user.Roles = append(user.Roles, *role)

	pair, err := s.tokens.IssuePair(principalOf(user))
	if err != nil {
		return nil, domain.TokenPair{}, err
	}

	s.publish(ctx, events.EventUserRegistered, user.ID, events.UserRegisteredPayload{
		Username: user.Username,
		Email:    user.Email,
	})
	s.metrics.RecordAuthOutcome("register", "success")
	return user, pair, nil
}

func (s *AuthService) publish(ctx context.Context, eventType events.EventType, userID uuid.UUID, payload interface{}) {
	if s.dispatcher == nil {
		return
	}
	_ = s.dispatcher.Publish(ctx, events.Event{
		ID:        uuid.NewString(),
		Type:      eventType,
		UserID:    userID,
		Timestamp: time.Now(),
		Payload:   payload,
	})
}

func principalOf(user *domain.User) domain.Principal {
	return domain.Principal{ID: user.ID, Roles: user.RoleNames()}
}
