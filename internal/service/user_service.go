package service

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/spec-kit/auth-service/internal/auth"
	"github.com/spec-kit/auth-service/internal/domain"
	"github.com/spec-kit/auth-service/internal/events"
	"github.com/spec-kit/auth-service/internal/repository"
	apperrors "github.com/spec-kit/auth-service/pkg/util"
)

// UserUpdate carries the optional fields of a profile update. Blank fields
// are left untouched.
type UserUpdate struct {
	Username string
	Email    string
	Password string
}

// UserService serves the role-gated user endpoints.
type UserService struct {
	users      repository.UserRepository
	tokens     *auth.TokenManager
	dispatcher events.Dispatcher
}

// NewUserService builds the service.
func NewUserService(users repository.UserRepository, tokens *auth.TokenManager, dispatcher events.Dispatcher) *UserService {
	return &UserService{users: users, tokens: tokens, dispatcher: dispatcher}
}

// FindByID returns the user or a typed not-found error.
func (s *UserService) FindByID(ctx context.Context, id uuid.UUID) (*domain.User, error) {
	user, err := s.users.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.NewNotFound("user", map[string]any{"id": id.String()})
		}
		return nil, err
	}
	return user, nil
}

// FindByEmail returns the user or a typed not-found error.
func (s *UserService) FindByEmail(ctx context.Context, email string) (*domain.User, error) {
	user, err := s.users.GetByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.NewNotFound("user", map[string]any{"email": email})
		}
		return nil, err
	}
	return user, nil
}

// FindByUsername returns the user or a typed not-found error.
func (s *UserService) FindByUsername(ctx context.Context, username string) (*domain.User, error) {
	user, err := s.users.GetByUsername(ctx, username)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.NewNotFound("user", map[string]any{"username": username})
		}
		return nil, err
	}
	return user, nil
}

// Update applies the non-blank fields to the caller's account and issues a
// fresh token pair reflecting the new state.
func (s *UserService) Update(ctx context.Context, callerID uuid.UUID, update UserUpdate) (*domain.User, domain.TokenPair, error) {
	user, err := s.FindByID(ctx, callerID)
	if err != nil {
		return nil, domain.TokenPair{}, err
	}

	passwordChanged := false
	if username := strings.TrimSpace(update.Username); username != "" {
		user.Username = username
	}
	if email := strings.TrimSpace(update.Email); email != "" {
		user.Email = email
	}
	if update.Password != "" {
		hash, err := auth.HashPassword(update.Password)
		if err != nil {
			return nil, domain.TokenPair{}, err
		}
		user.PasswordHash = hash
		passwordChanged = true
	}

	if err := s.users.Update(ctx, user); err != nil {
		return nil, domain.TokenPair{}, err
	}

	pair, err := s.tokens.IssuePair(principalOf(user))
	if err != nil {
		return nil, domain.TokenPair{}, err
	}

	s.publishEvent(ctx, events.EventUserUpdated, user.ID, events.UserUpdatedPayload{
		Username:        user.Username,
		PasswordChanged: passwordChanged,
	})
	return user, pair, nil
}

// Delete removes the caller's account.
func (s *UserService) Delete(ctx context.Context, callerID uuid.UUID) error {
	user, err := s.FindByID(ctx, callerID)
	if err != nil {
		return err
	}

	if err := s.users.Delete(ctx, user.ID); err != nil {
		return err
	}

	s.publishEvent(ctx, events.EventUserDeleted, user.ID, events.UserDeletedPayload{Username: user.Username})
	return nil
}

func (s *UserService) publishEvent(ctx context.Context, eventType events.EventType, userID uuid.UUID, payload interface{}) {
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
