package service

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"go.uber.org/zap"

	"github.com/spec-kit/auth-service/internal/domain"
	"github.com/spec-kit/auth-service/internal/repository"
)

// RoleService manages the well-known authorities and their assignment.
type RoleService struct {
	roles  repository.RoleRepository
	users  repository.UserRepository
	logger *zap.Logger
}

// NewRoleService builds the service.
func NewRoleService(roles repository.RoleRepository, users repository.UserRepository, logger *zap.Logger) *RoleService {
	return &RoleService{roles: roles, users: users, logger: logger}
}

// EnsureDefaultRoles creates ROLE_USER and ROLE_ADMIN when absent. Runs on
// every startup; creating an existing role is a no-op.
func (s *RoleService) EnsureDefaultRoles(ctx context.Context) error {
	for _, authority := range []string{domain.RoleUser, domain.RoleAdmin} {
		if err := s.ensureRole(ctx, authority); err != nil {
			return err
		}
	}
	return nil
}

func (s *RoleService) ensureRole(ctx context.Context, authority string) error {
	if _, err := s.roles.GetByAuthority(ctx, authority); err == nil {
		return nil
	} else if !errors.Is(err, pgx.ErrNoRows) {
		return err
	}

	s.logger.Info("creating role", zap.String("authority", authority))
	return s.roles.Create(ctx, &domain.Role{Authority: authority})
}

// AssignUserRole grants ROLE_USER to the user.
func (s *RoleService) AssignUserRole(ctx context.Context, userID uuid.UUID) (*domain.Role, error) {
	return s.assign(ctx, userID, domain.RoleUser)
}

// AssignAdminRole grants ROLE_ADMIN to the user.
func (s *RoleService) AssignAdminRole(ctx context.Context, userID uuid.UUID) (*domain.Role, error) {
	return s.assign(ctx, userID, domain.RoleAdmin)
}

func (s *RoleService) assign(ctx context.Context, userID uuid.UUID, authority string) (*domain.Role, error) {
	role, err := s.roles.GetByAuthority(ctx, authority)
	if err != nil {
		return nil, err
	}
	if err := s.users.AssignRole(ctx, userID, role.ID); err != nil {
		return nil, err
	}
	return role, nil
}
