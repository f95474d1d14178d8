package service

import (
	"context"
	"sync"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/spec-kit/auth-service/internal/domain"
)

// memoryRoleStore is an in-memory repository.RoleRepository.
type memoryRoleStore struct {
	mu    sync.Mutex
	roles map[string]*domain.Role
}

func newMemoryRoleStore() *memoryRoleStore {
	return &memoryRoleStore{roles: make(map[string]*domain.Role)}
}

func (s *memoryRoleStore) Create(_ context.Context, role *domain.Role) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if existing, ok := s.roles[role.Authority]; ok {
		role.ID = existing.ID
		return nil
	}
	role.ID = uuid.New()
	clone := *role
	s.roles[role.Authority] = &clone
	return nil
}

func (s *memoryRoleStore) GetByAuthority(_ context.Context, authority string) (*domain.Role, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	role, ok := s.roles[authority]
	if !ok {
		return nil, pgx.ErrNoRows
	}
	clone := *role
	return &clone, nil
}

func (s *memoryRoleStore) byID(roleID uuid.UUID) (domain.Role, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, role := range s.roles {
		if role.ID == roleID {
			return *role, true
		}
	}
	return domain.Role{}, false
}

// memoryUserStore is an in-memory repository.UserRepository.
type memoryUserStore struct {
	mu    sync.Mutex
	users map[uuid.UUID]*domain.User
	roles *memoryRoleStore
}

func newMemoryUserStore(roles *memoryRoleStore) *memoryUserStore {
	return &memoryUserStore{users: make(map[uuid.UUID]*domain.User), roles: roles}
}

func (s *memoryUserStore) Create(_ context.Context, user *domain.User) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	user.ID = uuid.New()
	clone := *user
	s.users[user.ID] = &clone
	return nil
}

func (s *memoryUserStore) Update(_ context.Context, user *domain.User) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.users[user.ID]; !ok {
		return pgx.ErrNoRows
	}
	clone := *user
	s.users[user.ID] = &clone
	return nil
}

func (s *memoryUserStore) Delete(_ context.Context, id uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.users[id]; !ok {
		return pgx.ErrNoRows
	}
	delete(s.users, id)
	return nil
}

func (s *memoryUserStore) GetByID(_ context.Context, id uuid.UUID) (*domain.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	user, ok := s.users[id]
	if !ok {
		return nil, pgx.ErrNoRows
	}
	clone := *user
	return &clone, nil
}

func (s *memoryUserStore) GetByUsername(_ context.Context, username string) (*domain.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, user := range s.users {
		if user.Username == username {
			clone := *user
			return &clone, nil
		}
	}
	return nil, pgx.ErrNoRows
}

func (s *memoryUserStore) GetByEmail(_ context.Context, email string) (*domain.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, user := range s.users {
		if user.Email == email {
			clone := *user
			return &clone, nil
		}
	}
	return nil, pgx.ErrNoRows
}

func (s *memoryUserStore) AssignRole(_ context.Context, userID, roleID uuid.UUID) error {
	role, ok := s.roles.byID(roleID)
	if !ok {
		return pgx.ErrNoRows
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	user, found := s.users[userID]
	if !found {
		return pgx.ErrNoRows
	}
	for _, existing := range user.Roles {
		if existing.ID == roleID {
			return nil
		}
	}
	user.Roles = append(user.Roles, role)
	return nil
}
