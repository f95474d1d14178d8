package service

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/spec-kit/auth-service/internal/domain"
)

func TestEnsureDefaultRoles_Idempotent(t *testing.T) {
	roleStore := newMemoryRoleStore()
	userStore := newMemoryUserStore(roleStore)
	svc := NewRoleService(roleStore, userStore, zap.NewNop())

	require.NoError(t, svc.EnsureDefaultRoles(context.Background()))

	userRole, err := roleStore.GetByAuthority(context.Background(), domain.RoleUser)
	require.NoError(t, err)
	adminRole, err := roleStore.GetByAuthority(context.Background(), domain.RoleAdmin)
	require.NoError(t, err)

	// A second bootstrap run keeps the same role identities.
	require.NoError(t, svc.EnsureDefaultRoles(context.Background()))

	userRoleAgain, err := roleStore.GetByAuthority(context.Background(), domain.RoleUser)
	require.NoError(t, err)
	assert.Equal(t, userRole.ID, userRoleAgain.ID)

	adminRoleAgain, err := roleStore.GetByAuthority(context.Background(), domain.RoleAdmin)
	require.NoError(t, err)
	assert.Equal(t, adminRole.ID, adminRoleAgain.ID)
}

func TestAssignRoles(t *testing.T) {
	roleStore := newMemoryRoleStore()
	userStore := newMemoryUserStore(roleStore)
	svc := NewRoleService(roleStore, userStore, zap.NewNop())
	require.NoError(t, svc.EnsureDefaultRoles(context.Background()))

	user := &domain.User{Username: "alice", Email: "a@x.com", Enabled: true}
	require.NoError(t, userStore.Create(context.Background(), user))

	_, err := svc.AssignUserRole(context.Background(), user.ID)
	require.NoError(t, err)
	_, err = svc.AssignAdminRole(context.Background(), user.ID)
	require.NoError(t, err)

	stored, err := userStore.GetByID(context.Background(), user.ID)
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{domain.RoleUser, domain.RoleAdmin}, stored.RoleNames())

	// Re-assigning is a no-op.
	_, err = svc.AssignUserRole(context.Background(), user.ID)
	require.NoError(t, err)
	stored, err = userStore.GetByID(context.Background(), user.ID)
	require.NoError(t, err)
	assert.Len(t, stored.Roles, 2)
}
