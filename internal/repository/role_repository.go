package repository

import (
	"context"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/spec-kit/auth-service/internal/domain"
)

// RoleRepository defines persistence access for authorities.
type RoleRepository interface {
	Create(ctx context.Context, role *domain.Role) error
	GetByAuthority(ctx context.Context, authority string) (*domain.Role, error)
}

type roleRepository struct {
	pool *pgxpool.Pool
}

// NewRoleRepository returns a Postgres-backed implementation.
func NewRoleRepository(pool *pgxpool.Pool) RoleRepository {
	return &roleRepository{pool: pool}
}

func (r *roleRepository) Create(ctx context.Context, role *domain.Role) error {
	const query = `
        INSERT INTO roles (authority)
        VALUES ($1)
        ON CONFLICT (authority) DO UPDATE SET authority=EXCLUDED.authority
        RETURNING id`

	return r.pool.QueryRow(ctx, query, role.Authority).Scan(&role.ID)
}

func (r *roleRepository) GetByAuthority(ctx context.Context, authority string) (*domain.Role, error) {
	const query = `SELECT id, authority FROM roles WHERE authority=$1`

	var role domain.Role
	if err := r.pool.QueryRow(ctx, query, authority).Scan(&role.ID, &role.Authority); err != nil {
		return nil, err
	}
	return &role, nil
}
