package auth

import (
	"errors"
	"strings"

	"github.com/gofiber/fiber/v2"
	"github.com/jackc/pgx/v5"
	"go.uber.org/zap"

	"github.com/spec-kit/auth-service/internal/domain"
	"github.com/spec-kit/auth-service/internal/repository"
	apperrors "github.com/spec-kit/auth-service/pkg/util"
)

const principalKey = "auth_principal"

// AuthMiddleware captures bearer tokens from the Authorization header and,
// when one checks out, binds the resolved principal into the request scope.
//
// Absent or invalid credentials are never an error here: the request simply
// continues unauthenticated and the role gate decides later whether that is
// acceptable for the route. The single exception is a structurally valid
// token for a disabled account, which aborts the request so the disablement
// surfaces to the caller instead of letting the token keep probing open
// endpoints.
type AuthMiddleware struct {
	tokens *TokenManager
	users  repository.UserRepository
	logger *zap.Logger
}

// NewAuthMiddleware constructs the middleware.
func NewAuthMiddleware(tokens *TokenManager, users repository.UserRepository, logger *zap.Logger) *AuthMiddleware {
	return &AuthMiddleware{tokens: tokens, users: users, logger: logger}
}

// Handle runs once per request, before the role gate.
func (m *AuthMiddleware) Handle(c *fiber.Ctx) error {
	authHeader := c.Get(fiber.HeaderAuthorization)
	if authHeader == "" || !strings.HasPrefix(authHeader, BearerPrefix) {
		return c.Next()
	}

	token := strings.TrimSpace(strings.TrimPrefix(authHeader, BearerPrefix))
	if !m.tokens.Validate(token) {
		return c.Next()
	}

	userID, err := m.tokens.SubjectOf(token)
	if err != nil {
		m.logger.Warn("token subject not decodable", zap.Error(err))
		return c.Next()
	}

	user, err := m.users.GetByID(c.Context(), userID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			m.logger.Warn("no user found for token subject", zap.String("user_id", userID.String()))
			return c.Next()
		}
		return apperrors.MapError(err)
	}

	if !user.Enabled {
		m.logger.Warn("disabled account presented a valid token", zap.String("user_id", userID.String()))
		return apperrors.NewAccountDisabled()
	}

	c.Locals(principalKey, &domain.Principal{ID: user.ID, Roles: user.RoleNames()})
	return c.Next()
}

// PrincipalFromContext retrieves the authenticated principal, if any.
func PrincipalFromContext(c *fiber.Ctx) (*domain.Principal, bool) {
	val := c.Locals(principalKey)
	if val == nil {
		return nil, false
	}
	principal, ok := val.(*domain.Principal)
	return principal, ok
}
