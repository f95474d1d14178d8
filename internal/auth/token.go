package auth

import (
	"errors"
	"fmt"
	"time"

	jwt "github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/spec-kit/auth-service/internal/domain"
)

// Token lifetimes. Access tokens authorize API calls directly and stay
// short-lived; refresh tokens only buy a new pair without re-entering
// credentials.
const (
	AccessTokenTTL  = 2 * time.Hour
	RefreshTokenTTL = 180 * 24 * time.Hour
)

// Claim keys and the refresh marker. An absent token-type claim means
// access token.
const (
	claimKeyUserID    = "user-id"
	claimKeyUserRoles = "user-roles"
	claimKeyTokenType = "token-type"

	tokenTypeRefresh = "refresh"
)

// BearerPrefix is the scheme expected in the Authorization header.
const BearerPrefix = "Bearer "

// Claims describes the JWT payload.
type Claims struct {
	UserID    string   `json:"user-id,omitempty"`
	UserRoles []string `json:"user-roles,omitempty"`
	TokenType string   `json:"token-type,omitempty"`
	jwt.RegisteredClaims
}

// TokenManager issues and validates signed token pairs. The key is derived
// once at startup and shared read-only across all requests.
type TokenManager struct {
	key    []byte
	method *jwt.SigningMethodHMAC
	issuer string
	logger *zap.Logger
	now    func() time.Time
}

// NewTokenManager builds a manager around the derived signing key.
func NewTokenManager(key []byte, issuer string, logger *zap.Logger) *TokenManager {
	return &TokenManager{
		key:    key,
		method: signingMethodFor(key),
		issuer: issuer,
		logger: logger,
		now:    time.Now,
	}
}

// IssuePair builds an access/refresh token pair for the principal. Pure
// function of principal, clock and configuration; claims are immutable once
// signed.
func (tm *TokenManager) IssuePair(principal domain.Principal) (domain.TokenPair, error) {
	access, err := tm.sign(principal, "", AccessTokenTTL)
	if err != nil {
		return domain.TokenPair{}, fmt.Errorf("sign access token: %w", err)
	}
	refresh, err := tm.sign(principal, tokenTypeRefresh, RefreshTokenTTL)
	if err != nil {
		return domain.TokenPair{}, fmt.Errorf("sign refresh token: %w", err)
	}
	return domain.TokenPair{AccessToken: access, RefreshToken: refresh}, nil
}

func (tm *TokenManager) sign(principal domain.Principal, tokenType string, ttl time.Duration) (string, error) {
	now := tm.now()
	claims := &Claims{
		UserID:    principal.ID.String(),
		UserRoles: principal.Roles,
		TokenType: tokenType,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    tm.issuer,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	}

	return jwt.NewWithClaims(tm.method, claims).SignedString(tm.key)
}

// parse verifies the signature and registered claims, rejecting any signing
// method outside the HMAC family.
func (tm *TokenManager) parse(tokenStr string) (*Claims, error) {
	parsed, err := jwt.ParseWithClaims(tokenStr, &Claims{}, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method %q", token.Method.Alg())
		}
		return tm.key, nil
	}, jwt.WithTimeFunc(func() time.Time { return tm.now() }))
	if err != nil {
		return nil, err
	}

	claims, ok := parsed.Claims.(*Claims)
	if !ok || !parsed.Valid {
		return nil, errors.New("invalid token claims")
	}
	return claims, nil
}

// Validate reports whether the token is well formed, signed with the
// process key and unexpired. Every failure is converted to false and logged;
// an invalid token is indistinguishable from a missing one to callers.
// Callers that need a hard failure re-check and raise their own error.
func (tm *TokenManager) Validate(tokenStr string) bool {
	_, err := tm.parse(tokenStr)
	if err == nil {
		return true
	}

	switch {
	case errors.Is(err, jwt.ErrTokenSignatureInvalid):
		tm.logger.Warn("invalid token signature", zap.Error(err))
	case errors.Is(err, jwt.ErrTokenMalformed):
		tm.logger.Warn("malformed token", zap.Error(err))
	case errors.Is(err, jwt.ErrTokenExpired):
		tm.logger.Warn("expired token", zap.Error(err))
	case errors.Is(err, jwt.ErrTokenUnverifiable):
		tm.logger.Warn("unverifiable token", zap.Error(err))
	default:
		tm.logger.Warn("token rejected", zap.Error(err))
	}
	return false
}

// SubjectOf decodes the user id claim of an already validated token.
func (tm *TokenManager) SubjectOf(tokenStr string) (uuid.UUID, error) {
	claims, err := tm.parse(tokenStr)
	if err != nil {
		return uuid.Nil, err
	}
	if claims.UserID == "" {
		return uuid.Nil, errors.New("token has no user id claim")
	}
	id, err := uuid.Parse(claims.UserID)
	if err != nil {
		return uuid.Nil, fmt.Errorf("malformed user id claim: %w", err)
	}
	return id, nil
}

// RolesOf returns the role names carried in the token.
func (tm *TokenManager) RolesOf(tokenStr string) ([]string, error) {
	claims, err := tm.parse(tokenStr)
	if err != nil {
		return nil, err
	}
	return claims.UserRoles, nil
}

// IsRefreshToken reports whether the token carries the refresh marker.
// Access tokens, tokens without the claim and unparseable tokens all
// report false.
func (tm *TokenManager) IsRefreshToken(tokenStr string) bool {
	claims, err := tm.parse(tokenStr)
	if err != nil {
		return false
	}
	return claims.TokenType == tokenTypeRefresh
}
