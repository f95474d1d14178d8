package auth

import (
	"strings"

	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/auth-service/internal/domain"
	apperrors "github.com/spec-kit/auth-service/pkg/util"
)

// RouteRule maps a URL path prefix to either public access or a required
// role. The table is built once at startup and read concurrently without
// locking.
type RouteRule struct {
	Prefix string
	Public bool
	Role   string
}

// RoleGate makes the allow/deny decision for each request after the
// authentication middleware has run. Routes that match no rule are denied
// unless explicitly public.
type RoleGate struct {
	public []RouteRule
	gated  []RouteRule
}

// NewRoleGate builds a gate from an ordered rule list. Public rules are
// consulted before role-gated ones; within each class the longest matching
// prefix wins.
func NewRoleGate(rules []RouteRule) *RoleGate {
	gate := &RoleGate{}
	for _, rule := range rules {
		if rule.Public {
			gate.public = append(gate.public, rule)
		} else {
			gate.gated = append(gate.gated, rule)
		}
	}
	return gate
}

// DefaultRules is the route table of this service: everything under /auth
// and the health probes are open, the user API requires ROLE_USER.
func DefaultRules() []RouteRule {
	return []RouteRule{
		{Prefix: "/auth", Public: true},
		{Prefix: "/health", Public: true},
		{Prefix: "/favicon.ico", Public: true},
		{Prefix: "/user", Role: domain.RoleUser},
	}
}

// Authorize decides whether the principal (nil when the request is
// unauthenticated) may reach the path. A nil return means allow.
func (g *RoleGate) Authorize(path string, principal *domain.Principal) error {
	if matchLongest(g.public, path) != nil {
		return nil
	}

	rule := matchLongest(g.gated, path)
	if rule == nil {
		// Unmatched routes default to deny.
		return denied(principal)
	}
	if principal == nil {
		return apperrors.NewUnauthorized("authentication required")
	}
	if !principal.HasRole(rule.Role) {
		return apperrors.NewForbidden("insufficient role")
	}
	return nil
}

// Handle adapts the gate into a fiber middleware.
func (g *RoleGate) Handle(c *fiber.Ctx) error {
	principal, _ := PrincipalFromContext(c)
	if err := g.Authorize(c.Path(), principal); err != nil {
		return err
	}
	return c.Next()
}

func denied(principal *domain.Principal) error {
	if principal == nil {
		return apperrors.NewUnauthorized("authentication required")
	}
	return apperrors.NewForbidden("access denied")
}

func matchLongest(rules []RouteRule, path string) *RouteRule {
	var best *RouteRule
	for i := range rules {
		rule := &rules[i]
		if !prefixMatches(rule.Prefix, path) {
			continue
		}
		if best == nil || len(rule.Prefix) > len(best.Prefix) {
			best = rule
		}
	}
	return best
}

// prefixMatches matches whole path segments, so /user does not capture
// /userdata.
func prefixMatches(prefix, path string) bool {
	if path == prefix {
		return true
	}
	return strings.HasPrefix(path, strings.TrimSuffix(prefix, "/")+"/")
}
