package http

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/spec-kit/auth-service/internal/api/http/handlers"
	"github.com/spec-kit/auth-service/internal/auth"
	"github.com/spec-kit/auth-service/internal/domain"
	"github.com/spec-kit/auth-service/internal/events"
	"github.com/spec-kit/auth-service/internal/observability"
	"github.com/spec-kit/auth-service/internal/service"
)

// stubStores back the full HTTP stack without Postgres.
type stubStores struct {
	mu    sync.Mutex
	users map[uuid.UUID]*domain.User
	roles map[string]*domain.Role
}

func newStubStores() *stubStores {
	return &stubStores{
		users: make(map[uuid.UUID]*domain.User),
		roles: make(map[string]*domain.Role),
	}
}

func (s *stubStores) Create(_ context.Context, user *domain.User) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	user.ID = uuid.New()
	clone := *user
	s.users[user.ID] = &clone
	return nil
}

func (s *stubStores) Update(_ context.Context, user *domain.User) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.users[user.ID]; !ok {
		return pgx.ErrNoRows
	}
	clone := *user
	s.users[user.ID] = &clone
	return nil
}

func (s *stubStores) Delete(_ context.Context, id uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.users[id]; !ok {
		return pgx.ErrNoRows
	}
	delete(s.users, id)
	return nil
}

func (s *stubStores) GetByID(_ context.Context, id uuid.UUID) (*domain.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	user, ok := s.users[id]
	if !ok {
		return nil, pgx.ErrNoRows
	}
	clone := *user
	return &clone, nil
}

func (s *stubStores) GetByUsername(_ context.Context, username string) (*domain.User, error) {
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

func (s *stubStores) GetByEmail(_ context.Context, email string) (*domain.User, error) {
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

func (s *stubStores) AssignRole(_ context.Context, userID, roleID uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	user, ok := s.users[userID]
	if !ok {
		return pgx.ErrNoRows
	}
	for _, role := range s.roles {
		if role.ID == roleID {
			user.Roles = append(user.Roles, *role)
			return nil
		}
	}
	return pgx.ErrNoRows
}

func (s *stubStores) CreateRole(_ context.Context, role *domain.Role) error {
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

func (s *stubStores) GetByAuthority(_ context.Context, authority string) (*domain.Role, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	role, ok := s.roles[authority]
	if !ok {
		return nil, pgx.ErrNoRows
	}
	clone := *role
	return &clone, nil
}

// roleStoreView exposes the role half of stubStores under the repository
// interface.
type roleStoreView struct{ *stubStores }

func (v roleStoreView) Create(ctx context.Context, role *domain.Role) error {
	return v.stubStores.CreateRole(ctx, role)
}

type apiFixture struct {
	app    *fiber.App
	stores *stubStores
	tokens *auth.TokenManager
}

func newAPIFixture(t *testing.T) *apiFixture {
	t.Helper()

	key, err := auth.DeriveSigningKey("unit-test-signing-passphrase")
	require.NoError(t, err)
	logger := zap.NewNop()
	tokens := auth.NewTokenManager(key, "TestIssuer", logger)

	stores := newStubStores()
	roleService := service.NewRoleService(roleStoreView{stores}, stores, logger)
	require.NoError(t, roleService.EnsureDefaultRoles(context.Background()))

	metrics := observability.NewMetrics()
	dispatcher := events.NewInMemoryDispatcher()

	authService := service.NewAuthService(service.AuthDependencies{
		UserRepo:    stores,
		RoleService: roleService,
		Tokens:      tokens,
		Throttle:    service.NewLoginThrottle(nil, 0, 0, logger),
		Dispatcher:  dispatcher,
		Metrics:     metrics,
		Logger:      logger,
	})
	userService := service.NewUserService(stores, tokens, dispatcher)

	app := fiber.New()
	RegisterMiddlewares(app, logger, metrics, 5*time.Second)
	RegisterRoutes(app, RouteConfig{
		Health:         handlers.NewHealthHandler("auth-service", "test", nil, nil),
		Auth:           handlers.NewAuthHandler(authService),
		Users:          handlers.NewUsersHandler(userService),
		AuthMiddleware: auth.NewAuthMiddleware(tokens, stores, logger),
		RoleGate:       auth.NewRoleGate(auth.DefaultRules()),
	})

	return &apiFixture{app: app, stores: stores, tokens: tokens}
}

func (f *apiFixture) do(t *testing.T, method, path, contentType, body string, headers map[string]string) *http.Response {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	resp, err := f.app.Test(req, -1)
	require.NoError(t, err)
	return resp
}

func decodeTokens(t *testing.T, resp *http.Response) (access, refresh string) {
	t.Helper()
	defer resp.Body.Close()
	var payload struct {
		AccessToken  string `json:"accessToken"`
		RefreshToken string `json:"refreshToken"`
	}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&payload))
	return payload.AccessToken, payload.RefreshToken
}

func TestRegisterLoginRefreshFlow(t *testing.T) {
	fixture := newAPIFixture(t)

	resp := fixture.do(t, http.MethodPost, "/auth/register", fiber.MIMEApplicationJSON,
		`{"username":"alice","password":"Passw0rd!","email":"a@x.com"}`, nil)
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	access, refresh := decodeTokens(t, resp)
	require.NotEmpty(t, access)
	require.NotEmpty(t, refresh)

	aliceID, err := fixture.tokens.SubjectOf(access)
	require.NoError(t, err)

	resp = fixture.do(t, http.MethodPost, "/auth/login", fiber.MIMEApplicationJSON,
		`{"username":"alice","password":"Passw0rd!"}`, nil)
	require.Equal(t, http.StatusAccepted, resp.StatusCode)
	access, refresh = decodeTokens(t, resp)

	// Refresh with the refresh token produces a fresh pair for the same subject.
	resp = fixture.do(t, http.MethodPost, "/auth/refresh", fiber.MIMETextPlain, refresh, nil)
	require.Equal(t, http.StatusAccepted, resp.StatusCode)
	newAccess, newRefresh := decodeTokens(t, resp)
	require.NotEmpty(t, newRefresh)

	subject, err := fixture.tokens.SubjectOf(newAccess)
	require.NoError(t, err)
	assert.Equal(t, aliceID, subject)

	// Refresh with the access token is a bad request.
	resp = fixture.do(t, http.MethodPost, "/auth/refresh", fiber.MIMETextPlain, access, nil)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestRefresh_BlankBody(t *testing.T) {
	fixture := newAPIFixture(t)

	resp := fixture.do(t, http.MethodPost, "/auth/refresh", fiber.MIMETextPlain, "  ", nil)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestLogin_WrongPassword(t *testing.T) {
	fixture := newAPIFixture(t)
	fixture.do(t, http.MethodPost, "/auth/register", fiber.MIMEApplicationJSON,
		`{"username":"alice","password":"Passw0rd!","email":"a@x.com"}`, nil)

	resp := fixture.do(t, http.MethodPost, "/auth/login", fiber.MIMEApplicationJSON,
		`{"username":"alice","password":"nope"}`, nil)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
}

func TestDisabledAccountFlow(t *testing.T) {
	fixture := newAPIFixture(t)

	resp := fixture.do(t, http.MethodPost, "/auth/register", fiber.MIMEApplicationJSON,
		`{"username":"alice","password":"Passw0rd!","email":"a@x.com"}`, nil)
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	access, _ := decodeTokens(t, resp)

	aliceID, err := fixture.tokens.SubjectOf(access)
	require.NoError(t, err)

	// Disable the account behind alice's back.
	user, err := fixture.stores.GetByID(context.Background(), aliceID)
	require.NoError(t, err)
	user.Enabled = false
	require.NoError(t, fixture.stores.Update(context.Background(), user))

	// Correct credentials still never yield tokens.
	resp = fixture.do(t, http.MethodPost, "/auth/login", fiber.MIMEApplicationJSON,
		`{"username":"alice","password":"Passw0rd!"}`, nil)
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)

	// The still-valid access token is rejected at the disabled-account
	// check, not silently passed through as unauthenticated.
	resp = fixture.do(t, http.MethodGet, "/user", "", "", map[string]string{
		"Authorization": "Bearer " + access,
	})
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	assert.Contains(t, string(body), "ACCOUNT_DISABLED")
}

func TestProtectedRoutes(t *testing.T) {
	fixture := newAPIFixture(t)

	resp := fixture.do(t, http.MethodPost, "/auth/register", fiber.MIMEApplicationJSON,
		`{"username":"alice","password":"Passw0rd!","email":"a@x.com"}`, nil)
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	access, _ := decodeTokens(t, resp)

	t.Run("no header is denied on gated route", func(t *testing.T) {
		resp := fixture.do(t, http.MethodGet, "/user", "", "", nil)
		assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	})

	t.Run("malformed header is denied on gated route", func(t *testing.T) {
		resp := fixture.do(t, http.MethodGet, "/user", "", "", map[string]string{
			"Authorization": "Bearer not-a-token",
		})
		assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	})

	t.Run("public route ignores missing credentials", func(t *testing.T) {
		resp := fixture.do(t, http.MethodGet, "/health/live", "", "", nil)
		assert.Equal(t, http.StatusOK, resp.StatusCode)
	})

	t.Run("bearer token reaches gated route", func(t *testing.T) {
		resp := fixture.do(t, http.MethodGet, "/user", "", "", map[string]string{
			"Authorization": "Bearer " + access,
		})
		require.Equal(t, http.StatusOK, resp.StatusCode)
		body, err := io.ReadAll(resp.Body)
		require.NoError(t, err)
		assert.Contains(t, string(body), `"username":"alice"`)
	})

	t.Run("lookup endpoints", func(t *testing.T) {
		headers := map[string]string{"Authorization": "Bearer " + access}

		resp := fixture.do(t, http.MethodGet, "/user/username/alice", "", "", headers)
		assert.Equal(t, http.StatusOK, resp.StatusCode)

		resp = fixture.do(t, http.MethodGet, "/user/email/a@x.com", "", "", headers)
		assert.Equal(t, http.StatusOK, resp.StatusCode)

		resp = fixture.do(t, http.MethodGet, "/user/username/nobody", "", "", headers)
		assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	})
}

func TestUpdateReissuesTokens(t *testing.T) {
	fixture := newAPIFixture(t)

	resp := fixture.do(t, http.MethodPost, "/auth/register", fiber.MIMEApplicationJSON,
		`{"username":"alice","password":"Passw0rd!","email":"a@x.com"}`, nil)
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	access, _ := decodeTokens(t, resp)

	resp = fixture.do(t, http.MethodPut, "/user", fiber.MIMEApplicationJSON,
		`{"email":"new@x.com"}`, map[string]string{"Authorization": "Bearer " + access})
	require.Equal(t, http.StatusAccepted, resp.StatusCode)
	newAccess, newRefresh := decodeTokens(t, resp)
	assert.True(t, fixture.tokens.Validate(newAccess))
	assert.True(t, fixture.tokens.IsRefreshToken(newRefresh))

	// Old password still works; only the email changed.
	resp = fixture.do(t, http.MethodPost, "/auth/login", fiber.MIMEApplicationJSON,
		`{"username":"alice","password":"Passw0rd!"}`, nil)
	assert.Equal(t, http.StatusAccepted, resp.StatusCode)
}

func TestDeleteAccount(t *testing.T) {
	fixture := newAPIFixture(t)

	resp := fixture.do(t, http.MethodPost, "/auth/register", fiber.MIMEApplicationJSON,
		`{"username":"alice","password":"Passw0rd!","email":"a@x.com"}`, nil)
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	access, _ := decodeTokens(t, resp)

	resp = fixture.do(t, http.MethodPost, "/user/delete", "", "", map[string]string{
		"Authorization": "Bearer " + access,
	})
	require.Equal(t, http.StatusNoContent, resp.StatusCode)

	// The deleted user's still-valid token now degrades to unauthenticated.
	resp = fixture.do(t, http.MethodGet, "/user", "", "", map[string]string{
		"Authorization": "Bearer " + access,
	})
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
}
