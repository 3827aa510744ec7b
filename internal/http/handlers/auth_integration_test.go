package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/go-chi/chi/v5"
	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hongminglow/tripdesk/internal/apperr"
	"github.com/hongminglow/tripdesk/internal/auth"
	"github.com/hongminglow/tripdesk/internal/logger"
	"github.com/hongminglow/tripdesk/internal/middleware"
	"github.com/hongminglow/tripdesk/internal/models"
	"github.com/hongminglow/tripdesk/internal/models/dto"
	"github.com/hongminglow/tripdesk/internal/notify"
	"github.com/hongminglow/tripdesk/internal/service"
	"github.com/hongminglow/tripdesk/internal/session"
	"github.com/hongminglow/tripdesk/internal/storage"
	"github.com/hongminglow/tripdesk/internal/storage/memory"
	"github.com/hongminglow/tripdesk/internal/storage/postgres"
)

const password = "password123"

type apiResponse struct {
	Code    int             `json:"code"`
	Message string          `json:"message"`
	Error   string          `json:"error"`
	Data    json.RawMessage `json:"data"`
}

type captureSender struct {
	mu    sync.Mutex
	links map[string]string
}

func (c *captureSender) SendVerificationEmail(_ context.Context, to, token string, _ notify.Context) error {
	c.put("verify:"+to, token)
	return nil
}

func (c *captureSender) SendPasswordResetEmail(_ context.Context, to, token string, _ notify.Context) error {
	c.put("reset:"+to, token)
	return nil
}

func (c *captureSender) put(key, token string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.links[key] = token
}

func (c *captureSender) get(key string) string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.links[key]
}

type testAPI struct {
	url    string
	redis  *miniredis.Miniredis
	sender *captureSender
}

func newTestAPI(t *testing.T, store storage.IdentityStore, limiter *middleware.RateLimiter) *testAPI {
	t.Helper()
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })
	sessions := session.NewRegistry(rdb)

	tokens, err := auth.NewTokenManager(auth.TokenConfig{
		AccessSecret:  "access-secret-for-tests",
		RefreshSecret: "refresh-secret-for-tests",
		AccessTTL:     "15m",
		RefreshTTL:    "7d",
		Issuer:        "tripdesk",
	})
	require.NoError(t, err)

	sender := &captureSender{links: map[string]string{}}
	log := logger.Nop()
	svc, err := service.NewAuthService(service.Deps{
		Store:    store,
		Sessions: sessions,
		Tokens:   tokens,
		Notifier: sender,
		Logger:   log,
		Options:  service.Options{StrictResetEmail: true},
	})
	require.NoError(t, err)

	r := chi.NewRouter()
	r.Use(middleware.RequestID, middleware.Logging(log), middleware.Recover)
	NewHealthHandler(time.Now(), map[string]Pinger{"redis": sessions}).Routes(r)
	NewAuthHandler(svc, tokens, store, limiter, log).Routes(r)
	NewUserHandler(svc, tokens, store, log).Routes(r)

	ts := httptest.NewServer(r)
	t.Cleanup(ts.Close)
	return &testAPI{url: ts.URL, redis: mr, sender: sender}
}

func (a *testAPI) call(t *testing.T, method, path, token string, body any) apiResponse {
	t.Helper()
	var payload bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&payload).Encode(body))
	}
	req, err := http.NewRequest(method, a.url+path, &payload)
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	var out apiResponse
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&out))
	require.Equal(t, resp.StatusCode, out.Code)
	return out
}

func (a *testAPI) register(t *testing.T, email, role, tenantID string) models.User {
	t.Helper()
	res := a.call(t, http.MethodPost, "/api/auth/register", "", dto.RegisterRequest{
		Email:     email,
		Password:  password,
		FirstName: "Test",
		LastName:  "User",
		Role:      role,
		TenantID:  tenantID,
	})
	require.Equal(t, http.StatusCreated, res.Code, res.Message)
	var user models.User
	require.NoError(t, json.Unmarshal(res.Data, &user))
	return user
}

func (a *testAPI) login(t *testing.T, email, pw, tenantID string) (dto.LoginResponse, apiResponse) {
	t.Helper()
	res := a.call(t, http.MethodPost, "/api/auth/login", "", dto.LoginRequest{Email: email, Password: pw, TenantID: tenantID})
	var out dto.LoginResponse
	if res.Code == http.StatusOK {
		require.NoError(t, json.Unmarshal(res.Data, &out))
	}
	return out, res
}

func TestAuthFlow(t *testing.T) {
	store := memory.NewStore()
	tenant := store.PutTenant(models.Tenant{ID: "tenant-a", Name: "Acme Travel", Status: models.StatusActive})
	api := newTestAPI(t, store, nil)

	user := api.register(t, "agent@example.com", "agent", tenant.ID)
	assert.False(t, user.EmailVerified)
	assert.NotContains(t, string(mustJSON(t, user)), "password")

	dup := api.call(t, http.MethodPost, "/api/auth/register", "", dto.RegisterRequest{
		Email: "agent@example.com", Password: password, FirstName: "A", LastName: "B", Role: "agent", TenantID: tenant.ID,
	})
	assert.Equal(t, http.StatusConflict, dup.Code)
	assert.Equal(t, apperr.CodeUserExists, dup.Error)

	verify := api.call(t, http.MethodGet, "/api/auth/verify-email/"+api.sender.get("verify:agent@example.com"), "", nil)
	assert.Equal(t, http.StatusOK, verify.Code)

	creds, res := api.login(t, "agent@example.com", password, tenant.ID)
	require.Equal(t, http.StatusOK, res.Code, res.Message)
	assert.Equal(t, int64(900), creds.ExpiresIn)
	assert.True(t, creds.User.EmailVerified)

	me := api.call(t, http.MethodGet, "/api/auth/me", creds.AccessToken, nil)
	require.Equal(t, http.StatusOK, me.Code)
	assert.Contains(t, string(me.Data), user.ID)

	perms := api.call(t, http.MethodGet, "/api/auth/permissions", creds.AccessToken, nil)
	var pr dto.PermissionsResponse
	require.NoError(t, json.Unmarshal(perms.Data, &pr))
	assert.Equal(t, models.RoleAgent, pr.Role)
	assert.Equal(t, 3, pr.Level)
	assert.Contains(t, pr.Permissions, "bookings:create")

	var anon, known dto.SessionResponse
	require.NoError(t, json.Unmarshal(api.call(t, http.MethodGet, "/api/auth/session", "", nil).Data, &anon))
	require.NoError(t, json.Unmarshal(api.call(t, http.MethodGet, "/api/auth/session", creds.AccessToken, nil).Data, &known))
	assert.False(t, anon.Authenticated)
	assert.True(t, known.Authenticated)
	require.NotNil(t, known.User)
	assert.Equal(t, user.ID, known.User.ID)

	refreshed := api.call(t, http.MethodPost, "/api/auth/refresh-token", "", dto.RefreshRequest{RefreshToken: creds.RefreshToken})
	require.Equal(t, http.StatusOK, refreshed.Code)
	var rr dto.RefreshResponse
	require.NoError(t, json.Unmarshal(refreshed.Data, &rr))
	assert.Equal(t, creds.RefreshToken, rr.RefreshToken)

	unauth := api.call(t, http.MethodPost, "/api/auth/logout", "", dto.LogoutRequest{RefreshToken: creds.RefreshToken})
	assert.Equal(t, http.StatusUnauthorized, unauth.Code)
	assert.Equal(t, apperr.CodeNoToken, unauth.Error)

	out := api.call(t, http.MethodPost, "/api/auth/logout", rr.AccessToken, dto.LogoutRequest{RefreshToken: creds.RefreshToken})
	assert.Equal(t, http.StatusOK, out.Code)

	revoked := api.call(t, http.MethodPost, "/api/auth/refresh-token", "", dto.RefreshRequest{RefreshToken: creds.RefreshToken})
	assert.Equal(t, http.StatusUnauthorized, revoked.Code)
	assert.Equal(t, apperr.CodeTokenRevoked, revoked.Error)
}

func TestPasswordResetFlow(t *testing.T) {
	store := memory.NewStore()
	tenant := store.PutTenant(models.Tenant{ID: "tenant-a", Name: "Acme Travel", Status: models.StatusActive})
	api := newTestAPI(t, store, nil)
	api.register(t, "agent@example.com", "agent", tenant.ID)
	creds, _ := api.login(t, "agent@example.com", password, tenant.ID)

	known := api.call(t, http.MethodPost, "/api/auth/forgot-password", "", dto.ForgotPasswordRequest{Email: "agent@example.com", TenantID: tenant.ID})
	unknown := api.call(t, http.MethodPost, "/api/auth/forgot-password", "", dto.ForgotPasswordRequest{Email: "ghost@example.com", TenantID: tenant.ID})
	assert.Equal(t, known, unknown)

	weak := api.call(t, http.MethodPost, "/api/auth/reset-password", "", dto.ResetPasswordRequest{Token: "whatever", Password: "short"})
	assert.Equal(t, http.StatusBadRequest, weak.Code)
	assert.Equal(t, apperr.CodeWeakPassword, weak.Error)

	token := api.sender.get("reset:agent@example.com")
	require.NotEmpty(t, token)
	reset := api.call(t, http.MethodPost, "/api/auth/reset-password", "", dto.ResetPasswordRequest{Token: token, Password: "brand-new-password"})
	require.Equal(t, http.StatusOK, reset.Code, reset.Message)

	reused := api.call(t, http.MethodPost, "/api/auth/reset-password", "", dto.ResetPasswordRequest{Token: token, Password: "brand-new-password"})
	assert.Equal(t, http.StatusNotFound, reused.Code)
	assert.Equal(t, apperr.CodeInvalidResetToken, reused.Error)

	revoked := api.call(t, http.MethodPost, "/api/auth/refresh-token", "", dto.RefreshRequest{RefreshToken: creds.RefreshToken})
	assert.Equal(t, apperr.CodeTokenRevoked, revoked.Error)

	_, wrong := api.login(t, "agent@example.com", password, tenant.ID)
	_, ghost := api.login(t, "ghost@example.com", password, tenant.ID)
	assert.Equal(t, http.StatusUnauthorized, wrong.Code)
	assert.Equal(t, wrong, ghost)

	_, ok := api.login(t, "agent@example.com", "brand-new-password", tenant.ID)
	assert.Equal(t, http.StatusOK, ok.Code)
}

func TestUserAdministration(t *testing.T) {
	store := memory.NewStore()
	tenant := store.PutTenant(models.Tenant{ID: "tenant-a", Name: "Acme Travel", Status: models.StatusActive})
	api := newTestAPI(t, store, nil)
	api.register(t, "admin@example.com", "tenant_admin", tenant.ID)
	agent := api.register(t, "agent@example.com", "agent", tenant.ID)
	other := api.register(t, "other@example.com", "customer", tenant.ID)
	admin, _ := api.login(t, "admin@example.com", password, tenant.ID)
	agentSession, _ := api.login(t, "agent@example.com", password, tenant.ID)

	denied := api.call(t, http.MethodPatch, "/api/users/"+other.ID+"/status", agentSession.AccessToken, dto.UpdateStatusRequest{Status: "suspended"})
	assert.Equal(t, http.StatusForbidden, denied.Code)
	assert.Equal(t, apperr.CodePermissionDenied, denied.Error)

	notOwner := api.call(t, http.MethodPost, "/api/users/"+other.ID+"/sessions/revoke", agentSession.AccessToken, nil)
	assert.Equal(t, http.StatusForbidden, notOwner.Code)
	assert.Equal(t, apperr.CodeOwnershipRequired, notOwner.Error)

	own := api.call(t, http.MethodPost, "/api/users/"+agent.ID+"/sessions/revoke", agentSession.AccessToken, nil)
	require.Equal(t, http.StatusOK, own.Code, own.Message)
	var revoked dto.RevokeSessionsResponse
	require.NoError(t, json.Unmarshal(own.Data, &revoked))
	assert.Equal(t, 1, revoked.Revoked)

	invalid := api.call(t, http.MethodPatch, "/api/users/"+agent.ID+"/status", admin.AccessToken, dto.UpdateStatusRequest{Status: "archived"})
	assert.Equal(t, apperr.CodeInvalidStatus, invalid.Error)

	suspended := api.call(t, http.MethodPatch, "/api/users/"+agent.ID+"/status", admin.AccessToken, dto.UpdateStatusRequest{Status: "suspended"})
	require.Equal(t, http.StatusOK, suspended.Code, suspended.Message)

	me := api.call(t, http.MethodGet, "/api/auth/me", agentSession.AccessToken, nil)
	assert.Equal(t, http.StatusUnauthorized, me.Code)
	assert.Equal(t, apperr.CodeUserInactive, me.Error)

	_, login := api.login(t, "agent@example.com", password, tenant.ID)
	assert.Equal(t, apperr.CodeAccountInactive, login.Error)
}

func TestCredentialEndpointsAreRateLimited(t *testing.T) {
	store := memory.NewStore()
	tenant := store.PutTenant(models.Tenant{ID: "tenant-a", Name: "Acme Travel", Status: models.StatusActive})
	api := newTestAPI(t, store, middleware.NewRateLimiter(1, 2))

	_, first := api.login(t, "ghost@example.com", password, tenant.ID)
	_, second := api.login(t, "ghost@example.com", password, tenant.ID)
	_, third := api.login(t, "ghost@example.com", password, tenant.ID)
	assert.Equal(t, http.StatusUnauthorized, first.Code)
	assert.Equal(t, http.StatusUnauthorized, second.Code)
	assert.Equal(t, http.StatusTooManyRequests, third.Code)
	assert.Equal(t, apperr.CodeRateLimited, third.Error)

	refresh := api.call(t, http.MethodPost, "/api/auth/refresh-token", "", dto.RefreshRequest{RefreshToken: "x"})
	assert.Equal(t, http.StatusUnauthorized, refresh.Code)
}

func TestHealthAndReadiness(t *testing.T) {
	api := newTestAPI(t, memory.NewStore(), nil)

	assert.Equal(t, http.StatusOK, api.call(t, http.MethodGet, "/health", "", nil).Code)
	assert.Equal(t, http.StatusOK, api.call(t, http.MethodGet, "/ready", "", nil).Code)

	api.redis.Close()
	ready := api.call(t, http.MethodGet, "/ready", "", nil)
	assert.Equal(t, http.StatusServiceUnavailable, ready.Code)
	assert.Contains(t, string(ready.Data), "unavailable")
}

// TestAuthIntegration exercises register and login against a live Postgres database.
func TestAuthIntegration(t *testing.T) {
	if os.Getenv("RUN_AUTH_INTEGRATION") != "true" {
		t.Skip("set RUN_AUTH_INTEGRATION=true to run this integration test")
	}

	loadDotEnv()
	dbURL := os.Getenv("DATABASE_URL")
	if dbURL == "" {
		t.Fatal("DATABASE_URL is required")
	}

	ctx := context.Background()
	store, err := postgres.NewStore(ctx, dbURL)
	require.NoError(t, err)
	defer store.Close()

	tenant, err := store.CreateTenant(ctx, models.Tenant{Name: fmt.Sprintf("apitest-%d", time.Now().UnixNano())})
	require.NoError(t, err)

	api := newTestAPI(t, store, nil)
	email := fmt.Sprintf("apitest_%d@example.com", time.Now().UnixNano())
	user := api.register(t, email, "operator", tenant.ID)

	creds, res := api.login(t, email, password, tenant.ID)
	require.Equal(t, http.StatusOK, res.Code, res.Message)
	assert.Equal(t, user.ID, creds.User.ID)
	assert.NotEmpty(t, creds.AccessToken)

	t.Logf("created user %s (id=%s) and logged in via /api/auth/login", email, user.ID)
}

func mustJSON(t *testing.T, v any) []byte {
	t.Helper()
	b, err := json.Marshal(v)
	require.NoError(t, err)
	return b
}

func loadDotEnv() {
	for _, path := range []string{".env", "../.env", "../../.env", "../../../.env"} {
		if err := godotenv.Load(path); err == nil {
			return
		}
	}
}
