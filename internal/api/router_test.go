package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"claimboard/internal/api/handlers"
	"claimboard/internal/api/middleware"
	"claimboard/internal/auth"
	"claimboard/internal/config"
	"claimboard/internal/models"
	"claimboard/internal/repository"
	"claimboard/internal/service"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type envelope struct {
	StatusCode int             `json:"statusCode"`
	Data       json.RawMessage `json:"data"`
	Message    string          `json:"message"`
	Success    bool            `json:"success"`
}

type testServer struct {
	app *fiber.App
	now *time.Time
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	now := time.Now()
	tokens := auth.NewTokenService(config.AuthConfig{
		AccessSecret:  "access-secret",
		AccessTTL:     24 * time.Hour,
		RefreshSecret: "refresh-secret",
		RefreshTTL:    240 * time.Hour,
	}).WithClock(func() time.Time { return now })

	repo := repository.NewMemoryRepository()
	authService := service.NewAuthService(repo, tokens)
	leaderboard := service.NewLeaderboardService(repo, repo, nil)
	health := service.NewHealthService(map[string]service.Pinger{"database": repo})

	app := NewApp(Dependencies{
		Auth:          handlers.NewAuthHandler(authService, handlers.CookieOptions{Secure: true}),
		Leaderboard:   handlers.NewLeaderboardHandler(leaderboard, health),
		Authenticator: authService,
		CORSOrigin:    "http://localhost:5173",
	})
	return &testServer{app: app, now: &now}
}

func (s *testServer) do(t *testing.T, method, path string, body any, headers map[string]string) (*http.Response, envelope) {
	t.Helper()
	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(raw)
	}
	req := httptest.NewRequest(method, path, reader)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	for k, v := range headers {
		req.Header.Set(k, v)
	}

	resp, err := s.app.Test(req, -1)
	require.NoError(t, err)
	defer resp.Body.Close()

	var env envelope
	raw, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	if len(raw) > 0 {
		require.NoError(t, json.Unmarshal(raw, &env), string(raw))
	}
	return resp, env
}

func cookieValue(resp *http.Response, name string) *http.Cookie {
	for _, c := range resp.Cookies() {
		if c.Name == name {
			return c
		}
	}
	return nil
}

func withCookie(name, value string) map[string]string {
	return map[string]string{"Cookie": name + "=" + value}
}

func (s *testServer) login(t *testing.T) (access, refresh string) {
	t.Helper()
	resp, _ := s.do(t, http.MethodPost, "/register", map[string]string{
		"name": "alice", "email": "a@x.com", "password": "secret1",
	}, nil)
	require.Equal(t, http.StatusCreated, resp.StatusCode)

	resp, env := s.do(t, http.MethodPost, "/login", map[string]string{
		"email": "a@x.com", "password": "secret1",
	}, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode, env.Message)

	accessCookie := cookieValue(resp, middleware.AccessTokenCookie)
	refreshCookie := cookieValue(resp, handlers.RefreshTokenCookie)
	require.NotNil(t, accessCookie)
	require.NotNil(t, refreshCookie)
	return accessCookie.Value, refreshCookie.Value
}

func TestRegisterAndLogin(t *testing.T) {
	s := newTestServer(t)

	resp, env := s.do(t, http.MethodPost, "/register", map[string]string{
		"name": "alice", "email": "a@x.com", "password": "secret1",
	}, nil)
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	assert.True(t, env.Success)
	assert.Equal(t, 201, env.StatusCode)
	assert.NotContains(t, string(env.Data), "password")
	assert.NotContains(t, string(env.Data), "refreshToken")

	resp, env = s.do(t, http.MethodPost, "/register", map[string]string{
		"name": "alice", "email": "b@x.com", "password": "secret1",
	}, nil)
	assert.Equal(t, http.StatusConflict, resp.StatusCode)
	assert.False(t, env.Success)
	assert.Equal(t, 409, env.StatusCode)

	resp, env = s.do(t, http.MethodPost, "/register", map[string]string{"name": "bob"}, nil)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	assert.Equal(t, "All fields are required", env.Message)

	resp, env = s.do(t, http.MethodPost, "/login", map[string]string{
		"email": "a@x.com", "password": "secret1",
	}, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "User logged in successfully", env.Message)

	var data struct {
		LoggedInUser map[string]any `json:"loggedInUser"`
		AccessToken  string         `json:"accessToken"`
	}
	require.NoError(t, json.Unmarshal(env.Data, &data))
	assert.NotEmpty(t, data.AccessToken)
	assert.Equal(t, "alice", data.LoggedInUser["name"])
	assert.NotContains(t, data.LoggedInUser, "password")

	accessCookie := cookieValue(resp, middleware.AccessTokenCookie)
	require.NotNil(t, accessCookie)
	assert.Equal(t, 86400, accessCookie.MaxAge)
	assert.True(t, accessCookie.HttpOnly)
	assert.True(t, accessCookie.Secure)
	assert.Equal(t, http.SameSiteNoneMode, accessCookie.SameSite)

	refreshCookie := cookieValue(resp, handlers.RefreshTokenCookie)
	require.NotNil(t, refreshCookie)
	assert.Equal(t, 864000, refreshCookie.MaxAge)

	resp, env = s.do(t, http.MethodPost, "/login", map[string]string{
		"email": "a@x.com", "password": "nope",
	}, nil)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	assert.Equal(t, "Invalid user credentials", env.Message)

	resp, _ = s.do(t, http.MethodPost, "/login", map[string]string{
		"email": "ghost@x.com", "password": "secret1",
	}, nil)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestClaimFlow(t *testing.T) {
	s := newTestServer(t)
	access, _ := s.login(t)
	authed := withCookie(middleware.AccessTokenCookie, access)

	create := func(name string) models.LeaderboardEntry {
		resp, env := s.do(t, http.MethodPost, "/addUser", map[string]string{"name": name}, authed)
		require.Equal(t, http.StatusOK, resp.StatusCode, env.Message)
		var entry models.LeaderboardEntry
		require.NoError(t, json.Unmarshal(env.Data, &entry))
		assert.Equal(t, 0, entry.TotalPoints)
		return entry
	}
	first := create("Team A")
	create("Team B")

	resp, env := s.do(t, http.MethodPost, "/claimPoints/"+first.ID.String(), nil, authed)
	require.Equal(t, http.StatusOK, resp.StatusCode, env.Message)
	var result models.ClaimResult
	require.NoError(t, json.Unmarshal(env.Data, &result))
	assert.GreaterOrEqual(t, result.PointsAwarded, 1)
	assert.LessOrEqual(t, result.PointsAwarded, 10)
	assert.Equal(t, result.PointsAwarded, result.UpdatedUser.TotalPoints)

	resp, env = s.do(t, http.MethodGet, "/getAllUsers", nil, authed)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var ranked []models.LeaderboardEntry
	require.NoError(t, json.Unmarshal(env.Data, &ranked))
	require.Len(t, ranked, 2)
	assert.Equal(t, first.ID, ranked[0].ID)

	resp, env = s.do(t, http.MethodGet, "/getHistory/"+first.ID.String(), nil, authed)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var history []models.ClaimRecord
	require.NoError(t, json.Unmarshal(env.Data, &history))
	require.Len(t, history, 1)
	assert.Equal(t, result.PointsAwarded, history[0].Points)
	assert.Equal(t, first.ID, history[0].ClaimedFor)

	resp, env = s.do(t, http.MethodPost, "/claimPoints/not-a-uuid", nil, authed)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	assert.False(t, env.Success)

	missing := "00000000-0000-0000-0000-000000000001"
	resp, _ = s.do(t, http.MethodPost, "/claimPoints/"+missing, nil, authed)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)

	// the rejected claim left no record for the target or the claimant
	resp, env = s.do(t, http.MethodGet, "/getHistory/"+missing, nil, authed)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.JSONEq(t, "[]", string(env.Data))

	resp, env = s.do(t, http.MethodGet, "/getHistory/"+history[0].ClaimedBy.String(), nil, authed)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var byClaimant []models.ClaimRecord
	require.NoError(t, json.Unmarshal(env.Data, &byClaimant))
	assert.Len(t, byClaimant, 1)

	resp, _ = s.do(t, http.MethodGet, "/getHistory/not-a-uuid", nil, authed)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)

	resp, env = s.do(t, http.MethodPost, "/addUser", map[string]string{"name": ""}, authed)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	assert.Equal(t, 400, env.StatusCode)
}

func TestBearerHeader(t *testing.T) {
	s := newTestServer(t)
	access, _ := s.login(t)

	resp, _ := s.do(t, http.MethodGet, "/getAllUsers", nil, map[string]string{
		"Authorization": "Bearer " + access,
	})
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestAuthGate(t *testing.T) {
	s := newTestServer(t)
	access, _ := s.login(t)

	resp, env := s.do(t, http.MethodGet, "/getAllUsers", nil, nil)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	assert.Equal(t, "Unauthorized request. No token provided.", env.Message)
	assert.False(t, env.Success)

	resp, env = s.do(t, http.MethodGet, "/getAllUsers", nil, withCookie(middleware.AccessTokenCookie, "garbage"))
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	assert.Equal(t, "Invalid access token", env.Message)

	for _, path := range []string{"/addUser", "/claimPoints/x", "/logout"} {
		resp, _ = s.do(t, http.MethodPost, path, nil, nil)
		assert.Equal(t, http.StatusUnauthorized, resp.StatusCode, path)
	}

	*s.now = s.now.Add(25 * time.Hour)
	resp, _ = s.do(t, http.MethodGet, "/getAllUsers", nil, withCookie(middleware.AccessTokenCookie, access))
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
}

func TestRefreshAndLogout(t *testing.T) {
	s := newTestServer(t)
	access, refresh := s.login(t)

	resp, env := s.do(t, http.MethodPost, "/refresh_token", nil, withCookie(handlers.RefreshTokenCookie, refresh))
	require.Equal(t, http.StatusOK, resp.StatusCode, env.Message)
	assert.Equal(t, "Access token refreshed", env.Message)
	rotated := cookieValue(resp, handlers.RefreshTokenCookie)
	require.NotNil(t, rotated)
	assert.NotEqual(t, refresh, rotated.Value)

	// the old token was consumed
	resp, env = s.do(t, http.MethodPost, "/refresh_token", nil, withCookie(handlers.RefreshTokenCookie, refresh))
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	assert.Equal(t, "Refresh token is expired or used", env.Message)

	// body fallback
	resp, _ = s.do(t, http.MethodPost, "/refresh_token", map[string]string{"refreshToken": rotated.Value}, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	latest := cookieValue(resp, handlers.RefreshTokenCookie)
	require.NotNil(t, latest)

	resp, _ = s.do(t, http.MethodPost, "/refresh_token", nil, nil)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	resp, env = s.do(t, http.MethodPost, "/logout", nil, withCookie(middleware.AccessTokenCookie, access))
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "User logged out", env.Message)
	cleared := cookieValue(resp, middleware.AccessTokenCookie)
	require.NotNil(t, cleared)
	assert.Empty(t, cleared.Value)

	resp, _ = s.do(t, http.MethodPost, "/refresh_token", nil, withCookie(handlers.RefreshTokenCookie, latest.Value))
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
}

type downPinger struct{}

func (downPinger) Ping(context.Context) error {
	return errors.New("dial tcp 10.0.0.5:6379: connect: connection refused")
}

func TestHealthHidesBackendErrors(t *testing.T) {
	repo := repository.NewMemoryRepository()
	health := service.NewHealthService(map[string]service.Pinger{"database": repo, "redis": downPinger{}})
	authService := service.NewAuthService(repo, auth.NewTokenService(config.AuthConfig{
		AccessSecret: "a", AccessTTL: time.Hour, RefreshSecret: "r", RefreshTTL: time.Hour,
	}))
	s := &testServer{app: NewApp(Dependencies{
		Auth:          handlers.NewAuthHandler(authService, handlers.CookieOptions{}),
		Leaderboard:   handlers.NewLeaderboardHandler(service.NewLeaderboardService(repo, repo, nil), health),
		Authenticator: authService,
	})}

	resp, env := s.do(t, http.MethodGet, "/health", nil, nil)
	assert.Equal(t, http.StatusServiceUnavailable, resp.StatusCode)
	assert.Equal(t, "Service unavailable", env.Message)
	assert.False(t, env.Success)
}

func TestRegisterRejectsPasswordOverBcryptLimit(t *testing.T) {
	s := newTestServer(t)

	// 40 runes, 80 bytes
	resp, env := s.do(t, http.MethodPost, "/register", map[string]string{
		"name": "alice", "email": "a@x.com", "password": strings.Repeat("é", 40),
	}, nil)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	assert.Equal(t, "Password is too long", env.Message)

	resp, env = s.do(t, http.MethodPost, "/register", map[string]string{
		"name": "alice", "email": "a@x.com", "password": strings.Repeat("a", 73),
	}, nil)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	assert.Equal(t, "Password is too long", env.Message)

	resp, _ = s.do(t, http.MethodPost, "/register", map[string]string{
		"name": "alice", "email": "a@x.com", "password": strings.Repeat("é", 36),
	}, nil)
	assert.Equal(t, http.StatusCreated, resp.StatusCode)
}

func TestHealthAndUnknownRoute(t *testing.T) {
	s := newTestServer(t)

	resp, _ := s.do(t, http.MethodGet, "/health", nil, nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	resp, env := s.do(t, http.MethodGet, "/nope", nil, nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	assert.Equal(t, 404, env.StatusCode)
	assert.False(t, env.Success)
}
