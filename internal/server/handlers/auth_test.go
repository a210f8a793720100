package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/DrakonKapysta/web-beat-api/internal/models"
	"github.com/DrakonKapysta/web-beat-api/internal/server/httpx"
	"github.com/DrakonKapysta/web-beat-api/internal/server/jwt"
	"github.com/DrakonKapysta/web-beat-api/internal/server/middleware"
	"github.com/DrakonKapysta/web-beat-api/internal/server/session"
	"github.com/DrakonKapysta/web-beat-api/internal/server/storage"
	"github.com/DrakonKapysta/web-beat-api/internal/server/storage/sqlite"
	"github.com/DrakonKapysta/web-beat-api/internal/server/users"
	"github.com/DrakonKapysta/web-beat-api/pkg/api"
)

const (
	testAccessSecret  = "handlers-access-secret"
	testRefreshSecret = "handlers-refresh-secret"
)

func setupTestLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

type testEnv struct {
	store    *sqlite.Storage
	accounts *users.Service
	sessions *session.Manager
	handler  *AuthHandler
}

func setupTestEnv(t *testing.T) *testEnv {
	t.Helper()

	store, err := sqlite.New(context.Background(), ":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })

	logger := setupTestLogger()
	accounts := users.NewService(store, logger, nil)
	sessions := session.NewManager(store,
		jwt.NewSigner(testAccessSecret, 15*time.Minute),
		jwt.NewSigner(testRefreshSecret, 7*24*time.Hour),
		logger,
	)

	return &testEnv{
		store:    store,
		accounts: accounts,
		sessions: sessions,
		handler:  NewAuthHandler(logger, accounts, sessions, httpx.CookieConfig{}),
	}
}

func authBody(t *testing.T, login, password string) *bytes.Reader {
	t.Helper()
	body, err := json.Marshal(api.AuthRequest{Login: login, Password: password})
	require.NoError(t, err)
	return bytes.NewReader(body)
}

func cookieMap(resp *http.Response) map[string]*http.Cookie {
	out := map[string]*http.Cookie{}
	for _, c := range resp.Cookies() {
		out[c.Name] = c
	}
	return out
}

func withIdentity(req *http.Request, id *jwt.Payload) *http.Request {
	return req.WithContext(middleware.WithIdentity(req.Context(), id))
}

func TestAuthHandler_Register(t *testing.T) {
	tests := []struct {
		name           string
		login          string
		password       string
		rawBody        string
		expectedStatus int
		checkResponse  func(t *testing.T, body []byte)
	}{
		{
			name:           "successful registration",
			login:          "Listener@Example.com",
			password:       "123",
			expectedStatus: http.StatusCreated,
			checkResponse: func(t *testing.T, body []byte) {
				var resp api.RegisterResponse
				require.NoError(t, json.Unmarshal(body, &resp))
				assert.NotEmpty(t, resp.ID)
				assert.Equal(t, "listener@example.com", resp.Email)
				assert.NotContains(t, string(body), "password")
			},
		},
		{
			name:           "duplicate email",
			login:          "taken@example.com",
			password:       "secret",
			expectedStatus: http.StatusBadRequest,
			checkResponse: func(t *testing.T, body []byte) {
				var resp api.ErrorResponse
				require.NoError(t, json.Unmarshal(body, &resp))
				assert.Equal(t, "user already exists", resp.Message)
			},
		},
		{
			name:           "invalid email",
			login:          "not-an-email",
			password:       "secret",
			expectedStatus: http.StatusBadRequest,
		},
		{
			name:           "missing password",
			login:          "a@b.com",
			expectedStatus: http.StatusBadRequest,
		},
		{
			name:           "invalid JSON",
			rawBody:        "{invalid",
			expectedStatus: http.StatusBadRequest,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			env := setupTestEnv(t)
			_, err := env.accounts.Register(context.Background(), "taken@example.com", "secret")
			require.NoError(t, err)

			var body io.Reader = authBody(t, tt.login, tt.password)
			if tt.rawBody != "" {
				body = bytes.NewBufferString(tt.rawBody)
			}

			req := httptest.NewRequest(http.MethodPost, "/api/v1/auth/register", body)
			w := httptest.NewRecorder()

			env.handler.Register(w, req)

			assert.Equal(t, tt.expectedStatus, w.Code)
			assert.Equal(t, "application/json", w.Header().Get("Content-Type"))
			if tt.checkResponse != nil {
				tt.checkResponse(t, w.Body.Bytes())
			}
		})
	}
}

func TestAuthHandler_Login(t *testing.T) {
	tests := []struct {
		name           string
		login          string
		password       string
		expectedStatus int
		expectedMsg    string
	}{
		{name: "success", login: "a@b.com", password: "123", expectedStatus: http.StatusOK},
		{name: "email is case insensitive", login: "A@B.com", password: "123", expectedStatus: http.StatusOK},
		{name: "unknown login", login: "nobody@b.com", password: "123", expectedStatus: http.StatusNotFound, expectedMsg: "user not found"},
		{name: "wrong password", login: "a@b.com", password: "1234", expectedStatus: http.StatusUnauthorized, expectedMsg: "wrong password"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			env := setupTestEnv(t)
			user, err := env.accounts.Register(context.Background(), "a@b.com", "123")
			require.NoError(t, err)

			req := httptest.NewRequest(http.MethodPost, "/api/v1/auth/login", authBody(t, tt.login, tt.password))
			w := httptest.NewRecorder()

			env.handler.Login(w, req)

			resp := w.Result()
			defer func() { assert.NoError(t, resp.Body.Close()) }()

			require.Equal(t, tt.expectedStatus, resp.StatusCode)

			if tt.expectedStatus != http.StatusOK {
				var errResp api.ErrorResponse
				require.NoError(t, json.NewDecoder(resp.Body).Decode(&errResp))
				assert.Equal(t, tt.expectedMsg, errResp.Message)
				assert.Empty(t, resp.Cookies())
				return
			}

			var loginResp api.LoginResponse
			require.NoError(t, json.NewDecoder(resp.Body).Decode(&loginResp))
			assert.Equal(t, user.ID, loginResp.User.ID)
			assert.Equal(t, "a@b.com", loginResp.User.Email)

			cookies := cookieMap(resp)
			require.Contains(t, cookies, api.AccessTokenCookie)
			require.Contains(t, cookies, api.RefreshTokenCookie)
			assert.Equal(t, loginResp.AccessToken, cookies[api.AccessTokenCookie].Value)
			assert.Equal(t, loginResp.RefreshToken, cookies[api.RefreshTokenCookie].Value)
			assert.Equal(t, 900, cookies[api.AccessTokenCookie].MaxAge)
			assert.Equal(t, 604800, cookies[api.RefreshTokenCookie].MaxAge)
			assert.True(t, cookies[api.AccessTokenCookie].HttpOnly)

			payload, err := jwt.Verify(loginResp.AccessToken, testAccessSecret)
			require.NoError(t, err)
			assert.Equal(t, []string{"user"}, payload.Roles)

			rt, err := env.store.GetRefreshToken(context.Background(), loginResp.RefreshToken)
			require.NoError(t, err)
			assert.Equal(t, user.ID, rt.UserID)
		})
	}
}

func TestAuthHandler_Validate(t *testing.T) {
	env := setupTestEnv(t)
	id := &jwt.Payload{ID: "u1", Email: "a@b.com", Roles: []string{"user"}}

	w := httptest.NewRecorder()
	env.handler.Validate(w, withIdentity(httptest.NewRequest(http.MethodGet, "/api/v1/auth/validate", nil), id))

	require.Equal(t, http.StatusOK, w.Code)
	var resp api.Identity
	require.NoError(t, json.NewDecoder(w.Body).Decode(&resp))
	assert.Equal(t, api.Identity{ID: "u1", Email: "a@b.com", Roles: []string{"user"}}, resp)

	// без guard-а личности нет
	w = httptest.NewRecorder()
	env.handler.Validate(w, httptest.NewRequest(http.MethodGet, "/api/v1/auth/validate", nil))
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestAuthHandler_Refresh(t *testing.T) {
	env := setupTestEnv(t)
	ctx := context.Background()
	user, err := env.accounts.Register(ctx, "a@b.com", "123")
	require.NoError(t, err)

	id := &jwt.Payload{ID: user.ID, Email: user.Email, Roles: user.Roles}
	first, err := env.sessions.Login(ctx, *id)
	require.NoError(t, err)
	before, err := env.store.GetRefreshToken(ctx, first.RefreshToken)
	require.NoError(t, err)

	w := httptest.NewRecorder()
	env.handler.Refresh(w, withIdentity(httptest.NewRequest(http.MethodGet, "/api/v1/auth/refresh", nil), id))

	resp := w.Result()
	defer func() { assert.NoError(t, resp.Body.Close()) }()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var tokens api.TokenResponse
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&tokens))
	assert.NotEqual(t, first.RefreshToken, tokens.RefreshToken)

	cookies := cookieMap(resp)
	assert.Equal(t, tokens.AccessToken, cookies[api.AccessTokenCookie].Value)
	assert.Equal(t, tokens.RefreshToken, cookies[api.RefreshTokenCookie].Value)

	after, err := env.store.GetRefreshToken(ctx, tokens.RefreshToken)
	require.NoError(t, err)
	assert.Equal(t, before.ID, after.ID, "rotation keeps the record")

	_, err = env.store.GetRefreshToken(ctx, first.RefreshToken)
	assert.Error(t, err)
}

func TestAuthHandler_Logout(t *testing.T) {
	tests := []struct {
		name  string
		query string
	}{
		{name: "all sessions"},
		{name: "current session", query: "?scope=session"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			env := setupTestEnv(t)
			ctx := context.Background()
			user, err := env.accounts.Register(ctx, "a@b.com", "123")
			require.NoError(t, err)

			id := &jwt.Payload{ID: user.ID, Email: user.Email, Roles: user.Roles}
			pair, err := env.sessions.Login(ctx, *id)
			require.NoError(t, err)

			req := httptest.NewRequest(http.MethodPost, "/api/v1/auth/logout"+tt.query, nil)
			req.AddCookie(&http.Cookie{Name: api.RefreshTokenCookie, Value: pair.RefreshToken})
			w := httptest.NewRecorder()

			env.handler.Logout(w, withIdentity(req, id))

			resp := w.Result()
			defer func() { assert.NoError(t, resp.Body.Close()) }()
			assert.Equal(t, http.StatusNoContent, resp.StatusCode)

			cookies := cookieMap(resp)
			require.Contains(t, cookies, api.AccessTokenCookie)
			require.Contains(t, cookies, api.RefreshTokenCookie)
			assert.Equal(t, -1, cookies[api.AccessTokenCookie].MaxAge)
			assert.Equal(t, -1, cookies[api.RefreshTokenCookie].MaxAge)

			_, err = env.store.GetRefreshToken(ctx, pair.RefreshToken)
			assert.Error(t, err, "refresh record must be gone")
		})
	}
}

func TestAuthHandler_LogoutSessionScope(t *testing.T) {
	tests := []struct {
		// request собирает запрос по паре текущего входа и паре другого пользователя
		request    func(current, other *session.TokenPair) *http.Request
		name       string
		wantStatus int
		wantGone   bool
	}{
		{
			name: "current refresh cookie",
			request: func(current, _ *session.TokenPair) *http.Request {
				req := httptest.NewRequest(http.MethodPost, "/api/v1/auth/logout?scope=session", nil)
				req.AddCookie(&http.Cookie{Name: api.RefreshTokenCookie, Value: current.RefreshToken})
				return req
			},
			wantStatus: http.StatusNoContent,
			wantGone:   true,
		},
		{
			name: "bearer only without refresh cookie",
			request: func(_, _ *session.TokenPair) *http.Request {
				return httptest.NewRequest(http.MethodPost, "/api/v1/auth/logout?scope=session", nil)
			},
			wantStatus: http.StatusBadRequest,
		},
		{
			name: "superseded refresh cookie",
			request: func(_, _ *session.TokenPair) *http.Request {
				req := httptest.NewRequest(http.MethodPost, "/api/v1/auth/logout?scope=session", nil)
				req.AddCookie(&http.Cookie{Name: api.RefreshTokenCookie, Value: "stale"})
				return req
			},
			wantStatus: http.StatusUnauthorized,
		},
		{
			name: "refresh cookie of another user",
			request: func(_, other *session.TokenPair) *http.Request {
				req := httptest.NewRequest(http.MethodPost, "/api/v1/auth/logout?scope=session", nil)
				req.AddCookie(&http.Cookie{Name: api.RefreshTokenCookie, Value: other.RefreshToken})
				return req
			},
			wantStatus: http.StatusUnauthorized,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			env := setupTestEnv(t)
			ctx := context.Background()

			user, err := env.accounts.Register(ctx, "a@b.com", "123")
			require.NoError(t, err)
			otherUser, err := env.accounts.Register(ctx, "c@d.com", "123")
			require.NoError(t, err)

			id := &jwt.Payload{ID: user.ID, Email: user.Email, Roles: user.Roles}
			current, err := env.sessions.Login(ctx, *id)
			require.NoError(t, err)
			other, err := env.sessions.Login(ctx, jwt.Payload{ID: otherUser.ID, Email: otherUser.Email, Roles: otherUser.Roles})
			require.NoError(t, err)

			w := httptest.NewRecorder()
			env.handler.Logout(w, withIdentity(tt.request(current, other), id))
			assert.Equal(t, tt.wantStatus, w.Code)

			_, err = env.store.GetRefreshToken(ctx, current.RefreshToken)
			if tt.wantGone {
				assert.ErrorIs(t, err, storage.ErrTokenNotFound)
			} else {
				assert.NoError(t, err, "session must stay on record when logout is refused")
			}

			_, err = env.store.GetRefreshToken(ctx, other.RefreshToken)
			assert.NoError(t, err, "other user's session is untouched")
		})
	}
}

func TestAuthHandler_LogoutSessionScope_GuardRotated(t *testing.T) {
	env := setupTestEnv(t)
	ctx := context.Background()
	user, err := env.accounts.Register(ctx, "a@b.com", "123")
	require.NoError(t, err)

	id := &jwt.Payload{ID: user.ID, Email: user.Email, Roles: user.Roles}
	first, err := env.sessions.Login(ctx, *id)
	require.NoError(t, err)
	// так guard ротирует пару при истёкшем access token
	rotated, err := env.sessions.RefreshTokens(ctx, *id)
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodPost, "/api/v1/auth/logout?scope=session", nil)
	req.AddCookie(&http.Cookie{Name: api.RefreshTokenCookie, Value: first.RefreshToken})
	req = req.WithContext(middleware.WithRotatedPair(middleware.WithIdentity(req.Context(), id), rotated))

	w := httptest.NewRecorder()
	env.handler.Logout(w, req)
	require.Equal(t, http.StatusNoContent, w.Code)

	_, err = env.store.GetRefreshToken(ctx, rotated.RefreshToken)
	assert.ErrorIs(t, err, storage.ErrTokenNotFound, "rotated session must be revoked")
}

func TestAuthHandler_Refresh_ReusesGuardRotation(t *testing.T) {
	env := setupTestEnv(t)
	ctx := context.Background()
	user, err := env.accounts.Register(ctx, "a@b.com", "123")
	require.NoError(t, err)

	id := &jwt.Payload{ID: user.ID, Email: user.Email, Roles: user.Roles}
	_, err = env.sessions.Login(ctx, *id)
	require.NoError(t, err)
	rotated, err := env.sessions.RefreshTokens(ctx, *id)
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/auth/refresh", nil)
	req = req.WithContext(middleware.WithRotatedPair(middleware.WithIdentity(req.Context(), id), rotated))

	w := httptest.NewRecorder()
	env.handler.Refresh(w, req)

	resp := w.Result()
	defer func() { assert.NoError(t, resp.Body.Close()) }()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var tokens api.TokenResponse
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&tokens))
	assert.Equal(t, rotated.RefreshToken, tokens.RefreshToken)
	assert.Equal(t, rotated.AccessToken, tokens.AccessToken)
	assert.Empty(t, resp.Cookies(), "cookies were already set by the guard")

	_, err = env.store.GetRefreshToken(ctx, rotated.RefreshToken)
	assert.NoError(t, err, "the guard's pair stays current")
}

// failingSessions отказывает во всех операциях
type failingSessions struct{}

var errSessions = errors.New("sessions unavailable")

func (failingSessions) Login(context.Context, jwt.Payload) (*session.TokenPair, error) {
	return nil, errSessions
}

func (failingSessions) RefreshTokens(context.Context, jwt.Payload) (*session.TokenPair, error) {
	return nil, errSessions
}

func (failingSessions) FindRefreshToken(context.Context, string) (*models.RefreshToken, error) {
	return nil, errSessions
}

func (failingSessions) RemoveRefreshToken(context.Context, string) error { return errSessions }
func (failingSessions) Logout(context.Context, string) error             { return errSessions }
func (failingSessions) AccessTTL() time.Duration                         { return time.Minute }
func (failingSessions) RefreshTTL() time.Duration                        { return time.Hour }

func TestAuthHandler_SessionFailures(t *testing.T) {
	env := setupTestEnv(t)
	_, err := env.accounts.Register(context.Background(), "a@b.com", "123")
	require.NoError(t, err)

	h := NewAuthHandler(setupTestLogger(), env.accounts, failingSessions{}, httpx.CookieConfig{})
	id := &jwt.Payload{ID: "u1", Email: "a@b.com"}

	w := httptest.NewRecorder()
	h.Login(w, httptest.NewRequest(http.MethodPost, "/api/v1/auth/login", authBody(t, "a@b.com", "123")))
	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.Empty(t, w.Result().Cookies())

	w = httptest.NewRecorder()
	h.Refresh(w, withIdentity(httptest.NewRequest(http.MethodGet, "/api/v1/auth/refresh", nil), id))
	assert.Equal(t, http.StatusInternalServerError, w.Code)

	w = httptest.NewRecorder()
	h.Logout(w, withIdentity(httptest.NewRequest(http.MethodPost, "/api/v1/auth/logout", nil), id))
	assert.Equal(t, http.StatusInternalServerError, w.Code)

	req := httptest.NewRequest(http.MethodPost, "/api/v1/auth/logout?scope=session", nil)
	req.AddCookie(&http.Cookie{Name: api.RefreshTokenCookie, Value: "tok"})
	w = httptest.NewRecorder()
	h.Logout(w, withIdentity(req, id))
	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.Empty(t, w.Result().Cookies())
}

func TestAuthHandler_AdminPing(t *testing.T) {
	env := setupTestEnv(t)
	id := &jwt.Payload{ID: "admin-1", Email: "root@b.com", Roles: []string{"admin"}}

	w := httptest.NewRecorder()
	env.handler.AdminPing(w, withIdentity(httptest.NewRequest(http.MethodGet, "/api/v1/auth/admin/ping", nil), id))

	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "admin-1")
}
