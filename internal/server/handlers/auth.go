package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/DrakonKapysta/web-beat-api/internal/models"
	"github.com/DrakonKapysta/web-beat-api/internal/server/httpx"
	"github.com/DrakonKapysta/web-beat-api/internal/server/jwt"
	"github.com/DrakonKapysta/web-beat-api/internal/server/middleware"
	"github.com/DrakonKapysta/web-beat-api/internal/server/session"
	"github.com/DrakonKapysta/web-beat-api/internal/server/storage"
	"github.com/DrakonKapysta/web-beat-api/internal/server/users"
	"github.com/DrakonKapysta/web-beat-api/pkg/api"
)

// LogoutScopeSession завершает только сессию текущего refresh token
const LogoutScopeSession = "session"

// Accounts registers users and checks their credentials
type Accounts interface {
	Register(ctx context.Context, email, password string) (*models.User, error)
	Authenticate(ctx context.Context, email, password string) (*models.User, error)
}

// Sessions issues and revokes token pairs
type Sessions interface {
	Login(ctx context.Context, p jwt.Payload) (*session.TokenPair, error)
	RefreshTokens(ctx context.Context, p jwt.Payload) (*session.TokenPair, error)
	FindRefreshToken(ctx context.Context, token string) (*models.RefreshToken, error)
	RemoveRefreshToken(ctx context.Context, token string) error
	Logout(ctx context.Context, userID string) error
	AccessTTL() time.Duration
	RefreshTTL() time.Duration
}

// AuthHandler обрабатывает запросы авторизации
type AuthHandler struct {
	logger   *slog.Logger
	accounts Accounts
	sessions Sessions
	cookies  httpx.CookieConfig
}

// NewAuthHandler создает новый handler для авторизации
func NewAuthHandler(logger *slog.Logger, accounts Accounts, sessions Sessions, cookies httpx.CookieConfig) *AuthHandler {
	return &AuthHandler{
		logger:   logger,
		accounts: accounts,
		sessions: sessions,
		cookies:  cookies,
	}
}

// Register обрабатывает POST /api/v1/auth/register
// Регистрация нового пользователя с ролью user
func (h *AuthHandler) Register(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	req, ok := h.decodeAuthRequest(w, r)
	if !ok {
		return
	}

	user, err := h.accounts.Register(ctx, req.Login, req.Password)
	if err != nil {
		switch {
		case errors.Is(err, users.ErrAlreadyExists):
			h.logger.WarnContext(ctx, "user already exists", slog.String("email", req.Login))
			httpx.WriteError(w, h.logger, "user already exists", http.StatusBadRequest)
		case errors.Is(err, users.ErrInvalidCredentials):
			h.logger.WarnContext(ctx, "invalid credentials", slog.Any("error", err))
			httpx.WriteError(w, h.logger, err.Error(), http.StatusBadRequest)
		default:
			h.logger.ErrorContext(ctx, "failed to register user", slog.Any("error", err))
			httpx.WriteError(w, h.logger, "internal server error", http.StatusInternalServerError)
		}
		return
	}

	httpx.WriteJSON(w, h.logger, api.RegisterResponse{
		ID:    user.ID,
		Email: user.Email,
	}, http.StatusCreated)
}

// Login обрабатывает POST /api/v1/auth/login
// Проверяет пароль, выдаёт пару токенов и заменяет прежнюю сессию пользователя
func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	req, ok := h.decodeAuthRequest(w, r)
	if !ok {
		return
	}

	user, err := h.accounts.Authenticate(ctx, req.Login, req.Password)
	if err != nil {
		switch {
		case errors.Is(err, users.ErrUserNotFound):
			h.logger.WarnContext(ctx, "login failed: user not found", slog.String("email", req.Login))
			httpx.WriteError(w, h.logger, "user not found", http.StatusNotFound)
		case errors.Is(err, users.ErrWrongPassword):
			h.logger.WarnContext(ctx, "login failed: wrong password", slog.String("email", req.Login))
			httpx.WriteError(w, h.logger, "wrong password", http.StatusUnauthorized)
		default:
			h.logger.ErrorContext(ctx, "failed to authenticate user", slog.Any("error", err))
			httpx.WriteError(w, h.logger, "internal server error", http.StatusInternalServerError)
		}
		return
	}

	pair, err := h.sessions.Login(ctx, jwt.Payload{ID: user.ID, Email: user.Email, Roles: user.Roles})
	if err != nil {
		h.logger.ErrorContext(ctx, "failed to create session", slog.Any("error", err))
		httpx.WriteError(w, h.logger, "internal server error", http.StatusInternalServerError)
		return
	}

	h.setCookies(w, pair)

	h.logger.InfoContext(ctx, "user logged in successfully", slog.String("user_id", user.ID))

	httpx.WriteJSON(w, h.logger, api.LoginResponse{
		User:         api.UserInfo{ID: user.ID, Email: user.Email},
		AccessToken:  pair.AccessToken,
		RefreshToken: pair.RefreshToken,
	}, http.StatusOK)
}

// Validate обрабатывает GET /api/v1/auth/validate
// Возвращает личность, подтверждённую SessionGuard
func (h *AuthHandler) Validate(w http.ResponseWriter, r *http.Request) {
	id, ok := h.identity(w, r)
	if !ok {
		return
	}

	httpx.WriteJSON(w, h.logger, api.Identity{
		ID:    id.ID,
		Email: id.Email,
		Roles: id.Roles,
	}, http.StatusOK)
}

// Refresh обрабатывает GET /api/v1/auth/refresh
// Перевыпускает пару токенов для личности из guard-а.
// Если guard уже ротировал пару в этом запросе, возвращает её
func (h *AuthHandler) Refresh(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	id, ok := h.identity(w, r)
	if !ok {
		return
	}

	// cookie с этой парой guard уже выставил
	pair, rotated := middleware.RotatedPairFromContext(ctx)
	if !rotated {
		var err error
		pair, err = h.sessions.RefreshTokens(ctx, *id)
		if err != nil {
			h.logger.ErrorContext(ctx, "failed to refresh tokens", slog.Any("error", err))
			httpx.WriteError(w, h.logger, "internal server error", http.StatusInternalServerError)
			return
		}
		h.setCookies(w, pair)
	}

	httpx.WriteJSON(w, h.logger, api.TokenResponse{
		AccessToken:  pair.AccessToken,
		RefreshToken: pair.RefreshToken,
	}, http.StatusOK)
}

// Logout обрабатывает POST /api/v1/auth/logout
// По умолчанию удаляет все refresh записи пользователя.
// С ?scope=session удаляет только запись текущего refresh token
func (h *AuthHandler) Logout(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	id, ok := h.identity(w, r)
	if !ok {
		return
	}

	if r.URL.Query().Get("scope") == LogoutScopeSession {
		h.logoutSession(w, r, id)
		return
	}

	if err := h.sessions.Logout(ctx, id.ID); err != nil {
		h.logger.ErrorContext(ctx, "failed to logout", slog.Any("error", err))
		httpx.WriteError(w, h.logger, "internal server error", http.StatusInternalServerError)
		return
	}

	httpx.ClearSessionCookies(w, h.cookies)

	h.logger.InfoContext(ctx, "user logged out", slog.String("user_id", id.ID))

	w.WriteHeader(http.StatusNoContent)
}

// logoutSession удаляет запись refresh token этого клиента.
// Токен должен принадлежать пользователю из access token и быть текущим
func (h *AuthHandler) logoutSession(w http.ResponseWriter, r *http.Request, id *jwt.Payload) {
	ctx := r.Context()

	token := httpx.RefreshToken(r)
	// guard мог ротировать пару: cookie запроса уже вытеснен новым токеном
	if pair, ok := middleware.RotatedPairFromContext(ctx); ok {
		token = pair.RefreshToken
	}
	if token == "" {
		httpx.WriteError(w, h.logger, "refresh token is required to end the session", http.StatusBadRequest)
		return
	}

	record, err := h.sessions.FindRefreshToken(ctx, token)
	if err == nil && record.UserID != id.ID {
		err = storage.ErrTokenNotFound
	}
	if err == nil {
		err = h.sessions.RemoveRefreshToken(ctx, token)
	}
	if err != nil {
		if errors.Is(err, storage.ErrTokenNotFound) {
			h.logger.WarnContext(ctx, "session logout with stale refresh token", slog.String("user_id", id.ID))
			httpx.WriteError(w, h.logger, session.ErrInvalidRefreshToken.Message, http.StatusUnauthorized)
			return
		}
		h.logger.ErrorContext(ctx, "failed to logout session", slog.Any("error", err))
		httpx.WriteError(w, h.logger, "internal server error", http.StatusInternalServerError)
		return
	}

	httpx.ClearSessionCookies(w, h.cookies)

	h.logger.InfoContext(ctx, "session logged out", slog.String("user_id", id.ID))

	w.WriteHeader(http.StatusNoContent)
}

// AdminPing обрабатывает GET /api/v1/auth/admin/ping
// Доступен только с ролью admin
func (h *AuthHandler) AdminPing(w http.ResponseWriter, r *http.Request) {
	id, ok := h.identity(w, r)
	if !ok {
		return
	}

	httpx.WriteJSON(w, h.logger, map[string]string{
		"status":  "ok",
		"user_id": id.ID,
	}, http.StatusOK)
}

func (h *AuthHandler) decodeAuthRequest(w http.ResponseWriter, r *http.Request) (*api.AuthRequest, bool) {
	var req api.AuthRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.logger.WarnContext(r.Context(), "failed to decode auth request", slog.Any("error", err))
		httpx.WriteError(w, h.logger, "invalid request body", http.StatusBadRequest)
		return nil, false
	}

	if req.Login == "" || req.Password == "" {
		httpx.WriteError(w, h.logger, "login and password are required", http.StatusBadRequest)
		return nil, false
	}

	return &req, true
}

// identity достаёт личность из контекста. Без SessionGuard перед handler-ом отвечает 401
func (h *AuthHandler) identity(w http.ResponseWriter, r *http.Request) (*jwt.Payload, bool) {
	id, ok := middleware.IdentityFromContext(r.Context())
	if !ok {
		httpx.WriteError(w, h.logger, session.ErrAccessTokenNotFound.Message, http.StatusUnauthorized)
		return nil, false
	}
	return id, true
}

func (h *AuthHandler) setCookies(w http.ResponseWriter, pair *session.TokenPair) {
	httpx.SessionCookies(w, h.cookies,
		pair.AccessToken, h.sessions.AccessTTL(),
		pair.RefreshToken, h.sessions.RefreshTTL(),
	)
}
