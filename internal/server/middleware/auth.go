package middleware

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"slices"
	"time"

	"github.com/DrakonKapysta/web-beat-api/internal/server/httpx"
	"github.com/DrakonKapysta/web-beat-api/internal/server/jwt"
	"github.com/DrakonKapysta/web-beat-api/internal/server/session"
)

type contextKey string

const (
	identityKey contextKey = "identity"
	rotatedKey  contextKey = "rotated"
)

// WithIdentity кладёт подтверждённую личность в контекст
func WithIdentity(ctx context.Context, id *jwt.Payload) context.Context {
	return context.WithValue(ctx, identityKey, id)
}

// IdentityFromContext извлекает личность, установленную SessionGuard
func IdentityFromContext(ctx context.Context) (*jwt.Payload, bool) {
	id, ok := ctx.Value(identityKey).(*jwt.Payload)
	return id, ok && id != nil
}

// WithRotatedPair запоминает пару, выпущенную guard-ом при ротации
func WithRotatedPair(ctx context.Context, pair *session.TokenPair) context.Context {
	return context.WithValue(ctx, rotatedKey, pair)
}

// RotatedPairFromContext возвращает пару, если guard ротировал токены в этом запросе.
// Refresh token из cookie запроса в этом случае уже не действителен
func RotatedPairFromContext(ctx context.Context) (*session.TokenPair, bool) {
	pair, ok := ctx.Value(rotatedKey).(*session.TokenPair)
	return pair, ok && pair != nil
}

// Authenticator проверяет токены запроса. Реализуется *session.Manager
type Authenticator interface {
	Authenticate(ctx context.Context, accessToken, refreshToken string) (*session.Result, error)
	AccessTTL() time.Duration
	RefreshTTL() time.Duration
}

// SessionGuard требует аутентификации.
// Access token берётся из Authorization: Bearer или cookie, refresh token из cookie.
// При ротации новые cookie отправляются клиенту в этом же ответе
func SessionGuard(auth Authenticator, cookies httpx.CookieConfig, logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := r.Context()

			res, err := auth.Authenticate(ctx, httpx.AccessToken(r), httpx.RefreshToken(r))
			if err != nil {
				var ue *session.UnauthorizedError
				if errors.As(err, &ue) {
					httpx.WriteError(w, logger, ue.Message, http.StatusUnauthorized)
					return
				}
				logger.ErrorContext(ctx, "authentication failed", slog.Any("error", err))
				httpx.WriteError(w, logger, "internal server error", http.StatusInternalServerError)
				return
			}

			ctx = WithIdentity(ctx, res.Identity)
			if res.Rotated != nil {
				httpx.SessionCookies(w, cookies,
					res.Rotated.AccessToken, auth.AccessTTL(),
					res.Rotated.RefreshToken, auth.RefreshTTL(),
				)
				ctx = WithRotatedPair(ctx, res.Rotated)
			}

			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// RequireRoles пропускает запрос, если у пользователя есть хотя бы одна из ролей.
// Без ролей пропускает всех аутентифицированных. Ставится после SessionGuard
func RequireRoles(logger *slog.Logger, roles ...string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if len(roles) == 0 {
				next.ServeHTTP(w, r)
				return
			}

			id, ok := IdentityFromContext(r.Context())
			if !ok {
				httpx.WriteError(w, logger, "Access token not found", http.StatusUnauthorized)
				return
			}

			if !slices.ContainsFunc(roles, func(role string) bool { return slices.Contains(id.Roles, role) }) {
				logger.WarnContext(r.Context(), "insufficient role",
					slog.String("user_id", id.ID),
					slog.Any("required", roles),
				)
				httpx.WriteError(w, logger, "insufficient role", http.StatusForbidden)
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

// Chain применяет middleware справа налево: первый в списке будет внешним
func Chain(h http.Handler, mws ...func(http.Handler) http.Handler) http.Handler {
	for i := len(mws) - 1; i >= 0; i-- {
		h = mws[i](h)
	}
	return h
}
