package session

import (
	"context"
	"errors"
	"log/slog"

	"github.com/DrakonKapysta/web-beat-api/internal/server/jwt"
)

// AccessStatus is the outcome of access token verification
type AccessStatus int

const (
	AccessValid AccessStatus = iota
	AccessExpired
	AccessMalformed
)

func (s AccessStatus) String() string {
	switch s {
	case AccessValid:
		return "valid"
	case AccessExpired:
		return "expired"
	default:
		return "malformed"
	}
}

// VerifyAccess checks an access token against the access secret
func (m *Manager) VerifyAccess(token string) (AccessStatus, *jwt.Payload) {
	p, err := m.access.Verify(token)
	switch {
	case err == nil:
		return AccessValid, p
	case errors.Is(err, jwt.ErrTokenExpired):
		return AccessExpired, nil
	default:
		return AccessMalformed, nil
	}
}

// VerifyRefresh checks a refresh token against the refresh secret.
// The second result is false for any signature, format or expiry problem
func (m *Manager) VerifyRefresh(token string) (*jwt.Payload, bool) {
	p, err := m.refresh.Verify(token)
	if err != nil {
		return nil, false
	}
	return p, true
}

// Result is a successful authentication. Rotated is non-nil when the
// refresh token was used and the client must receive the new pair
type Result struct {
	Identity *jwt.Payload
	Rotated  *TokenPair
}

// Authenticate resolves the identity of a request from its tokens.
// A valid access token is accepted as is. Otherwise a refresh token that
// verifies and is still the user's current one is rotated and its payload returned.
// Guard failures are *UnauthorizedError; other errors are internal
func (m *Manager) Authenticate(ctx context.Context, accessToken, refreshToken string) (*Result, error) {
	if accessToken == "" {
		return nil, m.reject(ctx, ErrAccessTokenNotFound)
	}

	status, identity := m.VerifyAccess(accessToken)
	if status == AccessValid {
		return &Result{Identity: identity}, nil
	}

	if refreshToken == "" {
		return nil, m.reject(ctx, ErrNoRefreshToken)
	}

	payload, ok := m.VerifyRefresh(refreshToken)
	if !ok {
		return nil, m.reject(ctx, ErrInvalidRefreshToken)
	}

	// Подпись валидна, но токен мог быть вытеснен новым логином или ротацией
	record, err := m.FindRefreshToken(ctx, refreshToken)
	if err != nil {
		if isNotFound(err) {
			return nil, m.reject(ctx, ErrInvalidRefreshToken)
		}
		return nil, err
	}
	if record.UserID != payload.ID {
		return nil, m.reject(ctx, ErrInvalidRefreshToken)
	}

	pair, err := m.RefreshTokens(ctx, *payload)
	if err != nil {
		return nil, err
	}

	m.logger.InfoContext(ctx, "access token refreshed",
		slog.String("user_id", payload.ID),
		slog.String("access_status", status.String()),
	)

	return &Result{Identity: payload, Rotated: pair}, nil
}

func (m *Manager) reject(ctx context.Context, err *UnauthorizedError) error {
	m.metrics.GuardRejected(Reason(err))
	m.logger.DebugContext(ctx, "guard rejected request", slog.String("reason", err.Message))
	return err
}
