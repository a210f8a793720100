package storage

import (
	"context"
	"time"
)

// SessionStorage defines interface for persisting the client session between runs.
// Only one session is kept: the last successful login.
type SessionStorage interface {
	// SaveSession stores the session, replacing the previous one
	SaveSession(ctx context.Context, s *Session) error

	// GetSession returns the stored session.
	// Returns ErrSessionNotFound if the client is not logged in
	GetSession(ctx context.Context) (*Session, error)

	// UpdateTokens replaces the token pair of the stored session (after rotation)
	UpdateTokens(ctx context.Context, accessToken, refreshToken string, accessExpiresAt time.Time) error

	// DeleteSession removes the stored session (logout)
	DeleteSession(ctx context.Context) error
}

// Session данные сессии на стороне клиента
type Session struct {
	AccessExpiresAt time.Time `json:"access_expires_at"`
	UpdatedAt       time.Time `json:"updated_at"`
	UserID          string    `json:"user_id"`
	Email           string    `json:"email"`
	AccessToken     string    `json:"access_token"`
	RefreshToken    string    `json:"refresh_token"`
	Roles           []string  `json:"roles"`
}
