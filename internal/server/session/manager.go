// Package session issues, validates and rotates access/refresh token pairs.
//
// Only refresh tokens are tracked server-side: each user has at most one
// refresh record. Login replaces it with a new record, rotation updates it in place.
package session

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/DrakonKapysta/web-beat-api/internal/models"
	"github.com/DrakonKapysta/web-beat-api/internal/server/jwt"
	"github.com/DrakonKapysta/web-beat-api/internal/server/metrics"
	"github.com/DrakonKapysta/web-beat-api/internal/server/storage"
)

// TokenPair is the session handed to a client
type TokenPair struct {
	AccessExpiresAt  time.Time
	RefreshExpiresAt time.Time
	AccessToken      string
	RefreshToken     string
}

// Manager orchestrates the token lifecycle
type Manager struct {
	store   storage.TokenStorage
	access  *jwt.Signer
	refresh *jwt.Signer
	logger  *slog.Logger
	metrics *metrics.Metrics
}

// Option configures a Manager
type Option func(*Manager)

// WithMetrics records session events in m
func WithMetrics(m *metrics.Metrics) Option {
	return func(mgr *Manager) {
		mgr.metrics = m
	}
}

// NewManager creates a Manager. access and refresh must use distinct secrets
func NewManager(store storage.TokenStorage, access, refresh *jwt.Signer, logger *slog.Logger, opts ...Option) *Manager {
	m := &Manager{
		store:   store,
		access:  access,
		refresh: refresh,
		logger:  logger,
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// AccessTTL returns access token lifetime
func (m *Manager) AccessTTL() time.Duration { return m.access.TTL() }

// RefreshTTL returns refresh token lifetime
func (m *Manager) RefreshTTL() time.Duration { return m.refresh.TTL() }

// Login issues a new pair and replaces every refresh record of the user with one new record.
// Credentials must already be checked by the caller
func (m *Manager) Login(ctx context.Context, p jwt.Payload) (*TokenPair, error) {
	pair, err := m.issue(p)
	if err != nil {
		return nil, err
	}

	err = m.store.ReplaceUserToken(ctx, &models.RefreshToken{
		UserID:    p.ID,
		Token:     pair.RefreshToken,
		ExpiresAt: pair.RefreshExpiresAt,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to save refresh token: %w", err)
	}

	m.metrics.SessionEvent(metrics.EventLogin)
	m.logger.InfoContext(ctx, "session created", slog.String("user_id", p.ID))

	return pair, nil
}

// RefreshTokens re-signs both tokens and rotates the user's refresh record in place
func (m *Manager) RefreshTokens(ctx context.Context, p jwt.Payload) (*TokenPair, error) {
	pair, err := m.issue(p)
	if err != nil {
		return nil, err
	}

	err = m.store.UpsertUserToken(ctx, &models.RefreshToken{
		UserID:    p.ID,
		Token:     pair.RefreshToken,
		ExpiresAt: pair.RefreshExpiresAt,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to rotate refresh token: %w", err)
	}

	m.metrics.SessionEvent(metrics.EventRefresh)
	m.logger.DebugContext(ctx, "session rotated", slog.String("user_id", p.ID))

	return pair, nil
}

// FindRefreshToken returns the record holding token.
// Returns storage.ErrTokenNotFound when the token is not the current one
func (m *Manager) FindRefreshToken(ctx context.Context, token string) (*models.RefreshToken, error) {
	rt, err := m.store.GetRefreshToken(ctx, token)
	if err != nil {
		return nil, err
	}
	return rt, nil
}

// RemoveRefreshToken deletes the record holding token.
// Returns storage.ErrTokenNotFound if there is none
func (m *Manager) RemoveRefreshToken(ctx context.Context, token string) error {
	if err := m.store.DeleteRefreshToken(ctx, token); err != nil {
		return err
	}
	m.metrics.SessionEvent(metrics.EventLogout)
	return nil
}

// Logout deletes every refresh record of the user.
// Access tokens already issued stay valid until they expire
func (m *Manager) Logout(ctx context.Context, userID string) error {
	n, err := m.store.DeleteUserTokens(ctx, userID)
	if err != nil {
		return fmt.Errorf("failed to delete user tokens: %w", err)
	}

	m.metrics.SessionEvent(metrics.EventLogout)
	m.logger.InfoContext(ctx, "session closed",
		slog.String("user_id", userID),
		slog.Int("revoked", n),
	)

	return nil
}

// PruneExpired removes refresh records past their expiry
func (m *Manager) PruneExpired(ctx context.Context) (int, error) {
	n, err := m.store.DeleteExpiredTokens(ctx)
	if err != nil {
		return 0, fmt.Errorf("failed to prune expired tokens: %w", err)
	}
	m.metrics.TokensPruned(n)
	return n, nil
}

func (m *Manager) issue(p jwt.Payload) (*TokenPair, error) {
	if p.Roles == nil {
		p.Roles = []string{}
	}

	access, accessExp, err := m.access.Sign(p)
	if err != nil {
		return nil, fmt.Errorf("failed to sign access token: %w", err)
	}

	refresh, refreshExp, err := m.refresh.Sign(p)
	if err != nil {
		return nil, fmt.Errorf("failed to sign refresh token: %w", err)
	}

	return &TokenPair{
		AccessToken:      access,
		AccessExpiresAt:  accessExp,
		RefreshToken:     refresh,
		RefreshExpiresAt: refreshExp,
	}, nil
}

// isNotFound reports a missing refresh record
func isNotFound(err error) bool {
	return errors.Is(err, storage.ErrTokenNotFound)
}
