package storage

import (
	"context"

	"github.com/DrakonKapysta/web-beat-api/internal/models"
)

//go:generate go tool moq -out ../session/token_storage_mock_test.go -pkg session . TokenStorage

// TokenStorage defines interface for refresh token persistence.
// The store keeps at most one record per user.
type TokenStorage interface {
	// ReplaceUserToken atomically replaces the record of token.UserID with token
	// in a single statement. The stored record gets a fresh ID and CreatedAt
	ReplaceUserToken(ctx context.Context, token *models.RefreshToken) error

	// UpsertUserToken updates the user's record in place (keeping its ID and CreatedAt)
	// or inserts it when the user has none. token.ID and token.CreatedAt are filled
	// from the stored row
	UpsertUserToken(ctx context.Context, token *models.RefreshToken) error

	// GetRefreshToken retrieves refresh token by token value
	// Returns ErrTokenNotFound if token doesn't exist
	GetRefreshToken(ctx context.Context, token string) (*models.RefreshToken, error)

	// DeleteRefreshToken deletes refresh token by token value
	// Returns ErrTokenNotFound if token doesn't exist
	DeleteRefreshToken(ctx context.Context, token string) error

	// DeleteUserTokens deletes all refresh tokens for a user
	// Returns number of deleted tokens
	DeleteUserTokens(ctx context.Context, userID string) (int, error)

	// DeleteExpiredTokens removes all expired tokens
	// Returns number of deleted tokens
	DeleteExpiredTokens(ctx context.Context) (int, error)
}

// Storage is the full server-side persistence contract
type Storage interface {
	UserStorage
	TokenStorage

	// Ping checks that the backend is reachable
	Ping(ctx context.Context) error

	// Close releases the underlying connection pool
	Close() error
}
