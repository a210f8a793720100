package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/DrakonKapysta/web-beat-api/internal/dbx"
	"github.com/DrakonKapysta/web-beat-api/internal/models"
	"github.com/DrakonKapysta/web-beat-api/internal/server/storage"
)

// ReplaceUserToken stores token as the user's only record under a fresh ID.
// Single upsert on user_id: the previous record is overwritten, never duplicated
func (s *Storage) ReplaceUserToken(ctx context.Context, token *models.RefreshToken) error {
	now := time.Now().UTC()
	token.ID = uuid.New().String()
	token.CreatedAt = now
	token.UpdatedAt = now

	query := `
		INSERT INTO refresh_tokens (id, user_id, token, expires_at, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(user_id) DO UPDATE SET
			id = excluded.id,
			token = excluded.token,
			expires_at = excluded.expires_at,
			created_at = excluded.created_at,
			updated_at = excluded.updated_at
	`
	if _, err := s.db.ExecContext(ctx, query,
		token.ID,
		token.UserID,
		token.Token,
		token.ExpiresAt.UTC(),
		token.CreatedAt,
		token.UpdatedAt,
	); err != nil {
		return fmt.Errorf("replace user token: %w", err)
	}

	return nil
}

// UpsertUserToken rotates the user's token in place, keeping record ID and creation time
func (s *Storage) UpsertUserToken(ctx context.Context, token *models.RefreshToken) error {
	now := time.Now().UTC()

	err := dbx.WithTx(ctx, s.db, nil, func(ctx context.Context, tx dbx.DBTX) error {
		query := `
			INSERT INTO refresh_tokens (id, user_id, token, expires_at, created_at, updated_at)
			VALUES (?, ?, ?, ?, ?, ?)
			ON CONFLICT(user_id) DO UPDATE SET
				token = excluded.token,
				expires_at = excluded.expires_at,
				updated_at = excluded.updated_at
		`
		if _, err := tx.ExecContext(ctx, query,
			uuid.New().String(),
			token.UserID,
			token.Token,
			token.ExpiresAt.UTC(),
			now,
			now,
		); err != nil {
			return fmt.Errorf("failed to upsert refresh token: %w", err)
		}

		return tx.QueryRowContext(ctx,
			`SELECT id, created_at, updated_at FROM refresh_tokens WHERE user_id = ?`,
			token.UserID,
		).Scan(&token.ID, &token.CreatedAt, &token.UpdatedAt)
	})
	if err != nil {
		return fmt.Errorf("upsert user token: %w", err)
	}

	return nil
}

// GetRefreshToken retrieves refresh token by token value
func (s *Storage) GetRefreshToken(ctx context.Context, token string) (*models.RefreshToken, error) {
	query := `
		SELECT id, user_id, token, expires_at, created_at, updated_at
		FROM refresh_tokens
		WHERE token = ?
	`

	rt := &models.RefreshToken{}

	err := s.db.QueryRowContext(ctx, query, token).Scan(
		&rt.ID,
		&rt.UserID,
		&rt.Token,
		&rt.ExpiresAt,
		&rt.CreatedAt,
		&rt.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, storage.ErrTokenNotFound
		}
		return nil, fmt.Errorf("failed to get refresh token: %w", err)
	}

	return rt, nil
}

// DeleteRefreshToken deletes refresh token by token value
func (s *Storage) DeleteRefreshToken(ctx context.Context, token string) error {
	result, err := s.db.ExecContext(ctx, `DELETE FROM refresh_tokens WHERE token = ?`, token)
	if err != nil {
		return fmt.Errorf("failed to delete refresh token: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}

	if rows == 0 {
		return storage.ErrTokenNotFound
	}

	return nil
}

// DeleteUserTokens deletes all refresh tokens for a user
func (s *Storage) DeleteUserTokens(ctx context.Context, userID string) (int, error) {
	result, err := s.db.ExecContext(ctx, `DELETE FROM refresh_tokens WHERE user_id = ?`, userID)
	if err != nil {
		return 0, fmt.Errorf("failed to delete user tokens: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to get rows affected: %w", err)
	}

	return int(rows), nil
}

// DeleteExpiredTokens removes all expired tokens
func (s *Storage) DeleteExpiredTokens(ctx context.Context) (int, error) {
	result, err := s.db.ExecContext(ctx, `DELETE FROM refresh_tokens WHERE expires_at < ?`, time.Now().UTC())
	if err != nil {
		return 0, fmt.Errorf("failed to delete expired tokens: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to get rows affected: %w", err)
	}

	return int(rows), nil
}
