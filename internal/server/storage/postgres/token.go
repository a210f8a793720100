package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/DrakonKapysta/web-beat-api/internal/models"
	"github.com/DrakonKapysta/web-beat-api/internal/server/storage"
)

// ReplaceUserToken stores token as the user's only record under a fresh id.
// One upsert on user_id, so concurrent logins never race on the unique key.
func (s *Storage) ReplaceUserToken(ctx context.Context, token *models.RefreshToken) error {
	now := time.Now().UTC()
	token.ID = uuid.New().String()
	token.CreatedAt = now
	token.UpdatedAt = now

	query := `
		INSERT INTO refresh_tokens (id, user_id, token, expires_at, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (user_id) DO UPDATE SET
			id = EXCLUDED.id,
			token = EXCLUDED.token,
			expires_at = EXCLUDED.expires_at,
			created_at = EXCLUDED.created_at,
			updated_at = EXCLUDED.updated_at
	`
	if _, err := s.db.ExecContext(ctx, query,
		token.ID,
		token.UserID,
		token.Token,
		token.ExpiresAt,
		token.CreatedAt,
		token.UpdatedAt,
	); err != nil {
		return fmt.Errorf("replace user token: %w", err)
	}

	return nil
}

// UpsertUserToken rotates the user's record in a single statement, keeping its id and created_at.
func (s *Storage) UpsertUserToken(ctx context.Context, token *models.RefreshToken) error {
	query := `
		INSERT INTO refresh_tokens (id, user_id, token, expires_at, created_at, updated_at)
		VALUES ($1, $2, $3, $4, now(), now())
		ON CONFLICT (user_id) DO UPDATE SET
			token = EXCLUDED.token,
			expires_at = EXCLUDED.expires_at,
			updated_at = now()
		RETURNING id, created_at, updated_at
	`

	err := s.db.QueryRowContext(ctx, query,
		uuid.New().String(),
		token.UserID,
		token.Token,
		token.ExpiresAt,
	).Scan(&token.ID, &token.CreatedAt, &token.UpdatedAt)
	if err != nil {
		return fmt.Errorf("upsert user token: %w", err)
	}

	return nil
}

// GetRefreshToken finds the record holding the given token.
func (s *Storage) GetRefreshToken(ctx context.Context, token string) (*models.RefreshToken, error) {
	query := `
		SELECT id, user_id, token, expires_at, created_at, updated_at
		FROM refresh_tokens
		WHERE token = $1
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
		return nil, fmt.Errorf("db error: %w", err)
	}

	return rt, nil
}

// DeleteRefreshToken removes the record holding the given token.
func (s *Storage) DeleteRefreshToken(ctx context.Context, token string) error {
	n, err := s.exec(ctx, `DELETE FROM refresh_tokens WHERE token = $1`, token)
	if err != nil {
		return err
	}
	if n == 0 {
		return storage.ErrTokenNotFound
	}
	return nil
}

// DeleteUserTokens removes every record of the user.
func (s *Storage) DeleteUserTokens(ctx context.Context, userID string) (int, error) {
	return s.exec(ctx, `DELETE FROM refresh_tokens WHERE user_id = $1`, userID)
}

// DeleteExpiredTokens removes records past their expiry.
func (s *Storage) DeleteExpiredTokens(ctx context.Context) (int, error) {
	return s.exec(ctx, `DELETE FROM refresh_tokens WHERE expires_at < now()`)
}

func (s *Storage) exec(ctx context.Context, query string, args ...any) (int, error) {
	result, err := s.db.ExecContext(ctx, query, args...)
	if err != nil {
		return 0, fmt.Errorf("db error: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to get rows affected: %w", err)
	}

	return int(rows), nil
}
