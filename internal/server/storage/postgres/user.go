package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/DrakonKapysta/web-beat-api/internal/dbx"
	"github.com/DrakonKapysta/web-beat-api/internal/models"
	"github.com/DrakonKapysta/web-beat-api/internal/server/storage"
)

// CreateUser inserts a new user. A taken email yields storage.ErrUserAlreadyExists.
func (s *Storage) CreateUser(ctx context.Context, user *models.User) error {
	roles, err := storage.EncodeRoles(user.Roles)
	if err != nil {
		return err
	}

	query := `
		INSERT INTO users (id, email, password_hash, roles, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6)
	`

	_, err = s.db.ExecContext(ctx, query,
		user.ID,
		user.Email,
		user.PasswordHash,
		roles,
		user.CreatedAt,
		user.UpdatedAt,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return storage.ErrUserAlreadyExists
		}
		return fmt.Errorf("failed to insert user: %w", err)
	}

	return nil
}

// GetUserByEmail returns the user with the given email.
func (s *Storage) GetUserByEmail(ctx context.Context, email string) (*models.User, error) {
	query := `
		SELECT id, email, password_hash, roles::text, created_at, updated_at
		FROM users
		WHERE email = $1
	`
	return scanUser(ctx, s.db, query, email)
}

// GetUserByID returns the user with the given ID.
func (s *Storage) GetUserByID(ctx context.Context, userID string) (*models.User, error) {
	query := `
		SELECT id, email, password_hash, roles::text, created_at, updated_at
		FROM users
		WHERE id = $1
	`
	return scanUser(ctx, s.db, query, userID)
}

func scanUser(ctx context.Context, db dbx.DBTX, query string, arg any) (*models.User, error) {
	user := &models.User{}
	var roles string

	err := db.QueryRowContext(ctx, query, arg).Scan(
		&user.ID,
		&user.Email,
		&user.PasswordHash,
		&roles,
		&user.CreatedAt,
		&user.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, storage.ErrUserNotFound
		}
		return nil, fmt.Errorf("db error: %w", err)
	}

	user.Roles, err = storage.DecodeRoles(roles)
	if err != nil {
		return nil, err
	}

	return user, nil
}
