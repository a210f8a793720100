// Package users implements registration and credential checks on top of UserStorage.
package users

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/DrakonKapysta/web-beat-api/internal/crypto"
	"github.com/DrakonKapysta/web-beat-api/internal/models"
	"github.com/DrakonKapysta/web-beat-api/internal/server/metrics"
	"github.com/DrakonKapysta/web-beat-api/internal/server/storage"
	"github.com/DrakonKapysta/web-beat-api/internal/validation"
)

var (
	// ErrUserNotFound unknown login
	ErrUserNotFound = errors.New("user not found")
	// ErrWrongPassword password does not match
	ErrWrongPassword = errors.New("wrong password")
	// ErrAlreadyExists email is already registered
	ErrAlreadyExists = errors.New("user already exists")
	// ErrInvalidCredentials malformed email or password on registration
	ErrInvalidCredentials = errors.New("invalid credentials")
)

// DefaultRoles are assigned to every registered user
var DefaultRoles = []string{models.RoleUser}

// Service manages user accounts
type Service struct {
	store   storage.UserStorage
	logger  *slog.Logger
	metrics *metrics.Metrics
}

// NewService creates a user service. m may be nil
func NewService(store storage.UserStorage, logger *slog.Logger, m *metrics.Metrics) *Service {
	return &Service{
		store:   store,
		logger:  logger,
		metrics: m,
	}
}

// Register creates a user with DefaultRoles
func (s *Service) Register(ctx context.Context, email, password string) (*models.User, error) {
	return s.Create(ctx, email, password, DefaultRoles)
}

// Create stores a new user with a bcrypt hash of password and the given roles
func (s *Service) Create(ctx context.Context, email, password string, roles []string) (*models.User, error) {
	email = validation.NormalizeEmail(email)

	if err := validation.ValidateEmail(email); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidCredentials, err)
	}
	if err := validation.ValidatePassword(password); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidCredentials, err)
	}

	existing, err := s.FindByEmail(ctx, email)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		return nil, ErrAlreadyExists
	}

	hash, err := crypto.HashPassword(password)
	if err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	user := &models.User{
		ID:           uuid.New().String(),
		Email:        email,
		PasswordHash: hash,
		Roles:        append([]string{}, roles...),
		CreatedAt:    now,
		UpdatedAt:    now,
	}

	if err := s.store.CreateUser(ctx, user); err != nil {
		// Параллельная регистрация могла занять email между проверкой и вставкой
		if errors.Is(err, storage.ErrUserAlreadyExists) {
			return nil, ErrAlreadyExists
		}
		return nil, fmt.Errorf("failed to create user: %w", err)
	}

	s.metrics.UserRegistered()
	s.logger.InfoContext(ctx, "user registered",
		slog.String("user_id", user.ID),
		slog.Any("roles", user.Roles),
	)

	return user, nil
}

// FindByEmail returns the user or nil when there is none
func (s *Service) FindByEmail(ctx context.Context, email string) (*models.User, error) {
	user, err := s.store.GetUserByEmail(ctx, validation.NormalizeEmail(email))
	if err != nil {
		if errors.Is(err, storage.ErrUserNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get user: %w", err)
	}
	return user, nil
}

// Authenticate checks email and password.
// Returns ErrUserNotFound or ErrWrongPassword on failure
func (s *Service) Authenticate(ctx context.Context, email, password string) (*models.User, error) {
	user, err := s.FindByEmail(ctx, email)
	if err != nil {
		return nil, err
	}
	if user == nil {
		return nil, ErrUserNotFound
	}

	if err := crypto.VerifyPassword(password, user.PasswordHash); err != nil {
		if errors.Is(err, crypto.ErrPasswordMismatch) {
			return nil, ErrWrongPassword
		}
		return nil, err
	}

	return user, nil
}
