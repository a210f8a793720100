package session

import "errors"

// ErrUnauthorized is the sentinel every guard failure unwraps to
var ErrUnauthorized = errors.New("unauthorized")

// UnauthorizedError carries the client-facing reason of a guard failure
type UnauthorizedError struct {
	Message string
}

func (e *UnauthorizedError) Error() string {
	return "unauthorized: " + e.Message
}

// Unwrap allows errors.Is(err, ErrUnauthorized)
func (e *UnauthorizedError) Unwrap() error {
	return ErrUnauthorized
}

// Guard failures
var (
	ErrAccessTokenNotFound = &UnauthorizedError{Message: "Access token not found"}
	ErrInvalidRefreshToken = &UnauthorizedError{Message: "Invalid refresh token"}
	ErrNoRefreshToken      = &UnauthorizedError{Message: "Access token expired and no refresh token provided"}
)

// Reason returns a short metrics label for a guard failure
func Reason(err error) string {
	switch {
	case errors.Is(err, ErrAccessTokenNotFound):
		return "access_token_not_found"
	case errors.Is(err, ErrInvalidRefreshToken):
		return "invalid_refresh_token"
	case errors.Is(err, ErrNoRefreshToken):
		return "no_refresh_token"
	default:
		return "internal"
	}
}
