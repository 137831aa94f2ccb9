package service

import (
	"errors"
	"fmt"

	"user-session-service/internal/storage"
)

// Sentinel errors for the identity services; handlers map them to gRPC codes.
var (
	ErrInvalidCredentials     = errors.New("invalid credentials")
	ErrTooManySessions        = errors.New("too many active sessions")
	ErrSessionExpired         = errors.New("session expired; log in again")
	ErrNotFound               = errors.New("not found")
	ErrInvalidArgument        = errors.New("invalid argument")
	ErrEmailAlreadyRegistered = errors.New("email already registered")
	ErrInternal               = errors.New("internal error")
)

// TooManySessionsError is returned by Login when the identity already holds Limit sessions
// and the login comes from a new origin. It matches ErrTooManySessions.
type TooManySessionsError struct {
	Limit int
}

func (e *TooManySessionsError) Error() string {
	return fmt.Sprintf("you cannot log in on more than %d devices simultaneously", e.Limit)
}

func (e *TooManySessionsError) Unwrap() error { return ErrTooManySessions }

// storeErr classifies a storage failure. Not-found and invalid-argument keep their meaning;
// anything else is an internal failure that wraps the cause.
func storeErr(op string, err error) error {
	switch {
	case errors.Is(err, storage.ErrNotFound):
		return fmt.Errorf("%w: %s", ErrNotFound, op)
	case errors.Is(err, storage.ErrInvalidArgument):
		return fmt.Errorf("%w: %s: %v", ErrInvalidArgument, op, err)
	default:
		return fmt.Errorf("%w: %s: %w", ErrInternal, op, err)
	}
}
