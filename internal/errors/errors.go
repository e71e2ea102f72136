package errors

import (
	"errors"
	"fmt"
)

// Common error types for the studio gateway
var (
	// Authentication errors
	ErrMissingToken       = errors.New("missing token")
	ErrInvalidToken       = errors.New("invalid token")
	ErrTokenExpired       = errors.New("token expired")
	ErrTokenRevoked       = errors.New("token revoked")
	ErrSessionLoadFailure = errors.New("session load failure")
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrUserBlocked        = errors.New("user is blocked")

	// Authorization errors. A role mismatch is a policy outcome, callers
	// redirect or answer 403 rather than treating it as a fault.
	ErrRoleMismatch = errors.New("role mismatch")
	ErrUnknownRole  = errors.New("unknown role")

	// General errors
	ErrNotFound    = errors.New("not found")
	ErrEmailInUse  = errors.New("email already in use")
	ErrUnsupported = errors.New("unsupported operation")
)

// Wrapf wraps an error with context using fmt.Errorf
func Wrapf(err error, format string, args ...interface{}) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf(format+": %w", append(args, err)...)
}

// Is reports whether any error in err's chain matches target
func Is(err, target error) bool {
	return errors.Is(err, target)
}

// As finds the first error in err's chain that matches target
func As(err error, target interface{}) bool {
	return errors.As(err, target)
}

// IsUnauthenticated reports whether err means the caller has no usable session.
// A session load failure counts as an invalid token.
func IsUnauthenticated(err error) bool {
	return Is(err, ErrMissingToken) ||
		Is(err, ErrInvalidToken) ||
		Is(err, ErrTokenExpired) ||
		Is(err, ErrTokenRevoked) ||
		Is(err, ErrSessionLoadFailure)
}
