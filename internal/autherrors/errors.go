package autherrors

import (
	"errors"
	"fmt"
	"time"
)

// Failure kinds for the credential and session subsystem. Callers match
// with errors.Is and map each kind to a transport-level outcome.
var (
	// ErrInvalidCredentials covers both an unknown user and a wrong
	// password. The two cases are never distinguished to the caller.
	ErrInvalidCredentials = errors.New("invalid credentials")

	// ErrRateLimited is the base error wrapped by RateLimitedError.
	ErrRateLimited = errors.New("too many attempts")

	// Token errors
	ErrTokenMalformed     = errors.New("malformed token")
	ErrTokenNotFound      = errors.New("token not recognised")
	ErrTokenReuseDetected = errors.New("token reuse detected")
	ErrTokenExpired       = errors.New("token expired")

	// Authorization errors
	ErrInsufficientRole = errors.New("insufficient role")

	// User errors
	ErrUserNotFound   = errors.New("user not found")
	ErrDuplicateEmail = errors.New("email already registered")
	ErrWeakPassword   = errors.New("password does not meet strength requirements")

	// Session store errors
	ErrSessionNotFound  = errors.New("session not found")
	ErrSelectorConflict = errors.New("token selector already in use")
	ErrRotationConflict = errors.New("session rotated concurrently")
)

// RateLimitedError wraps ErrRateLimited and carries the time the caller
// should wait before retrying.
type RateLimitedError struct {
	RetryAfter time.Duration
}

func (e *RateLimitedError) Error() string {
	return fmt.Sprintf("%s: retry after %s", ErrRateLimited, e.RetryAfter)
}

func (e *RateLimitedError) Unwrap() error {
	return ErrRateLimited
}

// Wrapf wraps an error with context using fmt.Errorf
func Wrapf(err error, format string, args ...interface{}) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf(format+": %w", append(args, err)...)
}
