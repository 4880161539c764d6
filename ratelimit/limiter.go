package ratelimit

import (
	"context"
	"time"
)

// Result is the outcome of a single counted attempt.
type Result struct {
	Allowed    bool
	Remaining  int           // attempts left in the current window
	RetryAfter time.Duration // set when Allowed is false
}

// Limiter is a fixed-window attempt counter keyed by (action, identity).
// Check counts the attempt and reports whether it is allowed; it is
// consulted before any credential verification so a blocked caller
// never reaches the password hash.
type Limiter interface {
	Check(ctx context.Context, action, identity string) (Result, error)
	// Reset clears the counter for a key, typically after a successful
	// attempt so legitimate users are not penalized by earlier failures.
	Reset(ctx context.Context, action, identity string) error
}

func limiterKey(action, identity string) string {
	return action + ":" + identity
}
