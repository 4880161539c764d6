package sessions

import (
	"context"
	"time"
)

// Repo is the durable session store. Lookups by selector and by
// previous selector must both be indexed; rotation must be a single
// conditional update so two concurrent refreshes of the same session
// cannot both succeed.
type Repo interface {
	// Create inserts the session. A live session with the same
	// selector yields ErrSelectorConflict.
	Create(ctx context.Context, session *Session) error

	// GetBySelector returns the session whose current selector matches,
	// or ErrSessionNotFound. Expiry is not checked here; the caller
	// treats expired rows as logically absent.
	GetBySelector(ctx context.Context, selector string) (*Session, error)

	// GetByPreviousSelector returns the session whose rotated-out
	// selector matches, or ErrSessionNotFound.
	GetByPreviousSelector(ctx context.Context, selector string) (*Session, error)

	GetByID(ctx context.Context, id string) (*Session, error)

	// Rotate atomically replaces the selector and verifier hash,
	// remembering the old selector, but only if the session's current
	// selector still equals expectedSelector. Returns false when the
	// compare fails (the session was rotated or revoked concurrently).
	Rotate(ctx context.Context, id, expectedSelector, newSelector, newVerifierHash string, rotatedAt time.Time) (bool, error)

	// Delete removes the session, reporting whether it existed.
	Delete(ctx context.Context, id string) (bool, error)

	// DeleteAllForUser removes every session owned by userID,
	// returning the number removed.
	DeleteAllForUser(ctx context.Context, userID string) (int, error)

	// DeleteAllExcept removes every session owned by userID other
	// than keepID, returning the number removed.
	DeleteAllExcept(ctx context.Context, userID, keepID string) (int, error)

	ListByUser(ctx context.Context, userID string) ([]*Session, error)

	// DeleteExpired removes sessions whose expiry is at or before now.
	DeleteExpired(ctx context.Context, now time.Time) (int, error)
}
