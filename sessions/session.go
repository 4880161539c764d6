package sessions

import "time"

// Session is one active refresh-token lineage. The selector is a
// public lookup key; only the bcrypt hash of the secret verifier is
// kept. PreviousSelector remembers the selector retired by the last
// rotation so that replay of a rotated-out token can be recognized as
// a theft signal rather than an ordinary miss.
type Session struct {
	ID                string
	UserID            string
	TokenSelector     string
	TokenVerifierHash string
	PreviousSelector  string // empty until the first rotation
	ExpiresAt         time.Time
	CreatedAt         time.Time
	LastRotatedAt     time.Time
}

// Expired reports whether the session has passed its absolute expiry.
func (s *Session) Expired(now time.Time) bool {
	return !s.ExpiresAt.After(now)
}
