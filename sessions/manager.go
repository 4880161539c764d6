package sessions

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/sitebid/authcore/internal/autherrors"
	"github.com/sitebid/authcore/token/refresh"
)

// createAttempts bounds selector-conflict retries. Collisions on a
// 128-bit random selector mean a broken random source, not bad luck.
const createAttempts = 3

// Hasher is the one-way hash applied to refresh-token verifiers. The
// password hasher satisfies it.
type Hasher interface {
	Hash(s string) (string, error)
	Verify(s, hash string) bool
}

// Manager drives the session lifecycle: creation, validation with
// reuse detection, single-use rotation, and revocation.
type Manager struct {
	repo             Repo
	hasher           Hasher
	logger           zerolog.Logger
	revokeAllOnReuse bool
	nowTime          func() time.Time
}

// ManagerOption defines a function type to modify the Manager instance.
type ManagerOption func(*Manager)

// WithNowTime sets the now time function (primarily for testing)
func WithNowTime(nowFunc func() time.Time) ManagerOption {
	return func(m *Manager) {
		m.nowTime = nowFunc
	}
}

// WithRevokeAllOnReuse widens the reuse-detection response from the
// single compromised session to every session of the affected user.
func WithRevokeAllOnReuse(revokeAll bool) ManagerOption {
	return func(m *Manager) {
		m.revokeAllOnReuse = revokeAll
	}
}

// NewManager creates a session manager backed by repo. Verifiers are
// hashed with hasher before storage.
func NewManager(repo Repo, hasher Hasher, logger zerolog.Logger, options ...ManagerOption) (*Manager, error) {
	if repo == nil {
		return nil, errors.New("[NewManager] repo is required")
	}
	if hasher == nil {
		return nil, errors.New("[NewManager] hasher is required")
	}

	manager := &Manager{
		repo:    repo,
		hasher:  hasher,
		logger:  logger,
		nowTime: time.Now,
	}

	for _, opt := range options {
		opt(manager)
	}

	return manager, nil
}

// Create starts a new refresh-token lineage for userID. The returned
// pair is the only time the verifier exists in the clear; the store
// keeps its hash.
func (m *Manager) Create(ctx context.Context, userID string, ttl time.Duration) (*Session, *refresh.Pair, error) {
	for attempt := 0; attempt < createAttempts; attempt++ {
		pair, err := refresh.GeneratePair()
		if err != nil {
			return nil, nil, fmt.Errorf("failed to generate token pair: %w", err)
		}

		verifierHash, err := m.hasher.Hash(pair.Verifier)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to hash verifier: %w", err)
		}

		now := m.nowTime()
		session := &Session{
			ID:                uuid.New().String(),
			UserID:            userID,
			TokenSelector:     pair.Selector,
			TokenVerifierHash: verifierHash,
			ExpiresAt:         now.Add(ttl),
			CreatedAt:         now,
			LastRotatedAt:     now,
		}

		err = m.repo.Create(ctx, session)
		if errors.Is(err, autherrors.ErrSelectorConflict) {
			continue
		}
		if err != nil {
			return nil, nil, fmt.Errorf("failed to store session: %w", err)
		}
		return session, pair, nil
	}
	return nil, nil, fmt.Errorf("selector conflict persisted after %d attempts", createAttempts)
}

// ValidateAndConsume resolves a wire-form refresh token to its session.
// Outcomes, matched with errors.Is:
//   - ErrTokenMalformed: format violation, rejected before any lookup
//   - ErrTokenReuseDetected: the selector matches a rotated-out token;
//     the compromised lineage has already been revoked
//   - ErrTokenExpired: the session passed its absolute expiry and has
//     been removed
//   - ErrTokenNotFound: unknown selector or wrong verifier, deliberately
//     indistinguishable
func (m *Manager) ValidateAndConsume(ctx context.Context, rawToken string) (*Session, error) {
	pair, err := refresh.ParseToken(rawToken)
	if err != nil {
		return nil, err
	}

	session, err := m.repo.GetBySelector(ctx, pair.Selector)
	if errors.Is(err, autherrors.ErrSessionNotFound) {
		return nil, m.checkReuse(ctx, pair.Selector)
	}
	if err != nil {
		return nil, fmt.Errorf("session lookup failed: %w", err)
	}

	if session.Expired(m.nowTime()) {
		_, _ = m.repo.Delete(ctx, session.ID)
		return nil, autherrors.ErrTokenExpired
	}

	if !m.hasher.Verify(pair.Verifier, session.TokenVerifierHash) {
		return nil, autherrors.ErrTokenNotFound
	}

	return session, nil
}

// checkReuse distinguishes a replayed rotated-out token from a plain
// miss. Replay revokes the lineage before reporting, so a stolen token
// can never be replayed twice.
func (m *Manager) checkReuse(ctx context.Context, selector string) error {
	session, err := m.repo.GetByPreviousSelector(ctx, selector)
	if errors.Is(err, autherrors.ErrSessionNotFound) {
		return autherrors.ErrTokenNotFound
	}
	if err != nil {
		return fmt.Errorf("reuse lookup failed: %w", err)
	}

	m.logger.Warn().
		Str("event", "refresh_token_reuse").
		Str("session_id", session.ID).
		Str("user_id", session.UserID).
		Bool("revoke_all", m.revokeAllOnReuse).
		Msg("rotated-out refresh token replayed, revoking")

	if m.revokeAllOnReuse {
		if _, err := m.repo.DeleteAllForUser(ctx, session.UserID); err != nil {
			return fmt.Errorf("failed to revoke user sessions after reuse: %w", err)
		}
	} else if _, err := m.repo.Delete(ctx, session.ID); err != nil {
		return fmt.Errorf("failed to revoke session after reuse: %w", err)
	}

	return autherrors.ErrTokenReuseDetected
}

// Rotate replaces the session's selector/verifier pair, retiring the
// current selector into PreviousSelector. The swap is conditional on
// the session still carrying the selector the caller validated; a
// concurrent rotation or revocation makes it fail with
// ErrRotationConflict. On success the passed session is updated in
// place and the new pair returned.
func (m *Manager) Rotate(ctx context.Context, session *Session) (*refresh.Pair, error) {
	pair, err := refresh.GeneratePair()
	if err != nil {
		return nil, fmt.Errorf("failed to generate token pair: %w", err)
	}

	verifierHash, err := m.hasher.Hash(pair.Verifier)
	if err != nil {
		return nil, fmt.Errorf("failed to hash verifier: %w", err)
	}

	rotatedAt := m.nowTime()
	ok, err := m.repo.Rotate(ctx, session.ID, session.TokenSelector, pair.Selector, verifierHash, rotatedAt)
	if err != nil {
		return nil, fmt.Errorf("failed to rotate session: %w", err)
	}
	if !ok {
		return nil, autherrors.ErrRotationConflict
	}

	session.PreviousSelector = session.TokenSelector
	session.TokenSelector = pair.Selector
	session.TokenVerifierHash = verifierHash
	session.LastRotatedAt = rotatedAt
	return pair, nil
}

// Revoke terminates a session, reporting whether it existed.
func (m *Manager) Revoke(ctx context.Context, sessionID string) (bool, error) {
	return m.repo.Delete(ctx, sessionID)
}

// RevokeAllExcept terminates every session of userID except keepID,
// returning the number revoked.
func (m *Manager) RevokeAllExcept(ctx context.Context, userID, keepID string) (int, error) {
	return m.repo.DeleteAllExcept(ctx, userID, keepID)
}

// ListByUser returns the user's sessions, oldest first.
func (m *Manager) ListByUser(ctx context.Context, userID string) ([]*Session, error) {
	return m.repo.ListByUser(ctx, userID)
}

// PurgeExpired removes sessions past their expiry. Intended for a
// periodic sweeper owned by the caller.
func (m *Manager) PurgeExpired(ctx context.Context) (int, error) {
	return m.repo.DeleteExpired(ctx, m.nowTime())
}
