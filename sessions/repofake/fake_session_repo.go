package fakesessionrepo

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/sitebid/authcore/internal/autherrors"
	"github.com/sitebid/authcore/sessions"
)

var _ sessions.Repo = (*FakeSessionRepo)(nil)

// FakeSessionRepo is an in-memory session store with the same indexing
// guarantees as the production store: O(1) lookup by selector and by
// previous selector, and compare-and-swap rotation under a single lock.
type FakeSessionRepo struct {
	byID               map[string]*sessions.Session
	bySelector         map[string]string // selector to session ID
	byPreviousSelector map[string]string // rotated-out selector to session ID
	byUser             map[string]map[string]struct{}
	lock               sync.RWMutex
}

func NewFakeSessionRepo() *FakeSessionRepo {
	return &FakeSessionRepo{
		byID:               make(map[string]*sessions.Session),
		bySelector:         make(map[string]string),
		byPreviousSelector: make(map[string]string),
		byUser:             make(map[string]map[string]struct{}),
	}
}

func (sr *FakeSessionRepo) Create(_ context.Context, session *sessions.Session) error {
	sr.lock.Lock()
	defer sr.lock.Unlock()

	if _, ok := sr.bySelector[session.TokenSelector]; ok {
		return autherrors.ErrSelectorConflict
	}

	stored := *session
	sr.byID[stored.ID] = &stored
	sr.bySelector[stored.TokenSelector] = stored.ID
	if sr.byUser[stored.UserID] == nil {
		sr.byUser[stored.UserID] = make(map[string]struct{})
	}
	sr.byUser[stored.UserID][stored.ID] = struct{}{}
	return nil
}

func (sr *FakeSessionRepo) GetBySelector(_ context.Context, selector string) (*sessions.Session, error) {
	sr.lock.RLock()
	defer sr.lock.RUnlock()

	id, ok := sr.bySelector[selector]
	if !ok {
		return nil, autherrors.ErrSessionNotFound
	}
	return copySession(sr.byID[id]), nil
}

func (sr *FakeSessionRepo) GetByPreviousSelector(_ context.Context, selector string) (*sessions.Session, error) {
	sr.lock.RLock()
	defer sr.lock.RUnlock()

	id, ok := sr.byPreviousSelector[selector]
	if !ok {
		return nil, autherrors.ErrSessionNotFound
	}
	return copySession(sr.byID[id]), nil
}

func (sr *FakeSessionRepo) GetByID(_ context.Context, id string) (*sessions.Session, error) {
	sr.lock.RLock()
	defer sr.lock.RUnlock()

	session, ok := sr.byID[id]
	if !ok {
		return nil, autherrors.ErrSessionNotFound
	}
	return copySession(session), nil
}

func (sr *FakeSessionRepo) Rotate(_ context.Context, id, expectedSelector, newSelector, newVerifierHash string, rotatedAt time.Time) (bool, error) {
	sr.lock.Lock()
	defer sr.lock.Unlock()

	session, ok := sr.byID[id]
	if !ok || session.TokenSelector != expectedSelector {
		return false, nil
	}
	if _, taken := sr.bySelector[newSelector]; taken {
		return false, autherrors.ErrSelectorConflict
	}

	if session.PreviousSelector != "" {
		delete(sr.byPreviousSelector, session.PreviousSelector)
	}
	delete(sr.bySelector, session.TokenSelector)

	session.PreviousSelector = session.TokenSelector
	session.TokenSelector = newSelector
	session.TokenVerifierHash = newVerifierHash
	session.LastRotatedAt = rotatedAt

	sr.bySelector[newSelector] = id
	sr.byPreviousSelector[session.PreviousSelector] = id
	return true, nil
}

func (sr *FakeSessionRepo) Delete(_ context.Context, id string) (bool, error) {
	sr.lock.Lock()
	defer sr.lock.Unlock()

	return sr.deleteLocked(id), nil
}

func (sr *FakeSessionRepo) DeleteAllForUser(_ context.Context, userID string) (int, error) {
	sr.lock.Lock()
	defer sr.lock.Unlock()

	count := 0
	for id := range sr.byUser[userID] {
		if sr.deleteLocked(id) {
			count++
		}
	}
	return count, nil
}

func (sr *FakeSessionRepo) DeleteAllExcept(_ context.Context, userID, keepID string) (int, error) {
	sr.lock.Lock()
	defer sr.lock.Unlock()

	count := 0
	for id := range sr.byUser[userID] {
		if id == keepID {
			continue
		}
		if sr.deleteLocked(id) {
			count++
		}
	}
	return count, nil
}

func (sr *FakeSessionRepo) ListByUser(_ context.Context, userID string) ([]*sessions.Session, error) {
	sr.lock.RLock()
	defer sr.lock.RUnlock()

	list := make([]*sessions.Session, 0, len(sr.byUser[userID]))
	for id := range sr.byUser[userID] {
		list = append(list, copySession(sr.byID[id]))
	}
	sort.Slice(list, func(i, j int) bool {
		return list[i].CreatedAt.Before(list[j].CreatedAt)
	})
	return list, nil
}

func (sr *FakeSessionRepo) DeleteExpired(_ context.Context, now time.Time) (int, error) {
	sr.lock.Lock()
	defer sr.lock.Unlock()

	count := 0
	for id, session := range sr.byID {
		if session.Expired(now) && sr.deleteLocked(id) {
			count++
		}
	}
	return count, nil
}

func (sr *FakeSessionRepo) deleteLocked(id string) bool {
	session, ok := sr.byID[id]
	if !ok {
		return false
	}
	delete(sr.bySelector, session.TokenSelector)
	if session.PreviousSelector != "" {
		delete(sr.byPreviousSelector, session.PreviousSelector)
	}
	if ids := sr.byUser[session.UserID]; ids != nil {
		delete(ids, id)
		if len(ids) == 0 {
			delete(sr.byUser, session.UserID)
		}
	}
	delete(sr.byID, id)
	return true
}

func copySession(s *sessions.Session) *sessions.Session {
	c := *s
	return &c
}
