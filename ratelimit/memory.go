package ratelimit

import (
	"context"
	"sync"
	"time"
)

var _ Limiter = (*MemoryLimiter)(nil)

type fixedWindow struct {
	count       int
	windowStart time.Time
}

// MemoryLimiter is a process-local fixed-window limiter. Counting is
// atomic under a single lock, so concurrent attempts for the same key
// are never undercounted.
type MemoryLimiter struct {
	mu        sync.Mutex
	entries   map[string]*fixedWindow
	max       int
	window    time.Duration
	nowTime   func() time.Time
	lastPrune time.Time
}

// MemoryLimiterOption defines a function type to modify the MemoryLimiter instance.
type MemoryLimiterOption func(*MemoryLimiter)

// WithNowTime sets the now time function (primarily for testing)
func WithNowTime(nowFunc func() time.Time) MemoryLimiterOption {
	return func(l *MemoryLimiter) {
		l.nowTime = nowFunc
	}
}

// NewMemoryLimiter creates a limiter allowing max attempts per window.
func NewMemoryLimiter(max int, window time.Duration, options ...MemoryLimiterOption) *MemoryLimiter {
	limiter := &MemoryLimiter{
		entries: make(map[string]*fixedWindow),
		max:     max,
		window:  window,
		nowTime: time.Now,
	}
	for _, opt := range options {
		opt(limiter)
	}
	limiter.lastPrune = limiter.nowTime()
	return limiter
}

func (l *MemoryLimiter) Check(_ context.Context, action, identity string) (Result, error) {
	key := limiterKey(action, identity)

	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.nowTime()
	l.maybePruneLocked(now)

	entry, ok := l.entries[key]
	if !ok || now.Sub(entry.windowStart) >= l.window {
		// Fresh key, or the previous window elapsed: start a new one.
		l.entries[key] = &fixedWindow{count: 1, windowStart: now}
		return Result{Allowed: true, Remaining: l.max - 1}, nil
	}

	entry.count++
	if entry.count > l.max {
		return Result{
			Allowed:    false,
			RetryAfter: entry.windowStart.Add(l.window).Sub(now),
		}, nil
	}
	return Result{Allowed: true, Remaining: l.max - entry.count}, nil
}

func (l *MemoryLimiter) Reset(_ context.Context, action, identity string) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	delete(l.entries, limiterKey(action, identity))
	return nil
}

// maybePruneLocked drops windows idle past expiry so abandoned keys do
// not accumulate. Runs at most once per window.
func (l *MemoryLimiter) maybePruneLocked(now time.Time) {
	if now.Sub(l.lastPrune) < l.window {
		return
	}
	for key, entry := range l.entries {
		if now.Sub(entry.windowStart) >= l.window {
			delete(l.entries, key)
		}
	}
	l.lastPrune = now
}
