package ratelimit

import (
	"context"
	"errors"
	"sync"
	"time"
)

// ErrLocked is returned by AttemptLimiter.Attempt while a key is locked out.
var ErrLocked = errors.New("too many failed attempts")

// AttemptLimiter counts attempts per key and locks a key out once the policy's
// limit is reached. Attempt reserves a slot before the guarded check runs, so
// concurrent callers cannot exceed the limit. A successful check calls Reset.
type AttemptLimiter interface {
	// Attempt counts one attempt. It returns ErrLocked and the remaining
	// lockout when the key is locked.
	Attempt(ctx context.Context, key string) (time.Duration, error)
	Reset(ctx context.Context, key string) error
}

// AttemptPolicy configures lockout behaviour. The n-th consecutive lockout
// lasts BaseLockout * 2^(n-1), capped at MaxLockout.
type AttemptPolicy struct {
	MaxAttempts int           // failures allowed inside Window before a lockout
	Window      time.Duration // failure counter lifetime
	BaseLockout time.Duration
	MaxLockout  time.Duration
}

func DefaultAttemptPolicy() AttemptPolicy {
	return AttemptPolicy{
		MaxAttempts: 5,
		Window:      15 * time.Minute,
		BaseLockout: time.Minute,
		MaxLockout:  time.Hour,
	}
}

func (p AttemptPolicy) withDefaults() AttemptPolicy {
	d := DefaultAttemptPolicy()
	if p.MaxAttempts <= 0 {
		p.MaxAttempts = d.MaxAttempts
	}
	if p.Window <= 0 {
		p.Window = d.Window
	}
	if p.BaseLockout <= 0 {
		p.BaseLockout = d.BaseLockout
	}
	if p.MaxLockout < p.BaseLockout {
		p.MaxLockout = p.BaseLockout
	}
	return p
}

// Lockout returns the duration of the n-th consecutive lockout.
func (p AttemptPolicy) Lockout(n int) time.Duration {
	if n < 1 {
		n = 1
	}
	d := p.BaseLockout
	for i := 1; i < n; i++ {
		d *= 2
		if d >= p.MaxLockout {
			return p.MaxLockout
		}
	}
	return min(d, p.MaxLockout)
}

type attemptState struct {
	failures    int
	windowStart time.Time
	lockouts    int
	lockedUntil time.Time
}

// expired reports whether the entry no longer affects any future attempt.
func (s *attemptState) expired(now time.Time, window time.Duration) bool {
	return now.Sub(s.windowStart) > window && now.Sub(s.lockedUntil) > window
}

// BackoffLimiter is an in-process AttemptLimiter. Use RedisAttemptLimiter
// when several instances share traffic. Expired entries are swept at most
// once per window.
type BackoffLimiter struct {
	policy    AttemptPolicy
	now       func() time.Time
	mu        sync.Mutex
	state     map[string]*attemptState
	lastSweep time.Time
}

type BackoffOption func(*BackoffLimiter)

func WithClock(now func() time.Time) BackoffOption {
	return func(l *BackoffLimiter) {
		l.now = now
	}
}

func NewBackoffLimiter(policy AttemptPolicy, opts ...BackoffOption) *BackoffLimiter {
	l := &BackoffLimiter{
		policy: policy.withDefaults(),
		now:    time.Now,
		state:  make(map[string]*attemptState),
	}
	for _, opt := range opts {
		opt(l)
	}
	l.lastSweep = l.now()
	return l
}

// Attempt counts the attempt up front. The attempt that reaches MaxAttempts
// is still allowed but locks the key for everyone after it; Reset lifts the
// lock when that attempt succeeds.
func (l *BackoffLimiter) Attempt(ctx context.Context, key string) (time.Duration, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	l.sweep(now)

	s, ok := l.state[key]
	if !ok {
		s = &attemptState{windowStart: now}
		l.state[key] = s
	}
	if remaining := s.lockedUntil.Sub(now); remaining > 0 {
		return remaining, ErrLocked
	}

	// Lockout history is forgotten after a full window without locks.
	if s.lockouts > 0 && now.Sub(s.lockedUntil) > l.policy.Window {
		s.lockouts = 0
	}
	if now.Sub(s.windowStart) > l.policy.Window {
		s.failures = 0
		s.windowStart = now
	}

	s.failures++
	if s.failures >= l.policy.MaxAttempts {
		s.lockouts++
		s.lockedUntil = now.Add(l.policy.Lockout(s.lockouts))
		s.failures = 0
		s.windowStart = now
	}
	return 0, nil
}

func (l *BackoffLimiter) Reset(ctx context.Context, key string) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	delete(l.state, key)
	return nil
}

func (l *BackoffLimiter) sweep(now time.Time) {
	if now.Sub(l.lastSweep) < l.policy.Window {
		return
	}
	l.lastSweep = now
	for key, s := range l.state {
		if s.expired(now, l.policy.Window) {
			delete(l.state, key)
		}
	}
}
