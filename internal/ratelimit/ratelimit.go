// Package ratelimit implements fixed-window request counting keyed by
// client identifier. Fixed windows trade boundary bursts for O(1) cost and
// no per-request bookkeeping beyond one counter, which is enough for abuse
// mitigation; this is not a hard security boundary and state does not
// survive a restart.
package ratelimit

import (
	"sync"
	"time"
)

// Config is one limiter's window/threshold pair.
type Config struct {
	Window time.Duration
	Max    int
}

// Result is the outcome of a single Check.
type Result struct {
	Allowed   bool
	Limit     int
	Remaining int
	ResetAt   time.Time
	// RetryAfter is the number of seconds until the window resets, rounded
	// up and never below one. It is computed against the limiter's own clock
	// at Check time. Only meaningful when Allowed is false.
	RetryAfter int
}

type bucket struct {
	count   int
	resetAt time.Time
}

// Limiter counts requests per key in fixed windows. The bucket table is
// shared across all request goroutines; a single mutex suffices because the
// critical section is O(1).
type Limiter struct {
	cfg Config
	now func() time.Time

	mu      sync.Mutex
	buckets map[string]*bucket
}

// Option configures a Limiter.
type Option func(*Limiter)

// WithClock overrides the time source, for deterministic tests.
func WithClock(fn func() time.Time) Option {
	return func(l *Limiter) {
		if fn != nil {
			l.now = fn
		}
	}
}

// New constructs a limiter for the given window/threshold.
func New(cfg Config, opts ...Option) *Limiter {
	if cfg.Window <= 0 {
		cfg.Window = time.Minute
	}
	if cfg.Max <= 0 {
		cfg.Max = 1
	}
	l := &Limiter{
		cfg:     cfg,
		now:     time.Now,
		buckets: make(map[string]*bucket),
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// Check records one request for key and reports whether it is allowed. The
// first request for a key, or the first after the window elapsed, starts a
// fresh window.
func (l *Limiter) Check(key string) Result {
	now := l.now()

	l.mu.Lock()
	defer l.mu.Unlock()

	b, ok := l.buckets[key]
	if !ok || now.After(b.resetAt) {
		b = &bucket{count: 1, resetAt: now.Add(l.cfg.Window)}
		l.buckets[key] = b
	} else {
		b.count++
	}

	remaining := l.cfg.Max - b.count
	if remaining < 0 {
		remaining = 0
	}
	return Result{
		Allowed:    b.count <= l.cfg.Max,
		Limit:      l.cfg.Max,
		Remaining:  remaining,
		ResetAt:    b.resetAt,
		RetryAfter: retryAfterSeconds(b.resetAt, now),
	}
}

func retryAfterSeconds(resetAt, now time.Time) int {
	secs := int((resetAt.Sub(now) + time.Second - 1) / time.Second)
	if secs < 1 {
		secs = 1
	}
	return secs
}

// Sweep drops buckets whose window has elapsed and returns how many were
// removed. Callers run it periodically to bound the table size.
func (l *Limiter) Sweep() int {
	now := l.now()

	l.mu.Lock()
	defer l.mu.Unlock()

	var removed int
	for key, b := range l.buckets {
		if now.After(b.resetAt) {
			delete(l.buckets, key)
			removed++
		}
	}
	return removed
}

// Len reports the number of live buckets.
func (l *Limiter) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.buckets)
}
