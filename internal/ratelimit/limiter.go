// Package ratelimit provides fixed-window admission control for outbound
// dispatch. The admission check and the usage increment are separate calls so
// suppressed or failed sends never consume budget.
package ratelimit

import (
	"context"
	"sync"
	"time"

	"notify-dispatch/internal/common/errors"
)

// Limiter gates the process-wide dispatch rate. Allow reports whether one
// more message may be sent in the current window; Record must be called
// exactly once per successfully dispatched message.
type Limiter interface {
	Allow(ctx context.Context) error
	Record(ctx context.Context) error
}

// FixedWindow is the in-process default Limiter: a single counter reset at
// fixed time boundaries, rolled lazily on each call. Safe for concurrent use.
type FixedWindow struct {
	mu          sync.Mutex
	ceiling     int
	window      time.Duration
	count       int
	windowStart time.Time
	now         func() time.Time
}

// NewFixedWindow creates a limiter admitting up to ceiling messages per
// window.
func NewFixedWindow(ceiling int, window time.Duration) *FixedWindow {
	return &FixedWindow{
		ceiling: ceiling,
		window:  window,
		now:     time.Now,
	}
}

// WithClock overrides the time source, for tests.
func (l *FixedWindow) WithClock(now func() time.Time) *FixedWindow {
	l.now = now
	return l
}

// roll resets the counter when the window has elapsed. Caller holds the lock.
func (l *FixedWindow) roll() {
	now := l.now()
	if now.Sub(l.windowStart) >= l.window {
		l.count = 0
		l.windowStart = now
	}
}

func (l *FixedWindow) Allow(_ context.Context) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	l.roll()
	if l.count >= l.ceiling {
		return errors.NewRateLimitExceededError(l.ceiling)
	}
	return nil
}

func (l *FixedWindow) Record(_ context.Context) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	l.roll()
	l.count++
	return nil
}
