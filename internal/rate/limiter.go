// Package rate throttles the inbound events of a websocket connection.
package rate

import (
	"sync"
	"time"

	"github.com/benbjohnson/clock"
)

// Limiter allows at most limit events in any sliding window.
//
// Multiple goroutines may invoke methods on a Limiter simultaneously.
type Limiter struct {
	window time.Duration
	limit  int
	clock  clock.Clock

	mu     sync.Mutex
	events []time.Time // accepted events, oldest first
}

func NewLimiter(window time.Duration, limit int) *Limiter {
	return NewLimiterWithClock(window, limit, clock.New())
}

func NewLimiterWithClock(window time.Duration, limit int, clock clock.Clock) *Limiter {
	return &Limiter{
		window: window,
		limit:  limit,
		clock:  clock,
		events: make([]time.Time, 0, limit),
	}
}

// Allow records an event and reports whether it fits in the window.
// Rejected events are not recorded.
func (l *Limiter) Allow() bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.clock.Now()
	l.expire(now)

	if len(l.events) >= l.limit {
		return false
	}
	l.events = append(l.events, now)

	return true
}

// Remaining returns how many events would currently be allowed.
func (l *Limiter) Remaining() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.expire(l.clock.Now())
	return l.limit - len(l.events)
}

// RetryAfter returns the delay before the next event is allowed.
func (l *Limiter) RetryAfter() time.Duration {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.clock.Now()
	l.expire(now)

	if len(l.events) < l.limit {
		return 0
	}
	return l.events[0].Add(l.window).Sub(now)
}

// expire drops the events older than the window.
func (l *Limiter) expire(now time.Time) {
	start := now.Add(-l.window)
	i := 0
	for i < len(l.events) && !l.events[i].After(start) {
		i++
	}
	if i > 0 {
		l.events = append(l.events[:0], l.events[i:]...)
	}
}
