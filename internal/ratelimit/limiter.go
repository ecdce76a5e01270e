// Package ratelimit gates engine submissions with per-engine rolling
// minute and day windows.
package ratelimit

import (
	"sync"
	"time"
)

// Window lengths for the two rolling counters.
const (
	minuteWindow = time.Minute
	dayWindow    = 24 * time.Hour
)

// Caps holds the submission caps for one engine. A zero cap disables
// that window.
type Caps struct {
	PerMinute int
	PerDay    int
}

// Limiter tracks successful submissions per engine over sliding minute
// and day windows. Allow is checked before a submission; Consume is
// called only after the adapter call succeeded, so failed calls never
// burn budget. Safe for concurrent use.
type Limiter struct {
	mu     sync.Mutex
	caps   map[string]Caps
	events map[string][]time.Time
	now    func() time.Time
}

// New creates a limiter with the given per-engine caps.
func New(caps map[string]Caps) *Limiter {
	return &Limiter{
		caps:   caps,
		events: make(map[string][]time.Time),
		now:    time.Now,
	}
}

// WithClock overrides the time source, for tests.
func (l *Limiter) WithClock(now func() time.Time) *Limiter {
	l.now = now
	return l
}

// Allow reports whether a submission for the engine fits within both
// windows right now. Engines without configured caps are unlimited.
func (l *Limiter) Allow(engine string) bool {
	return l.AllowN(engine, 1)
}

// AllowN reports whether n submissions for the engine fit within both
// windows right now, used for server-side batch calls that consume
// several units at once.
func (l *Limiter) AllowN(engine string, n int) bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	caps, ok := l.caps[engine]
	if !ok {
		return true
	}

	now := l.now()
	events := l.prune(engine, now)

	if caps.PerMinute > 0 && countSince(events, now.Add(-minuteWindow))+n > caps.PerMinute {
		return false
	}
	if caps.PerDay > 0 && len(events)+n > caps.PerDay {
		return false
	}

	return true
}

// Consume records one successful submission for the engine.
func (l *Limiter) Consume(engine string) {
	l.ConsumeN(engine, 1)
}

// ConsumeN records n successful submissions for the engine.
func (l *Limiter) ConsumeN(engine string, n int) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if _, ok := l.caps[engine]; !ok {
		return
	}

	now := l.now()
	events := l.prune(engine, now)
	for i := 0; i < n; i++ {
		events = append(events, now)
	}
	l.events[engine] = events
}

// Remaining returns how many submissions the engine has left in the
// minute and day windows. Unlimited engines report -1 for both.
func (l *Limiter) Remaining(engine string) (perMinute, perDay int) {
	l.mu.Lock()
	defer l.mu.Unlock()

	caps, ok := l.caps[engine]
	if !ok {
		return -1, -1
	}

	now := l.now()
	events := l.prune(engine, now)

	perMinute = -1
	if caps.PerMinute > 0 {
		perMinute = max(0, caps.PerMinute-countSince(events, now.Add(-minuteWindow)))
	}
	perDay = -1
	if caps.PerDay > 0 {
		perDay = max(0, caps.PerDay-len(events))
	}

	return perMinute, perDay
}

// prune drops events outside the day window (the longest one tracked)
// and returns the surviving slice. Caller holds the lock.
func (l *Limiter) prune(engine string, now time.Time) []time.Time {
	events := l.events[engine]
	cutoff := now.Add(-dayWindow)

	keep := 0
	for keep < len(events) && !events[keep].After(cutoff) {
		keep++
	}
	if keep > 0 {
		events = append(events[:0:0], events[keep:]...)
		l.events[engine] = events
	}

	return events
}

// countSince counts events strictly after the cutoff. Events are
// appended in time order, so scan from the tail.
func countSince(events []time.Time, cutoff time.Time) int {
	count := 0
	for i := len(events) - 1; i >= 0; i-- {
		if !events[i].After(cutoff) {
			break
		}
		count++
	}
	return count
}
