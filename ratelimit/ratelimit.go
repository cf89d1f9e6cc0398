// Package ratelimit provides sliding-window admission control for a single
// search engine.
package ratelimit

import (
	"sync"
	"time"
)

// Limiter admits at most maxRequests callers per rolling window. State is
// local to one engine instance and guarded by a single mutex.
type Limiter struct {
	mu          sync.Mutex
	maxRequests int
	window      time.Duration
	admissions  []time.Time

	now   func() time.Time
	sleep func(time.Duration)
}

// New builds a limiter admitting maxRequests per window. A non-positive
// maxRequests defaults to 1; a non-positive window defaults to one second.
func New(maxRequests int, window time.Duration) *Limiter {
	if maxRequests <= 0 {
		maxRequests = 1
	}
	if window <= 0 {
		window = time.Second
	}
	return &Limiter{
		maxRequests: maxRequests,
		window:      window,
		now:         time.Now,
		sleep:       time.Sleep,
	}
}

// Acquire blocks until admission is safe. Concurrent callers may be admitted
// in any order once the window has room.
func (l *Limiter) Acquire() {
	for {
		l.mu.Lock()
		now := l.now()
		l.purgeLocked(now)

		if len(l.admissions) < l.maxRequests {
			l.admissions = append(l.admissions, now)
			l.mu.Unlock()
			return
		}

		// Window is full: wait out the oldest admission, then re-check.
		wait := l.window - now.Sub(l.admissions[0])
		l.mu.Unlock()

		if wait > 0 {
			l.sleep(wait)
		}
	}
}

// Pending reports how many admissions are currently inside the window.
func (l *Limiter) Pending() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.purgeLocked(l.now())
	return len(l.admissions)
}

func (l *Limiter) purgeLocked(now time.Time) {
	cutoff := now.Add(-l.window)
	keep := l.admissions[:0]
	for _, ts := range l.admissions {
		if ts.After(cutoff) {
			keep = append(keep, ts)
		}
	}
	l.admissions = keep
}
