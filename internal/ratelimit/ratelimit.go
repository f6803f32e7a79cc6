// Package ratelimit caps how many external classification calls the
// service spends per window.
package ratelimit

import (
	"fmt"
	"log/slog"
	"sync"
	"time"
)

// Limiter is a simple counting budget with a periodic reset. A max of 0
// means unlimited.
type Limiter struct {
	mu        sync.Mutex
	used      int
	max       int
	window    time.Duration
	resetTime time.Time
}

func New(max int, window time.Duration) *Limiter {
	if window <= 0 {
		window = 24 * time.Hour
	}
	return &Limiter{
		max:       max,
		window:    window,
		resetTime: time.Now().Add(window),
	}
}

// Allow reports whether budget remains without consuming any.
func (l *Limiter) Allow() bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	l.checkReset()
	return l.max <= 0 || l.used < l.max
}

// Use consumes one unit of budget.
func (l *Limiter) Use() error {
	l.mu.Lock()
	defer l.mu.Unlock()

	l.checkReset()
	if l.max > 0 && l.used >= l.max {
		return fmt.Errorf("escalation budget exhausted (%d/%d)", l.used, l.max)
	}
	l.used++
	return nil
}

// Stats returns the current budget usage.
func (l *Limiter) Stats() map[string]interface{} {
	l.mu.Lock()
	defer l.mu.Unlock()

	l.checkReset()
	return map[string]interface{}{
		"escalations_used":  l.used,
		"escalations_limit": l.max,
		"reset_time":        l.resetTime.Format(time.RFC3339),
	}
}

func (l *Limiter) checkReset() {
	if time.Now().After(l.resetTime) {
		slog.Info("resetting escalation budget", "used", l.used, "limit", l.max)
		l.used = 0
		l.resetTime = time.Now().Add(l.window)
	}
}
