// Package ratelimit is the per-user write gate consulted before likes,
// replies and other mutating actions.
package ratelimit

import (
	"sync"
	"time"
)

type Limiter struct {
	mu      sync.Mutex
	buckets map[string][]time.Time
}

func NewLimiter() *Limiter {
	return &Limiter{
		buckets: map[string][]time.Time{},
	}
}

type Result struct {
	Allowed   bool
	Limit     int
	Remaining int
	ResetAt   time.Time
}

// Allow records a hit for key if fewer than limit hits fall inside window.
// A non-positive limit disables the gate.
func (l *Limiter) Allow(key string, limit int, window time.Duration, now time.Time) Result {
	l.mu.Lock()
	defer l.mu.Unlock()

	if limit <= 0 {
		return Result{Allowed: true}
	}
	cutoff := now.Add(-window)
	history := l.buckets[key]
	trimmed := history[:0]
	for _, ts := range history {
		if !ts.Before(cutoff) {
			trimmed = append(trimmed, ts)
		}
	}
	history = trimmed

	result := Result{
		Allowed: len(history) < limit,
		Limit:   limit,
	}
	if !result.Allowed {
		result.ResetAt = history[0].Add(window)
		l.buckets[key] = history
		return result
	}

	history = append(history, now)
	l.buckets[key] = history
	result.Remaining = limit - len(history)
	result.ResetAt = history[0].Add(window)
	return result
}

// Prune drops keys with no hits inside window.
func (l *Limiter) Prune(window time.Duration, now time.Time) int {
	l.mu.Lock()
	defer l.mu.Unlock()

	cutoff := now.Add(-window)
	removed := 0
	for key, history := range l.buckets {
		if len(history) == 0 || history[len(history)-1].Before(cutoff) {
			delete(l.buckets, key)
			removed++
		}
	}
	return removed
}
