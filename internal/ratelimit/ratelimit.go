// Copyright (c) 2026 WebNova Team
// WebNova Vault - sovereign credential vault
// This source code is licensed under the MIT license found in the LICENSE file.

// Package ratelimit throttles authentication attempts per caller.
package ratelimit

import (
	"sync"
	"time"

	"golang.org/x/time/rate"
)

type entry struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// Limiter hands out token buckets keyed by caller identity. Keys that stay
// quiet are dropped so the map does not grow with every address ever seen.
type Limiter struct {
	mu      sync.Mutex
	entries map[string]*entry
	limit   rate.Limit
	burst   int
	maxIdle time.Duration
	now     func() time.Time
}

// New builds a Limiter allowing perMinute sustained attempts with the given
// burst per key.
func New(perMinute, burst int) *Limiter {
	return &Limiter{
		entries: make(map[string]*entry),
		limit:   rate.Limit(float64(perMinute) / 60.0),
		burst:   burst,
		maxIdle: 10 * time.Minute,
		now:     time.Now,
	}
}

// Allow reports whether one attempt for key may proceed now. When throttled
// it returns how long the caller should wait before retrying.
func (l *Limiter) Allow(key string) (bool, time.Duration) {
	l.mu.Lock()
	e, ok := l.entries[key]
	if !ok {
		e = &entry{limiter: rate.NewLimiter(l.limit, l.burst)}
		l.entries[key] = e
	}
	e.lastSeen = l.now()
	if len(l.entries) > 1024 {
		l.evictIdle()
	}
	l.mu.Unlock()

	res := e.limiter.Reserve()
	delay := res.Delay()
	if delay == 0 {
		return true, 0
	}
	res.Cancel()
	return false, delay
}

// evictIdle drops keys not seen within maxIdle. Caller holds l.mu.
func (l *Limiter) evictIdle() {
	cutoff := l.now().Add(-l.maxIdle)
	for key, e := range l.entries {
		if e.lastSeen.Before(cutoff) {
			delete(l.entries, key)
		}
	}
}
