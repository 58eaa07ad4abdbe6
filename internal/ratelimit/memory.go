package ratelimit

import (
	"context"
	"sync"
	"time"
)

const sweepThreshold = 10000

type counter struct {
	count   int64
	resetAt time.Time
}

type MemoryLimiter struct {
	window Window
	now    func() time.Time

	mu       sync.Mutex
	counters map[string]*counter
}

func NewMemoryLimiter(window Window) (*MemoryLimiter, error) {
	if err := window.Validate(); err != nil {
		return nil, err
	}
	return &MemoryLimiter{
		window:   window,
		now:      time.Now,
		counters: make(map[string]*counter),
	}, nil
}

// WithClock replaces the limiter's time source.
func (l *MemoryLimiter) WithClock(now func() time.Time) *MemoryLimiter {
	l.now = now
	return l
}

func (l *MemoryLimiter) Allow(_ context.Context, key string) (Result, error) {
	now := l.now()

	l.mu.Lock()
	defer l.mu.Unlock()

	if len(l.counters) >= sweepThreshold {
		l.sweep(now)
	}

	c, ok := l.counters[key]
	if !ok || !now.Before(c.resetAt) {
		c = &counter{resetAt: now.Add(l.window.Period)}
		l.counters[key] = c
	}
	c.count++

	return Result{
		Window:  l.window.Name,
		Count:   c.count,
		Limit:   l.window.Limit,
		ResetAt: c.resetAt,
		Allowed: c.count <= l.window.Limit,
	}, nil
}

func (l *MemoryLimiter) sweep(now time.Time) {
	for key, c := range l.counters {
		if !now.Before(c.resetAt) {
			delete(l.counters, key)
		}
	}
}
