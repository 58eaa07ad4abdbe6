// Package ratelimit implements fixed-window counters. The Redis limiter is the
// source of truth when several instances run; the memory limiter only bounds
// a single process.
package ratelimit

import (
	"context"
	"errors"
	"time"
)

var ErrInvalidWindow = errors.New("rate limit window needs a positive limit and period")

type Window struct {
	Name   string
	Limit  int64
	Period time.Duration
}

func (w Window) Validate() error {
	if w.Limit <= 0 || w.Period <= 0 {
		return ErrInvalidWindow
	}
	return nil
}

type Result struct {
	Window  string
	Count   int64
	Limit   int64
	ResetAt time.Time
	Allowed bool
}

// RetryAfter is how long the caller should wait before the window resets.
func (r Result) RetryAfter(now time.Time) time.Duration {
	if !r.ResetAt.After(now) {
		return 0
	}
	return r.ResetAt.Sub(now)
}

type Limiter interface {
	// Allow counts one hit against key and reports whether it is within the
	// window's limit. The first hit after the window elapsed starts a new
	// window with count 1.
	Allow(ctx context.Context, key string) (Result, error)
}
