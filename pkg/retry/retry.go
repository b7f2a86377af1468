// Package retry retries transient failures with exponential backoff
// and jitter. The recalculation pipeline uses it around chunk writes,
// where a momentary storage hiccup should not fail the whole pass.
package retry

import (
	"context"
	"errors"
	"math/rand"
	"time"
)

// PermanentError marks an error the loop must not retry.
type PermanentError struct {
	Err error
}

func (e *PermanentError) Error() string { return e.Err.Error() }
func (e *PermanentError) Unwrap() error { return e.Err }

// Permanent wraps err so Do returns it without further attempts.
func Permanent(err error) error {
	if err == nil {
		return nil
	}
	return &PermanentError{Err: err}
}

// Option adjusts the retry policy.
type Option func(*policy)

type policy struct {
	attempts     int
	initialDelay time.Duration
	maxDelay     time.Duration
	multiplier   float64
	jitter       float64
}

func defaultPolicy() policy {
	return policy{
		attempts:     3,
		initialDelay: 100 * time.Millisecond,
		maxDelay:     30 * time.Second,
		multiplier:   2.0,
		jitter:       0.1,
	}
}

// WithMaxAttempts sets the total attempt count, first try included.
func WithMaxAttempts(n int) Option {
	return func(p *policy) {
		if n > 0 {
			p.attempts = n
		}
	}
}

// WithInitialDelay sets the pause before the first retry.
func WithInitialDelay(d time.Duration) Option {
	return func(p *policy) {
		if d > 0 {
			p.initialDelay = d
		}
	}
}

// WithMaxDelay caps the backoff growth.
func WithMaxDelay(d time.Duration) Option {
	return func(p *policy) {
		if d > 0 {
			p.maxDelay = d
		}
	}
}

// Do runs op until it succeeds, the attempts are exhausted, the error
// is Permanent, or the context ends. The last error is returned.
func Do(ctx context.Context, op func(ctx context.Context) error, opts ...Option) error {
	p := defaultPolicy()
	for _, o := range opts {
		o(&p)
	}

	var lastErr error
	delay := p.initialDelay

	for attempt := 1; ; attempt++ {
		if err := ctx.Err(); err != nil {
			if lastErr != nil {
				return lastErr
			}
			return err
		}

		err := op(ctx)
		if err == nil {
			return nil
		}
		lastErr = err

		var perm *PermanentError
		if errors.As(err, &perm) {
			return perm.Err
		}
		if attempt >= p.attempts {
			return err
		}

		select {
		case <-ctx.Done():
			return lastErr
		case <-time.After(withJitter(delay, p.jitter)):
		}

		delay = time.Duration(float64(delay) * p.multiplier)
		if delay > p.maxDelay {
			delay = p.maxDelay
		}
	}
}

// withJitter spreads the delay by ±factor so parallel chunk workers do
// not hammer storage in lockstep.
func withJitter(d time.Duration, factor float64) time.Duration {
	if factor <= 0 {
		return d
	}
	spread := float64(d) * factor * (rand.Float64()*2 - 1)
	out := time.Duration(float64(d) + spread)
	if out < 0 {
		return 0
	}
	return out
}
