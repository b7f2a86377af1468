// Package circuitbreaker guards the hot leaderboard reads against a
// flapping Redis. When the projection keeps failing the breaker opens
// and reads degrade straight to PostgreSQL instead of waiting on
// timeouts.
package circuitbreaker

import (
	"context"
	"errors"
	"sync"
	"time"
)

// State of the breaker.
type State int

const (
	// StateClosed lets every request through.
	StateClosed State = iota
	// StateOpen rejects requests until the cooldown elapses.
	StateOpen
	// StateHalfOpen lets a probe quota through to test recovery.
	StateHalfOpen
)

func (s State) String() string {
	switch s {
	case StateClosed:
		return "closed"
	case StateOpen:
		return "open"
	case StateHalfOpen:
		return "half-open"
	}
	return "unknown"
}

var (
	// ErrCircuitOpen rejects a request while the breaker is open.
	ErrCircuitOpen = errors.New("circuit breaker is open")

	// ErrTooManyRequests rejects requests beyond the half-open quota.
	ErrTooManyRequests = errors.New("too many requests in half-open state")
)

// Config fixes the breaker thresholds at construction time.
type Config struct {
	// Name tags state-change notifications.
	Name string

	// FailureThreshold is how many consecutive failures trip the
	// breaker while closed.
	FailureThreshold int

	// SuccessThreshold is how many consecutive probe successes close
	// it again.
	SuccessThreshold int

	// Cooldown is how long the breaker stays open before probing.
	Cooldown time.Duration

	// HalfOpenQuota caps concurrent probes while half-open.
	HalfOpenQuota int

	// OnStateChange, when set, observes every transition.
	OnStateChange func(name string, from, to State)
}

// CircuitBreaker tracks consecutive outcomes and gates requests.
type CircuitBreaker struct {
	cfg Config

	mu          sync.Mutex
	state       State
	consecFails int
	consecOKs   int
	probes      int
	openedAt    time.Time
}

// New builds a breaker in the closed state. Zero thresholds get
// replaced with workable minimums.
func New(cfg Config) *CircuitBreaker {
	if cfg.FailureThreshold <= 0 {
		cfg.FailureThreshold = 5
	}
	if cfg.SuccessThreshold <= 0 {
		cfg.SuccessThreshold = 2
	}
	if cfg.Cooldown <= 0 {
		cfg.Cooldown = 30 * time.Second
	}
	if cfg.HalfOpenQuota <= 0 {
		cfg.HalfOpenQuota = 1
	}
	return &CircuitBreaker{cfg: cfg}
}

// CacheBreaker is the preset for the Redis leaderboard projection.
// It opens fast and recovers fast: every rejected read degrades to
// PostgreSQL anyway, so staying open too long only costs freshness.
func CacheBreaker(onStateChange func(name string, from, to State)) *CircuitBreaker {
	return New(Config{
		Name:             "leaderboard-cache",
		FailureThreshold: 3,
		SuccessThreshold: 1,
		Cooldown:         15 * time.Second,
		HalfOpenQuota:    1,
		OnStateChange:    onStateChange,
	})
}

// Execute runs fn if the breaker admits the request and folds the
// outcome into the state machine. Rejections return ErrCircuitOpen or
// ErrTooManyRequests without invoking fn.
func (cb *CircuitBreaker) Execute(ctx context.Context, fn func(context.Context) error) error {
	if err := cb.admit(); err != nil {
		return err
	}
	err := fn(ctx)
	cb.observe(err)
	return err
}

// State returns the current state.
func (cb *CircuitBreaker) State() State {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	return cb.state
}

func (cb *CircuitBreaker) admit() error {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	switch cb.state {
	case StateClosed:
		return nil
	case StateOpen:
		if time.Since(cb.openedAt) < cb.cfg.Cooldown {
			return ErrCircuitOpen
		}
		cb.transition(StateHalfOpen)
		cb.probes = 1
		return nil
	default: // StateHalfOpen
		if cb.probes >= cb.cfg.HalfOpenQuota {
			return ErrTooManyRequests
		}
		cb.probes++
		return nil
	}
}

func (cb *CircuitBreaker) observe(err error) {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	if err != nil {
		cb.consecFails++
		cb.consecOKs = 0
		switch cb.state {
		case StateClosed:
			if cb.consecFails >= cb.cfg.FailureThreshold {
				cb.trip()
			}
		case StateHalfOpen:
			// A failed probe reopens immediately.
			cb.trip()
		}
		return
	}

	cb.consecOKs++
	cb.consecFails = 0
	if cb.state == StateHalfOpen && cb.consecOKs >= cb.cfg.SuccessThreshold {
		cb.transition(StateClosed)
	}
}

func (cb *CircuitBreaker) trip() {
	cb.openedAt = time.Now()
	cb.transition(StateOpen)
}

func (cb *CircuitBreaker) transition(to State) {
	if cb.state == to {
		return
	}
	from := cb.state
	cb.state = to
	cb.consecFails = 0
	cb.consecOKs = 0
	cb.probes = 0

	if cb.cfg.OnStateChange != nil {
		cb.cfg.OnStateChange(cb.cfg.Name, from, to)
	}
}
