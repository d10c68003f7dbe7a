package backend

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/pitabwire/staffdesk/internal/config"
)

// ErrCircuitOpen is returned by Allow while the breaker rejects calls.
var ErrCircuitOpen = errors.New("backend: circuit breaker is open")

// BreakerState represents the current state of a circuit breaker.
type BreakerState int

const (
	// BreakerClosed lets every call through and counts failures.
	BreakerClosed BreakerState = iota
	// BreakerHalfOpen lets trial calls through.
	BreakerHalfOpen
	// BreakerOpen rejects every call until the cool-down elapses.
	BreakerOpen
)

func (s BreakerState) String() string {
	switch s {
	case BreakerClosed:
		return "closed"
	case BreakerHalfOpen:
		return "half-open"
	case BreakerOpen:
		return "open"
	default:
		return "unknown"
	}
}

// minErrorRateSamples is the minimum number of calls in a window before the
// error rate is evaluated.
const minErrorRateSamples = 10

// CircuitBreaker guards the backend. It trips on consecutive failures or on
// the error rate within a tumbling window, and is safe for concurrent use.
type CircuitBreaker struct {
	mu    sync.Mutex
	cfg   config.CircuitBreakerConfig
	state BreakerState
	now   func() time.Time

	consecutiveFailures int
	trialSuccesses      int
	openedAt            time.Time

	windowStart    time.Time
	windowTotal    int
	windowFailures int

	onChange func(BreakerState)
}

// NewCircuitBreaker creates a breaker. Zero thresholds fall back to 5
// failures, 2 trial successes and a 30s cool-down. onChange, when non-nil, is
// called with the new state on every transition, with the lock held.
func NewCircuitBreaker(cfg config.CircuitBreakerConfig, onChange func(BreakerState)) *CircuitBreaker {
	if cfg.FailureThreshold < 1 {
		cfg.FailureThreshold = 5
	}
	if cfg.SuccessThreshold < 1 {
		cfg.SuccessThreshold = 2
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Second
	}
	cb := &CircuitBreaker{
		cfg:      cfg,
		state:    BreakerClosed,
		now:      time.Now,
		onChange: onChange,
	}
	cb.windowStart = cb.now()
	return cb
}

// Allow returns nil when a call may proceed and ErrCircuitOpen otherwise.
func (cb *CircuitBreaker) Allow() error {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	cb.expireOpen()
	if cb.state == BreakerOpen {
		return ErrCircuitOpen
	}
	return nil
}

// RecordSuccess records a call that reached the backend and was answered.
func (cb *CircuitBreaker) RecordSuccess() {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	switch cb.state {
	case BreakerClosed:
		cb.consecutiveFailures = 0
		cb.countWindow(false)
	case BreakerHalfOpen:
		cb.trialSuccesses++
		if cb.trialSuccesses >= cb.cfg.SuccessThreshold {
			cb.transition(BreakerClosed)
		}
	}
}

// RecordFailure records a call that failed for infrastructure reasons.
func (cb *CircuitBreaker) RecordFailure() {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	switch cb.state {
	case BreakerClosed:
		cb.consecutiveFailures++
		cb.countWindow(true)
		if cb.consecutiveFailures >= cb.cfg.FailureThreshold || cb.errorRateExceeded() {
			cb.transition(BreakerOpen)
		}
	case BreakerHalfOpen:
		cb.transition(BreakerOpen)
	}
}

// State returns the current breaker state.
func (cb *CircuitBreaker) State() BreakerState {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	cb.expireOpen()
	return cb.state
}

// HealthCheck reports the backend as unhealthy while the breaker is open.
func (cb *CircuitBreaker) HealthCheck(context.Context) error {
	if cb.State() == BreakerOpen {
		return ErrCircuitOpen
	}
	return nil
}

// expireOpen moves Open to HalfOpen once the cool-down has elapsed. Must be
// called with the lock held.
func (cb *CircuitBreaker) expireOpen() {
	if cb.state == BreakerOpen && cb.now().Sub(cb.openedAt) > cb.cfg.Timeout {
		cb.transition(BreakerHalfOpen)
	}
}

// transition switches state and resets the counters that belong to the old
// state. Must be called with the lock held.
func (cb *CircuitBreaker) transition(to BreakerState) {
	cb.state = to
	cb.trialSuccesses = 0
	switch to {
	case BreakerOpen:
		cb.openedAt = cb.now()
	case BreakerClosed:
		cb.consecutiveFailures = 0
	}
	cb.resetWindow()
	if cb.onChange != nil {
		cb.onChange(to)
	}
}

// countWindow tracks a call in the tumbling window. Must be called with the
// lock held.
func (cb *CircuitBreaker) countWindow(failed bool) {
	if cb.cfg.ErrorRateWindow <= 0 {
		return
	}
	if cb.now().Sub(cb.windowStart) > cb.cfg.ErrorRateWindow {
		cb.resetWindow()
	}
	cb.windowTotal++
	if failed {
		cb.windowFailures++
	}
}

func (cb *CircuitBreaker) resetWindow() {
	cb.windowStart = cb.now()
	cb.windowTotal = 0
	cb.windowFailures = 0
}

func (cb *CircuitBreaker) errorRateExceeded() bool {
	if cb.cfg.ErrorRateThreshold <= 0 || cb.cfg.ErrorRateWindow <= 0 {
		return false
	}
	if cb.windowTotal < minErrorRateSamples {
		return false
	}
	return float64(cb.windowFailures)/float64(cb.windowTotal) >= cb.cfg.ErrorRateThreshold
}
