package middleware

import (
	"context"
	"errors"
	"net/http"
	"sync"
	"time"

	"github.com/singlebase/singlebase-go/core"
)

// CircuitState represents the state of a circuit breaker.
type CircuitState int

const (
	CircuitClosed   CircuitState = iota // Normal operation.
	CircuitOpen                         // Failing, reject calls.
	CircuitHalfOpen                     // Testing if recovered.
)

// String returns the string representation of a CircuitState.
func (s CircuitState) String() string {
	switch s {
	case CircuitClosed:
		return "closed"
	case CircuitOpen:
		return "open"
	case CircuitHalfOpen:
		return "half-open"
	default:
		return "unknown"
	}
}

// CircuitBreakerConfig configures circuit breaker behavior.
type CircuitBreakerConfig struct {
	FailureThreshold int           // Consecutive failures before opening.
	SuccessThreshold int           // Successes in half-open to close.
	OpenDuration     time.Duration // How long to stay open.
}

// DefaultCircuitBreakerConfig returns sensible circuit breaker defaults.
func DefaultCircuitBreakerConfig() CircuitBreakerConfig {
	return CircuitBreakerConfig{
		FailureThreshold: 5,
		SuccessThreshold: 2,
		OpenDuration:     30 * time.Second,
	}
}

// ErrCircuitOpen is returned while the breaker rejects calls. The client
// reports it as a transport error.
var ErrCircuitOpen = errors.New("circuit breaker open: too many failures")

// CircuitBreaker creates middleware that stops sending requests after
// repeated failures. Transport errors and 5xx responses count as failures;
// 4xx responses are the caller's problem and do not.
// Rejected calls fail fast; they are not queued or retried.
func CircuitBreaker(config CircuitBreakerConfig) core.Middleware {
	return NewBreaker(config).Middleware()
}

// Breaker is a circuit breaker whose state can be inspected.
type Breaker struct {
	config CircuitBreakerConfig
	now    func() time.Time

	mu          sync.Mutex
	state       CircuitState
	failures    int
	successes   int
	lastFailure time.Time
}

// NewBreaker creates a closed Breaker.
func NewBreaker(config CircuitBreakerConfig) *Breaker {
	def := DefaultCircuitBreakerConfig()
	if config.FailureThreshold <= 0 {
		config.FailureThreshold = def.FailureThreshold
	}
	if config.SuccessThreshold <= 0 {
		config.SuccessThreshold = def.SuccessThreshold
	}
	if config.OpenDuration <= 0 {
		config.OpenDuration = def.OpenDuration
	}
	return &Breaker{config: config, now: time.Now}
}

// State returns the current state.
func (b *Breaker) State() CircuitState {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.advance()
	return b.state
}

// Middleware returns the breaker as client middleware.
func (b *Breaker) Middleware() core.Middleware {
	return func(next core.SendFunc) core.SendFunc {
		return func(ctx context.Context, call *core.Call) (*core.RawResponse, error) {
			b.mu.Lock()
			b.advance()
			if b.state == CircuitOpen {
				b.mu.Unlock()
				return nil, ErrCircuitOpen
			}
			b.mu.Unlock()

			resp, err := next(ctx, call)

			// The caller giving up says nothing about backend health.
			if errors.Is(err, context.Canceled) {
				return resp, err
			}
			b.record(err != nil || resp == nil || resp.StatusCode >= http.StatusInternalServerError)
			return resp, err
		}
	}
}

// advance moves an open breaker to half-open once OpenDuration has passed.
// Callers hold b.mu.
func (b *Breaker) advance() {
	if b.state == CircuitOpen && b.now().Sub(b.lastFailure) > b.config.OpenDuration {
		b.state = CircuitHalfOpen
		b.successes = 0
	}
}

func (b *Breaker) record(failed bool) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if failed {
		b.failures++
		b.lastFailure = b.now()
		if b.state == CircuitHalfOpen || b.failures >= b.config.FailureThreshold {
			b.state = CircuitOpen
		}
		return
	}

	if b.state == CircuitHalfOpen {
		b.successes++
		if b.successes >= b.config.SuccessThreshold {
			b.state = CircuitClosed
			b.failures = 0
		}
		return
	}
	b.failures = 0
}
