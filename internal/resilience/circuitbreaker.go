package resilience

import (
	"context"
	"errors"
	"time"

	"github.com/sony/gobreaker"
)

// BreakerState mirrors gobreaker's three states under engine-native names.
type BreakerState string

const (
	StateClosed   BreakerState = "closed"
	StateOpen     BreakerState = "open"
	StateHalfOpen BreakerState = "half_open"
)

// ErrCircuitOpen is returned when a call is rejected because the breaker
// is open.
var ErrCircuitOpen = errors.New("resilience: circuit open")

// BreakerStateChange is emitted whenever the circuit transitions.
type BreakerStateChange struct {
	Previous  BreakerState
	Current   BreakerState
	Reason    string
	Timestamp time.Time
}

// CircuitBreaker wraps github.com/sony/gobreaker, translating its state
// names and counters into the engine's vocabulary.
type CircuitBreaker struct {
	cb       *gobreaker.CircuitBreaker
	onChange func(BreakerStateChange)
}

// CircuitBreakerConfig configures a CircuitBreaker.
type CircuitBreakerConfig struct {
	Name              string
	FailureThreshold  uint32
	MinimumThroughput uint32
	SamplingDuration   time.Duration
	BreakDuration      time.Duration
	OnStateChange      func(BreakerStateChange)
}

// NewCircuitBreaker builds a CircuitBreaker from cfg.
func NewCircuitBreaker(cfg CircuitBreakerConfig) *CircuitBreaker {
	wrapper := &CircuitBreaker{onChange: cfg.OnStateChange}

	settings := gobreaker.Settings{
		Name:        cfg.Name,
		Interval:    cfg.SamplingDuration,
		Timeout:     cfg.BreakDuration,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.Requests >= cfg.MinimumThroughput && counts.ConsecutiveFailures >= cfg.FailureThreshold
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			if wrapper.onChange == nil {
				return
			}
			wrapper.onChange(BreakerStateChange{
				Previous:  translateState(from),
				Current:   translateState(to),
				Reason:    "threshold",
				Timestamp: time.Now(),
			})
		},
	}

	wrapper.cb = gobreaker.NewCircuitBreaker(settings)
	return wrapper
}

func translateState(s gobreaker.State) BreakerState {
	switch s {
	case gobreaker.StateOpen:
		return StateOpen
	case gobreaker.StateHalfOpen:
		return StateHalfOpen
	default:
		return StateClosed
	}
}

// State returns the breaker's current state.
func (c *CircuitBreaker) State() BreakerState {
	return translateState(c.cb.State())
}

// Execute runs fn through the breaker. If the breaker is open, fn is not
// invoked and ErrCircuitOpen is returned.
func (c *CircuitBreaker) Execute(ctx context.Context, fn func(ctx context.Context) (any, error)) (any, error) {
	out, err := c.cb.Execute(func() (interface{}, error) {
		return fn(ctx)
	})
	if err != nil && errors.Is(err, gobreaker.ErrOpenState) {
		return nil, ErrCircuitOpen
	}
	return out, err
}
