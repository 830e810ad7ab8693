package forge

import (
	"context"
	"fmt"
	"time"

	"github.com/forgeworks/workflowforge/internal/cachemanager"
	"github.com/forgeworks/workflowforge/internal/clock"
	"github.com/forgeworks/workflowforge/internal/log"
	"github.com/forgeworks/workflowforge/internal/resilience"
)

// ResilienceMiddleware retries a failed operation invocation per a
// resilience.Strategy, optionally behind a circuit breaker, and
// consults an idempotency cache keyed by execution and operation so a
// retried or resumed invocation that already produced output is not
// re-run.
type ResilienceMiddleware struct {
	strategy resilience.Strategy
	breaker  *resilience.CircuitBreaker
	cache    cachemanager.CacheManager[string, any]
	ttl      time.Duration
	clock    clock.Clock
}

// ResilienceMiddlewareOption configures a ResilienceMiddleware at
// construction.
type ResilienceMiddlewareOption func(*ResilienceMiddleware)

// WithCircuitBreaker installs a breaker guarding every wrapped
// invocation.
func WithCircuitBreaker(cb *resilience.CircuitBreaker) ResilienceMiddlewareOption {
	return func(m *ResilienceMiddleware) { m.breaker = cb }
}

// WithIdempotencyCache installs the output cache consulted before an
// operation is (re-)invoked, and the duration an entry stays valid.
func WithIdempotencyCache(cache cachemanager.CacheManager[string, any], ttl time.Duration) ResilienceMiddlewareOption {
	return func(m *ResilienceMiddleware) { m.cache = cache; m.ttl = ttl }
}

// NewResilienceMiddleware builds a ResilienceMiddleware. strategy may be
// nil, in which case the operation is invoked at most once (the
// idempotency cache, if installed, still applies). c defaults to the
// foundry's own Clock when nil.
func NewResilienceMiddleware(strategy resilience.Strategy, c clock.Clock, opts ...ResilienceMiddlewareOption) *ResilienceMiddleware {
	m := &ResilienceMiddleware{strategy: strategy, clock: c}
	for _, o := range opts {
		o(m)
	}
	return m
}

// BuildStrategy translates ResilienceOptions into a resilience.Strategy,
// returning nil when resilience is disabled or set to "none".
func BuildStrategy(opts ResilienceOptions) resilience.Strategy {
	if !opts.Enabled {
		return nil
	}
	base := time.Duration(opts.BaseDelaySeconds * float64(time.Second))
	max := time.Duration(opts.MaxDelaySeconds * float64(time.Second))
	min := time.Duration(opts.MinDelaySeconds * float64(time.Second))

	switch opts.Strategy {
	case ResilienceStrategyExponential:
		return resilience.ExponentialBackoff{MaxAttempts: opts.MaxAttempts, BaseDelay: base, MaxDelay: max, Jitter: opts.Jitter}
	case ResilienceStrategyRandom:
		return resilience.RandomInterval{MaxAttempts: opts.MaxAttempts, Min: min, Max: max}
	case ResilienceStrategyNone:
		return nil
	default:
		return resilience.FixedInterval{MaxAttempts: opts.MaxAttempts, Interval: base}
	}
}

// idempotencyKey identifies one operation invocation within one
// execution, stable across retries and resumes of the same checkpoint.
func idempotencyKey(f *Foundry, op Operation) string {
	return fmt.Sprintf("%s:%s", f.ExecutionID().String(), op.ID().String())
}

func (m *ResilienceMiddleware) Execute(ctx context.Context, op Operation, f *Foundry, input any, next Next) (any, error) {
	key := idempotencyKey(f, op)

	if m.cache != nil {
		if cached, ok := m.cache.Get(ctx, key); ok {
			f.Logger().Debug(log.CatResilience, "idempotency cache hit, skipping re-invocation", "operation", op.Name())
			return cached, nil
		}
	}

	call := func(ctx context.Context) (any, error) { return next(ctx, input) }
	if m.breaker != nil {
		wrapped := call
		call = func(ctx context.Context) (any, error) { return m.breaker.Execute(ctx, wrapped) }
	}

	c := m.clock
	if c == nil {
		c = f.Clock()
	}

	var out any
	var err error
	if m.strategy == nil {
		out, err = call(ctx)
	} else {
		out, err = resilience.Do(ctx, c, m.strategy, call)
	}
	if err != nil {
		return out, err
	}

	if m.cache != nil {
		m.cache.Set(ctx, key, out, m.ttl)
	}
	return out, nil
}
