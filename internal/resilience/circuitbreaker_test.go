package resilience

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestCircuitBreakerOpensAfterThreshold(t *testing.T) {
	var changes []BreakerStateChange
	cb := NewCircuitBreaker(CircuitBreakerConfig{
		Name:              "test",
		FailureThreshold:  2,
		MinimumThroughput: 2,
		SamplingDuration:  time.Minute,
		BreakDuration:     50 * time.Millisecond,
		OnStateChange:     func(c BreakerStateChange) { changes = append(changes, c) },
	})

	boom := errors.New("boom")
	failing := func(ctx context.Context) (any, error) { return nil, boom }

	require.Equal(t, StateClosed, cb.State())

	_, err := cb.Execute(context.Background(), failing)
	require.ErrorIs(t, err, boom)
	_, err = cb.Execute(context.Background(), failing)
	require.ErrorIs(t, err, boom)

	require.Equal(t, StateOpen, cb.State())
	require.NotEmpty(t, changes)
	require.Equal(t, StateOpen, changes[len(changes)-1].Current)

	_, err = cb.Execute(context.Background(), func(ctx context.Context) (any, error) {
		t.Fatal("fn must not run while circuit is open")
		return nil, nil
	})
	require.ErrorIs(t, err, ErrCircuitOpen)
}

func TestCircuitBreakerHalfOpenRecovers(t *testing.T) {
	cb := NewCircuitBreaker(CircuitBreakerConfig{
		Name:              "test",
		FailureThreshold:  1,
		MinimumThroughput: 1,
		SamplingDuration:  time.Minute,
		BreakDuration:     10 * time.Millisecond,
	})

	boom := errors.New("boom")
	_, err := cb.Execute(context.Background(), func(ctx context.Context) (any, error) { return nil, boom })
	require.ErrorIs(t, err, boom)
	require.Equal(t, StateOpen, cb.State())

	time.Sleep(20 * time.Millisecond)

	out, err := cb.Execute(context.Background(), func(ctx context.Context) (any, error) { return "recovered", nil })
	require.NoError(t, err)
	require.Equal(t, "recovered", out)
	require.Equal(t, StateClosed, cb.State())
}
