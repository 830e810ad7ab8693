package forge

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/forgeworks/workflowforge/internal/audit"
	"github.com/forgeworks/workflowforge/internal/clock"
	"github.com/forgeworks/workflowforge/internal/validation"
)

func TestMiddlewareOrderingOutermostFirst(t *testing.T) {
	var order []string

	record := func(name string) Middleware {
		return MiddlewareFunc(func(ctx context.Context, op Operation, f *Foundry, input any, next Next) (any, error) {
			order = append(order, name+".before")
			out, err := next(ctx, input)
			order = append(order, name+".after")
			return out, err
		})
	}

	f := NewTestFoundry()
	require.NoError(t, f.AddMiddleware(record("A")))
	require.NoError(t, f.AddMiddleware(record("B")))
	require.NoError(t, f.AddMiddleware(record("C")))

	op := NewFunc("op", func(ctx context.Context, input any, f *Foundry) (any, error) {
		order = append(order, "op")
		return nil, nil
	})

	wf := NewBuilder("wf").AddOperation(op).Build()
	s, err := CreateSmith(DefaultOptions())
	require.NoError(t, err)

	require.NoError(t, s.ForgeAsync(context.Background(), wf, f))

	require.Equal(t, []string{"A.before", "B.before", "C.before", "op", "C.after", "B.after", "A.after"}, order)
}

func TestTimingMiddlewareRecordsDuration(t *testing.T) {
	fc := clock.NewFake(clock.RealClock{}.Now())
	f := NewTestFoundry(WithClock(fc))

	require.NoError(t, f.AddMiddleware(NewTimingMiddleware(TimingOptions{Enabled: true, IncludeDetailedTimings: true})))

	op := NewFunc("slow", func(ctx context.Context, input any, f *Foundry) (any, error) {
		_ = f.Clock().Sleep(ctx, 0)
		return nil, nil
	})
	wf := NewBuilder("wf").AddOperation(op).Build()
	s, err := CreateSmith(DefaultOptions())
	require.NoError(t, err)

	require.NoError(t, s.ForgeAsync(context.Background(), wf, f))

	_, ok := f.Properties().Get(PropTimingStart)
	require.True(t, ok)
	_, ok = f.Properties().Get(PropTimingDuration)
	require.True(t, ok)
	_, ok = f.Properties().Get(PropTimingDurationTicks)
	require.True(t, ok)
}

func TestTimingMiddlewareMarksFailure(t *testing.T) {
	f := NewTestFoundry()
	require.NoError(t, f.AddMiddleware(NewTimingMiddleware(TimingOptions{Enabled: true})))

	boom := errors.New("boom")
	op := NewFunc("fails", func(ctx context.Context, input any, f *Foundry) (any, error) { return nil, boom })
	wf := NewBuilder("wf").AddOperation(op).Build()
	s, err := CreateSmith(DefaultOptions())
	require.NoError(t, err)

	err = s.ForgeAsync(context.Background(), wf, f)
	require.Error(t, err)

	failed, ok := f.Properties().Get(PropTimingFailed)
	require.True(t, ok)
	require.Equal(t, true, failed)
}

func TestAuditMiddlewareRecordsStartedAndCompleted(t *testing.T) {
	provider := audit.NewInMemoryProvider()
	f := NewTestFoundry()
	require.NoError(t, f.AddMiddleware(NewAuditMiddleware(provider, AuditOptions{Enabled: true})))

	op := NewFunc("audited", func(ctx context.Context, input any, f *Foundry) (any, error) { return "ok", nil })
	wf := NewBuilder("wf").AddOperation(op).Build()
	s, err := CreateSmith(DefaultOptions())
	require.NoError(t, err)

	require.NoError(t, s.ForgeAsync(context.Background(), wf, f))

	entries := provider.Entries()
	require.Len(t, entries, 2)
	require.Equal(t, audit.Started, entries[0].EventType)
	require.Equal(t, audit.Completed, entries[1].EventType)
}

type alwaysFails struct{}

func (alwaysFails) Record(ctx context.Context, entry audit.Entry) error {
	return errors.New("sink unavailable")
}

func TestAuditMiddlewareSwallowsRecordFailure(t *testing.T) {
	f := NewTestFoundry()
	require.NoError(t, f.AddMiddleware(NewAuditMiddleware(alwaysFails{}, AuditOptions{Enabled: true})))

	op := NewFunc("op", func(ctx context.Context, input any, f *Foundry) (any, error) { return nil, nil })
	wf := NewBuilder("wf").AddOperation(op).Build()
	s, err := CreateSmith(DefaultOptions())
	require.NoError(t, err)

	require.NoError(t, s.ForgeAsync(context.Background(), wf, f))
}

type rangeValidator struct{}

func (rangeValidator) Validate(subject any) []validation.FieldError {
	n, _ := subject.(int)
	if n < 0 {
		return []validation.FieldError{{PropertyName: "amount", ErrorMessage: "must be non-negative"}}
	}
	return nil
}

func TestValidationMiddlewareThrowsOnFailure(t *testing.T) {
	extractor := func(input any) (any, bool) { return input, true }
	opts := ValidationOptions{Enabled: true, ThrowOnValidationError: true, StoreValidationResults: true}

	produceNegative := NewFunc("produceNegative", func(ctx context.Context, input any, f *Foundry) (any, error) {
		return -5, nil
	})
	charged := false
	charge := NewFunc("charge", func(ctx context.Context, input any, f *Foundry) (any, error) {
		charged = true
		return nil, nil
	})

	wf := NewBuilder("order").AddOperation(produceNegative).AddOperation(charge).Build()

	f := NewTestFoundry()
	require.NoError(t, f.AddMiddleware(NewValidationMiddleware(extractor, rangeValidator{}, opts)))

	s, err := CreateSmith(DefaultOptions())
	require.NoError(t, err)

	err = s.ForgeAsync(context.Background(), wf, f)
	require.Error(t, err)
	require.ErrorIs(t, err, ErrValidationFailed)
	require.False(t, charged, "operation following a failed validation must not run")

	status, ok := f.Properties().Get(PropValidationStatus)
	require.True(t, ok)
	require.Equal(t, "Failed", status)
}

func TestValidationMiddlewarePassesValidInput(t *testing.T) {
	extractor := func(input any) (any, bool) { return input, true }
	opts := ValidationOptions{Enabled: true, ThrowOnValidationError: true, StoreValidationResults: true}

	op := NewFunc("op", func(ctx context.Context, input any, f *Foundry) (any, error) { return "ok", nil })
	wf := NewBuilder("wf").AddOperation(op).Build()

	f := NewTestFoundry()
	require.NoError(t, f.AddMiddleware(NewValidationMiddleware(extractor, rangeValidator{}, opts)))

	s, err := CreateSmith(DefaultOptions())
	require.NoError(t, err)

	require.NoError(t, s.ForgeAsync(context.Background(), wf, f))

	status, ok := f.Properties().Get(PropValidationStatus)
	require.True(t, ok)
	require.Equal(t, "Success", status)
}
