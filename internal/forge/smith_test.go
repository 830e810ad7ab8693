package forge

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/forgeworks/workflowforge/internal/persistence"
)

// recordingProvider is a minimal persistence.Provider test double counting
// Save/Delete calls without touching a real store.
type recordingProvider struct {
	mu          sync.Mutex
	saveCount   int
	deleteCount int
}

func newRecordingProvider() *recordingProvider { return &recordingProvider{} }

func (p *recordingProvider) Save(ctx context.Context, snap persistence.Snapshot) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.saveCount++
	return nil
}

func (p *recordingProvider) TryLoad(ctx context.Context, foundryExecutionID, workflowID string) (*persistence.Snapshot, error) {
	return nil, nil
}

func (p *recordingProvider) Delete(ctx context.Context, foundryExecutionID, workflowID string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.deleteCount++
	return nil
}

func doubleOp() Operation {
	return NewFunc("Double", func(ctx context.Context, input any, f *Foundry) (any, error) {
		n, _ := input.(int)
		return n * 2, nil
	})
}

func addTenOp() Operation {
	return NewFunc("AddTen", func(ctx context.Context, input any, f *Foundry) (any, error) {
		n, _ := input.(int)
		return n + 10, nil
	})
}

func TestSmithLinearSuccess(t *testing.T) {
	s, err := CreateSmith(DefaultOptions())
	require.NoError(t, err)

	f := NewTestFoundry()
	f.Properties().Set("seed", 3)

	wf := NewBuilder("math-seeded").
		AddOperation(NewFunc("Double", func(ctx context.Context, input any, f *Foundry) (any, error) {
			seed, _ := f.Properties().Get("seed")
			n, _ := seed.(int)
			return n * 2, nil
		})).
		AddOperation(addTenOp()).
		Build()

	err = s.ForgeAsync(context.Background(), wf, f)
	require.NoError(t, err)

	out0, ok := f.Properties().Get(fmt.Sprintf("Operation.%d:%s.Output", 0, "Double"))
	require.True(t, ok)
	require.Equal(t, 6, out0)

	out1, ok := f.Properties().Get(fmt.Sprintf("Operation.%d:%s.Output", 1, "AddTen"))
	require.True(t, ok)
	require.Equal(t, 16, out1)

	lastCompleted, _ := f.Properties().Get(PropLastCompletedIndex)
	require.Equal(t, 1, lastCompleted)

	_, hasErr := f.Properties().Get(PropErrorMessage)
	require.False(t, hasErr)
}

func TestSmithMidFailureTriggersCompensation(t *testing.T) {
	var restored []string
	var mu sync.Mutex

	reserve := NewRestorableFunc("Reserve",
		func(ctx context.Context, input any, f *Foundry) (any, error) { return "reserved", nil },
		func(ctx context.Context, lastOutput any, f *Foundry) error {
			mu.Lock()
			restored = append(restored, "Reserve")
			mu.Unlock()
			return nil
		},
	)
	charge := NewRestorableFunc("Charge",
		func(ctx context.Context, input any, f *Foundry) (any, error) { return "charged", nil },
		func(ctx context.Context, lastOutput any, f *Foundry) error {
			mu.Lock()
			restored = append(restored, "Charge")
			mu.Unlock()
			return nil
		},
	)
	ship := NewRestorableFunc("Ship",
		func(ctx context.Context, input any, f *Foundry) (any, error) { return nil, errors.New("carrier down") },
		func(ctx context.Context, lastOutput any, f *Foundry) error { return nil },
	)

	wf := NewBuilder("order").AddOperation(reserve).AddOperation(charge).AddOperation(ship).Build()

	s, err := CreateSmith(DefaultOptions())
	require.NoError(t, err)

	f := NewTestFoundry()
	err = s.ForgeAsync(context.Background(), wf, f)
	require.Error(t, err)
	require.Contains(t, err.Error(), "carrier down")

	failedIdx, _ := f.Properties().Get(PropLastFailedIndex)
	require.Equal(t, 2, failedIdx)

	mu.Lock()
	defer mu.Unlock()
	require.Equal(t, []string{"Charge", "Reserve"}, restored)
}

func TestSmithEmptyWorkflowCompletesImmediately(t *testing.T) {
	wf := NewBuilder("empty").Build()
	s, err := CreateSmith(DefaultOptions())
	require.NoError(t, err)

	f := NewTestFoundry()
	err = s.ForgeAsync(context.Background(), wf, f)
	require.NoError(t, err)

	_, ok := f.Properties().Get(PropLastCompletedIndex)
	require.False(t, ok)
}

func TestSmithCancellationDoesNotTriggerCompensation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())

	blocking := NewRestorableFunc("Blocking",
		func(ctx context.Context, input any, f *Foundry) (any, error) {
			<-ctx.Done()
			return nil, ctx.Err()
		},
		func(ctx context.Context, lastOutput any, f *Foundry) error {
			t.Fatal("restore must not be called on cancellation")
			return nil
		},
	)

	wf := NewBuilder("cancellable").AddOperation(blocking).Build()
	s, err := CreateSmith(DefaultOptions())
	require.NoError(t, err)

	f := NewTestFoundry()

	go func() {
		time.Sleep(10 * time.Millisecond)
		cancel()
	}()

	err = s.ForgeAsync(ctx, wf, f)
	require.ErrorIs(t, err, ErrWorkflowCancelled)
}

func TestSmithWorkflowTimeoutCancelsRun(t *testing.T) {
	blocking := NewFunc("Blocking", func(ctx context.Context, input any, f *Foundry) (any, error) {
		<-ctx.Done()
		return nil, ctx.Err()
	})

	wf := NewBuilder("bounded-run").WithTimeout(20 * time.Millisecond).AddOperation(blocking).Build()
	s, err := CreateSmith(DefaultOptions())
	require.NoError(t, err)

	f := NewTestFoundry()
	err = s.ForgeAsync(context.Background(), wf, f)
	require.ErrorIs(t, err, ErrWorkflowCancelled)

	timedOut, ok := f.Properties().Get(PropWorkflowTimedOut)
	require.True(t, ok)
	require.Equal(t, true, timedOut)

	configured, ok := f.Properties().Get(PropWorkflowTimeout)
	require.True(t, ok)
	require.Equal(t, 20*time.Millisecond, configured)

	d, ok := f.Properties().Get(PropWorkflowTimeoutDuration)
	require.True(t, ok)
	require.Equal(t, 20*time.Millisecond, d)
}

func TestSmithOperationTimeoutRecordedAndEnforced(t *testing.T) {
	blocking := NewFunc("Blocking", func(ctx context.Context, input any, f *Foundry) (any, error) {
		<-ctx.Done()
		return nil, ctx.Err()
	})

	wf := NewBuilder("bounded-op").WithOperationTimeout("Blocking", 20*time.Millisecond).AddOperation(blocking).Build()
	s, err := CreateSmith(DefaultOptions())
	require.NoError(t, err)

	f := NewTestFoundry()
	err = s.ForgeAsync(context.Background(), wf, f)
	require.ErrorIs(t, err, ErrWorkflowCancelled)

	d, ok := f.Properties().Get(operationTimeoutKey(0, "Blocking"))
	require.True(t, ok)
	require.Equal(t, 20*time.Millisecond, d)

	// An operation-level timeout alone must not mark the workflow as
	// timed out; that key is reserved for the workflow-level deadline.
	_, ok = f.Properties().Get(PropWorkflowTimedOut)
	require.False(t, ok)
}

func TestSmithFailureRecordsStackTrace(t *testing.T) {
	failing := NewFunc("Failing", func(ctx context.Context, input any, f *Foundry) (any, error) {
		return nil, errors.New("boom")
	})

	wf := NewBuilder("failing").AddOperation(failing).Build()
	s, err := CreateSmith(DefaultOptions())
	require.NoError(t, err)

	f := NewTestFoundry()
	err = s.ForgeAsync(context.Background(), wf, f)
	require.Error(t, err)

	trace, ok := f.Properties().Get(PropErrorStackTrace)
	require.True(t, ok)
	require.NotEmpty(t, trace)
}

func TestSmithPersistOnWorkflowCompleteSavesBeforeDelete(t *testing.T) {
	ops := DefaultOptions()
	ops.Persistence.Enabled = true
	ops.Persistence.PersistOnWorkflowComplete = true
	ops.Persistence.PersistOnOperationComplete = false
	ops.Persistence.PersistOnFailure = false

	provider := newRecordingProvider()
	s, err := CreateSmith(ops, WithPersistence(provider))
	require.NoError(t, err)

	wf := NewBuilder("persisted").AddOperation(doubleOp()).Build()
	f := NewTestFoundry()
	f.Properties().Set("seed", 3)

	require.NoError(t, s.ForgeAsync(context.Background(), wf, f))

	require.Equal(t, 1, provider.saveCount, "PersistOnWorkflowComplete should checkpoint once before the final delete")
	require.Equal(t, 1, provider.deleteCount)
}

func TestSmithConcurrencyBound(t *testing.T) {
	const limit = 5
	var inFlight int32
	var peak int32
	var mu sync.Mutex

	slow := NewFunc("slow", func(ctx context.Context, input any, f *Foundry) (any, error) {
		cur := atomic.AddInt32(&inFlight, 1)
		mu.Lock()
		if cur > peak {
			peak = cur
		}
		mu.Unlock()
		time.Sleep(30 * time.Millisecond)
		atomic.AddInt32(&inFlight, -1)
		return nil, nil
	})

	wf := NewBuilder("bounded").AddOperation(slow).Build()
	opts := DefaultOptions()
	opts.MaxConcurrentWorkflows = limit
	s, err := CreateSmith(opts)
	require.NoError(t, err)

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_ = s.ForgeAsync(context.Background(), wf, nil)
		}()
	}
	wg.Wait()

	require.LessOrEqual(t, peak, int32(limit))
}

func TestSmithInvalidOptionsFailConstruction(t *testing.T) {
	opts := DefaultOptions()
	opts.MaxConcurrentWorkflows = -1

	_, err := CreateSmith(opts)
	require.Error(t, err)
	require.Contains(t, err.Error(), "Invalid WorkflowForge options")
	require.Contains(t, err.Error(), "MaxConcurrentWorkflows")
}

func TestSmithContinueOnErrorSkipsCompensation(t *testing.T) {
	failing := NewRestorableFunc("Failing",
		func(ctx context.Context, input any, f *Foundry) (any, error) { return nil, errors.New("boom") },
		func(ctx context.Context, lastOutput any, f *Foundry) error {
			t.Fatal("restore must not run under ContinueOnError")
			return nil
		},
	)
	after := NewFunc("After", func(ctx context.Context, input any, f *Foundry) (any, error) { return "ran", nil })

	wf := NewBuilder("resilient").AddOperation(failing).AddOperation(after).Build()
	opts := DefaultOptions()
	opts.ContinueOnError = true
	s, err := CreateSmith(opts)
	require.NoError(t, err)

	f := NewTestFoundry()
	err = s.ForgeAsync(context.Background(), wf, f)
	require.NoError(t, err)

	out, ok := f.Properties().Get(fmt.Sprintf("Operation.%d:%s.Output", 1, "After"))
	require.True(t, ok)
	require.Equal(t, "ran", out)
}
