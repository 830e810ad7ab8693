package persistence

import (
	"context"
	"fmt"
	"time"

	"github.com/forgeworks/workflowforge/internal/clock"
	"github.com/forgeworks/workflowforge/internal/log"
)

// RecoveryPolicy governs how many times, and with what delay, the
// coordinator retries a failed resume attempt.
type RecoveryPolicy struct {
	MaxAttempts           int
	BaseDelay             time.Duration
	UseExponentialBackoff bool
}

func (p RecoveryPolicy) delay(attempt int) time.Duration {
	if !p.UseExponentialBackoff {
		return p.BaseDelay
	}
	d := p.BaseDelay
	for i := 1; i < attempt; i++ {
		d *= 2
	}
	return d
}

// Runner resumes a single workflow execution starting at a snapshot's
// checkpointed index. cmd/resume.go adapts the forge package's Smith to
// this type with a runner closure; Coordinator depends only on
// this function type to avoid importing forge (which already imports
// this package for the Provider contract).
type Runner func(ctx context.Context, snap Snapshot) error

// Coordinator resumes pending executions found via a Catalog, retrying
// transient resume failures per RecoveryPolicy.
type Coordinator struct {
	provider Provider
	catalog  Catalog
	policy   RecoveryPolicy
	clock    clock.Clock
	logger   log.Logger
}

// NewCoordinator builds a Coordinator. clock and logger default to
// clock.RealClock{} and log.NullLogger{} when nil.
func NewCoordinator(provider Provider, catalog Catalog, policy RecoveryPolicy, c clock.Clock, logger log.Logger) *Coordinator {
	if c == nil {
		c = clock.RealClock{}
	}
	if logger == nil {
		logger = log.NullLogger{}
	}
	return &Coordinator{provider: provider, catalog: catalog, policy: policy, clock: c, logger: logger}
}

// Resume loads the snapshot for (foundryExecutionID, workflowID) and
// invokes run against it, retrying per the configured RecoveryPolicy.
func (c *Coordinator) Resume(ctx context.Context, foundryExecutionID, workflowID string, run Runner) error {
	snap, err := c.provider.TryLoad(ctx, foundryExecutionID, workflowID)
	if err != nil {
		return fmt.Errorf("recovery: load snapshot: %w", err)
	}
	if snap == nil {
		return fmt.Errorf("recovery: no snapshot found for execution %q workflow %q", foundryExecutionID, workflowID)
	}

	var lastErr error
	maxAttempts := c.policy.MaxAttempts
	if maxAttempts < 1 {
		maxAttempts = 1
	}

	for attempt := 1; attempt <= maxAttempts; attempt++ {
		if c.logger != nil {
			c.logger.Info(log.CatRecovery, "resume attempt", "execution_id", foundryExecutionID, "attempt", attempt)
		}

		err := run(ctx, *snap)
		if err == nil {
			return nil
		}
		lastErr = err

		if attempt == maxAttempts {
			break
		}
		if werr := c.clock.Sleep(ctx, c.policy.delay(attempt)); werr != nil {
			return werr
		}
	}

	return fmt.Errorf("recovery: exhausted %d attempts: %w", maxAttempts, lastErr)
}

// ResumeAll iterates every pending snapshot in the catalog, resuming each
// via run. Individual failures are logged and counted; ResumeAll returns
// the number of successful resumptions.
func (c *Coordinator) ResumeAll(ctx context.Context, run Runner) (int, error) {
	pending, err := c.catalog.ListPending(ctx)
	if err != nil {
		return 0, fmt.Errorf("recovery: list pending: %w", err)
	}

	success := 0
	for _, snap := range pending {
		if err := c.Resume(ctx, snap.FoundryExecutionID, snap.WorkflowID, run); err != nil {
			c.logger.ErrorErr(log.CatRecovery, "resume failed", err, "execution_id", snap.FoundryExecutionID, "workflow_id", snap.WorkflowID)
			continue
		}
		success++
	}
	return success, nil
}
