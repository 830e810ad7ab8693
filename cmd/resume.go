package cmd

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/forgeworks/workflowforge/internal/definition"
	"github.com/forgeworks/workflowforge/internal/forge"
	"github.com/forgeworks/workflowforge/internal/log"
	"github.com/forgeworks/workflowforge/internal/persistence"
)

var (
	resumeInstanceID  string
	resumeWorkflowKey string
	resumeAll         bool
)

var resumeCmd = &cobra.Command{
	Use:   "resume <definition.yaml>",
	Short: "Resume a checkpointed execution from its last completed operation",
	Args:  cobra.ExactArgs(1),
	RunE:  runResume,
}

func init() {
	resumeCmd.Flags().StringVar(&resumeInstanceID, "instance-id", "", "instance id of the execution to resume, as passed to run")
	resumeCmd.Flags().StringVar(&resumeWorkflowKey, "workflow-key", "", "workflow key of the execution to resume, as passed to run")
	resumeCmd.Flags().BoolVar(&resumeAll, "all", false, "resume every pending execution found in the persistence store")
}

func runResume(c *cobra.Command, args []string) error {
	if !cfg.Persistence.Enabled {
		return fmt.Errorf("resume requires persistence.enabled: true in configuration")
	}

	def, err := definition.LoadFile(args[0])
	if err != nil {
		return err
	}
	registry := builtinRegistry()

	db, err := persistence.NewDB(cfg.Persistence.DBPath)
	if err != nil {
		return fmt.Errorf("opening persistence database: %w", err)
	}
	defer func() { _ = db.Close() }()

	provider := persistence.NewSQLiteProvider(db, cfg.Persistence.MaxVersions)
	policy := persistence.RecoveryPolicy{
		MaxAttempts:           cfg.Recovery.MaxRetryAttempts,
		BaseDelay:             time.Duration(cfg.Recovery.BaseDelaySeconds * float64(time.Second)),
		UseExponentialBackoff: cfg.Recovery.UseExponentialBackoff,
	}
	coordinator := persistence.NewCoordinator(provider, provider, policy, nil, log.Default())

	ctx := context.Background()

	if resumeAll {
		runner := func(ctx context.Context, snap persistence.Snapshot) error {
			return resumeSnapshot(ctx, def, registry, provider, snap)
		}
		count, err := coordinator.ResumeAll(ctx, runner)
		if err != nil {
			return err
		}
		fmt.Printf("resumed %d pending execution(s)\n", count)
		return nil
	}

	if resumeInstanceID == "" || resumeWorkflowKey == "" {
		return fmt.Errorf("resume requires --instance-id and --workflow-key, or --all")
	}

	runner := func(ctx context.Context, snap persistence.Snapshot) error {
		wf, err := definition.Resolve(def, registry)
		if err != nil {
			return err
		}

		opts := cfg.ToForgeOptions()
		opts.Persistence.InstanceID = resumeInstanceID
		opts.Persistence.WorkflowKey = resumeWorkflowKey

		smith, err := forge.CreateSmith(opts, forge.WithPersistence(provider))
		if err != nil {
			return err
		}

		foundry := forge.NewFoundry(forge.WithOptions(opts), forge.WithLogger(log.Default()))
		if err := attachMiddleware(foundry, opts); err != nil {
			return err
		}
		return smith.ForgeAsync(ctx, wf, foundry)
	}

	execKey := forge.DeriveExecutionID(resumeInstanceID).String()
	wfKey := forge.DeriveWorkflowID(resumeWorkflowKey).String()
	if err := coordinator.Resume(ctx, execKey, wfKey, runner); err != nil {
		return fmt.Errorf("resume failed: %w", err)
	}
	fmt.Println("resume completed")
	return nil
}

// resumeSnapshot resumes a single snapshot discovered via ResumeAll, where
// the original InstanceID/WorkflowKey strings that produced its keys are
// not recoverable (they were one-way hashed). The foundry's ExecutionID
// and the workflow's ID are instead overridden to match the snapshot's
// stored keys directly, so the smith's own key derivation (which falls
// back to those fields when no InstanceID/WorkflowKey is configured)
// resolves to the same snapshot.
func resumeSnapshot(ctx context.Context, def definition.WorkflowDefinition, registry definition.OperationRegistry, provider *persistence.SQLiteProvider, snap persistence.Snapshot) error {
	execID, err := uuid.Parse(snap.FoundryExecutionID)
	if err != nil {
		return fmt.Errorf("resume: parsing execution id: %w", err)
	}
	wfID, err := uuid.Parse(snap.WorkflowID)
	if err != nil {
		return fmt.Errorf("resume: parsing workflow id: %w", err)
	}

	builder := forge.NewBuilder(def.Name).WithID(forge.WorkflowID(wfID))
	for i, step := range def.Steps {
		op, ok := registry.Lookup(step.OperationName)
		if !ok {
			return &definition.ErrOperationNotRegistered{WorkflowID: def.ID, StepIndex: i, Name: step.OperationName}
		}
		builder = builder.AddOperation(op)
	}
	wf := builder.Build()

	opts := cfg.ToForgeOptions()
	smith, err := forge.CreateSmith(opts, forge.WithPersistence(provider))
	if err != nil {
		return err
	}

	foundry := forge.NewFoundry(
		forge.WithOptions(opts),
		forge.WithLogger(log.Default()),
		forge.WithExecutionID(forge.ExecutionID(execID)),
	)
	if err := attachMiddleware(foundry, opts); err != nil {
		return err
	}
	return smith.ForgeAsync(ctx, wf, foundry)
}
