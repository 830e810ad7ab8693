package cmd

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/forgeworks/workflowforge/internal/audit"
	"github.com/forgeworks/workflowforge/internal/cachemanager"
	"github.com/forgeworks/workflowforge/internal/definition"
	"github.com/forgeworks/workflowforge/internal/forge"
	"github.com/forgeworks/workflowforge/internal/log"
	"github.com/forgeworks/workflowforge/internal/persistence"
	"github.com/forgeworks/workflowforge/internal/resilience"
	"github.com/forgeworks/workflowforge/internal/telemetry"
)

// definitionResolver caches resolved workflows across repeated runs of
// the same process (e.g. a host embedding the CLI's RunE functions in
// a server loop); a single CLI invocation sees at most one cache miss.
var definitionResolver = definition.NewCachingResolver(builtinRegistry(), 5*time.Minute)

var (
	runInstanceID  string
	runWorkflowKey string
)

var runCmd = &cobra.Command{
	Use:   "run <definition.yaml>",
	Short: "Run a workflow definition to completion",
	Args:  cobra.ExactArgs(1),
	RunE:  runRun,
}

func init() {
	runCmd.Flags().StringVar(&runInstanceID, "instance-id", "", "stable instance id for deterministic checkpoint keys (enables resume)")
	runCmd.Flags().StringVar(&runWorkflowKey, "workflow-key", "", "stable workflow key for deterministic checkpoint keys (enables resume)")
}

func runRun(c *cobra.Command, args []string) error {
	def, err := definition.LoadFile(args[0])
	if err != nil {
		return err
	}
	wf, err := definitionResolver.Resolve(context.Background(), def)
	if err != nil {
		return err
	}

	opts := cfg.ToForgeOptions()
	opts.Persistence.InstanceID = runInstanceID
	opts.Persistence.WorkflowKey = runWorkflowKey

	smithOpts, closeDB, err := persistenceSmithOptions(opts)
	if err != nil {
		return err
	}
	if closeDB != nil {
		defer closeDB()
	}

	smith, err := forge.CreateSmith(opts, smithOpts...)
	if err != nil {
		return err
	}

	foundry := forge.NewFoundry(forge.WithOptions(opts), forge.WithLogger(log.Default()))
	if err := attachMiddleware(foundry, opts); err != nil {
		return err
	}

	if err := smith.ForgeAsync(context.Background(), wf, foundry); err != nil {
		return fmt.Errorf("workflow failed: %w", err)
	}

	fmt.Printf("workflow %q completed (execution %s)\n", wf.Name(), foundry.ExecutionID())
	return nil
}

// attachMiddleware registers the structural middleware (timing, audit,
// tracing, resilience) implied by opts onto foundry. It must run before the smith
// freezes the foundry, i.e. before ForgeAsync is called.
func attachMiddleware(foundry *forge.Foundry, opts forge.Options) error {
	if opts.Timing.Enabled {
		if err := foundry.AddMiddleware(forge.NewTimingMiddleware(opts.Timing)); err != nil {
			return err
		}
	}
	if opts.Audit.Enabled {
		if err := foundry.AddMiddleware(forge.NewAuditMiddleware(audit.NewInMemoryProvider(), opts.Audit)); err != nil {
			return err
		}
	}
	if opts.Tracing.Enabled {
		provider, err := telemetry.NewProvider(telemetry.Config{
			Enabled:      opts.Tracing.Enabled,
			ServiceName:  opts.Tracing.ServiceName,
			Exporter:     string(opts.Tracing.Exporter),
			OTLPEndpoint: opts.Tracing.OTLPEndpoint,
			SampleRate:   opts.Tracing.SampleRate,
		})
		if err != nil {
			return err
		}
		if err := foundry.AddMiddleware(forge.NewTracingMiddleware(provider.Tracer())); err != nil {
			return err
		}
	}
	if opts.Resilience.Enabled {
		var resilienceOpts []forge.ResilienceMiddlewareOption

		if opts.Resilience.CircuitBreaker.Enabled {
			cbOpts := opts.Resilience.CircuitBreaker
			breaker := resilience.NewCircuitBreaker(resilience.CircuitBreakerConfig{
				Name:              "workflowforge",
				FailureThreshold:  cbOpts.FailureThreshold,
				MinimumThroughput: cbOpts.MinimumThroughput,
				SamplingDuration:  time.Duration(cbOpts.SamplingDurationSeconds * float64(time.Second)),
				BreakDuration:     time.Duration(cbOpts.BreakDurationSeconds * float64(time.Second)),
			})
			resilienceOpts = append(resilienceOpts, forge.WithCircuitBreaker(breaker))
		}

		if opts.Resilience.Idempotency.Enabled {
			cache := cachemanager.NewInMemoryCacheManager[string, any](
				"resilience-idempotency", cachemanager.DefaultExpiration, cachemanager.DefaultCleanupInterval)
			ttl := time.Duration(opts.Resilience.Idempotency.TTLSeconds * float64(time.Second))
			resilienceOpts = append(resilienceOpts, forge.WithIdempotencyCache(cache, ttl))
		}

		strategy := forge.BuildStrategy(opts.Resilience)
		if err := foundry.AddMiddleware(forge.NewResilienceMiddleware(strategy, nil, resilienceOpts...)); err != nil {
			return err
		}
	}
	return nil
}

// persistenceSmithOptions opens the configured SQLite database and returns
// the smith option wiring it in, when persistence is enabled.
func persistenceSmithOptions(opts forge.Options) ([]forge.SmithOption, func(), error) {
	if !opts.Persistence.Enabled {
		return nil, nil, nil
	}
	db, err := persistence.NewDB(cfg.Persistence.DBPath)
	if err != nil {
		return nil, nil, fmt.Errorf("opening persistence database: %w", err)
	}
	provider := persistence.NewSQLiteProvider(db, cfg.Persistence.MaxVersions)
	return []forge.SmithOption{forge.WithPersistence(provider)}, func() { _ = db.Close() }, nil
}
