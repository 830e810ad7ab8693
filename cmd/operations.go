package cmd

import (
	"context"
	"fmt"
	"time"

	"github.com/forgeworks/workflowforge/internal/definition"
	"github.com/forgeworks/workflowforge/internal/forge"
	"github.com/forgeworks/workflowforge/internal/log"
)

// builtinRegistry returns the small set of operations the reference CLI
// ships with, for exercising workflow definitions without a host
// application registering its own domain operations.
func builtinRegistry() definition.MapRegistry {
	registry := definition.MapRegistry{}

	registry.Register("log", forge.NewFunc("Log", func(ctx context.Context, input any, f *forge.Foundry) (any, error) {
		f.Logger().Info(log.CatCLI, "log operation", "input", fmt.Sprint(input))
		return input, nil
	}))

	registry.Register("sleep", forge.NewFunc("Sleep", func(ctx context.Context, input any, f *forge.Foundry) (any, error) {
		d := 100 * time.Millisecond
		if s, ok := input.(string); ok {
			if parsed, err := time.ParseDuration(s); err == nil {
				d = parsed
			}
		}
		if err := f.Clock().Sleep(ctx, d); err != nil {
			return nil, err
		}
		return input, nil
	}))

	registry.Register("fail", forge.NewFunc("Fail", func(ctx context.Context, input any, f *forge.Foundry) (any, error) {
		return nil, fmt.Errorf("fail operation: forced failure")
	}))

	return registry
}
