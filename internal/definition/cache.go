package definition

import (
	"context"
	"time"

	"github.com/forgeworks/workflowforge/internal/cachemanager"
	"github.com/forgeworks/workflowforge/internal/forge"
)

// CachingResolver memoizes Resolve by definition ID so a host that
// repeatedly resolves the same definition (e.g. one execution per
// incoming request) does not rebuild an identical *forge.Workflow on
// every call. Entries are invalidated explicitly, typically by a
// Watcher reacting to a definition file change.
type CachingResolver struct {
	registry OperationRegistry
	manager  *cachemanager.InMemoryCacheManager[string, *forge.Workflow]
	through  *cachemanager.ReadThroughCache[string, *forge.Workflow, WorkflowDefinition]
	ttl      time.Duration
}

// NewCachingResolver builds a CachingResolver resolving against registry,
// caching each result for ttl.
func NewCachingResolver(registry OperationRegistry, ttl time.Duration) *CachingResolver {
	manager := cachemanager.NewInMemoryCacheManager[string, *forge.Workflow](
		"definition-resolve", cachemanager.DefaultExpiration, cachemanager.DefaultCleanupInterval)

	r := &CachingResolver{registry: registry, manager: manager, ttl: ttl}
	r.through = cachemanager.NewReadThroughCache[string, *forge.Workflow, WorkflowDefinition](
		manager,
		func(ctx context.Context, def WorkflowDefinition) (*forge.Workflow, error) {
			return Resolve(def, r.registry)
		},
		false,
	)
	return r
}

// Resolve returns the cached *forge.Workflow for def.ID, building and
// caching it on a miss.
func (r *CachingResolver) Resolve(ctx context.Context, def WorkflowDefinition) (*forge.Workflow, error) {
	return r.through.Get(ctx, def.ID, def, r.ttl)
}

// Invalidate evicts the cached workflow for the given definition ID,
// forcing the next Resolve to rebuild it from scratch.
func (r *CachingResolver) Invalidate(ctx context.Context, id string) error {
	return r.manager.Delete(ctx, id)
}
