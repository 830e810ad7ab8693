package persistence

import (
	"context"
	"sort"
	"sync"
	"time"
)

// InMemoryProvider is a process-local Provider and Catalog, useful for
// tests and small hosts that do not need durability across restarts.
type InMemoryProvider struct {
	mu        sync.Mutex
	snapshots map[string]Snapshot
}

// NewInMemoryProvider returns an empty InMemoryProvider.
func NewInMemoryProvider() *InMemoryProvider {
	return &InMemoryProvider{snapshots: make(map[string]Snapshot)}
}

var _ Provider = (*InMemoryProvider)(nil)
var _ Catalog = (*InMemoryProvider)(nil)

func key(foundryExecutionID, workflowID string) string {
	return foundryExecutionID + "|" + workflowID
}

func (p *InMemoryProvider) Save(ctx context.Context, snap Snapshot) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	k := key(snap.FoundryExecutionID, snap.WorkflowID)
	if existing, ok := p.snapshots[k]; ok {
		snap.Version = existing.Version + 1
	} else {
		snap.Version = 1
	}
	snap.UpdatedAt = time.Now()
	p.snapshots[k] = snap
	return nil
}

func (p *InMemoryProvider) TryLoad(ctx context.Context, foundryExecutionID, workflowID string) (*Snapshot, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	snap, ok := p.snapshots[key(foundryExecutionID, workflowID)]
	if !ok {
		return nil, nil
	}
	cp := snap
	cp.Properties = make(map[string]any, len(snap.Properties))
	for k, v := range snap.Properties {
		cp.Properties[k] = v
	}
	return &cp, nil
}

func (p *InMemoryProvider) Delete(ctx context.Context, foundryExecutionID, workflowID string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	delete(p.snapshots, key(foundryExecutionID, workflowID))
	return nil
}

func (p *InMemoryProvider) ListPending(ctx context.Context) ([]Snapshot, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	out := make([]Snapshot, 0, len(p.snapshots))
	for _, snap := range p.snapshots {
		out = append(out, snap)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].UpdatedAt.Before(out[j].UpdatedAt) })
	return out, nil
}
