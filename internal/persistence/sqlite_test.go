package persistence

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func openTestDB(t *testing.T) *SQLiteProvider {
	t.Helper()
	db, err := NewDB(filepath.Join(t.TempDir(), "forge.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	return NewSQLiteProvider(db, 0)
}

func TestSQLiteProviderSaveTryLoadRoundTrip(t *testing.T) {
	p := openTestDB(t)
	ctx := context.Background()

	snap := Snapshot{
		FoundryExecutionID: "exec-1",
		WorkflowID:         "wf-1",
		WorkflowName:       "demo",
		NextOperationIndex: 2,
		Properties:         map[string]any{"a": "b"},
	}
	require.NoError(t, p.Save(ctx, snap))

	loaded, err := p.TryLoad(ctx, "exec-1", "wf-1")
	require.NoError(t, err)
	require.NotNil(t, loaded)
	require.Equal(t, 2, loaded.NextOperationIndex)
	require.Equal(t, "b", loaded.Properties["a"])
}

func TestSQLiteProviderTryLoadMissingReturnsNil(t *testing.T) {
	p := openTestDB(t)
	loaded, err := p.TryLoad(context.Background(), "missing", "missing")
	require.NoError(t, err)
	require.Nil(t, loaded)
}

func TestSQLiteProviderDeleteRemovesSnapshot(t *testing.T) {
	p := openTestDB(t)
	ctx := context.Background()

	snap := Snapshot{FoundryExecutionID: "exec-2", WorkflowID: "wf-2", NextOperationIndex: 0, Properties: map[string]any{}}
	require.NoError(t, p.Save(ctx, snap))
	require.NoError(t, p.Delete(ctx, "exec-2", "wf-2"))

	loaded, err := p.TryLoad(ctx, "exec-2", "wf-2")
	require.NoError(t, err)
	require.Nil(t, loaded)
}

func TestSQLiteProviderSaveIncrementsVersionAndLoadsLatest(t *testing.T) {
	p := openTestDB(t)
	ctx := context.Background()

	base := Snapshot{FoundryExecutionID: "exec-3", WorkflowID: "wf-3", Properties: map[string]any{}}
	base.NextOperationIndex = 0
	require.NoError(t, p.Save(ctx, base))
	base.NextOperationIndex = 1
	require.NoError(t, p.Save(ctx, base))
	base.NextOperationIndex = 2
	require.NoError(t, p.Save(ctx, base))

	loaded, err := p.TryLoad(ctx, "exec-3", "wf-3")
	require.NoError(t, err)
	require.Equal(t, 2, loaded.NextOperationIndex)
	require.Equal(t, 3, loaded.Version)
}

func TestSQLiteProviderMaxVersionsPrunesHistory(t *testing.T) {
	db, err := NewDB(filepath.Join(t.TempDir(), "forge.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	p := NewSQLiteProvider(db, 2)

	ctx := context.Background()
	snap := Snapshot{FoundryExecutionID: "exec-4", WorkflowID: "wf-4", Properties: map[string]any{}}
	for i := 0; i < 5; i++ {
		snap.NextOperationIndex = i
		require.NoError(t, p.Save(ctx, snap))
	}

	var count int
	require.NoError(t, db.QueryRowContext(ctx, `SELECT COUNT(*) FROM snapshots WHERE foundry_execution_id = ?`, "exec-4").Scan(&count))
	require.LessOrEqual(t, count, 2)
}

func TestSQLiteProviderListPendingOrdersOldestFirst(t *testing.T) {
	p := openTestDB(t)
	ctx := context.Background()

	require.NoError(t, p.Save(ctx, Snapshot{FoundryExecutionID: "e1", WorkflowID: "w1", Properties: map[string]any{}}))
	require.NoError(t, p.Save(ctx, Snapshot{FoundryExecutionID: "e2", WorkflowID: "w2", Properties: map[string]any{}}))

	pending, err := p.ListPending(ctx)
	require.NoError(t, err)
	require.Len(t, pending, 2)
	require.Equal(t, "e1", pending[0].FoundryExecutionID)
	require.Equal(t, "e2", pending[1].FoundryExecutionID)
}
