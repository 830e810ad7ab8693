package cmd

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/forgeworks/workflowforge/internal/config"
)

func TestRunListPendingRequiresPersistenceEnabled(t *testing.T) {
	cfg = config.Defaults()
	cfg.Persistence.Enabled = false

	err := runListPending(listPendingCmd, nil)
	assert.Error(t, err)
}

func TestRunListPendingReportsCheckpointedExecution(t *testing.T) {
	dir := t.TempDir()
	path := writeDefinition(t, dir, "breaker.yaml", failingWorkflowYAML)

	cfg = config.Defaults()
	cfg.Persistence.Enabled = true
	cfg.Persistence.DBPath = filepath.Join(dir, "forge.db")
	cfg.Persistence.PersistOnOperationComplete = true
	cfg.Persistence.PersistOnFailure = true

	runInstanceID = "order-3"
	runWorkflowKey = "breaker"
	require.Error(t, runRun(runCmd, []string{path}))
	runInstanceID, runWorkflowKey = "", ""

	err := runListPending(listPendingCmd, nil)
	assert.NoError(t, err)
}
