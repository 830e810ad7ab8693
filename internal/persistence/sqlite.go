package persistence

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"
)

const snapshotColumns = `foundry_execution_id, workflow_id, workflow_name, next_operation_index, properties, version, updated_at`

// SQLiteProvider persists execution snapshots in a migrated SQLite
// database, keeping up to MaxVersions rows per (foundry_execution_id,
// workflow_id) key when it is positive.
type SQLiteProvider struct {
	db          *sql.DB
	maxVersions int
}

// NewSQLiteProvider wraps an already-migrated *sql.DB (see NewDB).
func NewSQLiteProvider(db *sql.DB, maxVersions int) *SQLiteProvider {
	return &SQLiteProvider{db: db, maxVersions: maxVersions}
}

var _ Provider = (*SQLiteProvider)(nil)
var _ Catalog = (*SQLiteProvider)(nil)

func (p *SQLiteProvider) Save(ctx context.Context, snap Snapshot) error {
	payload, err := json.Marshal(snap.Properties)
	if err != nil {
		return fmt.Errorf("marshal properties: %w", err)
	}

	var nextVersion int
	row := p.db.QueryRowContext(ctx,
		`SELECT COALESCE(MAX(version), 0) + 1 FROM snapshots WHERE foundry_execution_id = ? AND workflow_id = ?`,
		snap.FoundryExecutionID, snap.WorkflowID)
	if err := row.Scan(&nextVersion); err != nil {
		return fmt.Errorf("compute next version: %w", err)
	}

	_, err = p.db.ExecContext(ctx,
		`INSERT INTO snapshots (foundry_execution_id, workflow_id, workflow_name, next_operation_index, properties, version, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		snap.FoundryExecutionID, snap.WorkflowID, snap.WorkflowName, snap.NextOperationIndex, string(payload), nextVersion, time.Now(),
	)
	if err != nil {
		return fmt.Errorf("insert snapshot: %w", err)
	}

	if p.maxVersions > 0 {
		if _, err := p.db.ExecContext(ctx,
			`DELETE FROM snapshots WHERE foundry_execution_id = ? AND workflow_id = ? AND version <= ?`,
			snap.FoundryExecutionID, snap.WorkflowID, nextVersion-p.maxVersions,
		); err != nil {
			return fmt.Errorf("prune snapshot history: %w", err)
		}
	}

	return nil
}

func (p *SQLiteProvider) TryLoad(ctx context.Context, foundryExecutionID, workflowID string) (*Snapshot, error) {
	row := p.db.QueryRowContext(ctx,
		`SELECT `+snapshotColumns+` FROM snapshots
		 WHERE foundry_execution_id = ? AND workflow_id = ?
		 ORDER BY version DESC LIMIT 1`,
		foundryExecutionID, workflowID,
	)

	snap, err := scanSnapshot(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("load snapshot: %w", err)
	}
	return snap, nil
}

func (p *SQLiteProvider) Delete(ctx context.Context, foundryExecutionID, workflowID string) error {
	_, err := p.db.ExecContext(ctx,
		`DELETE FROM snapshots WHERE foundry_execution_id = ? AND workflow_id = ?`,
		foundryExecutionID, workflowID,
	)
	if err != nil {
		return fmt.Errorf("delete snapshot: %w", err)
	}
	return nil
}

// ListPending returns one row per distinct (foundry_execution_id,
// workflow_id) key at its highest version, oldest-updated-first.
func (p *SQLiteProvider) ListPending(ctx context.Context) ([]Snapshot, error) {
	rows, err := p.db.QueryContext(ctx, `
		SELECT `+snapshotColumns+` FROM snapshots s
		WHERE s.version = (
			SELECT MAX(version) FROM snapshots s2
			WHERE s2.foundry_execution_id = s.foundry_execution_id AND s2.workflow_id = s.workflow_id
		)
		ORDER BY s.updated_at ASC`)
	if err != nil {
		return nil, fmt.Errorf("list pending snapshots: %w", err)
	}
	defer rows.Close()

	var out []Snapshot
	for rows.Next() {
		snap, err := scanSnapshot(rows)
		if err != nil {
			return nil, fmt.Errorf("scan pending snapshot: %w", err)
		}
		out = append(out, *snap)
	}
	return out, rows.Err()
}

func scanSnapshot(scanner interface{ Scan(...any) error }) (*Snapshot, error) {
	var snap Snapshot
	var propsJSON string
	if err := scanner.Scan(
		&snap.FoundryExecutionID, &snap.WorkflowID, &snap.WorkflowName,
		&snap.NextOperationIndex, &propsJSON, &snap.Version, &snap.UpdatedAt,
	); err != nil {
		return nil, err
	}
	if err := json.Unmarshal([]byte(propsJSON), &snap.Properties); err != nil {
		return nil, fmt.Errorf("unmarshal properties: %w", err)
	}
	return &snap, nil
}
