// Package store persists testability decisions in a local SQLite database
// so repeated runs against the same device can be compared.
package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/devicelab/haltest/pkg/report"

	_ "modernc.org/sqlite"
)

// SQLiteDecisionStore is an append-only record of testability decisions.
type SQLiteDecisionStore struct {
	db *sql.DB
}

// Open opens (creating if needed) the store at path.
func Open(path string) (*SQLiteDecisionStore, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open decision store: %w", err)
	}
	s, err := NewSQLiteDecisionStore(db)
	if err != nil {
		_ = db.Close()
		return nil, err
	}
	return s, nil
}

// NewSQLiteDecisionStore wraps an existing database handle, running
// migrations on open.
func NewSQLiteDecisionStore(db *sql.DB) (*SQLiteDecisionStore, error) {
	s := &SQLiteDecisionStore{db: db}
	if err := s.migrate(); err != nil {
		return nil, fmt.Errorf("migrate decision store: %w", err)
	}
	return s, nil
}

func (s *SQLiteDecisionStore) migrate() error {
	statements := []string{`
    CREATE TABLE IF NOT EXISTS decisions (
        id TEXT PRIMARY KEY,
        run_id TEXT NOT NULL,
        mode TEXT NOT NULL,
        package TEXT NOT NULL,
        version TEXT NOT NULL,
        interface_name TEXT NOT NULL,
        arch TEXT NOT NULL,
        should_run INTEGER NOT NULL,
        instances JSON NOT NULL DEFAULT '[]',
        timestamp DATETIME NOT NULL
    );`,
		`CREATE INDEX IF NOT EXISTS idx_decisions_run_id ON decisions(run_id);`,
	}
	for _, stmt := range statements {
		if _, err := s.db.ExecContext(context.Background(), stmt); err != nil {
			return err
		}
	}
	return nil
}

// Store appends one decision under the given run ID.
func (s *SQLiteDecisionStore) Store(ctx context.Context, runID string, d *report.Decision) error {
	query := `INSERT INTO decisions (
        id, run_id, mode, package, version, interface_name, arch, should_run, instances, timestamp
    ) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`

	instancesJSON, err := json.Marshal(d.Instances)
	if err != nil {
		return fmt.Errorf("marshal instances: %w", err)
	}
	timestamp := d.Timestamp.UTC().Format(time.RFC3339Nano)

	_, err = s.db.ExecContext(ctx, query,
		d.ID, runID, string(d.Mode), d.Package, d.Version, d.Interface,
		d.Arch, d.ShouldRun, string(instancesJSON), timestamp,
	)
	if err != nil {
		return fmt.Errorf("failed to insert decision: %w", err)
	}
	return nil
}

// List returns the most recent decisions, newest first.
func (s *SQLiteDecisionStore) List(ctx context.Context, limit int) ([]*report.Decision, error) {
	query := `
        SELECT id, mode, package, version, interface_name, arch, should_run, instances, timestamp
        FROM decisions
        ORDER BY timestamp DESC
        LIMIT ?`
	return s.queryMany(ctx, query, limit)
}

// ListByRunID returns every decision recorded under one run, in insertion
// order.
func (s *SQLiteDecisionStore) ListByRunID(ctx context.Context, runID string) ([]*report.Decision, error) {
	query := `
        SELECT id, mode, package, version, interface_name, arch, should_run, instances, timestamp
        FROM decisions
        WHERE run_id = ?
        ORDER BY timestamp ASC`
	return s.queryMany(ctx, query, runID)
}

// Close closes the underlying database handle.
func (s *SQLiteDecisionStore) Close() error {
	return s.db.Close()
}

func (s *SQLiteDecisionStore) queryMany(ctx context.Context, query string, arg any) ([]*report.Decision, error) {
	rows, err := s.db.QueryContext(ctx, query, arg)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	var decisions []*report.Decision
	for rows.Next() {
		d, err := scanDecisionRow(rows)
		if err != nil {
			return nil, err
		}
		decisions = append(decisions, d)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return decisions, nil
}

func scanDecisionRow(rows *sql.Rows) (*report.Decision, error) {
	var (
		d             report.Decision
		mode          string
		instancesJSON string
		timestamp     string
	)
	if err := rows.Scan(&d.ID, &mode, &d.Package, &d.Version, &d.Interface,
		&d.Arch, &d.ShouldRun, &instancesJSON, &timestamp); err != nil {
		return nil, fmt.Errorf("scan decision: %w", err)
	}
	d.Mode = report.QueryMode(mode)
	if err := json.Unmarshal([]byte(instancesJSON), &d.Instances); err != nil {
		return nil, fmt.Errorf("unmarshal instances: %w", err)
	}
	ts, err := time.Parse(time.RFC3339Nano, timestamp)
	if err != nil {
		return nil, fmt.Errorf("parse decision timestamp: %w", err)
	}
	d.Timestamp = ts
	return &d, nil
}
