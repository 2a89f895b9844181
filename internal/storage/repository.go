// Package storage persists the snapshot chain in SQLite: one row per
// month, breakdown documents keyed by month and metric, and a single
// dashboard/latest pointer row.
package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"madad/internal/metrics"
	"madad/internal/snapshot"

	_ "modernc.org/sqlite"
)

type SQLiteRepository struct {
	db *sql.DB
}

func NewSQLiteRepository(dbPath string) (*SQLiteRepository, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
		return nil, fmt.Errorf("create db directory: %w", err)
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open sqlite database: %w", err)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	if err := RunMigrations(dbPath); err != nil {
		db.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	return &SQLiteRepository{db: db}, nil
}

func (r *SQLiteRepository) Close() error {
	if r.db != nil {
		return r.db.Close()
	}
	return nil
}

// LastSnapshotMonth implements snapshot.Store.
func (r *SQLiteRepository) LastSnapshotMonth(ctx context.Context) (string, error) {
	var month string
	err := r.db.QueryRowContext(ctx,
		`SELECT month FROM snapshots ORDER BY month DESC LIMIT 1`).Scan(&month)
	if errors.Is(err, sql.ErrNoRows) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("query last snapshot month: %w", err)
	}
	return month, nil
}

// GetSnapshot implements snapshot.Store. Returns nil when absent.
func (r *SQLiteRepository) GetSnapshot(ctx context.Context, month string) (*snapshot.SnapshotRecord, error) {
	var (
		rec         snapshot.SnapshotRecord
		metricsJSON string
		diffJSON    string
	)
	err := r.db.QueryRowContext(ctx,
		`SELECT month, version, computed_at, metrics_json, diff_json FROM snapshots WHERE month = ?`,
		month).Scan(&rec.Month, &rec.Version, &rec.ComputedAt, &metricsJSON, &diffJSON)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("query snapshot %s: %w", month, err)
	}

	if err := json.Unmarshal([]byte(metricsJSON), &rec.Metrics); err != nil {
		return nil, fmt.Errorf("decode metrics for %s: %w", month, err)
	}
	if err := json.Unmarshal([]byte(diffJSON), &rec.DiffFromPreviousPct); err != nil {
		return nil, fmt.Errorf("decode diff for %s: %w", month, err)
	}
	return &rec, nil
}

// ListSnapshots returns the whole chain in chronological order.
func (r *SQLiteRepository) ListSnapshots(ctx context.Context) ([]snapshot.SnapshotRecord, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT month, version, computed_at, metrics_json, diff_json FROM snapshots ORDER BY month ASC`)
	if err != nil {
		return nil, fmt.Errorf("query snapshots: %w", err)
	}
	defer rows.Close()

	var records []snapshot.SnapshotRecord
	for rows.Next() {
		var (
			rec         snapshot.SnapshotRecord
			metricsJSON string
			diffJSON    string
		)
		if err := rows.Scan(&rec.Month, &rec.Version, &rec.ComputedAt, &metricsJSON, &diffJSON); err != nil {
			return nil, fmt.Errorf("scan snapshot row: %w", err)
		}
		if err := json.Unmarshal([]byte(metricsJSON), &rec.Metrics); err != nil {
			return nil, fmt.Errorf("decode metrics for %s: %w", rec.Month, err)
		}
		if err := json.Unmarshal([]byte(diffJSON), &rec.DiffFromPreviousPct); err != nil {
			return nil, fmt.Errorf("decode diff for %s: %w", rec.Month, err)
		}
		records = append(records, rec)
	}
	return records, rows.Err()
}

// SaveSnapshot implements snapshot.Store. The row is upserted: past
// months are only ever written once by the engine, while the current
// month is overwritten on every refresh.
func (r *SQLiteRepository) SaveSnapshot(ctx context.Context, rec snapshot.SnapshotRecord, breakdowns map[string]metrics.BreakdownDoc) error {
	metricsJSON, err := json.Marshal(rec.Metrics)
	if err != nil {
		return fmt.Errorf("encode metrics: %w", err)
	}
	diffJSON, err := json.Marshal(rec.DiffFromPreviousPct)
	if err != nil {
		return fmt.Errorf("encode diff: %w", err)
	}

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx, `
		INSERT INTO snapshots (month, version, computed_at, metrics_json, diff_json)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(month) DO UPDATE SET
			version = excluded.version,
			computed_at = excluded.computed_at,
			metrics_json = excluded.metrics_json,
			diff_json = excluded.diff_json`,
		rec.Month, rec.Version, rec.ComputedAt, string(metricsJSON), string(diffJSON))
	if err != nil {
		return fmt.Errorf("upsert snapshot %s: %w", rec.Month, err)
	}

	if _, err := tx.ExecContext(ctx,
		`DELETE FROM metric_breakdowns WHERE month = ?`, rec.Month); err != nil {
		return fmt.Errorf("clear breakdowns %s: %w", rec.Month, err)
	}
	for key, doc := range breakdowns {
		docJSON, err := json.Marshal(doc)
		if err != nil {
			return fmt.Errorf("encode breakdown %s/%s: %w", rec.Month, key, err)
		}
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO metric_breakdowns (month, metric_key, doc_json)
			VALUES (?, ?, ?)`,
			rec.Month, key, string(docJSON)); err != nil {
			return fmt.Errorf("insert breakdown %s/%s: %w", rec.Month, key, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit snapshot %s: %w", rec.Month, err)
	}

	slog.InfoContext(ctx, "Snapshot saved",
		"month", rec.Month,
		"breakdowns", len(breakdowns))
	return nil
}

// GetBreakdowns returns a month's breakdown documents keyed by metric.
func (r *SQLiteRepository) GetBreakdowns(ctx context.Context, month string) (map[string]metrics.BreakdownDoc, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT metric_key, doc_json FROM metric_breakdowns WHERE month = ?`, month)
	if err != nil {
		return nil, fmt.Errorf("query breakdowns %s: %w", month, err)
	}
	defer rows.Close()

	docs := make(map[string]metrics.BreakdownDoc)
	for rows.Next() {
		var key, docJSON string
		if err := rows.Scan(&key, &docJSON); err != nil {
			return nil, fmt.Errorf("scan breakdown row: %w", err)
		}
		var doc metrics.BreakdownDoc
		if err := json.Unmarshal([]byte(docJSON), &doc); err != nil {
			return nil, fmt.Errorf("decode breakdown %s/%s: %w", month, key, err)
		}
		docs[key] = doc
	}
	return docs, rows.Err()
}

// LatestDashboard is the dashboard/latest pointer payload.
type LatestDashboard struct {
	Version    string                   `json:"version"`
	Month      string                   `json:"month"`
	ComputedAt time.Time                `json:"computedAt"`
	Metrics    metrics.DashboardMetrics `json:"metrics"`
}

// SetLatest implements snapshot.Store.
func (r *SQLiteRepository) SetLatest(ctx context.Context, rec snapshot.SnapshotRecord) error {
	metricsJSON, err := json.Marshal(rec.Metrics)
	if err != nil {
		return fmt.Errorf("encode metrics: %w", err)
	}
	_, err = r.db.ExecContext(ctx, `
		INSERT INTO dashboard_latest (id, month, version, computed_at, metrics_json)
		VALUES (1, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			month = excluded.month,
			version = excluded.version,
			computed_at = excluded.computed_at,
			metrics_json = excluded.metrics_json`,
		rec.Month, rec.Version, rec.ComputedAt, string(metricsJSON))
	if err != nil {
		return fmt.Errorf("upsert latest: %w", err)
	}
	return nil
}

// GetLatest returns the dashboard/latest pointer, nil when never set.
func (r *SQLiteRepository) GetLatest(ctx context.Context) (*LatestDashboard, error) {
	var (
		latest      LatestDashboard
		metricsJSON string
	)
	err := r.db.QueryRowContext(ctx,
		`SELECT month, version, computed_at, metrics_json FROM dashboard_latest WHERE id = 1`).
		Scan(&latest.Month, &latest.Version, &latest.ComputedAt, &metricsJSON)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("query latest: %w", err)
	}
	if err := json.Unmarshal([]byte(metricsJSON), &latest.Metrics); err != nil {
		return nil, fmt.Errorf("decode latest metrics: %w", err)
	}
	return &latest, nil
}
