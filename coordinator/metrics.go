package coordinator

import (
	"context"
	"fmt"
	"time"

	"github.com/evalgo/memento/db"
)

// MetricsStore records a row per finished operation to a Postgres table for
// historical querying, adapted from the teacher's
// db/repository/postgres.go PostgresMetricsRepository.SaveRun/GetMetrics
// pattern. A nil *MetricsStore is valid and every method on it is a no-op,
// the same degrade-gracefully contract db.CompositeRepository uses for an
// unconfigured backend.
type MetricsStore struct {
	pg *db.PostgresDB
}

// NewMetricsStore opens a Postgres connection and ensures the operation_runs
// table exists.
func NewMetricsStore(ctx context.Context, connString string) (*MetricsStore, error) {
	pg, err := db.NewPostgresDB(connString)
	if err != nil {
		return nil, fmt.Errorf("coordinator: opening metrics store: %w", err)
	}
	if err := pg.Exec(ctx, `
		CREATE TABLE IF NOT EXISTS operation_runs (
			operation_id TEXT PRIMARY KEY,
			operation_type TEXT NOT NULL,
			status TEXT NOT NULL,
			started_at TIMESTAMPTZ NOT NULL,
			ended_at TIMESTAMPTZ,
			duration_ms BIGINT,
			files_processed INTEGER,
			entities_created INTEGER,
			entities_updated INTEGER,
			relationships_created INTEGER,
			unresolved INTEGER,
			errors_count INTEGER,
			conflicts_count INTEGER
		)
	`); err != nil {
		pg.Close()
		return nil, fmt.Errorf("coordinator: creating operation_runs table: %w", err)
	}
	return &MetricsStore{pg: pg}, nil
}

// Close releases the underlying connection pool. Safe to call on a nil
// *MetricsStore.
func (m *MetricsStore) Close() {
	if m == nil {
		return
	}
	m.pg.Close()
}

// RecordRun upserts op's terminal state as one audit row. Safe to call on a
// nil *MetricsStore.
func (m *MetricsStore) RecordRun(ctx context.Context, op *SyncOperation) error {
	if m == nil {
		return nil
	}
	var durationMs int64
	end := time.Now()
	if op.EndTime != nil {
		end = *op.EndTime
		durationMs = end.Sub(op.StartTime).Milliseconds()
	}
	return m.pg.Exec(ctx, `
		INSERT INTO operation_runs (
			operation_id, operation_type, status, started_at, ended_at, duration_ms,
			files_processed, entities_created, entities_updated, relationships_created,
			unresolved, errors_count, conflicts_count
		) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13)
		ON CONFLICT (operation_id) DO UPDATE SET
			status = EXCLUDED.status,
			ended_at = EXCLUDED.ended_at,
			duration_ms = EXCLUDED.duration_ms,
			files_processed = EXCLUDED.files_processed,
			entities_created = EXCLUDED.entities_created,
			entities_updated = EXCLUDED.entities_updated,
			relationships_created = EXCLUDED.relationships_created,
			unresolved = EXCLUDED.unresolved,
			errors_count = EXCLUDED.errors_count,
			conflicts_count = EXCLUDED.conflicts_count
	`,
		op.ID, string(op.Type), string(op.Status), op.StartTime, end, durationMs,
		op.Counters.FilesProcessed, op.Counters.EntitiesCreated, op.Counters.EntitiesUpdated,
		op.Counters.RelationshipsCreated, op.Counters.Unresolved, len(op.Errors), len(op.Conflicts),
	)
}

// OperationMetrics summarizes audit rows over a time window, mirroring the
// teacher's ActionMetrics shape.
type OperationMetrics struct {
	TotalRuns int64
	Successful int64
	Failed int64
	AvgMs float64
}

// GetMetrics aggregates operation_runs between from and to. Safe to call on
// a nil *MetricsStore, returning a zero OperationMetrics.
func (m *MetricsStore) GetMetrics(ctx context.Context, from, to time.Time) (OperationMetrics, error) {
	if m == nil {
		return OperationMetrics{}, nil
	}
	var out OperationMetrics
	var avg *float64
	row := m.pg.QueryRow(ctx, `
		SELECT
			COUNT(*),
			SUM(CASE WHEN status = 'completed' THEN 1 ELSE 0 END),
			SUM(CASE WHEN status = 'failed' THEN 1 ELSE 0 END),
			AVG(duration_ms)
		FROM operation_runs
		WHERE started_at BETWEEN $1 AND $2
	`, from, to)
	if err := row.Scan(&out.TotalRuns, &out.Successful, &out.Failed, &avg); err != nil {
		return out, fmt.Errorf("coordinator: querying operation metrics: %w", err)
	}
	if avg != nil {
		out.AvgMs = *avg
	}
	return out, nil
}
