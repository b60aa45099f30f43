// Package postgres provides Postgres-backed persistence implementations.
package postgres

import (
	"context"
	"encoding/json"
	"fmt"
	"regexp"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/Kolo-Naukowe-Data-Science-PW/Chatbot-MiNI/internal/crawler"
)

// DefaultTable is the run history table name.
const DefaultTable = "crawl_runs"

var validTableName = regexp.MustCompile(`^[a-zA-Z_][a-zA-Z0-9_]*$`)

// RunStoreConfig controls the Postgres connection pool used for run history.
type RunStoreConfig struct {
	DSN             string
	Table           string
	MaxConns        int32
	MinConns        int32
	MaxConnLifetime time.Duration
}

type queryExecCloser interface {
	Exec(context.Context, string, ...any) (pgconn.CommandTag, error)
	Query(context.Context, string, ...any) (pgx.Rows, error)
	Close()
}

// RunStore writes crawl run summaries into Postgres.
type RunStore struct {
	pool  queryExecCloser
	table string
}

// NewRunStore creates a Postgres-backed RunStore using the provided config.
func NewRunStore(ctx context.Context, cfg RunStoreConfig) (*RunStore, error) {
	if cfg.DSN == "" {
		return nil, fmt.Errorf("runs.dsn is required")
	}
	table, err := tableName(cfg.Table)
	if err != nil {
		return nil, err
	}
	poolCfg, err := pgxpool.ParseConfig(cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("parse postgres dsn: %w", err)
	}
	if cfg.MaxConns > 0 {
		poolCfg.MaxConns = cfg.MaxConns
	}
	if cfg.MinConns > 0 {
		poolCfg.MinConns = cfg.MinConns
	}
	if cfg.MaxConnLifetime > 0 {
		poolCfg.MaxConnLifetime = cfg.MaxConnLifetime
	}
	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, fmt.Errorf("connect postgres: %w", err)
	}
	return &RunStore{pool: pool, table: table}, nil
}

// NewRunStoreWithPool constructs a store from an existing pool (primarily for testing).
func NewRunStoreWithPool(pool queryExecCloser, table string) (*RunStore, error) {
	if pool == nil {
		return nil, fmt.Errorf("pool is required")
	}
	name, err := tableName(table)
	if err != nil {
		return nil, err
	}
	return &RunStore{pool: pool, table: name}, nil
}

func tableName(table string) (string, error) {
	if table == "" {
		table = DefaultTable
	}
	if !validTableName.MatchString(table) {
		return "", fmt.Errorf("invalid table name %q", table)
	}
	return table, nil
}

// Close releases the underlying pool resources.
func (s *RunStore) Close() {
	if s == nil || s.pool == nil {
		return
	}
	s.pool.Close()
}

// EnsureSchema creates the run table if it does not exist.
func (s *RunStore) EnsureSchema(ctx context.Context) error {
	query := fmt.Sprintf(`
CREATE TABLE IF NOT EXISTS %s (
	run_id      TEXT PRIMARY KEY,
	started_at  TIMESTAMPTZ NOT NULL,
	finished_at TIMESTAMPTZ,
	rounds      INTEGER NOT NULL,
	resumed     INTEGER NOT NULL,
	dispatched  INTEGER NOT NULL,
	fetched     INTEGER NOT NULL,
	failed      INTEGER NOT NULL,
	skipped     INTEGER NOT NULL,
	discovered  INTEGER NOT NULL,
	published   INTEGER NOT NULL,
	promoted    JSONB NOT NULL,
	error_text  TEXT NOT NULL
)`, s.table)
	if _, err := s.pool.Exec(ctx, query); err != nil {
		return fmt.Errorf("create %s: %w", s.table, err)
	}
	return nil
}

// RecordRun upserts one run row.
func (s *RunStore) RecordRun(ctx context.Context, summary crawler.RunSummary) error {
	if s == nil || s.pool == nil {
		return fmt.Errorf("run store is not configured")
	}
	if summary.RunID == "" {
		return fmt.Errorf("run id is required")
	}
	promoted := summary.Promoted
	if promoted == nil {
		promoted = []string{}
	}
	promotedJSON, err := json.Marshal(promoted)
	if err != nil {
		return fmt.Errorf("marshal promoted: %w", err)
	}
	query := fmt.Sprintf(`
INSERT INTO %s (
	run_id,
	started_at,
	finished_at,
	rounds,
	resumed,
	dispatched,
	fetched,
	failed,
	skipped,
	discovered,
	published,
	promoted,
	error_text
) VALUES (
	$1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13
)
ON CONFLICT (run_id) DO UPDATE SET
	finished_at = EXCLUDED.finished_at,
	error_text = EXCLUDED.error_text`, s.table)

	args := []any{
		summary.RunID,
		summary.StartedAt,
		summary.FinishedAt,
		summary.Rounds,
		summary.Resumed,
		summary.Dispatched,
		summary.Fetched,
		summary.Failed,
		summary.Skipped,
		summary.Discovered,
		summary.Published,
		promotedJSON,
		summary.Error,
	}
	if _, err := s.pool.Exec(ctx, query, args...); err != nil {
		return fmt.Errorf("insert run: %w", err)
	}
	return nil
}

// ListRuns returns up to limit runs, newest first.
func (s *RunStore) ListRuns(ctx context.Context, limit int) ([]crawler.RunSummary, error) {
	if s == nil || s.pool == nil {
		return nil, fmt.Errorf("run store is not configured")
	}
	if limit <= 0 {
		limit = 50
	}
	query := fmt.Sprintf(`
SELECT run_id, started_at, finished_at, rounds, resumed, dispatched, fetched,
	failed, skipped, discovered, published, promoted, error_text
FROM %s
ORDER BY started_at DESC
LIMIT $1`, s.table)
	rows, err := s.pool.Query(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("query runs: %w", err)
	}
	defer rows.Close()

	var runs []crawler.RunSummary
	for rows.Next() {
		var (
			run          crawler.RunSummary
			promotedJSON []byte
		)
		if err := rows.Scan(
			&run.RunID,
			&run.StartedAt,
			&run.FinishedAt,
			&run.Rounds,
			&run.Resumed,
			&run.Dispatched,
			&run.Fetched,
			&run.Failed,
			&run.Skipped,
			&run.Discovered,
			&run.Published,
			&promotedJSON,
			&run.Error,
		); err != nil {
			return nil, fmt.Errorf("scan run: %w", err)
		}
		if len(promotedJSON) > 0 {
			if err := json.Unmarshal(promotedJSON, &run.Promoted); err != nil {
				return nil, fmt.Errorf("decode promoted for %s: %w", run.RunID, err)
			}
		}
		runs = append(runs, run)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate runs: %w", err)
	}
	return runs, nil
}
