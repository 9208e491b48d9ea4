package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rotisserie/eris"

	"github.com/sells-group/callrouter/internal/db"
	"github.com/sells-group/callrouter/internal/model"
)

// PostgresStore implements Store using pgxpool.
type PostgresStore struct {
	pool    db.Pool
	closeFn func()
}

// PoolConfig holds optional connection pool tuning parameters.
type PoolConfig struct {
	MaxConns int32 `yaml:"max_conns" mapstructure:"max_conns"`
	MinConns int32 `yaml:"min_conns" mapstructure:"min_conns"`
}

// preparedStatements lists queries to prepare on each new connection for
// faster execution of the most frequently used store operations.
var preparedStatements = map[string]string{
	"insert_run":         `INSERT INTO attribution_runs (id, call_id, status, created_at, updated_at) VALUES ($1, $2, $3, $4, $5)`,
	"update_run_status":  `UPDATE attribution_runs SET status = $1, updated_at = $2 WHERE id = $3`,
	"update_run_result":  `UPDATE attribution_runs SET result = $1, status = $2, updated_at = $3 WHERE id = $4`,
	"get_run":            `SELECT id, call_id, status, result, created_at, updated_at FROM attribution_runs WHERE id = $1`,
	"list_span_verdicts": `SELECT id, run_id, span_index, verdict, created_at FROM span_attributions WHERE run_id = $1 ORDER BY span_index`,
}

// NewPostgres creates a PostgresStore with a connection pool.
func NewPostgres(ctx context.Context, connString string, poolCfg *PoolConfig) (*PostgresStore, error) {
	pgxCfg, err := pgxpool.ParseConfig(connString)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: parse config")
	}

	// Apply pool sizing from config with sensible defaults.
	maxConns := int32(10)
	minConns := int32(2)
	if poolCfg != nil {
		if poolCfg.MaxConns > 0 {
			maxConns = poolCfg.MaxConns
		}
		if poolCfg.MinConns > 0 {
			minConns = poolCfg.MinConns
		}
	}
	pgxCfg.MaxConns = maxConns
	pgxCfg.MinConns = minConns
	pgxCfg.MaxConnLifetime = 30 * time.Minute
	pgxCfg.MaxConnIdleTime = 5 * time.Minute

	// Prepare frequently-used statements on each new connection.
	pgxCfg.AfterConnect = func(ctx context.Context, conn *pgx.Conn) error {
		for name, sql := range preparedStatements {
			if _, err := conn.Prepare(ctx, name, sql); err != nil {
				return eris.Wrapf(err, "postgres: prepare %s", name)
			}
		}
		return nil
	}

	pool, err := pgxpool.NewWithConfig(ctx, pgxCfg)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: create pool")
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, eris.Wrap(err, "postgres: ping")
	}
	return &PostgresStore{pool: pool, closeFn: pool.Close}, nil
}

// NewPostgresFromPool wraps an existing pool; used by tests with pgxmock.
func NewPostgresFromPool(pool db.Pool) *PostgresStore {
	return &PostgresStore{pool: pool, closeFn: pool.Close}
}

// Pool returns the underlying database pool for subsystems that need
// direct query access.
func (s *PostgresStore) Pool() db.Pool {
	return s.pool
}

const postgresMigration = `
CREATE TABLE IF NOT EXISTS attribution_runs (
	id         TEXT PRIMARY KEY DEFAULT gen_random_uuid()::text,
	call_id    TEXT NOT NULL,
	status     TEXT NOT NULL DEFAULT 'queued',
	result     JSONB,
	created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
	updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE TABLE IF NOT EXISTS span_attributions (
	id         TEXT PRIMARY KEY DEFAULT gen_random_uuid()::text,
	run_id     TEXT NOT NULL REFERENCES attribution_runs(id),
	span_index INTEGER NOT NULL,
	verdict    JSONB NOT NULL,
	created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
	UNIQUE (run_id, span_index)
);

CREATE INDEX IF NOT EXISTS idx_attribution_runs_status ON attribution_runs(status);
CREATE INDEX IF NOT EXISTS idx_attribution_runs_call_id ON attribution_runs(call_id);
CREATE INDEX IF NOT EXISTS idx_span_attributions_run_id ON span_attributions(run_id);
`

func (s *PostgresStore) Ping(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, "SELECT 1")
	return eris.Wrap(err, "postgres: ping")
}

func (s *PostgresStore) Migrate(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, postgresMigration)
	return eris.Wrap(err, "postgres: migrate")
}

func (s *PostgresStore) Close() error {
	if s.closeFn != nil {
		s.closeFn()
	}
	return nil
}

func (s *PostgresStore) CreateRun(ctx context.Context, callID string) (*model.AttributionRun, error) {
	id := uuid.New().String()
	now := time.Now().UTC()

	_, err := s.pool.Exec(ctx,
		`INSERT INTO attribution_runs (id, call_id, status, created_at, updated_at) VALUES ($1, $2, $3, $4, $5)`,
		id, callID, string(model.RunStatusQueued), now, now,
	)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: insert run")
	}

	return &model.AttributionRun{
		ID:        id,
		CallID:    callID,
		Status:    model.RunStatusQueued,
		CreatedAt: now,
		UpdatedAt: now,
	}, nil
}

func (s *PostgresStore) UpdateRunStatus(ctx context.Context, runID string, status model.RunStatus) error {
	tag, err := s.pool.Exec(ctx,
		`UPDATE attribution_runs SET status = $1, updated_at = $2 WHERE id = $3`,
		string(status), time.Now().UTC(), runID,
	)
	if err != nil {
		return eris.Wrapf(err, "postgres: update run status %s", runID)
	}
	if tag.RowsAffected() == 0 {
		return eris.Errorf("run not found: %s", runID)
	}
	return nil
}

func (s *PostgresStore) UpdateRunResult(ctx context.Context, runID string, result *model.RunResult) error {
	resultJSON, err := json.Marshal(result)
	if err != nil {
		return eris.Wrap(err, "postgres: marshal result")
	}

	status := model.RunStatusCompleted
	if result != nil && result.Junk {
		status = model.RunStatusJunk
	}

	tag, err := s.pool.Exec(ctx,
		`UPDATE attribution_runs SET result = $1, status = $2, updated_at = $3 WHERE id = $4`,
		resultJSON, string(status), time.Now().UTC(), runID,
	)
	if err != nil {
		return eris.Wrapf(err, "postgres: update run result %s", runID)
	}
	if tag.RowsAffected() == 0 {
		return eris.Errorf("run not found: %s", runID)
	}
	return nil
}

func (s *PostgresStore) GetRun(ctx context.Context, runID string) (*model.AttributionRun, error) {
	var r model.AttributionRun
	var resultNull *[]byte

	err := s.pool.QueryRow(ctx,
		`SELECT id, call_id, status, result, created_at, updated_at FROM attribution_runs WHERE id = $1`,
		runID,
	).Scan(&r.ID, &r.CallID, &r.Status, &resultNull, &r.CreatedAt, &r.UpdatedAt)
	if err != nil {
		return nil, eris.Wrapf(err, "postgres: get run %s", runID)
	}

	if resultNull != nil {
		r.Result = &model.RunResult{}
		if err := json.Unmarshal(*resultNull, r.Result); err != nil {
			return nil, eris.Wrap(err, "postgres: unmarshal result")
		}
	}
	return &r, nil
}

func (s *PostgresStore) ListRuns(ctx context.Context, filter RunFilter) ([]model.AttributionRun, error) {
	query := `SELECT id, call_id, status, result, created_at, updated_at FROM attribution_runs WHERE true`
	args := []any{}
	argIdx := 1

	if filter.Status != "" {
		query += fmt.Sprintf(` AND status = $%d`, argIdx)
		args = append(args, string(filter.Status))
		argIdx++
	}
	if filter.CallID != "" {
		query += fmt.Sprintf(` AND call_id = $%d`, argIdx)
		args = append(args, filter.CallID)
		argIdx++
	}
	query += ` ORDER BY created_at DESC`

	limit := filter.Limit
	if limit <= 0 {
		limit = 100
	}
	query += fmt.Sprintf(` LIMIT $%d`, argIdx)
	args = append(args, limit)
	argIdx++

	if filter.Offset > 0 {
		query += fmt.Sprintf(` OFFSET $%d`, argIdx)
		args = append(args, filter.Offset)
		argIdx++
	}

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: list runs")
	}
	defer rows.Close()

	var runs []model.AttributionRun
	for rows.Next() {
		var r model.AttributionRun
		var resultNull *[]byte

		if err := rows.Scan(&r.ID, &r.CallID, &r.Status, &resultNull, &r.CreatedAt, &r.UpdatedAt); err != nil {
			return nil, eris.Wrap(err, "postgres: scan run")
		}
		if resultNull != nil {
			r.Result = &model.RunResult{}
			if err := json.Unmarshal(*resultNull, r.Result); err != nil {
				return nil, eris.Wrap(err, "postgres: unmarshal result")
			}
		}
		runs = append(runs, r)
	}
	return runs, eris.Wrap(rows.Err(), "postgres: list runs iterate")
}

// SaveSpanVerdicts upserts the run's verdicts keyed by (run_id, span_index),
// so re-routing a call replaces its earlier verdicts instead of duplicating.
func (s *PostgresStore) SaveSpanVerdicts(ctx context.Context, runID string, verdicts []model.SpanVerdict) error {
	if len(verdicts) == 0 {
		return nil
	}

	now := time.Now().UTC()
	rows := make([][]any, 0, len(verdicts))
	for i, v := range verdicts {
		verdictJSON, err := json.Marshal(v)
		if err != nil {
			return eris.Wrapf(err, "postgres: marshal verdict %d", i+1)
		}
		rows = append(rows, []any{uuid.New().String(), runID, i + 1, verdictJSON, now})
	}

	_, err := db.BulkUpsert(ctx, s.pool, db.UpsertConfig{
		Table:        "span_attributions",
		Columns:      []string{"id", "run_id", "span_index", "verdict", "created_at"},
		ConflictKeys: []string{"run_id", "span_index"},
		UpdateCols:   []string{"verdict", "created_at"},
	}, rows)
	return eris.Wrapf(err, "postgres: save span verdicts for run %s", runID)
}

func (s *PostgresStore) ListSpanVerdicts(ctx context.Context, runID string) ([]model.SpanAttribution, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT id, run_id, span_index, verdict, created_at FROM span_attributions WHERE run_id = $1 ORDER BY span_index`,
		runID,
	)
	if err != nil {
		return nil, eris.Wrapf(err, "postgres: list span verdicts for run %s", runID)
	}
	defer rows.Close()

	var out []model.SpanAttribution
	for rows.Next() {
		var sa model.SpanAttribution
		var verdictJSON []byte
		if err := rows.Scan(&sa.ID, &sa.RunID, &sa.SpanIndex, &verdictJSON, &sa.CreatedAt); err != nil {
			return nil, eris.Wrap(err, "postgres: scan span verdict")
		}
		if err := json.Unmarshal(verdictJSON, &sa.Verdict); err != nil {
			return nil, eris.Wrap(err, "postgres: unmarshal verdict")
		}
		out = append(out, sa)
	}
	return out, eris.Wrap(rows.Err(), "postgres: list span verdicts iterate")
}

// IsNotFound reports whether the error is a missing-row condition.
func IsNotFound(err error) bool {
	return errors.Is(err, pgx.ErrNoRows)
}
