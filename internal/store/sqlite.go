package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	_ "modernc.org/sqlite"

	"github.com/sells-group/callrouter/internal/model"
)

// SQLiteStore implements Store using modernc.org/sqlite.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLite opens a SQLite database at the given path and configures WAL mode.
func NewSQLite(dsn string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: open")
	}
	for _, pragma := range []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=5000",
		"PRAGMA synchronous=NORMAL",
	} {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, eris.Wrapf(err, "sqlite: exec %s", pragma)
		}
	}
	return &SQLiteStore{db: db}, nil
}

const sqliteMigration = `
CREATE TABLE IF NOT EXISTS attribution_runs (
	id         TEXT PRIMARY KEY,
	call_id    TEXT NOT NULL,
	status     TEXT NOT NULL DEFAULT 'queued',
	result     TEXT,
	created_at DATETIME NOT NULL DEFAULT (datetime('now')),
	updated_at DATETIME NOT NULL DEFAULT (datetime('now'))
);

CREATE TABLE IF NOT EXISTS span_attributions (
	id         TEXT PRIMARY KEY,
	run_id     TEXT NOT NULL REFERENCES attribution_runs(id),
	span_index INTEGER NOT NULL,
	verdict    TEXT NOT NULL,
	created_at DATETIME NOT NULL DEFAULT (datetime('now')),
	UNIQUE (run_id, span_index)
);

CREATE INDEX IF NOT EXISTS idx_attribution_runs_status ON attribution_runs(status);
CREATE INDEX IF NOT EXISTS idx_attribution_runs_call_id ON attribution_runs(call_id);
CREATE INDEX IF NOT EXISTS idx_span_attributions_run_id ON span_attributions(run_id);
`

func (s *SQLiteStore) Migrate(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, sqliteMigration)
	return eris.Wrap(err, "sqlite: migrate")
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func (s *SQLiteStore) CreateRun(ctx context.Context, callID string) (*model.AttributionRun, error) {
	id := uuid.New().String()
	now := time.Now().UTC()

	_, err := s.db.ExecContext(ctx,
		`INSERT INTO attribution_runs (id, call_id, status, created_at, updated_at) VALUES (?, ?, ?, ?, ?)`,
		id, callID, string(model.RunStatusQueued), now, now,
	)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: insert run")
	}

	return &model.AttributionRun{
		ID:        id,
		CallID:    callID,
		Status:    model.RunStatusQueued,
		CreatedAt: now,
		UpdatedAt: now,
	}, nil
}

func (s *SQLiteStore) UpdateRunStatus(ctx context.Context, runID string, status model.RunStatus) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE attribution_runs SET status = ?, updated_at = ? WHERE id = ?`,
		string(status), time.Now().UTC(), runID,
	)
	if err != nil {
		return eris.Wrapf(err, "sqlite: update run status %s", runID)
	}
	return checkRowsAffected(res, "run", runID)
}

func (s *SQLiteStore) UpdateRunResult(ctx context.Context, runID string, result *model.RunResult) error {
	resultJSON, err := json.Marshal(result)
	if err != nil {
		return eris.Wrap(err, "sqlite: marshal result")
	}

	status := model.RunStatusCompleted
	if result != nil && result.Junk {
		status = model.RunStatusJunk
	}

	res, err := s.db.ExecContext(ctx,
		`UPDATE attribution_runs SET result = ?, status = ?, updated_at = ? WHERE id = ?`,
		string(resultJSON), string(status), time.Now().UTC(), runID,
	)
	if err != nil {
		return eris.Wrapf(err, "sqlite: update run result %s", runID)
	}
	return checkRowsAffected(res, "run", runID)
}

func (s *SQLiteStore) GetRun(ctx context.Context, runID string) (*model.AttributionRun, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, call_id, status, result, created_at, updated_at FROM attribution_runs WHERE id = ?`,
		runID,
	)
	return scanRun(row)
}

func (s *SQLiteStore) ListRuns(ctx context.Context, filter RunFilter) ([]model.AttributionRun, error) {
	query := `SELECT id, call_id, status, result, created_at, updated_at FROM attribution_runs WHERE 1=1`
	var args []any

	if filter.Status != "" {
		query += ` AND status = ?`
		args = append(args, string(filter.Status))
	}
	if filter.CallID != "" {
		query += ` AND call_id = ?`
		args = append(args, filter.CallID)
	}
	query += ` ORDER BY created_at DESC`

	limit := filter.Limit
	if limit <= 0 {
		limit = 100
	}
	query += ` LIMIT ?`
	args = append(args, limit)

	if filter.Offset > 0 {
		query += ` OFFSET ?`
		args = append(args, filter.Offset)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: list runs")
	}
	defer rows.Close()

	var runs []model.AttributionRun
	for rows.Next() {
		r, err := scanRun(rows)
		if err != nil {
			return nil, err
		}
		runs = append(runs, *r)
	}
	return runs, eris.Wrap(rows.Err(), "sqlite: list runs iterate")
}

func (s *SQLiteStore) SaveSpanVerdicts(ctx context.Context, runID string, verdicts []model.SpanVerdict) error {
	if len(verdicts) == 0 {
		return nil
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return eris.Wrap(err, "sqlite: begin tx")
	}
	defer tx.Rollback()

	now := time.Now().UTC()
	for i, v := range verdicts {
		verdictJSON, err := json.Marshal(v)
		if err != nil {
			return eris.Wrapf(err, "sqlite: marshal verdict %d", i+1)
		}
		_, err = tx.ExecContext(ctx,
			`INSERT INTO span_attributions (id, run_id, span_index, verdict, created_at)
			 VALUES (?, ?, ?, ?, ?)
			 ON CONFLICT (run_id, span_index) DO UPDATE SET verdict = excluded.verdict, created_at = excluded.created_at`,
			uuid.New().String(), runID, i+1, string(verdictJSON), now,
		)
		if err != nil {
			return eris.Wrapf(err, "sqlite: insert verdict %d for run %s", i+1, runID)
		}
	}

	return eris.Wrap(tx.Commit(), "sqlite: commit verdicts")
}

func (s *SQLiteStore) ListSpanVerdicts(ctx context.Context, runID string) ([]model.SpanAttribution, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, run_id, span_index, verdict, created_at FROM span_attributions WHERE run_id = ? ORDER BY span_index`,
		runID,
	)
	if err != nil {
		return nil, eris.Wrapf(err, "sqlite: list span verdicts for run %s", runID)
	}
	defer rows.Close()

	var out []model.SpanAttribution
	for rows.Next() {
		var sa model.SpanAttribution
		var verdictJSON string
		if err := rows.Scan(&sa.ID, &sa.RunID, &sa.SpanIndex, &verdictJSON, &sa.CreatedAt); err != nil {
			return nil, eris.Wrap(err, "sqlite: scan span verdict")
		}
		if err := json.Unmarshal([]byte(verdictJSON), &sa.Verdict); err != nil {
			return nil, eris.Wrap(err, "sqlite: unmarshal verdict")
		}
		out = append(out, sa)
	}
	return out, eris.Wrap(rows.Err(), "sqlite: list span verdicts iterate")
}

// helpers

func checkRowsAffected(res sql.Result, entity, id string) error {
	n, err := res.RowsAffected()
	if err != nil {
		return eris.Wrap(err, "rows affected")
	}
	if n == 0 {
		return eris.Errorf("%s not found: %s", entity, id)
	}
	return nil
}

type scannable interface {
	Scan(dest ...any) error
}

func scanRun(row scannable) (*model.AttributionRun, error) {
	var r model.AttributionRun
	var resultJSON sql.NullString

	err := row.Scan(&r.ID, &r.CallID, &r.Status, &resultJSON, &r.CreatedAt, &r.UpdatedAt)
	if err == sql.ErrNoRows {
		return nil, eris.New("run not found")
	}
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: scan run")
	}

	if resultJSON.Valid {
		r.Result = &model.RunResult{}
		if err := json.Unmarshal([]byte(resultJSON.String), r.Result); err != nil {
			return nil, eris.Wrap(err, "sqlite: unmarshal result")
		}
	}
	return &r, nil
}
