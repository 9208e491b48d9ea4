package store

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/callrouter/internal/model"
)

// newMockPostgresStore creates a PostgresStore backed by pgxmock for unit testing.
func newMockPostgresStore(t *testing.T) (*PostgresStore, pgxmock.PgxPoolIface) {
	t.Helper()
	mock, err := pgxmock.NewPool(pgxmock.QueryMatcherOption(pgxmock.QueryMatcherRegexp))
	require.NoError(t, err)
	t.Cleanup(func() { mock.Close() })

	return NewPostgresFromPool(mock), mock
}

func TestPostgresStore_CreateRun(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectExec(`INSERT INTO attribution_runs`).
		WithArgs(pgxmock.AnyArg(), "call-1", "queued", pgxmock.AnyArg(), pgxmock.AnyArg()).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))

	run, err := s.CreateRun(context.Background(), "call-1")
	require.NoError(t, err)
	assert.NotEmpty(t, run.ID)
	assert.Equal(t, "call-1", run.CallID)
	assert.Equal(t, model.RunStatusQueued, run.Status)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_UpdateRunStatus_NotFound(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectExec(`UPDATE attribution_runs SET status`).
		WithArgs("running", pgxmock.AnyArg(), "missing").
		WillReturnResult(pgxmock.NewResult("UPDATE", 0))

	err := s.UpdateRunStatus(context.Background(), "missing", model.RunStatusRunning)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "not found")
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_UpdateRunResult_JunkStatus(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectExec(`UPDATE attribution_runs SET result`).
		WithArgs(pgxmock.AnyArg(), "junk", pgxmock.AnyArg(), "run-1").
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))

	err := s.UpdateRunResult(context.Background(), "run-1", &model.RunResult{
		Junk:            true,
		JunkReasonCodes: []string{"junk_call_filtered"},
	})
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_GetRun(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	now := time.Now().UTC()
	resultJSON, err := json.Marshal(model.RunResult{SpanCount: 2, AssignedCount: 1})
	require.NoError(t, err)

	mock.ExpectQuery(`SELECT id, call_id, status, result, created_at, updated_at FROM attribution_runs WHERE id = \$1`).
		WithArgs("run-1").
		WillReturnRows(pgxmock.NewRows([]string{"id", "call_id", "status", "result", "created_at", "updated_at"}).
			AddRow("run-1", "call-1", model.RunStatusCompleted, &resultJSON, now, now))

	run, err := s.GetRun(context.Background(), "run-1")
	require.NoError(t, err)
	assert.Equal(t, "call-1", run.CallID)
	assert.Equal(t, model.RunStatusCompleted, run.Status)
	require.NotNil(t, run.Result)
	assert.Equal(t, 2, run.Result.SpanCount)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_GetRun_NotFound(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectQuery(`SELECT id, call_id, status, result, created_at, updated_at FROM attribution_runs WHERE id = \$1`).
		WithArgs("missing").
		WillReturnError(pgx.ErrNoRows)

	_, err := s.GetRun(context.Background(), "missing")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "get run")
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_ListRuns_StatusFilter(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	now := time.Now().UTC()
	mock.ExpectQuery(`SELECT id, call_id, status, result, created_at, updated_at FROM attribution_runs WHERE true AND status = \$1 ORDER BY created_at DESC LIMIT \$2`).
		WithArgs("completed", 100).
		WillReturnRows(pgxmock.NewRows([]string{"id", "call_id", "status", "result", "created_at", "updated_at"}).
			AddRow("run-1", "call-1", model.RunStatusCompleted, (*[]byte)(nil), now, now))

	runs, err := s.ListRuns(context.Background(), RunFilter{Status: model.RunStatusCompleted})
	require.NoError(t, err)
	require.Len(t, runs, 1)
	assert.Equal(t, "run-1", runs[0].ID)
	assert.Nil(t, runs[0].Result)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_SaveSpanVerdicts_Upsert(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectBegin()
	mock.ExpectExec(`CREATE TEMP TABLE`).WillReturnResult(pgxmock.NewResult("CREATE", 0))
	mock.ExpectCopyFrom(pgx.Identifier{"_tmp_upsert_span_attributions"},
		[]string{"id", "run_id", "span_index", "verdict", "created_at"}).WillReturnResult(2)
	mock.ExpectExec(`INSERT INTO "span_attributions"`).WillReturnResult(pgxmock.NewResult("INSERT", 2))
	mock.ExpectCommit()

	err := s.SaveSpanVerdicts(context.Background(), "run-1", []model.SpanVerdict{
		{Decision: model.DecisionAssign, ProjectID: "p1", Confidence: 0.9},
		{Decision: model.DecisionReview},
	})
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_SaveSpanVerdicts_Empty(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	assert.NoError(t, s.SaveSpanVerdicts(context.Background(), "run-1", nil))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_ListSpanVerdicts(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	now := time.Now().UTC()
	v1, err := json.Marshal(model.SpanVerdict{Decision: model.DecisionAssign, ProjectID: "p1", Confidence: 0.9})
	require.NoError(t, err)

	mock.ExpectQuery(`SELECT id, run_id, span_index, verdict, created_at FROM span_attributions WHERE run_id = \$1 ORDER BY span_index`).
		WithArgs("run-1").
		WillReturnRows(pgxmock.NewRows([]string{"id", "run_id", "span_index", "verdict", "created_at"}).
			AddRow("sa-1", "run-1", 1, v1, now))

	got, err := s.ListSpanVerdicts(context.Background(), "run-1")
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, 1, got[0].SpanIndex)
	assert.Equal(t, "p1", got[0].Verdict.ProjectID)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_Migrate(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectExec(`CREATE TABLE IF NOT EXISTS attribution_runs`).
		WillReturnResult(pgxmock.NewResult("CREATE", 0))

	assert.NoError(t, s.Migrate(context.Background()))
	assert.NoError(t, mock.ExpectationsWereMet())
}
