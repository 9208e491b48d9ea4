package db

import (
	"context"
	"fmt"
	"testing"

	"github.com/jackc/pgx/v5"
	"github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBulkUpsert_EmptyRows(t *testing.T) {
	n, err := BulkUpsert(context.TODO(), nil, UpsertConfig{
		Table:        "span_attributions",
		Columns:      []string{"a"},
		ConflictKeys: []string{"a"},
	}, nil)
	assert.NoError(t, err)
	assert.Equal(t, int64(0), n)
}

func TestBulkUpsert_RequiresColumnsAndKeys(t *testing.T) {
	rows := [][]any{{1}}

	_, err := BulkUpsert(context.TODO(), nil, UpsertConfig{Table: "t", ConflictKeys: []string{"a"}}, rows)
	assert.Error(t, err)

	_, err = BulkUpsert(context.TODO(), nil, UpsertConfig{Table: "t", Columns: []string{"a"}}, rows)
	assert.Error(t, err)
}

func TestBulkUpsert_Success(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	mock.ExpectBegin()
	mock.ExpectExec(`CREATE TEMP TABLE "_tmp_upsert_span_attributions"`).
		WillReturnResult(pgxmock.NewResult("CREATE", 0))
	mock.ExpectCopyFrom(pgx.Identifier{"_tmp_upsert_span_attributions"},
		[]string{"run_id", "span_index", "verdict"}).WillReturnResult(2)
	mock.ExpectExec(`INSERT INTO "span_attributions"`).
		WillReturnResult(pgxmock.NewResult("INSERT", 2))
	mock.ExpectCommit()

	rows := [][]any{
		{"r1", 1, `{}`},
		{"r1", 2, `{}`},
	}
	n, err := BulkUpsert(context.Background(), mock, UpsertConfig{
		Table:        "span_attributions",
		Columns:      []string{"run_id", "span_index", "verdict"},
		ConflictKeys: []string{"run_id", "span_index"},
	}, rows)
	assert.NoError(t, err)
	assert.Equal(t, int64(2), n)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestBulkUpsert_CopyError(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	mock.ExpectBegin()
	mock.ExpectExec(`CREATE TEMP TABLE`).WillReturnResult(pgxmock.NewResult("CREATE", 0))
	mock.ExpectCopyFrom(pgx.Identifier{"_tmp_upsert_runs"}, []string{"id"}).
		WillReturnError(fmt.Errorf("copy failed"))
	mock.ExpectRollback()

	_, err = BulkUpsert(context.Background(), mock, UpsertConfig{
		Table:        "runs",
		Columns:      []string{"id"},
		ConflictKeys: []string{"id"},
	}, [][]any{{"r1"}})
	assert.Error(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSanitizeTable(t *testing.T) {
	assert.Equal(t, `"runs"`, sanitizeTable("runs"))
	assert.Equal(t, `"calls"."runs"`, sanitizeTable("calls.runs"))
}
