package db

import (
	"context"
	"testing"

	"github.com/jackc/pgx/v5"
	"github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCopyFrom_EmptyRowsIsNoop(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	n, err := CopyFrom(context.Background(), mock, "work_sessions", []string{"id"}, nil)
	require.NoError(t, err)
	assert.Zero(t, n)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCopyFrom_CopiesRows(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	mock.ExpectCopyFrom(pgx.Identifier{"work_sessions"}, []string{"id", "employee_id"}).
		WillReturnResult(2)

	n, err := CopyFrom(context.Background(), mock, "work_sessions",
		[]string{"id", "employee_id"},
		[][]any{{"s1", "E001"}, {"s2", "E002"}})
	require.NoError(t, err)
	assert.Equal(t, int64(2), n)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestBulkUpsert_BuildsTempTableFlow(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	mock.ExpectBegin()
	mock.ExpectExec(`CREATE TEMP TABLE "_tmp_upsert_work_sessions"`).
		WillReturnResult(pgxmock.NewResult("CREATE", 0))
	mock.ExpectCopyFrom(pgx.Identifier{"_tmp_upsert_work_sessions"}, []string{"run_id", "session_id", "worked_hours"}).
		WillReturnResult(1)
	mock.ExpectExec(`INSERT INTO "work_sessions" .+ ON CONFLICT \("run_id", "session_id"\) DO UPDATE SET "worked_hours" = EXCLUDED."worked_hours"`).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))
	mock.ExpectCommit()
	mock.ExpectRollback()

	n, err := BulkUpsert(context.Background(), mock, UpsertConfig{
		Table:        "work_sessions",
		Columns:      []string{"run_id", "session_id", "worked_hours"},
		ConflictKeys: []string{"run_id", "session_id"},
	}, [][]any{{"r1", "s1", 8.0}})

	require.NoError(t, err)
	assert.Equal(t, int64(1), n)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestBulkUpsert_RequiresConflictKeys(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	_, err = BulkUpsert(context.Background(), mock, UpsertConfig{
		Table:   "work_sessions",
		Columns: []string{"run_id"},
	}, [][]any{{"r1"}})
	assert.Error(t, err)
}
