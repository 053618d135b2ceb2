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

	"github.com/sells-group/prerace-cli/internal/model"
)

var fixedNow = time.Date(2026, 10, 18, 6, 30, 0, 0, time.UTC)

// newMockPostgresStore creates a PostgresStore backed by pgxmock for unit testing.
func newMockPostgresStore(t *testing.T) (*PostgresStore, pgxmock.PgxPoolIface) {
	t.Helper()
	mock, err := pgxmock.NewPool(pgxmock.QueryMatcherOption(pgxmock.QueryMatcherRegexp))
	require.NoError(t, err)
	t.Cleanup(func() { mock.Close() })

	s := newPostgresWithPool(mock, nil)
	s.now = func() time.Time { return fixedNow }
	return s, mock
}

func TestPostgresStore_Migrate(t *testing.T) {
	s, mock := newMockPostgresStore(t)
	mock.ExpectExec(`CREATE TABLE IF NOT EXISTS runs`).WillReturnResult(pgxmock.NewResult("CREATE", 0))

	require.NoError(t, s.Migrate(context.Background()))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_CreateRun(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectExec(`INSERT INTO runs`).
		WithArgs(pgxmock.AnyArg(), testEvent.ID, pgxmock.AnyArg(), "waiting", fixedNow, fixedNow).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))

	run, err := s.CreateRun(context.Background(), testEvent)
	require.NoError(t, err)
	assert.NotEmpty(t, run.ID)
	assert.Equal(t, model.RunStatusWaiting, run.Status)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_UpdateRunStatus_NotFound(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectExec(`UPDATE runs SET status = \$1, updated_at = \$2 WHERE id = \$3`).
		WithArgs("collecting", fixedNow, "missing").
		WillReturnResult(pgxmock.NewResult("UPDATE", 0))

	err := s.UpdateRunStatus(context.Background(), "missing", model.RunStatusCollecting)
	assert.ErrorIs(t, err, ErrRunNotFound)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_FinishRun(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectExec(`UPDATE runs SET status = \$1, result = \$2, error = \$3`).
		WithArgs("failed", []byte(nil), "insufficient data", fixedNow, "run-1").
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))

	err := s.FinishRun(context.Background(), "run-1", model.RunStatusFailed, nil, "insufficient data")
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_GetRun(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	eventJSON, _ := json.Marshal(testEvent)
	resultJSON, _ := json.Marshal(model.RunResult{EventID: testEvent.ID})
	rows := pgxmock.NewRows([]string{"id", "event", "status", "result", "error", "created_at", "updated_at"}).
		AddRow("run-1", eventJSON, model.RunStatusComplete, &resultJSON, "", fixedNow, fixedNow)

	mock.ExpectQuery(`SELECT id, event, status, result, error, created_at, updated_at FROM runs WHERE id = \$1`).
		WithArgs("run-1").
		WillReturnRows(rows)

	run, err := s.GetRun(context.Background(), "run-1")
	require.NoError(t, err)
	assert.Equal(t, testEvent.ID, run.Event.ID)
	assert.Equal(t, model.RunStatusComplete, run.Status)
	require.NotNil(t, run.Result)
	assert.Equal(t, testEvent.ID, run.Result.EventID)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_GetRun_NotFound(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectQuery(`SELECT id, event, status, result, error, created_at, updated_at FROM runs WHERE id = \$1`).
		WithArgs("nonexistent-run").
		WillReturnError(pgx.ErrNoRows)

	_, err := s.GetRun(context.Background(), "nonexistent-run")
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrRunNotFound)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_ListRuns(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	eventJSON, _ := json.Marshal(testEvent)
	rows := pgxmock.NewRows([]string{"id", "event", "status", "result", "error", "created_at", "updated_at"}).
		AddRow("run-1", eventJSON, model.RunStatusFailed, (*[]byte)(nil), "odds missing", fixedNow, fixedNow)

	mock.ExpectQuery(`FROM runs WHERE true AND status = \$1 AND event_id = \$2 ORDER BY created_at DESC LIMIT \$3`).
		WithArgs("failed", testEvent.ID, 10).
		WillReturnRows(rows)

	runs, err := s.ListRuns(context.Background(), RunFilter{Status: model.RunStatusFailed, EventID: testEvent.ID, Limit: 10})
	require.NoError(t, err)
	require.Len(t, runs, 1)
	assert.Equal(t, "odds missing", runs[0].Error)
	assert.Nil(t, runs[0].Result)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_ListRunsCreatedAfter(t *testing.T) {
	s, mock := newMockPostgresStore(t)
	cutoff := fixedNow.Add(-24 * time.Hour)

	mock.ExpectQuery(`FROM runs WHERE true AND created_at >= \$1 ORDER BY created_at DESC LIMIT \$2`).
		WithArgs(cutoff, 100).
		WillReturnRows(pgxmock.NewRows([]string{"id", "event", "status", "result", "error", "created_at", "updated_at"}))

	runs, err := s.ListRuns(context.Background(), RunFilter{CreatedAfter: cutoff})
	require.NoError(t, err)
	assert.Empty(t, runs)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_CacheGet(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectQuery(`SELECT value FROM kv_cache WHERE key = \$1 AND expires_at > \$2`).
		WithArgs("schedule:2026-10-18", fixedNow).
		WillReturnRows(pgxmock.NewRows([]string{"value"}).AddRow([]byte(`[]`)))
	mock.ExpectQuery(`SELECT value FROM kv_cache`).
		WithArgs("schedule:2026-10-19", fixedNow).
		WillReturnError(pgx.ErrNoRows)

	v, ok, err := s.Get(context.Background(), "schedule:2026-10-18")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "[]", string(v))

	_, ok, err = s.Get(context.Background(), "schedule:2026-10-19")
	require.NoError(t, err)
	assert.False(t, ok)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_CachePut(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectExec(`INSERT INTO kv_cache .* ON CONFLICT \(key\) DO UPDATE`).
		WithArgs("k", []byte("v"), fixedNow.Add(18*time.Hour)).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))

	require.NoError(t, s.Put(context.Background(), "k", []byte("v"), 18*time.Hour))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_DeleteExpired(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectExec(`DELETE FROM kv_cache WHERE expires_at <= \$1`).
		WithArgs(fixedNow).
		WillReturnResult(pgxmock.NewResult("DELETE", 3))

	n, err := s.DeleteExpired(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 3, n)
	assert.NoError(t, mock.ExpectationsWereMet())
}
