package store

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/pashagolub/pgxmock/v4"
	"github.com/rotisserie/eris"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/streetcover/internal/model"
)

// newMockPostgresStore creates a PostgresStore backed by pgxmock for unit testing.
func newMockPostgresStore(t *testing.T) (*PostgresStore, pgxmock.PgxPoolIface) {
	t.Helper()
	mock, err := pgxmock.NewPool(pgxmock.QueryMatcherOption(pgxmock.QueryMatcherRegexp))
	require.NoError(t, err)
	t.Cleanup(func() { mock.Close() })

	return &PostgresStore{pool: mock}, mock
}

var runColumns = []string{"id", "input_dir", "status", "images", "observed", "skipped", "error", "created_at", "updated_at"}

func TestPostgresStore_CreateRun(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectExec(`INSERT INTO runs`).
		WithArgs(pgxmock.AnyArg(), "/data/in", "running", pgxmock.AnyArg(), pgxmock.AnyArg()).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))

	run, err := s.CreateRun(context.Background(), "/data/in")
	require.NoError(t, err)
	assert.NotEmpty(t, run.ID)
	assert.Equal(t, model.RunStatusRunning, run.Status)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_GetRun(t *testing.T) {
	s, mock := newMockPostgresStore(t)
	now := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)

	mock.ExpectQuery(`SELECT id, input_dir, status, images, observed, skipped, error, created_at, updated_at FROM runs WHERE id = \$1`).
		WithArgs("run-1").
		WillReturnRows(pgxmock.NewRows(runColumns).
			AddRow("run-1", "/data/in", "complete", 4, 3, 1, "", now, now))

	run, err := s.GetRun(context.Background(), "run-1")
	require.NoError(t, err)
	assert.Equal(t, model.RunStatusComplete, run.Status)
	assert.Equal(t, 4, run.Images)
	assert.Equal(t, 3, run.Observed)
	assert.Equal(t, 1, run.Skipped)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_GetRun_NotFound(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectQuery(`FROM runs WHERE id = \$1`).
		WithArgs("nonexistent-run").
		WillReturnError(pgx.ErrNoRows)

	_, err := s.GetRun(context.Background(), "nonexistent-run")
	require.Error(t, err)
	assert.True(t, eris.Is(err, ErrNotFound))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_CompleteRun_NotFound(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectExec(`UPDATE runs SET status = \$1, images = \$2`).
		WithArgs("complete", 1, 1, 0, pgxmock.AnyArg(), "missing").
		WillReturnResult(pgxmock.NewResult("UPDATE", 0))

	err := s.CompleteRun(context.Background(), "missing", model.RunCounts{Images: 1, Observed: 1})
	assert.True(t, eris.Is(err, ErrNotFound))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_FailRun(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectExec(`UPDATE runs SET status = \$1, error = \$2`).
		WithArgs("failed", "boom", pgxmock.AnyArg(), "run-1").
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))

	require.NoError(t, s.FailRun(context.Background(), "run-1", "boom"))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_ListRuns_Filters(t *testing.T) {
	s, mock := newMockPostgresStore(t)
	now := time.Now().UTC()

	mock.ExpectQuery(`WHERE true AND status = \$1 AND input_dir = \$2 ORDER BY created_at DESC LIMIT \$3 OFFSET \$4`).
		WithArgs("complete", "/data/in", 5, 10).
		WillReturnRows(pgxmock.NewRows(runColumns).
			AddRow("run-1", "/data/in", "complete", 1, 1, 0, "", now, now))

	runs, err := s.ListRuns(context.Background(), RunFilter{
		Status:   model.RunStatusComplete,
		InputDir: "/data/in",
		Limit:    5,
		Offset:   10,
	})
	require.NoError(t, err)
	require.Len(t, runs, 1)
	assert.Equal(t, "run-1", runs[0].ID)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_ListRuns_CreatedAfterUnbounded(t *testing.T) {
	s, mock := newMockPostgresStore(t)
	since := time.Date(2025, 6, 15, 0, 0, 0, 0, time.UTC)

	mock.ExpectQuery(`WHERE true AND created_at >= \$1 ORDER BY created_at DESC LIMIT \$2`).
		WithArgs(since, nil).
		WillReturnRows(pgxmock.NewRows(runColumns).
			AddRow("run-1", "/data/in", "complete", 1, 1, 0, "", since, since))

	runs, err := s.ListRuns(context.Background(), RunFilter{CreatedAfter: since, Limit: -1})
	require.NoError(t, err)
	require.Len(t, runs, 1)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_SaveObservations_Copy(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectCopyFrom(pgx.Identifier{"observations"}, observationColumns).WillReturnResult(2)

	err := s.SaveObservations(context.Background(), "run-1", []model.Observation{
		{SID: "A", Heading: "0", Pitch: "0", PerGreen: 100},
		{SID: "A", Heading: "60", Pitch: "0"},
	})
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_SaveObservations_Error(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectCopyFrom(pgx.Identifier{"observations"}, observationColumns).WillReturnError(fmt.Errorf("duplicate key"))

	err := s.SaveObservations(context.Background(), "run-1", []model.Observation{{SID: "A", Heading: "0", Pitch: "0"}})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "save observations for run-1")
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_SaveSkips_Upsert(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectBegin()
	mock.ExpectExec(`CREATE TEMP TABLE`).WillReturnResult(pgxmock.NewResult("CREATE", 0))
	mock.ExpectCopyFrom(pgx.Identifier{"_tmp_upsert_skips"}, skipUpsert.Columns).WillReturnResult(1)
	mock.ExpectExec(`ON CONFLICT \("run_id", "path"\)`).WillReturnResult(pgxmock.NewResult("INSERT", 1))
	mock.ExpectCommit()

	err := s.SaveSkips(context.Background(), "run-1", []model.Skip{
		{Path: "in/x.jpg", Kind: model.ErrorKindDecode, Reason: "bad"},
	})
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_ListObservations(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectQuery(`FROM observations WHERE run_id = \$1 ORDER BY ord`).
		WithArgs("run-1").
		WillReturnRows(pgxmock.NewRows([]string{"sid", "heading", "pitch", "per_green", "per_sky"}).
			AddRow("A", "0", "0", 100.0, 0.0).
			AddRow("A", "60", "0", 0.0, 25.0))

	obs, err := s.ListObservations(context.Background(), "run-1")
	require.NoError(t, err)
	assert.Equal(t, []model.Observation{
		{SID: "A", Heading: "0", Pitch: "0", PerGreen: 100},
		{SID: "A", Heading: "60", Pitch: "0", PerSky: 25},
	}, obs)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_ListSkips(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectQuery(`FROM skips WHERE run_id = \$1 ORDER BY ord`).
		WithArgs("run-1").
		WillReturnRows(pgxmock.NewRows([]string{"path", "kind", "reason"}).
			AddRow("in/x.jpg", "format", "bad name"))

	skips, err := s.ListSkips(context.Background(), "run-1")
	require.NoError(t, err)
	assert.Equal(t, []model.Skip{{Path: "in/x.jpg", Kind: model.ErrorKindFormat, Reason: "bad name"}}, skips)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_Migrate(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectExec(`CREATE TABLE IF NOT EXISTS runs`).WillReturnResult(pgxmock.NewResult("CREATE", 0))

	require.NoError(t, s.Migrate(context.Background()))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_CloseWithoutPool(t *testing.T) {
	s := &PostgresStore{}
	assert.NoError(t, s.Close())
}
