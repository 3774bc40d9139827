package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rotisserie/eris"

	"github.com/sells-group/streetcover/internal/db"
	"github.com/sells-group/streetcover/internal/model"
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

const (
	sqlInsertRun   = `INSERT INTO runs (id, input_dir, status, created_at, updated_at) VALUES ($1, $2, $3, $4, $5)`
	sqlCompleteRun = `UPDATE runs SET status = $1, images = $2, observed = $3, skipped = $4, updated_at = $5 WHERE id = $6`
	sqlFailRun     = `UPDATE runs SET status = $1, error = $2, updated_at = $3 WHERE id = $4`
	sqlGetRun      = `SELECT id, input_dir, status, images, observed, skipped, error, created_at, updated_at FROM runs WHERE id = $1`
	sqlListObs     = `SELECT sid, heading, pitch, per_green, per_sky FROM observations WHERE run_id = $1 ORDER BY ord`
	sqlListSkips   = `SELECT path, kind, reason FROM skips WHERE run_id = $1 ORDER BY ord`
)

// preparedStatements lists queries to prepare on each new connection.
var preparedStatements = map[string]string{
	"insert_run":        sqlInsertRun,
	"complete_run":      sqlCompleteRun,
	"fail_run":          sqlFailRun,
	"get_run":           sqlGetRun,
	"list_observations": sqlListObs,
	"list_skips":        sqlListSkips,
}

var (
	observationColumns = []string{"run_id", "ord", "sid", "heading", "pitch", "per_green", "per_sky"}
	skipUpsert         = db.UpsertConfig{
		Table:        "skips",
		Columns:      []string{"run_id", "ord", "path", "kind", "reason"},
		ConflictKeys: []string{"run_id", "path"},
	}
)

// NewPostgres creates a PostgresStore with a connection pool.
func NewPostgres(ctx context.Context, connString string, poolCfg *PoolConfig) (*PostgresStore, error) {
	pgxCfg, err := pgxpool.ParseConfig(connString)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: parse config")
	}

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

const postgresMigration = `
CREATE TABLE IF NOT EXISTS runs (
	id         TEXT PRIMARY KEY DEFAULT gen_random_uuid()::text,
	input_dir  TEXT NOT NULL,
	status     TEXT NOT NULL DEFAULT 'running',
	images     INTEGER NOT NULL DEFAULT 0,
	observed   INTEGER NOT NULL DEFAULT 0,
	skipped    INTEGER NOT NULL DEFAULT 0,
	error      TEXT NOT NULL DEFAULT '',
	created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
	updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE TABLE IF NOT EXISTS observations (
	run_id    TEXT NOT NULL REFERENCES runs(id) ON DELETE CASCADE,
	ord       INTEGER NOT NULL,
	sid       TEXT NOT NULL,
	heading   TEXT NOT NULL,
	pitch     TEXT NOT NULL,
	per_green DOUBLE PRECISION NOT NULL,
	per_sky   DOUBLE PRECISION NOT NULL,
	PRIMARY KEY (run_id, sid, heading, pitch)
);

CREATE TABLE IF NOT EXISTS skips (
	run_id TEXT NOT NULL REFERENCES runs(id) ON DELETE CASCADE,
	ord    INTEGER NOT NULL,
	path   TEXT NOT NULL,
	kind   TEXT NOT NULL,
	reason TEXT NOT NULL,
	PRIMARY KEY (run_id, path)
);

CREATE INDEX IF NOT EXISTS idx_runs_status ON runs(status);
CREATE INDEX IF NOT EXISTS idx_runs_input_dir ON runs(input_dir);
`

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

func (s *PostgresStore) CreateRun(ctx context.Context, inputDir string) (*model.Run, error) {
	id := uuid.New().String()
	now := time.Now().UTC()

	if _, err := s.pool.Exec(ctx, sqlInsertRun, id, inputDir, string(model.RunStatusRunning), now, now); err != nil {
		return nil, eris.Wrap(err, "postgres: insert run")
	}

	return &model.Run{
		ID:        id,
		InputDir:  inputDir,
		Status:    model.RunStatusRunning,
		CreatedAt: now,
		UpdatedAt: now,
	}, nil
}

func (s *PostgresStore) CompleteRun(ctx context.Context, runID string, counts model.RunCounts) error {
	tag, err := s.pool.Exec(ctx, sqlCompleteRun,
		string(model.RunStatusComplete), counts.Images, counts.Observed, counts.Skipped, time.Now().UTC(), runID,
	)
	if err != nil {
		return eris.Wrapf(err, "postgres: complete run %s", runID)
	}
	if tag.RowsAffected() == 0 {
		return notFound(runID)
	}
	return nil
}

func (s *PostgresStore) FailRun(ctx context.Context, runID string, reason string) error {
	tag, err := s.pool.Exec(ctx, sqlFailRun, string(model.RunStatusFailed), reason, time.Now().UTC(), runID)
	if err != nil {
		return eris.Wrapf(err, "postgres: fail run %s", runID)
	}
	if tag.RowsAffected() == 0 {
		return notFound(runID)
	}
	return nil
}

func (s *PostgresStore) GetRun(ctx context.Context, runID string) (*model.Run, error) {
	r, err := scanPgRun(s.pool.QueryRow(ctx, sqlGetRun, runID))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, notFound(runID)
	}
	if err != nil {
		return nil, eris.Wrapf(err, "postgres: get run %s", runID)
	}
	return r, nil
}

func (s *PostgresStore) ListRuns(ctx context.Context, filter RunFilter) ([]model.Run, error) {
	query := `SELECT id, input_dir, status, images, observed, skipped, error, created_at, updated_at FROM runs WHERE true`
	args := []any{}
	argIdx := 1

	if filter.Status != "" {
		query += fmt.Sprintf(` AND status = $%d`, argIdx)
		args = append(args, string(filter.Status))
		argIdx++
	}
	if filter.InputDir != "" {
		query += fmt.Sprintf(` AND input_dir = $%d`, argIdx)
		args = append(args, filter.InputDir)
		argIdx++
	}
	if !filter.CreatedAfter.IsZero() {
		query += fmt.Sprintf(` AND created_at >= $%d`, argIdx)
		args = append(args, filter.CreatedAfter.UTC())
		argIdx++
	}
	var limit any = listLimit(filter)
	if filter.Limit < 0 {
		limit = nil // LIMIT NULL is unbounded
	}
	query += fmt.Sprintf(` ORDER BY created_at DESC LIMIT $%d`, argIdx)
	args = append(args, limit)
	argIdx++

	if filter.Offset > 0 {
		query += fmt.Sprintf(` OFFSET $%d`, argIdx)
		args = append(args, filter.Offset)
	}

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: list runs")
	}
	defer rows.Close()

	var runs []model.Run
	for rows.Next() {
		r, err := scanPgRun(rows)
		if err != nil {
			return nil, eris.Wrap(err, "postgres: scan run")
		}
		runs = append(runs, *r)
	}
	return runs, eris.Wrap(rows.Err(), "postgres: list runs iterate")
}

// SaveObservations bulk-loads observations with COPY.
func (s *PostgresStore) SaveObservations(ctx context.Context, runID string, obs []model.Observation) error {
	rows := make([][]any, len(obs))
	for i, o := range obs {
		rows[i] = []any{runID, i, o.SID, o.Heading, o.Pitch, o.PerGreen, o.PerSky}
	}
	_, err := db.CopyFrom(ctx, s.pool, "observations", observationColumns, rows)
	return eris.Wrapf(err, "postgres: save observations for %s", runID)
}

// SaveSkips upserts skips keyed on (run_id, path).
func (s *PostgresStore) SaveSkips(ctx context.Context, runID string, skips []model.Skip) error {
	rows := make([][]any, len(skips))
	for i, sk := range skips {
		rows[i] = []any{runID, i, sk.Path, string(sk.Kind), sk.Reason}
	}
	_, err := db.BulkUpsert(ctx, s.pool, skipUpsert, rows)
	return eris.Wrapf(err, "postgres: save skips for %s", runID)
}

func (s *PostgresStore) ListObservations(ctx context.Context, runID string) ([]model.Observation, error) {
	rows, err := s.pool.Query(ctx, sqlListObs, runID)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: list observations")
	}
	defer rows.Close()

	var out []model.Observation
	for rows.Next() {
		var o model.Observation
		if err := rows.Scan(&o.SID, &o.Heading, &o.Pitch, &o.PerGreen, &o.PerSky); err != nil {
			return nil, eris.Wrap(err, "postgres: scan observation")
		}
		out = append(out, o)
	}
	return out, eris.Wrap(rows.Err(), "postgres: list observations iterate")
}

func (s *PostgresStore) ListSkips(ctx context.Context, runID string) ([]model.Skip, error) {
	rows, err := s.pool.Query(ctx, sqlListSkips, runID)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: list skips")
	}
	defer rows.Close()

	var out []model.Skip
	for rows.Next() {
		var sk model.Skip
		var kind string
		if err := rows.Scan(&sk.Path, &kind, &sk.Reason); err != nil {
			return nil, eris.Wrap(err, "postgres: scan skip")
		}
		sk.Kind = model.ErrorKind(kind)
		out = append(out, sk)
	}
	return out, eris.Wrap(rows.Err(), "postgres: list skips iterate")
}

func scanPgRun(row pgx.Row) (*model.Run, error) {
	var r model.Run
	var status string
	err := row.Scan(&r.ID, &r.InputDir, &status, &r.Images, &r.Observed, &r.Skipped, &r.Error, &r.CreatedAt, &r.UpdatedAt)
	if err != nil {
		return nil, err
	}
	r.Status = model.RunStatus(status)
	return &r, nil
}
