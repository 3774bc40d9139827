package store

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	_ "modernc.org/sqlite"

	"github.com/sells-group/streetcover/internal/model"
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
			db.Close() //nolint:errcheck
			return nil, eris.Wrapf(err, "sqlite: exec %s", pragma)
		}
	}
	return &SQLiteStore{db: db}, nil
}

const sqliteMigration = `
CREATE TABLE IF NOT EXISTS runs (
	id         TEXT PRIMARY KEY,
	input_dir  TEXT NOT NULL,
	status     TEXT NOT NULL DEFAULT 'running',
	images     INTEGER NOT NULL DEFAULT 0,
	observed   INTEGER NOT NULL DEFAULT 0,
	skipped    INTEGER NOT NULL DEFAULT 0,
	error      TEXT NOT NULL DEFAULT '',
	created_at DATETIME NOT NULL DEFAULT (datetime('now')),
	updated_at DATETIME NOT NULL DEFAULT (datetime('now'))
);

CREATE TABLE IF NOT EXISTS observations (
	run_id    TEXT NOT NULL REFERENCES runs(id) ON DELETE CASCADE,
	ord       INTEGER NOT NULL,
	sid       TEXT NOT NULL,
	heading   TEXT NOT NULL,
	pitch     TEXT NOT NULL,
	per_green REAL NOT NULL,
	per_sky   REAL NOT NULL,
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

func (s *SQLiteStore) Migrate(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, sqliteMigration)
	return eris.Wrap(err, "sqlite: migrate")
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func (s *SQLiteStore) CreateRun(ctx context.Context, inputDir string) (*model.Run, error) {
	id := uuid.New().String()
	now := time.Now().UTC()

	_, err := s.db.ExecContext(ctx,
		`INSERT INTO runs (id, input_dir, status, created_at, updated_at) VALUES (?, ?, ?, ?, ?)`,
		id, inputDir, string(model.RunStatusRunning), now, now,
	)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: insert run")
	}

	return &model.Run{
		ID:        id,
		InputDir:  inputDir,
		Status:    model.RunStatusRunning,
		CreatedAt: now,
		UpdatedAt: now,
	}, nil
}

func (s *SQLiteStore) CompleteRun(ctx context.Context, runID string, counts model.RunCounts) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE runs SET status = ?, images = ?, observed = ?, skipped = ?, updated_at = ? WHERE id = ?`,
		string(model.RunStatusComplete), counts.Images, counts.Observed, counts.Skipped, time.Now().UTC(), runID,
	)
	if err != nil {
		return eris.Wrapf(err, "sqlite: complete run %s", runID)
	}
	return checkRowsAffected(res, runID)
}

func (s *SQLiteStore) FailRun(ctx context.Context, runID string, reason string) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE runs SET status = ?, error = ?, updated_at = ? WHERE id = ?`,
		string(model.RunStatusFailed), reason, time.Now().UTC(), runID,
	)
	if err != nil {
		return eris.Wrapf(err, "sqlite: fail run %s", runID)
	}
	return checkRowsAffected(res, runID)
}

func (s *SQLiteStore) GetRun(ctx context.Context, runID string) (*model.Run, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, input_dir, status, images, observed, skipped, error, created_at, updated_at FROM runs WHERE id = ?`,
		runID,
	)
	r, err := scanRun(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, notFound(runID)
	}
	if err != nil {
		return nil, eris.Wrapf(err, "sqlite: get run %s", runID)
	}
	return r, nil
}

func (s *SQLiteStore) ListRuns(ctx context.Context, filter RunFilter) ([]model.Run, error) {
	query := `SELECT id, input_dir, status, images, observed, skipped, error, created_at, updated_at FROM runs WHERE 1=1`
	var args []any

	if filter.Status != "" {
		query += ` AND status = ?`
		args = append(args, string(filter.Status))
	}
	if filter.InputDir != "" {
		query += ` AND input_dir = ?`
		args = append(args, filter.InputDir)
	}
	if !filter.CreatedAfter.IsZero() {
		query += ` AND created_at >= ?`
		args = append(args, filter.CreatedAfter.UTC())
	}
	// SQLite treats LIMIT -1 as unbounded.
	query += ` ORDER BY created_at DESC LIMIT ?`
	args = append(args, listLimit(filter))

	if filter.Offset > 0 {
		query += ` OFFSET ?`
		args = append(args, filter.Offset)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: list runs")
	}
	defer rows.Close() //nolint:errcheck

	var runs []model.Run
	for rows.Next() {
		r, err := scanRun(rows)
		if err != nil {
			return nil, eris.Wrap(err, "sqlite: scan run")
		}
		runs = append(runs, *r)
	}
	return runs, eris.Wrap(rows.Err(), "sqlite: list runs iterate")
}

func (s *SQLiteStore) SaveObservations(ctx context.Context, runID string, obs []model.Observation) error {
	return s.inTx(ctx, "observations",
		`INSERT OR REPLACE INTO observations (run_id, ord, sid, heading, pitch, per_green, per_sky) VALUES (?, ?, ?, ?, ?, ?, ?)`,
		len(obs), func(i int) []any {
			o := obs[i]
			return []any{runID, i, o.SID, o.Heading, o.Pitch, o.PerGreen, o.PerSky}
		})
}

func (s *SQLiteStore) SaveSkips(ctx context.Context, runID string, skips []model.Skip) error {
	return s.inTx(ctx, "skips",
		`INSERT OR REPLACE INTO skips (run_id, ord, path, kind, reason) VALUES (?, ?, ?, ?, ?)`,
		len(skips), func(i int) []any {
			sk := skips[i]
			return []any{runID, i, sk.Path, string(sk.Kind), sk.Reason}
		})
}

// inTx runs one prepared insert per row inside a single transaction.
func (s *SQLiteStore) inTx(ctx context.Context, table, query string, n int, args func(i int) []any) error {
	if n == 0 {
		return nil
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return eris.Wrapf(err, "sqlite: begin %s tx", table)
	}
	defer tx.Rollback() //nolint:errcheck

	stmt, err := tx.PrepareContext(ctx, query)
	if err != nil {
		return eris.Wrapf(err, "sqlite: prepare %s insert", table)
	}
	defer stmt.Close() //nolint:errcheck

	for i := 0; i < n; i++ {
		if _, err := stmt.ExecContext(ctx, args(i)...); err != nil {
			return eris.Wrapf(err, "sqlite: insert %s row %d", table, i)
		}
	}
	return eris.Wrapf(tx.Commit(), "sqlite: commit %s", table)
}

func (s *SQLiteStore) ListObservations(ctx context.Context, runID string) ([]model.Observation, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT sid, heading, pitch, per_green, per_sky FROM observations WHERE run_id = ? ORDER BY ord`,
		runID,
	)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: list observations")
	}
	defer rows.Close() //nolint:errcheck

	var out []model.Observation
	for rows.Next() {
		var o model.Observation
		if err := rows.Scan(&o.SID, &o.Heading, &o.Pitch, &o.PerGreen, &o.PerSky); err != nil {
			return nil, eris.Wrap(err, "sqlite: scan observation")
		}
		out = append(out, o)
	}
	return out, eris.Wrap(rows.Err(), "sqlite: list observations iterate")
}

func (s *SQLiteStore) ListSkips(ctx context.Context, runID string) ([]model.Skip, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT path, kind, reason FROM skips WHERE run_id = ? ORDER BY ord`,
		runID,
	)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: list skips")
	}
	defer rows.Close() //nolint:errcheck

	var out []model.Skip
	for rows.Next() {
		var sk model.Skip
		if err := rows.Scan(&sk.Path, &sk.Kind, &sk.Reason); err != nil {
			return nil, eris.Wrap(err, "sqlite: scan skip")
		}
		out = append(out, sk)
	}
	return out, eris.Wrap(rows.Err(), "sqlite: list skips iterate")
}

// helpers

func checkRowsAffected(res sql.Result, runID string) error {
	n, err := res.RowsAffected()
	if err != nil {
		return eris.Wrap(err, "rows affected")
	}
	if n == 0 {
		return notFound(runID)
	}
	return nil
}

type scannable interface {
	Scan(dest ...any) error
}

func scanRun(row scannable) (*model.Run, error) {
	var r model.Run
	err := row.Scan(&r.ID, &r.InputDir, &r.Status, &r.Images, &r.Observed, &r.Skipped, &r.Error, &r.CreatedAt, &r.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return &r, nil
}
