package db

import (
	"context"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/rotisserie/eris"
)

// UpsertConfig defines the parameters for a bulk upsert operation.
type UpsertConfig struct {
	Table        string   // target table (e.g., "skips")
	Columns      []string // all columns being inserted
	ConflictKeys []string // columns forming the unique constraint
	UpdateCols   []string // columns to update on conflict; nil = all non-conflict columns
}

// BulkUpsert COPYs rows into a transaction-scoped temp table and merges them
// into the target with INSERT ... ON CONFLICT DO UPDATE.
func BulkUpsert(ctx context.Context, pool Pool, cfg UpsertConfig, rows [][]any) (int64, error) {
	if len(rows) == 0 {
		return 0, nil
	}
	if len(cfg.Columns) == 0 {
		return 0, eris.New("db: upsert: no columns specified")
	}
	if len(cfg.ConflictKeys) == 0 {
		return 0, eris.New("db: upsert: no conflict keys specified")
	}

	tx, err := pool.Begin(ctx)
	if err != nil {
		return 0, eris.Wrap(err, "db: upsert: begin tx")
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	tempTable := tempTableName(cfg.Table)
	if _, err := tx.Exec(ctx, createTempSQL(tempTable, cfg.Table)); err != nil {
		return 0, eris.Wrapf(err, "db: upsert: create temp table for %s", cfg.Table)
	}

	if _, err := tx.CopyFrom(ctx, pgx.Identifier{tempTable}, cfg.Columns, pgx.CopyFromRows(rows)); err != nil {
		return 0, eris.Wrapf(err, "db: upsert: COPY into temp table for %s", cfg.Table)
	}

	tag, err := tx.Exec(ctx, mergeSQL(tempTable, cfg))
	if err != nil {
		return 0, eris.Wrapf(err, "db: upsert: merge into %s", cfg.Table)
	}

	if err := tx.Commit(ctx); err != nil {
		return 0, eris.Wrap(err, "db: upsert: commit tx")
	}
	return tag.RowsAffected(), nil
}

func tempTableName(table string) string {
	return "_tmp_upsert_" + strings.ReplaceAll(table, ".", "_")
}

func createTempSQL(tempTable, table string) string {
	return fmt.Sprintf(
		"CREATE TEMP TABLE %s (LIKE %s INCLUDING DEFAULTS) ON COMMIT DROP",
		pgx.Identifier{tempTable}.Sanitize(),
		sanitizeTable(table),
	)
}

func mergeSQL(tempTable string, cfg UpsertConfig) string {
	updateCols := cfg.UpdateCols
	if updateCols == nil {
		conflict := make(map[string]bool, len(cfg.ConflictKeys))
		for _, k := range cfg.ConflictKeys {
			conflict[k] = true
		}
		for _, c := range cfg.Columns {
			if !conflict[c] {
				updateCols = append(updateCols, c)
			}
		}
	}

	colList := quoteAndJoin(cfg.Columns)
	action := "DO NOTHING"
	if len(updateCols) > 0 {
		sets := make([]string, len(updateCols))
		for i, c := range updateCols {
			q := pgx.Identifier{c}.Sanitize()
			sets[i] = fmt.Sprintf("%s = EXCLUDED.%s", q, q)
		}
		action = "DO UPDATE SET " + strings.Join(sets, ", ")
	}

	return fmt.Sprintf(
		"INSERT INTO %s (%s) SELECT %s FROM %s ON CONFLICT (%s) %s",
		sanitizeTable(cfg.Table), colList, colList,
		pgx.Identifier{tempTable}.Sanitize(),
		quoteAndJoin(cfg.ConflictKeys), action,
	)
}

// sanitizeTable handles schema-qualified table names like "public.skips".
func sanitizeTable(table string) string {
	parts := strings.SplitN(table, ".", 2)
	if len(parts) == 2 {
		return pgx.Identifier{parts[0], parts[1]}.Sanitize()
	}
	return pgx.Identifier{table}.Sanitize()
}

func quoteAndJoin(cols []string) string {
	quoted := make([]string, len(cols))
	for i, c := range cols {
		quoted[i] = pgx.Identifier{c}.Sanitize()
	}
	return strings.Join(quoted, ", ")
}
