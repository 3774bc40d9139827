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

func TestCopyFrom_EmptyRows(t *testing.T) {
	n, err := CopyFrom(context.TODO(), nil, "observations", []string{"run_id", "sid"}, nil)
	assert.NoError(t, err)
	assert.Equal(t, int64(0), n)
}

func TestCopyFrom_Success(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	cols := []string{"run_id", "sid", "heading", "pitch", "per_green", "per_sky"}
	mock.ExpectCopyFrom(pgx.Identifier{"observations"}, cols).WillReturnResult(2)

	rows := [][]any{
		{"run-1", "A", "0", "0", 100.0, 0.0},
		{"run-1", "A", "60", "0", 0.0, 0.0},
	}
	n, err := CopyFrom(context.Background(), mock, "observations", cols, rows)
	assert.NoError(t, err)
	assert.Equal(t, int64(2), n)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCopyFrom_Error(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	mock.ExpectCopyFrom(pgx.Identifier{"observations"}, []string{"sid"}).WillReturnError(fmt.Errorf("copy failed"))

	_, err = CopyFrom(context.Background(), mock, "observations", []string{"sid"}, [][]any{{"A"}})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "COPY INTO observations")
	assert.NoError(t, mock.ExpectationsWereMet())
}
