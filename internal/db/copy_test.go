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

func TestCopyFromSchema_EmptyRows(t *testing.T) {
	n, err := CopyFromSchema(context.TODO(), nil, "yield_atlas", "county_results", []string{"a"}, [][]any{}, 0)
	assert.NoError(t, err)
	assert.Equal(t, int64(0), n)
}

func TestCopyFromSchema_Success(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	mock.ExpectCopyFrom(pgx.Identifier{"yield_atlas", "county_results"}, []string{"a", "b"}).WillReturnResult(5)

	rows := [][]any{{1, "x"}, {2, "y"}, {3, "z"}, {4, "w"}, {5, "v"}}
	n, err := CopyFromSchema(context.Background(), mock, "yield_atlas", "county_results", []string{"a", "b"}, rows, 0)
	assert.NoError(t, err)
	assert.Equal(t, int64(5), n)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCopyFromSchema_Batches(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	id := pgx.Identifier{"yield_atlas", "county_results"}
	mock.ExpectCopyFrom(id, []string{"a"}).WillReturnResult(2)
	mock.ExpectCopyFrom(id, []string{"a"}).WillReturnResult(2)
	mock.ExpectCopyFrom(id, []string{"a"}).WillReturnResult(1)

	rows := [][]any{{1}, {2}, {3}, {4}, {5}}
	n, err := CopyFromSchema(context.Background(), mock, "yield_atlas", "county_results", []string{"a"}, rows, 2)
	assert.NoError(t, err)
	assert.Equal(t, int64(5), n)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCopyFromSchema_Error(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	id := pgx.Identifier{"yield_atlas", "county_results"}
	mock.ExpectCopyFrom(id, []string{"a"}).WillReturnResult(1)
	mock.ExpectCopyFrom(id, []string{"a"}).WillReturnError(fmt.Errorf("permission denied"))

	rows := [][]any{{1}, {2}}
	n, err := CopyFromSchema(context.Background(), mock, "yield_atlas", "county_results", []string{"a"}, rows, 1)
	require.Error(t, err)
	assert.Equal(t, int64(1), n)
	assert.Contains(t, err.Error(), "COPY INTO yield_atlas.county_results (batch 1-2)")
	assert.NoError(t, mock.ExpectationsWereMet())
}
