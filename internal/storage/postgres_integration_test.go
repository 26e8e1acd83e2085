//go:build integration

package storage_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"feasibility-engine/internal/querysql"
	"feasibility-engine/internal/storage"
	"feasibility-engine/internal/testutil/containers"
	"feasibility-engine/internal/testutil/omopfixture"
)

func TestPostgres_SearchPathAndPool(t *testing.T) {
	pg := containers.NewPostgresContainer(t)
	ctx := context.Background()

	wh, err := storage.NewPostgres(ctx, pg.Config)
	require.NoError(t, err)
	defer wh.Close()

	require.NoError(t, wh.Ping(ctx))
	assert.Equal(t, querysql.Postgres, wh.Dialect())

	conn, err := wh.Acquire(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, wh.CheckedOut())

	// unqualified table name resolves through search_path
	rows, err := conn.Query(ctx, "SELECT count(*) FROM person WHERE gender_concept_id = $1", int64(omopfixture.Male))
	require.NoError(t, err)
	require.True(t, rows.Next())
	var n int64
	require.NoError(t, rows.Scan(&n))
	rows.Close()
	require.NoError(t, rows.Err())
	assert.Equal(t, int64(omopfixture.Males), n)

	conn.Release()
	assert.Equal(t, 0, wh.CheckedOut())
}
