package storage

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"feasibility-engine/internal/config"
	"feasibility-engine/internal/querysql"
)

func openSQLite(t *testing.T) *SQLiteStore {
	t.Helper()
	s, err := NewSQLite(context.Background(), filepath.Join(t.TempDir(), "omop.sqlite"), 2)
	require.NoError(t, err)
	t.Cleanup(s.Close)
	return s
}

func TestSQLite_AcquireAndQuery(t *testing.T) {
	s := openSQLite(t)
	ctx := context.Background()

	_, err := s.DB().ExecContext(ctx, "CREATE TABLE person (person_id INTEGER PRIMARY KEY)")
	require.NoError(t, err)
	_, err = s.DB().ExecContext(ctx, "INSERT INTO person (person_id) VALUES (1), (2), (3)")
	require.NoError(t, err)

	conn, err := s.Acquire(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, s.CheckedOut())
	assert.Equal(t, 1, s.Stats().Acquired)

	rows, err := conn.Query(ctx, "SELECT count(*) FROM person WHERE person_id > ?", 1)
	require.NoError(t, err)
	require.True(t, rows.Next())
	var n int64
	require.NoError(t, rows.Scan(&n))
	assert.False(t, rows.Next())
	require.NoError(t, rows.Err())
	rows.Close()
	assert.Equal(t, int64(2), n)

	conn.Release()
	assert.Equal(t, 0, s.CheckedOut())
}

func TestSQLite_Dialect(t *testing.T) {
	s := openSQLite(t)
	assert.Equal(t, querysql.SQLite, s.Dialect())
	assert.NoError(t, s.Ping(context.Background()))
}

func TestNewSQLite_RequiresPath(t *testing.T) {
	_, err := NewSQLite(context.Background(), "", 1)
	assert.Error(t, err)
}

func TestOpen_SelectsDriver(t *testing.T) {
	var cfg config.Config
	cfg.Datasource.Driver = "SQLite"
	cfg.Datasource.Path = filepath.Join(t.TempDir(), "omop.sqlite")

	wh, err := Open(context.Background(), cfg)
	require.NoError(t, err)
	defer wh.Close()
	assert.IsType(t, &SQLiteStore{}, wh)

	cfg.Datasource.Driver = "oracle"
	_, err = Open(context.Background(), cfg)
	assert.ErrorContains(t, err, "unsupported datasource driver")
}
