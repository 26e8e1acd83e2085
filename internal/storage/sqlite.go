package storage

import (
	"context"
	"database/sql"
	"fmt"

	_ "github.com/mattn/go-sqlite3"

	"feasibility-engine/internal/querysql"
)

// SQLiteStore is a Warehouse over a local OMOP extract such as Eunomia.
type SQLiteStore struct {
	db *sql.DB
}

func NewSQLite(ctx context.Context, path string, maxOpen int) (*SQLiteStore, error) {
	if path == "" {
		return nil, fmt.Errorf("sqlite datasource needs a path")
	}
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite %s: %w", path, err)
	}
	if maxOpen > 0 {
		db.SetMaxOpenConns(maxOpen)
	}
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping sqlite %s: %w", path, err)
	}
	return &SQLiteStore{db: db}, nil
}

// DB exposes the handle for loading fixtures.
func (s *SQLiteStore) DB() *sql.DB { return s.db }

func (s *SQLiteStore) Acquire(ctx context.Context) (Conn, error) {
	c, err := s.db.Conn(ctx)
	if err != nil {
		return nil, fmt.Errorf("acquire sqlite connection: %w", err)
	}
	return sqlConn{c}, nil
}

func (s *SQLiteStore) Dialect() querysql.Dialect { return querysql.SQLite }

func (s *SQLiteStore) CheckedOut() int { return s.db.Stats().InUse }

func (s *SQLiteStore) Stats() PoolStats {
	st := s.db.Stats()
	return PoolStats{Acquired: st.InUse, Idle: st.Idle, Total: st.OpenConnections}
}

func (s *SQLiteStore) Ping(ctx context.Context) error { return s.db.PingContext(ctx) }

func (s *SQLiteStore) Close() { _ = s.db.Close() }

type sqlConn struct {
	c *sql.Conn
}

func (s sqlConn) Query(ctx context.Context, query string, args ...any) (Rows, error) {
	rows, err := s.c.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	return sqlRows{rows}, nil
}

func (s sqlConn) Release() { _ = s.c.Close() }
