package storage

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"feasibility-engine/internal/config"
	"feasibility-engine/internal/querysql"
)

// Rows is the subset of a result set the engine reads. pgx.Rows satisfies it directly.
type Rows interface {
	Next() bool
	Scan(dest ...any) error
	Err() error
	Close()
}

// Conn is one checked-out warehouse connection. Release returns it to the pool.
type Conn interface {
	Query(ctx context.Context, sql string, args ...any) (Rows, error)
	Release()
}

// Warehouse is a pooled OMOP CDM database.
type Warehouse interface {
	Acquire(ctx context.Context) (Conn, error)
	Dialect() querysql.Dialect
	// CheckedOut is the number of connections currently acquired.
	CheckedOut() int
	Stats() PoolStats
	Ping(ctx context.Context) error
	Close()
}

type PoolStats struct {
	Acquired int `json:"acquired"`
	Idle     int `json:"idle"`
	Total    int `json:"total"`
}

// Open connects to the warehouse named by cfg.Datasource.Driver.
func Open(ctx context.Context, cfg config.Config) (Warehouse, error) {
	switch strings.ToLower(cfg.Datasource.Driver) {
	case "postgres", "postgresql":
		return NewPostgres(ctx, cfg)
	case "sqlite", "sqlite3":
		return NewSQLite(ctx, cfg.DSN(), cfg.Datasource.MaxOpenConns)
	}
	return nil, fmt.Errorf("unsupported datasource driver %q", cfg.Datasource.Driver)
}

// sqlRows adapts *sql.Rows to Rows.
type sqlRows struct {
	*sql.Rows
}

func (r sqlRows) Close() { _ = r.Rows.Close() }
