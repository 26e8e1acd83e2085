package storage

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"feasibility-engine/internal/config"
	"feasibility-engine/internal/querysql"
)

// PostgresStore is a Warehouse backed by a pgx pool. Queries run with
// search_path set to the configured OMOP schema.
type PostgresStore struct {
	pool *pgxpool.Pool
}

func NewPostgres(ctx context.Context, cfg config.Config) (*PostgresStore, error) {
	poolCfg, err := pgxpool.ParseConfig(cfg.DSN())
	if err != nil {
		return nil, fmt.Errorf("failed to parse postgres DSN: %w", err)
	}
	poolCfg.MaxConns = int32(cfg.Datasource.MaxOpenConns)
	if idle := cfg.Datasource.MaxIdleConns; idle < cfg.Datasource.MaxOpenConns {
		poolCfg.MinConns = int32(idle)
	}
	poolCfg.HealthCheckPeriod = time.Minute
	if cfg.Datasource.Schema != "" {
		poolCfg.ConnConfig.RuntimeParams["search_path"] = cfg.Datasource.Schema
	}

	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, fmt.Errorf("failed to create postgres pool: %w", err)
	}
	return &PostgresStore{pool: pool}, nil
}

func (s *PostgresStore) Acquire(ctx context.Context) (Conn, error) {
	c, err := s.pool.Acquire(ctx)
	if err != nil {
		return nil, fmt.Errorf("acquire postgres connection: %w", err)
	}
	return pgConn{c}, nil
}

func (s *PostgresStore) Dialect() querysql.Dialect { return querysql.Postgres }

func (s *PostgresStore) CheckedOut() int { return int(s.pool.Stat().AcquiredConns()) }

func (s *PostgresStore) Stats() PoolStats {
	st := s.pool.Stat()
	return PoolStats{
		Acquired: int(st.AcquiredConns()),
		Idle:     int(st.IdleConns()),
		Total:    int(st.TotalConns()),
	}
}

func (s *PostgresStore) Ping(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	return s.pool.Ping(ctx)
}

func (s *PostgresStore) Close() {
	if s.pool != nil {
		s.pool.Close()
	}
}

type pgConn struct {
	c *pgxpool.Conn
}

func (p pgConn) Query(ctx context.Context, sql string, args ...any) (Rows, error) {
	return p.c.Query(ctx, sql, args...)
}

func (p pgConn) Release() { p.c.Release() }
