//go:build integration

package containers

import (
	"context"
	"testing"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/testcontainers/testcontainers-go"
	tcpostgres "github.com/testcontainers/testcontainers-go/modules/postgres"

	"feasibility-engine/internal/config"
	"feasibility-engine/internal/testutil/omopfixture"
)

// PostgresContainer is a throwaway PostgreSQL loaded with the OMOP fixture.
type PostgresContainer struct {
	Container *tcpostgres.PostgresContainer
	Config    config.Config
}

// NewPostgresContainer starts postgres, loads the fixture and returns a
// datasource config pointing at it. The container is terminated on cleanup.
func NewPostgresContainer(t *testing.T) *PostgresContainer {
	t.Helper()

	ctx := context.Background()

	container, err := tcpostgres.Run(ctx, "postgres:16-alpine",
		tcpostgres.WithDatabase("omop"),
		tcpostgres.WithUsername("omop"),
		tcpostgres.WithPassword("omop"),
		tcpostgres.BasicWaitStrategies(),
	)
	testcontainers.CleanupContainer(t, container)
	if err != nil {
		t.Fatalf("failed to start postgres container: %v", err)
	}

	host, err := container.Host(ctx)
	if err != nil {
		t.Fatalf("failed to get postgres host: %v", err)
	}
	port, err := container.MappedPort(ctx, "5432/tcp")
	if err != nil {
		t.Fatalf("failed to get postgres port: %v", err)
	}

	var cfg config.Config
	cfg.Datasource.Driver = "postgres"
	cfg.Datasource.Host = host
	cfg.Datasource.Port = port.Int()
	cfg.Datasource.User = "omop"
	cfg.Datasource.Password = "omop"
	cfg.Datasource.DBName = "omop"
	cfg.Datasource.Schema = "cdm"
	cfg.Datasource.SSLMode = "disable"
	cfg.Datasource.MaxOpenConns = 4
	cfg.Datasource.MaxIdleConns = 1

	connStr, err := container.ConnectionString(ctx, "sslmode=disable")
	if err != nil {
		t.Fatalf("failed to get postgres connection string: %v", err)
	}
	if err := loadFixture(ctx, connStr); err != nil {
		t.Fatalf("failed to load fixture: %v", err)
	}

	return &PostgresContainer{Container: container, Config: cfg}
}

func loadFixture(ctx context.Context, connStr string) error {
	admin, err := pgxpool.New(ctx, connStr)
	if err != nil {
		return err
	}
	_, err = admin.Exec(ctx, "CREATE SCHEMA IF NOT EXISTS cdm")
	admin.Close()
	if err != nil {
		return err
	}

	poolCfg, err := pgxpool.ParseConfig(connStr)
	if err != nil {
		return err
	}
	poolCfg.ConnConfig.RuntimeParams["search_path"] = "cdm"
	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return err
	}
	defer pool.Close()

	return omopfixture.Load(ctx, func(ctx context.Context, stmt string) error {
		_, err := pool.Exec(ctx, stmt)
		return err
	})
}
