//go:build integration

// Package containers starts throwaway infrastructure for integration tests.
package containers

import (
	"context"
	"database/sql"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	_ "github.com/jackc/pgx/v5/stdlib" // registers the "pgx" database/sql driver
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"

	"civicportal/internal/platform/database"
	id "civicportal/pkg/domain"
)

// PostgresContainer is a migrated Postgres shared by every suite in a package.
type PostgresContainer struct {
	Container testcontainers.Container
	DSN       string
	DB        *sql.DB
}

var (
	sharedMu       sync.Mutex
	sharedPostgres *PostgresContainer
)

// Postgres returns the package-wide container, starting it on first use.
// Ryuk removes the container when the test process exits.
func Postgres(t *testing.T) *PostgresContainer {
	t.Helper()
	sharedMu.Lock()
	defer sharedMu.Unlock()
	if sharedPostgres == nil {
		sharedPostgres = startPostgres(t)
	}
	return sharedPostgres
}

func startPostgres(t *testing.T) *PostgresContainer {
	t.Helper()
	ctx := context.Background()

	container, err := postgres.Run(ctx,
		"postgres:18-alpine",
		postgres.WithDatabase("portal_test"),
		postgres.WithUsername("portal"),
		postgres.WithPassword("portal_test_password"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(60*time.Second),
		),
	)
	if err != nil {
		t.Fatalf("start postgres container: %v", err)
	}

	dsn, err := container.ConnectionString(ctx, "sslmode=disable")
	if err != nil {
		_ = container.Terminate(ctx)
		t.Fatalf("postgres connection string: %v", err)
	}
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		_ = container.Terminate(ctx)
		t.Fatalf("open postgres: %v", err)
	}
	if err := database.MigrateUp(ctx, db); err != nil {
		_ = db.Close()
		_ = container.Terminate(ctx)
		t.Fatalf("migrate: %v", err)
	}
	return &PostgresContainer{Container: container, DSN: dsn, DB: db}
}

// TruncateRecords empties the record tables and every tenant except the
// fallback row seeded by the migrations.
func (p *PostgresContainer) TruncateRecords(ctx context.Context) error {
	for _, table := range []string{"service_requests", "facilities", "handbook_articles", "emergency_alerts"} {
		if _, err := p.DB.ExecContext(ctx, "TRUNCATE TABLE "+table); err != nil {
			return fmt.Errorf("truncate %s: %w", table, err)
		}
	}
	_, err := p.DB.ExecContext(ctx, `DELETE FROM tenants WHERE id <> '00000000-0000-0000-0000-000000000001'`)
	return err
}

// CreateTenant inserts a tenant with a random subdomain.
func (p *PostgresContainer) CreateTenant(ctx context.Context, t testing.TB) id.TenantID {
	t.Helper()
	tenantID := id.TenantID(uuid.New())
	sub := "city-" + uuid.NewString()[:8]
	_, err := p.DB.ExecContext(ctx,
		`INSERT INTO tenants (id, subdomain, name) VALUES ($1, $2, $3)`,
		uuid.UUID(tenantID), sub, "City "+sub)
	if err != nil {
		t.Fatalf("create tenant: %v", err)
	}
	return tenantID
}
