// Package testhelpers starts throwaway backing services for integration tests.
//
// The Postgres helper runs a container through testcontainers-go, applies the
// embedded migrations and hands back a pool. Tests using it are skipped in
// -short mode and when no Docker provider is reachable.
package testhelpers

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/donustur/donustur/internal/infra"
)

const (
	postgresImage    = "postgres:16-alpine"
	postgresUser     = "donustur"
	postgresPassword = "donustur"
	postgresDB       = "donustur"
)

// Postgres starts a migrated Postgres instance and returns a pool bound to
// it. The container and pool are released through t.Cleanup.
func Postgres(t *testing.T) *pgxpool.Pool {
	t.Helper()
	if testing.Short() {
		t.Skip("skipping container-based test in short mode")
	}
	testcontainers.SkipIfProviderIsNotHealthy(t)

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	req := testcontainers.ContainerRequest{
		Image:        postgresImage,
		ExposedPorts: []string{"5432/tcp"},
		Env: map[string]string{
			"POSTGRES_USER":     postgresUser,
			"POSTGRES_PASSWORD": postgresPassword,
			"POSTGRES_DB":       postgresDB,
		},
		// the entrypoint restarts the server once after init
		WaitingFor: wait.ForLog("database system is ready to accept connections").
			WithOccurrence(2).
			WithStartupTimeout(60 * time.Second),
	}
	container, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: req,
		Started:          true,
	})
	if err != nil {
		t.Fatalf("start postgres container: %v", err)
	}
	t.Cleanup(func() {
		if err := container.Terminate(context.Background()); err != nil {
			t.Logf("terminate postgres container: %v", err)
		}
	})

	host, err := container.Host(ctx)
	if err != nil {
		t.Fatalf("postgres container host: %v", err)
	}
	port, err := container.MappedPort(ctx, "5432/tcp")
	if err != nil {
		t.Fatalf("postgres container port: %v", err)
	}
	url := fmt.Sprintf("postgres://%s:%s@%s:%s/%s?sslmode=disable",
		postgresUser, postgresPassword, host, port.Port(), postgresDB)

	pool, err := infra.NewPostgresPool(ctx, url)
	if err != nil {
		t.Fatalf("connect postgres container: %v", err)
	}
	t.Cleanup(pool.Close)

	if _, err := infra.Migrate(ctx, pool); err != nil {
		t.Fatalf("migrate postgres container: %v", err)
	}
	return pool
}
