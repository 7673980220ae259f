//go:build integration

package repositories_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/turtacn/aptrec/internal/config"
	"github.com/turtacn/aptrec/internal/infrastructure/database/postgres"
	"github.com/turtacn/aptrec/internal/infrastructure/database/postgres/repositories"
	"github.com/turtacn/aptrec/internal/infrastructure/monitoring/logging"
)

func startListingDB(t *testing.T) *repositories.ListingRepository {
	t.Helper()
	ctx := context.Background()

	container, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: testcontainers.ContainerRequest{
			Image:        "postgres:16-alpine",
			ExposedPorts: []string{"5432/tcp"},
			Env: map[string]string{
				"POSTGRES_USER":     "test",
				"POSTGRES_PASSWORD": "test",
				"POSTGRES_DB":       "aptrec_test",
			},
			WaitingFor: wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).WithStartupTimeout(60 * time.Second),
		},
		Started: true,
	})
	require.NoError(t, err)
	t.Cleanup(func() { _ = container.Terminate(ctx) })

	host, err := container.Host(ctx)
	require.NoError(t, err)
	port, err := container.MappedPort(ctx, "5432")
	require.NoError(t, err)

	cfg := config.PostgresConfig{
		Host: host, Port: port.Int(), User: "test", Password: "test",
		DBName: "aptrec_test", SSLMode: "disable",
	}
	log := logging.NewNopLogger()
	require.NoError(t, postgres.NewMigrator(postgres.BuildDSN(cfg), log).Up())

	conn, err := postgres.NewConnection(cfg, log)
	require.NoError(t, err)
	t.Cleanup(func() { _ = conn.Close() })

	pool, err := postgres.NewPool(ctx, cfg, log)
	require.NoError(t, err)
	t.Cleanup(pool.Close)

	return repositories.NewListingRepository(conn, pool, log)
}

func TestListingRepository_ImportAndLookup(t *testing.T) {
	repo := startListingDB(t)
	ctx := context.Background()

	n, err := repo.Import(ctx, []repositories.Listing{
		{PropertyName: "A", Link: "https://listings.example/a"},
		{PropertyName: "B", Link: "https://listings.example/b"},
		{PropertyName: "C", Link: "https://listings.example/c"},
	})
	require.NoError(t, err)
	assert.Equal(t, int64(3), n)

	n, err = repo.Import(ctx, []repositories.Listing{{PropertyName: "B", Link: "https://listings.example/b2"}})
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)

	links, err := repo.Links(ctx, []string{"B", "C", "Z"})
	require.NoError(t, err)
	assert.Equal(t, map[string]string{
		"B": "https://listings.example/b2",
		"C": "https://listings.example/c",
	}, links)

	count, err := repo.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, 3, count)

	require.NoError(t, repo.Upsert(ctx, repositories.Listing{PropertyName: "D", Link: "https://listings.example/d"}))
	l, err := repo.Get(ctx, "D")
	require.NoError(t, err)
	assert.Equal(t, "https://listings.example/d", l.Link)

	require.NoError(t, repo.Delete(ctx, "D"))
	_, err = repo.Get(ctx, "D")
	assert.Error(t, err)
}
