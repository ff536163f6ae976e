package postgres

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	tcpostgres "github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/txoutbox/txoutbox/internal/outbox"
	"github.com/txoutbox/txoutbox/internal/outbox/outboxtest"
)

// newPostgresHarness starts a disposable PostgreSQL container and returns a
// migrated harness against it, mirroring the teacher's
// postgres_integration_test.go DSN pattern but sourcing the DSN from a
// container instead of an operator-supplied environment variable, so the
// suite runs without any external setup beyond a docker daemon.
func newPostgresHarness(t *testing.T) *outboxtest.Harness {
	t.Helper()
	if testing.Short() {
		t.Skip("skipping postgres container test in -short mode")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	container, err := tcpostgres.Run(ctx, "postgres:16-alpine",
		tcpostgres.WithDatabase("outbox"),
		tcpostgres.WithUsername("outbox"),
		tcpostgres.WithPassword("outbox"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").WithOccurrence(2).WithStartupTimeout(60*time.Second),
		),
	)
	if err != nil {
		t.Skipf("postgres testcontainer unavailable: %v", err)
	}
	t.Cleanup(func() { _ = container.Terminate(context.Background()) })

	dsn, err := container.ConnectionString(ctx, "sslmode=disable")
	require.NoError(t, err)

	db, err := Open(dsn)
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	d := New()
	require.NoError(t, outbox.Migrate(context.Background(), db, d, "TXNO_OUTBOX"))
	return &outboxtest.Harness{DB: db, Dialect: d, Table: "TXNO_OUTBOX"}
}

func TestOutboxCompliance_Postgres(t *testing.T) {
	outboxtest.Run(t, newPostgresHarness)
}
