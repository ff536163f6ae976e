package mysql

import (
	"context"
	"os"
	"testing"

	"github.com/txoutbox/txoutbox/internal/outbox"
	"github.com/txoutbox/txoutbox/internal/outbox/outboxtest"
)

// makeMySQLHarness follows the teacher's postgres_integration_test.go
// DSN-env-var-skip pattern rather than a container: the pack only vendors a
// testcontainers Postgres module, so MySQL coverage stays opt-in via an
// operator-supplied database instead of adding an unwired dependency.
func makeMySQLHarness(t *testing.T) *outboxtest.Harness {
	t.Helper()
	dsn := os.Getenv("OUTBOX_MYSQL_TEST_DSN")
	if dsn == "" {
		t.Skip("OUTBOX_MYSQL_TEST_DSN not set; skipping mysql compliance test")
	}

	db, err := Open(dsn)
	if err != nil {
		t.Fatalf("mysql open: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })

	d := New8()
	if err := outbox.Migrate(context.Background(), db, d, "TXNO_OUTBOX"); err != nil {
		t.Fatalf("mysql migrate: %v", err)
	}
	return &outboxtest.Harness{DB: db, Dialect: d, Table: "TXNO_OUTBOX"}
}

func TestOutboxCompliance_MySQL(t *testing.T) {
	outboxtest.Run(t, makeMySQLHarness)
}
