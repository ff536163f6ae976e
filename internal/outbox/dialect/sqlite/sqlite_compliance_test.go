package sqlite

import (
	"path/filepath"
	"testing"

	"github.com/txoutbox/txoutbox/internal/outbox/outboxtest"
)

func makeSqliteHarness(t *testing.T) *outboxtest.Harness {
	t.Helper()
	db, err := Open(filepath.Join(t.TempDir(), "outbox.db"))
	if err != nil {
		t.Fatalf("sqlite open: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })
	return &outboxtest.Harness{DB: db, Dialect: New(), Table: "TXNO_OUTBOX"}
}

func TestOutboxCompliance_Sqlite(t *testing.T) {
	outboxtest.Run(t, makeSqliteHarness)
}
