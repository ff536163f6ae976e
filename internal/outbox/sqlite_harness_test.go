package outbox

import (
	"context"
	"database/sql"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/txoutbox/txoutbox/internal/outbox/dialect/sqlite"
)

// newTestDB opens a fresh, migrated sqlite database backed by a temp file
// (not ":memory:": modernc.org/sqlite hands out a new empty database per
// connection for in-memory DSNs, which breaks any test issuing more than
// one connection against *sql.DB).
func newTestDB(t *testing.T) (*sql.DB, Dialect) {
	t.Helper()
	dir := t.TempDir()
	db, err := sqlite.Open(filepath.Join(dir, "outbox.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	d := sqlite.New()
	require.NoError(t, Migrate(context.Background(), db, d, "TXNO_OUTBOX"))
	return db, d
}
