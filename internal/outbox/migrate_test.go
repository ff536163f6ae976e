package outbox

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/txoutbox/txoutbox/internal/outbox/dialect/sqlite"
)

func TestMigrateIsIdempotent(t *testing.T) {
	dir := t.TempDir()
	db, err := sqlite.Open(filepath.Join(dir, "outbox.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	d := sqlite.New()

	require.NoError(t, Migrate(context.Background(), db, d, "TXNO_OUTBOX"))
	require.NoError(t, Migrate(context.Background(), db, d, "TXNO_OUTBOX"), "re-running Migrate must be a no-op")

	var version int
	require.NoError(t, db.QueryRow(`SELECT MAX(version) FROM TXNO_OUTBOX_VERSION`).Scan(&version))
	assert.Equal(t, 1, version)

	_, err = db.Exec(`INSERT INTO TXNO_OUTBOX (id, invocation, next_attempt_time, attempts, blocklisted, processed, version)
VALUES ('x', 'y', CURRENT_TIMESTAMP, 0, false, false, 1)`)
	assert.NoError(t, err, "the outbox table must exist and accept a row after migration")
}

func TestMigrateDefaultsTableName(t *testing.T) {
	dir := t.TempDir()
	db, err := sqlite.Open(filepath.Join(dir, "outbox.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	require.NoError(t, Migrate(context.Background(), db, sqlite.New(), ""))

	var count int
	require.NoError(t, db.QueryRow(`SELECT COUNT(*) FROM TXNO_OUTBOX`).Scan(&count))
	assert.Equal(t, 0, count)
}
