// Package sqlite implements the outbox.Dialect contract for an embedded
// database, standing in for the spec's H2 role (DESIGN.md Open Question 4).
// Adapted from the teacher's internal/storage/sqlite/conn.go Open()
// (modernc.org/sqlite, WAL journal mode) and its "?" placeholder style.
package sqlite

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	sqlite3 "modernc.org/sqlite"
	sqlite3lib "modernc.org/sqlite/lib"
)

// Dialect implements outbox.Dialect for sqlite. It never supports SKIP
// LOCKED: sqlite has no row-level locking at all, only a database-wide write
// lock, so callers degrade to the lock-wait-then-timeout path per spec.md §5.
type Dialect struct{}

func New() Dialect { return Dialect{} }

func (Dialect) Name() string             { return "sqlite" }
func (Dialect) SupportsSkipLock() bool   { return false }
func (Dialect) SupportsRowLocking() bool { return false }
func (Dialect) Placeholder(int) string   { return "?" }

func (Dialect) LockTimeoutPreface(seconds int) string {
	return fmt.Sprintf("PRAGMA busy_timeout = %d", seconds*1000)
}

func (Dialect) IsUniqueViolation(err error) bool {
	var serr *sqlite3.Error
	if e, ok := err.(*sqlite3.Error); ok {
		serr = e
	}
	return serr != nil && serr.Code() == sqlite3lib.SQLITE_CONSTRAINT_UNIQUE
}

func (Dialect) SelectBatchSQL(table string) string {
	// No row-level FOR UPDATE in sqlite: the caller's transaction already
	// holds the database-wide write lock for its whole duration.
	return fmt.Sprintf(`
SELECT id, unique_request_id, invocation, next_attempt_time, attempts, blocklisted, processed, version
FROM %s
WHERE blocklisted = 0 AND processed = 0 AND next_attempt_time < ?
ORDER BY id ASC
LIMIT ?`, table)
}

func (Dialect) DeleteProcessedAndExpiredSQL(table string) string {
	return fmt.Sprintf(`
DELETE FROM %s
WHERE id IN (
  SELECT id FROM %s
  WHERE processed = 1 AND blocklisted = 0 AND next_attempt_time < ?
  LIMIT ?
)`, table, table)
}

// Open opens (or creates) a sqlite database at path with WAL journaling,
// mirroring the teacher's internal/storage/sqlite/conn.go Open().
func Open(path string) (*sql.DB, error) {
	if path != ":memory:" && !strings.HasPrefix(path, "file::memory:") {
		if dir := filepath.Dir(path); dir != "" {
			if err := os.MkdirAll(dir, 0o755); err != nil {
				return nil, err
			}
		}
	}

	dsn := fmt.Sprintf("file:%s?_pragma=journal_mode(WAL)&_pragma=foreign_keys(ON)", path)
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, err
	}
	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, err
	}
	return db, nil
}
