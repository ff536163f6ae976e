package outbox

import (
	"context"
	"database/sql"
	"fmt"
)

// migration is one idempotent, append-only schema change, tracked by
// sequence number in the version table (spec.md §4.2/§6). Grounded on
// autobrr-qui's internal/database/db.go migrate/applyAllMigrations pattern:
// a migrations table recording which changes already ran, with pending ones
// applied inside a single transaction.
type migration struct {
	version int
	stmt    func(table string) string
}

// Postgres/MySQL-flavored column types differ enough (TIMESTAMP vs
// TIMESTAMPTZ, BOOLEAN vs TINYINT) that the create-table statement is
// supplied per dialect rather than as one migration list; everything after
// table creation is dialect-neutral DDL.
func createTableStmt(d Dialect, table string) string {
	switch d.Name() {
	case "postgres":
		return fmt.Sprintf(`
CREATE TABLE IF NOT EXISTS %s (
  id                TEXT PRIMARY KEY,
  unique_request_id TEXT UNIQUE,
  invocation        BYTEA NOT NULL,
  next_attempt_time TIMESTAMPTZ NOT NULL,
  attempts          INTEGER NOT NULL DEFAULT 0,
  blocklisted       BOOLEAN NOT NULL DEFAULT false,
  processed         BOOLEAN NOT NULL DEFAULT false,
  version           INTEGER NOT NULL DEFAULT 1
)`, table)
	case "mysql":
		return fmt.Sprintf(`
CREATE TABLE IF NOT EXISTS %s (
  id                VARCHAR(64) PRIMARY KEY,
  unique_request_id VARCHAR(255) UNIQUE,
  invocation        LONGBLOB NOT NULL,
  next_attempt_time DATETIME(3) NOT NULL,
  attempts          INT NOT NULL DEFAULT 0,
  blocklisted       BOOLEAN NOT NULL DEFAULT false,
  processed         BOOLEAN NOT NULL DEFAULT false,
  version           INT NOT NULL DEFAULT 1
)`, table)
	default: // sqlite
		return fmt.Sprintf(`
CREATE TABLE IF NOT EXISTS %s (
  id                TEXT PRIMARY KEY,
  unique_request_id TEXT UNIQUE,
  invocation        BLOB NOT NULL,
  next_attempt_time DATETIME NOT NULL,
  attempts          INTEGER NOT NULL DEFAULT 0,
  blocklisted       BOOLEAN NOT NULL DEFAULT 0,
  processed         BOOLEAN NOT NULL DEFAULT 0,
  version           INTEGER NOT NULL DEFAULT 1
)`, table)
	}
}

func indexStmts(table string) []string {
	return []string{
		fmt.Sprintf(`CREATE INDEX IF NOT EXISTS idx_%s_selectable ON %s (blocklisted, processed, next_attempt_time)`, table, table),
	}
}

// Migrate brings the database up to date: creates the outbox table and
// supporting indexes if missing, and records progress in
// "<table>_VERSION" so repeated calls are no-ops (spec.md §4.2 "schema
// migration tracking", §6).
func Migrate(ctx context.Context, db *sql.DB, d Dialect, table string) error {
	if table == "" {
		table = "TXNO_OUTBOX"
	}
	versionTable := table + "_VERSION"

	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("outbox: migrate: begin: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, fmt.Sprintf(
		`CREATE TABLE IF NOT EXISTS %s (version INTEGER NOT NULL)`, versionTable)); err != nil {
		return fmt.Errorf("outbox: migrate: create version table: %w", err)
	}

	var applied int
	row := tx.QueryRowContext(ctx, fmt.Sprintf(`SELECT COALESCE(MAX(version), 0) FROM %s`, versionTable))
	if err := row.Scan(&applied); err != nil {
		return fmt.Errorf("outbox: migrate: read version: %w", err)
	}

	migrations := []migration{
		{version: 1, stmt: func(t string) string { return createTableStmt(d, t) }},
	}

	for _, m := range migrations {
		if m.version <= applied {
			continue
		}
		if _, err := tx.ExecContext(ctx, m.stmt(table)); err != nil {
			return fmt.Errorf("outbox: migrate: apply v%d: %w", m.version, err)
		}
		for _, idx := range indexStmts(table) {
			if _, err := tx.ExecContext(ctx, idx); err != nil {
				return fmt.Errorf("outbox: migrate: apply v%d index: %w", m.version, err)
			}
		}
		if _, err := tx.ExecContext(ctx, fmt.Sprintf(
			`INSERT INTO %s (version) VALUES (%s)`, versionTable, d.Placeholder(1)), m.version); err != nil {
			return fmt.Errorf("outbox: migrate: record v%d: %w", m.version, err)
		}
	}

	return tx.Commit()
}
