// Package postgres implements the outbox.Dialect contract for PostgreSQL 9+,
// adapted from the teacher's internal/store/postgres/postgres.go Open()
// idiom and internal/outbox/worker.go's FOR UPDATE SKIP LOCKED usage.
package postgres

import (
	"database/sql"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5/pgconn"
	_ "github.com/jackc/pgx/v5/stdlib"
)

// uniqueViolationCode is the Postgres SQLSTATE for unique_violation.
// See DESIGN.md Open Question 2.
const uniqueViolationCode = "23505"

// Dialect implements outbox.Dialect for PostgreSQL.
type Dialect struct{}

// New returns the PostgreSQL dialect.
func New() Dialect { return Dialect{} }

func (Dialect) Name() string               { return "postgres" }
func (Dialect) SupportsSkipLock() bool     { return true }
func (Dialect) SupportsRowLocking() bool   { return true }
func (Dialect) Placeholder(n int) string   { return fmt.Sprintf("$%d", n) }

func (Dialect) LockTimeoutPreface(seconds int) string {
	return fmt.Sprintf("SET LOCAL lock_timeout = '%ds'", seconds)
}

func (Dialect) IsUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == uniqueViolationCode
}

func (Dialect) SelectBatchSQL(table string) string {
	return fmt.Sprintf(`
SELECT id, unique_request_id, invocation, next_attempt_time, attempts, blocklisted, processed, version
FROM %s
WHERE blocklisted = false AND processed = false AND next_attempt_time < $1
ORDER BY id ASC
LIMIT $2
FOR UPDATE SKIP LOCKED`, table)
}

func (Dialect) DeleteProcessedAndExpiredSQL(table string) string {
	return fmt.Sprintf(`
DELETE FROM %s
WHERE id IN (
  SELECT id FROM %s
  WHERE processed = true AND blocklisted = false AND next_attempt_time < $1
  LIMIT $2
)`, table, table)
}

// Open opens a *sql.DB using the pgx stdlib driver and verifies connectivity,
// mirroring the teacher's internal/store/postgres/postgres.go Open().
func Open(dsn string) (*sql.DB, error) {
	if dsn == "" {
		return nil, fmt.Errorf("postgres DSN is empty")
	}
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, err
	}
	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, err
	}
	return db, nil
}
