// Package mysql implements the outbox.Dialect contract for MySQL 5/8.
// Nothing in the retrieval pack vendors a MySQL driver, so this uses the
// real, widely-used github.com/go-sql-driver/mysql (named per SPEC_FULL.md
// domain-stack table, not grounded on an in-pack usage).
package mysql

import (
	"database/sql"
	"fmt"
	"strings"

	"github.com/go-sql-driver/mysql"
)

// uniqueViolationErrno is the MySQL error number for ER_DUP_ENTRY.
// See DESIGN.md Open Question 2.
const uniqueViolationErrno = 1062

// Dialect implements outbox.Dialect for MySQL. SkipLock toggles whether
// "FOR UPDATE SKIP LOCKED" is emitted: true models MySQL 8 (which added
// SKIP LOCKED), false models MySQL 5.
type Dialect struct {
	SkipLock bool
}

// New8 returns the MySQL 8 dialect (SKIP LOCKED supported).
func New8() Dialect { return Dialect{SkipLock: true} }

// New5 returns the MySQL 5 dialect (no SKIP LOCKED; lock waits block).
func New5() Dialect { return Dialect{SkipLock: false} }

func (d Dialect) Name() string             { return "mysql" }
func (d Dialect) SupportsSkipLock() bool   { return d.SkipLock }
func (Dialect) SupportsRowLocking() bool   { return true }
func (Dialect) Placeholder(int) string     { return "?" }

func (Dialect) LockTimeoutPreface(seconds int) string {
	return fmt.Sprintf("SET SESSION innodb_lock_wait_timeout = %d", seconds)
}

func (Dialect) IsUniqueViolation(err error) bool {
	var mysqlErr *mysql.MySQLError
	if me, ok := err.(*mysql.MySQLError); ok {
		mysqlErr = me
	}
	return mysqlErr != nil && mysqlErr.Number == uniqueViolationErrno
}

func (d Dialect) SelectBatchSQL(table string) string {
	lock := "FOR UPDATE"
	if d.SkipLock {
		lock = "FOR UPDATE SKIP LOCKED"
	}
	return fmt.Sprintf(`
SELECT id, unique_request_id, invocation, next_attempt_time, attempts, blocklisted, processed, version
FROM %s
WHERE blocklisted = false AND processed = false AND next_attempt_time < ?
ORDER BY id ASC
LIMIT ?
%s`, table, lock)
}

func (Dialect) DeleteProcessedAndExpiredSQL(table string) string {
	return fmt.Sprintf(`
DELETE FROM %s
WHERE processed = true AND blocklisted = false AND next_attempt_time < ?
LIMIT ?`, table)
}

// Open opens a *sql.DB using the go-sql-driver/mysql driver and verifies
// connectivity, mirroring the shape of the teacher's dialect Open() helpers.
func Open(dsn string) (*sql.DB, error) {
	if dsn == "" {
		return nil, fmt.Errorf("mysql DSN is empty")
	}
	if !strings.Contains(dsn, "parseTime") {
		dsn += "?parseTime=true"
	}
	db, err := sql.Open("mysql", dsn)
	if err != nil {
		return nil, err
	}
	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, err
	}
	return db, nil
}
