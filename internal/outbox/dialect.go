package outbox

import "fmt"

// Dialect captures the minimum behavioral surface spec.md §4.2/§6 requires
// to parameterize the SQL core across H2 (stood in for by sqlite here, see
// DESIGN.md), MySQL 5/8, and PostgreSQL 9+: placeholder style, whether
// SKIP LOCKED and row locking are available, the lock-timeout preface, the
// batch-select and expired-row delete statements, and driver-specific
// unique-violation classification. Column types, including the timestamp
// column, are not part of this interface: Migrate picks them by Name().
type Dialect interface {
	// Name identifies the dialect family ("postgres", "mysql", "sqlite").
	Name() string

	// SupportsSkipLock reports whether FOR UPDATE SKIP LOCKED is available.
	// false is a correctness-preserving, throughput-reducing downgrade
	// (spec.md §4.2/§5): callers wait up to the lock timeout instead.
	SupportsSkipLock() bool

	// SupportsRowLocking reports whether SELECT ... FOR UPDATE is valid syntax
	// at all. Postgres and MySQL do; embedded sqlite has no row-level locking
	// (only a database-wide write lock held for the transaction's duration),
	// so Persistor.Lock must omit the clause entirely rather than emit a
	// syntax error (DESIGN.md Open Question 5).
	SupportsRowLocking() bool

	// Placeholder returns the positional parameter marker for the n-th
	// (1-indexed) bind variable, e.g. "$1" for postgres, "?" for mysql/sqlite.
	Placeholder(n int) string

	// LockTimeoutPreface returns a statement to run at the start of a
	// transaction to bound how long a row-lock wait may take, or "" if the
	// dialect has no such session-level setting (the caller then relies on a
	// context deadline instead).
	LockTimeoutPreface(seconds int) string

	// IsUniqueViolation classifies a driver error as a UNIQUE-constraint
	// violation. Per DESIGN.md Open Question 2, this is done via
	// dialect-specific SQLSTATE/error-code inspection, never string matching.
	IsUniqueViolation(err error) bool

	// SelectBatchSQL returns the statement selecting up to limitPlaceholder
	// due, eligible rows, with row locking applied per SupportsSkipLock.
	SelectBatchSQL(table string) string

	// DeleteProcessedAndExpiredSQL returns the statement bulk-deleting
	// processed rows whose retention window has elapsed, capped by a row
	// limit where the dialect supports it.
	DeleteProcessedAndExpiredSQL(table string) string
}

// UnsupportedDialectError is returned by the dialect registry for an unknown
// dialect name.
type UnsupportedDialectError struct {
	Name string
}

func (e *UnsupportedDialectError) Error() string {
	return fmt.Sprintf("outbox: unsupported dialect %q", e.Name)
}
