package outbox

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"
)

// PersistorConfig parameterizes the SQL core, per spec.md §4.2.
type PersistorConfig struct {
	Dialect                 Dialect
	TableName               string
	WriteLockTimeoutSeconds int
}

// Persistor is the pure-SQL core: CRUD plus batch-select-with-lock and
// expired-record cleanup, parameterized by dialect. Grounded on the
// teacher's internal/outbox/worker.go SQL constants and
// internal/store/postgres/postgres.go's ExecContext/QueryRowContext idiom,
// generalized with optimistic-lock predicates the teacher's concrete worker
// does not need.
type Persistor struct {
	cfg PersistorConfig
}

// NewPersistor constructs a Persistor. TableName defaults to TXNO_OUTBOX and
// WriteLockTimeoutSeconds defaults to 5 when unset.
func NewPersistor(cfg PersistorConfig) *Persistor {
	if cfg.TableName == "" {
		cfg.TableName = "TXNO_OUTBOX"
	}
	if cfg.WriteLockTimeoutSeconds <= 0 {
		cfg.WriteLockTimeoutSeconds = 5
	}
	return &Persistor{cfg: cfg}
}

func (p *Persistor) table() string { return p.cfg.TableName }

func (p *Persistor) ph(n int) string { return p.cfg.Dialect.Placeholder(n) }

// Save inserts a new entry. A non-empty UniqueRequestID is translated from a
// UNIQUE-violation into AlreadyScheduledError (spec.md §3 invariant 3,
// §4.2). Save is always executed immediately; batching non-unique inserts
// on a transaction-scoped prepared statement (spec.md §9 "batched prepared
// statements") is left to callers that manage their own *sql.Tx via Querier.
func (p *Persistor) Save(ctx context.Context, q Querier, e *Entry) error {
	var uniqueID any
	if e.HasUniqueRequestID() {
		uniqueID = e.UniqueRequestID
	}
	query := fmt.Sprintf(
		`INSERT INTO %s (id, unique_request_id, invocation, next_attempt_time, attempts, blocklisted, processed, version)
VALUES (%s,%s,%s,%s,%s,%s,%s,%s)`,
		p.table(), p.ph(1), p.ph(2), p.ph(3), p.ph(4), p.ph(5), p.ph(6), p.ph(7), p.ph(8))
	_, err := q.ExecContext(ctx, query,
		e.ID, uniqueID, e.Invocation, e.NextAttemptTime, e.Attempts, e.Blocklisted, e.Processed, e.Version)
	if err != nil {
		if p.cfg.Dialect.IsUniqueViolation(err) {
			return &AlreadyScheduledError{UniqueRequestID: e.UniqueRequestID}
		}
		return fmt.Errorf("outbox: save entry %s: %w", e.ID, err)
	}
	return nil
}

// Update writes e's mutable fields with an optimistic-lock predicate on the
// in-memory Version, then bumps e.Version on success (spec.md §3 invariant 2,
// §4.2).
func (p *Persistor) Update(ctx context.Context, q Querier, e *Entry) error {
	query := fmt.Sprintf(
		`UPDATE %s SET next_attempt_time=%s, attempts=%s, blocklisted=%s, processed=%s, version=%s
WHERE id=%s AND version=%s`,
		p.table(), p.ph(1), p.ph(2), p.ph(3), p.ph(4), p.ph(5), p.ph(6), p.ph(7))
	res, err := q.ExecContext(ctx, query,
		e.NextAttemptTime, e.Attempts, e.Blocklisted, e.Processed, e.Version+1, e.ID, e.Version)
	if err != nil {
		return fmt.Errorf("outbox: update entry %s: %w", e.ID, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("outbox: update entry %s: rows affected: %w", e.ID, err)
	}
	if n == 0 {
		return &OptimisticLockError{EntryID: e.ID, Version: e.Version}
	}
	e.Version++
	return nil
}

// Delete removes e with an optimistic-lock predicate on Version (spec.md
// §4.2).
func (p *Persistor) Delete(ctx context.Context, q Querier, e *Entry) error {
	query := fmt.Sprintf(`DELETE FROM %s WHERE id=%s AND version=%s`, p.table(), p.ph(1), p.ph(2))
	res, err := q.ExecContext(ctx, query, e.ID, e.Version)
	if err != nil {
		return fmt.Errorf("outbox: delete entry %s: %w", e.ID, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("outbox: delete entry %s: rows affected: %w", e.ID, err)
	}
	if n == 0 {
		return &OptimisticLockError{EntryID: e.ID, Version: e.Version}
	}
	return nil
}

// Lock attempts to acquire a row lock for e via SELECT ... FOR UPDATE
// [SKIP LOCKED], bounded by WriteLockTimeoutSeconds. It returns (true, nil)
// if the row was returned, (false, nil) on a lock-wait timeout or a
// SKIP LOCKED miss, and a non-nil error only for genuine query failures
// (spec.md §4.2).
func (p *Persistor) Lock(ctx context.Context, q Querier, e *Entry) (bool, error) {
	lockClause := ""
	if p.cfg.Dialect.SupportsRowLocking() {
		lockClause = "FOR UPDATE"
		if p.cfg.Dialect.SupportsSkipLock() {
			lockClause += " SKIP LOCKED"
		}
	}
	query := strings.TrimSpace(fmt.Sprintf(`SELECT id FROM %s WHERE id=%s AND version=%s %s`,
		p.table(), p.ph(1), p.ph(2), lockClause))

	lockCtx, cancel := context.WithTimeout(ctx, time.Duration(p.cfg.WriteLockTimeoutSeconds)*time.Second)
	defer cancel()

	var id string
	err := q.QueryRowContext(lockCtx, query, e.ID, e.Version).Scan(&id)
	switch {
	case err == nil:
		return true, nil
	case err == sql.ErrNoRows:
		return false, nil
	case lockCtx.Err() != nil:
		// Lock-wait timeout: correctness-preserving, never surfaced as an error.
		return false, nil
	default:
		return false, fmt.Errorf("outbox: lock entry %s: %w", e.ID, err)
	}
}

// Whitelist (un-blocklist) conditionally resets a blocklisted, unprocessed
// row to attempts=0/blocklisted=false. It returns whether a row changed, so
// repeated calls are idempotent after the first success (spec.md §7, §8).
func (p *Persistor) Whitelist(ctx context.Context, q Querier, entryID string) (bool, error) {
	query := fmt.Sprintf(
		`UPDATE %s SET attempts=0, blocklisted=false, version=version+1
WHERE id=%s AND blocklisted=true AND processed=false`,
		p.table(), p.ph(1))
	res, err := q.ExecContext(ctx, query, entryID)
	if err != nil {
		return false, fmt.Errorf("outbox: whitelist entry %s: %w", entryID, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("outbox: whitelist entry %s: rows affected: %w", entryID, err)
	}
	return n > 0, nil
}

// SelectBatch returns up to size eligible rows: not blocklisted, not
// processed, NextAttemptTime < now, row-locked per dialect (spec.md §3
// invariant 1, §4.2, §8 "selectBatch never returns more than K rows").
func (p *Persistor) SelectBatch(ctx context.Context, q Querier, size int, now time.Time) ([]*Entry, error) {
	query := p.cfg.Dialect.SelectBatchSQL(p.table())
	rows, err := q.QueryContext(ctx, query, now, size)
	if err != nil {
		return nil, fmt.Errorf("outbox: select batch: %w", err)
	}
	defer rows.Close()

	var out []*Entry
	for rows.Next() {
		e := &Entry{}
		var uniqueID sql.NullString
		if err := rows.Scan(&e.ID, &uniqueID, &e.Invocation, &e.NextAttemptTime,
			&e.Attempts, &e.Blocklisted, &e.Processed, &e.Version); err != nil {
			return nil, fmt.Errorf("outbox: select batch scan: %w", err)
		}
		e.UniqueRequestID = uniqueID.String
		out = append(out, e)
	}
	if len(out) > size {
		out = out[:size] // defensive: never return more than requested
	}
	return out, rows.Err()
}

// DeleteProcessedAndExpired bulk-deletes processed, non-blocklisted rows
// whose retention window has elapsed, capped at size rows (spec.md §4.2,
// §8 "repeated deleteProcessedAndExpired never deletes a non-processed row").
func (p *Persistor) DeleteProcessedAndExpired(ctx context.Context, q Querier, size int, now time.Time) (int64, error) {
	query := p.cfg.Dialect.DeleteProcessedAndExpiredSQL(p.table())
	res, err := q.ExecContext(ctx, query, now, size)
	if err != nil {
		return 0, fmt.Errorf("outbox: delete processed and expired: %w", err)
	}
	return res.RowsAffected()
}

// Querier is the minimal subset of *sql.DB / *sql.Tx the Persistor needs;
// both satisfy it without adaptation.
type Querier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}
