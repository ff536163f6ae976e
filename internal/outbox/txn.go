package outbox

import (
	"context"
	"database/sql"
	"fmt"
)

type txContextKey struct{}

// TransactionManager exposes the transaction contract §4.3 requires:
// InTransaction/InTransactionReturns run work inside a business transaction,
// RequireTransaction fetches the currently-active one. Implementers
// typically front an existing connection/transaction library; this package
// ships a *sql.DB-backed implementation.
type TransactionManager interface {
	InTransaction(ctx context.Context, work func(ctx context.Context, tx *Transaction) error) error
	InTransactionReturns(ctx context.Context, work func(ctx context.Context, tx *Transaction) (any, error)) (any, error)
	RequireTransaction(ctx context.Context) (*Transaction, error)
}

// Transaction is the active transaction handle passed to business code. It
// exposes the underlying connection, an opaque context, and post-commit
// hook registration, per spec.md §4.3/§9.
//
// Grounded on autobrr-qui's internal/database/db.go Tx wrapper (type Tx
// struct{ tx *sql.Tx; db *DB }), the richer transaction-object idiom in the
// pack, generalized with a post-commit hook list the teacher's ad hoc
// tx.Commit() call sites don't carry.
type Transaction struct {
	tx     *sql.Tx
	ctx    context.Context
	hooks  []func()
	nested bool
}

// Connection returns the underlying *sql.Tx for direct SQL access (e.g. by
// the Persistor).
func (t *Transaction) Connection() *sql.Tx { return t.tx }

// Context returns the opaque per-transaction context (carries the
// transaction marker used to detect nesting).
func (t *Transaction) Context() context.Context { return t.ctx }

// AddPostCommitHook registers a callback run synchronously, once, in the
// committing goroutine, immediately after the database commit and before
// the public commit call returns (spec.md §4.3/§9). Hooks must not panic
// back into the caller; SQLDBTransactionManager recovers any panic and
// passes the recovered value to OnHookPanic (dropped if OnHookPanic is nil).
// A hook panic is not reported to any Listener.
func (t *Transaction) AddPostCommitHook(hook func()) {
	t.hooks = append(t.hooks, hook)
}

// SQLDBTransactionManager implements TransactionManager directly on
// *sql.DB, mirroring the teacher's repeated
// `tx, err := db.BeginTx(...); defer tx.Rollback(); ...; tx.Commit()`
// pattern (internal/storage/postgres/adapter.go, internal/outbox/worker.go's
// processOnce), generalized into a reusable manager with hook dispatch and
// nested-transaction rejection (DESIGN.md Open Question 1).
type SQLDBTransactionManager struct {
	DB      *sql.DB
	Dialect Dialect
	// LockTimeoutSeconds, if > 0, is applied via Dialect.LockTimeoutPreface at
	// the start of every transaction.
	LockTimeoutSeconds int
	OnHookPanic        func(recovered any)
}

var _ TransactionManager = (*SQLDBTransactionManager)(nil)

func (m *SQLDBTransactionManager) begin(ctx context.Context) (*Transaction, error) {
	if ctx.Value(txContextKey{}) != nil {
		return nil, &NoTransactionActiveError{Cause: ErrNestedTransaction}
	}
	tx, err := m.DB.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("outbox: begin transaction: %w", err)
	}
	txCtx := context.WithValue(ctx, txContextKey{}, struct{}{})
	t := &Transaction{tx: tx, ctx: txCtx}
	t.ctx = withActiveTransaction(txCtx, t)

	if m.LockTimeoutSeconds > 0 {
		if preface := m.Dialect.LockTimeoutPreface(m.LockTimeoutSeconds); preface != "" {
			if _, err := tx.ExecContext(ctx, preface); err != nil {
				_ = tx.Rollback()
				return nil, fmt.Errorf("outbox: set lock timeout: %w", err)
			}
		}
	}
	return t, nil
}

func (m *SQLDBTransactionManager) commit(t *Transaction) error {
	if err := t.tx.Commit(); err != nil {
		return fmt.Errorf("outbox: commit: %w", err)
	}
	for _, hook := range t.hooks {
		m.runHook(hook)
	}
	return nil
}

func (m *SQLDBTransactionManager) runHook(hook func()) {
	defer func() {
		if r := recover(); r != nil && m.OnHookPanic != nil {
			m.OnHookPanic(r)
		}
	}()
	hook()
}

// InTransaction runs work inside a new transaction, committing on success
// and rolling back on error or panic.
func (m *SQLDBTransactionManager) InTransaction(ctx context.Context, work func(ctx context.Context, tx *Transaction) error) error {
	_, err := m.InTransactionReturns(ctx, func(ctx context.Context, tx *Transaction) (any, error) {
		return nil, work(ctx, tx)
	})
	return err
}

// InTransactionReturns is InTransaction plus a return value, for callers
// that need one (e.g. the entry just scheduled).
func (m *SQLDBTransactionManager) InTransactionReturns(ctx context.Context, work func(ctx context.Context, tx *Transaction) (any, error)) (result any, err error) {
	t, err := m.begin(ctx)
	if err != nil {
		return nil, err
	}
	defer func() {
		if r := recover(); r != nil {
			_ = t.tx.Rollback()
			panic(r)
		}
	}()

	result, err = work(t.ctx, t)
	if err != nil {
		_ = t.tx.Rollback()
		return nil, err
	}
	if err := m.commit(t); err != nil {
		return nil, err
	}
	return result, nil
}

// RequireTransaction fetches the active Transaction from ctx, or returns
// NoTransactionActiveError. begin stores both the nesting marker and the
// *Transaction itself on the context handed to work, so code running under
// that context (such as Schedule) recovers the transaction here without it
// being passed explicitly (spec.md §4.3).
func (m *SQLDBTransactionManager) RequireTransaction(ctx context.Context) (*Transaction, error) {
	if ctx.Value(txContextKey{}) == nil {
		return nil, &NoTransactionActiveError{}
	}
	if t, ok := ctx.Value(activeTransactionKey{}).(*Transaction); ok {
		return t, nil
	}
	return nil, &NoTransactionActiveError{}
}

type activeTransactionKey struct{}

// withActiveTransaction stashes t on ctx so RequireTransaction can recover it
// without callers threading *Transaction through every call manually.
func withActiveTransaction(ctx context.Context, t *Transaction) context.Context {
	return context.WithValue(ctx, activeTransactionKey{}, t)
}
