package outbox

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/rs/zerolog"
)

// Options configures a new Outbox, per spec.md §6's listed configuration
// knobs. DB, Dialect, and Instantiator are required; everything else has a
// spec-mandated default.
type Options struct {
	DB        *sql.DB
	Dialect   Dialect
	TableName string

	Instantiator Instantiator
	Serializer   Serializer
	Executor     Executor
	Retry        RetryPolicy
	Clock        Clock
	Listener     Listener
	Log          zerolog.Logger

	WriteLockTimeoutSeconds int
	BlocklistAfterAttempts  int
	RetentionThreshold      time.Duration
	FlushBatchSize          int
}

// Outbox is the assembled engine: the public API a business transaction
// calls into (Schedule), the operator surface (Whitelist), and the pieces
// the flusher drives (persistor, runner), wired per spec.md §6's default
// configuration and grounded on the teacher's internal/outbox/worker.go
// constructor (NewWorker wiring DB, logger, clock, interval).
type Outbox struct {
	persistor    *Persistor
	txm          TransactionManager
	serializer   Serializer
	instantiator Instantiator
	executor     Executor
	retry        RetryPolicy
	clock        Clock
	listener     Listener
	log          zerolog.Logger

	run *runner

	flushBatchSize int
}

// New assembles an Outbox from opts, filling in spec-mandated defaults for
// anything left zero (spec.md §6: JSON serializer, linear backoff,
// system clock, no-op listener, attemptFrequency=2s's partner knobs
// blocklistAfterAttempts=5, a bounded pool executor).
func New(opts Options) (*Outbox, error) {
	if opts.DB == nil {
		return nil, fmt.Errorf("outbox: Options.DB is required")
	}
	if opts.Dialect == nil {
		return nil, fmt.Errorf("outbox: Options.Dialect is required")
	}
	if opts.Instantiator == nil {
		return nil, fmt.Errorf("outbox: Options.Instantiator is required")
	}

	tableName := opts.TableName
	if tableName == "" {
		tableName = "TXNO_OUTBOX"
	}
	lockTimeout := opts.WriteLockTimeoutSeconds
	if lockTimeout <= 0 {
		lockTimeout = 5
	}
	blocklistAfter := opts.BlocklistAfterAttempts
	if blocklistAfter <= 0 {
		blocklistAfter = 5
	}
	retention := opts.RetentionThreshold
	if retention <= 0 {
		retention = 7 * 24 * time.Hour
	}
	flushBatchSize := opts.FlushBatchSize
	if flushBatchSize <= 0 {
		flushBatchSize = 4096
	}

	serializer := opts.Serializer
	if serializer == nil {
		serializer = JSONSerializer{}
	}
	clock := opts.Clock
	if clock == nil {
		clock = SystemClock{}
	}
	listener := opts.Listener
	if listener == nil {
		listener = NoopListener{}
	}
	retry := opts.Retry
	if retry == nil {
		retry = NewBackoffPolicy(2*time.Second, LinearBackoff)
	}
	executor := opts.Executor
	if executor == nil {
		executor = NewPoolExecutor(32)
	}
	log := opts.Log

	persistor := NewPersistor(PersistorConfig{
		Dialect:                 opts.Dialect,
		TableName:               tableName,
		WriteLockTimeoutSeconds: lockTimeout,
	})

	txm := &SQLDBTransactionManager{
		DB:                 opts.DB,
		Dialect:            opts.Dialect,
		LockTimeoutSeconds: lockTimeout,
		OnHookPanic: func(recovered any) {
			log.Error().Interface("panic", recovered).Msg("outbox: post-commit hook panicked")
		},
	}

	o := &Outbox{
		persistor:      persistor,
		txm:            txm,
		serializer:     serializer,
		instantiator:   opts.Instantiator,
		executor:       executor,
		retry:          retry,
		clock:          clock,
		listener:       listener,
		log:            log,
		flushBatchSize: flushBatchSize,
	}
	o.run = &runner{
		persistor:              persistor,
		txm:                    txm,
		serializer:             serializer,
		instantiator:           opts.Instantiator,
		retry:                  retry,
		clock:                  clock,
		listener:                listener,
		log:                    log,
		blocklistAfterAttempts: blocklistAfter,
		retentionThreshold:     retention,
	}
	return o, nil
}

// InTransaction runs work inside a business transaction that Schedule calls
// within it will enqueue into, committing on success (spec.md §4.3/§4.4).
func (o *Outbox) InTransaction(ctx context.Context, work func(ctx context.Context, tx *Transaction) error) error {
	return o.txm.InTransaction(ctx, work)
}

// submitOnCommit registers a post-commit hook that attempts an immediate run
// of e once tx commits, per spec.md §4.1's data-flow description ("on
// commit, a post-commit hook best-effort submits the entry to the executor
// for immediate run"). The flusher's periodic selectBatch is the fallback
// path when this optimistic run is lost (process crash, executor at
// capacity) or never attempted (e has a future NextAttemptTime).
func (o *Outbox) submitOnCommit(tx *Transaction, e *Entry) {
	if e.NextAttemptTime.After(o.clock.Now()) {
		return
	}
	tx.AddPostCommitHook(func() {
		o.executor.Submit(context.Background(), func(ctx context.Context) error {
			o.submitNow(ctx, e)
			return nil
		})
	})
}

// submitNow re-locks e in a fresh transaction and, if the lock is won, runs
// it via the shared runner. Losing the lock (another worker already claimed
// the row, or it was already reaped) is not an error: the flusher will have
// or will eventually pick it up instead.
func (o *Outbox) submitNow(ctx context.Context, e *Entry) {
	var locked *Entry
	err := o.txm.InTransaction(ctx, func(ctx context.Context, tx *Transaction) error {
		ok, err := o.persistor.Lock(ctx, tx.Connection(), e)
		if err != nil || !ok {
			return err
		}
		locked = e
		return nil
	})
	if err != nil {
		o.log.Debug().Str("entry_id", e.ID).Err(err).Msg("outbox: immediate-run lock attempt failed")
		return
	}
	if locked == nil {
		return
	}
	o.run.run(ctx, locked)
}

// Whitelist un-blocklists entryID if it is currently blocklisted and
// unprocessed, returning whether a row changed (spec.md §4.2/§7).
func (o *Outbox) Whitelist(ctx context.Context, entryID string) (bool, error) {
	var changed bool
	err := o.txm.InTransaction(ctx, func(ctx context.Context, tx *Transaction) error {
		ok, err := o.persistor.Whitelist(ctx, tx.Connection(), entryID)
		changed = ok
		return err
	})
	return changed, err
}
