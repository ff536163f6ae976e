package outbox

import (
	"context"
	"time"

	"github.com/rs/zerolog"
)

// runner holds the dependencies shared by the immediate-run path (submitter)
// and the flusher, per spec.md §4.5/§4.6: resolve a handler, run the
// invocation, and apply the outcome to the entry within a fresh transaction.
type runner struct {
	persistor              *Persistor
	txm                    TransactionManager
	serializer             Serializer
	instantiator           Instantiator
	retry                  RetryPolicy
	clock                  Clock
	listener               Listener
	log                    zerolog.Logger
	blocklistAfterAttempts int
	retentionThreshold     time.Duration
}

// run resolves and executes e's invocation, then applies the outcome. It
// never returns an error to its caller for invocation or optimistic-lock
// failures — those are terminal per entry and only logged/notified, per
// spec.md §7.
func (r *runner) run(ctx context.Context, e *Entry) {
	inv, err := r.serializer.Deserialize(e.Invocation)
	if err != nil {
		// A poison-pill invocation can never succeed; treat as a failure so it
		// backs off and is eventually blocklisted rather than hot-looping.
		r.applyOutcome(ctx, e, err)
		return
	}

	handler, err := r.instantiator.Resolve(inv.TargetName)
	if err != nil {
		r.applyOutcome(ctx, e, err)
		return
	}

	future := handler(ctx, inv.MethodName, inv.Args)
	runErr := future.Wait(ctx)
	r.applyOutcome(ctx, e, runErr)
}

// applyOutcome persists the result of one run within a new transaction, per
// spec.md §4.5. Optimistic-lock failures on the terminal write are logged
// and swallowed: another worker already raced ahead, or already reran it.
func (r *runner) applyOutcome(ctx context.Context, e *Entry, runErr error) {
	err := r.txm.InTransaction(ctx, func(ctx context.Context, tx *Transaction) error {
		if runErr == nil {
			return r.applySuccess(ctx, tx, e)
		}
		return r.applyFailure(ctx, tx, e, runErr)
	})
	if err == nil {
		return
	}
	if _, ok := err.(*OptimisticLockError); ok {
		r.log.Debug().Str("entry_id", e.ID).Msg("outbox: optimistic lock lost on outcome write, abandoning run")
		return
	}
	r.log.Error().Str("entry_id", e.ID).Err(err).Msg("outbox: failed to persist invocation outcome")
}

func (r *runner) applySuccess(ctx context.Context, tx *Transaction, e *Entry) error {
	if !e.HasUniqueRequestID() {
		if err := r.persistor.Delete(ctx, tx.Connection(), e); err != nil {
			return err
		}
	} else {
		now := r.clock.Now()
		e.Processed = true
		e.Attempts++
		e.NextAttemptTime = now.Add(r.retentionThreshold)
		if err := r.persistor.Update(ctx, tx.Connection(), e); err != nil {
			return err
		}
	}
	// Notify only once this transaction has actually committed (spec.md §8
	// "Commit ordering"): a Success reported before commit could describe a
	// run that a later rollback undoes.
	tx.AddPostCommitHook(func() { safeNotify(r.log, func() { r.listener.Success(e) }) })
	return nil
}

func (r *runner) applyFailure(ctx context.Context, tx *Transaction, e *Entry, cause error) error {
	now := r.clock.Now()
	e.Attempts++
	e.NextAttemptTime = r.retry.NextAttempt(now, e.Attempts)

	blocklisting := r.blocklistAfterAttempts > 0 && e.Attempts >= r.blocklistAfterAttempts
	if blocklisting {
		e.Blocklisted = true
	}

	if err := r.persistor.Update(ctx, tx.Connection(), e); err != nil {
		return err
	}

	// Deferred to a post-commit hook for the same reason as applySuccess.
	if blocklisting {
		tx.AddPostCommitHook(func() { safeNotify(r.log, func() { r.listener.Blocklisted(e, cause) }) })
	} else {
		tx.AddPostCommitHook(func() { safeNotify(r.log, func() { r.listener.Failure(e, cause) }) })
	}
	return nil
}
