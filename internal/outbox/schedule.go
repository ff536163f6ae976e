package outbox

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// ScheduleOption configures one Schedule call, per spec.md §4.4's builder
// steps uniqueRequestId(s)/delayFor(duration).
type ScheduleOption func(*scheduleOptions)

type scheduleOptions struct {
	uniqueRequestID string
	delay           time.Duration
}

// UniqueRequestID attaches a deduplication key: a second Schedule call with
// the same key fails with AlreadyScheduledError until the first entry is
// reaped by GC (spec.md §3 invariant 3, §7).
func UniqueRequestID(id string) ScheduleOption {
	return func(o *scheduleOptions) { o.uniqueRequestID = id }
}

// DelayFor sets the entry's initial NextAttemptTime to now+d instead of now
// (spec.md §4.4).
func DelayFor(d time.Duration) ScheduleOption {
	return func(o *scheduleOptions) { o.delay = d }
}

// Schedule captures (targetName, methodName, args) as an Invocation and
// persists it durably inside the business transaction carried by ctx, per
// spec.md §4.1/§4.4. It must be called from within a transaction opened by
// the same TransactionManager that owns o; calling it outside one returns
// NoTransactionActiveError. Opening a transaction nested inside another
// already fails with NoTransactionActiveError, so Schedule never runs in one.
func (o *Outbox) Schedule(ctx context.Context, targetName, methodName string, args []any, opts ...ScheduleOption) error {
	return o.ScheduleTyped(ctx, targetName, methodName, args, nil, opts...)
}

// ScheduleTyped is Schedule plus an explicit parameter-type-name list,
// letting generated call sites round-trip concrete argument types without
// relying on Go's runtime type switch alone (spec.md §4.1 "ParameterTypeNames").
func (o *Outbox) ScheduleTyped(ctx context.Context, targetName, methodName string, args []any, paramTypeNames []string, opts ...ScheduleOption) error {
	so := scheduleOptions{}
	for _, opt := range opts {
		opt(&so)
	}

	tx, err := o.requireTransaction(ctx)
	if err != nil {
		return err
	}

	inv := Invocation{
		TargetName:         targetName,
		MethodName:         methodName,
		ParameterTypeNames: paramTypeNames,
		Args:               args,
	}
	data, err := o.serializer.Serialize(inv)
	if err != nil {
		return err
	}

	now := o.clock.Now()
	nextAttempt := now
	if so.delay > 0 {
		nextAttempt = now.Add(so.delay)
	}

	e := &Entry{
		ID:              uuid.NewString(),
		UniqueRequestID: so.uniqueRequestID,
		Invocation:      data,
		NextAttemptTime: nextAttempt,
		Attempts:        0,
		Blocklisted:     false,
		Processed:       false,
		Version:         1,
	}

	if err := o.persistor.Save(ctx, tx.Connection(), e); err != nil {
		return err
	}

	// Deferred to a post-commit hook, same as submitOnCommit below: the
	// business transaction may still roll back after Schedule returns, and a
	// Scheduled notification must never precede the row actually being
	// durable (spec.md §8 "Commit ordering").
	tx.AddPostCommitHook(func() { safeNotify(o.log, func() { o.listener.Scheduled(e) }) })
	o.submitOnCommit(tx, e)
	return nil
}

// requireTransaction fetches the active Transaction from ctx. Schedule only
// ever runs inside a transaction opened by o.txm's InTransaction/
// InTransactionReturns, so this is a thin wrapper over TransactionManager.
func (o *Outbox) requireTransaction(ctx context.Context) (*Transaction, error) {
	return o.txm.RequireTransaction(ctx)
}
