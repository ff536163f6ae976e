package outbox

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
)

// FlusherConfig configures the periodic flusher, per spec.md §4.6/§6.
type FlusherConfig struct {
	// AttemptFrequency is the interval between selectBatch polls.
	AttemptFrequency time.Duration
	// GCInterval is the (typically much slower) interval between
	// deleteProcessedAndExpired sweeps.
	GCInterval time.Duration
	// BatchSize bounds rows fetched per selectBatch call.
	BatchSize int
	// RetentionThreshold records the dedup TTL; neither tick nor gc reads it.
	// GC deletes a processed row once its NextAttemptTime has passed, and that
	// time is set at success from the Outbox's own RetentionThreshold.
	RetentionThreshold time.Duration
}

// Flusher drives due-entry selection and GC off one cron.Cron scheduler,
// grounded on SimonWaldherr-tinySQL's internal/storage/scheduler.go use of
// robfig/cron/v3 in place of the teacher's bare time.Ticker
// (internal/outbox/worker.go), per spec.md §4.6.
type Flusher struct {
	outbox *Outbox
	cfg    FlusherConfig

	cron *cron.Cron

	mu      sync.Mutex
	running bool
}

// NewFlusher builds a Flusher for o. When zero, cfg.BatchSize and
// cfg.RetentionThreshold default from o's own configuration, and
// cfg.AttemptFrequency and cfg.GCInterval default to 2s and 5m.
func NewFlusher(o *Outbox, cfg FlusherConfig) *Flusher {
	if cfg.AttemptFrequency <= 0 {
		cfg.AttemptFrequency = 2 * time.Second
	}
	if cfg.GCInterval <= 0 {
		cfg.GCInterval = 5 * time.Minute
	}
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = o.flushBatchSize
	}
	if cfg.RetentionThreshold <= 0 {
		cfg.RetentionThreshold = o.run.retentionThreshold
	}
	return &Flusher{outbox: o, cfg: cfg}
}

// Start begins the flusher's cron schedule. It returns an error only if the
// cron expressions fail to parse, which cannot happen with the fixed
// "@every" specs this package builds internally.
func (f *Flusher) Start(ctx context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.running {
		return nil
	}

	f.cron = cron.New()
	if _, err := f.cron.AddFunc(fmt.Sprintf("@every %s", f.cfg.AttemptFrequency), func() {
		f.tick(ctx)
	}); err != nil {
		return fmt.Errorf("outbox: schedule flusher tick: %w", err)
	}
	if _, err := f.cron.AddFunc(fmt.Sprintf("@every %s", f.cfg.GCInterval), func() {
		f.gc(ctx)
	}); err != nil {
		return fmt.Errorf("outbox: schedule flusher gc: %w", err)
	}
	f.cron.Start()
	f.running = true
	return nil
}

// Stop halts the cron schedule and waits for any in-flight tick/gc call to
// return.
func (f *Flusher) Stop(ctx context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if !f.running {
		return nil
	}
	stopCtx := f.cron.Stop()
	select {
	case <-stopCtx.Done():
	case <-ctx.Done():
		return ctx.Err()
	}
	f.running = false
	return nil
}

// tick selects one batch of due entries and submits each to the executor,
// per spec.md §4.6/§8 ("selectBatch never returns more than K rows").
func (f *Flusher) tick(ctx context.Context) {
	o := f.outbox
	var batch []*Entry
	err := o.txm.InTransaction(ctx, func(ctx context.Context, tx *Transaction) error {
		now := o.clock.Now()
		rows, err := o.persistor.SelectBatch(ctx, tx.Connection(), f.cfg.BatchSize, now)
		if err != nil {
			return err
		}
		// SelectBatchSQL already row-locks each returned entry for the life of
		// this transaction (FOR UPDATE [SKIP LOCKED]); the lock itself only
		// needs to survive long enough to keep competing flushers from
		// selecting the same row twice, and is released on commit below. The
		// actual outcome write later guards itself with optimistic versioning.
		batch = rows
		return nil
	})
	if err != nil {
		o.log.Error().Err(err).Msg("outbox: flusher batch selection failed")
		return
	}
	for _, e := range batch {
		e := e
		o.executor.Submit(ctx, func(ctx context.Context) error {
			o.run.run(ctx, e)
			return nil
		})
	}
}

// gc bulk-deletes processed, non-blocklisted rows whose retention window has
// elapsed, per spec.md §4.2/§8 ("repeated deleteProcessedAndExpired never
// deletes a non-processed row").
func (f *Flusher) gc(ctx context.Context) {
	o := f.outbox
	err := o.txm.InTransaction(ctx, func(ctx context.Context, tx *Transaction) error {
		now := o.clock.Now()
		n, err := o.persistor.DeleteProcessedAndExpired(ctx, tx.Connection(), f.cfg.BatchSize, now)
		if err != nil {
			return err
		}
		if n > 0 {
			o.log.Debug().Int64("deleted", n).Msg("outbox: gc reaped processed entries")
		}
		return nil
	})
	if err != nil {
		o.log.Error().Err(err).Msg("outbox: flusher gc failed")
	}
}
