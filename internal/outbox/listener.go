package outbox

import "github.com/rs/zerolog"

// Listener receives best-effort, synchronous lifecycle notifications for an
// entry, per spec.md §4.8. Implementations must not block the caller for
// long and must never panic; callers recover around Listener invocations.
type Listener interface {
	Scheduled(e *Entry)
	Success(e *Entry)
	Failure(e *Entry, cause error)
	Blocklisted(e *Entry, cause error)
}

// NoopListener implements Listener with no-ops (spec.md §6 default).
type NoopListener struct{}

func (NoopListener) Scheduled(*Entry)            {}
func (NoopListener) Success(*Entry)              {}
func (NoopListener) Failure(*Entry, error)       {}
func (NoopListener) Blocklisted(*Entry, error)   {}

// LoggingListener logs each lifecycle event via zerolog, grounded on the
// teacher's internal/outbox/worker.go log call sites
// (w.log.Error().Err(e).Int64("id", j.id).Msg(...)).
type LoggingListener struct {
	Log zerolog.Logger
}

func (l LoggingListener) Scheduled(e *Entry) {
	l.Log.Debug().Str("entry_id", e.ID).Msg("outbox: entry scheduled")
}

func (l LoggingListener) Success(e *Entry) {
	l.Log.Info().Str("entry_id", e.ID).Int("attempts", e.Attempts).Msg("outbox: entry succeeded")
}

func (l LoggingListener) Failure(e *Entry, cause error) {
	l.Log.Warn().Str("entry_id", e.ID).Int("attempts", e.Attempts).Err(cause).Msg("outbox: entry failed")
}

func (l LoggingListener) Blocklisted(e *Entry, cause error) {
	l.Log.Error().Str("entry_id", e.ID).Int("attempts", e.Attempts).Err(cause).Msg("outbox: entry blocklisted")
}

// MultiListener fans one set of notifications out to several Listeners, in
// order, so a deployment can compose e.g. logging and metrics listeners
// without either implementation knowing about the other.
type MultiListener []Listener

func (m MultiListener) Scheduled(e *Entry) {
	for _, l := range m {
		l.Scheduled(e)
	}
}

func (m MultiListener) Success(e *Entry) {
	for _, l := range m {
		l.Success(e)
	}
}

func (m MultiListener) Failure(e *Entry, cause error) {
	for _, l := range m {
		l.Failure(e, cause)
	}
}

func (m MultiListener) Blocklisted(e *Entry, cause error) {
	for _, l := range m {
		l.Blocklisted(e, cause)
	}
}

// safeNotify recovers from a panicking Listener method so it can never
// interrupt the core loop (spec.md §7 "Listener ... failures are isolated").
func safeNotify(log zerolog.Logger, fn func()) {
	defer func() {
		if r := recover(); r != nil {
			log.Error().Interface("panic", r).Msg("outbox: listener panicked")
		}
	}()
	fn()
}
