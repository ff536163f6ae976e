// Package metrics implements an outbox.Listener backed by Prometheus
// counters, grounded on autobrr-qui's internal/metrics/manager.go and
// internal/database/metrics.go collector-registration idiom.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"

	"github.com/txoutbox/txoutbox/internal/outbox"
)

// Listener records entry lifecycle events as Prometheus counters. It
// satisfies outbox.Listener and can be composed with other listeners (e.g.
// logging) through outbox.MultiListener; this package only exposes the
// metrics half.
type Listener struct {
	scheduled   prometheus.Counter
	success     prometheus.Counter
	failure     prometheus.Counter
	blocklisted prometheus.Counter
	attempts    prometheus.Histogram
}

var _ outbox.Listener = (*Listener)(nil)

// NewListener builds a Listener and registers its collectors with reg. Pass
// prometheus.DefaultRegisterer to expose them on the default /metrics
// handler.
func NewListener(reg prometheus.Registerer) *Listener {
	l := &Listener{
		scheduled: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "outbox",
			Name:      "entries_scheduled_total",
			Help:      "Entries persisted via Schedule.",
		}),
		success: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "outbox",
			Name:      "entries_succeeded_total",
			Help:      "Entries that ran to completion.",
		}),
		failure: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "outbox",
			Name:      "entries_failed_total",
			Help:      "Entries that failed a run and were rescheduled.",
		}),
		blocklisted: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "outbox",
			Name:      "entries_blocklisted_total",
			Help:      "Entries that exhausted their retry budget.",
		}),
		attempts: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "outbox",
			Name:      "entry_attempts",
			Help:      "Attempt count observed at each terminal or blocklisting outcome.",
			Buckets:   prometheus.LinearBuckets(1, 1, 10),
		}),
	}
	reg.MustRegister(l.scheduled, l.success, l.failure, l.blocklisted, l.attempts)
	return l
}

func (l *Listener) Scheduled(*outbox.Entry) { l.scheduled.Inc() }

func (l *Listener) Success(e *outbox.Entry) {
	l.success.Inc()
	l.attempts.Observe(float64(e.Attempts))
}

func (l *Listener) Failure(e *outbox.Entry, _ error) {
	l.failure.Inc()
}

func (l *Listener) Blocklisted(e *outbox.Entry, _ error) {
	l.blocklisted.Inc()
	l.attempts.Observe(float64(e.Attempts))
}
