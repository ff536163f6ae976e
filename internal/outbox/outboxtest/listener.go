package outboxtest

import (
	"sync"
	"time"

	"github.com/txoutbox/txoutbox/internal/outbox"
)

// Event is one captured lifecycle notification.
type Event struct {
	Kind  string // "scheduled", "success", "failure", "blocklisted"
	Entry *outbox.Entry
	Cause error
}

// RecordingListener captures every notification it receives and lets tests
// wait for a kind/count to appear instead of sleeping a fixed duration,
// grounded on the teacher's e2e tests' polling-with-timeout helpers
// (dev_env_e2e_tests) adapted into a channel-based notifier.
type RecordingListener struct {
	mu     sync.Mutex
	events []Event
	notify chan struct{}
}

var _ outbox.Listener = (*RecordingListener)(nil)

// NewRecordingListener returns an empty RecordingListener.
func NewRecordingListener() *RecordingListener {
	return &RecordingListener{notify: make(chan struct{}, 1)}
}

func (l *RecordingListener) record(e Event) {
	l.mu.Lock()
	l.events = append(l.events, e)
	l.mu.Unlock()
	select {
	case l.notify <- struct{}{}:
	default:
	}
}

func (l *RecordingListener) Scheduled(e *outbox.Entry) { l.record(Event{Kind: "scheduled", Entry: e}) }
func (l *RecordingListener) Success(e *outbox.Entry)    { l.record(Event{Kind: "success", Entry: e}) }
func (l *RecordingListener) Failure(e *outbox.Entry, cause error) {
	l.record(Event{Kind: "failure", Entry: e, Cause: cause})
}
func (l *RecordingListener) Blocklisted(e *outbox.Entry, cause error) {
	l.record(Event{Kind: "blocklisted", Entry: e, Cause: cause})
}

// Events returns a snapshot of everything recorded so far.
func (l *RecordingListener) Events() []Event {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := make([]Event, len(l.events))
	copy(out, l.events)
	return out
}

// CountKind returns how many recorded events match kind.
func (l *RecordingListener) CountKind(kind string) int {
	n := 0
	for _, e := range l.Events() {
		if e.Kind == kind {
			n++
		}
	}
	return n
}

// WaitForKind blocks until at least n events of kind have been recorded or
// timeout elapses, returning false on timeout.
func (l *RecordingListener) WaitForKind(kind string, n int, timeout time.Duration) bool {
	deadline := time.After(timeout)
	for {
		if l.CountKind(kind) >= n {
			return true
		}
		select {
		case <-l.notify:
		case <-time.After(20 * time.Millisecond):
		case <-deadline:
			return l.CountKind(kind) >= n
		}
	}
}
