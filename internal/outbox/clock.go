package outbox

import "time"

// Clock is injected everywhere the engine compares against "now", per
// spec.md §4.7/§9 ("all time comparisons go through an injected clock").
type Clock interface {
	Now() time.Time
}

// SystemClock is the default Clock (spec.md §6 "clockProvider (system UTC)").
type SystemClock struct{}

func (SystemClock) Now() time.Time { return time.Now().UTC() }
