package outbox

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestEntryState(t *testing.T) {
	cases := []struct {
		name string
		e    Entry
		want State
	}{
		{"pending", Entry{}, StatePending},
		{"done", Entry{Processed: true}, StateDone},
		{"blocklisted", Entry{Blocklisted: true}, StateBlocklisted},
		{"blocklisted wins over processed", Entry{Processed: true, Blocklisted: true}, StateBlocklisted},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			assert.Equal(t, c.want, c.e.State())
		})
	}
}

func TestEntryHasUniqueRequestID(t *testing.T) {
	assert.False(t, (&Entry{}).HasUniqueRequestID())
	assert.True(t, (&Entry{UniqueRequestID: "k"}).HasUniqueRequestID())
}

func TestStateString(t *testing.T) {
	assert.Equal(t, "PENDING", StatePending.String())
	assert.Equal(t, "DONE", StateDone.String())
	assert.Equal(t, "BLOCKLISTED", StateBlocklisted.String())
	assert.Equal(t, "UNKNOWN", State(99).String())
}
