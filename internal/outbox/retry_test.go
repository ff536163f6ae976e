package outbox

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestBackoffPolicyLinear(t *testing.T) {
	p := NewBackoffPolicy(time.Second, nil) // nil defaults to LinearBackoff
	now := time.Unix(0, 0).UTC()

	assert.Equal(t, now.Add(1*time.Second), p.NextAttempt(now, 1))
	assert.Equal(t, now.Add(3*time.Second), p.NextAttempt(now, 3))
}

func TestExponentialBackoffCapsAtMax(t *testing.T) {
	f := ExponentialBackoff(8)
	assert.Equal(t, 1.0, f(0))
	assert.Equal(t, 2.0, f(1))
	assert.Equal(t, 4.0, f(2))
	assert.Equal(t, 8.0, f(3))
	assert.Equal(t, 8.0, f(10)) // capped
}

func TestBackoffPolicyWithExponential(t *testing.T) {
	p := NewBackoffPolicy(time.Second, ExponentialBackoff(4))
	now := time.Unix(0, 0).UTC()
	assert.Equal(t, now.Add(4*time.Second), p.NextAttempt(now, 5))
}
