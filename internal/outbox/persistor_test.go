package outbox

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestPersistor(t *testing.T) (*Persistor, Querier) {
	db, d := newTestDB(t)
	p := NewPersistor(PersistorConfig{Dialect: d, TableName: "TXNO_OUTBOX", WriteLockTimeoutSeconds: 1})
	return p, db
}

func TestPersistorSaveAndLoadViaSelectBatch(t *testing.T) {
	p, db := newTestPersistor(t)
	ctx := context.Background()

	e := &Entry{ID: "e1", Invocation: []byte(`{}`), NextAttemptTime: time.Now().Add(-time.Minute), Version: 1}
	require.NoError(t, p.Save(ctx, db, e))

	rows, err := p.SelectBatch(ctx, db, 10, time.Now())
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, "e1", rows[0].ID)
	assert.False(t, rows[0].HasUniqueRequestID())
}

func TestPersistorSaveDuplicateUniqueRequestID(t *testing.T) {
	p, db := newTestPersistor(t)
	ctx := context.Background()

	e1 := &Entry{ID: "e1", UniqueRequestID: "k1", Invocation: []byte(`{}`), NextAttemptTime: time.Now(), Version: 1}
	require.NoError(t, p.Save(ctx, db, e1))

	e2 := &Entry{ID: "e2", UniqueRequestID: "k1", Invocation: []byte(`{}`), NextAttemptTime: time.Now(), Version: 1}
	err := p.Save(ctx, db, e2)
	require.Error(t, err)
	var already *AlreadyScheduledError
	require.ErrorAs(t, err, &already)
}

func TestPersistorUpdateOptimisticLock(t *testing.T) {
	p, db := newTestPersistor(t)
	ctx := context.Background()

	e := &Entry{ID: "e1", Invocation: []byte(`{}`), NextAttemptTime: time.Now(), Version: 1}
	require.NoError(t, p.Save(ctx, db, e))

	stale := &Entry{ID: "e1", Version: 1, NextAttemptTime: time.Now()}
	require.NoError(t, p.Update(ctx, db, e)) // bumps e.Version to 2

	err := p.Update(ctx, db, stale) // stale.Version still 1
	require.Error(t, err)
	var lockErr *OptimisticLockError
	require.ErrorAs(t, err, &lockErr)
}

func TestPersistorWhitelistOnlyAffectsBlocklisted(t *testing.T) {
	p, db := newTestPersistor(t)
	ctx := context.Background()

	e := &Entry{ID: "e1", Invocation: []byte(`{}`), NextAttemptTime: time.Now(), Version: 1}
	require.NoError(t, p.Save(ctx, db, e))

	changed, err := p.Whitelist(ctx, db, "e1")
	require.NoError(t, err)
	assert.False(t, changed, "non-blocklisted row must not change")

	e.Blocklisted = true
	e.Attempts = 5
	require.NoError(t, p.Update(ctx, db, e))

	changed, err = p.Whitelist(ctx, db, "e1")
	require.NoError(t, err)
	assert.True(t, changed)
}

func TestPersistorDeleteProcessedAndExpired(t *testing.T) {
	p, db := newTestPersistor(t)
	ctx := context.Background()

	past := time.Now().Add(-time.Hour)
	e := &Entry{ID: "e1", UniqueRequestID: "k1", Invocation: []byte(`{}`), NextAttemptTime: past, Version: 1}
	require.NoError(t, p.Save(ctx, db, e))
	e.Processed = true
	e.NextAttemptTime = past
	require.NoError(t, p.Update(ctx, db, e))

	n, err := p.DeleteProcessedAndExpired(ctx, db, 100, time.Now())
	require.NoError(t, err)
	assert.EqualValues(t, 1, n)

	rows, err := p.SelectBatch(ctx, db, 10, time.Now())
	require.NoError(t, err)
	assert.Len(t, rows, 0)
}

func TestPersistorLockWinsAndMissesStaleVersion(t *testing.T) {
	p, db := newTestPersistor(t)
	ctx := context.Background()

	e := &Entry{ID: "e1", Invocation: []byte(`{}`), NextAttemptTime: time.Now(), Version: 1}
	require.NoError(t, p.Save(ctx, db, e))

	ok, err := p.Lock(ctx, db, e)
	require.NoError(t, err)
	assert.True(t, ok)

	// Wrong version never matches a row, regardless of locking.
	stale := &Entry{ID: "e1", Version: 99}
	ok, err = p.Lock(ctx, db, stale)
	require.NoError(t, err)
	assert.False(t, ok)
}
