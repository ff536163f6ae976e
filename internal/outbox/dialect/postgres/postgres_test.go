package postgres

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDialectIdentity(t *testing.T) {
	d := New()
	assert.Equal(t, "postgres", d.Name())
	assert.True(t, d.SupportsSkipLock())
	assert.Equal(t, "$1", d.Placeholder(1))
	assert.Equal(t, "$2", d.Placeholder(2))
}

func TestSelectBatchSQLUsesDollarPlaceholdersAndSkipLocked(t *testing.T) {
	d := New()
	sql := d.SelectBatchSQL("TXNO_OUTBOX")
	assert.Contains(t, sql, "$1")
	assert.Contains(t, sql, "$2")
	assert.Contains(t, sql, "FOR UPDATE SKIP LOCKED")
}

func TestDeleteProcessedAndExpiredSQLUsesSubquery(t *testing.T) {
	d := New()
	sql := d.DeleteProcessedAndExpiredSQL("TXNO_OUTBOX")
	assert.Contains(t, sql, "DELETE FROM TXNO_OUTBOX")
	assert.Contains(t, sql, "SELECT id FROM TXNO_OUTBOX")
}

func TestIsUniqueViolationFalseForUnrelatedError(t *testing.T) {
	d := New()
	assert.False(t, d.IsUniqueViolation(assertErr{}))
}

type assertErr struct{}

func (assertErr) Error() string { return "boom" }

func TestOpenRejectsEmptyDSN(t *testing.T) {
	_, err := Open("")
	assert := assert.New(t)
	assert.Error(err)
}
