package mysql

import (
	"testing"

	"github.com/go-sql-driver/mysql"
	"github.com/stretchr/testify/assert"
)

func TestNew8SupportsSkipLock(t *testing.T) {
	d := New8()
	assert.Equal(t, "mysql", d.Name())
	assert.True(t, d.SupportsSkipLock())
	assert.Equal(t, "?", d.Placeholder(1))
}

func TestNew5DoesNotSupportSkipLock(t *testing.T) {
	d := New5()
	assert.False(t, d.SupportsSkipLock())
}

func TestSelectBatchSQLOmitsSkipLockedOnMySQL5(t *testing.T) {
	d := New5()
	sql := d.SelectBatchSQL("TXNO_OUTBOX")
	assert.NotContains(t, sql, "SKIP LOCKED")
	assert.Contains(t, sql, "FOR UPDATE")
}

func TestSelectBatchSQLIncludesSkipLockedOnMySQL8(t *testing.T) {
	d := New8()
	sql := d.SelectBatchSQL("TXNO_OUTBOX")
	assert.Contains(t, sql, "FOR UPDATE SKIP LOCKED")
}

func TestIsUniqueViolationMatchesDupEntryErrno(t *testing.T) {
	d := New8()
	assert.True(t, d.IsUniqueViolation(&mysql.MySQLError{Number: 1062}))
	assert.False(t, d.IsUniqueViolation(&mysql.MySQLError{Number: 1045}))
	assert.False(t, d.IsUniqueViolation(assertErr{}))
}

type assertErr struct{}

func (assertErr) Error() string { return "boom" }

func TestOpenRejectsEmptyDSN(t *testing.T) {
	_, err := Open("")
	assert.Error(t, err)
}
