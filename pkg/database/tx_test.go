package database

import (
	"context"
	"database/sql/driver"
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	appErrors "github.com/noah-isme/case-assignment-api/pkg/errors"
)

func newRunner(t *testing.T, retries int) (*TxRunner, sqlmock.Sqlmock, func()) {
	t.Helper()
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err)
	runner := NewTxRunner(sqlx.NewDb(db, "sqlmock"), TxRunnerConfig{MaxRetries: retries}, nil)
	runner.sleep = func(context.Context, time.Duration) error { return nil }
	return runner, mock, func() { db.Close() }
}

func TestWithinTxCommits(t *testing.T) {
	runner, mock, cleanup := newRunner(t, 2)
	defer cleanup()

	mock.ExpectBegin()
	mock.ExpectExec("UPDATE case_assignments").WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	err := runner.WithinTx(context.Background(), func(ctx context.Context, exec sqlx.ExtContext) error {
		_, err := exec.ExecContext(ctx, "UPDATE case_assignments SET active = FALSE")
		return err
	})
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestWithinTxRetriesSerializationFailure(t *testing.T) {
	runner, mock, cleanup := newRunner(t, 2)
	defer cleanup()

	mock.ExpectBegin()
	mock.ExpectExec("INSERT INTO case_assignments").WillReturnError(&pq.Error{Code: CodeSerializationFailure})
	mock.ExpectRollback()
	mock.ExpectBegin()
	mock.ExpectExec("INSERT INTO case_assignments").WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	attempts := 0
	err := runner.WithinTx(context.Background(), func(ctx context.Context, exec sqlx.ExtContext) error {
		attempts++
		_, err := exec.ExecContext(ctx, "INSERT INTO case_assignments (id) VALUES ('x')")
		return err
	})
	require.NoError(t, err)
	assert.Equal(t, 2, attempts)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestWithinTxDoesNotRetryDomainErrors(t *testing.T) {
	runner, mock, cleanup := newRunner(t, 3)
	defer cleanup()

	mock.ExpectBegin()
	mock.ExpectRollback()

	attempts := 0
	err := runner.WithinTx(context.Background(), func(ctx context.Context, exec sqlx.ExtContext) error {
		attempts++
		return appErrors.Clone(appErrors.ErrOverlappingAssignment, "")
	})
	require.Error(t, err)
	assert.True(t, appErrors.HasCode(err, appErrors.ErrOverlappingAssignment))
	assert.Equal(t, 1, attempts)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestWithinTxExhaustsBudget(t *testing.T) {
	runner, mock, cleanup := newRunner(t, 1)
	defer cleanup()

	for i := 0; i < 2; i++ {
		mock.ExpectBegin()
		mock.ExpectRollback()
	}

	err := runner.WithinTx(context.Background(), func(ctx context.Context, exec sqlx.ExtContext) error {
		return &pq.Error{Code: CodeDeadlockDetected}
	})
	require.Error(t, err)
	assert.True(t, appErrors.HasCode(err, appErrors.ErrTransientStore))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestIsTransient(t *testing.T) {
	assert.True(t, IsTransient(driver.ErrBadConn))
	assert.True(t, IsTransient(&pq.Error{Code: "08006"}))
	assert.False(t, IsTransient(&pq.Error{Code: CodeUniqueViolation}))
	assert.False(t, IsTransient(errors.New("boom")))
	assert.False(t, IsTransient(nil))
}

func TestJitterBackoffBounds(t *testing.T) {
	base, capDur := 10*time.Millisecond, 80*time.Millisecond
	assert.Equal(t, base, jitterBackoff(0, base, 2, capDur))

	prev := base
	for i := 0; i < 20; i++ {
		next := jitterBackoff(prev, base, 2, capDur)
		assert.GreaterOrEqual(t, next, base)
		assert.LessOrEqual(t, next, capDur)
		prev = next
	}
}
