package database

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"errors"
	"fmt"
	rand "math/rand/v2"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	"go.uber.org/zap"

	appErrors "github.com/noah-isme/case-assignment-api/pkg/errors"
)

// PostgreSQL error codes inspected by the runner and repositories.
const (
	CodeUniqueViolation      = "23505"
	CodeSerializationFailure = "40001"
	CodeDeadlockDetected     = "40P01"
)

// TxFunc is a transaction body. It may be executed more than once, so it must
// not keep side effects outside exec between attempts.
type TxFunc func(ctx context.Context, exec sqlx.ExtContext) error

type txBeginner interface {
	BeginTxx(ctx context.Context, opts *sql.TxOptions) (*sqlx.Tx, error)
}

// TxRunnerConfig tunes retries of transient failures.
type TxRunnerConfig struct {
	MaxRetries int
	BaseDelay  time.Duration
	MaxDelay   time.Duration
	Isolation  sql.IsolationLevel
}

// TxRunner executes whole transactions and retries them on transient store errors.
type TxRunner struct {
	db     txBeginner
	cfg    TxRunnerConfig
	logger *zap.Logger
	sleep  func(context.Context, time.Duration) error
}

// NewTxRunner constructs a TxRunner.
func NewTxRunner(db txBeginner, cfg TxRunnerConfig, logger *zap.Logger) *TxRunner {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.MaxRetries < 0 {
		cfg.MaxRetries = 0
	}
	if cfg.BaseDelay <= 0 {
		cfg.BaseDelay = 50 * time.Millisecond
	}
	if cfg.MaxDelay <= 0 {
		cfg.MaxDelay = 2 * time.Second
	}
	return &TxRunner{db: db, cfg: cfg, logger: logger, sleep: sleepContext}
}

// WithinTx runs fn in a transaction. Transient failures roll back and rerun the
// whole body; once the retry budget is spent a TRANSIENT_STORE_ERROR is returned.
func (r *TxRunner) WithinTx(ctx context.Context, fn TxFunc) error {
	var (
		delay   time.Duration
		lastErr error
	)
	for attempt := 0; attempt <= r.cfg.MaxRetries; attempt++ {
		if attempt > 0 {
			delay = jitterBackoff(delay, r.cfg.BaseDelay, 2.0, r.cfg.MaxDelay)
			r.logger.Warn("retrying transaction",
				zap.Int("attempt", attempt),
				zap.Duration("delay", delay),
				zap.Error(lastErr),
			)
			if err := r.sleep(ctx, delay); err != nil {
				return err
			}
		}

		err := r.runOnce(ctx, fn)
		if err == nil {
			return nil
		}
		if !IsTransient(err) {
			return err
		}
		lastErr = err
	}

	return appErrors.Wrap(lastErr, appErrors.ErrTransientStore.Code, appErrors.ErrTransientStore.Status, appErrors.ErrTransientStore.Message)
}

func (r *TxRunner) runOnce(ctx context.Context, fn TxFunc) (err error) {
	var opts *sql.TxOptions
	if r.cfg.Isolation != sql.LevelDefault {
		opts = &sql.TxOptions{Isolation: r.cfg.Isolation}
	}

	tx, err := r.db.BeginTxx(ctx, opts)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	if err = fn(ctx, tx); err != nil {
		return err
	}
	if err = tx.Commit(); err != nil {
		return fmt.Errorf("commit transaction: %w", err)
	}
	return nil
}

// IsTransient reports whether err is worth retrying at the transaction boundary.
func IsTransient(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, driver.ErrBadConn) {
		return true
	}
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		code := string(pqErr.Code)
		return code == CodeSerializationFailure || code == CodeDeadlockDetected || strings.HasPrefix(code, "08")
	}
	return false
}

// IsUniqueViolation reports whether err is a PostgreSQL unique constraint failure,
// optionally restricted to the named constraint or index.
func IsUniqueViolation(err error, constraint string) bool {
	var pqErr *pq.Error
	if !errors.As(err, &pqErr) || string(pqErr.Code) != CodeUniqueViolation {
		return false
	}
	return constraint == "" || pqErr.Constraint == constraint
}

// jitterBackoff grows the delay from prev by mult with full jitter, capped at capDur.
func jitterBackoff(prev, base time.Duration, mult float64, capDur time.Duration) time.Duration {
	if prev <= 0 {
		return min(base, capDur)
	}
	span := time.Duration(float64(prev)*mult) - base
	if span <= 0 {
		span = base
	}
	next := base + time.Duration(rand.Int64N(int64(span))) //nolint:gosec // non-crypto backoff jitter
	return min(next, capDur)
}

func sleepContext(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
