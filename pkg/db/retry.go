package db

import (
	"context"
	"errors"
	"time"

	"github.com/sethvargo/go-retry"
	"gorm.io/gorm"
)

// ErrTxConflict signals that a conditional write matched no rows because a
// concurrent writer changed the row after it was read.
var ErrTxConflict = errors.New("db: optimistic transaction conflict")

// ErrRetriesExhausted wraps the last conflict once the attempt budget is spent.
var ErrRetriesExhausted = errors.New("db: transaction retries exhausted")

const (
	defaultTxAttempts  = 5
	defaultTxBaseDelay = 20 * time.Millisecond
	maxTxDelay         = 500 * time.Millisecond
)

// RetryOptions bounds WithRetryTx.
type RetryOptions struct {
	MaxAttempts int
	BaseDelay   time.Duration
	// OnRetry is invoked before each re-attempt with the 1-based attempt that failed.
	OnRetry func(attempt int, err error)
}

// WithRetryTx runs fn in a fresh transaction per attempt and retries it when
// the attempt fails with a conflict. Other errors are returned immediately.
// When the budget is spent the returned error wraps both ErrRetriesExhausted
// and the last conflict.
func (c *Client) WithRetryTx(ctx context.Context, opts RetryOptions, fn func(tx *gorm.DB) error) error {
	attempts := opts.MaxAttempts
	if attempts <= 0 {
		attempts = defaultTxAttempts
	}
	base := opts.BaseDelay
	if base <= 0 {
		base = defaultTxBaseDelay
	}

	backoff := retry.NewExponential(base)
	backoff = retry.WithCappedDuration(maxTxDelay, backoff)
	backoff = retry.WithJitterPercent(20, backoff)
	backoff = retry.WithMaxRetries(uint64(attempts-1), backoff)

	attempt := 0
	var lastConflict error
	err := retry.Do(ctx, backoff, func(ctx context.Context) error {
		attempt++
		err := c.WithTx(ctx, fn)
		if err == nil {
			return nil
		}
		if IsRetryableConflict(err) {
			lastConflict = err
			if attempt < attempts && opts.OnRetry != nil {
				opts.OnRetry(attempt, err)
			}
			return retry.RetryableError(err)
		}
		return err
	})
	if err != nil && lastConflict != nil && IsRetryableConflict(err) {
		return errors.Join(ErrRetriesExhausted, err)
	}
	return err
}

// IsRetryableConflict reports whether err is an optimistic conflict or a
// Postgres serialization/deadlock failure.
func IsRetryableConflict(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, ErrTxConflict) {
		return true
	}
	switch sqlState(err) {
	case sqlStateSerializationFailure, sqlStateDeadlockDetected:
		return true
	}
	return false
}
