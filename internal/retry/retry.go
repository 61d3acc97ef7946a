// Package retry implements the bounded, backed-off retry policy required by
// spec.md §5 ("Cancellation/timeout") and §7 (category 3, contention
// errors): lock-not-available, serialization failure, and deadlock are
// retried up to a configured budget; anything else is returned immediately.
package retry

import (
	"context"
	"errors"
	"time"

	"github.com/cenkalti/backoff/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/glenn-edgar/kbcoord/internal/apperror"
)

// Postgres SQLSTATE codes classified as transient contention per spec.md §5
// and §7.
const (
	sqlStateSerializationFailure = "40001"
	sqlStateDeadlockDetected     = "40P01"
	sqlStateLockNotAvailable     = "55P03"
)

// Policy bounds a retry loop's attempt count and backoff shape.
type Policy struct {
	MaxAttempts     int
	InitialInterval time.Duration
	MaxInterval     time.Duration // capped around 8s per spec.md §4.5
}

// DefaultPolicy matches the "exponential backoff, cap ~8s" language of
// spec.md §4.5, applied uniformly to every retried operation.
func DefaultPolicy() Policy {
	return Policy{
		MaxAttempts:     5,
		InitialInterval: 25 * time.Millisecond,
		MaxInterval:     8 * time.Second,
	}
}

// IsContention reports whether err represents a transient lock/serialization
// conflict that the caller's operation should retry, per spec.md §7.3.
func IsContention(err error) bool {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case sqlStateSerializationFailure, sqlStateDeadlockDetected, sqlStateLockNotAvailable:
			return true
		}
	}
	return false
}

// IsUniqueViolation reports a unique-constraint failure (SQLSTATE 23505),
// used to detect the transaction_tag collision of spec.md §3.6/S5.
func IsUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}

// Do runs fn under Policy p, retrying only on contention errors (as judged
// by classify, defaulting to IsContention) until it succeeds, a
// non-contention error is returned, or the attempt budget is exhausted —
// in which case the last error is wrapped as apperror.NewRetryExhausted.
func Do(ctx context.Context, operation string, p Policy, fn func() error) error {
	return DoClassified(ctx, operation, p, IsContention, fn)
}

// DoClassified is Do with an explicit contention classifier, for callers
// that need to additionally retry on a driver-specific condition.
func DoClassified(ctx context.Context, operation string, p Policy, classify func(error) bool, fn func() error) error {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = p.InitialInterval
	b.MaxInterval = p.MaxInterval

	var lastErr error
	op := func() (struct{}, error) {
		err := fn()
		if err == nil {
			return struct{}{}, nil
		}
		lastErr = err
		if !classify(err) {
			return struct{}{}, backoff.Permanent(err)
		}
		return struct{}{}, err
	}

	_, err := backoff.Retry(ctx, op,
		backoff.WithBackOff(b),
		backoff.WithMaxTries(uint(p.MaxAttempts)),
	)
	if err == nil {
		return nil
	}
	var permanent *backoff.PermanentError
	if errors.As(err, &permanent) {
		return permanent.Unwrap()
	}
	return apperror.NewRetryExhausted(operation, lastErr)
}
