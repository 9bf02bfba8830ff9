package storage

import (
	"context"
	"errors"
	"math/rand/v2"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
)

// IsRetriable reports whether err is a transient conflict worth retrying.
func IsRetriable(err error) bool {
	if errors.Is(err, ErrVersionConflict) {
		return true
	}
	var pgErr *pgconn.PgError
	if !errors.As(err, &pgErr) {
		return false
	}
	switch pgErr.Code {
	case "40001": // serialization_failure
		return true
	case "40P01": // deadlock_detected
		return true
	case "23505": // unique_violation
		return true
	default:
		return false
	}
}

// WithRetry executes fn, retrying up to maxRetries times on transient conflicts.
// Retries use jittered exponential backoff starting at baseDelay. onRetry,
// when non-nil, is called before each retry with the attempt number.
func WithRetry(ctx context.Context, maxRetries int, baseDelay time.Duration, onRetry func(attempt int, err error), fn func() error) error {
	var err error
	for attempt := range maxRetries + 1 {
		err = fn()
		if err == nil || !IsRetriable(err) {
			return err
		}
		if attempt == maxRetries {
			break
		}
		if onRetry != nil {
			onRetry(attempt+1, err)
		}
		jitter := time.Duration(0)
		if baseDelay > 0 {
			jitter = time.Duration(rand.Int64N(int64(baseDelay))) //nolint:gosec // jitter doesn't need crypto-strength randomness
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(baseDelay + jitter):
		}
		baseDelay *= 2
	}
	return err
}

// asConflict maps a unique violation to ErrVersionConflict, keeping the
// driver error in the chain.
func asConflict(err error) error {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == "23505" {
		return errors.Join(ErrVersionConflict, err)
	}
	return err
}
