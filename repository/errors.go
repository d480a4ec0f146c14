package repository

import (
	"errors"
	"fmt"

	"colorgame/domain/entities"

	"github.com/jackc/pgx/v5/pgconn"
)

const (
	pgUniqueViolation      = "23505"
	pgCheckViolation       = "23514"
	pgSerializationFailure = "40001"
	pgDeadlockDetected     = "40P01"
	pgLockNotAvailable     = "55P03"
)

// oneActivePerDurationIndex is the partial unique index guarding the buckets
const oneActivePerDurationIndex = "rounds_one_active_per_duration"

// mapError wraps a driver error, translating lock and constraint failures to
// domain errors. The original error stays in the chain.
func mapError(err error, format string, args ...any) error {
	if err == nil {
		return nil
	}

	msg := fmt.Sprintf(format, args...)

	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case pgLockNotAvailable, pgDeadlockDetected, pgSerializationFailure:
			return fmt.Errorf("%s: %w: %w", msg, entities.ErrConcurrencyConflict, err)
		case pgUniqueViolation:
			if pgErr.ConstraintName == oneActivePerDurationIndex {
				return fmt.Errorf("%s: %w: %w", msg, entities.ErrBucketOccupied, err)
			}
		case pgCheckViolation:
			if pgErr.ConstraintName == "users_wallet_check" {
				return fmt.Errorf("%s: %w: %w", msg, entities.ErrInsufficientBalance, err)
			}
		}
	}

	return fmt.Errorf("%s: %w", msg, err)
}
