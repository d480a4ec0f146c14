package repository

import (
	"errors"
	"testing"

	"colorgame/domain/entities"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"
)

func TestMapError(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		err     error
		wantErr error
	}{
		{name: "lock timeout", err: &pgconn.PgError{Code: "55P03"}, wantErr: entities.ErrConcurrencyConflict},
		{name: "deadlock", err: &pgconn.PgError{Code: "40P01"}, wantErr: entities.ErrConcurrencyConflict},
		{name: "serialization failure", err: &pgconn.PgError{Code: "40001"}, wantErr: entities.ErrConcurrencyConflict},
		{
			name:    "second active round in a bucket",
			err:     &pgconn.PgError{Code: "23505", ConstraintName: "rounds_one_active_per_duration"},
			wantErr: entities.ErrBucketOccupied,
		},
		{
			name:    "negative wallet",
			err:     &pgconn.PgError{Code: "23514", ConstraintName: "users_wallet_check"},
			wantErr: entities.ErrInsufficientBalance,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			err := mapError(tt.err, "failed to do %s", "work")

			assert.ErrorIs(t, err, tt.wantErr)
			assert.ErrorIs(t, err, tt.err)
			assert.Contains(t, err.Error(), "failed to do work")
		})
	}

	t.Run("other errors are only wrapped", func(t *testing.T) {
		t.Parallel()

		cause := errors.New("connection reset")
		err := mapError(cause, "failed to read")

		assert.ErrorIs(t, err, cause)
		assert.False(t, errors.Is(err, entities.ErrConcurrencyConflict))
		assert.EqualError(t, err, "failed to read: connection reset")
	})

	t.Run("other unique violations are only wrapped", func(t *testing.T) {
		t.Parallel()

		err := mapError(&pgconn.PgError{Code: "23505", ConstraintName: "rounds_period_key"}, "failed to insert")
		assert.False(t, errors.Is(err, entities.ErrBucketOccupied))
	})

	assert.NoError(t, mapError(nil, "unused"))
}
