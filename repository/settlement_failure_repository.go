package repository

import (
	"context"
	"fmt"
	"time"

	"colorgame/database"
	"colorgame/domain/entities"
	"colorgame/domain/interfaces"
)

type settlementFailureRepository struct {
	q Queryable
}

// NewSettlementFailureRepository creates a new settlement failure repository
func NewSettlementFailureRepository(db *database.DB) interfaces.SettlementFailureRepository {
	return &settlementFailureRepository{q: db.Pool}
}

func newSettlementFailureRepositoryWithTx(tx Queryable) interfaces.SettlementFailureRepository {
	return &settlementFailureRepository{q: tx}
}

// Record inserts a failure, or reopens the existing one for the same bet
func (r *settlementFailureRepository) Record(ctx context.Context, failure *entities.SettlementFailure) error {
	query := `
		INSERT INTO settlement_failures (bet_id, period_id, error, attempts)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (bet_id) DO UPDATE
		SET error = EXCLUDED.error,
		    attempts = settlement_failures.attempts + EXCLUDED.attempts,
		    resolved_at = NULL
		RETURNING id, attempts, created_at`

	err := r.q.QueryRow(ctx, query,
		failure.BetID,
		failure.PeriodID,
		failure.Error,
		failure.Attempts,
	).Scan(&failure.ID, &failure.Attempts, &failure.CreatedAt)
	if err != nil {
		return mapError(err, "failed to record settlement failure for bet %d", failure.BetID)
	}

	return nil
}

func (r *settlementFailureRepository) GetOpen(ctx context.Context, limit int) ([]*entities.SettlementFailure, error) {
	query := `
		SELECT id, bet_id, period_id, error, attempts, resolved_at, created_at
		FROM settlement_failures
		WHERE resolved_at IS NULL
		ORDER BY created_at ASC, id ASC
		LIMIT $1`

	rows, err := r.q.Query(ctx, query, limit)
	if err != nil {
		return nil, mapError(err, "failed to get open settlement failures")
	}
	defer rows.Close()

	failures := make([]*entities.SettlementFailure, 0)
	for rows.Next() {
		var failure entities.SettlementFailure
		err := rows.Scan(
			&failure.ID,
			&failure.BetID,
			&failure.PeriodID,
			&failure.Error,
			&failure.Attempts,
			&failure.ResolvedAt,
			&failure.CreatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan settlement failure: %w", err)
		}
		failures = append(failures, &failure)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate settlement failures: %w", err)
	}

	return failures, nil
}

func (r *settlementFailureRepository) MarkResolved(ctx context.Context, id int64, resolvedAt time.Time) error {
	result, err := r.q.Exec(ctx, `UPDATE settlement_failures SET resolved_at = $2 WHERE id = $1`, id, resolvedAt)
	if err != nil {
		return mapError(err, "failed to resolve settlement failure %d", id)
	}
	if result.RowsAffected() == 0 {
		return fmt.Errorf("settlement failure %d not found", id)
	}

	return nil
}
