package repository

import (
	"context"
	"errors"

	"colorgame/database"
	"colorgame/domain/entities"
	"colorgame/domain/interfaces"

	"github.com/jackc/pgx/v5"
)

type gameResultRepository struct {
	q Queryable
}

// NewGameResultRepository creates a new game result repository
func NewGameResultRepository(db *database.DB) interfaces.GameResultRepository {
	return &gameResultRepository{q: db.Pool}
}

func newGameResultRepositoryWithTx(tx Queryable) interfaces.GameResultRepository {
	return &gameResultRepository{q: tx}
}

func (r *gameResultRepository) Create(ctx context.Context, result *entities.GameResult) error {
	query := `
		INSERT INTO game_results (period_id, number, color, size, description, manipulated)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING created_at`

	err := r.q.QueryRow(ctx, query,
		result.PeriodID,
		result.Number,
		result.Color,
		result.Size,
		result.Description,
		result.Manipulated,
	).Scan(&result.CreatedAt)
	if err != nil {
		return mapError(err, "failed to create game result for round %s", result.PeriodID)
	}

	return nil
}

func (r *gameResultRepository) GetByPeriodID(ctx context.Context, periodID string) (*entities.GameResult, error) {
	query := `
		SELECT period_id, number, color, size, description, manipulated, created_at
		FROM game_results
		WHERE period_id = $1`

	var result entities.GameResult
	err := r.q.QueryRow(ctx, query, periodID).Scan(
		&result.PeriodID,
		&result.Number,
		&result.Color,
		&result.Size,
		&result.Description,
		&result.Manipulated,
		&result.CreatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, mapError(err, "failed to get game result for round %s", periodID)
	}

	return &result, nil
}
