package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"colorgame/database"
	"colorgame/domain/entities"
	"colorgame/domain/interfaces"

	"github.com/jackc/pgx/v5"
)

const roundColumns = `id, period, duration, end_time, active, total_bets, total_bet_amount, created_at, resolved_at`

type roundRepository struct {
	q Queryable
}

// NewRoundRepository creates a new round repository
func NewRoundRepository(db *database.DB) interfaces.RoundRepository {
	return &roundRepository{q: db.Pool}
}

// newRoundRepositoryWithTx creates a new round repository with a transaction
func newRoundRepositoryWithTx(tx Queryable) interfaces.RoundRepository {
	return &roundRepository{q: tx}
}

func (r *roundRepository) Create(ctx context.Context, round *entities.Round) error {
	query := `
		INSERT INTO rounds (id, period, duration, end_time, active, total_bets, total_bet_amount, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`

	_, err := r.q.Exec(ctx, query,
		round.ID,
		round.Period,
		round.Duration,
		round.EndTime,
		round.Active,
		round.TotalBets,
		round.TotalBetAmount,
		round.CreatedAt,
	)
	if err != nil {
		return mapError(err, "failed to create round for duration %s", round.Duration)
	}

	return nil
}

func (r *roundRepository) GetByID(ctx context.Context, id string) (*entities.Round, error) {
	query := `SELECT ` + roundColumns + ` FROM rounds WHERE id = $1`
	return r.getOne(ctx, query, id)
}

func (r *roundRepository) GetByIDForUpdate(ctx context.Context, id string) (*entities.Round, error) {
	query := `SELECT ` + roundColumns + ` FROM rounds WHERE id = $1 FOR UPDATE`
	return r.getOne(ctx, query, id)
}

func (r *roundRepository) GetActive(ctx context.Context, duration entities.Duration) (*entities.Round, error) {
	query := `SELECT ` + roundColumns + ` FROM rounds WHERE duration = $1 AND active`
	return r.getOne(ctx, query, duration)
}

func (r *roundRepository) GetActiveList(ctx context.Context) ([]*entities.Round, error) {
	query := `SELECT ` + roundColumns + ` FROM rounds WHERE active ORDER BY end_time ASC`
	return r.getMany(ctx, query)
}

func (r *roundRepository) GetOverdue(ctx context.Context, cutoff time.Time) ([]*entities.Round, error) {
	query := `SELECT ` + roundColumns + ` FROM rounds WHERE active AND end_time < $1 ORDER BY end_time ASC`
	return r.getMany(ctx, query, cutoff)
}

func (r *roundRepository) DeactivateAll(ctx context.Context) (int64, error) {
	result, err := r.q.Exec(ctx, `UPDATE rounds SET active = FALSE WHERE active`)
	if err != nil {
		return 0, mapError(err, "failed to deactivate rounds")
	}
	return result.RowsAffected(), nil
}

func (r *roundRepository) SetInactive(ctx context.Context, id string, resolvedAt time.Time) error {
	query := `UPDATE rounds SET active = FALSE, resolved_at = $2 WHERE id = $1 AND active`

	result, err := r.q.Exec(ctx, query, id, resolvedAt)
	if err != nil {
		return mapError(err, "failed to close round %s", id)
	}
	if result.RowsAffected() == 0 {
		return fmt.Errorf("round %s not found or already closed", id)
	}

	return nil
}

func (r *roundRepository) IncrementCounters(ctx context.Context, id string, amount int64) error {
	query := `
		UPDATE rounds
		SET total_bets = total_bets + 1, total_bet_amount = total_bet_amount + $2
		WHERE id = $1`

	result, err := r.q.Exec(ctx, query, id, amount)
	if err != nil {
		return mapError(err, "failed to update counters of round %s", id)
	}
	if result.RowsAffected() == 0 {
		return fmt.Errorf("round %s not found", id)
	}

	return nil
}

func (r *roundRepository) getOne(ctx context.Context, query string, args ...any) (*entities.Round, error) {
	round, err := scanRound(r.q.QueryRow(ctx, query, args...))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, mapError(err, "failed to get round")
	}
	return round, nil
}

func (r *roundRepository) getMany(ctx context.Context, query string, args ...any) ([]*entities.Round, error) {
	rows, err := r.q.Query(ctx, query, args...)
	if err != nil {
		return nil, mapError(err, "failed to query rounds")
	}
	defer rows.Close()

	rounds := make([]*entities.Round, 0)
	for rows.Next() {
		round, err := scanRound(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan round: %w", err)
		}
		rounds = append(rounds, round)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate rounds: %w", err)
	}

	return rounds, nil
}

func scanRound(row pgx.Row) (*entities.Round, error) {
	var round entities.Round
	err := row.Scan(
		&round.ID,
		&round.Period,
		&round.Duration,
		&round.EndTime,
		&round.Active,
		&round.TotalBets,
		&round.TotalBetAmount,
		&round.CreatedAt,
		&round.ResolvedAt,
	)
	if err != nil {
		return nil, err
	}
	return &round, nil
}
