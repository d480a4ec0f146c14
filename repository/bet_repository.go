package repository

import (
	"context"
	"errors"
	"fmt"

	"colorgame/database"
	"colorgame/domain/entities"
	"colorgame/domain/interfaces"

	"github.com/jackc/pgx/v5"
	log "github.com/sirupsen/logrus"
)

const betColumns = `id, user_id, period_id, bet_type, bet_value, amount, multiplier, total_amount, result, win_amount, created_at`

type betRepository struct {
	q Queryable
}

// NewBetRepository creates a new bet repository
func NewBetRepository(db *database.DB) interfaces.BetRepository {
	return &betRepository{q: db.Pool}
}

// newBetRepositoryWithTx creates a new bet repository with a transaction
func newBetRepositoryWithTx(tx Queryable) interfaces.BetRepository {
	return &betRepository{q: tx}
}

func (r *betRepository) Create(ctx context.Context, bet *entities.Bet) error {
	query := `
		INSERT INTO bets (user_id, period_id, bet_type, bet_value, amount, multiplier, total_amount)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING id, created_at`

	err := r.q.QueryRow(ctx, query,
		bet.UserID,
		bet.PeriodID,
		bet.BetType,
		bet.BetValue,
		bet.Amount,
		bet.Multiplier,
		bet.TotalAmount,
	).Scan(&bet.ID, &bet.CreatedAt)
	if err != nil {
		return mapError(err, "failed to create bet for user %d", bet.UserID)
	}

	return nil
}

func (r *betRepository) GetByID(ctx context.Context, id int64) (*entities.Bet, error) {
	query := `SELECT ` + betColumns + ` FROM bets WHERE id = $1`

	bet, err := scanBet(r.q.QueryRow(ctx, query, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, mapError(err, "failed to get bet %d", id)
	}

	return bet, nil
}

func (r *betRepository) GetByRound(ctx context.Context, periodID string) ([]*entities.Bet, error) {
	query := `SELECT ` + betColumns + ` FROM bets WHERE period_id = $1 ORDER BY user_id ASC, id ASC`
	return r.getMany(ctx, query, periodID)
}

// SetResult only touches unsettled bets, so a replayed settlement cannot
// overwrite an earlier result
func (r *betRepository) SetResult(ctx context.Context, id int64, result entities.BetResult, winAmount int64) (bool, error) {
	query := `
		UPDATE bets
		SET result = $2, win_amount = $3
		WHERE id = $1 AND result IS NULL`

	tag, err := r.q.Exec(ctx, query, id, result, winAmount)
	if err != nil {
		return false, mapError(err, "failed to set result of bet %d", id)
	}

	return tag.RowsAffected() == 1, nil
}

func (r *betRepository) GetExposure(ctx context.Context, periodID string) (*entities.Exposure, error) {
	query := `
		SELECT bet_type, bet_value, SUM(amount)
		FROM bets
		WHERE period_id = $1
		GROUP BY bet_type, bet_value`

	rows, err := r.q.Query(ctx, query, periodID)
	if err != nil {
		return nil, mapError(err, "failed to get exposure of round %s", periodID)
	}
	defer rows.Close()

	exposure := entities.NewExposure()
	for rows.Next() {
		var betType, betValue string
		var total int64
		if err := rows.Scan(&betType, &betValue, &total); err != nil {
			return nil, fmt.Errorf("failed to scan exposure: %w", err)
		}

		selection, err := entities.ParseSelection(betType, betValue)
		if err != nil {
			log.WithFields(log.Fields{
				"roundID":  periodID,
				"betType":  betType,
				"betValue": betValue,
			}).Warn("Skipping unparseable bet in exposure")
			continue
		}
		exposure.Add(selection, total)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate exposure: %w", err)
	}

	return exposure, nil
}

func (r *betRepository) getMany(ctx context.Context, query string, args ...any) ([]*entities.Bet, error) {
	rows, err := r.q.Query(ctx, query, args...)
	if err != nil {
		return nil, mapError(err, "failed to query bets")
	}
	defer rows.Close()

	bets := make([]*entities.Bet, 0)
	for rows.Next() {
		bet, err := scanBet(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan bet: %w", err)
		}
		bets = append(bets, bet)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate bets: %w", err)
	}

	return bets, nil
}

func scanBet(row pgx.Row) (*entities.Bet, error) {
	var bet entities.Bet
	err := row.Scan(
		&bet.ID,
		&bet.UserID,
		&bet.PeriodID,
		&bet.BetType,
		&bet.BetValue,
		&bet.Amount,
		&bet.Multiplier,
		&bet.TotalAmount,
		&bet.Result,
		&bet.WinAmount,
		&bet.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &bet, nil
}
