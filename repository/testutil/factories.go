package testutil

import (
	"context"
	"testing"
	"time"

	"colorgame/database"
	"colorgame/domain/entities"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
)

// CreateTestRound builds an active round of the given bucket ending one
// bucket length after createdAt
func CreateTestRound(duration entities.Duration, createdAt time.Time) *entities.Round {
	return &entities.Round{
		ID:        uuid.NewString(),
		Period:    entities.NewPeriodCode(createdAt, duration),
		Duration:  duration,
		EndTime:   createdAt.Add(duration.Length()),
		Active:    true,
		CreatedAt: createdAt,
	}
}

// CreateTestBet builds an unsettled bet
func CreateTestBet(userID int64, roundID string, selection entities.BetSelection, amount int64) *entities.Bet {
	return entities.NewBet(userID, roundID, selection, amount)
}

// InsertUser creates a user row directly
func InsertUser(t *testing.T, db *database.DB, id int64, wallet int64) {
	t.Helper()

	_, err := db.Exec(context.Background(),
		`INSERT INTO users (id, username, wallet) VALUES ($1, $2, $3)`,
		id, "player", wallet)
	require.NoError(t, err)
}

// Wallet reads a user's wallet directly
func Wallet(t *testing.T, db *database.DB, id int64) int64 {
	t.Helper()

	var wallet int64
	err := db.QueryRow(context.Background(), `SELECT wallet FROM users WHERE id = $1`, id).Scan(&wallet)
	require.NoError(t, err)
	return wallet
}

// CountActiveRounds returns the number of active rounds of a bucket
func CountActiveRounds(t *testing.T, db *database.DB, duration entities.Duration) int {
	t.Helper()

	var count int
	err := db.QueryRow(context.Background(),
		`SELECT COUNT(*) FROM rounds WHERE duration = $1 AND active`, duration).Scan(&count)
	require.NoError(t, err)
	return count
}

// BalanceHistory returns every balance history entry of a user, oldest first
func BalanceHistory(t *testing.T, db *database.DB, userID int64) []*entities.BalanceHistory {
	t.Helper()

	rows, err := db.Query(context.Background(), `
		SELECT id, balance_before, balance_after, change_amount, transaction_type, related_id
		FROM balance_history
		WHERE user_id = $1
		ORDER BY id ASC`, userID)
	require.NoError(t, err)
	defer rows.Close()

	var history []*entities.BalanceHistory
	for rows.Next() {
		h := &entities.BalanceHistory{UserID: userID}
		require.NoError(t, rows.Scan(&h.ID, &h.BalanceBefore, &h.BalanceAfter, &h.ChangeAmount, &h.TransactionType, &h.RelatedID))
		history = append(history, h)
	}
	require.NoError(t, rows.Err())
	return history
}
