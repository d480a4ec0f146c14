package interfaces

import (
	"context"
	"time"

	"colorgame/domain/entities"
)

// Clock provides the current time
type Clock interface {
	Now() time.Time
}

// RandomSource provides randomness to the outcome generator
type RandomSource interface {
	// Intn returns a uniform value in [0, n)
	Intn(n int) (int, error)

	// Float64 returns a uniform value in [0, 1)
	Float64() (float64, error)
}

// ManipulationSource decides which outcome strategy resolves a round
type ManipulationSource interface {
	Enabled(roundID string) bool
}

// OutcomeGenerator produces round outcomes
type OutcomeGenerator interface {
	// Random draws a uniformly random outcome
	Random() (entities.Outcome, error)

	// Manipulated picks the outcome least favorable to the players
	Manipulated(exposure *entities.Exposure) (entities.Outcome, error)
}

// RoundService defines the interface for round lifecycle operations
type RoundService interface {
	// Create opens a new round for a bucket
	Create(ctx context.Context, duration entities.Duration) (*entities.Round, error)

	// StartAll deactivates every active round and opens one per bucket
	StartAll(ctx context.Context, durations []entities.Duration) ([]*entities.Round, error)

	// EnsureActive opens a round for the bucket if none is active. The bool
	// reports whether a round was created.
	EnsureActive(ctx context.Context, duration entities.Duration) (*entities.Round, bool, error)

	GetActive(ctx context.Context, duration entities.Duration) (*entities.Round, error)
	GetByID(ctx context.Context, id string) (*entities.Round, error)
	GetActiveList(ctx context.Context) ([]*entities.Round, error)

	// GetOverdue returns active rounds that ended more than grace ago
	GetOverdue(ctx context.Context, grace time.Duration) ([]*entities.Round, error)
}

// PlaceBetRequest is a raw bet request
type PlaceBetRequest struct {
	UserID   int64
	PeriodID string
	BetType  string
	BetValue string
	Amount   int64
}

// BettingService defines the interface for bet placement
type BettingService interface {
	// PlaceBet validates and records a bet, debiting the stake
	PlaceBet(ctx context.Context, req PlaceBetRequest) (*entities.Bet, *entities.Round, error)

	// ExposureByRound aggregates the stakes of a round per bet value
	ExposureByRound(ctx context.Context, periodID string) (*entities.Exposure, error)
}

// BalanceMutation describes one debit or credit
type BalanceMutation struct {
	UserID          int64
	Amount          int64 // always positive
	TransactionType entities.TransactionType
	RelatedID       *int64
	Metadata        map[string]any
}

// BalanceService defines the interface for wallet mutations
type BalanceService interface {
	// Debit removes funds, failing with ErrInsufficientBalance
	Debit(ctx context.Context, m BalanceMutation) (*entities.BalanceHistory, error)

	// Credit adds funds
	Credit(ctx context.Context, m BalanceMutation) (*entities.BalanceHistory, error)

	// SetWallet overwrites the wallet, journaling the difference
	SetWallet(ctx context.Context, userID int64, wallet int64, reason string) (*entities.BalanceHistory, error)
}

// SettlementResult is the summary of one round resolution
type SettlementResult struct {
	Round       *entities.Round
	Result      *entities.GameResult
	Successor   *entities.Round // nil when successor creation failed
	BetsSettled int
	BetsFailed  int
	TotalStaked int64
	TotalPaid   int64

	// SuccessorErr wraps ErrSuccessorCreation when the bucket was left without a round
	SuccessorErr error
}

// SettlementService defines the interface for resolving rounds
type SettlementService interface {
	// Resolve closes a round, pays its winners and opens the successor.
	// Returns ErrSettlementAlreadyDone when the round is missing or closed.
	Resolve(ctx context.Context, periodID string) (*SettlementResult, error)

	// Close settles a round like Resolve without opening a successor
	Close(ctx context.Context, periodID string) (*SettlementResult, error)

	// ReplayFailure retries the settlement of a bet recorded as failed. It
	// reports whether the failure was resolved; a bet that fails again has its
	// attempt count bumped and returns false with a nil error.
	ReplayFailure(ctx context.Context, failure *entities.SettlementFailure) (bool, error)
}
