package interfaces

import (
	"context"
	"time"

	"colorgame/domain/entities"
	"colorgame/domain/events"
)

// RoundRepository defines the interface for round data access
type RoundRepository interface {
	// Create inserts a new round. Fails if the bucket already has an active round.
	Create(ctx context.Context, round *entities.Round) error

	// GetByID retrieves a round by its ID
	GetByID(ctx context.Context, id string) (*entities.Round, error)

	// GetByIDForUpdate retrieves a round with a row lock (SELECT ... FOR UPDATE)
	GetByIDForUpdate(ctx context.Context, id string) (*entities.Round, error)

	// GetActive returns the active round of a bucket, or nil
	GetActive(ctx context.Context, duration entities.Duration) (*entities.Round, error)

	// GetActiveList returns every active round ordered by end time
	GetActiveList(ctx context.Context) ([]*entities.Round, error)

	// GetOverdue returns active rounds whose end time is before the cutoff
	GetOverdue(ctx context.Context, cutoff time.Time) ([]*entities.Round, error)

	// DeactivateAll marks every active round inactive and returns how many were changed
	DeactivateAll(ctx context.Context) (int64, error)

	// SetInactive closes a round
	SetInactive(ctx context.Context, id string, resolvedAt time.Time) error

	// IncrementCounters adds one bet of the given amount to the round totals
	IncrementCounters(ctx context.Context, id string, amount int64) error
}

// BetRepository defines the interface for bet data access
type BetRepository interface {
	// Create creates a new bet record
	Create(ctx context.Context, bet *entities.Bet) error

	// GetByID retrieves a bet by its ID
	GetByID(ctx context.Context, id int64) (*entities.Bet, error)

	// GetByRound returns every bet of a round ordered by user then id
	GetByRound(ctx context.Context, periodID string) ([]*entities.Bet, error)

	// SetResult writes the settled result of a bet. Returns false if the bet
	// already carried a result.
	SetResult(ctx context.Context, id int64, result entities.BetResult, winAmount int64) (bool, error)

	// GetExposure sums the staked amount per bet value of a round
	GetExposure(ctx context.Context, periodID string) (*entities.Exposure, error)
}

// GameResultRepository defines the interface for round results
type GameResultRepository interface {
	// Create records the result of a round
	Create(ctx context.Context, result *entities.GameResult) error

	// GetByPeriodID retrieves the result of a round
	GetByPeriodID(ctx context.Context, periodID string) (*entities.GameResult, error)
}

// UserRepository defines the interface for the consumed balance source
type UserRepository interface {
	// GetByID retrieves a user by ID
	GetByID(ctx context.Context, id int64) (*entities.User, error)

	// GetByIDForUpdate retrieves a user with a row lock
	GetByIDForUpdate(ctx context.Context, id int64) (*entities.User, error)

	// Create creates a user with an initial wallet
	Create(ctx context.Context, id int64, username string, wallet int64) (*entities.User, error)

	// UpdateWallet sets a user's wallet
	UpdateWallet(ctx context.Context, id int64, wallet int64) error
}

// BalanceHistoryRepository defines the interface for balance history tracking
type BalanceHistoryRepository interface {
	// Record creates a new balance history entry
	Record(ctx context.Context, history *entities.BalanceHistory) error
}

// SettlementFailureRepository tracks bets that could not be settled
type SettlementFailureRepository interface {
	// Record stores a failure, or bumps the attempt count of an open one for the same bet
	Record(ctx context.Context, failure *entities.SettlementFailure) error

	// GetOpen returns unresolved failures, oldest first
	GetOpen(ctx context.Context, limit int) ([]*entities.SettlementFailure, error)

	// MarkResolved closes a failure
	MarkResolved(ctx context.Context, id int64, resolvedAt time.Time) error
}

// EventPublisher defines the interface for publishing events
type EventPublisher interface {
	Publish(event events.Event) error
}

// Savepointer runs fn inside a savepoint of the current transaction. If fn
// fails only its own writes are rolled back.
type Savepointer interface {
	Savepoint(ctx context.Context, fn func(ctx context.Context) error) error
}

// TransactionalEventPublisher buffers events until the surrounding
// transaction commits
type TransactionalEventPublisher interface {
	EventPublisher

	// Flush publishes the buffered events
	Flush(ctx context.Context) error

	// Discard drops the buffered events
	Discard()
}
