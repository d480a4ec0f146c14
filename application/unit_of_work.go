package application

import (
	"context"

	"colorgame/domain/interfaces"
)

// UnitOfWork defines the interface for transactional repository operations
type UnitOfWork interface {
	// Begin starts a new transaction
	Begin(ctx context.Context) error

	// Commit commits the transaction
	Commit() error

	// Rollback rolls back the transaction
	Rollback() error

	// Savepoints runs nested work that can fail on its own
	Savepoints() interfaces.Savepointer

	// Repository getters
	RoundRepository() interfaces.RoundRepository
	BetRepository() interfaces.BetRepository
	GameResultRepository() interfaces.GameResultRepository
	UserRepository() interfaces.UserRepository
	BalanceHistoryRepository() interfaces.BalanceHistoryRepository
	SettlementFailureRepository() interfaces.SettlementFailureRepository
	EventBus() interfaces.EventPublisher
}

// UnitOfWorkFactory defines the interface for creating UnitOfWork instances
type UnitOfWorkFactory interface {
	// Create creates a new UnitOfWork instance
	Create() UnitOfWork
}
