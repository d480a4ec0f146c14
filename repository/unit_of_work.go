package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"colorgame/application"
	"colorgame/database"
	"colorgame/domain/interfaces"

	"github.com/jackc/pgx/v5"
)

// unitOfWork implements the UnitOfWork interface
type unitOfWork struct {
	db                     *database.DB
	tx                     pgx.Tx
	ctx                    context.Context
	lockTimeout            time.Duration
	transactionalPublisher interfaces.TransactionalEventPublisher
	roundRepo              interfaces.RoundRepository
	betRepo                interfaces.BetRepository
	gameResultRepo         interfaces.GameResultRepository
	userRepo               interfaces.UserRepository
	balanceHistoryRepo     interfaces.BalanceHistoryRepository
	settlementFailureRepo  interfaces.SettlementFailureRepository
}

// NewUnitOfWorkFactory creates a new UnitOfWork factory. A positive
// lockTimeout bounds every row lock wait inside the transactions it creates.
func NewUnitOfWorkFactory(db *database.DB, lockTimeout time.Duration) *unitOfWorkFactory {
	return &unitOfWorkFactory{
		db:          db,
		lockTimeout: lockTimeout,
	}
}

type unitOfWorkFactory struct {
	db          *database.DB
	lockTimeout time.Duration
}

// CreateWithPublisher creates a new UnitOfWork that queues events on the given publisher
func (f *unitOfWorkFactory) CreateWithPublisher(transactionalPublisher interfaces.TransactionalEventPublisher) application.UnitOfWork {
	return &unitOfWork{
		db:                     f.db,
		lockTimeout:            f.lockTimeout,
		transactionalPublisher: transactionalPublisher,
	}
}

// Begin starts a new transaction
func (u *unitOfWork) Begin(ctx context.Context) error {
	if u.tx != nil {
		return fmt.Errorf("transaction already started")
	}

	tx, err := u.db.Begin(ctx)
	if err != nil {
		return mapError(err, "failed to begin transaction")
	}

	if u.lockTimeout > 0 {
		timeout := fmt.Sprintf("%dms", u.lockTimeout.Milliseconds())
		if _, err := tx.Exec(ctx, `SELECT set_config('lock_timeout', $1, true)`, timeout); err != nil {
			_ = tx.Rollback(ctx)
			return fmt.Errorf("failed to set lock timeout: %w", err)
		}
	}

	u.tx = tx
	u.ctx = ctx

	u.roundRepo = newRoundRepositoryWithTx(tx)
	u.betRepo = newBetRepositoryWithTx(tx)
	u.gameResultRepo = newGameResultRepositoryWithTx(tx)
	u.userRepo = newUserRepositoryWithTx(tx)
	u.balanceHistoryRepo = newBalanceHistoryRepositoryWithTx(tx)
	u.settlementFailureRepo = newSettlementFailureRepositoryWithTx(tx)

	return nil
}

// Commit commits the transaction
func (u *unitOfWork) Commit() error {
	if u.tx == nil {
		return fmt.Errorf("no transaction to commit")
	}

	err := u.tx.Commit(u.ctx)
	u.tx = nil
	if err != nil {
		return mapError(err, "failed to commit transaction")
	}

	return nil
}

// Rollback rolls back the transaction
func (u *unitOfWork) Rollback() error {
	if u.tx == nil {
		return nil // Nothing to rollback
	}

	err := u.tx.Rollback(u.ctx)
	u.tx = nil
	if err != nil && !errors.Is(err, pgx.ErrTxClosed) {
		return fmt.Errorf("failed to rollback transaction: %w", err)
	}

	return nil
}

// Savepoint runs fn inside a nested transaction. Repositories of this unit of
// work share its connection, so their writes land in the savepoint.
func (u *unitOfWork) Savepoint(ctx context.Context, fn func(ctx context.Context) error) error {
	if u.tx == nil {
		panic("unit of work not started - call Begin() first")
	}

	sp, err := u.tx.Begin(ctx)
	if err != nil {
		return mapError(err, "failed to create savepoint")
	}

	if err := fn(ctx); err != nil {
		if rbErr := sp.Rollback(ctx); rbErr != nil && !errors.Is(rbErr, pgx.ErrTxClosed) {
			return fmt.Errorf("rollback to savepoint failed: %v, original error: %w", rbErr, err)
		}
		return err
	}

	if err := sp.Commit(ctx); err != nil {
		return mapError(err, "failed to release savepoint")
	}

	return nil
}

// Savepoints returns the savepoint runner for this unit of work
func (u *unitOfWork) Savepoints() interfaces.Savepointer {
	if u.tx == nil {
		panic("unit of work not started - call Begin() first")
	}
	return u
}

// RoundRepository returns the round repository for this unit of work
func (u *unitOfWork) RoundRepository() interfaces.RoundRepository {
	if u.roundRepo == nil {
		panic("unit of work not started - call Begin() first")
	}
	return u.roundRepo
}

// BetRepository returns the bet repository for this unit of work
func (u *unitOfWork) BetRepository() interfaces.BetRepository {
	if u.betRepo == nil {
		panic("unit of work not started - call Begin() first")
	}
	return u.betRepo
}

// GameResultRepository returns the game result repository for this unit of work
func (u *unitOfWork) GameResultRepository() interfaces.GameResultRepository {
	if u.gameResultRepo == nil {
		panic("unit of work not started - call Begin() first")
	}
	return u.gameResultRepo
}

// UserRepository returns the user repository for this unit of work
func (u *unitOfWork) UserRepository() interfaces.UserRepository {
	if u.userRepo == nil {
		panic("unit of work not started - call Begin() first")
	}
	return u.userRepo
}

// BalanceHistoryRepository returns the balance history repository for this unit of work
func (u *unitOfWork) BalanceHistoryRepository() interfaces.BalanceHistoryRepository {
	if u.balanceHistoryRepo == nil {
		panic("unit of work not started - call Begin() first")
	}
	return u.balanceHistoryRepo
}

// SettlementFailureRepository returns the settlement failure repository for this unit of work
func (u *unitOfWork) SettlementFailureRepository() interfaces.SettlementFailureRepository {
	if u.settlementFailureRepo == nil {
		panic("unit of work not started - call Begin() first")
	}
	return u.settlementFailureRepo
}

// EventBus returns the transactional event publisher for this unit of work
func (u *unitOfWork) EventBus() interfaces.EventPublisher {
	if u.transactionalPublisher == nil {
		panic("transactional publisher not configured")
	}
	return u.transactionalPublisher
}
