package cmd

import (
	"context"
	"errors"
	"fmt"

	"colorgame/config"
	"colorgame/database"
	"colorgame/domain/entities"
	"colorgame/domain/services"
	"colorgame/infrastructure"

	log "github.com/sirupsen/logrus"
)

// UpdateBalance sets a user's wallet outside the game, journaling an admin
// adjustment. A missing user is created with the wallet.
func UpdateBalance(ctx context.Context, userID, wallet int64) error {
	cfg := config.Get()

	db, err := database.NewConnection(ctx, cfg.GetDatabaseURL())
	if err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}
	defer db.Close()

	// admin commands keep their events in process
	uowFactory := infrastructure.NewUnitOfWorkFactory(db, infrastructure.NewLogEventPublisher(nil), cfg.LockTimeout)
	uow := uowFactory.Create()
	if err := uow.Begin(ctx); err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer uow.Rollback()

	balanceService := services.NewBalanceService(uow.UserRepository(), uow.BalanceHistoryRepository(), uow.EventBus())
	history, err := balanceService.SetWallet(ctx, userID, wallet, "cli update-balance")
	if errors.Is(err, entities.ErrUserNotFound) {
		if _, err := uow.UserRepository().Create(ctx, userID, "", wallet); err != nil {
			return fmt.Errorf("failed to create user: %w", err)
		}
		log.WithFields(log.Fields{"userID": userID, "wallet": wallet}).Info("Created user")
		return uow.Commit()
	}
	if err != nil {
		return fmt.Errorf("failed to update balance: %w", err)
	}

	if err := uow.Commit(); err != nil {
		return fmt.Errorf("failed to commit balance update: %w", err)
	}

	if history == nil {
		log.WithField("userID", userID).Info("Wallet already at requested balance")
		return nil
	}
	log.WithFields(log.Fields{
		"userID": userID,
		"before": history.BalanceBefore,
		"after":  history.BalanceAfter,
	}).Info("Balance updated")
	return nil
}
