package services

import (
	"context"
	"fmt"
	"math"

	"colorgame/domain/entities"
	"colorgame/domain/interfaces"
	"colorgame/domain/utils"
)

// balanceService serializes wallet mutations through the user row lock
type balanceService struct {
	userRepo           interfaces.UserRepository
	balanceHistoryRepo interfaces.BalanceHistoryRepository
	eventPublisher     interfaces.EventPublisher
}

// NewBalanceService creates a new balance service
func NewBalanceService(
	userRepo interfaces.UserRepository,
	balanceHistoryRepo interfaces.BalanceHistoryRepository,
	eventPublisher interfaces.EventPublisher,
) interfaces.BalanceService {
	return &balanceService{
		userRepo:           userRepo,
		balanceHistoryRepo: balanceHistoryRepo,
		eventPublisher:     eventPublisher,
	}
}

// Debit removes funds from a wallet
func (s *balanceService) Debit(ctx context.Context, m interfaces.BalanceMutation) (*entities.BalanceHistory, error) {
	if m.Amount <= 0 {
		return nil, entities.ErrInvalidAmount
	}

	user, err := s.lockUser(ctx, m.UserID)
	if err != nil {
		return nil, err
	}

	if err := user.ValidateDebit(m.Amount); err != nil {
		return nil, err
	}

	return s.apply(ctx, user, user.Wallet-m.Amount, m)
}

// Credit adds funds to a wallet
func (s *balanceService) Credit(ctx context.Context, m interfaces.BalanceMutation) (*entities.BalanceHistory, error) {
	if m.Amount <= 0 {
		return nil, entities.ErrInvalidAmount
	}

	user, err := s.lockUser(ctx, m.UserID)
	if err != nil {
		return nil, err
	}
	if user.Wallet > math.MaxInt64-m.Amount {
		return nil, fmt.Errorf("%w: credit of %d overflows wallet %d", entities.ErrInvalidAmount, m.Amount, user.Wallet)
	}

	return s.apply(ctx, user, user.Wallet+m.Amount, m)
}

// SetWallet overwrites a wallet with an admin adjustment
func (s *balanceService) SetWallet(ctx context.Context, userID int64, wallet int64, reason string) (*entities.BalanceHistory, error) {
	if wallet < 0 {
		return nil, fmt.Errorf("wallet cannot be negative: %d", wallet)
	}

	user, err := s.lockUser(ctx, userID)
	if err != nil {
		return nil, err
	}

	if user.Wallet == wallet {
		return nil, nil
	}

	return s.apply(ctx, user, wallet, interfaces.BalanceMutation{
		UserID:          userID,
		TransactionType: entities.TransactionTypeAdminAdjustment,
		Metadata:        map[string]any{"reason": reason},
	})
}

func (s *balanceService) lockUser(ctx context.Context, userID int64) (*entities.User, error) {
	user, err := s.userRepo.GetByIDForUpdate(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to lock user: %w", err)
	}
	if user == nil {
		return nil, fmt.Errorf("%w: %d", entities.ErrUserNotFound, userID)
	}
	return user, nil
}

func (s *balanceService) apply(ctx context.Context, user *entities.User, newWallet int64, m interfaces.BalanceMutation) (*entities.BalanceHistory, error) {
	if err := s.userRepo.UpdateWallet(ctx, user.ID, newWallet); err != nil {
		return nil, fmt.Errorf("failed to update wallet: %w", err)
	}

	history := &entities.BalanceHistory{
		UserID:              user.ID,
		BalanceBefore:       user.Wallet,
		BalanceAfter:        newWallet,
		ChangeAmount:        newWallet - user.Wallet,
		TransactionType:     m.TransactionType,
		TransactionMetadata: m.Metadata,
		RelatedID:           m.RelatedID,
	}
	if err := utils.RecordBalanceChange(ctx, s.balanceHistoryRepo, s.eventPublisher, history); err != nil {
		return nil, err
	}

	user.Wallet = newWallet
	return history, nil
}
