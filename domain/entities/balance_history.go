package entities

import (
	"errors"
	"time"
)

// TransactionType represents the type of balance change
type TransactionType string

const (
	TransactionTypeBetPlaced       TransactionType = "bet_placed"
	TransactionTypeBetWin          TransactionType = "bet_win"
	TransactionTypeAdminAdjustment TransactionType = "admin_adjustment"
)

// IsGamblingRelated returns true if the transaction came from the game itself
func (tt TransactionType) IsGamblingRelated() bool {
	return tt == TransactionTypeBetPlaced || tt == TransactionTypeBetWin
}

// BalanceHistory represents a historical balance change
type BalanceHistory struct {
	ID                  int64           `db:"id"`
	UserID              int64           `db:"user_id"`
	BalanceBefore       int64           `db:"balance_before"`
	BalanceAfter        int64           `db:"balance_after"`
	ChangeAmount        int64           `db:"change_amount"`
	TransactionType     TransactionType `db:"transaction_type"`
	TransactionMetadata map[string]any  `db:"transaction_metadata"`
	RelatedID           *int64          `db:"related_id"` // bet id for game transactions
	CreatedAt           time.Time       `db:"created_at"`
}

// IsPositiveChange returns true if the change amount is positive
func (bh *BalanceHistory) IsPositiveChange() bool {
	return bh.ChangeAmount > 0
}

// GetTransactionDescription returns a human-readable description of the transaction
func (bh *BalanceHistory) GetTransactionDescription() string {
	switch bh.TransactionType {
	case TransactionTypeBetPlaced:
		return "Bet placed"
	case TransactionTypeBetWin:
		return "Bet win"
	case TransactionTypeAdminAdjustment:
		return "Admin adjustment"
	default:
		return string(bh.TransactionType)
	}
}

// ValidateTransaction performs basic validation on the transaction
func (bh *BalanceHistory) ValidateTransaction() error {
	if bh.ChangeAmount == 0 {
		return errors.New("change amount cannot be zero")
	}

	if bh.BalanceAfter != bh.BalanceBefore+bh.ChangeAmount {
		return errors.New("balance calculation is inconsistent")
	}

	return nil
}
