package entities

import (
	"errors"
	"fmt"
)

// Rejection and settlement error kinds. Wrapped errors keep their parent kind,
// so callers only need errors.Is against the top-level sentinels.
var (
	ErrValidation      = errors.New("invalid bet")
	ErrInvalidBetType  = fmt.Errorf("%w: unknown bet type", ErrValidation)
	ErrInvalidBetValue = fmt.Errorf("%w: value not allowed for bet type", ErrValidation)
	ErrInvalidAmount   = fmt.Errorf("%w: amount must be positive", ErrValidation)

	ErrRoundNotOpen = errors.New("round is not open for betting")
	ErrRoundClosing  = fmt.Errorf("%w: betting has closed", ErrRoundNotOpen)
	ErrRoundNotFound = fmt.Errorf("%w: round not found", ErrRoundNotOpen)

	ErrInsufficientBalance = errors.New("insufficient balance")
	ErrUserNotFound        = errors.New("user not found")

	ErrConcurrencyConflict = errors.New("concurrent update conflict, retry the operation")

	ErrSettlementAlreadyDone = errors.New("round not found or already ended")
	ErrSuccessorCreation     = errors.New("failed to create successor round")

	// ErrBucketOccupied means a bucket already has an active round
	ErrBucketOccupied = errors.New("duration bucket already has an active round")
)

// RejectionReason returns the reason string shown to a player whose bet was
// refused. Errors that are not bet rejections map to a generic message.
func RejectionReason(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrInvalidBetType):
		return "invalid_bet_type"
	case errors.Is(err, ErrInvalidBetValue):
		return "invalid_bet_value"
	case errors.Is(err, ErrInvalidAmount):
		return "invalid_amount"
	case errors.Is(err, ErrRoundClosing):
		return "round_closing"
	case errors.Is(err, ErrRoundNotOpen):
		return "round_not_open"
	case errors.Is(err, ErrInsufficientBalance):
		return "insufficient_balance"
	case errors.Is(err, ErrUserNotFound):
		return "user_not_found"
	case errors.Is(err, ErrConcurrencyConflict):
		return "try_again"
	default:
		return "internal_error"
	}
}
