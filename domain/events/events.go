package events

import (
	"time"

	"colorgame/domain/entities"
)

// EventType represents different types of events in the system
type EventType string

const (
	EventTypeRoundCreated  EventType = "round_created"
	EventTypeRoundResolved EventType = "round_resolved"
	EventTypeBetPlaced     EventType = "bet_placed"
	EventTypeBalanceChange EventType = "balance_change"
)

// Event is the base interface for all events
type Event interface {
	Type() EventType
}

// RoundCreatedEvent is emitted when a round opens for betting
type RoundCreatedEvent struct {
	RoundID  string            `json:"round_id"`
	Period   string            `json:"period"`
	Duration entities.Duration `json:"duration"`
	EndTime  time.Time         `json:"end_time"`
}

func (e RoundCreatedEvent) Type() EventType {
	return EventTypeRoundCreated
}

// RoundResolvedEvent is emitted after a round's settlement commits.
// SuccessorID is empty when the successor could not be created.
type RoundResolvedEvent struct {
	RoundID     string            `json:"round_id"`
	Period      string            `json:"period"`
	Duration    entities.Duration `json:"duration"`
	Result      entities.Outcome  `json:"result"`
	Manipulated bool              `json:"manipulated"`
	TotalBets   int64             `json:"total_bets"`
	TotalPaid   int64             `json:"total_paid"`
	SuccessorID string            `json:"successor_id,omitempty"`
}

func (e RoundResolvedEvent) Type() EventType {
	return EventTypeRoundResolved
}

// BetPlacedEvent represents a bet that was accepted
type BetPlacedEvent struct {
	BetID    int64            `json:"bet_id"`
	UserID   int64            `json:"user_id"`
	RoundID  string           `json:"round_id"`
	BetType  entities.BetType `json:"bet_type"`
	BetValue string           `json:"bet_value"`
	Amount   int64            `json:"amount"`
}

func (e BetPlacedEvent) Type() EventType {
	return EventTypeBetPlaced
}

// BalanceChangeEvent represents a balance change that occurred
type BalanceChangeEvent struct {
	UserID          int64                    `json:"user_id"`
	OldBalance      int64                    `json:"old_balance"`
	NewBalance      int64                    `json:"new_balance"`
	TransactionType entities.TransactionType `json:"transaction_type"`
	ChangeAmount    int64                    `json:"change_amount"`
}

func (e BalanceChangeEvent) Type() EventType {
	return EventTypeBalanceChange
}
