package entities

import (
	"math"
	"time"
)

// MaxBetAmount is the largest stake whose total amount and doubled payout fit
// in an int64 under the highest multiplier
const MaxBetAmount = math.MaxInt64 / (14 * 2)

// BetResult is the settled outcome of a bet
type BetResult string

const (
	BetResultWin  BetResult = "win"
	BetResultLose BetResult = "lose"
)

// Bet represents one player's stake on a round
type Bet struct {
	ID          int64      `db:"id"`
	UserID      int64      `db:"user_id"`
	PeriodID    string     `db:"period_id"`
	BetType     BetType    `db:"bet_type"`
	BetValue    string     `db:"bet_value"`
	Amount      int64      `db:"amount"`
	Multiplier  int64      `db:"multiplier"`
	TotalAmount int64      `db:"total_amount"`
	Result      *BetResult `db:"result"` // NULL until settled
	WinAmount   int64      `db:"win_amount"`
	CreatedAt   time.Time  `db:"created_at"`
}

// NewBet builds an unsettled bet from a validated selection
func NewBet(userID int64, periodID string, selection BetSelection, amount int64) *Bet {
	multiplier := selection.Multiplier()
	return &Bet{
		UserID:      userID,
		PeriodID:    periodID,
		BetType:     selection.Type(),
		BetValue:    selection.Value(),
		Amount:      amount,
		Multiplier:  multiplier,
		TotalAmount: amount * multiplier,
	}
}

// Selection re-parses the stored type and value. Stored rows were validated
// at placement, so an error here means the row was written outside this code.
func (b *Bet) Selection() (BetSelection, error) {
	return ParseSelection(string(b.BetType), b.BetValue)
}

// IsSettled returns true once settlement wrote a result
func (b *Bet) IsSettled() bool {
	return b.Result != nil
}

// IsWin returns true if the bet was settled as a win
func (b *Bet) IsWin() bool {
	return b.Result != nil && *b.Result == BetResultWin
}

// Settle records the result. A bet can only be settled once.
func (b *Bet) Settle(result BetResult, winAmount int64) bool {
	if b.IsSettled() {
		return false
	}
	b.Result = &result
	b.WinAmount = winAmount
	return true
}

// GameResult is the resolution record of one round
type GameResult struct {
	PeriodID    string    `db:"period_id"`
	Number      int       `db:"number"`
	Color       Color     `db:"color"`
	Size        Size      `db:"size"`
	Description string    `db:"description"`
	Manipulated bool      `db:"manipulated"`
	CreatedAt   time.Time `db:"created_at"`
}

// NewGameResult builds the result record for a round
func NewGameResult(periodID string, outcome Outcome, manipulated bool) *GameResult {
	return &GameResult{
		PeriodID:    periodID,
		Number:      outcome.Number,
		Color:       outcome.Color,
		Size:        outcome.Size,
		Description: outcome.Description(),
		Manipulated: manipulated,
	}
}

// Outcome returns the drawn outcome
func (g *GameResult) Outcome() Outcome {
	return Outcome{Number: g.Number, Color: g.Color, Size: g.Size}
}

// SettlementFailure records a bet whose result could not be written during
// settlement. The reconciliation sweep replays these.
type SettlementFailure struct {
	ID         int64      `db:"id"`
	BetID      int64      `db:"bet_id"`
	PeriodID   string     `db:"period_id"`
	Error      string     `db:"error"`
	Attempts   int        `db:"attempts"`
	ResolvedAt *time.Time `db:"resolved_at"`
	CreatedAt  time.Time  `db:"created_at"`
}
