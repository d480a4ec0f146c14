package services

import (
	"context"
	"errors"
	"fmt"

	"colorgame/domain/entities"
	"colorgame/domain/events"
	"colorgame/domain/interfaces"

	log "github.com/sirupsen/logrus"
)

// betSettleAttempts is how many times one bet is tried before it is recorded
// as a settlement failure
const betSettleAttempts = 2

// settlementService resolves rounds. Resolve must run inside a single
// transaction; the round row lock taken first is held until commit.
type settlementService struct {
	roundRepo             interfaces.RoundRepository
	betRepo               interfaces.BetRepository
	gameResultRepo        interfaces.GameResultRepository
	settlementFailureRepo interfaces.SettlementFailureRepository
	roundService          interfaces.RoundService
	balanceService        interfaces.BalanceService
	generator             interfaces.OutcomeGenerator
	manipulation          interfaces.ManipulationSource
	payout                *PayoutCalculator
	savepoints            interfaces.Savepointer
	eventPublisher        interfaces.EventPublisher
	clock                 interfaces.Clock
}

// NewSettlementService creates a new settlement service
func NewSettlementService(
	roundRepo interfaces.RoundRepository,
	betRepo interfaces.BetRepository,
	gameResultRepo interfaces.GameResultRepository,
	settlementFailureRepo interfaces.SettlementFailureRepository,
	roundService interfaces.RoundService,
	balanceService interfaces.BalanceService,
	generator interfaces.OutcomeGenerator,
	manipulation interfaces.ManipulationSource,
	payout *PayoutCalculator,
	savepoints interfaces.Savepointer,
	eventPublisher interfaces.EventPublisher,
	clock interfaces.Clock,
) interfaces.SettlementService {
	return &settlementService{
		roundRepo:             roundRepo,
		betRepo:               betRepo,
		gameResultRepo:        gameResultRepo,
		settlementFailureRepo: settlementFailureRepo,
		roundService:          roundService,
		balanceService:        balanceService,
		generator:             generator,
		manipulation:          manipulation,
		payout:                payout,
		savepoints:            savepoints,
		eventPublisher:        eventPublisher,
		clock:                 clock,
	}
}

// Resolve closes a round: draws the outcome, settles every bet, flips the
// round inactive and opens its successor. A bet that cannot be settled is
// recorded for replay without blocking the rest of the round.
func (s *settlementService) Resolve(ctx context.Context, periodID string) (*interfaces.SettlementResult, error) {
	return s.resolve(ctx, periodID, true)
}

// Close settles a round like Resolve but leaves its bucket empty
func (s *settlementService) Close(ctx context.Context, periodID string) (*interfaces.SettlementResult, error) {
	return s.resolve(ctx, periodID, false)
}

func (s *settlementService) resolve(ctx context.Context, periodID string, openSuccessor bool) (*interfaces.SettlementResult, error) {
	round, err := s.roundRepo.GetByIDForUpdate(ctx, periodID)
	if err != nil {
		return nil, fmt.Errorf("failed to lock round: %w", err)
	}
	if round == nil || !round.Active {
		return nil, entities.ErrSettlementAlreadyDone
	}

	// Bets ordered by user so concurrent settlements lock users in the same order
	bets, err := s.betRepo.GetByRound(ctx, round.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to get bets: %w", err)
	}

	manipulated := s.manipulation.Enabled(round.ID)
	outcome, err := s.drawOutcome(ctx, round.ID, manipulated)
	if err != nil {
		return nil, fmt.Errorf("failed to generate outcome: %w", err)
	}

	result := entities.NewGameResult(round.ID, outcome, manipulated)
	if err := s.gameResultRepo.Create(ctx, result); err != nil {
		return nil, fmt.Errorf("failed to record game result: %w", err)
	}

	summary := &interfaces.SettlementResult{
		Round:  round,
		Result: result,
	}

	for _, bet := range bets {
		summary.TotalStaked += bet.Amount

		paid, err := s.settleWithRetry(ctx, bet, outcome)
		if err != nil {
			summary.BetsFailed++
			s.recordFailure(ctx, bet, err)
			continue
		}
		summary.BetsSettled++
		summary.TotalPaid += paid
	}

	now := s.clock.Now()
	if err := s.roundRepo.SetInactive(ctx, round.ID, now); err != nil {
		return nil, fmt.Errorf("failed to close round: %w", err)
	}
	round.Active = false
	round.ResolvedAt = &now

	var successor *entities.Round
	if openSuccessor {
		successor, err = s.createSuccessor(ctx, round.Duration)
		if err != nil {
			summary.SuccessorErr = fmt.Errorf("%w: %v", entities.ErrSuccessorCreation, err)
			log.WithError(err).WithFields(log.Fields{
				"roundID":  round.ID,
				"duration": round.Duration,
			}).Error("Failed to create successor round, bucket left for reconciliation")
		}
	}
	summary.Successor = successor

	resolved := events.RoundResolvedEvent{
		RoundID:     round.ID,
		Period:      round.Period,
		Duration:    round.Duration,
		Result:      outcome,
		Manipulated: manipulated,
		TotalBets:   int64(len(bets)),
		TotalPaid:   summary.TotalPaid,
	}
	if successor != nil {
		resolved.SuccessorID = successor.ID
	}
	if err := s.eventPublisher.Publish(resolved); err != nil {
		log.WithError(err).Error("Failed to publish round resolved event")
	}

	log.WithFields(log.Fields{
		"roundID":     round.ID,
		"period":      round.Period,
		"duration":    round.Duration,
		"number":      outcome.Number,
		"color":       outcome.Color,
		"size":        outcome.Size,
		"manipulated": manipulated,
		"betsSettled": summary.BetsSettled,
		"betsFailed":  summary.BetsFailed,
		"totalStaked": summary.TotalStaked,
		"totalPaid":   summary.TotalPaid,
	}).Info("Round resolved")

	return summary, nil
}

// ReplayFailure settles a bet left unsettled by an earlier resolution
func (s *settlementService) ReplayFailure(ctx context.Context, failure *entities.SettlementFailure) (bool, error) {
	// Same lock order as Resolve: round first, then users
	round, err := s.roundRepo.GetByIDForUpdate(ctx, failure.PeriodID)
	if err != nil {
		return false, fmt.Errorf("failed to lock round: %w", err)
	}
	if round == nil {
		return false, fmt.Errorf("round %s not found", failure.PeriodID)
	}
	if round.Active {
		return false, nil
	}

	result, err := s.gameResultRepo.GetByPeriodID(ctx, round.ID)
	if err != nil {
		return false, fmt.Errorf("failed to get game result: %w", err)
	}
	if result == nil {
		return false, fmt.Errorf("round %s closed without a result", round.ID)
	}

	bet, err := s.betRepo.GetByID(ctx, failure.BetID)
	if err != nil {
		return false, fmt.Errorf("failed to get bet: %w", err)
	}

	if bet != nil && !bet.IsSettled() {
		err := s.savepoints.Savepoint(ctx, func(ctx context.Context) error {
			_, err := s.settleBet(ctx, bet, result.Outcome())
			return err
		})
		if err != nil {
			s.recordFailure(ctx, bet, err)
			return false, nil
		}
	}

	if err := s.settlementFailureRepo.MarkResolved(ctx, failure.ID, s.clock.Now()); err != nil {
		return false, fmt.Errorf("failed to resolve settlement failure: %w", err)
	}

	log.WithFields(log.Fields{
		"failureID": failure.ID,
		"betID":     failure.BetID,
		"roundID":   failure.PeriodID,
	}).Info("Replayed settlement failure")

	return true, nil
}

// drawOutcome reads exposure under the round lock, so it covers every bet
// that will be settled
func (s *settlementService) drawOutcome(ctx context.Context, roundID string, manipulated bool) (entities.Outcome, error) {
	if !manipulated {
		return s.generator.Random()
	}

	exposure, err := s.betRepo.GetExposure(ctx, roundID)
	if err != nil {
		return entities.Outcome{}, fmt.Errorf("failed to get exposure: %w", err)
	}
	return s.generator.Manipulated(exposure)
}

func (s *settlementService) settleWithRetry(ctx context.Context, bet *entities.Bet, outcome entities.Outcome) (int64, error) {
	var err error
	for attempt := 1; attempt <= betSettleAttempts; attempt++ {
		var paid int64
		err = s.savepoints.Savepoint(ctx, func(ctx context.Context) error {
			var settleErr error
			paid, settleErr = s.settleBet(ctx, bet, outcome)
			return settleErr
		})
		if err == nil {
			return paid, nil
		}

		log.WithError(err).WithFields(log.Fields{
			"betID":   bet.ID,
			"roundID": bet.PeriodID,
			"attempt": attempt,
		}).Warn("Failed to settle bet")
	}
	return 0, err
}

// settleBet writes one bet's result and credits a win. The result write is
// guarded on a NULL result so a bet is never paid twice.
func (s *settlementService) settleBet(ctx context.Context, bet *entities.Bet, outcome entities.Outcome) (int64, error) {
	selection, err := bet.Selection()
	if err != nil {
		return 0, fmt.Errorf("invalid stored selection: %w", err)
	}

	result := entities.BetResultLose
	var winAmount int64
	if selection.Wins(outcome) {
		result = entities.BetResultWin
		winAmount = s.payout.WinAmount(bet.TotalAmount)
	}

	updated, err := s.betRepo.SetResult(ctx, bet.ID, result, winAmount)
	if err != nil {
		return 0, fmt.Errorf("failed to write bet result: %w", err)
	}
	if !updated {
		return 0, nil
	}

	if winAmount > 0 {
		betID := bet.ID
		if _, err := s.balanceService.Credit(ctx, interfaces.BalanceMutation{
			UserID:          bet.UserID,
			Amount:          winAmount,
			TransactionType: entities.TransactionTypeBetWin,
			RelatedID:       &betID,
			Metadata: map[string]any{
				"round_id": bet.PeriodID,
				"number":   outcome.Number,
				"color":    outcome.Color,
				"size":     outcome.Size,
			},
		}); err != nil {
			return 0, fmt.Errorf("failed to credit winnings: %w", err)
		}
	}

	bet.Settle(result, winAmount)
	return winAmount, nil
}

func (s *settlementService) recordFailure(ctx context.Context, bet *entities.Bet, cause error) {
	log.WithError(cause).WithFields(log.Fields{
		"betID":   bet.ID,
		"userID":  bet.UserID,
		"roundID": bet.PeriodID,
	}).Error("Bet left unsettled, recording for replay")

	err := s.savepoints.Savepoint(ctx, func(ctx context.Context) error {
		return s.settlementFailureRepo.Record(ctx, &entities.SettlementFailure{
			BetID:    bet.ID,
			PeriodID: bet.PeriodID,
			Error:    cause.Error(),
			Attempts: betSettleAttempts,
		})
	})
	if err != nil {
		log.WithError(errors.Join(cause, err)).WithField("betID", bet.ID).Error("Failed to record settlement failure")
	}
}

func (s *settlementService) createSuccessor(ctx context.Context, duration entities.Duration) (*entities.Round, error) {
	var successor *entities.Round
	err := s.savepoints.Savepoint(ctx, func(ctx context.Context) error {
		var createErr error
		successor, createErr = s.roundService.Create(ctx, duration)
		return createErr
	})
	if err != nil {
		return nil, err
	}
	return successor, nil
}
