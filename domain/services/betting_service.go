package services

import (
	"context"
	"fmt"

	"colorgame/domain/entities"
	"colorgame/domain/events"
	"colorgame/domain/interfaces"

	log "github.com/sirupsen/logrus"
)

// bettingService implements the bet ledger
type bettingService struct {
	roundRepo      interfaces.RoundRepository
	betRepo        interfaces.BetRepository
	balanceService interfaces.BalanceService
	eventPublisher interfaces.EventPublisher
	clock          interfaces.Clock
}

// NewBettingService creates a new betting service
func NewBettingService(
	roundRepo interfaces.RoundRepository,
	betRepo interfaces.BetRepository,
	balanceService interfaces.BalanceService,
	eventPublisher interfaces.EventPublisher,
	clock interfaces.Clock,
) interfaces.BettingService {
	return &bettingService{
		roundRepo:      roundRepo,
		betRepo:        betRepo,
		balanceService: balanceService,
		eventPublisher: eventPublisher,
		clock:          clock,
	}
}

// PlaceBet accepts a bet against an open round. The round row stays locked
// until the surrounding transaction ends, so settlement cannot start while
// the bet is in flight. The locked round is returned with the bet.
func (s *bettingService) PlaceBet(ctx context.Context, req interfaces.PlaceBetRequest) (*entities.Bet, *entities.Round, error) {
	if req.Amount <= 0 || req.Amount > entities.MaxBetAmount {
		return nil, nil, fmt.Errorf("%w: got %d", entities.ErrInvalidAmount, req.Amount)
	}

	selection, err := entities.ParseSelection(req.BetType, req.BetValue)
	if err != nil {
		return nil, nil, err
	}

	round, err := s.roundRepo.GetByIDForUpdate(ctx, req.PeriodID)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to lock round: %w", err)
	}
	if round == nil || !round.Active {
		return nil, nil, fmt.Errorf("%w: %s", entities.ErrRoundNotOpen, req.PeriodID)
	}
	if !round.AcceptsBetsAt(s.clock.Now()) {
		return nil, nil, fmt.Errorf("%w: %s", entities.ErrRoundClosing, req.PeriodID)
	}

	if _, err := s.balanceService.Debit(ctx, interfaces.BalanceMutation{
		UserID:          req.UserID,
		Amount:          req.Amount,
		TransactionType: entities.TransactionTypeBetPlaced,
		Metadata: map[string]any{
			"round_id":  round.ID,
			"period":    round.Period,
			"bet_type":  selection.Type(),
			"bet_value": selection.Value(),
		},
	}); err != nil {
		return nil, nil, err
	}

	bet := entities.NewBet(req.UserID, round.ID, selection, req.Amount)
	if err := s.betRepo.Create(ctx, bet); err != nil {
		return nil, nil, fmt.Errorf("failed to create bet: %w", err)
	}

	if err := s.roundRepo.IncrementCounters(ctx, round.ID, req.Amount); err != nil {
		return nil, nil, fmt.Errorf("failed to update round counters: %w", err)
	}

	if err := s.eventPublisher.Publish(events.BetPlacedEvent{
		BetID:    bet.ID,
		UserID:   bet.UserID,
		RoundID:  bet.PeriodID,
		BetType:  bet.BetType,
		BetValue: bet.BetValue,
		Amount:   bet.Amount,
	}); err != nil {
		log.WithError(err).Error("Failed to publish bet placed event")
	}

	log.WithFields(log.Fields{
		"betID":       bet.ID,
		"userID":      bet.UserID,
		"roundID":     round.ID,
		"duration":    round.Duration,
		"betType":     bet.BetType,
		"betValue":    bet.BetValue,
		"amount":      bet.Amount,
		"totalAmount": bet.TotalAmount,
	}).Info("Bet placed")

	return bet, round, nil
}

// ExposureByRound aggregates stakes per bet value
func (s *bettingService) ExposureByRound(ctx context.Context, periodID string) (*entities.Exposure, error) {
	exposure, err := s.betRepo.GetExposure(ctx, periodID)
	if err != nil {
		return nil, fmt.Errorf("failed to get exposure: %w", err)
	}
	return exposure, nil
}
