package services

import (
	"context"
	"fmt"
	"time"

	"colorgame/domain/entities"
	"colorgame/domain/events"
	"colorgame/domain/interfaces"

	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"
)

// roundService implements the round store
type roundService struct {
	roundRepo      interfaces.RoundRepository
	eventPublisher interfaces.EventPublisher
	clock          interfaces.Clock
}

// NewRoundService creates a new round service
func NewRoundService(
	roundRepo interfaces.RoundRepository,
	eventPublisher interfaces.EventPublisher,
	clock interfaces.Clock,
) interfaces.RoundService {
	return &roundService{
		roundRepo:      roundRepo,
		eventPublisher: eventPublisher,
		clock:          clock,
	}
}

// Create opens a new round ending one bucket length from now
func (s *roundService) Create(ctx context.Context, duration entities.Duration) (*entities.Round, error) {
	if !duration.IsValid() {
		return nil, fmt.Errorf("unknown duration bucket %q", duration)
	}

	now := s.clock.Now()
	round := &entities.Round{
		ID:        uuid.NewString(),
		Period:    entities.NewPeriodCode(now, duration),
		Duration:  duration,
		EndTime:   now.Add(duration.Length()),
		Active:    true,
		CreatedAt: now,
	}

	if err := s.roundRepo.Create(ctx, round); err != nil {
		return nil, fmt.Errorf("failed to create round: %w", err)
	}

	if err := s.eventPublisher.Publish(events.RoundCreatedEvent{
		RoundID:  round.ID,
		Period:   round.Period,
		Duration: round.Duration,
		EndTime:  round.EndTime,
	}); err != nil {
		log.WithError(err).Error("Failed to publish round created event")
	}

	log.WithFields(log.Fields{
		"roundID":  round.ID,
		"period":   round.Period,
		"duration": round.Duration,
		"endTime":  round.EndTime,
	}).Info("Round created")

	return round, nil
}

// StartAll deactivates any round still active and opens a round per bucket.
// Callers settle abandoned rounds first; a round deactivated here leaves its
// bets unsettled.
func (s *roundService) StartAll(ctx context.Context, durations []entities.Duration) ([]*entities.Round, error) {
	abandoned, err := s.roundRepo.DeactivateAll(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to deactivate rounds: %w", err)
	}
	if abandoned > 0 {
		log.WithField("count", abandoned).Warn("Deactivated rounds that were not settled before restart")
	}

	rounds := make([]*entities.Round, 0, len(durations))
	for _, d := range durations {
		round, err := s.Create(ctx, d)
		if err != nil {
			return nil, err
		}
		rounds = append(rounds, round)
	}

	return rounds, nil
}

// EnsureActive opens a round for a bucket that has none
func (s *roundService) EnsureActive(ctx context.Context, duration entities.Duration) (*entities.Round, bool, error) {
	active, err := s.roundRepo.GetActive(ctx, duration)
	if err != nil {
		return nil, false, fmt.Errorf("failed to get active round: %w", err)
	}
	if active != nil {
		return active, false, nil
	}

	round, err := s.Create(ctx, duration)
	if err != nil {
		return nil, false, err
	}
	return round, true, nil
}

func (s *roundService) GetActive(ctx context.Context, duration entities.Duration) (*entities.Round, error) {
	return s.roundRepo.GetActive(ctx, duration)
}

func (s *roundService) GetByID(ctx context.Context, id string) (*entities.Round, error) {
	return s.roundRepo.GetByID(ctx, id)
}

func (s *roundService) GetActiveList(ctx context.Context) ([]*entities.Round, error) {
	return s.roundRepo.GetActiveList(ctx)
}

// GetOverdue returns active rounds whose end time passed more than grace ago
func (s *roundService) GetOverdue(ctx context.Context, grace time.Duration) ([]*entities.Round, error) {
	return s.roundRepo.GetOverdue(ctx, s.clock.Now().Add(-grace))
}
