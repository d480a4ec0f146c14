package application

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"colorgame/domain/entities"
	"colorgame/domain/interfaces"
	"colorgame/domain/services"
	"colorgame/infrastructure/observability"

	log "github.com/sirupsen/logrus"
	"golang.org/x/sync/singleflight"
)

// GlobalScope addresses the global manipulation flag instead of a round
const GlobalScope = "global"

// conflictBackoff is the pause before a conflicted resolve is retried
const conflictBackoff = 50 * time.Millisecond

// EngineOptions carries the game settings the engine needs
type EngineOptions struct {
	Durations         []entities.Duration
	SettlementRetries int
	ReconcileGrace    time.Duration
}

// GameEngine owns the round lifecycle of one process: it opens rounds, arms
// their timers, resolves them and collapses duplicate local triggers. The
// round row lock remains the authority across processes.
type GameEngine struct {
	uowFactory UnitOfWorkFactory
	generator  interfaces.OutcomeGenerator
	payout     *services.PayoutCalculator
	policy     *services.ManipulationPolicy
	clock      interfaces.Clock
	metrics    *observability.MetricsProvider
	opts       EngineOptions
	scheduler  *RoundScheduler
	resolves   singleflight.Group

	mu      sync.RWMutex
	baseCtx context.Context
}

// NewGameEngine creates a game engine. metrics may be nil.
func NewGameEngine(
	uowFactory UnitOfWorkFactory,
	generator interfaces.OutcomeGenerator,
	payout *services.PayoutCalculator,
	policy *services.ManipulationPolicy,
	clock interfaces.Clock,
	metrics *observability.MetricsProvider,
	opts EngineOptions,
) *GameEngine {
	if len(opts.Durations) == 0 {
		opts.Durations = entities.AllDurations
	}
	if opts.SettlementRetries < 0 {
		opts.SettlementRetries = 0
	}

	e := &GameEngine{
		uowFactory: uowFactory,
		generator:  generator,
		payout:     payout,
		policy:     policy,
		clock:      clock,
		metrics:    metrics,
		opts:       opts,
		baseCtx:    context.Background(),
	}
	e.scheduler = NewRoundScheduler(clock, e.onRoundEnd)
	return e
}

// Start settles rounds left by a previous process and opens a fresh round
// per bucket. ctx bounds every resolve triggered by a timer.
func (e *GameEngine) Start(ctx context.Context) ([]*entities.Round, error) {
	e.mu.Lock()
	e.baseCtx = ctx
	e.mu.Unlock()

	return e.StartAll(ctx)
}

// Stop cancels every pending timer and waits for resolves already started by
// a timer to finish
func (e *GameEngine) Stop() {
	e.scheduler.Stop()
	log.Info("Game engine stopped")
}

// Scheduler exposes the round timers
func (e *GameEngine) Scheduler() *RoundScheduler {
	return e.scheduler
}

// StartAll settles every round left active by a previous process and opens
// one per configured bucket, in a single transaction. Abandoned rounds are
// closed without a successor so their bets are paid before the fresh rounds
// take the buckets.
func (e *GameEngine) StartAll(ctx context.Context) ([]*entities.Round, error) {
	var (
		rounds []*entities.Round
		closed []*interfaces.SettlementResult
	)
	err := e.inTransaction(ctx, func(uow UnitOfWork) error {
		abandoned, err := uow.RoundRepository().GetActiveList(ctx)
		if err != nil {
			return fmt.Errorf("failed to get abandoned rounds: %w", err)
		}

		settlement := e.settlementService(uow)
		for _, round := range abandoned {
			result, err := settlement.Close(ctx, round.ID)
			if errors.Is(err, entities.ErrSettlementAlreadyDone) {
				continue
			}
			if err != nil {
				return fmt.Errorf("failed to close abandoned round %s: %w", round.ID, err)
			}
			closed = append(closed, result)
		}

		rounds, err = e.roundService(uow).StartAll(ctx, e.opts.Durations)
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("failed to start rounds: %w", err)
	}

	for _, result := range closed {
		e.policy.Forget(result.Round.ID)
		log.WithFields(log.Fields{
			"roundID":     result.Round.ID,
			"period":      result.Round.Period,
			"betsSettled": result.BetsSettled,
			"betsFailed":  result.BetsFailed,
			"totalPaid":   result.TotalPaid,
		}).Warn("Settled round abandoned by a previous run")
	}

	e.scheduler.CancelAll()
	for _, round := range rounds {
		e.scheduler.Arm(round)
	}

	log.WithFields(log.Fields{
		"buckets":   len(rounds),
		"abandoned": len(closed),
	}).Info("Started rounds for all buckets")
	return rounds, nil
}

// PlaceBet records a bet in its own transaction
func (e *GameEngine) PlaceBet(ctx context.Context, req interfaces.PlaceBetRequest) (*entities.Bet, error) {
	var (
		bet   *entities.Bet
		round *entities.Round
	)
	err := e.inTransaction(ctx, func(uow UnitOfWork) error {
		balance := e.balanceService(uow)
		betting := services.NewBettingService(uow.RoundRepository(), uow.BetRepository(), balance, uow.EventBus(), e.clock)

		var err error
		bet, round, err = betting.PlaceBet(ctx, req)
		return err
	})
	if err != nil {
		reason := entities.RejectionReason(err)
		e.metrics.RecordBetRejected(reason)

		log.WithError(err).WithFields(log.Fields{
			"userID":   req.UserID,
			"roundID":  req.PeriodID,
			"betType":  req.BetType,
			"betValue": req.BetValue,
			"amount":   req.Amount,
			"reason":   reason,
		}).Info("Bet rejected")
		return nil, err
	}

	e.metrics.RecordBetPlaced(string(round.Duration))
	return bet, nil
}

// Resolve settles a round. Concurrent calls for the same round in this
// process share one settlement; a lock conflict is retried.
func (e *GameEngine) Resolve(ctx context.Context, periodID string) (*interfaces.SettlementResult, error) {
	v, err, shared := e.resolves.Do(periodID, func() (any, error) {
		return e.resolveWithRetry(ctx, periodID)
	})
	if shared {
		log.WithField("roundID", periodID).Debug("Joined in-flight resolve")
	}
	if err != nil {
		return nil, err
	}
	return v.(*interfaces.SettlementResult), nil
}

func (e *GameEngine) resolveWithRetry(ctx context.Context, periodID string) (*interfaces.SettlementResult, error) {
	started := time.Now()

	var (
		result *interfaces.SettlementResult
		err    error
	)
	for attempt := 0; attempt <= e.opts.SettlementRetries; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(conflictBackoff * time.Duration(attempt)):
			}
		}

		result, err = e.resolveOnce(ctx, periodID)
		if !errors.Is(err, entities.ErrConcurrencyConflict) {
			break
		}

		log.WithError(err).WithFields(log.Fields{
			"roundID": periodID,
			"attempt": attempt + 1,
		}).Warn("Round resolve hit a lock conflict")
	}

	if err != nil {
		if errors.Is(err, entities.ErrSettlementAlreadyDone) {
			e.policy.Forget(periodID)
			e.scheduler.Cancel(periodID)
			log.WithField("roundID", periodID).Info("Round already resolved")
		}
		return nil, err
	}

	e.policy.Forget(periodID)
	e.scheduler.Cancel(periodID)
	if result.Successor != nil {
		e.scheduler.Arm(result.Successor)
	}

	e.metrics.RecordRoundResolved(
		string(result.Round.Duration),
		result.Result.Manipulated,
		time.Since(started),
		result.TotalPaid,
		result.BetsFailed,
	)

	return result, nil
}

func (e *GameEngine) resolveOnce(ctx context.Context, periodID string) (*interfaces.SettlementResult, error) {
	var result *interfaces.SettlementResult
	err := e.inTransaction(ctx, func(uow UnitOfWork) error {
		var err error
		result, err = e.settlementService(uow).Resolve(ctx, periodID)
		return err
	})
	return result, err
}

// ForceEnd cancels the timer of a round and resolves it now
func (e *GameEngine) ForceEnd(ctx context.Context, periodID string) (*interfaces.SettlementResult, error) {
	e.scheduler.Cancel(periodID)

	result, err := e.Resolve(ctx, periodID)
	if err != nil {
		return nil, err
	}

	log.WithFields(log.Fields{
		"roundID": periodID,
		"period":  result.Round.Period,
	}).Info("Round force-ended")
	return result, nil
}

// ForceEndAll resolves every active round. Rounds resolved concurrently by a
// timer are skipped; other failures are joined into the returned error.
func (e *GameEngine) ForceEndAll(ctx context.Context) ([]*interfaces.SettlementResult, error) {
	active, err := e.ActiveRounds(ctx)
	if err != nil {
		return nil, err
	}

	return e.forceEndRounds(ctx, active)
}

func (e *GameEngine) forceEndRounds(ctx context.Context, rounds []*entities.Round) ([]*interfaces.SettlementResult, error) {
	var (
		results []*interfaces.SettlementResult
		errs    []error
	)
	for _, round := range rounds {
		result, err := e.ForceEnd(ctx, round.ID)
		if errors.Is(err, entities.ErrSettlementAlreadyDone) {
			continue
		}
		if err != nil {
			errs = append(errs, fmt.Errorf("round %s: %w", round.ID, err))
			continue
		}
		results = append(results, result)
	}
	return results, errors.Join(errs...)
}

// EnsureBuckets opens a round for every configured bucket that has none, and
// returns how many rounds were created
func (e *GameEngine) EnsureBuckets(ctx context.Context) (int, error) {
	created := 0
	var errs []error

	for _, duration := range e.opts.Durations {
		var (
			round *entities.Round
			isNew bool
		)
		err := e.inTransaction(ctx, func(uow UnitOfWork) error {
			var err error
			round, isNew, err = e.roundService(uow).EnsureActive(ctx, duration)
			return err
		})
		if errors.Is(err, entities.ErrBucketOccupied) {
			// a settlement opened the successor in the meantime
			continue
		}
		if err != nil {
			errs = append(errs, fmt.Errorf("bucket %s: %w", duration, err))
			continue
		}
		if isNew {
			created++
			e.scheduler.Arm(round)
			log.WithFields(log.Fields{
				"roundID":  round.ID,
				"duration": duration,
			}).Warn("Reconciliation opened a round for an empty bucket")
		}
	}

	return created, errors.Join(errs...)
}

// ArmUnarmed arms a timer for every active round this process is not
// tracking, and returns how many were armed
func (e *GameEngine) ArmUnarmed(ctx context.Context) (int, error) {
	active, err := e.ActiveRounds(ctx)
	if err != nil {
		return 0, err
	}

	armed := 0
	for _, round := range active {
		if e.scheduler.Arm(round) {
			armed++
		}
	}
	return armed, nil
}

// ForceEndOverdue resolves active rounds that ended more than the grace
// period ago, and returns how many were resolved
func (e *GameEngine) ForceEndOverdue(ctx context.Context) (int, error) {
	var overdue []*entities.Round
	err := e.inTransaction(ctx, func(uow UnitOfWork) error {
		var err error
		overdue, err = e.roundService(uow).GetOverdue(ctx, e.opts.ReconcileGrace)
		return err
	})
	if err != nil {
		return 0, fmt.Errorf("failed to get overdue rounds: %w", err)
	}

	for _, round := range overdue {
		log.WithFields(log.Fields{
			"roundID": round.ID,
			"endTime": round.EndTime,
		}).Warn("Force-ending overdue round")
	}

	results, err := e.forceEndRounds(ctx, overdue)
	return len(results), err
}

// ReplayFailures retries up to limit recorded settlement failures, each in
// its own transaction, and returns how many were resolved
func (e *GameEngine) ReplayFailures(ctx context.Context, limit int) (int, error) {
	var open []*entities.SettlementFailure
	err := e.inTransaction(ctx, func(uow UnitOfWork) error {
		var err error
		open, err = uow.SettlementFailureRepository().GetOpen(ctx, limit)
		return err
	})
	if err != nil {
		return 0, fmt.Errorf("failed to get settlement failures: %w", err)
	}

	resolved := 0
	var errs []error
	for _, failure := range open {
		var ok bool
		err := e.inTransaction(ctx, func(uow UnitOfWork) error {
			var err error
			ok, err = e.settlementService(uow).ReplayFailure(ctx, failure)
			return err
		})
		if err != nil {
			errs = append(errs, fmt.Errorf("failure %d: %w", failure.ID, err))
			continue
		}
		if ok {
			resolved++
		}
	}
	return resolved, errors.Join(errs...)
}

// SetManipulation sets the global flag when scope is "global", otherwise the
// override of the active round named by scope
func (e *GameEngine) SetManipulation(ctx context.Context, scope string, enabled bool) error {
	scope = strings.TrimSpace(scope)
	if strings.EqualFold(scope, GlobalScope) {
		e.policy.SetGlobal(enabled)
		log.WithField("enabled", enabled).Info("Global manipulation flag set")
		return nil
	}
	if scope == "" {
		return fmt.Errorf("%w: empty manipulation scope", entities.ErrValidation)
	}

	var round *entities.Round
	err := e.inTransaction(ctx, func(uow UnitOfWork) error {
		var err error
		round, err = uow.RoundRepository().GetByID(ctx, scope)
		return err
	})
	if err != nil {
		return fmt.Errorf("failed to get round: %w", err)
	}
	if round == nil || !round.Active {
		return fmt.Errorf("%w: %s", entities.ErrRoundNotOpen, scope)
	}

	e.policy.SetRound(round.ID, enabled)
	log.WithFields(log.Fields{
		"roundID": round.ID,
		"enabled": enabled,
	}).Info("Round manipulation override set")
	return nil
}

// ManipulationState returns the current manipulation flags
func (e *GameEngine) ManipulationState() services.ManipulationState {
	return e.policy.Snapshot()
}

// Exposure aggregates the stakes of a round per bet value
func (e *GameEngine) Exposure(ctx context.Context, periodID string) (*entities.Exposure, error) {
	var exposure *entities.Exposure
	err := e.inTransaction(ctx, func(uow UnitOfWork) error {
		round, err := uow.RoundRepository().GetByID(ctx, periodID)
		if err != nil {
			return fmt.Errorf("failed to get round: %w", err)
		}
		if round == nil {
			return fmt.Errorf("%w: %s", entities.ErrRoundNotFound, periodID)
		}

		betting := services.NewBettingService(uow.RoundRepository(), uow.BetRepository(), e.balanceService(uow), uow.EventBus(), e.clock)
		exposure, err = betting.ExposureByRound(ctx, round.ID)
		return err
	})
	if err != nil {
		return nil, err
	}
	return exposure, nil
}

// ActiveRounds returns every active round ordered by end time
func (e *GameEngine) ActiveRounds(ctx context.Context) ([]*entities.Round, error) {
	var rounds []*entities.Round
	err := e.inTransaction(ctx, func(uow UnitOfWork) error {
		var err error
		rounds, err = uow.RoundRepository().GetActiveList(ctx)
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("failed to get active rounds: %w", err)
	}
	return rounds, nil
}

// onRoundEnd is called by the scheduler when a round timer fires
func (e *GameEngine) onRoundEnd(periodID string) {
	e.mu.RLock()
	ctx := e.baseCtx
	e.mu.RUnlock()

	if ctx.Err() != nil {
		return
	}

	if _, err := e.Resolve(ctx, periodID); err != nil && !errors.Is(err, entities.ErrSettlementAlreadyDone) {
		log.WithError(err).WithField("roundID", periodID).Error("Failed to resolve round on timer, reconciliation will retry")
	}
}

// inTransaction runs fn in a fresh unit of work, committing on success
func (e *GameEngine) inTransaction(ctx context.Context, fn func(uow UnitOfWork) error) error {
	uow := e.uowFactory.Create()
	if err := uow.Begin(ctx); err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer uow.Rollback()

	if err := fn(uow); err != nil {
		return err
	}

	if err := uow.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

func (e *GameEngine) balanceService(uow UnitOfWork) interfaces.BalanceService {
	return services.NewBalanceService(uow.UserRepository(), uow.BalanceHistoryRepository(), uow.EventBus())
}

func (e *GameEngine) roundService(uow UnitOfWork) interfaces.RoundService {
	return services.NewRoundService(uow.RoundRepository(), uow.EventBus(), e.clock)
}

func (e *GameEngine) settlementService(uow UnitOfWork) interfaces.SettlementService {
	return services.NewSettlementService(
		uow.RoundRepository(),
		uow.BetRepository(),
		uow.GameResultRepository(),
		uow.SettlementFailureRepository(),
		e.roundService(uow),
		e.balanceService(uow),
		e.generator,
		e.policy,
		e.payout,
		uow.Savepoints(),
		uow.EventBus(),
		e.clock,
	)
}
