package application_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"colorgame/application"
	"colorgame/database"
	"colorgame/domain/entities"
	"colorgame/domain/events"
	"colorgame/domain/interfaces"
	"colorgame/domain/services"
	"colorgame/domain/testhelpers"
	"colorgame/infrastructure"
	"colorgame/repository/testutil"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestEngine(t *testing.T, db *database.DB, clock interfaces.Clock, rng interfaces.RandomSource, publisher interfaces.EventPublisher) *application.GameEngine {
	t.Helper()

	payout, err := services.NewPayoutCalculator(decimal.Zero)
	require.NoError(t, err)

	engine := application.NewGameEngine(
		infrastructure.NewUnitOfWorkFactory(db, publisher, 5*time.Second),
		services.NewOutcomeGenerator(entities.StandardColorRule{}, rng),
		payout,
		services.NewManipulationPolicy(false),
		clock,
		nil,
		application.EngineOptions{
			Durations:         entities.AllDurations,
			SettlementRetries: 2,
			ReconcileGrace:    5 * time.Second,
		},
	)
	t.Cleanup(engine.Stop)
	return engine
}

func roundOf(t *testing.T, rounds []*entities.Round, duration entities.Duration) *entities.Round {
	t.Helper()

	for _, r := range rounds {
		if r.Duration == duration {
			return r
		}
	}
	t.Fatalf("no round for bucket %s", duration)
	return nil
}

func betResult(t *testing.T, db *database.DB, betID int64) (*string, int64) {
	t.Helper()

	var (
		result    *string
		winAmount int64
	)
	err := db.QueryRow(context.Background(),
		`SELECT result, win_amount FROM bets WHERE id = $1`, betID).Scan(&result, &winAmount)
	require.NoError(t, err)
	return result, winAmount
}

func countGameResults(t *testing.T, db *database.DB, periodID string) int {
	t.Helper()

	var count int
	err := db.QueryRow(context.Background(),
		`SELECT COUNT(*) FROM game_results WHERE period_id = $1`, periodID).Scan(&count)
	require.NoError(t, err)
	return count
}

func assertOneActivePerBucket(t *testing.T, db *database.DB) {
	t.Helper()

	for _, d := range entities.AllDurations {
		assert.Equal(t, 1, testutil.CountActiveRounds(t, db, d), "bucket %s", d)
	}
}

// assertResultsMatchRoundState checks that a bet is settled exactly when its round is closed
func assertResultsMatchRoundState(t *testing.T, db *database.DB) {
	t.Helper()

	var mismatched int
	err := db.QueryRow(context.Background(), `
		SELECT COUNT(*)
		FROM bets b JOIN rounds r ON r.id = b.period_id
		WHERE (b.result IS NOT NULL) = r.active`).Scan(&mismatched)
	require.NoError(t, err)
	assert.Zero(t, mismatched)
}

func TestGameEngine_StartAll(t *testing.T) {
	t.Parallel()
	testDB := testutil.SetupTestDatabase(t)

	ctx := context.Background()
	publisher := &testhelpers.RecordingPublisher{}
	engine := newTestEngine(t, testDB.DB, services.SystemClock{}, services.CryptoRandom{}, publisher)

	first, err := engine.Start(ctx)
	require.NoError(t, err)
	require.Len(t, first, len(entities.AllDurations))
	assertOneActivePerBucket(t, testDB.DB)
	assert.Equal(t, len(entities.AllDurations), engine.Scheduler().ArmedCount())
	assert.Len(t, publisher.OfType(events.EventTypeRoundCreated), len(entities.AllDurations))

	// a restart abandons the previous rounds
	second, err := engine.StartAll(ctx)
	require.NoError(t, err)
	assertOneActivePerBucket(t, testDB.DB)

	for _, r := range first {
		assert.False(t, engine.Scheduler().IsArmed(r.ID))
	}
	for _, r := range second {
		assert.True(t, engine.Scheduler().IsArmed(r.ID))
	}
}

func TestGameEngine_WinningBetScenario(t *testing.T) {
	t.Parallel()
	testDB := testutil.SetupTestDatabase(t)

	ctx := context.Background()
	t0 := time.Now().UTC().Truncate(time.Millisecond)
	clock := testhelpers.NewFixedClock(t0)
	publisher := &testhelpers.RecordingPublisher{}
	// draws number 7: black, big
	engine := newTestEngine(t, testDB.DB, clock, testhelpers.NewScriptedRandom([]int{7}, nil), publisher)

	rounds, err := engine.Start(ctx)
	require.NoError(t, err)
	round := roundOf(t, rounds, entities.Duration30s)
	assert.Equal(t, t0.Add(30*time.Second), round.EndTime)

	testutil.InsertUser(t, testDB.DB, 1, 100)
	clock.Advance(5 * time.Second)

	bet, err := engine.PlaceBet(ctx, interfaces.PlaceBetRequest{
		UserID:   1,
		PeriodID: round.ID,
		BetType:  "number",
		BetValue: "7",
		Amount:   10,
	})
	require.NoError(t, err)
	assert.Equal(t, int64(90), bet.TotalAmount)
	assert.Equal(t, int64(90), testutil.Wallet(t, testDB.DB, 1))

	active, err := engine.ActiveRounds(ctx)
	require.NoError(t, err)
	current := roundOf(t, active, entities.Duration30s)
	assert.Equal(t, int64(1), current.TotalBets)
	assert.Equal(t, int64(10), current.TotalBetAmount)

	clock.Advance(25 * time.Second)
	result, err := engine.Resolve(ctx, round.ID)
	require.NoError(t, err)

	assert.Equal(t, entities.Outcome{Number: 7, Color: entities.ColorBlack, Size: entities.SizeBig}, result.Result.Outcome())
	assert.Equal(t, 1, result.BetsSettled)
	assert.Equal(t, int64(180), result.TotalPaid)
	require.NotNil(t, result.Successor)
	assert.True(t, engine.Scheduler().IsArmed(result.Successor.ID))
	assert.False(t, engine.Scheduler().IsArmed(round.ID))

	settled, winAmount := betResult(t, testDB.DB, bet.ID)
	require.NotNil(t, settled)
	assert.Equal(t, "win", *settled)
	assert.Equal(t, int64(180), winAmount)
	assert.Equal(t, int64(270), testutil.Wallet(t, testDB.DB, 1))

	resolved := publisher.OfType(events.EventTypeRoundResolved)
	require.Len(t, resolved, 1)
	assert.Equal(t, result.Successor.ID, resolved[0].(events.RoundResolvedEvent).SuccessorID)

	assertOneActivePerBucket(t, testDB.DB)
	assertResultsMatchRoundState(t, testDB.DB)
}

func TestGameEngine_LosingBetScenario(t *testing.T) {
	t.Parallel()
	testDB := testutil.SetupTestDatabase(t)

	ctx := context.Background()
	clock := testhelpers.NewFixedClock(time.Now().UTC())
	engine := newTestEngine(t, testDB.DB, clock, testhelpers.NewScriptedRandom([]int{3}, nil), &testhelpers.RecordingPublisher{})

	rounds, err := engine.Start(ctx)
	require.NoError(t, err)
	round := roundOf(t, rounds, entities.Duration30s)

	testutil.InsertUser(t, testDB.DB, 1, 100)
	clock.Advance(5 * time.Second)

	bet, err := engine.PlaceBet(ctx, interfaces.PlaceBetRequest{
		UserID: 1, PeriodID: round.ID, BetType: "number", BetValue: "7", Amount: 10,
	})
	require.NoError(t, err)

	clock.Advance(25 * time.Second)
	result, err := engine.Resolve(ctx, round.ID)
	require.NoError(t, err)
	assert.Equal(t, 3, result.Result.Number)
	assert.Zero(t, result.TotalPaid)

	settled, winAmount := betResult(t, testDB.DB, bet.ID)
	require.NotNil(t, settled)
	assert.Equal(t, "lose", *settled)
	assert.Zero(t, winAmount)
	assert.Equal(t, int64(90), testutil.Wallet(t, testDB.DB, 1))
}

func TestGameEngine_RejectionLeavesNoTrace(t *testing.T) {
	t.Parallel()
	testDB := testutil.SetupTestDatabase(t)

	ctx := context.Background()
	engine := newTestEngine(t, testDB.DB, services.SystemClock{}, services.CryptoRandom{}, &testhelpers.RecordingPublisher{})

	rounds, err := engine.Start(ctx)
	require.NoError(t, err)
	round := roundOf(t, rounds, entities.Duration1m)

	testutil.InsertUser(t, testDB.DB, 1, 100)
	_, err = engine.Resolve(ctx, round.ID)
	require.NoError(t, err)

	for _, periodID := range []string{round.ID, "no-such-round"} {
		for i := 0; i < 3; i++ {
			_, err := engine.PlaceBet(ctx, interfaces.PlaceBetRequest{
				UserID: 1, PeriodID: periodID, BetType: "color", BetValue: "red", Amount: 10,
			})
			assert.ErrorIs(t, err, entities.ErrRoundNotOpen)
			assert.Equal(t, "round_not_open", entities.RejectionReason(err))
		}
	}

	assert.Equal(t, int64(100), testutil.Wallet(t, testDB.DB, 1))

	var totalBets, totalAmount int64
	err = testDB.DB.QueryRow(ctx,
		`SELECT total_bets, total_bet_amount FROM rounds WHERE id = $1`, round.ID).Scan(&totalBets, &totalAmount)
	require.NoError(t, err)
	assert.Zero(t, totalBets)
	assert.Zero(t, totalAmount)
}

func TestGameEngine_NoDoubleResolution(t *testing.T) {
	t.Parallel()
	testDB := testutil.SetupTestDatabase(t)

	ctx := context.Background()
	publisher := &testhelpers.RecordingPublisher{}
	// two engines stand in for two processes sharing the database
	engineA := newTestEngine(t, testDB.DB, services.SystemClock{}, services.CryptoRandom{}, publisher)
	engineB := newTestEngine(t, testDB.DB, services.SystemClock{}, services.CryptoRandom{}, publisher)

	rounds, err := engineA.Start(ctx)
	require.NoError(t, err)
	round := roundOf(t, rounds, entities.Duration30s)

	var (
		wg        sync.WaitGroup
		mu        sync.Mutex
		successes int
		benign    int
	)
	for _, engine := range []*application.GameEngine{engineA, engineA, engineB, engineB} {
		wg.Add(1)
		go func(engine *application.GameEngine) {
			defer wg.Done()
			_, err := engine.Resolve(ctx, round.ID)

			mu.Lock()
			defer mu.Unlock()
			switch {
			case err == nil:
				successes++
			case errors.Is(err, entities.ErrSettlementAlreadyDone):
				benign++
			default:
				t.Errorf("unexpected resolve error: %v", err)
			}
		}(engine)
	}
	wg.Wait()

	// callers sharing an in-flight resolve all see its result
	assert.GreaterOrEqual(t, successes, 1)
	assert.Equal(t, 4, successes+benign)
	assert.Equal(t, 1, countGameResults(t, testDB.DB, round.ID))
	assert.Equal(t, 1, testutil.CountActiveRounds(t, testDB.DB, entities.Duration30s))
	assert.Len(t, publisher.OfType(events.EventTypeRoundResolved), 1)
}

func TestGameEngine_OneActiveRoundPerBucketUnderConcurrency(t *testing.T) {
	t.Parallel()
	testDB := testutil.SetupTestDatabase(t)

	ctx := context.Background()
	engineA := newTestEngine(t, testDB.DB, services.SystemClock{}, services.CryptoRandom{}, infrastructure.NewLogEventPublisher(nil))
	engineB := newTestEngine(t, testDB.DB, services.SystemClock{}, services.CryptoRandom{}, infrastructure.NewLogEventPublisher(nil))

	_, err := engineA.Start(ctx)
	require.NoError(t, err)

	for cycle := 0; cycle < 5; cycle++ {
		var wg sync.WaitGroup
		for _, engine := range []*application.GameEngine{engineA, engineB} {
			wg.Add(1)
			go func(engine *application.GameEngine) {
				defer wg.Done()
				_, err := engine.ForceEndAll(ctx)
				assert.NoError(t, err)
			}(engine)
		}
		wg.Wait()

		assertOneActivePerBucket(t, testDB.DB)
	}
}

func TestGameEngine_BetJustBeforeEnd(t *testing.T) {
	t.Parallel()
	testDB := testutil.SetupTestDatabase(t)

	ctx := context.Background()
	t0 := time.Now().UTC()
	clock := testhelpers.NewFixedClock(t0)
	engine := newTestEngine(t, testDB.DB, clock, services.CryptoRandom{}, infrastructure.NewLogEventPublisher(nil))

	rounds, err := engine.Start(ctx)
	require.NoError(t, err)
	round := roundOf(t, rounds, entities.Duration30s)

	testutil.InsertUser(t, testDB.DB, 1, 1000)
	clock.Set(round.EndTime.Add(-time.Millisecond))

	var (
		wg     sync.WaitGroup
		bet    *entities.Bet
		betErr error
	)
	wg.Add(2)
	go func() {
		defer wg.Done()
		bet, betErr = engine.PlaceBet(ctx, interfaces.PlaceBetRequest{
			UserID: 1, PeriodID: round.ID, BetType: "size", BetValue: "big", Amount: 100,
		})
	}()
	go func() {
		defer wg.Done()
		_, err := engine.Resolve(ctx, round.ID)
		assert.NoError(t, err)
	}()
	wg.Wait()

	if betErr != nil {
		assert.ErrorIs(t, betErr, entities.ErrRoundNotOpen)
		assert.Equal(t, int64(1000), testutil.Wallet(t, testDB.DB, 1))
		return
	}

	// accepted means settled exactly once
	settled, winAmount := betResult(t, testDB.DB, bet.ID)
	require.NotNil(t, settled)
	assert.Equal(t, int64(900)+winAmount, testutil.Wallet(t, testDB.DB, 1))
	assertResultsMatchRoundState(t, testDB.DB)
}

func TestGameEngine_BalanceConservation(t *testing.T) {
	t.Parallel()
	testDB := testutil.SetupTestDatabase(t)

	ctx := context.Background()
	clock := testhelpers.NewFixedClock(time.Now().UTC())
	engine := newTestEngine(t, testDB.DB, clock, services.CryptoRandom{}, infrastructure.NewLogEventPublisher(nil))

	rounds, err := engine.Start(ctx)
	require.NoError(t, err)
	round := roundOf(t, rounds, entities.Duration3m)

	bystander := int64(99)
	testutil.InsertUser(t, testDB.DB, bystander, 500)

	requests := []interfaces.PlaceBetRequest{
		{UserID: 1, BetType: "color", BetValue: "red", Amount: 20},
		{UserID: 1, BetType: "number", BetValue: "4", Amount: 5},
		{UserID: 2, BetType: "color", BetValue: "green", Amount: 3},
		{UserID: 2, BetType: "size", BetValue: "small", Amount: 40},
		{UserID: 3, BetType: "color", BetValue: "black", Amount: 15},
	}
	for _, id := range []int64{1, 2, 3} {
		testutil.InsertUser(t, testDB.DB, id, 100)
	}

	var totalStaked int64
	for _, req := range requests {
		req.PeriodID = round.ID
		bet, err := engine.PlaceBet(ctx, req)
		require.NoError(t, err)
		totalStaked += bet.TotalAmount
	}

	result, err := engine.Resolve(ctx, round.ID)
	require.NoError(t, err)

	assert.LessOrEqual(t, result.TotalPaid, totalStaked*2)
	assert.Equal(t, len(requests), result.BetsSettled)
	assert.Equal(t, int64(500), testutil.Wallet(t, testDB.DB, bystander))

	var walletSum int64
	err = testDB.DB.QueryRow(ctx, `SELECT SUM(wallet) FROM users WHERE id IN (1, 2, 3)`).Scan(&walletSum)
	require.NoError(t, err)

	var staked int64
	for _, req := range requests {
		staked += req.Amount
	}
	assert.Equal(t, 300-staked+result.TotalPaid, walletSum)
	assertResultsMatchRoundState(t, testDB.DB)
}

func TestGameEngine_ManipulatedRound(t *testing.T) {
	t.Parallel()
	testDB := testutil.SetupTestDatabase(t)

	ctx := context.Background()
	clock := testhelpers.NewFixedClock(time.Now().UTC())
	engine := newTestEngine(t, testDB.DB, clock, services.CryptoRandom{}, infrastructure.NewLogEventPublisher(nil))

	rounds, err := engine.Start(ctx)
	require.NoError(t, err)
	round := roundOf(t, rounds, entities.Duration5m)

	testutil.InsertUser(t, testDB.DB, 1, 1000)
	for _, req := range []interfaces.PlaceBetRequest{
		{UserID: 1, PeriodID: round.ID, BetType: "number", BetValue: "0", Amount: 500},
		{UserID: 1, PeriodID: round.ID, BetType: "number", BetValue: "1", Amount: 10},
	} {
		_, err := engine.PlaceBet(ctx, req)
		require.NoError(t, err)
	}

	require.NoError(t, engine.SetManipulation(ctx, round.ID, true))
	assert.True(t, engine.ManipulationState().Overrides[round.ID])

	result, err := engine.Resolve(ctx, round.ID)
	require.NoError(t, err)

	assert.True(t, result.Result.Manipulated)
	assert.Equal(t, 2, result.Result.Number)
	assert.Equal(t, entities.ColorRed, result.Result.Color)
	assert.Zero(t, result.TotalPaid)
	assert.NotContains(t, engine.ManipulationState().Overrides, round.ID)
}

func TestGameEngine_SetManipulation(t *testing.T) {
	t.Parallel()
	testDB := testutil.SetupTestDatabase(t)

	ctx := context.Background()
	engine := newTestEngine(t, testDB.DB, services.SystemClock{}, services.CryptoRandom{}, infrastructure.NewLogEventPublisher(nil))

	rounds, err := engine.Start(ctx)
	require.NoError(t, err)
	round := roundOf(t, rounds, entities.Duration30s)

	require.NoError(t, engine.SetManipulation(ctx, "global", true))
	assert.True(t, engine.ManipulationState().Global)

	require.NoError(t, engine.SetManipulation(ctx, round.ID, false))
	assert.Equal(t, map[string]bool{round.ID: false}, engine.ManipulationState().Overrides)

	assert.ErrorIs(t, engine.SetManipulation(ctx, "no-such-round", true), entities.ErrRoundNotOpen)
	assert.ErrorIs(t, engine.SetManipulation(ctx, "  ", true), entities.ErrValidation)
}

func TestGameEngine_Reconciliation(t *testing.T) {
	t.Parallel()
	testDB := testutil.SetupTestDatabase(t)

	ctx := context.Background()
	clock := testhelpers.NewFixedClock(time.Now().UTC())
	engine := newTestEngine(t, testDB.DB, clock, services.CryptoRandom{}, infrastructure.NewLogEventPublisher(nil))

	rounds, err := engine.Start(ctx)
	require.NoError(t, err)

	t.Run("empty bucket gets a round", func(t *testing.T) {
		_, err := testDB.DB.Exec(ctx, `UPDATE rounds SET active = false WHERE duration = '1m'`)
		require.NoError(t, err)

		created, err := engine.EnsureBuckets(ctx)
		require.NoError(t, err)
		assert.Equal(t, 1, created)
		assertOneActivePerBucket(t, testDB.DB)

		created, err = engine.EnsureBuckets(ctx)
		require.NoError(t, err)
		assert.Zero(t, created)
	})

	t.Run("overdue round is force-ended", func(t *testing.T) {
		stale := roundOf(t, rounds, entities.Duration30s)
		clock.Advance(36 * time.Second)

		forced, err := engine.ForceEndOverdue(ctx)
		require.NoError(t, err)
		assert.Equal(t, 1, forced)
		assert.Equal(t, 1, countGameResults(t, testDB.DB, stale.ID))
		assertOneActivePerBucket(t, testDB.DB)
	})

	t.Run("untracked rounds get timers", func(t *testing.T) {
		fresh := newTestEngine(t, testDB.DB, clock, services.CryptoRandom{}, infrastructure.NewLogEventPublisher(nil))

		armed, err := fresh.ArmUnarmed(ctx)
		require.NoError(t, err)
		assert.Equal(t, len(entities.AllDurations), armed)

		armed, err = fresh.ArmUnarmed(ctx)
		require.NoError(t, err)
		assert.Zero(t, armed)
	})
}

func TestGameEngine_ReplayFailures(t *testing.T) {
	t.Parallel()
	testDB := testutil.SetupTestDatabase(t)

	ctx := context.Background()
	clock := testhelpers.NewFixedClock(time.Now().UTC())
	// draws number 7 for the round
	engine := newTestEngine(t, testDB.DB, clock, testhelpers.NewScriptedRandom([]int{7}, nil), infrastructure.NewLogEventPublisher(nil))

	rounds, err := engine.Start(ctx)
	require.NoError(t, err)
	round := roundOf(t, rounds, entities.Duration30s)

	testutil.InsertUser(t, testDB.DB, 1, 100)

	// a row no placement would write: settlement cannot parse it
	var betID int64
	err = testDB.DB.QueryRow(ctx, `
		INSERT INTO bets (user_id, period_id, bet_type, bet_value, amount, multiplier, total_amount)
		VALUES (1, $1, 'number', 'seven', 10, 9, 90)
		RETURNING id`, round.ID).Scan(&betID)
	require.NoError(t, err)

	result, err := engine.Resolve(ctx, round.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, result.BetsFailed)
	assert.NotNil(t, result.Successor)

	resolved, err := engine.ReplayFailures(ctx, 10)
	require.NoError(t, err)
	assert.Zero(t, resolved, "the bet still cannot be settled")

	var attempts int
	err = testDB.DB.QueryRow(ctx, `SELECT attempts FROM settlement_failures WHERE bet_id = $1`, betID).Scan(&attempts)
	require.NoError(t, err)
	assert.Greater(t, attempts, 2)

	_, err = testDB.DB.Exec(ctx, `UPDATE bets SET bet_value = '7' WHERE id = $1`, betID)
	require.NoError(t, err)

	resolved, err = engine.ReplayFailures(ctx, 10)
	require.NoError(t, err)
	assert.Equal(t, 1, resolved)

	settled, winAmount := betResult(t, testDB.DB, betID)
	require.NotNil(t, settled)
	assert.Equal(t, "win", *settled)
	assert.Equal(t, int64(180), winAmount)
	assert.Equal(t, int64(280), testutil.Wallet(t, testDB.DB, 1))
	assertResultsMatchRoundState(t, testDB.DB)
}

func TestGameEngine_StartAllSettlesAbandonedRounds(t *testing.T) {
	t.Parallel()
	testDB := testutil.SetupTestDatabase(t)

	ctx := context.Background()
	previous := newTestEngine(t, testDB.DB, services.SystemClock{}, services.CryptoRandom{}, infrastructure.NewLogEventPublisher(nil))

	rounds, err := previous.Start(ctx)
	require.NoError(t, err)
	abandoned := roundOf(t, rounds, entities.Duration1m)

	testutil.InsertUser(t, testDB.DB, 1, 100)
	bet, err := previous.PlaceBet(ctx, interfaces.PlaceBetRequest{
		UserID: 1, PeriodID: abandoned.ID, BetType: "color", BetValue: "red", Amount: 10,
	})
	require.NoError(t, err)
	previous.Stop()

	// the next process takes over the buckets
	publisher := &testhelpers.RecordingPublisher{}
	next := newTestEngine(t, testDB.DB, services.SystemClock{}, services.CryptoRandom{}, publisher)
	fresh, err := next.StartAll(ctx)
	require.NoError(t, err)
	require.Len(t, fresh, len(entities.AllDurations))

	settled, winAmount := betResult(t, testDB.DB, bet.ID)
	require.NotNil(t, settled, "abandoned bets are settled before the buckets reopen")
	assert.Equal(t, int64(90)+winAmount, testutil.Wallet(t, testDB.DB, 1))
	assert.Equal(t, 1, countGameResults(t, testDB.DB, abandoned.ID))

	resolved := publisher.OfType(events.EventTypeRoundResolved)
	require.Len(t, resolved, len(entities.AllDurations))
	for _, e := range resolved {
		assert.Empty(t, e.(events.RoundResolvedEvent).SuccessorID)
	}

	assertOneActivePerBucket(t, testDB.DB)
	assertResultsMatchRoundState(t, testDB.DB)
	assert.False(t, next.Scheduler().IsArmed(abandoned.ID))
}

func TestGameEngine_Exposure(t *testing.T) {
	t.Parallel()
	testDB := testutil.SetupTestDatabase(t)

	ctx := context.Background()
	engine := newTestEngine(t, testDB.DB, services.SystemClock{}, services.CryptoRandom{}, infrastructure.NewLogEventPublisher(nil))

	rounds, err := engine.Start(ctx)
	require.NoError(t, err)
	round := roundOf(t, rounds, entities.Duration3m)

	testutil.InsertUser(t, testDB.DB, 1, 1000)
	testutil.InsertUser(t, testDB.DB, 2, 1000)
	for _, req := range []interfaces.PlaceBetRequest{
		{UserID: 1, BetType: "number", BetValue: "4", Amount: 30},
		{UserID: 2, BetType: "number", BetValue: "4", Amount: 5},
		{UserID: 1, BetType: "color", BetValue: "green", Amount: 12},
		{UserID: 2, BetType: "size", BetValue: "small", Amount: 8},
	} {
		req.PeriodID = round.ID
		_, err := engine.PlaceBet(ctx, req)
		require.NoError(t, err)
	}

	exposure, err := engine.Exposure(ctx, round.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(35), exposure.Numbers[4])
	assert.Equal(t, int64(12), exposure.Colors[entities.ColorGreen])
	assert.Equal(t, int64(8), exposure.Sizes[entities.SizeSmall])
	assert.Zero(t, exposure.Sizes[entities.SizeBig])

	_, err = engine.Exposure(ctx, "no-such-round")
	assert.ErrorIs(t, err, entities.ErrRoundNotFound)
}

// A debit in one bucket races the settlement credit of the same user in
// another; the wallet and its history must account for both every time.
func TestGameEngine_WalletExclusiveAcrossBuckets(t *testing.T) {
	t.Parallel()
	testDB := testutil.SetupTestDatabase(t)

	ctx := context.Background()
	engine := newTestEngine(t, testDB.DB, services.SystemClock{}, services.CryptoRandom{}, infrastructure.NewLogEventPublisher(nil))

	rounds, err := engine.Start(ctx)
	require.NoError(t, err)
	betting := roundOf(t, rounds, entities.Duration5m)
	settling := roundOf(t, rounds, entities.Duration30s)

	const (
		userID = int64(1)
		start  = int64(100000)
		stake  = int64(10)
	)
	testutil.InsertUser(t, testDB.DB, userID, start)

	var staked, won int64
	for i := 0; i < 25; i++ {
		// red and green stakes win on every draw that is not black
		for _, value := range []string{"red", "green"} {
			_, err := engine.PlaceBet(ctx, interfaces.PlaceBetRequest{
				UserID: userID, PeriodID: settling.ID, BetType: "color", BetValue: value, Amount: stake,
			})
			require.NoError(t, err)
			staked += stake
		}

		var (
			wg         sync.WaitGroup
			betErr     error
			result     *interfaces.SettlementResult
			resolveErr error
		)
		wg.Add(2)
		go func() {
			defer wg.Done()
			_, betErr = engine.PlaceBet(ctx, interfaces.PlaceBetRequest{
				UserID: userID, PeriodID: betting.ID, BetType: "size", BetValue: "big", Amount: stake,
			})
		}()
		go func() {
			defer wg.Done()
			result, resolveErr = engine.ForceEnd(ctx, settling.ID)
		}()
		wg.Wait()

		require.NoError(t, betErr)
		require.NoError(t, resolveErr)
		require.NotNil(t, result.Successor)
		staked += stake
		won += result.TotalPaid
		settling = result.Successor
	}

	final := testutil.Wallet(t, testDB.DB, userID)
	assert.Equal(t, start-staked+won, final)
	assert.Positive(t, won)

	history := testutil.BalanceHistory(t, testDB.DB, userID)
	require.NotEmpty(t, history)
	assert.Equal(t, start, history[0].BalanceBefore)
	for i, h := range history {
		assert.Equal(t, h.BalanceAfter-h.BalanceBefore, h.ChangeAmount, "entry %d", h.ID)
		if i > 0 {
			assert.Equal(t, history[i-1].BalanceAfter, h.BalanceBefore, "gap before entry %d", h.ID)
		}
	}
	assert.Equal(t, final, history[len(history)-1].BalanceAfter)
}
