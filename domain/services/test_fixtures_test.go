package services

import (
	"testing"
	"time"

	"colorgame/domain/entities"
	"colorgame/domain/interfaces"
	"colorgame/domain/testhelpers"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

var testNow = time.Date(2026, 5, 1, 12, 0, 0, 0, time.UTC)

// createTestRound builds an active round that ends in 25 seconds
func createTestRound(id string, opts ...func(*entities.Round)) *entities.Round {
	round := &entities.Round{
		ID:        id,
		Period:    entities.NewPeriodCode(testNow.Add(-5*time.Second), entities.Duration30s),
		Duration:  entities.Duration30s,
		EndTime:   testNow.Add(25 * time.Second),
		Active:    true,
		CreatedAt: testNow.Add(-5 * time.Second),
	}
	for _, opt := range opts {
		opt(round)
	}
	return round
}

func createTestUser(id, wallet int64) *entities.User {
	return &entities.User{
		ID:        id,
		Username:  "player",
		Wallet:    wallet,
		CreatedAt: testNow,
	}
}

func createTestBet(id, userID int64, roundID string, selection entities.BetSelection, amount int64) *entities.Bet {
	bet := entities.NewBet(userID, roundID, selection, amount)
	bet.ID = id
	bet.CreatedAt = testNow
	return bet
}

// settlementMocks bundles every collaborator of the settlement service
type settlementMocks struct {
	roundRepo          *testhelpers.MockRoundRepository
	betRepo            *testhelpers.MockBetRepository
	gameResultRepo     *testhelpers.MockGameResultRepository
	failureRepo        *testhelpers.MockSettlementFailureRepository
	userRepo           *testhelpers.MockUserRepository
	balanceHistoryRepo *testhelpers.MockBalanceHistoryRepository
	publisher          *testhelpers.RecordingPublisher
	savepoints         *testhelpers.InlineSavepointer
	clock              *testhelpers.FixedClock
}

func newSettlementMocks() *settlementMocks {
	return &settlementMocks{
		roundRepo:          new(testhelpers.MockRoundRepository),
		betRepo:            new(testhelpers.MockBetRepository),
		gameResultRepo:     new(testhelpers.MockGameResultRepository),
		failureRepo:        new(testhelpers.MockSettlementFailureRepository),
		userRepo:           new(testhelpers.MockUserRepository),
		balanceHistoryRepo: new(testhelpers.MockBalanceHistoryRepository),
		publisher:          &testhelpers.RecordingPublisher{},
		savepoints:         &testhelpers.InlineSavepointer{},
		clock:              testhelpers.NewFixedClock(testNow),
	}
}

func (m *settlementMocks) service(t *testing.T, rng interfaces.RandomSource, manipulated bool) interfaces.SettlementService {
	t.Helper()

	payout, err := NewPayoutCalculator(decimal.Zero)
	require.NoError(t, err)

	return NewSettlementService(
		m.roundRepo,
		m.betRepo,
		m.gameResultRepo,
		m.failureRepo,
		NewRoundService(m.roundRepo, m.publisher, m.clock),
		NewBalanceService(m.userRepo, m.balanceHistoryRepo, m.publisher),
		NewOutcomeGenerator(entities.StandardColorRule{}, rng),
		testhelpers.StaticManipulation(manipulated),
		payout,
		m.savepoints,
		m.publisher,
		m.clock,
	)
}

// expectClosure sets up the round closure and successor insert
func (m *settlementMocks) expectClosure(round *entities.Round, successorErr error) {
	m.roundRepo.On("SetInactive", mock.Anything, round.ID, testNow).Return(nil).Once()
	m.roundRepo.On("Create", mock.Anything, mock.MatchedBy(func(r *entities.Round) bool {
		return r.Duration == round.Duration && r.Active && r.ID != round.ID
	})).Return(successorErr).Once()
}

func (m *settlementMocks) assertExpectations(t *testing.T) {
	m.roundRepo.AssertExpectations(t)
	m.betRepo.AssertExpectations(t)
	m.gameResultRepo.AssertExpectations(t)
	m.failureRepo.AssertExpectations(t)
	m.userRepo.AssertExpectations(t)
	m.balanceHistoryRepo.AssertExpectations(t)
}
