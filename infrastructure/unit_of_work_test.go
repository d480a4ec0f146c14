package infrastructure

import (
	"context"
	"testing"

	"colorgame/domain/events"
	"colorgame/repository/testutil"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestUnitOfWork_EventsFollowTransaction(t *testing.T) {
	t.Parallel()
	testDB := testutil.SetupTestDatabase(t)

	ctx := context.Background()
	testutil.InsertUser(t, testDB.DB, 1, 100)

	mockPublisher := &MockEventPublisher{}
	factory := NewUnitOfWorkFactory(testDB.DB, mockPublisher, 0)

	t.Run("commit flushes", func(t *testing.T) {
		uow := factory.Create()
		require.NoError(t, uow.Begin(ctx))
		require.NoError(t, uow.UserRepository().UpdateWallet(ctx, 1, 90))
		require.NoError(t, uow.EventBus().Publish(events.BalanceChangeEvent{UserID: 1, OldBalance: 100, NewBalance: 90}))

		assert.Empty(t, mockPublisher.PublishedEvents)
		require.NoError(t, uow.Commit())

		require.Len(t, mockPublisher.PublishedEvents, 1)
		assert.Equal(t, int64(90), testutil.Wallet(t, testDB.DB, 1))
	})

	t.Run("rollback discards", func(t *testing.T) {
		uow := factory.Create()
		require.NoError(t, uow.Begin(ctx))
		require.NoError(t, uow.UserRepository().UpdateWallet(ctx, 1, 0))
		require.NoError(t, uow.EventBus().Publish(events.BalanceChangeEvent{UserID: 1, OldBalance: 90, NewBalance: 0}))
		require.NoError(t, uow.Rollback())

		assert.Len(t, mockPublisher.PublishedEvents, 1)
		assert.Equal(t, int64(90), testutil.Wallet(t, testDB.DB, 1))
	})
}
