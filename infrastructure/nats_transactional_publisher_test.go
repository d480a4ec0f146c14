package infrastructure

import (
	"context"
	"errors"
	"testing"

	"colorgame/domain/events"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// MockEventPublisher is a mock implementation of EventPublisher
type MockEventPublisher struct {
	PublishedEvents []events.Event
	PublishError    error
}

func (m *MockEventPublisher) Publish(event events.Event) error {
	if m.PublishError != nil {
		return m.PublishError
	}
	m.PublishedEvents = append(m.PublishedEvents, event)
	return nil
}

func TestNATSTransactionalPublisher_QueuesUntilFlush(t *testing.T) {
	t.Parallel()

	mockPublisher := &MockEventPublisher{}
	transPublisher := NewNATSTransactionalPublisher(mockPublisher)

	created := events.RoundCreatedEvent{RoundID: "round-1", Duration: "30s"}
	resolved := events.RoundResolvedEvent{RoundID: "round-1", TotalPaid: 180, SuccessorID: "round-2"}

	require.NoError(t, transPublisher.Publish(created))
	require.NoError(t, transPublisher.Publish(resolved))

	assert.Equal(t, 2, transPublisher.PendingCount())
	assert.Empty(t, mockPublisher.PublishedEvents)

	require.NoError(t, transPublisher.Flush(context.Background()))

	assert.Equal(t, 0, transPublisher.PendingCount())
	require.Len(t, mockPublisher.PublishedEvents, 2)
	assert.Equal(t, created, mockPublisher.PublishedEvents[0])
	assert.Equal(t, resolved, mockPublisher.PublishedEvents[1])
}

func TestNATSTransactionalPublisher_Discard(t *testing.T) {
	t.Parallel()

	mockPublisher := &MockEventPublisher{}
	transPublisher := NewNATSTransactionalPublisher(mockPublisher)

	require.NoError(t, transPublisher.Publish(events.BetPlacedEvent{BetID: 1}))
	transPublisher.Discard()

	require.NoError(t, transPublisher.Flush(context.Background()))
	assert.Empty(t, mockPublisher.PublishedEvents)
}

func TestNATSTransactionalPublisher_LocalHandlers(t *testing.T) {
	t.Parallel()

	mockPublisher := &MockEventPublisher{}
	transPublisher := NewNATSTransactionalPublisher(mockPublisher)

	var received []events.Event
	transPublisher.RegisterLocalHandler(events.EventTypeRoundResolved, func(ctx context.Context, event events.Event) error {
		received = append(received, event)
		return nil
	})
	transPublisher.RegisterLocalHandler(events.EventTypeRoundResolved, func(ctx context.Context, event events.Event) error {
		return errors.New("handler failure is logged only")
	})

	resolved := events.RoundResolvedEvent{RoundID: "round-1"}
	require.NoError(t, transPublisher.Publish(resolved))
	require.NoError(t, transPublisher.Publish(events.BetPlacedEvent{BetID: 9}))

	assert.Empty(t, received)

	require.NoError(t, transPublisher.Flush(context.Background()))

	require.Len(t, received, 1)
	assert.Equal(t, resolved, received[0])
	assert.Len(t, mockPublisher.PublishedEvents, 2)
}

func TestNATSTransactionalPublisher_PublishFailureDoesNotStopFlush(t *testing.T) {
	t.Parallel()

	mockPublisher := &MockEventPublisher{PublishError: errors.New("broker down")}
	transPublisher := NewNATSTransactionalPublisher(mockPublisher)

	handled := 0
	transPublisher.RegisterLocalHandler(events.EventTypeBetPlaced, func(ctx context.Context, event events.Event) error {
		handled++
		return nil
	})

	require.NoError(t, transPublisher.Publish(events.BetPlacedEvent{BetID: 1}))
	require.NoError(t, transPublisher.Publish(events.BetPlacedEvent{BetID: 2}))

	assert.NoError(t, transPublisher.Flush(context.Background()))
	assert.Equal(t, 2, handled)
	assert.Equal(t, 0, transPublisher.PendingCount())
}
