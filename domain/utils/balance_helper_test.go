package utils

import (
	"context"
	"errors"
	"testing"

	"colorgame/domain/entities"
	"colorgame/domain/events"
	"colorgame/domain/testhelpers"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

func TestRecordBalanceChange(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name          string
		history       *entities.BalanceHistory
		recordErr     error
		publishErr    error
		wantErr       string
		wantRecorded  bool
		wantPublished bool
	}{
		{
			name:          "records and publishes",
			history:       &entities.BalanceHistory{UserID: 1, BalanceBefore: 100, BalanceAfter: 90, ChangeAmount: -10, TransactionType: entities.TransactionTypeBetPlaced},
			wantRecorded:  true,
			wantPublished: true,
		},
		{
			name:    "inconsistent balances are rejected",
			history: &entities.BalanceHistory{UserID: 1, BalanceBefore: 100, BalanceAfter: 80, ChangeAmount: -10},
			wantErr: "invalid balance change",
		},
		{
			name:    "zero change is rejected",
			history: &entities.BalanceHistory{UserID: 1, BalanceBefore: 100, BalanceAfter: 100},
			wantErr: "invalid balance change",
		},
		{
			name:         "record failure",
			history:      &entities.BalanceHistory{UserID: 1, BalanceBefore: 0, BalanceAfter: 180, ChangeAmount: 180, TransactionType: entities.TransactionTypeBetWin},
			recordErr:    errors.New("disk full"),
			wantErr:      "failed to record balance history",
			wantRecorded: true,
		},
		{
			name:         "publish failure does not fail the change",
			history:      &entities.BalanceHistory{UserID: 1, BalanceBefore: 0, BalanceAfter: 180, ChangeAmount: 180, TransactionType: entities.TransactionTypeBetWin},
			publishErr:   errors.New("nats down"),
			wantRecorded: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			repo := new(testhelpers.MockBalanceHistoryRepository)
			publisher := &testhelpers.RecordingPublisher{PublishError: tt.publishErr}
			if tt.wantRecorded {
				repo.On("Record", mock.Anything, tt.history).Return(tt.recordErr)
			}

			err := RecordBalanceChange(context.Background(), repo, publisher, tt.history)

			if tt.wantErr != "" {
				assert.ErrorContains(t, err, tt.wantErr)
			} else {
				require.NoError(t, err)
			}

			if tt.wantPublished {
				published := publisher.OfType(events.EventTypeBalanceChange)
				require.Len(t, published, 1)
				event := published[0].(events.BalanceChangeEvent)
				assert.Equal(t, tt.history.BalanceBefore, event.OldBalance)
				assert.Equal(t, tt.history.BalanceAfter, event.NewBalance)
				assert.Equal(t, tt.history.ChangeAmount, event.ChangeAmount)
			} else {
				assert.Empty(t, publisher.Events)
			}

			repo.AssertExpectations(t)
		})
	}
}
