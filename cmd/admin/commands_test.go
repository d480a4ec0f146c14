package admin

import (
	"bytes"
	"context"
	"net/http/httptest"
	"testing"

	"colorgame/adminapi"
	"colorgame/domain/entities"
	"colorgame/domain/interfaces"
	"colorgame/domain/services"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeEngine records admin calls
type fakeEngine struct {
	forced     []string
	forcedAll  int
	scope      string
	enabled    bool
	rounds     []*entities.Round
	forceError error
}

func (f *fakeEngine) ActiveRounds(ctx context.Context) ([]*entities.Round, error) {
	return f.rounds, nil
}

func (f *fakeEngine) ForceEnd(ctx context.Context, periodID string) (*interfaces.SettlementResult, error) {
	if f.forceError != nil {
		return nil, f.forceError
	}
	f.forced = append(f.forced, periodID)
	return &interfaces.SettlementResult{
		Round:     &entities.Round{ID: periodID},
		Result:    &entities.GameResult{Number: 4, Color: entities.ColorRed, Size: entities.SizeSmall},
		Successor: &entities.Round{ID: "next"},
		TotalPaid: 40,
	}, nil
}

func (f *fakeEngine) ForceEndAll(ctx context.Context) ([]*interfaces.SettlementResult, error) {
	f.forcedAll++
	return nil, nil
}

func (f *fakeEngine) SetManipulation(ctx context.Context, scope string, enabled bool) error {
	f.scope = scope
	f.enabled = enabled
	return nil
}

func (f *fakeEngine) Exposure(ctx context.Context, periodID string) (*entities.Exposure, error) {
	exposure := entities.NewExposure()
	exposure.Add(entities.ColorSelection{Color: entities.ColorGreen}, 25)
	return exposure, nil
}

func (f *fakeEngine) ManipulationState() services.ManipulationState {
	return services.ManipulationState{Global: f.scope == "global" && f.enabled}
}

func newTestClient(t *testing.T, engine adminapi.Engine) *Client {
	t.Helper()

	ts := httptest.NewServer(adminapi.NewServer(engine, 0).Handler())
	t.Cleanup(ts.Close)
	return NewClientWithURL(ts.URL)
}

func TestRun(t *testing.T) {
	t.Parallel()

	t.Run("force-end", func(t *testing.T) {
		t.Parallel()

		engine := &fakeEngine{}
		var out bytes.Buffer
		require.NoError(t, Run(newTestClient(t, engine), []string{"force-end", "r1"}, &out))

		assert.Equal(t, []string{"r1"}, engine.forced)
		assert.Contains(t, out.String(), "r1: 4 red small, paid 40, successor next")
	})

	t.Run("force-end error", func(t *testing.T) {
		t.Parallel()

		engine := &fakeEngine{forceError: entities.ErrSettlementAlreadyDone}
		err := Run(newTestClient(t, engine), []string{"force-end", "r1"}, &bytes.Buffer{})
		assert.ErrorContains(t, err, entities.ErrSettlementAlreadyDone.Error())
	})

	t.Run("force-end-all", func(t *testing.T) {
		t.Parallel()

		engine := &fakeEngine{}
		var out bytes.Buffer
		require.NoError(t, Run(newTestClient(t, engine), []string{"force-end-all"}, &out))
		assert.Equal(t, 1, engine.forcedAll)
		assert.Contains(t, out.String(), "0 rounds force-ended")
	})

	t.Run("manipulation", func(t *testing.T) {
		t.Parallel()

		engine := &fakeEngine{}
		var out bytes.Buffer
		require.NoError(t, Run(newTestClient(t, engine), []string{"manipulation", "global", "on"}, &out))
		assert.Equal(t, "global", engine.scope)
		assert.True(t, engine.enabled)

		out.Reset()
		require.NoError(t, Run(newTestClient(t, engine), []string{"manipulation"}, &out))
		assert.Contains(t, out.String(), "global: true")
	})

	t.Run("rounds", func(t *testing.T) {
		t.Parallel()

		engine := &fakeEngine{rounds: []*entities.Round{{ID: "r1", Period: "p1", Duration: entities.Duration5m}}}
		var out bytes.Buffer
		require.NoError(t, Run(newTestClient(t, engine), []string{"rounds"}, &out))
		assert.Contains(t, out.String(), "p1")
		assert.Contains(t, out.String(), "5m")
	})

	t.Run("exposure", func(t *testing.T) {
		t.Parallel()

		var out bytes.Buffer
		require.NoError(t, Run(newTestClient(t, &fakeEngine{}), []string{"exposure", "r1"}, &out))
		assert.Regexp(t, `color\s+green\s+25`, out.String())
		assert.Regexp(t, `total\s+25`, out.String())
	})

	t.Run("bad arguments", func(t *testing.T) {
		t.Parallel()

		client := newTestClient(t, &fakeEngine{})
		assert.Error(t, Run(client, nil, &bytes.Buffer{}))
		assert.Error(t, Run(client, []string{"force-end"}, &bytes.Buffer{}))
		assert.Error(t, Run(client, []string{"exposure"}, &bytes.Buffer{}))
		assert.Error(t, Run(client, []string{"manipulation", "global", "maybe"}, &bytes.Buffer{}))
		assert.Error(t, Run(client, []string{"explode"}, &bytes.Buffer{}))
	})
}
