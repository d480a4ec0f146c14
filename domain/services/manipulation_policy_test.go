package services

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestManipulationPolicy(t *testing.T) {
	t.Parallel()

	policy := NewManipulationPolicy(false)
	assert.False(t, policy.Enabled("round-1"))

	policy.SetRound("round-1", true)
	assert.True(t, policy.Enabled("round-1"))
	assert.False(t, policy.Enabled("round-2"))

	policy.SetGlobal(true)
	assert.True(t, policy.Enabled("round-2"))

	// an explicit override beats the global flag both ways
	policy.SetRound("round-2", false)
	assert.False(t, policy.Enabled("round-2"))

	state := policy.Snapshot()
	assert.True(t, state.Global)
	assert.Equal(t, map[string]bool{"round-1": true, "round-2": false}, state.Overrides)

	policy.Forget("round-2")
	assert.True(t, policy.Enabled("round-2"))

	// snapshots are copies
	state.Overrides["round-3"] = false
	assert.True(t, policy.Enabled("round-3"))
}

func TestManipulationPolicy_Concurrent(t *testing.T) {
	t.Parallel()

	policy := NewManipulationPolicy(false)

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(2)
		go func(i int) {
			defer wg.Done()
			policy.SetRound("round", i%2 == 0)
			policy.SetGlobal(i%3 == 0)
		}(i)
		go func() {
			defer wg.Done()
			_ = policy.Enabled("round")
			_ = policy.Snapshot()
		}()
	}
	wg.Wait()
}
