package services

import (
	"maps"
	"sync"
)

// ManipulationPolicy is the single source of truth for outcome strategy
// selection. A per-round override wins over the global flag.
type ManipulationPolicy struct {
	mu        sync.RWMutex
	global    bool
	overrides map[string]bool
}

// ManipulationState is a point-in-time copy of a policy
type ManipulationState struct {
	Global    bool            `json:"global"`
	Overrides map[string]bool `json:"overrides"`
}

// NewManipulationPolicy creates a policy with the given global flag
func NewManipulationPolicy(global bool) *ManipulationPolicy {
	return &ManipulationPolicy{
		global:    global,
		overrides: make(map[string]bool),
	}
}

// Enabled reports whether the manipulated strategy resolves a round
func (p *ManipulationPolicy) Enabled(roundID string) bool {
	p.mu.RLock()
	defer p.mu.RUnlock()

	if enabled, ok := p.overrides[roundID]; ok {
		return enabled
	}
	return p.global
}

// SetGlobal sets the flag used by rounds without an override
func (p *ManipulationPolicy) SetGlobal(enabled bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.global = enabled
}

// SetRound overrides the flag for one round
func (p *ManipulationPolicy) SetRound(roundID string, enabled bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.overrides[roundID] = enabled
}

// Forget drops the override of a resolved round
func (p *ManipulationPolicy) Forget(roundID string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	delete(p.overrides, roundID)
}

// Snapshot returns a copy of the current state
func (p *ManipulationPolicy) Snapshot() ManipulationState {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return ManipulationState{
		Global:    p.global,
		Overrides: maps.Clone(p.overrides),
	}
}
