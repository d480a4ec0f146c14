package testhelpers

import (
	"context"
	"errors"
	"sync"
	"time"

	"colorgame/domain/events"
)

// FixedClock is a clock frozen at a settable instant
type FixedClock struct {
	mu  sync.Mutex
	now time.Time
}

// NewFixedClock creates a clock frozen at now
func NewFixedClock(now time.Time) *FixedClock {
	return &FixedClock{now: now}
}

func (c *FixedClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

// Set moves the clock to t
func (c *FixedClock) Set(t time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = t
}

// Advance moves the clock forward by d
func (c *FixedClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

// ScriptedRandom replays a fixed sequence of values. Intn values are taken
// modulo n; Float64 values are returned as is.
type ScriptedRandom struct {
	mu     sync.Mutex
	ints   []int
	floats []float64
}

// NewScriptedRandom creates a source that replays ints and floats in order
func NewScriptedRandom(ints []int, floats []float64) *ScriptedRandom {
	return &ScriptedRandom{ints: ints, floats: floats}
}

func (r *ScriptedRandom) Intn(n int) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.ints) == 0 {
		return 0, errors.New("scripted random: out of ints")
	}
	v := r.ints[0]
	r.ints = r.ints[1:]
	return v % n, nil
}

func (r *ScriptedRandom) Float64() (float64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.floats) == 0 {
		// no recolor unless scripted
		return 0.99, nil
	}
	v := r.floats[0]
	r.floats = r.floats[1:]
	return v, nil
}

// InlineSavepointer runs savepoint bodies directly. Calls counts invocations.
type InlineSavepointer struct {
	mu    sync.Mutex
	Calls int
}

func (s *InlineSavepointer) Savepoint(ctx context.Context, fn func(ctx context.Context) error) error {
	s.mu.Lock()
	s.Calls++
	s.mu.Unlock()
	return fn(ctx)
}

// StaticManipulation answers every round with the same flag
type StaticManipulation bool

func (s StaticManipulation) Enabled(roundID string) bool {
	return bool(s)
}

// RecordingPublisher keeps every published event in order
type RecordingPublisher struct {
	mu           sync.Mutex
	Events       []events.Event
	PublishError error
}

func (p *RecordingPublisher) Publish(event events.Event) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.PublishError != nil {
		return p.PublishError
	}
	p.Events = append(p.Events, event)
	return nil
}

// OfType returns the recorded events of one type
func (p *RecordingPublisher) OfType(eventType events.EventType) []events.Event {
	p.mu.Lock()
	defer p.mu.Unlock()
	var out []events.Event
	for _, e := range p.Events {
		if e.Type() == eventType {
			out = append(out, e)
		}
	}
	return out
}
