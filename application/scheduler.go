package application

import (
	"sync"
	"time"

	"colorgame/domain/entities"
	"colorgame/domain/interfaces"

	log "github.com/sirupsen/logrus"
)

// RoundScheduler holds one in-process timer per active round. A timer fires
// once at the round's end time; lost timers are recovered by reconciliation.
type RoundScheduler struct {
	mu      sync.Mutex
	timers  map[string]*time.Timer
	clock   interfaces.Clock
	fire    func(periodID string)
	stopped bool
	running sync.WaitGroup
}

// NewRoundScheduler creates a scheduler that calls fire when a round ends
func NewRoundScheduler(clock interfaces.Clock, fire func(periodID string)) *RoundScheduler {
	return &RoundScheduler{
		timers: make(map[string]*time.Timer),
		clock:  clock,
		fire:   fire,
	}
}

// Arm starts the timer of a round. It returns false if the round is already
// armed or the scheduler is stopped. A round past its end time fires at once.
func (s *RoundScheduler) Arm(round *entities.Round) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.stopped {
		return false
	}
	if _, ok := s.timers[round.ID]; ok {
		return false
	}

	delay := round.EndTime.Sub(s.clock.Now())
	if delay < 0 {
		delay = 0
	}

	periodID := round.ID
	s.timers[periodID] = time.AfterFunc(delay, func() {
		s.mu.Lock()
		_, armed := s.timers[periodID]
		delete(s.timers, periodID)
		run := armed && !s.stopped
		if run {
			s.running.Add(1)
		}
		s.mu.Unlock()

		if run {
			defer s.running.Done()
			s.fire(periodID)
		}
	})

	log.WithFields(log.Fields{
		"roundID":  round.ID,
		"duration": round.Duration,
		"firesIn":  delay,
	}).Debug("Armed round timer")

	return true
}

// Cancel stops the timer of a round and reports whether one was armed
func (s *RoundScheduler) Cancel(periodID string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	timer, ok := s.timers[periodID]
	if !ok {
		return false
	}
	timer.Stop()
	delete(s.timers, periodID)
	return true
}

// CancelAll stops every armed timer
func (s *RoundScheduler) CancelAll() {
	s.mu.Lock()
	defer s.mu.Unlock()

	for id, timer := range s.timers {
		timer.Stop()
		delete(s.timers, id)
	}
}

// IsArmed reports whether a timer is pending for the round
func (s *RoundScheduler) IsArmed(periodID string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.timers[periodID]
	return ok
}

// ArmedCount returns the number of pending timers
func (s *RoundScheduler) ArmedCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.timers)
}

// Stop cancels every timer, refuses new ones and waits for callbacks that
// already fired to return
func (s *RoundScheduler) Stop() {
	s.mu.Lock()
	s.stopped = true
	for id, timer := range s.timers {
		timer.Stop()
		delete(s.timers, id)
	}
	s.mu.Unlock()

	s.running.Wait()
}
