package entities

import (
	"fmt"
	"strings"
	"time"
)

// Duration identifies one duration bucket of the game
type Duration string

const (
	Duration30s Duration = "30s"
	Duration1m  Duration = "1m"
	Duration3m  Duration = "3m"
	Duration5m  Duration = "5m"
)

// AllDurations lists every supported bucket in ascending length
var AllDurations = []Duration{Duration30s, Duration1m, Duration3m, Duration5m}

// Length returns the betting window of the bucket
func (d Duration) Length() time.Duration {
	switch d {
	case Duration30s:
		return 30 * time.Second
	case Duration1m:
		return time.Minute
	case Duration3m:
		return 3 * time.Minute
	case Duration5m:
		return 5 * time.Minute
	default:
		return 0
	}
}

// IsValid reports whether d is one of the supported buckets
func (d Duration) IsValid() bool {
	return d.Length() > 0
}

func (d Duration) String() string {
	return string(d)
}

// ParseDuration parses a bucket code such as "30s" or "1m"
func ParseDuration(s string) (Duration, error) {
	d := Duration(strings.TrimSpace(strings.ToLower(s)))
	if !d.IsValid() {
		return "", fmt.Errorf("unknown duration bucket %q", s)
	}
	return d, nil
}

// RoundState is the persisted lifecycle state of a round. Resolution runs
// under the round row lock and is never stored.
type RoundState string

const (
	RoundStateOpen   RoundState = "open"
	RoundStateClosed RoundState = "closed"
)

// Round represents one timed betting period for a duration bucket
type Round struct {
	ID             string     `db:"id"`
	Period         string     `db:"period"`
	Duration       Duration   `db:"duration"`
	EndTime        time.Time  `db:"end_time"`
	Active         bool       `db:"active"`
	TotalBets      int64      `db:"total_bets"`
	TotalBetAmount int64      `db:"total_bet_amount"`
	CreatedAt      time.Time  `db:"created_at"`
	ResolvedAt     *time.Time `db:"resolved_at"` // NULL until settled
}

// State returns the lifecycle state of the round
func (r *Round) State() RoundState {
	if r.Active {
		return RoundStateOpen
	}
	return RoundStateClosed
}

// AcceptsBetsAt reports whether a bet placed at now may land in this round
func (r *Round) AcceptsBetsAt(now time.Time) bool {
	return r.Active && now.Before(r.EndTime)
}

// TimeRemaining returns the time left before betting closes
func (r *Round) TimeRemaining(now time.Time) time.Duration {
	if !r.Active || !now.Before(r.EndTime) {
		return 0
	}
	return r.EndTime.Sub(now)
}

// NewPeriodCode builds the displayed period code for a round created at the
// given instant: UTC timestamp, milliseconds and the bucket length in seconds.
func NewPeriodCode(createdAt time.Time, duration Duration) string {
	utc := createdAt.UTC()
	return fmt.Sprintf("%s%03d%04d",
		utc.Format("20060102150405"),
		utc.Nanosecond()/int(time.Millisecond),
		int(duration.Length()/time.Second),
	)
}
