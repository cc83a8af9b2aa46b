package scheduler

import (
	"fmt"
	"time"
)

// IntervalSchedule runs a job at a fixed interval.
//
// By default the first run happens one interval after registration.
// For cache-warming jobs that is usually too late: the cache stays cold
// until the first tick. NewWarmupIntervalSchedule fires once almost
// immediately and then settles into the regular cadence.
type IntervalSchedule struct {
	interval time.Duration
	warmup   bool
	fired    bool
}

// NewIntervalSchedule creates a schedule that fires every interval,
// starting one interval from now.
func NewIntervalSchedule(interval time.Duration) *IntervalSchedule {
	return &IntervalSchedule{interval: interval}
}

// NewWarmupIntervalSchedule creates a schedule whose first run is due
// right away, with subsequent runs every interval.
func NewWarmupIntervalSchedule(interval time.Duration) *IntervalSchedule {
	return &IntervalSchedule{interval: interval, warmup: true}
}

// Interval returns the configured interval.
func (s *IntervalSchedule) Interval() time.Duration {
	return s.interval
}

// Next returns the next scheduled time after t.
func (s *IntervalSchedule) Next(t time.Time) time.Time {
	if s.warmup && !s.fired {
		s.fired = true
		return t.Add(time.Second)
	}
	return t.Add(s.interval)
}

// String returns the string representation of the schedule.
func (s *IntervalSchedule) String() string {
	if s.warmup {
		return fmt.Sprintf("@every %s (immediate first run)", s.interval.String())
	}
	return fmt.Sprintf("@every %s", s.interval.String())
}
