package scheduler

import (
	"fmt"
	"time"
)

// IntervalSchedule fires at a fixed period, measured from the previous
// fire time rather than wall-clock boundaries.
type IntervalSchedule struct {
	Interval time.Duration
}

// NewIntervalSchedule returns a schedule firing every interval.
func NewIntervalSchedule(interval time.Duration) *IntervalSchedule {
	return &IntervalSchedule{Interval: interval}
}

// Next returns t plus the interval.
func (s *IntervalSchedule) Next(t time.Time) time.Time {
	return t.Add(s.Interval)
}

// String renders the schedule in cron-like notation.
func (s *IntervalSchedule) String() string {
	return fmt.Sprintf("@every %s", s.Interval)
}
