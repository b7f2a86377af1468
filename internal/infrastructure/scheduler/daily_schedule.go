package scheduler

import (
	"fmt"
	"time"
)

// DailySchedule schedules a job to run once per day at a fixed UTC time.
type DailySchedule struct {
	Hour   int
	Minute int
}

// NewDailySchedule creates a new DailySchedule. Hour and minute are
// clamped into their valid ranges.
func NewDailySchedule(hour, minute int) *DailySchedule {
	return &DailySchedule{
		Hour:   clampInt(hour, 0, 23),
		Minute: clampInt(minute, 0, 59),
	}
}

func clampInt(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

// Next returns the next occurrence of the configured time after t.
func (s *DailySchedule) Next(t time.Time) time.Time {
	t = t.UTC()
	next := time.Date(t.Year(), t.Month(), t.Day(), s.Hour, s.Minute, 0, 0, time.UTC)
	if !next.After(t) {
		next = next.AddDate(0, 0, 1)
	}
	return next
}

// String returns the string representation of the schedule.
func (s *DailySchedule) String() string {
	return fmt.Sprintf("@daily %02d:%02d UTC", s.Hour, s.Minute)
}
