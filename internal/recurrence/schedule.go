// Package recurrence computes the calendar dates on which a repeating
// schedule fires. It is pure date arithmetic: no storage, no clocks.
package recurrence

import (
	"errors"
	"fmt"
	"time"
)

const (
	Daily   Frequency = "daily"
	Weekly  Frequency = "weekly"
	Monthly Frequency = "monthly"
	Yearly  Frequency = "yearly"
)

const (
	// AdjustLast clamps a missing target day to the last valid day of the
	// period (Jan 31 + 1 month -> Feb 28/29).
	AdjustLast Adjustment = "last"
	// AdjustNext rolls a missing target day to the first day of the
	// following month (Feb 30 -> Mar 1).
	AdjustNext Adjustment = "next"
	// AdjustSkip omits the occurrence for that period entirely.
	AdjustSkip Adjustment = "skip"
)

// DefaultWindowYears bounds occurrence computation for open-ended schedules.
const DefaultWindowYears = 5

// maxIterations caps the expansion loop so malformed configuration cannot
// spin forever.
const maxIterations = 10000

type (
	Frequency  string
	Adjustment string

	// Schedule describes when a recurrence fires. Only the fields relevant
	// to the active frequency are meaningful; the rest are ignored.
	Schedule struct {
		Frequency Frequency
		Interval  int // every N units, >= 1

		// Weekly: weekday indices (0=Sunday .. 6=Saturday) on which the
		// schedule fires. Empty means "the window start's weekday".
		DaysOfWeek []int

		// Monthly: target day of month (1-31).
		DayOfMonth int

		// Yearly: target month (1-12) and day (1-31).
		Month int
		Day   int

		// Adjustment resolves a target day that does not exist in a given
		// month/year. Applies to monthly and yearly schedules.
		Adjustment Adjustment
	}
)

var (
	ErrUnknownFrequency  = errors.New("unknown frequency")
	ErrInvalidInterval   = errors.New("interval must be at least 1")
	ErrInvalidAdjustment = errors.New("adjustment must be 'last', 'next' or 'skip'")
)

// Validate checks the schedule configuration for the active frequency.
func (s Schedule) Validate() error {
	if s.Interval < 1 {
		return ErrInvalidInterval
	}
	switch s.Frequency {
	case Daily:
		return nil
	case Weekly:
		for _, wd := range s.DaysOfWeek {
			if wd < 0 || wd > 6 {
				return fmt.Errorf("weekday index %d out of range 0-6", wd)
			}
		}
		return nil
	case Monthly:
		if s.DayOfMonth < 1 || s.DayOfMonth > 31 {
			return fmt.Errorf("day of month %d out of range 1-31", s.DayOfMonth)
		}
		return s.validAdjustment()
	case Yearly:
		if s.Month < 1 || s.Month > 12 {
			return fmt.Errorf("month %d out of range 1-12", s.Month)
		}
		if s.Day < 1 || s.Day > 31 {
			return fmt.Errorf("day %d out of range 1-31", s.Day)
		}
		return s.validAdjustment()
	default:
		return fmt.Errorf("%w: %q", ErrUnknownFrequency, s.Frequency)
	}
}

func (s Schedule) validAdjustment() error {
	switch s.Adjustment {
	case AdjustLast, AdjustNext, AdjustSkip:
		return nil
	}
	return fmt.Errorf("%w: got %q", ErrInvalidAdjustment, s.Adjustment)
}

// day truncates a time to midnight UTC.
func day(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}

// daysInMonth returns the number of days in the given month. The zero-day
// of the following month is the last day of this one.
func daysInMonth(year int, month time.Month) int {
	return time.Date(year, month+1, 0, 0, 0, 0, 0, time.UTC).Day()
}

// mondayOf returns the Monday of the week containing t, with Sunday
// belonging to the week that started six days earlier.
func mondayOf(t time.Time) time.Time {
	offset := (int(t.Weekday()) + 6) % 7
	return day(t).AddDate(0, 0, -offset)
}
