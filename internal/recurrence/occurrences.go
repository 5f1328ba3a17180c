// This file implements the Strategy Pattern for occurrence expansion. Each
// frequency type (daily, weekly, monthly, yearly) has its own expander that
// encapsulates the calendar arithmetic for that frequency.

package recurrence

import (
	"fmt"
	"sort"
	"time"
)

// Expander is the strategy interface for expanding a schedule into concrete
// dates. Implementations emit every occurrence within [start, end],
// inclusive, in whatever order is convenient; Occurrences deduplicates and
// sorts the combined result.
type Expander interface {
	Expand(s Schedule, start, end time.Time) []time.Time
}

// expanders maps frequency types to their expanders.
var expanders = map[Frequency]Expander{
	Daily:   DailyExpander{},
	Weekly:  WeeklyExpander{},
	Monthly: MonthlyExpander{},
	Yearly:  YearlyExpander{},
}

// ExpanderFor returns the expander for a frequency type.
func ExpanderFor(f Frequency) (Expander, error) {
	e, ok := expanders[f]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownFrequency, f)
	}
	return e, nil
}

// Occurrences computes the ordered, de-duplicated set of dates on which the
// schedule fires within [start, end]. Both bounds are inclusive. A zero end
// defaults to DefaultWindowYears past start so open-ended schedules stay
// bounded. The result is deterministic: identical inputs yield identical,
// identically-ordered output.
func Occurrences(s Schedule, start, end time.Time) ([]time.Time, error) {
	if err := s.Validate(); err != nil {
		return nil, err
	}

	start = day(start)
	if end.IsZero() {
		end = start.AddDate(DefaultWindowYears, 0, 0)
	} else {
		end = day(end)
	}
	if end.Before(start) {
		return nil, nil
	}

	expander, err := ExpanderFor(s.Frequency)
	if err != nil {
		return nil, err
	}
	raw := expander.Expand(s, start, end)

	seen := make(map[time.Time]struct{}, len(raw))
	dates := make([]time.Time, 0, len(raw))
	for _, d := range raw {
		if _, dup := seen[d]; dup {
			continue
		}
		seen[d] = struct{}{}
		dates = append(dates, d)
	}
	sort.Slice(dates, func(i, j int) bool { return dates[i].Before(dates[j]) })
	return dates, nil
}

// DailyExpander fires every Interval days starting from the window start.
type DailyExpander struct{}

func (DailyExpander) Expand(s Schedule, start, end time.Time) []time.Time {
	var out []time.Time
	current := start
	for i := 0; i < maxIterations && !current.After(end); i++ {
		out = append(out, current)
		current = current.AddDate(0, 0, s.Interval)
	}
	return out
}

// WeeklyExpander fires on the configured weekdays of every Interval-th week.
// Weeks are anchored to Monday, with Sunday mapped to offset 6.
type WeeklyExpander struct{}

func (WeeklyExpander) Expand(s Schedule, start, end time.Time) []time.Time {
	weekdays := s.DaysOfWeek
	if len(weekdays) == 0 {
		weekdays = []int{int(start.Weekday())}
	}

	var out []time.Time
	anchor := mondayOf(start)
	for i := 0; i < maxIterations && !anchor.After(end); i++ {
		for _, wd := range weekdays {
			d := anchor.AddDate(0, 0, (wd+6)%7)
			if !d.Before(start) && !d.After(end) {
				out = append(out, d)
			}
		}
		anchor = anchor.AddDate(0, 0, 7*s.Interval)
	}
	return out
}

// MonthlyExpander fires on a target day of every Interval-th month, applying
// the adjustment policy when the day does not exist in a month.
type MonthlyExpander struct{}

func (MonthlyExpander) Expand(s Schedule, start, end time.Time) []time.Time {
	var out []time.Time
	year, month := start.Year(), start.Month()
	for i := 0; i < maxIterations; i++ {
		first := time.Date(year, month, 1, 0, 0, 0, 0, time.UTC)
		if first.After(end) {
			break
		}

		if d, ok := resolveDay(year, month, s.DayOfMonth, s.Adjustment); ok {
			if !d.Before(start) && !d.After(end) {
				out = append(out, d)
			}
		}

		// Re-base to day 1 before advancing so a 31st never overflows the
		// month arithmetic (Jan 31 + 1 month must not become March 3).
		next := first.AddDate(0, s.Interval, 0)
		year, month = next.Year(), next.Month()
	}
	return out
}

// YearlyExpander fires on a target (month, day) of every Interval-th year.
// The same adjustment policies as monthly apply, primarily for Feb 29.
type YearlyExpander struct{}

func (YearlyExpander) Expand(s Schedule, start, end time.Time) []time.Time {
	var out []time.Time
	year := start.Year()
	for i := 0; i < maxIterations; i++ {
		jan1 := time.Date(year, time.January, 1, 0, 0, 0, 0, time.UTC)
		if jan1.After(end) {
			break
		}

		if d, ok := resolveDay(year, time.Month(s.Month), s.Day, s.Adjustment); ok {
			if !d.Before(start) && !d.After(end) {
				out = append(out, d)
			}
		}

		// Re-base to Jan 1 before advancing so Feb 29 never corrupts the
		// year step.
		year = jan1.AddDate(s.Interval, 0, 0).Year()
	}
	return out
}

// resolveDay maps a nominal (year, month, day) to a concrete date. When the
// day exceeds the month's length the adjustment policy decides: clamp to the
// last valid day, roll to the first of the next month, or skip the period.
// Skipping a period is a correct outcome, not an error.
func resolveDay(year int, month time.Month, dayTarget int, adj Adjustment) (time.Time, bool) {
	last := daysInMonth(year, month)
	if dayTarget <= last {
		return time.Date(year, month, dayTarget, 0, 0, 0, 0, time.UTC), true
	}
	switch adj {
	case AdjustLast:
		return time.Date(year, month, last, 0, 0, 0, 0, time.UTC), true
	case AdjustNext:
		return time.Date(year, month+1, 1, 0, 0, 0, 0, time.UTC), true
	default: // AdjustSkip
		return time.Time{}, false
	}
}
