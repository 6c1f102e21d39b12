// Package recurrence expands abstract repeating rules into bounded sequences
// of concrete occurrence dates. Expansion is a pure computation: every call
// recomputes from the rule and anchor, so there is no iterator state to
// corrupt and any expansion can be replayed.
package recurrence

import (
	"fmt"
	"time"

	"github.com/orbitcal/orbitcal-api/internal/models"
	appErrors "github.com/orbitcal/orbitcal-api/pkg/errors"
)

// seriesStop is an internal bound on raw candidate generation so a
// misconfigured rule can never spin the generator forever.
const seriesStop = 200000

// Expand produces the occurrence dates of rule anchored at anchor that fall
// inside [windowStart, windowEnd], ordered ascending. Dates are
// date-only (midnight UTC). Termination by count is honoured from the series
// anchor, not from the window, so a window that starts late still sees the
// correct tail of a counted series. Producing more than
// models.MaxOccurrenceCount dates inside the window fails with
// HORIZON_EXCEEDED.
func Expand(rule models.RecurrenceRule, anchor, windowStart, windowEnd time.Time) ([]time.Time, error) {
	if err := rule.Validate(); err != nil {
		return nil, err
	}
	anchor = models.DateOnly(anchor)
	windowStart = models.DateOnly(windowStart)
	windowEnd = models.DateOnly(windowEnd)
	if windowEnd.Before(windowStart) {
		return nil, appErrors.Clone(appErrors.ErrValidation, "window end precedes window start")
	}

	var out []time.Time
	err := each(rule, anchor, func(d time.Time) bool {
		if d.After(windowEnd) {
			return false
		}
		if d.Before(windowStart) {
			return true
		}
		out = append(out, d)
		return len(out) <= models.MaxOccurrenceCount
	})
	if err != nil {
		return nil, err
	}
	if len(out) > models.MaxOccurrenceCount {
		return nil, appErrors.Clone(appErrors.ErrHorizonExceeded,
			fmt.Sprintf("expansion window yields more than %d occurrences", models.MaxOccurrenceCount))
	}
	return out, nil
}

// First returns the earliest occurrence date of the series, which for weekly
// rules with a selector may differ from the anchor itself. ok is false when
// the rule terminates before producing anything.
func First(rule models.RecurrenceRule, anchor time.Time) (time.Time, bool) {
	var first time.Time
	found := false
	_ = each(rule, models.DateOnly(anchor), func(d time.Time) bool {
		first = d
		found = true
		return false
	})
	return first, found
}

// CountBefore returns how many occurrences of the series fall strictly
// before the given date. A THIS_AND_FUTURE split uses this to hand the
// successor series the unconsumed part of a count termination.
func CountBefore(rule models.RecurrenceRule, anchor, before time.Time) int {
	n := 0
	before = models.DateOnly(before)
	_ = each(rule, models.DateOnly(anchor), func(d time.Time) bool {
		if !d.Before(before) {
			return false
		}
		n++
		return true
	})
	return n
}

// each walks the series from its anchor, applying the rule's own termination
// (until / count), and yields every occurrence date until fn returns false.
// fn sees dates in strictly ascending order.
func each(rule models.RecurrenceRule, anchor time.Time, fn func(time.Time) bool) error {
	yielded := 0
	visit := func(d time.Time) bool {
		if rule.Until != nil && d.After(models.DateOnly(*rule.Until)) {
			return false
		}
		if rule.Count != nil && yielded >= *rule.Count {
			return false
		}
		yielded++
		return fn(d)
	}

	switch rule.Frequency {
	case models.FrequencyDaily:
		step := time.Duration(rule.Interval) * 24 * time.Hour
		for d, i := anchor, 0; i < seriesStop; d, i = d.Add(step), i+1 {
			if !visit(d) {
				return nil
			}
		}
	case models.FrequencyWeekly:
		return eachWeekly(rule, anchor, visit)
	case models.FrequencyMonthly:
		day := anchor.Day()
		if rule.DayOfMonth != nil {
			day = *rule.DayOfMonth
		}
		base := time.Date(anchor.Year(), anchor.Month(), 1, 0, 0, 0, 0, time.UTC)
		for i := 0; i < seriesStop; i++ {
			month := base.AddDate(0, i*rule.Interval, 0)
			// Skip months without the anchor day outright rather than
			// clamping, so a 31st series resumes only in 31-day months.
			if day > daysInMonth(month) {
				continue
			}
			d := time.Date(month.Year(), month.Month(), day, 0, 0, 0, 0, time.UTC)
			if d.Before(anchor) {
				continue
			}
			if !visit(d) {
				return nil
			}
		}
	case models.FrequencyYearly:
		for i := 0; i < seriesStop; i++ {
			y := anchor.Year() + i*rule.Interval
			// Feb 29 anchors skip non-leap years, mirroring the monthly
			// skip policy.
			if anchor.Month() == time.February && anchor.Day() == 29 && !isLeapYear(y) {
				continue
			}
			d := time.Date(y, anchor.Month(), anchor.Day(), 0, 0, 0, 0, time.UTC)
			if !visit(d) {
				return nil
			}
		}
	}
	return nil
}

// eachWeekly yields occurrences week block by week block. Weeks start on
// Monday; the block containing the anchor is week zero and only every
// Interval-th block fires.
func eachWeekly(rule models.RecurrenceRule, anchor time.Time, visit func(time.Time) bool) error {
	selected := rule.WeekdaySet(anchor)
	weekStart := startOfWeek(anchor)
	for i := 0; i < seriesStop; i++ {
		block := weekStart.AddDate(0, 0, i*rule.Interval*7)
		for offset := 0; offset < 7; offset++ {
			d := block.AddDate(0, 0, offset)
			if d.Before(anchor) || !selected[d.Weekday()] {
				continue
			}
			if !visit(d) {
				return nil
			}
		}
	}
	return nil
}

func startOfWeek(d time.Time) time.Time {
	// Monday-based.
	offset := (int(d.Weekday()) + 6) % 7
	return d.AddDate(0, 0, -offset)
}

func daysInMonth(t time.Time) int {
	return time.Date(t.Year(), t.Month()+1, 0, 0, 0, 0, 0, time.UTC).Day()
}

func isLeapYear(y int) bool {
	return y%4 == 0 && (y%100 != 0 || y%400 == 0)
}
