package models

import (
	"time"

	"github.com/lib/pq"
)

// Frequency enumerates supported recurrence step units.
type Frequency string

const (
	FrequencyDaily   Frequency = "DAILY"
	FrequencyWeekly  Frequency = "WEEKLY"
	FrequencyMonthly Frequency = "MONTHLY"
	FrequencyYearly  Frequency = "YEARLY"
)

// MaxOccurrenceCount caps how many occurrences a single rule may ever
// materialize. Rules terminating by count must stay below it, and a single
// expansion call failing to stay below it is rejected outright.
const MaxOccurrenceCount = 730

// RecurrenceRule is an immutable description of a repeating pattern.
// Interval is "every N units" of Frequency. ByWeekdays narrows weekly rules
// (0=Sunday..6=Saturday, matching time.Weekday); when empty the anchor's
// weekday applies. DayOfMonth pins monthly rules to a specific day; when nil
// the anchor's day applies. Termination is either open (both nil), an
// inclusive Until date, or a total occurrence Count from the series anchor.
type RecurrenceRule struct {
	Frequency  Frequency      `json:"frequency"`
	Interval   int            `json:"interval"`
	ByWeekdays []time.Weekday `json:"by_weekdays,omitempty"`
	DayOfMonth *int           `json:"day_of_month,omitempty"`
	Until      *time.Time     `json:"until,omitempty"`
	Count      *int           `json:"count,omitempty"`
}

// Validate reports whether the rule is well formed. It is the single
// gatekeeper for rule input; nothing is persisted for an invalid rule.
func (r RecurrenceRule) Validate() error {
	switch r.Frequency {
	case FrequencyDaily, FrequencyWeekly, FrequencyMonthly, FrequencyYearly:
	default:
		return errInvalidRule("unsupported frequency %q", r.Frequency)
	}
	if r.Interval < 1 {
		return errInvalidRule("interval must be >= 1, got %d", r.Interval)
	}
	for _, wd := range r.ByWeekdays {
		if wd < time.Sunday || wd > time.Saturday {
			return errInvalidRule("weekday out of range: %d", wd)
		}
	}
	if len(r.ByWeekdays) > 0 && r.Frequency != FrequencyWeekly {
		return errInvalidRule("by_weekdays is only valid for weekly rules")
	}
	if r.DayOfMonth != nil {
		if r.Frequency != FrequencyMonthly {
			return errInvalidRule("day_of_month is only valid for monthly rules")
		}
		if *r.DayOfMonth < 1 || *r.DayOfMonth > 31 {
			return errInvalidRule("day_of_month must be within 1-31, got %d", *r.DayOfMonth)
		}
	}
	if r.Until != nil && r.Count != nil {
		return errInvalidRule("until and count are mutually exclusive")
	}
	if r.Count != nil {
		if *r.Count < 1 {
			return errInvalidRule("count must be >= 1, got %d", *r.Count)
		}
		if *r.Count > MaxOccurrenceCount {
			return errInvalidRule("count %d exceeds the occurrence ceiling %d", *r.Count, MaxOccurrenceCount)
		}
	}
	return nil
}

// WeekdaySet returns the effective weekday selector for the given anchor.
func (r RecurrenceRule) WeekdaySet(anchor time.Time) map[time.Weekday]bool {
	set := make(map[time.Weekday]bool, 7)
	if r.Frequency == FrequencyWeekly && len(r.ByWeekdays) > 0 {
		for _, wd := range r.ByWeekdays {
			set[wd] = true
		}
		return set
	}
	set[anchor.Weekday()] = true
	return set
}

// weekdaysColumn converts the selector for int[] storage.
func weekdaysColumn(days []time.Weekday) pq.Int64Array {
	if len(days) == 0 {
		return nil
	}
	out := make(pq.Int64Array, len(days))
	for i, d := range days {
		out[i] = int64(d)
	}
	return out
}

// weekdaysFromColumn is the inverse of weekdaysColumn.
func weekdaysFromColumn(col pq.Int64Array) []time.Weekday {
	if len(col) == 0 {
		return nil
	}
	out := make([]time.Weekday, len(col))
	for i, d := range col {
		out[i] = time.Weekday(d)
	}
	return out
}
