package models

import (
	"time"

	"github.com/lib/pq"
)

// EventDefinition is the repeating template a series of occurrence slots is
// generated from. StartDate/StartMinute/Timezone describe the wall-clock
// anchor; GenerationHorizon is the furthest date slots have been materialized
// through. ExceptionDates are calendar dates permanently removed from the
// series so an idempotent re-materialization will not resurrect them.
type EventDefinition struct {
	ID              string         `db:"id" json:"id"`
	OwnerID         string         `db:"owner_id" json:"owner_id"`
	Title           string         `db:"title" json:"title"`
	Description     *string        `db:"description" json:"description,omitempty"`
	StartDate       time.Time      `db:"start_date" json:"start_date"`
	StartMinute     int            `db:"start_minute" json:"start_minute"`
	DurationMinutes int            `db:"duration_minutes" json:"duration_minutes"`
	Timezone        string         `db:"timezone" json:"timezone"`
	AllDay          bool           `db:"all_day" json:"all_day"`
	Recurrence      RecurrenceRule `db:"-" json:"recurrence"`

	GenerationHorizon time.Time      `db:"generation_horizon" json:"generation_horizon"`
	ExceptionDates    pq.StringArray `db:"exception_dates" json:"exception_dates,omitempty"`

	CreatedAt time.Time `db:"created_at" json:"created_at"`
	UpdatedAt time.Time `db:"updated_at" json:"updated_at"`

	// Flattened recurrence columns; kept in sync with Recurrence by the
	// repository layer.
	Frequency       Frequency     `db:"frequency" json:"-"`
	RecurInterval   int           `db:"recur_interval" json:"-"`
	ByWeekdaysRaw   pq.Int64Array `db:"by_weekdays" json:"-"`
	DayOfMonth      *int          `db:"day_of_month" json:"-"`
	Until           *time.Time    `db:"until" json:"-"`
	OccurrenceCount *int          `db:"occurrence_count" json:"-"`
}

// SyncRecurrenceColumns copies the owned rule into the flattened columns
// before persistence.
func (e *EventDefinition) SyncRecurrenceColumns() {
	e.Frequency = e.Recurrence.Frequency
	e.RecurInterval = e.Recurrence.Interval
	e.ByWeekdaysRaw = weekdaysColumn(e.Recurrence.ByWeekdays)
	e.DayOfMonth = e.Recurrence.DayOfMonth
	e.Until = e.Recurrence.Until
	e.OccurrenceCount = e.Recurrence.Count
}

// HydrateRecurrence rebuilds the owned rule from the flattened columns after
// a database read.
func (e *EventDefinition) HydrateRecurrence() {
	e.Recurrence = RecurrenceRule{
		Frequency:  e.Frequency,
		Interval:   e.RecurInterval,
		ByWeekdays: weekdaysFromColumn(e.ByWeekdaysRaw),
		DayOfMonth: e.DayOfMonth,
		Until:      e.Until,
		Count:      e.OccurrenceCount,
	}
}

// HasException reports whether the date has been removed from the series.
func (e *EventDefinition) HasException(date time.Time) bool {
	key := FormatDate(date)
	for _, d := range e.ExceptionDates {
		if d == key {
			return true
		}
	}
	return false
}

// StartClock returns the wall-clock hour and minute of the template.
func (e *EventDefinition) StartClock() (hour, minute int) {
	return e.StartMinute / 60, e.StartMinute % 60
}
