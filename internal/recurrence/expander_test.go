package recurrence

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/orbitcal/orbitcal-api/internal/models"
	appErrors "github.com/orbitcal/orbitcal-api/pkg/errors"
)

func date(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func dates(raw ...string) []time.Time {
	out := make([]time.Time, len(raw))
	for i, r := range raw {
		t, err := time.Parse("2006-01-02", r)
		if err != nil {
			panic(err)
		}
		out[i] = t
	}
	return out
}

func TestExpandDailyInclusiveWindow(t *testing.T) {
	rule := models.RecurrenceRule{Frequency: models.FrequencyDaily, Interval: 1}

	got, err := Expand(rule, date(2024, 1, 1), date(2024, 1, 1), date(2024, 1, 5))
	require.NoError(t, err)
	assert.Equal(t, dates("2024-01-01", "2024-01-02", "2024-01-03", "2024-01-04", "2024-01-05"), got)
}

func TestExpandDailyIntervalSkipsDays(t *testing.T) {
	rule := models.RecurrenceRule{Frequency: models.FrequencyDaily, Interval: 3}

	got, err := Expand(rule, date(2024, 1, 1), date(2024, 1, 1), date(2024, 1, 10))
	require.NoError(t, err)
	assert.Equal(t, dates("2024-01-01", "2024-01-04", "2024-01-07", "2024-01-10"), got)
}

func TestExpandWeeklyBySelectedWeekdays(t *testing.T) {
	// 2024-01-01 is a Monday.
	rule := models.RecurrenceRule{
		Frequency:  models.FrequencyWeekly,
		Interval:   1,
		ByWeekdays: []time.Weekday{time.Monday, time.Wednesday, time.Friday},
	}

	got, err := Expand(rule, date(2024, 1, 1), date(2024, 1, 1), date(2024, 1, 12))
	require.NoError(t, err)
	assert.Equal(t, dates(
		"2024-01-01", "2024-01-03", "2024-01-05",
		"2024-01-08", "2024-01-10", "2024-01-12",
	), got)
}

func TestExpandWeeklySelectorBeforeAnchorIsSkipped(t *testing.T) {
	// Anchor on Wednesday 2024-01-03 with Monday selected: the Monday of the
	// anchor's own week precedes the anchor and must not appear.
	rule := models.RecurrenceRule{
		Frequency:  models.FrequencyWeekly,
		Interval:   1,
		ByWeekdays: []time.Weekday{time.Monday, time.Wednesday},
	}

	got, err := Expand(rule, date(2024, 1, 3), date(2024, 1, 1), date(2024, 1, 10))
	require.NoError(t, err)
	assert.Equal(t, dates("2024-01-03", "2024-01-08", "2024-01-10"), got)
}

func TestExpandBiweeklyUsesAnchorWeekBlocks(t *testing.T) {
	rule := models.RecurrenceRule{
		Frequency:  models.FrequencyWeekly,
		Interval:   2,
		ByWeekdays: []time.Weekday{time.Tuesday},
	}

	got, err := Expand(rule, date(2024, 1, 2), date(2024, 1, 1), date(2024, 2, 1))
	require.NoError(t, err)
	assert.Equal(t, dates("2024-01-02", "2024-01-16", "2024-01-30"), got)
}

func TestExpandMonthlySkipsShortMonths(t *testing.T) {
	// A 31st series produces nothing in months without a 31st; the date is
	// never clamped to the month's last day.
	rule := models.RecurrenceRule{Frequency: models.FrequencyMonthly, Interval: 1}

	got, err := Expand(rule, date(2024, 1, 31), date(2024, 1, 1), date(2024, 6, 30))
	require.NoError(t, err)
	assert.Equal(t, dates("2024-01-31", "2024-03-31", "2024-05-31"), got)
}

func TestExpandMonthlyWithPinnedDay(t *testing.T) {
	day := 15
	rule := models.RecurrenceRule{Frequency: models.FrequencyMonthly, Interval: 2, DayOfMonth: &day}

	got, err := Expand(rule, date(2024, 1, 15), date(2024, 1, 1), date(2024, 7, 1))
	require.NoError(t, err)
	assert.Equal(t, dates("2024-01-15", "2024-03-15", "2024-05-15"), got)
}

func TestExpandYearlyLeapDaySkipsCommonYears(t *testing.T) {
	rule := models.RecurrenceRule{Frequency: models.FrequencyYearly, Interval: 1}

	got, err := Expand(rule, date(2024, 2, 29), date(2024, 1, 1), date(2030, 12, 31))
	require.NoError(t, err)
	assert.Equal(t, dates("2024-02-29", "2028-02-29"), got)
}

func TestExpandUntilIsInclusive(t *testing.T) {
	until := date(2024, 1, 3)
	rule := models.RecurrenceRule{Frequency: models.FrequencyDaily, Interval: 1, Until: &until}

	got, err := Expand(rule, date(2024, 1, 1), date(2024, 1, 1), date(2024, 1, 10))
	require.NoError(t, err)
	assert.Equal(t, dates("2024-01-01", "2024-01-02", "2024-01-03"), got)
}

func TestExpandCountIsConsumedFromAnchor(t *testing.T) {
	// Five total occurrences from the anchor; a window that opens late only
	// sees the unconsumed tail.
	count := 5
	rule := models.RecurrenceRule{Frequency: models.FrequencyDaily, Interval: 1, Count: &count}

	got, err := Expand(rule, date(2024, 1, 1), date(2024, 1, 4), date(2024, 1, 31))
	require.NoError(t, err)
	assert.Equal(t, dates("2024-01-04", "2024-01-05"), got)
}

func TestExpandEmptyWindowBeforeSeries(t *testing.T) {
	rule := models.RecurrenceRule{Frequency: models.FrequencyDaily, Interval: 1}

	got, err := Expand(rule, date(2024, 6, 1), date(2024, 1, 1), date(2024, 1, 31))
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestExpandRejectsOverfullWindow(t *testing.T) {
	rule := models.RecurrenceRule{Frequency: models.FrequencyDaily, Interval: 1}

	_, err := Expand(rule, date(2020, 1, 1), date(2020, 1, 1), date(2023, 1, 1))
	require.Error(t, err)
	assert.True(t, errors.Is(err, appErrors.ErrHorizonExceeded))
}

func TestExpandRejectsInvalidRule(t *testing.T) {
	rule := models.RecurrenceRule{Frequency: models.FrequencyDaily, Interval: 0}

	_, err := Expand(rule, date(2024, 1, 1), date(2024, 1, 1), date(2024, 1, 2))
	require.Error(t, err)
	assert.True(t, errors.Is(err, appErrors.ErrInvalidRule))
}

func TestExpandRejectsInvertedWindow(t *testing.T) {
	rule := models.RecurrenceRule{Frequency: models.FrequencyDaily, Interval: 1}

	_, err := Expand(rule, date(2024, 1, 1), date(2024, 2, 1), date(2024, 1, 1))
	require.Error(t, err)
	assert.True(t, errors.Is(err, appErrors.ErrValidation))
}

func TestExpandIsDeterministic(t *testing.T) {
	rule := models.RecurrenceRule{
		Frequency:  models.FrequencyWeekly,
		Interval:   1,
		ByWeekdays: []time.Weekday{time.Monday, time.Friday},
	}

	first, err := Expand(rule, date(2024, 1, 1), date(2024, 1, 1), date(2024, 3, 1))
	require.NoError(t, err)
	second, err := Expand(rule, date(2024, 1, 1), date(2024, 1, 1), date(2024, 3, 1))
	require.NoError(t, err)
	assert.Equal(t, first, second)
}

func TestFirstWeeklySelectorAfterAnchor(t *testing.T) {
	// Anchor on Monday with only Thursday selected: the series starts on the
	// Thursday of the anchor week.
	rule := models.RecurrenceRule{
		Frequency:  models.FrequencyWeekly,
		Interval:   1,
		ByWeekdays: []time.Weekday{time.Thursday},
	}

	first, ok := First(rule, date(2024, 1, 1))
	require.True(t, ok)
	assert.Equal(t, date(2024, 1, 4), first)
}

func TestCountBeforeSplitDate(t *testing.T) {
	count := 10
	rule := models.RecurrenceRule{Frequency: models.FrequencyDaily, Interval: 1, Count: &count}

	assert.Equal(t, 0, CountBefore(rule, date(2024, 1, 1), date(2024, 1, 1)))
	assert.Equal(t, 3, CountBefore(rule, date(2024, 1, 1), date(2024, 1, 4)))
	// Consumption never exceeds the rule's own count.
	assert.Equal(t, 10, CountBefore(rule, date(2024, 1, 1), date(2024, 6, 1)))
}
