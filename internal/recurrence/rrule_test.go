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

func TestFromRRuleDaily(t *testing.T) {
	rule, err := FromRRule("FREQ=DAILY;INTERVAL=2;COUNT=10")
	require.NoError(t, err)
	assert.Equal(t, models.FrequencyDaily, rule.Frequency)
	assert.Equal(t, 2, rule.Interval)
	require.NotNil(t, rule.Count)
	assert.Equal(t, 10, *rule.Count)
	assert.Nil(t, rule.Until)
}

func TestFromRRuleWeeklyByDay(t *testing.T) {
	rule, err := FromRRule("FREQ=WEEKLY;BYDAY=MO,WE,FR")
	require.NoError(t, err)
	assert.Equal(t, models.FrequencyWeekly, rule.Frequency)
	assert.Equal(t, 1, rule.Interval)
	assert.Equal(t, []time.Weekday{time.Monday, time.Wednesday, time.Friday}, rule.ByWeekdays)
}

func TestFromRRuleMonthlyByMonthDay(t *testing.T) {
	rule, err := FromRRule("FREQ=MONTHLY;BYMONTHDAY=31")
	require.NoError(t, err)
	assert.Equal(t, models.FrequencyMonthly, rule.Frequency)
	require.NotNil(t, rule.DayOfMonth)
	assert.Equal(t, 31, *rule.DayOfMonth)
}

func TestFromRRuleUntilBecomesDateOnly(t *testing.T) {
	rule, err := FromRRule("FREQ=DAILY;UNTIL=20240315T235959Z")
	require.NoError(t, err)
	require.NotNil(t, rule.Until)
	assert.Equal(t, time.Date(2024, 3, 15, 0, 0, 0, 0, time.UTC), *rule.Until)
}

func TestFromRRuleRejects(t *testing.T) {
	cases := map[string]string{
		"garbage":              "FREQ=SOMETIMES",
		"hourly":               "FREQ=HOURLY",
		"byday on daily":       "FREQ=DAILY;BYDAY=MO",
		"ordinal byday":        "FREQ=WEEKLY;BYDAY=2MO",
		"negative bymonthday":  "FREQ=MONTHLY;BYMONTHDAY=-1",
		"bymonthday on weekly": "FREQ=WEEKLY;BYMONTHDAY=5",
		"bysetpos":             "FREQ=MONTHLY;BYDAY=MO;BYSETPOS=1",
		"bymonth":              "FREQ=YEARLY;BYMONTH=2",
	}
	for name, raw := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := FromRRule(raw)
			require.Error(t, err)
			assert.True(t, errors.Is(err, appErrors.ErrInvalidRule), "want INVALID_RULE, got %v", err)
		})
	}
}
