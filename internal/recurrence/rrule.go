package recurrence

import (
	"fmt"
	"time"

	"github.com/teambition/rrule-go"

	"github.com/orbitcal/orbitcal-api/internal/models"
	appErrors "github.com/orbitcal/orbitcal-api/pkg/errors"
)

// FromRRule maps an iCalendar RRULE string onto a RecurrenceRule. Only the
// parts this engine models are accepted: FREQ of DAILY/WEEKLY/MONTHLY/YEARLY,
// INTERVAL, BYDAY (weekly, plain weekdays only), BYMONTHDAY (single positive
// day), UNTIL and COUNT. Anything else is rejected as INVALID_RULE rather
// than silently dropped.
func FromRRule(raw string) (models.RecurrenceRule, error) {
	opts, err := rrule.StrToROption(raw)
	if err != nil {
		return models.RecurrenceRule{}, appErrors.Wrap(err, appErrors.ErrInvalidRule.Code, appErrors.ErrInvalidRule.Status,
			"unparseable RRULE")
	}

	var out models.RecurrenceRule
	switch opts.Freq {
	case rrule.DAILY:
		out.Frequency = models.FrequencyDaily
	case rrule.WEEKLY:
		out.Frequency = models.FrequencyWeekly
	case rrule.MONTHLY:
		out.Frequency = models.FrequencyMonthly
	case rrule.YEARLY:
		out.Frequency = models.FrequencyYearly
	default:
		return models.RecurrenceRule{}, appErrors.Clone(appErrors.ErrInvalidRule,
			fmt.Sprintf("unsupported RRULE frequency %v", opts.Freq))
	}

	out.Interval = opts.Interval
	if out.Interval == 0 {
		out.Interval = 1
	}

	if len(opts.Byweekday) > 0 {
		if out.Frequency != models.FrequencyWeekly {
			return models.RecurrenceRule{}, appErrors.Clone(appErrors.ErrInvalidRule, "BYDAY is only supported with FREQ=WEEKLY")
		}
		days := make([]time.Weekday, 0, len(opts.Byweekday))
		for _, wd := range opts.Byweekday {
			if wd.N() != 0 {
				return models.RecurrenceRule{}, appErrors.Clone(appErrors.ErrInvalidRule, "ordinal BYDAY values are not supported")
			}
			days = append(days, rruleWeekday(wd))
		}
		out.ByWeekdays = days
	}

	if len(opts.Bymonthday) > 0 {
		if out.Frequency != models.FrequencyMonthly || len(opts.Bymonthday) != 1 {
			return models.RecurrenceRule{}, appErrors.Clone(appErrors.ErrInvalidRule, "BYMONTHDAY must be a single day on a monthly rule")
		}
		day := opts.Bymonthday[0]
		if day < 1 {
			return models.RecurrenceRule{}, appErrors.Clone(appErrors.ErrInvalidRule, "negative BYMONTHDAY values are not supported")
		}
		out.DayOfMonth = &day
	}

	if len(opts.Bysetpos) > 0 || len(opts.Byyearday) > 0 || len(opts.Byweekno) > 0 ||
		len(opts.Bymonth) > 0 || len(opts.Byhour) > 0 || len(opts.Byminute) > 0 || len(opts.Bysecond) > 0 {
		return models.RecurrenceRule{}, appErrors.Clone(appErrors.ErrInvalidRule, "unsupported RRULE by-part")
	}

	if !opts.Until.IsZero() {
		until := models.DateOnly(opts.Until)
		out.Until = &until
	}
	if opts.Count > 0 {
		count := opts.Count
		out.Count = &count
	}

	if err := out.Validate(); err != nil {
		return models.RecurrenceRule{}, err
	}
	return out, nil
}

func rruleWeekday(wd rrule.Weekday) time.Weekday {
	// rrule counts from Monday=0, time.Weekday from Sunday=0.
	return time.Weekday((wd.Day() + 1) % 7)
}
