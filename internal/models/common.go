package models

import (
	"fmt"
	"time"

	appErrors "github.com/orbitcal/orbitcal-api/pkg/errors"
)

// ISODate is the wire format for calendar dates.
const ISODate = "2006-01-02"

// Pagination contains pagination metadata returned in list responses.
type Pagination struct {
	Page       int `json:"page"`
	PageSize   int `json:"page_size"`
	TotalCount int `json:"total_count"`
}

// DateOnly strips the clock and zone from t, keeping the calendar date as a
// midnight-UTC time.Time. All occurrence dates flow through this so equality
// and range comparisons stay exact.
func DateOnly(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}

// ParseDate parses a YYYY-MM-DD string into a date-only time.Time.
func ParseDate(raw string) (time.Time, error) {
	t, err := time.Parse(ISODate, raw)
	if err != nil {
		return time.Time{}, appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("invalid date %q, expected YYYY-MM-DD", raw))
	}
	return t, nil
}

// FormatDate renders a date-only time.Time as YYYY-MM-DD.
func FormatDate(t time.Time) string {
	return t.Format(ISODate)
}

func errInvalidRule(format string, args ...interface{}) error {
	return appErrors.Clone(appErrors.ErrInvalidRule, fmt.Sprintf(format, args...))
}
