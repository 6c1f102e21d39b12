// Package timezone converts wall-clock times to absolute instants against
// IANA zone rules, classifying the daylight-saving edge cases instead of
// silently picking an arbitrary instant.
package timezone

import (
	"fmt"
	"time"

	"github.com/orbitcal/orbitcal-api/internal/models"
	appErrors "github.com/orbitcal/orbitcal-api/pkg/errors"
)

// GapPolicy decides how a wall-clock time that does not exist (the
// spring-forward gap) maps to an instant.
type GapPolicy string

// OverlapPolicy decides which of the two instants an ambiguous wall-clock
// time (the fall-back overlap) maps to.
type OverlapPolicy string

const (
	// GapForward resolves to the first valid instant at or after the
	// requested wall-clock time.
	GapForward GapPolicy = "forward"
	// GapReject refuses to resolve gap times.
	GapReject GapPolicy = "reject"

	// OverlapEarlier picks the pre-transition instant.
	OverlapEarlier OverlapPolicy = "earlier"
	// OverlapLater picks the post-transition instant.
	OverlapLater OverlapPolicy = "later"
)

// Resolver maps (calendar date, minute of day, zone id) onto an absolute
// instant. It holds no mutable state and is safe for unrestricted concurrent
// use; zone tables are the runtime's own cached IANA data.
type Resolver struct {
	gap     GapPolicy
	overlap OverlapPolicy
}

// New builds a resolver with the given DST policies. Empty policies fall
// back to the documented defaults: forward for gaps, earlier for overlaps.
func New(gap GapPolicy, overlap OverlapPolicy) *Resolver {
	if gap == "" {
		gap = GapForward
	}
	if overlap == "" {
		overlap = OverlapEarlier
	}
	return &Resolver{gap: gap, overlap: overlap}
}

// Resolve converts the local wall-clock time on date in the named zone to an
// absolute instant, reporting how DST edge cases were handled. date carries
// the calendar day only; minuteOfDay is minutes since local midnight.
func (r *Resolver) Resolve(date time.Time, minuteOfDay int, zoneID string) (time.Time, models.TZClassification, error) {
	if minuteOfDay < 0 || minuteOfDay >= 24*60 {
		return time.Time{}, "", appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("minute of day out of range: %d", minuteOfDay))
	}
	loc, err := time.LoadLocation(zoneID)
	if err != nil || zoneID == "" {
		return time.Time{}, "", appErrors.Wrap(err, appErrors.ErrUnknownZone.Code, appErrors.ErrUnknownZone.Status,
			fmt.Sprintf("unknown time zone %q", zoneID))
	}

	y, m, d := date.Date()
	hour, minute := minuteOfDay/60, minuteOfDay%60

	// The nominal instant read as if the wall clock were UTC. The real
	// instant differs from it by exactly the zone offset, so probing the
	// offsets one day either side of the nominal instant covers any single
	// transition.
	nominal := time.Date(y, m, d, hour, minute, 0, 0, time.UTC)
	offBefore := zoneOffset(nominal.Add(-24*time.Hour), loc)
	offAfter := zoneOffset(nominal.Add(24*time.Hour), loc)

	candBefore := nominal.Add(-offBefore)
	candAfter := nominal.Add(-offAfter)

	matchBefore := sameWallClock(candBefore.In(loc), y, m, d, hour, minute)
	matchAfter := sameWallClock(candAfter.In(loc), y, m, d, hour, minute)

	switch {
	case matchBefore && matchAfter:
		if candBefore.Equal(candAfter) {
			return candBefore, models.TZUnambiguous, nil
		}
		// Fall-back overlap: two real instants share this wall-clock time.
		earlier, later := candBefore, candAfter
		if later.Before(earlier) {
			earlier, later = later, earlier
		}
		if r.overlap == OverlapLater {
			return later, models.TZResolvedLaterOfPair, nil
		}
		return earlier, models.TZResolvedEarlierOfPair, nil
	case matchBefore:
		return candBefore, models.TZUnambiguous, nil
	case matchAfter:
		return candAfter, models.TZUnambiguous, nil
	}

	// Spring-forward gap: the wall-clock time never happened. The first
	// valid instant at or after it is the transition boundary itself, found
	// from the zone in force just before the jump.
	if r.gap == GapReject {
		return time.Time{}, "", appErrors.Clone(appErrors.ErrValidation,
			fmt.Sprintf("local time %02d:%02d on %04d-%02d-%02d does not exist in %s", hour, minute, y, m, d, zoneID))
	}
	preGap := candBefore
	if candAfter.Before(preGap) {
		preGap = candAfter
	}
	_, boundary := preGap.In(loc).ZoneBounds()
	return boundary, models.TZResolvedForwardFromGap, nil
}

// ResolveSpan resolves a start wall-clock time plus duration into absolute
// start/end instants. The end is a fixed duration after the resolved start,
// never an independently resolved wall-clock time, so spans crossing a DST
// transition keep their real length.
func (r *Resolver) ResolveSpan(date time.Time, minuteOfDay, durationMinutes int, zoneID string) (start, end time.Time, cls models.TZClassification, err error) {
	start, cls, err = r.Resolve(date, minuteOfDay, zoneID)
	if err != nil {
		return time.Time{}, time.Time{}, "", err
	}
	end = start.Add(time.Duration(durationMinutes) * time.Minute)
	return start, end, cls, nil
}

// FloatingSpan derives the zone-less instants for an all-day occurrence:
// UTC midnight bounds around the calendar date. The resolver proper is never
// consulted for these.
func FloatingSpan(date time.Time) (start, end time.Time) {
	start = models.DateOnly(date)
	return start, start.Add(24 * time.Hour)
}

// Validate checks that zoneID names a loadable IANA zone.
func Validate(zoneID string) error {
	if zoneID == "" {
		return appErrors.Clone(appErrors.ErrUnknownZone, "time zone identifier is empty")
	}
	if _, err := time.LoadLocation(zoneID); err != nil {
		return appErrors.Wrap(err, appErrors.ErrUnknownZone.Code, appErrors.ErrUnknownZone.Status,
			fmt.Sprintf("unknown time zone %q", zoneID))
	}
	return nil
}

func zoneOffset(t time.Time, loc *time.Location) time.Duration {
	_, off := t.In(loc).Zone()
	return time.Duration(off) * time.Second
}

func sameWallClock(t time.Time, y int, m time.Month, d, hour, minute int) bool {
	ty, tm, td := t.Date()
	return ty == y && tm == m && td == d && t.Hour() == hour && t.Minute() == minute
}
