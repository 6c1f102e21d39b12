package service

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"

	"github.com/orbitcal/orbitcal-api/internal/models"
	"github.com/orbitcal/orbitcal-api/internal/recurrence"
	appErrors "github.com/orbitcal/orbitcal-api/pkg/errors"
)

// RangeResult is a range-query answer. HorizonTruncated warns that the
// requested range reaches past at least one matching series' materialization
// horizon; the caller is expected to trigger materialization asynchronously
// and re-query.
type RangeResult struct {
	Slots            []models.OccurrenceSlot `json:"slots"`
	HorizonTruncated bool                    `json:"horizon_truncated"`
}

// RangeQueryService answers occurrence-range questions from materialized
// slots only. It never expands recurrences and never writes anything, so it
// needs no lock and can run concurrently with a horizon extension.
type RangeQueryService struct {
	events       eventRepository
	slots        slotRepository
	cache        *CacheService
	metrics      *MetricsService
	logger       *zap.Logger
	maxRangeDays int
	group        singleflight.Group
}

// NewRangeQueryService constructs the service.
func NewRangeQueryService(events eventRepository, slots slotRepository, cache *CacheService,
	metrics *MetricsService, maxRangeDays int, logger *zap.Logger) *RangeQueryService {
	if maxRangeDays <= 0 {
		maxRangeDays = 366
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &RangeQueryService{events: events, slots: slots, cache: cache, metrics: metrics,
		maxRangeDays: maxRangeDays, logger: logger}
}

// Query returns the non-cancelled occurrences of an owner's events whose
// start instant falls within [start, end), sorted by start instant.
// Identical concurrent queries are coalesced into one database read.
func (s *RangeQueryService) Query(ctx context.Context, ownerID string, start, end time.Time) (*RangeResult, error) {
	if ownerID == "" {
		return nil, appErrors.Clone(appErrors.ErrValidation, "owner id is required")
	}
	if !end.After(start) {
		return nil, appErrors.Clone(appErrors.ErrValidation, "range end must follow range start")
	}
	if end.Sub(start) > time.Duration(s.maxRangeDays)*24*time.Hour {
		return nil, appErrors.Clone(appErrors.ErrValidation,
			fmt.Sprintf("range wider than %d days", s.maxRangeDays))
	}

	key := fmt.Sprintf("range:%s:%d:%d", ownerID, start.UnixNano(), end.UnixNano())
	var cached RangeResult
	if hit, _ := s.cache.Get(ctx, key, &cached); hit {
		return &cached, nil
	}

	v, err, _ := s.group.Do(key, func() (interface{}, error) {
		result, err := s.read(ctx, ownerID, start, end)
		if err != nil {
			return nil, err
		}
		s.cache.Set(ctx, key, result, 0)
		return result, nil
	})
	if err != nil {
		return nil, err
	}
	return v.(*RangeResult), nil
}

func (s *RangeQueryService) read(ctx context.Context, ownerID string, start, end time.Time) (*RangeResult, error) {
	slots, err := s.slots.ListRange(ctx, models.SlotRangeFilter{OwnerID: ownerID, Start: start, End: end})
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to scan slots")
	}

	truncated, err := s.horizonTruncated(ctx, ownerID, end)
	if err != nil {
		return nil, err
	}
	if truncated {
		s.metrics.RecordTruncatedQuery()
		s.logger.Warn("range query truncated at materialization horizon",
			zap.String("owner_id", ownerID),
			zap.Time("range_end", end))
	}
	if slots == nil {
		slots = []models.OccurrenceSlot{}
	}
	return &RangeResult{Slots: slots, HorizonTruncated: truncated}, nil
}

// horizonTruncated reports whether any of the owner's open series has a
// materialization horizon short of the requested end.
func (s *RangeQueryService) horizonTruncated(ctx context.Context, ownerID string, end time.Time) (bool, error) {
	events, err := s.events.ListByOwner(ctx, ownerID)
	if err != nil {
		return false, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list events")
	}
	endDate := models.DateOnly(end)
	for i := range events {
		horizon := models.DateOnly(events[i].GenerationHorizon)
		if horizon.Before(endDate) && !seriesEndsBy(&events[i], horizon) {
			return true, nil
		}
	}
	return false, nil
}

// seriesEndsBy reports whether the series cannot produce occurrences past
// the given date, in which case a short horizon is not truncation. A series
// ends either by an until bound at or before the date, or by having consumed
// its whole occurrence count on or before it.
func seriesEndsBy(event *models.EventDefinition, date time.Time) bool {
	if event.Recurrence.Until != nil && !models.DateOnly(*event.Recurrence.Until).After(date) {
		return true
	}
	if event.Recurrence.Count != nil {
		consumed := recurrence.CountBefore(event.Recurrence, event.StartDate, models.DateOnly(date).AddDate(0, 0, 1))
		return consumed >= *event.Recurrence.Count
	}
	return false
}
