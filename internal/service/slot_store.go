package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
	"go.uber.org/zap"

	"github.com/orbitcal/orbitcal-api/internal/models"
	"github.com/orbitcal/orbitcal-api/internal/recurrence"
	"github.com/orbitcal/orbitcal-api/internal/timezone"
	appErrors "github.com/orbitcal/orbitcal-api/pkg/errors"
)

type eventRepository interface {
	Create(ctx context.Context, exec sqlx.ExtContext, event *models.EventDefinition) error
	GetByID(ctx context.Context, id string) (*models.EventDefinition, error)
	ListByOwner(ctx context.Context, ownerID string) ([]models.EventDefinition, error)
	ListStaleHorizons(ctx context.Context, through time.Time) ([]models.EventDefinition, error)
	UpdateTemplate(ctx context.Context, exec sqlx.ExtContext, event *models.EventDefinition) error
	UpdateHorizon(ctx context.Context, exec sqlx.ExtContext, id string, horizon time.Time) error
	TruncateSeries(ctx context.Context, exec sqlx.ExtContext, id string, until time.Time) error
	AddException(ctx context.Context, exec sqlx.ExtContext, id string, date time.Time) error
	Delete(ctx context.Context, exec sqlx.ExtContext, id string) error
	WithTx(ctx context.Context, fn func(tx *sqlx.Tx) error) error
}

type slotRepository interface {
	UpsertBatch(ctx context.Context, exec sqlx.ExtContext, slots []models.OccurrenceSlot) error
	GetByEventAndDate(ctx context.Context, eventID string, date time.Time) (*models.OccurrenceSlot, error)
	ListRange(ctx context.Context, filter models.SlotRangeFilter) ([]models.OccurrenceSlot, error)
	ListByEvent(ctx context.Context, eventID string) ([]models.OccurrenceSlot, error)
	Cancel(ctx context.Context, exec sqlx.ExtContext, slotID string) error
	ApplyOverride(ctx context.Context, exec sqlx.ExtContext, slotID string, o models.SlotOverride) error
	ClearOverrides(ctx context.Context, exec sqlx.ExtContext, eventID string) (int64, error)
	UpdateInstants(ctx context.Context, exec sqlx.ExtContext, slotID string, start, end time.Time, cls models.TZClassification) error
	DeleteFromDate(ctx context.Context, exec sqlx.ExtContext, eventID string, date time.Time) (int64, error)
	DeleteByEvent(ctx context.Context, exec sqlx.ExtContext, eventID string) (int64, error)
	DeleteByID(ctx context.Context, exec sqlx.ExtContext, slotID string) error
}

// SlotStore turns expanded occurrence dates into persisted, individually
// addressable slot rows and owns all per-slot state transitions.
type SlotStore struct {
	events   eventRepository
	slots    slotRepository
	resolver *timezone.Resolver
	locker   EventLocker
	cache    *CacheService
	metrics  *MetricsService
	logger   *zap.Logger
}

// NewSlotStore constructs the store.
func NewSlotStore(events eventRepository, slots slotRepository, resolver *timezone.Resolver,
	locker EventLocker, cache *CacheService, metrics *MetricsService, logger *zap.Logger) *SlotStore {
	if logger == nil {
		logger = zap.NewNop()
	}
	if locker == nil {
		locker = NewMemoryEventLock()
	}
	return &SlotStore{events: events, slots: slots, resolver: resolver, locker: locker,
		cache: cache, metrics: metrics, logger: logger}
}

// Materialize extends an event's slot coverage through the given date. It is
// idempotent: already-covered windows produce no new rows, and a crashed run
// resumes cleanly because slot rows land before the horizon advances.
// Returns the number of slots written.
func (s *SlotStore) Materialize(ctx context.Context, eventID string, through time.Time) (int, error) {
	release, err := s.locker.Acquire(ctx, eventID)
	if err != nil {
		s.metrics.RecordLockContention()
		return 0, err
	}
	defer release()

	event, err := s.loadEvent(ctx, eventID)
	if err != nil {
		return 0, err
	}
	return s.materializeLocked(ctx, nil, event, through)
}

// materializeLocked is the lock-free core shared with the update-scope
// handler, which already holds the event lock (and possibly a transaction).
func (s *SlotStore) materializeLocked(ctx context.Context, exec sqlx.ExtContext, event *models.EventDefinition, through time.Time) (int, error) {
	through = models.DateOnly(through)
	windowStart := models.DateOnly(event.GenerationHorizon).AddDate(0, 0, 1)
	if through.Before(windowStart) {
		return 0, nil
	}

	dates, err := recurrence.Expand(event.Recurrence, event.StartDate, windowStart, through)
	if err != nil {
		return 0, err
	}

	slots := make([]models.OccurrenceSlot, 0, len(dates))
	for _, date := range dates {
		if event.HasException(date) {
			continue
		}
		slot, err := s.buildSlot(event, date)
		if err != nil {
			return 0, err
		}
		slots = append(slots, slot)
	}

	write := func(exec sqlx.ExtContext) error {
		if err := s.slots.UpsertBatch(ctx, exec, slots); err != nil {
			return err
		}
		return s.events.UpdateHorizon(ctx, exec, event.ID, through)
	}
	if exec != nil {
		err = write(exec)
	} else {
		err = s.events.WithTx(ctx, func(tx *sqlx.Tx) error { return write(tx) })
	}
	if err != nil {
		return 0, err
	}

	event.GenerationHorizon = through
	s.metrics.RecordMaterialization(len(dates), len(slots))
	s.invalidateRanges(ctx, event.OwnerID)
	s.logger.Info("materialized slots",
		zap.String("event_id", event.ID),
		zap.Int("expanded", len(dates)),
		zap.Int("written", len(slots)),
		zap.String("through", models.FormatDate(through)))
	return len(slots), nil
}

// buildSlot resolves one occurrence date against the template's wall clock.
func (s *SlotStore) buildSlot(event *models.EventDefinition, date time.Time) (models.OccurrenceSlot, error) {
	var (
		start, end time.Time
		cls        models.TZClassification
		err        error
	)
	if event.AllDay {
		start, end = timezone.FloatingSpan(date)
		cls = models.TZFloating
	} else {
		start, end, cls, err = s.resolver.ResolveSpan(date, event.StartMinute, event.DurationMinutes, event.Timezone)
		if err != nil {
			return models.OccurrenceSlot{}, err
		}
		if cls != models.TZUnambiguous {
			s.metrics.RecordDSTResolution(cls)
			s.logger.Warn("wall-clock time resolved through DST policy",
				zap.String("event_id", event.ID),
				zap.String("date", models.FormatDate(date)),
				zap.String("classification", string(cls)))
		}
	}
	return models.OccurrenceSlot{
		EventID:          event.ID,
		LocalDate:        date,
		StartUTC:         start,
		EndUTC:           end,
		TZClassification: cls,
	}, nil
}

// GetSlot fetches one slot addressed by series and date.
func (s *SlotStore) GetSlot(ctx context.Context, eventID string, date time.Time) (*models.OccurrenceSlot, error) {
	slot, err := s.slots.GetByEventAndDate(ctx, eventID, models.DateOnly(date))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrSlotNotFound,
				fmt.Sprintf("no occurrence of event %s on %s", eventID, models.FormatDate(date)))
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load slot")
	}
	return slot, nil
}

// activeSlot loads a slot that must exist and not be cancelled.
func (s *SlotStore) activeSlot(ctx context.Context, eventID string, date time.Time) (*models.OccurrenceSlot, error) {
	slot, err := s.GetSlot(ctx, eventID, date)
	if err != nil {
		return nil, err
	}
	if slot.IsCancelled {
		return nil, appErrors.Clone(appErrors.ErrSlotNotFound,
			fmt.Sprintf("occurrence of event %s on %s is cancelled", eventID, models.FormatDate(date)))
	}
	return slot, nil
}

// Cancel soft-deletes one occurrence. The row is retained for history.
func (s *SlotStore) Cancel(ctx context.Context, eventID string, date time.Time) error {
	slot, err := s.activeSlot(ctx, eventID, date)
	if err != nil {
		return err
	}
	if err := s.slots.Cancel(ctx, nil, slot.ID); err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to cancel slot")
	}
	s.invalidateForEvent(ctx, eventID)
	return nil
}

// ApplyOverride stores a SINGLE-scope edit on one slot. Clock overrides
// re-resolve the slot's absolute span; the owning definition is untouched.
func (s *SlotStore) ApplyOverride(ctx context.Context, eventID string, date time.Time, o models.SlotOverride) (*models.OccurrenceSlot, error) {
	if o.Empty() {
		return nil, appErrors.Clone(appErrors.ErrValidation, "override changes nothing")
	}
	if o.StartMinute != nil && (*o.StartMinute < 0 || *o.StartMinute >= 24*60) {
		return nil, appErrors.Clone(appErrors.ErrValidation, "override start_minute out of range")
	}
	if o.DurationMinutes != nil && *o.DurationMinutes < 1 {
		return nil, appErrors.Clone(appErrors.ErrValidation, "override duration must be positive")
	}

	slot, err := s.activeSlot(ctx, eventID, date)
	if err != nil {
		return nil, err
	}
	event, err := s.loadEvent(ctx, eventID)
	if err != nil {
		return nil, err
	}

	err = s.events.WithTx(ctx, func(tx *sqlx.Tx) error {
		if err := s.slots.ApplyOverride(ctx, tx, slot.ID, o); err != nil {
			return err
		}
		if event.AllDay || (o.StartMinute == nil && o.DurationMinutes == nil) {
			return nil
		}
		minute := event.StartMinute
		if o.StartMinute != nil {
			minute = *o.StartMinute
		}
		duration := event.DurationMinutes
		if o.DurationMinutes != nil {
			duration = *o.DurationMinutes
		}
		start, end, cls, err := s.resolver.ResolveSpan(slot.LocalDate, minute, duration, event.Timezone)
		if err != nil {
			return err
		}
		return s.slots.UpdateInstants(ctx, tx, slot.ID, start, end, cls)
	})
	if err != nil {
		return nil, err
	}

	s.invalidateRanges(ctx, event.OwnerID)
	return s.GetSlot(ctx, eventID, date)
}

// RemoveOccurrence hard-deletes one occurrence and records it as an
// exception date so re-materialization will not resurrect it. Unlike Cancel
// this leaves no audit row.
func (s *SlotStore) RemoveOccurrence(ctx context.Context, eventID string, date time.Time) error {
	release, err := s.locker.Acquire(ctx, eventID)
	if err != nil {
		s.metrics.RecordLockContention()
		return err
	}
	defer release()

	slot, err := s.GetSlot(ctx, eventID, date)
	if err != nil {
		return err
	}
	err = s.events.WithTx(ctx, func(tx *sqlx.Tx) error {
		if err := s.slots.DeleteByID(ctx, tx, slot.ID); err != nil {
			return err
		}
		return s.events.AddException(ctx, tx, eventID, models.DateOnly(date))
	})
	if err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to remove occurrence")
	}
	s.invalidateForEvent(ctx, eventID)
	return nil
}

func (s *SlotStore) loadEvent(ctx context.Context, eventID string) (*models.EventDefinition, error) {
	event, err := s.events.GetByID(ctx, eventID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "event not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load event")
	}
	return event, nil
}

func (s *SlotStore) invalidateForEvent(ctx context.Context, eventID string) {
	event, err := s.events.GetByID(ctx, eventID)
	if err != nil {
		return
	}
	s.invalidateRanges(ctx, event.OwnerID)
}

func (s *SlotStore) invalidateRanges(ctx context.Context, ownerID string) {
	s.cache.Invalidate(ctx, fmt.Sprintf("range:%s:*", ownerID))
}
