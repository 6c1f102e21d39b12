package service

import (
	"context"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
	"go.uber.org/zap"

	"github.com/orbitcal/orbitcal-api/internal/models"
	"github.com/orbitcal/orbitcal-api/internal/recurrence"
	"github.com/orbitcal/orbitcal-api/internal/timezone"
	appErrors "github.com/orbitcal/orbitcal-api/pkg/errors"
)

// UpdateScopeHandler applies an edit to one slot, to a suffix of a series,
// or to the whole series. The three scopes are one tagged dispatch so the
// split/no-split decision stays exhaustive; each application is a terminal
// one-shot operation with no resumable state.
type UpdateScopeHandler struct {
	events   eventRepository
	slots    slotRepository
	store    *SlotStore
	resolver *timezone.Resolver
	locker   EventLocker
	cache    *CacheService
	metrics  *MetricsService
	logger   *zap.Logger
}

// NewUpdateScopeHandler constructs the handler.
func NewUpdateScopeHandler(events eventRepository, slots slotRepository, store *SlotStore,
	resolver *timezone.Resolver, locker EventLocker, cache *CacheService, metrics *MetricsService, logger *zap.Logger) *UpdateScopeHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	if locker == nil {
		locker = NewMemoryEventLock()
	}
	return &UpdateScopeHandler{events: events, slots: slots, store: store, resolver: resolver,
		locker: locker, cache: cache, metrics: metrics, logger: logger}
}

// Apply dispatches the update by scope.
func (h *UpdateScopeHandler) Apply(ctx context.Context, update models.SeriesUpdate) (*models.SeriesUpdateResult, error) {
	if !update.Scope.Valid() {
		return nil, appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("unknown update scope %q", update.Scope))
	}
	if update.Scope != models.ScopeAll && update.TargetDate.IsZero() {
		return nil, appErrors.Clone(appErrors.ErrValidation, "target_date is required for this scope")
	}
	if update.Template.Timezone != nil {
		if err := timezone.Validate(*update.Template.Timezone); err != nil {
			return nil, err
		}
	}

	switch update.Scope {
	case models.ScopeSingle:
		return h.applySingle(ctx, update)
	case models.ScopeThisAndFuture:
		return h.applySplit(ctx, update)
	default:
		return h.applyAll(ctx, update)
	}
}

// applySingle overrides exactly one slot; the definition is untouched.
func (h *UpdateScopeHandler) applySingle(ctx context.Context, update models.SeriesUpdate) (*models.SeriesUpdateResult, error) {
	if _, err := h.store.ApplyOverride(ctx, update.EventID, update.TargetDate, update.Override); err != nil {
		return nil, err
	}
	return &models.SeriesUpdateResult{EventID: update.EventID, Scope: models.ScopeSingle, SlotsAffected: 1}, nil
}

// applySplit performs a THIS_AND_FUTURE edit: the original series is
// truncated the day before the target, its future slots are un-materialized,
// and a successor definition anchored at the target carries the edited
// template plus whatever termination budget remains.
func (h *UpdateScopeHandler) applySplit(ctx context.Context, update models.SeriesUpdate) (*models.SeriesUpdateResult, error) {
	release, err := h.locker.Acquire(ctx, update.EventID)
	if err != nil {
		h.metrics.RecordLockContention()
		return nil, err
	}
	defer release()

	event, err := h.store.loadEvent(ctx, update.EventID)
	if err != nil {
		return nil, err
	}
	targetDate := models.DateOnly(update.TargetDate)
	if _, err := h.store.activeSlot(ctx, update.EventID, targetDate); err != nil {
		return nil, err
	}

	// A split at the very first occurrence would leave an empty predecessor
	// series; it degenerates to an ALL edit instead.
	if first, ok := recurrence.First(event.Recurrence, event.StartDate); ok && first.Equal(targetDate) {
		h.logger.Info("split at first occurrence degenerates to ALL edit", zap.String("event_id", event.ID))
		result, err := h.applyAllLocked(ctx, event, update.Template)
		if err != nil {
			return nil, err
		}
		result.Scope = models.ScopeThisAndFuture
		return result, nil
	}

	successor := h.buildSuccessor(event, targetDate, update.Template)
	originalHorizon := models.DateOnly(event.GenerationHorizon)

	var removed int64
	err = h.events.WithTx(ctx, func(tx *sqlx.Tx) error {
		if err := h.events.TruncateSeries(ctx, tx, event.ID, targetDate.AddDate(0, 0, -1)); err != nil {
			return err
		}
		removed, err = h.slots.DeleteFromDate(ctx, tx, event.ID, targetDate)
		if err != nil {
			return err
		}
		if err := h.events.Create(ctx, tx, successor); err != nil {
			return err
		}
		if originalHorizon.Before(targetDate) {
			return nil
		}
		_, err := h.store.materializeLocked(ctx, tx, successor, originalHorizon)
		return err
	})
	if err != nil {
		return nil, err
	}

	h.cache.Invalidate(ctx, fmt.Sprintf("range:%s:*", event.OwnerID))
	h.logger.Info("series split",
		zap.String("event_id", event.ID),
		zap.String("successor_id", successor.ID),
		zap.String("split_date", models.FormatDate(targetDate)),
		zap.Int64("slots_unmaterialized", removed))
	return &models.SeriesUpdateResult{
		EventID:       event.ID,
		Scope:         models.ScopeThisAndFuture,
		SuccessorID:   successor.ID,
		SlotsAffected: int(removed),
	}, nil
}

// buildSuccessor clones the definition for the post-split series. The
// successor anchors at the split date, applies the edited fields, and keeps
// only the unconsumed part of a count termination.
func (h *UpdateScopeHandler) buildSuccessor(event *models.EventDefinition, targetDate time.Time, edit models.TemplateEdit) *models.EventDefinition {
	successor := *event
	successor.ID = ""
	successor.StartDate = targetDate
	successor.GenerationHorizon = targetDate.AddDate(0, 0, -1)
	successor.CreatedAt = time.Time{}

	rule := event.Recurrence
	if rule.Count != nil {
		remaining := *rule.Count - recurrence.CountBefore(rule, event.StartDate, targetDate)
		rule.Count = &remaining
	}
	successor.Recurrence = rule

	// Exception dates before the split stay with the predecessor.
	var carried []string
	for _, d := range event.ExceptionDates {
		if d >= models.FormatDate(targetDate) {
			carried = append(carried, d)
		}
	}
	successor.ExceptionDates = carried

	applyTemplateEdit(&successor, edit)
	return &successor
}

// applyAll rewrites the template and re-propagates it to every slot.
func (h *UpdateScopeHandler) applyAll(ctx context.Context, update models.SeriesUpdate) (*models.SeriesUpdateResult, error) {
	release, err := h.locker.Acquire(ctx, update.EventID)
	if err != nil {
		h.metrics.RecordLockContention()
		return nil, err
	}
	defer release()

	event, err := h.store.loadEvent(ctx, update.EventID)
	if err != nil {
		return nil, err
	}
	return h.applyAllLocked(ctx, event, update.Template)
}

func (h *UpdateScopeHandler) applyAllLocked(ctx context.Context, event *models.EventDefinition, edit models.TemplateEdit) (*models.SeriesUpdateResult, error) {
	if edit.Empty() {
		return nil, appErrors.Clone(appErrors.ErrValidation, "template edit changes nothing")
	}
	reclock := edit.TouchesClock() && !event.AllDay
	applyTemplateEdit(event, edit)

	var affected int64
	err := h.events.WithTx(ctx, func(tx *sqlx.Tx) error {
		if err := h.events.UpdateTemplate(ctx, tx, event); err != nil {
			return err
		}
		cleared, err := h.slots.ClearOverrides(ctx, tx, event.ID)
		if err != nil {
			return err
		}
		affected = cleared
		if !reclock {
			return nil
		}
		slots, err := h.slots.ListByEvent(ctx, event.ID)
		if err != nil {
			return err
		}
		for i := range slots {
			start, end, cls, err := h.resolver.ResolveSpan(slots[i].LocalDate, event.StartMinute, event.DurationMinutes, event.Timezone)
			if err != nil {
				return err
			}
			if err := h.slots.UpdateInstants(ctx, tx, slots[i].ID, start, end, cls); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	h.cache.Invalidate(ctx, fmt.Sprintf("range:%s:*", event.OwnerID))
	h.logger.Info("series template updated",
		zap.String("event_id", event.ID),
		zap.Int64("slots_reset", affected),
		zap.Bool("instants_reresolved", reclock))
	return &models.SeriesUpdateResult{EventID: event.ID, Scope: models.ScopeAll, SlotsAffected: int(affected)}, nil
}

func applyTemplateEdit(event *models.EventDefinition, edit models.TemplateEdit) {
	if edit.Title != nil {
		event.Title = *edit.Title
	}
	if edit.Description != nil {
		event.Description = edit.Description
	}
	if edit.StartMinute != nil {
		event.StartMinute = *edit.StartMinute
	}
	if edit.DurationMinutes != nil {
		event.DurationMinutes = *edit.DurationMinutes
	}
	if edit.Timezone != nil {
		event.Timezone = *edit.Timezone
	}
}
