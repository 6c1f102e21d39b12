package service

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/jmoiron/sqlx"
	"go.uber.org/zap"

	"github.com/orbitcal/orbitcal-api/internal/models"
	"github.com/orbitcal/orbitcal-api/internal/recurrence"
	"github.com/orbitcal/orbitcal-api/internal/timezone"
	appErrors "github.com/orbitcal/orbitcal-api/pkg/errors"
)

// EventService manages event-definition lifecycle: creation with initial
// materialization, retrieval, and series deletion.
type EventService struct {
	events     eventRepository
	slots      slotRepository
	store      *SlotStore
	validator  *validator.Validate
	logger     *zap.Logger
	windowDays int
}

// NewEventService constructs the service.
func NewEventService(events eventRepository, slots slotRepository, store *SlotStore, validate *validator.Validate, windowDays int, logger *zap.Logger) *EventService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	if windowDays <= 0 {
		windowDays = 90
	}
	return &EventService{events: events, slots: slots, store: store, validator: validate, logger: logger, windowDays: windowDays}
}

// CreateEventRequest describes the create payload. Recurrence may be given
// structured or as an iCalendar RRULE string; exactly one of the two.
type CreateEventRequest struct {
	OwnerID         string                 `json:"owner_id" validate:"required"`
	Title           string                 `json:"title" validate:"required"`
	Description     *string                `json:"description"`
	StartDate       time.Time              `json:"start_date" validate:"required"`
	StartMinute     int                    `json:"start_minute" validate:"min=0,max=1439"`
	DurationMinutes int                    `json:"duration_minutes" validate:"min=0"`
	Timezone        string                 `json:"timezone"`
	AllDay          bool                   `json:"all_day"`
	Recurrence      *models.RecurrenceRule `json:"recurrence"`
	RRule           string                 `json:"rrule"`
	MaterializeTo   *time.Time             `json:"materialize_to"`
}

// Create validates, persists and materializes a new series through the
// default (or requested) window.
func (s *EventService) Create(ctx context.Context, req CreateEventRequest) (*models.EventDefinition, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid payload")
	}

	rule, err := s.resolveRule(req)
	if err != nil {
		return nil, err
	}
	if !req.AllDay {
		if err := timezone.Validate(req.Timezone); err != nil {
			return nil, err
		}
		if req.DurationMinutes < 1 {
			return nil, appErrors.Clone(appErrors.ErrValidation, "duration_minutes must be positive for timed events")
		}
	}

	startDate := models.DateOnly(req.StartDate)
	event := &models.EventDefinition{
		OwnerID:         req.OwnerID,
		Title:           req.Title,
		Description:     req.Description,
		StartDate:       startDate,
		StartMinute:     req.StartMinute,
		DurationMinutes: req.DurationMinutes,
		Timezone:        req.Timezone,
		AllDay:          req.AllDay,
		Recurrence:      rule,
		// Horizon sits just before the anchor so the first materialization
		// window opens at the anchor itself.
		GenerationHorizon: startDate.AddDate(0, 0, -1),
	}
	if event.AllDay {
		event.Timezone = ""
		event.StartMinute = 0
		event.DurationMinutes = 0
	}

	if err := s.events.Create(ctx, nil, event); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create event")
	}

	through := startDate.AddDate(0, 0, s.windowDays)
	if req.MaterializeTo != nil {
		through = models.DateOnly(*req.MaterializeTo)
	}
	if _, err := s.store.Materialize(ctx, event.ID, through); err != nil {
		// The definition is persisted but unusable with an invalid rule
		// horizon; surface the expansion failure and roll the series back.
		if delErr := s.events.Delete(ctx, nil, event.ID); delErr != nil {
			s.logger.Error("rollback of unmaterializable event failed",
				zap.String("event_id", event.ID), zap.Error(delErr))
		}
		return nil, err
	}

	return s.Get(ctx, event.ID)
}

// resolveRule picks the structured rule or parses the RRULE string.
func (s *EventService) resolveRule(req CreateEventRequest) (models.RecurrenceRule, error) {
	switch {
	case req.Recurrence != nil && req.RRule != "":
		return models.RecurrenceRule{}, appErrors.Clone(appErrors.ErrValidation, "provide either recurrence or rrule, not both")
	case req.RRule != "":
		return recurrence.FromRRule(req.RRule)
	case req.Recurrence != nil:
		rule := *req.Recurrence
		if rule.Until != nil {
			until := models.DateOnly(*rule.Until)
			rule.Until = &until
		}
		return rule, rule.Validate()
	default:
		return models.RecurrenceRule{}, appErrors.Clone(appErrors.ErrValidation, "recurrence rule is required")
	}
}

// Get returns a definition by id.
func (s *EventService) Get(ctx context.Context, id string) (*models.EventDefinition, error) {
	event, err := s.events.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "event not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to get event")
	}
	return event, nil
}

// Delete destroys a series and every slot it owns in one transaction.
func (s *EventService) Delete(ctx context.Context, id string) error {
	var removed int64
	err := s.events.WithTx(ctx, func(tx *sqlx.Tx) error {
		var err error
		if removed, err = s.slots.DeleteByEvent(ctx, tx, id); err != nil {
			return err
		}
		return s.events.Delete(ctx, tx, id)
	})
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return appErrors.Clone(appErrors.ErrNotFound, "event not found")
		}
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to delete event")
	}
	s.logger.Info("series deleted", zap.String("event_id", id), zap.Int64("slots_removed", removed))
	return nil
}
