package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/orbitcal/orbitcal-api/internal/models"
	"github.com/orbitcal/orbitcal-api/internal/service"
	appErrors "github.com/orbitcal/orbitcal-api/pkg/errors"
	"github.com/orbitcal/orbitcal-api/pkg/response"
)

// EventHandler manages event-definition endpoints.
type EventHandler struct {
	events  *service.EventService
	updates *service.UpdateScopeHandler
	store   *service.SlotStore
}

// NewEventHandler constructs handler.
func NewEventHandler(events *service.EventService, updates *service.UpdateScopeHandler, store *service.SlotStore) *EventHandler {
	return &EventHandler{events: events, updates: updates, store: store}
}

// Create godoc
// @Summary Create a recurring event series
// @Tags Events
// @Accept json
// @Produce json
// @Param payload body service.CreateEventRequest true "Event payload"
// @Success 201 {object} response.Envelope
// @Router /events [post]
func (h *EventHandler) Create(c *gin.Context) {
	var req service.CreateEventRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return
	}
	event, err := h.events.Create(c.Request.Context(), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, event)
}

// Get godoc
// @Summary Get an event series
// @Tags Events
// @Produce json
// @Param id path string true "Event ID"
// @Success 200 {object} response.Envelope
// @Router /events/{id} [get]
func (h *EventHandler) Get(c *gin.Context) {
	event, err := h.events.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, event, nil)
}

// Delete godoc
// @Summary Delete an event series and all its occurrences
// @Tags Events
// @Produce json
// @Param id path string true "Event ID"
// @Success 204
// @Router /events/{id} [delete]
func (h *EventHandler) Delete(c *gin.Context) {
	if err := h.events.Delete(c.Request.Context(), c.Param("id")); err != nil {
		response.Error(c, err)
		return
	}
	response.NoContent(c)
}

// updateSeriesPayload is the wire form of a scoped series edit. TargetDate is
// a calendar date, not an instant.
type updateSeriesPayload struct {
	Scope      string              `json:"scope"`
	TargetDate string              `json:"target_date"`
	Template   models.TemplateEdit `json:"template"`
	Override   models.SlotOverride `json:"override"`
}

// Update godoc
// @Summary Apply a scoped edit to a series
// @Tags Events
// @Accept json
// @Produce json
// @Param id path string true "Event ID"
// @Param payload body updateSeriesPayload true "Scoped edit"
// @Success 200 {object} response.Envelope
// @Router /events/{id} [patch]
func (h *EventHandler) Update(c *gin.Context) {
	var payload updateSeriesPayload
	if err := c.ShouldBindJSON(&payload); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return
	}

	update := models.SeriesUpdate{
		EventID:  c.Param("id"),
		Scope:    models.UpdateScope(payload.Scope),
		Template: payload.Template,
		Override: payload.Override,
	}
	if payload.TargetDate != "" {
		date, err := models.ParseDate(payload.TargetDate)
		if err != nil {
			response.Error(c, err)
			return
		}
		update.TargetDate = date
	}

	result, err := h.updates.Apply(c.Request.Context(), update)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, result, nil)
}

// Materialize godoc
// @Summary Extend a series' materialization horizon
// @Tags Events
// @Accept json
// @Produce json
// @Param id path string true "Event ID"
// @Param payload body object{through=string} true "Materialize through date"
// @Success 200 {object} response.Envelope
// @Router /events/{id}/materialize [post]
func (h *EventHandler) Materialize(c *gin.Context) {
	var payload struct {
		Through string `json:"through"`
	}
	if err := c.ShouldBindJSON(&payload); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return
	}
	through, err := models.ParseDate(payload.Through)
	if err != nil {
		response.Error(c, err)
		return
	}

	written, err := h.store.Materialize(c.Request.Context(), c.Param("id"), through)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, gin.H{"slots_written": written, "through": payload.Through}, nil)
}
