package handler

import (
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/orbitcal/orbitcal-api/internal/models"
	"github.com/orbitcal/orbitcal-api/internal/service"
	appErrors "github.com/orbitcal/orbitcal-api/pkg/errors"
	"github.com/orbitcal/orbitcal-api/pkg/response"
)

// OccurrenceHandler serves materialized occurrence slots: range queries,
// per-slot edits and agenda exports.
type OccurrenceHandler struct {
	query    *service.RangeQueryService
	store    *service.SlotStore
	exporter *service.ExportService
}

// NewOccurrenceHandler constructs handler.
func NewOccurrenceHandler(query *service.RangeQueryService, store *service.SlotStore, exporter *service.ExportService) *OccurrenceHandler {
	return &OccurrenceHandler{query: query, store: store, exporter: exporter}
}

// List godoc
// @Summary List occurrences in a date range
// @Tags Occurrences
// @Produce json
// @Param ownerId query string true "Owner ID"
// @Param from query string true "Range start (YYYY-MM-DD, inclusive)"
// @Param to query string true "Range end (YYYY-MM-DD, exclusive)"
// @Success 200 {object} response.Envelope
// @Router /occurrences [get]
func (h *OccurrenceHandler) List(c *gin.Context) {
	start, end, err := rangeBounds(c)
	if err != nil {
		response.Error(c, err)
		return
	}
	result, err := h.query.Query(c.Request.Context(), c.Query("ownerId"), start, end)
	if err != nil {
		response.Error(c, err)
		return
	}
	var meta map[string]interface{}
	if result.HorizonTruncated {
		meta = map[string]interface{}{"horizon_truncated": true}
	}
	response.JSON(c, http.StatusOK, result.Slots, nil, meta)
}

// Export godoc
// @Summary Export occurrences as ICS, CSV or PDF
// @Tags Occurrences
// @Produce plain
// @Param ownerId query string true "Owner ID"
// @Param from query string true "Range start (YYYY-MM-DD, inclusive)"
// @Param to query string true "Range end (YYYY-MM-DD, exclusive)"
// @Param format query string false "ics (default), csv or pdf"
// @Success 200 {file} binary
// @Router /occurrences/export [get]
func (h *OccurrenceHandler) Export(c *gin.Context) {
	start, end, err := rangeBounds(c)
	if err != nil {
		response.Error(c, err)
		return
	}
	format, err := service.ParseExportFormat(c.Query("format"))
	if err != nil {
		response.Error(c, err)
		return
	}
	result, err := h.exporter.Export(c.Request.Context(), c.Query("ownerId"), start, end, format)
	if err != nil {
		response.Error(c, err)
		return
	}
	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=%q", result.Filename))
	c.Data(http.StatusOK, result.ContentType, result.Content)
}

// Get godoc
// @Summary Get one occurrence of a series
// @Tags Occurrences
// @Produce json
// @Param id path string true "Event ID"
// @Param date path string true "Occurrence date (YYYY-MM-DD)"
// @Success 200 {object} response.Envelope
// @Router /events/{id}/occurrences/{date} [get]
func (h *OccurrenceHandler) Get(c *gin.Context) {
	date, err := models.ParseDate(c.Param("date"))
	if err != nil {
		response.Error(c, err)
		return
	}
	slot, err := h.store.GetSlot(c.Request.Context(), c.Param("id"), date)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, slot, nil)
}

// Override godoc
// @Summary Override one occurrence without touching the series
// @Tags Occurrences
// @Accept json
// @Produce json
// @Param id path string true "Event ID"
// @Param date path string true "Occurrence date (YYYY-MM-DD)"
// @Param payload body models.SlotOverride true "Override fields"
// @Success 200 {object} response.Envelope
// @Router /events/{id}/occurrences/{date} [patch]
func (h *OccurrenceHandler) Override(c *gin.Context) {
	date, err := models.ParseDate(c.Param("date"))
	if err != nil {
		response.Error(c, err)
		return
	}
	var override models.SlotOverride
	if err := c.ShouldBindJSON(&override); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return
	}
	slot, err := h.store.ApplyOverride(c.Request.Context(), c.Param("id"), date, override)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, slot, nil)
}

// Cancel godoc
// @Summary Cancel one occurrence, keeping its row for history
// @Tags Occurrences
// @Produce json
// @Param id path string true "Event ID"
// @Param date path string true "Occurrence date (YYYY-MM-DD)"
// @Success 204
// @Router /events/{id}/occurrences/{date}/cancel [post]
func (h *OccurrenceHandler) Cancel(c *gin.Context) {
	date, err := models.ParseDate(c.Param("date"))
	if err != nil {
		response.Error(c, err)
		return
	}
	if err := h.store.Cancel(c.Request.Context(), c.Param("id"), date); err != nil {
		response.Error(c, err)
		return
	}
	response.NoContent(c)
}

// Remove godoc
// @Summary Remove one occurrence permanently
// @Tags Occurrences
// @Produce json
// @Param id path string true "Event ID"
// @Param date path string true "Occurrence date (YYYY-MM-DD)"
// @Success 204
// @Router /events/{id}/occurrences/{date} [delete]
func (h *OccurrenceHandler) Remove(c *gin.Context) {
	date, err := models.ParseDate(c.Param("date"))
	if err != nil {
		response.Error(c, err)
		return
	}
	if err := h.store.RemoveOccurrence(c.Request.Context(), c.Param("id"), date); err != nil {
		response.Error(c, err)
		return
	}
	response.NoContent(c)
}

// rangeBounds parses the from/to query dates shared by List and Export.
func rangeBounds(c *gin.Context) (time.Time, time.Time, error) {
	start, err := models.ParseDate(c.Query("from"))
	if err != nil {
		return time.Time{}, time.Time{}, err
	}
	end, err := models.ParseDate(c.Query("to"))
	if err != nil {
		return time.Time{}, time.Time{}, err
	}
	return start, end, nil
}
