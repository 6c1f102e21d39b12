package service

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/orbitcal/orbitcal-api/internal/models"
	"github.com/orbitcal/orbitcal-api/internal/timezone"
	appErrors "github.com/orbitcal/orbitcal-api/pkg/errors"
)

func newExportFixture(t *testing.T) (*ExportService, *SlotStore, *eventRepoStub) {
	t.Helper()
	events := newEventRepoStub()
	slots := newSlotRepoStub(events)
	store := NewSlotStore(events, slots, timezone.New("", ""), nil, nil, nil, nil)
	return NewExportService(events, slots, nil), store, events
}

func TestExportServiceRendersICS(t *testing.T) {
	svc, store, events := newExportFixture(t)
	ctx := context.Background()
	event := newDailyEvent(t, events)
	_, err := store.Materialize(ctx, event.ID, testDay(2024, 1, 5))
	require.NoError(t, err)
	require.NoError(t, store.Cancel(ctx, event.ID, testDay(2024, 1, 2)))

	result, err := svc.Export(ctx, "owner-1", testDay(2024, 1, 1), testDay(2024, 1, 6), FormatICS)
	require.NoError(t, err)
	assert.Equal(t, "text/calendar; charset=utf-8", result.ContentType)
	assert.Equal(t, "agenda-2024-01-01-2024-01-06.ics", result.Filename)

	body := string(result.Content)
	assert.Equal(t, 5, strings.Count(body, "BEGIN:VEVENT"))
	assert.Contains(t, body, "SUMMARY:Standup")
	// Cancelled occurrences travel with their status, not as gaps.
	assert.Contains(t, body, "STATUS:CANCELLED")
}

func TestExportServiceRendersCSV(t *testing.T) {
	svc, store, events := newExportFixture(t)
	ctx := context.Background()
	event := newDailyEvent(t, events)
	_, err := store.Materialize(ctx, event.ID, testDay(2024, 1, 3))
	require.NoError(t, err)

	result, err := svc.Export(ctx, "owner-1", testDay(2024, 1, 1), testDay(2024, 1, 4), FormatCSV)
	require.NoError(t, err)
	assert.Equal(t, "text/csv; charset=utf-8", result.ContentType)

	lines := strings.Split(strings.TrimSpace(string(result.Content)), "\n")
	require.Len(t, lines, 4)
	assert.Contains(t, lines[0], "Date")
	assert.Contains(t, lines[1], "2024-01-01")
	assert.Contains(t, lines[1], "Standup")
}

func TestExportServiceRendersPDF(t *testing.T) {
	svc, store, events := newExportFixture(t)
	ctx := context.Background()
	event := newDailyEvent(t, events)
	_, err := store.Materialize(ctx, event.ID, testDay(2024, 1, 3))
	require.NoError(t, err)

	result, err := svc.Export(ctx, "owner-1", testDay(2024, 1, 1), testDay(2024, 1, 4), FormatPDF)
	require.NoError(t, err)
	assert.Equal(t, "application/pdf", result.ContentType)
	assert.True(t, strings.HasPrefix(string(result.Content), "%PDF"))
}

func TestExportServiceUsesOverriddenTitles(t *testing.T) {
	svc, store, events := newExportFixture(t)
	ctx := context.Background()
	event := newDailyEvent(t, events)
	_, err := store.Materialize(ctx, event.ID, testDay(2024, 1, 3))
	require.NoError(t, err)
	_, err = store.ApplyOverride(ctx, event.ID, testDay(2024, 1, 2),
		models.SlotOverride{Title: strPtr("Retro instead")})
	require.NoError(t, err)

	result, err := svc.Export(ctx, "owner-1", testDay(2024, 1, 1), testDay(2024, 1, 4), FormatCSV)
	require.NoError(t, err)
	assert.Contains(t, string(result.Content), "Retro instead")
}

func TestExportServiceValidation(t *testing.T) {
	svc, _, _ := newExportFixture(t)
	ctx := context.Background()

	_, err := svc.Export(ctx, "", testDay(2024, 1, 1), testDay(2024, 1, 4), FormatICS)
	assert.True(t, errors.Is(err, appErrors.ErrValidation))

	_, err = svc.Export(ctx, "owner-1", testDay(2024, 1, 4), testDay(2024, 1, 1), FormatICS)
	assert.True(t, errors.Is(err, appErrors.ErrValidation))

	_, err = svc.Export(ctx, "owner-1", testDay(2024, 1, 1), testDay(2024, 1, 4), ExportFormat("xlsx"))
	assert.True(t, errors.Is(err, appErrors.ErrValidation))
}

func TestParseExportFormat(t *testing.T) {
	format, err := ParseExportFormat("")
	require.NoError(t, err)
	assert.Equal(t, FormatICS, format)

	format, err = ParseExportFormat(" CSV ")
	require.NoError(t, err)
	assert.Equal(t, FormatCSV, format)

	format, err = ParseExportFormat("pdf")
	require.NoError(t, err)
	assert.Equal(t, FormatPDF, format)

	_, err = ParseExportFormat("xlsx")
	assert.True(t, errors.Is(err, appErrors.ErrValidation))
}
