package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/orbitcal/orbitcal-api/internal/models"
	appErrors "github.com/orbitcal/orbitcal-api/pkg/errors"
	"github.com/orbitcal/orbitcal-api/pkg/export"
)

// ExportFormat selects an agenda serialization.
type ExportFormat string

const (
	FormatICS ExportFormat = "ics"
	FormatCSV ExportFormat = "csv"
	FormatPDF ExportFormat = "pdf"
)

// ExportResult carries rendered bytes plus the HTTP metadata to serve them.
type ExportResult struct {
	Content     []byte
	ContentType string
	Filename    string
}

// ExportService renders an owner's materialized occurrence window as an
// iCalendar, CSV or PDF document. Exports read slot rows directly, including
// cancelled ones, so a re-imported ICS carries cancellations through.
type ExportService struct {
	events eventRepository
	slots  slotRepository
	ics    *export.ICSExporter
	csv    *export.CSVExporter
	pdf    *export.PDFExporter
	logger *zap.Logger
}

// NewExportService constructs the service.
func NewExportService(events eventRepository, slots slotRepository, logger *zap.Logger) *ExportService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ExportService{
		events: events,
		slots:  slots,
		ics:    export.NewICSExporter(""),
		csv:    export.NewCSVExporter(),
		pdf:    export.NewPDFExporter(),
		logger: logger,
	}
}

// Export renders the owner's occurrences within [start, end) in the requested
// format.
func (s *ExportService) Export(ctx context.Context, ownerID string, start, end time.Time, format ExportFormat) (*ExportResult, error) {
	if ownerID == "" {
		return nil, appErrors.Clone(appErrors.ErrValidation, "owner id is required")
	}
	if !end.After(start) {
		return nil, appErrors.Clone(appErrors.ErrValidation, "range end must follow range start")
	}

	agenda, err := s.buildAgenda(ctx, ownerID, start, end)
	if err != nil {
		return nil, err
	}

	var (
		content     []byte
		contentType string
	)
	switch format {
	case FormatICS:
		content, err = s.ics.Render(*agenda)
		contentType = "text/calendar; charset=utf-8"
	case FormatCSV:
		content, err = s.csv.Render(*agenda)
		contentType = "text/csv; charset=utf-8"
	case FormatPDF:
		content, err = s.pdf.Render(*agenda)
		contentType = "application/pdf"
	default:
		return nil, appErrors.Clone(appErrors.ErrValidation,
			fmt.Sprintf("unsupported export format %q", format))
	}
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to render export")
	}

	s.logger.Info("agenda exported",
		zap.String("owner_id", ownerID),
		zap.String("format", string(format)),
		zap.Int("items", len(agenda.Items)))
	return &ExportResult{
		Content:     content,
		ContentType: contentType,
		Filename: fmt.Sprintf("agenda-%s-%s.%s",
			models.FormatDate(start), models.FormatDate(end), format),
	}, nil
}

func (s *ExportService) buildAgenda(ctx context.Context, ownerID string, start, end time.Time) (*export.Agenda, error) {
	events, err := s.events.ListByOwner(ctx, ownerID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list events")
	}
	titles := make(map[string]string, len(events))
	zones := make(map[string]string, len(events))
	for _, e := range events {
		titles[e.ID] = e.Title
		zones[e.ID] = e.Timezone
	}

	slots, err := s.slots.ListRange(ctx, models.SlotRangeFilter{
		OwnerID:          ownerID,
		Start:            start,
		End:              end,
		IncludeCancelled: true,
	})
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to scan slots")
	}

	items := make([]export.AgendaItem, 0, len(slots))
	for i := range slots {
		slot := &slots[i]
		items = append(items, export.AgendaItem{
			EventID:   slot.EventID,
			Date:      slot.LocalDate,
			Title:     slot.EffectiveTitle(titles[slot.EventID]),
			Start:     slot.StartUTC,
			End:       slot.EndUTC,
			AllDay:    slot.TZClassification == models.TZFloating,
			Cancelled: slot.IsCancelled,
			Timezone:  zones[slot.EventID],
		})
	}
	return &export.Agenda{OwnerID: ownerID, From: start, To: end, Items: items}, nil
}

// ParseExportFormat normalizes a query-string format value, defaulting to ICS.
func ParseExportFormat(raw string) (ExportFormat, error) {
	switch ExportFormat(strings.ToLower(strings.TrimSpace(raw))) {
	case FormatICS, "":
		return FormatICS, nil
	case FormatCSV:
		return FormatCSV, nil
	case FormatPDF:
		return FormatPDF, nil
	default:
		return "", appErrors.Clone(appErrors.ErrValidation,
			fmt.Sprintf("unsupported export format %q", raw))
	}
}
