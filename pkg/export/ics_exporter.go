package export

import (
	"fmt"
	"time"

	ical "github.com/arran4/golang-ical"
)

// ICSExporter renders an agenda as an iCalendar document, one VEVENT per
// occurrence. Occurrences are exported flat rather than as RRULE series so
// the document reflects overrides and cancellations exactly as stored.
type ICSExporter struct {
	prodID string
}

// NewICSExporter constructs an ICS exporter identifying itself with prodID.
func NewICSExporter(prodID string) *ICSExporter {
	if prodID == "" {
		prodID = "-//orbitcal//calendar-api//EN"
	}
	return &ICSExporter{prodID: prodID}
}

// Render serializes the agenda into ICS bytes.
func (e *ICSExporter) Render(agenda Agenda) ([]byte, error) {
	cal := ical.NewCalendar()
	cal.SetMethod(ical.MethodPublish)
	cal.SetProductId(e.prodID)

	now := time.Now().UTC()
	for _, item := range agenda.Items {
		// A deterministic UID lets consumers re-import without duplicates.
		uid := fmt.Sprintf("%s-%s@orbitcal", item.EventID, item.Date.Format("20060102"))
		ev := cal.AddEvent(uid)
		ev.SetDtStampTime(now)
		ev.SetSummary(item.Title)
		if item.AllDay {
			ev.SetAllDayStartAt(item.Date)
			ev.SetAllDayEndAt(item.Date.AddDate(0, 0, 1))
		} else {
			ev.SetStartAt(item.Start.UTC())
			ev.SetEndAt(item.End.UTC())
		}
		if item.Cancelled {
			ev.SetStatus(ical.ObjectStatusCancelled)
		} else {
			ev.SetStatus(ical.ObjectStatusConfirmed)
		}
	}

	return []byte(cal.Serialize()), nil
}
