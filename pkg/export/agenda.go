package export

import "time"

// AgendaItem is one occurrence row prepared for export. The fields are
// already resolved: Start and End are absolute UTC instants and Title
// reflects any per-occurrence override.
type AgendaItem struct {
	EventID   string
	Date      time.Time
	Title     string
	Start     time.Time
	End       time.Time
	AllDay    bool
	Cancelled bool
	Timezone  string
}

// Agenda is an ordered window of occurrences belonging to one owner.
type Agenda struct {
	OwnerID string
	From    time.Time
	To      time.Time
	Items   []AgendaItem
}

var agendaHeaders = []string{"Date", "Title", "Start (UTC)", "End (UTC)", "All Day", "Status"}

func (i AgendaItem) status() string {
	if i.Cancelled {
		return "cancelled"
	}
	return "confirmed"
}

func (i AgendaItem) row() []string {
	start, end := "", ""
	if !i.AllDay {
		start = i.Start.UTC().Format("15:04")
		end = i.End.UTC().Format("15:04")
	}
	allDay := "no"
	if i.AllDay {
		allDay = "yes"
	}
	return []string{
		i.Date.Format("2006-01-02"),
		i.Title,
		start,
		end,
		allDay,
		i.status(),
	}
}
