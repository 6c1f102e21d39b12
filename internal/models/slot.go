package models

import "time"

// TZClassification records how a slot's local wall-clock time mapped onto an
// absolute instant when it was materialized.
type TZClassification string

const (
	// TZUnambiguous means exactly one valid instant existed.
	TZUnambiguous TZClassification = "UNAMBIGUOUS"
	// TZResolvedForwardFromGap means the wall-clock time fell inside a DST
	// spring-forward gap and was resolved to the first valid instant at or
	// after it.
	TZResolvedForwardFromGap TZClassification = "RESOLVED_FORWARD_FROM_GAP"
	// TZResolvedEarlierOfPair means the wall-clock time was ambiguous during
	// a DST fall-back overlap and the earlier (pre-transition) instant won.
	TZResolvedEarlierOfPair TZClassification = "RESOLVED_EARLIER_OF_PAIR"
	// TZResolvedLaterOfPair is the same ambiguity resolved under the
	// non-default later-of-pair policy.
	TZResolvedLaterOfPair TZClassification = "RESOLVED_LATER_OF_PAIR"
	// TZFloating marks all-day slots that carry no zone at all.
	TZFloating TZClassification = "FLOATING"
)

// OccurrenceSlot is one materialized, individually addressable occurrence of
// an event series. EventID is a lookup reference, not an owning pointer: the
// row keeps its meaning for audit queries even after its definition is gone.
// StartUTC/EndUTC are resolved once at materialization and never recomputed
// per query.
type OccurrenceSlot struct {
	ID        string    `db:"id" json:"id"`
	EventID   string    `db:"event_id" json:"event_id"`
	LocalDate time.Time `db:"local_date" json:"local_date"`
	StartUTC  time.Time `db:"start_utc" json:"start_utc"`
	EndUTC    time.Time `db:"end_utc" json:"end_utc"`

	IsModified  bool `db:"is_modified" json:"is_modified"`
	IsCancelled bool `db:"is_cancelled" json:"is_cancelled"`

	OverrideTitle           *string `db:"override_title" json:"override_title,omitempty"`
	OverrideStartMinute     *int    `db:"override_start_minute" json:"override_start_minute,omitempty"`
	OverrideDurationMinutes *int    `db:"override_duration_minutes" json:"override_duration_minutes,omitempty"`

	TZClassification TZClassification `db:"tz_classification" json:"tz_classification"`

	CreatedAt time.Time `db:"created_at" json:"created_at"`
	UpdatedAt time.Time `db:"updated_at" json:"updated_at"`
}

// EffectiveTitle resolves the display title against the owning template.
func (s *OccurrenceSlot) EffectiveTitle(template string) string {
	if s.IsModified && s.OverrideTitle != nil {
		return *s.OverrideTitle
	}
	return template
}

// SlotOverride carries the per-slot fields a SINGLE-scope edit may set.
type SlotOverride struct {
	Title           *string `json:"title,omitempty"`
	StartMinute     *int    `json:"start_minute,omitempty"`
	DurationMinutes *int    `json:"duration_minutes,omitempty"`
}

// Empty reports whether the override changes nothing.
func (o SlotOverride) Empty() bool {
	return o.Title == nil && o.StartMinute == nil && o.DurationMinutes == nil
}

// SlotRangeFilter narrows a materialized-slot range scan.
type SlotRangeFilter struct {
	OwnerID          string
	EventID          string
	Start            time.Time
	End              time.Time
	IncludeCancelled bool
}
