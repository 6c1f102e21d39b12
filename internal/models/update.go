package models

import "time"

// UpdateScope selects how far an edit to a recurring series reaches.
type UpdateScope string

const (
	// ScopeSingle touches exactly one slot and leaves the template alone.
	ScopeSingle UpdateScope = "SINGLE"
	// ScopeThisAndFuture splits the series at the target date: the original
	// definition is truncated and a successor definition owns everything
	// from the split point onward.
	ScopeThisAndFuture UpdateScope = "THIS_AND_FUTURE"
	// ScopeAll rewrites the template and re-propagates it to every
	// non-cancelled slot.
	ScopeAll UpdateScope = "ALL"
)

// Valid reports whether the scope is one of the three known variants.
func (s UpdateScope) Valid() bool {
	switch s {
	case ScopeSingle, ScopeThisAndFuture, ScopeAll:
		return true
	}
	return false
}

// TemplateEdit carries the template-level fields an ALL or THIS_AND_FUTURE
// edit may change. Nil fields are left untouched.
type TemplateEdit struct {
	Title           *string `json:"title,omitempty"`
	Description     *string `json:"description,omitempty"`
	StartMinute     *int    `json:"start_minute,omitempty"`
	DurationMinutes *int    `json:"duration_minutes,omitempty"`
	Timezone        *string `json:"timezone,omitempty"`
}

// Empty reports whether the edit changes nothing.
func (e TemplateEdit) Empty() bool {
	return e.Title == nil && e.Description == nil && e.StartMinute == nil &&
		e.DurationMinutes == nil && e.Timezone == nil
}

// TouchesClock reports whether applying the edit moves slot instants, which
// forces a re-resolution of every materialized slot.
func (e TemplateEdit) TouchesClock() bool {
	return e.StartMinute != nil || e.DurationMinutes != nil || e.Timezone != nil
}

// SeriesUpdate is the full argument to the update-scope handler: which event,
// which scope, the occurrence date the scope anchors on (ignored for ALL) and
// the field changes to apply.
type SeriesUpdate struct {
	EventID    string       `json:"event_id"`
	Scope      UpdateScope  `json:"scope"`
	TargetDate time.Time    `json:"target_date,omitempty"`
	Template   TemplateEdit `json:"template,omitempty"`
	Override   SlotOverride `json:"override,omitempty"`
}

// SeriesUpdateResult reports what an applied update produced. SuccessorID is
// set only for a THIS_AND_FUTURE split that created a new definition.
type SeriesUpdateResult struct {
	EventID       string      `json:"event_id"`
	Scope         UpdateScope `json:"scope"`
	SuccessorID   string      `json:"successor_id,omitempty"`
	SlotsAffected int         `json:"slots_affected"`
}
