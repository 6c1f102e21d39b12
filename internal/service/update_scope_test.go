package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/orbitcal/orbitcal-api/internal/models"
	"github.com/orbitcal/orbitcal-api/internal/timezone"
	appErrors "github.com/orbitcal/orbitcal-api/pkg/errors"
)

func newUpdateFixture(t *testing.T) (*UpdateScopeHandler, *eventRepoStub, *slotRepoStub) {
	t.Helper()
	events := newEventRepoStub()
	slots := newSlotRepoStub(events)
	resolver := timezone.New("", "")
	store := NewSlotStore(events, slots, resolver, nil, nil, nil, nil)
	handler := NewUpdateScopeHandler(events, slots, store, resolver, nil, nil, nil, nil)
	return handler, events, slots
}

func strPtr(s string) *string { return &s }
func intPtr(n int) *int       { return &n }

func TestUpdateScopeRejectsBadInput(t *testing.T) {
	handler, _, _ := newUpdateFixture(t)

	_, err := handler.Apply(context.Background(), models.SeriesUpdate{
		EventID: "ev-1", Scope: "SOME", Template: models.TemplateEdit{Title: strPtr("x")},
	})
	assert.True(t, errors.Is(err, appErrors.ErrValidation))

	_, err = handler.Apply(context.Background(), models.SeriesUpdate{
		EventID: "ev-1", Scope: models.ScopeSingle, Override: models.SlotOverride{Title: strPtr("x")},
	})
	assert.True(t, errors.Is(err, appErrors.ErrValidation))

	_, err = handler.Apply(context.Background(), models.SeriesUpdate{
		EventID: "ev-1", Scope: models.ScopeAll,
		Template: models.TemplateEdit{Timezone: strPtr("Mars/Olympus_Mons")},
	})
	assert.True(t, errors.Is(err, appErrors.ErrUnknownZone))
}

func TestUpdateScopeSingleOverridesOneSlot(t *testing.T) {
	handler, events, slots := newUpdateFixture(t)
	event := newDailyEvent(t, events)
	_, err := handler.store.Materialize(context.Background(), event.ID, testDay(2024, 1, 5))
	require.NoError(t, err)

	result, err := handler.Apply(context.Background(), models.SeriesUpdate{
		EventID:    event.ID,
		Scope:      models.ScopeSingle,
		TargetDate: testDay(2024, 1, 3),
		Override:   models.SlotOverride{Title: strPtr("One-off")},
	})
	require.NoError(t, err)
	assert.Equal(t, models.ScopeSingle, result.Scope)
	assert.Equal(t, 1, result.SlotsAffected)
	assert.Empty(t, result.SuccessorID)

	slot, err := slots.GetByEventAndDate(context.Background(), event.ID, testDay(2024, 1, 3))
	require.NoError(t, err)
	assert.True(t, slot.IsModified)
	require.NotNil(t, slot.OverrideTitle)
	assert.Equal(t, "One-off", *slot.OverrideTitle)

	// Neighbours and the definition are untouched.
	other, err := slots.GetByEventAndDate(context.Background(), event.ID, testDay(2024, 1, 4))
	require.NoError(t, err)
	assert.False(t, other.IsModified)
	stored, err := events.GetByID(context.Background(), event.ID)
	require.NoError(t, err)
	assert.Equal(t, "Standup", stored.Title)
}

func TestUpdateScopeAllRewritesTemplateAndClearsOverrides(t *testing.T) {
	handler, events, slots := newUpdateFixture(t)
	event := newDailyEvent(t, events)
	_, err := handler.store.Materialize(context.Background(), event.ID, testDay(2024, 1, 5))
	require.NoError(t, err)
	_, err = handler.store.ApplyOverride(context.Background(), event.ID, testDay(2024, 1, 2),
		models.SlotOverride{Title: strPtr("stale override")})
	require.NoError(t, err)

	result, err := handler.Apply(context.Background(), models.SeriesUpdate{
		EventID:  event.ID,
		Scope:    models.ScopeAll,
		Template: models.TemplateEdit{Title: strPtr("Daily sync")},
	})
	require.NoError(t, err)
	assert.Equal(t, models.ScopeAll, result.Scope)
	assert.Equal(t, 5, result.SlotsAffected)

	stored, err := events.GetByID(context.Background(), event.ID)
	require.NoError(t, err)
	assert.Equal(t, "Daily sync", stored.Title)

	slot, err := slots.GetByEventAndDate(context.Background(), event.ID, testDay(2024, 1, 2))
	require.NoError(t, err)
	assert.False(t, slot.IsModified)
	assert.Nil(t, slot.OverrideTitle)
}

func TestUpdateScopeAllClockEditReresolvesInstants(t *testing.T) {
	handler, events, slots := newUpdateFixture(t)
	event := newDailyEvent(t, events)
	_, err := handler.store.Materialize(context.Background(), event.ID, testDay(2024, 1, 3))
	require.NoError(t, err)

	_, err = handler.Apply(context.Background(), models.SeriesUpdate{
		EventID:  event.ID,
		Scope:    models.ScopeAll,
		Template: models.TemplateEdit{StartMinute: intPtr(14 * 60)},
	})
	require.NoError(t, err)

	// 14:00 Berlin in January is 13:00 UTC.
	for day := 1; day <= 3; day++ {
		slot, err := slots.GetByEventAndDate(context.Background(), event.ID, testDay(2024, 1, day))
		require.NoError(t, err)
		assert.Equal(t, time.Date(2024, 1, day, 13, 0, 0, 0, time.UTC), slot.StartUTC)
		assert.Equal(t, time.Date(2024, 1, day, 13, 30, 0, 0, time.UTC), slot.EndUTC)
	}
}

func TestUpdateScopeAllEmptyEdit(t *testing.T) {
	handler, events, _ := newUpdateFixture(t)
	event := newDailyEvent(t, events)

	_, err := handler.Apply(context.Background(), models.SeriesUpdate{
		EventID: event.ID,
		Scope:   models.ScopeAll,
	})
	assert.True(t, errors.Is(err, appErrors.ErrValidation))
}

func TestUpdateScopeSplitPartitionsSeries(t *testing.T) {
	handler, events, slots := newUpdateFixture(t)
	count := 10
	event := &models.EventDefinition{
		OwnerID:           "owner-1",
		Title:             "Standup",
		StartDate:         testDay(2024, 1, 1),
		StartMinute:       9 * 60,
		DurationMinutes:   30,
		Timezone:          "Europe/Berlin",
		Recurrence:        models.RecurrenceRule{Frequency: models.FrequencyDaily, Interval: 1, Count: &count},
		GenerationHorizon: testDay(2023, 12, 31),
	}
	require.NoError(t, events.Create(context.Background(), nil, event))
	_, err := handler.store.Materialize(context.Background(), event.ID, testDay(2024, 1, 10))
	require.NoError(t, err)

	result, err := handler.Apply(context.Background(), models.SeriesUpdate{
		EventID:    event.ID,
		Scope:      models.ScopeThisAndFuture,
		TargetDate: testDay(2024, 1, 5),
		Template:   models.TemplateEdit{Title: strPtr("Standup v2")},
	})
	require.NoError(t, err)
	assert.Equal(t, models.ScopeThisAndFuture, result.Scope)
	assert.NotEmpty(t, result.SuccessorID)
	assert.Equal(t, 6, result.SlotsAffected)

	// Predecessor now terminates by date the day before the split.
	predecessor, err := events.GetByID(context.Background(), event.ID)
	require.NoError(t, err)
	require.NotNil(t, predecessor.Recurrence.Until)
	assert.Equal(t, testDay(2024, 1, 4), *predecessor.Recurrence.Until)
	assert.Nil(t, predecessor.Recurrence.Count)
	assert.Equal(t, "Standup", predecessor.Title)

	// Successor anchors at the split with the remaining count budget.
	successor, err := events.GetByID(context.Background(), result.SuccessorID)
	require.NoError(t, err)
	assert.Equal(t, "Standup v2", successor.Title)
	assert.Equal(t, testDay(2024, 1, 5), successor.StartDate)
	require.NotNil(t, successor.Recurrence.Count)
	assert.Equal(t, 6, *successor.Recurrence.Count)

	// Slot ownership switches at the split date.
	prior, err := slots.ListByEvent(context.Background(), event.ID)
	require.NoError(t, err)
	require.Len(t, prior, 4)
	assert.Equal(t, testDay(2024, 1, 4), prior[3].LocalDate)

	after, err := slots.ListByEvent(context.Background(), result.SuccessorID)
	require.NoError(t, err)
	require.Len(t, after, 6)
	assert.Equal(t, testDay(2024, 1, 5), after[0].LocalDate)
	assert.Equal(t, testDay(2024, 1, 10), after[5].LocalDate)
}

func TestUpdateScopeSplitCarriesFutureExceptionsOnly(t *testing.T) {
	handler, events, slots := newUpdateFixture(t)
	event := newDailyEvent(t, events)
	require.NoError(t, events.AddException(context.Background(), nil, event.ID, testDay(2024, 1, 2)))
	require.NoError(t, events.AddException(context.Background(), nil, event.ID, testDay(2024, 1, 7)))
	_, err := handler.store.Materialize(context.Background(), event.ID, testDay(2024, 1, 10))
	require.NoError(t, err)

	result, err := handler.Apply(context.Background(), models.SeriesUpdate{
		EventID:    event.ID,
		Scope:      models.ScopeThisAndFuture,
		TargetDate: testDay(2024, 1, 5),
		Template:   models.TemplateEdit{Title: strPtr("Renamed")},
	})
	require.NoError(t, err)

	successor, err := events.GetByID(context.Background(), result.SuccessorID)
	require.NoError(t, err)
	assert.Equal(t, pq.StringArray{"2024-01-07"}, successor.ExceptionDates)

	after, err := slots.ListByEvent(context.Background(), result.SuccessorID)
	require.NoError(t, err)
	require.Len(t, after, 5)
	for _, slot := range after {
		assert.NotEqual(t, testDay(2024, 1, 7), slot.LocalDate)
	}
}

func TestUpdateScopeSplitAtFirstOccurrenceDegenerates(t *testing.T) {
	handler, events, _ := newUpdateFixture(t)
	event := newDailyEvent(t, events)
	_, err := handler.store.Materialize(context.Background(), event.ID, testDay(2024, 1, 5))
	require.NoError(t, err)

	result, err := handler.Apply(context.Background(), models.SeriesUpdate{
		EventID:    event.ID,
		Scope:      models.ScopeThisAndFuture,
		TargetDate: testDay(2024, 1, 1),
		Template:   models.TemplateEdit{Title: strPtr("Renamed")},
	})
	require.NoError(t, err)
	assert.Equal(t, models.ScopeThisAndFuture, result.Scope)
	assert.Empty(t, result.SuccessorID)

	stored, err := events.GetByID(context.Background(), event.ID)
	require.NoError(t, err)
	assert.Equal(t, "Renamed", stored.Title)
	assert.Nil(t, stored.Recurrence.Until)
}

func TestUpdateScopeSplitTargetMustBeMaterialized(t *testing.T) {
	handler, events, _ := newUpdateFixture(t)
	event := newDailyEvent(t, events)
	_, err := handler.store.Materialize(context.Background(), event.ID, testDay(2024, 1, 5))
	require.NoError(t, err)

	_, err = handler.Apply(context.Background(), models.SeriesUpdate{
		EventID:    event.ID,
		Scope:      models.ScopeThisAndFuture,
		TargetDate: testDay(2024, 2, 1),
		Template:   models.TemplateEdit{Title: strPtr("Renamed")},
	})
	require.Error(t, err)
	assert.True(t, errors.Is(err, appErrors.ErrSlotNotFound))
}

func TestUpdateScopeSplitRejectsWhenLocked(t *testing.T) {
	events := newEventRepoStub()
	slots := newSlotRepoStub(events)
	resolver := timezone.New("", "")
	store := NewSlotStore(events, slots, resolver, nil, nil, nil, nil)
	handler := NewUpdateScopeHandler(events, slots, store, resolver, contendedLock{}, nil, nil, nil)
	event := newDailyEvent(t, events)
	_, err := store.Materialize(context.Background(), event.ID, testDay(2024, 1, 5))
	require.NoError(t, err)

	_, err = handler.Apply(context.Background(), models.SeriesUpdate{
		EventID:    event.ID,
		Scope:      models.ScopeThisAndFuture,
		TargetDate: testDay(2024, 1, 3),
		Template:   models.TemplateEdit{Title: strPtr("Renamed")},
	})
	require.Error(t, err)
	assert.True(t, errors.Is(err, appErrors.ErrConcurrentModification))
}

func TestUpdateScopeAllRejectsWhenLocked(t *testing.T) {
	events := newEventRepoStub()
	slots := newSlotRepoStub(events)
	resolver := timezone.New("", "")
	store := NewSlotStore(events, slots, resolver, nil, nil, nil, nil)
	handler := NewUpdateScopeHandler(events, slots, store, resolver, contendedLock{}, nil, nil, nil)
	event := newDailyEvent(t, events)

	_, err := handler.Apply(context.Background(), models.SeriesUpdate{
		EventID:  event.ID,
		Scope:    models.ScopeAll,
		Template: models.TemplateEdit{Title: strPtr("Renamed")},
	})
	require.Error(t, err)
	assert.True(t, errors.Is(err, appErrors.ErrConcurrentModification))
}
