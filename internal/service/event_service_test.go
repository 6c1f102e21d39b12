package service

import (
	"context"
	"database/sql"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/orbitcal/orbitcal-api/internal/models"
	"github.com/orbitcal/orbitcal-api/internal/timezone"
	appErrors "github.com/orbitcal/orbitcal-api/pkg/errors"
)

func newEventFixture(t *testing.T) (*EventService, *eventRepoStub, *slotRepoStub) {
	t.Helper()
	events := newEventRepoStub()
	slots := newSlotRepoStub(events)
	store := NewSlotStore(events, slots, timezone.New("", ""), nil, nil, nil, nil)
	svc := NewEventService(events, slots, store, nil, 90, nil)
	return svc, events, slots
}

func dailyCreateRequest() CreateEventRequest {
	return CreateEventRequest{
		OwnerID:         "owner-1",
		Title:           "Standup",
		StartDate:       testDay(2024, 1, 1),
		StartMinute:     9 * 60,
		DurationMinutes: 30,
		Timezone:        "Europe/Berlin",
		Recurrence:      &models.RecurrenceRule{Frequency: models.FrequencyDaily, Interval: 1},
	}
}

func TestEventServiceCreateMaterializesWindow(t *testing.T) {
	svc, _, slots := newEventFixture(t)

	event, err := svc.Create(context.Background(), dailyCreateRequest())
	require.NoError(t, err)
	require.NotEmpty(t, event.ID)
	assert.Equal(t, testDay(2024, 3, 31), event.GenerationHorizon)

	written, err := slots.ListByEvent(context.Background(), event.ID)
	require.NoError(t, err)
	// Anchor plus 90 days, inclusive on both ends.
	assert.Len(t, written, 91)
	assert.Equal(t, testDay(2024, 1, 1), written[0].LocalDate)
}

func TestEventServiceCreateHonorsMaterializeTo(t *testing.T) {
	svc, _, slots := newEventFixture(t)
	req := dailyCreateRequest()
	to := testDay(2024, 1, 7)
	req.MaterializeTo = &to

	event, err := svc.Create(context.Background(), req)
	require.NoError(t, err)
	assert.Equal(t, testDay(2024, 1, 7), event.GenerationHorizon)

	written, err := slots.ListByEvent(context.Background(), event.ID)
	require.NoError(t, err)
	assert.Len(t, written, 7)
}

func TestEventServiceCreateAllDayClearsClock(t *testing.T) {
	svc, _, _ := newEventFixture(t)
	req := dailyCreateRequest()
	req.AllDay = true
	req.Timezone = "whatever"
	req.Recurrence = &models.RecurrenceRule{Frequency: models.FrequencyWeekly, Interval: 1}

	event, err := svc.Create(context.Background(), req)
	require.NoError(t, err)
	assert.True(t, event.AllDay)
	assert.Empty(t, event.Timezone)
	assert.Zero(t, event.StartMinute)
	assert.Zero(t, event.DurationMinutes)
}

func TestEventServiceCreateValidation(t *testing.T) {
	svc, _, _ := newEventFixture(t)
	ctx := context.Background()

	req := dailyCreateRequest()
	req.Title = ""
	_, err := svc.Create(ctx, req)
	assert.True(t, errors.Is(err, appErrors.ErrValidation))

	req = dailyCreateRequest()
	req.Recurrence = nil
	_, err = svc.Create(ctx, req)
	assert.True(t, errors.Is(err, appErrors.ErrValidation))

	req = dailyCreateRequest()
	req.RRule = "FREQ=DAILY"
	_, err = svc.Create(ctx, req)
	assert.True(t, errors.Is(err, appErrors.ErrValidation))

	req = dailyCreateRequest()
	req.Timezone = "Mars/Olympus_Mons"
	_, err = svc.Create(ctx, req)
	assert.True(t, errors.Is(err, appErrors.ErrUnknownZone))

	req = dailyCreateRequest()
	req.DurationMinutes = 0
	_, err = svc.Create(ctx, req)
	assert.True(t, errors.Is(err, appErrors.ErrValidation))

	req = dailyCreateRequest()
	req.Recurrence = &models.RecurrenceRule{Frequency: "SOMETIMES", Interval: 1}
	_, err = svc.Create(ctx, req)
	assert.True(t, errors.Is(err, appErrors.ErrInvalidRule))
}

func TestEventServiceCreateFromRRuleString(t *testing.T) {
	svc, _, slots := newEventFixture(t)
	req := dailyCreateRequest()
	req.Recurrence = nil
	req.RRule = "FREQ=WEEKLY;INTERVAL=1;BYDAY=MO,WE"
	to := testDay(2024, 1, 14)
	req.MaterializeTo = &to

	event, err := svc.Create(context.Background(), req)
	require.NoError(t, err)
	assert.Equal(t, models.FrequencyWeekly, event.Recurrence.Frequency)

	written, err := slots.ListByEvent(context.Background(), event.ID)
	require.NoError(t, err)
	// Mondays and Wednesdays between Jan 1 and Jan 14.
	require.Len(t, written, 4)
	assert.Equal(t, testDay(2024, 1, 1), written[0].LocalDate)
	assert.Equal(t, testDay(2024, 1, 3), written[1].LocalDate)
	assert.Equal(t, testDay(2024, 1, 8), written[2].LocalDate)
	assert.Equal(t, testDay(2024, 1, 10), written[3].LocalDate)
}

func TestEventServiceCreateRollsBackOnOverfullRule(t *testing.T) {
	svc, events, _ := newEventFixture(t)
	req := dailyCreateRequest()
	// Two years of daily occurrences in one window exceeds the ceiling.
	to := testDay(2026, 6, 1)
	req.MaterializeTo = &to

	_, err := svc.Create(context.Background(), req)
	require.Error(t, err)
	assert.True(t, errors.Is(err, appErrors.ErrHorizonExceeded))

	remaining, err := events.ListByOwner(context.Background(), "owner-1")
	require.NoError(t, err)
	assert.Empty(t, remaining)
}

func TestEventServiceGetUnknown(t *testing.T) {
	svc, _, _ := newEventFixture(t)

	_, err := svc.Get(context.Background(), "nope")
	require.Error(t, err)
	assert.True(t, errors.Is(err, appErrors.ErrNotFound))
}

func TestEventServiceDeleteCascadesSlots(t *testing.T) {
	svc, events, slots := newEventFixture(t)
	req := dailyCreateRequest()
	to := testDay(2024, 1, 10)
	req.MaterializeTo = &to
	event, err := svc.Create(context.Background(), req)
	require.NoError(t, err)

	require.NoError(t, svc.Delete(context.Background(), event.ID))

	_, err = events.GetByID(context.Background(), event.ID)
	assert.ErrorIs(t, err, sql.ErrNoRows)
	orphans, err := slots.ListByEvent(context.Background(), event.ID)
	require.NoError(t, err)
	assert.Empty(t, orphans)

	err = svc.Delete(context.Background(), event.ID)
	require.Error(t, err)
	assert.True(t, errors.Is(err, appErrors.ErrNotFound))
}
