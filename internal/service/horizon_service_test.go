package service

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/orbitcal/orbitcal-api/internal/models"
	"github.com/orbitcal/orbitcal-api/internal/timezone"
)

func TestHorizonServiceRollExtendsStaleSeries(t *testing.T) {
	events := newEventRepoStub()
	slots := newSlotRepoStub(events)
	store := NewSlotStore(events, slots, timezone.New("", ""), nil, nil, nil, nil)
	horizon := NewHorizonService(events, store, 7*24*time.Hour, 2, nil)

	stale := newDailyEvent(t, events)
	fresh := &models.EventDefinition{
		OwnerID:           "owner-1",
		Title:             "Already ahead",
		StartDate:         testDay(2024, 1, 1),
		StartMinute:       8 * 60,
		DurationMinutes:   15,
		Timezone:          "UTC",
		Recurrence:        models.RecurrenceRule{Frequency: models.FrequencyDaily, Interval: 1},
		GenerationHorizon: testDay(2024, 3, 1),
	}
	require.NoError(t, events.Create(context.Background(), nil, fresh))

	ctx := context.Background()
	horizon.Start(ctx)
	defer horizon.Stop()

	now := testDay(2024, 1, 1)
	scheduled, err := horizon.Roll(ctx, now)
	require.NoError(t, err)
	assert.Equal(t, 1, scheduled)

	through := testDay(2024, 1, 8)
	assert.Eventually(t, func() bool {
		event, err := events.GetByID(ctx, stale.ID)
		return err == nil && event.GenerationHorizon.Equal(through)
	}, 2*time.Second, 10*time.Millisecond)

	written, err := slots.ListByEvent(ctx, stale.ID)
	require.NoError(t, err)
	assert.Len(t, written, 8)

	untouched, err := slots.ListByEvent(ctx, fresh.ID)
	require.NoError(t, err)
	assert.Empty(t, untouched)
}

func TestHorizonServiceRollNothingStale(t *testing.T) {
	events := newEventRepoStub()
	slots := newSlotRepoStub(events)
	store := NewSlotStore(events, slots, timezone.New("", ""), nil, nil, nil, nil)
	horizon := NewHorizonService(events, store, 7*24*time.Hour, 1, nil)

	event := newDailyEvent(t, events)
	require.NoError(t, events.UpdateHorizon(context.Background(), nil, event.ID, testDay(2024, 6, 1)))

	ctx := context.Background()
	horizon.Start(ctx)
	defer horizon.Stop()

	scheduled, err := horizon.Roll(ctx, testDay(2024, 1, 1))
	require.NoError(t, err)
	assert.Zero(t, scheduled)
}
