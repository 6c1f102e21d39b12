package repository

import (
	"context"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/orbitcal/orbitcal-api/internal/models"
)

func newSlotRepoMock(t *testing.T) (*sqlx.DB, sqlmock.Sqlmock, func()) {
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err)
	return sqlx.NewDb(db, "sqlmock"), mock, func() { db.Close() }
}

func slotRowColumns() []string {
	return []string{
		"id", "event_id", "local_date", "start_utc", "end_utc", "is_modified", "is_cancelled",
		"override_title", "override_start_minute", "override_duration_minutes", "tz_classification", "created_at", "updated_at",
	}
}

func TestSlotRepositoryUpsertBatchAssignsIDs(t *testing.T) {
	db, mock, cleanup := newSlotRepoMock(t)
	defer cleanup()
	repo := NewSlotRepository(db)

	mock.ExpectExec("INSERT INTO occurrence_slots").WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectExec("INSERT INTO occurrence_slots").WillReturnResult(sqlmock.NewResult(1, 0))

	slots := []models.OccurrenceSlot{
		{EventID: "ev-1", LocalDate: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC), TZClassification: models.TZUnambiguous},
		{EventID: "ev-1", LocalDate: time.Date(2024, 1, 2, 0, 0, 0, 0, time.UTC), TZClassification: models.TZUnambiguous},
	}
	require.NoError(t, repo.UpsertBatch(context.Background(), nil, slots))
	assert.NotEmpty(t, slots[0].ID)
	assert.NotEmpty(t, slots[1].ID)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSlotRepositoryUpsertBatchEmptyIsNoop(t *testing.T) {
	db, mock, cleanup := newSlotRepoMock(t)
	defer cleanup()
	repo := NewSlotRepository(db)

	require.NoError(t, repo.UpsertBatch(context.Background(), nil, nil))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSlotRepositoryListRangeFiltersByOwner(t *testing.T) {
	db, mock, cleanup := newSlotRepoMock(t)
	defer cleanup()
	repo := NewSlotRepository(db)

	now := time.Now().UTC()
	rows := sqlmock.NewRows(slotRowColumns()).AddRow(
		"slot-1", "ev-1", time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC),
		time.Date(2024, 1, 1, 9, 0, 0, 0, time.UTC), time.Date(2024, 1, 1, 10, 0, 0, 0, time.UTC),
		false, false, nil, nil, nil, "UNAMBIGUOUS", now, now,
	)
	mock.ExpectQuery("FROM occurrence_slots s JOIN event_definitions e ON e.id = s.event_id WHERE s.start_utc >= \\$1 AND s.start_utc < \\$2 AND s.is_cancelled = FALSE AND e.owner_id = \\$3 ORDER BY s.start_utc ASC").
		WithArgs(sqlmock.AnyArg(), sqlmock.AnyArg(), "owner-1").
		WillReturnRows(rows)

	slots, err := repo.ListRange(context.Background(), models.SlotRangeFilter{
		OwnerID: "owner-1",
		Start:   time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC),
		End:     time.Date(2024, 2, 1, 0, 0, 0, 0, time.UTC),
	})
	require.NoError(t, err)
	require.Len(t, slots, 1)
	assert.Equal(t, "slot-1", slots[0].ID)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSlotRepositoryListRangeIncludesCancelledWhenAsked(t *testing.T) {
	db, mock, cleanup := newSlotRepoMock(t)
	defer cleanup()
	repo := NewSlotRepository(db)

	mock.ExpectQuery("FROM occurrence_slots s\\s+WHERE s.start_utc >= \\$1 AND s.start_utc < \\$2 AND s.event_id = \\$3 ORDER BY s.start_utc ASC").
		WithArgs(sqlmock.AnyArg(), sqlmock.AnyArg(), "ev-1").
		WillReturnRows(sqlmock.NewRows(slotRowColumns()))

	_, err := repo.ListRange(context.Background(), models.SlotRangeFilter{
		EventID:          "ev-1",
		Start:            time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC),
		End:              time.Date(2024, 2, 1, 0, 0, 0, 0, time.UTC),
		IncludeCancelled: true,
	})
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSlotRepositoryApplyOverrideCoalesces(t *testing.T) {
	db, mock, cleanup := newSlotRepoMock(t)
	defer cleanup()
	repo := NewSlotRepository(db)

	title := "Moved standup"
	mock.ExpectExec("UPDATE occurrence_slots SET is_modified = TRUE").
		WithArgs(title, nil, nil, sqlmock.AnyArg(), "slot-1").
		WillReturnResult(sqlmock.NewResult(0, 1))

	require.NoError(t, repo.ApplyOverride(context.Background(), nil, "slot-1", models.SlotOverride{Title: &title}))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSlotRepositoryClearOverridesReportsRows(t *testing.T) {
	db, mock, cleanup := newSlotRepoMock(t)
	defer cleanup()
	repo := NewSlotRepository(db)

	mock.ExpectExec("UPDATE occurrence_slots SET is_modified = FALSE").
		WithArgs(sqlmock.AnyArg(), "ev-1").
		WillReturnResult(sqlmock.NewResult(0, 3))

	n, err := repo.ClearOverrides(context.Background(), nil, "ev-1")
	require.NoError(t, err)
	assert.Equal(t, int64(3), n)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSlotRepositoryDeleteFromDate(t *testing.T) {
	db, mock, cleanup := newSlotRepoMock(t)
	defer cleanup()
	repo := NewSlotRepository(db)

	mock.ExpectExec("DELETE FROM occurrence_slots WHERE event_id = \\$1 AND local_date >= \\$2").
		WithArgs("ev-1", time.Date(2024, 2, 1, 0, 0, 0, 0, time.UTC)).
		WillReturnResult(sqlmock.NewResult(0, 4))

	n, err := repo.DeleteFromDate(context.Background(), nil, "ev-1", time.Date(2024, 2, 1, 0, 0, 0, 0, time.UTC))
	require.NoError(t, err)
	assert.Equal(t, int64(4), n)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSlotRepositoryDeleteByEvent(t *testing.T) {
	db, mock, cleanup := newSlotRepoMock(t)
	defer cleanup()
	repo := NewSlotRepository(db)

	mock.ExpectExec("DELETE FROM occurrence_slots WHERE event_id = \\$1").
		WithArgs("ev-1").
		WillReturnResult(sqlmock.NewResult(0, 12))

	n, err := repo.DeleteByEvent(context.Background(), nil, "ev-1")
	require.NoError(t, err)
	assert.Equal(t, int64(12), n)
	assert.NoError(t, mock.ExpectationsWereMet())
}
