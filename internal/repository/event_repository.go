package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"github.com/orbitcal/orbitcal-api/internal/models"
)

const eventColumns = `id, owner_id, title, description, start_date, start_minute, duration_minutes, timezone, all_day,
frequency, recur_interval, by_weekdays, day_of_month, until, occurrence_count, exception_dates, generation_horizon,
created_at, updated_at`

// EventRepository persists event definitions and their flattened recurrence
// columns.
type EventRepository struct {
	db *sqlx.DB
}

// NewEventRepository builds repository.
func NewEventRepository(db *sqlx.DB) *EventRepository {
	return &EventRepository{db: db}
}

func (r *EventRepository) exec(exec sqlx.ExtContext) sqlx.ExtContext {
	if exec != nil {
		return exec
	}
	return r.db
}

// Create inserts an event definition.
func (r *EventRepository) Create(ctx context.Context, exec sqlx.ExtContext, event *models.EventDefinition) error {
	if event.ID == "" {
		event.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	if event.CreatedAt.IsZero() {
		event.CreatedAt = now
	}
	event.UpdatedAt = now
	if event.ExceptionDates == nil {
		event.ExceptionDates = pq.StringArray{}
	}
	event.SyncRecurrenceColumns()

	const query = `
INSERT INTO event_definitions (id, owner_id, title, description, start_date, start_minute, duration_minutes, timezone, all_day,
frequency, recur_interval, by_weekdays, day_of_month, until, occurrence_count, exception_dates, generation_horizon, created_at, updated_at)
VALUES (:id, :owner_id, :title, :description, :start_date, :start_minute, :duration_minutes, :timezone, :all_day,
:frequency, :recur_interval, :by_weekdays, :day_of_month, :until, :occurrence_count, :exception_dates, :generation_horizon, :created_at, :updated_at)`
	if _, err := sqlx.NamedExecContext(ctx, r.exec(exec), query, event); err != nil {
		return fmt.Errorf("insert event definition: %w", err)
	}
	return nil
}

// GetByID loads a definition.
func (r *EventRepository) GetByID(ctx context.Context, id string) (*models.EventDefinition, error) {
	query := fmt.Sprintf(`SELECT %s FROM event_definitions WHERE id = $1`, eventColumns)
	var event models.EventDefinition
	if err := r.db.GetContext(ctx, &event, query, id); err != nil {
		return nil, err
	}
	event.HydrateRecurrence()
	return &event, nil
}

// ListByOwner returns every definition for an owner.
func (r *EventRepository) ListByOwner(ctx context.Context, ownerID string) ([]models.EventDefinition, error) {
	query := fmt.Sprintf(`SELECT %s FROM event_definitions WHERE owner_id = $1 ORDER BY start_date ASC`, eventColumns)
	var events []models.EventDefinition
	if err := r.db.SelectContext(ctx, &events, query, ownerID); err != nil {
		return nil, fmt.Errorf("list event definitions: %w", err)
	}
	for i := range events {
		events[i].HydrateRecurrence()
	}
	return events, nil
}

// ListStaleHorizons returns definitions whose materialized horizon lags the
// target date, for the background horizon roll.
func (r *EventRepository) ListStaleHorizons(ctx context.Context, through time.Time) ([]models.EventDefinition, error) {
	query := fmt.Sprintf(`SELECT %s FROM event_definitions
WHERE generation_horizon < $1 AND (until IS NULL OR until >= generation_horizon)
ORDER BY generation_horizon ASC`, eventColumns)
	var events []models.EventDefinition
	if err := r.db.SelectContext(ctx, &events, query, through); err != nil {
		return nil, fmt.Errorf("list stale horizons: %w", err)
	}
	for i := range events {
		events[i].HydrateRecurrence()
	}
	return events, nil
}

// UpdateTemplate rewrites the mutable template fields of a definition.
func (r *EventRepository) UpdateTemplate(ctx context.Context, exec sqlx.ExtContext, event *models.EventDefinition) error {
	event.UpdatedAt = time.Now().UTC()
	event.SyncRecurrenceColumns()
	const query = `UPDATE event_definitions SET title = :title, description = :description, start_minute = :start_minute,
duration_minutes = :duration_minutes, timezone = :timezone, updated_at = :updated_at WHERE id = :id`
	if _, err := sqlx.NamedExecContext(ctx, r.exec(exec), query, event); err != nil {
		return fmt.Errorf("update event template: %w", err)
	}
	return nil
}

// UpdateHorizon advances the generation horizon. Materialization writes slot
// rows first and calls this last, so readers never observe a horizon ahead
// of the rows backing it.
func (r *EventRepository) UpdateHorizon(ctx context.Context, exec sqlx.ExtContext, id string, horizon time.Time) error {
	const query = `UPDATE event_definitions SET generation_horizon = $1, updated_at = $2 WHERE id = $3`
	if _, err := r.exec(exec).ExecContext(ctx, query, horizon, time.Now().UTC(), id); err != nil {
		return fmt.Errorf("update generation horizon: %w", err)
	}
	return nil
}

// TruncateSeries caps a definition's termination at until, clearing any
// count termination it had. Used by the predecessor side of a split.
func (r *EventRepository) TruncateSeries(ctx context.Context, exec sqlx.ExtContext, id string, until time.Time) error {
	const query = `UPDATE event_definitions SET until = $1, occurrence_count = NULL, updated_at = $2 WHERE id = $3`
	if _, err := r.exec(exec).ExecContext(ctx, query, until, time.Now().UTC(), id); err != nil {
		return fmt.Errorf("truncate series: %w", err)
	}
	return nil
}

// AddException appends a calendar date to the definition's exception list.
func (r *EventRepository) AddException(ctx context.Context, exec sqlx.ExtContext, id string, date time.Time) error {
	const query = `UPDATE event_definitions
SET exception_dates = array_append(exception_dates, $1), updated_at = $2
WHERE id = $3 AND NOT ($1 = ANY(exception_dates))`
	if _, err := r.exec(exec).ExecContext(ctx, query, models.FormatDate(date), time.Now().UTC(), id); err != nil {
		return fmt.Errorf("add exception date: %w", err)
	}
	return nil
}

// Delete removes a definition. Slot rows reference the definition weakly, so
// callers that want them gone delete them in the same transaction.
func (r *EventRepository) Delete(ctx context.Context, exec sqlx.ExtContext, id string) error {
	result, err := r.exec(exec).ExecContext(ctx, `DELETE FROM event_definitions WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete event definition: %w", err)
	}
	if affected, err := result.RowsAffected(); err == nil && affected == 0 {
		return fmt.Errorf("delete event definition: %w", sql.ErrNoRows)
	}
	return nil
}

// WithTx runs fn inside a transaction, committing on nil and rolling back
// otherwise.
func (r *EventRepository) WithTx(ctx context.Context, fn func(tx *sqlx.Tx) error) error {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	if err := fn(tx); err != nil {
		_ = tx.Rollback()
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit tx: %w", err)
	}
	return nil
}
