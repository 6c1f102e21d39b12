package repository

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/orbitcal/orbitcal-api/internal/models"
)

const slotColumns = `id, event_id, local_date, start_utc, end_utc, is_modified, is_cancelled,
override_title, override_start_minute, override_duration_minutes, tz_classification, created_at, updated_at`

// SlotRepository persists materialized occurrence slots.
type SlotRepository struct {
	db *sqlx.DB
}

// NewSlotRepository builds repository.
func NewSlotRepository(db *sqlx.DB) *SlotRepository {
	return &SlotRepository{db: db}
}

func (r *SlotRepository) exec(exec sqlx.ExtContext) sqlx.ExtContext {
	if exec != nil {
		return exec
	}
	return r.db
}

// UpsertBatch inserts slots, leaving already-present rows untouched so a
// repeated materialization of the same window is a no-op. Existing rows keep
// their overrides and cancellation flags.
func (r *SlotRepository) UpsertBatch(ctx context.Context, exec sqlx.ExtContext, slots []models.OccurrenceSlot) error {
	if len(slots) == 0 {
		return nil
	}
	target := r.exec(exec)
	now := time.Now().UTC()

	const query = `
INSERT INTO occurrence_slots (id, event_id, local_date, start_utc, end_utc, is_modified, is_cancelled,
override_title, override_start_minute, override_duration_minutes, tz_classification, created_at, updated_at)
VALUES (:id, :event_id, :local_date, :start_utc, :end_utc, :is_modified, :is_cancelled,
:override_title, :override_start_minute, :override_duration_minutes, :tz_classification, :created_at, :updated_at)
ON CONFLICT (event_id, local_date) DO NOTHING`

	for i := range slots {
		slot := &slots[i]
		if slot.ID == "" {
			slot.ID = uuid.NewString()
		}
		if slot.CreatedAt.IsZero() {
			slot.CreatedAt = now
		}
		slot.UpdatedAt = now
		if _, err := sqlx.NamedExecContext(ctx, target, query, slot); err != nil {
			return fmt.Errorf("upsert occurrence slot: %w", err)
		}
	}
	return nil
}

// GetByEventAndDate fetches one slot addressed by its series and date.
func (r *SlotRepository) GetByEventAndDate(ctx context.Context, eventID string, date time.Time) (*models.OccurrenceSlot, error) {
	query := fmt.Sprintf(`SELECT %s FROM occurrence_slots WHERE event_id = $1 AND local_date = $2`, slotColumns)
	var slot models.OccurrenceSlot
	if err := r.db.GetContext(ctx, &slot, query, eventID, date); err != nil {
		return nil, err
	}
	return &slot, nil
}

// ListRange scans slots whose absolute start falls in [start, end), sorted
// by start instant. Cancelled rows are excluded unless asked for.
func (r *SlotRepository) ListRange(ctx context.Context, filter models.SlotRangeFilter) ([]models.OccurrenceSlot, error) {
	where := []string{"s.start_utc >= $1", "s.start_utc < $2"}
	args := []interface{}{filter.Start, filter.End}
	if !filter.IncludeCancelled {
		where = append(where, "s.is_cancelled = FALSE")
	}
	if filter.EventID != "" {
		args = append(args, filter.EventID)
		where = append(where, fmt.Sprintf("s.event_id = $%d", len(args)))
	}
	join := ""
	if filter.OwnerID != "" {
		join = "JOIN event_definitions e ON e.id = s.event_id"
		args = append(args, filter.OwnerID)
		where = append(where, fmt.Sprintf("e.owner_id = $%d", len(args)))
	}

	query := fmt.Sprintf(`SELECT %s FROM occurrence_slots s %s WHERE %s ORDER BY s.start_utc ASC`,
		prefixColumns("s"), join, strings.Join(where, " AND "))
	var slots []models.OccurrenceSlot
	if err := r.db.SelectContext(ctx, &slots, query, args...); err != nil {
		return nil, fmt.Errorf("range scan occurrence slots: %w", err)
	}
	return slots, nil
}

// Cancel flags a slot cancelled without deleting the row.
func (r *SlotRepository) Cancel(ctx context.Context, exec sqlx.ExtContext, slotID string) error {
	const query = `UPDATE occurrence_slots SET is_cancelled = TRUE, updated_at = $1 WHERE id = $2`
	if _, err := r.exec(exec).ExecContext(ctx, query, time.Now().UTC(), slotID); err != nil {
		return fmt.Errorf("cancel occurrence slot: %w", err)
	}
	return nil
}

// ApplyOverride stores per-slot override fields and marks the slot modified.
func (r *SlotRepository) ApplyOverride(ctx context.Context, exec sqlx.ExtContext, slotID string, o models.SlotOverride) error {
	const query = `UPDATE occurrence_slots SET is_modified = TRUE,
override_title = COALESCE($1, override_title),
override_start_minute = COALESCE($2, override_start_minute),
override_duration_minutes = COALESCE($3, override_duration_minutes),
updated_at = $4
WHERE id = $5`
	if _, err := r.exec(exec).ExecContext(ctx, query, o.Title, o.StartMinute, o.DurationMinutes, time.Now().UTC(), slotID); err != nil {
		return fmt.Errorf("apply slot override: %w", err)
	}
	return nil
}

// ClearOverrides wipes overrides from every non-cancelled slot of a series so
// they re-inherit the template. Returns the number of rows touched.
func (r *SlotRepository) ClearOverrides(ctx context.Context, exec sqlx.ExtContext, eventID string) (int64, error) {
	const query = `UPDATE occurrence_slots SET is_modified = FALSE,
override_title = NULL, override_start_minute = NULL, override_duration_minutes = NULL, updated_at = $1
WHERE event_id = $2 AND is_cancelled = FALSE`
	result, err := r.exec(exec).ExecContext(ctx, query, time.Now().UTC(), eventID)
	if err != nil {
		return 0, fmt.Errorf("clear slot overrides: %w", err)
	}
	affected, _ := result.RowsAffected()
	return affected, nil
}

// UpdateInstants rewrites a slot's resolved absolute span after a template
// clock or zone change.
func (r *SlotRepository) UpdateInstants(ctx context.Context, exec sqlx.ExtContext, slotID string, start, end time.Time, cls models.TZClassification) error {
	const query = `UPDATE occurrence_slots SET start_utc = $1, end_utc = $2, tz_classification = $3, updated_at = $4 WHERE id = $5`
	if _, err := r.exec(exec).ExecContext(ctx, query, start, end, cls, time.Now().UTC(), slotID); err != nil {
		return fmt.Errorf("update slot instants: %w", err)
	}
	return nil
}

// ListByEvent returns every slot of a series ordered by date.
func (r *SlotRepository) ListByEvent(ctx context.Context, eventID string) ([]models.OccurrenceSlot, error) {
	query := fmt.Sprintf(`SELECT %s FROM occurrence_slots WHERE event_id = $1 ORDER BY local_date ASC`, slotColumns)
	var slots []models.OccurrenceSlot
	if err := r.db.SelectContext(ctx, &slots, query, eventID); err != nil {
		return nil, fmt.Errorf("list slots by event: %w", err)
	}
	return slots, nil
}

// DeleteFromDate un-materializes every slot of a series on or after date,
// returning the dates removed. A THIS_AND_FUTURE split uses this to hand the
// tail of the series to its successor definition.
func (r *SlotRepository) DeleteFromDate(ctx context.Context, exec sqlx.ExtContext, eventID string, date time.Time) (int64, error) {
	const query = `DELETE FROM occurrence_slots WHERE event_id = $1 AND local_date >= $2`
	result, err := r.exec(exec).ExecContext(ctx, query, eventID, date)
	if err != nil {
		return 0, fmt.Errorf("delete slots from date: %w", err)
	}
	affected, _ := result.RowsAffected()
	return affected, nil
}

// DeleteByEvent removes every slot of a series. Runs inside the same
// transaction that removes the definition, since slots only reference their
// series by id.
func (r *SlotRepository) DeleteByEvent(ctx context.Context, exec sqlx.ExtContext, eventID string) (int64, error) {
	result, err := r.exec(exec).ExecContext(ctx, `DELETE FROM occurrence_slots WHERE event_id = $1`, eventID)
	if err != nil {
		return 0, fmt.Errorf("delete slots by event: %w", err)
	}
	affected, _ := result.RowsAffected()
	return affected, nil
}

// DeleteByID removes one slot row outright. Used only for exception-date
// removal, where cancellation's audit row is explicitly not wanted.
func (r *SlotRepository) DeleteByID(ctx context.Context, exec sqlx.ExtContext, slotID string) error {
	if _, err := r.exec(exec).ExecContext(ctx, `DELETE FROM occurrence_slots WHERE id = $1`, slotID); err != nil {
		return fmt.Errorf("delete slot: %w", err)
	}
	return nil
}

func prefixColumns(alias string) string {
	cols := strings.Split(slotColumns, ",")
	for i, c := range cols {
		cols[i] = alias + "." + strings.TrimSpace(c)
	}
	return strings.Join(cols, ", ")
}
