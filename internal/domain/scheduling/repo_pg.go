package scheduling

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Postgres error codes surfaced as per-item rejections.
const (
	pgExclusionViolation = "23P01"
	pgUniqueViolation    = "23505"
)

// =========== Schedule Repository ===========

type scheduleRepoPG struct{ pool *pgxpool.Pool }

func NewScheduleRepoPG(pool *pgxpool.Pool) ScheduleRepository { return &scheduleRepoPG{pool: pool} }

const schedCols = `id, fhir_id, active, practitioner_id,
	planning_horizon_start, planning_horizon_end,
	daily_start_min, daily_end_min, slot_minutes, weekdays,
	break_start_min, break_end_min, comment, created_at, updated_at`

func scanSchedule(row pgx.Row) (*Schedule, error) {
	var s Schedule
	err := row.Scan(&s.ID, &s.FHIRID, &s.Active, &s.PractitionerID,
		&s.PlanningHorizonStart, &s.PlanningHorizonEnd,
		&s.DailyStartMin, &s.DailyEndMin, &s.SlotMinutes, &s.Weekdays,
		&s.BreakStartMin, &s.BreakEndMin, &s.Comment, &s.CreatedAt, &s.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrScheduleNotFound
	}
	return &s, err
}

func (r *scheduleRepoPG) Create(ctx context.Context, s *Schedule) error {
	s.ID = uuid.New()
	if s.FHIRID == "" {
		s.FHIRID = s.ID.String()
	}
	_, err := r.pool.Exec(ctx, `
		INSERT INTO schedule (id, fhir_id, active, practitioner_id,
			planning_horizon_start, planning_horizon_end,
			daily_start_min, daily_end_min, slot_minutes, weekdays,
			break_start_min, break_end_min, comment)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13)`,
		s.ID, s.FHIRID, s.Active, s.PractitionerID,
		s.PlanningHorizonStart, s.PlanningHorizonEnd,
		s.DailyStartMin, s.DailyEndMin, s.SlotMinutes, s.Weekdays,
		s.BreakStartMin, s.BreakEndMin, s.Comment)
	return err
}

func (r *scheduleRepoPG) GetByID(ctx context.Context, id uuid.UUID) (*Schedule, error) {
	return scanSchedule(r.pool.QueryRow(ctx, `SELECT `+schedCols+` FROM schedule WHERE id = $1`, id))
}

func (r *scheduleRepoPG) GetByFHIRID(ctx context.Context, fhirID string) (*Schedule, error) {
	return scanSchedule(r.pool.QueryRow(ctx, `SELECT `+schedCols+` FROM schedule WHERE fhir_id = $1`, fhirID))
}

func (r *scheduleRepoPG) Update(ctx context.Context, s *Schedule) error {
	tag, err := r.pool.Exec(ctx, `
		UPDATE schedule SET active = $2, daily_start_min = $3, daily_end_min = $4,
			slot_minutes = $5, weekdays = $6, break_start_min = $7, break_end_min = $8,
			comment = $9, updated_at = NOW()
		WHERE id = $1`,
		s.ID, s.Active, s.DailyStartMin, s.DailyEndMin,
		s.SlotMinutes, s.Weekdays, s.BreakStartMin, s.BreakEndMin, s.Comment)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrScheduleNotFound
	}
	return nil
}

func (r *scheduleRepoPG) ExtendHorizon(ctx context.Context, id uuid.UUID, newEnd time.Time) error {
	tag, err := r.pool.Exec(ctx, `
		UPDATE schedule SET planning_horizon_end = $2, updated_at = NOW()
		WHERE id = $1 AND (planning_horizon_end IS NULL OR planning_horizon_end < $2)`,
		id, newEnd)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrScheduleNotFound
	}
	return nil
}

func (r *scheduleRepoPG) ListByPractitioner(ctx context.Context, practitionerID uuid.UUID, limit, offset int) ([]*Schedule, int, error) {
	var total int
	if err := r.pool.QueryRow(ctx, `SELECT COUNT(*) FROM schedule WHERE practitioner_id = $1`, practitionerID).Scan(&total); err != nil {
		return nil, 0, err
	}
	rows, err := r.pool.Query(ctx, `SELECT `+schedCols+` FROM schedule WHERE practitioner_id = $1 ORDER BY created_at DESC LIMIT $2 OFFSET $3`,
		practitionerID, limit, offset)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()
	var items []*Schedule
	for rows.Next() {
		s, err := scanSchedule(rows)
		if err != nil {
			return nil, 0, err
		}
		items = append(items, s)
	}
	return items, total, rows.Err()
}

func (r *scheduleRepoPG) HasSlots(ctx context.Context, id uuid.UUID) (bool, error) {
	var exists bool
	err := r.pool.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM slot WHERE schedule_id = $1)`, id).Scan(&exists)
	return exists, err
}

// =========== Slot Repository ===========

type slotRepoPG struct{ pool *pgxpool.Pool }

func NewSlotRepoPG(pool *pgxpool.Pool) SlotRepository { return &slotRepoPG{pool: pool} }

const slotCols = `id, fhir_id, schedule_id, status, start_time, end_time, comment, created_at, updated_at`

func scanSlot(row pgx.Row) (*Slot, error) {
	var sl Slot
	err := row.Scan(&sl.ID, &sl.FHIRID, &sl.ScheduleID, &sl.Status,
		&sl.StartTime, &sl.EndTime, &sl.Comment, &sl.CreatedAt, &sl.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrSlotNotFound
	}
	return &sl, err
}

func (r *slotRepoPG) Create(ctx context.Context, sl *Slot) error {
	sl.ID = uuid.New()
	if sl.FHIRID == "" {
		sl.FHIRID = sl.ID.String()
	}
	_, err := r.pool.Exec(ctx, `
		INSERT INTO slot (id, fhir_id, schedule_id, status, start_time, end_time, comment)
		VALUES ($1,$2,$3,$4,$5,$6,$7)`,
		sl.ID, sl.FHIRID, sl.ScheduleID, sl.Status, sl.StartTime, sl.EndTime, sl.Comment)
	return err
}

// CreateBatch inserts candidates one statement at a time so the slot table's
// overlap exclusion constraint yields a verdict per candidate. Constraint
// violations become rejections; any other failure aborts the chunk.
func (r *slotRepoPG) CreateBatch(ctx context.Context, slots []*Slot) ([]SlotCreateResult, error) {
	results := make([]SlotCreateResult, 0, len(slots))
	for _, sl := range slots {
		sl.ID = uuid.New()
		if sl.FHIRID == "" {
			sl.FHIRID = sl.ID.String()
		}
		_, err := r.pool.Exec(ctx, `
			INSERT INTO slot (id, fhir_id, schedule_id, status, start_time, end_time, comment)
			VALUES ($1,$2,$3,$4,$5,$6,$7)`,
			sl.ID, sl.FHIRID, sl.ScheduleID, sl.Status, sl.StartTime, sl.EndTime, sl.Comment)
		if err != nil {
			var pgErr *pgconn.PgError
			if errors.As(err, &pgErr) && (pgErr.Code == pgExclusionViolation || pgErr.Code == pgUniqueViolation) {
				results = append(results, SlotCreateResult{
					Slot:   sl,
					Reason: "overlaps an existing slot on this schedule",
				})
				continue
			}
			return results, err
		}
		results = append(results, SlotCreateResult{Slot: sl, Created: true})
	}
	return results, nil
}

func (r *slotRepoPG) GetByID(ctx context.Context, id uuid.UUID) (*Slot, error) {
	return scanSlot(r.pool.QueryRow(ctx, `SELECT `+slotCols+` FROM slot WHERE id = $1`, id))
}

func (r *slotRepoPG) GetByFHIRID(ctx context.Context, fhirID string) (*Slot, error) {
	return scanSlot(r.pool.QueryRow(ctx, `SELECT `+slotCols+` FROM slot WHERE fhir_id = $1`, fhirID))
}

func (r *slotRepoPG) UpdateStatus(ctx context.Context, id uuid.UUID, from, to string) (*Slot, error) {
	row := r.pool.QueryRow(ctx, `
		UPDATE slot SET status = $3, updated_at = NOW()
		WHERE id = $1 AND status = $2
		RETURNING `+slotCols, id, from, to)
	sl, err := scanSlot(row)
	if errors.Is(err, ErrSlotNotFound) {
		// Row exists but in another status, or does not exist at all.
		if _, getErr := r.GetByID(ctx, id); getErr != nil {
			return nil, getErr
		}
		return nil, ErrSlotNotInStatus
	}
	return sl, err
}

func (r *slotRepoPG) ListBySchedule(ctx context.Context, scheduleID uuid.UUID, limit, offset int) ([]*Slot, int, error) {
	var total int
	if err := r.pool.QueryRow(ctx, `SELECT COUNT(*) FROM slot WHERE schedule_id = $1`, scheduleID).Scan(&total); err != nil {
		return nil, 0, err
	}
	rows, err := r.pool.Query(ctx, `SELECT `+slotCols+` FROM slot WHERE schedule_id = $1 ORDER BY start_time LIMIT $2 OFFSET $3`,
		scheduleID, limit, offset)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()
	var items []*Slot
	for rows.Next() {
		sl, err := scanSlot(rows)
		if err != nil {
			return nil, 0, err
		}
		items = append(items, sl)
	}
	return items, total, rows.Err()
}
