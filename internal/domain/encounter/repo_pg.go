package encounter

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

type repoPG struct{ pool *pgxpool.Pool }

func NewRepoPG(pool *pgxpool.Pool) Repository { return &repoPG{pool: pool} }

const encCols = `id, fhir_id, appointment_id, patient_id, status, class_code,
	period_start, period_end, created_at, updated_at`

func scanEncounter(row pgx.Row) (*Encounter, error) {
	var e Encounter
	err := row.Scan(&e.ID, &e.FHIRID, &e.AppointmentID, &e.PatientID, &e.Status, &e.ClassCode,
		&e.PeriodStart, &e.PeriodEnd, &e.CreatedAt, &e.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	return &e, err
}

func (r *repoPG) Create(ctx context.Context, e *Encounter) error {
	e.ID = uuid.New()
	if e.FHIRID == "" {
		e.FHIRID = e.ID.String()
	}
	_, err := r.pool.Exec(ctx, `
		INSERT INTO encounter (id, fhir_id, appointment_id, patient_id, status, class_code)
		VALUES ($1,$2,$3,$4,$5,$6)`,
		e.ID, e.FHIRID, e.AppointmentID, e.PatientID, e.Status, e.ClassCode)
	return err
}

func (r *repoPG) GetByID(ctx context.Context, id uuid.UUID) (*Encounter, error) {
	return scanEncounter(r.pool.QueryRow(ctx, `SELECT `+encCols+` FROM encounter WHERE id = $1`, id))
}

func (r *repoPG) GetByFHIRID(ctx context.Context, fhirID string) (*Encounter, error) {
	return scanEncounter(r.pool.QueryRow(ctx, `SELECT `+encCols+` FROM encounter WHERE fhir_id = $1`, fhirID))
}

func (r *repoPG) GetLiveByAppointment(ctx context.Context, appointmentID uuid.UUID) (*Encounter, error) {
	return scanEncounter(r.pool.QueryRow(ctx, `
		SELECT `+encCols+` FROM encounter
		WHERE appointment_id = $1 AND status NOT IN ('finished','cancelled')
		LIMIT 1`, appointmentID))
}

func (r *repoPG) UpdateStatus(ctx context.Context, id uuid.UUID, from, to Status) (*Encounter, error) {
	row := r.pool.QueryRow(ctx, `
		UPDATE encounter SET status = $3, updated_at = NOW()
		WHERE id = $1 AND status = $2
		RETURNING `+encCols, id, from, to)
	e, err := scanEncounter(row)
	if errors.Is(err, ErrNotFound) {
		if _, getErr := r.GetByID(ctx, id); getErr != nil {
			return nil, getErr
		}
		return nil, ErrStatusMoved
	}
	return e, err
}

func (r *repoPG) SetPeriodStart(ctx context.Context, id uuid.UUID) error {
	_, err := r.pool.Exec(ctx, `
		UPDATE encounter SET period_start = NOW(), updated_at = NOW()
		WHERE id = $1 AND period_start IS NULL`, id)
	return err
}

func (r *repoPG) SetPeriodEnd(ctx context.Context, id uuid.UUID) error {
	_, err := r.pool.Exec(ctx, `
		UPDATE encounter SET period_end = NOW(), updated_at = NOW()
		WHERE id = $1 AND period_end IS NULL`, id)
	return err
}

func (r *repoPG) AddStatusHistory(ctx context.Context, entry *StatusHistoryEntry) error {
	entry.ID = uuid.New()
	_, err := r.pool.Exec(ctx, `
		INSERT INTO encounter_status_history (id, encounter_id, status, period_start)
		VALUES ($1,$2,$3,NOW())`,
		entry.ID, entry.EncounterID, entry.Status)
	return err
}

func (r *repoPG) GetStatusHistory(ctx context.Context, encounterID uuid.UUID) ([]*StatusHistoryEntry, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT id, encounter_id, status, period_start, period_end
		FROM encounter_status_history WHERE encounter_id = $1 ORDER BY period_start`, encounterID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []*StatusHistoryEntry
	for rows.Next() {
		var e StatusHistoryEntry
		if err := rows.Scan(&e.ID, &e.EncounterID, &e.Status, &e.PeriodStart, &e.PeriodEnd); err != nil {
			return nil, err
		}
		items = append(items, &e)
	}
	return items, rows.Err()
}

func (r *repoPG) CloseStatusHistory(ctx context.Context, encounterID uuid.UUID) error {
	_, err := r.pool.Exec(ctx, `
		UPDATE encounter_status_history SET period_end = NOW()
		WHERE encounter_id = $1 AND period_end IS NULL`, encounterID)
	return err
}
