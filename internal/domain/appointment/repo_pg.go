package appointment

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Partial unique index allowing at most one live appointment per slot.
const slotLiveIndex = "idx_appointment_slot_live"

const pgUniqueViolation = "23505"

type repoPG struct{ pool *pgxpool.Pool }

func NewRepoPG(pool *pgxpool.Pool) Repository { return &repoPG{pool: pool} }

const apptCols = `id, fhir_id, status, cancellation_reason, description,
	start_time, end_time, slot_id, patient_id, practitioner_id, created_at, updated_at`

func scanAppointment(row pgx.Row) (*Appointment, error) {
	var a Appointment
	err := row.Scan(&a.ID, &a.FHIRID, &a.Status, &a.CancellationReason, &a.Description,
		&a.StartTime, &a.EndTime, &a.SlotID, &a.PatientID, &a.PractitionerID,
		&a.CreatedAt, &a.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	return &a, err
}

func (r *repoPG) Create(ctx context.Context, a *Appointment) error {
	a.ID = uuid.New()
	if a.FHIRID == "" {
		a.FHIRID = a.ID.String()
	}
	_, err := r.pool.Exec(ctx, `
		INSERT INTO appointment (id, fhir_id, status, description,
			start_time, end_time, slot_id, patient_id, practitioner_id)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9)`,
		a.ID, a.FHIRID, a.Status, a.Description,
		a.StartTime, a.EndTime, a.SlotID, a.PatientID, a.PractitionerID)
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == pgUniqueViolation && pgErr.ConstraintName == slotLiveIndex {
		// A concurrent booking won the slot between our lock-free check and
		// the insert; the index is the last line of defense.
		return ErrSlotReserved
	}
	return err
}

func (r *repoPG) GetByID(ctx context.Context, id uuid.UUID) (*Appointment, error) {
	return scanAppointment(r.pool.QueryRow(ctx, `SELECT `+apptCols+` FROM appointment WHERE id = $1`, id))
}

func (r *repoPG) GetByFHIRID(ctx context.Context, fhirID string) (*Appointment, error) {
	return scanAppointment(r.pool.QueryRow(ctx, `SELECT `+apptCols+` FROM appointment WHERE fhir_id = $1`, fhirID))
}

func (r *repoPG) UpdateStatus(ctx context.Context, id uuid.UUID, from, to Status) (*Appointment, error) {
	row := r.pool.QueryRow(ctx, `
		UPDATE appointment SET status = $3, updated_at = NOW()
		WHERE id = $1 AND status = $2
		RETURNING `+apptCols, id, from, to)
	a, err := scanAppointment(row)
	if errors.Is(err, ErrNotFound) {
		if _, getErr := r.GetByID(ctx, id); getErr != nil {
			return nil, getErr
		}
		return nil, ErrStatusMoved
	}
	return a, err
}

func (r *repoPG) SetCancellationReason(ctx context.Context, id uuid.UUID, reason string) error {
	_, err := r.pool.Exec(ctx, `
		UPDATE appointment SET cancellation_reason = $2, updated_at = NOW() WHERE id = $1`,
		id, reason)
	return err
}

func (r *repoPG) ListByPatient(ctx context.Context, patientID uuid.UUID, limit, offset int) ([]*Appointment, int, error) {
	var total int
	if err := r.pool.QueryRow(ctx, `SELECT COUNT(*) FROM appointment WHERE patient_id = $1`, patientID).Scan(&total); err != nil {
		return nil, 0, err
	}
	rows, err := r.pool.Query(ctx, `SELECT `+apptCols+` FROM appointment WHERE patient_id = $1 ORDER BY created_at DESC LIMIT $2 OFFSET $3`,
		patientID, limit, offset)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()
	var items []*Appointment
	for rows.Next() {
		a, err := scanAppointment(rows)
		if err != nil {
			return nil, 0, err
		}
		items = append(items, a)
	}
	return items, total, rows.Err()
}

func (r *repoPG) GetBySlot(ctx context.Context, slotID uuid.UUID) (*Appointment, error) {
	return scanAppointment(r.pool.QueryRow(ctx, `
		SELECT `+apptCols+` FROM appointment
		WHERE slot_id = $1 AND status NOT IN ('cancelled','noshow','entered-in-error')
		LIMIT 1`, slotID))
}

func (r *repoPG) AddParticipant(ctx context.Context, p *Participant) error {
	p.ID = uuid.New()
	_, err := r.pool.Exec(ctx, `
		INSERT INTO appointment_participant (id, appointment_id, actor_type, actor_id, status)
		VALUES ($1,$2,$3,$4,$5)`,
		p.ID, p.AppointmentID, p.ActorType, p.ActorID, p.Status)
	return err
}

func (r *repoPG) GetParticipants(ctx context.Context, appointmentID uuid.UUID) ([]*Participant, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT id, appointment_id, actor_type, actor_id, status
		FROM appointment_participant WHERE appointment_id = $1`, appointmentID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []*Participant
	for rows.Next() {
		var p Participant
		if err := rows.Scan(&p.ID, &p.AppointmentID, &p.ActorType, &p.ActorID, &p.Status); err != nil {
			return nil, err
		}
		items = append(items, &p)
	}
	return items, rows.Err()
}
