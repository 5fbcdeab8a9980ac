package appointment

import (
	"context"
	"errors"

	"github.com/google/uuid"
)

var (
	ErrNotFound     = errors.New("appointment not found")
	ErrStatusMoved  = errors.New("appointment status changed concurrently")
	ErrSlotReserved = errors.New("slot already referenced by another appointment")
)

type Repository interface {
	Create(ctx context.Context, a *Appointment) error
	GetByID(ctx context.Context, id uuid.UUID) (*Appointment, error)
	GetByFHIRID(ctx context.Context, fhirID string) (*Appointment, error)
	// UpdateStatus is a compare-and-set against the current status so a
	// concurrent transition loses cleanly with ErrStatusMoved.
	UpdateStatus(ctx context.Context, id uuid.UUID, from, to Status) (*Appointment, error)
	// SetCancellationReason records why an appointment was cancelled.
	SetCancellationReason(ctx context.Context, id uuid.UUID, reason string) error
	ListByPatient(ctx context.Context, patientID uuid.UUID, limit, offset int) ([]*Appointment, int, error)
	// GetBySlot returns the live (non-terminal) appointment referencing the
	// slot, or ErrNotFound.
	GetBySlot(ctx context.Context, slotID uuid.UUID) (*Appointment, error)

	AddParticipant(ctx context.Context, p *Participant) error
	GetParticipants(ctx context.Context, appointmentID uuid.UUID) ([]*Participant, error)
}
