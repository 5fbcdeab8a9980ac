package encounter

import (
	"context"
	"errors"

	"github.com/google/uuid"
)

var (
	ErrNotFound    = errors.New("encounter not found")
	ErrStatusMoved = errors.New("encounter status changed concurrently")
)

type Repository interface {
	Create(ctx context.Context, e *Encounter) error
	GetByID(ctx context.Context, id uuid.UUID) (*Encounter, error)
	GetByFHIRID(ctx context.Context, fhirID string) (*Encounter, error)
	// GetLiveByAppointment returns the unfinished encounter for the
	// appointment, or ErrNotFound. At most one exists at a time.
	GetLiveByAppointment(ctx context.Context, appointmentID uuid.UUID) (*Encounter, error)
	// UpdateStatus is a compare-and-set; a concurrent transition loses with
	// ErrStatusMoved.
	UpdateStatus(ctx context.Context, id uuid.UUID, from, to Status) (*Encounter, error)
	SetPeriodStart(ctx context.Context, id uuid.UUID) error
	SetPeriodEnd(ctx context.Context, id uuid.UUID) error

	AddStatusHistory(ctx context.Context, entry *StatusHistoryEntry) error
	// GetStatusHistory returns history rows oldest first.
	GetStatusHistory(ctx context.Context, encounterID uuid.UUID) ([]*StatusHistoryEntry, error)
	// CloseStatusHistory stamps period_end on the open history row.
	CloseStatusHistory(ctx context.Context, encounterID uuid.UUID) error
}
