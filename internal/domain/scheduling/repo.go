package scheduling

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
)

var (
	ErrScheduleNotFound = errors.New("schedule not found")
	ErrSlotNotFound     = errors.New("slot not found")
	ErrSlotNotInStatus  = errors.New("slot is not in the expected status")
)

type ScheduleRepository interface {
	Create(ctx context.Context, s *Schedule) error
	GetByID(ctx context.Context, id uuid.UUID) (*Schedule, error)
	GetByFHIRID(ctx context.Context, fhirID string) (*Schedule, error)
	// Update rewrites the recurrence fields. The service gates this on
	// HasSlots; the store applies whatever it is handed.
	Update(ctx context.Context, s *Schedule) error
	// ExtendHorizon moves planning_horizon_end forward. Schedules are
	// otherwise immutable once slots exist against them.
	ExtendHorizon(ctx context.Context, id uuid.UUID, newEnd time.Time) error
	ListByPractitioner(ctx context.Context, practitionerID uuid.UUID, limit, offset int) ([]*Schedule, int, error)
	HasSlots(ctx context.Context, id uuid.UUID) (bool, error)
}

// SlotCreateResult is the store's per-item verdict for one batch candidate.
type SlotCreateResult struct {
	Slot    *Slot
	Created bool
	Reason  string
}

type SlotRepository interface {
	Create(ctx context.Context, sl *Slot) error
	// CreateBatch validates every candidate against already committed slots
	// of the same schedule, including ones created by earlier chunks of the
	// same run, and returns a per-item verdict. A non-nil error means the
	// chunk as a whole did not reach the store.
	CreateBatch(ctx context.Context, slots []*Slot) ([]SlotCreateResult, error)
	GetByID(ctx context.Context, id uuid.UUID) (*Slot, error)
	GetByFHIRID(ctx context.Context, fhirID string) (*Slot, error)
	// UpdateStatus is a compare-and-set: it fails with ErrSlotNotInStatus
	// when the slot is no longer in the expected status.
	UpdateStatus(ctx context.Context, id uuid.UUID, from, to string) (*Slot, error)
	ListBySchedule(ctx context.Context, scheduleID uuid.UUID, limit, offset int) ([]*Slot, int, error)
}
