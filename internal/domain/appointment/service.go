package appointment

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"github.com/schedcore/schedcore/internal/domain/scheduling"
	"github.com/schedcore/schedcore/internal/platform/redislock"
)

var (
	ErrSlotNotFree     = errors.New("slot is not free")
	ErrSlotBeingBooked = errors.New("slot is currently being booked, please retry")
)

type Service struct {
	repo   Repository
	slots  scheduling.SlotRepository
	locker redislock.Locker
}

func NewService(repo Repository, slots scheduling.SlotRepository, locker redislock.Locker) *Service {
	if locker == nil {
		locker = redislock.NoopLocker{}
	}
	return &Service{repo: repo, slots: slots, locker: locker}
}

// Create books a pending appointment against a free slot. The per-slot lock
// keeps two concurrent requests from both passing the free-slot check; the
// slot flips to busy in the same critical section.
func (s *Service) Create(ctx context.Context, a *Appointment) (*Appointment, error) {
	if a.PatientID == uuid.Nil {
		return nil, fmt.Errorf("patient_id is required")
	}
	if a.SlotID == nil {
		return nil, fmt.Errorf("slot_id is required")
	}
	a.Status = StatusPending

	slotID := *a.SlotID
	err := s.locker.WithSlotLock(ctx, slotID, func(lockCtx context.Context) error {
		slot, err := s.slots.GetByID(lockCtx, slotID)
		if err != nil {
			return err
		}
		if slot.Status != scheduling.SlotFree {
			return ErrSlotNotFree
		}
		// Re-check inside the critical section: a live appointment may
		// already hold the slot even if its status flip has not landed.
		if _, err := s.repo.GetBySlot(lockCtx, slotID); err == nil {
			return ErrSlotNotFree
		} else if !errors.Is(err, ErrNotFound) {
			return fmt.Errorf("check slot reservation: %w", err)
		}

		if _, err := s.slots.UpdateStatus(lockCtx, slotID, scheduling.SlotFree, scheduling.SlotBusy); err != nil {
			if errors.Is(err, scheduling.ErrSlotNotInStatus) {
				return ErrSlotNotFree
			}
			return fmt.Errorf("reserve slot: %w", err)
		}

		a.StartTime = &slot.StartTime
		a.EndTime = &slot.EndTime
		if err := s.repo.Create(lockCtx, a); err != nil {
			// Give the slot back; the appointment row never landed.
			_, _ = s.slots.UpdateStatus(lockCtx, slotID, scheduling.SlotBusy, scheduling.SlotFree)
			return fmt.Errorf("create appointment: %w", err)
		}
		return nil
	})
	if err != nil {
		if errors.Is(err, redislock.ErrLockNotAcquired) {
			return nil, ErrSlotBeingBooked
		}
		return nil, err
	}

	return a, nil
}

// Confirm moves a pending appointment to booked.
func (s *Service) Confirm(ctx context.Context, id uuid.UUID) (*Appointment, error) {
	return s.transition(ctx, id, ActionConfirm)
}

// Cancel terminates a pending or booked appointment and returns its slot to
// the free pool.
func (s *Service) Cancel(ctx context.Context, id uuid.UUID, reason string) (*Appointment, error) {
	a, err := s.transition(ctx, id, ActionCancel)
	if err != nil {
		return nil, err
	}
	if reason != "" {
		if err := s.repo.SetCancellationReason(ctx, a.ID, reason); err != nil {
			return nil, fmt.Errorf("record cancellation reason: %w", err)
		}
		a.CancellationReason = &reason
	}
	if a.SlotID != nil {
		if _, err := s.slots.UpdateStatus(ctx, *a.SlotID, scheduling.SlotBusy, scheduling.SlotFree); err != nil &&
			!errors.Is(err, scheduling.ErrSlotNotInStatus) {
			return nil, fmt.Errorf("release slot: %w", err)
		}
	}
	return a, nil
}

// MarkArrived moves a booked appointment to arrived, making encounter
// creation possible.
func (s *Service) MarkArrived(ctx context.Context, id uuid.UUID) (*Appointment, error) {
	return s.transition(ctx, id, ActionMarkArrived)
}

// Fulfill moves an arrived appointment to fulfilled. Only the completion
// coordinator calls this; it is not routed as a standalone action.
func (s *Service) Fulfill(ctx context.Context, id uuid.UUID) (*Appointment, error) {
	return s.transition(ctx, id, ActionFulfill)
}

// transition re-validates the guard against the freshly loaded status before
// issuing the compare-and-set. A caller acting on a stale snapshot gets a
// StateError, not a silent no-op.
func (s *Service) transition(ctx context.Context, id uuid.UUID, action string) (*Appointment, error) {
	a, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}

	to, err := Next(a.Status, action)
	if err != nil {
		return nil, err
	}

	updated, err := s.repo.UpdateStatus(ctx, a.ID, a.Status, to)
	if err != nil {
		if errors.Is(err, ErrStatusMoved) {
			// Lost a race; report the guard against whatever won.
			current, getErr := s.repo.GetByID(ctx, id)
			if getErr != nil {
				return nil, getErr
			}
			return nil, &StateError{Current: current.Status, Action: action}
		}
		return nil, fmt.Errorf("%s appointment: %w", action, err)
	}
	return updated, nil
}

func (s *Service) Get(ctx context.Context, id uuid.UUID) (*Appointment, error) {
	return s.repo.GetByID(ctx, id)
}

func (s *Service) GetByFHIRID(ctx context.Context, fhirID string) (*Appointment, error) {
	return s.repo.GetByFHIRID(ctx, fhirID)
}

func (s *Service) ListByPatient(ctx context.Context, patientID uuid.UUID, limit, offset int) ([]*Appointment, int, error) {
	return s.repo.ListByPatient(ctx, patientID, limit, offset)
}

func (s *Service) AddParticipant(ctx context.Context, p *Participant) error {
	if p.AppointmentID == uuid.Nil {
		return fmt.Errorf("appointment_id is required")
	}
	if p.ActorType == "" {
		return fmt.Errorf("actor_type is required")
	}
	if p.ActorID == uuid.Nil {
		return fmt.Errorf("actor_id is required")
	}
	if p.Status == "" {
		p.Status = "needs-action"
	}
	return s.repo.AddParticipant(ctx, p)
}

func (s *Service) GetParticipants(ctx context.Context, appointmentID uuid.UUID) ([]*Participant, error) {
	return s.repo.GetParticipants(ctx, appointmentID)
}
