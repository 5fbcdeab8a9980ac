package encounter

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"github.com/schedcore/schedcore/internal/domain/appointment"
)

var (
	ErrAppointmentNotArrived = errors.New("appointment has not arrived")
	ErrEncounterExists       = errors.New("a live encounter already exists for this appointment")
)

// AppointmentSource is the slice of the appointment repository the encounter
// service needs for its creation guard.
type AppointmentSource interface {
	GetByID(ctx context.Context, id uuid.UUID) (*appointment.Appointment, error)
}

type Service struct {
	repo  Repository
	appts AppointmentSource
}

func NewService(repo Repository, appts AppointmentSource) *Service {
	return &Service{repo: repo, appts: appts}
}

// Plan creates the encounter in planned status. Guard: the owning
// appointment must be arrived and must not already have a live encounter.
func (s *Service) Plan(ctx context.Context, appointmentID uuid.UUID, classCode string) (*Encounter, error) {
	appt, err := s.appts.GetByID(ctx, appointmentID)
	if err != nil {
		return nil, err
	}
	if appt.Status != appointment.StatusArrived {
		return nil, fmt.Errorf("%w: status is %q", ErrAppointmentNotArrived, appt.Status)
	}
	if _, err := s.repo.GetLiveByAppointment(ctx, appointmentID); err == nil {
		return nil, ErrEncounterExists
	} else if !errors.Is(err, ErrNotFound) {
		return nil, fmt.Errorf("check live encounter: %w", err)
	}

	if classCode == "" {
		classCode = "AMB"
	}
	e := &Encounter{
		AppointmentID: appointmentID,
		PatientID:     appt.PatientID,
		Status:        StatusPlanned,
		ClassCode:     classCode,
	}
	if err := s.repo.Create(ctx, e); err != nil {
		return nil, fmt.Errorf("create encounter: %w", err)
	}
	if err := s.repo.AddStatusHistory(ctx, &StatusHistoryEntry{EncounterID: e.ID, Status: StatusPlanned}); err != nil {
		return nil, fmt.Errorf("record status history: %w", err)
	}
	return e, nil
}

// Begin moves a planned encounter to in-progress and stamps the period
// start.
func (s *Service) Begin(ctx context.Context, id uuid.UUID) (*Encounter, error) {
	e, err := s.transition(ctx, id, ActionBegin)
	if err != nil {
		return nil, err
	}
	if err := s.repo.SetPeriodStart(ctx, e.ID); err != nil {
		return nil, fmt.Errorf("set period start: %w", err)
	}
	return s.repo.GetByID(ctx, e.ID)
}

// Hold moves an in-progress encounter to on-hold. The sub-state is
// informational; completion remains reachable from it.
func (s *Service) Hold(ctx context.Context, id uuid.UUID) (*Encounter, error) {
	return s.transition(ctx, id, ActionHold)
}

// Finish moves an in-progress or on-hold encounter to finished and stamps
// the period end. Only the completion coordinator calls this.
func (s *Service) Finish(ctx context.Context, id uuid.UUID) (*Encounter, error) {
	e, err := s.transition(ctx, id, ActionFinish)
	if err != nil {
		return nil, err
	}
	if err := s.repo.SetPeriodEnd(ctx, e.ID); err != nil {
		return nil, fmt.Errorf("set period end: %w", err)
	}
	return s.repo.GetByID(ctx, e.ID)
}

// transition re-validates the guard against the freshly loaded status before
// issuing the compare-and-set.
func (s *Service) transition(ctx context.Context, id uuid.UUID, action string) (*Encounter, error) {
	e, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}

	to, err := Next(e.Status, action)
	if err != nil {
		return nil, err
	}

	updated, err := s.repo.UpdateStatus(ctx, e.ID, e.Status, to)
	if err != nil {
		if errors.Is(err, ErrStatusMoved) {
			current, getErr := s.repo.GetByID(ctx, id)
			if getErr != nil {
				return nil, getErr
			}
			return nil, &StateError{Current: current.Status, Action: action}
		}
		return nil, fmt.Errorf("%s encounter: %w", action, err)
	}

	if err := s.repo.CloseStatusHistory(ctx, updated.ID); err != nil {
		return nil, fmt.Errorf("close status history: %w", err)
	}
	if err := s.repo.AddStatusHistory(ctx, &StatusHistoryEntry{EncounterID: updated.ID, Status: to}); err != nil {
		return nil, fmt.Errorf("record status history: %w", err)
	}
	return updated, nil
}

func (s *Service) Get(ctx context.Context, id uuid.UUID) (*Encounter, error) {
	return s.repo.GetByID(ctx, id)
}

func (s *Service) GetByFHIRID(ctx context.Context, fhirID string) (*Encounter, error) {
	return s.repo.GetByFHIRID(ctx, fhirID)
}

// GetLiveByAppointment returns the unfinished encounter for the appointment,
// or ErrNotFound when none exists.
func (s *Service) GetLiveByAppointment(ctx context.Context, appointmentID uuid.UUID) (*Encounter, error) {
	return s.repo.GetLiveByAppointment(ctx, appointmentID)
}

func (s *Service) GetStatusHistory(ctx context.Context, encounterID uuid.UUID) ([]*StatusHistoryEntry, error) {
	if _, err := s.repo.GetByID(ctx, encounterID); err != nil {
		return nil, err
	}
	return s.repo.GetStatusHistory(ctx, encounterID)
}
