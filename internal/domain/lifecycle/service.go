package lifecycle

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"github.com/schedcore/schedcore/internal/domain/appointment"
	"github.com/schedcore/schedcore/internal/domain/encounter"
)

// ActionError reports an action that the resolver does not permit for the
// current pair of statuses.
type ActionError struct {
	Appointment appointment.Status
	Encounter   encounter.Status
	Action      Action
}

func (e *ActionError) Error() string {
	return fmt.Sprintf("action %q is not permitted while appointment is %q and encounter is %q",
		e.Action, e.Appointment, e.Encounter)
}

type Service struct {
	appts       *appointment.Service
	encs        *encounter.Service
	coordinator *CompletionCoordinator
}

func NewService(appts *appointment.Service, encs *encounter.Service) *Service {
	return &Service{
		appts:       appts,
		encs:        encs,
		coordinator: NewCompletionCoordinator(encs, appts),
	}
}

// snapshot loads the appointment and its live encounter (if any).
func (s *Service) snapshot(ctx context.Context, appointmentID uuid.UUID) (*appointment.Appointment, *encounter.Encounter, error) {
	appt, err := s.appts.Get(ctx, appointmentID)
	if err != nil {
		return nil, nil, err
	}
	enc, err := s.encs.GetLiveByAppointment(ctx, appointmentID)
	if err != nil {
		if errors.Is(err, encounter.ErrNotFound) {
			return appt, nil, nil
		}
		return nil, nil, err
	}
	return appt, enc, nil
}

// AvailableActions resolves the permitted actions for an appointment.
func (s *Service) AvailableActions(ctx context.Context, appointmentID uuid.UUID) ([]Action, error) {
	appt, enc, err := s.snapshot(ctx, appointmentID)
	if err != nil {
		return nil, err
	}
	encStatus := encounter.StatusNone
	if enc != nil {
		encStatus = enc.Status
	}
	return Resolve(appt.Status, encStatus), nil
}

// ActionResult carries whichever resources the action touched.
type ActionResult struct {
	Appointment *appointment.Appointment `json:"appointment,omitempty"`
	Encounter   *encounter.Encounter     `json:"encounter,omitempty"`
	Actions     []Action                 `json:"actions"`
}

// ActionParams carries optional per-action inputs.
type ActionParams struct {
	CancellationReason string
	EncounterClass     string
}

// ExecuteAction re-resolves the permitted actions from fresh state, rejects
// anything outside that set, then dispatches. The per-domain state machines
// re-validate again at compare-and-set time, so a racing caller still loses
// cleanly.
func (s *Service) ExecuteAction(ctx context.Context, appointmentID uuid.UUID, action Action, params ActionParams) (*ActionResult, error) {
	appt, enc, err := s.snapshot(ctx, appointmentID)
	if err != nil {
		return nil, err
	}
	encStatus := encounter.StatusNone
	if enc != nil {
		encStatus = enc.Status
	}

	if !actionAllowed(Resolve(appt.Status, encStatus), action) {
		return nil, &ActionError{Appointment: appt.Status, Encounter: encStatus, Action: action}
	}

	result := &ActionResult{Appointment: appt, Encounter: enc}
	switch action {
	case ActionConfirm:
		result.Appointment, err = s.appts.Confirm(ctx, appointmentID)
	case ActionCancel:
		result.Appointment, err = s.appts.Cancel(ctx, appointmentID, params.CancellationReason)
	case ActionMarkArrived:
		result.Appointment, err = s.appts.MarkArrived(ctx, appointmentID)
	case ActionStartEncounter:
		if enc == nil {
			result.Encounter, err = s.encs.Plan(ctx, appointmentID, params.EncounterClass)
		} else {
			result.Encounter, err = s.encs.Begin(ctx, enc.ID)
		}
	case ActionSignalNearCompletion:
		result.Encounter, err = s.encs.Hold(ctx, enc.ID)
	case ActionCompleteEncounter:
		var completion *CompletionResult
		completion, err = s.coordinator.Complete(ctx, enc.ID, appointmentID)
		if completion != nil {
			if completion.Encounter != nil {
				result.Encounter = completion.Encounter
			}
			if completion.Appointment != nil {
				result.Appointment = completion.Appointment
			}
		}
	default:
		return nil, &ActionError{Appointment: appt.Status, Encounter: encStatus, Action: action}
	}
	if err != nil {
		// Partial completion still moved state; return it alongside.
		var partial *PartialCompletionError
		if errors.As(err, &partial) {
			return result, err
		}
		return nil, err
	}

	finalEnc := encounter.StatusNone
	if result.Encounter != nil {
		finalEnc = result.Encounter.Status
	}
	result.Actions = Resolve(result.Appointment.Status, finalEnc)
	return result, nil
}

func actionAllowed(allowed []Action, action Action) bool {
	for _, a := range allowed {
		if a == action {
			return true
		}
	}
	return false
}
