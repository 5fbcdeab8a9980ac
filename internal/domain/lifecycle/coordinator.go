package lifecycle

import (
	"context"
	"fmt"
	"sync"

	"github.com/google/uuid"

	"github.com/schedcore/schedcore/internal/domain/appointment"
	"github.com/schedcore/schedcore/internal/domain/encounter"
)

// PartialCompletionError reports a completion run where exactly one of the
// two updates landed. The store is inconsistent and the caller must
// reconcile; the coordinator never retries on its own because a retry risks
// double-writing clinical records.
type PartialCompletionError struct {
	EncounterFinished    bool
	AppointmentFulfilled bool
	Err                  error
}

func (e *PartialCompletionError) Error() string {
	if e.EncounterFinished {
		return fmt.Sprintf("encounter finished but appointment was not fulfilled: %v", e.Err)
	}
	return fmt.Sprintf("appointment fulfilled but encounter was not finished: %v", e.Err)
}

func (e *PartialCompletionError) Unwrap() error { return e.Err }

// EncounterFinisher is the slice of the encounter service the coordinator
// uses.
type EncounterFinisher interface {
	Finish(ctx context.Context, id uuid.UUID) (*encounter.Encounter, error)
}

// AppointmentFulfiller is the slice of the appointment service the
// coordinator uses.
type AppointmentFulfiller interface {
	Fulfill(ctx context.Context, id uuid.UUID) (*appointment.Appointment, error)
}

// CompletionCoordinator closes out a visit: encounter to finished and
// appointment to fulfilled. The two updates touch independent rows, so they
// run concurrently.
type CompletionCoordinator struct {
	encounters   EncounterFinisher
	appointments AppointmentFulfiller
}

func NewCompletionCoordinator(encounters EncounterFinisher, appointments AppointmentFulfiller) *CompletionCoordinator {
	return &CompletionCoordinator{encounters: encounters, appointments: appointments}
}

// CompletionResult carries whatever the run produced, even on partial
// failure.
type CompletionResult struct {
	Encounter   *encounter.Encounter     `json:"encounter,omitempty"`
	Appointment *appointment.Appointment `json:"appointment,omitempty"`
}

// Complete runs both updates and requires both to succeed. Exactly one
// success yields a PartialCompletionError naming which half landed; both
// failing is an ordinary error since no inconsistency was introduced.
func (c *CompletionCoordinator) Complete(ctx context.Context, encounterID, appointmentID uuid.UUID) (*CompletionResult, error) {
	var (
		wg      sync.WaitGroup
		enc     *encounter.Encounter
		appt    *appointment.Appointment
		encErr  error
		apptErr error
	)

	wg.Add(2)
	go func() {
		defer wg.Done()
		enc, encErr = c.encounters.Finish(ctx, encounterID)
	}()
	go func() {
		defer wg.Done()
		appt, apptErr = c.appointments.Fulfill(ctx, appointmentID)
	}()
	wg.Wait()

	result := &CompletionResult{Encounter: enc, Appointment: appt}
	switch {
	case encErr == nil && apptErr == nil:
		return result, nil
	case encErr != nil && apptErr != nil:
		return result, fmt.Errorf("completion failed: finish encounter: %v; fulfill appointment: %v", encErr, apptErr)
	case encErr != nil:
		return result, &PartialCompletionError{AppointmentFulfilled: true, Err: encErr}
	default:
		return result, &PartialCompletionError{EncounterFinished: true, Err: apptErr}
	}
}
