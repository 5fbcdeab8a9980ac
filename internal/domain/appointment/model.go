package appointment

import (
	"time"

	"github.com/google/uuid"

	"github.com/schedcore/schedcore/internal/platform/fhir"
)

// Status is the FHIR Appointment status code.
type Status string

const (
	StatusProposed       Status = "proposed"
	StatusPending        Status = "pending"
	StatusWaitlist       Status = "waitlist"
	StatusBooked         Status = "booked"
	StatusArrived        Status = "arrived"
	StatusFulfilled      Status = "fulfilled"
	StatusCancelled      Status = "cancelled"
	StatusNoShow         Status = "noshow"
	StatusEnteredInError Status = "entered-in-error"
)

// Appointment maps to the appointment table (FHIR Appointment resource).
// The slot reference is a weak back-reference: slot lifecycle stays with the
// scheduling domain.
type Appointment struct {
	ID                 uuid.UUID  `db:"id" json:"id"`
	FHIRID             string     `db:"fhir_id" json:"fhir_id"`
	Status             Status     `db:"status" json:"status"`
	CancellationReason *string    `db:"cancellation_reason" json:"cancellation_reason,omitempty"`
	Description        *string    `db:"description" json:"description,omitempty"`
	StartTime          *time.Time `db:"start_time" json:"start_time,omitempty"`
	EndTime            *time.Time `db:"end_time" json:"end_time,omitempty"`
	SlotID             *uuid.UUID `db:"slot_id" json:"slot_id,omitempty"`
	PatientID          uuid.UUID  `db:"patient_id" json:"patient_id"`
	PractitionerID     *uuid.UUID `db:"practitioner_id" json:"practitioner_id,omitempty"`
	CreatedAt          time.Time  `db:"created_at" json:"created_at"`
	UpdatedAt          time.Time  `db:"updated_at" json:"updated_at"`
}

func (a *Appointment) ToFHIR() map[string]interface{} {
	result := map[string]interface{}{
		"resourceType": "Appointment",
		"id":           a.FHIRID,
		"status":       string(a.Status),
		"meta":         fhir.Meta{LastUpdated: a.UpdatedAt},
	}
	if a.Description != nil {
		result["description"] = *a.Description
	}
	if a.StartTime != nil {
		result["start"] = a.StartTime.Format(time.RFC3339)
	}
	if a.EndTime != nil {
		result["end"] = a.EndTime.Format(time.RFC3339)
	}
	if a.SlotID != nil {
		result["slot"] = []fhir.Reference{{Reference: fhir.FormatReference("Slot", a.SlotID.String())}}
	}
	if a.CancellationReason != nil {
		result["cancelationReason"] = fhir.CodeableConcept{Text: *a.CancellationReason}
	}

	participants := []map[string]interface{}{{
		"actor":  fhir.Reference{Reference: fhir.FormatReference("Patient", a.PatientID.String())},
		"status": "accepted",
	}}
	if a.PractitionerID != nil {
		participants = append(participants, map[string]interface{}{
			"actor":  fhir.Reference{Reference: fhir.FormatReference("Practitioner", a.PractitionerID.String())},
			"status": "accepted",
		})
	}
	result["participant"] = participants

	return result
}

// Participant maps to the appointment_participant table.
type Participant struct {
	ID            uuid.UUID `db:"id" json:"id"`
	AppointmentID uuid.UUID `db:"appointment_id" json:"appointment_id"`
	ActorType     string    `db:"actor_type" json:"actor_type"`
	ActorID       uuid.UUID `db:"actor_id" json:"actor_id"`
	Status        string    `db:"status" json:"status"`
}
