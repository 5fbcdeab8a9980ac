package encounter

import (
	"time"

	"github.com/google/uuid"

	"github.com/schedcore/schedcore/internal/platform/fhir"
)

// Status is the FHIR Encounter status code. StatusNone is the synthetic
// pre-creation state: it never persists, it only drives action resolution
// before an encounter row exists.
type Status string

const (
	StatusNone       Status = "none"
	StatusPlanned    Status = "planned"
	StatusInProgress Status = "in-progress"
	StatusOnHold     Status = "on-hold"
	StatusFinished   Status = "finished"
	StatusCancelled  Status = "cancelled"
)

// Encounter maps to the encounter table (FHIR Encounter resource). Every
// encounter here is born from an appointment; walk-in encounters are out of
// scope for this service.
type Encounter struct {
	ID            uuid.UUID  `db:"id" json:"id"`
	FHIRID        string     `db:"fhir_id" json:"fhir_id"`
	AppointmentID uuid.UUID  `db:"appointment_id" json:"appointment_id"`
	PatientID     uuid.UUID  `db:"patient_id" json:"patient_id"`
	Status        Status     `db:"status" json:"status"`
	ClassCode     string     `db:"class_code" json:"class_code"`
	PeriodStart   *time.Time `db:"period_start" json:"period_start,omitempty"`
	PeriodEnd     *time.Time `db:"period_end" json:"period_end,omitempty"`
	CreatedAt     time.Time  `db:"created_at" json:"created_at"`
	UpdatedAt     time.Time  `db:"updated_at" json:"updated_at"`
}

func (e *Encounter) ToFHIR() map[string]interface{} {
	result := map[string]interface{}{
		"resourceType": "Encounter",
		"id":           e.FHIRID,
		"status":       string(e.Status),
		"meta":         fhir.Meta{LastUpdated: e.UpdatedAt},
		"class": fhir.Coding{
			System: "http://terminology.hl7.org/CodeSystem/v3-ActCode",
			Code:   e.ClassCode,
		},
		"subject": fhir.Reference{Reference: fhir.FormatReference("Patient", e.PatientID.String())},
		"appointment": []fhir.Reference{
			{Reference: fhir.FormatReference("Appointment", e.AppointmentID.String())},
		},
	}
	if e.PeriodStart != nil || e.PeriodEnd != nil {
		period := map[string]interface{}{}
		if e.PeriodStart != nil {
			period["start"] = e.PeriodStart.Format(time.RFC3339)
		}
		if e.PeriodEnd != nil {
			period["end"] = e.PeriodEnd.Format(time.RFC3339)
		}
		result["period"] = period
	}
	return result
}

// StatusHistoryEntry maps to the encounter_status_history table. One row per
// status the encounter has passed through, FHIR statusHistory style.
type StatusHistoryEntry struct {
	ID          uuid.UUID  `db:"id" json:"id"`
	EncounterID uuid.UUID  `db:"encounter_id" json:"encounter_id"`
	Status      Status     `db:"status" json:"status"`
	PeriodStart time.Time  `db:"period_start" json:"period_start"`
	PeriodEnd   *time.Time `db:"period_end" json:"period_end,omitempty"`
}
