package scheduling

import (
	"time"

	"github.com/google/uuid"

	"github.com/schedcore/schedcore/internal/platform/fhir"
)

// Slot statuses used by this engine. The store also accepts busy-unavailable
// and entered-in-error for externally managed slots.
const (
	SlotFree          = "free"
	SlotBusy          = "busy"
	SlotBusyTentative = "busy-tentative"
)

// Schedule maps to the schedule table (FHIR Schedule resource). It is an
// actor's availability envelope: a planning horizon plus an optional
// recurring weekday/time-of-day pattern that slot generation expands.
type Schedule struct {
	ID                   uuid.UUID  `db:"id" json:"id"`
	FHIRID               string     `db:"fhir_id" json:"fhir_id"`
	Active               *bool      `db:"active" json:"active,omitempty"`
	PractitionerID       uuid.UUID  `db:"practitioner_id" json:"practitioner_id"`
	PlanningHorizonStart *time.Time `db:"planning_horizon_start" json:"planning_horizon_start,omitempty"`
	PlanningHorizonEnd   *time.Time `db:"planning_horizon_end" json:"planning_horizon_end,omitempty"`
	DailyStartMin        *int       `db:"daily_start_min" json:"daily_start_min,omitempty"`
	DailyEndMin          *int       `db:"daily_end_min" json:"daily_end_min,omitempty"`
	SlotMinutes          *int       `db:"slot_minutes" json:"slot_minutes,omitempty"`
	Weekdays             []int32    `db:"weekdays" json:"weekdays,omitempty"`
	BreakStartMin        *int       `db:"break_start_min" json:"break_start_min,omitempty"`
	BreakEndMin          *int       `db:"break_end_min" json:"break_end_min,omitempty"`
	Comment              *string    `db:"comment" json:"comment,omitempty"`
	CreatedAt            time.Time  `db:"created_at" json:"created_at"`
	UpdatedAt            time.Time  `db:"updated_at" json:"updated_at"`
}

func (s *Schedule) ToFHIR() map[string]interface{} {
	result := map[string]interface{}{
		"resourceType": "Schedule",
		"id":           s.FHIRID,
		"actor": []fhir.Reference{{
			Reference: fhir.FormatReference("Practitioner", s.PractitionerID.String()),
		}},
		"meta": fhir.Meta{LastUpdated: s.UpdatedAt},
	}
	if s.Active != nil {
		result["active"] = *s.Active
	}
	if s.PlanningHorizonStart != nil || s.PlanningHorizonEnd != nil {
		result["planningHorizon"] = fhir.Period{Start: s.PlanningHorizonStart, End: s.PlanningHorizonEnd}
	}
	if s.Comment != nil {
		result["comment"] = *s.Comment
	}
	return result
}

// Slot maps to the slot table (FHIR Slot resource): one bookable interval
// belonging to a Schedule. The store enforces that no two slots of the same
// schedule overlap.
type Slot struct {
	ID         uuid.UUID `db:"id" json:"id"`
	FHIRID     string    `db:"fhir_id" json:"fhir_id"`
	ScheduleID uuid.UUID `db:"schedule_id" json:"schedule_id"`
	Status     string    `db:"status" json:"status"`
	StartTime  time.Time `db:"start_time" json:"start_time"`
	EndTime    time.Time `db:"end_time" json:"end_time"`
	Comment    *string   `db:"comment" json:"comment,omitempty"`
	CreatedAt  time.Time `db:"created_at" json:"created_at"`
	UpdatedAt  time.Time `db:"updated_at" json:"updated_at"`
}

func (sl *Slot) ToFHIR() map[string]interface{} {
	result := map[string]interface{}{
		"resourceType": "Slot",
		"id":           sl.FHIRID,
		"schedule":     fhir.Reference{Reference: fhir.FormatReference("Schedule", sl.ScheduleID.String())},
		"status":       sl.Status,
		"start":        sl.StartTime.Format(time.RFC3339),
		"end":          sl.EndTime.Format(time.RFC3339),
		"meta":         fhir.Meta{LastUpdated: sl.UpdatedAt},
	}
	if sl.Comment != nil {
		result["comment"] = *sl.Comment
	}
	return result
}
