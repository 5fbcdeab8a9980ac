// Package lifecycle couples the appointment and encounter state machines:
// it resolves which actions a caller may take given both statuses, dispatches
// those actions, and coordinates the dual update that closes out a visit.
package lifecycle

import (
	"github.com/schedcore/schedcore/internal/domain/appointment"
	"github.com/schedcore/schedcore/internal/domain/encounter"
)

// Action is an externally visible lifecycle action.
type Action string

const (
	ActionConfirm              Action = "confirm"
	ActionCancel               Action = "cancel"
	ActionMarkArrived          Action = "mark-arrived"
	ActionStartEncounter       Action = "start-encounter"
	ActionSignalNearCompletion Action = "signal-near-completion"
	ActionCompleteEncounter    Action = "complete-encounter"
)

// Resolve returns the set of actions permitted for the given appointment and
// encounter statuses. Pure: it drives UI gating and is re-checked inside
// each mutation because the caller's snapshot may be stale.
//
// encounter.StatusNone means no encounter exists yet for the appointment.
func Resolve(apptStatus appointment.Status, encStatus encounter.Status) []Action {
	if appointment.IsTerminal(apptStatus) {
		return []Action{}
	}

	switch apptStatus {
	case appointment.StatusPending:
		return []Action{ActionConfirm, ActionCancel}
	case appointment.StatusBooked:
		return []Action{ActionCancel, ActionMarkArrived}
	case appointment.StatusArrived:
		switch encStatus {
		case encounter.StatusNone, encounter.StatusPlanned:
			// start-encounter both creates the encounter and, once it is
			// planned, moves it to in-progress.
			return []Action{ActionStartEncounter}
		case encounter.StatusInProgress:
			return []Action{ActionSignalNearCompletion, ActionCompleteEncounter}
		case encounter.StatusOnHold:
			return []Action{ActionCompleteEncounter}
		}
	}
	return []Action{}
}
