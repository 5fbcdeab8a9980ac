package appointment

import "fmt"

// StateError reports an action attempted outside its guard. It is never
// swallowed: callers surface it so a stale UI learns the real status.
type StateError struct {
	Current Status
	Action  string
}

func (e *StateError) Error() string {
	return fmt.Sprintf("action %q is not permitted while appointment is %q", e.Action, e.Current)
}

// Actions the appointment state machine understands. Fulfill is internal:
// it is only reachable through the completion coordinator.
const (
	ActionConfirm     = "confirm"
	ActionCancel      = "cancel"
	ActionMarkArrived = "mark-arrived"
	ActionFulfill     = "fulfill"
)

// transitions is the guard table: action -> permitted source statuses and
// the resulting status.
var transitions = map[string]struct {
	from map[Status]bool
	to   Status
}{
	ActionConfirm:     {from: map[Status]bool{StatusPending: true}, to: StatusBooked},
	ActionCancel:      {from: map[Status]bool{StatusPending: true, StatusBooked: true}, to: StatusCancelled},
	ActionMarkArrived: {from: map[Status]bool{StatusBooked: true}, to: StatusArrived},
	ActionFulfill:     {from: map[Status]bool{StatusArrived: true}, to: StatusFulfilled},
}

// terminal statuses permit no further transition.
var terminal = map[Status]bool{
	StatusFulfilled:      true,
	StatusCancelled:      true,
	StatusNoShow:         true,
	StatusEnteredInError: true,
}

// Next validates the transition and returns the target status, or a
// StateError naming the current status and the attempted action.
func Next(current Status, action string) (Status, error) {
	t, ok := transitions[action]
	if !ok {
		return "", &StateError{Current: current, Action: action}
	}
	if terminal[current] || !t.from[current] {
		return "", &StateError{Current: current, Action: action}
	}
	return t.to, nil
}

// IsTerminal reports whether the status permits no further transition.
func IsTerminal(s Status) bool { return terminal[s] }
