package encounter

import "fmt"

// StateError reports an encounter transition attempted outside its guard.
type StateError struct {
	Current Status
	Action  string
}

func (e *StateError) Error() string {
	return fmt.Sprintf("action %q is not permitted while encounter is %q", e.Action, e.Current)
}

// Actions the encounter state machine understands. ActionFinish is internal:
// it is only reachable through the completion coordinator.
const (
	ActionPlan   = "plan"
	ActionBegin  = "begin"
	ActionHold   = "hold"
	ActionFinish = "finish"
)

// transitions is the guard table: action -> permitted source statuses and
// the resulting status. Plan is special-cased by the service (it creates the
// row) but kept in the table so Next covers the whole machine.
var transitions = map[string]struct {
	from map[Status]bool
	to   Status
}{
	ActionPlan:  {from: map[Status]bool{StatusNone: true}, to: StatusPlanned},
	ActionBegin: {from: map[Status]bool{StatusPlanned: true}, to: StatusInProgress},
	ActionHold:  {from: map[Status]bool{StatusInProgress: true}, to: StatusOnHold},
	// on-hold is informational, it never blocks completion.
	ActionFinish: {from: map[Status]bool{StatusInProgress: true, StatusOnHold: true}, to: StatusFinished},
}

// Next validates the transition and returns the target status, or a
// StateError naming the current status and the attempted action.
func Next(current Status, action string) (Status, error) {
	t, ok := transitions[action]
	if !ok {
		return "", &StateError{Current: current, Action: action}
	}
	if !t.from[current] {
		return "", &StateError{Current: current, Action: action}
	}
	return t.to, nil
}

// IsTerminal reports whether the status permits no further transition.
func IsTerminal(s Status) bool { return s == StatusFinished || s == StatusCancelled }
