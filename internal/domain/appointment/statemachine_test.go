package appointment

import (
	"errors"
	"testing"
)

func TestNext_ValidTransitions(t *testing.T) {
	cases := []struct {
		from   Status
		action string
		to     Status
	}{
		{StatusPending, ActionConfirm, StatusBooked},
		{StatusPending, ActionCancel, StatusCancelled},
		{StatusBooked, ActionCancel, StatusCancelled},
		{StatusBooked, ActionMarkArrived, StatusArrived},
		{StatusArrived, ActionFulfill, StatusFulfilled},
	}
	for _, tc := range cases {
		got, err := Next(tc.from, tc.action)
		if err != nil {
			t.Errorf("%s on %s: unexpected error %v", tc.action, tc.from, err)
			continue
		}
		if got != tc.to {
			t.Errorf("%s on %s: expected %s, got %s", tc.action, tc.from, tc.to, got)
		}
	}
}

func TestNext_GuardViolations(t *testing.T) {
	cases := []struct {
		from   Status
		action string
	}{
		{StatusBooked, ActionConfirm},      // already confirmed
		{StatusPending, ActionMarkArrived}, // must be booked first
		{StatusPending, ActionFulfill},
		{StatusBooked, ActionFulfill}, // fulfil requires arrived
		{StatusArrived, ActionConfirm},
		{StatusArrived, ActionCancel}, // cancel only from pending/booked
	}
	for _, tc := range cases {
		_, err := Next(tc.from, tc.action)
		var stateErr *StateError
		if !errors.As(err, &stateErr) {
			t.Errorf("%s on %s: expected StateError, got %v", tc.action, tc.from, err)
			continue
		}
		if stateErr.Current != tc.from || stateErr.Action != tc.action {
			t.Errorf("StateError does not name the attempt: %+v", stateErr)
		}
	}
}

func TestNext_TerminalStatusesRejectEverything(t *testing.T) {
	terminals := []Status{StatusFulfilled, StatusCancelled, StatusNoShow, StatusEnteredInError}
	actions := []string{ActionConfirm, ActionCancel, ActionMarkArrived, ActionFulfill}
	for _, st := range terminals {
		for _, action := range actions {
			if _, err := Next(st, action); err == nil {
				t.Errorf("expected StateError for %s on terminal %s", action, st)
			}
		}
	}
}

func TestNext_UnknownAction(t *testing.T) {
	_, err := Next(StatusPending, "teleport")
	var stateErr *StateError
	if !errors.As(err, &stateErr) {
		t.Fatalf("expected StateError for unknown action, got %v", err)
	}
}

func TestIsTerminal(t *testing.T) {
	for _, st := range []Status{StatusFulfilled, StatusCancelled, StatusNoShow, StatusEnteredInError} {
		if !IsTerminal(st) {
			t.Errorf("expected %s to be terminal", st)
		}
	}
	for _, st := range []Status{StatusPending, StatusBooked, StatusArrived} {
		if IsTerminal(st) {
			t.Errorf("expected %s to be non-terminal", st)
		}
	}
}
