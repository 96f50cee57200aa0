package booking

import "testing"

func TestCanTransition(t *testing.T) {
	allowed := []struct{ from, to Status }{
		{StatusPending, StatusConfirmed},
		{StatusConfirmed, StatusCheckedIn},
		{StatusCheckedIn, StatusCheckedOut},
		{StatusPending, StatusCancelled},
		{StatusConfirmed, StatusCancelled},
		{StatusCheckedIn, StatusCancelled},
	}
	for _, tc := range allowed {
		if !CanTransition(tc.from, tc.to) {
			t.Errorf("expected %s -> %s to be allowed", tc.from, tc.to)
		}
	}

	denied := []struct{ from, to Status }{
		{StatusPending, StatusCheckedIn},
		{StatusPending, StatusCheckedOut},
		{StatusConfirmed, StatusCheckedOut},
		{StatusCheckedOut, StatusCancelled},
		{StatusCancelled, StatusConfirmed},
		{StatusCancelled, StatusCancelled},
		{StatusCheckedIn, StatusConfirmed},
		{StatusCheckedOut, StatusPending},
	}
	for _, tc := range denied {
		if CanTransition(tc.from, tc.to) {
			t.Errorf("expected %s -> %s to be denied", tc.from, tc.to)
		}
	}
}

func TestValidStatus(t *testing.T) {
	for _, s := range []Status{StatusPending, StatusConfirmed, StatusCheckedIn, StatusCheckedOut, StatusCancelled} {
		if !ValidStatus(s) {
			t.Errorf("expected %s to be valid", s)
		}
	}
	if ValidStatus("archived") {
		t.Error("expected unknown status to be invalid")
	}
}

func TestBookingActive(t *testing.T) {
	b := &Booking{Status: StatusConfirmed}
	if !b.Active() {
		t.Error("confirmed booking should be active")
	}
	b.Status = StatusCancelled
	if b.Active() {
		t.Error("cancelled booking should be inactive")
	}
}
