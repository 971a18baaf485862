package domain

import (
	"errors"
	"testing"
	"time"
)

func TestCanTransition(t *testing.T) {
	tests := []struct {
		from, to AppointmentStatus
		want     bool
	}{
		{StatusConfirmed, StatusCompleted, true},
		{StatusConfirmed, StatusCancelledByClient, true},
		{StatusConfirmed, StatusCancelledByMaster, true},
		{StatusConfirmed, StatusNoShow, true},
		{StatusConfirmed, StatusRescheduled, true},
		{StatusRescheduled, StatusConfirmed, true},
		{StatusRescheduled, StatusCompleted, false},
		{StatusCompleted, StatusConfirmed, false},
		{StatusCancelledByClient, StatusConfirmed, false},
		{StatusCancelledByMaster, StatusCompleted, false},
		{StatusNoShow, StatusCompleted, false},
		{StatusConfirmed, StatusConfirmed, false},
	}

	for _, tt := range tests {
		if got := CanTransition(tt.from, tt.to); got != tt.want {
			t.Fatalf("CanTransition(%s, %s) = %v, want %v", tt.from, tt.to, got, tt.want)
		}
	}
}

func TestTerminalStatuses(t *testing.T) {
	for _, s := range []AppointmentStatus{StatusCompleted, StatusCancelledByClient, StatusCancelledByMaster, StatusNoShow} {
		if !s.Terminal() {
			t.Fatalf("%s.Terminal() = false, want true", s)
		}
	}
	for _, s := range []AppointmentStatus{StatusConfirmed, StatusRescheduled, "bogus"} {
		if s.Terminal() {
			t.Fatalf("%s.Terminal() = true, want false", s)
		}
	}
}

func TestAppointmentTransition_RejectsFromTerminal(t *testing.T) {
	a := Appointment{Status: StatusCompleted}
	err := a.Transition(StatusCancelledByClient)

	var tErr *TransitionError
	if !errors.As(err, &tErr) {
		t.Fatalf("err = %v, want *TransitionError", err)
	}
	if tErr.From != StatusCompleted {
		t.Fatalf("From = %s, want %s", tErr.From, StatusCompleted)
	}
	if a.Status != StatusCompleted {
		t.Fatalf("Status = %s, want unchanged", a.Status)
	}
}

func TestAppointmentMoveTo(t *testing.T) {
	start := time.Date(2026, 1, 5, 10, 0, 0, 0, time.UTC)
	a := Appointment{Status: StatusConfirmed, StartAt: start, EndAt: start.Add(time.Hour), DurationMinutes: 60}

	next := start.Add(3 * time.Hour)
	if err := a.MoveTo(next); err != nil {
		t.Fatalf("MoveTo error: %v", err)
	}
	if a.Status != StatusConfirmed {
		t.Fatalf("Status = %s, want %s", a.Status, StatusConfirmed)
	}
	if !a.StartAt.Equal(next) || !a.EndAt.Equal(next.Add(time.Hour)) {
		t.Fatalf("interval = [%v, %v), want [%v, %v)", a.StartAt, a.EndAt, next, next.Add(time.Hour))
	}

	cancelled := Appointment{Status: StatusCancelledByClient, StartAt: start, DurationMinutes: 60}
	if err := cancelled.MoveTo(next); err == nil {
		t.Fatalf("expected error moving cancelled appointment")
	}
	if !cancelled.StartAt.Equal(start) {
		t.Fatalf("StartAt changed on failed move")
	}
}

func TestAppointmentOverlapsRange(t *testing.T) {
	start := time.Date(2026, 1, 5, 10, 0, 0, 0, time.UTC)
	a := Appointment{Status: StatusConfirmed, StartAt: start, EndAt: start.Add(time.Hour)}

	if a.OverlapsRange(start.Add(time.Hour), start.Add(2*time.Hour)) {
		t.Fatalf("back-to-back range must not overlap")
	}
	if !a.OverlapsRange(start.Add(30*time.Minute), start.Add(90*time.Minute)) {
		t.Fatalf("intersecting range must overlap")
	}

	a.Status = StatusCancelledByMaster
	if a.OverlapsRange(start, start.Add(time.Hour)) {
		t.Fatalf("cancelled appointment must not occupy time")
	}
}
