package domain

import "fmt"

type AppointmentStatus string

const (
	StatusConfirmed         AppointmentStatus = "confirmed"
	StatusCompleted         AppointmentStatus = "completed"
	StatusCancelledByClient AppointmentStatus = "cancelled_by_client"
	StatusCancelledByMaster AppointmentStatus = "cancelled_by_master"
	StatusNoShow            AppointmentStatus = "no_show"
	StatusRescheduled       AppointmentStatus = "rescheduled"
)

var transitions = map[AppointmentStatus][]AppointmentStatus{
	StatusConfirmed: {
		StatusCompleted,
		StatusCancelledByClient,
		StatusCancelledByMaster,
		StatusNoShow,
		StatusRescheduled,
	},
	StatusRescheduled: {StatusConfirmed},
}

func (s AppointmentStatus) Valid() bool {
	switch s {
	case StatusConfirmed, StatusCompleted, StatusCancelledByClient, StatusCancelledByMaster, StatusNoShow, StatusRescheduled:
		return true
	}
	return false
}

// Terminal statuses accept no further transitions.
func (s AppointmentStatus) Terminal() bool {
	return s.Valid() && len(transitions[s]) == 0
}

// Occupying statuses count against the no-overlap invariant.
func (s AppointmentStatus) Occupying() bool {
	return s == StatusConfirmed
}

func CanTransition(from, to AppointmentStatus) bool {
	for _, next := range transitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

type TransitionError struct {
	From AppointmentStatus
	To   AppointmentStatus
}

func (e *TransitionError) Error() string {
	return fmt.Sprintf("appointment is %s and cannot move to %s", e.From, e.To)
}
