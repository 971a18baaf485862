package postgres

import (
	"github.com/uptrace/bun"

	"slotline/backend/internal/store"
)

// Store is the Postgres-backed store.Store.
type Store struct {
	*CalendarRepo
	*AppointmentRepo
}

var _ store.Store = (*Store)(nil)

func NewStore(db *bun.DB, opts ...AppointmentOption) *Store {
	return &Store{
		CalendarRepo:    NewCalendarRepo(db),
		AppointmentRepo: NewAppointmentRepo(db, opts...),
	}
}
