package domain

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/uptrace/bun"
)

type HistoryAction string

const (
	ActionCreated     HistoryAction = "created"
	ActionRescheduled HistoryAction = "rescheduled"
	ActionCancelled   HistoryAction = "cancelled"
	ActionCompleted   HistoryAction = "completed"
	ActionNoShow      HistoryAction = "no_show"
)

// ChangeHistory is an append-only audit entry for an appointment.
type ChangeHistory struct {
	bun.BaseModel `bun:"table:appointment_history"`

	ID            uuid.UUID          `bun:"id,pk,type:uuid"`
	AppointmentID uuid.UUID          `bun:"appointment_id,notnull,type:uuid"`
	Action        HistoryAction      `bun:"action,notnull"`
	OldStatus     *AppointmentStatus `bun:"old_status"`
	NewStatus     AppointmentStatus  `bun:"new_status,notnull"`
	OldStartAt    *time.Time         `bun:"old_start_at"`
	NewStartAt    *time.Time         `bun:"new_start_at"`
	ChangedBy     *uuid.UUID         `bun:"changed_by,type:uuid"`
	ChangeSource  string             `bun:"change_source,notnull"`
	Notes         string             `bun:"notes"`
	CreatedAt     time.Time          `bun:"created_at,notnull"`
}

func (h *ChangeHistory) BeforeAppendModel(ctx context.Context, query bun.Query) error {
	if _, ok := query.(*bun.InsertQuery); !ok {
		return nil
	}
	if h.ID == uuid.Nil {
		id, err := uuid.NewV7()
		if err != nil {
			return err
		}
		h.ID = id
	}
	if h.CreatedAt.IsZero() {
		h.CreatedAt = time.Now().UTC()
	}
	return nil
}
