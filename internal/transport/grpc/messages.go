package grpc

import (
	"time"

	"slotline/backend/internal/domain"
	"slotline/backend/internal/service/scheduling"
)

type Appointment struct {
	ID                 string     `json:"id"`
	LocationID         string     `json:"location_id"`
	ProviderID         string     `json:"provider_id"`
	ServiceID          string     `json:"service_id"`
	ClientRef          string     `json:"client_ref"`
	Status             string     `json:"status"`
	StartAt            time.Time  `json:"start_at"`
	EndAt              time.Time  `json:"end_at"`
	DurationMinutes    int        `json:"duration_minutes"`
	Price              string     `json:"price"`
	Currency           string     `json:"currency"`
	Notes              string     `json:"notes,omitempty"`
	Source             string     `json:"source"`
	CancelledAt        *time.Time `json:"cancelled_at,omitempty"`
	CancellationReason string     `json:"cancellation_reason,omitempty"`
	CreatedAt          time.Time  `json:"created_at"`
	UpdatedAt          time.Time  `json:"updated_at"`
}

type HistoryEntry struct {
	ID           string     `json:"id"`
	Action       string     `json:"action"`
	OldStatus    string     `json:"old_status,omitempty"`
	NewStatus    string     `json:"new_status"`
	OldStartAt   *time.Time `json:"old_start_at,omitempty"`
	NewStartAt   *time.Time `json:"new_start_at,omitempty"`
	ChangedBy    string     `json:"changed_by,omitempty"`
	ChangeSource string     `json:"change_source"`
	Notes        string     `json:"notes,omitempty"`
	CreatedAt    time.Time  `json:"created_at"`
}

type Slot struct {
	StartTime string    `json:"start_time"`
	EndTime   string    `json:"end_time"`
	StartAt   time.Time `json:"start_at"`
	EndAt     time.Time `json:"end_at"`
}

type ProviderDay struct {
	Date         string `json:"date"`
	ProviderID   string `json:"provider_id"`
	ProviderName string `json:"provider_name"`
	Timezone     string `json:"timezone"`
	Slots        []Slot `json:"slots"`
}

type Calendar struct {
	ID         string `json:"id"`
	ProviderID string `json:"provider_id"`
	Name       string `json:"name"`
	Timezone   string `json:"timezone"`
}

type Rule struct {
	ID         string `json:"id,omitempty"`
	DayOfWeek  int    `json:"day_of_week"`
	StartTime  string `json:"start_time"`
	EndTime    string `json:"end_time"`
	Available  bool   `json:"available"`
	ValidFrom  string `json:"valid_from,omitempty"`
	ValidUntil string `json:"valid_until,omitempty"`
}

type TimeBlock struct {
	ID             string     `json:"id,omitempty"`
	BlockType      string     `json:"block_type"`
	Title          string     `json:"title,omitempty"`
	StartAt        *time.Time `json:"start_at"`
	EndAt          *time.Time `json:"end_at"`
	Recurring      bool       `json:"recurring"`
	RecurrenceRule string     `json:"recurrence_rule,omitempty"`
}

type GetAvailableSlotsRequest struct {
	LocationID string `json:"location_id"`
	// ProviderID is optional; empty asks for every active provider.
	ProviderID string `json:"provider_id,omitempty"`
	ServiceID  string `json:"service_id"`
	DateFrom   string `json:"date_from"`
	DateTo     string `json:"date_to"`
}

type GetAvailableSlotsResponse struct {
	Days []ProviderDay `json:"days"`
}

type BookAppointmentRequest struct {
	LocationID string     `json:"location_id"`
	ProviderID string     `json:"provider_id"`
	ServiceID  string     `json:"service_id"`
	ClientRef  string     `json:"client_ref"`
	StartAt    *time.Time `json:"start_at"`
	Notes      string     `json:"notes,omitempty"`
	Source     string     `json:"source,omitempty"`
}

type RescheduleAppointmentRequest struct {
	AppointmentID string     `json:"appointment_id"`
	StartAt       *time.Time `json:"start_at"`
}

type CancelAppointmentRequest struct {
	AppointmentID string `json:"appointment_id"`
	Reason        string `json:"reason,omitempty"`
}

// AppointmentRequest addresses one appointment by id.
type AppointmentRequest struct {
	AppointmentID string `json:"appointment_id"`
}

type AppointmentResponse struct {
	Appointment Appointment `json:"appointment"`
}

type ListAppointmentsRequest struct {
	ProviderID  string     `json:"provider_id"`
	WindowStart *time.Time `json:"window_start"`
	WindowEnd   *time.Time `json:"window_end"`
}

type ListAppointmentsResponse struct {
	Appointments []Appointment `json:"appointments"`
}

type ListHistoryResponse struct {
	Entries []HistoryEntry `json:"entries"`
}

// ProviderRequest addresses one provider's calendar.
type ProviderRequest struct {
	ProviderID string `json:"provider_id"`
}

type RulesResponse struct {
	Rules []Rule `json:"rules"`
}

type SetAvailabilityRulesRequest struct {
	ProviderID string `json:"provider_id"`
	Rules      []Rule `json:"rules"`
}

type SetTimezoneRequest struct {
	ProviderID string `json:"provider_id"`
	Timezone   string `json:"timezone"`
}

type CalendarResponse struct {
	Calendar Calendar `json:"calendar"`
}

type CreateTimeBlockRequest struct {
	ProviderID string    `json:"provider_id"`
	Block      TimeBlock `json:"block"`
}

type TimeBlockResponse struct {
	Block TimeBlock `json:"block"`
}

type ListTimeBlocksRequest struct {
	ProviderID string     `json:"provider_id"`
	From       *time.Time `json:"from"`
	To         *time.Time `json:"to"`
}

type ListTimeBlocksResponse struct {
	Blocks []TimeBlock `json:"blocks"`
}

type DeleteTimeBlockRequest struct {
	ProviderID string `json:"provider_id"`
	BlockID    string `json:"block_id"`
}

type DeleteTimeBlockResponse struct{}

func toAppointment(a domain.Appointment) Appointment {
	return Appointment{
		ID:                 a.ID.String(),
		LocationID:         a.LocationID.String(),
		ProviderID:         a.ProviderID.String(),
		ServiceID:          a.ServiceID.String(),
		ClientRef:          a.ClientRef,
		Status:             string(a.Status),
		StartAt:            a.StartAt,
		EndAt:              a.EndAt,
		DurationMinutes:    a.DurationMinutes,
		Price:              a.Price.StringFixed(2),
		Currency:           a.Currency,
		Notes:              a.Notes,
		Source:             a.Source,
		CancelledAt:        a.CancelledAt,
		CancellationReason: a.CancellationReason,
		CreatedAt:          a.CreatedAt,
		UpdatedAt:          a.UpdatedAt,
	}
}

func toAppointments(appts []domain.Appointment) []Appointment {
	out := make([]Appointment, 0, len(appts))
	for _, a := range appts {
		out = append(out, toAppointment(a))
	}
	return out
}

func toHistoryEntry(h domain.ChangeHistory) HistoryEntry {
	out := HistoryEntry{
		ID:           h.ID.String(),
		Action:       string(h.Action),
		NewStatus:    string(h.NewStatus),
		OldStartAt:   h.OldStartAt,
		NewStartAt:   h.NewStartAt,
		ChangeSource: h.ChangeSource,
		Notes:        h.Notes,
		CreatedAt:    h.CreatedAt,
	}
	if h.OldStatus != nil {
		out.OldStatus = string(*h.OldStatus)
	}
	if h.ChangedBy != nil {
		out.ChangedBy = h.ChangedBy.String()
	}
	return out
}

func toProviderDay(d scheduling.DaySlots) ProviderDay {
	slots := make([]Slot, 0, len(d.Slots))
	for _, s := range d.Slots {
		slots = append(slots, Slot{
			StartTime: s.Start.String(),
			EndTime:   s.End.String(),
			StartAt:   s.StartAt,
			EndAt:     s.EndAt,
		})
	}
	return ProviderDay{
		Date:         d.Date.Format(time.DateOnly),
		ProviderID:   d.ProviderID.String(),
		ProviderName: d.ProviderName,
		Timezone:     d.Timezone,
		Slots:        slots,
	}
}

func toCalendar(c domain.Calendar) Calendar {
	return Calendar{
		ID:         c.ID.String(),
		ProviderID: c.ProviderID.String(),
		Name:       c.Name,
		Timezone:   c.Timezone,
	}
}

func toRules(rules []domain.AvailabilityRule) []Rule {
	out := make([]Rule, 0, len(rules))
	for _, r := range rules {
		rule := Rule{
			ID:        r.ID.String(),
			DayOfWeek: int(r.DayOfWeek),
			StartTime: r.StartTime.String(),
			EndTime:   r.EndTime.String(),
			Available: r.Available,
		}
		if r.ValidFrom != nil {
			rule.ValidFrom = r.ValidFrom.Format(time.DateOnly)
		}
		if r.ValidUntil != nil {
			rule.ValidUntil = r.ValidUntil.Format(time.DateOnly)
		}
		out = append(out, rule)
	}
	return out
}

func toTimeBlock(b domain.TimeBlock) TimeBlock {
	start, end := b.StartAt, b.EndAt
	return TimeBlock{
		ID:             b.ID.String(),
		BlockType:      b.BlockType,
		Title:          b.Title,
		StartAt:        &start,
		EndAt:          &end,
		Recurring:      b.Recurring,
		RecurrenceRule: b.RecurrenceRule,
	}
}
