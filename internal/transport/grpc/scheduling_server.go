package grpc

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"slotline/backend/internal/domain"
	"slotline/backend/internal/lease"
	"slotline/backend/internal/service/scheduling"
	"slotline/backend/internal/store"
)

type SchedulingServer struct {
	svc schedulingService
	log *slog.Logger
}

var _ SchedulingServiceServer = (*SchedulingServer)(nil)

type schedulingService interface {
	GetAvailableSlots(ctx context.Context, q scheduling.SlotQuery) ([]scheduling.DaySlots, error)
	BookAppointment(ctx context.Context, in scheduling.BookInput) (domain.Appointment, error)
	RescheduleAppointment(ctx context.Context, in scheduling.RescheduleInput) (domain.Appointment, error)
	CancelAppointment(ctx context.Context, appointmentID uuid.UUID, reason string, actor scheduling.Actor) (domain.Appointment, error)
	CompleteAppointment(ctx context.Context, appointmentID uuid.UUID, actor scheduling.Actor) (domain.Appointment, error)
	MarkNoShow(ctx context.Context, appointmentID uuid.UUID, actor scheduling.Actor) (domain.Appointment, error)
	GetAppointment(ctx context.Context, appointmentID uuid.UUID) (domain.Appointment, error)
	ListAppointments(ctx context.Context, providerID uuid.UUID, windowStart, windowEnd time.Time) ([]domain.Appointment, error)
	ListHistory(ctx context.Context, appointmentID uuid.UUID) ([]domain.ChangeHistory, error)
	GetAvailabilityRules(ctx context.Context, providerID uuid.UUID) ([]domain.AvailabilityRule, error)
	SetAvailabilityRules(ctx context.Context, providerID uuid.UUID, in []scheduling.RuleInput) ([]domain.AvailabilityRule, error)
	SetTimezone(ctx context.Context, providerID uuid.UUID, timezone string) (domain.Calendar, error)
	CreateTimeBlock(ctx context.Context, providerID uuid.UUID, in scheduling.TimeBlockInput) (domain.TimeBlock, error)
	ListTimeBlocks(ctx context.Context, providerID uuid.UUID, from, to time.Time) ([]domain.TimeBlock, error)
	DeleteTimeBlock(ctx context.Context, providerID, blockID uuid.UUID) error
}

func NewSchedulingServer(svc schedulingService, log *slog.Logger) *SchedulingServer {
	if log == nil {
		log = slog.Default()
	}
	return &SchedulingServer{
		svc: svc,
		log: log.With(slog.String("component", "grpc.scheduling")),
	}
}

func (s *SchedulingServer) rpcLogger(ctx context.Context, rpc string) *slog.Logger {
	log := s.log.With(slog.String("rpc", rpc))
	if id := RequestIDFromContext(ctx); id != "" {
		log = log.With(slog.String("request_id", id))
	}
	return log
}

func (s *SchedulingServer) GetAvailableSlots(ctx context.Context, req *GetAvailableSlotsRequest) (*GetAvailableSlotsResponse, error) {
	log := s.rpcLogger(ctx, "GetAvailableSlots")

	if req == nil {
		log.Warn("invalid request", slog.String("reason", "nil_request"))
		return nil, status.Error(codes.InvalidArgument, "request is required")
	}
	serviceID, err := parseID("service_id", req.ServiceID)
	if err != nil {
		return nil, err
	}
	q := scheduling.SlotQuery{ServiceID: serviceID}
	if req.LocationID != "" || req.ProviderID == "" {
		if q.LocationID, err = parseID("location_id", req.LocationID); err != nil {
			return nil, err
		}
	}
	if req.ProviderID != "" {
		providerID, err := parseID("provider_id", req.ProviderID)
		if err != nil {
			return nil, err
		}
		q.ProviderID = &providerID
	}
	if q.DateFrom, err = parseDate("date_from", req.DateFrom); err != nil {
		return nil, err
	}
	if q.DateTo, err = parseDate("date_to", req.DateTo); err != nil {
		return nil, err
	}

	days, err := s.svc.GetAvailableSlots(ctx, q)
	if err != nil {
		return nil, s.statusError(log, "slot query", err, slog.String("service_id", req.ServiceID))
	}

	out := make([]ProviderDay, 0, len(days))
	for _, d := range days {
		out = append(out, toProviderDay(d))
	}
	log.Debug("slots listed",
		slog.String("location_id", req.LocationID),
		slog.Int("days", len(out)),
		slog.String("date_from", req.DateFrom),
		slog.String("date_to", req.DateTo),
	)
	return &GetAvailableSlotsResponse{Days: out}, nil
}

func (s *SchedulingServer) BookAppointment(ctx context.Context, req *BookAppointmentRequest) (*AppointmentResponse, error) {
	log := s.rpcLogger(ctx, "BookAppointment")

	if req == nil {
		log.Warn("invalid request", slog.String("reason", "nil_request"))
		return nil, status.Error(codes.InvalidArgument, "request is required")
	}
	if req.StartAt == nil {
		log.Warn("invalid request", slog.String("reason", "missing_start"), slog.String("provider_id", req.ProviderID))
		return nil, status.Error(codes.InvalidArgument, "start_at is required")
	}
	locationID, err := parseID("location_id", req.LocationID)
	if err != nil {
		return nil, err
	}
	providerID, err := parseID("provider_id", req.ProviderID)
	if err != nil {
		return nil, err
	}
	serviceID, err := parseID("service_id", req.ServiceID)
	if err != nil {
		return nil, err
	}
	actor, err := actorFromContext(ctx)
	if err != nil {
		return nil, err
	}

	appt, err := s.svc.BookAppointment(ctx, scheduling.BookInput{
		LocationID:     locationID,
		ProviderID:     providerID,
		ServiceID:      serviceID,
		ClientRef:      req.ClientRef,
		StartAt:        *req.StartAt,
		Notes:          req.Notes,
		Source:         req.Source,
		IdempotencyKey: idempotencyKey(ctx),
		Actor:          actor,
	})
	if err != nil {
		return nil, s.statusError(log, "booking", err,
			slog.String("provider_id", req.ProviderID),
			slog.Time("start_at", *req.StartAt),
		)
	}

	log.Info("appointment booked",
		slog.String("appointment_id", appt.ID.String()),
		slog.String("provider_id", appt.ProviderID.String()),
		slog.Time("start_at", appt.StartAt),
		slog.Time("end_at", appt.EndAt),
	)
	return &AppointmentResponse{Appointment: toAppointment(appt)}, nil
}

func (s *SchedulingServer) RescheduleAppointment(ctx context.Context, req *RescheduleAppointmentRequest) (*AppointmentResponse, error) {
	log := s.rpcLogger(ctx, "RescheduleAppointment")

	if req == nil {
		log.Warn("invalid request", slog.String("reason", "nil_request"))
		return nil, status.Error(codes.InvalidArgument, "request is required")
	}
	if req.StartAt == nil {
		log.Warn("invalid request", slog.String("reason", "missing_start"), slog.String("appointment_id", req.AppointmentID))
		return nil, status.Error(codes.InvalidArgument, "start_at is required")
	}
	id, err := parseID("appointment_id", req.AppointmentID)
	if err != nil {
		return nil, err
	}
	actor, err := actorFromContext(ctx)
	if err != nil {
		return nil, err
	}

	appt, err := s.svc.RescheduleAppointment(ctx, scheduling.RescheduleInput{AppointmentID: id, StartAt: *req.StartAt, Actor: actor})
	if err != nil {
		return nil, s.statusError(log, "reschedule", err, slog.String("appointment_id", req.AppointmentID))
	}

	log.Info("appointment rescheduled",
		slog.String("appointment_id", appt.ID.String()),
		slog.Time("start_at", appt.StartAt),
	)
	return &AppointmentResponse{Appointment: toAppointment(appt)}, nil
}

func (s *SchedulingServer) CancelAppointment(ctx context.Context, req *CancelAppointmentRequest) (*AppointmentResponse, error) {
	log := s.rpcLogger(ctx, "CancelAppointment")

	if req == nil {
		log.Warn("invalid request", slog.String("reason", "nil_request"))
		return nil, status.Error(codes.InvalidArgument, "request is required")
	}
	id, err := parseID("appointment_id", req.AppointmentID)
	if err != nil {
		return nil, err
	}
	actor, err := actorFromContext(ctx)
	if err != nil {
		return nil, err
	}

	appt, err := s.svc.CancelAppointment(ctx, id, req.Reason, actor)
	if err != nil {
		return nil, s.statusError(log, "cancel", err, slog.String("appointment_id", req.AppointmentID))
	}

	log.Info("appointment cancelled",
		slog.String("appointment_id", appt.ID.String()),
		slog.String("status", string(appt.Status)),
	)
	return &AppointmentResponse{Appointment: toAppointment(appt)}, nil
}

func (s *SchedulingServer) CompleteAppointment(ctx context.Context, req *AppointmentRequest) (*AppointmentResponse, error) {
	return s.changeStatus(ctx, "CompleteAppointment", req, s.svc.CompleteAppointment)
}

func (s *SchedulingServer) MarkNoShow(ctx context.Context, req *AppointmentRequest) (*AppointmentResponse, error) {
	return s.changeStatus(ctx, "MarkNoShow", req, s.svc.MarkNoShow)
}

func (s *SchedulingServer) changeStatus(
	ctx context.Context,
	rpc string,
	req *AppointmentRequest,
	apply func(context.Context, uuid.UUID, scheduling.Actor) (domain.Appointment, error),
) (*AppointmentResponse, error) {
	log := s.rpcLogger(ctx, rpc)

	if req == nil {
		log.Warn("invalid request", slog.String("reason", "nil_request"))
		return nil, status.Error(codes.InvalidArgument, "request is required")
	}
	id, err := parseID("appointment_id", req.AppointmentID)
	if err != nil {
		return nil, err
	}
	actor, err := actorFromContext(ctx)
	if err != nil {
		return nil, err
	}

	appt, err := apply(ctx, id, actor)
	if err != nil {
		return nil, s.statusError(log, "status change", err, slog.String("appointment_id", req.AppointmentID))
	}

	log.Info("appointment status changed",
		slog.String("appointment_id", appt.ID.String()),
		slog.String("status", string(appt.Status)),
	)
	return &AppointmentResponse{Appointment: toAppointment(appt)}, nil
}

func (s *SchedulingServer) GetAppointment(ctx context.Context, req *AppointmentRequest) (*AppointmentResponse, error) {
	log := s.rpcLogger(ctx, "GetAppointment")

	if req == nil {
		log.Warn("invalid request", slog.String("reason", "nil_request"))
		return nil, status.Error(codes.InvalidArgument, "request is required")
	}
	id, err := parseID("appointment_id", req.AppointmentID)
	if err != nil {
		return nil, err
	}

	appt, err := s.svc.GetAppointment(ctx, id)
	if err != nil {
		return nil, s.statusError(log, "appointment get", err, slog.String("appointment_id", req.AppointmentID))
	}
	return &AppointmentResponse{Appointment: toAppointment(appt)}, nil
}

func (s *SchedulingServer) ListAppointments(ctx context.Context, req *ListAppointmentsRequest) (*ListAppointmentsResponse, error) {
	log := s.rpcLogger(ctx, "ListAppointments")

	if req == nil {
		log.Warn("invalid request", slog.String("reason", "nil_request"))
		return nil, status.Error(codes.InvalidArgument, "request is required")
	}
	if req.WindowStart == nil || req.WindowEnd == nil {
		log.Warn("invalid request", slog.String("reason", "missing_window"), slog.String("provider_id", req.ProviderID))
		return nil, status.Error(codes.InvalidArgument, "window_start and window_end are required")
	}
	providerID, err := parseID("provider_id", req.ProviderID)
	if err != nil {
		return nil, err
	}

	appts, err := s.svc.ListAppointments(ctx, providerID, *req.WindowStart, *req.WindowEnd)
	if err != nil {
		return nil, s.statusError(log, "appointments list", err, slog.String("provider_id", req.ProviderID))
	}

	log.Debug("appointments listed",
		slog.String("provider_id", req.ProviderID),
		slog.Int("count", len(appts)),
		slog.Time("window_start", *req.WindowStart),
		slog.Time("window_end", *req.WindowEnd),
	)
	return &ListAppointmentsResponse{Appointments: toAppointments(appts)}, nil
}

func (s *SchedulingServer) ListHistory(ctx context.Context, req *AppointmentRequest) (*ListHistoryResponse, error) {
	log := s.rpcLogger(ctx, "ListHistory")

	if req == nil {
		log.Warn("invalid request", slog.String("reason", "nil_request"))
		return nil, status.Error(codes.InvalidArgument, "request is required")
	}
	id, err := parseID("appointment_id", req.AppointmentID)
	if err != nil {
		return nil, err
	}

	entries, err := s.svc.ListHistory(ctx, id)
	if err != nil {
		return nil, s.statusError(log, "history list", err, slog.String("appointment_id", req.AppointmentID))
	}

	out := make([]HistoryEntry, 0, len(entries))
	for _, h := range entries {
		out = append(out, toHistoryEntry(h))
	}
	return &ListHistoryResponse{Entries: out}, nil
}

func (s *SchedulingServer) GetAvailabilityRules(ctx context.Context, req *ProviderRequest) (*RulesResponse, error) {
	log := s.rpcLogger(ctx, "GetAvailabilityRules")

	if req == nil {
		log.Warn("invalid request", slog.String("reason", "nil_request"))
		return nil, status.Error(codes.InvalidArgument, "request is required")
	}
	providerID, err := parseID("provider_id", req.ProviderID)
	if err != nil {
		return nil, err
	}

	rules, err := s.svc.GetAvailabilityRules(ctx, providerID)
	if err != nil {
		return nil, s.statusError(log, "rules get", err, slog.String("provider_id", req.ProviderID))
	}
	return &RulesResponse{Rules: toRules(rules)}, nil
}

func (s *SchedulingServer) SetAvailabilityRules(ctx context.Context, req *SetAvailabilityRulesRequest) (*RulesResponse, error) {
	log := s.rpcLogger(ctx, "SetAvailabilityRules")

	if req == nil {
		log.Warn("invalid request", slog.String("reason", "nil_request"))
		return nil, status.Error(codes.InvalidArgument, "request is required")
	}
	providerID, err := parseID("provider_id", req.ProviderID)
	if err != nil {
		return nil, err
	}
	in := make([]scheduling.RuleInput, 0, len(req.Rules))
	for _, r := range req.Rules {
		rule := scheduling.RuleInput{
			DayOfWeek: r.DayOfWeek,
			StartTime: r.StartTime,
			EndTime:   r.EndTime,
			Available: r.Available,
		}
		if r.ValidFrom != "" {
			d, err := parseDate("valid_from", r.ValidFrom)
			if err != nil {
				return nil, err
			}
			rule.ValidFrom = &d
		}
		if r.ValidUntil != "" {
			d, err := parseDate("valid_until", r.ValidUntil)
			if err != nil {
				return nil, err
			}
			rule.ValidUntil = &d
		}
		in = append(in, rule)
	}

	rules, err := s.svc.SetAvailabilityRules(ctx, providerID, in)
	if err != nil {
		return nil, s.statusError(log, "rules replace", err, slog.String("provider_id", req.ProviderID))
	}

	log.Info("availability rules replaced",
		slog.String("provider_id", req.ProviderID),
		slog.Int("count", len(rules)),
	)
	return &RulesResponse{Rules: toRules(rules)}, nil
}

func (s *SchedulingServer) SetTimezone(ctx context.Context, req *SetTimezoneRequest) (*CalendarResponse, error) {
	log := s.rpcLogger(ctx, "SetTimezone")

	if req == nil {
		log.Warn("invalid request", slog.String("reason", "nil_request"))
		return nil, status.Error(codes.InvalidArgument, "request is required")
	}
	providerID, err := parseID("provider_id", req.ProviderID)
	if err != nil {
		return nil, err
	}

	cal, err := s.svc.SetTimezone(ctx, providerID, req.Timezone)
	if err != nil {
		return nil, s.statusError(log, "timezone update", err, slog.String("provider_id", req.ProviderID))
	}

	log.Info("calendar timezone updated",
		slog.String("provider_id", req.ProviderID),
		slog.String("timezone", cal.Timezone),
	)
	return &CalendarResponse{Calendar: toCalendar(cal)}, nil
}

func (s *SchedulingServer) CreateTimeBlock(ctx context.Context, req *CreateTimeBlockRequest) (*TimeBlockResponse, error) {
	log := s.rpcLogger(ctx, "CreateTimeBlock")

	if req == nil {
		log.Warn("invalid request", slog.String("reason", "nil_request"))
		return nil, status.Error(codes.InvalidArgument, "request is required")
	}
	if req.Block.StartAt == nil || req.Block.EndAt == nil {
		log.Warn("invalid request", slog.String("reason", "missing_times"), slog.String("provider_id", req.ProviderID))
		return nil, status.Error(codes.InvalidArgument, "start_at and end_at are required")
	}
	providerID, err := parseID("provider_id", req.ProviderID)
	if err != nil {
		return nil, err
	}

	block, err := s.svc.CreateTimeBlock(ctx, providerID, scheduling.TimeBlockInput{
		BlockType:      req.Block.BlockType,
		Title:          req.Block.Title,
		StartAt:        *req.Block.StartAt,
		EndAt:          *req.Block.EndAt,
		Recurring:      req.Block.Recurring,
		RecurrenceRule: req.Block.RecurrenceRule,
	})
	if err != nil {
		return nil, s.statusError(log, "time block create", err, slog.String("provider_id", req.ProviderID))
	}

	log.Info("time block created",
		slog.String("block_id", block.ID.String()),
		slog.String("provider_id", req.ProviderID),
		slog.Time("start_at", block.StartAt),
		slog.Time("end_at", block.EndAt),
	)
	return &TimeBlockResponse{Block: toTimeBlock(block)}, nil
}

func (s *SchedulingServer) ListTimeBlocks(ctx context.Context, req *ListTimeBlocksRequest) (*ListTimeBlocksResponse, error) {
	log := s.rpcLogger(ctx, "ListTimeBlocks")

	if req == nil {
		log.Warn("invalid request", slog.String("reason", "nil_request"))
		return nil, status.Error(codes.InvalidArgument, "request is required")
	}
	if req.From == nil || req.To == nil {
		log.Warn("invalid request", slog.String("reason", "missing_window"), slog.String("provider_id", req.ProviderID))
		return nil, status.Error(codes.InvalidArgument, "from and to are required")
	}
	providerID, err := parseID("provider_id", req.ProviderID)
	if err != nil {
		return nil, err
	}

	blocks, err := s.svc.ListTimeBlocks(ctx, providerID, *req.From, *req.To)
	if err != nil {
		return nil, s.statusError(log, "time blocks list", err, slog.String("provider_id", req.ProviderID))
	}

	out := make([]TimeBlock, 0, len(blocks))
	for _, b := range blocks {
		out = append(out, toTimeBlock(b))
	}
	return &ListTimeBlocksResponse{Blocks: out}, nil
}

func (s *SchedulingServer) DeleteTimeBlock(ctx context.Context, req *DeleteTimeBlockRequest) (*DeleteTimeBlockResponse, error) {
	log := s.rpcLogger(ctx, "DeleteTimeBlock")

	if req == nil {
		log.Warn("invalid request", slog.String("reason", "nil_request"))
		return nil, status.Error(codes.InvalidArgument, "request is required")
	}
	providerID, err := parseID("provider_id", req.ProviderID)
	if err != nil {
		return nil, err
	}
	blockID, err := parseID("block_id", req.BlockID)
	if err != nil {
		return nil, err
	}

	if err := s.svc.DeleteTimeBlock(ctx, providerID, blockID); err != nil {
		return nil, s.statusError(log, "time block delete", err,
			slog.String("provider_id", req.ProviderID),
			slog.String("block_id", req.BlockID),
		)
	}

	log.Info("time block deleted", slog.String("block_id", req.BlockID), slog.String("provider_id", req.ProviderID))
	return &DeleteTimeBlockResponse{}, nil
}

// statusError maps a service error onto a gRPC status and logs it at a level
// matching who is at fault.
func (s *SchedulingServer) statusError(log *slog.Logger, op string, err error, attrs ...any) error {
	args := append([]any{slog.Any("err", err)}, attrs...)

	var vErr *scheduling.ValidationError
	switch {
	case errors.As(err, &vErr):
		log.Warn("invalid request", args...)
		return status.Error(codes.InvalidArgument, vErr.Error())
	case errors.Is(err, store.ErrNotFound):
		log.Info(op+" target not found", args...)
		return status.Error(codes.NotFound, err.Error())
	case errors.Is(err, store.ErrIdempotencyConflict):
		log.Info(op+" idempotency conflict", args...)
		return status.Error(codes.FailedPrecondition, "This request key was already used for a different appointment. Try again.")
	case errors.Is(err, store.ErrConflict):
		log.Info(op+" conflict", args...)
		return status.Error(codes.FailedPrecondition, err.Error())
	case errors.Is(err, lease.ErrUnavailable):
		log.Warn(op+" lease unavailable", args...)
		return status.Error(codes.Unavailable, "scheduling is busy for this provider, retry shortly")
	case errors.Is(err, context.DeadlineExceeded):
		log.Warn(op+" timed out", args...)
		return status.Error(codes.DeadlineExceeded, "request timed out")
	case errors.Is(err, context.Canceled):
		return status.Error(codes.Canceled, "request cancelled")
	}
	log.Error(op+" failed", args...)
	return status.Error(codes.Internal, "internal error")
}

func parseID(field, raw string) (uuid.UUID, error) {
	id, err := uuid.Parse(strings.TrimSpace(raw))
	if err != nil {
		return uuid.Nil, status.Error(codes.InvalidArgument, field+" must be a UUID")
	}
	return id, nil
}

func parseDate(field, raw string) (time.Time, error) {
	d, err := time.Parse(time.DateOnly, strings.TrimSpace(raw))
	if err != nil {
		return time.Time{}, status.Error(codes.InvalidArgument, field+" must be a date in YYYY-MM-DD format")
	}
	return d, nil
}
