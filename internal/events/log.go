package events

import (
	"context"
	"log/slog"
)

// LogPublisher records events in the log. It is the publisher when no broker
// is configured.
type LogPublisher struct {
	log *slog.Logger
}

func NewLogPublisher(log *slog.Logger) *LogPublisher {
	return &LogPublisher{log: log}
}

func (p *LogPublisher) Publish(ctx context.Context, evt Event) error {
	p.log.InfoContext(ctx, "appointment event",
		slog.String("event_id", evt.ID.String()),
		slog.String("event_type", string(evt.Kind)),
		slog.String("appointment_id", evt.Appointment.ID.String()),
		slog.String("provider_id", evt.Appointment.ProviderID.String()),
		slog.String("status", string(evt.Appointment.Status)),
		slog.Time("start_at", evt.Appointment.StartAt),
	)
	return nil
}
