package grpc

import (
	"context"
	"log/slog"
	"net"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"
	"google.golang.org/grpc/test/bufconn"

	"slotline/backend/internal/domain"
	"slotline/backend/internal/service/scheduling"
	"slotline/backend/internal/store/memory"
)

func startBufServer(t *testing.T, svc *scheduling.Service) *SchedulingClient {
	t.Helper()

	lis := bufconn.Listen(1 << 20)
	srv := grpc.NewServer(grpc.ChainUnaryInterceptor(UnaryServerRequestIDInterceptor()))
	RegisterSchedulingServiceServer(srv, NewSchedulingServer(svc, slog.New(slog.DiscardHandler)))
	go func() { _ = srv.Serve(lis) }()
	t.Cleanup(srv.Stop)

	conn, err := grpc.NewClient("passthrough:///bufnet",
		grpc.WithContextDialer(func(ctx context.Context, _ string) (net.Conn, error) {
			return lis.DialContext(ctx)
		}),
		grpc.WithTransportCredentials(insecure.NewCredentials()),
	)
	if err != nil {
		t.Fatalf("grpc.NewClient error: %v", err)
	}
	t.Cleanup(func() { _ = conn.Close() })
	return NewSchedulingClient(conn)
}

func TestSchedulingService_OverGRPC(t *testing.T) {
	locationID := uuid.New()
	providerID := uuid.New()
	serviceID := uuid.New()

	st := memory.New()
	st.PutProvider(domain.Provider{ID: providerID, LocationID: locationID, DisplayName: "Alice", Active: true})
	st.PutService(domain.ServiceSpec{
		ID: serviceID, LocationID: locationID, Name: "Cut",
		DurationMinutes: 60, BufferMinutes: 15, Price: decimal.NewFromInt(25), Active: true,
	})
	client := startBufServer(t, scheduling.NewService(st, scheduling.WithLogger(slog.New(slog.DiscardHandler))))

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if _, err := client.SetAvailabilityRules(ctx, &SetAvailabilityRulesRequest{
		ProviderID: providerID.String(),
		Rules:      []Rule{{DayOfWeek: 0, StartTime: "09:00", EndTime: "17:00", Available: true}},
	}); err != nil {
		t.Fatalf("SetAvailabilityRules error: %v", err)
	}

	slots, err := client.GetAvailableSlots(ctx, &GetAvailableSlotsRequest{
		LocationID: locationID.String(), ProviderID: providerID.String(), ServiceID: serviceID.String(),
		DateFrom: "2026-01-05", DateTo: "2026-01-05",
	})
	if err != nil {
		t.Fatalf("GetAvailableSlots error: %v", err)
	}
	if len(slots.Days) != 1 || len(slots.Days[0].Slots) == 0 {
		t.Fatalf("days = %+v, want one day with slots", slots.Days)
	}
	first := slots.Days[0].Slots[0]

	var header metadata.MD
	booked, err := client.BookAppointment(ctx, &BookAppointmentRequest{
		LocationID: locationID.String(), ProviderID: providerID.String(), ServiceID: serviceID.String(),
		ClientRef: "client-1", StartAt: &first.StartAt,
	}, grpc.Header(&header))
	if err != nil {
		t.Fatalf("BookAppointment error: %v", err)
	}
	if len(header.Get(RequestIDMetadataKey)) != 1 {
		t.Fatalf("response header %s missing", RequestIDMetadataKey)
	}
	if booked.Appointment.Price != "25.00" || booked.Appointment.Status != "confirmed" {
		t.Fatalf("appointment = %+v", booked.Appointment)
	}

	_, err = client.BookAppointment(ctx, &BookAppointmentRequest{
		LocationID: locationID.String(), ProviderID: providerID.String(), ServiceID: serviceID.String(),
		ClientRef: "client-2", StartAt: &first.StartAt,
	})
	if status.Code(err) != codes.FailedPrecondition {
		t.Fatalf("double book code = %s, want %s", status.Code(err), codes.FailedPrecondition)
	}

	cancelCtx := metadata.AppendToOutgoingContext(ctx, "x-actor-role", "provider")
	cancelled, err := client.CancelAppointment(cancelCtx, &CancelAppointmentRequest{AppointmentID: booked.Appointment.ID, Reason: "sick"})
	if err != nil {
		t.Fatalf("CancelAppointment error: %v", err)
	}
	if cancelled.Appointment.Status != "cancelled_by_master" {
		t.Fatalf("status = %s, want cancelled_by_master", cancelled.Appointment.Status)
	}

	_, err = client.CompleteAppointment(ctx, &AppointmentRequest{AppointmentID: booked.Appointment.ID})
	if status.Code(err) != codes.FailedPrecondition {
		t.Fatalf("complete cancelled code = %s, want %s", status.Code(err), codes.FailedPrecondition)
	}

	history, err := client.ListHistory(ctx, &AppointmentRequest{AppointmentID: booked.Appointment.ID})
	if err != nil {
		t.Fatalf("ListHistory error: %v", err)
	}
	if len(history.Entries) != 2 || history.Entries[0].Action != "cancelled" || history.Entries[0].OldStatus != "confirmed" {
		t.Fatalf("history = %+v", history.Entries)
	}

	_, err = client.GetAppointment(ctx, &AppointmentRequest{AppointmentID: uuid.NewString()})
	if status.Code(err) != codes.NotFound {
		t.Fatalf("unknown appointment code = %s, want %s", status.Code(err), codes.NotFound)
	}
}
