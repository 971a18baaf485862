package events

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/segmentio/kafka-go"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/trace"

	"slotline/backend/internal/domain"
)

func quietLogger() *slog.Logger {
	return slog.New(slog.DiscardHandler)
}

type fakeWriter struct {
	mu   sync.Mutex
	msgs []kafka.Message
	err  error
}

func (f *fakeWriter) WriteMessages(ctx context.Context, msgs ...kafka.Message) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return f.err
	}
	f.msgs = append(f.msgs, msgs...)
	return nil
}

func (f *fakeWriter) Close() error { return nil }

func sampleEvent(kind Kind) Event {
	appt := domain.Appointment{
		ID:         uuid.MustParse("00000000-0000-0000-0000-000000000901"),
		ProviderID: uuid.MustParse("00000000-0000-0000-0000-0000000000a1"),
		Status:     domain.StatusConfirmed,
		StartAt:    time.Date(2026, 1, 5, 10, 0, 0, 0, time.UTC),
	}
	return New(kind, appt, time.Date(2026, 1, 4, 8, 0, 0, 0, time.UTC))
}

func TestKafkaPublisher_MessageShape(t *testing.T) {
	w := &fakeWriter{}
	p := &KafkaPublisher{w: w, prefix: "slotline."}
	evt := sampleEvent(KindCreated)

	if err := p.Publish(context.Background(), evt); err != nil {
		t.Fatalf("Publish error: %v", err)
	}
	if len(w.msgs) != 1 {
		t.Fatalf("messages = %d, want 1", len(w.msgs))
	}
	msg := w.msgs[0]
	if msg.Topic != "slotline.appointment.created" {
		t.Fatalf("topic = %q, want %q", msg.Topic, "slotline.appointment.created")
	}
	if string(msg.Key) != evt.Appointment.ProviderID.String() {
		t.Fatalf("key = %q, want provider id", msg.Key)
	}
	if got := headerValue(msg.Headers, "event_id"); got != evt.ID.String() {
		t.Fatalf("event_id header = %q, want %q", got, evt.ID)
	}
	if got := headerValue(msg.Headers, "event_type"); got != string(KindCreated) {
		t.Fatalf("event_type header = %q, want %q", got, KindCreated)
	}

	var decoded Event
	if err := json.Unmarshal(msg.Value, &decoded); err != nil {
		t.Fatalf("payload unmarshal error: %v", err)
	}
	if decoded.Appointment.ID != evt.Appointment.ID || decoded.Kind != KindCreated {
		t.Fatalf("payload = %+v, want event for %s", decoded, evt.Appointment.ID)
	}
}

func TestKafkaPublisher_InjectsTraceContext(t *testing.T) {
	prev := otel.GetTextMapPropagator()
	otel.SetTextMapPropagator(propagation.TraceContext{})
	t.Cleanup(func() { otel.SetTextMapPropagator(prev) })

	sc := trace.NewSpanContext(trace.SpanContextConfig{
		TraceID:    trace.TraceID{1, 2, 3, 4, 5, 6, 7, 8, 9, 10, 11, 12, 13, 14, 15, 16},
		SpanID:     trace.SpanID{1, 2, 3, 4, 5, 6, 7, 8},
		TraceFlags: trace.FlagsSampled,
	})
	ctx := trace.ContextWithSpanContext(context.Background(), sc)

	w := &fakeWriter{}
	p := &KafkaPublisher{w: w}
	if err := p.Publish(ctx, sampleEvent(KindCancelled)); err != nil {
		t.Fatalf("Publish error: %v", err)
	}

	msg := w.msgs[0]
	if headerValue(msg.Headers, "traceparent") == "" {
		t.Fatalf("traceparent header missing: %+v", msg.Headers)
	}
	got := trace.SpanContextFromContext(ExtractTraceContext(context.Background(), msg))
	if got.TraceID() != sc.TraceID() {
		t.Fatalf("extracted trace id = %s, want %s", got.TraceID(), sc.TraceID())
	}
}

func TestSplitBrokers(t *testing.T) {
	got := SplitBrokers(" a:9092, ,b:9092 ")
	if len(got) != 2 || got[0] != "a:9092" || got[1] != "b:9092" {
		t.Fatalf("SplitBrokers = %v", got)
	}
	if _, err := NewKafkaPublisher(KafkaConfig{}); err == nil {
		t.Fatalf("expected error without brokers")
	}
}

type recordingPublisher struct {
	mu     sync.Mutex
	events []Event
	err    error
}

func (r *recordingPublisher) Publish(ctx context.Context, evt Event) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, evt)
	return r.err
}

func TestAsyncPublisher_DeliversBeforeClose(t *testing.T) {
	rec := &recordingPublisher{err: errors.New("broker down")}
	p := NewAsyncPublisher(rec, 4, time.Second, quietLogger())

	for _, k := range []Kind{KindCreated, KindRescheduled, KindCompleted} {
		if err := p.Publish(context.Background(), sampleEvent(k)); err != nil {
			t.Fatalf("Publish error: %v", err)
		}
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := p.Close(ctx); err != nil {
		t.Fatalf("Close error: %v", err)
	}
	if len(rec.events) != 3 {
		t.Fatalf("delivered = %d, want 3", len(rec.events))
	}
	if rec.events[1].Kind != KindRescheduled {
		t.Fatalf("order = %v, want publish order", rec.events)
	}

	if err := p.Publish(context.Background(), sampleEvent(KindCreated)); !errors.Is(err, ErrClosed) {
		t.Fatalf("Publish after close err = %v, want %v", err, ErrClosed)
	}
	if err := p.Close(ctx); err != nil {
		t.Fatalf("second Close error: %v", err)
	}
}

func TestLogPublisher(t *testing.T) {
	if err := NewLogPublisher(quietLogger()).Publish(context.Background(), sampleEvent(KindCreated)); err != nil {
		t.Fatalf("Publish error: %v", err)
	}
	if err := (Nop{}).Publish(context.Background(), sampleEvent(KindCreated)); err != nil {
		t.Fatalf("Nop Publish error: %v", err)
	}
}
