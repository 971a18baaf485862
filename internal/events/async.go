package events

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"
)

var ErrClosed = errors.New("events: publisher closed")

// AsyncPublisher hands events to a background worker so callers never wait
// on the broker. When the buffer is full the event is dropped and logged.
type AsyncPublisher struct {
	next    Publisher
	log     *slog.Logger
	timeout time.Duration

	mu     sync.RWMutex
	closed bool
	queue  chan queued
	done   chan struct{}
}

type queued struct {
	ctx context.Context
	evt Event
}

func NewAsyncPublisher(next Publisher, buffer int, timeout time.Duration, log *slog.Logger) *AsyncPublisher {
	if buffer <= 0 {
		buffer = 256
	}
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	p := &AsyncPublisher{
		next:    next,
		log:     log,
		timeout: timeout,
		queue:   make(chan queued, buffer),
		done:    make(chan struct{}),
	}
	go p.run()
	return p
}

func (p *AsyncPublisher) Publish(ctx context.Context, evt Event) error {
	p.mu.RLock()
	defer p.mu.RUnlock()
	if p.closed {
		return ErrClosed
	}
	// The request context is about to end; keep only its values (trace).
	item := queued{ctx: context.WithoutCancel(ctx), evt: evt}
	select {
	case p.queue <- item:
		return nil
	default:
		p.log.WarnContext(ctx, "event buffer full, dropping event",
			slog.String("event_id", evt.ID.String()),
			slog.String("event_type", string(evt.Kind)),
		)
		return nil
	}
}

func (p *AsyncPublisher) run() {
	defer close(p.done)
	for item := range p.queue {
		ctx, cancel := context.WithTimeout(item.ctx, p.timeout)
		if err := p.next.Publish(ctx, item.evt); err != nil {
			p.log.ErrorContext(ctx, "event publish failed",
				slog.String("event_id", item.evt.ID.String()),
				slog.String("event_type", string(item.evt.Kind)),
				slog.Any("err", err),
			)
		}
		cancel()
	}
}

// Close stops accepting events and waits for queued ones to be delivered or
// for ctx to end.
func (p *AsyncPublisher) Close(ctx context.Context) error {
	p.mu.Lock()
	if !p.closed {
		p.closed = true
		close(p.queue)
	}
	p.mu.Unlock()

	select {
	case <-p.done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
