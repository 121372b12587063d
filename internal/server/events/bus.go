package events

import (
	"context"

	"github.com/dmitrijs2005/allocator/internal/logging"
)

// DefaultBufferSize is the bus queue length used by the server.
const DefaultBufferSize = 1024

// Bus fans published events out to subscribers on a single goroutine. When
// the queue is full new events are dropped with a warning.
type Bus struct {
	queue       chan Event
	subscribers []Subscriber
	logger      logging.Logger
}

func NewBus(size int, logger logging.Logger, subscribers ...Subscriber) *Bus {
	if size <= 0 {
		size = DefaultBufferSize
	}
	return &Bus{
		queue:       make(chan Event, size),
		subscribers: subscribers,
		logger:      logger.With("module", "events"),
	}
}

func (b *Bus) Publish(ctx context.Context, events ...Event) {
	for _, e := range events {
		select {
		case b.queue <- e:
		default:
			b.logger.Warn(ctx, "event dropped, queue full", "event_id", e.ID, "type", e.Type, "listing_id", e.ListingID)
		}
	}
}

// Run delivers events until ctx is cancelled, then drains what is already
// queued and returns.
func (b *Bus) Run(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			b.drain(context.WithoutCancel(ctx))
			return nil
		case e := <-b.queue:
			b.dispatch(ctx, e)
		}
	}
}

func (b *Bus) drain(ctx context.Context) {
	for {
		select {
		case e := <-b.queue:
			b.dispatch(ctx, e)
		default:
			return
		}
	}
}

func (b *Bus) dispatch(ctx context.Context, e Event) {
	for _, s := range b.subscribers {
		if err := s.Handle(ctx, e); err != nil {
			b.logger.Error(ctx, "event subscriber failed", "event_id", e.ID, "type", e.Type, "error", err)
		}
	}
}
