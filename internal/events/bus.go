// Package events fans job lifecycle events out to live subscribers. Events
// are persisted to the job event log before broadcast, so a subscriber that
// attaches late replays the durable history and then continues with live
// events without gaps or duplicates.
package events

import (
	"context"
	"errors"
	"log/slog"
	"sync"

	"trimsync/internal/logging"
	"trimsync/internal/queue"
)

// DefaultSubscriberBuffer is the live-channel capacity beyond replayed
// history. A subscriber that falls this far behind is disconnected.
const DefaultSubscriberBuffer = 256

// ErrBusClosed is returned by Publish and Subscribe after Close.
var ErrBusClosed = errors.New("event bus closed")

// Store is the durable event log the bus appends to and replays from.
type Store interface {
	AppendEvent(ctx context.Context, event queue.Event) (queue.Event, error)
	EventsByJobSince(ctx context.Context, jobID string, afterID int64) ([]queue.Event, error)
}

// Bus buffers and broadcasts per-job events.
type Bus struct {
	store  Store
	logger *slog.Logger
	buffer int

	mu     sync.Mutex
	subs   map[string]map[*subscriber]struct{}
	closed bool
}

type subscriber struct {
	jobID string
	ch    chan queue.Event
}

// Subscription is a live attachment to one job's event stream. Receive from
// Events until it is closed, then call Close to release the registration.
type Subscription struct {
	Events <-chan queue.Event

	bus  *Bus
	sub  *subscriber
	once sync.Once
}

// Close detaches the subscription from the bus.
func (s *Subscription) Close() {
	s.once.Do(func() {
		s.bus.remove(s.sub)
	})
}

// NewBus creates a bus over the given durable store.
func NewBus(store Store, logger *slog.Logger) *Bus {
	if logger == nil {
		logger = logging.NewNop()
	}
	return &Bus{
		store:  store,
		logger: logger.With(logging.String(logging.FieldComponent, "events")),
		buffer: DefaultSubscriberBuffer,
		subs:   make(map[string]map[*subscriber]struct{}),
	}
}

// Publish appends an event to the durable log and broadcasts it to all live
// subscribers of the event's job. The append and the broadcast happen under
// one lock so no subscriber can observe the event twice or not at all.
func (b *Bus) Publish(ctx context.Context, event queue.Event) (queue.Event, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return queue.Event{}, ErrBusClosed
	}

	stored, err := b.store.AppendEvent(ctx, event)
	if err != nil {
		return queue.Event{}, err
	}

	for sub := range b.subs[stored.JobID] {
		select {
		case sub.ch <- stored:
		default:
			// Subscriber stopped draining; cut it loose rather than
			// blocking every other consumer of this job.
			b.logger.Warn("dropping lagging subscriber",
				logging.String(logging.FieldJobID, stored.JobID))
			delete(b.subs[stored.JobID], sub)
			close(sub.ch)
		}
	}
	return stored, nil
}

// Subscribe attaches to a job's event stream. Durable events with ID greater
// than afterID are replayed first, followed by live events in publish order.
// Pass afterID zero to replay the job's full history.
func (b *Bus) Subscribe(ctx context.Context, jobID string, afterID int64) (*Subscription, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return nil, ErrBusClosed
	}

	// History is read while holding the bus lock: any Publish that lands
	// after this read is queued on the live channel, never missed.
	history, err := b.store.EventsByJobSince(ctx, jobID, afterID)
	if err != nil {
		return nil, err
	}

	sub := &subscriber{
		jobID: jobID,
		ch:    make(chan queue.Event, len(history)+b.buffer),
	}
	for _, event := range history {
		sub.ch <- event
	}

	if b.subs[jobID] == nil {
		b.subs[jobID] = make(map[*subscriber]struct{})
	}
	b.subs[jobID][sub] = struct{}{}

	return &Subscription{Events: sub.ch, bus: b, sub: sub}, nil
}

// Close disconnects every subscriber and rejects further use of the bus.
func (b *Bus) Close() {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return
	}
	b.closed = true
	for jobID, subs := range b.subs {
		for sub := range subs {
			close(sub.ch)
		}
		delete(b.subs, jobID)
	}
}

func (b *Bus) remove(sub *subscriber) {
	b.mu.Lock()
	defer b.mu.Unlock()

	subs, ok := b.subs[sub.jobID]
	if !ok {
		return
	}
	if _, ok := subs[sub]; !ok {
		return
	}
	delete(subs, sub)
	close(sub.ch)
	if len(subs) == 0 {
		delete(b.subs, sub.jobID)
	}
}
