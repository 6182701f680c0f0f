// Package inmemory provides an in-process eventstore.Client
// implementation, useful for testing subscriptions without a real
// event store connection.
package inmemory

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/google/uuid"

	"github.com/subvisor/subvisor/eventstore"
)

// Default polling intervals used by EventStore.Subscribe between
// catch-up passes over the event log.
const (
	DefaultPullInterval    = 10 * time.Millisecond
	DefaultMaxPullInterval = 100 * time.Millisecond
)

var _ eventstore.Client = &EventStore{}

// UnsavedEvent is an event to be committed through EventStore.Append.
type UnsavedEvent struct {
	Type     string
	Data     []byte
	Metadata map[string]string
}

// EventStore is an in-memory eventstore.Client implementation.
//
// Subscriptions are implemented as catch-up pull loops over the
// committed event log, polling with exponential backoff that resets
// whenever new events are observed.
type EventStore struct {
	mx sync.RWMutex

	events   []eventstore.RawEvent
	byStream map[string][]int

	config eventstore.Config
}

// NewEventStore creates a new empty EventStore instance using the
// provided connection-level configuration.
func NewEventStore(config eventstore.Config) *EventStore {
	return &EventStore{
		byStream: make(map[string][]int),
		config:   config,
	}
}

// Config returns the connection-level configuration of the store.
func (s *EventStore) Config() eventstore.Config {
	return s.config
}

// Append commits the provided events to the named stream, assigning
// each a fresh id, the next global position and the next stream
// revision. The committed events are returned in order.
func (s *EventStore) Append(_ context.Context, stream string, events ...UnsavedEvent) ([]eventstore.RawEvent, error) {
	if stream == "" {
		return nil, fmt.Errorf("inmemory.EventStore: cannot append to an unnamed stream")
	}

	s.mx.Lock()
	defer s.mx.Unlock()

	committed := make([]eventstore.RawEvent, 0, len(events))

	for _, event := range events {
		idx := len(s.events)

		// Positions and revisions both start from 1.
		raw := eventstore.RawEvent{
			ID:       uuid.New(),
			Stream:   stream,
			Type:     event.Type,
			Data:     event.Data,
			Metadata: event.Metadata,
			Position: eventstore.Position(idx + 1),
			Revision: eventstore.Revision(len(s.byStream[stream]) + 1),
		}

		s.events = append(s.events, raw)
		s.byStream[stream] = append(s.byStream[stream], idx)
		committed = append(committed, raw)
	}

	return committed, nil
}

// Subscribe implements the eventstore.Client interface.
//
// The call blocks until the context is canceled or the handler returns
// an error, polling the event log with exponential backoff in between.
// FromRevision is only supported together with a TargetStream target.
func (s *EventStore) Subscribe(
	ctx context.Context,
	target eventstore.Target,
	opts eventstore.SubscribeOptions,
	handler eventstore.EventHandler,
) error {
	cursor, err := s.startCursor(target, opts.From)
	if err != nil {
		return err
	}

	b := backoff.NewExponentialBackOff()
	b.InitialInterval = DefaultPullInterval
	b.MaxInterval = DefaultMaxPullInterval
	b.MaxElapsedTime = 0 // Don't stop the backoff!

	for {
		select {
		case <-ctx.Done():
			return fmt.Errorf("inmemory.EventStore: context done: %w", ctx.Err())

		case <-time.After(b.NextBackOff()):
			batch := s.eventsAfter(target, cursor)

			for _, event := range batch {
				if err := handler(ctx, event); err != nil {
					return err
				}

				cursor = event.Position
			}

			if len(batch) > 0 {
				b.Reset()
			}
		}
	}
}

// startCursor translates a resume option into the global position to
// start delivery after.
func (s *EventStore) startCursor(target eventstore.Target, from eventstore.ResumeFrom) (eventstore.Position, error) {
	switch f := from.(type) {
	case nil, eventstore.FromStart:
		return 0, nil

	case eventstore.FromPosition:
		return eventstore.Position(f), nil

	case eventstore.FromRevision:
		stream, ok := target.(eventstore.TargetStream)
		if !ok {
			return 0, fmt.Errorf("inmemory.EventStore: FromRevision requires a single-stream target")
		}

		s.mx.RLock()
		defer s.mx.RUnlock()

		// The revision is exclusive: delivery starts at the event
		// right after it, so the cursor is that event's predecessor.
		indexes := s.byStream[stream.Name]
		if int(f) >= len(indexes) {
			return eventstore.Position(len(s.events)), nil
		}
		if f == 0 {
			return 0, nil
		}

		return s.events[indexes[f-1]].Position, nil

	default:
		return 0, fmt.Errorf("inmemory.EventStore: unsupported resume option %T", from)
	}
}

func (s *EventStore) eventsAfter(target eventstore.Target, after eventstore.Position) []eventstore.RawEvent {
	s.mx.RLock()
	defer s.mx.RUnlock()

	var batch []eventstore.RawEvent

	switch t := target.(type) {
	case eventstore.TargetAll:
		start := int(after)
		if start > len(s.events) {
			start = len(s.events)
		}

		batch = append(batch, s.events[start:]...)

	case eventstore.TargetStream:
		for _, idx := range s.byStream[t.Name] {
			event := s.events[idx]
			if event.Position <= after {
				continue
			}

			batch = append(batch, event)
		}
	}

	return batch
}
