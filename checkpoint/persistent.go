package checkpoint

import (
	"context"

	"github.com/subvisor/subvisor/eventstore"
	"github.com/subvisor/subvisor/logger"
)

// Store persists checkpoint values by subscription name, so that
// subscriptions can resume across process restarts.
type Store interface {
	// Read returns the last persisted value for the named subscription,
	// reporting false when no value has been persisted yet.
	Read(ctx context.Context, name string) (uint64, bool, error)

	// Write persists the value for the named subscription.
	Write(ctx context.Context, name string, value uint64) error
}

var _ Checkpoint = &Persistent{}

// Persistent is a write-through Checkpoint decorator: every Update is
// recorded on the wrapped in-memory Checkpoint first, then persisted to
// the Store.
//
// Persistence is best effort: Update runs inline with event delivery
// and cannot surface errors there, so a failed write is logged and the
// in-memory value stays authoritative for the current process.
type Persistent struct {
	Name   string
	Inner  Checkpoint
	Store  Store
	Logger logger.Logger
}

// NewPersistentPosition returns a Persistent global-position Checkpoint
// for the named subscription, seeded from the Store when a value had
// been persisted by a previous run.
func NewPersistentPosition(ctx context.Context, store Store, name string, l logger.Logger) (*Persistent, error) {
	value, ok, err := store.Read(ctx, name)
	if err != nil {
		return nil, err
	}

	inner := NewGlobalPosition()
	if ok {
		inner = FromPosition(eventstore.Position(value))
	}

	return &Persistent{Name: name, Inner: inner, Store: store, Logger: l}, nil
}

// NewPersistentRevision returns a Persistent stream-revision Checkpoint
// for the named subscription, seeded from the Store when a value had
// been persisted by a previous run.
func NewPersistentRevision(ctx context.Context, store Store, name string, l logger.Logger) (*Persistent, error) {
	value, ok, err := store.Read(ctx, name)
	if err != nil {
		return nil, err
	}

	inner := NewStreamRevision()
	if ok {
		inner = FromRevision(eventstore.Revision(value))
	}

	return &Persistent{Name: name, Inner: inner, Store: store, Logger: l}, nil
}

// Update records the delivered event on the wrapped Checkpoint, then
// persists the new value to the Store.
func (c *Persistent) Update(ev eventstore.RawEvent) {
	c.Inner.Update(ev)

	value, ok := c.value()
	if !ok {
		return
	}

	if err := c.Store.Write(context.Background(), c.Name, value); err != nil {
		logger.Error(c.Logger, "failed to persist checkpoint",
			logger.With("name", c.Name),
			logger.With("value", value),
			logger.With("error", err),
		)
	}
}

// Resume delegates to the wrapped Checkpoint.
func (c *Persistent) Resume() (eventstore.ResumeFrom, bool) {
	return c.Inner.Resume()
}

func (c *Persistent) value() (uint64, bool) {
	resume, ok := c.Inner.Resume()
	if !ok {
		return 0, false
	}

	switch v := resume.(type) {
	case eventstore.FromPosition:
		return uint64(v), true
	case eventstore.FromRevision:
		return uint64(v), true
	default:
		return 0, false
	}
}
