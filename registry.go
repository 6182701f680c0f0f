package subvisor

import (
	"context"
	"fmt"
	"time"

	"github.com/puzpuzpuz/xsync/v4"
	"golang.org/x/sync/errgroup"

	"github.com/subvisor/subvisor/checkpoint"
	"github.com/subvisor/subvisor/eventstore"
	"github.com/subvisor/subvisor/logger"
)

// AllStreamsName is the reserved registry name used by CreateForAll for
// the subscription covering every Event Stream in the store.
const AllStreamsName = "$all"

// Subscriptions creates and tracks a named collection of Subscription
// instances bound to a single event store client.
//
// The registry is safe for concurrent use: a WatchDog may enumerate it
// while subscriptions are created and deleted.
type Subscriptions struct {
	client  eventstore.Client
	logger  logger.Logger
	options []Option

	subs *xsync.Map[string, *Subscription]
}

// NewSubscriptions returns an empty registry. The provided options are
// applied to every Subscription the registry creates, in addition to
// its logger.
func NewSubscriptions(client eventstore.Client, l logger.Logger, options ...Option) *Subscriptions {
	return &Subscriptions{
		client:  client,
		logger:  l,
		options: append([]Option{WithLogger(l)}, options...),
		subs:    xsync.NewMap[string, *Subscription](),
	}
}

// Create constructs, registers and starts a Subscription for the single
// named Event Stream, resuming from the provided checkpoint.
//
// It fails with ErrNameTaken when a subscription is already registered
// under the same name; re-creation is possible once the prior entry has
// been removed with Delete.
func (r *Subscriptions) Create(name string, cp checkpoint.Checkpoint, setup Setup) (*Subscription, error) {
	setup.Target = eventstore.TargetStream{Name: name}
	return r.create(name, cp, setup)
}

// CreateForAll constructs, registers and starts the Subscription
// covering all Event Streams, under the reserved AllStreamsName.
func (r *Subscriptions) CreateForAll(cp checkpoint.Checkpoint, setup Setup) (*Subscription, error) {
	setup.Target = eventstore.TargetAll{}
	return r.create(AllStreamsName, cp, setup)
}

func (r *Subscriptions) create(name string, cp checkpoint.Checkpoint, setup Setup) (*Subscription, error) {
	sub := NewSubscription(name, r.client, cp, setup, r.options...)

	if _, taken := r.subs.LoadOrStore(name, sub); taken {
		return nil, fmt.Errorf("%w: %q", ErrNameTaken, name)
	}

	if err := sub.Listen(); err != nil {
		r.subs.Delete(name)
		return nil, fmt.Errorf("subvisor.Subscriptions: failed to start subscription %q: %w", name, err)
	}

	return sub, nil
}

// All returns a snapshot of the current name to Subscription mapping.
func (r *Subscriptions) All() map[string]*Subscription {
	out := make(map[string]*Subscription)

	r.subs.Range(func(name string, sub *Subscription) bool {
		out[name] = sub
		return true
	})

	return out
}

// Delete disposes of the named Subscription and removes it from the
// registry, allowing the name to be reused.
//
// It fails with ErrRunnerAlive when the subscription's listener is
// still running; it is a no-op when the name is not registered.
func (r *Subscriptions) Delete(name string) error {
	sub, ok := r.subs.Load(name)
	if !ok {
		return nil
	}

	if err := sub.Dispose(); err != nil {
		return err
	}

	r.subs.Delete(name)

	logger.Debug(r.logger, "subscription deleted", logger.With("name", name))

	return nil
}

// StopAll requests a stop of every running Subscription and waits until
// all of them reached StatusStopped (or StatusDead, for listeners that
// failed while halting), bounded by the provided timeout per the
// WaitFor policy.
func (r *Subscriptions) StopAll(ctx context.Context, timeout time.Duration) error {
	group, ctx := errgroup.WithContext(ctx)

	for _, sub := range r.All() {
		if sub.State().Status() != StatusRunning {
			continue
		}

		sub.StopListening()

		group.Go(func() error {
			return sub.WaitFor(ctx, timeout, StatusStopped, StatusDead)
		})
	}

	return group.Wait()
}
