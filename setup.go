package subvisor

import (
	"context"

	"github.com/subvisor/subvisor/eventstore"
)

// EventHandler is the user-supplied callback receiving resolved events.
//
// Returning a non-nil error is fatal for the listener: the Subscription
// transitions to StatusDead and a WatchDog may later restart it,
// resuming after the last checkpointed event.
type EventHandler func(ctx context.Context, ev eventstore.Event) error

// Setup is the immutable descriptor of subscription intent: what to
// subscribe to, how, and which handler to deliver events to.
//
// A Subscription derives a fresh runtime configuration from its Setup
// on every (re)start, so restarts never mutate the original descriptor.
type Setup struct {
	// Target is the Event Stream (or all streams) to subscribe to.
	Target eventstore.Target

	// Options configures the subscribe call. Options.From is only used
	// until the Subscription's checkpoint captures a value; from then
	// on the checkpoint drives resumption.
	Options eventstore.SubscribeOptions

	// Handler receives every resolved event.
	Handler EventHandler
}

func (s Setup) clone() Setup {
	s.Options = s.Options.Clone()
	return s
}
