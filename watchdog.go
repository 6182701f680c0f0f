package subvisor

import (
	"context"
	"time"

	"github.com/subvisor/subvisor/logger"
)

// DefaultWatchInterval is the interval between WatchDog supervision
// passes, if not specified.
const DefaultWatchInterval = 5 * time.Second

// Lister exposes a set of named Subscriptions to supervise. It is
// implemented by the Subscriptions registry and by List.
type Lister interface {
	All() map[string]*Subscription
}

// List is a directly-supplied set of Subscriptions to supervise,
// for callers not using a registry.
type List []*Subscription

// All returns the subscriptions keyed by their name.
func (l List) All() map[string]*Subscription {
	out := make(map[string]*Subscription, len(l))

	for _, sub := range l {
		out[sub.Name()] = sub
	}

	return out
}

// WatchDog is a periodic supervisor restarting dead Subscriptions.
//
// Each pass enumerates every Subscription tracked by the configured
// Sources and calls Listen on those whose state is StatusDead, so that
// delivery resumes from their last checkpointed value. Subscriptions in
// any other state are left untouched. A failed restart is logged and
// never interrupts the pass or the watchdog itself.
type WatchDog struct {
	// Sources are the registries (or direct lists) to supervise.
	Sources []Lister

	// Interval is the time between supervision passes.
	//
	// Defaults to DefaultWatchInterval if unspecified or a
	// non-positive value has been provided.
	Interval time.Duration

	// Logger reports restarts and restart failures.
	Logger logger.Logger
}

// Run supervises the configured Sources until the context is canceled,
// returning the context error.
//
// Run is a blocking call: start it on its own goroutine.
func (w WatchDog) Run(ctx context.Context) error {
	ticker := time.NewTicker(w.interval())
	defer ticker.Stop()

	logger.Debug(w.Logger, "watchdog started", logger.With("interval", w.interval()))

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()

		case <-ticker.C:
			w.Check()
		}
	}
}

// Check performs a single supervision pass over every tracked
// Subscription, restarting the dead ones.
func (w WatchDog) Check() {
	for _, source := range w.Sources {
		for name, sub := range source.All() {
			if sub.State().Status() != StatusDead {
				continue
			}

			logger.Info(w.Logger, "watchdog restarting dead subscription",
				logger.With("name", name),
				logger.With("error", sub.State().Err()),
			)

			if err := sub.Listen(); err != nil {
				logger.Error(w.Logger, "watchdog failed to restart subscription",
					logger.With("name", name),
					logger.With("error", err),
				)
			}
		}
	}
}

func (w WatchDog) interval() time.Duration {
	if w.Interval <= 0 {
		return DefaultWatchInterval
	}

	return w.Interval
}
