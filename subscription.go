package subvisor

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/subvisor/subvisor/checkpoint"
	"github.com/subvisor/subvisor/eventstore"
	"github.com/subvisor/subvisor/logger"
)

// Stop protocol timings: a stop request waits up to DefaultStopGracePeriod
// for the listener to terminate cooperatively, polling its handle at
// stopPollInterval, before detaching it forcefully.
const (
	DefaultStopGracePeriod = 5 * time.Second

	stopPollInterval = 100 * time.Millisecond
)

// Subscription is a live, resumable listener bound to one Event Stream
// (or all streams), delivering events to a user handler.
//
// A Subscription owns at most one listener goroutine at any time. The
// listener runs the blocking Client.Subscribe call; every delivered
// event first updates the Subscription's checkpoint, then is resolved
// and forwarded to the handler. See the package documentation for the
// resulting at-least-once delivery guarantee.
type Subscription struct {
	name       string
	client     eventstore.Client
	checkpoint checkpoint.Checkpoint
	setup      Setup
	state      *State
	logger     logger.Logger

	stopGracePeriod time.Duration

	mx           sync.Mutex
	cancelRunner context.CancelFunc
	runnerDone   chan struct{}
}

// NewSubscription returns a Subscription in StatusInitial, without
// starting it. A nil checkpoint defaults to an empty global-position
// checkpoint.
func NewSubscription(
	name string,
	client eventstore.Client,
	cp checkpoint.Checkpoint,
	setup Setup,
	options ...Option,
) *Subscription {
	if cp == nil {
		cp = checkpoint.NewGlobalPosition()
	}

	s := &Subscription{
		name:            name,
		client:          client,
		checkpoint:      cp,
		setup:           setup,
		state:           NewState(),
		stopGracePeriod: DefaultStopGracePeriod,
	}

	for _, option := range options {
		option(s)
	}

	return s
}

// Name returns the name the Subscription is registered under.
func (s *Subscription) Name() string { return s.name }

// State returns the Subscription's lifecycle state.
func (s *Subscription) State() *State { return s.state }

// Checkpoint returns the Subscription's checkpoint.
func (s *Subscription) Checkpoint() checkpoint.Checkpoint {
	s.mx.Lock()
	defer s.mx.Unlock()

	return s.checkpoint
}

// Alive reports whether the listener goroutine is currently running.
func (s *Subscription) Alive() bool {
	s.mx.Lock()
	defer s.mx.Unlock()

	return s.runnerAlive()
}

func (s *Subscription) runnerAlive() bool {
	if s.runnerDone == nil {
		return false
	}

	select {
	case <-s.runnerDone:
		return false
	default:
		return true
	}
}

// Listen starts the listener goroutine and transitions the Subscription
// to StatusRunning.
//
// Listen is idempotent: if a listener is already active the call
// returns immediately without starting a second one. Calling Listen on
// a dead Subscription is the restart path, resuming delivery from the
// last checkpointed value. Calling it on a stopped or disposed
// Subscription returns ErrSubscriptionClosed.
func (s *Subscription) Listen() error {
	s.mx.Lock()
	defer s.mx.Unlock()

	status := s.state.Status()

	if status.terminal() {
		return ErrSubscriptionClosed
	}

	// While halting, the stop monitor still owns the runner handle:
	// starting a new listener here would race with it. The stop is
	// already in flight, so this is treated like an active listener.
	if status == StatusHalting || s.runnerAlive() {
		return nil
	}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})

	s.cancelRunner = cancel
	s.runnerDone = done
	s.state.set(StatusRunning)

	go s.run(ctx, done)

	logger.Debug(s.logger, "subscription listening", logger.With("name", s.name))

	return nil
}

func (s *Subscription) run(ctx context.Context, done chan struct{}) {
	defer close(done)

	setup := s.setup.clone()
	handler := s.wrapHandler(setup)

	// Deserialization is deferred to the wrapped handler, which needs
	// the raw event to update the checkpoint first.
	opts := setup.Options
	opts.SkipDeserialization = eventstore.ToggleOn

	if from, ok := s.checkpoint.Resume(); ok {
		opts.From = from
	}

	err := s.client.Subscribe(ctx, setup.Target, opts, handler)

	switch {
	case err == nil, errors.Is(err, errHalted), errors.Is(err, context.Canceled):
		logger.Debug(s.logger, "subscription listener exited", logger.With("name", s.name))

	default:
		logger.Error(s.logger, "subscription listener died",
			logger.With("name", s.name),
			logger.With("error", err),
		)
		s.state.fail(err)
	}
}

// wrapHandler wraps the user handler with the cooperative cancellation
// check and checkpoint update that run on every delivered event.
//
// The wrapper executes inline with delivery and resolves the raw event
// applying the skip flags the caller originally specified, exactly as
// the client would have.
func (s *Subscription) wrapHandler(setup Setup) eventstore.EventHandler {
	config := s.client.Config()
	cp := s.checkpoint

	return func(ctx context.Context, raw eventstore.RawEvent) error {
		// Cancellation is cooperative and observed between event
		// deliveries, never mid-processing.
		if s.state.Status() != StatusRunning {
			return errHalted
		}

		cp.Update(raw)

		ev, err := config.Resolve(raw, setup.Options.SkipDeserialization, setup.Options.SkipDecryption)
		if err != nil {
			return err
		}

		return setup.Handler(ctx, ev)
	}
}

// StopListening requests an orderly shutdown of the listener and
// returns immediately.
//
// It is a no-op unless the Subscription is running. The Subscription
// transitions to StatusHalting and a monitor goroutine waits for the
// listener to terminate, up to the stop grace period; past that, the
// listener is detached and reaps itself at the next event delivery.
// The Subscription transitions to StatusStopped either way. Use
// WaitFor to synchronize on the transition.
func (s *Subscription) StopListening() {
	s.mx.Lock()
	defer s.mx.Unlock()

	if s.state.Status() != StatusRunning {
		return
	}

	s.state.set(StatusHalting)
	requested := time.Now()

	if s.cancelRunner != nil {
		s.cancelRunner()
	}

	logger.Debug(s.logger, "subscription halting", logger.With("name", s.name))

	go s.superviseStop(s.runnerDone, requested)
}

func (s *Subscription) superviseStop(done chan struct{}, requested time.Time) {
	deadline := requested.Add(s.stopGracePeriod)

	ticker := time.NewTicker(stopPollInterval)
	defer ticker.Stop()

wait:
	for {
		select {
		case <-done:
			break wait

		case <-ticker.C:
			if time.Now().Before(deadline) {
				continue
			}

			// Goroutines cannot be terminated from the outside: the
			// listener is detached here and reaps itself at the next
			// delivery, when the wrapped handler observes the state.
			logger.Error(s.logger, "subscription listener did not stop within grace period, detaching",
				logger.With("name", s.name),
				logger.With("gracePeriod", s.stopGracePeriod),
			)

			break wait
		}
	}

	s.mx.Lock()
	s.cancelRunner = nil
	s.runnerDone = nil
	s.mx.Unlock()

	logger.Info(s.logger, "subscription stopped", logger.With("name", s.name))

	s.state.set(StatusStopped)
}

// Dispose clears the Subscription's internal state and renders it
// unusable. It returns ErrRunnerAlive if the listener goroutine is
// still running.
func (s *Subscription) Dispose() error {
	s.mx.Lock()
	defer s.mx.Unlock()

	if s.runnerAlive() {
		return ErrRunnerAlive
	}

	s.state.set(StatusDisposed)
	s.setup = Setup{}
	s.checkpoint = nil
	s.cancelRunner = nil
	s.runnerDone = nil

	return nil
}

// WaitFor blocks until the Subscription's state reaches one of the
// target states, following the State.WaitFor timeout policy.
func (s *Subscription) WaitFor(ctx context.Context, timeout time.Duration, targets ...Status) error {
	return s.state.WaitFor(ctx, timeout, targets...)
}
