// Package eventstore defines the collaborator contract between the
// subscription supervisor and an event store client implementation.
//
// The supervisor does not know how events are encoded or transmitted:
// it only relies on a Client to run a blocking subscribe call, deliver
// raw events to a handler, and surface fatal errors by returning them.
package eventstore

import "context"

// Position is the global sequence number of an event in the whole
// event store. Positions start from 1.
type Position uint64

// Revision is the sequence number of an event within a single stream.
// Revisions start from 1.
type Revision uint64

// Target represents the Event Stream(s) a subscribe call should attach to.
//
// Please note, this is a marker interface.
// The only two possible variants are TargetAll and TargetStream.
type Target interface {
	isTarget()
}

// TargetAll subscribes to all Events committed to the Event Store.
type TargetAll struct{}

func (TargetAll) isTarget() {
	// NOTE: this is a marker interface implementation.
}

// TargetStream subscribes to the Events of the single named Event Stream.
type TargetStream struct {
	Name string
}

func (TargetStream) isTarget() {
	// NOTE: this is a marker interface implementation.
}

// ResumeFrom represents the point in an Event Stream a subscribe call
// should resume delivery from.
//
// Please note, this is a marker interface. The possible variants are
// FromStart, FromPosition and FromRevision.
type ResumeFrom interface {
	isResumeFrom()
}

// FromStart delivers every Event from the beginning of the stream,
// which is also the behavior when no resume option is given.
type FromStart struct{}

func (FromStart) isResumeFrom() {
	// NOTE: this is a marker interface implementation.
}

// FromPosition delivers Events whose global Position is strictly greater
// than the one specified, i.e. it resumes right after a checkpointed event.
type FromPosition Position

func (FromPosition) isResumeFrom() {
	// NOTE: this is a marker interface implementation.
}

// FromRevision delivers Events whose stream Revision is strictly greater
// than the one specified. It is only meaningful when subscribing to a
// single stream: clients should reject it for a TargetAll subscription.
type FromRevision Revision

func (FromRevision) isResumeFrom() {
	// NOTE: this is a marker interface implementation.
}

// Toggle is a tri-state boolean used for per-subscription overrides of
// connection-level flags. ToggleDefault defers to the Config value.
type Toggle int8

const (
	// ToggleDefault defers to the connection-level Config default.
	ToggleDefault Toggle = iota
	// ToggleOn enables the flag regardless of the Config default.
	ToggleOn
	// ToggleOff disables the flag regardless of the Config default.
	ToggleOff
)

// Resolve returns the effective boolean value of the Toggle,
// falling back to the provided default when unset.
func (t Toggle) Resolve(def bool) bool {
	switch t {
	case ToggleOn:
		return true
	case ToggleOff:
		return false
	default:
		return def
	}
}

// SubscribeOptions carries the configuration of a single subscribe call.
//
// The zero value is valid: delivery starts from the beginning of the
// target and both skip flags defer to the connection defaults.
type SubscribeOptions struct {
	// From is the point to resume delivery from. nil means FromStart.
	From ResumeFrom

	// SkipDeserialization overrides the connection-level default for
	// skipping payload deserialization.
	SkipDeserialization Toggle

	// SkipDecryption overrides the connection-level default for
	// skipping payload decryption.
	SkipDecryption Toggle

	// Extra carries client-specific pass-through options that the
	// supervisor does not interpret.
	Extra map[string]any
}

// Clone returns a copy of the options with its own Extra map, so that
// callers can modify the copy without affecting the original.
func (o SubscribeOptions) Clone() SubscribeOptions {
	if o.Extra == nil {
		return o
	}

	extra := make(map[string]any, len(o.Extra))
	for k, v := range o.Extra {
		extra[k] = v
	}

	o.Extra = extra

	return o
}

// EventHandler is the callback a Client invokes once per delivered
// event, on the goroutine running the subscribe call.
//
// Returning a non-nil error stops the subscription, and the error is
// propagated out of the Subscribe call.
type EventHandler func(ctx context.Context, ev RawEvent) error

// Client is the event store connection the supervisor drives.
//
// Subscribe should be implemented as a synchronous method, returning
// only when the provided context is canceled (wrapping ctx.Err), the
// handler returns an error (propagated as-is or wrapped), or the
// underlying connection fails.
type Client interface {
	Subscribe(ctx context.Context, target Target, opts SubscribeOptions, handler EventHandler) error

	// Config returns the connection-level defaults consulted when a
	// subscription did not specify its own skip flags.
	Config() Config
}
