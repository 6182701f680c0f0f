// Package checkpoint tracks the last position observed by a
// subscription, so that delivery can resume near where it left off
// after a stop, a crash, or a watchdog restart.
package checkpoint

import (
	"sync"

	"github.com/subvisor/subvisor/eventstore"
)

// Checkpoint records the progress of a subscription over an Event
// Stream, in a form the event store client can resume from.
//
// Update is invoked by the subscription's listener once per delivered
// event, before the event reaches the user handler. Resume renders the
// recorded value as the client's resume option; the second return value
// reports whether any value has been recorded yet; when false, the
// subscription starts from the beginning (or the store default).
type Checkpoint interface {
	Update(ev eventstore.RawEvent)
	Resume() (eventstore.ResumeFrom, bool)
}

var (
	_ Checkpoint = &GlobalPosition{}
	_ Checkpoint = &StreamRevision{}
)

// GlobalPosition is a Checkpoint tracking the global position of the
// last delivered event, used by subscriptions targeting all streams.
type GlobalPosition struct {
	mx       sync.Mutex
	position eventstore.Position
	set      bool
}

// NewGlobalPosition returns an empty global-position Checkpoint.
func NewGlobalPosition() *GlobalPosition {
	return &GlobalPosition{}
}

// FromPosition returns a global-position Checkpoint seeded with the
// provided value, so that delivery resumes right after it.
func FromPosition(position eventstore.Position) *GlobalPosition {
	return &GlobalPosition{position: position, set: true}
}

// Update records the global position of the delivered event.
func (c *GlobalPosition) Update(ev eventstore.RawEvent) {
	c.mx.Lock()
	defer c.mx.Unlock()

	c.position = ev.Position
	c.set = true
}

// Resume renders the recorded position as an eventstore.FromPosition
// option, reporting false when no event has been recorded yet.
func (c *GlobalPosition) Resume() (eventstore.ResumeFrom, bool) {
	c.mx.Lock()
	defer c.mx.Unlock()

	if !c.set {
		return nil, false
	}

	return eventstore.FromPosition(c.position), true
}

// StreamRevision is a Checkpoint tracking the stream-local revision of
// the last delivered event, used by single-stream subscriptions.
type StreamRevision struct {
	mx       sync.Mutex
	revision eventstore.Revision
	set      bool
}

// NewStreamRevision returns an empty stream-revision Checkpoint.
func NewStreamRevision() *StreamRevision {
	return &StreamRevision{}
}

// FromRevision returns a stream-revision Checkpoint seeded with the
// provided value, so that delivery resumes right after it.
func FromRevision(revision eventstore.Revision) *StreamRevision {
	return &StreamRevision{revision: revision, set: true}
}

// Update records the stream revision of the delivered event.
func (c *StreamRevision) Update(ev eventstore.RawEvent) {
	c.mx.Lock()
	defer c.mx.Unlock()

	c.revision = ev.Revision
	c.set = true
}

// Resume renders the recorded revision as an eventstore.FromRevision
// option, reporting false when no event has been recorded yet.
func (c *StreamRevision) Resume() (eventstore.ResumeFrom, bool) {
	c.mx.Lock()
	defer c.mx.Unlock()

	if !c.set {
		return nil, false
	}

	return eventstore.FromRevision(c.revision), true
}
