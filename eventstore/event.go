package eventstore

import (
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
)

// RawEvent is an event as delivered by the event store, before any
// decryption or deserialization has been applied to its payload.
//
// Position and Revision are the fields Checkpoints read, which is why
// subscriptions receive events raw and resolve them afterwards.
type RawEvent struct {
	ID       uuid.UUID
	Stream   string
	Type     string
	Data     []byte
	Metadata map[string]string

	// Position is the global sequence number of the event in the store.
	Position Position

	// Revision is the sequence number of the event within its stream.
	Revision Revision
}

// Event is a RawEvent whose payload has been resolved, i.e. run through
// the connection's decryption and deserialization policy.
type Event struct {
	RawEvent

	// Payload is the deserialized event payload, or nil when
	// deserialization was skipped (in which case Data holds the
	// decrypted raw bytes).
	Payload any
}

// Decryptor decrypts raw event payloads.
type Decryptor interface {
	Decrypt(data []byte) ([]byte, error)
}

// Config is the connection-level configuration of a Client, exposing
// the default payload-handling flags consulted when a subscription does
// not specify its own.
type Config struct {
	// SkipDeserialization, when set, leaves payloads as raw bytes
	// instead of deserializing them from JSON.
	SkipDeserialization bool

	// SkipDecryption, when set, leaves payloads encrypted.
	SkipDecryption bool

	// Decryptor decrypts payloads when decryption is not skipped.
	// A nil Decryptor means payloads are stored in the clear.
	Decryptor Decryptor
}

// Resolve applies the connection's payload policy to a raw event,
// honoring the per-subscription overrides provided: decryption first
// (unless skipped, or no Decryptor is configured), then JSON
// deserialization (unless skipped).
//
// This is the same policy the Client would apply if the subscription
// had not deferred deserialization to the supervisor layer.
func (c Config) Resolve(raw RawEvent, skipDeserialization, skipDecryption Toggle) (Event, error) {
	ev := Event{RawEvent: raw}

	if !skipDecryption.Resolve(c.SkipDecryption) && c.Decryptor != nil {
		data, err := c.Decryptor.Decrypt(ev.Data)
		if err != nil {
			return Event{}, fmt.Errorf("eventstore.Config: failed to decrypt event payload: %w", err)
		}

		ev.Data = data
	}

	if skipDeserialization.Resolve(c.SkipDeserialization) {
		return ev, nil
	}

	if err := json.Unmarshal(ev.Data, &ev.Payload); err != nil {
		return Event{}, fmt.Errorf("eventstore.Config: failed to deserialize event payload: %w", err)
	}

	return ev, nil
}
