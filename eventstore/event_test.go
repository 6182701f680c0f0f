package eventstore_test

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/subvisor/subvisor/eventstore"
)

func TestToggleResolve(t *testing.T) {
	assert.True(t, eventstore.ToggleDefault.Resolve(true))
	assert.False(t, eventstore.ToggleDefault.Resolve(false))
	assert.True(t, eventstore.ToggleOn.Resolve(false))
	assert.False(t, eventstore.ToggleOff.Resolve(true))
}

func TestSubscribeOptionsClone(t *testing.T) {
	opts := eventstore.SubscribeOptions{
		From:  eventstore.FromPosition(10),
		Extra: map[string]any{"resolveLinks": true},
	}

	clone := opts.Clone()
	clone.Extra["resolveLinks"] = false

	assert.Equal(t, true, opts.Extra["resolveLinks"])
	assert.Equal(t, eventstore.FromPosition(10), clone.From)
}

// xorDecryptor is a toy Decryptor flipping every payload byte with a key.
type xorDecryptor struct{ key byte }

func (d xorDecryptor) Decrypt(data []byte) ([]byte, error) {
	out := make([]byte, len(data))
	for i, b := range data {
		out[i] = b ^ d.key
	}

	return out, nil
}

type failingDecryptor struct{ err error }

func (d failingDecryptor) Decrypt([]byte) ([]byte, error) { return nil, d.err }

func encrypt(key byte, data []byte) []byte {
	out, _ := xorDecryptor{key: key}.Decrypt(data)
	return out
}

func TestConfigResolve(t *testing.T) {
	raw := eventstore.RawEvent{
		Stream:   "orders",
		Type:     "OrderPlaced",
		Data:     []byte(`{"amount":10}`),
		Position: 1,
		Revision: 1,
	}

	t.Run("deserializes by default", func(t *testing.T) {
		ev, err := eventstore.Config{}.Resolve(raw, eventstore.ToggleDefault, eventstore.ToggleDefault)

		require.NoError(t, err)
		assert.Equal(t, map[string]any{"amount": float64(10)}, ev.Payload)
	})

	t.Run("skipping deserialization leaves the raw bytes", func(t *testing.T) {
		ev, err := eventstore.Config{}.Resolve(raw, eventstore.ToggleOn, eventstore.ToggleDefault)

		require.NoError(t, err)
		assert.Nil(t, ev.Payload)
		assert.Equal(t, raw.Data, ev.Data)
	})

	t.Run("a subscription override beats the connection default", func(t *testing.T) {
		config := eventstore.Config{SkipDeserialization: true}

		ev, err := config.Resolve(raw, eventstore.ToggleOff, eventstore.ToggleDefault)

		require.NoError(t, err)
		assert.Equal(t, map[string]any{"amount": float64(10)}, ev.Payload)
	})

	t.Run("decrypts before deserializing", func(t *testing.T) {
		config := eventstore.Config{Decryptor: xorDecryptor{key: 0x2a}}

		encrypted := raw
		encrypted.Data = encrypt(0x2a, raw.Data)

		ev, err := config.Resolve(encrypted, eventstore.ToggleDefault, eventstore.ToggleDefault)

		require.NoError(t, err)
		assert.Equal(t, raw.Data, ev.Data)
		assert.Equal(t, map[string]any{"amount": float64(10)}, ev.Payload)
	})

	t.Run("skipping decryption leaves the payload encrypted", func(t *testing.T) {
		config := eventstore.Config{Decryptor: xorDecryptor{key: 0x2a}}

		encrypted := raw
		encrypted.Data = encrypt(0x2a, raw.Data)

		ev, err := config.Resolve(encrypted, eventstore.ToggleOn, eventstore.ToggleOn)

		require.NoError(t, err)
		assert.Equal(t, encrypted.Data, ev.Data)
		assert.Nil(t, ev.Payload)
	})

	t.Run("propagates decryption failures", func(t *testing.T) {
		expectedErr := errors.New("wrong key")
		config := eventstore.Config{Decryptor: failingDecryptor{err: expectedErr}}

		_, err := config.Resolve(raw, eventstore.ToggleDefault, eventstore.ToggleDefault)
		assert.ErrorIs(t, err, expectedErr)
	})

	t.Run("fails on payloads that are not valid JSON", func(t *testing.T) {
		invalid := raw
		invalid.Data = []byte("not-json")

		_, err := eventstore.Config{}.Resolve(invalid, eventstore.ToggleDefault, eventstore.ToggleDefault)
		assert.Error(t, err)
	})
}
