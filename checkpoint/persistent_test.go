package checkpoint_test

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/subvisor/subvisor/checkpoint"
	"github.com/subvisor/subvisor/eventstore"
)

// fakeStore is an in-memory checkpoint.Store recording every write.
type fakeStore struct {
	mx       sync.Mutex
	values   map[string]uint64
	writeErr error
}

func newFakeStore() *fakeStore {
	return &fakeStore{values: make(map[string]uint64)}
}

func (s *fakeStore) Read(_ context.Context, name string) (uint64, bool, error) {
	s.mx.Lock()
	defer s.mx.Unlock()

	value, ok := s.values[name]

	return value, ok, nil
}

func (s *fakeStore) Write(_ context.Context, name string, value uint64) error {
	if s.writeErr != nil {
		return s.writeErr
	}

	s.mx.Lock()
	defer s.mx.Unlock()

	s.values[name] = value

	return nil
}

func TestPersistentPosition(t *testing.T) {
	ctx := context.Background()

	t.Run("starts empty when nothing has been persisted", func(t *testing.T) {
		cp, err := checkpoint.NewPersistentPosition(ctx, newFakeStore(), "orders", nil)
		require.NoError(t, err)

		_, ok := cp.Resume()
		assert.False(t, ok)
	})

	t.Run("seeds from a previously persisted value", func(t *testing.T) {
		store := newFakeStore()
		store.values["orders"] = 42

		cp, err := checkpoint.NewPersistentPosition(ctx, store, "orders", nil)
		require.NoError(t, err)

		resume, ok := cp.Resume()
		assert.True(t, ok)
		assert.Equal(t, eventstore.FromPosition(42), resume)
	})

	t.Run("writes every update through to the store", func(t *testing.T) {
		store := newFakeStore()

		cp, err := checkpoint.NewPersistentPosition(ctx, store, "orders", nil)
		require.NoError(t, err)

		cp.Update(eventstore.RawEvent{Position: 7, Revision: 2})

		value, ok, err := store.Read(ctx, "orders")
		require.NoError(t, err)
		assert.True(t, ok)
		assert.Equal(t, uint64(7), value)
	})

	t.Run("a failed write keeps the in-memory value authoritative", func(t *testing.T) {
		store := newFakeStore()
		store.writeErr = errors.New("connection refused")

		cp, err := checkpoint.NewPersistentPosition(ctx, store, "orders", nil)
		require.NoError(t, err)

		cp.Update(eventstore.RawEvent{Position: 7})

		resume, ok := cp.Resume()
		assert.True(t, ok)
		assert.Equal(t, eventstore.FromPosition(7), resume)
	})
}

func TestPersistentRevision(t *testing.T) {
	ctx := context.Background()
	store := newFakeStore()

	cp, err := checkpoint.NewPersistentRevision(ctx, store, "orders", nil)
	require.NoError(t, err)

	cp.Update(eventstore.RawEvent{Position: 9, Revision: 4})

	resume, ok := cp.Resume()
	assert.True(t, ok)
	assert.Equal(t, eventstore.FromRevision(4), resume)

	value, ok, err := store.Read(ctx, "orders")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, uint64(4), value)
}
