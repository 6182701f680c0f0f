package subvisor_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"
	"go.uber.org/zap"

	"github.com/subvisor/subvisor"
	"github.com/subvisor/subvisor/checkpoint"
	"github.com/subvisor/subvisor/eventstore"
	"github.com/subvisor/subvisor/eventstore/inmemory"
	"github.com/subvisor/subvisor/extension/zaplogger"
)

func TestSubscriptions(t *testing.T) {
	suite.Run(t, new(RegistrySuite))
}

type RegistrySuite struct {
	suite.Suite

	store    *inmemory.EventStore
	registry *subvisor.Subscriptions
}

func (s *RegistrySuite) SetupTest() {
	logger, err := zap.NewDevelopment()
	s.Require().NoError(err)

	s.store = inmemory.NewEventStore(eventstore.Config{})
	s.registry = subvisor.NewSubscriptions(s.store, zaplogger.Wrap(logger))
}

func (s *RegistrySuite) TearDownTest() {
	s.Require().NoError(s.registry.StopAll(context.Background(), waitTimeout))
}

func (s *RegistrySuite) discard(context.Context, eventstore.Event) error { return nil }

func (s *RegistrySuite) TestCreateRejectsTakenNames() {
	t := s.T()

	first, err := s.registry.Create("orders", checkpoint.FromRevision(10), subvisor.Setup{Handler: s.discard})
	require.NoError(t, err)
	assert.Equal(t, subvisor.StatusRunning, first.State().Status())

	_, err = s.registry.Create("orders", checkpoint.NewStreamRevision(), subvisor.Setup{Handler: s.discard})
	assert.ErrorIs(t, err, subvisor.ErrNameTaken)

	// Once the first subscription has been deleted, the name is free again.
	first.StopListening()
	require.NoError(t, first.WaitFor(context.Background(), waitTimeout, subvisor.StatusStopped))
	require.NoError(t, s.registry.Delete("orders"))

	second, err := s.registry.Create("orders", checkpoint.NewStreamRevision(), subvisor.Setup{Handler: s.discard})
	require.NoError(t, err)
	assert.Equal(t, subvisor.StatusRunning, second.State().Status())
}

func (s *RegistrySuite) TestDeleteRequiresAStoppedListener() {
	t := s.T()

	sub, err := s.registry.Create("orders", checkpoint.NewStreamRevision(), subvisor.Setup{Handler: s.discard})
	require.NoError(t, err)

	assert.ErrorIs(t, s.registry.Delete("orders"), subvisor.ErrRunnerAlive)

	sub.StopListening()
	require.NoError(t, sub.WaitFor(context.Background(), waitTimeout, subvisor.StatusStopped))

	assert.NoError(t, s.registry.Delete("orders"))
	assert.NotContains(t, s.registry.All(), "orders")

	// Deleting an unknown name is a no-op.
	assert.NoError(t, s.registry.Delete("orders"))
}

func (s *RegistrySuite) TestCreateForAllDeliversAcrossStreams() {
	t := s.T()
	ctx := context.Background()

	received := make(chan eventstore.Event, 16)

	sub, err := s.registry.CreateForAll(checkpoint.NewGlobalPosition(), subvisor.Setup{
		Handler: func(_ context.Context, ev eventstore.Event) error {
			received <- ev
			return nil
		},
	})
	require.NoError(t, err)
	assert.Contains(t, s.registry.All(), subvisor.AllStreamsName)

	_, err = s.store.Append(ctx, "orders", inmemory.UnsavedEvent{Type: "OrderPlaced", Data: []byte(`{"amount":10}`)})
	require.NoError(t, err)
	_, err = s.store.Append(ctx, "payments", inmemory.UnsavedEvent{Type: "PaymentTaken", Data: []byte(`{"amount":10}`)})
	require.NoError(t, err)

	first := receiveEvent(t, received)
	assert.Equal(t, "orders", first.Stream)
	assert.Equal(t, eventstore.Position(1), first.Position)

	second := receiveEvent(t, received)
	assert.Equal(t, "payments", second.Stream)
	assert.Equal(t, eventstore.Position(2), second.Position)

	resume, ok := sub.Checkpoint().Resume()
	assert.True(t, ok)
	assert.Equal(t, eventstore.FromPosition(2), resume)
}

func (s *RegistrySuite) TestStopAll() {
	t := s.T()

	first, err := s.registry.Create("orders", checkpoint.NewStreamRevision(), subvisor.Setup{Handler: s.discard})
	require.NoError(t, err)

	second, err := s.registry.Create("payments", checkpoint.NewStreamRevision(), subvisor.Setup{Handler: s.discard})
	require.NoError(t, err)

	require.NoError(t, s.registry.StopAll(context.Background(), waitTimeout))

	assert.Equal(t, subvisor.StatusStopped, first.State().Status())
	assert.Equal(t, subvisor.StatusStopped, second.State().Status())

	// A second StopAll has nothing left to stop.
	require.NoError(t, s.registry.StopAll(context.Background(), time.Second))
}
