package otelsubvisor

import (
	"context"
	"fmt"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"

	"github.com/subvisor/subvisor/eventstore"
)

// Attribute keys used by the InstrumentedClient instrumentation.
const (
	TargetKey         attribute.Key = "subscription.target"
	StreamNameKey     attribute.Key = "subscription.stream_name"
	SequenceNumberKey attribute.Key = "event.sequence_number"
)

var _ eventstore.Client = &InstrumentedClient{}

// InstrumentedClient is a wrapper type over an eventstore.Client
// instance to provide instrumentation, in the form of metrics and
// traces using OpenTelemetry.
//
// Use NewInstrumentedClient for constructing a new instance of this type.
type InstrumentedClient struct {
	client eventstore.Client

	tracer            trace.Tracer
	eventsDelivered   metric.Int64Counter
	subscribeDuration metric.Int64Histogram
}

func (ic *InstrumentedClient) registerMetrics(meter metric.Meter) error {
	var err error

	if ic.eventsDelivered, err = meter.Int64Counter(
		"subvisor.client.events.delivered",
		metric.WithDescription("Number of events delivered to subscription handlers."),
	); err != nil {
		return fmt.Errorf("otelsubvisor.InstrumentedClient: failed to register metric: %w", err)
	}

	if ic.subscribeDuration, err = meter.Int64Histogram(
		"subvisor.client.subscribe.duration.milliseconds",
		metric.WithUnit("ms"),
		metric.WithDescription("Duration in milliseconds of Client.Subscribe calls performed."),
	); err != nil {
		return fmt.Errorf("otelsubvisor.InstrumentedClient: failed to register metric: %w", err)
	}

	return nil
}

// NewInstrumentedClient returns a wrapper type to provide OpenTelemetry
// instrumentation (metrics and traces) around an eventstore.Client.
//
// An error is returned if metrics could not be registered.
func NewInstrumentedClient(client eventstore.Client, options ...Option) (*InstrumentedClient, error) {
	cfg := newConfig(options...)

	ic := &InstrumentedClient{
		client: client,
		tracer: cfg.tracer(),
	}

	if err := ic.registerMetrics(cfg.meter()); err != nil {
		return nil, err
	}

	return ic, nil
}

// Config implements the eventstore.Client interface.
func (ic *InstrumentedClient) Config() eventstore.Config {
	return ic.client.Config()
}

// Subscribe implements the eventstore.Client interface, recording a
// span for the lifetime of the subscribe call and counting the events
// delivered through it.
func (ic *InstrumentedClient) Subscribe(
	ctx context.Context,
	target eventstore.Target,
	opts eventstore.SubscribeOptions,
	handler eventstore.EventHandler,
) error {
	attributes := targetAttributes(target)

	ctx, span := ic.tracer.Start(ctx, "Client.Subscribe", trace.WithAttributes(attributes...))
	defer span.End()

	start := time.Now()

	wrapped := func(ctx context.Context, ev eventstore.RawEvent) error {
		ic.eventsDelivered.Add(ctx, 1, metric.WithAttributes(attributes...))
		return handler(ctx, ev)
	}

	err := ic.client.Subscribe(ctx, target, opts, wrapped)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}

	ic.subscribeDuration.Record(ctx,
		time.Since(start).Milliseconds(),
		metric.WithAttributes(attributes...),
	)

	return err
}

func targetAttributes(target eventstore.Target) []attribute.KeyValue {
	switch t := target.(type) {
	case eventstore.TargetStream:
		return []attribute.KeyValue{
			TargetKey.String("stream"),
			StreamNameKey.String(t.Name),
		}
	default:
		return []attribute.KeyValue{TargetKey.String("all")}
	}
}
