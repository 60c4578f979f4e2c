package event

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/nerrad567/homectl-core/internal/infrastructure/mqtt"
)

// sinkTimeout bounds delivery of one event to one sink.
const sinkTimeout = 5 * time.Second

// Logger defines the logging interface used by the Forwarder.
type Logger interface {
	Debug(msg string, args ...any)
	Warn(msg string, args ...any)
}

type noopLogger struct{}

func (noopLogger) Debug(string, ...any) {}
func (noopLogger) Warn(string, ...any)  {}

// Sink receives events from a Forwarder.
type Sink interface {
	Publish(ctx context.Context, ev Event) error
}

// SinkFunc adapts a function to the Sink interface.
type SinkFunc func(ctx context.Context, ev Event) error

// Publish implements Sink.
func (f SinkFunc) Publish(ctx context.Context, ev Event) error {
	return f(ctx, ev)
}

// Forwarder is the single consumer of a Channel. It hands every event to
// each sink in order; a failing sink is logged and skipped.
type Forwarder struct {
	ch     *Channel
	sinks  []Sink
	logger Logger
}

// NewForwarder creates a forwarder for ch. logger may be nil.
func NewForwarder(ch *Channel, logger Logger, sinks ...Sink) *Forwarder {
	if logger == nil {
		logger = noopLogger{}
	}
	return &Forwarder{ch: ch, sinks: sinks, logger: logger}
}

// Run consumes events until ctx is cancelled or the channel is closed.
// On close, events already buffered are still delivered.
func (f *Forwarder) Run(ctx context.Context) {
	events := f.ch.Events()
	for {
		select {
		case <-ctx.Done():
			return
		case ev := <-events:
			f.deliver(ctx, ev)
		case <-f.ch.Done():
			f.drain(ctx)
			return
		}
	}
}

func (f *Forwarder) drain(ctx context.Context) {
	events := f.ch.Events()
	for {
		select {
		case ev := <-events:
			f.deliver(ctx, ev)
		default:
			return
		}
	}
}

func (f *Forwarder) deliver(ctx context.Context, ev Event) {
	f.logger.Debug("forwarding event",
		"type", ev.Type,
		"integration_id", ev.IntegrationID,
		"device_id", ev.DeviceID(),
	)
	for _, sink := range f.sinks {
		sinkCtx, cancel := context.WithTimeout(ctx, sinkTimeout)
		err := sink.Publish(sinkCtx, ev)
		cancel()
		if err != nil {
			f.logger.Warn("event sink failed",
				"type", ev.Type,
				"integration_id", ev.IntegrationID,
				"error", err,
			)
		}
	}
}

// Publisher is the subset of the MQTT client used by MQTTSink.
type Publisher interface {
	Publish(topic string, payload []byte, qos byte, retained bool) error
}

// MQTTSink publishes events as JSON to homectl/event/{integration}/{device}.
// Device refreshes are retained so new subscribers see the last known state.
type MQTTSink struct {
	publisher Publisher
	qos       byte
}

// NewMQTTSink creates a sink publishing with the given QoS.
func NewMQTTSink(publisher Publisher, qos byte) *MQTTSink {
	return &MQTTSink{publisher: publisher, qos: qos}
}

// Publish implements Sink.
func (s *MQTTSink) Publish(_ context.Context, ev Event) error {
	payload, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("marshalling event: %w", err)
	}
	topic := mqtt.Topics{}.IntegrationEvent(ev.IntegrationID, ev.DeviceID())
	retained := ev.Type == TypeDeviceRefresh
	return s.publisher.Publish(topic, payload, s.qos, retained)
}
