package status

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"

	"github.com/nerrad567/onroad-manager/internal/infrastructure/influxdb"
	"github.com/nerrad567/onroad-manager/internal/infrastructure/mqtt"
)

// Publisher delivers a ManagerState.
type Publisher interface {
	Publish(ctx context.Context, state ManagerState) error
}

// PublisherFunc adapts a function to Publisher.
type PublisherFunc func(ctx context.Context, state ManagerState) error

// Publish implements Publisher.
func (f PublisherFunc) Publish(ctx context.Context, state ManagerState) error {
	return f(ctx, state)
}

// Multi publishes to every publisher in order. A failing publisher does not
// stop the others; their errors are joined.
type Multi []Publisher

// Publish implements Publisher.
func (m Multi) Publish(ctx context.Context, state ManagerState) error {
	var errs []error
	for _, p := range m {
		if p == nil {
			continue
		}
		if err := p.Publish(ctx, state); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// MQTTClient is the part of the MQTT client the publisher needs.
type MQTTClient interface {
	Publish(topic string, payload []byte, qos byte, retained bool) error
}

// MQTTPublisher sends ManagerState as retained JSON so a subscriber that
// connects between ticks still sees the last state.
type MQTTPublisher struct {
	client MQTTClient
	topic  string
	qos    byte
}

// NewMQTTPublisher creates a publisher on the managerState topic.
func NewMQTTPublisher(client MQTTClient, qos byte) *MQTTPublisher {
	return &MQTTPublisher{
		client: client,
		topic:  mqtt.Topics{}.ManagerState(),
		qos:    qos,
	}
}

// Publish implements Publisher.
func (p *MQTTPublisher) Publish(_ context.Context, state ManagerState) error {
	payload, err := json.Marshal(state)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrEncode, err)
	}
	if err := p.client.Publish(p.topic, payload, p.qos, true); err != nil {
		return fmt.Errorf("%w: mqtt: %w", ErrPublish, err)
	}
	return nil
}

// Latest keeps the most recent ManagerState in memory.
//
// Thread Safety:
//   - All methods are safe for concurrent use.
type Latest struct {
	mu    sync.RWMutex
	state ManagerState
	ok    bool
}

// NewLatest creates an empty holder.
func NewLatest() *Latest {
	return &Latest{}
}

// Publish implements Publisher.
func (l *Latest) Publish(_ context.Context, state ManagerState) error {
	l.mu.Lock()
	l.state = state.Clone()
	l.ok = true
	l.mu.Unlock()
	return nil
}

// Current returns a copy of the last state and whether one was published.
func (l *Latest) Current() (ManagerState, bool) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.state.Clone(), l.ok
}

// Broadcaster pushes a payload to subscribers of a channel.
type Broadcaster interface {
	Broadcast(channel string, payload any)
}

// HubChannel is the WebSocket channel managerState is broadcast on.
const HubChannel = "manager.state"

// HubPublisher broadcasts ManagerState to WebSocket clients.
type HubPublisher struct {
	hub Broadcaster
}

// NewHubPublisher creates a publisher over hub.
func NewHubPublisher(hub Broadcaster) *HubPublisher {
	return &HubPublisher{hub: hub}
}

// Publish implements Publisher. Delivery is best effort.
func (p *HubPublisher) Publish(_ context.Context, state ManagerState) error {
	p.hub.Broadcast(HubChannel, state)
	return nil
}

// PointWriter is the part of the InfluxDB client the recorder needs.
type PointWriter interface {
	WritePoint(measurement string, tags map[string]string, fields map[string]any)
}

// InfluxRecorder writes one loop point and one point per process each tick.
type InfluxRecorder struct {
	writer PointWriter
}

// NewInfluxRecorder creates a recorder over writer.
func NewInfluxRecorder(writer PointWriter) *InfluxRecorder {
	return &InfluxRecorder{writer: writer}
}

// Publish implements Publisher. Writes are batched by the client and never fail here.
func (r *InfluxRecorder) Publish(_ context.Context, state ManagerState) error {
	alive, desired := state.Counts()
	fields := map[string]any{
		"started":   state.Started,
		"alive":     alive,
		"desired":   desired,
		"processes": len(state.Processes),
	}
	if state.TickLatency != nil {
		fields["tick_p50_ms"] = state.TickLatency.P50
		fields["tick_p99_ms"] = state.TickLatency.P99
	}
	r.writer.WritePoint(influxdb.MeasurementLoop, map[string]string{"run_id": state.RunID}, fields)

	for _, p := range state.Processes {
		r.writer.WritePoint(influxdb.MeasurementProcess,
			map[string]string{
				"run_id":  state.RunID,
				"process": p.Name,
				"kind":    p.Kind,
			},
			map[string]any{
				"running":           p.Alive,
				"should_be_running": p.ShouldBeRunning,
				"exit_code":         p.ExitCode,
				"restarts":          p.Restarts,
				"pid":               p.PID,
			},
		)
	}
	return nil
}
