package status

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/nerrad567/onroad-manager/internal/infrastructure/influxdb"
	"github.com/nerrad567/onroad-manager/internal/infrastructure/mqtt"
	"github.com/nerrad567/onroad-manager/internal/supervisor"
)

func testState() ManagerState {
	return ManagerState{
		Valid:     true,
		RunID:     "run-1",
		Timestamp: time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC),
		Started:   true,
		Processes: []supervisor.ProcessState{
			{Name: "controlsd", Kind: "interpreted", PID: 42, Alive: true, ShouldBeRunning: true},
			{Name: "ui", Kind: "native", ShouldBeRunning: true, ExitCode: -9, Restarts: 1},
			{Name: "uploader", Kind: "interpreted"},
		},
	}
}

type fakeMQTT struct {
	topic    string
	payload  []byte
	qos      byte
	retained bool
	err      error
}

func (f *fakeMQTT) Publish(topic string, payload []byte, qos byte, retained bool) error {
	f.topic, f.payload, f.qos, f.retained = topic, payload, qos, retained
	return f.err
}

func TestManagerState_Counts(t *testing.T) {
	alive, desired := testState().Counts()
	if alive != 1 || desired != 2 {
		t.Errorf("Counts() = (%d, %d), want (1, 2)", alive, desired)
	}
}

func TestManagerState_Clone(t *testing.T) {
	orig := testState()
	orig.TickLatency = &Latency{P50: 1}
	c := orig.Clone()

	c.Processes[0].Alive = false
	c.TickLatency.P50 = 99

	if !orig.Processes[0].Alive {
		t.Error("Clone shares Processes with the original")
	}
	if orig.TickLatency.P50 != 1 {
		t.Error("Clone shares TickLatency with the original")
	}
}

func TestMQTTPublisher(t *testing.T) {
	client := &fakeMQTT{}
	p := NewMQTTPublisher(client, 1)

	if err := p.Publish(context.Background(), testState()); err != nil {
		t.Fatalf("Publish() error = %v", err)
	}
	if client.topic != (mqtt.Topics{}).ManagerState() {
		t.Errorf("topic = %q", client.topic)
	}
	if !client.retained || client.qos != 1 {
		t.Errorf("qos = %d retained = %v, want 1 retained", client.qos, client.retained)
	}

	var decoded map[string]any
	if err := json.Unmarshal(client.payload, &decoded); err != nil {
		t.Fatalf("payload is not JSON: %v", err)
	}
	if decoded["valid"] != true || decoded["runId"] != "run-1" {
		t.Errorf("payload = %s", client.payload)
	}
	procs, ok := decoded["processes"].([]any)
	if !ok || len(procs) != 3 {
		t.Fatalf("processes = %v", decoded["processes"])
	}
	first, _ := procs[0].(map[string]any)
	if first["name"] != "controlsd" || first["running"] != true || first["shouldBeRunning"] != true {
		t.Errorf("processes[0] = %v", first)
	}
	if _, ok := decoded["tickLatency"]; ok {
		t.Error("tickLatency present without measurements")
	}
}

func TestMQTTPublisher_Error(t *testing.T) {
	p := NewMQTTPublisher(&fakeMQTT{err: mqtt.ErrNotConnected}, 1)
	err := p.Publish(context.Background(), testState())
	if !errors.Is(err, ErrPublish) || !errors.Is(err, mqtt.ErrNotConnected) {
		t.Errorf("Publish() error = %v, want ErrPublish wrapping ErrNotConnected", err)
	}
}

func TestLatest(t *testing.T) {
	l := NewLatest()
	if _, ok := l.Current(); ok {
		t.Fatal("Current() ok before any publish")
	}

	state := testState()
	if err := l.Publish(context.Background(), state); err != nil {
		t.Fatal(err)
	}
	state.Processes[0].Name = "mutated"

	got, ok := l.Current()
	if !ok {
		t.Fatal("Current() not ok after publish")
	}
	if got.Processes[0].Name != "controlsd" {
		t.Errorf("Latest kept a reference to the caller's slice: %q", got.Processes[0].Name)
	}
}

func TestMulti(t *testing.T) {
	var calls []string
	record := func(name string, err error) Publisher {
		return PublisherFunc(func(context.Context, ManagerState) error {
			calls = append(calls, name)
			return err
		})
	}
	errA := errors.New("a failed")

	m := Multi{record("a", errA), nil, record("b", nil)}
	err := m.Publish(context.Background(), testState())

	if !errors.Is(err, errA) {
		t.Errorf("Publish() error = %v, want errA", err)
	}
	if len(calls) != 2 || calls[0] != "a" || calls[1] != "b" {
		t.Errorf("calls = %v, want [a b]", calls)
	}
}

type fakeHub struct {
	channel string
	payload any
}

func (f *fakeHub) Broadcast(channel string, payload any) {
	f.channel, f.payload = channel, payload
}

func TestHubPublisher(t *testing.T) {
	hub := &fakeHub{}
	if err := NewHubPublisher(hub).Publish(context.Background(), testState()); err != nil {
		t.Fatal(err)
	}
	if hub.channel != HubChannel {
		t.Errorf("channel = %q, want %q", hub.channel, HubChannel)
	}
	if st, ok := hub.payload.(ManagerState); !ok || st.RunID != "run-1" {
		t.Errorf("payload = %#v", hub.payload)
	}
}

type point struct {
	measurement string
	tags        map[string]string
	fields      map[string]any
}

type fakeWriter struct {
	points []point
}

func (f *fakeWriter) WritePoint(measurement string, tags map[string]string, fields map[string]any) {
	f.points = append(f.points, point{measurement, tags, fields})
}

func TestInfluxRecorder(t *testing.T) {
	w := &fakeWriter{}
	state := testState()
	state.TickLatency = &Latency{P50: 2.5, P99: 9}

	if err := NewInfluxRecorder(w).Publish(context.Background(), state); err != nil {
		t.Fatal(err)
	}
	if len(w.points) != 4 {
		t.Fatalf("wrote %d points, want 4", len(w.points))
	}

	loop := w.points[0]
	if loop.measurement != influxdb.MeasurementLoop {
		t.Errorf("measurement = %q", loop.measurement)
	}
	if loop.fields["alive"] != 1 || loop.fields["desired"] != 2 || loop.fields["tick_p99_ms"] != 9.0 {
		t.Errorf("loop fields = %v", loop.fields)
	}

	ui := w.points[2]
	if ui.measurement != influxdb.MeasurementProcess || ui.tags["process"] != "ui" {
		t.Errorf("point = %+v", ui)
	}
	if ui.fields["exit_code"] != -9 || ui.fields["restarts"] != 1 {
		t.Errorf("ui fields = %v", ui.fields)
	}
}
