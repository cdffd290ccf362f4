package influxdb_test

import (
	"context"
	"errors"
	"testing"

	"github.com/nerrad567/onroad-manager/internal/infrastructure/config"
	"github.com/nerrad567/onroad-manager/internal/infrastructure/influxdb"
)

// testConfig targets a local dev InfluxDB.
func testConfig() config.InfluxDBConfig {
	return config.InfluxDBConfig{
		Enabled:       true,
		URL:           "http://127.0.0.1:8086",
		Token:         "onroad-dev-token",
		Org:           "onroad",
		Bucket:        "manager",
		BatchSize:     10,
		FlushInterval: 1,
	}
}

// connectOrSkip skips the test if InfluxDB is not running.
func connectOrSkip(t *testing.T) *influxdb.Client {
	t.Helper()
	if testing.Short() {
		t.Skip("InfluxDB tests skipped in -short mode")
	}
	client, err := influxdb.Connect(context.Background(), testConfig(), map[string]string{"device": "pc"})
	if err != nil {
		t.Skipf("InfluxDB not available: %v", err)
	}
	t.Cleanup(func() { client.Close() }) //nolint:errcheck // Test cleanup
	return client
}

func TestConnect_Disabled(t *testing.T) {
	cfg := testConfig()
	cfg.Enabled = false

	client, err := influxdb.Connect(context.Background(), cfg, nil)
	if !errors.Is(err, influxdb.ErrDisabled) {
		t.Errorf("Connect() error = %v, want ErrDisabled", err)
	}
	if client != nil {
		t.Error("Connect() returned a client while disabled")
	}
}

func TestNilClientIsNoop(t *testing.T) {
	var client *influxdb.Client

	client.WritePoint("m", nil, map[string]any{"v": 1})
	client.WriteEvent("loop_fault", "run", "boom", nil)
	client.Flush()

	client.SetOnError(func(error) {})

	if client.IsConnected() {
		t.Error("nil client reports connected")
	}
	if client.WriteErrors() != 0 {
		t.Error("nil client reports write errors")
	}
	if err := client.Close(); err != nil {
		t.Errorf("Close() = %v", err)
	}
}

func TestWriteAndFlush(t *testing.T) {
	client := connectOrSkip(t)

	writeErrs := make(chan error, 4)
	client.SetOnError(func(err error) {
		select {
		case writeErrs <- err:
		default:
		}
	})

	client.WritePoint(influxdb.MeasurementLoop,
		map[string]string{"run_id": "test"},
		map[string]any{"started": true, "desired": 12, "alive": 11})
	client.WriteEvent("exit", "test", "DoReboot", map[string]string{"flag": "DoReboot"})
	client.Flush()

	select {
	case err := <-writeErrs:
		t.Errorf("async write error: %v", err)
	default:
	}
	if n := client.WriteErrors(); n != 0 {
		t.Errorf("WriteErrors() = %d, want 0", n)
	}
	if err := client.HealthCheck(context.Background()); err != nil {
		t.Errorf("HealthCheck() = %v", err)
	}
}

func TestClose(t *testing.T) {
	client := connectOrSkip(t)

	if err := client.Close(); err != nil {
		t.Fatalf("Close() error = %v", err)
	}
	if client.IsConnected() {
		t.Error("IsConnected() = true after Close()")
	}
	if err := client.HealthCheck(context.Background()); !errors.Is(err, influxdb.ErrNotConnected) {
		t.Errorf("HealthCheck() after Close = %v, want ErrNotConnected", err)
	}
	// Writes after close are dropped.
	client.WritePoint("m", nil, map[string]any{"v": 1})
	if err := client.Close(); err != nil {
		t.Errorf("second Close() = %v", err)
	}
}
