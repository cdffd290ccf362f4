package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "config.yaml")
	if err := os.WriteFile(configPath, []byte(content), 0600); err != nil {
		t.Fatalf("failed to write test config: %v", err)
	}
	return configPath
}

func TestLoad(t *testing.T) {
	content := `
device:
  type: "pc"
  pc: true
  tici: false
params:
  primary:
    path: "/tmp/params.db"
manager:
  poll_timeout_ms: 250
  block: "camerad,loggerd"
processes:
  base_dir: "/opt/op"
mqtt:
  broker:
    host: "broker.local"
  qos: 2
api:
  port: 9000
`
	cfg, err := Load(writeConfig(t, content))
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if !cfg.Device.PC || cfg.Device.TICI {
		t.Errorf("Device = %+v, want pc without tici", cfg.Device)
	}
	if cfg.Params.Primary.Path != "/tmp/params.db" {
		t.Errorf("Params.Primary.Path = %q, want %q", cfg.Params.Primary.Path, "/tmp/params.db")
	}
	// Untouched partitions keep their defaults.
	if cfg.Params.Storage.Path != "/persist/params/params.db" {
		t.Errorf("Params.Storage.Path = %q, want default", cfg.Params.Storage.Path)
	}
	if cfg.PollTimeout() != 250*time.Millisecond {
		t.Errorf("PollTimeout() = %v, want 250ms", cfg.PollTimeout())
	}
	if cfg.Manager.Block != "camerad,loggerd" {
		t.Errorf("Manager.Block = %q", cfg.Manager.Block)
	}
	if cfg.Processes.BaseDir != "/opt/op" {
		t.Errorf("Processes.BaseDir = %q", cfg.Processes.BaseDir)
	}
	if cfg.MQTT.Broker.Host != "broker.local" || cfg.MQTT.QoS != 2 {
		t.Errorf("MQTT = %+v", cfg.MQTT)
	}
	if cfg.API.Port != 9000 {
		t.Errorf("API.Port = %d, want 9000", cfg.API.Port)
	}
}

func TestLoad_FileNotFound(t *testing.T) {
	_, err := Load("/nonexistent/path/config.yaml")
	if err == nil {
		t.Error("Load() expected error for nonexistent file, got nil")
	}
}

func TestLoad_InvalidYAML(t *testing.T) {
	_, err := Load(writeConfig(t, "manager: [unclosed"))
	if err == nil {
		t.Error("Load() expected error for invalid YAML, got nil")
	}
}

func TestLoad_ValidationError(t *testing.T) {
	content := `
manager:
  poll_timeout_ms: 0
`
	_, err := Load(writeConfig(t, content))
	if err == nil {
		t.Fatal("Load() expected validation error for zero poll timeout, got nil")
	}
	if !strings.Contains(err.Error(), "poll_timeout_ms") {
		t.Errorf("error = %v, want mention of poll_timeout_ms", err)
	}
}

func TestConfig_Validate(t *testing.T) {
	valid := func() *Config { return defaultConfig() }

	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr bool
	}{
		{name: "defaults are valid", mutate: func(*Config) {}},
		{name: "missing primary path", mutate: func(c *Config) { c.Params.Primary.Path = "" }, wantErr: true},
		{name: "missing storage path", mutate: func(c *Config) { c.Params.Storage.Path = "" }, wantErr: true},
		{name: "missing tracking path", mutate: func(c *Config) { c.Params.Tracking.Path = "" }, wantErr: true},
		{name: "negative poll timeout", mutate: func(c *Config) { c.Manager.PollTimeoutMS = -1 }, wantErr: true},
		{name: "empty interpreter", mutate: func(c *Config) { c.Processes.Interpreter = "" }, wantErr: true},
		{name: "negative graceful timeout", mutate: func(c *Config) { c.Processes.GracefulTimeout = -1 }, wantErr: true},
		{name: "bad clock floor", mutate: func(c *Config) { c.Maintenance.ClockFloor = "soon" }, wantErr: true},
		{
			name: "bad clock floor ignored when maintenance disabled",
			mutate: func(c *Config) {
				c.Maintenance.Enabled = false
				c.Maintenance.ClockFloor = "soon"
			},
		},
		{name: "invalid QoS", mutate: func(c *Config) { c.MQTT.QoS = 3 }, wantErr: true},
		{name: "invalid port low", mutate: func(c *Config) { c.API.Port = 0 }, wantErr: true},
		{name: "invalid port high", mutate: func(c *Config) { c.API.Port = 70000 }, wantErr: true},
		{
			name: "port ignored when api disabled",
			mutate: func(c *Config) {
				c.API.Enabled = false
				c.API.Port = 0
			},
		},
		{
			name: "influx enabled without url",
			mutate: func(c *Config) {
				c.InfluxDB.Enabled = true
				c.InfluxDB.URL = ""
			},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := valid()
			tt.mutate(cfg)
			err := cfg.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestConfig_Validate_JoinsErrors(t *testing.T) {
	cfg := defaultConfig()
	cfg.Params.Primary.Path = ""
	cfg.MQTT.QoS = 7

	err := cfg.Validate()
	if err == nil {
		t.Fatal("Validate() expected error")
	}
	if !strings.Contains(err.Error(), "; ") {
		t.Errorf("error = %q, want errors joined with \"; \"", err.Error())
	}
}

func TestConfig_Durations(t *testing.T) {
	cfg := &Config{
		Manager:   ManagerConfig{PollTimeoutMS: 1000},
		Processes: ProcessesConfig{GracefulTimeout: 5},
		API: APIConfig{
			Timeouts: APITimeoutConfig{
				Read:  30,
				Write: 45,
				Idle:  60,
			},
		},
	}

	if got := cfg.PollTimeout(); got != time.Second {
		t.Errorf("PollTimeout() = %v, want 1s", got)
	}
	if got := cfg.GracefulTimeout(); got != 5*time.Second {
		t.Errorf("GracefulTimeout() = %v, want 5s", got)
	}
	if got := cfg.GetReadTimeout().Seconds(); got != 30 {
		t.Errorf("GetReadTimeout() = %v, want 30", got)
	}
	if got := cfg.GetWriteTimeout().Seconds(); got != 45 {
		t.Errorf("GetWriteTimeout() = %v, want 45", got)
	}
	if got := cfg.GetIdleTimeout().Seconds(); got != 60 {
		t.Errorf("GetIdleTimeout() = %v, want 60", got)
	}
}

func TestConfig_ClockFloor(t *testing.T) {
	cfg := defaultConfig()
	floor, err := cfg.ClockFloor()
	if err != nil {
		t.Fatalf("ClockFloor() error = %v", err)
	}
	want := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	if !floor.Equal(want) {
		t.Errorf("ClockFloor() = %v, want %v", floor, want)
	}
}

func TestApplyEnvOverrides(t *testing.T) {
	cfg := defaultConfig()

	t.Setenv("MANAGER_PARAMS_PATH", "/custom/params.db")
	t.Setenv("MANAGER_MQTT_HOST", "mqtt.example.com")
	t.Setenv("MANAGER_MQTT_USERNAME", "testuser")
	t.Setenv("MANAGER_MQTT_PASSWORD", "testpass")
	t.Setenv("MANAGER_API_HOST", "192.168.1.1")
	t.Setenv("MANAGER_INFLUXDB_TOKEN", "secret-token")
	t.Setenv("MANAGER_LOG_LEVEL", "debug")

	applyEnvOverrides(cfg)

	if cfg.Params.Primary.Path != "/custom/params.db" {
		t.Errorf("Params.Primary.Path = %q, want %q", cfg.Params.Primary.Path, "/custom/params.db")
	}
	if cfg.MQTT.Broker.Host != "mqtt.example.com" {
		t.Errorf("MQTT.Broker.Host = %q, want %q", cfg.MQTT.Broker.Host, "mqtt.example.com")
	}
	if cfg.MQTT.Auth.Username != "testuser" {
		t.Errorf("MQTT.Auth.Username = %q, want %q", cfg.MQTT.Auth.Username, "testuser")
	}
	if cfg.MQTT.Auth.Password != "testpass" {
		t.Errorf("MQTT.Auth.Password = %q, want %q", cfg.MQTT.Auth.Password, "testpass")
	}
	if cfg.API.Host != "192.168.1.1" {
		t.Errorf("API.Host = %q, want %q", cfg.API.Host, "192.168.1.1")
	}
	if cfg.InfluxDB.Token != "secret-token" {
		t.Errorf("InfluxDB.Token = %q, want %q", cfg.InfluxDB.Token, "secret-token")
	}
	if cfg.Logging.Level != "debug" {
		t.Errorf("Logging.Level = %q, want debug", cfg.Logging.Level)
	}
}

func TestApplyEnvOverrides_ProcessSwitches(t *testing.T) {
	cfg := defaultConfig()

	// Empty values still switch the flags on.
	t.Setenv("PREPAREONLY", "")
	t.Setenv("NOBOARD", "")
	t.Setenv("USE_WEBCAM", "1")
	t.Setenv("MANAGER_FORKED", "1")
	t.Setenv("BLOCK", "camerad,ui")

	applyEnvOverrides(cfg)

	if !cfg.Manager.PrepareOnly {
		t.Error("PrepareOnly = false, want true")
	}
	if !cfg.Manager.NoBoard {
		t.Error("NoBoard = false, want true")
	}
	if !cfg.Device.Webcam {
		t.Error("Webcam = false, want true")
	}
	if !cfg.Manager.Forked {
		t.Error("Forked = false, want true")
	}
	if cfg.Manager.Block != "camerad,ui" {
		t.Errorf("Block = %q, want %q", cfg.Manager.Block, "camerad,ui")
	}
}

func TestApplyEnvOverrides_SwitchesUnset(t *testing.T) {
	for _, key := range []string{"PREPAREONLY", "NOBOARD", "USE_WEBCAM", "MANAGER_FORKED", "BLOCK"} {
		if v, ok := os.LookupEnv(key); ok {
			t.Setenv(key, v)
			os.Unsetenv(key)
		}
	}

	cfg := defaultConfig()
	applyEnvOverrides(cfg)

	if cfg.Manager.PrepareOnly || cfg.Manager.NoBoard || cfg.Device.Webcam || cfg.Manager.Forked {
		t.Errorf("switches set without environment: %+v", cfg.Manager)
	}
	if cfg.Manager.Block != "" {
		t.Errorf("Block = %q, want empty", cfg.Manager.Block)
	}
}

func TestDefaultConfig(t *testing.T) {
	cfg := defaultConfig()

	if cfg.Manager.PollTimeoutMS != 1000 {
		t.Errorf("defaultConfig Manager.PollTimeoutMS = %d, want 1000", cfg.Manager.PollTimeoutMS)
	}
	if cfg.Params.Primary.Path == "" {
		t.Error("defaultConfig should have non-empty Params.Primary.Path")
	}
	if cfg.MQTT.Broker.Port != 1883 {
		t.Errorf("defaultConfig MQTT.Broker.Port = %d, want 1883", cfg.MQTT.Broker.Port)
	}
	if cfg.Processes.Interpreter != "python3" {
		t.Errorf("defaultConfig Processes.Interpreter = %q, want python3", cfg.Processes.Interpreter)
	}
	if len(cfg.Terminal.Shutdown) == 0 {
		t.Error("defaultConfig should have a shutdown command")
	}
}
