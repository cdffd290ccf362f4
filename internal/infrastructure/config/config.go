package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the root configuration structure for the manager.
// All configuration is loaded from YAML and can be overridden by environment variables.
type Config struct {
	Device       DeviceConfig       `yaml:"device"`
	Params       ParamsConfig       `yaml:"params"`
	Manager      ManagerConfig      `yaml:"manager"`
	Processes    ProcessesConfig    `yaml:"processes"`
	Maintenance  MaintenanceConfig  `yaml:"maintenance"`
	Registration RegistrationConfig `yaml:"registration"`
	Terminal     TerminalConfig     `yaml:"terminal"`
	MQTT         MQTTConfig         `yaml:"mqtt"`
	InfluxDB     InfluxDBConfig     `yaml:"influxdb"`
	API          APIConfig          `yaml:"api"`
	WebSocket    WebSocketConfig    `yaml:"websocket"`
	Logging      LoggingConfig      `yaml:"logging"`
}

// DeviceConfig describes the hardware the manager runs on.
type DeviceConfig struct {
	// Type is reported in logs and crash reports (e.g. "tici", "tizi", "pc").
	Type string `yaml:"type"`

	// PC marks a development workstation. Several processes are disabled on PC
	// and the UI watchdog is not armed.
	PC bool `yaml:"pc"`

	// TICI enables the GPS processes that only exist on the comma three family.
	TICI bool `yaml:"tici"`

	// Webcam enables driver monitoring on PC with a USB camera (USE_WEBCAM).
	Webcam bool `yaml:"webcam"`

	// ReleaseBuild clears development-only params on every start.
	ReleaseBuild bool `yaml:"release_build"`

	// CrashDir holds the error log written by the crash reporter.
	// The error log is removed on every onroad transition.
	CrashDir string `yaml:"crash_dir"`

	// WatchdogDir is where watched processes write their heartbeat files.
	WatchdogDir string `yaml:"watchdog_dir"`

	// UbloxTTY is the serial device whose presence means a u-blox GPS is fitted.
	UbloxTTY string `yaml:"ublox_tty"`

	// QuectelFlag forces the Quectel modem GPS even when UbloxTTY exists.
	QuectelFlag string `yaml:"quectel_flag"`
}

// ParamsConfig locates the persisted params partitions.
type ParamsConfig struct {
	// Primary is the live store read by every process.
	Primary PartitionConfig `yaml:"primary"`

	// Storage is the shadow copy of user toggles on the persist volume.
	Storage PartitionConfig `yaml:"storage"`

	// Tracking is the shadow partition for long-lived counters (distance, drives).
	Tracking PartitionConfig `yaml:"tracking"`

	// DefaultOverrides replaces values from the built-in defaults table
	// (e.g. the default driving Model for this build).
	DefaultOverrides map[string]string `yaml:"default_overrides"`
}

// PartitionConfig contains SQLite settings for one params partition.
type PartitionConfig struct {
	Path        string `yaml:"path"`
	WALMode     bool   `yaml:"wal_mode"`
	BusyTimeout int    `yaml:"busy_timeout"`
}

// ManagerConfig contains reconciliation loop settings and the process
// boundary switches that may also arrive through the environment.
type ManagerConfig struct {
	// PollTimeoutMS bounds each snapshot poll (milliseconds).
	PollTimeoutMS int `yaml:"poll_timeout_ms"`

	// Block is a comma-separated list of process names never started (BLOCK).
	Block string `yaml:"block"`

	// NoBoard excludes the panda daemon (NOBOARD).
	NoBoard bool `yaml:"noboard"`

	// PrepareOnly runs bootstrap and exits (PREPAREONLY).
	PrepareOnly bool `yaml:"prepare_only"`

	// Forked suppresses the terminal device action after drain.
	Forked bool `yaml:"forked"`
}

// ProcessesConfig controls how managed processes are launched.
type ProcessesConfig struct {
	// BaseDir is the root of the installed tree; native process directories
	// and interpreted module paths are resolved against it.
	BaseDir string `yaml:"base_dir"`

	// Interpreter runs interpreted modules as "<interpreter> -m <module>".
	Interpreter string `yaml:"interpreter"`

	// GracefulTimeout is how long a blocking stop waits before SIGKILL (seconds).
	GracefulTimeout int `yaml:"graceful_timeout"`

	// Logs configures rotated per-process stdout/stderr files. Logs.Path is
	// a directory; each process writes <path>/<name>.log. Empty discards output.
	Logs FileLoggingConfig `yaml:"logs"`
}

// MaintenanceConfig contains the background housekeeping settings.
type MaintenanceConfig struct {
	Enabled bool `yaml:"enabled"`

	// ClockFloor is the earliest wall-clock date considered valid (YYYY-MM-DD).
	ClockFloor string `yaml:"clock_floor"`

	// ModelsDir holds downloaded driving models.
	ModelsDir string `yaml:"models_dir"`

	// DeprecatedModels lists model names whose files are pruned.
	DeprecatedModels []string `yaml:"deprecated_models"`

	// InstallDir is the tree archived by the configuration backup.
	InstallDir string `yaml:"install_dir"`

	// BackupDir receives configuration and toggle backups.
	BackupDir string `yaml:"backup_dir"`

	// MaxBackups is how many archives of each kind are kept.
	MaxBackups int `yaml:"max_backups"`
}

// RegistrationConfig contains device registration settings.
type RegistrationConfig struct {
	// APIHost is the registration backend base URL.
	APIHost string `yaml:"api_host"`

	// PrivateKeyPath is the device RSA key used to sign the registration token.
	PrivateKeyPath string `yaml:"private_key_path"`

	// PublicKeyPath is sent to the backend alongside the token.
	PublicKeyPath string `yaml:"public_key_path"`

	// Timeout bounds each registration request (seconds).
	Timeout int `yaml:"timeout"`

	// MaxAttempts bounds registration retries before falling back to the
	// unregistered identity.
	MaxAttempts int `yaml:"max_attempts"`
}

// TerminalConfig contains the commands run for terminal device actions.
type TerminalConfig struct {
	Uninstall []string `yaml:"uninstall"`
	Reboot    []string `yaml:"reboot"`
	Shutdown  []string `yaml:"shutdown"`
}

// MQTTConfig contains MQTT broker connection settings.
type MQTTConfig struct {
	Broker    MQTTBrokerConfig    `yaml:"broker"`
	Auth      MQTTAuthConfig      `yaml:"auth"`
	QoS       int                 `yaml:"qos"`
	Reconnect MQTTReconnectConfig `yaml:"reconnect"`
}

// MQTTBrokerConfig contains MQTT broker connection details.
type MQTTBrokerConfig struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	TLS      bool   `yaml:"tls"`
	ClientID string `yaml:"client_id"`
}

// MQTTAuthConfig contains MQTT authentication credentials.
type MQTTAuthConfig struct {
	Username string `yaml:"username"`
	Password string `yaml:"password"`
}

// MQTTReconnectConfig contains MQTT reconnection settings.
type MQTTReconnectConfig struct {
	InitialDelay int `yaml:"initial_delay"`
	MaxDelay     int `yaml:"max_delay"`
	MaxAttempts  int `yaml:"max_attempts"`
}

// InfluxDBConfig contains InfluxDB connection settings.
type InfluxDBConfig struct {
	Enabled       bool   `yaml:"enabled"`
	URL           string `yaml:"url"`
	Token         string `yaml:"token"`
	Org           string `yaml:"org"`
	Bucket        string `yaml:"bucket"`
	BatchSize     int    `yaml:"batch_size"`
	FlushInterval int    `yaml:"flush_interval"`
}

// APIConfig contains the local status server settings.
type APIConfig struct {
	Enabled  bool             `yaml:"enabled"`
	Host     string           `yaml:"host"`
	Port     int              `yaml:"port"`
	Timeouts APITimeoutConfig `yaml:"timeouts"`
}

// APITimeoutConfig contains HTTP timeout settings.
type APITimeoutConfig struct {
	Read  int `yaml:"read"`
	Write int `yaml:"write"`
	Idle  int `yaml:"idle"`
}

// WebSocketConfig contains WebSocket server settings.
type WebSocketConfig struct {
	Path           string `yaml:"path"`
	MaxMessageSize int    `yaml:"max_message_size"`
	PingInterval   int    `yaml:"ping_interval"`
	PongTimeout    int    `yaml:"pong_timeout"`
}

// LoggingConfig contains logging settings.
type LoggingConfig struct {
	Level  string            `yaml:"level"`
	Format string            `yaml:"format"`
	Output string            `yaml:"output"`
	File   FileLoggingConfig `yaml:"file"`
}

// FileLoggingConfig contains file-based logging settings.
// An empty Path disables file output.
type FileLoggingConfig struct {
	Path       string `yaml:"path"`
	MaxSize    int    `yaml:"max_size"`
	MaxBackups int    `yaml:"max_backups"`
	MaxAge     int    `yaml:"max_age"`
	Compress   bool   `yaml:"compress"`
}

// Load reads configuration from a YAML file and applies environment variable overrides.
//
// The configuration loading order is:
//  1. Default values (hardcoded)
//  2. YAML file values (override defaults)
//  3. Environment variables (override file values)
//
// Environment variables follow the pattern: MANAGER_SECTION_KEY
// For example: MANAGER_PARAMS_PATH, MANAGER_MQTT_HOST.
// The process boundary switches PREPAREONLY, NOBOARD, BLOCK and USE_WEBCAM
// are honoured under their historical names.
//
// Parameters:
//   - path: Path to the YAML configuration file
//
// Returns:
//   - *Config: Loaded and validated configuration
//   - error: If file cannot be read, parsed, or validation fails
func Load(path string) (*Config, error) {
	cfg := defaultConfig()

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing config file: %w", err)
	}

	applyEnvOverrides(cfg)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}

	return cfg, nil
}

// defaultConfig returns a Config with the on-device defaults.
func defaultConfig() *Config {
	return &Config{
		Device: DeviceConfig{
			Type:        "tici",
			TICI:        true,
			CrashDir:    "/data/community/crashes",
			WatchdogDir: "/dev/shm",
			UbloxTTY:    "/dev/ttyHS0",
			QuectelFlag: "/persist/comma/use-quectel-gps",
		},
		Params: ParamsConfig{
			Primary: PartitionConfig{
				Path:        "/data/params/params.db",
				WALMode:     true,
				BusyTimeout: 5,
			},
			Storage: PartitionConfig{
				Path:        "/persist/params/params.db",
				WALMode:     true,
				BusyTimeout: 5,
			},
			Tracking: PartitionConfig{
				Path:        "/persist/tracking/params.db",
				WALMode:     true,
				BusyTimeout: 5,
			},
		},
		Manager: ManagerConfig{
			PollTimeoutMS: 1000,
		},
		Processes: ProcessesConfig{
			BaseDir:         "/data/openpilot",
			Interpreter:     "python3",
			GracefulTimeout: 5,
			Logs: FileLoggingConfig{
				MaxSize:    10,
				MaxBackups: 3,
				MaxAge:     7,
			},
		},
		Maintenance: MaintenanceConfig{
			Enabled:    true,
			ClockFloor: "2024-01-01",
			ModelsDir:  "/data/models",
			InstallDir: "/data/openpilot",
			BackupDir:  "/data/backups",
			MaxBackups: 5,
		},
		Registration: RegistrationConfig{
			APIHost:        "https://api.commadotai.com",
			PrivateKeyPath: "/persist/comma/id_rsa",
			PublicKeyPath:  "/persist/comma/id_rsa.pub",
			Timeout:        10,
			MaxAttempts:    3,
		},
		Terminal: TerminalConfig{
			Uninstall: []string{"sh", "-c", "touch /data/__system_reset__ && sudo reboot"},
			Reboot:    []string{"sudo", "reboot"},
			Shutdown:  []string{"sudo", "poweroff"},
		},
		MQTT: MQTTConfig{
			Broker: MQTTBrokerConfig{
				Host:     "localhost",
				Port:     1883,
				ClientID: "onroad-manager",
			},
			QoS: 1,
			Reconnect: MQTTReconnectConfig{
				InitialDelay: 1,
				MaxDelay:     60,
				MaxAttempts:  0,
			},
		},
		API: APIConfig{
			Enabled: true,
			Host:    "127.0.0.1",
			Port:    8089,
			Timeouts: APITimeoutConfig{
				Read:  10,
				Write: 10,
				Idle:  60,
			},
		},
		WebSocket: WebSocketConfig{
			Path:           "/ws",
			MaxMessageSize: 8192,
			PingInterval:   30,
			PongTimeout:    10,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
			Output: "stdout",
			File: FileLoggingConfig{
				MaxSize:    10,
				MaxBackups: 5,
				MaxAge:     14,
				Compress:   true,
			},
		},
	}
}

// applyEnvOverrides applies environment variable overrides to the configuration.
// Environment variables follow the pattern: MANAGER_SECTION_KEY
func applyEnvOverrides(cfg *Config) {
	// Params
	if v := os.Getenv("MANAGER_PARAMS_PATH"); v != "" {
		cfg.Params.Primary.Path = v
	}

	// MQTT
	if v := os.Getenv("MANAGER_MQTT_HOST"); v != "" {
		cfg.MQTT.Broker.Host = v
	}
	if v := os.Getenv("MANAGER_MQTT_USERNAME"); v != "" {
		cfg.MQTT.Auth.Username = v
	}
	if v := os.Getenv("MANAGER_MQTT_PASSWORD"); v != "" {
		cfg.MQTT.Auth.Password = v
	}

	// API
	if v := os.Getenv("MANAGER_API_HOST"); v != "" {
		cfg.API.Host = v
	}

	// InfluxDB
	if v := os.Getenv("MANAGER_INFLUXDB_TOKEN"); v != "" {
		cfg.InfluxDB.Token = v
	}

	// Logging
	if v := os.Getenv("MANAGER_LOG_LEVEL"); v != "" {
		cfg.Logging.Level = v
	}

	// Process boundary switches. Presence is what matters for the flags,
	// an empty value still counts.
	if _, ok := os.LookupEnv("PREPAREONLY"); ok {
		cfg.Manager.PrepareOnly = true
	}
	if _, ok := os.LookupEnv("NOBOARD"); ok {
		cfg.Manager.NoBoard = true
	}
	if v, ok := os.LookupEnv("BLOCK"); ok {
		cfg.Manager.Block = v
	}
	if _, ok := os.LookupEnv("USE_WEBCAM"); ok {
		cfg.Device.Webcam = true
	}
	if _, ok := os.LookupEnv("MANAGER_FORKED"); ok {
		cfg.Manager.Forked = true
	}
}

// Validate checks the configuration for errors.
//
// Returns:
//   - error: Description of validation failure, or nil if valid
func (c *Config) Validate() error {
	var errs []string

	if c.Params.Primary.Path == "" {
		errs = append(errs, "params.primary.path is required")
	}
	if c.Params.Storage.Path == "" {
		errs = append(errs, "params.storage.path is required")
	}
	if c.Params.Tracking.Path == "" {
		errs = append(errs, "params.tracking.path is required")
	}

	if c.Manager.PollTimeoutMS <= 0 {
		errs = append(errs, "manager.poll_timeout_ms must be positive")
	}

	if c.Processes.Interpreter == "" {
		errs = append(errs, "processes.interpreter is required")
	}
	if c.Processes.GracefulTimeout < 0 {
		errs = append(errs, "processes.graceful_timeout must not be negative")
	}

	if c.Maintenance.Enabled {
		if _, err := c.ClockFloor(); err != nil {
			errs = append(errs, "maintenance.clock_floor must be a YYYY-MM-DD date")
		}
	}

	if c.MQTT.QoS < 0 || c.MQTT.QoS > 2 {
		errs = append(errs, "mqtt.qos must be 0, 1, or 2")
	}

	if c.API.Enabled && (c.API.Port < 1 || c.API.Port > 65535) {
		errs = append(errs, "api.port must be between 1 and 65535")
	}

	if c.InfluxDB.Enabled && c.InfluxDB.URL == "" {
		errs = append(errs, "influxdb.url is required when influxdb is enabled")
	}

	if len(errs) > 0 {
		return fmt.Errorf("configuration errors: %s", strings.Join(errs, "; "))
	}

	return nil
}

// PollTimeout returns the snapshot poll budget as a Duration.
func (c *Config) PollTimeout() time.Duration {
	return time.Duration(c.Manager.PollTimeoutMS) * time.Millisecond
}

// GracefulTimeout returns the per-process stop budget as a Duration.
func (c *Config) GracefulTimeout() time.Duration {
	return time.Duration(c.Processes.GracefulTimeout) * time.Second
}

// ClockFloor parses maintenance.clock_floor.
func (c *Config) ClockFloor() (time.Time, error) {
	return time.Parse(time.DateOnly, c.Maintenance.ClockFloor)
}

// GetReadTimeout returns the API read timeout as a Duration.
func (c *Config) GetReadTimeout() time.Duration {
	return time.Duration(c.API.Timeouts.Read) * time.Second
}

// GetWriteTimeout returns the API write timeout as a Duration.
func (c *Config) GetWriteTimeout() time.Duration {
	return time.Duration(c.API.Timeouts.Write) * time.Second
}

// GetIdleTimeout returns the API idle timeout as a Duration.
func (c *Config) GetIdleTimeout() time.Duration {
	return time.Duration(c.API.Timeouts.Idle) * time.Second
}
