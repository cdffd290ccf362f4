package main

import (
	"context"
	"fmt"
	"os"
	"strconv"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/nerrad567/onroad-manager/internal/api"
	"github.com/nerrad567/onroad-manager/internal/crashreport"
	"github.com/nerrad567/onroad-manager/internal/hardware"
	"github.com/nerrad567/onroad-manager/internal/identity"
	"github.com/nerrad567/onroad-manager/internal/infrastructure/config"
	"github.com/nerrad567/onroad-manager/internal/infrastructure/influxdb"
	"github.com/nerrad567/onroad-manager/internal/infrastructure/logging"
	"github.com/nerrad567/onroad-manager/internal/infrastructure/metrics"
	"github.com/nerrad567/onroad-manager/internal/infrastructure/mqtt"
	"github.com/nerrad567/onroad-manager/internal/manager"
	"github.com/nerrad567/onroad-manager/internal/notice"
	"github.com/nerrad567/onroad-manager/internal/params"
	"github.com/nerrad567/onroad-manager/internal/registry"
	"github.com/nerrad567/onroad-manager/internal/status"
	"github.com/nerrad567/onroad-manager/internal/supervisor"
	"github.com/nerrad567/onroad-manager/internal/vehicle"
)

// closer is anything run closes on the way out.
type closer interface {
	Close() error
}

// runOptions selects what run does.
type runOptions struct {
	ConfigPath string

	// PrepareOnly exits after bootstrap (the prepare command).
	PrepareOnly bool

	// Notify shows a fatal startup failure to the operator. Defaults to
	// notice.Show on the console.
	Notify manager.Notifier
}

// Startup phases that fail before the manager lifecycle exists.
const (
	phaseConfig   = "config"
	phaseParams   = "params"
	phaseMetrics  = "metrics"
	phaseBroker   = "broker"
	phaseAPI      = "api"
	phaseRegistry = "registry"
	phaseManager  = "manager"
)

// run is the actual application logic, separated from main for testability.
//
// Every failure before the loop starts is reported as a
// manager.FatalBootstrapError and shown through opts.Notify.
//
// Parameters:
//   - ctx: Cancelled on SIGINT/SIGTERM
//   - opts: Config path, prepare-only switch and notifier
//
// Returns:
//   - error: nil on a clean exit, otherwise the bootstrap failure or loop fault
func run(ctx context.Context, opts runOptions) error {
	if opts.Notify == nil {
		opts.Notify = func(ctx context.Context, title, body string) error {
			return notice.Show(ctx, title, body, os.Stdin, os.Stdout)
		}
	}

	// Default logger until config is loaded
	build := buildInfo()
	log := logging.Default()
	log.Info("starting onroad manager",
		"version", build.Version,
		"branch", build.GitBranch,
		"commit", build.GitCommit,
	)

	fail := func(phase string, err error) error {
		return failBeforeRun(ctx, log, opts.Notify, phase, err)
	}

	cfg, err := config.Load(opts.ConfigPath)
	if err != nil {
		return fail(phaseConfig, fmt.Errorf("loading config: %w", err))
	}
	if opts.PrepareOnly {
		cfg.Manager.PrepareOnly = true
	}

	log = logging.New(cfg.Logging, build.Version)
	defer log.Close()
	log.Info("configuration loaded", "path", opts.ConfigPath, "device", cfg.Device.Type)

	closeLater := func(name string, c closer) func() {
		return func() {
			if err := c.Close(); err != nil {
				log.Error("error closing "+name, "error", err)
			}
		}
	}

	runID := uuid.NewString()

	// Params partitions
	table, err := params.BuiltinKeyTable()
	if err != nil {
		return fail(phaseParams, fmt.Errorf("loading key table: %w", err))
	}
	primary, err := params.OpenSQLite(ctx, partition(cfg.Params.Primary), table)
	if err != nil {
		return fail(phaseParams, fmt.Errorf("opening primary params: %w", err))
	}
	defer closeLater("primary params", primary)()

	storage, err := params.OpenSQLite(ctx, partition(cfg.Params.Storage), table)
	if err != nil {
		return fail(phaseParams, fmt.Errorf("opening storage params: %w", err))
	}
	defer closeLater("storage params", storage)()

	tracking, err := params.OpenSQLite(ctx, partition(cfg.Params.Tracking), table)
	if err != nil {
		return fail(phaseParams, fmt.Errorf("opening tracking params: %w", err))
	}
	defer closeLater("tracking params", tracking)()

	ephemeral := params.NewMemoryStore(table)

	if err := metrics.Register(prometheus.DefaultRegisterer); err != nil {
		return fail(phaseMetrics, fmt.Errorf("registering metrics: %w", err))
	}

	// Broker: vehicle state in, managerState out
	mqttClient, err := mqtt.Connect(cfg.MQTT)
	if err != nil {
		return fail(phaseBroker, fmt.Errorf("connecting to MQTT: %w", err))
	}
	defer closeLater("MQTT", mqttClient)()
	mqttClient.SetLogger(log)
	mqttClient.SetOnConnect(func() {
		log.Info("MQTT connected")
	})

	qos := byte(cfg.MQTT.QoS)
	source, err := vehicle.NewMQTTSource(mqttClient, qos)
	if err != nil {
		return fail(phaseBroker, fmt.Errorf("subscribing to vehicle state: %w", err))
	}
	defer closeLater("vehicle source", source)()

	tracker := crashreport.New(cfg.Device.CrashDir, runID)
	latest := status.NewLatest()
	publishers := status.Multi{status.NewMQTTPublisher(mqttClient, qos), latest}
	checks := map[string]api.HealthChecker{"mqtt": mqttClient}

	if cfg.InfluxDB.Enabled {
		influxClient, influxErr := influxdb.Connect(ctx, cfg.InfluxDB, map[string]string{"device": cfg.Device.Type})
		if influxErr != nil {
			log.Warn("InfluxDB unavailable, telemetry disabled", "error", influxErr)
		} else {
			defer closeLater("InfluxDB", influxClient)()
			influxClient.SetOnError(func(err error) {
				log.Warn("InfluxDB write error", "error", err)
			})
			tracker.SetEventWriter(influxClient)
			publishers = append(publishers, status.NewInfluxRecorder(influxClient))
			checks["influxdb"] = influxClient
		}
	}

	if cfg.API.Enabled {
		hub := api.NewHub(cfg.WebSocket, log)
		go hub.Run(ctx)

		srv, apiErr := api.New(api.Deps{
			Config:  cfg.API,
			WS:      cfg.WebSocket,
			Logger:  log,
			Latest:  latest,
			Params:  primary,
			Checks:  checks,
			Hub:     hub,
			Version: build.Version,
		})
		if apiErr != nil {
			return fail(phaseAPI, fmt.Errorf("creating API server: %w", apiErr))
		}
		if apiErr := srv.Start(ctx); apiErr != nil {
			return fail(phaseAPI, fmt.Errorf("starting API server: %w", apiErr))
		}
		defer closeLater("API server", srv)()
		publishers = append(publishers, status.NewHubPublisher(hub))
	}

	reg, err := registry.Default(registry.Platform{
		PC:     cfg.Device.PC,
		TICI:   cfg.Device.TICI,
		Webcam: cfg.Device.Webcam,
	})
	if err != nil {
		return fail(phaseRegistry, fmt.Errorf("building process registry: %w", err))
	}

	sup := supervisor.New(supervisor.Options{
		Processes:   cfg.Processes,
		WatchdogDir: cfg.Device.WatchdogDir,
	}, primary)
	sup.SetLogger(log)

	registrar := identity.NewHTTPRegistrar(cfg.Registration, primary)
	registrar.SetLogger(log)

	var maint *manager.Maintenance
	if cfg.Maintenance.Enabled {
		floor, floorErr := cfg.ClockFloor()
		if floorErr != nil {
			return fail(phaseConfig, fmt.Errorf("maintenance clock floor: %w", floorErr))
		}
		maint = manager.NewMaintenance(cfg.Maintenance, floor, storage, log)
	}

	lc, err := manager.New(manager.Deps{
		Config:      cfg,
		Build:       build,
		RunID:       runID,
		Registry:    reg,
		Primary:     primary,
		Storage:     storage,
		Tracking:    tracking,
		Ephemeral:   ephemeral,
		Registrar:   registrar,
		Supervisor:  sup,
		Source:      source,
		Publisher:   publishers,
		Probes:      []manager.Probe{hardware.NewProbe(cfg.Device)},
		Tracker:     tracker,
		Terminal:    hardware.NewTerminal(cfg.Terminal),
		Maintenance: maint,
		Notify:      opts.Notify,
		Logger:      log,
	})
	if err != nil {
		return fail(phaseManager, err)
	}

	if err := lc.Execute(ctx); err != nil {
		return err
	}
	log.Info("onroad manager stopped", "state", lc.State().String())
	return nil
}

// failBeforeRun reports a startup failure that happens before the manager
// lifecycle exists the same way the lifecycle reports a failed bootstrap.
// No notice is shown when ctx is done; the operator asked to stop.
func failBeforeRun(ctx context.Context, log *logging.Logger, notify manager.Notifier, phase string, err error) error {
	fatal := &manager.FatalBootstrapError{Phase: phase, Err: err}
	log.Error("Manager failed to start", "phase", phase, "error", err)
	if ctx.Err() != nil {
		return fatal
	}
	body := notice.FailureBody(notice.ErrorTrace(fatal))
	if nerr := notify(ctx, notice.FailedToStart, body); nerr != nil {
		log.Warn("showing failure notice failed", "error", nerr)
	}
	return fatal
}

// buildInfo returns the identity baked in at link time.
func buildInfo() identity.BuildInfo {
	isDirty, _ := strconv.ParseBool(dirty)
	return identity.BuildInfo{
		Version:    version,
		GitCommit:  commit,
		CommitDate: commitDate,
		GitBranch:  branch,
		GitRemote:  remote,
		Dirty:      isDirty,
	}
}
