package metrics

import (
	"errors"
	"net/http"
	"sync/atomic"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "onroad_manager"

// Package-level Prometheus collectors. They are registered via Register.
var (
	regOK atomic.Bool

	ticks = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "loop",
			Name:      "ticks_total",
			Help:      "Number of completed reconciliation ticks.",
		},
	)
	tickDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "loop",
			Name:      "tick_duration_seconds",
			Help:      "Time spent in one tick, excluding the snapshot poll.",
			Buckets:   []float64{.001, .0025, .005, .01, .025, .05, .1, .25, .5, 1},
		},
	)
	edges = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "loop",
			Name:      "transitions_total",
			Help:      "Onroad and offroad transitions observed.",
		}, []string{"direction"},
	)
	scopeClears = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "params",
			Name:      "scope_clears_total",
			Help:      "Scoped clears applied to a params partition.",
		}, []string{"partition", "scope"},
	)
	processStarts = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "process",
			Name:      "starts_total",
			Help:      "Process starts issued by reconcile.",
		}, []string{"name"},
	)
	processStops = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "process",
			Name:      "stops_total",
			Help:      "Process stops issued by reconcile or drain.",
		}, []string{"name"},
	)
	processWatchdogKills = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "process",
			Name:      "watchdog_kills_total",
			Help:      "Processes killed for a stale watchdog heartbeat.",
		}, []string{"name"},
	)
	processesAlive = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "process",
			Name:      "alive",
			Help:      "Managed processes currently alive.",
		},
	)
	processesDesired = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "process",
			Name:      "desired",
			Help:      "Managed processes desired by the last tick.",
		},
	)
	exitRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "loop",
			Name:      "exit_requests_total",
			Help:      "Exit flags seen set by the loop.",
		}, []string{"flag"},
	)
)

// Register registers all metrics with the provided registerer.
// It is safe to call multiple times; subsequent calls after success are no-ops.
func Register(r prometheus.Registerer) error {
	if regOK.Load() {
		return nil
	}
	cs := []prometheus.Collector{
		ticks, tickDuration, edges, scopeClears,
		processStarts, processStops, processWatchdogKills,
		processesAlive, processesDesired, exitRequests,
	}
	for _, c := range cs {
		if err := r.Register(c); err != nil {
			var are prometheus.AlreadyRegisteredError
			if errors.As(err, &are) {
				continue
			}
			return err
		}
	}
	regOK.Store(true)
	return nil
}

// Handler serves the default gatherer.
func Handler() http.Handler { return promhttp.Handler() }

// HandlerFor serves a specific gatherer.
func HandlerFor(g prometheus.Gatherer) http.Handler {
	return promhttp.HandlerFor(g, promhttp.HandlerOpts{})
}

// Helpers below no-op until Register has succeeded.

func ObserveTick(seconds float64) {
	if regOK.Load() {
		ticks.Inc()
		tickDuration.Observe(seconds)
	}
}

func IncTransition(direction string) {
	if regOK.Load() {
		edges.WithLabelValues(direction).Inc()
	}
}

func IncScopeClear(partition, scope string) {
	if regOK.Load() {
		scopeClears.WithLabelValues(partition, scope).Inc()
	}
}

func IncStart(name string) {
	if regOK.Load() {
		processStarts.WithLabelValues(name).Inc()
	}
}

func IncStop(name string) {
	if regOK.Load() {
		processStops.WithLabelValues(name).Inc()
	}
}

func IncWatchdogKill(name string) {
	if regOK.Load() {
		processWatchdogKills.WithLabelValues(name).Inc()
	}
}

func SetProcessCounts(alive, desired int) {
	if regOK.Load() {
		processesAlive.Set(float64(alive))
		processesDesired.Set(float64(desired))
	}
}

func IncExitRequest(flag string) {
	if regOK.Load() {
		exitRequests.WithLabelValues(flag).Inc()
	}
}
