package metrics

import (
	"net/http"
	"os"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	RefreshRuns = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "closer_refresh_runs_total",
		Help: "Total suggestion refresh runs",
	})
	RefreshErrors = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "closer_refresh_errors_total",
		Help: "Total suggestion refresh errors",
	})
	RefreshDuration = prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "closer_refresh_duration_seconds",
		Help:    "Suggestion refresh duration seconds",
		Buckets: prometheus.DefBuckets,
	})
	SuggestionsProduced = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "closer_suggestions_produced",
		Help: "Suggestions produced by the last refresh",
	})
	DegradedTimezones = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "closer_degraded_timezone_total",
		Help: "Suggestions computed without a resolvable friend timezone",
	})
	BusyFetchErrors = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "closer_busy_fetch_errors_total",
		Help: "Busy source fetch errors",
	}, []string{"source"})
	Commands = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "closer_commands_total",
		Help: "CLI command invocations",
	}, []string{"command"})
	CommandErrors = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "closer_command_errors_total",
		Help: "CLI command failures",
	}, []string{"command"})
)

func init() {
	prometheus.MustRegister(RefreshRuns, RefreshErrors, RefreshDuration,
		SuggestionsProduced, DegradedTimezones, BusyFetchErrors, Commands, CommandErrors)
}

// StartServer starts a metrics HTTP server on addr (e.g., ":9090").
func StartServer(addr string) {
	if addr == "" {
		addr = os.Getenv("METRICS_ADDR")
	}
	if addr == "" {
		return
	}
	http.Handle("/metrics", promhttp.Handler())
	http.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(http.StatusOK) })
	go func() { _ = http.ListenAndServe(addr, nil) }()
}

// ObserveRefreshDuration records a run duration.
func ObserveRefreshDuration(start time.Time) {
	RefreshDuration.Observe(time.Since(start).Seconds())
}

// IncBusyFetchError increments the fetch error counter for a source.
func IncBusyFetchError(source string) { BusyFetchErrors.WithLabelValues(source).Inc() }

// IncCommandRun increments the invocation counter for a CLI command.
func IncCommandRun(command string) { Commands.WithLabelValues(command).Inc() }

// IncCommandError increments the failure counter for a CLI command.
func IncCommandError(command string) { CommandErrors.WithLabelValues(command).Inc() }
