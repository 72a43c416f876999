package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Command outcomes.
const (
	OutcomeAccepted = "accepted"
	OutcomeRejected = "rejected"
	OutcomeFailed   = "failed"
)

// Registry holds every collector exported by the service.
type Registry struct {
	registry *prometheus.Registry

	Commands            *prometheus.CounterVec
	CommandDuration     *prometheus.HistogramVec
	Rejections          *prometheus.CounterVec
	KeeperSweeps        *prometheus.CounterVec
	KeeperFinalizations *prometheus.CounterVec
	KeeperRegistered    prometheus.Gauge
	HTTPRequests        *prometheus.CounterVec
}

// New creates and registers the collectors.
func New() *Registry {
	r := &Registry{
		registry: prometheus.NewRegistry(),
		Commands: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "crowdshare_commands_total",
				Help: "Commands executed by type and outcome",
			},
			[]string{"type", "outcome"},
		),
		CommandDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "crowdshare_command_duration_seconds",
				Help:    "Command execution latency in seconds",
				Buckets: []float64{0.0005, 0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1},
			},
			[]string{"type"},
		),
		Rejections: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "crowdshare_rejections_total",
				Help: "Rejected commands by rejection code",
			},
			[]string{"code"},
		),
		KeeperSweeps: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "crowdshare_keeper_sweeps_total",
				Help: "Keeper due checks by result",
			},
			[]string{"result"},
		),
		KeeperFinalizations: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "crowdshare_keeper_finalizations_total",
				Help: "Per-campaign keeper finalization attempts by outcome",
			},
			[]string{"outcome"},
		),
		KeeperRegistered: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "crowdshare_keeper_registered_campaigns",
				Help: "Campaigns currently registered with the keeper",
			},
		),
		HTTPRequests: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "crowdshare_http_requests_total",
				Help: "HTTP API requests by route and status",
			},
			[]string{"route", "status"},
		),
	}
	r.registry.MustRegister(
		r.Commands,
		r.CommandDuration,
		r.Rejections,
		r.KeeperSweeps,
		r.KeeperFinalizations,
		r.KeeperRegistered,
		r.HTTPRequests,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return r
}

// Handler serves the registry in the Prometheus exposition format.
func (r *Registry) Handler() http.Handler {
	if r == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(r.registry, promhttp.HandlerOpts{})
}

// ObserveCommand records one command execution. A nil registry is a no-op.
func (r *Registry) ObserveCommand(commandType, outcome, code string, elapsed time.Duration) {
	if r == nil {
		return
	}
	r.Commands.WithLabelValues(commandType, outcome).Inc()
	r.CommandDuration.WithLabelValues(commandType).Observe(elapsed.Seconds())
	if outcome == OutcomeRejected && code != "" {
		r.Rejections.WithLabelValues(code).Inc()
	}
}

// ObserveSweep records a keeper due check.
func (r *Registry) ObserveSweep(result string) {
	if r == nil {
		return
	}
	r.KeeperSweeps.WithLabelValues(result).Inc()
}

// ObserveFinalization records one per-campaign keeper attempt.
func (r *Registry) ObserveFinalization(outcome string) {
	if r == nil {
		return
	}
	r.KeeperFinalizations.WithLabelValues(outcome).Inc()
}

// SetRegistered reports the keeper registration count.
func (r *Registry) SetRegistered(n int) {
	if r == nil {
		return
	}
	r.KeeperRegistered.Set(float64(n))
}

// ObserveHTTP records an API request.
func (r *Registry) ObserveHTTP(route, status string) {
	if r == nil {
		return
	}
	r.HTTPRequests.WithLabelValues(route, status).Inc()
}
