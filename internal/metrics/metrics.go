// Package metrics exposes client activity as Prometheus series.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Collector records chat activity. A nil *Collector discards everything.
type Collector struct {
	registry *prometheus.Registry

	sessionsTotal   *prometheus.CounterVec
	requestsTotal   *prometheus.CounterVec
	callsTotal      *prometheus.CounterVec
	recoveriesTotal *prometheus.CounterVec
	filesTotal      *prometheus.CounterVec
	presence        *prometheus.GaugeVec
	callDuration    prometheus.Histogram
}

func NewCollector() *Collector {
	reg := prometheus.NewRegistry()
	factory := promauto.With(reg)

	return &Collector{
		registry: reg,

		sessionsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "p2pchat_sessions_total",
			Help: "Sessions opened, by direction",
		}, []string{"direction"}),

		requestsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "p2pchat_requests_total",
			Help: "Inbound connection requests, by outcome",
		}, []string{"outcome"}),

		callsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "p2pchat_calls_total",
			Help: "Media calls started, by direction",
		}, []string{"direction"}),

		recoveriesTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "p2pchat_recoveries_total",
			Help: "Health monitor recovery actions, by kind",
		}, []string{"kind"}),

		filesTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "p2pchat_files_total",
			Help: "Files transferred, by direction",
		}, []string{"direction"}),

		presence: factory.NewGaugeVec(prometheus.GaugeOpts{
			Name: "p2pchat_presence",
			Help: "1 for the current presence status, 0 otherwise",
		}, []string{"status"}),

		callDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "p2pchat_call_duration_seconds",
			Help:    "Duration of media calls",
			Buckets: prometheus.ExponentialBuckets(5, 2, 10),
		}),
	}
}

func (c *Collector) SessionOpened(direction string) {
	if c == nil {
		return
	}
	c.sessionsTotal.WithLabelValues(direction).Inc()
}

// Request outcomes.
const (
	OutcomeAccepted = "accepted"
	OutcomeAuto     = "auto_accepted"
	OutcomeQueued   = "queued"
	OutcomeRejected = "rejected"
	OutcomeBusy     = "busy"
	OutcomeExpired  = "expired"
)

func (c *Collector) Request(outcome string) {
	if c == nil {
		return
	}
	c.requestsTotal.WithLabelValues(outcome).Inc()
}

func (c *Collector) CallStarted(direction string) {
	if c == nil {
		return
	}
	c.callsTotal.WithLabelValues(direction).Inc()
}

func (c *Collector) CallEnded(d time.Duration) {
	if c == nil || d <= 0 {
		return
	}
	c.callDuration.Observe(d.Seconds())
}

// Recovery kinds.
const (
	RecoveryPlay    = "play"
	RecoveryRestart = "ice_restart"
	RecoveryRedial  = "redial"
	RecoveryUnmute  = "unmute"
)

func (c *Collector) Recovery(kind string) {
	if c == nil {
		return
	}
	c.recoveriesTotal.WithLabelValues(kind).Inc()
}

func (c *Collector) File(direction string) {
	if c == nil {
		return
	}
	c.filesTotal.WithLabelValues(direction).Inc()
}

// Presence marks status as current.
func (c *Collector) Presence(status string, all ...string) {
	if c == nil {
		return
	}
	for _, s := range all {
		c.presence.WithLabelValues(s).Set(0)
	}
	c.presence.WithLabelValues(status).Set(1)
}

func (c *Collector) Registry() *prometheus.Registry {
	return c.registry
}

// Handler serves the collector's registry.
func (c *Collector) Handler() http.Handler {
	return promhttp.HandlerFor(c.registry, promhttp.HandlerOpts{})
}
