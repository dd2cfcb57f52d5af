// Package metrics collects Prometheus counters for the authorization flow and the HTTP server.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Outcome labels for the callback and refresh counters.
const (
	OutcomeSuccess       = "success"
	OutcomeStateMismatch = "state_mismatch"
	OutcomeInvalidToken  = "invalid_token"
	OutcomeProfileError  = "profile_error"
	OutcomeStoreError    = "store_error"
	OutcomeMissingToken  = "missing_token"
	OutcomeUpstreamError = "upstream_error"
)

// Recorder is implemented by [Collector] and [Nop]. Handlers and middleware depend on it.
type Recorder interface {
	RecordLogin()
	RecordCallback(outcome string)
	RecordRefresh(outcome string)
	RecordCredentialSaved()
	ObserveRequest(method, route string, status int, duration time.Duration)
}

// Collector records flow outcomes into a Prometheus registry.
type Collector struct {
	logins           prometheus.Counter
	callbacks        *prometheus.CounterVec
	refreshes        *prometheus.CounterVec
	credentialsSaved prometheus.Counter
	requestDuration  *prometheus.HistogramVec
}

// NewCollector creates a [Collector] and registers its metrics with reg.
func NewCollector(reg prometheus.Registerer) *Collector {
	c := &Collector{
		logins: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "spotauth_logins_total",
			Help: "Number of authorization redirects issued by /login.",
		}),
		callbacks: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "spotauth_callbacks_total",
			Help: "Number of /callback requests by outcome.",
		}, []string{"outcome"}),
		refreshes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "spotauth_refreshes_total",
			Help: "Number of /refresh_token requests by outcome.",
		}, []string{"outcome"}),
		credentialsSaved: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "spotauth_credentials_saved_total",
			Help: "Number of credential records persisted.",
		}),
		requestDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "spotauth_http_request_duration_seconds",
			Help:    "HTTP request latency by method, route and status code.",
			Buckets: prometheus.DefBuckets,
		}, []string{"method", "route", "status"}),
	}

	reg.MustRegister(
		c.logins,
		c.callbacks,
		c.refreshes,
		c.credentialsSaved,
		c.requestDuration,
	)

	return c
}

func (c *Collector) RecordLogin() {
	c.logins.Inc()
}

func (c *Collector) RecordCallback(outcome string) {
	c.callbacks.WithLabelValues(outcome).Inc()
}

func (c *Collector) RecordRefresh(outcome string) {
	c.refreshes.WithLabelValues(outcome).Inc()
}

func (c *Collector) RecordCredentialSaved() {
	c.credentialsSaved.Inc()
}

// ObserveRequest records the latency of one HTTP request.
func (c *Collector) ObserveRequest(method, route string, status int, duration time.Duration) {
	c.requestDuration.WithLabelValues(method, route, strconv.Itoa(status)).Observe(duration.Seconds())
}

// Nop discards everything.
type Nop struct{}

func (Nop) RecordLogin() {}
func (Nop) RecordCallback(string) {}
func (Nop) RecordRefresh(string) {}
func (Nop) RecordCredentialSaved() {}
func (Nop) ObserveRequest(string, string, int, time.Duration) {}

// Handler returns the Prometheus scrape handler for gatherer.
func Handler(gatherer prometheus.Gatherer) http.Handler {
	return promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})
}

var (
	_ Recorder = (*Collector)(nil)
	_ Recorder = Nop{}
)
