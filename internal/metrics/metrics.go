// Package metrics exposes authentication metrics in Prometheus format.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Outcome labels.
const (
	OutcomeSuccess = "success"
	OutcomeFailure = "failure"
	OutcomeError   = "error"
)

// Recorder is what the session layer reports to.
type Recorder interface {
	RecordLogin(outcome string)
	RecordRegistration(outcome string)
	RecordRefresh(outcome string)
	RecordLogout()
	RecordVerifyFailure(reason string)
	RecordHashDuration(d time.Duration)
}

// Collector is the Prometheus-backed Recorder.
type Collector struct {
	logins        *prometheus.CounterVec
	registrations *prometheus.CounterVec
	refreshes     *prometheus.CounterVec
	logouts       prometheus.Counter
	verifyFail    *prometheus.CounterVec
	hashDuration  prometheus.Histogram
}

// NewCollector creates the metrics and registers them on reg.
func NewCollector(reg prometheus.Registerer) *Collector {
	c := &Collector{
		logins: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "todolist_auth_logins_total",
			Help: "Login attempts by outcome.",
		}, []string{"outcome"}),
		registrations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "todolist_auth_registrations_total",
			Help: "Registration attempts by outcome.",
		}, []string{"outcome"}),
		refreshes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "todolist_auth_refreshes_total",
			Help: "Token refresh attempts by outcome.",
		}, []string{"outcome"}),
		logouts: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "todolist_auth_logouts_total",
			Help: "Completed logouts.",
		}),
		verifyFail: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "todolist_auth_token_verify_failures_total",
			Help: "Rejected access tokens by reason.",
		}, []string{"reason"}),
		hashDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "todolist_auth_password_hash_seconds",
			Help:    "Time spent hashing or comparing passwords.",
			Buckets: []float64{0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5},
		}),
	}

	reg.MustRegister(
		c.logins,
		c.registrations,
		c.refreshes,
		c.logouts,
		c.verifyFail,
		c.hashDuration,
	)

	return c
}

func (c *Collector) RecordLogin(outcome string) {
	c.logins.WithLabelValues(outcome).Inc()
}

func (c *Collector) RecordRegistration(outcome string) {
	c.registrations.WithLabelValues(outcome).Inc()
}

func (c *Collector) RecordRefresh(outcome string) {
	c.refreshes.WithLabelValues(outcome).Inc()
}

func (c *Collector) RecordLogout() {
	c.logouts.Inc()
}

func (c *Collector) RecordVerifyFailure(reason string) {
	c.verifyFail.WithLabelValues(reason).Inc()
}

func (c *Collector) RecordHashDuration(d time.Duration) {
	c.hashDuration.Observe(d.Seconds())
}

// Handler returns the scrape handler for gatherer.
func Handler(gatherer prometheus.Gatherer) http.Handler {
	return promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})
}

// Nop discards everything.
type Nop struct{}

func (Nop) RecordLogin(string)               {}
func (Nop) RecordRegistration(string)        {}
func (Nop) RecordRefresh(string)             {}
func (Nop) RecordLogout()                    {}
func (Nop) RecordVerifyFailure(string)       {}
func (Nop) RecordHashDuration(time.Duration) {}

var (
	_ Recorder = (*Collector)(nil)
	_ Recorder = Nop{}
)
