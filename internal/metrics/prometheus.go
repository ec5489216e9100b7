package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// PrometheusRecorder exports Recorder events as Prometheus collectors.
type PrometheusRecorder struct {
	registry         *prometheus.Registry
	signups          *prometheus.CounterVec
	logins           *prometheus.CounterVec
	tokenValidations *prometheus.CounterVec
	rateLimited      *prometheus.CounterVec
	auditEvents      *prometheus.CounterVec
	hashDuration     *prometheus.HistogramVec
}

// NewPrometheus creates a recorder backed by its own registry, which also
// carries the Go runtime and process collectors.
func NewPrometheus() *PrometheusRecorder {
	p := &PrometheusRecorder{
		registry: prometheus.NewRegistry(),
		signups: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "authgate_signups_total",
				Help: "Total number of signup attempts",
			},
			[]string{"status"},
		),
		logins: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "authgate_logins_total",
				Help: "Total number of login attempts",
			},
			[]string{"status"},
		),
		tokenValidations: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "authgate_token_validations_total",
				Help: "Total number of bearer token validations",
			},
			[]string{"status"},
		),
		rateLimited: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "authgate_rate_limited_total",
				Help: "Requests rejected by the per-IP rate limiter",
			},
			[]string{"route"},
		),
		auditEvents: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "authgate_audit_events_total",
				Help: "Auth events published to the audit stream",
			},
			[]string{"status"},
		),
		hashDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "authgate_password_hash_duration_seconds",
				Help:    "Password hash and verify duration in seconds",
				Buckets: []float64{.01, .025, .05, .1, .25, .5, 1, 2.5},
			},
			[]string{"op"},
		),
	}

	p.registry.MustRegister(collectors.NewGoCollector())
	p.registry.MustRegister(collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	p.registry.MustRegister(p.signups, p.logins, p.tokenValidations, p.rateLimited, p.auditEvents, p.hashDuration)
	return p
}

// Registry exposes the underlying registry.
func (p *PrometheusRecorder) Registry() *prometheus.Registry {
	return p.registry
}

// Handler serves the registry in the Prometheus exposition format.
func (p *PrometheusRecorder) Handler() http.Handler {
	return promhttp.HandlerFor(p.registry, promhttp.HandlerOpts{Registry: p.registry})
}

// IncSignup counts a signup attempt by outcome.
func (p *PrometheusRecorder) IncSignup(status string) {
	p.signups.WithLabelValues(status).Inc()
}

// IncLogin counts a login attempt by outcome.
func (p *PrometheusRecorder) IncLogin(status string) {
	p.logins.WithLabelValues(status).Inc()
}

// IncTokenValidation counts a bearer token check by outcome.
func (p *PrometheusRecorder) IncTokenValidation(status string) {
	p.tokenValidations.WithLabelValues(status).Inc()
}

// ObserveHashDuration records hashing time.
func (p *PrometheusRecorder) ObserveHashDuration(op string, duration time.Duration) {
	p.hashDuration.WithLabelValues(op).Observe(duration.Seconds())
}

// IncRateLimited counts a rejected request.
func (p *PrometheusRecorder) IncRateLimited(route string) {
	p.rateLimited.WithLabelValues(route).Inc()
}

// IncAuditEvent counts an audit publish by outcome.
func (p *PrometheusRecorder) IncAuditEvent(status string) {
	p.auditEvents.WithLabelValues(status).Inc()
}
