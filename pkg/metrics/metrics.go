package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Login outcomes.
const (
	OutcomeSuccess = "success"
	OutcomeFailure = "failure"
)

// Metrics holds the auth collectors. Each instance owns its registry so
// tests and multiple servers do not collide.
type Metrics struct {
	registry        *prometheus.Registry
	logins          *prometheus.CounterVec
	sessionOps      *prometheus.CounterVec
	verifications   *prometheus.CounterVec
	requestDuration *prometheus.HistogramVec
}

func New(namespace string) *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		logins: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "logins_total",
			Help:      "Login attempts by method and outcome.",
		}, []string{"method", "outcome"}),
		sessionOps: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "session_operations_total",
			Help:      "Session manager operations by kind and result.",
		}, []string{"op", "result"}),
		verifications: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "email_verifications_total",
			Help:      "Email verification events by kind and outcome.",
		}, []string{"event", "outcome"}),
		requestDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request latencies in seconds.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"method", "route", "status"}),
	}

	m.registry.MustRegister(
		m.logins,
		m.sessionOps,
		m.verifications,
		m.requestDuration,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return m
}

// Login records one login attempt. method is a provider key or "password".
func (m *Metrics) Login(method string, ok bool) {
	m.logins.WithLabelValues(method, outcome(ok)).Inc()
}

// SessionOp records a session manager call ("set", "get", "delete").
func (m *Metrics) SessionOp(op string, ok bool) {
	m.sessionOps.WithLabelValues(op, outcome(ok)).Inc()
}

// Verification records a verification event ("issue", "redeem").
func (m *Metrics) Verification(event string, ok bool) {
	m.verifications.WithLabelValues(event, outcome(ok)).Inc()
}

// ObserveRequest records a request duration. route should be the route
// pattern, not the raw path, to bound cardinality.
func (m *Metrics) ObserveRequest(method, route string, status int, d time.Duration) {
	m.requestDuration.WithLabelValues(method, route, strconv.Itoa(status)).Observe(d.Seconds())
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// Registry is exposed for tests and additional collectors.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

func outcome(ok bool) string {
	if ok {
		return OutcomeSuccess
	}
	return OutcomeFailure
}
