// Package metrics содержит метрики Prometheus сервиса.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics хранит все метрики приложения и собственный реестр.
type Metrics struct {
	registry *prometheus.Registry

	MembersCreated      prometheus.Counter
	MemberDecisions     *prometheus.CounterVec
	PledgesCreated      prometheus.Counter
	PaymentsRecorded    prometheus.Counter
	PaymentCents        prometheus.Counter
	PaymentsRejected    *prometheus.CounterVec
	AuthorizationDenied *prometheus.CounterVec
	HTTPRequests        *prometheus.CounterVec
	HTTPDuration        *prometheus.HistogramVec
}

// New создаёт и регистрирует метрики в новом реестре.
func New() *Metrics {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	f := promauto.With(reg)

	return &Metrics{
		registry: reg,
		MembersCreated: f.NewCounter(prometheus.CounterOpts{
			Name: "votos_members_created_total",
			Help: "Total number of members created",
		}),
		MemberDecisions: f.NewCounterVec(prometheus.CounterOpts{
			Name: "votos_member_decisions_total",
			Help: "Administrator decisions on member accounts",
		}, []string{"decision"}),
		PledgesCreated: f.NewCounter(prometheus.CounterOpts{
			Name: "votos_pledges_created_total",
			Help: "Total number of pledges created",
		}),
		PaymentsRecorded: f.NewCounter(prometheus.CounterOpts{
			Name: "votos_payments_recorded_total",
			Help: "Total number of payments recorded",
		}),
		PaymentCents: f.NewCounter(prometheus.CounterOpts{
			Name: "votos_payments_amount_cents_total",
			Help: "Sum of recorded payments in minor units",
		}),
		PaymentsRejected: f.NewCounterVec(prometheus.CounterOpts{
			Name: "votos_payments_rejected_total",
			Help: "Payments rejected by reason",
		}, []string{"reason"}),
		AuthorizationDenied: f.NewCounterVec(prometheus.CounterOpts{
			Name: "votos_authorization_denied_total",
			Help: "Requests denied by the identity gate",
		}, []string{"reason"}),
		HTTPRequests: f.NewCounterVec(prometheus.CounterOpts{
			Name: "votos_http_requests_total",
			Help: "HTTP requests by method and status",
		}, []string{"method", "status"}),
		HTTPDuration: f.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "votos_http_request_duration_seconds",
			Help:    "HTTP request latency",
			Buckets: prometheus.DefBuckets,
		}, []string{"method"}),
	}
}

// Handler возвращает HTTP-обработчик для выдачи метрик.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

// Registry возвращает реестр метрик.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// ObserveRequest учитывает завершённый HTTP-запрос.
func (m *Metrics) ObserveRequest(method string, status int, elapsed time.Duration) {
	m.HTTPRequests.WithLabelValues(method, strconv.Itoa(status)).Inc()
	m.HTTPDuration.WithLabelValues(method).Observe(elapsed.Seconds())
}
