package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics owns its registry so several instances (tests, multiple servers)
// never collide on registration.
type Metrics struct {
	service  string
	registry *prometheus.Registry

	requests       *prometheus.CounterVec
	duration       *prometheus.HistogramVec
	statusCategory *prometheus.CounterVec

	ordersCreated prometheus.Counter
	orderFailures *prometheus.CounterVec
	unitsReserved prometheus.Counter
	txRetries     prometheus.Counter
}

func New(service string) *Metrics {
	m := &Metrics{
		service:  service,
		registry: prometheus.NewRegistry(),
		requests: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "http_requests_total",
				Help: "Total number of HTTP requests",
			},
			[]string{"service", "method", "path", "status"},
		),
		duration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "http_request_duration_seconds",
				Help:    "Duration of HTTP requests in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"service", "method", "path", "status"},
		),
		statusCategory: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "http_status_category_total",
				Help: "Total number of responses by status category (2xx, 4xx, 5xx)",
			},
			[]string{"service", "category"},
		),
		ordersCreated: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "pdv_orders_created_total",
			Help: "Orders committed by the order workflow",
		}),
		orderFailures: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "pdv_order_failures_total",
				Help: "Rejected or failed order submissions by error kind",
			},
			[]string{"kind"},
		),
		unitsReserved: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "pdv_stock_units_reserved_total",
			Help: "Stock units decremented by committed orders",
		}),
		txRetries: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "pdv_order_tx_retries_total",
			Help: "Order transactions retried after deadlock or serialization failure",
		}),
	}

	m.registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		m.requests,
		m.duration,
		m.statusCategory,
		m.ordersCreated,
		m.orderFailures,
		m.unitsReserved,
		m.txRetries,
	)

	return m
}

func (m *Metrics) Registry() *prometheus.Registry { return m.registry }

// Handler exposes the registry in the Prometheus text format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// Middleware records request count and latency labelled by chi route
// pattern, which keeps label cardinality bounded.
func (m *Metrics) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)

		next.ServeHTTP(ww, r)

		path := r.URL.Path
		if rctx := chi.RouteContext(r.Context()); rctx != nil && rctx.RoutePattern() != "" {
			path = rctx.RoutePattern()
		}
		status := ww.Status()
		if status == 0 {
			status = http.StatusOK
		}
		statusStr := strconv.Itoa(status)

		m.requests.WithLabelValues(m.service, r.Method, path, statusStr).Inc()
		m.duration.WithLabelValues(m.service, r.Method, path, statusStr).Observe(time.Since(start).Seconds())
		if category := statusCategory(status); category != "" {
			m.statusCategory.WithLabelValues(m.service, category).Inc()
		}
	})
}

func statusCategory(status int) string {
	switch {
	case status >= 200 && status < 300:
		return "2xx"
	case status >= 400 && status < 500:
		return "4xx"
	case status >= 500 && status < 600:
		return "5xx"
	}
	return ""
}

func (m *Metrics) OrderCreated(units int) {
	m.ordersCreated.Inc()
	m.unitsReserved.Add(float64(units))
}

func (m *Metrics) OrderFailed(kind string) {
	m.orderFailures.WithLabelValues(kind).Inc()
}

func (m *Metrics) TxRetried() {
	m.txRetries.Inc()
}
