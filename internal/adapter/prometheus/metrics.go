package prometheus

import (
	"context"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/neomorfeo/schooldesk/internal/domain"
)

// Metrics owns a private registry so tests can create as many as they like.
type Metrics struct {
	registry        *prometheus.Registry
	requestsTotal   *prometheus.CounterVec
	requestDuration *prometheus.HistogramVec
}

// New registers the HTTP metrics under prefix, plus the Go runtime and
// process collectors.
func New(prefix string) *Metrics {
	reg := prometheus.NewRegistry()
	m := &Metrics{
		registry: reg,
		requestsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: prefix + "_http_requests_total",
				Help: "Total number of HTTP requests",
			},
			[]string{"method", "path", "status"},
		),
		requestDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    prefix + "_http_request_duration_seconds",
				Help:    "Duration of HTTP requests in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"method", "path", "status"},
		),
	}
	reg.MustRegister(
		m.requestsTotal,
		m.requestDuration,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return m
}

// Middleware records every request under its chi route pattern, which keeps
// label cardinality bounded.
func (m *Metrics) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)

		path := "unmatched"
		if rctx := chi.RouteContext(r.Context()); rctx != nil {
			if p := rctx.RoutePattern(); p != "" {
				path = p
			}
		}
		status := ww.Status()
		if status == 0 {
			status = http.StatusOK
		}
		labels := []string{r.Method, path, strconv.Itoa(status)}
		m.requestsTotal.WithLabelValues(labels...).Inc()
		m.requestDuration.WithLabelValues(labels...).Observe(time.Since(start).Seconds())
	})
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

// RegisterSchools exports the number of schools per status and payment
// status, read from the repository at scrape time.
func (m *Metrics) RegisterSchools(prefix string, tenants domain.TenantRepository, log *slog.Logger) error {
	return m.registry.Register(&schoolCollector{
		tenants: tenants,
		log:     log,
		desc: prometheus.NewDesc(
			prefix+"_schools",
			"Number of registered schools",
			[]string{"status", "payment_status"}, nil,
		),
	})
}

type schoolCollector struct {
	tenants domain.TenantRepository
	log     *slog.Logger
	desc    *prometheus.Desc
}

func (c *schoolCollector) Describe(ch chan<- *prometheus.Desc) {
	ch <- c.desc
}

func (c *schoolCollector) Collect(ch chan<- prometheus.Metric) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	tenants, err := c.tenants.List(ctx)
	if err != nil {
		c.log.ErrorContext(ctx, "collecting school metrics", "error", err)
		ch <- prometheus.NewInvalidMetric(c.desc, err)
		return
	}

	type key struct{ status, payment string }
	counts := make(map[key]int)
	for _, t := range tenants {
		status := domain.StatusActive
		if t.Status.IsInactive() {
			status = domain.StatusSuspended
		}
		payment := domain.PaymentUnpaid
		if t.PaymentStatus.IsPaid() {
			payment = domain.PaymentPaid
		}
		counts[key{string(status), string(payment)}]++
	}
	for k, n := range counts {
		ch <- prometheus.MustNewConstMetric(c.desc, prometheus.GaugeValue, float64(n), k.status, k.payment)
	}
}
