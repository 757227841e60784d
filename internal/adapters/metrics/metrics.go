package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/atvirokodosprendimai/auditlog/internal/core/ports"
)

const namespace = "auditlog"

// Prometheus records audit activity on its own registry.
type Prometheus struct {
	registry *prometheus.Registry

	writesTotal      *prometheus.CounterVec
	deniedTotal      *prometheus.CounterVec
	resolvesTotal    *prometheus.CounterVec
	cleanupDeleted   prometheus.Counter
	cleanupFailures  prometheus.Counter
	cleanupLastRun   prometheus.Gauge
	outboxTotal      *prometheus.CounterVec
	httpRequests     *prometheus.CounterVec
	httpRequestTimes *prometheus.HistogramVec
}

var _ ports.Metrics = (*Prometheus)(nil)

func New() *Prometheus {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	f := promauto.With(reg)

	return &Prometheus{
		registry: reg,
		writesTotal: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "records_written_total",
			Help:      "Audit records written, by kind.",
		}, []string{"kind"}),
		deniedTotal: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "access_denied_total",
			Help:      "Operations rejected by the access policy.",
		}, []string{"operation"}),
		resolvesTotal: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "system_event_resolutions_total",
			Help:      "System event resolve attempts, by result.",
		}, []string{"result"}),
		cleanupDeleted: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "retention_deleted_total",
			Help:      "Action log entries removed by retention cleanup.",
		}),
		cleanupFailures: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "retention_failures_total",
			Help:      "Retention cleanup runs that failed.",
		}),
		cleanupLastRun: f.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "retention_last_success_timestamp_seconds",
			Help:      "Unix time of the last successful retention cleanup.",
		}),
		outboxTotal: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "outbox_dispatch_total",
			Help:      "Outbox dispatch outcomes.",
		}, []string{"result"}),
		httpRequests: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_requests_total",
			Help:      "HTTP requests, by route and status.",
		}, []string{"method", "route", "status"}),
		httpRequestTimes: f.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request latency.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"method", "route"}),
	}
}

func (p *Prometheus) Registry() *prometheus.Registry { return p.registry }

func (p *Prometheus) Handler() http.Handler {
	return promhttp.HandlerFor(p.registry, promhttp.HandlerOpts{Registry: p.registry})
}

func (p *Prometheus) ObserveWrite(kind string) { p.writesTotal.WithLabelValues(kind).Inc() }

func (p *Prometheus) ObserveDenied(operation string) { p.deniedTotal.WithLabelValues(operation).Inc() }

func (p *Prometheus) ObserveResolve(result string) { p.resolvesTotal.WithLabelValues(result).Inc() }

func (p *Prometheus) ObserveCleanup(deleted int64, ranAt time.Time, err error) {
	if err != nil {
		p.cleanupFailures.Inc()
		return
	}
	p.cleanupDeleted.Add(float64(deleted))
	p.cleanupLastRun.Set(float64(ranAt.Unix()))
}

func (p *Prometheus) ObserveOutboxDispatch(result string) {
	p.outboxTotal.WithLabelValues(result).Inc()
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}

// Middleware labels requests by chi route pattern so ids in paths do not
// explode cardinality.
func (p *Prometheus) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r)

		route := "unmatched"
		if rctx := chi.RouteContext(r.Context()); rctx != nil {
			if pattern := rctx.RoutePattern(); pattern != "" {
				route = pattern
			}
		}
		p.httpRequests.WithLabelValues(r.Method, route, strconv.Itoa(rec.status)).Inc()
		p.httpRequestTimes.WithLabelValues(r.Method, route).Observe(time.Since(start).Seconds())
	})
}
