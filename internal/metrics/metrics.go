package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "newsdesk"

// Metrics holds the collectors for one desk runtime on its own registry.
type Metrics struct {
	registry *prometheus.Registry

	QueriesSet       prometheus.Counter
	FetchesStarted   prometheus.Counter
	FetchesCompleted *prometheus.CounterVec
	FetchesDiscarded *prometheus.CounterVec
	FetchDuration    prometheus.Histogram
	Loading          prometheus.Gauge
	Announced        *prometheus.CounterVec

	HTTPRequests        *prometheus.CounterVec
	HTTPRequestDuration *prometheus.HistogramVec
}

// New registers every collector plus the Go and process collectors.
func New(appName, env string) *Metrics {
	reg := prometheus.NewRegistry()
	m := &Metrics{
		registry: reg,
		QueriesSet: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "queries_set_total",
			Help:      "Total number of query changes received.",
		}),
		FetchesStarted: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "fetches_started_total",
			Help:      "Total number of fetches issued to the news source.",
		}),
		FetchesCompleted: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "fetches_completed_total",
			Help:      "Fetches that changed state, by outcome.",
		}, []string{"outcome"}),
		FetchesDiscarded: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "fetches_discarded_total",
			Help:      "Fetch results ignored, by reason.",
		}, []string{"reason"}),
		FetchDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "fetch_duration_seconds",
			Help:      "Latency of news source fetches that changed state.",
			Buckets:   prometheus.DefBuckets,
		}),
		Loading: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "loading",
			Help:      "1 while a fetch is in flight.",
		}),
		Announced: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "articles_announced_total",
			Help:      "Articles announced to downstream sinks, by result.",
		}, []string{"result"}),
		HTTPRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_requests_total",
			Help:      "Total number of HTTP requests.",
		}, []string{"method", "route", "status_code"}),
		HTTPRequestDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request duration in seconds.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"method", "route"}),
	}

	info := prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "application_info",
		Help:      "Application information.",
	}, []string{"app", "env"})
	info.WithLabelValues(appName, env).Set(1)

	reg.MustRegister(
		m.QueriesSet, m.FetchesStarted, m.FetchesCompleted, m.FetchesDiscarded,
		m.FetchDuration, m.Loading, m.Announced, m.HTTPRequests, m.HTTPRequestDuration,
		info,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return m
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

// Registry exposes the underlying registry.
func (m *Metrics) Registry() *prometheus.Registry { return m.registry }

// The methods below satisfy controller.Metrics.

func (m *Metrics) QuerySet() { m.QueriesSet.Inc() }

func (m *Metrics) FetchStarted() {
	m.FetchesStarted.Inc()
	m.Loading.Set(1)
}

func (m *Metrics) FetchFinished(outcome string, elapsed time.Duration) {
	m.FetchesCompleted.WithLabelValues(outcome).Inc()
	m.FetchDuration.Observe(elapsed.Seconds())
	m.Loading.Set(0)
}

func (m *Metrics) FetchDiscarded(reason string) {
	m.FetchesDiscarded.WithLabelValues(reason).Inc()
}

// ObserveHTTP records one served request.
func (m *Metrics) ObserveHTTP(method, route, status string, elapsed time.Duration) {
	m.HTTPRequests.WithLabelValues(method, route, status).Inc()
	m.HTTPRequestDuration.WithLabelValues(method, route).Observe(elapsed.Seconds())
}

// ArticlesAnnounced counts n articles handed to sinks with the given result.
func (m *Metrics) ArticlesAnnounced(result string, n int) {
	if n <= 0 {
		return
	}
	m.Announced.WithLabelValues(result).Add(float64(n))
}
