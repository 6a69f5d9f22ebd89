package metrics

import (
	"fmt"
	"net/http"
	"strconv"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Export counts the work done by bulk exports.
type Export struct {
	registry *prometheus.Registry

	Pages            prometheus.Counter
	RateLimitRetries prometheus.Counter
	Rows             prometheus.Counter
	Duration         prometheus.Histogram
}

// NewExport registers the export collectors on a private registry.
func NewExport() *Export {
	m := &Export{
		registry: prometheus.NewRegistry(),
		Pages: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "elog_export_pages_total",
			Help: "Entry pages fetched by bulk exports.",
		}),
		RateLimitRetries: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "elog_export_rate_limit_retries_total",
			Help: "Page requests retried after the backend rate limited them.",
		}),
		Rows: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "elog_export_rows_total",
			Help: "Rows written by bulk exports.",
		}),
		Duration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "elog_export_duration_seconds",
			Help:    "Wall time of completed bulk exports.",
			Buckets: []float64{0.25, 0.5, 1, 2.5, 5, 10, 30, 60, 120},
		}),
	}
	m.registry.MustRegister(m.Pages, m.RateLimitRetries, m.Rows, m.Duration)
	return m
}

// WriteTextfile writes the current values in the node-exporter textfile format.
func (m *Export) WriteTextfile(path string) error {
	if err := prometheus.WriteToTextfile(path, m.registry); err != nil {
		return fmt.Errorf("writing metrics to %s: %w", path, err)
	}
	return nil
}

// Server counts requests handled by the fake backend.
type Server struct {
	registry *prometheus.Registry

	Requests    *prometheus.CounterVec
	RateLimited prometheus.Counter
}

// NewServer registers the request collectors on a private registry.
func NewServer() *Server {
	m := &Server{
		registry: prometheus.NewRegistry(),
		Requests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "elog_mock_requests_total",
			Help: "Requests served by the fake backend.",
		}, []string{"method", "route", "status"}),
		RateLimited: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "elog_mock_rate_limited_total",
			Help: "Requests rejected with 429.",
		}),
	}
	m.registry.MustRegister(m.Requests, m.RateLimited)
	return m
}

// Observe records one handled request.
func (m *Server) Observe(method, route string, status int) {
	if route == "" {
		route = "unmatched"
	}
	m.Requests.WithLabelValues(method, route, strconv.Itoa(status)).Inc()
}

// Handler serves the collectors for scraping.
func (m *Server) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}
