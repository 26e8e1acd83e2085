package observability

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	RequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "feasibility_http_requests_total",
			Help: "Total ops HTTP requests",
		}, []string{"code"},
	)
	Latency = prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "feasibility_http_request_duration_seconds",
		Help:    "Request latency seconds",
		Buckets: prometheus.DefBuckets,
	})
	InFlight = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "feasibility_http_in_flight",
		Help: "In-flight HTTP requests",
	})
	QueriesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "feasibility_queries_total",
			Help: "Solved queries by type and result status",
		}, []string{"type", "status"},
	)
	SolveDuration = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "feasibility_solve_duration_seconds",
		Help:    "Time spent solving a query, connection checkout included",
		Buckets: []float64{.05, .1, .25, .5, 1, 2.5, 5, 10, 30, 60, 120},
	}, []string{"type"})
	UpstreamErrors = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "feasibility_upstream_errors_total",
			Help: "Task API failures by operation",
		}, []string{"op"},
	)
)

func init() {
	prometheus.MustRegister(RequestsTotal, Latency, InFlight, QueriesTotal, SolveDuration, UpstreamErrors)
}

func MetricsHandler() http.Handler { return promhttp.Handler() }

// ObserveSolve records one finished solve.
func ObserveSolve(queryType, status string, started time.Time) {
	QueriesTotal.WithLabelValues(queryType, status).Inc()
	SolveDuration.WithLabelValues(queryType).Observe(time.Since(started).Seconds())
}

type rec struct {
	http.ResponseWriter
	code int
}

func (r *rec) WriteHeader(code int) {
	r.code = code
	r.ResponseWriter.WriteHeader(code)
}

func Measure(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		InFlight.Inc()
		defer InFlight.Dec()

		rr := &rec{ResponseWriter: w, code: http.StatusOK}
		next.ServeHTTP(rr, r)

		Latency.Observe(time.Since(start).Seconds())
		RequestsTotal.WithLabelValues(strconv.Itoa(rr.code)).Inc()
	})
}
