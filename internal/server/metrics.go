package server

import (
	"strconv"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	httpRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "insight_http_requests_total",
		Help: "HTTP requests handled, by route and status.",
	}, []string{"method", "path", "status"})

	datasetQueryDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "insight_dataset_query_seconds",
		Help:    "Latency of read queries against the analytics datasets.",
		Buckets: prometheus.DefBuckets,
	}, []string{"dataset"})

	loginAttemptsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "insight_login_attempts_total",
		Help: "Login attempts by outcome (success, failure, throttled).",
	}, []string{"outcome"})
)

// metricsMiddleware counts requests per route and status.
func metricsMiddleware(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		err := next(c)
		status := c.Response().Status
		if err != nil {
			status, _ = toEnvelopeError(err)
		}
		path := c.Path()
		if path == "" {
			path = c.Request().URL.Path
		}
		httpRequestsTotal.WithLabelValues(c.Request().Method, path, strconv.Itoa(status)).Inc()
		return err
	}
}

// observeQuery times one dataset round trip: defer observeQuery("qa_logs")().
func observeQuery(dataset string) func() {
	start := time.Now()
	return func() {
		datasetQueryDuration.WithLabelValues(dataset).Observe(time.Since(start).Seconds())
	}
}
