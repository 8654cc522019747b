// Package metrics provides Prometheus metrics for the FileKeeper server.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	httpRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "filekeeper_http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "route", "status"},
	)

	httpRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "filekeeper_http_request_duration_seconds",
			Help:    "HTTP request duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "route"},
	)

	stagingBytesWritten = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "filekeeper_staging_bytes_written_total",
			Help: "Bytes accepted into staging objects",
		},
	)

	stagingWritesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "filekeeper_staging_writes_total",
			Help: "Staging chunk writes by result",
		},
		[]string{"result"},
	)

	promotionsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "filekeeper_promotions_total",
			Help: "Promotions by result",
		},
		[]string{"result"},
	)

	bytesServed = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "filekeeper_resident_bytes_served_total",
			Help: "Bytes served from resident objects",
		},
	)

	sweptStagingFiles = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "filekeeper_swept_staging_files_total",
			Help: "Expired staging rows removed by the sweeper",
		},
	)

	sweepErrors = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "filekeeper_sweep_errors_total",
			Help: "Failed sweeper iterations",
		},
	)

	reclaimTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "filekeeper_reclaim_total",
			Help: "Staging byte removals by result",
		},
		[]string{"result"},
	)

	reclaimQueueDepth = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "filekeeper_reclaim_queue_depth",
			Help: "Staging objects waiting for removal",
		},
	)
)

// Handler returns the Prometheus scrape handler.
func Handler() http.Handler {
	return promhttp.Handler()
}

func RecordHTTPRequest(method, route string, status int, duration time.Duration) {
	httpRequestsTotal.WithLabelValues(method, route, strconv.Itoa(status)).Inc()
	httpRequestDuration.WithLabelValues(method, route).Observe(duration.Seconds())
}

// RecordStagingWrite counts a chunk write; grown is how many bytes the
// staging object grew by.
func RecordStagingWrite(grown int64, err error) {
	if grown > 0 {
		stagingBytesWritten.Add(float64(grown))
	}
	stagingWritesTotal.WithLabelValues(result(err)).Inc()
}

func RecordPromotion(err error) {
	promotionsTotal.WithLabelValues(result(err)).Inc()
}

func RecordBytesServed(n int64) {
	if n > 0 {
		bytesServed.Add(float64(n))
	}
}

func RecordSweep(removed int, err error) {
	if err != nil {
		sweepErrors.Inc()
		return
	}
	sweptStagingFiles.Add(float64(removed))
}

func RecordReclaim(err error) {
	reclaimTotal.WithLabelValues(result(err)).Inc()
}

func SetReclaimQueueDepth(n int) {
	reclaimQueueDepth.Set(float64(n))
}

func result(err error) string {
	if err != nil {
		return "error"
	}
	return "ok"
}
