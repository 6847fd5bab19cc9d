package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	BuildInfo = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "lapdcalls_build_info",
			Help: "Build information of the lapdcalls tools",
		},
		[]string{"version", "commit", "date"},
	)

	APIRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "lapdcalls_api_requests_total",
		Help: "Total number of open-data API requests",
	}, []string{"endpoint", "status"})

	RecordsFetchedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "lapdcalls_records_fetched_total",
		Help: "Total number of raw records fetched per vintage",
	}, []string{"vintage"})

	RecordsDroppedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "lapdcalls_records_dropped_total",
		Help: "Total number of records dropped by the normalizer for lacking a primary date",
	}, []string{"vintage"})

	DuplicatesRemovedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "lapdcalls_duplicates_removed_total",
		Help: "Total number of records removed by incident number deduplication",
	})

	RunDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "lapdcalls_run_duration_seconds",
		Help:    "Duration of pipeline runs",
		Buckets: prometheus.ExponentialBuckets(1, 2, 12), // 1s .. ~34m
	}, []string{"mode", "result"})

	RowsWrittenTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "lapdcalls_rows_written_total",
		Help: "Total number of canonical rows written per sink",
	}, []string{"sink"})

	HTTPRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "lapdcalls_http_requests_total",
		Help: "Total number of query API requests served",
	}, []string{"route", "status"})
)
