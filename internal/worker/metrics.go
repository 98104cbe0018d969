package worker

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	decodesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "qrscan_worker_decodes_total",
			Help: "Total number of decode requests handled by the worker",
		},
		[]string{"outcome"}, // outcome: ok, not_found, malformed
	)

	decodeDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "qrscan_worker_decode_duration_seconds",
			Help:    "Worker decode duration in seconds",
			Buckets: []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1, 2.5},
		},
	)
)
