package qrscan

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	scansTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "qrscan_scans_total",
			Help: "Total number of scan calls",
		},
		[]string{"engine", "outcome"}, // outcome: ok, not_found, timeout, error
	)

	scanDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "qrscan_scan_duration_seconds",
			Help:    "Scan duration in seconds, successful scans only",
			Buckets: []float64{.005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10},
		},
		[]string{"engine"},
	)

	nativeDowngradesTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "qrscan_native_downgrades_total",
			Help: "Times the native detector path was latched off at runtime",
		},
	)
)
