// Copyright (c) 2024 The Sonoma developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package cpuminer

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	prometheusMinerBlocksMined      prometheus.Counter
	prometheusMinerBlocksRejected   prometheus.Counter
	prometheusMinerSessionsCanceled prometheus.Counter
	prometheusMinerSessionDuration  prometheus.Histogram
	prometheusMinerHashes           prometheus.Counter
	prometheusMinerHashesPerSec     prometheus.Gauge
)

var prometheusMetricsInitOnce sync.Once

func initPrometheusMetrics() {
	prometheusMetricsInitOnce.Do(_initPrometheusMetrics)
}

func _initPrometheusMetrics() {
	prometheusMinerBlocksMined = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: "sonoma",
			Subsystem: "miner",
			Name:      "blocks_mined",
			Help:      "Number of solved blocks accepted by the chain",
		},
	)

	prometheusMinerBlocksRejected = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: "sonoma",
			Subsystem: "miner",
			Name:      "blocks_rejected",
			Help:      "Number of solved blocks rejected by the chain",
		},
	)

	prometheusMinerSessionsCanceled = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: "sonoma",
			Subsystem: "miner",
			Name:      "sessions_cancelled",
			Help:      "Number of hash searches cancelled before finding a solution",
		},
	)

	prometheusMinerSessionDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: "sonoma",
			Subsystem: "miner",
			Name:      "session_duration_seconds",
			Help:      "Duration of hash search sessions",
			Buckets:   prometheus.ExponentialBuckets(0.01, 4, 10),
		},
	)

	prometheusMinerHashes = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: "sonoma",
			Subsystem: "miner",
			Name:      "hashes",
			Help:      "Number of block hashes computed",
		},
	)

	prometheusMinerHashesPerSec = promauto.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "sonoma",
			Subsystem: "miner",
			Name:      "hashes_per_second",
			Help:      "Smoothed hash rate of the miner",
		},
	)
}
