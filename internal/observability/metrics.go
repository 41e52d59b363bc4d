package observability

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	BatchCyclesTotal = promauto.NewCounter(prometheus.CounterOpts{Namespace: "wave_dispatch", Name: "batch_cycles_total", Help: "Total batching cycles run"})
	BatchCycleLatency = promauto.NewHistogram(prometheus.HistogramOpts{
		Namespace: "wave_dispatch", Name: "batch_cycle_seconds", Help: "Batching cycle latency seconds",
		Buckets: prometheus.DefBuckets,
	})
	JobsEmitted = promauto.NewCounterVec(
		prometheus.CounterOpts{Namespace: "wave_dispatch", Name: "jobs_emitted_total", Help: "Jobs emitted by the batching engine"},
		[]string{"job_type"},
	)
	OrdersDeferred = promauto.NewCounter(prometheus.CounterOpts{Namespace: "wave_dispatch", Name: "orders_deferred_total", Help: "Orders held back by the rolling horizon"})
	PoolDepth      = promauto.NewGauge(prometheus.GaugeOpts{Namespace: "wave_dispatch", Name: "horizon_pool_depth", Help: "Orders currently held in the horizon pool"})

	WavesBroadcast = promauto.NewCounter(prometheus.CounterOpts{Namespace: "wave_dispatch", Name: "waves_broadcast_total", Help: "Offer waves broadcast to drivers"})
	JobsAssigned   = promauto.NewCounter(prometheus.CounterOpts{Namespace: "wave_dispatch", Name: "jobs_assigned_total", Help: "Jobs claimed by a driver"})
	JobsAbandoned  = promauto.NewCounter(prometheus.CounterOpts{Namespace: "wave_dispatch", Name: "jobs_abandoned_total", Help: "Jobs that hit the acceptance deadline unclaimed"})
	AcceptanceLost = promauto.NewCounter(prometheus.CounterOpts{Namespace: "wave_dispatch", Name: "acceptance_lost_total", Help: "Driver acceptances that lost the claim race"})

	HTTPRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{Namespace: "wave_dispatch", Name: "http_requests_total", Help: "Total HTTP requests handled"},
		[]string{"method", "path", "status"},
	)
	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "wave_dispatch",
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request latency distribution",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"method", "path", "status"},
	)
)
