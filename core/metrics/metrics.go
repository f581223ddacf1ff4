package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	CyclesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "reconcile_cycles_total",
		Help: "Reconciliation cycles by result",
	}, []string{"result"})

	CycleDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "reconcile_cycle_duration_seconds",
		Help:    "Wall time of a reconciliation cycle",
		Buckets: prometheus.DefBuckets,
	})

	FeedRefreshTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "order_feed_refresh_total",
		Help: "Order feed refreshes by result",
	}, []string{"result"})

	OpenOrders = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "open_orders",
		Help: "Open orders reported by the last successful feed refresh",
	})

	LabelsObservedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "labels_observed_total",
		Help: "Label observations by ingestion source",
	}, []string{"source"})

	MatcherOutcomesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "matcher_outcomes_total",
		Help: "Matcher outcomes by kind (match, conflict, orphan)",
	}, []string{"kind"})

	PipelineResultsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "pipeline_results_total",
		Help: "Pipeline runs by outcome",
	}, []string{"outcome"})

	PipelineStepDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "pipeline_step_duration_seconds",
		Help:    "Latency of pipeline steps including retries",
		Buckets: prometheus.DefBuckets,
	}, []string{"step", "result"})

	PipelineStepAttempts = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "pipeline_step_attempts_total",
		Help: "Individual pipeline step attempts",
	}, []string{"step"})

	SweepsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "reconcile_sweeps_total",
		Help: "Entities touched by the stale claim and retry sweeps",
	}, []string{"sweep"})

	AlertsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "alerts_total",
		Help: "Alerts emitted by kind",
	}, []string{"kind"})

	AlertDeliveryFailures = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "alert_delivery_failures_total",
		Help: "Alert deliveries that failed per sink",
	}, []string{"sink"})

	StaleTransitionsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "stale_transitions_total",
		Help: "Rejected transitions that violate monotonicity",
	})
)
