// Package metrics exposes the service's Prometheus instruments.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// EventsProcessed counts ingested events by kind and result.
	EventsProcessed = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "maint_events_processed_total",
		Help: "Telemetry and anomaly events processed by the engine",
	}, []string{"kind", "result"}) // result: accepted, rejected, duplicate, skipped

	DecisionsRecorded = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "maint_decisions_recorded_total",
		Help: "Maintenance decisions recorded, by type and priority",
	}, []string{"type", "priority"})

	WorkOrdersCreated = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "maint_work_orders_created_total",
		Help: "Work orders created, by trigger and initial status",
	}, []string{"trigger", "status"})

	WorkOrderTransitions = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "maint_work_order_transitions_total",
		Help: "Operator-driven work order status changes",
	}, []string{"from", "to"})

	PurchaseOrdersCreated = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "maint_purchase_orders_created_total",
		Help: "Purchase orders raised, by reason",
	}, []string{"reason"}) // reason: shortfall, replenish

	NotificationsSent = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "maint_notifications_total",
		Help: "Notification records fanned out, by role",
	}, []string{"role"})

	NotificationFailures = promauto.NewCounter(prometheus.CounterOpts{
		Name: "maint_notification_sink_failures_total",
		Help: "Sink deliveries that failed",
	})

	OpenAnomalyOrders = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "maint_open_anomaly_work_orders",
		Help: "Open anomaly-triggered work orders counted against the admission cap",
	})

	AvailableTechnicians = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "maint_available_technicians",
		Help: "Technicians not bound to an open work order",
	})

	DriftsDetected = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "maint_drift_detections_total",
		Help: "Process drift detections, by parameter and severity",
	}, []string{"parameter", "severity"})

	EventLoopDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "maint_event_loop_duration_seconds",
		Help:    "Time spent processing one submission on the engine loop",
		Buckets: prometheus.DefBuckets,
	})

	OutboxPending = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "maint_outbox_pending",
		Help: "Outbox messages waiting to be published",
	})

	HTTPRateLimited = promauto.NewCounter(prometheus.CounterOpts{
		Name: "maint_http_rate_limited_total",
		Help: "Ingestion requests refused by the per-key rate limiter",
	})
)
