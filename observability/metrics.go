// Package observability exposes the Prometheus instrumentation of the chat core.
//
// Metrics are served in text format at /metrics:
//   - hive_messages_sent_total{result}: sends by outcome (delivered, invalid, storage_failed)
//   - hive_live_pushes_total{target,result}: live events pushed to recipient or sender channels
//   - hive_store_append_seconds: latency of the persistence step gating visibility
//   - hive_presence_bound_users: users holding a live binding
//   - hive_websocket_connections_active: open websocket connections
//   - hive_worker_restarts_total{worker}: supervised workers restarted after a failure
package observability

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const (
	ResultDelivered     = "delivered"
	ResultInvalid       = "invalid"
	ResultStorageFailed = "storage_failed"
	ResultOK            = "ok"
	ResultFailed        = "failed"

	TargetRecipient = "recipient"
	TargetSender    = "sender"
)

var (
	MessagesSent = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "hive_messages_sent_total",
			Help: "Total number of send attempts by outcome",
		},
		[]string{"result"},
	)

	LivePushes = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "hive_live_pushes_total",
			Help: "Total number of live events pushed to connections",
		},
		[]string{"target", "result"},
	)

	StoreAppendDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "hive_store_append_seconds",
			Help:    "Duration of message persistence before broadcast",
			Buckets: []float64{0.0005, 0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1},
		},
	)

	PresenceBoundUsers = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "hive_presence_bound_users",
			Help: "Number of users currently bound to a live connection",
		},
	)

	WebsocketConnections = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "hive_websocket_connections_active",
			Help: "Number of open websocket connections",
		},
	)

	WorkerRestarts = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "hive_worker_restarts_total",
			Help: "Total number of supervised worker restarts",
		},
		[]string{"worker"},
	)
)
