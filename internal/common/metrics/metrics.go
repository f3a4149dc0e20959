// internal/common/metrics/metrics.go
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	NotificationsSent = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "notifications_sent_total",
			Help: "Total number of notification emails sent",
		},
		[]string{"kind"},
	)

	NotificationsFailed = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "notifications_failed_total",
			Help: "Total number of notification emails that failed to send",
		},
		[]string{"kind"},
	)

	NotificationsSkipped = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "notifications_skipped_total",
			Help: "Total number of events skipped for lack of a resolvable patient",
		},
		[]string{"kind"},
	)

	BatchDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name: "notification_batch_duration_seconds",
			Help: "Duration of one dispatch batch in seconds",
		},
		[]string{"kind"},
	)

	EventsSynced = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "calendar_events_synced_total",
			Help: "Total number of calendar events upserted from the external source",
		},
	)
)
