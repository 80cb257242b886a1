package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Outcome labels for MessagesReceived.
const (
	OutcomeApplied      = "applied"
	OutcomeUnknownTopic = "unknown_topic"
	OutcomeMalformed    = "malformed"
	OutcomeNoVerdict    = "no_verdict"
	OutcomeFailed       = "failed"
	OutcomePanic        = "panic"
)

var (
	MessagesReceived = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "parkingd_messages_received_total",
		Help: "Total number of telemetry messages received, labelled by outcome.",
	}, []string{"outcome"})

	Transitions = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "parkingd_transitions_total",
		Help: "Total number of applied events, labelled by transition result.",
	}, []string{"result"})

	CASConflicts = promauto.NewCounter(prometheus.CounterOpts{
		Name: "parkingd_cas_conflicts_total",
		Help: "Total number of compare-and-set attempts that lost a race.",
	})

	NotificationsSent = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "parkingd_notifications_total",
		Help: "Total number of notification deliveries, labelled by channel and status.",
	}, []string{"channel", "status"})

	NotificationsDropped = promauto.NewCounter(prometheus.CounterOpts{
		Name: "parkingd_notifications_dropped_total",
		Help: "Total number of notices rejected due to a full queue.",
	})

	OccupancyDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "parkingd_occupancy_duration_minutes",
		Help:    "Length of completed occupancy sessions in minutes.",
		Buckets: []float64{1, 5, 15, 30, 60, 120, 240, 480, 1440},
	})

	SpotsOccupied = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "parkingd_spots_occupied",
		Help: "Number of occupied spots at the last stats query.",
	})
)
