package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// ConversationsStarted counts questionnaire conversations by outcome
	// (completed|timeout|max_retry|exited).
	ConversationsStarted = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "raidhelper_conversations_total",
			Help: "Total number of questionnaire conversations",
		},
		[]string{"outcome"},
	)

	// SignupEvents counts signup state transitions (created|reactivated|canceled|rejected).
	SignupEvents = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "raidhelper_signup_events_total",
			Help: "Total number of signup state transitions",
		},
		[]string{"transition"},
	)

	// NotificationsSent counts outbound notifications by kind and result (ok|failed|deduped).
	NotificationsSent = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "raidhelper_notifications_total",
			Help: "Total number of outbound notifications",
		},
		[]string{"kind", "result"},
	)

	// ActiveConversations tracks questionnaire conversations currently awaiting a reply.
	ActiveConversations = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "raidhelper_active_conversations",
			Help: "Number of in-flight questionnaire conversations",
		},
	)
)
