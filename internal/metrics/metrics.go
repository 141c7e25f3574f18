// Package metrics centralizes the Prometheus instrumentation for the
// reminder pipeline.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	occurrencesScheduled = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "medalert_occurrences_scheduled_total",
			Help: "Reminder occurrences materialized by the scheduler",
		},
	)

	remindersFired = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "medalert_reminders_fired_total",
			Help: "Reminder timers that fired and entered delivery",
		},
	)

	remindersResolved = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "medalert_reminders_resolved_total",
			Help: "Reminder transitions by outcome",
		},
		[]string{"outcome"},
	)

	escalationDecisions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "medalert_escalation_decisions_total",
			Help: "Escalation policy decisions by kind",
		},
		[]string{"decision"},
	)

	alertSends = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "medalert_alert_sends_total",
			Help: "Emergency alert send attempts by result",
		},
		[]string{"result"},
	)

	callsPlaced = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "medalert_calls_placed_total",
			Help: "Emergency call dispatch attempts by result",
		},
		[]string{"result"},
	)
)

// OccurrencesScheduled records n newly materialized occurrences.
func OccurrencesScheduled(n int) {
	occurrencesScheduled.Add(float64(n))
}

// ReminderFired records one fired reminder timer.
func ReminderFired() {
	remindersFired.Inc()
}

// ReminderResolved records a transition outcome: taken, postponed or
// auto_postponed.
func ReminderResolved(outcome string) {
	remindersResolved.WithLabelValues(outcome).Inc()
}

// EscalationDecision records a policy decision by its string form.
func EscalationDecision(decision string) {
	escalationDecisions.WithLabelValues(decision).Inc()
}

// AlertSend records an emergency message attempt: ok, error or
// not_configured.
func AlertSend(result string) {
	alertSends.WithLabelValues(result).Inc()
}

// CallPlaced records an emergency call attempt: ok, error, not_configured
// or no_contact.
func CallPlaced(result string) {
	callsPlaced.WithLabelValues(result).Inc()
}
