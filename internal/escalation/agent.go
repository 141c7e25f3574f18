package escalation

import (
	"context"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/medalert/medalert/internal/metrics"
	"github.com/medalert/medalert/internal/models"
	"github.com/medalert/medalert/internal/notify"
	"github.com/medalert/medalert/internal/repository"
)

// Event is one escalation evaluation request from the delivery controller.
// Events flow through a buffered channel with the agent as single consumer,
// so notifier calls never block reminder delivery and ordering per reminder
// is auditable.
type Event struct {
	Reminder   *models.Reminder
	Medication *models.Medication
	Elapsed    time.Duration
}

// Agent consumes escalation events, applies the policy and drives the
// emergency channels. All side effects are idempotent per reminder
// occurrence: the message-sent flag lives on the reminder row and the
// call-placed flag on the escalation record.
type Agent struct {
	policy      Policy
	events      chan Event
	reminders   repository.ReminderRepository
	escalations repository.EscalationRepository
	messenger   notify.Messenger
	caller      notify.Caller
	resolver    *notify.Resolver
	patientName string
	logger      *logrus.Logger
}

// NewAgent creates an escalation agent with the given policy and channels.
func NewAgent(
	policy Policy,
	reminders repository.ReminderRepository,
	escalations repository.EscalationRepository,
	messenger notify.Messenger,
	caller notify.Caller,
	resolver *notify.Resolver,
	patientName string,
	logger *logrus.Logger,
) *Agent {
	return &Agent{
		policy:      policy,
		events:      make(chan Event, 64),
		reminders:   reminders,
		escalations: escalations,
		messenger:   messenger,
		caller:      caller,
		resolver:    resolver,
		patientName: patientName,
		logger:      logger,
	}
}

// Submit hands an event to the agent without blocking the caller. When the
// queue is full the event is dropped with a warning; the next transition
// for the same reminder re-evaluates anyway.
func (a *Agent) Submit(ev Event) {
	select {
	case a.events <- ev:
	default:
		a.logger.Warnf("Escalation queue full, dropping event for reminder %d", ev.Reminder.ID)
	}
}

// Run consumes events until the context is cancelled. It blocks, so it
// should be launched in a separate goroutine.
func (a *Agent) Run(ctx context.Context) {
	a.logger.Info("Escalation agent started")

	for {
		select {
		case <-ctx.Done():
			a.logger.Info("Escalation agent stopped")
			return
		case ev := <-a.events:
			a.handle(ctx, ev)
		}
	}
}

func (a *Agent) handle(ctx context.Context, ev Event) {
	decision := a.policy.Decide(ev.Reminder.PostponeCount, ev.Elapsed)
	metrics.EscalationDecision(decision.String())

	entry := a.logger.WithFields(logrus.Fields{
		"reminder_id":    ev.Reminder.ID,
		"medication":     ev.Medication.Name,
		"postponements":  ev.Reminder.PostponeCount,
		"elapsed_min":    int(ev.Elapsed.Minutes()),
		"decision":       decision.String(),
	})

	var esc *models.Escalation
	if decision != DecisionNone || ev.Reminder.PostponeCount >= a.policy.EntryCount {
		var err error
		esc, err = a.ensureRecord(ctx, ev)
		if err != nil {
			entry.WithError(err).Error("Failed to open escalation record")
		}
	}

	switch decision {
	case DecisionNone:
		entry.Debug("Continuing to monitor")
		return
	case DecisionNotify:
		a.sendAlert(ctx, ev, decision)
	case DecisionNotifyAndCall:
		a.sendAlert(ctx, ev, decision)
		a.placeCall(ctx, ev, esc)
	}
}

// ensureRecord opens the escalation record for the reminder, or returns the
// one already open. At most one open record exists per reminder.
func (a *Agent) ensureRecord(ctx context.Context, ev Event) (*models.Escalation, error) {
	esc, err := a.escalations.GetOpenByReminder(ctx, ev.Reminder.ID)
	if err != nil {
		return nil, err
	}
	if esc != nil {
		return esc, nil
	}

	esc = &models.Escalation{
		ReminderID:   ev.Reminder.ID,
		MedicationID: ev.Medication.ID,
	}
	return a.escalations.Create(ctx, esc)
}

// sendAlert messages the emergency channel once per occurrence. The
// notified flag on the reminder row is the dedup guard, so a critical
// escalation never resends the message the notify threshold already sent.
func (a *Agent) sendAlert(ctx context.Context, ev Event, decision Decision) {
	first, err := a.reminders.MarkNotified(ctx, ev.Reminder.ID)
	if err != nil {
		a.logger.WithError(err).Errorf("Failed to mark reminder %d notified", ev.Reminder.ID)
		return
	}
	if !first {
		a.logger.Debugf("Alert already sent for reminder %d, skipping", ev.Reminder.ID)
		return
	}

	kind := notify.AlertPostponed
	switch {
	case decision == DecisionNotifyAndCall:
		kind = notify.AlertCritical
	case ev.Reminder.PostponeCount == 0:
		kind = notify.AlertNotTaken
	}

	contact, err := a.resolver.Resolve(ctx)
	if err != nil {
		a.logger.WithError(err).Error("Contact resolution failed")
	}

	alert := &notify.Alert{
		Kind:           kind,
		PatientName:    a.patientName,
		MedicationName: ev.Medication.Name,
		ScheduledAt:    ev.Reminder.ScheduledAt,
		Elapsed:        ev.Elapsed,
		PostponeCount:  ev.Reminder.PostponeCount,
		Contact:        contact,
	}

	if err := a.messenger.SendAlert(ctx, alert); err != nil {
		if err == notify.ErrNotConfigured {
			a.logger.Warn("Emergency channel not configured, alert not delivered")
			return
		}
		a.logger.WithError(err).Error("Emergency alert delivery failed")
	}
}

// placeCall dispatches the emergency call for a critical escalation, at
// most once per escalation record.
func (a *Agent) placeCall(ctx context.Context, ev Event, esc *models.Escalation) {
	if err := a.reminders.MarkEscalated(ctx, ev.Reminder.ID); err != nil {
		a.logger.WithError(err).Errorf("Failed to mark reminder %d escalated", ev.Reminder.ID)
	}

	if esc == nil {
		a.logger.Errorf("No escalation record for reminder %d, cannot track call", ev.Reminder.ID)
		return
	}

	first, err := a.escalations.MarkCallPlaced(ctx, esc.ID)
	if err != nil {
		a.logger.WithError(err).Error("Failed to mark call placed")
		return
	}
	if !first {
		a.logger.Debugf("Call already attempted for escalation %d", esc.ID)
		return
	}

	contact, err := a.resolver.Resolve(ctx)
	if err != nil {
		a.logger.WithError(err).Error("Contact resolution failed")
		return
	}
	if contact == nil {
		metrics.CallPlaced("no_contact")
		a.logger.Warn("No emergency contact available, configure one to enable emergency calls")
		return
	}

	if err := a.caller.PlaceCall(ctx, contact); err != nil {
		if err == notify.ErrNotConfigured {
			a.logger.Warn("Call gateway not configured, emergency call skipped")
			return
		}
		a.logger.WithError(err).Error("Emergency call dispatch failed")
	}
}
