package delivery

import (
	"context"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/medalert/medalert/internal/escalation"
	"github.com/medalert/medalert/internal/metrics"
	"github.com/medalert/medalert/internal/models"
	"github.com/medalert/medalert/internal/repository"
	"github.com/medalert/medalert/internal/scheduler"
)

// Config holds the delivery timing knobs.
type Config struct {
	// AutoPostponeDelay is how long the alert runs before the watchdog
	// postpones the dose on the patient's behalf.
	AutoPostponeDelay time.Duration
	// PostponeDelay is how far a postponed dose is pushed back.
	PostponeDelay time.Duration
	// RetryAttempts bounds the retries for state-transition writes.
	RetryAttempts int
	// RetryBackoff is the base delay between retry attempts.
	RetryBackoff time.Duration
}

// DefaultConfig returns the reference timings.
func DefaultConfig() Config {
	return Config{
		AutoPostponeDelay: 30 * time.Second,
		PostponeDelay:     5 * time.Minute,
		RetryAttempts:     3,
		RetryBackoff:      200 * time.Millisecond,
	}
}

// Controller owns the fired-but-unresolved lifetime of reminder
// occurrences. One timer callback is processed at a time per occurrence;
// the store's guarded updates decide races between the watchdog and the
// patient, and the loser's transition is a silent no-op.
type Controller struct {
	cfg         Config
	clock       scheduler.AlarmClock
	sched       *scheduler.Scheduler
	medications repository.MedicationRepository
	reminders   repository.ReminderRepository
	escalations repository.EscalationRepository
	history     repository.HistoryRepository
	alerter     Alerter
	agent       *escalation.Agent
	logger      *logrus.Logger
}

// NewController creates a delivery controller and wires itself as the
// scheduler's fire handler.
func NewController(
	cfg Config,
	clock scheduler.AlarmClock,
	sched *scheduler.Scheduler,
	medications repository.MedicationRepository,
	reminders repository.ReminderRepository,
	escalations repository.EscalationRepository,
	history repository.HistoryRepository,
	alerter Alerter,
	agent *escalation.Agent,
	logger *logrus.Logger,
) *Controller {
	c := &Controller{
		cfg:         cfg,
		clock:       clock,
		sched:       sched,
		medications: medications,
		reminders:   reminders,
		escalations: escalations,
		history:     history,
		alerter:     alerter,
		agent:       agent,
		logger:      logger,
	}
	sched.SetFireFunc(c.HandleFire)
	return c
}

// Watchdog registrations use the negated reminder id as their token, so
// they live in a disjoint namespace from the scheduler's monotonic
// allocator (which starts above zero).
func watchdogToken(reminderID int64) int64 {
	return -reminderID
}

// HandleFire reacts to a fired reminder timer: start the user alert, arm
// the auto-postpone watchdog, and evaluate escalation. The reminder row is
// reloaded so the durable state is the one acted on.
func (c *Controller) HandleFire(reminderID int64) {
	ctx := context.Background()

	reminder, err := c.reminders.GetByID(ctx, reminderID)
	if err != nil {
		c.logger.WithError(err).Errorf("Failed to load fired reminder %d", reminderID)
		return
	}
	if reminder == nil || reminder.Resolved() {
		// Fired after being taken or cancelled; nothing to do.
		return
	}

	med, err := c.medications.GetByID(ctx, reminder.MedicationID)
	if err != nil {
		c.logger.WithError(err).Errorf("Failed to load medication %d", reminder.MedicationID)
		return
	}
	if med == nil || !med.Active {
		c.logger.Debugf("Reminder %d fired for inactive medication, skipping", reminderID)
		return
	}

	metrics.ReminderFired()
	c.logger.WithFields(logrus.Fields{
		"reminder_id":   reminder.ID,
		"medication":    med.Name,
		"postponements": reminder.PostponeCount,
	}).Info("Reminder fired")

	if err := c.alerter.StartAlert(ctx, med, reminder); err != nil {
		// Degraded but not fatal: the watchdog still advances the state
		// machine and the dose re-fires later.
		c.logger.WithError(err).Warnf("Failed to start alert for reminder %d", reminder.ID)
	}

	deadline := c.clock.Now().Add(c.cfg.AutoPostponeDelay)
	if err := c.clock.Schedule(watchdogToken(reminder.ID), deadline, func() {
		c.autoPostpone(reminder.ID)
	}); err != nil {
		c.logger.WithError(err).Errorf("Failed to arm watchdog for reminder %d", reminder.ID)
	}

	// Single evaluation point: the policy sees every fire and every
	// postponement, and decides from the durable count and elapsed time.
	c.evaluateEscalation(reminder, med)
}

// MarkTaken confirms the dose: completes the reminder, closes any open
// escalation, decrements stock (deactivating at zero) and records history.
// Confirming an already-completed occurrence is a no-op.
func (c *Controller) MarkTaken(ctx context.Context, reminderID int64) error {
	reminder, err := c.reminders.GetByID(ctx, reminderID)
	if err != nil {
		return fmt.Errorf("failed to load reminder %d: %w", reminderID, err)
	}
	if reminder == nil {
		return fmt.Errorf("reminder %d not found", reminderID)
	}

	var won bool
	err = c.withRetry("complete reminder", func() error {
		var err error
		won, err = c.reminders.MarkCompleted(ctx, reminderID)
		return err
	})
	if err != nil {
		// The durable state stays authoritative: the alarm keeps firing
		// rather than the dose silently disappearing.
		return fmt.Errorf("failed to persist completion of reminder %d: %w", reminderID, err)
	}

	c.clock.Cancel(watchdogToken(reminderID))
	c.clock.Cancel(reminder.AlarmToken)
	c.alerter.StopAlert(reminderID)

	if !won {
		// Already completed (double tap, or the watchdog lost the race
		// the other way). No further side effects.
		return nil
	}

	now := c.clock.Now()

	if esc, err := c.escalations.GetOpenByReminder(ctx, reminderID); err != nil {
		c.logger.WithError(err).Error("Failed to look up open escalation")
	} else if esc != nil {
		if err := c.escalations.Complete(ctx, esc.ID); err != nil {
			c.logger.WithError(err).Errorf("Failed to close escalation %d", esc.ID)
		}
	}

	if med, err := c.medications.GetByID(ctx, reminder.MedicationID); err != nil {
		c.logger.WithError(err).Error("Failed to load medication for stock update")
	} else if med != nil {
		quantity := med.Quantity - 1
		if quantity < 0 {
			quantity = 0
		}
		active := med.Active && quantity > 0
		if err := c.medications.UpdateQuantity(ctx, med.ID, quantity, active); err != nil {
			c.logger.WithError(err).Errorf("Failed to decrement stock for medication %d", med.ID)
		} else if quantity == 0 {
			c.logger.Infof("Medication %q depleted, deactivated", med.Name)
		}
	}

	if _, err := c.history.Create(ctx, &models.HistoryEntry{
		MedicationID: reminder.MedicationID,
		ScheduledAt:  reminder.ScheduledAt,
		CompletedAt:  &now,
		Outcome:      models.OutcomeTaken,
		Quantity:     1,
	}); err != nil {
		c.logger.WithError(err).Error("Failed to record intake history")
	}

	metrics.ReminderResolved("taken")
	c.logger.Infof("Reminder %d confirmed taken", reminderID)
	return nil
}

// Postpone pushes the dose back by the configured delay, increments the
// postponement count and re-arms the same alarm token at the new due time.
// The original scheduled time never moves. Postponing an already-completed
// occurrence is a no-op.
func (c *Controller) Postpone(ctx context.Context, reminderID int64) error {
	return c.postpone(ctx, reminderID, false)
}

// autoPostpone is the watchdog path: identical to a user postponement, it
// just reaches the escalation evaluation through the same single point.
func (c *Controller) autoPostpone(reminderID int64) {
	c.logger.Infof("No response for reminder %d, auto-postponing", reminderID)
	if err := c.postpone(context.Background(), reminderID, true); err != nil {
		c.logger.WithError(err).Errorf("Auto-postpone failed for reminder %d", reminderID)
	}
}

func (c *Controller) postpone(ctx context.Context, reminderID int64, auto bool) error {
	reminder, err := c.reminders.GetByID(ctx, reminderID)
	if err != nil {
		return fmt.Errorf("failed to load reminder %d: %w", reminderID, err)
	}
	if reminder == nil {
		return fmt.Errorf("reminder %d not found", reminderID)
	}

	c.clock.Cancel(watchdogToken(reminderID))
	c.alerter.StopAlert(reminderID)

	if reminder.Resolved() {
		// Lost the race against a taken confirmation.
		return nil
	}

	now := c.clock.Now()
	dueAt := now.Add(c.cfg.PostponeDelay)
	count := reminder.PostponeCount + 1

	var won bool
	err = c.withRetry("postpone reminder", func() error {
		var err error
		won, err = c.reminders.Postpone(ctx, reminderID, dueAt, count)
		return err
	})
	if err != nil {
		// Keep pestering from the old durable state: re-arm the same
		// token so the occurrence fires again instead of going quiet.
		if regErr := c.clock.Schedule(reminder.AlarmToken, dueAt, func() { c.HandleFire(reminderID) }); regErr != nil {
			c.logger.WithError(regErr).Errorf("Failed to re-arm reminder %d after persist failure", reminderID)
		}
		return fmt.Errorf("failed to persist postponement of reminder %d: %w", reminderID, err)
	}
	if !won {
		return nil
	}

	reminder.DueAt = dueAt
	reminder.PostponeCount = count

	if _, err := c.history.Create(ctx, &models.HistoryEntry{
		MedicationID: reminder.MedicationID,
		ScheduledAt:  reminder.ScheduledAt,
		Outcome:      models.OutcomePostponed,
		Quantity:     1,
	}); err != nil {
		c.logger.WithError(err).Error("Failed to record postponement history")
	}

	if med, err := c.medications.GetByID(ctx, reminder.MedicationID); err != nil {
		c.logger.WithError(err).Error("Failed to load medication for escalation evaluation")
	} else if med != nil {
		c.evaluateEscalation(reminder, med)
	}

	if err := c.sched.Register(reminder); err != nil {
		c.logger.WithError(err).Errorf("Failed to re-arm postponed reminder %d", reminderID)
	}

	outcome := "postponed"
	if auto {
		outcome = "auto_postponed"
	}
	metrics.ReminderResolved(outcome)

	c.logger.WithFields(logrus.Fields{
		"reminder_id":   reminderID,
		"postponements": count,
		"due_at":        dueAt.Format(time.RFC3339),
		"auto":          auto,
	}).Info("Reminder postponed")

	return nil
}

func (c *Controller) evaluateEscalation(reminder *models.Reminder, med *models.Medication) {
	cp := *reminder
	c.agent.Submit(escalation.Event{
		Reminder:   &cp,
		Medication: med,
		Elapsed:    reminder.Elapsed(c.clock.Now()),
	})
}

// withRetry runs fn with bounded backoff. State-transition writes are the
// only callers: divergence between memory and store is unsafe, so these
// writes get a few chances before the error is surfaced.
func (c *Controller) withRetry(op string, fn func() error) error {
	var err error
	for attempt := 1; attempt <= c.cfg.RetryAttempts; attempt++ {
		if err = fn(); err == nil {
			return nil
		}
		c.logger.WithError(err).Warnf("Attempt %d/%d to %s failed", attempt, c.cfg.RetryAttempts, op)
		if attempt < c.cfg.RetryAttempts {
			time.Sleep(time.Duration(attempt) * c.cfg.RetryBackoff)
		}
	}
	return err
}
