package scheduler

import (
	"context"
	"fmt"
	"time"

	"github.com/hashicorp/go-multierror"
	"github.com/sirupsen/logrus"
	"go.uber.org/atomic"

	"github.com/medalert/medalert/internal/metrics"
	"github.com/medalert/medalert/internal/models"
	"github.com/medalert/medalert/internal/repository"
)

// DefaultHorizon is how far ahead reminder occurrences are materialized.
const DefaultHorizon = 30 * 24 * time.Hour

// FireFunc is invoked when a reminder's timer fires. It receives only the
// reminder id; the handler reloads the row so the durable state is always
// the one acted on.
type FireFunc func(reminderID int64)

// Scheduler materializes reminder occurrences for active medications and
// registers one alarm-clock callback per occurrence.
type Scheduler struct {
	clock       AlarmClock
	tokens      *atomic.Int64
	medications repository.MedicationRepository
	reminders   repository.ReminderRepository
	logger      *logrus.Logger
	horizon     time.Duration
	fire        FireFunc
}

// New creates a Scheduler. The token allocator is owned by the instance and
// starts above zero so tokens never collide with the watchdog token space.
func New(clock AlarmClock, medications repository.MedicationRepository, reminders repository.ReminderRepository, logger *logrus.Logger) *Scheduler {
	return &Scheduler{
		clock:       clock,
		tokens:      atomic.NewInt64(1000),
		medications: medications,
		reminders:   reminders,
		logger:      logger,
		horizon:     DefaultHorizon,
	}
}

// SetFireFunc wires the delivery handler. Must be called before any timer
// can fire.
func (s *Scheduler) SetFireFunc(fn FireFunc) {
	s.fire = fn
}

// NextOccurrence returns the first slot of the form anchor + k*interval that
// is not in the past: the anchor itself when it is still ahead, otherwise
// the next slot strictly after now, computed by integer division rather
// than stepping through every missed slot.
func NextOccurrence(anchor, now time.Time, interval time.Duration) time.Time {
	if anchor.After(now) {
		return anchor
	}
	k := now.Sub(anchor)/interval + 1
	return anchor.Add(k * interval)
}

// ScheduleMedication creates and registers every occurrence for the
// medication from now out to the planning horizon. A store failure for one
// occurrence does not abort the rest; all failures are aggregated and
// returned at the end.
func (s *Scheduler) ScheduleMedication(ctx context.Context, med *models.Medication) error {
	if !med.Active {
		s.logger.Debugf("Medication %d is inactive, nothing to schedule", med.ID)
		return nil
	}
	if med.IntervalHours < 1 || med.IntervalHours > 24 {
		return fmt.Errorf("medication %d has invalid interval %dh", med.ID, med.IntervalHours)
	}

	now := s.clock.Now()
	interval := med.Interval()
	occurrences := int(s.horizon / interval)

	var errs *multierror.Error
	slot := NextOccurrence(med.AnchorTime(), now, interval)

	for i := 0; i < occurrences; i++ {
		at := slot
		slot = slot.Add(interval)

		// Defensive: the rounding above should never yield a past slot,
		// but a skipped occurrence is better than a dead batch.
		if at.Before(now) {
			s.logger.Warnf("Skipping past occurrence %s for medication %d", at.Format(time.RFC3339), med.ID)
			continue
		}

		reminder := &models.Reminder{
			MedicationID: med.ID,
			ScheduledAt:  at,
			DueAt:        at,
			Status:       models.ReminderStatusPending,
			AlarmToken:   s.tokens.Inc(),
		}

		if _, err := s.reminders.Create(ctx, reminder); err != nil {
			errs = multierror.Append(errs, fmt.Errorf("occurrence %s: %w", at.Format(time.RFC3339), err))
			continue
		}

		if err := s.Register(reminder); err != nil {
			// The row stays behind as an orphan; Reconcile picks it up
			// on the next startup scan.
			s.logger.WithError(err).Warnf("Failed to register timer for reminder %d", reminder.ID)
		}
	}

	s.logger.WithFields(logrus.Fields{
		"medication_id": med.ID,
		"occurrences":   occurrences,
	}).Info("Scheduled medication reminders")
	metrics.OccurrencesScheduled(occurrences)

	return errs.ErrorOrNil()
}

// Register points the reminder's alarm token at its current due time.
// Postponements reuse the same token; the occurrence stays the same logical
// reminder, only its due time moves.
func (s *Scheduler) Register(reminder *models.Reminder) error {
	id := reminder.ID
	return s.clock.Schedule(reminder.AlarmToken, reminder.DueAt, func() {
		if s.fire == nil {
			s.logger.Error("Timer fired with no delivery handler wired")
			return
		}
		s.fire(id)
	})
}

// CancelMedication cancels every outstanding timer for the medication and
// removes its unresolved reminder rows. Cancelling timers that already
// fired is a silent no-op.
func (s *Scheduler) CancelMedication(ctx context.Context, medicationID int64) error {
	reminders, err := s.reminders.GetByMedication(ctx, medicationID)
	if err != nil {
		return fmt.Errorf("failed to list reminders for medication %d: %w", medicationID, err)
	}

	for _, r := range reminders {
		if r.Status != models.ReminderStatusCompleted {
			s.clock.Cancel(r.AlarmToken)
		}
	}

	if err := s.reminders.DeletePendingByMedication(ctx, medicationID); err != nil {
		return fmt.Errorf("failed to delete pending reminders for medication %d: %w", medicationID, err)
	}

	s.logger.Infof("Cancelled all reminders for medication %d", medicationID)
	return nil
}

// Reconcile re-registers timers for every unresolved reminder. It runs on
// startup, when all in-process registrations have been lost: future
// occurrences get a fresh timer, overdue ones fire immediately so a pending
// dose is never silently dropped.
func (s *Scheduler) Reconcile(ctx context.Context) error {
	reminders, err := s.reminders.GetUnresolvedDueAfter(ctx, time.Time{})
	if err != nil {
		return fmt.Errorf("failed to scan unresolved reminders: %w", err)
	}

	now := s.clock.Now()
	rearmed, overdue := 0, 0

	for _, r := range reminders {
		if r.AlarmToken >= s.tokens.Load() {
			// Keep the allocator ahead of every token already on disk.
			s.tokens.Store(r.AlarmToken)
		}

		if r.DueAt.After(now) {
			if err := s.Register(r); err != nil {
				s.logger.WithError(err).Warnf("Failed to re-register reminder %d", r.ID)
				continue
			}
			rearmed++
		} else {
			id := r.ID
			overdue++
			go func() {
				if s.fire != nil {
					s.fire(id)
				}
			}()
		}
	}

	s.logger.WithFields(logrus.Fields{
		"rearmed": rearmed,
		"overdue": overdue,
	}).Info("Reminder reconciliation complete")

	return nil
}
