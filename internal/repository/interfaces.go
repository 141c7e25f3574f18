package repository

import (
	"context"
	"time"

	"github.com/medalert/medalert/internal/models"
)

// MedicationRepository defines the interface for medication data operations
type MedicationRepository interface {
	Create(ctx context.Context, med *models.Medication) (*models.Medication, error)
	GetByID(ctx context.Context, id int64) (*models.Medication, error)
	GetAll(ctx context.Context) ([]*models.Medication, error)
	GetActive(ctx context.Context) ([]*models.Medication, error)
	Update(ctx context.Context, med *models.Medication) (*models.Medication, error)
	// UpdateQuantity sets the quantity on hand and the active flag in a
	// single statement so depletion and reactivation are atomic.
	UpdateQuantity(ctx context.Context, id int64, quantity int, active bool) error
	SetActive(ctx context.Context, id int64, active bool) error
}

// ReminderRepository defines the interface for reminder occurrence operations
type ReminderRepository interface {
	Create(ctx context.Context, reminder *models.Reminder) (*models.Reminder, error)
	GetByID(ctx context.Context, id int64) (*models.Reminder, error)
	GetByMedication(ctx context.Context, medicationID int64) ([]*models.Reminder, error)
	// GetUnresolvedDueAfter returns pending and escalated reminders whose
	// due time is after the given instant; used by the startup reconcile
	// scan to re-register timers that were lost with the process.
	GetUnresolvedDueAfter(ctx context.Context, after time.Time) ([]*models.Reminder, error)
	// MarkCompleted transitions the reminder to completed unless it
	// already is. Returns false when the row was already completed, which
	// callers treat as a no-op rather than an error.
	MarkCompleted(ctx context.Context, id int64) (bool, error)
	// Postpone advances the due time and postpone count without touching
	// the original scheduled time. Returns false when the reminder was
	// already completed.
	Postpone(ctx context.Context, id int64, dueAt time.Time, postponeCount int) (bool, error)
	MarkEscalated(ctx context.Context, id int64) error
	// MarkNotified flips the notified flag and reports whether this call
	// was the one that flipped it, making emergency sends idempotent per
	// occurrence.
	MarkNotified(ctx context.Context, id int64) (bool, error)
	DeletePendingByMedication(ctx context.Context, medicationID int64) error
}

// EscalationRepository defines the interface for escalation record operations
type EscalationRepository interface {
	Create(ctx context.Context, esc *models.Escalation) (*models.Escalation, error)
	GetOpenByReminder(ctx context.Context, reminderID int64) (*models.Escalation, error)
	MarkCallPlaced(ctx context.Context, id int64) (bool, error)
	Complete(ctx context.Context, id int64) error
	ListRecent(ctx context.Context, limit int) ([]*models.Escalation, error)
}

// HistoryRepository defines the interface for intake history operations
type HistoryRepository interface {
	Create(ctx context.Context, entry *models.HistoryEntry) (*models.HistoryEntry, error)
	GetByMedication(ctx context.Context, medicationID int64) ([]*models.HistoryEntry, error)
	ListRecent(ctx context.Context, limit int) ([]*models.HistoryEntry, error)
}

// ContactRepository defines the interface for emergency contact operations
type ContactRepository interface {
	Create(ctx context.Context, contact *models.EmergencyContact) (*models.EmergencyContact, error)
	GetConfigured(ctx context.Context) (*models.EmergencyContact, error)
	GetStarred(ctx context.Context) (*models.EmergencyContact, error)
	GetAll(ctx context.Context) ([]*models.EmergencyContact, error)
	Delete(ctx context.Context, id int64) error
}
