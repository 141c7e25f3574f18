package models

import "time"

// ReminderStatus describes where a reminder occurrence is in its lifecycle
type ReminderStatus string

const (
	ReminderStatusPending   ReminderStatus = "pending"
	ReminderStatusCompleted ReminderStatus = "completed"
	ReminderStatusEscalated ReminderStatus = "escalated"
)

// Reminder represents one scheduled occurrence of a medication dose.
//
// ScheduledAt is the original slot time and never changes; DueAt starts
// equal to it and advances every time the occurrence is postponed.
type Reminder struct {
	ID            int64          `json:"id" db:"id"`
	MedicationID  int64          `json:"medication_id" db:"medication_id"`
	ScheduledAt   time.Time      `json:"scheduled_at" db:"scheduled_at"`
	DueAt         time.Time      `json:"due_at" db:"due_at"`
	PostponeCount int            `json:"postpone_count" db:"postpone_count"`
	Status        ReminderStatus `json:"status" db:"status"`
	Notified      bool           `json:"notified" db:"notified"`
	AlarmToken    int64          `json:"alarm_token" db:"alarm_token"`
	CreatedAt     time.Time      `json:"created_at" db:"created_at"`
	UpdatedAt     time.Time      `json:"updated_at" db:"updated_at"`
}

// Resolved returns true once the occurrence has been confirmed taken.
// Escalated occurrences are not resolved: they keep firing until the
// patient confirms the dose.
func (r *Reminder) Resolved() bool {
	return r.Status == ReminderStatusCompleted
}

// Elapsed returns how long the dose has been outstanding relative to its
// original slot time.
func (r *Reminder) Elapsed(now time.Time) time.Duration {
	return now.Sub(r.ScheduledAt)
}
