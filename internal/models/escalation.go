package models

import "time"

// Escalation records that a reminder occurrence crossed the escalation
// threshold and an emergency workflow was opened for it. At most one open
// escalation exists per reminder.
type Escalation struct {
	ID           int64      `json:"id" db:"id"`
	ReminderID   int64      `json:"reminder_id" db:"reminder_id"`
	MedicationID int64      `json:"medication_id" db:"medication_id"`
	CallPlaced   bool       `json:"call_placed" db:"call_placed"`
	Completed    bool       `json:"completed" db:"completed"`
	CreatedAt    time.Time  `json:"created_at" db:"created_at"`
	CompletedAt  *time.Time `json:"completed_at,omitempty" db:"completed_at"`
}
