package models

import "time"

// TakeOutcome is the recorded result of one reminder occurrence.
type TakeOutcome string

const (
	OutcomeTaken     TakeOutcome = "taken"
	OutcomePostponed TakeOutcome = "postponed"
)

// HistoryEntry is one line of the medication intake history. Postponed
// entries have no completion time; taken entries record when the dose was
// actually confirmed.
type HistoryEntry struct {
	ID           int64       `json:"id" db:"id"`
	MedicationID int64       `json:"medication_id" db:"medication_id"`
	ScheduledAt  time.Time   `json:"scheduled_at" db:"scheduled_at"`
	CompletedAt  *time.Time  `json:"completed_at,omitempty" db:"completed_at"`
	Outcome      TakeOutcome `json:"outcome" db:"outcome"`
	Quantity     int         `json:"quantity" db:"quantity"`
	CreatedAt    time.Time   `json:"created_at" db:"created_at"`
}
