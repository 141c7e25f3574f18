package models

import "time"

// EmergencyContact is a person to alert when a dose goes unconfirmed past
// the escalation thresholds. Configured contacts take precedence over
// starred directory entries when resolving who to notify.
type EmergencyContact struct {
	ID         int64     `json:"id" db:"id"`
	Name       string    `json:"name" db:"name"`
	Phone      string    `json:"phone" db:"phone"`
	Starred    bool      `json:"starred" db:"starred"`
	Configured bool      `json:"configured" db:"configured"`
	CreatedAt  time.Time `json:"created_at" db:"created_at"`
}
