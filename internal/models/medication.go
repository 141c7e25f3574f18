package models

import "time"

// Medication represents a medication being tracked for a patient.
type Medication struct {
	ID            int64      `json:"id" db:"id"`
	Name          string     `json:"name" db:"name"`
	Quantity      int        `json:"quantity" db:"quantity"`
	IntervalHours int        `json:"interval_hours" db:"interval_hours"`
	StartAt       *time.Time `json:"start_at,omitempty" db:"start_at"`
	Active        bool       `json:"active" db:"active"`
	Notes         string     `json:"notes" db:"notes"`
	CreatedAt     time.Time  `json:"created_at" db:"created_at"`
	UpdatedAt     time.Time  `json:"updated_at" db:"updated_at"`
}

// Interval returns the dosing interval as a duration.
func (m *Medication) Interval() time.Duration {
	return time.Duration(m.IntervalHours) * time.Hour
}

// Depleted returns true when there are no doses left on hand.
func (m *Medication) Depleted() bool {
	return m.Quantity <= 0
}

// AnchorTime returns the time occurrences are computed from: the explicit
// start time when set, otherwise the creation time.
func (m *Medication) AnchorTime() time.Time {
	if m.StartAt != nil {
		return *m.StartAt
	}
	return m.CreatedAt
}
