package notify

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/medalert/medalert/internal/models"
)

// ErrNotConfigured is returned when an emergency channel has no
// credentials or destination. It is a valid degraded state, not a fault:
// callers surface a configuration prompt and carry on with local alerts.
var ErrNotConfigured = errors.New("emergency channel is not configured")

// AlertKind selects the message template.
type AlertKind int

const (
	// AlertPostponed: the dose keeps being pushed back.
	AlertPostponed AlertKind = iota
	// AlertCritical: postponed past the critical threshold, a call is
	// being placed.
	AlertCritical
	// AlertNotTaken: never postponed, never confirmed, outstanding past
	// the elapsed floor.
	AlertNotTaken
)

// Alert carries everything the templates need to render an emergency
// message.
type Alert struct {
	Kind           AlertKind
	PatientName    string
	MedicationName string
	ScheduledAt    time.Time
	Elapsed        time.Duration
	PostponeCount  int
	Contact        *models.EmergencyContact
}

// Messenger delivers a rendered alert to the emergency channel. Transport
// errors are reported to the caller and not retried automatically.
type Messenger interface {
	SendAlert(ctx context.Context, alert *Alert) error
}

// Caller places an emergency voice call. Success only means the call was
// dispatched, not answered.
type Caller interface {
	PlaceCall(ctx context.Context, contact *models.EmergencyContact) error
}

// FormatAlert renders the Markdown message for the alert.
func FormatAlert(a *Alert) string {
	patient := a.PatientName
	if patient == "" {
		patient = "The patient"
	}
	slot := a.ScheduledAt.Format("02/01/2006 15:04")
	elapsed := int(a.Elapsed.Minutes())

	var sb strings.Builder
	switch a.Kind {
	case AlertCritical:
		sb.WriteString("🆘 *CRITICAL MEDICATION EMERGENCY* 🆘\n\n")
		fmt.Fprintf(&sb, "%s has NOT taken their medication after repeated attempts:\n\n", patient)
		fmt.Fprintf(&sb, "💊 *Medication:* %s\n", a.MedicationName)
		fmt.Fprintf(&sb, "⏱ *Outstanding for:* %d minutes\n", elapsed)
		fmt.Fprintf(&sb, "📊 *Postponements:* %d\n\n", a.PostponeCount)
		sb.WriteString("☎️ *AUTOMATIC CALL BEING PLACED*\n\n")
		sb.WriteString("🚨 CONTACT THE PATIENT IMMEDIATELY 🚨")
	case AlertNotTaken:
		sb.WriteString("⚠️ *MEDICATION NOT TAKEN* ⚠️\n\n")
		fmt.Fprintf(&sb, "%s has not confirmed taking their medication:\n\n", patient)
		fmt.Fprintf(&sb, "💊 *Medication:* %s\n", a.MedicationName)
		fmt.Fprintf(&sb, "⏰ *Scheduled for:* %s\n", slot)
		fmt.Fprintf(&sb, "⏱ *Outstanding for:* %d minutes\n\n", elapsed)
		sb.WriteString("Please check on the patient.")
	default:
		sb.WriteString("🚨 *MEDICATION ALERT* 🚨\n\n")
		fmt.Fprintf(&sb, "%s keeps postponing their medication:\n\n", patient)
		fmt.Fprintf(&sb, "💊 *Medication:* %s\n", a.MedicationName)
		fmt.Fprintf(&sb, "⏰ *Scheduled for:* %s\n", slot)
		fmt.Fprintf(&sb, "⏱ *Outstanding for:* %d minutes\n", elapsed)
		fmt.Fprintf(&sb, "📊 *Postponements:* %d\n\n", a.PostponeCount)
		sb.WriteString("Please contact the patient to check on them.")
		if a.Contact != nil {
			fmt.Fprintf(&sb, "\n\n📞 Emergency contact: %s", a.Contact.Name)
		}
	}

	return sb.String()
}
