package delivery

import (
	"context"

	"github.com/sirupsen/logrus"

	"github.com/medalert/medalert/internal/models"
)

// Alerter is the user-facing alert collaborator: sound, vibration, speech
// or a chat message, depending on the deployment. The controller only
// starts and stops it; what the alert looks like is delegated.
type Alerter interface {
	StartAlert(ctx context.Context, med *models.Medication, reminder *models.Reminder) error
	StopAlert(reminderID int64)
}

// LogAlerter writes alerts to the log. It backs degraded deployments with
// no patient channel configured, and the tests.
type LogAlerter struct {
	logger *logrus.Logger
}

// NewLogAlerter creates an alerter that only logs.
func NewLogAlerter(logger *logrus.Logger) *LogAlerter {
	return &LogAlerter{logger: logger}
}

func (a *LogAlerter) StartAlert(_ context.Context, med *models.Medication, reminder *models.Reminder) error {
	a.logger.WithFields(logrus.Fields{
		"reminder_id": reminder.ID,
		"medication":  med.Name,
	}).Info("⏰ Time to take medication")
	return nil
}

func (a *LogAlerter) StopAlert(reminderID int64) {
	a.logger.Debugf("Alert stopped for reminder %d", reminderID)
}
