package notify

import (
	"context"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/medalert/medalert/internal/metrics"
)

// TextSender is the slice of the Telegram bot the messenger needs.
type TextSender interface {
	SendMessage(chatID int64, text string) error
}

// TelegramMessenger sends emergency alerts to a caregiver chat. With no
// sender or destination chat configured, every send reports
// ErrNotConfigured and the system keeps running in local-alert-only mode.
type TelegramMessenger struct {
	sender TextSender
	chatID int64
	logger *logrus.Logger
}

// NewTelegramMessenger creates a messenger for the given destination chat.
// sender may be nil when the bot token is absent.
func NewTelegramMessenger(sender TextSender, chatID int64, logger *logrus.Logger) *TelegramMessenger {
	return &TelegramMessenger{sender: sender, chatID: chatID, logger: logger}
}

// Configured reports whether alerts can actually be delivered.
func (m *TelegramMessenger) Configured() bool {
	return m.sender != nil && m.chatID != 0
}

func (m *TelegramMessenger) SendAlert(ctx context.Context, alert *Alert) error {
	if !m.Configured() {
		metrics.AlertSend("not_configured")
		return ErrNotConfigured
	}

	dispatchID := uuid.NewString()
	entry := m.logger.WithFields(logrus.Fields{
		"dispatch_id": dispatchID,
		"medication":  alert.MedicationName,
		"kind":        alert.Kind,
	})

	if err := m.sender.SendMessage(m.chatID, FormatAlert(alert)); err != nil {
		// Best effort: a transport failure is surfaced once, never
		// retried automatically.
		metrics.AlertSend("error")
		entry.WithError(err).Error("Failed to send emergency alert")
		return err
	}

	metrics.AlertSend("ok")
	entry.Info("Emergency alert sent")
	return nil
}
