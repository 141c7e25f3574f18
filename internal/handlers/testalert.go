package handlers

import (
	"context"
	"errors"
	"fmt"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/sirupsen/logrus"

	"github.com/medalert/medalert/internal/notify"
)

// TestAlertHandler handles the /testalert command. It pushes a synthetic
// alert through the emergency channel so the setup can be verified before
// it is needed for real.
type TestAlertHandler struct {
	messenger notify.Messenger
	resolver  *notify.Resolver
	patient   string
	logger    *logrus.Logger
}

func NewTestAlertHandler(messenger notify.Messenger, resolver *notify.Resolver, patient string, logger *logrus.Logger) *TestAlertHandler {
	return &TestAlertHandler{messenger: messenger, resolver: resolver, patient: patient, logger: logger}
}

func (h *TestAlertHandler) Handle(bot *tgbotapi.BotAPI, message *tgbotapi.Message, args []string) error {
	ctx := context.Background()

	contact, err := h.resolver.Resolve(ctx)
	if err != nil {
		return fmt.Errorf("resolve contact: %w", err)
	}

	alert := &notify.Alert{
		Kind:           notify.AlertPostponed,
		PatientName:    h.patient,
		MedicationName: "Test medication",
		ScheduledAt:    time.Now(),
		Elapsed:        25 * time.Minute,
		PostponeCount:  3,
		Contact:        contact,
	}

	if err := h.messenger.SendAlert(ctx, alert); err != nil {
		if errors.Is(err, notify.ErrNotConfigured) {
			msg := tgbotapi.NewMessage(message.Chat.ID,
				"⚠️ Emergency channel is not configured. Set CAREGIVER_CHAT_ID.")
			bot.Send(msg)
			return nil
		}
		return fmt.Errorf("send test alert: %w", err)
	}

	msg := tgbotapi.NewMessage(message.Chat.ID, "✅ Test alert sent to the emergency channel.")
	bot.Send(msg)
	return nil
}
