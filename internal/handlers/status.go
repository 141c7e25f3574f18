package handlers

import (
	"context"
	"fmt"
	"strings"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/sirupsen/logrus"

	"github.com/medalert/medalert/internal/service"
)

// StatusHandler handles the /status command
type StatusHandler struct {
	svc    *service.Service
	logger *logrus.Logger
}

func NewStatusHandler(svc *service.Service, logger *logrus.Logger) *StatusHandler {
	return &StatusHandler{svc: svc, logger: logger}
}

func (h *StatusHandler) Handle(bot *tgbotapi.BotAPI, message *tgbotapi.Message, args []string) error {
	ctx := context.Background()

	reminders, err := h.svc.UpcomingReminders(ctx, 10)
	if err != nil {
		return fmt.Errorf("list upcoming reminders: %w", err)
	}

	if len(reminders) == 0 {
		msg := tgbotapi.NewMessage(message.Chat.ID, "No upcoming reminders.")
		bot.Send(msg)
		return nil
	}

	var sb strings.Builder
	sb.WriteString("⏰ *Upcoming reminders:*\n\n")
	for _, rem := range reminders {
		med, err := h.svc.Medications.GetByID(ctx, rem.MedicationID)
		if err != nil || med == nil {
			continue
		}
		line := fmt.Sprintf("• *%s* at %s", med.Name, rem.DueAt.Format("Mon 15:04"))
		if rem.PostponeCount > 0 {
			line += fmt.Sprintf(" (postponed ×%d)", rem.PostponeCount)
		}
		sb.WriteString(line + "\n")
	}

	msg := tgbotapi.NewMessage(message.Chat.ID, sb.String())
	msg.ParseMode = tgbotapi.ModeMarkdown
	bot.Send(msg)
	return nil
}
