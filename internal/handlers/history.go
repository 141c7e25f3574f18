package handlers

import (
	"context"
	"fmt"
	"strings"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/sirupsen/logrus"

	"github.com/medalert/medalert/internal/models"
	"github.com/medalert/medalert/internal/service"
)

// HistoryHandler handles the /history command
type HistoryHandler struct {
	svc    *service.Service
	logger *logrus.Logger
}

func NewHistoryHandler(svc *service.Service, logger *logrus.Logger) *HistoryHandler {
	return &HistoryHandler{svc: svc, logger: logger}
}

func (h *HistoryHandler) Handle(bot *tgbotapi.BotAPI, message *tgbotapi.Message, args []string) error {
	ctx := context.Background()

	entries, err := h.svc.History.ListRecent(ctx, 15)
	if err != nil {
		return fmt.Errorf("list history: %w", err)
	}

	if len(entries) == 0 {
		msg := tgbotapi.NewMessage(message.Chat.ID, "No intake history yet.")
		bot.Send(msg)
		return nil
	}

	var sb strings.Builder
	sb.WriteString("📋 *Recent intake history:*\n\n")
	for _, entry := range entries {
		med, err := h.svc.Medications.GetByID(ctx, entry.MedicationID)
		if err != nil || med == nil {
			continue
		}
		switch entry.Outcome {
		case models.OutcomeTaken:
			when := entry.ScheduledAt
			if entry.CompletedAt != nil {
				when = *entry.CompletedAt
			}
			sb.WriteString(fmt.Sprintf("✅ *%s* taken %s\n", med.Name, when.Format("Mon 15:04")))
		case models.OutcomePostponed:
			sb.WriteString(fmt.Sprintf("⏰ *%s* postponed (due %s)\n", med.Name, entry.ScheduledAt.Format("Mon 15:04")))
		}
	}

	msg := tgbotapi.NewMessage(message.Chat.ID, sb.String())
	msg.ParseMode = tgbotapi.ModeMarkdown
	bot.Send(msg)
	return nil
}
