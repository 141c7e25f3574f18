package handlers

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/sirupsen/logrus"

	"github.com/medalert/medalert/internal/service"
)

// AddMedHandler handles the /addmed command
type AddMedHandler struct {
	svc    *service.Service
	logger *logrus.Logger
}

func NewAddMedHandler(svc *service.Service, logger *logrus.Logger) *AddMedHandler {
	return &AddMedHandler{svc: svc, logger: logger}
}

func (h *AddMedHandler) Handle(bot *tgbotapi.BotAPI, message *tgbotapi.Message, args []string) error {
	if len(args) < 3 {
		msg := tgbotapi.NewMessage(message.Chat.ID, "Usage: /addmed <name> <quantity> <interval hours>\nExample: /addmed Aspirin 30 8")
		bot.Send(msg)
		return nil
	}

	// The name may contain spaces; quantity and interval are the last two
	// arguments.
	name := strings.Join(args[:len(args)-2], " ")
	quantity, err := strconv.Atoi(args[len(args)-2])
	if err != nil {
		msg := tgbotapi.NewMessage(message.Chat.ID, "❌ Quantity must be a number")
		bot.Send(msg)
		return nil
	}
	intervalHours, err := strconv.Atoi(args[len(args)-1])
	if err != nil {
		msg := tgbotapi.NewMessage(message.Chat.ID, "❌ Interval must be a number of hours")
		bot.Send(msg)
		return nil
	}

	med, err := h.svc.CreateMedication(context.Background(), name, quantity, intervalHours, nil, "")
	if err != nil {
		msg := tgbotapi.NewMessage(message.Chat.ID, fmt.Sprintf("❌ %v", err))
		bot.Send(msg)
		return nil
	}

	text := fmt.Sprintf("💊 Added *%s* #%d\n📦 %d doses, every %d hour(s)",
		med.Name, med.ID, med.Quantity, med.IntervalHours)
	msg := tgbotapi.NewMessage(message.Chat.ID, text)
	msg.ParseMode = tgbotapi.ModeMarkdown
	bot.Send(msg)
	return nil
}

// MedsHandler handles the /meds command
type MedsHandler struct {
	svc    *service.Service
	logger *logrus.Logger
}

func NewMedsHandler(svc *service.Service, logger *logrus.Logger) *MedsHandler {
	return &MedsHandler{svc: svc, logger: logger}
}

func (h *MedsHandler) Handle(bot *tgbotapi.BotAPI, message *tgbotapi.Message, args []string) error {
	meds, err := h.svc.Medications.GetAll(context.Background())
	if err != nil {
		return fmt.Errorf("list medications: %w", err)
	}

	if len(meds) == 0 {
		msg := tgbotapi.NewMessage(message.Chat.ID, "No medications yet. Add one with /addmed!")
		bot.Send(msg)
		return nil
	}

	var sb strings.Builder
	sb.WriteString("💊 *Medications:*\n\n")
	for _, med := range meds {
		status := "✅"
		if !med.Active {
			status = "⏸"
		}
		sb.WriteString(fmt.Sprintf("%s #%d *%s* — %d doses, every %dh\n",
			status, med.ID, med.Name, med.Quantity, med.IntervalHours))
	}

	msg := tgbotapi.NewMessage(message.Chat.ID, sb.String())
	msg.ParseMode = tgbotapi.ModeMarkdown
	bot.Send(msg)
	return nil
}

// RestockHandler handles the /restock command
type RestockHandler struct {
	svc    *service.Service
	logger *logrus.Logger
}

func NewRestockHandler(svc *service.Service, logger *logrus.Logger) *RestockHandler {
	return &RestockHandler{svc: svc, logger: logger}
}

func (h *RestockHandler) Handle(bot *tgbotapi.BotAPI, message *tgbotapi.Message, args []string) error {
	if len(args) < 2 {
		msg := tgbotapi.NewMessage(message.Chat.ID, "Usage: /restock <id> <quantity>")
		bot.Send(msg)
		return nil
	}

	id, err := strconv.ParseInt(args[0], 10, 64)
	if err != nil {
		msg := tgbotapi.NewMessage(message.Chat.ID, "❌ Medication id must be a number")
		bot.Send(msg)
		return nil
	}
	quantity, err := strconv.Atoi(args[1])
	if err != nil {
		msg := tgbotapi.NewMessage(message.Chat.ID, "❌ Quantity must be a number")
		bot.Send(msg)
		return nil
	}

	med, err := h.svc.RestockMedication(context.Background(), id, quantity)
	if err != nil {
		msg := tgbotapi.NewMessage(message.Chat.ID, fmt.Sprintf("❌ %v", err))
		bot.Send(msg)
		return nil
	}

	text := fmt.Sprintf("📦 Restocked *%s* — now %d doses", med.Name, med.Quantity)
	msg := tgbotapi.NewMessage(message.Chat.ID, text)
	msg.ParseMode = tgbotapi.ModeMarkdown
	bot.Send(msg)
	return nil
}

// RemoveMedHandler handles the /removemed command
type RemoveMedHandler struct {
	svc    *service.Service
	logger *logrus.Logger
}

func NewRemoveMedHandler(svc *service.Service, logger *logrus.Logger) *RemoveMedHandler {
	return &RemoveMedHandler{svc: svc, logger: logger}
}

func (h *RemoveMedHandler) Handle(bot *tgbotapi.BotAPI, message *tgbotapi.Message, args []string) error {
	if len(args) < 1 {
		msg := tgbotapi.NewMessage(message.Chat.ID, "Usage: /removemed <id>")
		bot.Send(msg)
		return nil
	}

	id, err := strconv.ParseInt(args[0], 10, 64)
	if err != nil {
		msg := tgbotapi.NewMessage(message.Chat.ID, "❌ Medication id must be a number")
		bot.Send(msg)
		return nil
	}

	if err := h.svc.RemoveMedication(context.Background(), id); err != nil {
		msg := tgbotapi.NewMessage(message.Chat.ID, fmt.Sprintf("❌ %v", err))
		bot.Send(msg)
		return nil
	}

	msg := tgbotapi.NewMessage(message.Chat.ID, fmt.Sprintf("🗑 Medication #%d removed. History is kept.", id))
	bot.Send(msg)
	return nil
}
