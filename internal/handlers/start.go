package handlers

import (
	"fmt"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/sirupsen/logrus"
)

// StartHandler handles the /start command
type StartHandler struct {
	logger *logrus.Logger
}

// NewStartHandler creates a new start command handler
func NewStartHandler(logger *logrus.Logger) *StartHandler {
	return &StartHandler{
		logger: logger,
	}
}

// Handle processes the /start command
func (h *StartHandler) Handle(bot *tgbotapi.BotAPI, message *tgbotapi.Message, args []string) error {
	welcomeText := `
💊 *Welcome to MedAlert!*

I remind you when a medication is due, and I make sure someone knows
when a dose keeps getting missed.

*Available Commands:*
• /addmed <name> <qty> <hours> - Add a medication
• /meds - Show all medications
• /restock <id> <qty> - Add doses to stock
• /removemed <id> - Stop reminding for a medication
• /status - Show upcoming reminders
• /history - Show recent intake history
• /contact - Show the emergency contact
• /help - Show this help message

Get started by adding your first medication with /addmed!
	`

	msg := tgbotapi.NewMessage(message.Chat.ID, welcomeText)
	msg.ParseMode = tgbotapi.ModeMarkdown

	_, err := bot.Send(msg)
	if err != nil {
		return fmt.Errorf("failed to send start message: %w", err)
	}

	h.logger.WithFields(logrus.Fields{
		"chat_id": message.Chat.ID,
		"user_id": message.From.ID,
	}).Info("Sent start message")

	return nil
}
