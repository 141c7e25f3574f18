package handlers

import (
	"fmt"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/sirupsen/logrus"
)

// HelpHandler handles the /help command
type HelpHandler struct {
	logger *logrus.Logger
}

func NewHelpHandler(logger *logrus.Logger) *HelpHandler {
	return &HelpHandler{logger: logger}
}

func (h *HelpHandler) Handle(bot *tgbotapi.BotAPI, message *tgbotapi.Message, args []string) error {
	helpText := `📚 *MedAlert Help*

*Medications:*
• /addmed <name> <qty> <hours> - Add a medication (reminded every <hours> hours)
• /meds - Show all medications
• /restock <id> <qty> - Add doses to stock
• /removemed <id> - Stop reminding for a medication

*Reminders:*
• /status - Show upcoming reminders
• /history - Show recent intake history

When a dose is due you get a message with ✅ Taken and ⏰ Postpone
buttons. No answer within 30 seconds postpones the dose by 5 minutes.
Repeated postponements alert the emergency contact.

*Emergency contact:*
• /contact - Show who gets alerted
• /testalert - Send a test alert to the contact

_Intervals are 1-24 hours._`

	msg := tgbotapi.NewMessage(message.Chat.ID, helpText)
	msg.ParseMode = tgbotapi.ModeMarkdown

	_, err := bot.Send(msg)
	if err != nil {
		return fmt.Errorf("failed to send help message: %w", err)
	}

	h.logger.WithFields(logrus.Fields{
		"chat_id": message.Chat.ID,
		"user_id": message.From.ID,
	}).Info("Sent help message")

	return nil
}
