package telegram

import (
	"context"
	"fmt"
	"sync"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/sirupsen/logrus"

	"github.com/medalert/medalert/internal/models"
)

// Callback data prefixes for the dose keyboard.
const (
	CallbackTaken    = "taken"
	CallbackPostpone = "postpone"
)

// DoseAlerter delivers dose prompts to the patient's chat with an inline
// Taken / Postpone keyboard. Stopping an alert edits the message so stale
// buttons cannot be pressed.
type DoseAlerter struct {
	bot    *Bot
	chatID int64
	logger *logrus.Logger

	mu       sync.Mutex
	messages map[int64]int // reminder id -> message id
}

// NewDoseAlerter creates a DoseAlerter bound to the patient's chat.
func NewDoseAlerter(bot *Bot, chatID int64, logger *logrus.Logger) *DoseAlerter {
	return &DoseAlerter{
		bot:      bot,
		chatID:   chatID,
		logger:   logger,
		messages: make(map[int64]int),
	}
}

// StartAlert sends the dose prompt for the reminder.
func (a *DoseAlerter) StartAlert(ctx context.Context, med *models.Medication, reminder *models.Reminder) error {
	text := fmt.Sprintf("💊 *Time for your medication*\n\n*%s*", med.Name)
	if med.Notes != "" {
		text += fmt.Sprintf("\n_%s_", med.Notes)
	}
	if reminder.PostponeCount > 0 {
		text += fmt.Sprintf("\n\nPostponed %d time(s) already.", reminder.PostponeCount)
	}

	keyboard := tgbotapi.NewInlineKeyboardMarkup(
		tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData("✅ Taken",
				fmt.Sprintf("%s:%d", CallbackTaken, reminder.ID)),
			tgbotapi.NewInlineKeyboardButtonData("⏰ Postpone 5 min",
				fmt.Sprintf("%s:%d", CallbackPostpone, reminder.ID)),
		),
	)

	messageID, err := a.bot.SendWithKeyboard(a.chatID, text, keyboard)
	if err != nil {
		return fmt.Errorf("failed to send dose prompt for reminder %d: %w", reminder.ID, err)
	}

	a.mu.Lock()
	a.messages[reminder.ID] = messageID
	a.mu.Unlock()

	return nil
}

// StopAlert removes the keyboard from the outstanding prompt, if any.
func (a *DoseAlerter) StopAlert(reminderID int64) {
	a.mu.Lock()
	messageID, ok := a.messages[reminderID]
	if ok {
		delete(a.messages, reminderID)
	}
	a.mu.Unlock()

	if !ok {
		return
	}

	if err := a.bot.EditMessage(a.chatID, messageID, "💊 Reminder handled."); err != nil {
		a.logger.WithError(err).Warnf("Failed to retire dose prompt for reminder %d", reminderID)
	}
}
