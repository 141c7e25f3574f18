package handlers

import (
	"context"
	"fmt"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/sirupsen/logrus"

	"github.com/medalert/medalert/internal/notify"
	"github.com/medalert/medalert/internal/service"
)

// ContactHandler handles the /contact command
type ContactHandler struct {
	svc      *service.Service
	resolver *notify.Resolver
	logger   *logrus.Logger
}

func NewContactHandler(svc *service.Service, resolver *notify.Resolver, logger *logrus.Logger) *ContactHandler {
	return &ContactHandler{svc: svc, resolver: resolver, logger: logger}
}

func (h *ContactHandler) Handle(bot *tgbotapi.BotAPI, message *tgbotapi.Message, args []string) error {
	contact, err := h.resolver.Resolve(context.Background())
	if err != nil {
		return fmt.Errorf("resolve contact: %w", err)
	}

	if contact == nil {
		msg := tgbotapi.NewMessage(message.Chat.ID,
			"⚠️ No emergency contact is set. Add one through the API, or star a contact.")
		bot.Send(msg)
		return nil
	}

	source := "starred"
	if contact.Configured {
		source = "configured"
	}
	text := fmt.Sprintf("🆘 *Emergency contact:* %s\n📞 %s\n_(%s)_", contact.Name, contact.Phone, source)

	msg := tgbotapi.NewMessage(message.Chat.ID, text)
	msg.ParseMode = tgbotapi.ModeMarkdown
	bot.Send(msg)
	return nil
}
