package handlers

import (
	"context"
	"fmt"
	"strconv"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/sirupsen/logrus"

	"github.com/medalert/medalert/internal/delivery"
)

// DoseTakenHandler handles the ✅ Taken button on a dose prompt.
type DoseTakenHandler struct {
	controller *delivery.Controller
	logger     *logrus.Logger
}

func NewDoseTakenHandler(controller *delivery.Controller, logger *logrus.Logger) *DoseTakenHandler {
	return &DoseTakenHandler{controller: controller, logger: logger}
}

func (h *DoseTakenHandler) HandleCallback(bot *tgbotapi.BotAPI, query *tgbotapi.CallbackQuery, payload string) error {
	reminderID, err := strconv.ParseInt(payload, 10, 64)
	if err != nil {
		return fmt.Errorf("invalid reminder id %q: %w", payload, err)
	}

	if err := h.controller.MarkTaken(context.Background(), reminderID); err != nil {
		return fmt.Errorf("mark taken: %w", err)
	}

	h.logger.WithFields(logrus.Fields{
		"reminder_id": reminderID,
		"user_id":     query.From.ID,
	}).Info("Dose confirmed via button")
	return nil
}

// DosePostponeHandler handles the ⏰ Postpone button on a dose prompt.
type DosePostponeHandler struct {
	controller *delivery.Controller
	logger     *logrus.Logger
}

func NewDosePostponeHandler(controller *delivery.Controller, logger *logrus.Logger) *DosePostponeHandler {
	return &DosePostponeHandler{controller: controller, logger: logger}
}

func (h *DosePostponeHandler) HandleCallback(bot *tgbotapi.BotAPI, query *tgbotapi.CallbackQuery, payload string) error {
	reminderID, err := strconv.ParseInt(payload, 10, 64)
	if err != nil {
		return fmt.Errorf("invalid reminder id %q: %w", payload, err)
	}

	if err := h.controller.Postpone(context.Background(), reminderID); err != nil {
		return fmt.Errorf("postpone: %w", err)
	}

	h.logger.WithFields(logrus.Fields{
		"reminder_id": reminderID,
		"user_id":     query.From.ID,
	}).Info("Dose postponed via button")
	return nil
}
