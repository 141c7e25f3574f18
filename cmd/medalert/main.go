package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"

	"github.com/medalert/medalert/internal/api"
	"github.com/medalert/medalert/internal/config"
	"github.com/medalert/medalert/internal/delivery"
	"github.com/medalert/medalert/internal/escalation"
	"github.com/medalert/medalert/internal/handlers"
	"github.com/medalert/medalert/internal/notify"
	"github.com/medalert/medalert/internal/repository/postgres"
	"github.com/medalert/medalert/internal/scheduler"
	"github.com/medalert/medalert/internal/service"
	"github.com/medalert/medalert/internal/telegram"
	"github.com/medalert/medalert/pkg/logger"
)

func main() {
	// .env is optional; real deployments set the environment directly.
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	l := logger.New(cfg.LogLevel)
	l.Info("Starting MedAlert...")

	// Database
	db, err := config.NewDatabase(cfg.DatabaseURL, l)
	if err != nil {
		l.Fatalf("Failed to connect to database: %v", err)
	}
	defer db.Close()

	// Run migrations
	if err := db.Migrate("migrations"); err != nil {
		l.Fatalf("Failed to run migrations: %v", err)
	}

	// Repositories
	medicationRepo := postgres.NewMedicationRepository(db.DB)
	reminderRepo := postgres.NewReminderRepository(db.DB)
	escalationRepo := postgres.NewEscalationRepository(db.DB)
	historyRepo := postgres.NewHistoryRepository(db.DB)
	contactRepo := postgres.NewContactRepository(db.DB)

	// Scheduling core
	clock := scheduler.NewWallClock()
	sched := scheduler.New(clock, medicationRepo, reminderRepo, l)

	// Telegram bot (optional)
	var bot *telegram.Bot
	if cfg.TelegramToken != "" {
		bot, err = telegram.NewBot(cfg.TelegramToken, l)
		if err != nil {
			l.Fatalf("Failed to create Telegram bot: %v", err)
		}
	} else {
		l.Warn("TELEGRAM_TOKEN not set, running without the bot")
	}

	// Emergency channel
	resolver := notify.NewResolver(contactRepo, l)
	var messenger notify.Messenger
	if bot != nil {
		messenger = notify.NewTelegramMessenger(bot, cfg.CaregiverChatID, l)
	} else {
		messenger = notify.NewTelegramMessenger(nil, 0, l)
	}
	caller := notify.NewCallGateway(cfg.CallGatewayURL, l)

	agent := escalation.NewAgent(
		escalation.DefaultPolicy(),
		reminderRepo, escalationRepo,
		messenger, caller, resolver,
		cfg.PatientName, l,
	)

	// Dose prompts go to the patient's chat when the bot is available,
	// otherwise to the log.
	var alerter delivery.Alerter
	if bot != nil && cfg.PatientChatID != 0 {
		alerter = telegram.NewDoseAlerter(bot, cfg.PatientChatID, l)
	} else {
		alerter = delivery.NewLogAlerter(l)
	}

	controller := delivery.NewController(
		delivery.DefaultConfig(),
		clock, sched,
		medicationRepo, reminderRepo, escalationRepo, historyRepo,
		alerter, agent, l,
	)

	// Service layer
	svc := service.New(db.DB, l, sched,
		medicationRepo, reminderRepo, escalationRepo, historyRepo, contactRepo,
	)

	// Register bot commands and dose buttons
	if bot != nil {
		bot.RegisterCommand("start", handlers.NewStartHandler(l))
		bot.RegisterCommand("help", handlers.NewHelpHandler(l))
		bot.RegisterCommand("addmed", handlers.NewAddMedHandler(svc, l))
		bot.RegisterCommand("meds", handlers.NewMedsHandler(svc, l))
		bot.RegisterCommand("restock", handlers.NewRestockHandler(svc, l))
		bot.RegisterCommand("removemed", handlers.NewRemoveMedHandler(svc, l))
		bot.RegisterCommand("status", handlers.NewStatusHandler(svc, l))
		bot.RegisterCommand("history", handlers.NewHistoryHandler(svc, l))
		bot.RegisterCommand("contact", handlers.NewContactHandler(svc, resolver, l))
		bot.RegisterCommand("testalert", handlers.NewTestAlertHandler(messenger, resolver, cfg.PatientName, l))

		bot.RegisterCallback(telegram.CallbackTaken, handlers.NewDoseTakenHandler(controller, l))
		bot.RegisterCallback(telegram.CallbackPostpone, handlers.NewDosePostponeHandler(controller, l))
	}

	// Context for graceful shutdown
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		<-sigChan
		l.Info("Received shutdown signal...")
		cancel()
	}()

	// Re-arm persisted reminders; overdue ones fire immediately.
	if err := sched.Reconcile(ctx); err != nil {
		l.Fatalf("Failed to reconcile reminders: %v", err)
	}

	// Escalation agent
	go agent.Run(ctx)

	// HTTP API
	apiServer := api.NewServer(svc, controller, l)
	httpServer := &http.Server{
		Addr:    ":" + cfg.Port,
		Handler: apiServer.Handler(),
	}

	go func() {
		l.Infof("HTTP server listening on :%s", cfg.Port)
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			l.Errorf("HTTP server error: %v", err)
		}
	}()

	// Telegram bot polling
	if bot != nil {
		go func() {
			if err := bot.Start(ctx); err != nil {
				l.Errorf("Bot error: %v", err)
			}
		}()
	}

	l.Info("MedAlert started successfully")

	<-ctx.Done()

	l.Info("Shutting down HTTP server...")
	httpServer.Close()

	l.Info("MedAlert stopped")
}
