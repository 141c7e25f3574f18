package config

import (
	"fmt"
	"os"
	"strconv"
)

// Config holds all configuration for the application
type Config struct {
	DatabaseURL     string
	LogLevel        string
	Port            string
	TelegramToken   string
	PatientChatID   int64
	CaregiverChatID int64
	PatientName     string
	CallGatewayURL  string
}

// Load loads configuration from environment variables
func Load() (*Config, error) {
	cfg := &Config{
		LogLevel:       getEnvOrDefault("LOG_LEVEL", "info"),
		Port:           getEnvOrDefault("PORT", "8080"),
		PatientName:    getEnvOrDefault("PATIENT_NAME", "The patient"),
		TelegramToken:  os.Getenv("TELEGRAM_TOKEN"),
		CallGatewayURL: os.Getenv("CALL_GATEWAY_URL"),
	}

	// Required environment variables
	if cfg.DatabaseURL = os.Getenv("DATABASE_URL"); cfg.DatabaseURL == "" {
		return nil, fmt.Errorf("DATABASE_URL environment variable is required")
	}

	// Telegram chat ids are optional: without them the bot surfaces are
	// simply disabled and alerts fall back to logging.
	var err error
	if cfg.PatientChatID, err = getEnvInt64("PATIENT_CHAT_ID"); err != nil {
		return nil, err
	}
	if cfg.CaregiverChatID, err = getEnvInt64("CAREGIVER_CHAT_ID"); err != nil {
		return nil, err
	}

	return cfg, nil
}

// getEnvOrDefault returns environment variable value or default if not set
func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt64(key string) (int64, error) {
	value := os.Getenv(key)
	if value == "" {
		return 0, nil
	}
	parsed, err := strconv.ParseInt(value, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("%s must be an integer chat id: %w", key, err)
	}
	return parsed, nil
}
