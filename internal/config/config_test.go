package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadRequiresDatabaseURL(t *testing.T) {
	t.Setenv("DATABASE_URL", "")

	_, err := Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "DATABASE_URL")
}

func TestLoadDefaults(t *testing.T) {
	t.Setenv("DATABASE_URL", "postgres://localhost/medalert?sslmode=disable")
	t.Setenv("LOG_LEVEL", "")
	t.Setenv("PORT", "")
	t.Setenv("PATIENT_NAME", "")
	t.Setenv("PATIENT_CHAT_ID", "")
	t.Setenv("CAREGIVER_CHAT_ID", "")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "info", cfg.LogLevel)
	assert.Equal(t, "8080", cfg.Port)
	assert.Equal(t, "The patient", cfg.PatientName)
	assert.Zero(t, cfg.PatientChatID)
	assert.Zero(t, cfg.CaregiverChatID)
}

func TestLoadChatIDs(t *testing.T) {
	t.Setenv("DATABASE_URL", "postgres://localhost/medalert?sslmode=disable")
	t.Setenv("PATIENT_CHAT_ID", "123456")
	t.Setenv("CAREGIVER_CHAT_ID", "-987654")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, int64(123456), cfg.PatientChatID)
	assert.Equal(t, int64(-987654), cfg.CaregiverChatID)
}

func TestLoadRejectsMalformedChatID(t *testing.T) {
	t.Setenv("DATABASE_URL", "postgres://localhost/medalert?sslmode=disable")
	t.Setenv("PATIENT_CHAT_ID", "not-a-number")

	_, err := Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "PATIENT_CHAT_ID")
}
