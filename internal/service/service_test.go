package service

import (
	"context"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/medalert/medalert/internal/repository/memory"
	"github.com/medalert/medalert/internal/scheduler"
)

func newTestService(t *testing.T) (*Service, *memory.Store) {
	t.Helper()

	logger := logrus.New()
	logger.SetLevel(logrus.PanicLevel)

	store := memory.NewStore()
	sched := scheduler.New(scheduler.NewWallClock(), store.Medications(), store.Reminders(), logger)
	sched.SetFireFunc(func(int64) {})

	svc := New(nil, logger, sched,
		store.Medications(), store.Reminders(), store.Escalations(), store.History(), store.Contacts(),
	)
	return svc, store
}

func TestCreateMedication(t *testing.T) {
	svc, store := newTestService(t)
	ctx := context.Background()

	med, err := svc.CreateMedication(ctx, "  Aspirin  ", 30, 8, nil, "after meals")
	require.NoError(t, err)

	assert.Equal(t, "Aspirin", med.Name)
	assert.Equal(t, 30, med.Quantity)
	assert.True(t, med.Active)

	// Occurrences were materialized out to the horizon.
	reminders, err := store.Reminders().GetByMedication(ctx, med.ID)
	require.NoError(t, err)
	assert.Len(t, reminders, 90)
}

func TestCreateMedicationValidation(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	_, err := svc.CreateMedication(ctx, "", 10, 8, nil, "")
	assert.Error(t, err)

	_, err = svc.CreateMedication(ctx, "Aspirin", -1, 8, nil, "")
	assert.Error(t, err)

	_, err = svc.CreateMedication(ctx, "Aspirin", 10, 0, nil, "")
	assert.Error(t, err)

	_, err = svc.CreateMedication(ctx, "Aspirin", 10, 25, nil, "")
	assert.Error(t, err)
}

func TestCreateMedicationWithZeroStockIsInactive(t *testing.T) {
	svc, store := newTestService(t)
	ctx := context.Background()

	med, err := svc.CreateMedication(ctx, "Aspirin", 0, 8, nil, "")
	require.NoError(t, err)
	assert.False(t, med.Active)

	reminders, err := store.Reminders().GetByMedication(ctx, med.ID)
	require.NoError(t, err)
	assert.Empty(t, reminders, "inactive medication must not be scheduled")
}

func TestRestockReactivates(t *testing.T) {
	svc, store := newTestService(t)
	ctx := context.Background()

	med, err := svc.CreateMedication(ctx, "Aspirin", 0, 8, nil, "")
	require.NoError(t, err)
	require.False(t, med.Active)

	med, err = svc.RestockMedication(ctx, med.ID, 10)
	require.NoError(t, err)
	assert.Equal(t, 10, med.Quantity)
	assert.True(t, med.Active)

	reminders, err := store.Reminders().GetByMedication(ctx, med.ID)
	require.NoError(t, err)
	assert.NotEmpty(t, reminders, "reactivation must reschedule occurrences")
}

func TestRestockActiveDoesNotDoubleSchedule(t *testing.T) {
	svc, store := newTestService(t)
	ctx := context.Background()

	med, err := svc.CreateMedication(ctx, "Aspirin", 10, 8, nil, "")
	require.NoError(t, err)

	before, err := store.Reminders().GetByMedication(ctx, med.ID)
	require.NoError(t, err)

	_, err = svc.RestockMedication(ctx, med.ID, 5)
	require.NoError(t, err)

	after, err := store.Reminders().GetByMedication(ctx, med.ID)
	require.NoError(t, err)
	assert.Len(t, after, len(before))
}

func TestRestockValidation(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	_, err := svc.RestockMedication(ctx, 1, 0)
	assert.Error(t, err)

	_, err = svc.RestockMedication(ctx, 999, 5)
	assert.Error(t, err)
}

func TestRemoveMedication(t *testing.T) {
	svc, store := newTestService(t)
	ctx := context.Background()

	med, err := svc.CreateMedication(ctx, "Aspirin", 10, 8, nil, "")
	require.NoError(t, err)

	require.NoError(t, svc.RemoveMedication(ctx, med.ID))

	got, err := store.Medications().GetByID(ctx, med.ID)
	require.NoError(t, err)
	assert.False(t, got.Active)

	reminders, err := store.Reminders().GetByMedication(ctx, med.ID)
	require.NoError(t, err)
	assert.Empty(t, reminders)
}

func TestUpcomingReminders(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	_, err := svc.CreateMedication(ctx, "Aspirin", 10, 8, nil, "")
	require.NoError(t, err)

	reminders, err := svc.UpcomingReminders(ctx, 5)
	require.NoError(t, err)
	require.Len(t, reminders, 5)

	for i := 1; i < len(reminders); i++ {
		assert.True(t, !reminders[i].DueAt.Before(reminders[i-1].DueAt), "soonest first")
	}
	assert.True(t, reminders[0].DueAt.After(time.Now().Add(-time.Minute)))
}
