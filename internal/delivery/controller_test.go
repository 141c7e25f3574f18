package delivery

import (
	"context"
	"errors"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/medalert/medalert/internal/escalation"
	"github.com/medalert/medalert/internal/models"
	"github.com/medalert/medalert/internal/notify"
	"github.com/medalert/medalert/internal/repository"
	"github.com/medalert/medalert/internal/repository/memory"
	"github.com/medalert/medalert/internal/scheduler"
)

// manualClock is an AlarmClock whose time only moves when the test says so.
type manualClock struct {
	mu     sync.Mutex
	now    time.Time
	timers map[int64]manualTimer
}

type manualTimer struct {
	at time.Time
	fn func()
}

func newManualClock(now time.Time) *manualClock {
	return &manualClock{now: now, timers: make(map[int64]manualTimer)}
}

func (c *manualClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *manualClock) Schedule(token int64, at time.Time, fn func()) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.timers[token] = manualTimer{at: at, fn: fn}
	return nil
}

func (c *manualClock) Cancel(token int64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.timers, token)
}

func (c *manualClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	var due []manualTimer
	for token, t := range c.timers {
		if !t.at.After(c.now) {
			due = append(due, t)
			delete(c.timers, token)
		}
	}
	c.mu.Unlock()

	sort.Slice(due, func(i, j int) bool { return due[i].at.Before(due[j].at) })
	for _, t := range due {
		t.fn()
	}
}

func (c *manualClock) hasTimer(token int64) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	_, ok := c.timers[token]
	return ok
}

// recordingAlerter remembers which reminders are currently alerting.
type recordingAlerter struct {
	mu      sync.Mutex
	started []int64
	stopped []int64
}

func (a *recordingAlerter) StartAlert(_ context.Context, _ *models.Medication, reminder *models.Reminder) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.started = append(a.started, reminder.ID)
	return nil
}

func (a *recordingAlerter) StopAlert(reminderID int64) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.stopped = append(a.stopped, reminderID)
}

func (a *recordingAlerter) startCount() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return len(a.started)
}

type fixture struct {
	clock      *manualClock
	store      *memory.Store
	sched      *scheduler.Scheduler
	alerter    *recordingAlerter
	controller *Controller
}

func newFixture(t *testing.T, now time.Time) *fixture {
	return newFixtureWith(t, now, DefaultConfig(), nil)
}

// newFixtureWith lets a test swap in a wrapped reminder repository and its
// own timing knobs; everything else is the stock in-memory wiring.
func newFixtureWith(t *testing.T, now time.Time, cfg Config, wrap func(repository.ReminderRepository) repository.ReminderRepository) *fixture {
	t.Helper()

	logger := logrus.New()
	logger.SetLevel(logrus.PanicLevel)

	clock := newManualClock(now)
	store := memory.NewStore()

	reminders := repository.ReminderRepository(store.Reminders())
	if wrap != nil {
		reminders = wrap(reminders)
	}

	sched := scheduler.New(clock, store.Medications(), reminders, logger)

	agent := escalation.NewAgent(
		escalation.DefaultPolicy(),
		store.Reminders(), store.Escalations(),
		notify.NewTelegramMessenger(nil, 0, logger),
		notify.NewCallGateway("", logger),
		notify.NewResolver(store.Contacts(), logger),
		"The patient", logger,
	)

	alerter := &recordingAlerter{}
	controller := NewController(
		cfg,
		clock, sched,
		store.Medications(), reminders, store.Escalations(), store.History(),
		alerter, agent, logger,
	)

	return &fixture{clock: clock, store: store, sched: sched, alerter: alerter, controller: controller}
}

// seed creates a medication and a due reminder registered on the clock.
func (f *fixture) seed(t *testing.T, quantity int, fireIn time.Duration) (*models.Medication, *models.Reminder) {
	t.Helper()
	ctx := context.Background()

	med, err := f.store.Medications().Create(ctx, &models.Medication{
		Name: "Aspirin", Quantity: quantity, IntervalHours: 8, Active: true,
	})
	require.NoError(t, err)

	due := f.clock.Now().Add(fireIn)
	rem, err := f.store.Reminders().Create(ctx, &models.Reminder{
		MedicationID: med.ID,
		ScheduledAt:  due,
		DueAt:        due,
		Status:       models.ReminderStatusPending,
		AlarmToken:   5001,
	})
	require.NoError(t, err)
	require.NoError(t, f.sched.Register(rem))

	return med, rem
}

func TestFireStartsAlertAndWatchdog(t *testing.T) {
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	f := newFixture(t, now)

	_, rem := f.seed(t, 10, time.Hour)

	f.clock.Advance(time.Hour)

	assert.Equal(t, []int64{rem.ID}, f.alerter.started)
	assert.True(t, f.clock.hasTimer(-rem.ID), "watchdog should be armed")
}

func TestMarkTaken(t *testing.T) {
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	f := newFixture(t, now)
	ctx := context.Background()

	med, rem := f.seed(t, 10, time.Hour)
	f.clock.Advance(time.Hour)

	require.NoError(t, f.controller.MarkTaken(ctx, rem.ID))

	got, err := f.store.Reminders().GetByID(ctx, rem.ID)
	require.NoError(t, err)
	assert.Equal(t, models.ReminderStatusCompleted, got.Status)

	// Watchdog is disarmed, alert is stopped.
	assert.False(t, f.clock.hasTimer(-rem.ID))
	assert.Equal(t, []int64{rem.ID}, f.alerter.stopped)

	// Stock decremented, history records the intake.
	gotMed, err := f.store.Medications().GetByID(ctx, med.ID)
	require.NoError(t, err)
	assert.Equal(t, 9, gotMed.Quantity)
	assert.True(t, gotMed.Active)

	entries, err := f.store.History().GetByMedication(ctx, med.ID)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, models.OutcomeTaken, entries[0].Outcome)
	require.NotNil(t, entries[0].CompletedAt)

	// Advancing past the watchdog deadline must not auto-postpone.
	f.clock.Advance(time.Minute)
	got, err = f.store.Reminders().GetByID(ctx, rem.ID)
	require.NoError(t, err)
	assert.Equal(t, models.ReminderStatusCompleted, got.Status)
	assert.Zero(t, got.PostponeCount)
}

func TestMarkTakenIsIdempotent(t *testing.T) {
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	f := newFixture(t, now)
	ctx := context.Background()

	med, rem := f.seed(t, 10, time.Hour)
	f.clock.Advance(time.Hour)

	require.NoError(t, f.controller.MarkTaken(ctx, rem.ID))
	require.NoError(t, f.controller.MarkTaken(ctx, rem.ID))

	gotMed, err := f.store.Medications().GetByID(ctx, med.ID)
	require.NoError(t, err)
	assert.Equal(t, 9, gotMed.Quantity, "second confirmation must not decrement again")

	entries, err := f.store.History().GetByMedication(ctx, med.ID)
	require.NoError(t, err)
	assert.Len(t, entries, 1)
}

func TestDepletionDeactivates(t *testing.T) {
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	f := newFixture(t, now)
	ctx := context.Background()

	med, rem := f.seed(t, 1, time.Hour)
	f.clock.Advance(time.Hour)

	require.NoError(t, f.controller.MarkTaken(ctx, rem.ID))

	gotMed, err := f.store.Medications().GetByID(ctx, med.ID)
	require.NoError(t, err)
	assert.Zero(t, gotMed.Quantity)
	assert.False(t, gotMed.Active, "depleted medication must be deactivated")
}

func TestPostpone(t *testing.T) {
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	f := newFixture(t, now)
	ctx := context.Background()

	_, rem := f.seed(t, 10, time.Hour)
	f.clock.Advance(time.Hour)
	fireTime := f.clock.Now()

	require.NoError(t, f.controller.Postpone(ctx, rem.ID))

	got, err := f.store.Reminders().GetByID(ctx, rem.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, got.PostponeCount)
	assert.Equal(t, fireTime.Add(5*time.Minute), got.DueAt)
	assert.Equal(t, rem.ScheduledAt, got.ScheduledAt, "original slot never moves")
	assert.Equal(t, rem.AlarmToken, got.AlarmToken, "postponement reuses the alarm token")

	// Watchdog disarmed, alert stopped, alarm re-armed at the new due time.
	assert.False(t, f.clock.hasTimer(-rem.ID))
	assert.Equal(t, []int64{rem.ID}, f.alerter.stopped)
	assert.True(t, f.clock.hasTimer(rem.AlarmToken))

	// The dose fires again after the postpone delay.
	f.clock.Advance(5 * time.Minute)
	assert.Equal(t, 2, f.alerter.startCount())
}

func TestWatchdogAutoPostpones(t *testing.T) {
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	f := newFixture(t, now)
	ctx := context.Background()

	med, rem := f.seed(t, 10, time.Hour)
	f.clock.Advance(time.Hour)
	fireTime := f.clock.Now()

	// No response for 30 seconds.
	f.clock.Advance(30 * time.Second)

	got, err := f.store.Reminders().GetByID(ctx, rem.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, got.PostponeCount)
	assert.Equal(t, fireTime.Add(30*time.Second+5*time.Minute), got.DueAt)

	entries, err := f.store.History().GetByMedication(ctx, med.ID)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, models.OutcomePostponed, entries[0].Outcome)

	// Ignoring it again keeps the cycle going.
	f.clock.Advance(5 * time.Minute)
	f.clock.Advance(30 * time.Second)

	got, err = f.store.Reminders().GetByID(ctx, rem.ID)
	require.NoError(t, err)
	assert.Equal(t, 2, got.PostponeCount)
	assert.Equal(t, 2, f.alerter.startCount())
}

func TestPostponeAfterTakenIsNoop(t *testing.T) {
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	f := newFixture(t, now)
	ctx := context.Background()

	med, rem := f.seed(t, 10, time.Hour)
	f.clock.Advance(time.Hour)

	require.NoError(t, f.controller.MarkTaken(ctx, rem.ID))
	require.NoError(t, f.controller.Postpone(ctx, rem.ID))

	got, err := f.store.Reminders().GetByID(ctx, rem.ID)
	require.NoError(t, err)
	assert.Equal(t, models.ReminderStatusCompleted, got.Status)
	assert.Zero(t, got.PostponeCount)

	entries, err := f.store.History().GetByMedication(ctx, med.ID)
	require.NoError(t, err)
	assert.Len(t, entries, 1)
}

func TestFireOnCompletedReminderIsSilent(t *testing.T) {
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	f := newFixture(t, now)
	ctx := context.Background()

	_, rem := f.seed(t, 10, time.Hour)
	_, err := f.store.Reminders().MarkCompleted(ctx, rem.ID)
	require.NoError(t, err)

	f.clock.Advance(time.Hour)

	assert.Zero(t, f.alerter.startCount())
	assert.False(t, f.clock.hasTimer(-rem.ID))
}

func TestFireOnInactiveMedicationIsSilent(t *testing.T) {
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	f := newFixture(t, now)
	ctx := context.Background()

	med, rem := f.seed(t, 10, time.Hour)
	require.NoError(t, f.store.Medications().SetActive(ctx, med.ID, false))

	f.clock.Advance(time.Hour)

	assert.Zero(t, f.alerter.startCount())
	assert.False(t, f.clock.hasTimer(-rem.ID))
}

func TestMarkTakenClosesOpenEscalation(t *testing.T) {
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	f := newFixture(t, now)
	ctx := context.Background()

	med, rem := f.seed(t, 10, time.Hour)
	f.clock.Advance(time.Hour)

	esc, err := f.store.Escalations().Create(ctx, &models.Escalation{
		ReminderID:   rem.ID,
		MedicationID: med.ID,
	})
	require.NoError(t, err)

	require.NoError(t, f.controller.MarkTaken(ctx, rem.ID))

	open, err := f.store.Escalations().GetOpenByReminder(ctx, rem.ID)
	require.NoError(t, err)
	assert.Nil(t, open, "taking the dose must close the escalation")

	all, err := f.store.Escalations().ListRecent(ctx, 10)
	require.NoError(t, err)
	require.Len(t, all, 1)
	assert.Equal(t, esc.ID, all[0].ID)
	assert.True(t, all[0].Completed)
}

// brokenPostponeRepo rejects every Postpone write and delegates everything
// else to the wrapped repository.
type brokenPostponeRepo struct {
	repository.ReminderRepository
	mu       sync.Mutex
	attempts int
}

func (r *brokenPostponeRepo) Postpone(context.Context, int64, time.Time, int) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.attempts++
	return false, errors.New("connection reset by peer")
}

func (r *brokenPostponeRepo) attemptCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.attempts
}

func TestPostponePersistFailureReArmsAlarm(t *testing.T) {
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

	cfg := DefaultConfig()
	cfg.RetryBackoff = time.Millisecond

	var repo *brokenPostponeRepo
	f := newFixtureWith(t, now, cfg, func(r repository.ReminderRepository) repository.ReminderRepository {
		repo = &brokenPostponeRepo{ReminderRepository: r}
		return repo
	})
	ctx := context.Background()

	_, rem := f.seed(t, 10, time.Hour)
	f.clock.Advance(time.Hour)

	err := f.controller.Postpone(ctx, rem.ID)
	require.Error(t, err)
	assert.ErrorContains(t, err, "connection reset")
	assert.Equal(t, cfg.RetryAttempts, repo.attemptCount(), "write gets its bounded retries before the error surfaces")

	// The durable row did not move: the store stays authoritative.
	got, err := f.store.Reminders().GetByID(ctx, rem.ID)
	require.NoError(t, err)
	assert.Equal(t, models.ReminderStatusPending, got.Status)
	assert.Zero(t, got.PostponeCount)
	assert.Equal(t, rem.DueAt, got.DueAt)

	entries, err := f.store.History().GetByMedication(ctx, rem.MedicationID)
	require.NoError(t, err)
	assert.Empty(t, entries, "a failed postponement must not be recorded")

	// The same alarm token is re-armed, so the occurrence keeps pestering
	// instead of going quiet.
	assert.True(t, f.clock.hasTimer(rem.AlarmToken))
	f.clock.Advance(5 * time.Minute)
	assert.Equal(t, 2, f.alerter.startCount())
}
