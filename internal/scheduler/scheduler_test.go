package scheduler

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

	"github.com/medalert/medalert/internal/models"
	"github.com/medalert/medalert/internal/repository"
	"github.com/medalert/medalert/internal/repository/memory"
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

// Advance moves time forward and fires due timers in time order,
// synchronously on the calling goroutine.
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

func (c *manualClock) outstanding() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.timers)
}

func testLogger() *logrus.Logger {
	l := logrus.New()
	l.SetLevel(logrus.PanicLevel)
	return l
}

func TestNextOccurrence(t *testing.T) {
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

	t.Run("future anchor is returned as-is", func(t *testing.T) {
		anchor := now.Add(3 * time.Hour)
		assert.Equal(t, anchor, NextOccurrence(anchor, now, 8*time.Hour))
	})

	t.Run("past anchor skips to the next slot", func(t *testing.T) {
		anchor := now.Add(-1 * time.Hour)
		got := NextOccurrence(anchor, now, 8*time.Hour)
		assert.Equal(t, now.Add(7*time.Hour), got)
	})

	t.Run("anchor far in the past skips all missed slots at once", func(t *testing.T) {
		anchor := now.Add(-100 * 24 * time.Hour)
		got := NextOccurrence(anchor, now, 6*time.Hour)
		assert.True(t, got.After(now))
		assert.True(t, got.Sub(now) <= 6*time.Hour)
		// Still on the anchor grid.
		assert.Zero(t, got.Sub(anchor)%(6*time.Hour))
	})

	t.Run("anchor equal to now moves to the next slot", func(t *testing.T) {
		got := NextOccurrence(now, now, 4*time.Hour)
		assert.Equal(t, now.Add(4*time.Hour), got)
	})
}

func TestScheduleMedication(t *testing.T) {
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	clock := newManualClock(now)
	store := memory.NewStore()
	s := New(clock, store.Medications(), store.Reminders(), testLogger())

	started := now.Add(-1 * time.Hour)
	med, err := store.Medications().Create(context.Background(), &models.Medication{
		Name:          "Aspirin",
		Quantity:      30,
		IntervalHours: 8,
		StartAt:       &started,
		Active:        true,
	})
	require.NoError(t, err)

	require.NoError(t, s.ScheduleMedication(context.Background(), med))

	reminders, err := store.Reminders().GetByMedication(context.Background(), med.ID)
	require.NoError(t, err)

	// 30 days at 8h intervals.
	assert.Len(t, reminders, 90)
	assert.Equal(t, 90, clock.outstanding())

	// First occurrence is the next slot on the anchor grid, not the
	// already-missed one.
	first := reminders[0]
	for _, r := range reminders[1:] {
		if r.DueAt.Before(first.DueAt) {
			first = r
		}
	}
	assert.Equal(t, now.Add(7*time.Hour), first.DueAt)
	assert.Equal(t, first.DueAt, first.ScheduledAt)
	assert.Equal(t, models.ReminderStatusPending, first.Status)
	assert.Greater(t, first.AlarmToken, int64(1000))
}

// flakyReminderRepo fails Create on one designated call and delegates the
// rest to the wrapped repository.
type flakyReminderRepo struct {
	repository.ReminderRepository
	failOn int
	calls  int
}

func (r *flakyReminderRepo) Create(ctx context.Context, reminder *models.Reminder) (*models.Reminder, error) {
	r.calls++
	if r.calls == r.failOn {
		return nil, errors.New("connection reset by peer")
	}
	return r.ReminderRepository.Create(ctx, reminder)
}

func TestScheduleMedicationContinuesPastStoreFailure(t *testing.T) {
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	clock := newManualClock(now)
	store := memory.NewStore()
	reminders := &flakyReminderRepo{ReminderRepository: store.Reminders(), failOn: 3}
	s := New(clock, store.Medications(), reminders, testLogger())

	started := now.Add(-1 * time.Hour)
	med, err := store.Medications().Create(context.Background(), &models.Medication{
		Name:          "Aspirin",
		Quantity:      30,
		IntervalHours: 8,
		StartAt:       &started,
		Active:        true,
	})
	require.NoError(t, err)

	err = s.ScheduleMedication(context.Background(), med)

	// The failure surfaces in the aggregate error but does not abort the
	// batch: the other 89 occurrences are persisted and armed.
	require.Error(t, err)
	assert.ErrorContains(t, err, "occurrence")
	assert.ErrorContains(t, err, "connection reset")

	rows, err := store.Reminders().GetByMedication(context.Background(), med.ID)
	require.NoError(t, err)
	assert.Len(t, rows, 89)
	assert.Equal(t, 89, clock.outstanding())
}

func TestScheduleMedicationRejectsBadInterval(t *testing.T) {
	clock := newManualClock(time.Now())
	store := memory.NewStore()
	s := New(clock, store.Medications(), store.Reminders(), testLogger())

	err := s.ScheduleMedication(context.Background(), &models.Medication{
		ID: 1, Name: "Bad", IntervalHours: 0, Active: true,
	})
	assert.Error(t, err)
	assert.Zero(t, clock.outstanding())
}

func TestScheduleMedicationInactiveIsNoop(t *testing.T) {
	clock := newManualClock(time.Now())
	store := memory.NewStore()
	s := New(clock, store.Medications(), store.Reminders(), testLogger())

	err := s.ScheduleMedication(context.Background(), &models.Medication{
		ID: 1, Name: "Paused", IntervalHours: 8, Active: false,
	})
	assert.NoError(t, err)
	assert.Zero(t, clock.outstanding())
}

func TestFireInvokesHandler(t *testing.T) {
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	clock := newManualClock(now)
	store := memory.NewStore()
	s := New(clock, store.Medications(), store.Reminders(), testLogger())

	var fired []int64
	s.SetFireFunc(func(reminderID int64) { fired = append(fired, reminderID) })

	med, err := store.Medications().Create(context.Background(), &models.Medication{
		Name: "Vitamin D", Quantity: 10, IntervalHours: 24, Active: true,
	})
	require.NoError(t, err)
	require.NoError(t, s.ScheduleMedication(context.Background(), med))

	clock.Advance(24 * time.Hour)
	require.Len(t, fired, 1)

	rem, err := store.Reminders().GetByID(context.Background(), fired[0])
	require.NoError(t, err)
	require.NotNil(t, rem)
	assert.Equal(t, med.ID, rem.MedicationID)
}

func TestCancelMedication(t *testing.T) {
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	clock := newManualClock(now)
	store := memory.NewStore()
	s := New(clock, store.Medications(), store.Reminders(), testLogger())
	s.SetFireFunc(func(int64) { t.Error("cancelled reminder fired") })

	med, err := store.Medications().Create(context.Background(), &models.Medication{
		Name: "Ibuprofen", Quantity: 20, IntervalHours: 12, Active: true,
	})
	require.NoError(t, err)
	require.NoError(t, s.ScheduleMedication(context.Background(), med))
	require.NotZero(t, clock.outstanding())

	require.NoError(t, s.CancelMedication(context.Background(), med.ID))
	assert.Zero(t, clock.outstanding())

	reminders, err := store.Reminders().GetByMedication(context.Background(), med.ID)
	require.NoError(t, err)
	assert.Empty(t, reminders)

	clock.Advance(48 * time.Hour)
}

func TestReconcile(t *testing.T) {
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	clock := newManualClock(now)
	store := memory.NewStore()

	med, err := store.Medications().Create(context.Background(), &models.Medication{
		Name: "Metformin", Quantity: 10, IntervalHours: 8, Active: true,
	})
	require.NoError(t, err)

	// Rows persisted by a previous run: one overdue, one future.
	overdue, err := store.Reminders().Create(context.Background(), &models.Reminder{
		MedicationID: med.ID,
		ScheduledAt:  now.Add(-2 * time.Hour),
		DueAt:        now.Add(-2 * time.Hour),
		Status:       models.ReminderStatusPending,
		AlarmToken:   2001,
	})
	require.NoError(t, err)
	future, err := store.Reminders().Create(context.Background(), &models.Reminder{
		MedicationID: med.ID,
		ScheduledAt:  now.Add(3 * time.Hour),
		DueAt:        now.Add(3 * time.Hour),
		Status:       models.ReminderStatusPending,
		AlarmToken:   2002,
	})
	require.NoError(t, err)

	s := New(clock, store.Medications(), store.Reminders(), testLogger())

	firedCh := make(chan int64, 4)
	s.SetFireFunc(func(reminderID int64) { firedCh <- reminderID })

	require.NoError(t, s.Reconcile(context.Background()))

	// The overdue reminder fires immediately (on its own goroutine).
	select {
	case id := <-firedCh:
		assert.Equal(t, overdue.ID, id)
	case <-time.After(2 * time.Second):
		t.Fatal("overdue reminder never fired")
	}

	// The future one is re-armed and fires when its time comes.
	assert.Equal(t, 1, clock.outstanding())
	clock.Advance(3 * time.Hour)
	select {
	case id := <-firedCh:
		assert.Equal(t, future.ID, id)
	default:
		t.Fatal("future reminder did not fire after advancing")
	}

	// New tokens are allocated above everything seen on disk.
	med2, err := store.Medications().Create(context.Background(), &models.Medication{
		Name: "Second", Quantity: 5, IntervalHours: 24, Active: true,
	})
	require.NoError(t, err)
	require.NoError(t, s.ScheduleMedication(context.Background(), med2))

	reminders, err := store.Reminders().GetByMedication(context.Background(), med2.ID)
	require.NoError(t, err)
	for _, r := range reminders {
		assert.Greater(t, r.AlarmToken, int64(2002))
	}
}
