// Package memory provides mutex-guarded in-memory implementations of the
// repository interfaces. They back the unit tests and can run the service
// without a database for local experiments.
package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/medalert/medalert/internal/models"
)

// Store holds all in-memory tables behind one lock and hands out the
// per-table repositories.
type Store struct {
	mu sync.RWMutex

	nextID      int64
	medications map[int64]*models.Medication
	reminders   map[int64]*models.Reminder
	escalations map[int64]*models.Escalation
	history     []*models.HistoryEntry
	contacts    map[int64]*models.EmergencyContact
}

// NewStore creates an empty in-memory store.
func NewStore() *Store {
	return &Store{
		nextID:      1,
		medications: map[int64]*models.Medication{},
		reminders:   map[int64]*models.Reminder{},
		escalations: map[int64]*models.Escalation{},
		contacts:    map[int64]*models.EmergencyContact{},
	}
}

func (s *Store) allocID() int64 {
	id := s.nextID
	s.nextID++
	return id
}

// Medications returns the medication repository view of the store.
func (s *Store) Medications() *MedicationRepo { return &MedicationRepo{s} }

// Reminders returns the reminder repository view of the store.
func (s *Store) Reminders() *ReminderRepo { return &ReminderRepo{s} }

// Escalations returns the escalation repository view of the store.
func (s *Store) Escalations() *EscalationRepo { return &EscalationRepo{s} }

// History returns the history repository view of the store.
func (s *Store) History() *HistoryRepo { return &HistoryRepo{s} }

// Contacts returns the contact repository view of the store.
func (s *Store) Contacts() *ContactRepo { return &ContactRepo{s} }

// MedicationRepo implements repository.MedicationRepository in memory.
type MedicationRepo struct{ s *Store }

func (r *MedicationRepo) Create(_ context.Context, med *models.Medication) (*models.Medication, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	now := time.Now()
	cp := *med
	cp.ID = r.s.allocID()
	cp.CreatedAt = now
	cp.UpdatedAt = now
	cp.Active = cp.Quantity > 0
	r.s.medications[cp.ID] = &cp

	out := cp
	*med = out
	return &out, nil
}

func (r *MedicationRepo) GetByID(_ context.Context, id int64) (*models.Medication, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	med, ok := r.s.medications[id]
	if !ok {
		return nil, nil
	}
	cp := *med
	return &cp, nil
}

func (r *MedicationRepo) GetAll(ctx context.Context) ([]*models.Medication, error) {
	return r.list(func(*models.Medication) bool { return true })
}

func (r *MedicationRepo) GetActive(ctx context.Context) ([]*models.Medication, error) {
	return r.list(func(m *models.Medication) bool { return m.Active })
}

func (r *MedicationRepo) list(keep func(*models.Medication) bool) ([]*models.Medication, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	var meds []*models.Medication
	for _, m := range r.s.medications {
		if keep(m) {
			cp := *m
			meds = append(meds, &cp)
		}
	}
	sort.Slice(meds, func(i, j int) bool { return meds[i].Name < meds[j].Name })
	return meds, nil
}

func (r *MedicationRepo) Update(_ context.Context, med *models.Medication) (*models.Medication, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	if _, ok := r.s.medications[med.ID]; !ok {
		return nil, fmt.Errorf("medication with ID %d not found", med.ID)
	}
	med.UpdatedAt = time.Now()
	cp := *med
	r.s.medications[med.ID] = &cp
	return med, nil
}

func (r *MedicationRepo) UpdateQuantity(_ context.Context, id int64, quantity int, active bool) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	med, ok := r.s.medications[id]
	if !ok {
		return fmt.Errorf("medication with ID %d not found", id)
	}
	med.Quantity = quantity
	med.Active = active
	med.UpdatedAt = time.Now()
	return nil
}

func (r *MedicationRepo) SetActive(_ context.Context, id int64, active bool) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	med, ok := r.s.medications[id]
	if !ok {
		return fmt.Errorf("medication with ID %d not found", id)
	}
	med.Active = active
	med.UpdatedAt = time.Now()
	return nil
}

// ReminderRepo implements repository.ReminderRepository in memory.
type ReminderRepo struct{ s *Store }

func (r *ReminderRepo) Create(_ context.Context, reminder *models.Reminder) (*models.Reminder, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	now := time.Now()
	cp := *reminder
	cp.ID = r.s.allocID()
	cp.CreatedAt = now
	cp.UpdatedAt = now
	if cp.Status == "" {
		cp.Status = models.ReminderStatusPending
	}
	r.s.reminders[cp.ID] = &cp

	out := cp
	*reminder = out
	return &out, nil
}

func (r *ReminderRepo) GetByID(_ context.Context, id int64) (*models.Reminder, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	reminder, ok := r.s.reminders[id]
	if !ok {
		return nil, nil
	}
	cp := *reminder
	return &cp, nil
}

func (r *ReminderRepo) GetByMedication(_ context.Context, medicationID int64) ([]*models.Reminder, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	var reminders []*models.Reminder
	for _, rem := range r.s.reminders {
		if rem.MedicationID == medicationID {
			cp := *rem
			reminders = append(reminders, &cp)
		}
	}
	sort.Slice(reminders, func(i, j int) bool { return reminders[i].DueAt.Before(reminders[j].DueAt) })
	return reminders, nil
}

func (r *ReminderRepo) GetUnresolvedDueAfter(_ context.Context, after time.Time) ([]*models.Reminder, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	var reminders []*models.Reminder
	for _, rem := range r.s.reminders {
		if rem.Status != models.ReminderStatusCompleted && rem.DueAt.After(after) {
			cp := *rem
			reminders = append(reminders, &cp)
		}
	}
	sort.Slice(reminders, func(i, j int) bool { return reminders[i].DueAt.Before(reminders[j].DueAt) })
	return reminders, nil
}

func (r *ReminderRepo) MarkCompleted(_ context.Context, id int64) (bool, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	reminder, ok := r.s.reminders[id]
	if !ok || reminder.Status == models.ReminderStatusCompleted {
		return false, nil
	}
	reminder.Status = models.ReminderStatusCompleted
	reminder.UpdatedAt = time.Now()
	return true, nil
}

func (r *ReminderRepo) Postpone(_ context.Context, id int64, dueAt time.Time, postponeCount int) (bool, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	reminder, ok := r.s.reminders[id]
	if !ok || reminder.Status == models.ReminderStatusCompleted {
		return false, nil
	}
	reminder.DueAt = dueAt
	reminder.PostponeCount = postponeCount
	reminder.UpdatedAt = time.Now()
	return true, nil
}

func (r *ReminderRepo) MarkEscalated(_ context.Context, id int64) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	reminder, ok := r.s.reminders[id]
	if !ok {
		return fmt.Errorf("reminder with ID %d not found", id)
	}
	if reminder.Status == models.ReminderStatusPending {
		reminder.Status = models.ReminderStatusEscalated
		reminder.UpdatedAt = time.Now()
	}
	return nil
}

func (r *ReminderRepo) MarkNotified(_ context.Context, id int64) (bool, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	reminder, ok := r.s.reminders[id]
	if !ok || reminder.Notified {
		return false, nil
	}
	reminder.Notified = true
	reminder.UpdatedAt = time.Now()
	return true, nil
}

func (r *ReminderRepo) DeletePendingByMedication(_ context.Context, medicationID int64) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	for id, rem := range r.s.reminders {
		if rem.MedicationID == medicationID && rem.Status != models.ReminderStatusCompleted {
			delete(r.s.reminders, id)
		}
	}
	return nil
}

// EscalationRepo implements repository.EscalationRepository in memory.
type EscalationRepo struct{ s *Store }

func (r *EscalationRepo) Create(_ context.Context, esc *models.Escalation) (*models.Escalation, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	for _, e := range r.s.escalations {
		if e.ReminderID == esc.ReminderID && !e.Completed {
			cp := *e
			return &cp, nil
		}
	}

	cp := *esc
	cp.ID = r.s.allocID()
	cp.CreatedAt = time.Now()
	cp.Completed = false
	cp.CallPlaced = false
	r.s.escalations[cp.ID] = &cp

	out := cp
	*esc = out
	return &out, nil
}

func (r *EscalationRepo) GetOpenByReminder(_ context.Context, reminderID int64) (*models.Escalation, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	for _, e := range r.s.escalations {
		if e.ReminderID == reminderID && !e.Completed {
			cp := *e
			return &cp, nil
		}
	}
	return nil, nil
}

func (r *EscalationRepo) MarkCallPlaced(_ context.Context, id int64) (bool, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	esc, ok := r.s.escalations[id]
	if !ok || esc.CallPlaced {
		return false, nil
	}
	esc.CallPlaced = true
	return true, nil
}

func (r *EscalationRepo) Complete(_ context.Context, id int64) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	esc, ok := r.s.escalations[id]
	if !ok {
		return fmt.Errorf("escalation with ID %d not found", id)
	}
	if !esc.Completed {
		now := time.Now()
		esc.Completed = true
		esc.CompletedAt = &now
	}
	return nil
}

func (r *EscalationRepo) ListRecent(_ context.Context, limit int) ([]*models.Escalation, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	var escalations []*models.Escalation
	for _, e := range r.s.escalations {
		cp := *e
		escalations = append(escalations, &cp)
	}
	sort.Slice(escalations, func(i, j int) bool { return escalations[i].CreatedAt.After(escalations[j].CreatedAt) })
	if limit > 0 && len(escalations) > limit {
		escalations = escalations[:limit]
	}
	return escalations, nil
}

// HistoryRepo implements repository.HistoryRepository in memory.
type HistoryRepo struct{ s *Store }

func (r *HistoryRepo) Create(_ context.Context, entry *models.HistoryEntry) (*models.HistoryEntry, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	cp := *entry
	cp.ID = r.s.allocID()
	cp.CreatedAt = time.Now()
	r.s.history = append(r.s.history, &cp)

	out := cp
	*entry = out
	return &out, nil
}

func (r *HistoryRepo) GetByMedication(_ context.Context, medicationID int64) ([]*models.HistoryEntry, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	var entries []*models.HistoryEntry
	for _, e := range r.s.history {
		if e.MedicationID == medicationID {
			cp := *e
			entries = append(entries, &cp)
		}
	}
	return entries, nil
}

func (r *HistoryRepo) ListRecent(_ context.Context, limit int) ([]*models.HistoryEntry, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	var entries []*models.HistoryEntry
	for i := len(r.s.history) - 1; i >= 0; i-- {
		cp := *r.s.history[i]
		entries = append(entries, &cp)
		if limit > 0 && len(entries) == limit {
			break
		}
	}
	return entries, nil
}

// ContactRepo implements repository.ContactRepository in memory.
type ContactRepo struct{ s *Store }

func (r *ContactRepo) Create(_ context.Context, contact *models.EmergencyContact) (*models.EmergencyContact, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	cp := *contact
	cp.ID = r.s.allocID()
	cp.CreatedAt = time.Now()
	r.s.contacts[cp.ID] = &cp

	out := cp
	*contact = out
	return &out, nil
}

func (r *ContactRepo) GetConfigured(ctx context.Context) (*models.EmergencyContact, error) {
	return r.first(func(c *models.EmergencyContact) bool { return c.Configured })
}

func (r *ContactRepo) GetStarred(ctx context.Context) (*models.EmergencyContact, error) {
	return r.first(func(c *models.EmergencyContact) bool { return c.Starred })
}

func (r *ContactRepo) first(keep func(*models.EmergencyContact) bool) (*models.EmergencyContact, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	var best *models.EmergencyContact
	for _, c := range r.s.contacts {
		if !keep(c) {
			continue
		}
		if best == nil || c.CreatedAt.Before(best.CreatedAt) {
			best = c
		}
	}
	if best == nil {
		return nil, nil
	}
	cp := *best
	return &cp, nil
}

func (r *ContactRepo) GetAll(_ context.Context) ([]*models.EmergencyContact, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	var contacts []*models.EmergencyContact
	for _, c := range r.s.contacts {
		cp := *c
		contacts = append(contacts, &cp)
	}
	sort.Slice(contacts, func(i, j int) bool { return contacts[i].Name < contacts[j].Name })
	return contacts, nil
}

func (r *ContactRepo) Delete(_ context.Context, id int64) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	if _, ok := r.s.contacts[id]; !ok {
		return fmt.Errorf("contact with ID %d not found", id)
	}
	delete(r.s.contacts, id)
	return nil
}
