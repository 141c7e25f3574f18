package service

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/medalert/medalert/internal/models"
	"github.com/medalert/medalert/internal/repository"
	"github.com/medalert/medalert/internal/scheduler"
)

// Service is the central business logic layer that holds all repositories
// and provides high-level methods for the application.
type Service struct {
	db          *sql.DB
	logger      *logrus.Logger
	sched       *scheduler.Scheduler
	Medications repository.MedicationRepository
	Reminders   repository.ReminderRepository
	Escalations repository.EscalationRepository
	History     repository.HistoryRepository
	Contacts    repository.ContactRepository
}

// New creates a new Service with all required dependencies.
func New(db *sql.DB, logger *logrus.Logger, sched *scheduler.Scheduler,
	medications repository.MedicationRepository,
	reminders repository.ReminderRepository,
	escalations repository.EscalationRepository,
	history repository.HistoryRepository,
	contacts repository.ContactRepository,
) *Service {
	return &Service{
		db: db, logger: logger, sched: sched,
		Medications: medications, Reminders: reminders,
		Escalations: escalations, History: history, Contacts: contacts,
	}
}

// CreateMedication validates and persists a new medication, then lays out
// its reminder occurrences over the scheduling horizon.
func (s *Service) CreateMedication(ctx context.Context, name string, quantity, intervalHours int, startAt *time.Time, notes string) (*models.Medication, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, fmt.Errorf("medication name is required")
	}
	if quantity < 0 {
		return nil, fmt.Errorf("quantity must not be negative")
	}
	if intervalHours < 1 || intervalHours > 24 {
		return nil, fmt.Errorf("interval must be between 1 and 24 hours, got %d", intervalHours)
	}

	med := &models.Medication{
		Name:          name,
		Quantity:      quantity,
		IntervalHours: intervalHours,
		StartAt:       startAt,
		Active:        quantity > 0,
		Notes:         strings.TrimSpace(notes),
	}
	med, err := s.Medications.Create(ctx, med)
	if err != nil {
		return nil, fmt.Errorf("failed to create medication %q: %w", name, err)
	}
	s.logger.Infof("Created medication %q (every %dh, %d doses)", med.Name, med.IntervalHours, med.Quantity)

	if med.Active {
		if err := s.sched.ScheduleMedication(ctx, med); err != nil {
			return nil, fmt.Errorf("failed to schedule medication %q: %w", med.Name, err)
		}
	}
	return med, nil
}

// RestockMedication adds doses to a medication's stock. A depleted and
// deactivated medication is reactivated and rescheduled.
func (s *Service) RestockMedication(ctx context.Context, id int64, added int) (*models.Medication, error) {
	if added <= 0 {
		return nil, fmt.Errorf("restock amount must be positive, got %d", added)
	}

	med, err := s.Medications.GetByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("failed to lookup medication %d: %w", id, err)
	}
	if med == nil {
		return nil, fmt.Errorf("medication %d not found", id)
	}

	wasInactive := !med.Active
	med.Quantity += added
	med.Active = true
	med, err = s.Medications.Update(ctx, med)
	if err != nil {
		return nil, fmt.Errorf("failed to restock medication %d: %w", id, err)
	}
	s.logger.Infof("Restocked %q by %d (now %d)", med.Name, added, med.Quantity)

	if wasInactive {
		if err := s.sched.ScheduleMedication(ctx, med); err != nil {
			return nil, fmt.Errorf("failed to reschedule medication %q: %w", med.Name, err)
		}
	}
	return med, nil
}

// RemoveMedication deactivates a medication and withdraws its pending
// reminders. The row and its history are kept.
func (s *Service) RemoveMedication(ctx context.Context, id int64) error {
	med, err := s.Medications.GetByID(ctx, id)
	if err != nil {
		return fmt.Errorf("failed to lookup medication %d: %w", id, err)
	}
	if med == nil {
		return fmt.Errorf("medication %d not found", id)
	}

	if err := s.Medications.SetActive(ctx, id, false); err != nil {
		return fmt.Errorf("failed to deactivate medication %d: %w", id, err)
	}
	if err := s.sched.CancelMedication(ctx, id); err != nil {
		return fmt.Errorf("failed to cancel reminders for medication %d: %w", id, err)
	}

	s.logger.Infof("Removed medication %q", med.Name)
	return nil
}

// UpcomingReminders returns unresolved occurrences due after now, soonest
// first, limited to the given count.
func (s *Service) UpcomingReminders(ctx context.Context, limit int) ([]*models.Reminder, error) {
	reminders, err := s.Reminders.GetUnresolvedDueAfter(ctx, time.Now())
	if err != nil {
		return nil, fmt.Errorf("failed to list upcoming reminders: %w", err)
	}
	if limit > 0 && len(reminders) > limit {
		reminders = reminders[:limit]
	}
	return reminders, nil
}
