package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/medalert/medalert/internal/models"
	"github.com/medalert/medalert/internal/repository"
)

type reminderRepository struct {
	db *sql.DB
}

// NewReminderRepository creates a new reminder repository
func NewReminderRepository(db *sql.DB) repository.ReminderRepository {
	return &reminderRepository{db: db}
}

const reminderColumns = `id, medication_id, scheduled_at, due_at, postpone_count, status, notified, alarm_token, created_at, updated_at`

func scanReminder(row interface{ Scan(...any) error }) (*models.Reminder, error) {
	reminder := &models.Reminder{}
	err := row.Scan(
		&reminder.ID,
		&reminder.MedicationID,
		&reminder.ScheduledAt,
		&reminder.DueAt,
		&reminder.PostponeCount,
		&reminder.Status,
		&reminder.Notified,
		&reminder.AlarmToken,
		&reminder.CreatedAt,
		&reminder.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return reminder, nil
}

func (r *reminderRepository) Create(ctx context.Context, reminder *models.Reminder) (*models.Reminder, error) {
	query := `
		INSERT INTO reminders (medication_id, scheduled_at, due_at, postpone_count, status, notified, alarm_token, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		RETURNING id, created_at, updated_at`

	now := time.Now()
	reminder.CreatedAt = now
	reminder.UpdatedAt = now

	if reminder.Status == "" {
		reminder.Status = models.ReminderStatusPending
	}

	err := r.db.QueryRowContext(ctx, query,
		reminder.MedicationID,
		reminder.ScheduledAt,
		reminder.DueAt,
		reminder.PostponeCount,
		reminder.Status,
		reminder.Notified,
		reminder.AlarmToken,
		reminder.CreatedAt,
		reminder.UpdatedAt,
	).Scan(&reminder.ID, &reminder.CreatedAt, &reminder.UpdatedAt)

	if err != nil {
		return nil, fmt.Errorf("failed to create reminder: %w", err)
	}

	return reminder, nil
}

func (r *reminderRepository) GetByID(ctx context.Context, id int64) (*models.Reminder, error) {
	query := fmt.Sprintf(`SELECT %s FROM reminders WHERE id = $1`, reminderColumns)

	reminder, err := scanReminder(r.db.QueryRowContext(ctx, query, id))
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get reminder: %w", err)
	}

	return reminder, nil
}

func (r *reminderRepository) GetByMedication(ctx context.Context, medicationID int64) ([]*models.Reminder, error) {
	query := fmt.Sprintf(`
		SELECT %s FROM reminders
		WHERE medication_id = $1
		ORDER BY due_at ASC`, reminderColumns)

	rows, err := r.db.QueryContext(ctx, query, medicationID)
	if err != nil {
		return nil, fmt.Errorf("failed to query reminders by medication: %w", err)
	}
	defer rows.Close()

	var reminders []*models.Reminder
	for rows.Next() {
		reminder, err := scanReminder(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan reminder: %w", err)
		}
		reminders = append(reminders, reminder)
	}

	return reminders, rows.Err()
}

func (r *reminderRepository) GetUnresolvedDueAfter(ctx context.Context, after time.Time) ([]*models.Reminder, error) {
	query := fmt.Sprintf(`
		SELECT %s FROM reminders
		WHERE status <> 'completed' AND due_at > $1
		ORDER BY due_at ASC`, reminderColumns)

	rows, err := r.db.QueryContext(ctx, query, after)
	if err != nil {
		return nil, fmt.Errorf("failed to query unresolved reminders: %w", err)
	}
	defer rows.Close()

	var reminders []*models.Reminder
	for rows.Next() {
		reminder, err := scanReminder(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan unresolved reminder: %w", err)
		}
		reminders = append(reminders, reminder)
	}

	return reminders, rows.Err()
}

func (r *reminderRepository) MarkCompleted(ctx context.Context, id int64) (bool, error) {
	// Guarded update: the first caller to complete the row wins, any later
	// attempt (watchdog racing the user, duplicate button press) affects
	// zero rows.
	query := `
		UPDATE reminders
		SET status = 'completed', updated_at = $2
		WHERE id = $1 AND status <> 'completed'`

	result, err := r.db.ExecContext(ctx, query, id, time.Now())
	if err != nil {
		return false, fmt.Errorf("failed to complete reminder: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to get rows affected: %w", err)
	}

	return rowsAffected > 0, nil
}

func (r *reminderRepository) Postpone(ctx context.Context, id int64, dueAt time.Time, postponeCount int) (bool, error) {
	query := `
		UPDATE reminders
		SET due_at = $2, postpone_count = $3, updated_at = $4
		WHERE id = $1 AND status <> 'completed'`

	result, err := r.db.ExecContext(ctx, query, id, dueAt, postponeCount, time.Now())
	if err != nil {
		return false, fmt.Errorf("failed to postpone reminder: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to get rows affected: %w", err)
	}

	return rowsAffected > 0, nil
}

func (r *reminderRepository) MarkEscalated(ctx context.Context, id int64) error {
	query := `
		UPDATE reminders
		SET status = 'escalated', updated_at = $2
		WHERE id = $1 AND status = 'pending'`

	if _, err := r.db.ExecContext(ctx, query, id, time.Now()); err != nil {
		return fmt.Errorf("failed to mark reminder escalated: %w", err)
	}

	return nil
}

func (r *reminderRepository) MarkNotified(ctx context.Context, id int64) (bool, error) {
	query := `
		UPDATE reminders
		SET notified = true, updated_at = $2
		WHERE id = $1 AND notified = false`

	result, err := r.db.ExecContext(ctx, query, id, time.Now())
	if err != nil {
		return false, fmt.Errorf("failed to mark reminder notified: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to get rows affected: %w", err)
	}

	return rowsAffected > 0, nil
}

func (r *reminderRepository) DeletePendingByMedication(ctx context.Context, medicationID int64) error {
	query := `DELETE FROM reminders WHERE medication_id = $1 AND status <> 'completed'`

	if _, err := r.db.ExecContext(ctx, query, medicationID); err != nil {
		return fmt.Errorf("failed to delete pending reminders: %w", err)
	}

	return nil
}
