package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/medalert/medalert/internal/models"
	"github.com/medalert/medalert/internal/repository"
)

type escalationRepository struct {
	db *sql.DB
}

// NewEscalationRepository creates a new escalation repository
func NewEscalationRepository(db *sql.DB) repository.EscalationRepository {
	return &escalationRepository{db: db}
}

func (r *escalationRepository) Create(ctx context.Context, esc *models.Escalation) (*models.Escalation, error) {
	// The WHERE NOT EXISTS guard keeps at most one open escalation per
	// reminder even when two evaluation paths race.
	query := `
		INSERT INTO escalations (reminder_id, medication_id, call_placed, completed, created_at)
		SELECT $1, $2, false, false, $3
		WHERE NOT EXISTS (
			SELECT 1 FROM escalations WHERE reminder_id = $1 AND completed = false
		)
		RETURNING id, created_at`

	err := r.db.QueryRowContext(ctx, query, esc.ReminderID, esc.MedicationID, time.Now()).
		Scan(&esc.ID, &esc.CreatedAt)

	if err != nil {
		if err == sql.ErrNoRows {
			// An open escalation already exists; return it instead.
			return r.GetOpenByReminder(ctx, esc.ReminderID)
		}
		return nil, fmt.Errorf("failed to create escalation: %w", err)
	}

	return esc, nil
}

func (r *escalationRepository) GetOpenByReminder(ctx context.Context, reminderID int64) (*models.Escalation, error) {
	query := `
		SELECT id, reminder_id, medication_id, call_placed, completed, created_at, completed_at
		FROM escalations
		WHERE reminder_id = $1 AND completed = false`

	esc := &models.Escalation{}
	err := r.db.QueryRowContext(ctx, query, reminderID).Scan(
		&esc.ID,
		&esc.ReminderID,
		&esc.MedicationID,
		&esc.CallPlaced,
		&esc.Completed,
		&esc.CreatedAt,
		&esc.CompletedAt,
	)

	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get open escalation: %w", err)
	}

	return esc, nil
}

func (r *escalationRepository) MarkCallPlaced(ctx context.Context, id int64) (bool, error) {
	query := `
		UPDATE escalations
		SET call_placed = true
		WHERE id = $1 AND call_placed = false`

	result, err := r.db.ExecContext(ctx, query, id)
	if err != nil {
		return false, fmt.Errorf("failed to mark call placed: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to get rows affected: %w", err)
	}

	return rowsAffected > 0, nil
}

func (r *escalationRepository) Complete(ctx context.Context, id int64) error {
	query := `
		UPDATE escalations
		SET completed = true, completed_at = $2
		WHERE id = $1 AND completed = false`

	if _, err := r.db.ExecContext(ctx, query, id, time.Now()); err != nil {
		return fmt.Errorf("failed to complete escalation: %w", err)
	}

	return nil
}

func (r *escalationRepository) ListRecent(ctx context.Context, limit int) ([]*models.Escalation, error) {
	query := `
		SELECT id, reminder_id, medication_id, call_placed, completed, created_at, completed_at
		FROM escalations
		ORDER BY created_at DESC
		LIMIT $1`

	rows, err := r.db.QueryContext(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query escalations: %w", err)
	}
	defer rows.Close()

	var escalations []*models.Escalation
	for rows.Next() {
		esc := &models.Escalation{}
		if err := rows.Scan(
			&esc.ID,
			&esc.ReminderID,
			&esc.MedicationID,
			&esc.CallPlaced,
			&esc.Completed,
			&esc.CreatedAt,
			&esc.CompletedAt,
		); err != nil {
			return nil, fmt.Errorf("failed to scan escalation: %w", err)
		}
		escalations = append(escalations, esc)
	}

	return escalations, rows.Err()
}
