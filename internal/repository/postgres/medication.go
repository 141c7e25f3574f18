package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/medalert/medalert/internal/models"
	"github.com/medalert/medalert/internal/repository"
)

type medicationRepository struct {
	db *sql.DB
}

// NewMedicationRepository creates a new medication repository
func NewMedicationRepository(db *sql.DB) repository.MedicationRepository {
	return &medicationRepository{db: db}
}

func (r *medicationRepository) Create(ctx context.Context, med *models.Medication) (*models.Medication, error) {
	query := `
		INSERT INTO medications (name, quantity, interval_hours, start_at, active, notes, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		RETURNING id, created_at, updated_at`

	now := time.Now()
	med.CreatedAt = now
	med.UpdatedAt = now
	// A medication without stock is never active.
	med.Active = med.Quantity > 0

	err := r.db.QueryRowContext(ctx, query,
		med.Name,
		med.Quantity,
		med.IntervalHours,
		med.StartAt,
		med.Active,
		med.Notes,
		med.CreatedAt,
		med.UpdatedAt,
	).Scan(&med.ID, &med.CreatedAt, &med.UpdatedAt)

	if err != nil {
		return nil, fmt.Errorf("failed to create medication: %w", err)
	}

	return med, nil
}

func (r *medicationRepository) GetByID(ctx context.Context, id int64) (*models.Medication, error) {
	query := `
		SELECT id, name, quantity, interval_hours, start_at, active, notes, created_at, updated_at
		FROM medications
		WHERE id = $1`

	med := &models.Medication{}
	err := r.db.QueryRowContext(ctx, query, id).Scan(
		&med.ID,
		&med.Name,
		&med.Quantity,
		&med.IntervalHours,
		&med.StartAt,
		&med.Active,
		&med.Notes,
		&med.CreatedAt,
		&med.UpdatedAt,
	)

	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get medication: %w", err)
	}

	return med, nil
}

func (r *medicationRepository) GetAll(ctx context.Context) ([]*models.Medication, error) {
	return r.list(ctx, `
		SELECT id, name, quantity, interval_hours, start_at, active, notes, created_at, updated_at
		FROM medications
		ORDER BY name ASC`)
}

func (r *medicationRepository) GetActive(ctx context.Context) ([]*models.Medication, error) {
	return r.list(ctx, `
		SELECT id, name, quantity, interval_hours, start_at, active, notes, created_at, updated_at
		FROM medications
		WHERE active = true
		ORDER BY name ASC`)
}

func (r *medicationRepository) list(ctx context.Context, query string) ([]*models.Medication, error) {
	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to query medications: %w", err)
	}
	defer rows.Close()

	var meds []*models.Medication
	for rows.Next() {
		med := &models.Medication{}
		if err := rows.Scan(
			&med.ID,
			&med.Name,
			&med.Quantity,
			&med.IntervalHours,
			&med.StartAt,
			&med.Active,
			&med.Notes,
			&med.CreatedAt,
			&med.UpdatedAt,
		); err != nil {
			return nil, fmt.Errorf("failed to scan medication: %w", err)
		}
		meds = append(meds, med)
	}

	return meds, rows.Err()
}

func (r *medicationRepository) Update(ctx context.Context, med *models.Medication) (*models.Medication, error) {
	query := `
		UPDATE medications
		SET name = $2, quantity = $3, interval_hours = $4, start_at = $5, active = $6, notes = $7, updated_at = $8
		WHERE id = $1
		RETURNING updated_at`

	med.UpdatedAt = time.Now()

	err := r.db.QueryRowContext(ctx, query,
		med.ID,
		med.Name,
		med.Quantity,
		med.IntervalHours,
		med.StartAt,
		med.Active,
		med.Notes,
		med.UpdatedAt,
	).Scan(&med.UpdatedAt)

	if err != nil {
		return nil, fmt.Errorf("failed to update medication: %w", err)
	}

	return med, nil
}

func (r *medicationRepository) UpdateQuantity(ctx context.Context, id int64, quantity int, active bool) error {
	query := `
		UPDATE medications
		SET quantity = $2, active = $3, updated_at = $4
		WHERE id = $1`

	result, err := r.db.ExecContext(ctx, query, id, quantity, active, time.Now())
	if err != nil {
		return fmt.Errorf("failed to update medication quantity: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}

	if rowsAffected == 0 {
		return fmt.Errorf("medication with ID %d not found", id)
	}

	return nil
}

func (r *medicationRepository) SetActive(ctx context.Context, id int64, active bool) error {
	query := `
		UPDATE medications
		SET active = $2, updated_at = $3
		WHERE id = $1`

	result, err := r.db.ExecContext(ctx, query, id, active, time.Now())
	if err != nil {
		return fmt.Errorf("failed to set medication active state: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}

	if rowsAffected == 0 {
		return fmt.Errorf("medication with ID %d not found", id)
	}

	return nil
}
