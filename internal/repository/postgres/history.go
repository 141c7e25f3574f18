package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/medalert/medalert/internal/models"
	"github.com/medalert/medalert/internal/repository"
)

type historyRepository struct {
	db *sql.DB
}

// NewHistoryRepository creates a new intake history repository
func NewHistoryRepository(db *sql.DB) repository.HistoryRepository {
	return &historyRepository{db: db}
}

func (r *historyRepository) Create(ctx context.Context, entry *models.HistoryEntry) (*models.HistoryEntry, error) {
	query := `
		INSERT INTO take_history (medication_id, scheduled_at, completed_at, outcome, quantity, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING id, created_at`

	entry.CreatedAt = time.Now()

	err := r.db.QueryRowContext(ctx, query,
		entry.MedicationID,
		entry.ScheduledAt,
		entry.CompletedAt,
		entry.Outcome,
		entry.Quantity,
		entry.CreatedAt,
	).Scan(&entry.ID, &entry.CreatedAt)

	if err != nil {
		return nil, fmt.Errorf("failed to create history entry: %w", err)
	}

	return entry, nil
}

func (r *historyRepository) GetByMedication(ctx context.Context, medicationID int64) ([]*models.HistoryEntry, error) {
	query := `
		SELECT id, medication_id, scheduled_at, completed_at, outcome, quantity, created_at
		FROM take_history
		WHERE medication_id = $1
		ORDER BY created_at DESC`

	rows, err := r.db.QueryContext(ctx, query, medicationID)
	if err != nil {
		return nil, fmt.Errorf("failed to query history by medication: %w", err)
	}
	defer rows.Close()

	return scanHistoryRows(rows)
}

func (r *historyRepository) ListRecent(ctx context.Context, limit int) ([]*models.HistoryEntry, error) {
	query := `
		SELECT id, medication_id, scheduled_at, completed_at, outcome, quantity, created_at
		FROM take_history
		ORDER BY created_at DESC
		LIMIT $1`

	rows, err := r.db.QueryContext(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query recent history: %w", err)
	}
	defer rows.Close()

	return scanHistoryRows(rows)
}

func scanHistoryRows(rows *sql.Rows) ([]*models.HistoryEntry, error) {
	var entries []*models.HistoryEntry
	for rows.Next() {
		entry := &models.HistoryEntry{}
		if err := rows.Scan(
			&entry.ID,
			&entry.MedicationID,
			&entry.ScheduledAt,
			&entry.CompletedAt,
			&entry.Outcome,
			&entry.Quantity,
			&entry.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("failed to scan history entry: %w", err)
		}
		entries = append(entries, entry)
	}

	return entries, rows.Err()
}
