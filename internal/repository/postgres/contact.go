package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/medalert/medalert/internal/models"
	"github.com/medalert/medalert/internal/repository"
)

type contactRepository struct {
	db *sql.DB
}

// NewContactRepository creates a new emergency contact repository
func NewContactRepository(db *sql.DB) repository.ContactRepository {
	return &contactRepository{db: db}
}

func (r *contactRepository) Create(ctx context.Context, contact *models.EmergencyContact) (*models.EmergencyContact, error) {
	query := `
		INSERT INTO emergency_contacts (name, phone, starred, configured, created_at)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id, created_at`

	contact.CreatedAt = time.Now()

	err := r.db.QueryRowContext(ctx, query,
		contact.Name,
		contact.Phone,
		contact.Starred,
		contact.Configured,
		contact.CreatedAt,
	).Scan(&contact.ID, &contact.CreatedAt)

	if err != nil {
		return nil, fmt.Errorf("failed to create contact: %w", err)
	}

	return contact, nil
}

func (r *contactRepository) GetConfigured(ctx context.Context) (*models.EmergencyContact, error) {
	return r.getOne(ctx, `
		SELECT id, name, phone, starred, configured, created_at
		FROM emergency_contacts
		WHERE configured = true
		ORDER BY created_at ASC
		LIMIT 1`)
}

func (r *contactRepository) GetStarred(ctx context.Context) (*models.EmergencyContact, error) {
	return r.getOne(ctx, `
		SELECT id, name, phone, starred, configured, created_at
		FROM emergency_contacts
		WHERE starred = true
		ORDER BY created_at ASC
		LIMIT 1`)
}

func (r *contactRepository) getOne(ctx context.Context, query string) (*models.EmergencyContact, error) {
	contact := &models.EmergencyContact{}
	err := r.db.QueryRowContext(ctx, query).Scan(
		&contact.ID,
		&contact.Name,
		&contact.Phone,
		&contact.Starred,
		&contact.Configured,
		&contact.CreatedAt,
	)

	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get contact: %w", err)
	}

	return contact, nil
}

func (r *contactRepository) GetAll(ctx context.Context) ([]*models.EmergencyContact, error) {
	query := `
		SELECT id, name, phone, starred, configured, created_at
		FROM emergency_contacts
		ORDER BY configured DESC, starred DESC, name ASC`

	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to query contacts: %w", err)
	}
	defer rows.Close()

	var contacts []*models.EmergencyContact
	for rows.Next() {
		contact := &models.EmergencyContact{}
		if err := rows.Scan(
			&contact.ID,
			&contact.Name,
			&contact.Phone,
			&contact.Starred,
			&contact.Configured,
			&contact.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("failed to scan contact: %w", err)
		}
		contacts = append(contacts, contact)
	}

	return contacts, rows.Err()
}

func (r *contactRepository) Delete(ctx context.Context, id int64) error {
	query := `DELETE FROM emergency_contacts WHERE id = $1`

	result, err := r.db.ExecContext(ctx, query, id)
	if err != nil {
		return fmt.Errorf("failed to delete contact: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}

	if rowsAffected == 0 {
		return fmt.Errorf("contact with ID %d not found", id)
	}

	return nil
}
