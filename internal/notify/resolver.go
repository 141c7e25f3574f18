package notify

import (
	"context"
	"fmt"

	"github.com/sirupsen/logrus"

	"github.com/medalert/medalert/internal/models"
	"github.com/medalert/medalert/internal/repository"
)

// Resolver finds the emergency contact to reach: an explicitly configured
// contact first, then any starred directory entry. A nil result with nil
// error means nobody is reachable; callers prompt for configuration rather
// than failing.
type Resolver struct {
	contacts repository.ContactRepository
	logger   *logrus.Logger
}

// NewResolver creates a contact resolver over the contact repository.
func NewResolver(contacts repository.ContactRepository, logger *logrus.Logger) *Resolver {
	return &Resolver{contacts: contacts, logger: logger}
}

func (r *Resolver) Resolve(ctx context.Context) (*models.EmergencyContact, error) {
	contact, err := r.contacts.GetConfigured(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to look up configured contact: %w", err)
	}
	if contact != nil {
		r.logger.Debugf("Resolved configured emergency contact: %s", contact.Name)
		return contact, nil
	}

	contact, err = r.contacts.GetStarred(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to look up starred contact: %w", err)
	}
	if contact != nil {
		r.logger.Debugf("Resolved starred emergency contact: %s", contact.Name)
		return contact, nil
	}

	r.logger.Warn("No emergency contact configured and no starred entry found")
	return nil, nil
}
