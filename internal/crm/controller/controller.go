// Package controller implements the CRM service layer: contact search and
// the mutations behind the contact list, forwarding to the entity store
// and emitting contact change events.
package controller

import (
	"context"
	"errors"
	"fmt"

	e "github.com/gartstein/crm/internal/crm/errors"
	"github.com/gartstein/crm/internal/crm/events"
	"github.com/gartstein/crm/internal/crm/models"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

type EventProducer interface {
	Produce(eventType events.EventType, contact *models.Contact)
}

// Repository defines the storage interface for contacts and their lookups.
type Repository interface {
	FindAllContacts(ctx context.Context) ([]models.Contact, error)
	SearchContacts(ctx context.Context, term string) ([]models.Contact, error)
	GetContact(ctx context.Context, id uuid.UUID) (*models.Contact, error)
	CountContacts(ctx context.Context) (int64, error)
	SaveContact(ctx context.Context, contact *models.Contact) (bool, error)
	DeleteContact(ctx context.Context, id uuid.UUID) error
	FindAllCompanies(ctx context.Context) ([]models.Company, error)
	SaveCompany(ctx context.Context, company *models.Company) error
	DeleteCompany(ctx context.Context, id uuid.UUID) error
	FindAllStatuses(ctx context.Context) ([]models.Status, error)
	SaveStatus(ctx context.Context, status *models.Status) error
	DeleteStatus(ctx context.Context, id uuid.UUID) error
}

// CrmService is the single entry point the transport and view layers use
// to read and change contacts, companies and statuses.
type CrmService struct {
	repo     Repository
	producer EventProducer
	logger   *zap.Logger
}

// NewCrmService constructs a CrmService with a repository,
// an event producer, and a logger.
func NewCrmService(repo Repository, producer EventProducer, logger *zap.Logger) *CrmService {
	return &CrmService{
		repo:     repo,
		producer: producer,
		logger:   logger.Named("crm_service"),
	}
}

// FindAllContacts returns every contact when filter is empty, otherwise the
// contacts whose first or last name contains filter, ignoring case.
func (s *CrmService) FindAllContacts(ctx context.Context, filter string) ([]models.Contact, error) {
	var (
		contacts []models.Contact
		err      error
	)
	if filter == "" {
		s.logger.Info("Fetching all contacts")
		contacts, err = s.repo.FindAllContacts(ctx)
	} else {
		s.logger.Info("Performing a search", zap.String("filter", filter))
		contacts, err = s.repo.SearchContacts(ctx, filter)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find contacts: %w", err)
	}
	return contacts, nil
}

// CountContacts returns the number of stored contacts regardless of any filter.
func (s *CrmService) CountContacts(ctx context.Context) (int64, error) {
	count, err := s.repo.CountContacts(ctx)
	if err != nil {
		return 0, fmt.Errorf("failed to count contacts: %w", err)
	}
	return count, nil
}

// GetContact retrieves a Contact by ID, returning an error if not found.
func (s *CrmService) GetContact(ctx context.Context, id uuid.UUID) (*models.Contact, error) {
	contact, err := s.repo.GetContact(ctx, id)
	if err != nil {
		if errors.Is(err, e.ErrNotFound) {
			return nil, err
		}
		return nil, fmt.Errorf("failed to get contact: %w", err)
	}
	return contact, nil
}

// SaveContact inserts or updates contact by identity. A nil contact is
// logged and dropped: nothing is written and no error is returned.
// Constraint violations from the store are returned unchanged in kind.
func (s *CrmService) SaveContact(ctx context.Context, contact *models.Contact) (*models.Contact, error) {
	if contact == nil {
		s.logger.Error("Contact is null. Are you sure you have connected your form to the application?")
		return nil, nil
	}

	created, err := s.repo.SaveContact(ctx, contact)
	if err != nil {
		return nil, fmt.Errorf("failed to save contact: %w", err)
	}

	eventType := events.ContactUpdated
	if created {
		eventType = events.ContactCreated
	}
	saved := *contact
	go func() {
		s.producer.Produce(eventType, &saved)
	}()
	return contact, nil
}

// DeleteContact removes contact by identity and fires a deletion event.
func (s *CrmService) DeleteContact(ctx context.Context, contact *models.Contact) error {
	if contact == nil || contact.IsNew() {
		return fmt.Errorf("%w: contact without identity", e.ErrInvalidInput)
	}

	if err := s.repo.DeleteContact(ctx, contact.ID); err != nil {
		if errors.Is(err, e.ErrNotFound) {
			return err
		}
		return fmt.Errorf("failed to delete contact: %w", err)
	}

	deleted := *contact
	go func() {
		s.producer.Produce(events.ContactDeleted, &deleted)
	}()
	return nil
}

// FindAllCompanies returns every company with its current employee count.
func (s *CrmService) FindAllCompanies(ctx context.Context) ([]models.Company, error) {
	companies, err := s.repo.FindAllCompanies(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to find companies: %w", err)
	}
	return companies, nil
}

func (s *CrmService) FindAllStatuses(ctx context.Context) ([]models.Status, error) {
	statuses, err := s.repo.FindAllStatuses(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to find statuses: %w", err)
	}
	return statuses, nil
}

func (s *CrmService) SaveCompany(ctx context.Context, company *models.Company) (*models.Company, error) {
	if company == nil {
		return nil, fmt.Errorf("%w: nil company", e.ErrInvalidInput)
	}
	if err := s.repo.SaveCompany(ctx, company); err != nil {
		return nil, fmt.Errorf("failed to save company: %w", err)
	}
	return company, nil
}

func (s *CrmService) DeleteCompany(ctx context.Context, id uuid.UUID) error {
	if err := s.repo.DeleteCompany(ctx, id); err != nil {
		return fmt.Errorf("failed to delete company: %w", err)
	}
	return nil
}

func (s *CrmService) SaveStatus(ctx context.Context, status *models.Status) (*models.Status, error) {
	if status == nil {
		return nil, fmt.Errorf("%w: nil status", e.ErrInvalidInput)
	}
	if err := s.repo.SaveStatus(ctx, status); err != nil {
		return nil, fmt.Errorf("failed to save status: %w", err)
	}
	return status, nil
}

func (s *CrmService) DeleteStatus(ctx context.Context, id uuid.UUID) error {
	if err := s.repo.DeleteStatus(ctx, id); err != nil {
		return fmt.Errorf("failed to delete status: %w", err)
	}
	return nil
}
