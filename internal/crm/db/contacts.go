package db

import (
	"context"
	"errors"
	"fmt"
	"strings"

	dbmodels "github.com/gartstein/crm/internal/crm/db/models"
	e "github.com/gartstein/crm/internal/crm/errors"
	"github.com/gartstein/crm/internal/crm/models"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

// likePattern turns a search term into an unanchored LIKE pattern in which the
// term's own wildcard characters match literally. Case is folded in SQL so that
// both sides of the comparison go through the same LOWER.
func likePattern(term string) string {
	return "%" + likeEscaper.Replace(term) + "%"
}

func (r *Repository) contacts(ctx context.Context) *gorm.DB {
	return r.db.WithContext(ctx).
		Model(&dbmodels.Contact{}).
		Preload("Company").
		Preload("Status").
		Order("created_at, id")
}

// FindAllContacts returns every contact in insertion order.
func (r *Repository) FindAllContacts(ctx context.Context) ([]models.Contact, error) {
	var rows []dbmodels.Contact
	if err := r.contacts(ctx).Find(&rows).Error; err != nil {
		return nil, err
	}
	return contactsFromRows(rows), nil
}

// SearchContacts returns the contacts whose first or last name contains term,
// ignoring case.
func (r *Repository) SearchContacts(ctx context.Context, term string) ([]models.Contact, error) {
	pattern := likePattern(term)
	var rows []dbmodels.Contact
	err := r.contacts(ctx).
		Where(`LOWER(first_name) LIKE LOWER(?) ESCAPE '\' OR LOWER(last_name) LIKE LOWER(?) ESCAPE '\'`, pattern, pattern).
		Find(&rows).Error
	if err != nil {
		return nil, err
	}
	return contactsFromRows(rows), nil
}

func (r *Repository) GetContact(ctx context.Context, id uuid.UUID) (*models.Contact, error) {
	var row dbmodels.Contact
	result := r.contacts(ctx).First(&row, "id = ?", id)
	if result.Error != nil {
		if errors.Is(result.Error, gorm.ErrRecordNotFound) {
			return nil, e.ErrNotFound
		}
		return nil, result.Error
	}
	contact := contactFromRow(&row)
	return &contact, nil
}

func (r *Repository) CountContacts(ctx context.Context) (int64, error) {
	var count int64
	result := r.db.WithContext(ctx).Model(&dbmodels.Contact{}).Count(&count)
	return count, result.Error
}

// SaveContact inserts the contact when its identity is unknown to the store and
// updates it otherwise. A contact without identity gets a fresh one. The stored
// identity and timestamps are written back to contact.
func (r *Repository) SaveContact(ctx context.Context, contact *models.Contact) (bool, error) {
	row := contactToRow(contact)
	if contact.IsNew() {
		row.ID = uuid.New()
	}

	var created bool
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := referenceExists(tx, &dbmodels.Company{}, row.CompanyID); err != nil {
			return fmt.Errorf("%w: company: %w", e.ErrInvalidInput, err)
		}
		if err := referenceExists(tx, &dbmodels.Status{}, row.StatusID); err != nil {
			return fmt.Errorf("%w: status: %w", e.ErrInvalidInput, err)
		}

		var existing dbmodels.Contact
		err := tx.Select("id", "created_at").First(&existing, "id = ?", row.ID).Error
		switch {
		case errors.Is(err, gorm.ErrRecordNotFound):
			created = true
			return tx.Create(row).Error
		case err != nil:
			return err
		}
		row.CreatedAt = existing.CreatedAt
		return tx.Save(row).Error
	})
	if err != nil {
		return false, err
	}

	contact.ID = row.ID
	contact.CreatedAt = row.CreatedAt
	contact.UpdatedAt = row.UpdatedAt
	return created, nil
}

func (r *Repository) DeleteContact(ctx context.Context, id uuid.UUID) error {
	result := r.db.WithContext(ctx).Delete(&dbmodels.Contact{}, "id = ?", id)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return e.ErrNotFound
	}
	return nil
}

func referenceExists(tx *gorm.DB, model interface{}, id *uuid.UUID) error {
	if id == nil {
		return nil
	}
	var count int64
	if err := tx.Model(model).Where("id = ?", *id).Count(&count).Error; err != nil {
		return err
	}
	if count == 0 {
		return e.ErrNotFound
	}
	return nil
}
