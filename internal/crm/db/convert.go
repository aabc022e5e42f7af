package db

import (
	dbmodels "github.com/gartstein/crm/internal/crm/db/models"
	"github.com/gartstein/crm/internal/crm/models"
	"github.com/google/uuid"
)

func contactToRow(c *models.Contact) *dbmodels.Contact {
	row := &dbmodels.Contact{
		ID:        c.ID,
		FirstName: c.FirstName,
		LastName:  c.LastName,
		Email:     c.Email,
		CreatedAt: c.CreatedAt,
	}
	if c.Company != nil && c.Company.ID != uuid.Nil {
		id := c.Company.ID
		row.CompanyID = &id
	}
	if c.Status != nil && c.Status.ID != uuid.Nil {
		id := c.Status.ID
		row.StatusID = &id
	}
	return row
}

func contactFromRow(row *dbmodels.Contact) models.Contact {
	c := models.Contact{
		ID:        row.ID,
		FirstName: row.FirstName,
		LastName:  row.LastName,
		Email:     row.Email,
		CreatedAt: row.CreatedAt,
		UpdatedAt: row.UpdatedAt,
	}
	if row.Company != nil {
		c.Company = &models.Company{ID: row.Company.ID, Name: row.Company.Name}
	} else if row.CompanyID != nil {
		c.Company = &models.Company{ID: *row.CompanyID}
	}
	if row.Status != nil {
		c.Status = &models.Status{ID: row.Status.ID, Name: row.Status.Name}
	} else if row.StatusID != nil {
		c.Status = &models.Status{ID: *row.StatusID}
	}
	return c
}

func contactsFromRows(rows []dbmodels.Contact) []models.Contact {
	contacts := make([]models.Contact, 0, len(rows))
	for i := range rows {
		contacts = append(contacts, contactFromRow(&rows[i]))
	}
	return contacts
}
