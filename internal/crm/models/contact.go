// Package models defines the core domain records of the CRM: contacts and
// the companies and statuses they reference. The records carry no
// persistence behaviour; storage lives behind the repository in package db.
package models

import (
	"time"

	"github.com/google/uuid"
)

// Contact is a person tracked by the CRM.
type Contact struct {
	// ID is the unique identifier. uuid.Nil marks a contact that was never saved.
	ID uuid.UUID
	// FirstName is the given name.
	FirstName string
	// LastName is the family name.
	LastName string
	// Email must be email-shaped when set.
	Email string
	// Company the contact works for, if any. Only ID is used when saving.
	Company *Company
	// Status is the pipeline status of the contact, if any. Only ID is used when saving.
	Status *Status
	// CreatedAt records when the contact was first stored.
	CreatedAt time.Time
	// UpdatedAt records the last time the contact was stored.
	UpdatedAt time.Time
}

// IsNew reports whether the contact has no identity yet.
func (c *Contact) IsNew() bool {
	return c.ID == uuid.Nil
}

// CompanyName returns the name of the referenced company or "".
func (c *Contact) CompanyName() string {
	if c.Company == nil {
		return ""
	}
	return c.Company.Name
}

// StatusName returns the name of the referenced status or "".
func (c *Contact) StatusName() string {
	if c.Status == nil {
		return ""
	}
	return c.Status.Name
}
