// Package models contains the row types of the CRM store,
// configured to work using GORM as the ORM.
package models

import (
	"fmt"
	"time"

	e "github.com/gartstein/crm/internal/crm/errors"
	"github.com/go-playground/validator/v10"
	"github.com/go-playground/validator/v10/non-standard/validators"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	if err := v.RegisterValidation("notblank", validators.NotBlank); err != nil {
		panic(err)
	}
	return v
}

// Company is a row of the companies table.
type Company struct {
	ID        uuid.UUID `gorm:"type:uuid;primaryKey"`
	Name      string    `gorm:"size:255;not null;uniqueIndex" validate:"required,notblank"`
	CreatedAt time.Time
	UpdatedAt time.Time
}

func (Company) TableName() string {
	return "companies"
}

// BeforeSave enforces the declared column constraints.
func (c *Company) BeforeSave(_ *gorm.DB) error {
	return check(c)
}

// Status is a row of the statuses table.
type Status struct {
	ID        uuid.UUID `gorm:"type:uuid;primaryKey"`
	Name      string    `gorm:"size:255;uniqueIndex"`
	CreatedAt time.Time
	UpdatedAt time.Time
}

func (Status) TableName() string {
	return "statuses"
}

// Contact is a row of the contacts table.
type Contact struct {
	ID        uuid.UUID  `gorm:"type:uuid;primaryKey"`
	FirstName string     `gorm:"size:255;index"`
	LastName  string     `gorm:"size:255;index"`
	Email     string     `gorm:"size:320" validate:"omitempty,email"`
	CompanyID *uuid.UUID `gorm:"type:uuid;index"`
	Company   *Company   `gorm:"constraint:OnDelete:RESTRICT" validate:"-"`
	StatusID  *uuid.UUID `gorm:"type:uuid;index"`
	Status    *Status    `gorm:"constraint:OnDelete:RESTRICT" validate:"-"`
	CreatedAt time.Time  `gorm:"index"`
	UpdatedAt time.Time
}

func (Contact) TableName() string {
	return "contacts"
}

// BeforeSave enforces the declared column constraints.
func (c *Contact) BeforeSave(_ *gorm.DB) error {
	return check(c)
}

func check(row interface{}) error {
	if err := validate.Struct(row); err != nil {
		return fmt.Errorf("%w: %v", e.ErrInvalidInput, err)
	}
	return nil
}

// All lists every row type for migrations.
func All() []interface{} {
	return []interface{}{&Company{}, &Status{}, &Contact{}}
}
