package view

import (
	"context"
	"errors"
	"fmt"
	"reflect"
	"strings"

	e "github.com/gartstein/crm/internal/crm/errors"
	"github.com/gartstein/crm/internal/crm/models"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
)

// ContactInput is what a user submits from the contact form.
type ContactInput struct {
	FirstName string     `json:"first_name" validate:"required"`
	LastName  string     `json:"last_name" validate:"required"`
	Email     string     `json:"email" validate:"required,email"`
	CompanyID *uuid.UUID `json:"company_id"`
	StatusID  *uuid.UUID `json:"status_id"`
}

// FormEvent is fired by a ContactForm towards its listener.
type FormEvent interface {
	formEvent()
}

// SaveEvent carries a validated contact to persist.
type SaveEvent struct{ Contact *models.Contact }

// DeleteEvent carries the contact the user asked to remove.
type DeleteEvent struct{ Contact *models.Contact }

// CloseEvent asks the owner to close the editor without persisting.
type CloseEvent struct{}

func (SaveEvent) formEvent()   {}
func (DeleteEvent) formEvent() {}
func (CloseEvent) formEvent()  {}

// FormListener receives form events. A non-nil error is returned to whoever
// triggered the event.
type FormListener func(ctx context.Context, event FormEvent) error

var formValidator = newFormValidator()

func newFormValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name := strings.SplitN(f.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	return v
}

// ContactForm binds one contact at a time and turns user actions into events.
type ContactForm struct {
	companies []models.Company
	statuses  []models.Status
	contact   *models.Contact
	listener  FormListener
}

// NewContactForm creates a hidden form offering companies and statuses as choices.
func NewContactForm(companies []models.Company, statuses []models.Status) *ContactForm {
	return &ContactForm{companies: companies, statuses: statuses}
}

// SetListener replaces the form's event listener.
func (f *ContactForm) SetListener(listener FormListener) {
	f.listener = listener
}

// SetContact binds a copy of contact, or unbinds the form when contact is nil.
func (f *ContactForm) SetContact(contact *models.Contact) {
	if contact == nil {
		f.contact = nil
		return
	}
	bound := *contact
	f.contact = &bound
}

// Contact returns the bound contact, nil when the form is hidden.
func (f *ContactForm) Contact() *models.Contact {
	return f.contact
}

func (f *ContactForm) Visible() bool {
	return f.contact != nil
}

// Validate checks in against the form's field rules and choice lists.
func (f *ContactForm) Validate(in ContactInput) error {
	var problems []string
	if err := formValidator.Struct(in); err != nil {
		var verrs validator.ValidationErrors
		if !errors.As(err, &verrs) {
			return err
		}
		for _, fe := range verrs {
			problems = append(problems, fmt.Sprintf("%s: %s", fe.Field(), fe.Tag()))
		}
	}
	if in.CompanyID != nil && f.company(*in.CompanyID) == nil {
		problems = append(problems, "company_id: unknown")
	}
	if in.StatusID != nil && f.status(*in.StatusID) == nil {
		problems = append(problems, "status_id: unknown")
	}
	if len(problems) > 0 {
		return fmt.Errorf("%w: %s", e.ErrInvalidInput, strings.Join(problems, "; "))
	}
	return nil
}

// Submit validates in, copies it onto the bound contact and fires a SaveEvent.
// Nothing is fired when validation fails.
func (f *ContactForm) Submit(ctx context.Context, in ContactInput) error {
	if f.contact == nil {
		return fmt.Errorf("%w: no contact is being edited", e.ErrInvalidInput)
	}
	if err := f.Validate(in); err != nil {
		return err
	}

	edited := *f.contact
	edited.FirstName = in.FirstName
	edited.LastName = in.LastName
	edited.Email = in.Email
	edited.Company = nil
	if in.CompanyID != nil {
		edited.Company = f.company(*in.CompanyID)
	}
	edited.Status = nil
	if in.StatusID != nil {
		edited.Status = f.status(*in.StatusID)
	}
	return f.fire(ctx, SaveEvent{Contact: &edited})
}

// Delete fires a DeleteEvent for the bound contact.
func (f *ContactForm) Delete(ctx context.Context) error {
	if f.contact == nil {
		return fmt.Errorf("%w: no contact is being edited", e.ErrInvalidInput)
	}
	return f.fire(ctx, DeleteEvent{Contact: f.contact})
}

// Close fires a CloseEvent.
func (f *ContactForm) Close(ctx context.Context) error {
	return f.fire(ctx, CloseEvent{})
}

func (f *ContactForm) fire(ctx context.Context, event FormEvent) error {
	if f.listener == nil {
		return nil
	}
	return f.listener(ctx, event)
}

func (f *ContactForm) company(id uuid.UUID) *models.Company {
	for i := range f.companies {
		if f.companies[i].ID == id {
			c := f.companies[i]
			return &c
		}
	}
	return nil
}

func (f *ContactForm) status(id uuid.UUID) *models.Status {
	for i := range f.statuses {
		if f.statuses[i].ID == id {
			s := f.statuses[i]
			return &s
		}
	}
	return nil
}
