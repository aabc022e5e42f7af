// Package view holds the presentation state behind the contact list and the
// dashboard. A ListView is not safe for concurrent use; callers serialize
// access per user session.
package view

import (
	"context"
	"fmt"

	e "github.com/gartstein/crm/internal/crm/errors"
	"github.com/gartstein/crm/internal/crm/models"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// ContactService is the part of the CRM service the views depend on.
type ContactService interface {
	FindAllContacts(ctx context.Context, filter string) ([]models.Contact, error)
	CountContacts(ctx context.Context) (int64, error)
	SaveContact(ctx context.Context, contact *models.Contact) (*models.Contact, error)
	DeleteContact(ctx context.Context, contact *models.Contact) error
	FindAllCompanies(ctx context.Context) ([]models.Company, error)
	FindAllStatuses(ctx context.Context) ([]models.Status, error)
}

// Mode is the state of a ListView.
type Mode int

const (
	Browsing Mode = iota
	Editing
)

func (m Mode) String() string {
	if m == Editing {
		return "editing"
	}
	return "browsing"
}

// ListState is a point-in-time copy of a ListView.
type ListState struct {
	Mode      Mode
	Filter    string
	Contacts  []models.Contact
	Editing   *models.Contact
	Companies []models.Company
	Statuses  []models.Status
}

// ListView keeps the displayed contacts in sync with the current filter and
// owns the contact form.
type ListView struct {
	svc       ContactService
	logger    *zap.Logger
	form      *ContactForm
	filter    string
	contacts  []models.Contact
	companies []models.Company
	statuses  []models.Status
}

// NewListView loads the form choices, runs the initial query and starts Browsing.
func NewListView(ctx context.Context, svc ContactService, logger *zap.Logger) (*ListView, error) {
	v := &ListView{svc: svc, logger: logger.Named("list_view")}
	if err := v.loadChoices(ctx); err != nil {
		return nil, err
	}
	if err := v.updateList(ctx); err != nil {
		return nil, err
	}
	v.closeEditor()
	return v, nil
}

func (v *ListView) loadChoices(ctx context.Context) error {
	companies, err := v.svc.FindAllCompanies(ctx)
	if err != nil {
		return err
	}
	statuses, err := v.svc.FindAllStatuses(ctx)
	if err != nil {
		return err
	}
	v.companies, v.statuses = companies, statuses

	var bound *models.Contact
	if v.form != nil {
		bound = v.form.Contact()
	}
	v.form = NewContactForm(companies, statuses)
	v.form.SetListener(v.handleFormEvent)
	v.form.SetContact(bound)
	return nil
}

// Refresh reloads the form choices and re-runs the current filter.
// The editor stays as it is.
func (v *ListView) Refresh(ctx context.Context) error {
	if err := v.loadChoices(ctx); err != nil {
		return err
	}
	return v.updateList(ctx)
}

func (v *ListView) Mode() Mode {
	if v.form.Visible() {
		return Editing
	}
	return Browsing
}

// SetFilter re-queries with filter. It never changes the mode.
func (v *ListView) SetFilter(ctx context.Context, filter string) error {
	v.filter = filter
	return v.updateList(ctx)
}

// EditContact opens the editor on contact, or closes it when contact is nil.
func (v *ListView) EditContact(contact *models.Contact) {
	if contact == nil {
		v.closeEditor()
		return
	}
	v.form.SetContact(contact)
}

// SelectContact opens the editor on a displayed contact.
func (v *ListView) SelectContact(id uuid.UUID) error {
	for i := range v.contacts {
		if v.contacts[i].ID == id {
			v.EditContact(&v.contacts[i])
			return nil
		}
	}
	return fmt.Errorf("%w: contact %s is not displayed", e.ErrNotFound, id)
}

// AddContact opens the editor on a new contact without identity.
func (v *ListView) AddContact() {
	v.EditContact(&models.Contact{})
}

// Save submits in through the form. Invalid input keeps the view Editing.
func (v *ListView) Save(ctx context.Context, in ContactInput) error {
	return v.form.Submit(ctx, in)
}

// Delete removes the contact being edited.
func (v *ListView) Delete(ctx context.Context) error {
	return v.form.Delete(ctx)
}

// Cancel discards the edit.
func (v *ListView) Cancel(ctx context.Context) error {
	return v.form.Close(ctx)
}

// Snapshot copies the current state.
func (v *ListView) Snapshot() ListState {
	state := ListState{
		Mode:      v.Mode(),
		Filter:    v.filter,
		Contacts:  append([]models.Contact(nil), v.contacts...),
		Companies: append([]models.Company(nil), v.companies...),
		Statuses:  append([]models.Status(nil), v.statuses...),
	}
	if c := v.form.Contact(); c != nil {
		editing := *c
		state.Editing = &editing
	}
	return state
}

func (v *ListView) handleFormEvent(ctx context.Context, event FormEvent) error {
	switch ev := event.(type) {
	case SaveEvent:
		if _, err := v.svc.SaveContact(ctx, ev.Contact); err != nil {
			return err
		}
		v.closeEditor()
		return v.updateList(ctx)
	case DeleteEvent:
		if ev.Contact.IsNew() {
			v.closeEditor()
			return nil
		}
		if err := v.svc.DeleteContact(ctx, ev.Contact); err != nil {
			return err
		}
		v.closeEditor()
		return v.updateList(ctx)
	case CloseEvent:
		v.closeEditor()
		return nil
	}
	return fmt.Errorf("unknown form event %T", event)
}

func (v *ListView) updateList(ctx context.Context) error {
	v.logger.Debug("Updating list", zap.String("filter", v.filter))
	contacts, err := v.svc.FindAllContacts(ctx, v.filter)
	if err != nil {
		return err
	}
	v.contacts = contacts
	return nil
}

func (v *ListView) closeEditor() {
	v.form.SetContact(nil)
}
