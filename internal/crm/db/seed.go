package db

import (
	"context"
	"fmt"
	"time"

	dbmodels "github.com/gartstein/crm/internal/crm/db/models"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

// DefaultStatuses are the pipeline stages a fresh store starts with.
var DefaultStatuses = []string{
	"Imported lead",
	"Not contacted",
	"Contacted",
	"Customer",
	"Closed (lost)",
}

var demoCompanies = []string{"Phillips Van Heusen Corp.", "Avaya Inc.", "Laboratory Corporation of America Holdings"}

var demoContacts = []struct {
	first, last, email string
	company, status    int
}{
	{"Eula", "Lane", "eula.lane@jigecili.erat", 0, 0},
	{"Barry", "Rodriquez", "barry.rodriquez@zun.mm", 0, 2},
	{"Eugenia", "Selvi", "eugenia.selvi@capfad.vn", 1, 1},
	{"Alejandro", "Miles", "alejandro.miles@dec.bn", 1, 3},
	{"Cora", "Tesi", "cora.tesi@bivo.yt", 2, 3},
	{"Marguerite", "Ishii", "marguerite.ishii@judbilo.gn", 2, 4},
}

// SeedDemoData fills an empty store with statuses, companies and contacts.
// It reports false without writing anything when statuses already exist.
func (r *Repository) SeedDemoData(ctx context.Context) (bool, error) {
	var seeded bool
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var count int64
		if err := tx.Model(&dbmodels.Status{}).Count(&count).Error; err != nil {
			return err
		}
		if count > 0 {
			return nil
		}

		// Batch inserts share one timestamp; spacing them keeps listings in
		// seed order.
		at := time.Now()
		next := func() time.Time {
			at = at.Add(time.Millisecond)
			return at
		}

		statuses := make([]dbmodels.Status, 0, len(DefaultStatuses))
		for _, name := range DefaultStatuses {
			statuses = append(statuses, dbmodels.Status{ID: uuid.New(), Name: name, CreatedAt: next()})
		}
		companies := make([]dbmodels.Company, 0, len(demoCompanies))
		for _, name := range demoCompanies {
			companies = append(companies, dbmodels.Company{ID: uuid.New(), Name: name, CreatedAt: next()})
		}
		contacts := make([]dbmodels.Contact, 0, len(demoContacts))
		for _, c := range demoContacts {
			companyID, statusID := companies[c.company].ID, statuses[c.status].ID
			contacts = append(contacts, dbmodels.Contact{
				ID:        uuid.New(),
				FirstName: c.first,
				LastName:  c.last,
				Email:     c.email,
				CompanyID: &companyID,
				StatusID:  &statusID,
				CreatedAt: next(),
			})
		}

		if err := tx.Create(&statuses).Error; err != nil {
			return fmt.Errorf("seed statuses: %w", err)
		}
		if err := tx.Create(&companies).Error; err != nil {
			return fmt.Errorf("seed companies: %w", err)
		}
		if err := tx.Create(&contacts).Error; err != nil {
			return fmt.Errorf("seed contacts: %w", err)
		}
		seeded = true
		return nil
	})
	return seeded, err
}
