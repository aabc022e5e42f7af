package db

import (
	"context"
	"errors"

	dbmodels "github.com/gartstein/crm/internal/crm/db/models"
	e "github.com/gartstein/crm/internal/crm/errors"
	"github.com/gartstein/crm/internal/crm/models"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

type companyCount struct {
	ID            uuid.UUID
	Name          string
	EmployeeCount int64
}

// FindAllCompanies returns every company with its live employee count.
func (r *Repository) FindAllCompanies(ctx context.Context) ([]models.Company, error) {
	var rows []companyCount
	err := r.db.WithContext(ctx).
		Model(&dbmodels.Company{}).
		Select("companies.id, companies.name, COUNT(contacts.id) AS employee_count").
		Joins("LEFT JOIN contacts ON contacts.company_id = companies.id").
		Group("companies.id, companies.name, companies.created_at").
		Order("companies.created_at, companies.id").
		Scan(&rows).Error
	if err != nil {
		return nil, err
	}

	companies := make([]models.Company, 0, len(rows))
	for _, row := range rows {
		companies = append(companies, models.Company{
			ID:            row.ID,
			Name:          row.Name,
			EmployeeCount: row.EmployeeCount,
		})
	}
	return companies, nil
}

func (r *Repository) GetCompany(ctx context.Context, id uuid.UUID) (*models.Company, error) {
	var row companyCount
	result := r.db.WithContext(ctx).
		Model(&dbmodels.Company{}).
		Select("companies.id, companies.name, COUNT(contacts.id) AS employee_count").
		Joins("LEFT JOIN contacts ON contacts.company_id = companies.id").
		Where("companies.id = ?", id).
		Group("companies.id, companies.name").
		Scan(&row)
	if result.Error != nil {
		return nil, result.Error
	}
	if result.RowsAffected == 0 {
		return nil, e.ErrNotFound
	}
	return &models.Company{ID: row.ID, Name: row.Name, EmployeeCount: row.EmployeeCount}, nil
}

// SaveCompany upserts a company by identity. EmployeeCount is ignored.
func (r *Repository) SaveCompany(ctx context.Context, company *models.Company) error {
	row := &dbmodels.Company{ID: company.ID, Name: company.Name}
	if row.ID == uuid.Nil {
		row.ID = uuid.New()
	}
	if err := translate(r.upsert(ctx, row, row.ID, &row.CreatedAt)); err != nil {
		return err
	}
	company.ID = row.ID
	return nil
}

// DeleteCompany removes a company that no contact references.
func (r *Repository) DeleteCompany(ctx context.Context, id uuid.UUID) error {
	return r.deleteUnreferenced(ctx, &dbmodels.Company{}, "company_id", id)
}

func (r *Repository) FindAllStatuses(ctx context.Context) ([]models.Status, error) {
	var rows []dbmodels.Status
	if err := r.db.WithContext(ctx).Order("created_at, id").Find(&rows).Error; err != nil {
		return nil, err
	}
	statuses := make([]models.Status, 0, len(rows))
	for _, row := range rows {
		statuses = append(statuses, models.Status{ID: row.ID, Name: row.Name})
	}
	return statuses, nil
}

// SaveStatus upserts a status by identity.
func (r *Repository) SaveStatus(ctx context.Context, status *models.Status) error {
	row := &dbmodels.Status{ID: status.ID, Name: status.Name}
	if row.ID == uuid.Nil {
		row.ID = uuid.New()
	}
	if err := translate(r.upsert(ctx, row, row.ID, &row.CreatedAt)); err != nil {
		return err
	}
	status.ID = row.ID
	return nil
}

// DeleteStatus removes a status that no contact references.
func (r *Repository) DeleteStatus(ctx context.Context, id uuid.UUID) error {
	return r.deleteUnreferenced(ctx, &dbmodels.Status{}, "status_id", id)
}

// upsert inserts row when id is unknown and saves it over the existing row
// otherwise, keeping the original creation time.
func (r *Repository) upsert(ctx context.Context, row interface{}, id uuid.UUID, createdAt interface{}) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var count int64
		if err := tx.Model(row).Where("id = ?", id).Count(&count).Error; err != nil {
			return err
		}
		if count == 0 {
			return tx.Create(row).Error
		}
		if err := tx.Model(row).Select("created_at").Where("id = ?", id).Scan(createdAt).Error; err != nil {
			return err
		}
		return tx.Save(row).Error
	})
}

func (r *Repository) deleteUnreferenced(ctx context.Context, model interface{}, column string, id uuid.UUID) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var refs int64
		if err := tx.Model(&dbmodels.Contact{}).Where(column+" = ?", id).Count(&refs).Error; err != nil {
			return err
		}
		if refs > 0 {
			return e.ErrInUse
		}
		result := tx.Delete(model, "id = ?", id)
		if result.Error != nil {
			return result.Error
		}
		if result.RowsAffected == 0 {
			return e.ErrNotFound
		}
		return nil
	})
}

func translate(err error) error {
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return e.ErrDuplicateName
	}
	return err
}
