package view

import (
	"context"
	"fmt"

	"github.com/gartstein/crm/internal/crm/models"
)

// DashboardSource is what the dashboard reads.
type DashboardSource interface {
	CountContacts(ctx context.Context) (int64, error)
	FindAllCompanies(ctx context.Context) ([]models.Company, error)
}

// Slice is one company's share of the employee chart.
type Slice struct {
	Name          string `json:"name"`
	EmployeeCount int64  `json:"employee_count"`
}

// Dashboard is the contact total plus one chart slice per company.
type Dashboard struct {
	ContactCount int64   `json:"contact_count"`
	Stats        string  `json:"stats"`
	Series       []Slice `json:"series"`
}

// LoadDashboard reads the current totals.
func LoadDashboard(ctx context.Context, src DashboardSource) (*Dashboard, error) {
	count, err := src.CountContacts(ctx)
	if err != nil {
		return nil, err
	}
	companies, err := src.FindAllCompanies(ctx)
	if err != nil {
		return nil, err
	}

	series := make([]Slice, 0, len(companies))
	for _, c := range companies {
		series = append(series, Slice{Name: c.Name, EmployeeCount: c.EmployeeCount})
	}
	return &Dashboard{
		ContactCount: count,
		Stats:        fmt.Sprintf("%d contacts", count),
		Series:       series,
	}, nil
}
