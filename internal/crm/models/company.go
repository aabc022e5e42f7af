package models

import "github.com/google/uuid"

// Company groups contacts that work for the same organisation.
type Company struct {
	ID   uuid.UUID
	Name string
	// EmployeeCount is the number of contacts referencing the company.
	// It is computed by the store on read and ignored on save.
	EmployeeCount int64
}

// Status is a lookup value describing where a contact is in the sales pipeline.
type Status struct {
	ID   uuid.UUID
	Name string
}
