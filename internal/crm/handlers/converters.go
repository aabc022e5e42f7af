package handlers

import (
	"context"
	"errors"
	"fmt"

	e "github.com/gartstein/crm/internal/crm/errors"
	"github.com/gartstein/crm/internal/crm/models"
	"github.com/gartstein/crm/internal/crm/view"
	"github.com/gartstein/crm/internal/pkg/utils"
	"github.com/google/uuid"
	"github.com/grpc-ecosystem/grpc-gateway/v2/runtime"
	"go.uber.org/zap"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/encoding/protojson"
)

var jsonMarshaler = &runtime.JSONPb{
	MarshalOptions: protojson.MarshalOptions{UseProtoNames: true},
}

// ContactDTO is the wire form of a contact.
type ContactDTO struct {
	ID          string  `json:"id"`
	FirstName   string  `json:"first_name"`
	LastName    string  `json:"last_name"`
	Email       string  `json:"email"`
	CompanyID   *string `json:"company_id,omitempty"`
	CompanyName string  `json:"company_name,omitempty"`
	StatusID    *string `json:"status_id,omitempty"`
	StatusName  string  `json:"status_name,omitempty"`
}

// ContactRequest is the body of a contact save.
type ContactRequest struct {
	ID        *uuid.UUID `json:"id"`
	FirstName string     `json:"first_name"`
	LastName  string     `json:"last_name"`
	Email     string     `json:"email"`
	CompanyID *uuid.UUID `json:"company_id"`
	StatusID  *uuid.UUID `json:"status_id"`
}

// CompanyDTO is the wire form of a company.
type CompanyDTO struct {
	ID            string `json:"id"`
	Name          string `json:"name"`
	EmployeeCount int64  `json:"employee_count"`
}

// StatusDTO is the wire form of a status.
type StatusDTO struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// NamedRequest is the body of a company or status save.
type NamedRequest struct {
	ID   *uuid.UUID `json:"id"`
	Name string     `json:"name"`
}

// CountDTO carries a total.
type CountDTO struct {
	Count int64 `json:"count"`
}

// FilterRequest is the body of a list filter change.
type FilterRequest struct {
	Filter string `json:"filter"`
}

// ListStateDTO is the wire form of a user's list view.
type ListStateDTO struct {
	Mode      string       `json:"mode"`
	Filter    string       `json:"filter"`
	Contacts  []ContactDTO `json:"contacts"`
	Editing   *ContactDTO  `json:"editing,omitempty"`
	Companies []CompanyDTO `json:"companies"`
	Statuses  []StatusDTO  `json:"statuses"`
}

func contactToDTO(c *models.Contact) ContactDTO {
	dto := ContactDTO{
		ID:          c.ID.String(),
		FirstName:   c.FirstName,
		LastName:    c.LastName,
		Email:       c.Email,
		CompanyName: c.CompanyName(),
		StatusName:  c.StatusName(),
	}
	if c.IsNew() {
		dto.ID = ""
	}
	if c.Company != nil {
		dto.CompanyID = utils.Ptr(c.Company.ID.String())
	}
	if c.Status != nil {
		dto.StatusID = utils.Ptr(c.Status.ID.String())
	}
	return dto
}

func contactsToDTO(contacts []models.Contact) []ContactDTO {
	out := make([]ContactDTO, 0, len(contacts))
	for i := range contacts {
		out = append(out, contactToDTO(&contacts[i]))
	}
	return out
}

func requestToContact(req *ContactRequest) *models.Contact {
	c := &models.Contact{
		FirstName: req.FirstName,
		LastName:  req.LastName,
		Email:     req.Email,
	}
	if req.ID != nil {
		c.ID = *req.ID
	}
	if req.CompanyID != nil {
		c.Company = &models.Company{ID: *req.CompanyID}
	}
	if req.StatusID != nil {
		c.Status = &models.Status{ID: *req.StatusID}
	}
	return c
}

func companiesToDTO(companies []models.Company) []CompanyDTO {
	out := make([]CompanyDTO, 0, len(companies))
	for _, c := range companies {
		out = append(out, CompanyDTO{ID: c.ID.String(), Name: c.Name, EmployeeCount: c.EmployeeCount})
	}
	return out
}

func statusesToDTO(statuses []models.Status) []StatusDTO {
	out := make([]StatusDTO, 0, len(statuses))
	for _, s := range statuses {
		out = append(out, StatusDTO{ID: s.ID.String(), Name: s.Name})
	}
	return out
}

func listStateToDTO(state view.ListState) ListStateDTO {
	dto := ListStateDTO{
		Mode:      state.Mode.String(),
		Filter:    state.Filter,
		Contacts:  contactsToDTO(state.Contacts),
		Companies: companiesToDTO(state.Companies),
		Statuses:  statusesToDTO(state.Statuses),
	}
	if state.Editing != nil {
		editing := contactToDTO(state.Editing)
		dto.Editing = &editing
	}
	return dto
}

func parseID(raw string) (uuid.UUID, error) {
	id, err := uuid.Parse(raw)
	if err != nil {
		return uuid.Nil, status.Error(codes.InvalidArgument, fmt.Sprintf("invalid id %q", raw))
	}
	return id, nil
}

// mapServiceError maps domain or repository errors to gRPC status codes,
// which the gateway renders as HTTP statuses.
func (h *HTTPHandler) mapServiceError(ctx context.Context, err error) error {
	if _, ok := status.FromError(err); ok {
		return err
	}
	switch {
	case errors.Is(err, e.ErrNotFound):
		return status.Error(codes.NotFound, err.Error())
	case errors.Is(err, e.ErrDuplicateName):
		return status.Error(codes.AlreadyExists, err.Error())
	case errors.Is(err, e.ErrInvalidInput):
		return status.Error(codes.InvalidArgument, err.Error())
	case errors.Is(err, e.ErrInUse):
		return status.Error(codes.FailedPrecondition, err.Error())
	default:
		LoggerFromContext(ctx, h.logger).Error("Internal server error", zap.Error(err))
		return status.Error(codes.Internal, "internal server error")
	}
}
