package handlers

import (
	"context"
	"net/http"

	"github.com/gartstein/crm/internal/crm/auth"
	"github.com/gartstein/crm/internal/crm/models"
	"github.com/gartstein/crm/internal/crm/view"
	"github.com/google/uuid"
	"github.com/grpc-ecosystem/grpc-gateway/v2/runtime"
	"go.uber.org/zap"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

// CrmController defines the business logic interface the HTTP handlers invoke.
type CrmController interface {
	view.ContactService
	GetContact(ctx context.Context, id uuid.UUID) (*models.Contact, error)
	SaveCompany(ctx context.Context, company *models.Company) (*models.Company, error)
	DeleteCompany(ctx context.Context, id uuid.UUID) error
	SaveStatus(ctx context.Context, status *models.Status) (*models.Status, error)
	DeleteStatus(ctx context.Context, id uuid.UUID) error
}

// HealthCheck reports whether the service can reach its dependencies.
type HealthCheck func(ctx context.Context) error

// HTTPHandler serves the CRM JSON API.
type HTTPHandler struct {
	service  CrmController
	sessions *SessionStore
	ready    HealthCheck
	logger   *zap.Logger
	mux      *runtime.ServeMux
}

// NewHTTPHandler constructs an HTTPHandler. ready may be nil.
func NewHTTPHandler(service CrmController, sessions *SessionStore, ready HealthCheck, logger *zap.Logger) *HTTPHandler {
	return &HTTPHandler{
		service:  service,
		sessions: sessions,
		ready:    ready,
		logger:   logger.Named("http_handler"),
	}
}

type route struct {
	method  string
	pattern string
	handler runtime.HandlerFunc
}

// Register adds every API route to mux.
func (h *HTTPHandler) Register(mux *runtime.ServeMux) error {
	h.mux = mux
	routes := []route{
		{http.MethodGet, "/healthz", h.healthz},
		{http.MethodGet, "/v1/contacts", h.searchContacts},
		{http.MethodGet, "/v1/contacts/{id}", h.getContact},
		{http.MethodPost, "/v1/contacts", h.saveContact},
		{http.MethodPut, "/v1/contacts/{id}", h.saveContact},
		{http.MethodDelete, "/v1/contacts/{id}", h.deleteContact},
		{http.MethodGet, "/v1/counts/contacts", h.countContacts},
		{http.MethodGet, "/v1/companies", h.listCompanies},
		{http.MethodPost, "/v1/companies", h.saveCompany},
		{http.MethodDelete, "/v1/companies/{id}", h.deleteCompany},
		{http.MethodGet, "/v1/statuses", h.listStatuses},
		{http.MethodPost, "/v1/statuses", h.saveStatus},
		{http.MethodDelete, "/v1/statuses/{id}", h.deleteStatus},
		{http.MethodGet, "/v1/dashboard", h.dashboard},
		{http.MethodGet, "/v1/list", h.listState},
		{http.MethodPut, "/v1/list/filter", h.listFilter},
		{http.MethodPost, "/v1/list/select/{id}", h.listSelect},
		{http.MethodPost, "/v1/list/new", h.listNew},
		{http.MethodPost, "/v1/list/save", h.listSave},
		{http.MethodPost, "/v1/list/delete", h.listDelete},
		{http.MethodPost, "/v1/list/cancel", h.listCancel},
	}
	for _, rt := range routes {
		if err := mux.HandlePath(rt.method, rt.pattern, rt.handler); err != nil {
			return err
		}
	}
	return nil
}

func (h *HTTPHandler) writeJSON(w http.ResponseWriter, code int, v interface{}) {
	body, err := jsonMarshaler.Marshal(v)
	if err != nil {
		h.logger.Error("Failed to encode response", zap.Error(err))
		http.Error(w, "failed to encode response", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", jsonMarshaler.ContentType(v))
	w.WriteHeader(code)
	if _, err := w.Write(body); err != nil {
		h.logger.Debug("Failed to write response", zap.Error(err))
	}
}

func (h *HTTPHandler) writeError(w http.ResponseWriter, r *http.Request, err error) {
	runtime.HTTPError(r.Context(), h.mux, jsonMarshaler, w, r, h.mapServiceError(r.Context(), err))
}

func (h *HTTPHandler) decode(r *http.Request, v interface{}) error {
	if err := jsonMarshaler.NewDecoder(r.Body).Decode(v); err != nil {
		return status.Errorf(codes.InvalidArgument, "invalid request body: %v", err)
	}
	return nil
}

func (h *HTTPHandler) healthz(w http.ResponseWriter, r *http.Request, _ map[string]string) {
	if h.ready != nil {
		if err := h.ready(r.Context()); err != nil {
			h.logger.Warn("Health check failed", zap.Error(err))
			h.writeError(w, r, status.Error(codes.Unavailable, "store unavailable"))
			return
		}
	}
	h.writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (h *HTTPHandler) searchContacts(w http.ResponseWriter, r *http.Request, _ map[string]string) {
	contacts, err := h.service.FindAllContacts(r.Context(), r.URL.Query().Get("filter"))
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	h.writeJSON(w, http.StatusOK, contactsToDTO(contacts))
}

func (h *HTTPHandler) getContact(w http.ResponseWriter, r *http.Request, params map[string]string) {
	id, err := parseID(params["id"])
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	contact, err := h.service.GetContact(r.Context(), id)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	h.writeJSON(w, http.StatusOK, contactToDTO(contact))
}

// saveContact upserts the body. A JSON null body is handed to the service
// as an absent contact and answered with 204.
func (h *HTTPHandler) saveContact(w http.ResponseWriter, r *http.Request, params map[string]string) {
	var req *ContactRequest
	if err := h.decode(r, &req); err != nil {
		h.writeError(w, r, err)
		return
	}

	var contact *models.Contact
	if req != nil {
		contact = requestToContact(req)
		if raw, ok := params["id"]; ok {
			id, err := parseID(raw)
			if err != nil {
				h.writeError(w, r, err)
				return
			}
			contact.ID = id
		}
	}

	saved, err := h.service.SaveContact(r.Context(), contact)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	if saved == nil {
		w.WriteHeader(http.StatusNoContent)
		return
	}

	stored, err := h.service.GetContact(r.Context(), saved.ID)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	h.writeJSON(w, http.StatusOK, contactToDTO(stored))
}

func (h *HTTPHandler) deleteContact(w http.ResponseWriter, r *http.Request, params map[string]string) {
	id, err := parseID(params["id"])
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	if err := h.service.DeleteContact(r.Context(), &models.Contact{ID: id}); err != nil {
		h.writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *HTTPHandler) countContacts(w http.ResponseWriter, r *http.Request, _ map[string]string) {
	count, err := h.service.CountContacts(r.Context())
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	h.writeJSON(w, http.StatusOK, CountDTO{Count: count})
}

func (h *HTTPHandler) listCompanies(w http.ResponseWriter, r *http.Request, _ map[string]string) {
	companies, err := h.service.FindAllCompanies(r.Context())
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	h.writeJSON(w, http.StatusOK, companiesToDTO(companies))
}

func (h *HTTPHandler) saveCompany(w http.ResponseWriter, r *http.Request, _ map[string]string) {
	var req NamedRequest
	if err := h.decode(r, &req); err != nil {
		h.writeError(w, r, err)
		return
	}
	company := &models.Company{Name: req.Name}
	if req.ID != nil {
		company.ID = *req.ID
	}
	saved, err := h.service.SaveCompany(r.Context(), company)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	h.writeJSON(w, http.StatusOK, CompanyDTO{ID: saved.ID.String(), Name: saved.Name})
}

func (h *HTTPHandler) deleteCompany(w http.ResponseWriter, r *http.Request, params map[string]string) {
	id, err := parseID(params["id"])
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	if err := h.service.DeleteCompany(r.Context(), id); err != nil {
		h.writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *HTTPHandler) listStatuses(w http.ResponseWriter, r *http.Request, _ map[string]string) {
	statuses, err := h.service.FindAllStatuses(r.Context())
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	h.writeJSON(w, http.StatusOK, statusesToDTO(statuses))
}

func (h *HTTPHandler) saveStatus(w http.ResponseWriter, r *http.Request, _ map[string]string) {
	var req NamedRequest
	if err := h.decode(r, &req); err != nil {
		h.writeError(w, r, err)
		return
	}
	st := &models.Status{Name: req.Name}
	if req.ID != nil {
		st.ID = *req.ID
	}
	saved, err := h.service.SaveStatus(r.Context(), st)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	h.writeJSON(w, http.StatusOK, StatusDTO{ID: saved.ID.String(), Name: saved.Name})
}

func (h *HTTPHandler) deleteStatus(w http.ResponseWriter, r *http.Request, params map[string]string) {
	id, err := parseID(params["id"])
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	if err := h.service.DeleteStatus(r.Context(), id); err != nil {
		h.writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *HTTPHandler) dashboard(w http.ResponseWriter, r *http.Request, _ map[string]string) {
	d, err := view.LoadDashboard(r.Context(), h.service)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	h.writeJSON(w, http.StatusOK, d)
}

// withList runs fn on the caller's list view and answers with the resulting state.
func (h *HTTPHandler) withList(w http.ResponseWriter, r *http.Request, fn func(context.Context, *view.ListView) error) {
	user, ok := auth.SubjectFromContext(r.Context())
	if !ok {
		h.writeError(w, r, status.Error(codes.Unauthenticated, "no authenticated user"))
		return
	}

	var state view.ListState
	err := h.sessions.With(r.Context(), user, func(v *view.ListView) error {
		fnErr := fn(r.Context(), v)
		state = v.Snapshot()
		return fnErr
	})
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	h.writeJSON(w, http.StatusOK, listStateToDTO(state))
}

func (h *HTTPHandler) listState(w http.ResponseWriter, r *http.Request, _ map[string]string) {
	h.withList(w, r, func(ctx context.Context, v *view.ListView) error {
		return v.Refresh(ctx)
	})
}

func (h *HTTPHandler) listFilter(w http.ResponseWriter, r *http.Request, _ map[string]string) {
	var req FilterRequest
	if err := h.decode(r, &req); err != nil {
		h.writeError(w, r, err)
		return
	}
	h.withList(w, r, func(ctx context.Context, v *view.ListView) error {
		return v.SetFilter(ctx, req.Filter)
	})
}

func (h *HTTPHandler) listSelect(w http.ResponseWriter, r *http.Request, params map[string]string) {
	id, err := parseID(params["id"])
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	h.withList(w, r, func(_ context.Context, v *view.ListView) error {
		return v.SelectContact(id)
	})
}

func (h *HTTPHandler) listNew(w http.ResponseWriter, r *http.Request, _ map[string]string) {
	h.withList(w, r, func(_ context.Context, v *view.ListView) error {
		v.AddContact()
		return nil
	})
}

func (h *HTTPHandler) listSave(w http.ResponseWriter, r *http.Request, _ map[string]string) {
	var in view.ContactInput
	if err := h.decode(r, &in); err != nil {
		h.writeError(w, r, err)
		return
	}
	h.withList(w, r, func(ctx context.Context, v *view.ListView) error {
		return v.Save(ctx, in)
	})
}

func (h *HTTPHandler) listDelete(w http.ResponseWriter, r *http.Request, _ map[string]string) {
	h.withList(w, r, func(ctx context.Context, v *view.ListView) error {
		return v.Delete(ctx)
	})
}

func (h *HTTPHandler) listCancel(w http.ResponseWriter, r *http.Request, _ map[string]string) {
	h.withList(w, r, func(ctx context.Context, v *view.ListView) error {
		return v.Cancel(ctx)
	})
}
