package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gartstein/crm/internal/crm/auth"
	e "github.com/gartstein/crm/internal/crm/errors"
	"github.com/gartstein/crm/internal/crm/models"
	"github.com/gartstein/crm/internal/crm/view"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

const testSecret = "test-secret"

// fakeController is an in-memory CrmController.
type fakeController struct {
	contacts  []models.Contact
	companies []models.Company
	statuses  []models.Status
	saves     int
}

func (f *fakeController) FindAllContacts(_ context.Context, filter string) ([]models.Contact, error) {
	var out []models.Contact
	needle := strings.ToLower(filter)
	for _, c := range f.contacts {
		if filter == "" || strings.Contains(strings.ToLower(c.FirstName), needle) ||
			strings.Contains(strings.ToLower(c.LastName), needle) {
			out = append(out, c)
		}
	}
	return out, nil
}

func (f *fakeController) CountContacts(_ context.Context) (int64, error) {
	return int64(len(f.contacts)), nil
}

func (f *fakeController) GetContact(_ context.Context, id uuid.UUID) (*models.Contact, error) {
	for i := range f.contacts {
		if f.contacts[i].ID == id {
			c := f.contacts[i]
			return &c, nil
		}
	}
	return nil, e.ErrNotFound
}

func (f *fakeController) SaveContact(_ context.Context, c *models.Contact) (*models.Contact, error) {
	if c == nil {
		return nil, nil
	}
	f.saves++
	if c.Email != "" && !strings.Contains(c.Email, "@") {
		return nil, e.ErrInvalidInput
	}
	for i := range f.contacts {
		if f.contacts[i].ID == c.ID {
			f.contacts[i] = *c
			return c, nil
		}
	}
	if c.IsNew() {
		c.ID = uuid.New()
	}
	f.contacts = append(f.contacts, *c)
	return c, nil
}

func (f *fakeController) DeleteContact(_ context.Context, c *models.Contact) error {
	for i := range f.contacts {
		if f.contacts[i].ID == c.ID {
			f.contacts = append(f.contacts[:i], f.contacts[i+1:]...)
			return nil
		}
	}
	return e.ErrNotFound
}

func (f *fakeController) FindAllCompanies(_ context.Context) ([]models.Company, error) {
	out := make([]models.Company, 0, len(f.companies))
	for _, co := range f.companies {
		co.EmployeeCount = 0
		for _, c := range f.contacts {
			if c.Company != nil && c.Company.ID == co.ID {
				co.EmployeeCount++
			}
		}
		out = append(out, co)
	}
	return out, nil
}

func (f *fakeController) FindAllStatuses(_ context.Context) ([]models.Status, error) {
	return f.statuses, nil
}

func (f *fakeController) SaveCompany(_ context.Context, c *models.Company) (*models.Company, error) {
	if strings.TrimSpace(c.Name) == "" {
		return nil, e.ErrInvalidInput
	}
	for _, existing := range f.companies {
		if existing.Name == c.Name {
			return nil, e.ErrDuplicateName
		}
	}
	c.ID = uuid.New()
	f.companies = append(f.companies, *c)
	return c, nil
}

func (f *fakeController) DeleteCompany(_ context.Context, id uuid.UUID) error {
	for _, c := range f.contacts {
		if c.Company != nil && c.Company.ID == id {
			return e.ErrInUse
		}
	}
	return nil
}

func (f *fakeController) SaveStatus(_ context.Context, s *models.Status) (*models.Status, error) {
	s.ID = uuid.New()
	f.statuses = append(f.statuses, *s)
	return s, nil
}

func (f *fakeController) DeleteStatus(_ context.Context, _ uuid.UUID) error {
	return nil
}

type testAPI struct {
	ctrl    *fakeController
	handler http.Handler
	acme    models.Company
}

func newTestAPI(t *testing.T) *testAPI {
	t.Helper()
	logger := zaptest.NewLogger(t)
	acme := models.Company{ID: uuid.New(), Name: "Acme"}
	ctrl := &fakeController{
		companies: []models.Company{acme},
		statuses:  []models.Status{{ID: uuid.New(), Name: "Contacted"}},
		contacts: []models.Contact{
			{ID: uuid.New(), FirstName: "Ann", LastName: "Lee", Email: "ann@example.com", Company: &acme},
			{ID: uuid.New(), FirstName: "Bob", LastName: "Ann", Email: "bob@example.com"},
		},
	}
	sessions := NewSessionStore(8, time.Minute, func(ctx context.Context) (*view.ListView, error) {
		return view.NewListView(ctx, ctrl, logger)
	}, logger)

	s := NewServer(0, 0, logger)
	require.NoError(t, s.RegisterHTTPHandler(NewHTTPHandler(ctrl, sessions, nil, logger), testSecret, NewMetrics("crm")))
	return &testAPI{ctrl: ctrl, handler: s.httpServer.Handler, acme: acme}
}

func token(t *testing.T, user string, roles ...string) string {
	t.Helper()
	tok, err := auth.GenerateToken(user, testSecret, roles...)
	require.NoError(t, err)
	return tok
}

func (a *testAPI) do(t *testing.T, method, path, tok string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()
	var reader io.Reader
	switch b := body.(type) {
	case nil:
	case string:
		reader = strings.NewReader(b)
	default:
		raw, err := json.Marshal(b)
		require.NoError(t, err)
		reader = bytes.NewReader(raw)
	}
	req := httptest.NewRequest(method, path, reader)
	if tok != "" {
		req.Header.Set("Authorization", "Bearer "+tok)
	}
	rec := httptest.NewRecorder()
	a.handler.ServeHTTP(rec, req)
	return rec
}

func decodeBody[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &v), rec.Body.String())
	return v
}

func TestSearchContacts(t *testing.T) {
	api := newTestAPI(t)

	tests := []struct {
		name   string
		filter string
		want   int
	}{
		{name: "no filter", filter: "", want: 2},
		{name: "matches first and last names", filter: "ann", want: 2},
		{name: "single match", filter: "lee", want: 1},
		{name: "no match", filter: "zed", want: 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := api.do(t, http.MethodGet, "/v1/contacts?filter="+tt.filter, "", nil)

			require.Equal(t, http.StatusOK, rec.Code)
			assert.Len(t, decodeBody[[]ContactDTO](t, rec), tt.want)
		})
	}
}

func TestGetContact(t *testing.T) {
	api := newTestAPI(t)
	ann := api.ctrl.contacts[0]

	rec := api.do(t, http.MethodGet, "/v1/contacts/"+ann.ID.String(), "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	dto := decodeBody[ContactDTO](t, rec)
	assert.Equal(t, "Acme", dto.CompanyName)
	assert.Equal(t, api.acme.ID.String(), *dto.CompanyID)

	assert.Equal(t, http.StatusNotFound, api.do(t, http.MethodGet, "/v1/contacts/"+uuid.NewString(), "", nil).Code)
	assert.Equal(t, http.StatusBadRequest, api.do(t, http.MethodGet, "/v1/contacts/not-a-uuid", "", nil).Code)
}

func TestSaveContact(t *testing.T) {
	api := newTestAPI(t)
	tok := token(t, "user", auth.RoleUser)

	t.Run("requires token", func(t *testing.T) {
		rec := api.do(t, http.MethodPost, "/v1/contacts", "", ContactRequest{FirstName: "Cy"})
		assert.Equal(t, http.StatusUnauthorized, rec.Code)
	})

	t.Run("creates", func(t *testing.T) {
		rec := api.do(t, http.MethodPost, "/v1/contacts", tok,
			ContactRequest{FirstName: "Cy", LastName: "Young", Email: "cy@example.com", CompanyID: &api.acme.ID})

		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
		dto := decodeBody[ContactDTO](t, rec)
		assert.NotEmpty(t, dto.ID)
		assert.Len(t, api.ctrl.contacts, 3)
	})

	t.Run("updates by path identity", func(t *testing.T) {
		bob := api.ctrl.contacts[1]
		rec := api.do(t, http.MethodPut, "/v1/contacts/"+bob.ID.String(), tok,
			ContactRequest{FirstName: "Robert", LastName: "Ann", Email: "bob@example.com"})

		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
		assert.Equal(t, bob.ID.String(), decodeBody[ContactDTO](t, rec).ID)
		assert.Equal(t, "Robert", api.ctrl.contacts[1].FirstName)
		assert.Len(t, api.ctrl.contacts, 3)
	})

	t.Run("null body is dropped", func(t *testing.T) {
		before := api.ctrl.saves
		rec := api.do(t, http.MethodPost, "/v1/contacts", tok, "null")

		assert.Equal(t, http.StatusNoContent, rec.Code)
		assert.Equal(t, before, api.ctrl.saves)
	})

	t.Run("constraint violation", func(t *testing.T) {
		rec := api.do(t, http.MethodPost, "/v1/contacts", tok, ContactRequest{FirstName: "X", Email: "nope"})

		assert.Equal(t, http.StatusBadRequest, rec.Code)
		body := decodeBody[map[string]interface{}](t, rec)
		assert.EqualValues(t, 3, body["code"])
	})

	t.Run("malformed body", func(t *testing.T) {
		rec := api.do(t, http.MethodPost, "/v1/contacts", tok, "{")
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})
}

func TestDeleteContactAndCount(t *testing.T) {
	api := newTestAPI(t)
	tok := token(t, "user", auth.RoleUser)
	ann := api.ctrl.contacts[0]

	assert.Equal(t, http.StatusNoContent, api.do(t, http.MethodDelete, "/v1/contacts/"+ann.ID.String(), tok, nil).Code)
	assert.Equal(t, http.StatusNotFound, api.do(t, http.MethodDelete, "/v1/contacts/"+ann.ID.String(), tok, nil).Code)

	rec := api.do(t, http.MethodGet, "/v1/counts/contacts", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, int64(1), decodeBody[CountDTO](t, rec).Count)
}

func TestCompaniesAndStatuses(t *testing.T) {
	api := newTestAPI(t)
	admin := token(t, "admin", auth.RoleUser, auth.RoleAdmin)

	rec := api.do(t, http.MethodGet, "/v1/companies", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	companies := decodeBody[[]CompanyDTO](t, rec)
	require.Len(t, companies, 1)
	assert.Equal(t, int64(1), companies[0].EmployeeCount)

	assert.Equal(t, http.StatusForbidden,
		api.do(t, http.MethodPost, "/v1/companies", token(t, "user", auth.RoleUser), NamedRequest{Name: "Globex"}).Code)
	assert.Equal(t, http.StatusOK, api.do(t, http.MethodPost, "/v1/companies", admin, NamedRequest{Name: "Globex"}).Code)
	assert.Equal(t, http.StatusConflict, api.do(t, http.MethodPost, "/v1/companies", admin, NamedRequest{Name: "Globex"}).Code)
	assert.Equal(t, http.StatusBadRequest, api.do(t, http.MethodPost, "/v1/companies", admin, NamedRequest{Name: " "}).Code)
	assert.Equal(t, http.StatusBadRequest,
		api.do(t, http.MethodDelete, "/v1/companies/"+api.acme.ID.String(), admin, nil).Code, "referenced company is kept")

	assert.Equal(t, http.StatusOK, api.do(t, http.MethodPost, "/v1/statuses", admin, NamedRequest{Name: "Customer"}).Code)
	rec = api.do(t, http.MethodGet, "/v1/statuses", "", nil)
	assert.Len(t, decodeBody[[]StatusDTO](t, rec), 2)
}

func TestDashboard(t *testing.T) {
	api := newTestAPI(t)

	assert.Equal(t, http.StatusUnauthorized, api.do(t, http.MethodGet, "/v1/dashboard", "", nil).Code)
	assert.Equal(t, http.StatusForbidden, api.do(t, http.MethodGet, "/v1/dashboard", token(t, "user", auth.RoleUser), nil).Code)

	rec := api.do(t, http.MethodGet, "/v1/dashboard", token(t, "admin", auth.RoleAdmin), nil)
	require.Equal(t, http.StatusOK, rec.Code)
	d := decodeBody[view.Dashboard](t, rec)
	assert.Equal(t, int64(2), d.ContactCount)
	assert.Equal(t, "2 contacts", d.Stats)
	assert.Equal(t, []view.Slice{{Name: "Acme", EmployeeCount: 1}}, d.Series)
}

func TestListSession(t *testing.T) {
	api := newTestAPI(t)
	tok := token(t, "user", auth.RoleUser)

	state := decodeBody[ListStateDTO](t, api.do(t, http.MethodGet, "/v1/list", tok, nil))
	assert.Equal(t, "browsing", state.Mode)
	assert.Len(t, state.Contacts, 2)

	state = decodeBody[ListStateDTO](t, api.do(t, http.MethodPut, "/v1/list/filter", tok, FilterRequest{Filter: "lee"}))
	require.Len(t, state.Contacts, 1)

	state = decodeBody[ListStateDTO](t, api.do(t, http.MethodPost, "/v1/list/new", tok, nil))
	assert.Equal(t, "editing", state.Mode)
	require.NotNil(t, state.Editing)
	assert.Empty(t, state.Editing.ID)

	rec := api.do(t, http.MethodPost, "/v1/list/save", tok, view.ContactInput{FirstName: "Lee"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	state = decodeBody[ListStateDTO](t, api.do(t, http.MethodGet, "/v1/list", tok, nil))
	assert.Equal(t, "editing", state.Mode, "invalid input keeps the editor open")

	rec = api.do(t, http.MethodPost, "/v1/list/save", tok,
		view.ContactInput{FirstName: "Lee", LastName: "Sun", Email: "lee@example.com", CompanyID: &api.acme.ID})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	state = decodeBody[ListStateDTO](t, rec)
	assert.Equal(t, "browsing", state.Mode)
	assert.Len(t, state.Contacts, 2, "re-queried with filter lee")
	assert.Len(t, api.ctrl.contacts, 3)

	target := state.Contacts[0].ID
	state = decodeBody[ListStateDTO](t, api.do(t, http.MethodPost, "/v1/list/select/"+target, tok, nil))
	require.NotNil(t, state.Editing)
	assert.Equal(t, target, state.Editing.ID)

	state = decodeBody[ListStateDTO](t, api.do(t, http.MethodPost, "/v1/list/delete", tok, nil))
	assert.Equal(t, "browsing", state.Mode)
	assert.Len(t, state.Contacts, 1)

	require.Equal(t, http.StatusOK, api.do(t, http.MethodPost, "/v1/list/new", tok, nil).Code)
	state = decodeBody[ListStateDTO](t, api.do(t, http.MethodPost, "/v1/list/cancel", tok, nil))
	assert.Equal(t, "browsing", state.Mode)

	assert.Equal(t, http.StatusNotFound, api.do(t, http.MethodPost, "/v1/list/select/"+uuid.NewString(), tok, nil).Code)

	other := decodeBody[ListStateDTO](t, api.do(t, http.MethodGet, "/v1/list", token(t, "other", auth.RoleUser), nil))
	assert.Equal(t, "", other.Filter, "sessions are per user")
}

func TestRequestIDAndMetrics(t *testing.T) {
	api := newTestAPI(t)

	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	req.Header.Set(RequestIDHeader, "req-42")
	rec := httptest.NewRecorder()
	api.handler.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "req-42", rec.Header().Get(RequestIDHeader))

	rec = api.do(t, http.MethodGet, "/v1/contacts/"+uuid.NewString(), "", nil)
	assert.NotEmpty(t, rec.Header().Get(RequestIDHeader))

	rec = api.do(t, http.MethodGet, "/metrics", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	body := rec.Body.String()
	assert.Contains(t, body, `crm_http_requests_total{method="GET",path="/v1/contacts/{id}",status="404"} 1`)
	assert.Contains(t, body, `path="/healthz"`)
}

func TestHealthz(t *testing.T) {
	logger := zaptest.NewLogger(t)
	h := NewHTTPHandler(&fakeController{}, nil, func(context.Context) error { return e.ErrNotFound }, logger)
	s := NewServer(0, 0, logger)
	require.NoError(t, s.RegisterHTTPHandler(h, testSecret, NewMetrics("crm")))

	rec := httptest.NewRecorder()
	s.httpServer.Handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

func TestNormalizePath(t *testing.T) {
	id := uuid.NewString()
	assert.Equal(t, "/v1/contacts/{id}", normalizePath("/v1/contacts/"+id))
	assert.Equal(t, "/v1/list/select/{id}", normalizePath("/v1/list/select/"+id))
	assert.Equal(t, "/v1/contacts", normalizePath("/v1/contacts"))
}
